package annotation

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/abiosoft/mold"
)

// TemplateManager renders pages inside the shared layout using mold
type TemplateManager struct {
	engine mold.Engine
}

// NewTemplateManager parses every page under fsys. The layout is
// layout.html at the root of fsys.
func NewTemplateManager(fsys fs.FS, funcMap template.FuncMap) (*TemplateManager, error) {
	engine, err := mold.New(fsys,
		mold.WithLayout("layout.html"),
		mold.WithFuncMap(funcMap),
	)
	if err != nil {
		return nil, fmt.Errorf("while parsing templates: %w", err)
	}
	return &TemplateManager{engine: engine}, nil
}

// Render renders a page inside the layout
func (tm *TemplateManager) Render(w io.Writer, pageName string, data any) error {
	if err := tm.engine.Render(w, pageName, data); err != nil {
		return fmt.Errorf("while rendering %s: %w", pageName, err)
	}
	return nil
}
