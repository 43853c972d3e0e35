package annotation

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log"
	"net/http"

	"github.com/russross/blackfriday/v2"
)

var (
	//go:embed templates
	templateFS embed.FS

	//go:embed assets/css/output.css
	cssContent string

	//go:embed assets/favicon.svg
	faviconContent string

	templateManager *TemplateManager

	// TemplateFuncMap contains custom template functions available globally
	TemplateFuncMap = template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
		"percent": func(part, total int) int {
			if total == 0 {
				return 0
			}
			return part * 100 / total
		},
		"digitRange": func() []int { return []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9} },
	}
)

func init() {
	pages, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	templateManager, err = NewTemplateManager(pages, TemplateFuncMap)
	if err != nil {
		panic(err)
	}
}

// RenderPageWithRequest renders a page with the request's language. The
// page data gains the layout values: T for translation, Lang, Dir, CSS and
// Title. Nothing is written when the template fails.
func RenderPageWithRequest(r *http.Request, w http.ResponseWriter, status int, pageName string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	ctx := r.Context()
	lang := GetLanguageFromContext(ctx)
	data["CSS"] = template.CSS(cssContent)
	data["Lang"] = lang
	data["Dir"] = TextDirection(lang)
	data["Path"] = r.URL.Path
	data["T"] = func(messageID string, pairs ...any) string {
		return LocalizeWithContext(ctx, messageID, pairs...)
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = LocalizeWithContext(ctx, "app.title")
	}
	var buf bytes.Buffer
	if err := templateManager.Render(&buf, pageName+".html", data); err != nil {
		log.Printf("error: http: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// GetFavicon returns the embedded favicon content
func GetFavicon() string {
	return faviconContent
}
