package annotation

import (
	"log"
	"net/http"
	"time"

	"github.com/lewtec/postal-annotator/internal/export"
	"github.com/lewtec/postal-annotator/internal/stats"
)

func (a *AnnotatorApp) handleExportPreview(w http.ResponseWriter, r *http.Request, s *Session) {
	snap, err := s.Store.Snapshot(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}
	table := export.Export(snap)
	RenderPageWithRequest(r, w, http.StatusOK, "export", map[string]any{
		"Title":   LocalizeWithContext(r.Context(), "export.title"),
		"Columns": table.Columns,
		"Rows":    table.Records()[1:],
		"Count":   len(table.Rows),
	})
}

func (a *AnnotatorApp) handleExportCSV(w http.ResponseWriter, r *http.Request, s *Session) {
	snap, err := s.Store.Snapshot(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}
	table := export.Export(snap)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)
	if err := table.WriteCSV(w); err != nil {
		log.Printf("error: http: %s", err)
		return
	}
	log.Printf("http: session %s exported %d rows", s.ID, len(table.Rows))
}

func (a *AnnotatorApp) handleDashboard(w http.ResponseWriter, r *http.Request, s *Session) {
	snap, err := s.Store.Snapshot(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}
	RenderPageWithRequest(r, w, http.StatusOK, "dashboard", map[string]any{
		"Title": LocalizeWithContext(r.Context(), "dashboard.title"),
		"Stats": stats.Compute(snap),
	})
}
