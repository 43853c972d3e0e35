package annotation

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-git/go-billy/v6"

	"github.com/lewtec/postal-annotator/internal/dataset"
	"github.com/lewtec/postal-annotator/internal/domain"
)

type AnnotatorApp struct {
	Config   *Config
	Sessions *SessionManager
}

// NewAnnotatorApp creates the web app. Uploads are extracted under
// uploadRoot on fs.
func NewAnnotatorApp(config *Config, fs billy.Filesystem, uploadRoot string) *AnnotatorApp {
	return &AnnotatorApp{
		Config:   config,
		Sessions: NewSessionManager(config, fs, uploadRoot),
	}
}

// Close ends every session
func (a *AnnotatorApp) Close() error {
	return a.Sessions.Close()
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	}
	return or
}

// withSession runs fn holding the request's session lock
func withSession(fn func(w http.ResponseWriter, r *http.Request, s *Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := GetSession(r.Context())
		if s == nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.Lock()
		defer s.Unlock()
		fn(w, r, s)
	}
}

func (a *AnnotatorApp) GetHTTPHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", withSession(a.handleHome))
	mux.HandleFunc("POST /upload", withSession(a.handleUpload))
	mux.HandleFunc("POST /reset", a.handleReset)

	mux.HandleFunc("GET /group", withSession(a.handleJump))
	mux.HandleFunc("GET /group/{index}", withSession(a.handleGroup))
	mux.HandleFunc("POST /group/{index}/labels", withSession(a.handleGroupLabels))
	mux.HandleFunc("POST /group/{index}/digits", withSession(a.handleDigits))
	mux.HandleFunc("POST /group/{index}/words", withSession(a.handleWords))
	mux.HandleFunc("POST /group/{index}/missed", withSession(a.handleMissedWords))
	mux.HandleFunc("GET /asset/{index}/{category}", a.handleAsset)

	mux.HandleFunc("GET /export", withSession(a.handleExportPreview))
	mux.HandleFunc("GET /export.csv", withSession(a.handleExportCSV))
	mux.HandleFunc("GET /dashboard", withSession(a.handleDashboard))
	mux.HandleFunc("GET /help", a.handleHelp)

	mux.HandleFunc("GET /favicon.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		fmt.Fprint(w, GetFavicon())
	})

	var handler http.Handler = mux
	handler = a.Sessions.sessionMiddleware(handler)
	handler = i18nMiddleware(a.Config.Language, handler)
	handler = HTTPLogger(handler)
	return handler
}

type categoryCount struct {
	Category domain.Category
	Count    int
}

func (a *AnnotatorApp) homeData(r *http.Request, s *Session) (map[string]any, error) {
	data := map[string]any{
		"Description": a.Config.Meta.Description,
		"Upload":      s.Upload,
		"Categories":  domain.Categories,
		"MaxUploadMB": a.Config.Server.MaxUploadMB,
	}
	if s.Upload != nil {
		counts := make([]categoryCount, 0, len(domain.Categories))
		for _, c := range domain.Categories {
			counts = append(counts, categoryCount{Category: c, Count: s.Upload.Counts[c]})
		}
		data["Counts"] = counts
	}
	if groups := s.Groups(); groups != nil {
		labeled, err := s.Store.LabeledCount(r.Context(), groups.Keys())
		if err != nil {
			return nil, err
		}
		data["Total"] = groups.Len()
		data["Labeled"] = labeled
	}
	return data, nil
}

func (a *AnnotatorApp) renderHome(w http.ResponseWriter, r *http.Request, s *Session, status int, uploadError string) {
	data, err := a.homeData(r, s)
	if err != nil {
		serverError(w, err)
		return
	}
	data["Error"] = uploadError
	RenderPageWithRequest(r, w, status, "home", data)
}

func (a *AnnotatorApp) handleHome(w http.ResponseWriter, r *http.Request, s *Session) {
	a.renderHome(w, r, s, http.StatusOK, "")
}

func (a *AnnotatorApp) handleUpload(w http.ResponseWriter, r *http.Request, s *Session) {
	r.Body = http.MaxBytesReader(w, r.Body, a.Config.MaxUploadBytes())
	file, header, err := r.FormFile("archive")
	if err != nil {
		log.Printf("warning: http: upload rejected: %s", err)
		a.renderHome(w, r, s, http.StatusBadRequest, LocalizeWithContext(r.Context(), "upload.error.missing"))
		return
	}
	defer file.Close()

	log.Printf("http: session %s uploaded %s (%d bytes)", s.ID, header.Filename, header.Size)
	result, err := a.Sessions.Load(s, file, header.Size)
	if errors.Is(err, dataset.ErrInvalidArchive) {
		a.renderHome(w, r, s, http.StatusBadRequest, LocalizeWithContext(r.Context(), "upload.error.invalid"))
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}
	for _, warning := range result.Warnings {
		log.Printf("warning: upload: %s", warning)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *AnnotatorApp) handleReset(w http.ResponseWriter, r *http.Request) {
	if s := GetSession(r.Context()); s != nil {
		if err := a.Sessions.Reset(s.ID); err != nil {
			log.Printf("warning: session: while closing %s: %s", s.ID, err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *AnnotatorApp) handleHelp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var markdownBuilder strings.Builder
	fmt.Fprintf(&markdownBuilder, "# %s\n", LocalizeWithContext(ctx, "help.title"))
	fmt.Fprintf(&markdownBuilder, "## %s\n", LocalizeWithContext(ctx, "help.description"))
	fmt.Fprintf(&markdownBuilder, "> %s\n\n", strings.ReplaceAll(stringOr(strings.TrimSpace(a.Config.Meta.Description), LocalizeWithContext(ctx, "help.no_description")), "\n", "\n> "))

	fmt.Fprintf(&markdownBuilder, "## %s\n", LocalizeWithContext(ctx, "help.layout"))
	fmt.Fprintf(&markdownBuilder, "%s\n\n", LocalizeWithContext(ctx, "help.layout_text"))
	for _, c := range domain.Categories {
		fmt.Fprintf(&markdownBuilder, "- `%s/`\n", c)
	}
	fmt.Fprintf(&markdownBuilder, "\n## %s\n", LocalizeWithContext(ctx, "help.formats"))
	fmt.Fprintf(&markdownBuilder, "```\nExtracted Digits: [1, 2, 3]\nIndividual Words: word1, 0, word2\n```\n")
	fmt.Fprintf(&markdownBuilder, "%s\n\n", LocalizeWithContext(ctx, "help.formats_text"))

	fmt.Fprintf(&markdownBuilder, "## %s\n", LocalizeWithContext(ctx, "help.categories"))
	for _, c := range a.Config.Categories {
		fmt.Fprintf(&markdownBuilder, "- %s\n", c)
	}
	fmt.Fprintf(&markdownBuilder, "\n## %s\n", LocalizeWithContext(ctx, "help.export"))
	fmt.Fprintf(&markdownBuilder, "%s\n", LocalizeWithContext(ctx, "help.export_text"))

	RenderPageWithRequest(r, w, http.StatusOK, "help", map[string]any{
		"Title":   LocalizeWithContext(ctx, "help.title"),
		"Content": markdownBuilder.String(),
	})
}

func serverError(w http.ResponseWriter, err error) {
	log.Printf("error: http: %s", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
