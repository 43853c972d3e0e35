package annotation

import (
	"log"
	"net/http"
	"time"
)

// i18nMiddleware adds the appropriate localizer to the request context
func i18nMiddleware(fallback string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := RequestLanguage(r, fallback)
		if r.URL.Query().Get("lang") == lang {
			http.SetCookie(w, &http.Cookie{Name: "lang", Value: lang, Path: "/", SameSite: http.SameSiteLaxMode})
		}
		handler.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), lang)))
	})
}

func HTTPLogger(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initialTime := time.Now()
		method := r.Method
		path := r.URL.String()
		wr := NewStatusCodeRecorderResponseWriter(w)
		handler.ServeHTTP(wr, r)
		statusCode := wr.Status
		log.Printf("http: time:%dms %d %s %s", time.Since(initialTime)/time.Millisecond, statusCode, method, path)
	})
}

type StatusCodeRecorderResponseWriter struct {
	http.ResponseWriter
	Status int
}

func (r *StatusCodeRecorderResponseWriter) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func NewStatusCodeRecorderResponseWriter(w http.ResponseWriter) *StatusCodeRecorderResponseWriter {
	return &StatusCodeRecorderResponseWriter{ResponseWriter: w, Status: 200}
}
