package annotation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/util"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/lewtec/postal-annotator/internal/dataset"
	"github.com/lewtec/postal-annotator/internal/domain"
	"github.com/lewtec/postal-annotator/internal/extract"
	"github.com/lewtec/postal-annotator/internal/store"
)

const sessionCookie = "postal_session"

type contextKey string

const sessionContextKey contextKey = "session"

// UploadResult describes the last upload of a session
type UploadResult struct {
	Files    int
	Counts   map[domain.Category]int
	Groups   int
	Warnings []string
	// Blocking is set when the upload cannot be annotated
	Blocking string
}

// Session is one reviewer's state. Handlers hold Lock while they use it so
// UI actions apply one at a time.
type Session struct {
	ID string

	sync.Mutex
	db        *sql.DB
	Store     *store.Store
	Dataset   *dataset.Dataset
	Extractor *extract.Extractor
	Upload    *UploadResult
	uploadDir string
}

// Groups returns the groups of the current upload, nil before the first
// successful upload
func (s *Session) Groups() *domain.GroupCollection {
	if s.Dataset == nil {
		return nil
	}
	return s.Dataset.Groups
}

// SessionManager owns every live session and the filesystem uploads are
// extracted to
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	config     *Config
	fs         billy.Filesystem
	uploadRoot string
}

func NewSessionManager(config *Config, fs billy.Filesystem, uploadRoot string) *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]*Session),
		config:     config,
		fs:         fs,
		uploadRoot: uploadRoot,
	}
}

// Get returns the session with id, reopening its database when sessions
// are kept on disk
func (m *SessionManager) Get(ctx context.Context, id string) (*Session, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, true, nil
	}
	if !m.persistent() || !sessionDatabaseExists(m.config.Sessions.Dir, id) {
		return nil, false, nil
	}
	s, err := m.open(ctx, id)
	if err != nil {
		return nil, false, err
	}
	log.Printf("session: resumed %s", id)
	return s, true, nil
}

// New creates a session with an empty store
func (m *SessionManager) New(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.open(ctx, uuid.NewString())
	if err != nil {
		return nil, err
	}
	log.Printf("session: created %s", s.ID)
	return s, nil
}

func (m *SessionManager) persistent() bool {
	return m.config.Sessions.Dir != ""
}

func (m *SessionManager) open(ctx context.Context, id string) (*Session, error) {
	db, err := GetDatabase(ctx, m.config.Sessions.Dir, id)
	if err != nil {
		return nil, fmt.Errorf("while opening database of session %s: %w", id, err)
	}
	s := &Session{
		ID:    id,
		db:    db,
		Store: store.New(NewAnnotationRepository(db), m.config.Categories),
	}
	m.sessions[id] = s
	return s, nil
}

// Load extracts an uploaded archive and makes it the session's dataset.
// The previous dataset is kept when the archive cannot be read, and
// dropped when the new one has no groups.
func (m *SessionManager) Load(s *Session, archive io.ReaderAt, size int64) (*UploadResult, error) {
	dir := filepath.Join(m.uploadRoot, s.ID, uuid.NewString())
	n, err := dataset.ExtractZip(archive, size, m.fs, dir)
	if errors.Is(err, dataset.ErrInvalidArchive) {
		util.RemoveAll(m.fs, dir)
		return nil, err
	}
	result := &UploadResult{Files: n}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			result.Warnings = append(result.Warnings, e.Error())
		}
	}

	ds, err := dataset.Load(m.fs, dir)
	if err != nil && !errors.Is(err, dataset.ErrNoGroups) {
		util.RemoveAll(m.fs, dir)
		return nil, err
	}
	result.Counts = ds.Counts()
	result.Groups = ds.Groups.Len()

	m.dropUpload(s)
	s.Upload = result
	s.uploadDir = dir
	if errors.Is(err, dataset.ErrNoGroups) {
		result.Blocking = err.Error()
		s.Dataset = nil
		s.Extractor = nil
		s.Store.UseGroups(nil)
		return result, nil
	}
	s.Dataset = ds
	s.Extractor = extract.NewExtractor(m.fs)
	s.Store.UseGroups(ds.Groups)
	log.Printf("session: %s loaded %d groups from %d files", s.ID, result.Groups, n)
	return result, nil
}

func (m *SessionManager) dropUpload(s *Session) {
	if s.uploadDir == "" {
		return
	}
	if err := util.RemoveAll(m.fs, s.uploadDir); err != nil {
		log.Printf("warning: session: while removing %s: %s", s.uploadDir, err)
	}
	s.uploadDir = ""
}

// Reset ends a session, discarding its uploads and, for in-memory
// sessions, its annotations
func (m *SessionManager) Reset(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	s.Lock()
	defer s.Unlock()
	m.dropUpload(s)
	log.Printf("session: reset %s", id)
	return s.db.Close()
}

// Close ends every session
func (m *SessionManager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var result *multierror.Error
	for _, id := range ids {
		if err := m.Reset(id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// WithSession adds a session to the context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// GetSession retrieves the session from context
func GetSession(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionContextKey).(*Session); ok {
		return s
	}
	return nil
}

// sessionMiddleware attaches the reviewer's session, creating one and
// setting the cookie when needed
func (m *SessionManager) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s *Session
		if c, err := r.Cookie(sessionCookie); err == nil {
			found, ok, err := m.Get(r.Context(), c.Value)
			if err != nil {
				log.Printf("error: session: %s", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if ok {
				s = found
			}
		}
		if s == nil {
			created, err := m.New(r.Context())
			if err != nil {
				log.Printf("error: session: %s", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			s = created
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    s.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
