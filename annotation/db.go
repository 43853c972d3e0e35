package annotation

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/lewtec/postal-annotator/internal/repository"
)

// GetDatabase opens the annotation database of a session. With an empty dir
// the database lives in memory and is gone once closed.
func GetDatabase(ctx context.Context, dir, sessionID string) (*sql.DB, error) {
	if dir == "" {
		return repository.Open(ctx, repository.MemoryDSN)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return repository.Open(ctx, sessionDatabasePath(dir, sessionID))
}

func sessionDatabasePath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".db")
}

func sessionDatabaseExists(dir, sessionID string) bool {
	_, err := os.Stat(sessionDatabasePath(dir, sessionID))
	return err == nil
}

// NewAnnotationRepository wraps a session database
func NewAnnotationRepository(db *sql.DB) *repository.AnnotationRepository {
	return repository.NewAnnotationRepository(db)
}
