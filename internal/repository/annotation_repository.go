package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hashicorp/go-multierror"

	"github.com/lewtec/postal-annotator/internal/domain"
)

type table string

const (
	tableGroupLabels table = "group_labels"
	tableDigitLabels table = "digit_labels"
	tableWordLabels  table = "word_labels"
	tableMissedWords table = "missed_words"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AnnotationRepository implements domain.AnnotationRepository on top of a
// session database
type AnnotationRepository struct {
	db *sql.DB
}

// NewAnnotationRepository creates a new AnnotationRepository
func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

func put(ctx context.Context, q querier, t table, key domain.GroupKey, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("while encoding %s for %q: %w", t, key, err)
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (group_key, value) VALUES (?, ?)
ON CONFLICT(group_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`, t), string(key), string(data))
	if err != nil {
		return fmt.Errorf("while storing %s for %q: %w", t, key, err)
	}
	return nil
}

func get(ctx context.Context, q querier, t table, key domain.GroupKey, dst any) (bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE group_key = ?`, t), string(key)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("while reading %s for %q: %w", t, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("while decoding %s for %q: %w", t, key, err)
	}
	return true, nil
}

// SetGroupLabels replaces the label set of a group
func (r *AnnotationRepository) SetGroupLabels(ctx context.Context, key domain.GroupKey, labels domain.LabelSet) error {
	if labels == nil {
		labels = domain.LabelSet{}
	}
	return put(ctx, r.db, tableGroupLabels, key, labels)
}

// GetGroupLabels returns the label set of a group
func (r *AnnotationRepository) GetGroupLabels(ctx context.Context, key domain.GroupKey) (domain.LabelSet, bool, error) {
	var labels domain.LabelSet
	ok, err := get(ctx, r.db, tableGroupLabels, key, &labels)
	return labels, ok, err
}

// SetDigitLabels replaces every digit position of a group
func (r *AnnotationRepository) SetDigitLabels(ctx context.Context, key domain.GroupKey, labels map[int]domain.DigitLabel) error {
	if labels == nil {
		labels = map[int]domain.DigitLabel{}
	}
	return put(ctx, r.db, tableDigitLabels, key, labels)
}

// SetDigitLabel replaces one digit position, keeping the others
func (r *AnnotationRepository) SetDigitLabel(ctx context.Context, key domain.GroupKey, position int, label domain.DigitLabel) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		labels := map[int]domain.DigitLabel{}
		if _, err := get(ctx, tx, tableDigitLabels, key, &labels); err != nil {
			return err
		}
		labels[position] = label
		return put(ctx, tx, tableDigitLabels, key, labels)
	})
}

// GetDigitLabels returns the digit labels of a group
func (r *AnnotationRepository) GetDigitLabels(ctx context.Context, key domain.GroupKey) (map[int]domain.DigitLabel, bool, error) {
	labels := map[int]domain.DigitLabel{}
	ok, err := get(ctx, r.db, tableDigitLabels, key, &labels)
	return labels, ok, err
}

// SetWordLabels replaces every word label of a group
func (r *AnnotationRepository) SetWordLabels(ctx context.Context, key domain.GroupKey, labels map[string]domain.WordTag) error {
	if labels == nil {
		labels = map[string]domain.WordTag{}
	}
	return put(ctx, r.db, tableWordLabels, key, labels)
}

// SetWordLabel replaces the tag of one word, keeping the others
func (r *AnnotationRepository) SetWordLabel(ctx context.Context, key domain.GroupKey, word string, tag domain.WordTag) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		labels := map[string]domain.WordTag{}
		if _, err := get(ctx, tx, tableWordLabels, key, &labels); err != nil {
			return err
		}
		labels[word] = tag
		return put(ctx, tx, tableWordLabels, key, labels)
	})
}

// GetWordLabels returns the word labels of a group
func (r *AnnotationRepository) GetWordLabels(ctx context.Context, key domain.GroupKey) (map[string]domain.WordTag, bool, error) {
	labels := map[string]domain.WordTag{}
	ok, err := get(ctx, r.db, tableWordLabels, key, &labels)
	return labels, ok, err
}

// SetMissedWords replaces the missed words of a group
func (r *AnnotationRepository) SetMissedWords(ctx context.Context, key domain.GroupKey, words []string) error {
	if words == nil {
		words = []string{}
	}
	return put(ctx, r.db, tableMissedWords, key, words)
}

// GetMissedWords returns the missed words of a group
func (r *AnnotationRepository) GetMissedWords(ctx context.Context, key domain.GroupKey) ([]string, bool, error) {
	words := []string{}
	ok, err := get(ctx, r.db, tableMissedWords, key, &words)
	return words, ok, err
}

// Snapshot copies all four mappings in a single read transaction. Values
// that cannot be decoded are logged and left out, the rest of the snapshot
// is still returned.
func (r *AnnotationRepository) Snapshot(ctx context.Context) (*domain.AnnotationSnapshot, error) {
	snap := domain.NewAnnotationSnapshot()
	var skipped *multierror.Error
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := scanTable(ctx, tx, tableGroupLabels, &skipped, func(key domain.GroupKey, raw []byte) error {
			labels, err := domain.DecodeGroupLabels(raw)
			if err != nil {
				return err
			}
			snap.GroupLabels[key] = labels
			return nil
		})
		if err != nil {
			return err
		}
		err = scanTable(ctx, tx, tableDigitLabels, &skipped, func(key domain.GroupKey, raw []byte) error {
			labels := map[int]domain.DigitLabel{}
			if err := json.Unmarshal(raw, &labels); err != nil {
				return err
			}
			snap.DigitLabels[key] = labels
			return nil
		})
		if err != nil {
			return err
		}
		err = scanTable(ctx, tx, tableWordLabels, &skipped, func(key domain.GroupKey, raw []byte) error {
			labels := map[string]domain.WordTag{}
			if err := json.Unmarshal(raw, &labels); err != nil {
				return err
			}
			snap.WordLabels[key] = labels
			return nil
		})
		if err != nil {
			return err
		}
		return scanTable(ctx, tx, tableMissedWords, &skipped, func(key domain.GroupKey, raw []byte) error {
			words := []string{}
			if err := json.Unmarshal(raw, &words); err != nil {
				return err
			}
			snap.MissedWords[key] = words
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if skipped != nil {
		log.Printf("warning: repository: snapshot left out %d unreadable values", len(skipped.Errors))
	}
	return snap, nil
}

// scanTable calls fn for every row of t. Rows fn cannot decode are appended
// to skipped instead of ending the scan.
func scanTable(ctx context.Context, q querier, t table, skipped **multierror.Error, fn func(key domain.GroupKey, raw []byte) error) error {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT group_key, value FROM %s ORDER BY group_key`, t))
	if err != nil {
		return fmt.Errorf("while listing %s: %w", t, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("while scanning %s: %w", t, err)
		}
		if err := fn(domain.GroupKey(key), []byte(raw)); err != nil {
			err = fmt.Errorf("while decoding %s for %q: %w", t, key, err)
			log.Printf("warning: repository: %s", err)
			*skipped = multierror.Append(*skipped, err)
		}
	}
	return rows.Err()
}

func (r *AnnotationRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("while starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Verify that AnnotationRepository implements domain.AnnotationRepository
var _ domain.AnnotationRepository = (*AnnotationRepository)(nil)
