package repository

import (
	"context"
	"testing"

	"github.com/lewtec/postal-annotator/internal/domain"
)

func setupTestRepository(t *testing.T) (*AnnotationRepository, context.Context) {
	t.Helper()
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })
	return NewAnnotationRepository(db), context.Background()
}

func intPtr(v int) *int { return &v }

func TestAnnotationRepository_GroupLabels(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	t.Run("returns not found for unknown group", func(t *testing.T) {
		labels, ok, err := repo.GetGroupLabels(ctx, "nope")
		if err != nil {
			t.Fatalf("GetGroupLabels() error = %v", err)
		}
		if ok {
			t.Error("Expected no stored labels")
		}
		if len(labels) != 0 {
			t.Errorf("Got %v, want empty", labels)
		}
	})

	t.Run("replaces the whole set", func(t *testing.T) {
		if err := repo.SetGroupLabels(ctx, "a", domain.NewLabelSet("Wrong receiver", "Bad image quality")); err != nil {
			t.Fatalf("SetGroupLabels() error = %v", err)
		}
		if err := repo.SetGroupLabels(ctx, "a", domain.NewLabelSet("Wrong postcode")); err != nil {
			t.Fatalf("SetGroupLabels() error = %v", err)
		}
		labels, ok, err := repo.GetGroupLabels(ctx, "a")
		if err != nil || !ok {
			t.Fatalf("GetGroupLabels() = %v, %v", ok, err)
		}
		if len(labels) != 1 || labels[0] != "Wrong postcode" {
			t.Errorf("Got %v, want [Wrong postcode]", labels)
		}
	})

	t.Run("keeps an empty set as present", func(t *testing.T) {
		if err := repo.SetGroupLabels(ctx, "empty", nil); err != nil {
			t.Fatalf("SetGroupLabels() error = %v", err)
		}
		_, ok, err := repo.GetGroupLabels(ctx, "empty")
		if err != nil {
			t.Fatalf("GetGroupLabels() error = %v", err)
		}
		if !ok {
			t.Error("Empty label set should still be stored")
		}
	})
}

func TestAnnotationRepository_DigitLabels(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	correct, _ := domain.NewDigitLabel(domain.DigitCorrect, 4, nil)
	wrong, _ := domain.NewDigitLabel(domain.DigitIncorrect, 7, intPtr(1))

	t.Run("bulk replace drops positions not submitted", func(t *testing.T) {
		err := repo.SetDigitLabels(ctx, "g", map[int]domain.DigitLabel{0: correct, 1: correct, 2: correct})
		if err != nil {
			t.Fatalf("SetDigitLabels() error = %v", err)
		}
		err = repo.SetDigitLabels(ctx, "g", map[int]domain.DigitLabel{0: correct, 1: wrong})
		if err != nil {
			t.Fatalf("SetDigitLabels() error = %v", err)
		}
		labels, _, err := repo.GetDigitLabels(ctx, "g")
		if err != nil {
			t.Fatalf("GetDigitLabels() error = %v", err)
		}
		if len(labels) != 2 {
			t.Fatalf("Got %d positions, want 2", len(labels))
		}
		if labels[1].Tag != domain.DigitIncorrect || labels[1].Corrected == nil || *labels[1].Corrected != 1 {
			t.Errorf("Position 1 = %+v, want incorrect corrected to 1", labels[1])
		}
		if labels[1].Predicted != 7 {
			t.Errorf("Predicted = %d, want 7", labels[1].Predicted)
		}
	})

	t.Run("single position update keeps the others", func(t *testing.T) {
		if err := repo.SetDigitLabel(ctx, "g", 0, wrong); err != nil {
			t.Fatalf("SetDigitLabel() error = %v", err)
		}
		labels, _, err := repo.GetDigitLabels(ctx, "g")
		if err != nil {
			t.Fatalf("GetDigitLabels() error = %v", err)
		}
		if len(labels) != 2 {
			t.Errorf("Got %d positions, want 2", len(labels))
		}
		if labels[0].Tag != domain.DigitIncorrect {
			t.Errorf("Position 0 tag = %v, want False", labels[0].Tag)
		}
	})

	t.Run("single position update creates the group", func(t *testing.T) {
		if err := repo.SetDigitLabel(ctx, "new", 3, correct); err != nil {
			t.Fatalf("SetDigitLabel() error = %v", err)
		}
		labels, ok, err := repo.GetDigitLabels(ctx, "new")
		if err != nil || !ok {
			t.Fatalf("GetDigitLabels() = %v, %v", ok, err)
		}
		if _, ok := labels[3]; !ok {
			t.Error("Expected position 3")
		}
	})
}

func TestAnnotationRepository_WordsAndMissedWords(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	t.Run("word labels", func(t *testing.T) {
		err := repo.SetWordLabels(ctx, "g", map[string]domain.WordTag{"cat": domain.WordCorrect, "dog": domain.WordCorrect})
		if err != nil {
			t.Fatalf("SetWordLabels() error = %v", err)
		}
		if err := repo.SetWordLabel(ctx, "g", "dog", domain.WordIncorrect); err != nil {
			t.Fatalf("SetWordLabel() error = %v", err)
		}
		labels, _, err := repo.GetWordLabels(ctx, "g")
		if err != nil {
			t.Fatalf("GetWordLabels() error = %v", err)
		}
		if labels["cat"] != domain.WordCorrect || labels["dog"] != domain.WordIncorrect {
			t.Errorf("Got %v", labels)
		}
	})

	t.Run("missed words keep order", func(t *testing.T) {
		if err := repo.SetMissedWords(ctx, "g", []string{"tehran", "box"}); err != nil {
			t.Fatalf("SetMissedWords() error = %v", err)
		}
		words, ok, err := repo.GetMissedWords(ctx, "g")
		if err != nil || !ok {
			t.Fatalf("GetMissedWords() = %v, %v", ok, err)
		}
		if len(words) != 2 || words[0] != "tehran" || words[1] != "box" {
			t.Errorf("Got %v, want [tehran box]", words)
		}
	})
}

func TestAnnotationRepository_Snapshot(t *testing.T) {
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })
	repo := NewAnnotationRepository(db)
	ctx := context.Background()

	// rows as written by older sessions
	MustExec(t, db, `INSERT INTO group_labels (group_key, value) VALUES (?, ?)`, "legacy", `"Wrong receiver"`)
	MustExec(t, db, `INSERT INTO group_labels (group_key, value) VALUES (?, ?)`, "blank", `""`)
	MustExec(t, db, `INSERT INTO digit_labels (group_key, value) VALUES (?, ?)`, "legacy", `{"0": "False", "1": {"label": "True", "predicted": 5}}`)

	repo.SetMissedWords(ctx, "only-missed", []string{"x"})

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	t.Run("decodes legacy group labels", func(t *testing.T) {
		if got := snap.GroupLabels["legacy"].String(); got != "Wrong receiver" {
			t.Errorf("Got %q, want %q", got, "Wrong receiver")
		}
		if got := snap.GroupLabels["blank"]; len(got) != 0 {
			t.Errorf("Got %v, want empty", got)
		}
	})

	t.Run("decodes mixed digit shapes", func(t *testing.T) {
		digits := snap.DigitLabels["legacy"]
		if !digits[0].IsLegacy() || digits[0].Tag != domain.DigitIncorrect {
			t.Errorf("Position 0 = %+v, want legacy False", digits[0])
		}
		if digits[1].IsLegacy() || digits[1].Predicted != 5 {
			t.Errorf("Position 1 = %+v, want record predicted 5", digits[1])
		}
	})

	t.Run("collects keys from every table", func(t *testing.T) {
		keys := snap.Keys()
		want := []domain.GroupKey{"blank", "legacy", "only-missed"}
		if len(keys) != len(want) {
			t.Fatalf("Got %v, want %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("keys[%d] = %v, want %v", i, keys[i], want[i])
			}
		}
	})
}

func TestOpen_FileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := t.TempDir() + "/session.db"

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := NewAnnotationRepository(db).SetGroupLabels(ctx, "k", domain.NewLabelSet("Wrong postcode")); err != nil {
		t.Fatalf("SetGroupLabels() error = %v", err)
	}
	db.Close()

	db, err = Open(ctx, dsn)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer db.Close()
	labels, ok, err := NewAnnotationRepository(db).GetGroupLabels(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("GetGroupLabels() = %v, %v", ok, err)
	}
	if labels.String() != "Wrong postcode" {
		t.Errorf("Got %q", labels.String())
	}
}

func TestAnnotationRepository_SnapshotSkipsUnreadableValues(t *testing.T) {
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })
	repo := NewAnnotationRepository(db)
	ctx := context.Background()

	MustExec(t, db, `INSERT INTO digit_labels (group_key, value) VALUES (?, ?)`, "odd", `{"0": {"predicted": 3}}`)
	MustExec(t, db, `INSERT INTO digit_labels (group_key, value) VALUES (?, ?)`, "good", `{"0": {"label": "True", "predicted": 3}}`)
	MustExec(t, db, `INSERT INTO missed_words (group_key, value) VALUES (?, ?)`, "broken", `not json`)
	MustExec(t, db, `INSERT INTO missed_words (group_key, value) VALUES (?, ?)`, "good", `["box"]`)

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if _, ok := snap.DigitLabels["odd"]; ok {
		t.Error("undecodable digit labels should be left out")
	}
	if _, ok := snap.MissedWords["broken"]; ok {
		t.Error("undecodable missed words should be left out")
	}
	if got := snap.DigitLabels["good"][0]; got.Predicted != 3 || got.Tag != domain.DigitCorrect {
		t.Errorf("good digit label = %+v", got)
	}
	if len(snap.MissedWords["good"]) != 1 {
		t.Errorf("good missed words = %v", snap.MissedWords["good"])
	}
}
