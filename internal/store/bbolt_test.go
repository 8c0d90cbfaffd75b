package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/newsradar-io/newsradar/internal/domain"
)

func testStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "articles.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveReturnsNewlyStoredCount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	articles := []domain.Article{
		{Fingerprint: "f1", Title: "one"},
		{Fingerprint: "f2", Title: "two"},
	}

	saved, err := s.Save(ctx, articles)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}

	// Re-saving the same batch plus one new article only counts the new one.
	articles = append(articles, domain.Article{Fingerprint: "f3", Title: "three"})
	saved, err = s.Save(ctx, articles)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if saved != 1 {
		t.Errorf("second save = %d, want 1", saved)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestSaveKeepsFirstCopy(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, []domain.Article{{Fingerprint: "f1", Title: "original"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Save(ctx, []domain.Article{{Fingerprint: "f1", Title: "changed"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found, err := s.Get("f1")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Title != "original" {
		t.Errorf("title = %q, want the first-seen copy", got.Title)
	}
}

func TestSaveSkipsEmptyFingerprints(t *testing.T) {
	s := testStore(t)

	saved, err := s.Save(context.Background(), []domain.Article{{Title: "no identity"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved != 0 {
		t.Errorf("saved = %d, want 0", saved)
	}
}
