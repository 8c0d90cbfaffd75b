package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/newsradar-io/newsradar/internal/domain"
)

var articlesBucket = []byte("articles")

// ArticleStore is the persistence collaborator interface: the engine
// produces articles, the composing application decides when to save them.
type ArticleStore interface {
	// Save persists the articles and returns how many were newly stored.
	// Articles whose fingerprint is already present are skipped.
	Save(ctx context.Context, articles []domain.Article) (int, error)
}

// BoltStore persists articles in a bbolt file keyed by fingerprint.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the article store at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(articlesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init article store: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Save stores each article under its fingerprint. Already-stored
// fingerprints are left untouched so re-saving an aggregate result is
// idempotent.
func (s *BoltStore) Save(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	saved := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(articlesBucket)
		for _, a := range articles {
			if err := ctx.Err(); err != nil {
				return err
			}
			if a.Fingerprint == "" {
				continue
			}

			key := []byte(a.Fingerprint)
			if bucket.Get(key) != nil {
				continue
			}

			raw, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("marshal article %s: %w", a.Fingerprint, err)
			}
			if err := bucket.Put(key, raw); err != nil {
				return fmt.Errorf("store article %s: %w", a.Fingerprint, err)
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// Get looks up one article by fingerprint.
func (s *BoltStore) Get(fingerprint string) (domain.Article, bool, error) {
	var a domain.Article
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(articlesBucket).Get([]byte(fingerprint))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &a)
	})
	if err != nil {
		return domain.Article{}, false, err
	}
	return a, found, nil
}

// Count returns the number of stored articles.
func (s *BoltStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(articlesBucket).Stats().KeyN
		return nil
	})
	return count, err
}
