package research

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dotcommander/deepresearch/internal/storage"
	"github.com/dotcommander/deepresearch/internal/storage/cache"
)

// Store persists reports: payloads in the report cache, metadata in the
// storage index.
type Store struct {
	db    *storage.DB
	cache *cache.JSON[Report]
}

// OpenStore opens the report store under cachePath.
func OpenStore(cachePath string) (*Store, error) {
	c, err := cache.NewJSON[Report](cachePath, cache.ReportCache)
	if err != nil {
		return nil, fmt.Errorf("open report cache: %w", err)
	}
	db, err := storage.Open(filepath.Join(cachePath, string(cache.ReportCache)))
	if err != nil {
		return nil, fmt.Errorf("open report index: %w", err)
	}
	return &Store{db: db, cache: c}, nil
}

// Close releases the index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes r and indexes it by query.
func (s *Store) Save(r *Report) error {
	if err := s.cache.Write(r.ID, r); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if err := s.db.Save(r.ID, r.Title(), r.API, r.Model); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Find resolves a report by ID prefix or exact query. An empty input
// returns the latest report.
func (s *Store) Find(in string) (*Report, error) {
	var (
		entry *storage.Entry
		err   error
	)
	if in == "" {
		entry, err = s.db.FindHEAD()
	} else {
		entry, err = s.db.Find(in)
	}
	if err != nil {
		return nil, err
	}
	var r Report
	if err := s.cache.Read(entry.ID, &r); err != nil {
		return nil, fmt.Errorf("load report %s: %w", storage.Short(entry.ID), err)
	}
	return &r, nil
}

// List returns report metadata, newest first.
func (s *Store) List() []storage.Entry {
	return s.db.List()
}

// Completions returns shell completion candidates.
func (s *Store) Completions(in string) []string {
	return s.db.Completions(in)
}

// Delete removes a report by ID prefix or query.
func (s *Store) Delete(in string) (*storage.Entry, error) {
	entry, err := s.db.Find(in)
	if err != nil {
		return nil, err
	}
	if err := s.remove(entry.ID); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListOlderThan returns reports last updated more than d ago.
func (s *Store) ListOlderThan(d time.Duration) []storage.Entry {
	return s.db.ListOlderThan(d)
}

// Prune deletes reports older than d and returns them.
func (s *Store) Prune(d time.Duration) ([]storage.Entry, error) {
	old := s.db.ListOlderThan(d)
	for _, e := range old {
		if err := s.remove(e.ID); err != nil {
			return nil, err
		}
	}
	return old, nil
}

func (s *Store) remove(id string) error {
	if err := s.cache.Delete(id); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete report: %w", err)
	}
	if err := s.db.Delete(id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}
