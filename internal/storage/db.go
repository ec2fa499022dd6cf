// Package storage keeps the metadata index for saved conversations and
// research reports. Payloads live in the cache package; this index only
// tracks ID, title, provider and update time.
package storage

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNoMatches is returned when no entry matches the query.
	ErrNoMatches = errors.New("no entries found")
	// ErrManyMatches is returned when multiple entries match the query.
	ErrManyMatches = errors.New("multiple entries matched the input")
)

const (
	indexFileName      = "index.jsonl"
	lockFileName       = "index.lock"
	compactMinOps      = 256
	compactScaleFactor = 4
	memoryDS           = ":memory:"
)

const (
	opUpsert = "upsert"
	opDelete = "delete"
)

type indexEvent struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Entry *Entry `json:"entry,omitempty"`
}

// Entry is one saved conversation or report.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	API       *string   `json:"api,omitempty"`
	Model     *string   `json:"model,omitempty"`
}

// DB is an append-only JSONL index. Every mutation appends one event under a
// file lock so that concurrent processes never interleave partial lines; the
// log is compacted once dead events outnumber live entries.
type DB struct {
	mu             sync.RWMutex
	indexPath      string
	lock           *flock.Flock
	entries        map[string]Entry
	ops            int
	cleanupTempDir string
}

// Open loads the index stored in the directory ds. The special value
// ":memory:" uses a throwaway directory removed on Close.
func Open(ds string) (*DB, error) {
	dir, cleanupDir, err := resolveStoreDir(ds)
	if err != nil {
		return nil, fmt.Errorf("could not resolve store path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}

	db := &DB{
		indexPath:      filepath.Join(dir, indexFileName),
		lock:           flock.New(filepath.Join(dir, lockFileName)),
		entries:        make(map[string]Entry),
		cleanupTempDir: cleanupDir,
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases temporary resources.
func (db *DB) Close() error {
	if db.cleanupTempDir == "" {
		return nil
	}
	if err := os.RemoveAll(db.cleanupTempDir); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Save upserts an entry.
func (db *DB) Save(id, title, api, model string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("save: %w", errors.New("empty id"))
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("save: %w", errors.New("empty title"))
	}

	entry := Entry{
		ID:        id,
		Title:     title,
		UpdatedAt: time.Now().UTC(),
		API:       &api,
		Model:     &model,
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.entries[id] = entry
	if err := db.appendEventLocked(indexEvent{Op: opUpsert, Entry: &entry}); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := db.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Delete removes an entry by ID. Unknown IDs are ignored.
func (db *DB) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete: %w", errors.New("empty id"))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.entries[id]; !ok {
		return nil
	}
	delete(db.entries, id)

	if err := db.appendEventLocked(indexEvent{Op: opDelete, ID: id}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := db.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns all entries, most recently updated first.
func (db *DB) List() []Entry {
	return db.filter(func(Entry) bool { return true })
}

// ListOlderThan returns entries not updated within d.
func (db *DB) ListOlderThan(d time.Duration) []Entry {
	cutoff := time.Now().Add(-d)
	return db.filter(func(e Entry) bool { return e.UpdatedAt.Before(cutoff) })
}

// FindHEAD returns the most recently updated entry.
func (db *DB) FindHEAD() (*Entry, error) {
	list := db.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("find head: %w", ErrNoMatches)
	}
	return &list[0], nil
}

// Find resolves an entry by ID prefix (at least SHA1MinLen characters) or by
// exact title.
func (db *DB) Find(in string) (*Entry, error) {
	matches := db.filter(func(e Entry) bool {
		if e.Title == in {
			return true
		}
		return len(in) >= SHA1MinLen && strings.HasPrefix(e.ID, in)
	})

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, in)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrManyMatches, in)
	}
}

// Completions returns shell completion candidates for IDs and titles, in
// the "value\tdescription" form cobra expects.
func (db *DB) Completions(in string) []string {
	seen := map[string]struct{}{}

	db.mu.RLock()
	for _, e := range db.entries {
		short := Short(e.ID)
		if strings.HasPrefix(e.ID, in) {
			id := e.ID
			if len(in) < SHA1Short {
				id = short
			}
			seen[id+"\t"+e.Title] = struct{}{}
		}
		if strings.HasPrefix(e.Title, in) {
			seen[e.Title+"\t"+short] = struct{}{}
		}
	}
	db.mu.RUnlock()

	result := make([]string, 0, len(seen))
	for value := range seen {
		result = append(result, value)
	}
	slices.Sort(result)
	return result
}

func (db *DB) filter(keep func(Entry) bool) []Entry {
	db.mu.RLock()
	out := make([]Entry, 0, len(db.entries))
	for _, e := range db.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	db.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func resolveStoreDir(ds string) (dir string, cleanupDir string, err error) {
	if ds == memoryDS {
		tempDir, err := os.MkdirTemp("", "deepresearch-index-*")
		if err != nil {
			return "", "", fmt.Errorf("could not create temp index directory: %w", err)
		}
		return tempDir, tempDir, nil
	}
	return ds, "", nil
}

func (db *DB) load() error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	file, err := os.Open(db.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt indexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("could not parse index event: %w", err)
		}
		if err := db.applyEvent(evt); err != nil {
			return err
		}
		db.ops++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}
	return nil
}

func (db *DB) applyEvent(evt indexEvent) error {
	switch evt.Op {
	case opUpsert:
		if evt.Entry == nil || strings.TrimSpace(evt.Entry.ID) == "" {
			return fmt.Errorf("invalid upsert event: missing entry id")
		}
		db.entries[evt.Entry.ID] = *evt.Entry
	case opDelete:
		if strings.TrimSpace(evt.ID) == "" {
			return fmt.Errorf("invalid delete event: empty id")
		}
		delete(db.entries, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (db *DB) appendEventLocked(evt indexEvent) error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}

	file, err := os.OpenFile(db.indexPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(bts, '\n')); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	db.ops++
	return nil
}

func (db *DB) compactIfNeededLocked() error {
	if db.ops < compactMinOps {
		return nil
	}
	if len(db.entries) > 0 && db.ops < len(db.entries)*compactScaleFactor {
		return nil
	}
	return db.compactLocked()
}

func (db *DB) compactLocked() error {
	if err := db.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = db.lock.Unlock() }()

	items := make([]Entry, 0, len(db.entries))
	for _, e := range db.entries {
		items = append(items, e)
	}
	// oldest first so a replay yields the same state
	slices.SortFunc(items, func(a, b Entry) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	tmpPath := db.indexPath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}

	enc := json.NewEncoder(file)
	for i := range items {
		if err := enc.Encode(indexEvent{Op: opUpsert, Entry: &items[i]}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}
	if err := os.Rename(tmpPath, db.indexPath); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	if d, err := os.Open(filepath.Dir(db.indexPath)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	db.ops = len(db.entries)
	return nil
}
