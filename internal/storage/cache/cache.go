// Package cache stores JSON payloads in files, one file per ID.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotcommander/deepresearch/internal/proto"
)

// Type is the kind of payload stored, and also the cache sub-directory.
type Type string

// Cache types.
const (
	ConversationCache Type = "conversations"
	ReportCache       Type = "reports"
)

const (
	fileExt  = ".json"
	shardLen = 2
)

var errInvalidID = errors.New("invalid id")

// JSON keeps one JSON file per ID under <baseDir>/<type>/<id[:2]>/.
type JSON[T any] struct {
	dir  string
	kind Type
}

// Conversations stores chat transcripts.
type Conversations = JSON[[]proto.Message]

// NewConversations opens the conversation cache under baseDir.
func NewConversations(baseDir string) (*Conversations, error) {
	return NewJSON[[]proto.Message](baseDir, ConversationCache)
}

// NewJSON creates the cache directory for kind under baseDir.
func NewJSON[T any](baseDir string, kind Type) (*JSON[T], error) {
	dir := filepath.Join(baseDir, string(kind))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &JSON[T]{dir: dir, kind: kind}, nil
}

func (j *JSON[T]) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", errInvalidID
	}
	if len(id) < shardLen {
		return filepath.Join(j.dir, id+fileExt), nil
	}
	return filepath.Join(j.dir, id[:shardLen], id+fileExt), nil
}

// Read decodes the payload for id into v.
func (j *JSON[T]) Read(id string, v *T) error {
	path, err := j.path(id)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("read: decode %s: %w", j.kind, err)
	}
	return nil
}

// Write replaces the payload for id. Readers see the old or the new file,
// never a partial one.
func (j *JSON[T]) Write(id string, v *T) error {
	path, err := j.path(id)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("write: encode %s: %w", j.kind, err)
	}
	if err := replaceFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the payload for id.
func (j *JSON[T]) Delete(id string) error {
	path, err := j.path(id)
	if err == nil {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// replaceFile writes data next to path and renames it over path.
func replaceFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err //nolint:wrapcheck
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err //nolint:wrapcheck
	}
	if err = tmp.Sync(); err != nil {
		return err //nolint:wrapcheck
	}
	if err = tmp.Close(); err != nil {
		return err //nolint:wrapcheck
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err //nolint:wrapcheck
	}
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
