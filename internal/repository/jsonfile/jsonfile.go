// Package jsonfile implements repository.ItemRepository on top of a single
// JSON document on disk, one array of items for every owner.
//
// It is the "local storage" backend: no database, the whole collection is
// rewritten on every change. Writes go to a temp file first and are renamed
// into place, so a crash mid-write leaves the previous document intact.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/repository"
)

var _ repository.ItemRepository = (*Store)(nil)

// document is the on-disk shape.
type document struct {
	Items []model.Item `json:"items"`
}

// Store keeps the decoded document in memory and rewrites the file on
// every mutation.
type Store struct {
	path string

	mu    sync.Mutex
	items []model.Item
}

// New opens the document at path, creating the parent directory. A missing
// file is an empty collection.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jsonfile: creating %s: %w", dir, err)
		}
	}

	s := &Store{path: path, items: []model.Item{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jsonfile: decoding %s: %w", path, err)
	}
	if doc.Items != nil {
		s.items = doc.Items
	}
	return s, nil
}

// Load returns the owner's items in insertion order.
func (s *Store) Load(_ context.Context, ownerID string) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Item{}
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

// Save replaces the item with the same id in place or appends a new one.
// An id that belongs to another owner is reported as not found.
func (s *Store) Save(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	next := slices.Clone(s.items)
	idx := slices.IndexFunc(next, func(it model.Item) bool { return it.ID == item.ID })
	switch {
	case idx < 0:
		next = append(next, item.Clone())
	case next[idx].OwnerID != item.OwnerID:
		return apperror.NotFound("item", item.ID)
	default:
		next[idx] = item.Clone()
	}

	return s.commit(next)
}

// Remove deletes the owner's item with id.
func (s *Store) Remove(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.items, func(it model.Item) bool {
		return it.ID == id && it.OwnerID == ownerID
	})
	if idx < 0 {
		return apperror.NotFound("item", id)
	}

	next := slices.Delete(slices.Clone(s.items), idx, idx+1)
	return s.commit(next)
}

// commit writes next to disk and only then makes it the in-memory state.
// Callers hold s.mu.
func (s *Store) commit(next []model.Item) error {
	data, err := json.MarshalIndent(document{Items: next}, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".manhwee-*.json")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: replacing %s: %w", s.path, err)
	}

	s.items = next
	return nil
}
