// Package memory is an in-process item backend that behaves like a realtime
// document store: every change to an owner's collection is pushed to that
// owner's subscribers as a complete snapshot.
//
// Nothing survives a restart. It is used for demos and as the push-capable
// backend in tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/repository"
)

var (
	_ repository.ItemRepository    = (*Store)(nil)
	_ repository.SnapshotPublisher = (*Store)(nil)
)

type subscriber struct {
	id int
	fn func([]model.Item)
}

// Store holds every owner's items in process memory. The zero value is not
// usable; call New.
//
// CONCURRENCY:
// mu guards owners and subs. Subscribers are called after mu is released,
// in the goroutine that made the change, so a subscriber may read from or
// write to the store without deadlocking.
type Store struct {
	mu     sync.Mutex
	owners map[string][]model.Item
	subs   map[string][]subscriber
	nextID int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		owners: make(map[string][]model.Item),
		subs:   make(map[string][]subscriber),
	}
}

// Load returns a copy of the owner's items in insertion order.
func (s *Store) Load(_ context.Context, ownerID string) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneItems(s.owners[ownerID]), nil
}

// Save upserts the item and pushes the owner's new snapshot. Ids are unique
// across owners: saving an id that another owner holds is not found.
func (s *Store) Save(_ context.Context, item *model.Item) error {
	s.mu.Lock()

	for owner, items := range s.owners {
		if owner != item.OwnerID && slices.ContainsFunc(items, func(it model.Item) bool { return it.ID == item.ID }) {
			s.mu.Unlock()
			return apperror.NotFound("item", item.ID)
		}
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	items := s.owners[item.OwnerID]
	if idx := slices.IndexFunc(items, func(it model.Item) bool { return it.ID == item.ID }); idx >= 0 {
		items[idx] = item.Clone()
	} else {
		items = append(items, item.Clone())
	}
	s.owners[item.OwnerID] = items

	s.publishLocked(item.OwnerID)
	return nil
}

// Remove deletes the owner's item with id and pushes the new snapshot.
// An id the owner does not hold is not found.
func (s *Store) Remove(_ context.Context, ownerID, id string) error {
	s.mu.Lock()

	items := s.owners[ownerID]
	idx := slices.IndexFunc(items, func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return apperror.NotFound("item", id)
	}
	s.owners[ownerID] = slices.Delete(items, idx, idx+1)

	s.publishLocked(ownerID)
	return nil
}

// Replace overwrites the owner's whole collection, the way a write from
// another device would, and pushes the new snapshot.
func (s *Store) Replace(ownerID string, items []model.Item) {
	s.mu.Lock()
	next := model.CloneItems(items)
	for i := range next {
		next[i].OwnerID = ownerID
	}
	s.owners[ownerID] = next
	s.publishLocked(ownerID)
}

// SubscribeSnapshots registers fn for ownerID. fn is called synchronously
// after each change, outside the store's lock, with a private copy.
func (s *Store) SubscribeSnapshots(ownerID string, fn func([]model.Item)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[ownerID] = append(s.subs[ownerID], subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs[ownerID] = slices.DeleteFunc(s.subs[ownerID], func(sub subscriber) bool { return sub.id == id })
	}
}

// publishLocked releases s.mu before calling subscribers so they may call
// back into the store.
func (s *Store) publishLocked(ownerID string) {
	snapshot := s.owners[ownerID]
	subs := slices.Clone(s.subs[ownerID])
	copies := make([][]model.Item, len(subs))
	for i := range subs {
		copies[i] = model.CloneItems(snapshot)
	}
	s.mu.Unlock()

	for i, sub := range subs {
		sub.fn(copies[i])
	}
}
