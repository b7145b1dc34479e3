// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes a storage backend
//
// Services depend on the repository interfaces only. Which backend sits
// behind them (sqlite, a JSON file, the in-memory realtime store) is decided
// by configuration in server.go.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/repository"
)

// Observer receives an owner's complete collection after every change.
// Observers re-render from the list; they never get a diff.
type Observer func(ownerID string, items []model.Item)

// Collections owns the in-memory snapshot of every owner's collection that
// has been opened, backed by an ItemRepository.
//
// The snapshot only ever reflects what the backend has confirmed: a
// mutation is persisted first and applied to the snapshot afterwards, so a
// failed write leaves the snapshot untouched.
type Collections struct {
	repo   repository.ItemRepository
	logger *slog.Logger
	now    func() time.Time

	// pushes is set when the backend publishes snapshots itself; subscribed
	// owners then rely on those pushes alone to update and notify.
	pushes repository.SnapshotPublisher

	mu        sync.Mutex
	owners    map[string]*ownerState
	observers map[int]Observer
	nextObs   int
}

// ownerState is one owner's snapshot.
//
// write serializes mutations for the owner so that "persist, then apply"
// happens as one step; mu guards items and is never held across a backend
// call. unsubscribe belongs to Collections.mu.
type ownerState struct {
	write sync.Mutex

	mu     sync.RWMutex
	loaded bool
	items  []model.Item

	unsubscribe func()
}

// NewCollections creates the store. If repo also implements
// repository.SnapshotPublisher, pushed snapshots replace the owner's list.
func NewCollections(repo repository.ItemRepository, logger *slog.Logger) *Collections {
	c := &Collections{
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		owners:    make(map[string]*ownerState),
		observers: make(map[int]Observer),
	}
	if p, ok := repo.(repository.SnapshotPublisher); ok {
		c.pushes = p
	}
	return c
}

// Subscribe registers fn for changes to any owner's collection.
func (c *Collections) Subscribe(fn Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextObs++
	id := c.nextObs
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Close drops every backend subscription. Stores opened afterwards load
// again and subscribe again.
func (c *Collections) Close() {
	c.mu.Lock()
	var unsubscribes []func()
	for _, st := range c.owners {
		if st.unsubscribe != nil {
			unsubscribes = append(unsubscribes, st.unsubscribe)
			st.unsubscribe = nil
		}
	}
	c.owners = make(map[string]*ownerState)
	c.mu.Unlock()

	for _, fn := range unsubscribes {
		fn()
	}
}

// Open binds the store to a session. The session is checked on every call,
// so a store opened before logout stops working after it.
func (c *Collections) Open(session *model.Session) *CollectionStore {
	return &CollectionStore{c: c, session: session}
}

// CollectionStore is one owner's view of Collections.
type CollectionStore struct {
	c       *Collections
	session *model.Session
}

// List returns every item the owner has, in backend order. Without an
// active session the collection is empty.
func (s *CollectionStore) List(ctx context.Context) ([]model.Item, error) {
	if !s.active() {
		return []model.Item{}, nil
	}

	st, err := s.c.state(ctx, s.session.UserID)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	return model.CloneItems(st.items), nil
}

// Get returns one of the owner's items.
func (s *CollectionStore) Get(ctx context.Context, id string) (*model.Item, error) {
	if !s.active() {
		return nil, apperror.AuthRequired()
	}

	st, err := s.c.state(ctx, s.session.UserID)
	if err != nil {
		return nil, err
	}

	it, ok := st.find(id)
	if !ok {
		return nil, apperror.NotFound("item", id)
	}
	return &it, nil
}

// Create materializes the draft, assigns a fresh id and the session's
// owner, and persists it.
func (s *CollectionStore) Create(ctx context.Context, d model.Draft) (*model.Item, error) {
	if !s.active() {
		return nil, apperror.AuthRequired()
	}
	if err := ValidateDraft(d); err != nil {
		return nil, err
	}

	owner := s.session.UserID
	st, err := s.c.state(ctx, owner)
	if err != nil {
		return nil, err
	}

	st.write.Lock()
	defer st.write.Unlock()

	item := d.Materialize()
	item.ID = xid.New().String()
	item.OwnerID = owner

	if err := s.c.repo.Save(ctx, &item); err != nil {
		return nil, s.c.persistenceError("save item", owner, item.ID, err)
	}

	s.c.apply(owner, st, func(items []model.Item) []model.Item {
		return upsert(items, item)
	})

	s.c.logger.Info("item created",
		slog.String("owner", owner),
		slog.String("id", item.ID),
		slog.String("title", item.Title),
	)

	out := item.Clone()
	return &out, nil
}

// Update replaces every mutable field of the item with the draft's values.
// id, ownerId, coverOffset and createdAt are kept.
func (s *CollectionStore) Update(ctx context.Context, id string, d model.Draft) (*model.Item, error) {
	if !s.active() {
		return nil, apperror.AuthRequired()
	}
	if err := ValidateDraft(d); err != nil {
		return nil, err
	}

	owner := s.session.UserID
	st, err := s.c.state(ctx, owner)
	if err != nil {
		return nil, err
	}

	st.write.Lock()
	defer st.write.Unlock()

	existing, ok := st.find(id)
	if !ok {
		return nil, apperror.NotFound("item", id)
	}

	item := d.Materialize()
	item.ID = existing.ID
	item.OwnerID = existing.OwnerID
	item.CoverOffset = existing.CoverOffset
	item.CreatedAt = existing.CreatedAt

	if err := s.c.repo.Save(ctx, &item); err != nil {
		return nil, s.c.persistenceError("save item", owner, id, err)
	}

	s.c.apply(owner, st, func(items []model.Item) []model.Item {
		return upsert(items, item)
	})

	s.c.logger.Info("item updated", slog.String("owner", owner), slog.String("id", id))

	out := item.Clone()
	return &out, nil
}

// SetCoverOffset stores the cover crop offset, clamped to the allowed
// range, and returns the updated item.
func (s *CollectionStore) SetCoverOffset(ctx context.Context, id string, offset int) (*model.Item, error) {
	if !s.active() {
		return nil, apperror.AuthRequired()
	}

	owner := s.session.UserID
	st, err := s.c.state(ctx, owner)
	if err != nil {
		return nil, err
	}

	st.write.Lock()
	defer st.write.Unlock()

	item, ok := st.find(id)
	if !ok {
		return nil, apperror.NotFound("item", id)
	}
	item.CoverOffset = model.ClampCoverOffset(offset)

	if err := s.c.repo.Save(ctx, &item); err != nil {
		return nil, s.c.persistenceError("save item", owner, id, err)
	}

	s.c.apply(owner, st, func(items []model.Item) []model.Item {
		return upsert(items, item)
	})

	out := item.Clone()
	return &out, nil
}

// Delete removes the item. Deleting an id that is already gone is
// NotFound, not a no-op.
func (s *CollectionStore) Delete(ctx context.Context, id string) error {
	if !s.active() {
		return apperror.AuthRequired()
	}

	owner := s.session.UserID
	st, err := s.c.state(ctx, owner)
	if err != nil {
		return err
	}

	st.write.Lock()
	defer st.write.Unlock()

	if _, ok := st.find(id); !ok {
		return apperror.NotFound("item", id)
	}

	if err := s.c.repo.Remove(ctx, owner, id); err != nil {
		return s.c.persistenceError("remove item", owner, id, err)
	}

	s.c.apply(owner, st, func(items []model.Item) []model.Item {
		return slices.DeleteFunc(items, func(it model.Item) bool { return it.ID == id })
	})

	s.c.logger.Info("item deleted", slog.String("owner", owner), slog.String("id", id))
	return nil
}

func (s *CollectionStore) active() bool {
	return s.session.Active(s.c.now())
}

// state returns the owner's snapshot, loading it from the backend on first
// use. A failed load is not cached.
func (c *Collections) state(ctx context.Context, owner string) (*ownerState, error) {
	c.mu.Lock()
	st, ok := c.owners[owner]
	if !ok {
		st = &ownerState{}
		c.owners[owner] = st
	}
	c.mu.Unlock()

	st.mu.RLock()
	loaded := st.loaded
	st.mu.RUnlock()
	if loaded {
		return st, nil
	}

	// Serialize the first load with mutations for the same owner.
	st.write.Lock()
	defer st.write.Unlock()

	st.mu.RLock()
	loaded = st.loaded
	st.mu.RUnlock()
	if loaded {
		return st, nil
	}

	if c.pushes != nil {
		c.mu.Lock()
		// A state dropped by Close stays unsubscribed.
		if c.owners[owner] == st && st.unsubscribe == nil {
			st.unsubscribe = c.pushes.SubscribeSnapshots(owner, func(items []model.Item) {
				c.replace(owner, st, items)
			})
		}
		c.mu.Unlock()
	}

	items, err := c.repo.Load(ctx, owner)
	if err != nil {
		return nil, c.persistenceError("load collection", owner, "", err)
	}

	st.mu.Lock()
	if !st.loaded {
		st.items = model.CloneItems(items)
		st.loaded = true
	}
	st.mu.Unlock()

	return st, nil
}

// replace handles a pushed snapshot: the backend is authoritative and its
// list replaces ours wholesale.
func (c *Collections) replace(owner string, st *ownerState, items []model.Item) {
	fresh := model.CloneItems(items)

	st.mu.Lock()
	st.items = fresh
	st.loaded = true
	st.mu.Unlock()

	c.logger.Debug("collection snapshot replaced",
		slog.String("owner", owner),
		slog.Int("items", len(fresh)),
	)
	c.notify(owner, fresh)
}

// apply updates the snapshot after a confirmed write and notifies
// observers. When the owner is subscribed to a pushing backend it does
// nothing: the push already replaced the list with the backend's own, and
// the write may not be in it.
func (c *Collections) apply(owner string, st *ownerState, fn func([]model.Item) []model.Item) {
	if c.subscribed(st) {
		return
	}

	st.mu.Lock()
	st.items = fn(st.items)
	snapshot := model.CloneItems(st.items)
	st.mu.Unlock()

	c.notify(owner, snapshot)
}

func (c *Collections) subscribed(st *ownerState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return st.unsubscribe != nil
}

func (c *Collections) notify(owner string, items []model.Item) {
	c.mu.Lock()
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(owner, model.CloneItems(items))
	}
}

// persistenceError keeps NotFound from the backend as is and reports any
// other failure as a Persistence error.
func (c *Collections) persistenceError(op, owner, id string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	c.logger.Error("backend "+op+" failed",
		slog.String("owner", owner),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return apperror.Persistence(op, err)
}

func (st *ownerState) find(id string) (model.Item, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	idx := slices.IndexFunc(st.items, func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		return model.Item{}, false
	}
	return st.items[idx].Clone(), true
}

func upsert(items []model.Item, item model.Item) []model.Item {
	if idx := slices.IndexFunc(items, func(it model.Item) bool { return it.ID == item.ID }); idx >= 0 {
		items[idx] = item.Clone()
		return items
	}
	return append(items, item.Clone())
}
