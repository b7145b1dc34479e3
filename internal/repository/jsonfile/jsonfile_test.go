package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "items.json")
	s, err := New(path)
	require.NoError(t, err)
	return s, path
}

func item(id, owner, title string) *model.Item {
	return &model.Item{ID: id, OwnerID: owner, Title: title, Status: model.StatusReading, Genres: []string{"Action"}}
}

func TestNew_MissingFileIsEmpty(t *testing.T) {
	s, path := newTestStore(t)

	items, err := s.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written until the first save")
}

func TestSave_PersistsAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	rating := 5
	first := item("a", "alice", "Tower of God")
	first.Rating = &rating
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, item("b", "alice", "Omniscient Reader")))
	require.NoError(t, s.Save(ctx, item("c", "bob", "Lookism")))

	reopened, err := New(path)
	require.NoError(t, err)

	items, err := reopened.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Tower of God", items[0].Title)
	assert.Equal(t, 5, *items[0].Rating)
	assert.Equal(t, "Omniscient Reader", items[1].Title)
	assert.False(t, items[0].CreatedAt.IsZero())
}

func TestSave_ReplacesInPlace(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, item("a", "alice", "One")))
	require.NoError(t, s.Save(ctx, item("b", "alice", "Two")))
	require.NoError(t, s.Save(ctx, item("a", "alice", "One, edited")))

	items, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "One, edited", items[0].Title)
	assert.Equal(t, "Two", items[1].Title)
}

func TestSave_ForeignOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, item("a", "alice", "Mine")))

	err := s.Save(ctx, item("a", "mallory", "Stolen"))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	items, _ := s.Load(ctx, "alice")
	assert.Equal(t, "Mine", items[0].Title)
}

func TestRemove(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, item("a", "alice", "Gone soon")))
	require.NoError(t, s.Remove(ctx, "alice", "a"))

	assert.True(t, errors.Is(s.Remove(ctx, "alice", "a"), apperror.ErrNotFound))

	reopened, err := New(path)
	require.NoError(t, err)
	items, _ := reopened.Load(ctx, "alice")
	assert.Empty(t, items)
}

func TestLoad_ReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, item("a", "alice", "Original")))

	items, _ := s.Load(ctx, "alice")
	items[0].Title = "mutated"
	items[0].Genres[0] = "mutated"

	again, _ := s.Load(ctx, "alice")
	assert.Equal(t, "Original", again[0].Title)
	assert.Equal(t, []string{"Action"}, again[0].Genres)
}

func TestFailedWriteKeepsState(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, item("a", "alice", "Kept")))

	// Point the store at a directory that does not exist so the temp file
	// cannot be created.
	s.path = filepath.Join(t.TempDir(), "missing", "items.json")

	err := s.Save(ctx, item("b", "alice", "Lost"))
	require.Error(t, err)

	items, _ := s.Load(ctx, "alice")
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
}

func TestNew_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path)
	assert.Error(t, err)
}
