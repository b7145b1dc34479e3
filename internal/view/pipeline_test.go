package view

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
)

func session(owner string) *model.Session {
	return &model.Session{ID: "s", UserID: owner, ExpiresAt: time.Now().Add(time.Hour)}
}

func rated(n int) *int { return &n }

func titles(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func fixture() []model.Item {
	return []model.Item{
		{ID: "01", OwnerID: "alice", Title: "Solo Leveling", Author: "Chugong", Type: model.TypeShounen, Status: model.StatusCompleted, Rating: rated(5), Genres: []string{"Action", "Fantasy"}},
		{ID: "02", OwnerID: "alice", Title: "Romance Dawn", Author: "", Type: model.TypeShoujo, Status: model.StatusReading, Rating: rated(3), Genres: []string{"Romance"}},
		{ID: "03", OwnerID: "alice", Title: "Lookism", Author: "Park Tae-jun", Type: model.TypeShounen, Status: model.StatusReading, Rating: rated(4), Genres: []string{"Drama"}},
		{ID: "04", OwnerID: "alice", Title: "Bastard", Author: "Carnby Kim", Type: model.TypeSeinen, Status: model.StatusDropped, Rating: rated(3), Genres: []string{"Thriller"}},
		{ID: "05", OwnerID: "alice", Title: "Unrated", Author: "Someone", Type: model.TypeSeinen, Status: model.StatusNotStarted, Genres: []string{}},
		{ID: "06", OwnerID: "bob", Title: "Bob's Secret", Status: model.StatusReading, Rating: rated(3), Genres: []string{"Action"}},
	}
}

// =========================================================================
// OWNER SCOPE AND SESSION
// =========================================================================

func TestApply_OnlyOwnersItems(t *testing.T) {
	out := New(session("alice"), ViewState{}).Apply(fixture())

	assert.Len(t, out, 5)
	for _, it := range out {
		assert.Equal(t, "alice", it.OwnerID)
	}
}

func TestApply_InactiveSessionSeesNothing(t *testing.T) {
	s := session("alice")
	s.Invalidate(time.Now())

	assert.Empty(t, New(s, ViewState{}).Apply(fixture()))
	assert.Empty(t, New(nil, ViewState{}).Apply(fixture()))
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	in := fixture()
	New(session("alice"), ViewState{Sort: SortTitleAsc, Search: "o"}).Apply(in)
	assert.Equal(t, fixture(), in)
}

// =========================================================================
// SORT
// =========================================================================

func TestSort_RecentFirst(t *testing.T) {
	out := New(session("alice"), ViewState{Sort: SortRecent}).Apply(fixture())
	assert.Equal(t, []string{"05", "04", "03", "02", "01"}, ids(out))
}

func TestSort_Titles(t *testing.T) {
	items := []model.Item{
		{ID: "1", OwnerID: "a", Title: "banana"},
		{ID: "2", OwnerID: "a", Title: "Apple"},
		{ID: "3", OwnerID: "a", Title: "cherry"},
		{ID: "4", OwnerID: "a", Title: "Banana"},
	}

	asc := New(session("a"), ViewState{Sort: SortTitleAsc}).Apply(items)
	assert.Equal(t, []string{"Apple", "banana", "Banana", "cherry"}, titles(asc),
		"locale order groups case variants; lowercase first at the tertiary level")

	desc := New(session("a"), ViewState{Sort: SortTitleDesc}).Apply(items)
	assert.Equal(t, []string{"cherry", "Banana", "banana", "Apple"}, titles(desc))
}

func TestSort_StableForEqualTitles(t *testing.T) {
	items := []model.Item{
		{ID: "a", OwnerID: "o", Title: "Same"},
		{ID: "b", OwnerID: "o", Title: "Other"},
		{ID: "c", OwnerID: "o", Title: "Same"},
		{ID: "d", OwnerID: "o", Title: "Same"},
	}

	out := New(session("o"), ViewState{Sort: SortTitleAsc}).Apply(items)
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(out))

	out = New(session("o"), ViewState{Sort: SortTitleDesc}).Apply(items)
	assert.Equal(t, []string{"a", "c", "d", "b"}, ids(out))
}

// =========================================================================
// FILTER
// =========================================================================

func TestFilter_Rating(t *testing.T) {
	items := []model.Item{
		{ID: "1", OwnerID: "o", Rating: rated(3)},
		{ID: "2", OwnerID: "o", Rating: rated(4)},
		{ID: "3", OwnerID: "o", Rating: rated(3)},
		{ID: "4", OwnerID: "o"},
	}

	out := New(session("o"), ViewState{Rating: "3"}).Apply(items)
	assert.ElementsMatch(t, []string{"1", "3"}, ids(out))
}

func TestFilter_Commute(t *testing.T) {
	all := fixture()
	s := session("alice")

	typeThenStatus := New(s, ViewState{Status: model.StatusReading}).Apply(
		New(s, ViewState{Type: model.TypeShounen}).Apply(all))
	statusThenType := New(s, ViewState{Type: model.TypeShounen}).Apply(
		New(s, ViewState{Status: model.StatusReading}).Apply(all))
	both := New(s, ViewState{Type: model.TypeShounen, Status: model.StatusReading}).Apply(all)

	assert.Equal(t, []string{"03"}, ids(both))
	assert.ElementsMatch(t, ids(both), ids(typeThenStatus))
	assert.ElementsMatch(t, ids(both), ids(statusThenType))
}

func TestFilter_NoMatchIsEmptyNotError(t *testing.T) {
	out := New(session("alice"), ViewState{Type: model.TypeYaoi}).Apply(fixture())
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

// =========================================================================
// SEARCH
// =========================================================================

func TestSearch(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{"case-insensitive title", "Rom", []string{"Romance Dawn"}},
		{"lowercase query", "solo", []string{"Solo Leveling"}},
		{"author", "carnby", []string{"Bastard"}},
		{"genre", "thrill", []string{"Bastard"}},
		{"genre shared by title", "romance", []string{"Romance Dawn"}},
		{"empty keeps all", "", []string{"Unrated", "Bastard", "Lookism", "Romance Dawn", "Solo Leveling"}},
		{"whitespace keeps all", "   ", []string{"Unrated", "Bastard", "Lookism", "Romance Dawn", "Solo Leveling"}},
		{"surrounding spaces are part of the query", " dawn ", []string{}},
		{"no match", "one piece", []string{}},
		{"other owner's genre is invisible", "secret", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New(session("alice"), ViewState{Search: tt.search}).Apply(fixture())
			assert.Equal(t, tt.want, titles(out))
		})
	}
}

func TestPipeline_SortThenFilterThenSearch(t *testing.T) {
	vs := ViewState{Sort: SortTitleAsc, Rating: "3", Search: "a"}
	out := New(session("alice"), vs).Apply(fixture())
	assert.Equal(t, []string{"Bastard", "Romance Dawn"}, titles(out))
}

// =========================================================================
// QUERY PARSING
// =========================================================================

func TestParseViewState(t *testing.T) {
	q := url.Values{
		"sort":   {"title-desc"},
		"type":   {"Seinen (M)"},
		"status": {"Reading"},
		"rating": {" 03 "},
		"q":      {"Solo "},
	}

	vs, err := ParseViewState(q)
	require.NoError(t, err)
	assert.Equal(t, ViewState{
		Sort:   SortTitleDesc,
		Type:   model.TypeSeinen,
		Status: model.StatusReading,
		Rating: "3",
		Search: "Solo ",
	}, vs)

	empty, err := ParseViewState(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, ViewState{Sort: SortRecent}, empty)
}

func TestParseViewState_Rejects(t *testing.T) {
	for _, q := range []url.Values{
		{"sort": {"oldest"}},
		{"type": {"Manga"}},
		{"status": {"Paused"}},
		{"rating": {"6"}},
		{"rating": {"zero"}},
	} {
		_, err := ParseViewState(q)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "query %v: got %v", q, err)
	}
}
