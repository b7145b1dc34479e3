// Package view derives what the dashboard and the statistics page show from
// an owner's collection. Nothing here mutates or persists items.
//
// The dashboard list is built in a fixed order:
//
//	owner scope → sort → filter → search
//
// Statistics (stats.go) are always computed over the whole collection, never
// over a filtered list.
//
// VIEW STATE:
// ViewState comes from the dashboard's query string (ParseViewState). Unknown
// sort keys and filter values are validation errors; blank ones mean "no
// preference". A ViewState is never stored: every request carries its own.
//
// SORTING:
// Titles are compared with a language-neutral golang.org/x/text/collate
// collator rather than by bytes. The sort is stable: ties keep backend
// order.
//
// SEARCH:
// Search matches a case-insensitive substring of the title, the author or
// any genre, and runs last, on the already filtered list.
package view

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
)

// SortKey selects the dashboard order.
type SortKey string

const (
	// SortRecent orders by id descending. Ids are minted in creation
	// order, so this is "most recently added first".
	SortRecent    SortKey = "recent"
	SortTitleAsc  SortKey = "title-asc"
	SortTitleDesc SortKey = "title-desc"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortRecent, SortTitleAsc, SortTitleDesc:
		return true
	}
	return false
}

// ViewState is the transient sort/filter/search configuration of the
// dashboard. Zero values mean "no constraint"; the zero ViewState lists
// everything, most recent first.
type ViewState struct {
	Sort   SortKey
	Type   model.ItemType
	Status model.Status
	// Rating is compared as text against the item's rating, so "3" matches
	// a rating of 3 and never matches an unrated item.
	Rating string
	Search string
}

// ParseViewState reads a ViewState from the dashboard query string:
//
//	?sort=title-asc&type=Seinen+(M)&status=Reading&rating=3&q=solo
//
// Blank parameters are unset; unknown enumeration values are a Validation
// error.
func ParseViewState(q url.Values) (ViewState, error) {
	vs := ViewState{
		Sort:   SortKey(strings.TrimSpace(q.Get("sort"))),
		Type:   model.ItemType(strings.TrimSpace(q.Get("type"))),
		Status: model.Status(strings.TrimSpace(q.Get("status"))),
		Rating: strings.TrimSpace(q.Get("rating")),
		Search: q.Get("q"),
	}

	if vs.Sort == "" {
		vs.Sort = SortRecent
	}
	if !vs.Sort.Valid() {
		return ViewState{}, apperror.ValidationFailed("sort", "sort must be one of recent, title-asc, title-desc")
	}
	if vs.Type != "" && !vs.Type.Valid() {
		return ViewState{}, apperror.ValidationFailed("type", "unknown type "+strconv.Quote(string(vs.Type)))
	}
	if vs.Status != "" && !vs.Status.Valid() {
		return ViewState{}, apperror.ValidationFailed("status", "unknown status "+strconv.Quote(string(vs.Status)))
	}
	if vs.Rating != "" {
		n, err := strconv.Atoi(vs.Rating)
		if err != nil || n < 1 || n > 5 {
			return ViewState{}, apperror.ValidationFailed("rating", "rating must be a whole number from 1 to 5")
		}
		vs.Rating = strconv.Itoa(n)
	}

	return vs, nil
}

// Pipeline applies one ViewState for one session.
type Pipeline struct {
	session *model.Session
	state   ViewState
	now     func() time.Time
}

// New binds the pipeline to the session whose items it may show.
func New(session *model.Session, state ViewState) *Pipeline {
	if state.Sort == "" {
		state.Sort = SortRecent
	}
	return &Pipeline{session: session, state: state, now: time.Now}
}

// Apply returns the display list. The input is not modified. An empty
// result is a valid "no items found" state.
func (p *Pipeline) Apply(items []model.Item) []model.Item {
	if !p.session.Active(p.now()) {
		return []model.Item{}
	}
	owner := p.session.OwnerID()

	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.OwnerID == owner {
			out = append(out, it.Clone())
		}
	}

	Sort(out, p.state.Sort)

	return slices.DeleteFunc(out, func(it model.Item) bool {
		return !matchesFilters(it, p.state) || !matchesSearch(it, p.state.Search)
	})
}

// Sort orders items in place by key. The sort is stable: items with equal
// keys keep their input order.
func Sort(items []model.Item, key SortKey) {
	switch key {
	case SortTitleAsc, SortTitleDesc:
		// Root-locale collation: "apple" < "Banana" < "banana", case
		// still breaks ties.
		c := collate.New(language.Und)
		slices.SortStableFunc(items, func(a, b model.Item) int {
			if key == SortTitleDesc {
				return c.CompareString(b.Title, a.Title)
			}
			return c.CompareString(a.Title, b.Title)
		})
	default:
		slices.SortStableFunc(items, func(a, b model.Item) int {
			return strings.Compare(b.ID, a.ID)
		})
	}
}

func matchesFilters(it model.Item, vs ViewState) bool {
	if vs.Type != "" && it.Type != vs.Type {
		return false
	}
	if vs.Status != "" && it.Status != vs.Status {
		return false
	}
	if vs.Rating != "" && ratingText(it.Rating) != vs.Rating {
		return false
	}
	return true
}

// ratingText is the rating as the filter compares it; unrated has no text
// that a 1..5 filter could equal.
func ratingText(r *int) string {
	if r == nil {
		return "unrated"
	}
	return strconv.Itoa(*r)
}

// matchesSearch is a case-insensitive substring match over title, author
// and every genre. Whitespace-only text matches everything; otherwise the
// text is used as typed, surrounding spaces included.
func matchesSearch(it model.Item, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	q := strings.ToLower(text)

	if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Author), q) {
		return true
	}
	return slices.ContainsFunc(it.Genres, func(g string) bool {
		return strings.Contains(strings.ToLower(g), q)
	})
}
