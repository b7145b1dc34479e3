package view

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/manhwee/internal/model"
)

// UnknownMonth labels completions whose id carries no timestamp.
const UnknownMonth = "Unknown"

// NoGenresInsight is shown while the collection has no genres at all.
const NoGenresInsight = "Start reading to discover your favorite genre!"

// Achievement labels.
const (
	AchievementTenCompleted = "🏆 10 Manhwa Completed!"
	AchievementReader       = "📖 Consistent Reader: 5+ ongoing manhwa"
	AchievementNoDrops      = "💯 No Drops Yet!"
)

// MonthCount is one bar of the completions chart.
type MonthCount struct {
	Month     string `json:"month"`
	Completed int    `json:"completed"`
}

// GenreCount is one genre and how many items list it.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Stats is everything the statistics page shows.
type Stats struct {
	// CompletedByMonth buckets Completed items by the month their id was
	// minted, in first-seen order. This is the month the item was added,
	// not the month it was finished.
	CompletedByMonth []MonthCount         `json:"completedByMonth"`
	StatusCounts     map[model.Status]int `json:"statusCounts"`
	// Genres keeps first-seen order; GenreCounts is the same data by name.
	Genres       []GenreCount   `json:"genres"`
	GenreCounts  map[string]int `json:"genreCounts"`
	Achievements []string       `json:"achievements"`
	GenreInsight string         `json:"genreInsight"`
	Total        int            `json:"total"`
}

// Aggregate derives Stats from the complete collection. A nil or empty
// collection is valid and yields zero counts and the placeholder insight.
func Aggregate(items []model.Item) Stats {
	s := Stats{
		CompletedByMonth: []MonthCount{},
		StatusCounts:     make(map[model.Status]int, len(model.Statuses)),
		Genres:           []GenreCount{},
		GenreCounts:      map[string]int{},
		Achievements:     []string{},
		Total:            len(items),
	}
	for _, st := range model.Statuses {
		s.StatusCounts[st] = 0
	}

	monthIdx := map[string]int{}
	genreIdx := map[string]int{}

	for _, it := range items {
		if _, known := s.StatusCounts[it.Status]; known {
			s.StatusCounts[it.Status]++
		}

		if it.Status == model.StatusCompleted {
			label := monthLabel(it.ID)
			if i, ok := monthIdx[label]; ok {
				s.CompletedByMonth[i].Completed++
			} else {
				monthIdx[label] = len(s.CompletedByMonth)
				s.CompletedByMonth = append(s.CompletedByMonth, MonthCount{Month: label, Completed: 1})
			}
		}

		for _, g := range it.Genres {
			s.GenreCounts[g]++
			if i, ok := genreIdx[g]; ok {
				s.Genres[i].Count++
			} else {
				genreIdx[g] = len(s.Genres)
				s.Genres = append(s.Genres, GenreCount{Genre: g, Count: 1})
			}
		}
	}

	s.Achievements = achievements(s.StatusCounts, len(items))
	s.GenreInsight = genreInsight(s.Genres)
	return s
}

func achievements(counts map[model.Status]int, total int) []string {
	out := []string{}
	if counts[model.StatusCompleted] >= 10 {
		out = append(out, AchievementTenCompleted)
	}
	if counts[model.StatusReading] >= 5 {
		out = append(out, AchievementReader)
	}
	if counts[model.StatusDropped] == 0 && total > 0 {
		out = append(out, AchievementNoDrops)
	}
	return out
}

// genreInsight compares the most listed genre with the runner-up. Ties keep
// first-seen order.
func genreInsight(genres []GenreCount) string {
	if len(genres) == 0 {
		return NoGenresInsight
	}

	ranked := slices.Clone(genres)
	slices.SortStableFunc(ranked, func(a, b GenreCount) int { return b.Count - a.Count })

	top := ranked[0]
	secondName, secondCount := "other genres", 1
	if len(ranked) > 1 {
		secondName = ranked[1].Genre
		if ranked[1].Count > 0 {
			secondCount = ranked[1].Count
		}
	}

	pct := int(math.Round(float64(top.Count) / float64(secondCount) * 100))
	return fmt.Sprintf("You enjoy %s %d%% more than %s.", top.Genre, pct, secondName)
}

// monthLabel is the short month name ("Jan") of the time embedded in id,
// in UTC. Both xid ids and legacy millisecond ids are understood.
func monthLabel(id string) string {
	t, ok := IDTime(id)
	if !ok {
		return UnknownMonth
	}
	return t.UTC().Format("Jan")
}

// IDTime extracts the creation time carried by an item id.
func IDTime(id string) (time.Time, bool) {
	if x, err := xid.FromString(id); err == nil {
		return x.Time(), true
	}
	if ms, err := strconv.ParseInt(id, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
