package view

import (
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/manhwee/internal/model"
)

func idAt(year int, month time.Month) string {
	return xid.NewWithTime(time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)).String()
}

func TestAggregate_SingleCompletedItem(t *testing.T) {
	items := []model.Item{{
		ID:     idAt(2024, time.March),
		Title:  "Solo Leveling",
		Status: model.StatusCompleted,
		Genres: []string{"Action", "Fantasy"},
	}}

	s := Aggregate(items)

	assert.Equal(t, 1, s.StatusCounts[model.StatusCompleted])
	assert.Equal(t, 0, s.StatusCounts[model.StatusReading])
	assert.Equal(t, 0, s.StatusCounts[model.StatusNotStarted])
	assert.Equal(t, 0, s.StatusCounts[model.StatusDropped])
	assert.Equal(t, map[string]int{"Action": 1, "Fantasy": 1}, s.GenreCounts)
	assert.Equal(t, []GenreCount{{"Action", 1}, {"Fantasy", 1}}, s.Genres)
	assert.Equal(t, []MonthCount{{Month: "Mar", Completed: 1}}, s.CompletedByMonth)
	assert.Equal(t, "You enjoy Action 100% more than Fantasy.", s.GenreInsight)
	assert.Equal(t, []string{AchievementNoDrops}, s.Achievements)
	assert.Equal(t, 1, s.Total)
}

func TestAggregate_Empty(t *testing.T) {
	for _, items := range [][]model.Item{nil, {}} {
		s := Aggregate(items)

		assert.Equal(t, NoGenresInsight, s.GenreInsight)
		assert.Empty(t, s.Achievements, "no-drops needs a non-empty collection")
		assert.NotNil(t, s.Achievements)
		assert.Empty(t, s.CompletedByMonth)
		assert.Len(t, s.StatusCounts, 4)
		for _, st := range model.Statuses {
			assert.Zero(t, s.StatusCounts[st])
		}
	}
}

func TestAggregate_MonthsInFirstSeenOrder(t *testing.T) {
	items := []model.Item{
		{ID: idAt(2024, time.May), Status: model.StatusCompleted},
		{ID: idAt(2024, time.January), Status: model.StatusCompleted},
		{ID: idAt(2024, time.May), Status: model.StatusCompleted},
		{ID: idAt(2024, time.February), Status: model.StatusReading},
		// legacy millisecond id: 2023-11-14T22:13:20Z
		{ID: "1700000000000", Status: model.StatusCompleted},
		{ID: "not-a-timestamp", Status: model.StatusCompleted},
	}

	s := Aggregate(items)

	assert.Equal(t, []MonthCount{
		{Month: "May", Completed: 2},
		{Month: "Jan", Completed: 1},
		{Month: "Nov", Completed: 1},
		{Month: UnknownMonth, Completed: 1},
	}, s.CompletedByMonth)
}

func TestAggregate_Achievements(t *testing.T) {
	many := func(n int, st model.Status) []model.Item {
		out := make([]model.Item, n)
		for i := range out {
			out[i] = model.Item{ID: idAt(2024, time.June), Status: st}
		}
		return out
	}

	tests := []struct {
		name  string
		items []model.Item
		want  []string
	}{
		{"ten completed", many(10, model.StatusCompleted), []string{AchievementTenCompleted, AchievementNoDrops}},
		{"nine completed", many(9, model.StatusCompleted), []string{AchievementNoDrops}},
		{"five reading", many(5, model.StatusReading), []string{AchievementReader, AchievementNoDrops}},
		{"one drop", append(many(5, model.StatusReading), many(1, model.StatusDropped)...), []string{AchievementReader}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.items).Achievements)
		})
	}
}

func TestAggregate_GenreInsight(t *testing.T) {
	withGenres := func(genres ...[]string) []model.Item {
		out := make([]model.Item, len(genres))
		for i, g := range genres {
			out[i] = model.Item{Status: model.StatusReading, Genres: g}
		}
		return out
	}

	tests := []struct {
		name  string
		items []model.Item
		want  string
	}{
		{
			"single genre compares against other genres",
			withGenres([]string{"Action"}, []string{"Action"}),
			"You enjoy Action 200% more than other genres.",
		},
		{
			"top over second",
			withGenres([]string{"Action", "Romance"}, []string{"Action"}, []string{"Action", "Drama"}),
			"You enjoy Action 300% more than Romance.",
		},
		{
			"rounding",
			withGenres([]string{"Drama", "Action"}, []string{"Drama", "Action"}, []string{"Action"}, []string{"Drama"}, []string{"Drama"}),
			"You enjoy Drama 133% more than Action.",
		},
		{
			"ties keep first-seen order",
			withGenres([]string{"Fantasy", "Action"}),
			"You enjoy Fantasy 100% more than Action.",
		},
		{
			"no genres",
			withGenres([]string{}, nil),
			NoGenresInsight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.items).GenreInsight)
		})
	}
}

func TestAggregate_DuplicateGenresCountTwice(t *testing.T) {
	s := Aggregate([]model.Item{{Status: model.StatusReading, Genres: []string{"Action", "Action"}}})
	assert.Equal(t, 2, s.GenreCounts["Action"])
	require.Len(t, s.Genres, 1)
}

func TestIDTime(t *testing.T) {
	at := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

	got, ok := IDTime(xid.NewWithTime(at).String())
	require.True(t, ok)
	assert.True(t, got.Equal(at))

	got, ok = IDTime("1700000000000")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), got.UnixMilli())

	_, ok = IDTime("")
	assert.False(t, ok)
}
