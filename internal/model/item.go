// Package model defines the data structures used throughout the application.
package model

import (
	"slices"
	"time"
)

// Status is the reading state of an item. The string values are the wire
// format and must not change.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusReading    Status = "Reading"
	StatusCompleted  Status = "Completed"
	StatusDropped    Status = "Dropped"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusNotStarted, StatusReading, StatusCompleted, StatusDropped}

// Valid reports whether s is one of the four statuses.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ItemType is the demographic classification of a manhwa. Closed set.
type ItemType string

const (
	TypeShoujo  ItemType = "Shoujo (G)"
	TypeShounen ItemType = "Shounen (B)"
	TypeJosei   ItemType = "Josei (W)"
	TypeSeinen  ItemType = "Seinen (M)"
	TypeYuri    ItemType = "Yuri (GL)"
	TypeYaoi    ItemType = "Yaoi (BL)"
)

// ItemTypes lists every ItemType in display order.
var ItemTypes = []ItemType{TypeShoujo, TypeShounen, TypeJosei, TypeSeinen, TypeYuri, TypeYaoi}

// Valid reports whether t is one of ItemTypes. An unset (empty) type is
// not valid; callers that allow it check for "" first.
func (t ItemType) Valid() bool {
	return slices.Contains(ItemTypes, t)
}

// Cover offset bounds, in pixels. Negative moves the image up.
const (
	MinCoverOffset = -300
	MaxCoverOffset = 100
)

// ClampCoverOffset pins offset into [MinCoverOffset, MaxCoverOffset].
func ClampCoverOffset(offset int) int {
	return max(MinCoverOffset, min(MaxCoverOffset, offset))
}

// Item is one tracked manhwa.
//
// ID and OwnerID are assigned by the collection store and never change.
// Optional numeric fields are pointers: nil means "not set", which is
// different from zero for Rating ("unrated").
type Item struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	Type           ItemType  `json:"type,omitempty"`
	Genres         []string  `json:"genres"`
	Status         Status    `json:"status"`
	Rating         *int      `json:"rating,omitempty"`
	CurrentChapter *int      `json:"currentChapter,omitempty"`
	TotalChapters  *int      `json:"totalChapters,omitempty"`
	StartedAt      string    `json:"startedAt,omitempty"`
	FinishedAt     string    `json:"finishedAt,omitempty"`
	Link           string    `json:"link,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Cover          string    `json:"cover,omitempty"`
	CoverOffset    int       `json:"coverOffset"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Snapshots handed to callers are clones so a
// caller mutating its slice cannot corrupt the store.
func (it Item) Clone() Item {
	c := it
	c.Genres = slices.Clone(it.Genres)
	if c.Genres == nil {
		c.Genres = []string{}
	}
	c.Rating = cloneInt(it.Rating)
	c.CurrentChapter = cloneInt(it.CurrentChapter)
	c.TotalChapters = cloneInt(it.TotalChapters)
	return c
}

// Draft seeds an edit form from an existing item.
func (it Item) Draft() Draft {
	d := Draft{
		Title:      ptr(it.Title),
		Author:     ptr(it.Author),
		Genres:     FlexStrings(slices.Clone(it.Genres)),
		Status:     ptr(it.Status),
		StartedAt:  ptr(it.StartedAt),
		FinishedAt: ptr(it.FinishedAt),
		Link:       ptr(it.Link),
		Notes:      ptr(it.Notes),
		Cover:      ptr(it.Cover),
	}
	if it.Type != "" {
		d.Type = ptr(it.Type)
	}
	d.Rating = flexPtr(it.Rating)
	d.CurrentChapter = flexPtr(it.CurrentChapter)
	d.TotalChapters = flexPtr(it.TotalChapters)
	return d
}

// CloneItems deep-copies a list, never returning nil.
func CloneItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func flexPtr(p *int) *FlexInt {
	if p == nil {
		return nil
	}
	v := FlexInt(*p)
	return &v
}

func ptr[T any](v T) *T {
	return &v
}
