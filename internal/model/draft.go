package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Placeholders written when a draft leaves a field blank.
const (
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Unknown"
)

// Draft is the partial, pre-validation form of an Item: what a create or
// edit form submits. Every field is optional. Materialize applies the
// defaulting rules; validation of malformed values happens at the store
// boundary (service.ValidateDraft) using the validate tags below.
type Draft struct {
	Title          *string     `json:"title,omitempty"`
	Author         *string     `json:"author,omitempty"`
	Type           *ItemType   `json:"type,omitempty" validate:"omitempty,itemtype"`
	Genres         FlexStrings `json:"genres,omitempty"`
	Status         *Status     `json:"status,omitempty" validate:"omitempty,status"`
	Rating         *FlexInt    `json:"rating,omitempty" validate:"omitempty,min=0,max=5"`
	CurrentChapter *FlexInt    `json:"currentChapter,omitempty" validate:"omitempty,min=0"`
	TotalChapters  *FlexInt    `json:"totalChapters,omitempty" validate:"omitempty,min=0"`
	StartedAt      *string     `json:"startedAt,omitempty"`
	FinishedAt     *string     `json:"finishedAt,omitempty"`
	Link           *string     `json:"link,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
	Cover          *string     `json:"cover,omitempty"`
}

// Materialize converts the draft into the mutable fields of an Item.
// ID, OwnerID, CoverOffset and timestamps are left zero for the caller.
//
// Rules:
//   - title/author are trimmed, blank becomes "Untitled"/"Unknown"
//   - missing or blank status becomes "Not Started"
//   - rating and chapter counts of 0 mean "not set"
//   - genres keep their order and duplicates; nil becomes empty
func (d Draft) Materialize() Item {
	it := Item{
		Title:      orDefault(trimmed(d.Title), DefaultTitle),
		Author:     orDefault(trimmed(d.Author), DefaultAuthor),
		Genres:     []string(d.Genres),
		Status:     StatusNotStarted,
		StartedAt:  deref(d.StartedAt),
		FinishedAt: deref(d.FinishedAt),
		Link:       trimmed(d.Link),
		Notes:      trimmed(d.Notes),
		Cover:      trimmed(d.Cover),
	}
	if it.Genres == nil {
		it.Genres = []string{}
	}
	if d.Type != nil {
		it.Type = ItemType(strings.TrimSpace(string(*d.Type)))
	}
	if d.Status != nil {
		if s := Status(strings.TrimSpace(string(*d.Status))); s != "" {
			it.Status = s
		}
	}
	it.Rating = d.Rating.positive()
	it.CurrentChapter = d.CurrentChapter.positive()
	it.TotalChapters = d.TotalChapters.positive()
	return it
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmed(s *string) string {
	return strings.TrimSpace(deref(s))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FlexInt is an integer that also accepts a numeric JSON string, as sent
// by HTML form inputs ("3" as well as 3). An empty string decodes as 0.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("model: %q is not a whole number", s)
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("model: %s is not a whole number", b)
	}
	*f = FlexInt(n)
	return nil
}

// positive returns nil for a missing or zero value.
func (f *FlexInt) positive() *int {
	if f == nil || *f == 0 {
		return nil
	}
	v := int(*f)
	return &v
}

// FlexStrings is a list of labels that also accepts a single
// comma-separated string ("Action, Fantasy"). Entries are trimmed and
// blank entries dropped only in the string form; arrays are kept verbatim.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*f = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("model: genres must be a list or a comma-separated string")
	}
	*f = list
	return nil
}
