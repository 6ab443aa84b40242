package view

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Direction is the sort direction of a view.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortState holds the single active sort key. An empty key means records
// keep their fetched order.
type SortState struct {
	Key       string    `json:"key,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// Toggle returns the state after the user selects key: the same key flips
// direction, a new key starts ascending.
func (s SortState) Toggle(key string) SortState {
	if key == "" {
		return SortState{}
	}
	if s.Key == key {
		if s.Direction == Descending {
			return SortState{Key: key, Direction: Ascending}
		}
		return SortState{Key: key, Direction: Descending}
	}
	return SortState{Key: key, Direction: Ascending}
}

func (s SortState) normalized() SortState {
	if s.Key == "" {
		return SortState{}
	}
	if s.Direction != Descending {
		s.Direction = Ascending
	}
	return s
}

type sortEntry struct {
	rec  Record
	text string
	at   time.Time
}

// Sort returns a stably sorted copy of records. Ties keep their prior
// relative order.
func Sort(schema Schema, records []Record, state SortState) []Record {
	state = state.normalized()
	if state.Key == "" {
		return slices.Clone(records)
	}
	field, ok := schema.Field(state.Key)
	if !ok {
		field = Field{Key: state.Key, Kind: KindText}
	}

	fold := cases.Fold()
	entries := make([]sortEntry, len(records))
	for i, rec := range records {
		entries[i] = keyOf(field, fold, rec)
	}

	byDate := field.kind() == KindDate
	slices.SortStableFunc(entries, func(a, b sortEntry) int {
		var c int
		if byDate {
			c = a.at.Compare(b.at)
		} else {
			c = strings.Compare(a.text, b.text)
		}
		if state.Direction == Descending {
			return -c
		}
		return c
	})

	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

func keyOf(field Field, fold cases.Caser, rec Record) sortEntry {
	raw, present := rec.Lookup(field.Key)
	switch field.kind() {
	case KindDate:
		at, _ := field.parseTime(raw)
		return sortEntry{rec: rec, at: at}
	case KindEnum, KindFlag:
		if !present {
			return sortEntry{rec: rec}
		}
		return sortEntry{rec: rec, text: fold.String(field.Display(raw))}
	default:
		return sortEntry{rec: rec, text: fold.String(raw)}
	}
}
