package view

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Criteria is the set of active filter selections for one view. An empty
// value imposes no constraint. All present keys are ANDed together with the
// search term.
type Criteria struct {
	Values map[string]string `json:"values,omitempty"`
	Search string            `json:"search,omitempty"`
}

// Active reports whether any constraint is set.
func (c Criteria) Active() bool {
	if strings.TrimSpace(c.Search) != "" {
		return true
	}
	for _, v := range c.Values {
		if v != "" {
			return true
		}
	}
	return false
}

func (c Criteria) clone() Criteria {
	return Criteria{Values: maps.Clone(c.Values), Search: c.Search}
}

type predicate func(Record) bool

// Filter returns the records that satisfy criteria, in their original order.
// It never modifies its inputs.
func Filter(schema Schema, records []Record, criteria Criteria) []Record {
	preds := compile(schema, criteria)
	if len(preds) == 0 {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if matchAll(preds, rec) {
			out = append(out, rec)
		}
	}
	return out
}

func matchAll(preds []predicate, rec Record) bool {
	for _, p := range preds {
		if !p(rec) {
			return false
		}
	}
	return true
}

func compile(schema Schema, criteria Criteria) []predicate {
	var preds []predicate
	for _, key := range slices.Sorted(maps.Keys(criteria.Values)) {
		value := criteria.Values[key]
		if value == "" {
			continue
		}
		field, ok := schema.Field(key)
		if !ok {
			field = Field{Key: key, Kind: KindExact}
		}
		if field.kind() == KindFlag {
			preds = append(preds, flagPredicate(schema, field, value))
			continue
		}
		preds = append(preds, exactPredicate(key, value))
	}
	if term := strings.TrimSpace(criteria.Search); term != "" {
		preds = append(preds, searchPredicate(schema.searchable(), term))
	}
	return preds
}

func exactPredicate(key, value string) predicate {
	return func(rec Record) bool {
		got, ok := rec.Lookup(key)
		return ok && got == value
	}
}

func flagPredicate(schema Schema, field Field, value string) predicate {
	want, valid := field.criterion(value)
	var prereq *Field
	if field.Requires != "" {
		if f, ok := schema.Field(field.Requires); ok {
			prereq = &f
		}
	}
	return func(rec Record) bool {
		if !valid {
			return false
		}
		if prereq != nil {
			met, ok := prereq.flag(rec)
			if !ok || !met {
				return false
			}
		}
		got, ok := field.flag(rec)
		return ok && got == want
	}
}

func searchPredicate(fields []Field, term string) predicate {
	fold := cases.Fold()
	needle := fold.String(term)
	return func(rec Record) bool {
		for _, f := range fields {
			if strings.Contains(fold.String(rec.Text(f.Key)), needle) {
				return true
			}
		}
		return false
	}
}
