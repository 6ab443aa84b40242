package view

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the semantic type of a field. It decides how the field filters
// and sorts.
type Kind string

const (
	// KindText fields match criteria exactly and sort case-insensitively.
	KindText Kind = "text"
	// KindExact fields hold status, category, or type codes.
	KindExact Kind = "exact"
	// KindEnum fields hold raw codes that sort by their display label.
	KindEnum Kind = "enum"
	// KindDate fields sort as parsed times.
	KindDate Kind = "date"
	// KindFlag fields are boolean-like, usually "true"/"false" on the wire.
	KindFlag Kind = "flag"
)

// Valid reports whether k is a known kind. The empty kind means text.
func (k Kind) Valid() bool {
	switch k {
	case "", KindText, KindExact, KindEnum, KindDate, KindFlag:
		return true
	default:
		return false
	}
}

var defaultLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

var defaultFlagLabels = map[string]string{
	"true":  "Yes",
	"false": "No",
}

// Field describes one column of a screen.
type Field struct {
	Key        string `yaml:"key" json:"key"`
	Label      string `yaml:"label,omitempty" json:"label,omitempty"`
	Kind       Kind   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Searchable bool   `yaml:"searchable,omitempty" json:"searchable,omitempty"`
	// Labels maps raw enum or flag values to display labels.
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	// Values maps flag criterion values ("Yes", "Submitted") to raw values.
	Values map[string]string `yaml:"values,omitempty" json:"values,omitempty"`
	// Requires names a flag field that must be true before this flag
	// filter can match.
	Requires string   `yaml:"requires,omitempty" json:"requires,omitempty"`
	Layouts  []string `yaml:"layouts,omitempty" json:"layouts,omitempty"`
}

func (f Field) kind() Kind {
	if f.Kind == "" {
		return KindText
	}
	return f.Kind
}

// Display translates a raw value to its display label.
func (f Field) Display(raw string) string {
	switch f.kind() {
	case KindEnum:
		if label, ok := f.Labels[raw]; ok {
			return label
		}
	case KindFlag:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return raw
		}
		canonical := strconv.FormatBool(b)
		if label, ok := f.Labels[canonical]; ok {
			return label
		}
		return defaultFlagLabels[canonical]
	}
	return raw
}

// flag reads the record value as a boolean. ok is false when the value is
// missing or not boolean-like.
func (f Field) flag(rec Record) (value bool, ok bool) {
	switch v := rec[f.Key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// criterion translates a filter selection to a boolean via the field's
// Values table.
func (f Field) criterion(value string) (bool, bool) {
	raw := value
	if mapped, ok := f.Values[value]; ok {
		raw = mapped
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return b, true
}

func (f Field) parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	layouts := f.Layouts
	if len(layouts) == 0 {
		layouts = defaultLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Schema is the field metadata for one screen.
type Schema struct {
	IDField string  `yaml:"id_field" json:"id_field"`
	Fields  []Field `yaml:"fields" json:"fields"`
}

// Field returns the field with the given key.
func (s Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// searchable returns the fields free-text search looks at. A schema that
// marks none has no search surface.
func (s Schema) searchable() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Searchable {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks that the schema is internally consistent.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.IDField) == "" {
		return fmt.Errorf("%w: id_field is required", ErrInvalidSchema)
	}
	seen := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("%w: field key is required", ErrInvalidSchema)
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Key)
		}
		if !f.Kind.Valid() {
			return fmt.Errorf("%w: field %q has unknown kind %q", ErrInvalidSchema, f.Key, f.Kind)
		}
		seen[f.Key] = f
	}
	for _, f := range s.Fields {
		if f.Requires == "" {
			continue
		}
		if f.kind() != KindFlag {
			return fmt.Errorf("%w: field %q declares requires but is not a flag", ErrInvalidSchema, f.Key)
		}
		prereq, ok := seen[f.Requires]
		if !ok || prereq.kind() != KindFlag {
			return fmt.Errorf("%w: field %q requires %q, which is not a flag field", ErrInvalidSchema, f.Key, f.Requires)
		}
	}
	return nil
}
