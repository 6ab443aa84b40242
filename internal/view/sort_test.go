package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSort_DateAscending(t *testing.T) {
	records := []Record{
		{"id": "1", "visit_date": "2024-03-01"},
		{"id": "2", "visit_date": "2024-01-15"},
	}
	got := Sort(visitSchema(), records, SortState{Key: "visit_date", Direction: Ascending})
	require.Equal(t, []string{"2", "1"}, ids(got))
}

func TestSort_DateNotLexicographic(t *testing.T) {
	records := []Record{
		{"id": "1", "visit_date": "12/01/2023"},
		{"id": "2", "visit_date": "02/15/2024"},
		{"id": "3", "visit_date": "2023-06-30T10:00:00Z"},
	}
	got := Sort(visitSchema(), records, SortState{Key: "visit_date"})
	require.Equal(t, []string{"3", "1", "2"}, ids(got))
}

func TestSort_MissingSortsFirstAscending(t *testing.T) {
	records := []Record{
		{"id": "1", "name": "beta"},
		{"id": "2"},
		{"id": "3", "name": "Alpha"},
	}
	got := Sort(visitSchema(), records, SortState{Key: "name", Direction: Ascending})
	require.Equal(t, []string{"2", "3", "1"}, ids(got))

	got = Sort(visitSchema(), records, SortState{Key: "name", Direction: Descending})
	require.Equal(t, []string{"1", "3", "2"}, ids(got))
}

func TestSort_EnumByLabel(t *testing.T) {
	records := []Record{
		{"id": "1", "visited": "visited"},
		{"id": "2", "visited": "not-visited"},
	}
	// raw codes would order "not-visited" < "visited"; labels order
	// "Not Visited" < "Visited" too, so use descending to see the label path.
	got := Sort(visitSchema(), records, SortState{Key: "visited", Direction: Descending})
	require.Equal(t, []string{"1", "2"}, ids(got))

	schema := Schema{IDField: "id", Fields: []Field{{
		Key:    "stage",
		Kind:   KindEnum,
		Labels: map[string]string{"a": "Zulu", "z": "Alpha"},
	}}}
	got = Sort(schema, []Record{{"id": "1", "stage": "a"}, {"id": "2", "stage": "z"}}, SortState{Key: "stage"})
	require.Equal(t, []string{"2", "1"}, ids(got))
}

func TestSort_FlagByLabel(t *testing.T) {
	records := []Record{
		{"id": "1", "submitted": "true"},
		{"id": "2", "submitted": "false"},
	}
	got := Sort(visitSchema(), records, SortState{Key: "submitted"})
	require.Equal(t, []string{"2", "1"}, ids(got))
}

func TestSort_StableTies(t *testing.T) {
	records := []Record{
		{"id": "1", "status": "Open"},
		{"id": "2", "status": "Closed"},
		{"id": "3", "status": "Open"},
		{"id": "4", "status": "Closed"},
	}
	got := Sort(visitSchema(), records, SortState{Key: "status"})
	require.Equal(t, []string{"2", "4", "1", "3"}, ids(got))

	got = Sort(visitSchema(), records, SortState{Key: "status", Direction: Descending})
	require.Equal(t, []string{"1", "3", "2", "4"}, ids(got))
}

func TestSort_Idempotent(t *testing.T) {
	records := []Record{
		{"id": "1", "name": "carl"},
		{"id": "2", "name": "Anna"},
		{"id": "3", "name": "bob"},
		{"id": "4", "name": "anna"},
	}
	state := SortState{Key: "name", Direction: Descending}
	once := Sort(visitSchema(), records, state)
	twice := Sort(visitSchema(), once, state)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("sort not idempotent (-once +twice):\n%s", diff)
	}
}

func TestSort_NoKeyKeepsOrder(t *testing.T) {
	records := []Record{{"id": "2"}, {"id": "1"}}
	got := Sort(visitSchema(), records, SortState{})
	require.Equal(t, []string{"2", "1"}, ids(got))
}

func TestSortState_Toggle(t *testing.T) {
	var s SortState
	s = s.Toggle("name")
	require.Equal(t, SortState{Key: "name", Direction: Ascending}, s)
	s = s.Toggle("name")
	require.Equal(t, SortState{Key: "name", Direction: Descending}, s)
	s = s.Toggle("status")
	require.Equal(t, SortState{Key: "status", Direction: Ascending}, s)
	require.Equal(t, SortState{}, s.Toggle(""))
}

func TestSort_ToggleTwiceRestoresOrder(t *testing.T) {
	records := []Record{
		{"id": "1", "name": "b"},
		{"id": "2", "name": "a"},
		{"id": "3", "name": "c"},
	}
	var s SortState
	s = s.Toggle("name")
	first := Sort(visitSchema(), records, s)
	s = s.Toggle("name")
	s = s.Toggle("name")
	again := Sort(visitSchema(), records, s)
	require.Equal(t, ids(first), ids(again))
}

func TestSchema_Validate(t *testing.T) {
	require.NoError(t, visitSchema().Validate())

	bad := []Schema{
		{Fields: []Field{{Key: "id"}}},
		{IDField: "id", Fields: []Field{{Key: "a"}, {Key: "a"}}},
		{IDField: "id", Fields: []Field{{Key: "a", Kind: "number"}}},
		{IDField: "id", Fields: []Field{{Key: "a", Kind: KindText, Requires: "b"}, {Key: "b", Kind: KindFlag}}},
		{IDField: "id", Fields: []Field{{Key: "a", Kind: KindFlag, Requires: "b"}, {Key: "b", Kind: KindText}}},
	}
	for _, s := range bad {
		require.ErrorIs(t, s.Validate(), ErrInvalidSchema)
	}
}
