package view

import (
	"errors"
	"fmt"
	"strings"

	"go.einride.tech/aip/ordering"
)

// ErrInvalidOrder is returned for order_by expressions a view cannot apply.
var ErrInvalidOrder = errors.New("invalid order_by")

type orderRequest string

func (r orderRequest) GetOrderBy() string { return string(r) }

// ParseOrder parses an AIP-132 order_by expression such as
// "visit_date desc" into a sort state. An empty expression clears the sort.
// Views sort by one key, so more than one field is rejected.
func ParseOrder(schema Schema, expr string) (SortState, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return SortState{}, nil
	}
	orderBy, err := ordering.ParseOrderBy(orderRequest(expr))
	if err != nil {
		return SortState{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if len(orderBy.Fields) != 1 {
		return SortState{}, fmt.Errorf("%w: want exactly one field, got %d", ErrInvalidOrder, len(orderBy.Fields))
	}
	paths := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		paths = append(paths, f.Key)
	}
	if err := orderBy.ValidateForPaths(paths...); err != nil {
		return SortState{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	field := orderBy.Fields[0]
	state := SortState{Key: field.Path, Direction: Ascending}
	if field.Desc {
		state.Direction = Descending
	}
	return state, nil
}

// OrderBy formats s as an order_by expression.
func (s SortState) OrderBy() string {
	s = s.normalized()
	if s.Key == "" {
		return ""
	}
	if s.Direction == Descending {
		return s.Key + " desc"
	}
	return s.Key
}
