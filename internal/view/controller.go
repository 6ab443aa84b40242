package view

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source yields the base record set of a view from a remote collaborator.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Record, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]Record, error) {
	return f(ctx)
}

// Snapshot is the read-only state handed to the rendering layer.
type Snapshot struct {
	Rows      []Record  `json:"rows"`
	Page      PageInfo  `json:"page"`
	Criteria  Criteria  `json:"criteria"`
	Sort      SortState `json:"sort"`
	Loading   bool      `json:"loading"`
	Loaded    bool      `json:"loaded"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Controller owns the filter and sort state of one screen instance and
// derives the visible rows from the last fetched record set.
type Controller struct {
	schema Schema
	source Source
	logger *slog.Logger
	now    func() time.Time

	flight singleflight.Group

	mu        sync.Mutex
	records   []Record
	derived   []Record
	criteria  Criteria
	sort      SortState
	loading   bool
	loaded    bool
	err       error
	fetchedAt time.Time
	closed    bool
	// generation counts started fetches. Only the newest one is applied.
	generation uint64
}

// NewController creates a controller over source. Nothing is fetched until
// Refresh is called.
func NewController(schema Schema, source Source, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		schema: schema,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Schema returns the field metadata of the view.
func (c *Controller) Schema() Schema {
	return c.schema
}

// SetFilter sets or clears (empty value) the criterion for key.
func (c *Controller) SetFilter(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == "" {
		delete(c.criteria.Values, key)
	} else {
		if c.criteria.Values == nil {
			c.criteria.Values = make(map[string]string)
		}
		c.criteria.Values[key] = value
	}
	c.recompute()
}

// ReplaceFilters swaps every criterion for values in one step. Empty values
// are dropped. The search term is kept.
func (c *Controller) ReplaceFilters(values map[string]string) {
	next := make(map[string]string, len(values))
	for key, value := range values {
		if value != "" {
			next[key] = value
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria.Values = next
	c.recompute()
}

// SetSearchTerm sets the free-text search term.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria.Search = term
	c.recompute()
}

// ClearFilters drops every criterion and the search term.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.criteria = Criteria{}
	c.recompute()
}

// ToggleSort selects key as the sort key, flipping direction when it is
// already active.
func (c *Controller) ToggleSort(key string) SortState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = c.sort.Toggle(key)
	c.recompute()
	return c.sort
}

// SetSort replaces the sort state.
func (c *Controller) SetSort(state SortState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = state.normalized()
	c.recompute()
}

// Criteria returns a copy of the active criteria.
func (c *Controller) Criteria() Criteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criteria.clone()
}

// Sort returns the active sort state.
func (c *Controller) Sort() SortState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

const fetchKey = "fetch"

// Reload starts a new fetch even when one is in flight. Use it after the
// backend data changed, since a fetch started earlier may predate the change.
// The earlier fetch's result is discarded.
func (c *Controller) Reload(ctx context.Context) error {
	c.flight.Forget(fetchKey)
	return c.Refresh(ctx)
}

// Refresh fetches the base record set. Overlapping calls share one upstream
// fetch. A caller whose ctx ends stops waiting, but the shared fetch runs to
// completion and its result is still applied. On failure the previous rows
// stay visible and the error is recorded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(fetchKey, func() (any, error) {
		c.mu.Lock()
		c.generation++
		generation := c.generation
		c.loading = true
		c.mu.Unlock()

		records, err := c.source.Fetch(fetchCtx)
		c.apply(generation, records, err)
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) apply(generation uint64, records []Record, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		c.logger.Debug("discarding superseded fetch result", "records", len(records), "error", err)
		return
	}
	c.loading = false
	if c.closed {
		c.logger.Debug("discarding fetch result for closed view", "records", len(records), "error", err)
		return
	}
	if err != nil {
		c.err = err
		c.logger.Warn("view fetch failed", "error", err)
		return
	}
	c.records = records
	c.err = nil
	c.loaded = true
	c.fetchedAt = c.now()
	c.recompute()
}

// Snapshot returns the requested page of the derived view with the loading
// and error flags.
func (c *Controller) Snapshot(page Page) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, info := Paginate(c.derived, page)
	snap := Snapshot{
		Rows:      slices.Clone(rows),
		Page:      info,
		Criteria:  c.criteria.clone(),
		Sort:      c.sort,
		Loading:   c.loading,
		Loaded:    c.loaded,
		FetchedAt: c.fetchedAt,
	}
	if snap.Rows == nil {
		snap.Rows = []Record{}
	}
	if c.err != nil {
		snap.Error = c.err.Error()
	}
	return snap
}

// Records returns the last fetched record set, unfiltered.
func (c *Controller) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.records)
}

// Close retires the controller. Fetches still in flight are discarded when
// they complete.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.records = nil
	c.derived = nil
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) recompute() {
	if c.closed {
		return
	}
	c.derived = Sort(c.schema, Filter(c.schema, c.records, c.criteria), c.sort)
}
