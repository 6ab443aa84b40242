package view

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gatedSource blocks each fetch until release is closed.
type gatedSource struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	records []Record
	err     error
}

func newGatedSource(records []Record, err error) *gatedSource {
	return &gatedSource{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		records: records,
		err:     err,
	}
}

func (s *gatedSource) Fetch(ctx context.Context) ([]Record, error) {
	s.calls.Add(1)
	s.started <- struct{}{}
	<-s.release
	return s.records, s.err
}

func staticSource(records []Record) SourceFunc {
	return func(context.Context) ([]Record, error) { return records, nil }
}

func TestController_RefreshAndDerive(t *testing.T) {
	ctx := context.Background()
	records := []Record{
		{"id": "1", "status": "Open", "name": "John Smith", "visit_date": "2024-03-01"},
		{"id": "2", "status": "Closed", "name": "Jane Doe", "visit_date": "2024-01-15"},
		{"id": "3", "status": "Open", "name": "Al Smithee", "visit_date": "2024-02-01"},
	}
	c := NewController(visitSchema(), staticSource(records), nil)

	snap := c.Snapshot(Page{})
	require.False(t, snap.Loaded)
	require.Empty(t, snap.Rows)

	require.NoError(t, c.Refresh(ctx))
	snap = c.Snapshot(Page{})
	require.True(t, snap.Loaded)
	require.False(t, snap.Loading)
	require.Equal(t, []string{"1", "2", "3"}, ids(snap.Rows))

	c.SetFilter("status", "Open")
	require.Equal(t, []string{"1", "3"}, ids(c.Snapshot(Page{}).Rows))

	c.ToggleSort("visit_date")
	require.Equal(t, []string{"3", "1"}, ids(c.Snapshot(Page{}).Rows))

	state := c.ToggleSort("visit_date")
	require.Equal(t, Descending, state.Direction)
	require.Equal(t, []string{"1", "3"}, ids(c.Snapshot(Page{}).Rows))

	c.SetSearchTerm("smithee")
	require.Equal(t, []string{"3"}, ids(c.Snapshot(Page{}).Rows))

	c.ClearFilters()
	snap = c.Snapshot(Page{Number: 1, Size: 2})
	require.Equal(t, []string{"1", "3"}, ids(snap.Rows))
	require.Equal(t, 3, snap.Page.TotalRows)
	require.False(t, snap.Criteria.Active())
}

func TestController_FilterChangesDoNotFetch(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]Record, error) {
		calls.Add(1)
		return []Record{{"id": "1", "status": "Open"}}, nil
	})
	c := NewController(visitSchema(), src, nil)
	require.NoError(t, c.Refresh(context.Background()))

	c.SetFilter("status", "Closed")
	c.SetSearchTerm("x")
	c.ToggleSort("status")
	c.SetSort(SortState{Key: "name", Direction: Descending})
	_ = c.Snapshot(Page{})
	require.Equal(t, int32(1), calls.Load())
}

func TestController_StaleWhileError(t *testing.T) {
	fail := false
	src := SourceFunc(func(context.Context) ([]Record, error) {
		if fail {
			return nil, errors.New("upstream returned 502: bad gateway")
		}
		return []Record{{"id": "1"}, {"id": "2"}}, nil
	})
	c := NewController(visitSchema(), src, nil)
	require.NoError(t, c.Refresh(context.Background()))
	before := c.Snapshot(Page{})

	fail = true
	err := c.Refresh(context.Background())
	require.EqualError(t, err, "upstream returned 502: bad gateway")

	after := c.Snapshot(Page{})
	require.Equal(t, "upstream returned 502: bad gateway", after.Error)
	require.Equal(t, ids(before.Rows), ids(after.Rows))
	require.Equal(t, before.FetchedAt, after.FetchedAt)

	fail = false
	require.NoError(t, c.Refresh(context.Background()))
	require.Empty(t, c.Snapshot(Page{}).Error)
}

func TestController_CoalescesConcurrentRefresh(t *testing.T) {
	src := newGatedSource([]Record{{"id": "1"}}, nil)
	c := NewController(visitSchema(), src, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- c.Refresh(context.Background())
	}()
	<-src.started
	require.True(t, c.Snapshot(Page{}).Loading)

	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Refresh(context.Background())
		}()
	}
	// Let the followers reach the single flight before releasing.
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), src.calls.Load())
	require.False(t, c.Snapshot(Page{}).Loading)
}

func TestController_CancelledCallerDoesNotCancelFetch(t *testing.T) {
	src := newGatedSource([]Record{{"id": "1"}}, nil)
	c := NewController(visitSchema(), src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-src.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	waiter := make(chan error, 1)
	go func() { waiter <- c.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	require.NoError(t, <-waiter)

	require.Eventually(t, func() bool {
		return c.Snapshot(Page{}).Loaded
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), src.calls.Load())
}

func TestController_ReloadSupersedesFetchInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]Record, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
			return []Record{{"id": "old"}}, nil
		}
		return []Record{{"id": "old"}, {"id": "new"}}, nil
	})
	c := NewController(visitSchema(), src, nil)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	<-started

	require.NoError(t, c.Reload(context.Background()))
	require.Equal(t, []string{"old", "new"}, ids(c.Snapshot(Page{}).Rows))

	close(release)
	require.NoError(t, <-done)
	snap := c.Snapshot(Page{})
	require.Equal(t, []string{"old", "new"}, ids(snap.Rows))
	require.False(t, snap.Loading)
	require.Equal(t, int32(2), calls.Load())
}

func TestController_ReplaceFilters(t *testing.T) {
	records := []Record{
		{"id": "1", "status": "Open", "name": "John Smith"},
		{"id": "2", "status": "Closed", "name": "Jane Smith"},
		{"id": "3", "status": "Open", "name": "Bob", "region": "EU"},
	}
	c := NewController(visitSchema(), staticSource(records), nil)
	require.NoError(t, c.Refresh(context.Background()))
	c.SetFilter("status", "Open")
	c.SetSearchTerm("smith")
	require.Equal(t, []string{"1"}, ids(c.Snapshot(Page{}).Rows))

	c.ReplaceFilters(map[string]string{"status": "Closed", "region": ""})
	criteria := c.Criteria()
	require.Equal(t, map[string]string{"status": "Closed"}, criteria.Values)
	require.Equal(t, "smith", criteria.Search)
	require.Equal(t, []string{"2"}, ids(c.Snapshot(Page{}).Rows))

	c.ReplaceFilters(nil)
	require.Empty(t, c.Criteria().Values)
	require.Equal(t, []string{"1", "2"}, ids(c.Snapshot(Page{}).Rows))
}

func TestController_DiscardsResultAfterClose(t *testing.T) {
	src := newGatedSource([]Record{{"id": "1"}}, nil)
	c := NewController(visitSchema(), src, nil)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()
	<-src.started
	c.Close()
	close(src.release)
	require.NoError(t, <-done)

	snap := c.Snapshot(Page{})
	require.False(t, snap.Loaded)
	require.Empty(t, snap.Rows)
	require.True(t, c.Closed())
	require.ErrorIs(t, c.Refresh(context.Background()), ErrClosed)
}

func TestController_SnapshotIsCopy(t *testing.T) {
	c := NewController(visitSchema(), staticSource([]Record{{"id": "1"}, {"id": "2"}}), nil)
	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot(Page{})
	snap.Rows[0] = Record{"id": "x"}
	snap.Criteria.Values = map[string]string{"status": "Open"}

	again := c.Snapshot(Page{})
	require.Equal(t, []string{"1", "2"}, ids(again.Rows))
	require.False(t, again.Criteria.Active())
}
