package mcp

import (
	"context"
	"fmt"
	"maps"
	"slices"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/view"
)

// ListScreensInput is the input of list_screens.
type ListScreensInput struct{}

// ViewScreenInput is the input of view_screen.
type ViewScreenInput struct {
	ScreenID string            `json:"screen_id" jsonschema:"screen identifier from list_screens"`
	Filters  map[string]string `json:"filters,omitempty" jsonschema:"field to value; replaces the active filters"`
	Search   *string           `json:"search,omitempty" jsonschema:"free-text search term; empty clears it"`
	OrderBy  *string           `json:"order_by,omitempty" jsonschema:"one field with optional direction, e.g. visit_date desc; empty clears the sort"`
	Page     int               `json:"page,omitempty" jsonschema:"1-based page number (default 1)"`
	Size     *int              `json:"size,omitempty" jsonschema:"rows per page; 0 returns every row"`
}

// ToggleSortInput is the input of toggle_sort.
type ToggleSortInput struct {
	ScreenID string `json:"screen_id" jsonschema:"screen identifier"`
	Key      string `json:"key" jsonschema:"field to sort by; the active field flips direction"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page number (default 1)"`
	Size     *int   `json:"size,omitempty" jsonschema:"rows per page; 0 returns every row"`
}

// RefreshScreenInput is the input of refresh_screen.
type RefreshScreenInput struct {
	ScreenID string `json:"screen_id" jsonschema:"screen identifier"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page number (default 1)"`
	Size     *int   `json:"size,omitempty" jsonschema:"rows per page; 0 returns every row"`
}

// LookupCaseInput is the input of lookup_case.
type LookupCaseInput struct {
	Number string `json:"number" jsonschema:"export-control case number, e.g. EC-2024-001"`
}

func registerTools(server *sdkmcp.Server, cfg Config) {
	t := &tools{screens: cfg.Screens, cases: cfg.Cases, pageSize: cfg.PageSize}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_screens",
		Description: "List the screens your role may open and its home screen",
	}, t.listScreens)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "view_screen",
		Description: "Open a screen and return its filtered, sorted and paged rows",
	}, t.viewScreen)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "toggle_sort",
		Description: "Sort an open screen by a field, flipping direction if it is already the sort field",
	}, t.toggleSort)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "refresh_screen",
		Description: "Refetch a screen's rows from the backend",
	}, t.refreshScreen)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "lookup_case",
		Description: "Find an export-control case by number; misses return close matches",
	}, t.lookupCase)
}

type tools struct {
	screens  ScreenService
	cases    CaseService
	pageSize int
}

func (t *tools) page(number int, size *int) view.Page {
	page := view.Page{Number: max(number, 1), Size: t.pageSize}
	if size != nil {
		page.Size = max(*size, 0)
	}
	return page
}

func (t *tools) listScreens(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListScreensInput) (*sdkmcp.CallToolResult, screen.Home, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, screen.Home{}, toolError(err)
	}
	home, err := t.screens.Home(sess.Role)
	if err != nil {
		return nil, screen.Home{}, toolError(err)
	}
	return nil, home, nil
}

func (t *tools) viewScreen(ctx context.Context, _ *sdkmcp.CallToolRequest, in ViewScreenInput) (*sdkmcp.CallToolResult, any, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, nil, toolError(err)
	}
	inst, err := t.screens.Open(ctx, sess, in.ScreenID)
	if err != nil {
		return nil, nil, toolError(err)
	}

	ctrl := inst.Controller
	if in.OrderBy != nil {
		state, err := view.ParseOrder(inst.Screen.Schema, *in.OrderBy)
		if err != nil {
			return nil, nil, toolError(err)
		}
		ctrl.SetSort(state)
	}
	if in.Filters != nil {
		for _, key := range slices.Sorted(maps.Keys(in.Filters)) {
			if _, ok := inst.Screen.Schema.Field(key); !ok {
				return nil, nil, toolError(fmt.Errorf("%w: unknown filter field %q", ErrInvalidInput, key))
			}
		}
		ctrl.ReplaceFilters(in.Filters)
	}
	if in.Search != nil {
		ctrl.SetSearchTerm(*in.Search)
	}
	return nil, inst.View(t.page(in.Page, in.Size)), nil
}

func (t *tools) toggleSort(ctx context.Context, _ *sdkmcp.CallToolRequest, in ToggleSortInput) (*sdkmcp.CallToolResult, any, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, nil, toolError(err)
	}
	inst, err := t.screens.Open(ctx, sess, in.ScreenID)
	if err != nil {
		return nil, nil, toolError(err)
	}
	if _, ok := inst.Screen.Schema.Field(in.Key); !ok {
		return nil, nil, toolError(fmt.Errorf("%w: unknown sort field %q", ErrInvalidInput, in.Key))
	}
	inst.Controller.ToggleSort(in.Key)
	return nil, inst.View(t.page(in.Page, in.Size)), nil
}

func (t *tools) refreshScreen(ctx context.Context, _ *sdkmcp.CallToolRequest, in RefreshScreenInput) (*sdkmcp.CallToolResult, any, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, nil, toolError(err)
	}
	inst, err := t.screens.Refresh(ctx, sess, in.ScreenID)
	if err != nil {
		return nil, nil, toolError(err)
	}
	return nil, inst.View(t.page(in.Page, in.Size)), nil
}

func (t *tools) lookupCase(ctx context.Context, _ *sdkmcp.CallToolRequest, in LookupCaseInput) (*sdkmcp.CallToolResult, caselookup.Result, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, caselookup.Result{}, toolError(err)
	}
	result, err := t.cases.Lookup(ctx, sess, in.Number)
	if err != nil {
		return nil, caselookup.Result{}, toolError(err)
	}
	return nil, result, nil
}
