package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `deskview renders role-gated dashboards over the organization's visit, project, export-control and reporting systems.

Model:
- Screen: one dashboard (visit requests, hosted visits, projects, cases, reports). Your role decides which screens you may open.
- View: the filtered, searched, sorted and paged rows of an open screen. Filters and sort stick to the screen until you change them.
- Case lookup: find an export-control case by its number.

Workflow:
1) Call list_screens to see your home screen and what else you can open.
2) Call view_screen with a screen_id. It opens the screen on first use. Pass filters, search, order_by ("visit_date desc") and page as needed.
3) Call toggle_sort to flip the sort on a column, refresh_screen to refetch from the backend.
4) Call lookup_case with a case number. A miss returns close matches in suggestions.

Backend failures do not fail the tool call: the view's error field carries the message.

Docs:
- deskview://docs/index
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "deskview://docs/index",
		Name:        "docs_index",
		Title:       "deskview docs index",
		Description: "How screens, views and case lookups behave.",
		Content: `# deskview: Agent Docs

## Filters

Filters are exact matches on a field. Flag fields (yes/no columns) take the
label shown in the screen, for example "Visited" or "Not Visited". A flag
that depends on another flag (approved depends on submitted on the projects
screen) only matches rows where the prerequisite is set.

A filter with an empty value is cleared. Passing filters to view_screen
replaces every active filter.

## Search

Search is case-insensitive and matches any searchable field. Screens without
searchable fields search every field.

## Sorting

One column at a time. Dates sort chronologically whatever their format;
rows without a value sort first in ascending order. Choosing the active
column again flips the direction.

## Paging

Pages are 1-based. A page past the end returns the last page. size=0 returns
every row.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
