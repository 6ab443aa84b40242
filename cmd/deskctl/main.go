// Command deskctl is a terminal client for the deskview API.
package main

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/view"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	server string
	token  string
}

func (o *globalOptions) client() *apiClient {
	return newAPIClient(o.server, o.token)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "deskctl",
		Short:        "Browse deskview dashboards from the terminal",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("DESKVIEW_URL", "http://localhost:8080"), "deskview server URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("DESKVIEW_TOKEN"), "bearer token")

	root.AddCommand(
		newScreensCmd(opts),
		newViewCmd(opts),
		newCaseCmd(opts),
		newImportCmd(opts),
		newRefreshCmd(opts),
		newAPIKeyCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newScreensCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "screens",
		Short: "List the screens your role may open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var home screen.Home
			if err := opts.client().getJSON(cmd.Context(), "/api/home", nil, &home); err != nil {
				return err
			}
			renderHome(cmd.OutOrStdout(), home)
			return nil
		},
	}
}

type viewOptions struct {
	filters []string
	search  string
	clear   bool
	sort    string
	orderBy string
	page    int
	size    int
}

func newViewCmd(opts *globalOptions) *cobra.Command {
	vo := viewOptions{}
	cmd := &cobra.Command{
		Use:   "view <screen>",
		Short: "Show a screen's rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(vo.filters)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c := opts.client()
			id := args[0]

			if vo.clear {
				if err := c.do(ctx, "DELETE", screenPath(id, "/filters"), nil, "", nil); err != nil {
					return err
				}
			}
			for _, key := range slices.Sorted(maps.Keys(filters)) {
				if err := c.postJSON(ctx, screenPath(id, "/filters"), map[string]string{"key": key, "value": filters[key]}, nil); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("search") {
				if err := c.postJSON(ctx, screenPath(id, "/search"), map[string]string{"term": vo.search}, nil); err != nil {
					return err
				}
			}
			if vo.sort != "" {
				if err := c.postJSON(ctx, screenPath(id, "/sort"), map[string]string{"key": vo.sort}, nil); err != nil {
					return err
				}
			}

			q := url.Values{}
			q.Set("page", strconv.Itoa(vo.page))
			if cmd.Flags().Changed("size") {
				q.Set("size", strconv.Itoa(vo.size))
			}
			if cmd.Flags().Changed("order-by") {
				q.Set("order_by", vo.orderBy)
			}
			var v screen.View
			if err := c.getJSON(ctx, screenPath(id, "/view"), q, &v); err != nil {
				return err
			}
			renderView(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vo.filters, "filter", nil, "filter as key=value; an empty value clears it (repeatable)")
	cmd.Flags().StringVar(&vo.search, "search", "", "free-text search term")
	cmd.Flags().BoolVar(&vo.clear, "clear", false, "clear filters and search first")
	cmd.Flags().StringVar(&vo.sort, "sort", "", "toggle sorting by this field")
	cmd.Flags().StringVar(&vo.orderBy, "order-by", "", `set the sort, e.g. "visit_date desc"`)
	cmd.Flags().IntVar(&vo.page, "page", 1, "page number")
	cmd.Flags().IntVar(&vo.size, "size", 0, "rows per page; 0 shows every row")
	return cmd
}

func parseFilters(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, f := range raw {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: want key=value", f)
		}
		out[key] = value
	}
	return out, nil
}

func newCaseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "case <number>",
		Short: "Look up an export-control case",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number := ""
			if len(args) == 1 {
				number = args[0]
			}
			var res caselookup.Result
			q := url.Values{"number": {number}}
			if err := opts.client().getJSON(cmd.Context(), "/api/cases", q, &res); err != nil {
				return err
			}
			renderCase(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <screen> <file>",
		Short: "Upload a CSV or JSON file to a screen's import endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v screen.View
			if err := opts.client().upload(cmd.Context(), screenPath(args[0], "/import"), args[1], &v); err != nil {
				return err
			}
			renderView(cmd.OutOrStdout(), v)
			if v.Import != nil && !v.Import.Uploaded {
				return fmt.Errorf("import failed: %s", v.Import.Error)
			}
			return nil
		},
	}
}

func newRefreshCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <screen>",
		Short: "Refetch a screen from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v screen.View
			if err := opts.client().postJSON(cmd.Context(), screenPath(args[0], "/refresh"), nil, &v); err != nil {
				return err
			}
			renderView(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func sortedKeys(rec view.Record) []string {
	return slices.Sorted(maps.Keys(rec))
}
