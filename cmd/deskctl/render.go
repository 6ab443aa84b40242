package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/view"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderHome(w io.Writer, home screen.Home) {
	t := newTable("", "Screen", "Title", "System", "Import")
	for _, s := range home.Screens {
		marker := ""
		if s.ID == home.Home {
			marker = "*"
		}
		importable := ""
		if s.Importable {
			importable = "yes"
		}
		t.Row(marker, s.ID, s.Title, s.System, importable)
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Role: %s", home.Role)))
	fmt.Fprintln(w, t.Render())
}

func renderView(w io.Writer, v screen.View) {
	fmt.Fprintln(w, titleStyle.Render(v.Screen.Title))
	if v.Error != "" {
		fmt.Fprintln(w, errorStyle.Render(v.Error))
	}
	if v.Import != nil {
		if v.Import.Uploaded {
			fmt.Fprintf(w, "Imported %s\n", v.Import.Filename)
		} else {
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Import of %s failed: %s", v.Import.Filename, v.Import.Error)))
		}
	}

	headers := make([]string, 0, len(v.Screen.Fields))
	for _, f := range v.Screen.Fields {
		label := f.Label
		if label == "" {
			label = f.Key
		}
		if v.Sort.Key == f.Key {
			label += sortArrow(v.Sort.Direction)
		}
		headers = append(headers, label)
	}
	t := newTable(headers...)
	for _, rec := range v.Rows {
		t.Row(cells(v.Screen.Fields, rec)...)
	}
	fmt.Fprintln(w, t.Render())

	var status []string
	status = append(status, fmt.Sprintf("page %d/%d, %d rows", v.Page.Number, v.Page.TotalPages, v.Page.TotalRows))
	for _, k := range slices.Sorted(maps.Keys(v.Filters)) {
		status = append(status, fmt.Sprintf("%s=%s", k, v.Filters[k]))
	}
	if v.Search != "" {
		status = append(status, fmt.Sprintf("search %q", v.Search))
	}
	fmt.Fprintln(w, mutedStyle.Render(strings.Join(status, "  ")))
}

func cells(fields []view.Field, rec view.Record) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		raw, ok := rec.Lookup(f.Key)
		if !ok {
			out = append(out, "")
			continue
		}
		out = append(out, f.Display(raw))
	}
	return out
}

func sortArrow(d view.Direction) string {
	if d == view.Descending {
		return " ↓"
	}
	return " ↑"
}

func renderCase(w io.Writer, res caselookup.Result) {
	switch res.State {
	case caselookup.StateFound:
		fmt.Fprintln(w, titleStyle.Render(res.Case.Text("number")))
		t := newTable("Field", "Value")
		for _, key := range sortedKeys(res.Case) {
			t.Row(key, res.Case.Text(key))
		}
		fmt.Fprintln(w, t.Render())
	case caselookup.StateNotFound:
		fmt.Fprintln(w, res.Message)
		if len(res.Suggestions) > 0 {
			fmt.Fprintln(w, mutedStyle.Render("Did you mean: "+strings.Join(res.Suggestions, ", ")))
		}
	default:
		fmt.Fprintln(w, errorStyle.Render(res.Message))
	}
}
