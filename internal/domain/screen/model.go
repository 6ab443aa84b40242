package screen

import (
	"time"

	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/view"
)

// Screen is one dashboard: a backend collection rendered through the
// generic view engine.
type Screen struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	System      string         `yaml:"system"`
	Path        string         `yaml:"path"`
	Envelope    string         `yaml:"envelope"`
	ImportPath  string         `yaml:"import_path"`
	Schema      view.Schema    `yaml:"schema"`
	DefaultSort view.SortState `yaml:"default_sort"`
}

// Importable reports whether the screen accepts bulk uploads.
func (s Screen) Importable() bool {
	return s.ImportPath != ""
}

// Descriptor is the public description of a screen.
type Descriptor struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	System      string         `json:"system"`
	Importable  bool           `json:"importable"`
	Fields      []view.Field   `json:"fields"`
	DefaultSort view.SortState `json:"default_sort"`
}

// Describe returns the public description of s.
func (s Screen) Describe() Descriptor {
	return Descriptor{
		ID:          s.ID,
		Title:       s.Title,
		System:      s.System,
		Importable:  s.Importable(),
		Fields:      s.Schema.Fields,
		DefaultSort: s.DefaultSort,
	}
}

// RoleScreens lists what one role may open.
type RoleScreens struct {
	Home    string   `yaml:"home"`
	Screens []string `yaml:"screens"`
}

// CaseLookup configures the export-control case lookup.
type CaseLookup struct {
	Path        string          `yaml:"path"`
	Envelope    string          `yaml:"envelope"`
	NumberField string          `yaml:"number_field"`
	Roles       []identity.Role `yaml:"roles"`
}

// Catalog is the full screen configuration of a deployment.
type Catalog struct {
	Screens    []Screen                      `yaml:"screens"`
	Roles      map[identity.Role]RoleScreens `yaml:"roles"`
	CaseLookup CaseLookup                    `yaml:"case_lookup"`
}

// Screen returns the screen with the given id.
func (c *Catalog) Screen(id string) (Screen, bool) {
	for _, s := range c.Screens {
		if s.ID == id {
			return s, true
		}
	}
	return Screen{}, false
}

// Home is what a role lands on.
type Home struct {
	Role    identity.Role `json:"role"`
	Home    string        `json:"home"`
	Screens []Descriptor  `json:"screens"`
}

// View is the rendered state of one mounted screen instance.
type View struct {
	InstanceID string            `json:"instance_id"`
	Screen     Descriptor        `json:"screen"`
	Rows       []view.Record     `json:"rows"`
	Page       view.PageInfo     `json:"page"`
	Filters    map[string]string `json:"filters,omitempty"`
	Search     string            `json:"search,omitempty"`
	Sort       view.SortState    `json:"sort"`
	Loading    bool              `json:"loading"`
	Loaded     bool              `json:"loaded"`
	Error      string            `json:"error,omitempty"`
	FetchedAt  *time.Time        `json:"fetched_at,omitempty"`
	Import     *ImportResult     `json:"import,omitempty"`
}

// ImportResult reports the outcome of a bulk upload.
type ImportResult struct {
	Filename string `json:"filename"`
	Uploaded bool   `json:"uploaded"`
	Error    string `json:"error,omitempty"`
}
