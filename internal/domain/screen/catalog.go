package screen

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rpggio/deskview/internal/identity"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// LoadCatalog reads the catalog at path, or the embedded default when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks screen ids, schemas, and role references.
func (c *Catalog) Validate() error {
	var errs []error
	ids := make(map[string]bool, len(c.Screens))
	for i, s := range c.Screens {
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, fmt.Errorf("screen %d: id is required", i))
			continue
		}
		if ids[s.ID] {
			errs = append(errs, fmt.Errorf("screen %q: duplicate id", s.ID))
		}
		ids[s.ID] = true
		if strings.TrimSpace(s.Path) == "" {
			errs = append(errs, fmt.Errorf("screen %q: path is required", s.ID))
		}
		if err := s.Schema.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("screen %q: %w", s.ID, err))
		}
		if key := s.DefaultSort.Key; key != "" {
			if _, ok := s.Schema.Field(key); !ok {
				errs = append(errs, fmt.Errorf("screen %q: default sort key %q is not a field", s.ID, key))
			}
		}
	}

	if len(c.Roles) == 0 {
		errs = append(errs, errors.New("no roles defined"))
	}
	for role, rs := range c.Roles {
		if !role.Known() {
			errs = append(errs, fmt.Errorf("role %q: unknown role", role))
		}
		for _, id := range rs.Screens {
			if !ids[id] {
				errs = append(errs, fmt.Errorf("role %q: unknown screen %q", role, id))
			}
		}
		if !slices.Contains(rs.Screens, rs.Home) {
			errs = append(errs, fmt.Errorf("role %q: home %q is not one of its screens", role, rs.Home))
		}
	}

	for _, role := range c.CaseLookup.Roles {
		if !role.Known() {
			errs = append(errs, fmt.Errorf("case_lookup: unknown role %q", role))
		}
	}
	if len(c.CaseLookup.Roles) > 0 && strings.TrimSpace(c.CaseLookup.Path) == "" {
		errs = append(errs, errors.New("case_lookup: path is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

// AllowsCaseLookup reports whether role may use the case lookup.
func (c *Catalog) AllowsCaseLookup(role identity.Role) bool {
	return slices.Contains(c.CaseLookup.Roles, role)
}
