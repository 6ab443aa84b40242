package devapi

import (
	"context"
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed holds fixtures per tenant and collection.
type Seed struct {
	Tenants map[string]map[string][]map[string]any `yaml:"tenants"`
}

// LoadSeed reads a seed file. An empty path loads the built-in demo data.
func LoadSeed(path string) (*Seed, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// Apply upserts every fixture of the seed into store and returns how many
// were written.
func (s *Seed) Apply(ctx context.Context, store Store) (int, error) {
	total := 0
	for _, tenantID := range slices.Sorted(maps.Keys(s.Tenants)) {
		collections := s.Tenants[tenantID]
		for _, collection := range slices.Sorted(maps.Keys(collections)) {
			rows := collections[collection]
			for _, row := range rows {
				normalize(row)
			}
			n, err := store.PutFixtures(ctx, tenantID, collection, toFixtures(rows))
			if err != nil {
				return total, fmt.Errorf("seed %s/%s: %w", tenantID, collection, err)
			}
			total += n
		}
	}
	return total, nil
}

// normalize renders unquoted YAML timestamps as strings.
func normalize(row map[string]any) {
	for k, v := range row {
		if t, ok := v.(time.Time); ok {
			row[k] = formatTime(t)
		}
	}
}
