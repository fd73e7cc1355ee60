package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"gopkg.in/yaml.v3"
)

// CoordinateOverrides is the YAML document accepted by COORDINATES_FILE:
//
//	cities:
//	  SOGAMOSO: {lat: 5.7145, lng: -72.9339}
//	aliases:
//	  SANTA FE DE BOGOTÁ: BOGOTÁ
type CoordinateOverrides struct {
	Cities  map[string]domain.Coordinate `yaml:"cities"`
	Aliases map[string]string            `yaml:"aliases"`
}

// LoadCoordinateTable returns the built-in coordinate table with the
// overrides from path applied. An empty path returns the built-in table.
func LoadCoordinateTable(path string) (*domain.CoordinateTable, error) {
	table := domain.NewCoordinateTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coordinates file: %w", err)
	}

	var overrides CoordinateOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse coordinates file %s: %w", path, err)
	}
	if err := overrides.Apply(table); err != nil {
		return nil, fmt.Errorf("apply coordinates file %s: %w", path, err)
	}
	return table, nil
}

// Apply writes cities before aliases so an alias may point at a city added
// in the same document.
func (o CoordinateOverrides) Apply(table *domain.CoordinateTable) error {
	for city, c := range o.Cities {
		if c.IsZero() {
			return fmt.Errorf("city %q: missing lat/lng", city)
		}
		table.Set(city, c)
	}
	for alias, city := range o.Aliases {
		if err := table.SetAlias(alias, city); err != nil {
			return err
		}
	}
	return nil
}
