package registry

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
)

// Table is an in-memory registry.
type Table struct {
	stations map[string]Station
}

// NewTable indexes stations by id. Later duplicates win.
func NewTable(stations []Station) *Table {
	t := &Table{stations: make(map[string]Station, len(stations))}
	for _, s := range stations {
		t.stations[s.ID] = s
	}
	return t
}

// Lookup returns the station with the given id.
func (t *Table) Lookup(_ context.Context, id string) (Station, error) {
	s, ok := t.stations[id]
	if !ok {
		return Station{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Len returns the number of stations.
func (t *Table) Len() int { return len(t.stations) }

// LoadFile reads a station table from a JSON, YAML or TOML file holding a
// top-level "stations" list.
func LoadFile(path string) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read station registry %s: %w", path, err)
	}
	var stations []Station
	if err := v.UnmarshalKey("stations", &stations); err != nil {
		return nil, fmt.Errorf("parse station registry %s: %w", path, err)
	}
	for i, s := range stations {
		if s.ID == "" {
			return nil, fmt.Errorf("station registry %s: entry %d has no id", path, i)
		}
	}
	return NewTable(stations), nil
}
