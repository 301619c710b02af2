// Package registry resolves radar station metadata by station id. Stations
// come from a local table file or a remote HTTP service and are read-only.
package registry

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// ErrNotFound means the registry has no entry for a station id.
var ErrNotFound = errors.New("station not found")

// IsNotFound reports whether err means an unknown station.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Station is one registry entry.
type Station struct {
	ID        string  `json:"id" mapstructure:"id"`
	Name      string  `json:"name" mapstructure:"name"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
	// Altitude in meters above sea level.
	Altitude float64 `json:"altitude" mapstructure:"altitude"`
	// Frequency in GHz.
	Frequency float64 `json:"frequency" mapstructure:"frequency"`
	// DataType is the radar generation, e.g. SA, CB or CC.
	DataType string `json:"data_type" mapstructure:"data_type"`
}

// Site converts the entry to decoder site metadata.
func (s Station) Site() radar.Site {
	return radar.Site{
		Code:      s.ID,
		Name:      s.Name,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Altitude:  s.Altitude,
		Frequency: s.Frequency,
	}
}

// Registry looks up stations by id.
type Registry interface {
	Lookup(ctx context.Context, id string) (Station, error)
}

// StationID extracts the station id embedded in a base-data file name: the
// first run of four digits in its base name, as in Z_RADR_I_Z9250_....
func StationID(fileName string) (string, bool) {
	name := filepath.Base(fileName)
	run := 0
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			run = 0
			continue
		}
		run++
		if run == 4 {
			return name[i-3 : i+1], true
		}
	}
	return "", false
}
