package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/radar-volume-etl/internal/format"
	"github.com/couchcryptid/radar-volume-etl/internal/frame"
	"github.com/couchcryptid/radar-volume-etl/internal/normalize"
	"github.com/couchcryptid/radar-volume-etl/internal/observability"
	"github.com/couchcryptid/radar-volume-etl/internal/radar"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

// unknownFormat labels decode errors raised before a format is known.
const unknownFormat = "unknown"

// Decoder turns base-data files into normalized volumes.
type Decoder struct {
	registry registry.Registry
	repair   bool
	metrics  *observability.Metrics
}

// NewDecoder creates a Decoder. reg may be nil when no station registry is
// configured. metrics may be nil for command-line use.
func NewDecoder(reg registry.Registry, repair bool, metrics *observability.Metrics) *Decoder {
	return &Decoder{registry: reg, repair: repair, metrics: metrics}
}

// DecodeFile reads, detects, decodes and normalizes the file at path.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*radar.Volume, error) {
	data, _, err := frame.ReadFile(path)
	if err != nil {
		d.failed(unknownFormat)
		return nil, err
	}
	return d.Decode(ctx, filepath.Base(path), data)
}

// Decode detects, decodes and normalizes an in-memory file. name is used
// for registry lookups.
func (d *Decoder) Decode(ctx context.Context, name string, data []byte) (*radar.Volume, error) {
	opts := format.Options{FileName: name, Registry: d.registry}
	f, err := format.Detect(ctx, data, opts)
	if err != nil {
		d.failed(unknownFormat)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	raw, err := format.DecodeAs(ctx, f, data, opts)
	if err != nil {
		d.failed(string(f))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	v, err := normalize.Build(raw, normalize.Options{Repair: d.repair})
	if err != nil {
		d.failed(string(f))
		return nil, fmt.Errorf("%s: normalize: %w", name, err)
	}
	if d.metrics != nil {
		d.metrics.FilesDecoded.WithLabelValues(string(f)).Inc()
	}
	return v, nil
}

func (d *Decoder) failed(f string) {
	if d.metrics != nil {
		d.metrics.DecodeErrors.WithLabelValues(f).Inc()
	}
}
