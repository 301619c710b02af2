package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/domain"
	"github.com/couchcryptid/radar-volume-etl/internal/grid"
	"github.com/couchcryptid/radar-volume-etl/internal/interp"
	"github.com/couchcryptid/radar-volume-etl/internal/observability"
	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// defaultBeamWidth applies to range-dependent radii when the site does not
// report its beam width.
const defaultBeamWidth = 1.0

// ProductConfig selects the products gridded for every volume.
type ProductConfig struct {
	// Extent is the half-width of the square grid centred on the site and
	// Step its cell size, both in meters.
	Extent float64
	Step   float64
	// CAPPIHeights lists constant-altitude slices in meters above sea level.
	CAPPIHeights []float64
	// Workers bounds row parallelism of the gridding engine.
	Workers int
	// MinROI and ROICoeff configure the range-dependent radius of influence
	// of the lowest-sweep scatter product. A zero MinROI disables it.
	MinROI   float64
	ROICoeff float64
}

// Axis returns the cell centres from -Extent to Extent.
func (c ProductConfig) Axis() []float64 {
	if c.Step <= 0 {
		return []float64{0}
	}
	n := int(2*c.Extent/c.Step) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = -c.Extent + float64(i)*c.Step
	}
	return out
}

// VolumeTransformer implements Transformer: it decodes the notified file and
// grids its reflectivity products.
type VolumeTransformer struct {
	decoder *Decoder
	cfg     ProductConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewTransformer creates a VolumeTransformer.
func NewTransformer(decoder *Decoder, cfg ProductConfig, metrics *observability.Metrics, logger *slog.Logger) *VolumeTransformer {
	return &VolumeTransformer{decoder: decoder, cfg: cfg, metrics: metrics, logger: logger}
}

func (t *VolumeTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	n, err := domain.ParseNotification(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	v, err := t.decoder.DecodeFile(ctx, n.Path)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	t.logger.Debug("volume decoded",
		"file", n.Path,
		"format", v.Format,
		"nsweeps", v.NSweeps(),
		"nrays", v.NRays(),
	)
	products, err := t.Products(v)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.Serialize(domain.NewProductEvent(n, v, products))
}

// Products grids the configured products of v. A volume without
// reflectivity yields no products.
func (t *VolumeTransformer) Products(v *radar.Volume) ([]radar.Product, error) {
	axis := t.cfg.Axis()
	opts := grid.Options{Workers: t.cfg.Workers}

	builders := []productBuilder{
		{"CR", func() (radar.Product, error) { return v.CompositeReflectivity(axis, axis, opts) }},
	}
	for _, h := range t.cfg.CAPPIHeights {
		builders = append(builders, productBuilder{"CAPPI", func() (radar.Product, error) {
			return v.ConstantAltitudeSlice(axis, axis, h, opts)
		}})
	}
	if t.cfg.MinROI > 0 && v.NSweeps() > 0 {
		beam := v.Site.BeamWidth
		if beam <= 0 {
			beam = defaultBeamWidth
		}
		radius := interp.RangeRadius(t.cfg.MinROI, beam, t.cfg.ROICoeff)
		builders = append(builders, productBuilder{"PPI", func() (radar.Product, error) {
			return v.ScatterPPI(lowestSweep(v), radar.MomentDBZ, axis, axis, radius, interp.Barnes)
		}})
	}

	products := make([]radar.Product, 0, len(builders))
	for _, b := range builders {
		start := time.Now()
		p, err := b.build()
		if errors.Is(err, radar.ErrMomentNotFound) {
			t.logger.Debug("volume has no reflectivity, skipping products", "site", v.Site.Code)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		t.metrics.GridDuration.WithLabelValues(b.label).Observe(time.Since(start).Seconds())
		products = append(products, p)
	}
	return products, nil
}

// productBuilder grids one product; label is its metric label.
type productBuilder struct {
	label string
	build func() (radar.Product, error)
}

// lowestSweep returns the index of the sweep with the smallest fixed angle.
func lowestSweep(v *radar.Volume) int {
	best := 0
	for i, s := range v.Sweeps {
		if s.FixedAngle < v.Sweeps[best].FixedAngle {
			best = i
		}
	}
	return best
}
