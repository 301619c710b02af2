package radar

import (
	"sync"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/geo"
)

// Sweep is an index view of one antenna rotation within a Volume.
type Sweep struct {
	Number int `json:"number"`
	// StartRay and EndRay are inclusive indices into the volume radial arrays.
	StartRay         int     `json:"start_ray"`
	EndRay           int     `json:"end_ray"`
	FixedAngle       float64 `json:"fixed_angle"`
	Nyquist          float64 `json:"nyquist"`
	UnambiguousRange float64 `json:"unambiguous_range"`
	// Resolution is the gate spacing in meters.
	Resolution float64 `json:"resolution"`
}

// Rays returns the number of radials in the sweep.
func (s Sweep) Rays() int {
	return s.EndRay - s.StartRay + 1
}

// Volume is a normalized radar volume scan. It is read-only after
// construction apart from its product cache.
type Volume struct {
	Format   string
	TaskName string
	Site     Site
	ScanType ScanType
	Start    time.Time
	End      time.Time

	// Per-radial arrays, all of length NRays.
	Azimuth   []float64
	Elevation []float64
	Times     []time.Time

	// Range holds gate distances in meters for the longest moment.
	Range []float64
	// Fields maps a moment to a [ray][gate] array. Every row of one moment
	// has the same length.
	Fields map[MomentKind][][]float64
	Sweeps []Sweep

	IgnoredCodes []int

	productsOnce sync.Once
	products     *productCache
}

// NRays returns the number of radials.
func (v *Volume) NRays() int { return len(v.Azimuth) }

// NSweeps returns the number of sweeps.
func (v *Volume) NSweeps() int { return len(v.Sweeps) }

// FixedAngles returns the fixed angle of every sweep in order.
func (v *Volume) FixedAngles() []float64 {
	out := make([]float64, len(v.Sweeps))
	for i, s := range v.Sweeps {
		out[i] = s.FixedAngle
	}
	return out
}

// Moments lists the moments present in the volume.
func (v *Volume) Moments() []MomentKind {
	out := make([]MomentKind, 0, len(v.Fields))
	for k := MomentDBT; k <= MomentZDRc; k++ {
		if _, ok := v.Fields[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// SweepField returns the [ray][gate] rows of moment k for sweep i.
func (v *Volume) SweepField(i int, k MomentKind) ([][]float64, bool) {
	rows, ok := v.Fields[k]
	if !ok || i < 0 || i >= len(v.Sweeps) {
		return nil, false
	}
	s := v.Sweeps[i]
	return rows[s.StartRay : s.EndRay+1], true
}

// SweepAzimuth returns the azimuths of sweep i.
func (v *Volume) SweepAzimuth(i int) []float64 {
	s := v.Sweeps[i]
	return v.Azimuth[s.StartRay : s.EndRay+1]
}

// SweepElevation returns the elevations of sweep i.
func (v *Volume) SweepElevation(i int) []float64 {
	s := v.Sweeps[i]
	return v.Elevation[s.StartRay : s.EndRay+1]
}

// FieldRange returns gate distances matching the row length of moment k.
func (v *Volume) FieldRange(k MomentKind) []float64 {
	rows, ok := v.Fields[k]
	if !ok || len(rows) == 0 {
		return nil
	}
	n := len(rows[0])
	if n > len(v.Range) {
		n = len(v.Range)
	}
	return v.Range[:n]
}

// Coordinates returns site-relative x, y and height above sea level of every
// gate of moment k, indexed [ray][gate].
func (v *Volume) Coordinates(k MomentKind) (x, y, z [][]float64) {
	rng := v.FieldRange(k)
	x = make([][]float64, v.NRays())
	y = make([][]float64, v.NRays())
	z = make([][]float64, v.NRays())
	for r := range x {
		x[r] = make([]float64, len(rng))
		y[r] = make([]float64, len(rng))
		z[r] = make([]float64, len(rng))
		for g, rg := range rng {
			x[r][g], y[r][g], z[r][g] = geo.AntennaToCartesian(rg, v.Azimuth[r], v.Elevation[r], v.Site.Altitude)
		}
	}
	return x, y, z
}

// PPIView is one sweep of one moment with gate coordinates attached.
type PPIView struct {
	FixedAngle float64
	Azimuth    []float64
	Range      []float64
	// X, Y, Z are [ray][gate] Cartesian coordinates relative to the site, Z
	// above sea level.
	X, Y, Z [][]float64
	// Lon and Lat are filled by GeoPPI.
	Lon, Lat [][]float64
	Data     [][]float64
}

// PPI returns sweep i of moment k with Cartesian gate coordinates.
func (v *Volume) PPI(i int, k MomentKind) (PPIView, bool) {
	rows, ok := v.SweepField(i, k)
	if !ok {
		return PPIView{}, false
	}
	az := v.SweepAzimuth(i)
	el := v.SweepElevation(i)
	rng := v.FieldRange(k)
	view := PPIView{
		FixedAngle: v.Sweeps[i].FixedAngle,
		Azimuth:    az,
		Range:      rng,
		X:          make([][]float64, len(az)),
		Y:          make([][]float64, len(az)),
		Z:          make([][]float64, len(az)),
		Data:       rows,
	}
	for r := range az {
		view.X[r] = make([]float64, len(rng))
		view.Y[r] = make([]float64, len(rng))
		view.Z[r] = make([]float64, len(rng))
		for g, rg := range rng {
			view.X[r][g], view.Y[r][g], view.Z[r][g] = geo.AntennaToCartesian(rg, az[r], el[r], v.Site.Altitude)
		}
	}
	return view, true
}

// GeoPPI is PPI with longitude and latitude of every gate added.
func (v *Volume) GeoPPI(i int, k MomentKind) (PPIView, bool) {
	view, ok := v.PPI(i, k)
	if !ok {
		return view, false
	}
	view.Lon = make([][]float64, len(view.X))
	view.Lat = make([][]float64, len(view.X))
	for r := range view.X {
		view.Lon[r], view.Lat[r] = geo.CartesianToGeographic(view.X[r], view.Y[r], v.Site.Longitude, v.Site.Latitude)
	}
	return view, true
}
