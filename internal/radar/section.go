package radar

import (
	"fmt"
	"math"

	"github.com/couchcryptid/radar-volume-etl/internal/geo"
	"github.com/couchcryptid/radar-volume-etl/internal/interp"
)

// SectionSweep is the part of a cross-section contributed by one sweep.
type SectionSweep struct {
	Sweep      int
	FixedAngle float64
	// Azimuth is the ray used by an RHI section.
	Azimuth float64
	// Distance is horizontal distance in meters: along the section line for
	// a vertical section, from the site for an RHI section.
	Distance []float64
	// Height of each sample above sea level in meters.
	Height []float64
	Value  []float64
}

// Point2 is a position in the site-centred plane, meters.
type Point2 struct {
	X, Y float64
}

// VerticalSection samples moment k along the segment from start to end.
// For every sweep, points spaced half a gate apart are matched to the
// nearest gate centre; a match farther than two gates away is missing.
func (v *Volume) VerticalSection(start, end Point2, k MomentKind) ([]SectionSweep, error) {
	if _, ok := v.Fields[k]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMomentNotFound, k)
	}
	length := math.Hypot(end.X-start.X, end.Y-start.Y)
	out := make([]SectionSweep, 0, len(v.Sweeps))
	for i, s := range v.Sweeps {
		res := s.Resolution
		if res <= 0 {
			continue
		}
		step := res / 2
		n := int(math.Floor(length/step)) + 1
		queries := make([]interp.Point, n)
		sec := SectionSweep{
			Sweep:      i,
			FixedAngle: s.FixedAngle,
			Distance:   make([]float64, n),
			Height:     make([]float64, n),
			Value:      make([]float64, n),
		}
		for j := range queries {
			d := float64(j) * step
			f := 0.0
			if length > 0 {
				f = d / length
			}
			queries[j] = interp.Point{X: start.X + f*(end.X-start.X), Y: start.Y + f*(end.Y-start.Y)}
			sec.Distance[j] = d
			_, _, sec.Height[j] = geo.CartesianToAntenna(queries[j].X, queries[j].Y, s.FixedAngle, v.Site.Altitude)
		}

		idx := v.gateIndex(i, k, start, end, 2*res)
		for j, q := range queries {
			sec.Value[j] = Missing
			if idx == nil {
				continue
			}
			if g, _, ok := idx.Nearest(q, 2*res); ok {
				sec.Value[j] = idx.Value(g)
			}
		}
		out = append(out, sec)
	}
	return out, nil
}

// gateIndex indexes the gate centres of sweep i inside the bounding box of
// the segment grown by margin. It returns nil when no gate falls inside.
func (v *Volume) gateIndex(i int, k MomentKind, a, b Point2, margin float64) *interp.Index {
	minX, maxX := math.Min(a.X, b.X)-margin, math.Max(a.X, b.X)+margin
	minY, maxY := math.Min(a.Y, b.Y)-margin, math.Max(a.Y, b.Y)+margin

	rows, _ := v.SweepField(i, k)
	az := v.SweepAzimuth(i)
	el := v.SweepElevation(i)
	rng := v.FieldRange(k)
	var points []interp.Point
	var values []float64
	for r := range rows {
		for g, rg := range rng {
			x, y, _ := geo.AntennaToCartesian(rg, az[r], el[r], v.Site.Altitude)
			if x < minX || x > maxX || y < minY || y > maxY {
				continue
			}
			points = append(points, interp.Point{X: x, Y: y})
			values = append(values, rows[r][g])
		}
	}
	if len(points) == 0 {
		return nil
	}
	return interp.NewNearestIndex(points, values)
}

// RHISection returns, for each sweep, the ray nearest azimuth az. A sweep
// whose fixed angle is lower than the sweep before it belongs to a repeated
// scan and is skipped.
func (v *Volume) RHISection(az float64, k MomentKind) ([]SectionSweep, error) {
	if _, ok := v.Fields[k]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMomentNotFound, k)
	}
	rng := v.FieldRange(k)
	out := make([]SectionSweep, 0, len(v.Sweeps))
	for i, s := range v.Sweeps {
		if i > 0 && s.FixedAngle < v.Sweeps[i-1].FixedAngle {
			continue
		}
		azs := v.SweepAzimuth(i)
		best, bestDiff := 0, math.Inf(1)
		for r, a := range azs {
			d := math.Abs(a - az)
			d = math.Min(d, 360-d)
			if d < bestDiff {
				best, bestDiff = r, d
			}
		}
		rows, _ := v.SweepField(i, k)
		el := v.SweepElevation(i)[best]
		sec := SectionSweep{
			Sweep:      i,
			FixedAngle: s.FixedAngle,
			Azimuth:    azs[best],
			Distance:   make([]float64, len(rng)),
			Height:     make([]float64, len(rng)),
			Value:      append([]float64(nil), rows[best]...),
		}
		for g, rg := range rng {
			x, y, z := geo.AntennaToCartesian(rg, azs[best], el, v.Site.Altitude)
			sec.Distance[g] = math.Hypot(x, y)
			sec.Height[g] = z
		}
		out = append(out, sec)
	}
	return out, nil
}
