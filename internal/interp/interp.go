// Package interp resamples scattered samples onto arbitrary query points with
// distance-weighted Barnes or Cressman kernels.
package interp

import (
	"context"
	"math"
	"runtime"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Kernel is a distance weighting function.
type Kernel int

const (
	Barnes Kernel = iota
	Cressman
)

func (k Kernel) String() string {
	if k == Cressman {
		return "cressman"
	}
	return "barnes"
}

// Weight returns the kernel weight of a sample at distance d for radius r.
func (k Kernel) Weight(d, r float64) float64 {
	d2, r2 := d*d, r*r
	if k == Cressman {
		return (r2 - d2) / (r2 + d2)
	}
	return math.Exp(-4 * d2 / r2)
}

// Radius is the radius of influence policy. With Fixed > 0 every query uses
// that radius; otherwise the radius grows with distance from the site at the
// origin: Min + distance_km * BeamWidth * Coeff.
type Radius struct {
	Fixed     float64
	Min       float64
	BeamWidth float64
	Coeff     float64
}

// FixedRadius returns a constant radius policy.
func FixedRadius(r float64) Radius {
	return Radius{Fixed: r}
}

// RangeRadius returns a radius growing with distance from the site.
func RangeRadius(min, beamWidth, coeff float64) Radius {
	return Radius{Min: min, BeamWidth: beamWidth, Coeff: coeff}
}

// At returns the radius for a query at (x, y).
func (r Radius) At(x, y float64) float64 {
	if r.Fixed > 0 {
		return r.Fixed
	}
	return r.Min + math.Hypot(x, y)/1000*r.BeamWidth*r.Coeff
}

// Point is a position in the site-centred plane, meters.
type Point struct {
	X, Y float64
}

type sample struct {
	geom.Point
	index int
}

// Index is a spatial index over scattered samples.
type Index struct {
	tree   *rtree.Rtree
	points []Point
	values []float64
}

// NewIndex indexes points and their values. Samples with NaN values are not
// indexed.
func NewIndex(points []Point, values []float64) *Index {
	return newIndex(points, values, true)
}

// NewNearestIndex indexes every point regardless of its value, so a nearest
// lookup can resolve to a missing sample.
func NewNearestIndex(points []Point, values []float64) *Index {
	return newIndex(points, values, false)
}

func newIndex(points []Point, values []float64, skipMissing bool) *Index {
	idx := &Index{
		tree:   rtree.NewTree(25, 50),
		points: points,
		values: values,
	}
	for i, p := range points {
		if i >= len(values) || (skipMissing && math.IsNaN(values[i])) {
			continue
		}
		idx.tree.Insert(sample{Point: geom.Point{X: p.X, Y: p.Y}, index: i})
	}
	return idx
}

// Within returns the indices of samples no farther than r from q and their
// distances.
func (idx *Index) Within(q Point, r float64) (indices []int, dists []float64) {
	box := &geom.Bounds{
		Min: geom.Point{X: q.X - r, Y: q.Y - r},
		Max: geom.Point{X: q.X + r, Y: q.Y + r},
	}
	for _, g := range idx.tree.SearchIntersect(box) {
		s := g.(sample)
		d := math.Hypot(s.X-q.X, s.Y-q.Y)
		if d <= r {
			indices = append(indices, s.index)
			dists = append(dists, d)
		}
	}
	return indices, dists
}

// Nearest returns the closest sample within maxDist of q.
func (idx *Index) Nearest(q Point, maxDist float64) (index int, dist float64, ok bool) {
	indices, dists := idx.Within(q, maxDist)
	if len(indices) == 0 {
		return 0, 0, false
	}
	best := floats.MinIdx(dists)
	return indices[best], dists[best], true
}

// Value returns the value of sample i.
func (idx *Index) Value(i int) float64 {
	return idx.values[i]
}

// Interpolate estimates every query point. A query with no samples inside
// its radius, or whose weights sum to zero, is NaN.
func (idx *Index) Interpolate(queries []Point, radius Radius, kernel Kernel) []float64 {
	out := make([]float64, len(queries))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	const chunk = 256
	for start := 0; start < len(queries); start += chunk {
		end := min(start+chunk, len(queries))
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = idx.estimate(queries[i], radius, kernel)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (idx *Index) estimate(q Point, radius Radius, kernel Kernel) float64 {
	r := radius.At(q.X, q.Y)
	indices, dists := idx.Within(q, r)
	if len(indices) == 0 {
		return math.NaN()
	}
	w := make([]float64, len(indices))
	v := make([]float64, len(indices))
	for i, d := range dists {
		w[i] = kernel.Weight(d, r)
		v[i] = idx.values[indices[i]]
	}
	sum := floats.Sum(w)
	if sum == 0 {
		return math.NaN()
	}
	return floats.Dot(w, v) / sum
}

// Interpolate indexes points and estimates values at queries in one call.
func Interpolate(points []Point, values []float64, queries []Point, radius Radius, kernel Kernel) []float64 {
	return NewIndex(points, values).Interpolate(queries, radius, kernel)
}
