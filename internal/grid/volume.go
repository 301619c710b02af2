package grid

import (
	"math"
	"sort"

	"github.com/couchcryptid/radar-volume-etl/internal/geo"
)

// Composite takes the per-cell maximum over every sweep, ignoring NaN. A cell
// missing in every sweep stays NaN.
func Composite(sweeps []Sweep, siteHeight float64, m Mesh, opts Options) [][]float64 {
	if len(sweeps) == 0 {
		nx, ny := m.Shape()
		return filled(nx, ny)
	}
	return forEachRow(m, opts, func(ix int, out []float64) {
		for iy := range out {
			best := math.NaN()
			for _, s := range sweeps {
				v := s.ValueAt(m.X[ix][iy], m.Y[ix][iy], siteHeight)
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(best) || v > best {
					best = v
				}
			}
			out[iy] = best
		}
	})
}

// ConstantAltitude slices the volume at height meters above sea level.
// Sweeps must be ordered by ascending elevation. Each cell maps to the
// virtual elevation of the beam reaching height above it; cells outside the
// scanned elevations are NaN. Otherwise the two bracketing sweeps are
// interpolated at the cell and blended by elevation.
func ConstantAltitude(sweeps []Sweep, siteHeight, height float64, m Mesh, opts Options) [][]float64 {
	n := len(sweeps)
	if n == 0 {
		nx, ny := m.Shape()
		return filled(nx, ny)
	}
	fixed := make([]float64, n)
	for i, s := range sweeps {
		fixed[i] = s.Elevation
	}
	return forEachRow(m, opts, func(ix int, out []float64) {
		for iy := range out {
			x, y := m.X[ix][iy], m.Y[ix][iy]
			_, _, el := geo.CartesianXYZToAntenna(x, y, height, siteHeight)
			if el < fixed[0] || el > fixed[n-1] {
				out[iy] = math.NaN()
				continue
			}
			if n == 1 {
				out[iy] = sweeps[0].ValueAt(x, y, siteHeight)
				continue
			}
			ie := sort.Search(n, func(i int) bool { return el < fixed[i] })
			if ie == n {
				ie = n - 1
			}
			lo, hi := sweeps[ie-1], sweeps[ie]
			out[iy] = Linear(el, lo.Elevation, hi.Elevation,
				lo.ValueAt(x, y, siteHeight), hi.ValueAt(x, y, siteHeight))
		}
	})
}
