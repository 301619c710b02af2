package grid

import (
	"math"
	"sort"

	"github.com/couchcryptid/radar-volume-etl/internal/geo"
)

func fraction(t, t0, t1 float64) float64 {
	if t1 == t0 {
		return 0
	}
	return (t - t0) / (t1 - t0)
}

// Bilinear interpolates the value at (az, r) from the four corners of the
// polar cell [az0, az1] x [r0, r1]. vXY names the corner at azimuth X and
// range Y. Missing corners degrade the estimate in this order: a range pair
// at az0, a range pair at az1, an azimuth pair at r0, an azimuth pair at r1.
// With no complete pair the result is NaN.
func Bilinear(az, r, az0, az1, r0, r1, v00, v01, v10, v11 float64) float64 {
	fa := fraction(az, az0, az1)
	fr := fraction(r, r0, r1)
	ok00, ok01 := !math.IsNaN(v00), !math.IsNaN(v01)
	ok10, ok11 := !math.IsNaN(v10), !math.IsNaN(v11)
	switch {
	case ok00 && ok01 && ok10 && ok11:
		return v00*(1-fa)*(1-fr) + v10*fa*(1-fr) + v01*(1-fa)*fr + v11*fa*fr
	case ok00 && ok01:
		return v00*(1-fr) + v01*fr
	case ok10 && ok11:
		return v10*(1-fr) + v11*fr
	case ok00 && ok10:
		return v00*(1-fa) + v10*fa
	case ok01 && ok11:
		return v01*(1-fa) + v11*fa
	default:
		return math.NaN()
	}
}

// Linear interpolates between two samples at t0 and t1. When one side is
// missing the other is returned unchanged.
func Linear(t, t0, t1, v0, v1 float64) float64 {
	switch {
	case !math.IsNaN(v0) && !math.IsNaN(v1):
		f := fraction(t, t0, t1)
		return v0*(1-f) + v1*f
	case math.IsNaN(v0):
		return v1
	default:
		return v0
	}
}

// bracketAzimuth finds the ray pair around az. Azimuths wrap: past the last
// ray the pair is (last, first) with az shifted by -360, and before the first
// ray the lower neighbour is the last ray shifted by -360.
func bracketAzimuth(azs []float64, az float64) (i0, i1 int, a, a0, a1 float64) {
	n := len(azs)
	i1 = sort.Search(n, func(i int) bool { return azs[i] > az })
	if i1 == n {
		i1 = 0
		az -= 360
	}
	if i1 == 0 {
		i0 = n - 1
		a0 = azs[i0] - 360
	} else {
		i0 = i1 - 1
		a0 = azs[i0]
	}
	return i0, i1, az, a0, azs[i1]
}

// bracketRange finds the gate pair around r, which must lie within the axis.
func bracketRange(rng []float64, r float64) (j0, j1 int) {
	n := len(rng)
	if n == 1 {
		return 0, 0
	}
	j1 = sort.Search(n-1, func(i int) bool { return r < rng[i+1] }) + 1
	if j1 > n-1 {
		j1 = n - 1
	}
	return j1 - 1, j1
}

func (s Sweep) at(ia, jr int) float64 {
	row := s.Data[ia]
	if jr >= len(row) {
		return math.NaN()
	}
	return row[jr]
}

// interpolate estimates the sweep at antenna coordinates (az, r).
func (s Sweep) interpolate(az, r float64) float64 {
	n := len(s.Range)
	if n == 0 || len(s.Azimuth) == 0 || math.IsNaN(r) || r < s.Range[0] || r > s.Range[n-1] {
		return math.NaN()
	}
	i0, i1, a, a0, a1 := bracketAzimuth(s.Azimuth, az)
	j0, j1 := bracketRange(s.Range, r)
	return Bilinear(a, r, a0, a1, s.Range[j0], s.Range[j1],
		s.at(i0, j0), s.at(i0, j1), s.at(i1, j0), s.at(i1, j1))
}

// ValueAt estimates the sweep at the ground position (x, y).
func (s Sweep) ValueAt(x, y, siteHeight float64) float64 {
	az, r, _ := geo.CartesianToAntenna(x, y, s.Elevation, siteHeight)
	return s.interpolate(az, r)
}

// OneSweep grids a single sweep onto the mesh.
func OneSweep(s Sweep, siteHeight float64, m Mesh, opts Options) [][]float64 {
	return forEachRow(m, opts, func(ix int, out []float64) {
		for iy := range out {
			out[iy] = s.ValueAt(m.X[ix][iy], m.Y[ix][iy], siteHeight)
		}
	})
}
