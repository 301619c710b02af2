// Package grid resamples polar radar sweeps onto regular Cartesian meshes.
//
// Values are NaN where no estimate exists. A Mesh is indexed [ix][iy], x
// varying along the first axis.
package grid

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/radar-volume-etl/internal/geo"
)

// Sweep is one elevation of polar data ready for gridding.
type Sweep struct {
	// Azimuth must be sorted ascending within [0, 360).
	Azimuth []float64
	// Range holds ascending gate distances in meters.
	Range []float64
	// Elevation is the sweep fixed angle in degrees.
	Elevation float64
	// Data is indexed [azimuth][gate].
	Data [][]float64
}

// SortByAzimuth returns a copy of s with rays ordered by azimuth.
func SortByAzimuth(s Sweep) Sweep {
	idx := make([]int, len(s.Azimuth))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Azimuth[idx[a]] < s.Azimuth[idx[b]] })
	out := Sweep{
		Azimuth:   make([]float64, len(idx)),
		Range:     s.Range,
		Elevation: s.Elevation,
		Data:      make([][]float64, len(idx)),
	}
	for i, j := range idx {
		out.Azimuth[i] = s.Azimuth[j]
		out.Data[i] = s.Data[j]
	}
	return out
}

// Mesh holds the Cartesian coordinates of every output cell.
type Mesh struct {
	X [][]float64
	Y [][]float64
}

// NewMesh builds the ij mesh of two axes.
func NewMesh(xAxis, yAxis []float64) Mesh {
	m := Mesh{X: make([][]float64, len(xAxis)), Y: make([][]float64, len(xAxis))}
	for i, x := range xAxis {
		m.X[i] = make([]float64, len(yAxis))
		m.Y[i] = make([]float64, len(yAxis))
		for j, y := range yAxis {
			m.X[i][j] = x
			m.Y[i][j] = y
		}
	}
	return m
}

// NewGeoMesh builds the ij mesh of a longitude and latitude axis, projected
// onto the site-centred plane.
func NewGeoMesh(lonAxis, latAxis []float64, lon0, lat0 float64) Mesh {
	m := Mesh{X: make([][]float64, len(lonAxis)), Y: make([][]float64, len(lonAxis))}
	lats := make([]float64, len(latAxis))
	for i, lon := range lonAxis {
		lons := make([]float64, len(latAxis))
		for j := range lons {
			lons[j] = lon
		}
		copy(lats, latAxis)
		m.X[i], m.Y[i] = geo.GeographicToCartesian(lons, lats, lon0, lat0)
	}
	return m
}

// Shape returns the mesh dimensions.
func (m Mesh) Shape() (nx, ny int) {
	if len(m.X) == 0 {
		return 0, 0
	}
	return len(m.X), len(m.X[0])
}

// Options tunes the gridding engine.
type Options struct {
	// Workers bounds row parallelism; zero means GOMAXPROCS.
	Workers int
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// forEachRow runs fn for every mesh row in parallel. Each row writes only to
// its own output slice.
func forEachRow(m Mesh, opts Options, fn func(ix int, out []float64)) [][]float64 {
	nx, ny := m.Shape()
	out := make([][]float64, nx)
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(opts.workers())
	for ix := 0; ix < nx; ix++ {
		out[ix] = make([]float64, ny)
		g.Go(func() error {
			fn(ix, out[ix])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func filled(nx, ny int) [][]float64 {
	out := make([][]float64, nx)
	for i := range out {
		out[i] = make([]float64, ny)
		for j := range out[i] {
			out[i][j] = math.NaN()
		}
	}
	return out
}
