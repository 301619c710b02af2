package radar

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/radar-volume-etl/internal/grid"
	"github.com/couchcryptid/radar-volume-etl/internal/interp"
)

// Product is a named 2-D grid derived from a volume. Data is indexed
// [ix][iy] along the X and Y axes.
type Product struct {
	Name string
	// X and Y are meters east and north of the site, or longitude and
	// latitude in degrees when Geographic is set.
	X, Y       []float64
	Geographic bool
	// Height is the slice altitude in meters for constant-altitude products.
	Height float64
	Data   [][]float64
}

// Stats returns the number of non-missing cells and their maximum. peak is
// NaN when no cell is valid.
func (p Product) Stats() (valid int, peak float64) {
	peak = Missing
	for _, row := range p.Data {
		for _, v := range row {
			if IsMissing(v) {
				continue
			}
			valid++
			if IsMissing(peak) || v > peak {
				peak = v
			}
		}
	}
	return valid, peak
}

// productCache memoizes every product built from a volume. Entries live as
// long as the volume.
type productCache struct {
	mu       sync.RWMutex
	products map[string]Product
	group    singleflight.Group
}

func (v *Volume) productCache() *productCache {
	v.productsOnce.Do(func() {
		v.products = &productCache{products: make(map[string]Product)}
	})
	return v.products
}

func (c *productCache) get(key string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[key]
	return p, ok
}

// product returns the cached product under key or builds it. Concurrent
// callers with the same key share one build; a failed build is not cached.
func (v *Volume) product(key string, build func() (Product, error)) (Product, error) {
	c := v.productCache()
	if p, ok := c.get(key); ok {
		return p, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if p, ok := c.get(key); ok {
			return p, nil
		}
		p, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.products[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return res.(Product), nil
}

// CachedProducts returns the number of memoized grid products.
func (v *Volume) CachedProducts() int {
	c := v.productCache()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

func productKey(name string, x, y []float64) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('|')
	var buf [8]byte
	for _, axis := range [][]float64{x, y} {
		b.WriteString(strconv.Itoa(len(axis)))
		b.WriteByte(':')
		for _, f := range axis {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			b.Write(buf[:])
		}
		b.WriteByte('|')
	}
	return b.String()
}

// CAPPIName returns the product name of a constant-altitude slice.
func CAPPIName(height float64, geographic bool) string {
	h := strconv.FormatFloat(height, 'f', -1, 64)
	if geographic {
		return "CAPPI_geo_" + h
	}
	return "CAPPI_" + h
}

// gridSweeps converts the sweeps carrying moment k into gridding input,
// ordered by fixed angle with rays sorted by azimuth.
func (v *Volume) gridSweeps(k MomentKind) ([]grid.Sweep, error) {
	if _, ok := v.Fields[k]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMomentNotFound, k)
	}
	rng := v.FieldRange(k)
	out := make([]grid.Sweep, 0, len(v.Sweeps))
	for i := range v.Sweeps {
		rows, _ := v.SweepField(i, k)
		out = append(out, grid.SortByAzimuth(grid.Sweep{
			Azimuth:   v.SweepAzimuth(i),
			Range:     rng,
			Elevation: v.Sweeps[i].FixedAngle,
			Data:      rows,
		}))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Elevation < out[b].Elevation })
	return out, nil
}

// distinctElevations keeps the first sweep of each fixed angle.
func distinctElevations(sweeps []grid.Sweep) []grid.Sweep {
	out := make([]grid.Sweep, 0, len(sweeps))
	for _, s := range sweeps {
		if n := len(out); n > 0 && out[n-1].Elevation == s.Elevation {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CompositeReflectivity grids the column maximum of reflectivity on the
// Cartesian axes x and y, in meters from the site.
func (v *Volume) CompositeReflectivity(x, y []float64, opts grid.Options) (Product, error) {
	return v.product(productKey("CR", x, y), func() (Product, error) {
		sweeps, err := v.gridSweeps(MomentDBZ)
		if err != nil {
			return Product{}, err
		}
		return Product{Name: "CR", X: x, Y: y,
			Data: grid.Composite(sweeps, v.Site.Altitude, grid.NewMesh(x, y), opts)}, nil
	})
}

// ConstantAltitudeSlice grids reflectivity at height meters above sea level
// on the Cartesian axes x and y.
func (v *Volume) ConstantAltitudeSlice(x, y []float64, height float64, opts grid.Options) (Product, error) {
	name := CAPPIName(height, false)
	return v.product(productKey(name, x, y), func() (Product, error) {
		sweeps, err := v.gridSweeps(MomentDBZ)
		if err != nil {
			return Product{}, err
		}
		return Product{Name: name, X: x, Y: y, Height: height,
			Data: grid.ConstantAltitude(distinctElevations(sweeps), v.Site.Altitude, height, grid.NewMesh(x, y), opts)}, nil
	})
}

// CompositeReflectivityGeo is CompositeReflectivity on longitude and
// latitude axes.
func (v *Volume) CompositeReflectivityGeo(lon, lat []float64, opts grid.Options) (Product, error) {
	return v.product(productKey("CR_geo", lon, lat), func() (Product, error) {
		sweeps, err := v.gridSweeps(MomentDBZ)
		if err != nil {
			return Product{}, err
		}
		mesh := grid.NewGeoMesh(lon, lat, v.Site.Longitude, v.Site.Latitude)
		return Product{Name: "CR_geo", X: lon, Y: lat, Geographic: true,
			Data: grid.Composite(sweeps, v.Site.Altitude, mesh, opts)}, nil
	})
}

// ConstantAltitudeSliceGeo is ConstantAltitudeSlice on longitude and
// latitude axes.
func (v *Volume) ConstantAltitudeSliceGeo(lon, lat []float64, height float64, opts grid.Options) (Product, error) {
	name := CAPPIName(height, true)
	return v.product(productKey(name, lon, lat), func() (Product, error) {
		sweeps, err := v.gridSweeps(MomentDBZ)
		if err != nil {
			return Product{}, err
		}
		mesh := grid.NewGeoMesh(lon, lat, v.Site.Longitude, v.Site.Latitude)
		return Product{Name: name, X: lon, Y: lat, Height: height, Geographic: true,
			Data: grid.ConstantAltitude(distinctElevations(sweeps), v.Site.Altitude, height, mesh, opts)}, nil
	})
}

// ScatterPPIName returns the product name of an interpolated sweep.
func ScatterPPIName(sweep int, k MomentKind) string {
	return "PPI_" + strconv.Itoa(sweep) + "_" + k.String()
}

// ScatterPPI resamples sweep i of moment k onto the Cartesian axes x and y
// by weighting every gate inside the radius of influence of a cell.
func (v *Volume) ScatterPPI(i int, k MomentKind, x, y []float64, radius interp.Radius, kernel interp.Kernel) (Product, error) {
	name := ScatterPPIName(i, k)
	key := productKey(fmt.Sprintf("%s|%s|%v", name, kernel, radius), x, y)
	return v.product(key, func() (Product, error) {
		view, ok := v.PPI(i, k)
		if !ok {
			return Product{}, fmt.Errorf("%w: %s in sweep %d", ErrMomentNotFound, k, i)
		}
		var points []interp.Point
		var values []float64
		for r := range view.Data {
			for g, val := range view.Data[r] {
				points = append(points, interp.Point{X: view.X[r][g], Y: view.Y[r][g]})
				values = append(values, val)
			}
		}
		queries := make([]interp.Point, 0, len(x)*len(y))
		for _, qx := range x {
			for _, qy := range y {
				queries = append(queries, interp.Point{X: qx, Y: qy})
			}
		}
		flat := interp.Interpolate(points, values, queries, radius, kernel)
		data := make([][]float64, len(x))
		for ix := range data {
			data[ix] = flat[ix*len(y) : (ix+1)*len(y)]
		}
		return Product{Name: name, X: x, Y: y, Data: data}, nil
	})
}
