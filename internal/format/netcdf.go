package format

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const (
	ncScanDuration = 6 * time.Minute
	ncSiteName     = "Unknown"
	// ncLocalOffset converts RadTime, which counts Beijing wall-clock
	// seconds, to UTC.
	ncLocalOffset = 8 * time.Hour
)

var ncBands = map[string]float64{"S": 3.0, "C": 5.7, "X": 9.5}

var ncMoments = []struct {
	name string
	kind radar.MomentKind
}{
	{"ref", radar.MomentDBZ},
	{"vel", radar.MomentV},
	{"wid", radar.MomentW},
	{"zdr", radar.MomentZDR},
	{"rhv", radar.MomentCC},
	{"pdp", radar.MomentPhiDP},
	{"kdp", radar.MomentKDP},
}

// nopCloser adapts an in-memory reader to the netCDF opener.
type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

// netcdfDecoder reads gridded polar volumes stored as netCDF classic or
// HDF5: one sweep per Dim1 elevation, each spanning every Dim2 azimuth.
type netcdfDecoder struct {
	radialSet
	data []byte
	opts Options

	group      api.Group
	elevations []float64
	azimuths   []float64
	ranges     []float64
	vmax       []float64
	site       radar.Site
	start      time.Time
}

func (d *netcdfDecoder) Format() Format { return NetCDF }

func (d *netcdfDecoder) ReadHeader() (err error) {
	band := d.opts.Band
	if band == "" {
		band = "S"
	}
	freq, ok := ncBands[band]
	if !ok {
		return fmt.Errorf("band %q not in S, C, X", band)
	}
	g, err := netcdf.New(nopCloser{bytes.NewReader(d.data)})
	if err != nil {
		return fmt.Errorf("%w: %v", radar.ErrHeaderDecode, err)
	}
	d.group = g
	defer func() {
		if err != nil {
			d.group.Close()
			d.group = nil
		}
	}()

	vars := map[string]*[]float64{
		"Dim1": &d.elevations,
		"Dim2": &d.azimuths,
		"Dim3": &d.ranges,
		"VMax": &d.vmax,
	}
	for name, dst := range vars {
		if *dst, err = d.variable(name); err != nil {
			return err
		}
	}
	scalars := make(map[string]float64)
	for _, name := range []string{"RadLat", "RadLon", "RadHgt", "RadTime"} {
		v, err := d.variable(name)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return fmt.Errorf("%w: %s is empty", radar.ErrHeaderDecode, name)
		}
		scalars[name] = v[0]
	}
	if len(d.elevations) == 0 || len(d.azimuths) == 0 || len(d.ranges) == 0 {
		return fmt.Errorf("%w: empty polar dimensions", radar.ErrHeaderDecode)
	}
	d.site = radar.Site{
		Name:      ncSiteName,
		Latitude:  scalars["RadLat"],
		Longitude: scalars["RadLon"],
		Altitude:  scalars["RadHgt"],
		Frequency: freq,
	}
	d.start = time.Unix(int64(scalars["RadTime"]), 0).UTC().Add(-ncLocalOffset)
	return nil
}

// variable reads a numeric variable with packing and fill attributes
// applied.
func (d *netcdfDecoder) variable(name string) ([]float64, error) {
	v, err := d.group.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("%w: variable %s: %v", radar.ErrHeaderDecode, name, err)
	}
	values, err := flattenFloats(v.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: variable %s: %v", radar.ErrHeaderDecode, name, err)
	}
	unpack(values, v.Attributes)
	return values, nil
}

func (d *netcdfDecoder) ReadRadials() error {
	if d.group == nil {
		return fmt.Errorf("%w: header not read", radar.ErrHeaderDecode)
	}
	defer d.group.Close()

	ne, na, nr := len(d.elevations), len(d.azimuths), len(d.ranges)
	gate := radar.Gate{First: d.ranges[0], Spacing: gateSpacing(d.ranges)}
	maxRange := d.ranges[0]
	for _, r := range d.ranges {
		maxRange = math.Max(maxRange, r)
	}

	fields := make(map[radar.MomentKind][]float64)
	for _, m := range ncMoments {
		v, err := d.group.GetVariable(m.name)
		if err != nil {
			continue
		}
		values, err := flattenFloats(v.Values)
		if err != nil {
			return fmt.Errorf("%w: variable %s: %v", radar.ErrHeaderDecode, m.name, err)
		}
		if len(values) != ne*na*nr {
			return fmt.Errorf("%w: variable %s has %d values, want %dx%dx%d",
				radar.ErrHeaderDecode, m.name, len(values), ne, na, nr)
		}
		unpack(values, v.Attributes)
		fields[m.kind] = values
	}

	times := linearTimes(d.start, d.start.Add(ncScanDuration), ne*na)
	d.radials = make([]radar.Radial, 0, ne*na)
	for e := 0; e < ne; e++ {
		nyquist := 0.0
		if e < len(d.vmax) {
			nyquist = d.vmax[e]
		}
		for a := 0; a < na; a++ {
			i := len(d.radials)
			r := radar.Radial{
				Azimuth:          d.azimuths[a],
				Elevation:        d.elevations[e],
				Time:             times[i],
				Status:           boundary(a, na),
				Nyquist:          nyquist,
				UnambiguousRange: maxRange,
			}
			for _, m := range ncMoments {
				values, ok := fields[m.kind]
				if !ok {
					continue
				}
				r.Moments = append(r.Moments, radar.Moment{
					Kind: m.kind,
					Gate: gate,
					Data: values[i*nr : (i+1)*nr : (i+1)*nr],
				})
			}
			d.radials = append(d.radials, r)
		}
	}
	return nil
}

func (d *netcdfDecoder) SiteLocation() radar.Site {
	return applyOverrides(d.site, d.opts)
}

func (d *netcdfDecoder) RawScan() *radar.RawScan {
	na := len(d.azimuths)
	records := make([]int, len(d.elevations))
	cuts := make([]radar.Cut, len(d.elevations))
	maxRange := 0.0
	if len(d.radials) > 0 {
		maxRange = d.radials[0].UnambiguousRange
	}
	for i, el := range d.elevations {
		records[i] = na
		cuts[i] = radar.Cut{Elevation: el, FixedAngle: el, UnambiguousRange: maxRange}
		if i < len(d.vmax) {
			cuts[i].Nyquist = d.vmax[i]
		}
	}
	p, _ := recordPartition(records)
	return &radar.RawScan{
		Format:         string(NetCDF),
		Site:           d.SiteLocation(),
		ScanType:       radar.ScanPPI,
		Start:          d.start,
		End:            d.start.Add(ncScanDuration),
		Radials:        d.radials,
		Cuts:           cuts,
		DeclaredSweeps: len(cuts),
		Partition:      &p,
		Merge:          radar.MergeNone,
		RefGate:        radar.Gate{First: d.ranges[0], Spacing: gateSpacing(d.ranges)},
	}
}

func gateSpacing(ranges []float64) float64 {
	if len(ranges) > 1 {
		return ranges[1] - ranges[0]
	}
	return ranges[0]
}

// flattenFloats converts a numeric scalar or nested numeric slice, as the
// netCDF reader returns them, into a flat row-major slice.
func flattenFloats(v any) ([]float64, error) {
	var out []float64
	var walk func(reflect.Value) error
	walk = func(rv reflect.Value) error {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if err := walk(rv.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Float32, reflect.Float64:
			out = append(out, rv.Float())
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			out = append(out, float64(rv.Int()))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			out = append(out, float64(rv.Uint()))
		default:
			return fmt.Errorf("unsupported value type %s", rv.Type())
		}
		return nil
	}
	if err := walk(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return out, nil
}

// unpack marks fill values missing and applies scale_factor and add_offset.
func unpack(values []float64, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	fill, hasFill := attrFloat(attrs, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(attrs, "missing_value")
	}
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, _ := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	for i, v := range values {
		if hasFill && v == fill {
			values[i] = radar.Missing
			continue
		}
		values[i] = v*scale + offset
	}
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	f, err := flattenFloats(v)
	if err != nil || len(f) == 0 {
		return 0, false
	}
	return f[0], true
}
