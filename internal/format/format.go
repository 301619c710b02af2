// Package format detects and decodes CINRAD base-data files into raw scans
// for the normalizer.
package format

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

// Format tags a base-data layout.
type Format string

const (
	// Standard is the dual-polarization standard format ("RSTM").
	Standard Format = "WSR98D"
	// PhasedArray is the phased-array variant of the standard format.
	PhasedArray Format = "PA"
	// SAB covers the legacy SA/SB/CB/SC2.0 family.
	SAB Format = "SAB"
	// CC covers CC/CCJ radars.
	CC Format = "CC"
	// SC covers legacy SC1.0/CD radars.
	SC Format = "SC"
	// NetCDF is gridded polar base data in netCDF classic or HDF5.
	NetCDF Format = "NC"
)

// Options adjust decoding. The zero value decodes with header metadata only.
type Options struct {
	// FileName is used to find the station id for registry lookups.
	FileName string
	// Registry resolves site metadata by station id. Optional.
	Registry registry.Registry
	// Site overrides; nil keeps the decoded value.
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
	// Band selects the NetCDF radar frequency: "S", "C" or "X".
	Band string
}

// RadarDecoder is the capability set shared by every format.
type RadarDecoder interface {
	Format() Format
	ReadHeader() error
	ReadRadials() error
	Azimuth() []float64
	Elevation() []float64
	ScanTime() []time.Time
	NyquistVelocity() []float64
	UnambiguousRange() []float64
	SiteLocation() radar.Site
	// RawScan returns the decoded scan. Valid after ReadRadials.
	RawScan() *radar.RawScan
}

// NewDecoder returns the decoder for f over data.
func NewDecoder(ctx context.Context, f Format, data []byte, opts Options) (RadarDecoder, error) {
	switch f {
	case Standard:
		return &standardDecoder{data: data, opts: opts}, nil
	case PhasedArray:
		return &phasedArrayDecoder{data: data, opts: opts}, nil
	case SAB:
		site, err := registrySite(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &sabDecoder{data: data, opts: opts, site: site}, nil
	case CC:
		return &ccDecoder{data: data, opts: opts}, nil
	case SC:
		return &scDecoder{data: data, opts: opts}, nil
	case NetCDF:
		return &netcdfDecoder{data: data, opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", radar.ErrFormatUnknown, f)
	}
}

// Decode detects the format of data and decodes it.
func Decode(ctx context.Context, data []byte, opts Options) (*radar.RawScan, error) {
	f, err := Detect(ctx, data, opts)
	if err != nil {
		return nil, err
	}
	return DecodeAs(ctx, f, data, opts)
}

// DecodeAs decodes data with the decoder of format f.
func DecodeAs(ctx context.Context, f Format, data []byte, opts Options) (*radar.RawScan, error) {
	dec, err := NewDecoder(ctx, f, data, opts)
	if err != nil {
		return nil, err
	}
	if err := dec.ReadHeader(); err != nil {
		return nil, fmt.Errorf("decode %s header: %w", f, err)
	}
	if err := dec.ReadRadials(); err != nil {
		return nil, fmt.Errorf("decode %s radials: %w", f, err)
	}
	return dec.RawScan(), nil
}

// radialSet implements the per-radial accessors over decoded radials.
type radialSet struct {
	radials []radar.Radial
}

func (s *radialSet) Azimuth() []float64 {
	out := make([]float64, len(s.radials))
	for i := range s.radials {
		out[i] = s.radials[i].Azimuth
	}
	return out
}

func (s *radialSet) Elevation() []float64 {
	out := make([]float64, len(s.radials))
	for i := range s.radials {
		out[i] = s.radials[i].Elevation
	}
	return out
}

func (s *radialSet) ScanTime() []time.Time {
	out := make([]time.Time, len(s.radials))
	for i := range s.radials {
		out[i] = s.radials[i].Time
	}
	return out
}

func (s *radialSet) NyquistVelocity() []float64 {
	out := make([]float64, len(s.radials))
	for i := range s.radials {
		out[i] = s.radials[i].Nyquist
	}
	return out
}

func (s *radialSet) UnambiguousRange() []float64 {
	out := make([]float64, len(s.radials))
	for i := range s.radials {
		out[i] = s.radials[i].UnambiguousRange
	}
	return out
}

// applyOverrides replaces site fields with any caller overrides.
func applyOverrides(site radar.Site, opts Options) radar.Site {
	if opts.Latitude != nil {
		site.Latitude = *opts.Latitude
	}
	if opts.Longitude != nil {
		site.Longitude = *opts.Longitude
	}
	if opts.Altitude != nil {
		site.Altitude = *opts.Altitude
	}
	return site
}

// registrySite resolves site metadata for formats that do not carry it. A
// missing registry or unknown station yields a zero site.
func registrySite(ctx context.Context, opts Options) (radar.Site, error) {
	if opts.Registry == nil {
		return radar.Site{}, nil
	}
	id, ok := registry.StationID(opts.FileName)
	if !ok {
		return radar.Site{}, nil
	}
	st, err := opts.Registry.Lookup(ctx, id)
	if err != nil {
		if registry.IsNotFound(err) {
			return radar.Site{Code: id}, nil
		}
		return radar.Site{}, fmt.Errorf("station %s: %w", id, err)
	}
	return st.Site(), nil
}

// readStruct decodes a packed little-endian struct at off.
func readStruct(data []byte, off int, v any) error {
	n := binary.Size(v)
	if off < 0 || n < 0 || off+n > len(data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", radar.ErrHeaderDecode, n, off, len(data))
	}
	return binary.Read(bytes.NewReader(data[off:off+n]), binary.LittleEndian, v)
}

// cString trims a fixed-width, NUL-padded text field.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

func scanTypeFromCode(code int32) radar.ScanType {
	switch code {
	case 0, 1:
		return radar.ScanPPI
	case 2, 5:
		return radar.ScanRHI
	case 3, 4:
		return radar.ScanSector
	default:
		return radar.ScanOther
	}
}

// signedElevation maps elevations stored in [180, 360) to negative angles.
func signedElevation(el float64) float64 {
	if el > 180 {
		return el - 360
	}
	return el
}
