package format

import (
	"fmt"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// Record sizes of the legacy radial formats. The size of a file picks the
// radar generation.
const (
	sabRecordSize  = 2432 // SA/SB
	cbRecordSize   = 4132 // CB
	sc20RecordSize = 3132 // SC2.0
	// sabPointerBase is the offset moment pointers are measured from.
	sabPointerBase = 28
	// sabVelocityCoarse is the velocity resolution code for 1 m/s steps.
	sabVelocityCoarse = 4
)

// sabEpoch is day zero of the legacy Julian date field.
var sabEpoch = time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)

// sabVCP lists nominal elevations by the sweep count of the volume
// coverage patterns the legacy radars run.
var sabVCP = map[int][]float64{
	9:  {0.50, 1.45, 2.40, 3.35, 4.30, 6.00, 9.00, 14.6, 19.5},
	14: {0.50, 1.45, 2.40, 3.35, 4.30, 5.25, 6.2, 7.5, 8.7, 10, 12, 14, 16.7, 19.5},
	6:  {0.50, 1.50, 2.50, 2.50, 3.50, 4.50},
	4:  {0.50, 2.50, 3.50, 4.50},
}

type sabRadialHeader struct {
	_                         [14]byte
	Flag                      uint16
	_                         [12]byte
	MilliSeconds              uint32
	JulianDate                uint16
	UnambiguousRange          uint16 // 0.1 km
	Azimuth                   uint16
	RadialNumber              uint16
	RadialStatus              uint16
	Elevation                 uint16
	ElevationNumber           uint16
	RangeToFirstGateOfRef     uint16
	RangeToFirstGateOfDop     uint16
	GateSizeOfReflectivity    uint16
	GateSizeOfDoppler         uint16
	GatesNumberOfReflectivity uint16
	GatesNumberOfDoppler      uint16
	CutSectorNumber           uint16
	CalibrationConst          uint32
	PtrOfReflectivity         uint16
	PtrOfVelocity             uint16
	PtrOfSpectrumWidth        uint16
	ResolutionOfVelocity      uint16
	VCPNumber                 uint16
	_                         [14]byte
	Nyquist                   uint16 // 0.01 m/s
	_                         [38]byte
}

// sabAngle decodes the legacy binary angle encoding.
func sabAngle(raw uint16) float64 {
	return float64(raw) / 8 * 180 / 4096
}

// sabReflectivity decodes a legacy reflectivity byte; 0 and 1 are missing.
func sabReflectivity(raw byte) float64 {
	if raw <= 1 {
		return radar.Missing
	}
	return (float64(raw) - 64) / 2
}

// sabDoppler decodes a legacy velocity or spectrum-width byte in steps of
// step m/s; 0 and 1 are missing.
func sabDoppler(raw byte, step float64) float64 {
	if raw <= 1 {
		return radar.Missing
	}
	return (float64(raw) - 129) * step
}

// sabDecoder reads the SA/SB/CB/SC2.0 family. These files carry no site
// block, so the site comes from the station registry.
type sabDecoder struct {
	radialSet
	data []byte
	opts Options
	site radar.Site

	recordSize int
}

func (d *sabDecoder) Format() Format { return SAB }

func (d *sabDecoder) ReadHeader() error {
	if !hasAt(d.data, 14, sabMarker) {
		return fmt.Errorf("%w: missing legacy radar flag", radar.ErrHeaderDecode)
	}
	n := len(d.data)
	switch {
	case n > 0 && n%sabRecordSize == 0:
		d.recordSize = sabRecordSize
	case n > 0 && n%cbRecordSize == 0:
		d.recordSize = cbRecordSize
	case n > 0 && n%sc20RecordSize == 0:
		d.recordSize = sc20RecordSize
	default:
		return fmt.Errorf("%w: %d bytes is not a whole number of %d, %d or %d byte radials",
			radar.ErrSizeConsistency, n, sabRecordSize, cbRecordSize, sc20RecordSize)
	}
	return nil
}

func (d *sabDecoder) ReadRadials() error {
	if d.recordSize == 0 {
		return fmt.Errorf("%w: header not read", radar.ErrHeaderDecode)
	}
	count := len(d.data) / d.recordSize
	d.radials = make([]radar.Radial, 0, count)
	codes := make([]int32, 0, count)
	for i := 0; i < count; i++ {
		rec := d.data[i*d.recordSize : (i+1)*d.recordSize]
		var h sabRadialHeader
		if err := readStruct(rec, 0, &h); err != nil {
			return fmt.Errorf("radial %d: %w", i, err)
		}
		codes = append(codes, int32(h.RadialStatus))
		d.radials = append(d.radials, d.radial(rec, h))
	}
	for i, s := range sweepStatuses(codes) {
		d.radials[i].Status = s
	}
	return nil
}

func (d *sabDecoder) radial(rec []byte, h sabRadialHeader) radar.Radial {
	step := 0.5
	if h.ResolutionOfVelocity == sabVelocityCoarse {
		step = 1
	}
	dop := float64(h.GateSizeOfDoppler)
	r := radar.Radial{
		Azimuth:          sabAngle(h.Azimuth),
		Elevation:        sabAngle(h.Elevation),
		Time:             sabEpoch.AddDate(0, 0, int(h.JulianDate)).Add(time.Duration(h.MilliSeconds) * time.Millisecond),
		Nyquist:          float64(h.Nyquist) / 100,
		UnambiguousRange: float64(h.UnambiguousRange) * 100,
	}
	if n := int(h.GatesNumberOfReflectivity); n > 0 {
		r.Moments = append(r.Moments, radar.Moment{
			Kind: radar.MomentDBZ,
			Gate: radar.Gate{First: dop, Spacing: float64(h.GateSizeOfReflectivity)},
			Data: sabMoment(rec, h.PtrOfReflectivity, n, sabReflectivity),
		})
	}
	if n := int(h.GatesNumberOfDoppler); n > 0 {
		gate := radar.Gate{First: dop, Spacing: dop}
		r.Moments = append(r.Moments,
			radar.Moment{
				Kind: radar.MomentV,
				Gate: gate,
				Data: sabMoment(rec, h.PtrOfVelocity, n, func(b byte) float64 { return sabDoppler(b, step) }),
			},
			radar.Moment{
				Kind: radar.MomentW,
				Gate: gate,
				Data: sabMoment(rec, h.PtrOfSpectrumWidth, n, func(b byte) float64 { return sabDoppler(b, 0.5) }),
			})
	}
	return r
}

// sabMoment decodes n bytes at ptr. A pointer running past the record
// leaves the moment missing.
func sabMoment(rec []byte, ptr uint16, n int, decode func(byte) float64) []float64 {
	off := sabPointerBase + int(ptr)
	if off+n > len(rec) {
		return radar.MissingSlice(n)
	}
	out := make([]float64, n)
	for i, b := range rec[off : off+n] {
		out[i] = decode(b)
	}
	return out
}

func (d *sabDecoder) SiteLocation() radar.Site {
	return applyOverrides(d.site, d.opts)
}

func (d *sabDecoder) RawScan() *radar.RawScan {
	var ref radar.Gate
	for _, r := range d.radials {
		if m, ok := r.Moment(radar.MomentV); ok {
			ref = m.Gate
			break
		}
	}
	return &radar.RawScan{
		Format:      string(SAB),
		Site:        d.SiteLocation(),
		ScanType:    radar.ScanPPI,
		Radials:     d.radials,
		Merge:       radar.MergeAdjacent,
		RefGate:     ref,
		FixedAngles: sabFixedAngles,
	}
}

// sabFixedAngles maps sweep counts of known coverage patterns to their
// nominal elevations, otherwise keeps the first-ray elevations.
func sabFixedAngles(firstRay []float64) []float64 {
	if vcp, ok := sabVCP[len(firstRay)]; ok {
		return append([]float64(nil), vcp...)
	}
	return firstRay
}
