package format

import (
	"fmt"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const (
	scRecordSize = 4000
	scBins       = 500
	scMaxLayers  = 30
	// scBinWidth replaces the gate width in SC1.0/CD headers, which the
	// firmware fills with a wrong value.
	scBinWidth = 500.0
	// scFrequency is the operating frequency of SC1.0/CD radars in GHz.
	scFrequency = 2.765
	// scLocalOffset converts header clock times (UTC+8) to UTC.
	scLocalOffset = 8 * time.Hour
)

type scHeader struct {
	_          [100]byte
	RadarType  [20]byte
	_          [32]byte
	Longitude  int32 // 0.01 degree
	Latitude   int32
	Height     int32 // mm
	_          [20]byte
	Wavelength uint32
	_          [13]byte
	ScanType   uint8
	Start      scClock
	_          [8]byte
	Layers     [scMaxLayers]scLayer
	_          [6]byte
	End        scClock
}

type scClock struct {
	Year                             uint16
	Month, Day, Hour, Minute, Second uint8
}

func (c scClock) time() time.Time {
	return time.Date(int(c.Year), time.Month(c.Month), int(c.Day),
		int(c.Hour), int(c.Minute), int(c.Second), 0, time.UTC).Add(-scLocalOffset)
}

type scLayer struct {
	_            [9]byte
	MaxV         uint16 // cm/s
	MaxL         uint16 // 10 m
	BinWidth     uint16
	BinNumber    uint16
	RecordNumber uint16
	Angle        int16 // 0.01 degree
}

type scRadialHeader struct {
	StartAzimuth   uint16
	StartElevation uint16
	EndAzimuth     uint16
	EndElevation   uint16
}

type scGate struct {
	DBZ, V, DBT, W uint8
}

type scRadial struct {
	Header scRadialHeader
	Gates  [scBins]scGate
}

// scDecoder reads SC1.0/CD volume scans: a 1024 byte header followed by
// fixed 4000 byte radials of 500 interleaved dBZ, V, dBT, W gates.
type scDecoder struct {
	radialSet
	data []byte
	opts Options

	header scHeader
	layers []scLayer
	p      radar.Partition
}

func (d *scDecoder) Format() Format { return SC }

func (d *scDecoder) ReadHeader() error {
	if err := readStruct(d.data, 0, &d.header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	n := int(d.header.ScanType) - volumeScanBase
	if n <= 0 || n > scMaxLayers {
		return fmt.Errorf("%w: scan type %d is not a volume scan", radar.ErrHeaderDecode, d.header.ScanType)
	}
	d.layers = d.header.Layers[:n]
	records := make([]int, n)
	for i, l := range d.layers {
		records[i] = int(l.RecordNumber)
	}
	p, total := recordPartition(records)
	if want := fixedHeaderBytes + total*scRecordSize; len(d.data) != want {
		return fmt.Errorf("%w: %d bytes, header declares %d radials (%d bytes)",
			radar.ErrSizeConsistency, len(d.data), total, want)
	}
	d.p = p
	return nil
}

func (d *scDecoder) ReadRadials() error {
	if d.layers == nil {
		return fmt.Errorf("%w: header not read", radar.ErrHeaderDecode)
	}
	gate := radar.Gate{First: scBinWidth, Spacing: scBinWidth}
	total := d.p.End[len(d.p.End)-1] + 1
	times := linearTimes(d.header.Start.time(), d.header.End.time(), total)
	d.radials = make([]radar.Radial, 0, total)
	for _, l := range d.layers {
		count := int(l.RecordNumber)
		maxV := float64(l.MaxV) / 100
		for r := 0; r < count; r++ {
			i := len(d.radials)
			var rec scRadial
			if err := readStruct(d.data, fixedHeaderBytes+i*scRecordSize, &rec); err != nil {
				return fmt.Errorf("radial %d: %w", i, err)
			}
			dbz, v, dbt, w := make([]float64, scBins), make([]float64, scBins), make([]float64, scBins), make([]float64, scBins)
			for g, raw := range rec.Gates {
				dbz[g] = scReflectivity(raw.DBZ)
				dbt[g] = scReflectivity(raw.DBT)
				v[g] = scScaled(raw.V, maxV*(float64(raw.V)-128)/128)
				w[g] = scScaled(raw.W, maxV*float64(raw.W)/256)
			}
			h := rec.Header
			d.radials = append(d.radials, radar.Radial{
				Azimuth:          360 * float64(r) / float64(count),
				Elevation:        (float64(h.StartElevation) + float64(h.EndElevation)) * 180 / 65536,
				Time:             times[i],
				Status:           boundary(r, count),
				Nyquist:          maxV,
				UnambiguousRange: float64(l.MaxL) * 10,
				Moments: []radar.Moment{
					{Kind: radar.MomentDBZ, Gate: gate, Data: dbz},
					{Kind: radar.MomentV, Gate: gate, Data: v},
					{Kind: radar.MomentDBT, Gate: gate, Data: dbt},
					{Kind: radar.MomentW, Gate: gate, Data: w},
				},
			})
		}
	}
	return nil
}

func scReflectivity(raw uint8) float64 {
	return scScaled(raw, (float64(raw)-64)/2)
}

// scScaled returns v unless raw is the zero missing code.
func scScaled(raw uint8, v float64) float64 {
	if raw == 0 {
		return radar.Missing
	}
	return v
}

func (d *scDecoder) SiteLocation() radar.Site {
	return applyOverrides(radar.Site{
		Latitude:  float64(d.header.Latitude) / 100,
		Longitude: float64(d.header.Longitude) / 100,
		Altitude:  float64(d.header.Height) / 1000,
		Frequency: scFrequency,
	}, d.opts)
}

func (d *scDecoder) RawScan() *radar.RawScan {
	cuts := make([]radar.Cut, len(d.layers))
	for i, l := range d.layers {
		el := float64(l.Angle) / 100
		cuts[i] = radar.Cut{
			Elevation:        el,
			FixedAngle:       el,
			Nyquist:          float64(l.MaxV) / 100,
			UnambiguousRange: float64(l.MaxL) * 10,
		}
	}
	p := d.p
	return &radar.RawScan{
		Format:         string(SC),
		Site:           d.SiteLocation(),
		ScanType:       radar.ScanPPI,
		Start:          d.header.Start.time(),
		End:            d.header.End.time(),
		Radials:        d.radials,
		Cuts:           cuts,
		DeclaredSweeps: len(d.layers),
		Partition:      &p,
		Merge:          radar.MergeNone,
		RefGate:        radar.Gate{First: scBinWidth, Spacing: scBinWidth},
	}
}
