package format

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const (
	ccRecordSize   = 3000
	ccCutOffset    = 218
	ccCutSize      = 22
	ccMaxCuts      = 30
	ccHeader2Off   = 878
	ccMissingCode  = -32768
	volumeScanBase = 100
	// ccBinWidthFactor corrects the gate width CC/CCJ firmware writes, which
	// is half the true spacing.
	ccBinWidthFactor = 2
)

type ccHeader struct {
	FileType      [16]byte
	Country       [30]byte
	Province      [20]byte
	Station       [40]byte
	StationNumber [10]byte
	RadarType     [20]byte
	LongitudeText [16]byte
	LatitudeText  [16]byte
	Longitude     int32 // 1/3600000 degree
	Latitude      int32
	Height        int32 // mm
	MaxAngle      int16
	OptAngle      int16
	Start         ccClock
	TimeFrom      uint8
	End           ccClock
	ScanMode      uint8
	MilliSecond   uint32
	RHIAzimuth    uint16
	RHILow        int16
	RHIHigh       int16
	EchoType      uint16
	ProductCode   uint16
	Calibration   uint8
	_             [3]byte
}

// ccClock is a broken-down timestamp with a split century byte.
type ccClock struct {
	Century, Year, Month, Day, Hour, Minute, Second uint8
}

func (c ccClock) time() time.Time {
	return time.Date(int(c.Century)*100+int(c.Year), time.Month(c.Month), int(c.Day),
		int(c.Hour), int(c.Minute), int(c.Second), 0, time.UTC)
}

type ccCut struct {
	MaxV         uint16 // cm/s
	MaxL         uint16 // 10 m
	BinWidth     uint16
	BinNumber    uint16
	RecordNumber uint16
	Rotate       uint16
	PRF1         uint16
	PRF2         uint16
	PulseWidth   uint16
	Angle        int16 // 0.01 degree
	SweepStatus  uint8
	Ambiguous    uint8
}

type ccHeader2 struct {
	_           [2]byte
	AntennaGain int32
	Power       int32
	Wavelength  int32 // micrometers
}

// ccDecoder reads CC/CCJ volume scans: a 1024 byte header followed by
// fixed 3000 byte radials of 16-bit dBZ, V and W.
type ccDecoder struct {
	radialSet
	data []byte
	opts Options

	header  ccHeader
	header2 ccHeader2
	cuts    []ccCut
	p       radar.Partition
}

func (d *ccDecoder) Format() Format { return CC }

func (d *ccDecoder) ReadHeader() error {
	if err := readStruct(d.data, 0, &d.header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if err := readStruct(d.data, ccHeader2Off, &d.header2); err != nil {
		return fmt.Errorf("header 2: %w", err)
	}
	n := int(d.header.ScanMode) - volumeScanBase
	if n <= 0 || n > ccMaxCuts {
		return fmt.Errorf("%w: scan mode %d is not a volume scan", radar.ErrHeaderDecode, d.header.ScanMode)
	}
	d.cuts = make([]ccCut, n)
	for i := range d.cuts {
		if err := readStruct(d.data, ccCutOffset+i*ccCutSize, &d.cuts[i]); err != nil {
			return fmt.Errorf("cut %d: %w", i, err)
		}
	}
	records := make([]int, n)
	for i, c := range d.cuts {
		records[i] = int(c.RecordNumber)
	}
	p, total := recordPartition(records)
	if want := fixedHeaderBytes + total*ccRecordSize; len(d.data) != want {
		return fmt.Errorf("%w: %d bytes, header declares %d radials (%d bytes)",
			radar.ErrSizeConsistency, len(d.data), total, want)
	}
	d.p = p
	return nil
}

func (d *ccDecoder) resolution() float64 {
	return float64(d.cuts[0].BinWidth) * ccBinWidthFactor
}

func (d *ccDecoder) ReadRadials() error {
	if d.cuts == nil {
		return fmt.Errorf("%w: header not read", radar.ErrHeaderDecode)
	}
	res := d.resolution()
	gate := radar.Gate{First: res, Spacing: res}
	total := d.p.End[len(d.p.End)-1] + 1
	times := linearTimes(d.header.Start.time(), d.header.End.time(), total)
	d.radials = make([]radar.Radial, 0, total)
	for _, c := range d.cuts {
		count := int(c.RecordNumber)
		for r := 0; r < count; r++ {
			i := len(d.radials)
			rec := d.data[fixedHeaderBytes+i*ccRecordSize : fixedHeaderBytes+(i+1)*ccRecordSize]
			bins := int(c.BinNumber)
			d.radials = append(d.radials, radar.Radial{
				Azimuth:          inclusiveAzimuth(r, count),
				Elevation:        float64(c.Angle) / 100,
				Time:             times[i],
				Status:           boundary(r, count),
				Nyquist:          float64(c.MaxV) / 100,
				UnambiguousRange: float64(c.MaxL) * 10,
				Moments: []radar.Moment{
					{Kind: radar.MomentDBZ, Gate: gate, Data: ccMoment(rec, 0, bins)},
					{Kind: radar.MomentV, Gate: gate, Data: ccMoment(rec, 1, bins)},
					{Kind: radar.MomentW, Gate: gate, Data: ccMoment(rec, 2, bins)},
				},
			})
		}
	}
	return nil
}

// ccMoment decodes the which-th block of bins 16-bit values in tenths.
// A bin count overflowing the record leaves the moment missing.
func ccMoment(rec []byte, which, bins int) []float64 {
	if bins*3*2 > len(rec) {
		return radar.MissingSlice(bins)
	}
	out := make([]float64, bins)
	base := which * bins * 2
	for i := range out {
		raw := int16(binary.LittleEndian.Uint16(rec[base+2*i:]))
		if raw == ccMissingCode {
			out[i] = radar.Missing
			continue
		}
		out[i] = float64(raw) / 10
	}
	return out
}

func (d *ccDecoder) SiteLocation() radar.Site {
	site := radar.Site{
		Code:      cString(d.header.StationNumber[:]),
		Name:      cString(d.header.Station[:]),
		Latitude:  float64(d.header.Latitude) / 3600000,
		Longitude: float64(d.header.Longitude) / 3600000,
		Altitude:  float64(d.header.Height) / 1000,
	}
	if d.header2.Wavelength > 0 {
		site.Frequency = 3e5 / float64(d.header2.Wavelength)
	}
	return applyOverrides(site, d.opts)
}

func (d *ccDecoder) RawScan() *radar.RawScan {
	cuts := make([]radar.Cut, len(d.cuts))
	for i, c := range d.cuts {
		el := float64(c.Angle) / 100
		cuts[i] = radar.Cut{
			Elevation:        el,
			FixedAngle:       el,
			Nyquist:          float64(c.MaxV) / 100,
			UnambiguousRange: float64(c.MaxL) * 10,
		}
	}
	p := d.p
	res := d.resolution()
	return &radar.RawScan{
		Format:         string(CC),
		Site:           d.SiteLocation(),
		ScanType:       radar.ScanPPI,
		Start:          d.header.Start.time(),
		End:            d.header.End.time(),
		Radials:        d.radials,
		Cuts:           cuts,
		DeclaredSweeps: len(d.cuts),
		Partition:      &p,
		Merge:          radar.MergeNone,
		RefGate:        radar.Gate{First: res, Spacing: res},
	}
}

// recordPartition lays sweeps of the given ray counts end to end.
func recordPartition(records []int) (radar.Partition, int) {
	p := radar.Partition{Start: make([]int, len(records)), End: make([]int, len(records))}
	total := 0
	for i, n := range records {
		p.Start[i] = total
		total += n
		p.End[i] = total - 1
	}
	return p, total
}

// linearTimes spreads n timestamps evenly from start to end inclusive.
func linearTimes(start, end time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	if n == 1 {
		out[0] = start
		return out
	}
	span := end.Sub(start)
	for i := range out {
		out[i] = start.Add(time.Duration(float64(span) * float64(i) / float64(n-1)))
	}
	return out
}

// inclusiveAzimuth places ray i of n evenly on [0, 360].
func inclusiveAzimuth(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return 360 * float64(i) / float64(n-1)
}

// boundary flags ray i of an n-ray sweep.
func boundary(i, n int) radar.Status {
	s := radar.StatusMid
	if i == 0 {
		s |= radar.StatusStart
	}
	if i == n-1 {
		s |= radar.StatusEnd
	}
	return s
}
