package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// SyntheticCut describes one elevation cut of a generated volume.
type SyntheticCut struct {
	Elevation float64
	Rays      int
	Gates     int
	// Resolution is the gate spacing in meters of both channels.
	Resolution int32
	Nyquist    float64
	// Moments overrides the volume moment codes for this cut.
	Moments []int32
}

// Synthetic describes a standard-format base-data file.
type Synthetic struct {
	SiteCode     string
	SiteName     string
	Latitude     float64
	Longitude    float64
	Altitude     int32
	FrequencyMHz float64
	BeamWidth    float64
	TaskName     string
	ScanType     int32
	Start        time.Time
	Cuts         []SyntheticCut
	// Moments lists the vendor moment codes every cut carries.
	Moments []int32
	// Value gives the physical value of a moment at (cut, ray, gate). NaN
	// encodes as missing.
	Value func(code int32, cut, ray, gate int) float64
}

// encoding is how a moment code is packed by EncodeStandard.
type encoding struct {
	scale, offset int32
	width         int16
}

func syntheticEncoding(code int32) encoding {
	switch momentKind(code) {
	case radar.MomentZDR, radar.MomentCC, radar.MomentPhiDP, radar.MomentKDP:
		return encoding{scale: 100, offset: 32768, width: 2}
	case radar.MomentV, radar.MomentW:
		return encoding{scale: 2, offset: 129, width: 1}
	default:
		return encoding{scale: 2, offset: 66, width: 1}
	}
}

// pack converts a physical value to its raw code.
func (e encoding) pack(v float64) uint16 {
	if math.IsNaN(v) {
		return 0
	}
	limit := 255.0
	if e.width == 2 {
		limit = 65535
	}
	raw := math.Round(v*float64(e.scale) + float64(e.offset))
	return uint16(math.Max(rawThreshold, math.Min(limit, raw)))
}

// EncodeStandard writes s in the "RSTM" standard format.
func EncodeStandard(s Synthetic) ([]byte, error) {
	if len(s.Cuts) == 0 {
		return nil, fmt.Errorf("synthetic volume has no cuts")
	}
	var buf bytes.Buffer
	w := func(v any) {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	w(genericHeader{Magic: binary.LittleEndian.Uint32(standardMagic), Major: 1, GenericType: 1})
	site := siteConfig{
		Latitude:      float32(s.Latitude),
		Longitude:     float32(s.Longitude),
		AntennaHeight: s.Altitude,
		Frequency:     float32(s.FrequencyMHz),
		BeamWidthHori: float32(s.BeamWidth),
		BeamWidthVert: float32(s.BeamWidth),
	}
	copy(site.Code[:], s.SiteCode)
	copy(site.Name[:], s.SiteName)
	w(site)
	task := taskConfig{
		ScanType:        s.ScanType,
		VolumeStartTime: int32(s.Start.Unix()),
		CutNumber:       int32(len(s.Cuts)),
	}
	copy(task.Name[:], s.TaskName)
	w(task)
	for _, c := range s.Cuts {
		w(cutConfig{
			Elevation:         float32(c.Elevation),
			LogResolution:     c.Resolution,
			DopplerResolution: c.Resolution,
			MaximumRange1:     c.Resolution * int32(c.Gates),
			NyquistSpeed:      float32(c.Nyquist),
		})
	}

	seq := int32(1)
	for ci, c := range s.Cuts {
		codes := s.Moments
		if c.Moments != nil {
			codes = c.Moments
		}
		for r := 0; r < c.Rays; r++ {
			t := s.Start.Add(time.Duration(seq) * 100 * time.Millisecond)
			var body bytes.Buffer
			for _, code := range codes {
				e := syntheticEncoding(code)
				payload := make([]byte, int(e.width)*c.Gates)
				for g := 0; g < c.Gates; g++ {
					v := math.NaN()
					if s.Value != nil {
						v = s.Value(code, ci, r, g)
					}
					raw := e.pack(v)
					if e.width == 1 {
						payload[g] = byte(raw)
					} else {
						binary.LittleEndian.PutUint16(payload[2*g:], raw)
					}
				}
				_ = binary.Write(&body, binary.LittleEndian, momentHeader{
					DataType:  code,
					Scale:     e.scale,
					Offset:    e.offset,
					BinLength: e.width,
					Length:    int32(len(payload)),
				})
				body.Write(payload)
			}
			w(stdRadialHeader{
				RadialState:     syntheticState(ci, len(s.Cuts), r, c.Rays),
				SequenceNumber:  seq,
				RadialNumber:    int32(r + 1),
				ElevationNumber: int32(ci + 1),
				Azimuth:         float32(360 * float64(r) / float64(c.Rays)),
				Elevation:       float32(c.Elevation),
				Seconds:         int32(t.Unix()),
				MicroSeconds:    int32(t.Nanosecond() / 1000),
				LengthOfData:    int32(body.Len()),
				MomentNumber:    int32(len(codes)),
			})
			buf.Write(body.Bytes())
			seq++
		}
	}
	return buf.Bytes(), nil
}

// syntheticState returns the vendor radial state code of ray r of cut c.
func syntheticState(c, cuts, r, rays int) int32 {
	switch {
	case r == 0 && c == 0:
		return 3
	case r == 0:
		return 0
	case r == rays-1 && c == cuts-1:
		return 4
	case r == rays-1:
		return 2
	default:
		return 1
	}
}
