package format

import (
	"fmt"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/normalize"
	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const (
	beamConfigSize = 384
	paRadialSize   = 128
	// paDefaultResolution applies when a cut leaves its gate spacing unset.
	paDefaultResolution = 30
)

type paSiteConfig struct {
	Code          [8]byte
	Name          [32]byte
	Latitude      float32
	Longitude     float32
	AntennaHeight int32
	GroundHeight  int32
	Frequency     float32 // MHz
	BeamWidthHori float32
	BeamWidthVert float32
	RDAVersion    int32
	RadarType     int16
	_             [54]byte
}

type paTaskConfig struct {
	Name             [32]byte
	Description      [128]byte
	PolarizationType int32
	ScanType         int32
	BeamNumber       int32
	CutNumber        int32
	RayOrder         int32
	VolumeStartTime  int64
	_                [68]byte
}

type paCutConfig struct {
	CutIndex          int16
	TxBeamIndex       int16
	Elevation         float32
	TxBeamGain        float32
	RxBeamWidthH      float32
	RxBeamWidthV      float32
	RxBeamGain        float32
	ProcessMode       int32
	WaveForm          int32
	N1PRF1            float32
	N1PRF2            float32
	N2PRF1            float32
	N2PRF2            float32
	UnfoldMode        int32
	Azimuth           float32
	StartAngle        float32
	EndAngle          float32
	AngularResolution float32
	ScanSpeed         float32
	LogResolution     float32
	DopplerResolution float32
	MaximumRange1     int32
	MaximumRange2     int32
	StartRange        int32
	Sample1           int32
	Sample2           int32
	PhaseMode         int32
	AtmosphericLoss   float32
	NyquistSpeed      float32
	_                 [144]byte
}

type paRadialHeader struct {
	RadialState     int32
	SpotBlank       int32
	SequenceNumber  int32
	RadialNumber    int32
	ElevationNumber int32
	Azimuth         float32
	Elevation       float32
	Seconds         int64
	MicroSeconds    int32
	LengthOfData    int32
	MomentNumber    int32
	ScanBeamIndex   int16
	HorizontalNoise int16
	VerticalNoise   int16
	PRFFlag         uint32
	_               [70]byte
}

// phasedArrayDecoder reads the phased-array variant of the standard format.
// Rays of all cuts may be interleaved; every cut holds the same ray count.
type phasedArrayDecoder struct {
	radialSet
	data []byte
	opts Options

	site      paSiteConfig
	task      paTaskConfig
	cuts      []paCutConfig
	partition radar.Partition
}

func (d *phasedArrayDecoder) Format() Format { return PhasedArray }

func (d *phasedArrayDecoder) ReadHeader() error {
	var g genericHeader
	if err := readStruct(d.data, 0, &g); err != nil {
		return fmt.Errorf("generic header: %w", err)
	}
	if err := readStruct(d.data, siteConfigOffset, &d.site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}
	if err := readStruct(d.data, taskConfigOffset, &d.task); err != nil {
		return fmt.Errorf("task config: %w", err)
	}
	if d.task.CutNumber <= 0 || d.task.BeamNumber < 0 {
		return fmt.Errorf("%w: %d beams, %d cuts", radar.ErrHeaderDecode, d.task.BeamNumber, d.task.CutNumber)
	}
	off := d.cutOffset()
	d.cuts = make([]paCutConfig, d.task.CutNumber)
	for i := range d.cuts {
		if err := readStruct(d.data, off+i*cutConfigSize, &d.cuts[i]); err != nil {
			return fmt.Errorf("cut %d: %w", i, err)
		}
	}
	return nil
}

func (d *phasedArrayDecoder) cutOffset() int {
	return cutConfigOffset + int(d.task.BeamNumber)*beamConfigSize
}

func (d *phasedArrayDecoder) resolution(k radar.MomentKind) radar.Gate {
	res := float64(d.cuts[0].DopplerResolution)
	if logChannel(k) {
		res = float64(d.cuts[0].LogResolution)
	}
	if res == 0 {
		res = paDefaultResolution
	}
	return radar.Gate{First: res, Spacing: res}
}

func (d *phasedArrayDecoder) ReadRadials() error {
	if d.cuts == nil {
		return fmt.Errorf("%w: header not read", radar.ErrHeaderDecode)
	}
	var rays []radar.Radial
	off := d.cutOffset() + len(d.cuts)*cutConfigSize
	for len(d.data)-off >= paRadialSize {
		var h paRadialHeader
		if err := readStruct(d.data, off, &h); err != nil {
			return fmt.Errorf("radial %d: %w", len(rays), err)
		}
		off += paRadialSize
		moments, next, err := readMoments(d.data, off, int(h.MomentNumber), d.resolution)
		if err != nil {
			return fmt.Errorf("radial %d: %w", len(rays), err)
		}
		off = next
		if len(moments) == 0 {
			continue
		}
		rays = append(rays, radar.Radial{
			Azimuth:   float64(h.Azimuth),
			Elevation: signedElevation(float64(h.Elevation)),
			Moments:   moments,
		})
	}

	p, err := normalize.EqualPartition(len(rays), len(d.cuts))
	if err != nil {
		return err
	}
	d.partition = p
	d.radials = d.bySweep(rays)
	start := time.Unix(d.task.VolumeStartTime, 0).UTC()
	for i := range d.cuts {
		for r := p.Start[i]; r <= p.End[i]; r++ {
			ray := &d.radials[r]
			ray.Time = start
			ray.Nyquist = float64(d.cuts[i].NyquistSpeed)
			ray.UnambiguousRange = float64(d.cuts[i].MaximumRange1)
			ray.Status = boundary(r-p.Start[i], p.End[i]-p.Start[i]+1)
		}
	}
	return nil
}

// bySweep reorders interleaved rays so each cut is contiguous. Rays are
// interleaved when the first two share an azimuth.
func (d *phasedArrayDecoder) bySweep(rays []radar.Radial) []radar.Radial {
	n := len(d.cuts)
	if len(rays) < 2 || rays[0].Azimuth != rays[1].Azimuth {
		return rays
	}
	out := make([]radar.Radial, 0, len(rays))
	for i := 0; i < n; i++ {
		for r := i; r < len(rays); r += n {
			out = append(out, rays[r])
		}
	}
	return out
}

func (d *phasedArrayDecoder) SiteLocation() radar.Site {
	return applyOverrides(radar.Site{
		Code:      cString(d.site.Code[:]),
		Name:      cString(d.site.Name[:]),
		Latitude:  float64(d.site.Latitude),
		Longitude: float64(d.site.Longitude),
		Altitude:  float64(d.site.AntennaHeight),
		Frequency: float64(d.site.Frequency) / 1000,
		BeamWidth: float64(d.site.BeamWidthHori),
	}, d.opts)
}

func (d *phasedArrayDecoder) RawScan() *radar.RawScan {
	scanType := scanTypeFromCode(d.task.ScanType)
	cuts := make([]radar.Cut, len(d.cuts))
	for i, c := range d.cuts {
		cuts[i] = radar.Cut{
			Elevation:        float64(c.Elevation),
			Azimuth:          float64(c.Azimuth),
			FixedAngle:       fixedAngle(scanType, float64(c.Elevation), float64(c.Azimuth)),
			Nyquist:          float64(c.NyquistSpeed),
			UnambiguousRange: float64(c.MaximumRange1),
		}
	}
	p := d.partition
	start := time.Unix(d.task.VolumeStartTime, 0).UTC()
	return &radar.RawScan{
		Format:         string(PhasedArray),
		Site:           d.SiteLocation(),
		ScanType:       scanType,
		TaskName:       cString(d.task.Name[:]),
		Start:          start,
		End:            start,
		Radials:        d.radials,
		Cuts:           cuts,
		DeclaredSweeps: len(d.cuts),
		Partition:      &p,
		Merge:          radar.MergeNone,
		RefGate:        d.resolution(radar.MomentV),
	}
}
