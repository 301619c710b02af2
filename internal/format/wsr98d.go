package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const (
	genericHeaderSize = 32
	siteConfigOffset  = 32
	taskConfigOffset  = 160
	cutConfigOffset   = 416
	cutConfigSize     = 256
	stdRadialSize     = 64
)

type genericHeader struct {
	Magic       uint32
	Major       int16
	Minor       int16
	GenericType int32
	ProductType int32
	_           [16]byte
}

type siteConfig struct {
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
	AntennaGain   int16
	TxLoss        int16
	RxLoss        int16
	OtherLoss     int16
	_             [46]byte
}

type taskConfig struct {
	Name             [32]byte
	Description      [128]byte
	PolarizationType int32
	ScanType         int32
	PulseWidth       int32
	VolumeStartTime  int32
	CutNumber        int32
	HorizontalNoise  float32
	VerticalNoise    float32
	HorizontalCal    float32
	VerticalCal      float32
	HorizontalNoiseT float32
	VerticalNoiseT   float32
	ZDRCalibration   float32
	PhiDPCalibration float32
	LDRCalibration   float32
	_                [40]byte
}

type cutConfig struct {
	ProcessMode       int32
	WaveForm          int32
	PRF1              float32
	PRF2              float32
	DealiasingMode    int32
	Azimuth           float32
	Elevation         float32
	StartAngle        float32
	EndAngle          float32
	AngularResolution float32
	ScanSpeed         float32
	LogResolution     int32
	DopplerResolution int32
	MaximumRange1     int32
	MaximumRange2     int32
	StartRange        int32
	Sample1           int32
	Sample2           int32
	PhaseMode         int32
	AtmosphericLoss   float32
	NyquistSpeed      float32
	MomentsMask       int64
	SizeMask          int64
	MiscFilterMask    int32
	SQIThreshold      float32
	SIGThreshold      float32
	CSRThreshold      float32
	LOGThreshold      float32
	CPAThreshold      float32
	PMIThreshold      float32
	DPLOGThreshold    float32
	_                 [4]byte
	DBTMask           int32
	DBZMask           int32
	VelocityMask      int32
	WidthMask         int32
	ZDRMask           int32
	_                 [12]byte
	ScanSync          int32
	Direction         int32
	ClutterClassifier int16
	ClutterFilter     int16
	NotchWidth        int16
	FilterWindow      int16
	_                 [72]byte
}

type stdRadialHeader struct {
	RadialState     int32
	SpotBlank       int32
	SequenceNumber  int32
	RadialNumber    int32
	ElevationNumber int32
	Azimuth         float32
	Elevation       float32
	Seconds         int32
	MicroSeconds    int32
	LengthOfData    int32
	MomentNumber    int32
	_               [20]byte
}

// splitScanTasks name the volume coverage patterns whose reflectivity-only
// and velocity-only sweep counts may differ.
var splitScanTasks = []string{"VCP26D", "VCP27D"}

// standardDecoder reads the "RSTM" standard base-data format.
type standardDecoder struct {
	radialSet
	data []byte
	opts Options

	generic genericHeader
	site    siteConfig
	task    taskConfig
	cuts    []cutConfig
	codes   []int32
}

func (d *standardDecoder) Format() Format { return Standard }

func (d *standardDecoder) ReadHeader() error {
	if !hasAt(d.data, 0, standardMagic) {
		return fmt.Errorf("%w: missing RSTM magic", radar.ErrHeaderDecode)
	}
	if err := readStruct(d.data, 0, &d.generic); err != nil {
		return fmt.Errorf("generic header: %w", err)
	}
	if err := readStruct(d.data, siteConfigOffset, &d.site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}
	if err := readStruct(d.data, taskConfigOffset, &d.task); err != nil {
		return fmt.Errorf("task config: %w", err)
	}
	if d.task.CutNumber <= 0 {
		return fmt.Errorf("%w: cut number %d", radar.ErrHeaderDecode, d.task.CutNumber)
	}
	d.cuts = make([]cutConfig, d.task.CutNumber)
	for i := range d.cuts {
		if err := readStruct(d.data, cutConfigOffset+i*cutConfigSize, &d.cuts[i]); err != nil {
			return fmt.Errorf("cut %d: %w", i, err)
		}
	}
	return nil
}

func (d *standardDecoder) radialOffset() int {
	return cutConfigOffset + len(d.cuts)*cutConfigSize
}

// cutFor returns the cut configuration a 1-based elevation number refers to.
func (d *standardDecoder) cutFor(elevationNumber int32) cutConfig {
	i := int(elevationNumber) - 1
	if i < 0 || i >= len(d.cuts) {
		i = 0
	}
	return d.cuts[i]
}

func (d *standardDecoder) ReadRadials() error {
	if d.cuts == nil {
		return fmt.Errorf("%w: header not read", radar.ErrHeaderDecode)
	}
	off := d.radialOffset()
	for len(d.data)-off >= stdRadialSize {
		var h stdRadialHeader
		if err := readStruct(d.data, off, &h); err != nil {
			return fmt.Errorf("radial %d: %w", len(d.radials), err)
		}
		off += stdRadialSize
		cut := d.cutFor(h.ElevationNumber)
		moments, next, err := readMoments(d.data, off, int(h.MomentNumber), func(k radar.MomentKind) radar.Gate {
			res := float64(cut.DopplerResolution)
			if logChannel(k) {
				res = float64(cut.LogResolution)
			}
			return radar.Gate{First: res, Spacing: res}
		})
		if err != nil {
			return fmt.Errorf("radial %d: %w", len(d.radials), err)
		}
		off = next
		d.codes = append(d.codes, h.RadialState)
		d.radials = append(d.radials, radar.Radial{
			Azimuth:          float64(h.Azimuth),
			Elevation:        signedElevation(float64(h.Elevation)),
			Time:             time.Unix(int64(h.Seconds), int64(h.MicroSeconds)*int64(time.Microsecond)).UTC(),
			Nyquist:          float64(cut.NyquistSpeed),
			UnambiguousRange: float64(cut.MaximumRange1),
			Moments:          moments,
		})
	}
	for i, s := range sweepStatuses(d.codes) {
		d.radials[i].Status = s
	}
	return nil
}

func (d *standardDecoder) SiteLocation() radar.Site {
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

func (d *standardDecoder) RawScan() *radar.RawScan {
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
	task := cString(d.task.Name[:])
	merge := radar.MergeAdjacent
	for _, prefix := range splitScanTasks {
		if strings.HasPrefix(task, prefix) {
			merge = radar.MergePositional
		}
	}
	ref := float64(d.cuts[0].DopplerResolution)
	return &radar.RawScan{
		Format:         string(Standard),
		Site:           d.SiteLocation(),
		ScanType:       scanType,
		TaskName:       task,
		Start:          time.Unix(int64(d.task.VolumeStartTime), 0).UTC(),
		Radials:        d.radials,
		Cuts:           cuts,
		DeclaredSweeps: len(d.cuts),
		Merge:          merge,
		RefGate:        radar.Gate{First: ref, Spacing: ref},
	}
}

func fixedAngle(scanType radar.ScanType, elevation, azimuth float64) float64 {
	if scanType == radar.ScanRHI {
		return azimuth
	}
	return elevation
}
