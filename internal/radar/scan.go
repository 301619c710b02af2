package radar

import "time"

// Status is the sweep-boundary flag set of a radial.
type Status uint8

const (
	StatusMid   Status = 0
	StatusStart Status = 1 << 0
	StatusEnd   Status = 1 << 1
	// StatusSingle marks a one-ray sweep.
	StatusSingle = StatusStart | StatusEnd
)

// StatusFromCode maps a vendor radial state code to a Status.
func StatusFromCode(code int) Status {
	switch code {
	case 0, 3:
		return StatusStart
	case 2, 4:
		return StatusEnd
	default:
		return StatusMid
	}
}

func (s Status) IsStart() bool { return s&StatusStart != 0 }
func (s Status) IsEnd() bool   { return s&StatusEnd != 0 }

// ScanType is the antenna scan strategy of a volume.
type ScanType string

const (
	ScanPPI    ScanType = "ppi"
	ScanRHI    ScanType = "rhi"
	ScanSector ScanType = "sector"
	ScanOther  ScanType = "other"
)

// Site holds radar location and hardware parameters.
type Site struct {
	Code      string  `json:"code,omitempty"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Altitude of the antenna above sea level in meters.
	Altitude float64 `json:"altitude"`
	// Frequency in GHz.
	Frequency float64 `json:"frequency"`
	// BeamWidth is the horizontal half-power beam width in degrees.
	BeamWidth float64 `json:"beam_width,omitempty"`
}

// Radial is one beam of samples along range.
type Radial struct {
	Azimuth   float64
	Elevation float64
	Time      time.Time
	Status    Status
	// Nyquist velocity in m/s and unambiguous range in meters, when the
	// format records them per radial.
	Nyquist          float64
	UnambiguousRange float64
	Moments          []Moment
}

// Moment returns the first moment of the given kind.
func (r *Radial) Moment(k MomentKind) (Moment, bool) {
	for _, m := range r.Moments {
		if m.Kind == k {
			return m, true
		}
	}
	return Moment{}, false
}

// Has reports whether the radial carries moment k.
func (r *Radial) Has(k MomentKind) bool {
	_, ok := r.Moment(k)
	return ok
}

// Cut is the per-elevation scan configuration declared by a header.
type Cut struct {
	Elevation float64
	Azimuth   float64
	// FixedAngle is the nominal target angle: Elevation for PPI, Azimuth for RHI.
	FixedAngle       float64
	Nyquist          float64
	UnambiguousRange float64
}

// MergeMode selects how the normalizer treats sweeps that split reflectivity
// and velocity across adjacent elevations.
type MergeMode int

const (
	MergeNone MergeMode = iota
	// MergeAdjacent pairs each reflectivity-only sweep with the velocity-only
	// sweep that immediately follows it.
	MergeAdjacent
	// MergePositional pairs the i-th reflectivity-only sweep with the i-th
	// velocity-only sweep up to the shorter count.
	MergePositional
)

// Partition is a precomputed sweep split, inclusive on both ends.
type Partition struct {
	Start []int
	End   []int
}

// Len returns the number of sweeps.
func (p Partition) Len() int { return len(p.Start) }

// RawScan is what a decoder hands to the normalizer.
type RawScan struct {
	Format   string
	Site     Site
	ScanType ScanType
	TaskName string
	Start    time.Time
	End      time.Time
	Radials  []Radial

	// Cuts holds one entry per sweep as emitted by the decoder, before any
	// split-moment merge. Empty when the format has no cut table.
	Cuts []Cut
	// DeclaredSweeps is the sweep count the header promises; zero skips the check.
	DeclaredSweeps int
	// Partition, when set, replaces status-code partitioning.
	Partition *Partition
	Merge     MergeMode
	// RefGate is the range geometry every moment is reconciled onto.
	RefGate Gate
	// FixedAngles derives per-sweep fixed angles from the first-ray
	// elevations when the format has no cut table.
	FixedAngles func(firstRayElevation []float64) []float64

	IgnoredCodes []int
}
