package radar

import (
	"math"
	"strings"
)

// MomentKind identifies a radar moment (a measured or derived field).
type MomentKind int

const (
	MomentIgnored MomentKind = iota
	MomentDBT
	MomentDBZ
	MomentV
	MomentW
	MomentSQI
	MomentCPA
	MomentZDR
	MomentLDR
	MomentCC
	MomentPhiDP
	MomentKDP
	MomentCP
	MomentHCL
	MomentCF
	MomentSNRH
	MomentSNRV
	MomentZc
	MomentVc
	MomentWc
	MomentZDRc
)

var momentNames = map[MomentKind]string{
	MomentIgnored: "Ignored",
	MomentDBT:     "dBT",
	MomentDBZ:     "dBZ",
	MomentV:       "V",
	MomentW:       "W",
	MomentSQI:     "SQI",
	MomentCPA:     "CPA",
	MomentZDR:     "ZDR",
	MomentLDR:     "LDR",
	MomentCC:      "CC",
	MomentPhiDP:   "PhiDP",
	MomentKDP:     "KDP",
	MomentCP:      "CP",
	MomentHCL:     "HCL",
	MomentCF:      "CF",
	MomentSNRH:    "SNRH",
	MomentSNRV:    "SNRV",
	MomentZc:      "Zc",
	MomentVc:      "Vc",
	MomentWc:      "Wc",
	MomentZDRc:    "ZDRc",
}

func (k MomentKind) String() string {
	if s, ok := momentNames[k]; ok {
		return s
	}
	return "Ignored"
}

// ParseMomentKind resolves a moment name such as "dBZ" or "zdr".
func ParseMomentKind(s string) (MomentKind, bool) {
	for k, name := range momentNames {
		if k != MomentIgnored && strings.EqualFold(name, s) {
			return k, true
		}
	}
	return MomentIgnored, false
}

// Missing marks a gate without a valid measurement.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// MissingSlice returns n missing values.
func MissingSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Missing
	}
	return out
}

// Gate describes the range geometry of a moment array: gate i sits at
// First + i*Spacing meters from the antenna.
type Gate struct {
	First   float64
	Spacing float64
}

// Range returns the distance of gate i.
func (g Gate) Range(i int) float64 {
	return g.First + float64(i)*g.Spacing
}

// Equal reports whether two gate geometries coincide to within a millimeter.
func (g Gate) Equal(o Gate) bool {
	return math.Abs(g.First-o.First) < 1e-3 && math.Abs(g.Spacing-o.Spacing) < 1e-3
}

// Moment is one decoded moment array within a radial.
type Moment struct {
	Kind MomentKind
	// Code is the vendor moment code; kept for MomentIgnored entries.
	Code int
	Gate Gate
	Data []float64
}
