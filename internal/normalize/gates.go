package normalize

import (
	"math"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// Resample maps m onto the ref gate geometry by nearest neighbour. The output
// covers ref gates up to the last input gate; gates outside the input span
// are missing. m is returned unchanged when its geometry already matches.
func Resample(m radar.Moment, ref radar.Gate) radar.Moment {
	if m.Gate.Equal(ref) || len(m.Data) == 0 || ref.Spacing <= 0 || m.Gate.Spacing <= 0 {
		return m
	}
	last := m.Gate.Range(len(m.Data) - 1)
	n := int(math.Floor((last+m.Gate.Spacing/2-ref.First)/ref.Spacing)) + 1
	if n <= 0 {
		return radar.Moment{Kind: m.Kind, Code: m.Code, Gate: ref}
	}
	out := make([]float64, n)
	for i := range out {
		j := int(math.Round((ref.Range(i) - m.Gate.First) / m.Gate.Spacing))
		if j < 0 || j >= len(m.Data) {
			out[i] = radar.Missing
			continue
		}
		out[i] = m.Data[j]
	}
	return radar.Moment{Kind: m.Kind, Code: m.Code, Gate: ref, Data: out}
}

// Pad right-pads row with missing to length n. Longer rows are returned as is.
func Pad(row []float64, n int) []float64 {
	if len(row) >= n {
		return row
	}
	out := make([]float64, n)
	copy(out, row)
	for i := len(row); i < n; i++ {
		out[i] = radar.Missing
	}
	return out
}
