package normalize

import (
	"fmt"
	"math"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// maxSplitElevationGap is the largest elevation difference between a
// reflectivity-only sweep and the velocity-only sweep it is merged into.
const maxSplitElevationGap = 0.5

// splitSweeps lists reflectivity-only and velocity-only sweeps by index.
func splitSweeps(radials []radar.Radial, p radar.Partition) (dbzOnly, velOnly []int) {
	for i, s := range p.Start {
		r := &radials[s]
		hasZ, hasV := r.Has(radar.MomentDBZ), r.Has(radar.MomentV)
		switch {
		case hasZ && !hasV:
			dbzOnly = append(dbzOnly, i)
		case hasV && !hasZ:
			velOnly = append(velOnly, i)
		}
	}
	return dbzOnly, velOnly
}

// MergeResult is the output of MergeSplitMoments. Radials, Partition and
// Cuts are new values; the inputs are left untouched.
type MergeResult struct {
	Radials   []radar.Radial
	Partition radar.Partition
	Cuts      []radar.Cut
	// Dropped lists the input sweep indices removed as donors.
	Dropped []int
}

// MergeSplitMoments folds reflectivity-only sweeps into the velocity-only
// sweeps they were split from. Every velocity radial receives the moments of
// the donor radial with the smallest plain absolute azimuth difference; the
// difference is not wrapped at north. Donor sweeps are dropped.
//
// In MergeAdjacent mode each donor must sit immediately before its recipient
// within maxSplitElevationGap degrees. When the donor and recipient counts
// differ, or in MergePositional mode, sweeps pair by position up to the
// shorter count and leftover reflectivity-only sweeps keep their place with
// V and W filled with missing. cuts, when given, must align with p.
func MergeSplitMoments(radials []radar.Radial, p radar.Partition, cuts []radar.Cut, mode radar.MergeMode) (MergeResult, error) {
	res := MergeResult{Radials: radials, Partition: p, Cuts: cuts}
	if mode == radar.MergeNone {
		return res, nil
	}
	dbzOnly, velOnly := splitSweeps(radials, p)
	if len(dbzOnly) == 0 || len(velOnly) == 0 {
		return res, nil
	}

	positional := mode == radar.MergePositional || len(dbzOnly) != len(velOnly)
	pairs := min(len(dbzOnly), len(velOnly))
	donorOf := make(map[int]int, pairs)
	dropped := make(map[int]bool, pairs)
	for k := 0; k < pairs; k++ {
		d, v := dbzOnly[k], velOnly[k]
		if !positional {
			if v != d+1 {
				return MergeResult{}, fmt.Errorf("%w: reflectivity sweep %d is not followed by its velocity sweep (got %d)",
					radar.ErrSweepConsistency, d, v)
			}
			gap := math.Abs(sweepElevation(radials, p, cuts, v) - sweepElevation(radials, p, cuts, d))
			if gap >= maxSplitElevationGap {
				return MergeResult{}, fmt.Errorf("%w: split sweeps %d and %d are %.2f degrees apart",
					radar.ErrSweepConsistency, d, v, gap)
			}
		}
		donorOf[v] = d
		dropped[d] = true
	}
	leftover := make(map[int]bool)
	for _, d := range dbzOnly[pairs:] {
		leftover[d] = true
	}

	out := MergeResult{Radials: make([]radar.Radial, 0, len(radials))}
	for i := range p.Start {
		if dropped[i] {
			out.Dropped = append(out.Dropped, i)
			continue
		}
		start := len(out.Radials)
		recipient := radials[p.Start[i] : p.End[i]+1]
		switch d, ok := donorOf[i]; {
		case ok:
			donor := radials[p.Start[d] : p.End[d]+1]
			for j := range recipient {
				out.Radials = append(out.Radials, withDonor(recipient[j], donor[nearestAzimuth(donor, recipient[j].Azimuth)]))
			}
		case leftover[i]:
			for j := range recipient {
				out.Radials = append(out.Radials, withMissingDoppler(recipient[j]))
			}
		default:
			for j := range recipient {
				out.Radials = append(out.Radials, cloneRadial(recipient[j]))
			}
		}
		out.Partition.Start = append(out.Partition.Start, start)
		out.Partition.End = append(out.Partition.End, len(out.Radials)-1)
		if len(cuts) == p.Len() {
			out.Cuts = append(out.Cuts, cuts[i])
		}
	}
	return out, nil
}

func sweepElevation(radials []radar.Radial, p radar.Partition, cuts []radar.Cut, i int) float64 {
	if len(cuts) == p.Len() {
		return cuts[i].Elevation
	}
	return radials[p.Start[i]].Elevation
}

// nearestAzimuth returns the first donor with minimal |azimuth - az|.
func nearestAzimuth(donor []radar.Radial, az float64) int {
	best, bestDiff := 0, math.Inf(1)
	for i := range donor {
		if d := math.Abs(donor[i].Azimuth - az); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

func cloneRadial(r radar.Radial) radar.Radial {
	r.Moments = append([]radar.Moment(nil), r.Moments...)
	return r
}

// withDonor copies r and overlays every recognized moment of donor.
func withDonor(r, donor radar.Radial) radar.Radial {
	out := cloneRadial(r)
	for _, m := range donor.Moments {
		if m.Kind == radar.MomentIgnored {
			continue
		}
		replaced := false
		for i := range out.Moments {
			if out.Moments[i].Kind == m.Kind {
				out.Moments[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			out.Moments = append(out.Moments, m)
		}
	}
	return out
}

// withMissingDoppler copies r and adds V and W filled with missing, sized
// like its reflectivity.
func withMissingDoppler(r radar.Radial) radar.Radial {
	out := cloneRadial(r)
	z, _ := r.Moment(radar.MomentDBZ)
	for _, k := range []radar.MomentKind{radar.MomentV, radar.MomentW} {
		if out.Has(k) {
			continue
		}
		out.Moments = append(out.Moments, radar.Moment{Kind: k, Gate: z.Gate, Data: radar.MissingSlice(len(z.Data))})
	}
	return out
}
