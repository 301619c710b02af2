// Package normalize turns decoder output into a canonical radar.Volume.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// Options control normalization.
type Options struct {
	// Repair enables best-effort sweep partitioning.
	Repair bool
}

// Build partitions, merges, reconciles and pads the radials of raw into a
// Volume. raw is not modified.
func Build(raw *radar.RawScan, opts Options) (*radar.Volume, error) {
	if raw == nil || len(raw.Radials) == 0 {
		return nil, fmt.Errorf("%w: no radials", radar.ErrSweepConsistency)
	}

	p, err := partition(raw, opts)
	if err != nil {
		return nil, err
	}
	cuts := raw.Cuts
	if len(cuts) != p.Len() {
		cuts = nil
	}
	merged, err := MergeSplitMoments(raw.Radials, p, cuts, raw.Merge)
	if err != nil {
		return nil, err
	}

	ref := raw.RefGate
	if ref.Spacing <= 0 {
		ref = firstGate(merged.Radials)
	}
	if ref.Spacing <= 0 {
		return nil, errors.New("normalize: no gate geometry in any radial")
	}

	v := &radar.Volume{
		Format:   raw.Format,
		TaskName: raw.TaskName,
		Site:     raw.Site,
		ScanType: raw.ScanType,
		Start:    raw.Start,
		End:      raw.End,
	}
	fillRadials(v, merged.Radials)
	v.Sweeps = sweeps(raw, merged, ref)
	fillFields(v, merged.Radials, ref)
	v.IgnoredCodes = ignoredCodes(raw)
	if v.ScanType == "" {
		v.ScanType = radar.ScanPPI
	}
	return v, nil
}

func partition(raw *radar.RawScan, opts Options) (radar.Partition, error) {
	if raw.Partition == nil {
		return PartitionSweeps(raw.Radials, raw.DeclaredSweeps, opts.Repair)
	}
	p := *raw.Partition
	if len(p.Start) != len(p.End) {
		return radar.Partition{}, fmt.Errorf("%w: %d sweep starts but %d sweep ends",
			radar.ErrSweepConsistency, len(p.Start), len(p.End))
	}
	if err := checkTiling(p, len(raw.Radials)); err != nil {
		return radar.Partition{}, err
	}
	return p, nil
}

func firstGate(radials []radar.Radial) radar.Gate {
	for i := range radials {
		for _, m := range radials[i].Moments {
			if m.Kind != radar.MomentIgnored && m.Gate.Spacing > 0 {
				return m.Gate
			}
		}
	}
	return radar.Gate{}
}

func fillRadials(v *radar.Volume, radials []radar.Radial) {
	n := len(radials)
	v.Azimuth = make([]float64, n)
	v.Elevation = make([]float64, n)
	v.Times = make([]time.Time, n)
	var first, last time.Time
	for i := range radials {
		v.Azimuth[i] = radials[i].Azimuth
		v.Elevation[i] = radials[i].Elevation
		t := radials[i].Time
		v.Times[i] = t
		if t.IsZero() {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	if v.Start.IsZero() {
		v.Start = first
	}
	if v.End.IsZero() {
		v.End = last
	}
}

func sweeps(raw *radar.RawScan, m MergeResult, ref radar.Gate) []radar.Sweep {
	p := m.Partition
	out := make([]radar.Sweep, p.Len())
	var derived []float64
	if len(m.Cuts) != p.Len() {
		firstEl := make([]float64, p.Len())
		for i, s := range p.Start {
			firstEl[i] = m.Radials[s].Elevation
		}
		derived = firstEl
		if raw.FixedAngles != nil {
			derived = raw.FixedAngles(firstEl)
		}
	}
	for i := range out {
		first := &m.Radials[p.Start[i]]
		s := radar.Sweep{
			Number:           i,
			StartRay:         p.Start[i],
			EndRay:           p.End[i],
			Nyquist:          first.Nyquist,
			UnambiguousRange: first.UnambiguousRange,
			Resolution:       ref.Spacing,
		}
		if derived != nil {
			s.FixedAngle = derived[i]
		} else {
			c := m.Cuts[i]
			s.FixedAngle = c.FixedAngle
			if c.Nyquist != 0 {
				s.Nyquist = c.Nyquist
			}
			if c.UnambiguousRange != 0 {
				s.UnambiguousRange = c.UnambiguousRange
			}
		}
		out[i] = s
	}
	return out
}

// fillFields reconciles every recognized moment onto ref and pads each
// moment to its longest row across the volume. Radials lacking a moment
// that others carry get an all-missing row.
func fillFields(v *radar.Volume, radials []radar.Radial, ref radar.Gate) {
	rows := make(map[radar.MomentKind][][]float64)
	for i := range radials {
		for _, m := range radials[i].Moments {
			if m.Kind == radar.MomentIgnored {
				continue
			}
			if _, ok := rows[m.Kind]; !ok {
				rows[m.Kind] = make([][]float64, len(radials))
			}
			if rows[m.Kind][i] != nil {
				continue
			}
			rows[m.Kind][i] = Resample(m, ref).Data
		}
	}

	longest := 0
	v.Fields = make(map[radar.MomentKind][][]float64, len(rows))
	for k, field := range rows {
		n := 0
		for _, r := range field {
			n = max(n, len(r))
		}
		for i, r := range field {
			field[i] = Pad(r, n)
		}
		v.Fields[k] = field
		longest = max(longest, n)
	}
	v.Range = make([]float64, longest)
	for i := range v.Range {
		v.Range[i] = ref.Range(i)
	}
}

func ignoredCodes(raw *radar.RawScan) []int {
	seen := make(map[int]bool)
	for _, c := range raw.IgnoredCodes {
		seen[c] = true
	}
	for i := range raw.Radials {
		for _, m := range raw.Radials[i].Moments {
			if m.Kind == radar.MomentIgnored {
				seen[m.Code] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
