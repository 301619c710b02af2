package normalize

import (
	"fmt"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// PartitionSweeps splits radials into sweeps from their status flags. The
// result must tile every radial and, when declared > 0, yield exactly
// declared sweeps. In repair mode end flags are ignored: every sweep closes
// one ray before the next start, or at the last ray.
func PartitionSweeps(radials []radar.Radial, declared int, repair bool) (radar.Partition, error) {
	n := len(radials)
	if n == 0 {
		return radar.Partition{}, fmt.Errorf("%w: no radials", radar.ErrSweepConsistency)
	}
	var starts, ends []int
	for i := range radials {
		if radials[i].Status.IsStart() {
			starts = append(starts, i)
		}
		if radials[i].Status.IsEnd() {
			ends = append(ends, i)
		}
	}

	if repair {
		return repairPartition(n, starts, declared)
	}

	if len(starts) != len(ends) {
		return radar.Partition{}, fmt.Errorf("%w: %d sweep starts but %d sweep ends",
			radar.ErrSweepConsistency, len(starts), len(ends))
	}
	if declared > 0 && len(starts) != declared {
		return radar.Partition{}, fmt.Errorf("%w: found %d sweeps, header declares %d",
			radar.ErrSweepConsistency, len(starts), declared)
	}
	p := radar.Partition{Start: starts, End: ends}
	if err := checkTiling(p, n); err != nil {
		return radar.Partition{}, err
	}
	return p, nil
}

func repairPartition(n int, starts []int, declared int) (radar.Partition, error) {
	if len(starts) == 0 || starts[0] != 0 {
		starts = append([]int{0}, starts...)
	}
	if declared > 0 && len(starts) != declared {
		return radar.Partition{}, fmt.Errorf("%w: found %d sweep starts, header declares %d",
			radar.ErrSweepConsistency, len(starts), declared)
	}
	p := radar.Partition{Start: starts, End: make([]int, len(starts))}
	for i := range starts {
		if i+1 < len(starts) {
			p.End[i] = starts[i+1] - 1
		} else {
			p.End[i] = n - 1
		}
	}
	return p, checkTiling(p, n)
}

func checkTiling(p radar.Partition, n int) error {
	next := 0
	for i := range p.Start {
		if p.Start[i] != next || p.End[i] < p.Start[i] {
			return fmt.Errorf("%w: sweep %d spans rays [%d, %d], expected start %d",
				radar.ErrSweepConsistency, i, p.Start[i], p.End[i], next)
		}
		next = p.End[i] + 1
	}
	if next != n {
		return fmt.Errorf("%w: sweeps cover %d of %d rays", radar.ErrSweepConsistency, next, n)
	}
	return nil
}

// EqualPartition splits n radials into count sweeps of equal length.
func EqualPartition(n, count int) (radar.Partition, error) {
	if count <= 0 || n%count != 0 {
		return radar.Partition{}, fmt.Errorf("%w: %d rays do not split into %d equal sweeps",
			radar.ErrSweepConsistency, n, count)
	}
	per := n / count
	p := radar.Partition{Start: make([]int, count), End: make([]int, count)}
	for i := 0; i < count; i++ {
		p.Start[i] = i * per
		p.End[i] = (i+1)*per - 1
	}
	return p, nil
}
