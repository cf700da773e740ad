package audit

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MinGroups is the smallest number of distinct groups a fairness
// comparison is defined over.
const MinGroups = 2

// Compute tallies per-group confusion statistics in a single pass over
// the records. Tallying is commutative, so record order never changes
// the result. Returns [ErrValidation] for an empty dataset, a
// non-binary label, a missing group value, or fewer than [MinGroups]
// distinct groups.
func Compute(records []Record) (map[string]*GroupStats, error) {
	stats, err := tally(records, 0)
	if err != nil {
		return nil, err
	}
	if len(stats) < MinGroups {
		return nil, fmt.Errorf("%w: need at least %d distinct groups, got %d", ErrValidation, MinGroups, len(stats))
	}
	return stats, nil
}

// ComputeConcurrent is [Compute] over contiguous shards aggregated in
// parallel and merged. Counts are integers, so the result is identical
// to the single-pass tally. shards < 2 falls back to Compute.
func ComputeConcurrent(records []Record, shards int) (map[string]*GroupStats, error) {
	if shards < 2 || len(records) < shards {
		return Compute(records)
	}

	parts := make([]map[string]*GroupStats, shards)
	chunk := (len(records) + shards - 1) / shards

	var g errgroup.Group
	for i := 0; i < shards; i++ {
		lo := i * chunk
		hi := min(lo+chunk, len(records))
		if lo >= hi {
			continue
		}
		idx := i
		g.Go(func() error {
			p, err := tally(records[lo:hi], lo)
			if err != nil {
				return err
			}
			parts[idx] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := MergeStats(parts...)
	if len(stats) < MinGroups {
		return nil, fmt.Errorf("%w: need at least %d distinct groups, got %d", ErrValidation, MinGroups, len(stats))
	}
	return stats, nil
}

// MergeStats combines partial per-group tallies into one map. The merge
// is associative and order-independent, so callers streaming very large
// datasets can tally chunks independently and fold them here.
func MergeStats(parts ...map[string]*GroupStats) map[string]*GroupStats {
	merged := make(map[string]*GroupStats)
	for _, part := range parts {
		for name, g := range part {
			m, ok := merged[name]
			if !ok {
				m = &GroupStats{Group: name}
				merged[name] = m
			}
			m.Merge(g)
		}
	}
	return merged
}

// tally aggregates one slice of records. base offsets record indexes in
// validation errors so sharded runs report the true position.
func tally(records []Record, base int) (map[string]*GroupStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrValidation)
	}

	stats := make(map[string]*GroupStats)
	for i, r := range records {
		if err := r.validate(base + i); err != nil {
			return nil, err
		}
		g, ok := stats[r.Group]
		if !ok {
			g = &GroupStats{Group: r.Group}
			stats[r.Group] = g
		}
		g.add(r)
	}
	return stats, nil
}
