// Package transform holds the pure business-rule mappings from raw gateway
// records to normalized mirror records. Nothing here performs I/O or reads
// the wall clock; every rule depends only on the timestamps embedded in its
// inputs, so each function is testable with fixed batches.
package transform

import (
	"time"

	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

// decode maps one raw record into a wire struct, tagging failures as
// malformed so callers skip the record instead of failing the page.
func decode(raw types.RawRecord, dest any) error {
	if err := utils.Unmarshal(raw, dest); err != nil {
		return errs.Malformed.Wrap(err, "undecodable record")
	}
	return nil
}

// lastWriteWins keeps, per key, the record with the greatest timestamp.
// Order within a page is stable on the record's own timestamp, never on
// arrival order.
func lastWriteWins[T any, K comparable](records []T, key func(T) K, ts func(T) time.Time) []T {
	latest := make(map[K]T, len(records))
	order := make([]K, 0, len(records))
	for _, rec := range records {
		k := key(rec)
		prev, seen := latest[k]
		if !seen {
			order = append(order, k)
			latest[k] = rec
			continue
		}
		if !ts(rec).Before(ts(prev)) {
			latest[k] = rec
		}
	}

	out := make([]T, 0, len(latest))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

// MaxTimestamp returns the greatest of the given timestamps.
func MaxTimestamp(times ...time.Time) time.Time {
	var max time.Time
	for _, t := range times {
		max = utils.MaxTime(max, t)
	}
	return max
}
