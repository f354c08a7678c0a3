package onlineindex

import (
	"context"

	"onlineindex/internal/kv"
)

// buildUnbuilt runs one chunk over interval and records the result in the
// Built-Range Set within the same transaction: build, then mark-built,
// atomically. If the BRS insert turns out to be a no-op — the interval
// was already fully covered, most often because this is a retried
// transaction that actually committed previously — it returns
// RangeAlreadyBuiltError instead of silently succeeding, so the caller
// can recover by re-querying BRS.missing rather than double-counting
// progress. The retry controller passes the error through untouched;
// BuildIndex and BuildRange do the re-query.
func buildUnbuilt(
	ctx context.Context,
	tx *kv.Tx,
	rs RecordStore,
	rangeSet *RangeSet,
	index string,
	rts map[RecordType]bool,
	interval Interval,
	recordsRange Interval,
	limit int,
	respectLimit bool,
	metrics Metrics,
) (next PK, hasNext bool, scanned int, err error) {
	next, hasNext, scanned, err = buildChunk(ctx, rs, index, rts, interval, recordsRange, limit, respectLimit, metrics)
	if err != nil {
		return PK{}, false, scanned, err
	}

	builtEnd := interval.End
	if hasNext {
		builtEnd = next
	}

	changed, err := rangeSet.Insert(tx, interval.Begin, builtEnd)
	if err != nil {
		return PK{}, false, scanned, err
	}
	if !changed {
		return PK{}, false, scanned, &RangeAlreadyBuiltError{Begin: interval.Begin, End: builtEnd}
	}

	return next, hasNext, scanned, nil
}
