package onlineindex

import (
	"context"
)

// buildChunk scans forward over interval intersected with recordsRange,
// applying each in-scope record to its maintainer in strict PK order —
// never pipelined, so maintainers that depend on arrival order (rank and
// score indexes) see updates exactly as they would from a live write
// path. The scan is capped at limit rows when respectLimit is true;
// limit <= 0 is treated as unbounded regardless of respectLimit.
//
// Returns (PK, true, scanned, nil) with the PK of the next unconsumed
// record when the chunk stopped early because of the row cap and more
// records remain in range. Returns (zero PK, false, scanned, nil) when
// the chunk consumed every record in range (including zero records — an
// empty interval). scanned is the row count actually read, used upstream
// to drive rate limiting.
func buildChunk(
	ctx context.Context,
	rs RecordStore,
	index string,
	rts map[RecordType]bool,
	interval Interval,
	recordsRange Interval,
	limit int,
	respectLimit bool,
	metrics Metrics,
) (next PK, hasNext bool, scanned int, err error) {
	lo := interval.Begin
	if recordsRange.Begin.Compare(lo) > 0 {
		lo = recordsRange.Begin
	}
	hi := interval.End
	if recordsRange.End.Compare(hi) < 0 {
		hi = recordsRange.End
	}
	if lo.Compare(hi) >= 0 {
		return PK{}, false, 0, nil
	}

	scanLimit := 0
	if respectLimit && limit > 0 {
		scanLimit = limit
	}

	cur, err := rs.ScanRecords(ctx, lo, hi, scanLimit)
	if err != nil {
		return PK{}, false, 0, err
	}
	defer cur.Close()

	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return PK{}, false, seen, err
		}
		rec, ok, err := cur.Next(ctx)
		if err != nil {
			return PK{}, false, seen, err
		}
		if !ok {
			break
		}
		seen++
		metrics.RecordsScanned(1)

		if rts == nil || rts[rec.Type] {
			m, err := rs.IndexMaintainer(index, rec.Type)
			if err != nil {
				return PK{}, false, seen, err
			}
			if err := m.Update(ctx, nil, &rec); err != nil {
				return PK{}, false, seen, err
			}
			metrics.RecordsIndexed(1)
		}
	}

	if seen == 0 {
		return PK{}, false, 0, nil
	}

	contPK, more := cur.Continuation()
	if !more {
		return PK{}, false, seen, nil
	}
	return contPK, true, seen, nil
}
