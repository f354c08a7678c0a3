package onlineindex

import (
	"context"
	"errors"

	"onlineindex/internal/kv"
)

// primeEndpoints marks the two tail regions outside the store's actual
// data — [recordsRange.Begin, firstRecordPK) and [afterLastRecordPK,
// recordsRange.End) — as built up front, each as one chunk through the
// retry controller, before the interior build starts. Those chunks find
// no records, so each tail costs a single transaction. A tail that is
// already covered (by a concurrent builder or an earlier run) counts as
// primed rather than as an error. It returns the remaining
// interior interval that does need the ordinary chunked build, or
// ok=false if the store holds no records in range at all (in which case
// the entire range has already been marked built as a single endpoint).
func primeEndpoints(
	ctx context.Context,
	store *kv.Store,
	rsFactory RecordStoreFactory,
	rangeSet *RangeSet,
	index string,
	rts map[RecordType]bool,
	rc *retryController,
	recordsRange Interval,
	metrics Metrics,
) (interior Interval, ok bool, err error) {
	var firstPK, lastPK PK
	var hasFirst bool

	err = store.View(ctx, func(tx *kv.Tx) error {
		rs, err := rsFactory(ctx, tx)
		if err != nil {
			return err
		}
		fc, err := rs.ScanRecords(ctx, recordsRange.Begin, recordsRange.End, 1)
		if err != nil {
			return err
		}
		defer fc.Close()
		if rec, found, err := fc.Next(ctx); err != nil {
			return err
		} else if found {
			firstPK, hasFirst = rec.PK, true
		}
		if !hasFirst {
			return nil
		}

		lc, err := rs.ScanRecordsReverse(ctx, recordsRange.Begin, recordsRange.End, 1)
		if err != nil {
			return err
		}
		defer lc.Close()
		if rec, found, err := lc.Next(ctx); err != nil {
			return err
		} else if found {
			lastPK = rec.PK
		}
		return nil
	})
	if err != nil {
		return Interval{}, false, err
	}

	primeBuilt := func(iv Interval) error {
		_, _, _, err := rc.buildRange(ctx, store, rsFactory, rangeSet, index, rts, iv, recordsRange, metrics)
		var rab *RangeAlreadyBuiltError
		if errors.As(err, &rab) {
			return nil
		}
		return err
	}

	if !hasFirst {
		if err := primeBuilt(recordsRange); err != nil {
			return Interval{}, false, err
		}
		return Interval{}, false, nil
	}

	// lastPK was found by scanning the range in reverse, so by
	// construction nothing in recordsRange sorts between it and
	// recordsRange.End: the whole tail (lastPK, recordsRange.End) is
	// empty and can be primed directly, no further scan needed.
	afterLast := lastPK.successor()

	if recordsRange.Begin.Compare(firstPK) < 0 {
		if err := primeBuilt(Interval{Begin: recordsRange.Begin, End: firstPK}); err != nil {
			return Interval{}, false, err
		}
	}
	if afterLast.Compare(recordsRange.End) < 0 {
		if err := primeBuilt(Interval{Begin: afterLast, End: recordsRange.End}); err != nil {
			return Interval{}, false, err
		}
	}

	return Interval{Begin: firstPK, End: afterLast}, true, nil
}
