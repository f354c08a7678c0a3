package onlineindex

import (
	"context"
	"errors"

	"onlineindex/internal/kv"
)

// Rebuild wipes the index and its Built-Range Set and repopulates both in
// a single transaction. Intended only for stores small enough that one
// transaction can hold the whole scan within the KV store's size and
// duration limits — BuildIndex is the incremental path for everything
// else.
func (b *Builder) Rebuild(ctx context.Context) error {
	full := Interval{Begin: NegInf(), End: PosInf()}
	err := b.store.Run(ctx, kv.PriorityDefault, func(tx *kv.Tx) error {
		rs, err := b.rsFactory(ctx, tx)
		if err != nil {
			return err
		}
		if err := rs.ClearIndexData(b.index); err != nil {
			return err
		}
		if err := b.rangeSet.Clear(tx); err != nil {
			return err
		}
		meta, err := tx.Bucket(metaBucket(b.index))
		if err != nil {
			return err
		}
		if err := meta.Delete(metaKey); err != nil {
			return err
		}
		if _, _, _, err := buildUnbuilt(ctx, tx, rs, b.rangeSet, b.index, b.rts, full, full, 0, false, b.metrics); err != nil {
			return err
		}
		return rs.MarkIndexReadable(b.index)
	})
	if err != nil {
		return err
	}
	return b.checkOrStoreMetadata(ctx)
}

// BuildRange builds exactly [begin,end) through the ordinary chunked,
// retrying path. A RangeAlreadyBuiltError is recovered from the way
// BuildIndex does: the still-missing parts of [begin,end) are re-queried
// from the Built-Range Set and built, so calling BuildRange twice over the
// same range, or retrying a transaction that committed despite reporting
// commit_unknown_result, ends without error once nothing is missing.
func (b *Builder) BuildRange(ctx context.Context, begin, end PK) error {
	rc := newRetryController(b.cfg, b.logger)
	full := Interval{Begin: NegInf(), End: PosInf()}
	iv := Interval{Begin: begin, End: end}

	for {
		next, hasNext, _, err := rc.buildRange(ctx, b.store, b.rsFactory, b.rangeSet, b.index, b.rts, iv, full, b.metrics)
		var rab *RangeAlreadyBuiltError
		if err != nil && !errors.As(err, &rab) {
			return err
		}
		if err == nil && hasNext {
			iv = Interval{Begin: next, End: iv.End}
			continue
		}
		gaps, err := b.missing(ctx, iv.Begin, end)
		if err != nil || len(gaps) == 0 {
			return err
		}
		iv = gaps[0]
	}
}
