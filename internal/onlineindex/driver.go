package onlineindex

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"onlineindex/internal/kv"
)

// BuildIndex drives the index from its current Built-Range Set state to
// full coverage of the record store, one chunked transaction at a time.
// It primes the empty tail regions first, seeds a FIFO work queue from
// whatever the Built-Range Set reports as missing over the interior, and
// drains that queue — pushing the unconsumed remainder of a partial
// chunk back onto the front of the queue, and recovering from a
// RangeAlreadyBuiltError by re-querying missing over the same interval
// rather than treating it as failure, since a concurrent builder or a
// retried-but-actually-committed transaction both look the same from
// here. When markReadable is true and the queue drains successfully, the
// index is flipped to READABLE in one final transaction.
func (b *Builder) BuildIndex(ctx context.Context, markReadable bool) error {
	runID := uuid.NewString()
	logger := b.logger.With("run_id", runID)
	logger.Info("starting index build")

	if err := b.checkOrStoreMetadata(ctx); err != nil {
		return err
	}

	full := Interval{Begin: NegInf(), End: PosInf()}
	rc := newRetryController(b.cfg, logger)

	interior, ok, err := primeEndpoints(ctx, b.store, b.rsFactory, b.rangeSet, b.index, b.rts, rc, full, b.metrics)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("index build complete: store is empty")
		if markReadable {
			return b.markReadable(ctx)
		}
		return nil
	}

	queue, err := b.missing(ctx, interior.Begin, interior.End)
	if err != nil {
		return err
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		iv := queue[0]
		queue = queue[1:]

		next, hasNext, scanned, err := rc.buildRange(ctx, b.store, b.rsFactory, b.rangeSet, b.index, b.rts, iv, full, b.metrics)
		if err != nil {
			var rab *RangeAlreadyBuiltError
			if errors.As(err, &rab) {
				remaining, verr := b.missing(ctx, iv.Begin, iv.End)
				if verr != nil {
					return verr
				}
				queue = append(remaining, queue...)
				continue
			}
			return err
		}

		if hasNext {
			queue = append([]Interval{{Begin: next, End: iv.End}}, queue...)
		}

		if b.limiter != nil && scanned > 0 {
			if err := b.limiter.WaitN(ctx, scanned); err != nil {
				return err
			}
		}
	}

	logger.Info("index build complete")
	if markReadable {
		return b.markReadable(ctx)
	}
	return nil
}

// missing lists the current gaps in [begin,end) as a plain slice, read
// under one view transaction — the FIFO queue is in-memory state owned
// by this call to BuildIndex, not persisted.
func (b *Builder) missing(ctx context.Context, begin, end PK) ([]Interval, error) {
	var gaps []Interval
	err := b.store.View(ctx, func(tx *kv.Tx) error {
		seq, err := b.rangeSet.Missing(tx, begin, end)
		if err != nil {
			return err
		}
		for gap := range seq {
			gaps = append(gaps, gap)
		}
		return nil
	})
	return gaps, err
}

func (b *Builder) markReadable(ctx context.Context) error {
	return b.store.Run(ctx, kv.PriorityDefault, func(tx *kv.Tx) error {
		rs, err := b.rsFactory(ctx, tx)
		if err != nil {
			return err
		}
		return rs.MarkIndexReadable(b.index)
	})
}
