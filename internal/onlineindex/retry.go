package onlineindex

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"onlineindex/internal/kv"
	"onlineindex/internal/logging"
)

// retryController owns the single piece of state that must survive across
// many chunk builds within one run: the current adaptive row-count limit.
// It only ever shrinks (never grows back within a run) once a capacity
// error is seen, which is why it is "sticky" rather than reset per call.
type retryController struct {
	cfg    BuilderConfig
	limit  int
	logger *slog.Logger
}

func newRetryController(cfg BuilderConfig, logger *slog.Logger) *retryController {
	return &retryController{cfg: cfg, limit: cfg.Limit, logger: logging.Default(logger)}
}

// buildRange drives buildUnbuilt to completion for one interval, opening
// a fresh transaction per attempt (batch priority — this work competes
// with foreground traffic) and fails fast on anything that isn't a
// recognized capacity error: a non-WRITE_ONLY index, a RangeAlreadyBuilt
// (left for the caller to recover from), or any other error is returned
// immediately without consuming retry budget.
func (rc *retryController) buildRange(
	ctx context.Context,
	store *kv.Store,
	rsFactory RecordStoreFactory,
	rangeSet *RangeSet,
	index string,
	rts map[RecordType]bool,
	interval Interval,
	recordsRange Interval,
	metrics Metrics,
) (next PK, hasNext bool, scanned int, err error) {
	delay := rc.cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= rc.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return PK{}, false, 0, err
		}

		var n PK
		var hn bool
		var sc int
		txErr := store.Run(ctx, kv.PriorityBatch, func(tx *kv.Tx) error {
			rs, err := rsFactory(ctx, tx)
			if err != nil {
				return err
			}
			state, err := rs.IndexState(index)
			if err != nil {
				return err
			}
			if state != IndexWriteOnly {
				return &AttemptedBuildOfReadableIndexError{Index: index, State: state}
			}
			n, hn, sc, err = buildUnbuilt(ctx, tx, rs, rangeSet, index, rts, interval, recordsRange, rc.limit, true, metrics)
			return err
		})

		if txErr == nil {
			return n, hn, sc, nil
		}

		var rab *RangeAlreadyBuiltError
		if errors.As(txErr, &rab) {
			return PK{}, false, 0, txErr
		}
		var notWO *AttemptedBuildOfReadableIndexError
		if errors.As(txErr, &notWO) {
			return PK{}, false, 0, txErr
		}

		lastErr = txErr

		ce, isCapacity := classifyCapacity(txErr)
		if !isCapacity {
			return PK{}, false, 0, txErr
		}

		newLimit := max(1, 3*rc.limit/4)
		if newLimit != rc.limit {
			rc.logger.Info("shrinking chunk limit after capacity error",
				"code", ce.Code, "old_limit", rc.limit, "new_limit", newLimit)
			rc.limit = newLimit
		}

		if err := sleepJittered(ctx, delay); err != nil {
			return PK{}, false, 0, err
		}
		delay = nextDelay(delay, rc.cfg.MaxDelay)
	}

	return PK{}, false, 0, &RetryBudgetExhaustedError{Attempts: rc.cfg.MaxRetries, Last: lastErr}
}

// sleepJittered sleeps a full-jittered duration in [0, d), returning
// early with ctx.Err() if ctx is cancelled first.
func sleepJittered(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	jittered := rand.N(d)
	t := time.NewTimer(jittered)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}
