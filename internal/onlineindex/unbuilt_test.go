package onlineindex

import (
	"errors"
	"testing"

	"onlineindex/internal/kv"
)

func TestBuildUnbuiltMarksRangeBuilt(t *testing.T) {
	store := openTestStore(t)
	rangeSet := NewRangeSet([]byte("brs"))
	fm := newFakeManager(store, recs(5))
	full := Interval{Begin: NegInf(), End: PosInf()}

	err := store.Run(t.Context(), kv.PriorityDefault, func(tx *kv.Tx) error {
		rs, _ := fm.factory()(t.Context(), tx)
		_, hasNext, _, err := buildUnbuilt(t.Context(), tx, rs, rangeSet, "idx", nil, full, full, 100, true, NopMetrics{})
		if err != nil {
			return err
		}
		if hasNext {
			t.Error("hasNext = true, want false")
		}
		gaps := collectMissing(t, tx, rangeSet, NegInf(), PosInf())
		if len(gaps) != 0 {
			t.Errorf("gaps = %v, want none", gaps)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestBuildUnbuiltRangeAlreadyBuilt(t *testing.T) {
	store := openTestStore(t)
	rangeSet := NewRangeSet([]byte("brs"))
	fm := newFakeManager(store, recs(5))
	full := Interval{Begin: NegInf(), End: PosInf()}

	err := store.Run(t.Context(), kv.PriorityDefault, func(tx *kv.Tx) error {
		rs, _ := fm.factory()(t.Context(), tx)
		if _, err := rangeSet.Insert(tx, NegInf(), PosInf()); err != nil {
			return err
		}
		_, _, _, err := buildUnbuilt(t.Context(), tx, rs, rangeSet, "idx", nil, full, full, 100, true, NopMetrics{})
		var rab *RangeAlreadyBuiltError
		if !errors.As(err, &rab) {
			t.Errorf("err = %v, want *RangeAlreadyBuiltError", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// TestBuildUnbuiltRangeAlreadyBuiltRollsBackMaintainer pins the exact
// defect the concurrent builder test guards against probabilistically:
// buildUnbuilt applies the maintainer before attempting the BRS insert,
// so a losing insert must take that maintainer application down with it
// when the caller propagates the error and the enclosing transaction
// aborts, not just when it happens to lose a race.
func TestBuildUnbuiltRangeAlreadyBuiltRollsBackMaintainer(t *testing.T) {
	store := openTestStore(t)
	rangeSet := NewRangeSet([]byte("brs"))
	fm := newFakeManager(store, recs(5))
	full := Interval{Begin: NegInf(), End: PosInf()}

	err := store.Run(t.Context(), kv.PriorityDefault, func(tx *kv.Tx) error {
		rs, _ := fm.factory()(t.Context(), tx)
		if _, err := rangeSet.Insert(tx, NegInf(), PosInf()); err != nil {
			return err
		}
		_, _, _, err := buildUnbuilt(t.Context(), tx, rs, rangeSet, "idx", nil, full, full, 100, true, NopMetrics{})
		return err
	})
	var rab *RangeAlreadyBuiltError
	if !errors.As(err, &rab) {
		t.Fatalf("err = %v, want *RangeAlreadyBuiltError", err)
	}
	if got := fm.count(typeWidget); got != 0 {
		t.Errorf("indexed count = %d, want 0 (maintainer update must roll back with the failed BRS insert)", got)
	}
}
