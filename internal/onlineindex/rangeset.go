package onlineindex

import (
	"iter"

	"onlineindex/internal/kv"
)

// Interval is a half-open PK range [Begin, End).
type Interval struct {
	Begin, End PK
}

// RangeSet is the Built-Range Set (BRS): a persistent, transactionally
// maintained set of PK intervals already processed for one index. Entries
// live as key=begin, value=end rows in a single bbolt bucket named by the
// index's subspace.
//
// Invariants maintained by Insert: entries are pairwise disjoint
// (non-overlap), and inserting a range merges with any adjacent or
// overlapping entries so the minimal representation is preserved.
type RangeSet struct {
	subspace []byte
}

// NewRangeSet returns a RangeSet whose entries live under subspace.
func NewRangeSet(subspace []byte) *RangeSet {
	return &RangeSet{subspace: subspace}
}

func (rs *RangeSet) bucket(tx *kv.Tx) (*kv.Bucket, error) {
	return tx.Bucket(rs.subspace)
}

// Missing yields the complement of the BRS within [begin,end) as disjoint
// intervals in ascending order. begin=NegInf()/end=PosInf() mean
// unbounded. The sequence is produced lazily from a live cursor over tx;
// the caller must not mutate the bucket while iterating (read it to
// completion, or stop early via range-over-func break, before inserting).
func (rs *RangeSet) Missing(tx *kv.Tx, begin, end PK) (iter.Seq[Interval], error) {
	b, err := rs.bucket(tx)
	if err != nil {
		return nil, err
	}
	return rs.missingGaps(b, begin, end), nil
}

// missingGaps is the lazy gap generator shared by Missing and Insert's
// changed-detection.
func (rs *RangeSet) missingGaps(b *kv.Bucket, begin, end PK) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		c := b.Cursor()
		cur := begin

		k, v := c.Seek(encodeBound(begin))
		// Check the entry immediately preceding our seek point: it may
		// start before `begin` but extend into [begin,end).
		pk, pv := c.Prev()
		if pk != nil {
			pEnd := decodeBound(pv)
			if pEnd.Compare(cur) > 0 {
				cur = pEnd
			}
		}
		// Restore the cursor to the original seek position. Seek again
		// rather than Next: a Prev from the first key leaves the cursor
		// with no position that Next returns to.
		k, v = c.Seek(encodeBound(begin))

		for k != nil {
			entryBegin := decodeBound(k)
			if !end.IsPosInf() && entryBegin.Compare(end) >= 0 {
				break
			}
			if entryBegin.Compare(cur) > 0 {
				gapEnd := entryBegin
				if !end.IsPosInf() && gapEnd.Compare(end) > 0 {
					gapEnd = end
				}
				if cur.Compare(gapEnd) < 0 {
					if !yield(Interval{Begin: cur, End: gapEnd}) {
						return
					}
				}
			}
			entryEnd := decodeBound(v)
			if entryEnd.Compare(cur) > 0 {
				cur = entryEnd
			}
			k, v = c.Next()
		}

		if cur.Compare(end) < 0 {
			yield(Interval{Begin: cur, End: end})
		}
	}
}

// hasMissing reports whether any part of [begin,end) is uncovered,
// stopping at the first gap found.
func (rs *RangeSet) hasMissing(b *kv.Bucket, begin, end PK) bool {
	found := false
	for range rs.missingGaps(b, begin, end) {
		found = true
		break
	}
	return found
}

// Insert inserts [begin,end) into the BRS within tx, merging with any
// adjacent or overlapping entries, and reports whether the set actually
// changed — false means [begin,end) was already fully covered and no
// mutation was made. Within one transaction, Insert must be called with
// tx's own bucket view so read-your-writes semantics apply to later calls
// in the same transaction.
func (rs *RangeSet) Insert(tx *kv.Tx, begin, end PK) (bool, error) {
	b, err := rs.bucket(tx)
	if err != nil {
		return false, err
	}
	if !rs.hasMissing(b, begin, end) {
		return false, nil
	}

	mergedBegin, mergedEnd := begin, end
	var toDelete [][]byte

	c := b.Cursor()
	k, v := c.Seek(encodeBound(begin))
	pk, pv := c.Prev()
	if pk != nil {
		pBegin, pEnd := decodeBound(pk), decodeBound(pv)
		// Overlapping or touching (pEnd == begin is adjacency).
		if pEnd.Compare(begin) >= 0 {
			toDelete = append(toDelete, cloneBytes(pk))
			if pBegin.Compare(mergedBegin) < 0 {
				mergedBegin = pBegin
			}
			if pEnd.Compare(mergedEnd) > 0 {
				mergedEnd = pEnd
			}
		}
	}
	k, v = c.Seek(encodeBound(begin))

	for k != nil {
		entryBegin := decodeBound(k)
		if !end.IsPosInf() && entryBegin.Compare(end) > 0 {
			break
		}
		entryEnd := decodeBound(v)
		toDelete = append(toDelete, cloneBytes(k))
		if entryBegin.Compare(mergedBegin) < 0 {
			mergedBegin = entryBegin
		}
		if entryEnd.Compare(mergedEnd) > 0 {
			mergedEnd = entryEnd
		}
		k, v = c.Next()
	}

	for _, key := range toDelete {
		if err := b.Delete(key); err != nil {
			return false, err
		}
	}
	if err := b.Put(encodeBound(mergedBegin), encodeBound(mergedEnd)); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes all entries from the BRS. Used only by the
// single-transaction Rebuild path — the online path never deletes.
func (rs *RangeSet) Clear(tx *kv.Tx) error {
	b, err := rs.bucket(tx)
	if err != nil {
		return err
	}
	var keys [][]byte
	if err := b.ForEachKey(func(k []byte) error {
		keys = append(keys, cloneBytes(k))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
