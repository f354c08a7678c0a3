// Package recordstore provides a reference RecordStore: an in-memory
// record slice plus per-type counting maintainers whose index data
// (state, counts) is persisted through the same kv.Store the builder
// runs against. It exists for tests and as the CLI's backing record
// store, not as a production record store — a real deployment supplies its own
// RecordStore bound to its actual schema and storage.
package recordstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sort"
	"sync"

	"onlineindex/internal/kv"
	"onlineindex/internal/onlineindex"
)

// Manager owns the record slice shared by every RecordStore handed out
// for one index, and points at the kv.Store that actually holds the
// index's mutable data (lifecycle state, per-type maintainer counts).
// Routing that data through store rather than a plain in-memory field
// means a builder transaction that never commits — a losing builder's
// RangeAlreadyBuilt abort, a forced capacity error — takes its count and
// state changes back with it, exactly like a real RecordStore must.
// Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex // guards records only
	index    string
	subspace []byte
	store    *kv.Store
	records  []onlineindex.Record // kept sorted ascending by PK
}

// NewManager returns a Manager for index, starting in WRITE_ONLY (the
// state an online build requires), with its Built-Range Set entries
// addressed by subspace and its index data persisted in store.
func NewManager(index string, subspace []byte, store *kv.Store) *Manager {
	return &Manager{index: index, subspace: subspace, store: store}
}

// Put inserts rec in PK order. Used by callers (tests) to populate the
// store before building; the builder itself
// never writes records, only index data.
func (m *Manager) Put(rec onlineindex.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.records), func(i int) bool { return m.records[i].PK.Compare(rec.PK) >= 0 })
	m.records = append(m.records, onlineindex.Record{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = rec
}

// dataBucket holds one index's lifecycle state and maintainer counts,
// separate from the Built-Range Set bucket the builder itself owns.
func dataBucket(index string) []byte { return []byte("rsdata/" + index) }

var stateKey = []byte("state")

func countKey(rt onlineindex.RecordType) []byte { return []byte("count/" + string(rt)) }

// Count returns the current maintained count for recordType, i.e. what
// the reference maintainer has committed as indexed.
func (m *Manager) Count(recordType onlineindex.RecordType) int64 {
	var n int64
	_ = m.store.View(context.Background(), func(tx *kv.Tx) error {
		b, err := tx.Bucket(dataBucket(m.index))
		if err != nil {
			if errors.Is(err, kv.ErrBucketNotFound) {
				return nil
			}
			return err
		}
		if raw := b.Get(countKey(recordType)); raw != nil {
			n = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return n
}

// State returns the index's current lifecycle state.
func (m *Manager) State() onlineindex.IndexState {
	state := onlineindex.IndexWriteOnly
	_ = m.store.View(context.Background(), func(tx *kv.Tx) error {
		b, err := tx.Bucket(dataBucket(m.index))
		if err != nil {
			if errors.Is(err, kv.ErrBucketNotFound) {
				return nil
			}
			return err
		}
		if raw := b.Get(stateKey); raw != nil {
			state = onlineindex.IndexState(raw[0])
		}
		return nil
	})
	return state
}

// SetState forces the index into state. Tests use this to simulate a
// rebuild request or a misconfigured READABLE index.
func (m *Manager) SetState(state onlineindex.IndexState) {
	_ = m.store.Run(context.Background(), kv.PriorityDefault, func(tx *kv.Tx) error {
		b, err := tx.Bucket(dataBucket(m.index))
		if err != nil {
			return err
		}
		return b.Put(stateKey, []byte{byte(state)})
	})
}

// Factory returns a RecordStoreFactory that binds a view over m to
// whatever transaction the builder passes in. ScanRecords/
// ScanRecordsReverse read the in-memory record slice directly (records
// are seeded once, before a build starts, never concurrently with one);
// IndexState, IndexMaintainer, ClearIndexData and MarkIndexReadable all
// read and write through tx's bucket, so their effects commit or roll
// back with the rest of the caller's transaction.
func (m *Manager) Factory() onlineindex.RecordStoreFactory {
	return func(_ context.Context, tx *kv.Tx) (onlineindex.RecordStore, error) {
		return &boundStore{m: m, tx: tx}, nil
	}
}

type boundStore struct {
	m  *Manager
	tx *kv.Tx
}

func (s *boundStore) bucket() (*kv.Bucket, error) {
	return s.tx.Bucket(dataBucket(s.m.index))
}

func (s *boundStore) IndexState(index string) (onlineindex.IndexState, error) {
	b, err := s.bucket()
	if err != nil {
		return 0, err
	}
	raw := b.Get(stateKey)
	if raw == nil {
		return onlineindex.IndexWriteOnly, nil
	}
	return onlineindex.IndexState(raw[0]), nil
}

func (s *boundStore) IndexMaintainer(index string, rt onlineindex.RecordType) (onlineindex.Maintainer, error) {
	return countMaintainer{tx: s.tx, index: s.m.index, rt: rt}, nil
}

func (s *boundStore) ScanRecords(ctx context.Context, lo, hi onlineindex.PK, limit int) (onlineindex.RecordCursor, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	loIdx, hiIdx := s.bounds(lo, hi)
	return &sliceCursor{recs: append([]onlineindex.Record(nil), s.m.records[loIdx:hiIdx]...), limit: limit}, nil
}

func (s *boundStore) ScanRecordsReverse(ctx context.Context, lo, hi onlineindex.PK, limit int) (onlineindex.RecordCursor, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	loIdx, hiIdx := s.bounds(lo, hi)
	return &reverseSliceCursor{recs: append([]onlineindex.Record(nil), s.m.records[loIdx:hiIdx]...), pos: hiIdx - loIdx - 1, limit: limit}, nil
}

// bounds must be called with m.mu held.
func (s *boundStore) bounds(lo, hi onlineindex.PK) (int, int) {
	recs := s.m.records
	start := sort.Search(len(recs), func(i int) bool { return recs[i].PK.Compare(lo) >= 0 })
	end := sort.Search(len(recs), func(i int) bool { return recs[i].PK.Compare(hi) >= 0 })
	return start, end
}

func (s *boundStore) ClearIndexData(index string) error {
	b, err := s.bucket()
	if err != nil {
		return err
	}
	var keys [][]byte
	if err := b.ForEachKey(func(k []byte) error {
		if bytes.HasPrefix(k, []byte("count/")) {
			keys = append(keys, append([]byte(nil), k...))
		}
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

func (s *boundStore) MarkIndexReadable(index string) error {
	b, err := s.bucket()
	if err != nil {
		return err
	}
	return b.Put(stateKey, []byte{byte(onlineindex.IndexReadable)})
}

func (s *boundStore) IndexRangeSubspace(index string) []byte {
	return s.m.subspace
}

type countMaintainer struct {
	tx    *kv.Tx
	index string
	rt    onlineindex.RecordType
}

func (c countMaintainer) Update(ctx context.Context, old, new *onlineindex.Record) error {
	b, err := c.tx.Bucket(dataBucket(c.index))
	if err != nil {
		return err
	}
	key := countKey(c.rt)
	var n int64
	if raw := b.Get(key); raw != nil {
		n = int64(binary.BigEndian.Uint64(raw))
	}
	switch {
	case old == nil && new != nil:
		n++
	case old != nil && new == nil:
		n--
	default:
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return b.Put(key, buf)
}

// sliceCursor walks a forward snapshot taken under the Manager's lock at
// ScanRecords time; later Puts do not affect an in-flight cursor.
type sliceCursor struct {
	recs  []onlineindex.Record
	pos   int
	limit int
}

func (c *sliceCursor) Next(context.Context) (onlineindex.Record, bool, error) {
	if c.pos >= len(c.recs) {
		return onlineindex.Record{}, false, nil
	}
	if c.limit > 0 && c.pos >= c.limit {
		return onlineindex.Record{}, false, nil
	}
	rec := c.recs[c.pos]
	c.pos++
	return rec, true, nil
}

func (c *sliceCursor) Continuation() (onlineindex.PK, bool) {
	if c.pos >= len(c.recs) {
		return onlineindex.PK{}, false
	}
	return c.recs[c.pos].PK, true
}

func (c *sliceCursor) Close() error { return nil }

// reverseSliceCursor walks the same snapshot from its high end down;
// Continuation is not meaningful in descending order and always reports
// exhausted, per the RecordStore contract for reverse cursors.
type reverseSliceCursor struct {
	recs    []onlineindex.Record
	pos     int
	limit   int
	emitted int
}

func (c *reverseSliceCursor) Next(context.Context) (onlineindex.Record, bool, error) {
	if c.pos < 0 {
		return onlineindex.Record{}, false, nil
	}
	if c.limit > 0 && c.emitted >= c.limit {
		return onlineindex.Record{}, false, nil
	}
	rec := c.recs[c.pos]
	c.pos--
	c.emitted++
	return rec, true, nil
}

func (c *reverseSliceCursor) Continuation() (onlineindex.PK, bool) { return onlineindex.PK{}, false }

func (c *reverseSliceCursor) Close() error { return nil }
