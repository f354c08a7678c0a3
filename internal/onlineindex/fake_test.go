package onlineindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"onlineindex/internal/kv"
)

// fakeManager is a minimal, test-only RecordStore backing: a sorted,
// read-only-after-construction record slice plus an injectable error
// queue, used to drive the retry controller's capacity-error path without
// a real KV store ever producing one. Deliberately separate from
// internal/recordstore.Manager (which this package cannot import without
// a cycle, since recordstore itself depends on onlineindex) — small
// enough that duplication is cheaper than restructuring.
//
// Index state and per-type maintainer counts are not kept as plain
// fakeManager fields: they live in store, written through whatever *kv.Tx
// the caller's transaction passes down to Factory. That way a transaction
// the builder never commits (a losing builder's RangeAlreadyBuilt abort, a
// forced capacity error) rolls its count and state changes back along
// with everything else in that transaction, which is the property the
// builder's coordination design depends on.
type fakeManager struct {
	store      *kv.Store
	records    []Record
	mu         sync.Mutex // guards injectErrs only; records are immutable after construction
	injectErrs []error
}

func newFakeManager(store *kv.Store, recs []Record) *fakeManager {
	return &fakeManager{store: store, records: recs}
}

// openTestStore returns a fresh bbolt-backed *kv.Store in a temp file,
// closed automatically at test cleanup.
func openTestStore(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var (
	fakeBucket   = []byte("fake")
	fakeStateKey = []byte("state")
)

func fakeCountKey(rt RecordType) []byte { return []byte("count/" + string(rt)) }

func (m *fakeManager) factory() RecordStoreFactory {
	return func(ctx context.Context, tx *kv.Tx) (RecordStore, error) {
		return &fakeStore{m: m, tx: tx}, nil
	}
}

func (m *fakeManager) popErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.injectErrs) == 0 {
		return nil
	}
	err := m.injectErrs[0]
	m.injectErrs = m.injectErrs[1:]
	return err
}

func (m *fakeManager) pushErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injectErrs = append(m.injectErrs, err)
}

func (m *fakeManager) bounds(lo, hi PK) (int, int) {
	start := sort.Search(len(m.records), func(i int) bool { return m.records[i].PK.Compare(lo) >= 0 })
	end := sort.Search(len(m.records), func(i int) bool { return m.records[i].PK.Compare(hi) >= 0 })
	return start, end
}

// count reads the committed maintained count for rt in a fresh view
// transaction, for test assertions after a build completes.
func (m *fakeManager) count(rt RecordType) int64 {
	var n int64
	_ = m.store.View(context.Background(), func(tx *kv.Tx) error {
		b, err := tx.Bucket(fakeBucket)
		if err != nil {
			return err
		}
		if raw := b.Get(fakeCountKey(rt)); raw != nil {
			n = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return n
}

// state reads the committed index lifecycle state.
func (m *fakeManager) state() IndexState {
	var s IndexState
	_ = m.store.View(context.Background(), func(tx *kv.Tx) error {
		b, err := tx.Bucket(fakeBucket)
		if err != nil {
			return err
		}
		if raw := b.Get(fakeStateKey); raw != nil {
			s = IndexState(raw[0])
		}
		return nil
	})
	return s
}

// setState forces the index into state, for test setup (e.g. simulating a
// misconfigured READABLE index), committed in its own transaction.
func (m *fakeManager) setState(state IndexState) {
	_ = m.store.Run(context.Background(), kv.PriorityDefault, func(tx *kv.Tx) error {
		b, err := tx.Bucket(fakeBucket)
		if err != nil {
			return err
		}
		return b.Put(fakeStateKey, []byte{byte(state)})
	})
}

type fakeStore struct {
	m  *fakeManager
	tx *kv.Tx
}

func (s *fakeStore) IndexState(index string) (IndexState, error) {
	b, err := s.tx.Bucket(fakeBucket)
	if err != nil {
		return 0, err
	}
	raw := b.Get(fakeStateKey)
	if raw == nil {
		return IndexWriteOnly, nil
	}
	return IndexState(raw[0]), nil
}

func (s *fakeStore) IndexMaintainer(index string, rt RecordType) (Maintainer, error) {
	return fakeMaintainer{tx: s.tx, rt: rt}, nil
}

func (s *fakeStore) ScanRecords(ctx context.Context, lo, hi PK, limit int) (RecordCursor, error) {
	if err := s.m.popErr(); err != nil {
		return nil, err
	}
	start, end := s.m.bounds(lo, hi)
	return &fakeCursor{recs: s.m.records[start:end], limit: limit}, nil
}

func (s *fakeStore) ScanRecordsReverse(ctx context.Context, lo, hi PK, limit int) (RecordCursor, error) {
	if err := s.m.popErr(); err != nil {
		return nil, err
	}
	start, end := s.m.bounds(lo, hi)
	recs := s.m.records[start:end]
	return &fakeReverseCursor{recs: recs, pos: len(recs) - 1, limit: limit}, nil
}

func (s *fakeStore) ClearIndexData(index string) error {
	b, err := s.tx.Bucket(fakeBucket)
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

func (s *fakeStore) MarkIndexReadable(index string) error {
	b, err := s.tx.Bucket(fakeBucket)
	if err != nil {
		return err
	}
	return b.Put(fakeStateKey, []byte{byte(IndexReadable)})
}

func (s *fakeStore) IndexRangeSubspace(index string) []byte { return []byte("brs/" + index) }

type fakeMaintainer struct {
	tx *kv.Tx
	rt RecordType
}

func (fm fakeMaintainer) Update(ctx context.Context, old, new *Record) error {
	b, err := fm.tx.Bucket(fakeBucket)
	if err != nil {
		return err
	}
	key := fakeCountKey(fm.rt)
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

type fakeCursor struct {
	recs  []Record
	pos   int
	limit int
}

func (c *fakeCursor) Next(context.Context) (Record, bool, error) {
	if c.pos >= len(c.recs) {
		return Record{}, false, nil
	}
	if c.limit > 0 && c.pos >= c.limit {
		return Record{}, false, nil
	}
	rec := c.recs[c.pos]
	c.pos++
	return rec, true, nil
}

func (c *fakeCursor) Continuation() (PK, bool) {
	if c.pos >= len(c.recs) {
		return PK{}, false
	}
	return c.recs[c.pos].PK, true
}

func (c *fakeCursor) Close() error { return nil }

type fakeReverseCursor struct {
	recs    []Record
	pos     int
	limit   int
	emitted int
}

func (c *fakeReverseCursor) Next(context.Context) (Record, bool, error) {
	if c.pos < 0 {
		return Record{}, false, nil
	}
	if c.limit > 0 && c.emitted >= c.limit {
		return Record{}, false, nil
	}
	rec := c.recs[c.pos]
	c.pos--
	c.emitted++
	return rec, true, nil
}

func (c *fakeReverseCursor) Continuation() (PK, bool) { return PK{}, false }
func (c *fakeReverseCursor) Close() error             { return nil }
