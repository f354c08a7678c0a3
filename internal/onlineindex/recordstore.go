package onlineindex

import (
	"context"

	"onlineindex/internal/kv"
)

// IndexState is the external state machine an index moves through:
// DISABLED -> WRITE_ONLY -> READABLE, with a rebuild request able to
// drop a READABLE index back to WRITE_ONLY. The online builder requires
// its target index to be in WRITE_ONLY and transitions it to READABLE
// only at successful completion when requested.
type IndexState int

const (
	IndexDisabled IndexState = iota
	IndexWriteOnly
	IndexReadable
)

func (s IndexState) String() string {
	switch s {
	case IndexDisabled:
		return "DISABLED"
	case IndexWriteOnly:
		return "WRITE_ONLY"
	case IndexReadable:
		return "READABLE"
	default:
		return "UNKNOWN"
	}
}

// RecordType identifies the kind of a record (the design's RTS element).
type RecordType string

// Record is an opaque payload tagged with a record type and located at a
// PK. The builder reads but never mutates records.
type Record struct {
	PK      PK
	Type    RecordType
	Payload []byte
}

// Maintainer applies a record's effect to an index's stored
// representation. Old == nil signals a fresh build, not an update —
// index kinds with internal ordering dependencies (rank/score indexes)
// rely on updates arriving in strict PK order within one chunk, which
// the Chunk Builder guarantees by never pipelining.
type Maintainer interface {
	Update(ctx context.Context, old, new *Record) error
}

// RecordCursor iterates records in ascending PK order starting from
// wherever ScanRecords positioned it.
type RecordCursor interface {
	// Next returns the next record. ok is false (with a zero Record and
	// nil error) once the cursor is exhausted (either no more records
	// exist in range, or a store-enforced limit was reached).
	Next(ctx context.Context) (rec Record, ok bool, err error)

	// Continuation reports the resume point after the last record
	// returned by Next: the PK of the next record strictly after it, and
	// true, if the scan stopped only because of a row-count cap and
	// strictly more records exist in range. Returns (zero PK, false) if
	// the underlying range is exhausted — there is nothing left to scan.
	// Mirrors the design's cursor.continuation().
	Continuation() (PK, bool)

	Close() error
}

// RecordStore is the external collaborator: an already-opened record
// collection, scoped to one transaction. Record-store opening and schema
// resolution are out of scope for this package; RecordStoreFactory is the
// seam through which a caller supplies its own.
type RecordStore interface {
	IndexState(index string) (IndexState, error)

	// IndexMaintainer returns the maintainer responsible for recordType
	// within index. Builders only need the maintainer for types in their
	// RTS; other types are scanned but skipped.
	IndexMaintainer(index string, recordType RecordType) (Maintainer, error)

	// ScanRecords opens a forward cursor over PKs in [lo,hi), capped at
	// limit rows when limit > 0 (limit <= 0 means unbounded).
	ScanRecords(ctx context.Context, lo, hi PK, limit int) (RecordCursor, error)

	// ScanRecordsReverse opens a descending cursor over PKs in [lo,hi),
	// capped at limit rows when limit > 0. Used only by the endpoint
	// primer's one-row probe for the last record in range; Continuation
	// is not meaningful on a reverse cursor and callers must not rely on
	// it.
	ScanRecordsReverse(ctx context.Context, lo, hi PK, limit int) (RecordCursor, error)

	ClearIndexData(index string) error
	MarkIndexReadable(index string) error

	// IndexRangeSubspace returns the KV key prefix under which this
	// index's Built-Range Set entries live.
	IndexRangeSubspace(index string) []byte
}

// RecordStoreFactory opens a RecordStore bound to tx. Called once per
// retry attempt (a fresh transaction gets a fresh store), mirroring the
// design's "open_async(tx) -> Future<Store>".
type RecordStoreFactory func(ctx context.Context, tx *kv.Tx) (RecordStore, error)
