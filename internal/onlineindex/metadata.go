package onlineindex

import (
	"context"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"onlineindex/internal/kv"
)

// persistedMetadata is the small record kept alongside the Built-Range
// Set recording which record types this index was being built from. It
// guards against the configuration changing out from under a resumed
// build — e.g. an operator adding a record type to RecordTypes between
// runs, which would otherwise leave earlier chunks indexed against a
// narrower set than later ones.
type persistedMetadata struct {
	RecordTypes []string `msgpack:"record_types"`
}

var metaKey = []byte("meta")

// checkOrStoreMetadata compares the builder's configured record types
// against whatever was persisted by a previous run. The first run for an
// index stores its configuration; every subsequent run must match it
// exactly, or MetaDataMismatchError is returned rather than silently
// building an inconsistent index.
func (b *Builder) checkOrStoreMetadata(ctx context.Context) error {
	want := make([]string, 0, len(b.rts))
	for t := range b.rts {
		want = append(want, string(t))
	}
	slices.Sort(want)

	return b.store.Run(ctx, kv.PriorityDefault, func(tx *kv.Tx) error {
		bucket, err := tx.Bucket(metaBucket(b.index))
		if err != nil {
			return err
		}
		raw := bucket.Get(metaKey)
		if raw == nil {
			encoded, err := msgpack.Marshal(persistedMetadata{RecordTypes: want})
			if err != nil {
				return err
			}
			return bucket.Put(metaKey, encoded)
		}

		var got persistedMetadata
		if err := msgpack.Unmarshal(raw, &got); err != nil {
			return err
		}
		gotSorted := slices.Clone(got.RecordTypes)
		slices.Sort(gotSorted)
		if !slices.Equal(gotSorted, want) {
			return &MetaDataMismatchError{Reason: "record type set changed since the first build run for this index"}
		}
		return nil
	})
}

func metaBucket(index string) []byte {
	return []byte("meta/" + index)
}
