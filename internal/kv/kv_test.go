package kv

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunCommitsAcrossTransactions(t *testing.T) {
	s := openTest(t)

	err := s.Run(t.Context(), PriorityDefault, func(tx *Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	err = s.View(t.Context(), func(tx *Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		if got := b.Get([]byte("k")); string(got) != "v" {
			t.Errorf("Get = %q, want %q", got, "v")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestViewOnMissingBucket(t *testing.T) {
	s := openTest(t)

	err := s.View(t.Context(), func(tx *Tx) error {
		_, err := tx.Bucket([]byte("nope"))
		return err
	})
	if !errors.Is(err, ErrBucketNotFound) {
		t.Errorf("err = %v, want ErrBucketNotFound", err)
	}
}

func TestRunRollsBackOnError(t *testing.T) {
	s := openTest(t)
	sentinel := errors.New("boom")

	err := s.Run(t.Context(), PriorityDefault, func(tx *Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		if err := b.Put([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}

	err = s.View(t.Context(), func(tx *Tx) error {
		_, err := tx.Bucket([]byte("b"))
		return err
	})
	if !errors.Is(err, ErrBucketNotFound) {
		t.Errorf("bucket should not exist after rollback, got err=%v", err)
	}
}

func TestCursorSeekAndNext(t *testing.T) {
	s := openTest(t)

	err := s.Run(t.Context(), PriorityDefault, func(tx *Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		for _, k := range []string{"a", "b", "c"} {
			if err := b.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	err = s.View(t.Context(), func(tx *Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		c := b.Cursor()
		k, _ := c.Seek([]byte("b"))
		if string(k) != "b" {
			t.Errorf("Seek(b) = %q, want b", k)
		}
		k, _ = c.Next()
		if string(k) != "c" {
			t.Errorf("Next() = %q, want c", k)
		}
		k, _ = c.Next()
		if k != nil {
			t.Errorf("Next() at end = %q, want nil", k)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}
