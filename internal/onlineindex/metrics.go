package onlineindex

import "sync/atomic"

// Metrics receives the builder's observability counters: records scanned,
// records actually indexed, and (by the caller of BuildIndex, not this
// package) the synchronous top-level wait duration.
type Metrics interface {
	RecordsScanned(n int64)
	RecordsIndexed(n int64)
}

// NopMetrics discards everything. The zero value is ready to use.
type NopMetrics struct{}

func (NopMetrics) RecordsScanned(int64) {}
func (NopMetrics) RecordsIndexed(int64) {}

// Counters is an in-memory Metrics implementation, safe for concurrent
// use, intended for tests and the CLI build command's summary line.
type Counters struct {
	scanned atomic.Int64
	indexed atomic.Int64
}

func (c *Counters) RecordsScanned(n int64) { c.scanned.Add(n) }
func (c *Counters) RecordsIndexed(n int64) { c.indexed.Add(n) }
func (c *Counters) Scanned() int64         { return c.scanned.Load() }
func (c *Counters) Indexed() int64         { return c.indexed.Load() }
