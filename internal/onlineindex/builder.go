package onlineindex

import (
	"log/slog"

	"golang.org/x/time/rate"

	"onlineindex/internal/kv"
	"onlineindex/internal/logging"
)

// Builder is the top-level handle a caller holds for one index build: it
// wires the adaptive retry controller, the rate limiter, and the
// Built-Range Set together and exposes the two entry points an operator
// actually calls — BuildIndex (the incremental, resumable path) and
// Rebuild (the single-transaction path for small stores).
type Builder struct {
	store     *kv.Store
	rsFactory RecordStoreFactory
	index     string
	rts       map[RecordType]bool
	cfg       BuilderConfig
	rangeSet  *RangeSet
	metrics   Metrics
	logger    *slog.Logger
	limiter   *rate.Limiter
}

// NewBuilder validates cfg and returns a Builder targeting index, whose
// Built-Range Set entries live under subspace. rsFactory opens the
// caller's RecordStore implementation against each transaction the
// builder starts.
func NewBuilder(store *kv.Store, rsFactory RecordStoreFactory, index string, subspace []byte, cfg BuilderConfig, metrics Metrics, logger *slog.Logger) (*Builder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	logger = logging.Default(logger)

	var limiter *rate.Limiter
	if cfg.RecordsPerSecond > UnlimitedRate {
		limiter = rate.NewLimiter(rate.Limit(cfg.RecordsPerSecond), cfg.RecordsPerSecond)
	}

	var rts map[RecordType]bool
	if len(cfg.RecordTypes) > 0 {
		rts = make(map[RecordType]bool, len(cfg.RecordTypes))
		for _, t := range cfg.RecordTypes {
			rts[t] = true
		}
	}

	return &Builder{
		store:     store,
		rsFactory: rsFactory,
		index:     index,
		rts:       rts,
		cfg:       cfg,
		rangeSet:  NewRangeSet(subspace),
		metrics:   metrics,
		logger:    logger.With("component", "onlineindex", "index", index),
		limiter:   limiter,
	}, nil
}
