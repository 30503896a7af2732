package db

import (
	"time"
)

const (
	// DefaultRecentLimit is used by recent-N queries when limit <= 0.
	DefaultRecentLimit = 50

	// OrderDateAsc sorts oldest first.
	OrderDateAsc = "date_asc"
	// OrderDateDesc sorts newest first. It is the default order.
	OrderDateDesc = "date_desc"
)

// WriteOption customises a write operation.
type WriteOption func(*writeOptions)

type writeOptions struct {
	epoch int64
	set   bool
}

// WithEpoch overrides the timestamp stamped on a write, in epoch milliseconds.
// Logically simultaneous records use it to share one timestamp.
func WithEpoch(epoch int64) WriteOption {
	return func(o *writeOptions) {
		o.epoch = epoch
		o.set = true
	}
}

// WriteTime resolves the effective timestamp of a write.
func WriteTime(opts ...WriteOption) time.Time {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.set {
		return time.UnixMilli(o.epoch)
	}
	return time.Now()
}

// ObservationQuery filters and orders GetObservationsByIDs.
type ObservationQuery struct {
	Project string
	Type    string
	OrderBy string // OrderDateAsc or OrderDateDesc (default)
	Limit   int    // <= 0 means no limit
}

// Ascending reports whether results are ordered oldest first.
func (q ObservationQuery) Ascending() bool {
	return q.OrderBy == OrderDateAsc
}

// BatchResult reports the ids generated by StoreObservationsAndSummary.
type BatchResult struct {
	ObservationIDs []int64 `json:"observation_ids"`
	SummaryID      int64   `json:"summary_id,omitempty"` // zero when no summary was stored
	CreatedAtEpoch int64   `json:"created_at_epoch"`
}

// NormalizeLimit applies DefaultRecentLimit to non-positive limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
