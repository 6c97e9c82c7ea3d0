package audit

import (
	"context"
	"errors"
	"time"
)

// ErrDateRangeExceeded is returned by Query when the requested range is
// too wide for the store to scan economically.
var ErrDateRangeExceeded = errors.New("audit: date range exceeds maximum of 31 days")

// Store is the validator's append-only write path (spec §3: "created
// exactly once per non-simulated decision; never mutated, never deleted").
type Store interface {
	// Append persists one or more records. The validator relies on this
	// returning only after the record is durable (flush-then-return, spec
	// §4.6's atomicity requirement): a non-simulated decision must never be
	// returned to the caller if Append has not already succeeded.
	Append(ctx context.Context, records ...Record) error
	// Flush forces any buffered records to storage. Called during shutdown.
	Flush(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// Filter narrows a Query call. StartTime/EndTime are required.
type Filter struct {
	StartTime     time.Time
	EndTime       time.Time
	TenantID      string
	PrincipalName string
	ActionType    string
	Allowed       *bool
	Limit         int
	Cursor        string
}

// Stats is an aggregate summary over a time range, supporting an
// (out-of-scope) admin reporting surface without requiring it to replay
// every record.
type Stats struct {
	TotalRecords      int64
	AllowedCount      int64
	RejectedCount     int64
	UniquePrincipals  int64
	ByActionType      map[string]int64
}

// QueryStore is the read path used by an admin façade and by the aggregate
// accountant's Source implementation. Kept separate from Store because the
// write path has no business exposing arbitrary reads (spec §9: CRUD for
// audit queries is an external collaborator, not core).
type QueryStore interface {
	// Query retrieves records matching filter, newest first. Returns
	// ErrDateRangeExceeded if the range is too wide. The implementations in
	// this module do not read Filter.Cursor and return an empty nextCursor.
	Query(ctx context.Context, filter Filter) (records []Record, nextCursor string, err error)
	// QueryStats returns aggregated statistics for [start, end).
	QueryStats(ctx context.Context, start, end time.Time) (*Stats, error)
}
