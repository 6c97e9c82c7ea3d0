// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/aggregate"
	"github.com/sentinelguard/actiongate/internal/domain/audit"
	"github.com/sentinelguard/actiongate/internal/domain/policy"
)

const defaultRecentCap = 1000

// AuditStore implements audit.Store, audit.QueryStore, and
// aggregate.Source writing to stdout or a file. It keeps a bounded
// in-memory ring buffer for recent record queries and aggregate
// recomputation, intended for development and tests; the production
// persistence path is internal/adapter/outbound/sqlite.
type AuditStore struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
	recent  []audit.Record
	cap     int
}

func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewAuditStore creates an audit store writing to stdout.
func NewAuditStore(capacity ...int) *AuditStore {
	cap := resolveCapacity(capacity...)
	return &AuditStore{
		encoder: json.NewEncoder(os.Stdout),
		writer:  os.Stdout,
		recent:  make([]audit.Record, 0, cap),
		cap:     cap,
	}
}

// NewAuditStoreWithWriter creates an audit store writing to w.
func NewAuditStoreWithWriter(w io.Writer, capacity ...int) *AuditStore {
	cap := resolveCapacity(capacity...)
	return &AuditStore{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]audit.Record, 0, cap),
		cap:     cap,
	}
}

// Append persists records by writing them as JSON to the configured writer
// and appending them to the ring buffer, in that order, so a caller that
// observes Append returning nil knows the record already reached the
// writer (spec §4.6's flush-then-return atomicity requirement).
func (s *AuditStore) Append(ctx context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.encoder.Encode(r); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = r
		} else {
			s.recent = append(s.recent, r)
		}
	}
	return nil
}

// Flush is a no-op: this store does not buffer.
func (s *AuditStore) Flush(ctx context.Context) error { return nil }

// Close releases the underlying writer if it is a non-standard file.
func (s *AuditStore) Close() error {
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// GetRecent returns the n most recent records, newest first.
func (s *AuditStore) GetRecent(n int) []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.recent)
	if n > total {
		n = total
	}
	if n == 0 {
		return nil
	}
	result := make([]audit.Record, n)
	for i := 0; i < n; i++ {
		result[i] = s.recent[total-1-i]
	}
	return result
}

// Query retrieves records matching filter from the ring buffer, newest
// first.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Record, string, error) {
	if !filter.StartTime.IsZero() && !filter.EndTime.IsZero() && filter.EndTime.Sub(filter.StartTime) > 31*24*time.Hour {
		return nil, "", audit.ErrDateRangeExceeded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var result []audit.Record
	for i := len(s.recent) - 1; i >= 0 && len(result) < limit; i-- {
		rec := s.recent[i]
		if !matchesFilter(rec, filter) {
			continue
		}
		result = append(result, rec)
	}
	return result, "", nil
}

// QueryStats aggregates records in [start, end) from the ring buffer.
func (s *AuditStore) QueryStats(ctx context.Context, start, end time.Time) (*audit.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &audit.Stats{ByActionType: map[string]int64{}}
	principals := map[string]struct{}{}
	for _, rec := range s.recent {
		if rec.Timestamp.Before(start) || !rec.Timestamp.Before(end) {
			continue
		}
		stats.TotalRecords++
		if rec.Allowed {
			stats.AllowedCount++
		} else {
			stats.RejectedCount++
		}
		stats.ByActionType[rec.ActionType]++
		principals[rec.PrincipalName] = struct{}{}
	}
	stats.UniquePrincipals = int64(len(principals))
	return stats, nil
}

// Compute implements aggregate.Source by scanning the ring buffer for
// allowed records matching filter with timestamp >= since, exactly as the
// SQLite adapter does against persisted storage (spec §4.4).
func (s *AuditStore) Compute(ctx context.Context, tenantID string, filter aggregate.Filter, since time.Time, measure aggregate.Measure, paramPath string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, rec := range s.recent {
		if !rec.Allowed || rec.TenantID != tenantID || rec.Timestamp.Before(since) {
			continue
		}
		if !matchesScope(rec, filter) {
			continue
		}
		if measure == aggregate.MeasureCount {
			total++
			continue
		}
		if v, ok := policy.ResolveParamPath(rec.Params, paramPath); ok {
			if n, err := policy.ToNumber(v); err == nil {
				total += n
			}
		}
	}
	return total, nil
}

func matchesScope(rec audit.Record, filter aggregate.Filter) bool {
	switch filter.Scope {
	case aggregate.ScopePrincipal:
		return rec.PrincipalName == filter.PrincipalName && rec.ActionType == filter.ActionType
	case aggregate.ScopeAction:
		return rec.ActionType == filter.ActionType
	default:
		return true
	}
}

func matchesFilter(rec audit.Record, filter audit.Filter) bool {
	if !filter.StartTime.IsZero() && rec.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && rec.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.TenantID != "" && rec.TenantID != filter.TenantID {
		return false
	}
	if filter.PrincipalName != "" && rec.PrincipalName != filter.PrincipalName {
		return false
	}
	if filter.ActionType != "" && rec.ActionType != filter.ActionType {
		return false
	}
	if filter.Allowed != nil && rec.Allowed != *filter.Allowed {
		return false
	}
	return true
}

var (
	_ audit.Store      = (*AuditStore)(nil)
	_ audit.QueryStore = (*AuditStore)(nil)
	_ aggregate.Source = (*AuditStore)(nil)
)
