package energy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

// MemorySource is an in-process RecordSource for tests and local runs
type MemorySource struct {
	mu     sync.RWMutex
	rows   map[string][]contracts.Record
	errs   map[string]error
	nextID int64
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		rows: make(map[string][]contracts.Record),
		errs: make(map[string]error),
	}
}

// Add appends records to table, assigning ids to records without one
func (s *MemorySource) Add(table string, records ...contracts.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec.ID == 0 {
			s.nextID++
			rec.ID = s.nextID
		}
		s.rows[table] = append(s.rows[table], rec)
	}
}

// FailWith makes every read of table return err; nil clears it
func (s *MemorySource) FailWith(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.errs, table)
		return
	}
	s.errs[table] = err
}

// Records returns the records of table inside window
func (s *MemorySource) Records(ctx context.Context, table string, window contracts.Window) ([]contracts.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", table, contracts.ErrQueryFailure, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.errs[table]; err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", table, contracts.ErrQueryFailure, err)
	}

	out := make([]contracts.Record, 0, len(s.rows[table]))
	for _, rec := range s.rows[table] {
		if window.Contains(rec.Timestamp) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// LatestIngest returns the newest record timestamp of table
func (s *MemorySource) LatestIngest(ctx context.Context, table string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.errs[table]; err != nil {
		return time.Time{}, false, fmt.Errorf("latest ingest %s: %w: %w", table, contracts.ErrQueryFailure, err)
	}

	var latest time.Time
	for _, rec := range s.rows[table] {
		if rec.Timestamp.After(latest) {
			latest = rec.Timestamp
		}
	}
	return latest, !latest.IsZero(), nil
}

// Float is a helper for building record fields
func Float(v float64) *float64 {
	return &v
}
