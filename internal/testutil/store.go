package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

// OpenStore opens a fresh store in t.TempDir() with sequential ids and the
// given clock. The store is closed when the test ends.
func OpenStore(t testing.TB, clock *Clock) *store.Store {
	t.Helper()
	if clock == nil {
		clock = NewClock(Epoch)
	}
	path := filepath.Join(t.TempDir(), "sentinel.db")
	s, err := store.Open(path,
		store.WithIDGenerator(&record.SequenceIDs{}),
		store.WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Put writes every record or fails the test.
func Put(t testing.TB, s *store.Store, recs ...record.Record) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range recs {
		if err := s.Put(ctx, rec); err != nil {
			t.Fatalf("Put(%s %s) failed: %v", rec.Collection(), rec.RecordID(), err)
		}
	}
}

// Trap returns a valid active trap at lat/lng.
func Trap(id, name string, lat, lng float64) record.Trap {
	return record.Trap{
		ID:     id,
		Name:   name,
		Code:   id,
		Lat:    lat,
		Lng:    lng,
		Status: record.StatusActive,
		Tags:   []string{},
	}
}

// Inspection returns a valid manual inspection.
func Inspection(id, trapID, date string, adults, larvae int) record.Inspection {
	return record.Inspection{
		ID:       id,
		TrapID:   trapID,
		Date:     date,
		Adults:   adults,
		Larvae:   larvae,
		Source:   record.SourceManual,
		MediaIDs: []string{},
	}
}

// Rule returns an active alert rule.
func Rule(id string, metric record.Metric, threshold float64) record.AlertRule {
	return record.AlertRule{
		ID:        id,
		Name:      string(metric) + " rule",
		Metric:    metric,
		Threshold: threshold,
		Active:    true,
		Scope:     "any",
	}
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
