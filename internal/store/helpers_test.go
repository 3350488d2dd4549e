package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sentinel/internal/record"
)

var fixedNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(&record.SequenceIDs{}), WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrap(id string) record.Trap {
	return record.Trap{
		ID:     id,
		Name:   "Trap " + id,
		Code:   "LO-" + id,
		Lat:    41.031518,
		Lng:    16.852941,
		Status: record.StatusActive,
		Tags:   []string{"loseto"},
	}
}

func testInspection(id, trapID, date string, adults int) record.Inspection {
	return record.Inspection{
		ID:       id,
		TrapID:   trapID,
		Date:     date,
		Adults:   adults,
		Source:   record.SourceManual,
		MediaIDs: []string{},
	}
}

func mustPut(t *testing.T, s *Store, recs ...record.Record) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, s.Put(context.Background(), rec), "put %s %s", rec.Collection(), rec.RecordID())
	}
}

func attach(t *testing.T, s *Store, id, inspectionID string) record.Media {
	t.Helper()
	m, err := s.AttachMedia(context.Background(), record.Media{
		ID:           id,
		InspectionID: inspectionID,
		DataURL:      "data:image/png;base64,AAAA",
		CreatedAt:    "2026-10-19",
	})
	require.NoError(t, err)
	return m
}
