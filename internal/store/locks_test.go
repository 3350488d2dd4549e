package store

import (
	"sync"
	"testing"

	"github.com/roach88/sentinel/internal/record"
)

// Opposite acquisition orders must not deadlock.
func TestCollectionLocks_SortedAcquisition(t *testing.T) {
	l := newCollectionLocks()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := l.lock(record.Traps, record.Inspections, record.MediaItems)
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := l.lock(record.MediaItems, record.Inspections, record.Traps, record.Traps)
			unlock()
		}()
	}
	wg.Wait()
}

func TestCollectionLocks_IgnoresUnknown(t *testing.T) {
	l := newCollectionLocks()
	unlock := l.lock("sensors", record.Alerts)
	unlock()
	unlock = l.lock(record.Alerts)
	unlock()
}
