package store

import (
	"slices"
	"sync"

	"github.com/roach88/sentinel/internal/record"
)

// collectionLocks holds one write lock per collection.
//
// A write that touches several collections (a cascade) takes all of their
// locks before opening its transaction, always in sorted order so two
// cascades can never deadlock. Readers never take these locks.
type collectionLocks struct {
	mu map[record.Collection]*sync.Mutex
}

func newCollectionLocks() *collectionLocks {
	l := &collectionLocks{mu: make(map[record.Collection]*sync.Mutex)}
	for _, c := range record.AllCollections {
		l.mu[c] = &sync.Mutex{}
	}
	l.mu[record.SettingsKV] = &sync.Mutex{}
	return l
}

// lock acquires the locks of cols and returns a func releasing them.
// Duplicates and unknown collections are ignored.
func (l *collectionLocks) lock(cols ...record.Collection) func() {
	sorted := slices.Clone(cols)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, c := range sorted {
		m, ok := l.mu[c]
		if !ok {
			continue
		}
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
