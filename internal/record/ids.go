package record

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Id prefixes used by the field app. Kept so exported bundles stay readable.
const (
	PrefixTrap       = "trap"
	PrefixInspection = "insp"
	PrefixAlert      = "al"
	PrefixMessage    = "msg"
	PrefixMedia      = "media"
	PrefixOutbox     = "wa"
)

// IDGenerator produces record ids of the form "<prefix>_<unique>".
// Implemented by UUIDv7IDs (production) and SequenceIDs (tests).
type IDGenerator interface {
	NewID(prefix string) string
}

// UUIDv7IDs generates time-sortable ids backed by UUIDv7.
// Stateless and safe for concurrent use.
type UUIDv7IDs struct{}

// NewID returns prefix + "_" + a hyphenated UUIDv7.
func (UUIDv7IDs) NewID(prefix string) string {
	return prefix + "_" + uuid.Must(uuid.NewV7()).String()
}

// NewID is a convenience wrapper around UUIDv7IDs.
func NewID(prefix string) string {
	return UUIDv7IDs{}.NewID(prefix)
}

// SequenceIDs returns "<prefix>_<n>" with a per-prefix counter.
// Used where tests need predictable ids.
type SequenceIDs struct {
	mu   sync.Mutex
	next map[string]int
}

// NewID returns the next id for prefix, starting at 1.
func (g *SequenceIDs) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == nil {
		g.next = make(map[string]int)
	}
	g.next[prefix]++
	return prefix + "_" + strconv.Itoa(g.next[prefix])
}

