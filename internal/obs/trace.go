package obs

import (
	"strconv"
	"sync/atomic"
	"time"
)

// ReactionIDs issues monotonically increasing ids for tick reactions so
// one reaction's log lines correlate across packages.
type ReactionIDs struct {
	next uint64
}

// NewReactionIDs returns a generator seeded with the given value.
func NewReactionIDs(seed uint64) *ReactionIDs {
	if seed == 0 {
		seed = uint64(time.Now().UTC().Unix()) << 20
	}
	return &ReactionIDs{next: seed}
}

// Next returns the next reaction id.
func (g *ReactionIDs) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}

// NextString returns the next reaction id formatted for log fields.
func (g *ReactionIDs) NextString() string {
	return strconv.FormatUint(g.Next(), 10)
}
