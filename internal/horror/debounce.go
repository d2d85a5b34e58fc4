package horror

import (
	"sync"
	"time"
)

// HeartbeatInterval is the minimum time between two heartbeats.
const HeartbeatInterval = 200 * time.Millisecond

// Guard rate-limits effect kinds against the audio clock. Kinds without a
// configured interval are always allowed.
type Guard struct {
	mu        sync.Mutex
	intervals map[Kind]time.Duration
	last      map[Kind]time.Duration
}

// NewGuard returns a Guard that limits heartbeats to one per
// [HeartbeatInterval].
func NewGuard() *Guard {
	return &Guard{
		intervals: map[Kind]time.Duration{KindHeartbeat: HeartbeatInterval},
		last:      make(map[Kind]time.Duration),
	}
}

// TryTrigger reports whether kind may play at clock time now and, if so,
// records now as its last trigger. A denied call changes nothing. The first
// trigger of a kind is always allowed.
func (g *Guard) TryTrigger(kind Kind, now time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	interval, limited := g.intervals[kind]
	if !limited {
		return true
	}
	if last, ok := g.last[kind]; ok && now-last < interval {
		return false
	}
	g.last[kind] = now
	return true
}
