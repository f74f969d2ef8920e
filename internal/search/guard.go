package search

import "sync"

// Guard tracks, per user, whether a search is in flight, so the scheduled
// sweep and an on-demand post-confirmation search never overlap for the same
// user. Callers pair every successful TryAcquire with a deferred Release so
// the flag cannot stay stuck across sweeps.
type Guard struct {
	mu       sync.Mutex
	inFlight map[int64]bool
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[int64]bool)}
}

// TryAcquire sets the user's in-flight flag and returns true; if a search is
// already in flight it returns false with no state change.
func (g *Guard) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[userID] {
		return false
	}
	g.inFlight[userID] = true
	return true
}

// Release clears the flag. Idempotent; safe after a failed acquire.
func (g *Guard) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, userID)
}
