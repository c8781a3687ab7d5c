package schedule

import "sync"

// Guard hands out a monotonically increasing token per view. A reload
// captures a token before fetching and compares it against Current when the
// fetch resolves; on mismatch the result is discarded outright. The most
// recently issued request is the only one whose result can ever apply,
// regardless of completion order.
type Guard struct {
	mu  sync.Mutex
	seq map[ViewKey]uint64
}

func NewGuard() *Guard {
	return &Guard{seq: make(map[ViewKey]uint64)}
}

// Bump increments the view's counter and returns the new token.
func (g *Guard) Bump(view ViewKey) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq[view]++
	return g.seq[view]
}

// Current returns the latest token issued for the view, zero if none.
func (g *Guard) Current(view ViewKey) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq[view]
}
