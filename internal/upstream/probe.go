package upstream

import (
	"context"
	"sync"
	"time"
)

// Pinger is what the probe needs from the client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe is the connectivity signal: a cached boolean re-checked at an
// interval, so callers on the render path never pay for a probe round-trip.
type Probe struct {
	pinger   Pinger
	interval time.Duration

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
}

func NewProbe(pinger Pinger, interval time.Duration) *Probe {
	return &Probe{
		pinger:   pinger,
		interval: interval,
	}
}

func (p *Probe) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && time.Since(p.checkedAt) < p.interval {
		return p.online
	}

	p.online = p.pinger.Ping(ctx) == nil
	p.checkedAt = time.Now()
	return p.online
}
