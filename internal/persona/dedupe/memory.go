package dedupe

import (
	"context"
	"sync"
	"time"
)

// InMemory is the single-instance deduper used by unit tests and local
// development. Expired entries are swept lazily on access.
type InMemory struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewInMemory(window time.Duration) *InMemory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemory{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func (d *InMemory) Seen(_ context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweep()
	_, ok := d.seen[deliveryID]
	return ok, nil
}

func (d *InMemory) Mark(_ context.Context, deliveryID string) error {
	if deliveryID == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweep()
	d.seen[deliveryID] = d.now().Add(d.window)
	return nil
}

// sweep drops expired entries; callers hold mu.
func (d *InMemory) sweep() {
	now := d.now()
	for k, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, k)
		}
	}
}
