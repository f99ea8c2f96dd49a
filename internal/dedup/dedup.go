package dedup

import (
	"context"
	"time"

	"github.com/c-pro/geche"
)

// DefaultWindow is how long a message identifier stays "seen". A duplicate
// arriving inside the window is absorbed; after it, the identifier is
// treated as new again.
const DefaultWindow = 5 * time.Minute

// Cache remembers message identifiers recently seen on one connection.
// Clients retransmit send events on reconnect-and-replay, so the relay
// needs at-most-once processing on top of at-least-once delivery.
// Each connection owns exactly one Cache and discards it on disconnect.
type Cache struct {
	seen   geche.Geche[string, struct{}]
	cancel context.CancelFunc
}

func New(ctx context.Context, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, cancel := context.WithCancel(ctx)

	cleanup := window / 10
	if cleanup < time.Millisecond {
		cleanup = time.Millisecond
	}

	return &Cache{
		seen:   geche.NewMapTTLCache[string, struct{}](ctx, window, cleanup),
		cancel: cancel,
	}
}

// ShouldProcess reports whether id has not been seen on this connection
// within the retention window, recording it as seen. Callers must ignore
// the event when it returns false.
func (c *Cache) ShouldProcess(id string) bool {
	if _, err := c.seen.Get(id); err == nil {
		return false
	}
	c.seen.Set(id, struct{}{})
	return true
}

// Discard stops the eviction loop. The cache must not be used afterwards.
func (c *Cache) Discard() {
	c.cancel()
}
