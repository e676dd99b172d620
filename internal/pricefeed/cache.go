package pricefeed

import (
	"sync"

	"insightai-sync/internal/types"
)

// Cache holds the latest known quote per symbol. It is owned by the
// reconciler, not shared process-wide: construct one per owning context.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]types.PriceQuote
}

func NewCache() *Cache {
	return &Cache{quotes: make(map[string]types.PriceQuote)}
}

func (c *Cache) Get(symbol string) (types.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, exists := c.quotes[symbol]
	return q, exists
}

func (c *Cache) Set(q types.PriceQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[q.Symbol] = q
}

// Drop forgets the quote for a symbol that is no longer tracked.
func (c *Cache) Drop(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.quotes, symbol)
}

// Snapshot returns a copy to prevent external modification.
func (c *Cache) Snapshot() map[string]types.PriceQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]types.PriceQuote, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out
}
