package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/merchflow/p2pbot/pkg/models"
)

// OrderBook caches orderbook snapshots per (exchange, pair). It never
// fetches: on ErrCacheMiss the caller pulls fresh quotes upstream and
// Puts them back. Quote order is preserved; it encodes the venue's own
// competitiveness ranking.
type OrderBook struct {
	cache *TTLCache
	ttl   time.Duration
}

func NewOrderBook(cache *TTLCache, ttl time.Duration) *OrderBook {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &OrderBook{cache: cache, ttl: ttl}
}

func orderBookKey(exchange models.Exchange, pair models.Pair) string {
	return fmt.Sprintf("ob:%s:%s", exchange, pair)
}

// Put stores a snapshot, replacing any previous one for the pair.
func (c *OrderBook) Put(ctx context.Context, exchange models.Exchange, pair models.Pair, quotes []models.Quote) error {
	raw, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encode orderbook %s: %w", pair, err)
	}
	return c.cache.Set(ctx, orderBookKey(exchange, pair), string(raw), c.ttl)
}

// Get reads the cached snapshot, failing with ErrCacheMiss when absent
// or expired.
func (c *OrderBook) Get(ctx context.Context, exchange models.Exchange, pair models.Pair) ([]models.Quote, error) {
	raw, err := c.cache.Get(ctx, orderBookKey(exchange, pair))
	if err != nil {
		return nil, err
	}
	var quotes []models.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		return nil, fmt.Errorf("decode orderbook %s: %w", pair, err)
	}
	return quotes, nil
}
