// Package usecase holds the core operations driven by the scheduler:
// snapshot collection, ad placement, the convoy repricing pass and the
// new-offer watcher.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/cache"
	"github.com/merchflow/p2pbot/internal/pricing"
	"github.com/merchflow/p2pbot/internal/upstream"
	"github.com/merchflow/p2pbot/pkg/models"
)

// CollectInfo assembles the CompetitiveSnapshot for one ad: cached
// orderbook if fresh, otherwise both sides fetched upstream and cached,
// then competitor selection per side.
type CollectInfo struct {
	trading  upstream.Trading
	books    *cache.OrderBook
	exchange models.Exchange
	log      *zap.Logger
}

func NewCollectInfo(trading upstream.Trading, books *cache.OrderBook, exchange models.Exchange, log *zap.Logger) *CollectInfo {
	return &CollectInfo{trading: trading, books: books, exchange: exchange, log: log}
}

// Execute derives the four pricing references for ad. Fails with
// pricing.ErrNoCompetitor when either side of the book has no foreign
// quotes; the caller must not place or adjust in that case.
func (uc *CollectInfo) Execute(ctx context.Context, ad models.Ad, method string, settings models.AdSettings) (models.CompetitiveSnapshot, error) {
	var snap models.CompetitiveSnapshot
	pair := ad.Pair()

	quotes, err := uc.books.Get(ctx, uc.exchange, pair)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		quotes, err = uc.refresh(ctx, pair, method)
		if err != nil {
			return snap, err
		}
	case err != nil:
		return snap, fmt.Errorf("orderbook cache: %w", err)
	}

	var sells, buys []models.Quote
	for _, q := range quotes {
		switch q.Direction {
		case models.DirectionSell:
			sells = append(sells, q)
		case models.DirectionBuy:
			buys = append(buys, q)
		}
	}

	bestAsk, sellCompetitor, err := pricing.SelectCompetitors(sells, ad.Quote, settings.InterceptionThreshold, settings.MerchantName)
	if err != nil {
		uc.log.Warn("no sell-side competitor",
			zap.Stringer("pair", pair), zap.Int("quotes", len(quotes)))
		return snap, err
	}
	bestBid, buyCompetitor, err := pricing.SelectCompetitors(buys, ad.Quote, settings.InterceptionThreshold, settings.MerchantName)
	if err != nil {
		uc.log.Warn("no buy-side competitor",
			zap.Stringer("pair", pair), zap.Int("quotes", len(quotes)))
		return snap, err
	}

	return models.CompetitiveSnapshot{
		BestAsk:        bestAsk,
		BestBid:        bestBid,
		SellCompetitor: sellCompetitor,
		BuyCompetitor:  buyCompetitor,
	}, nil
}

// refresh fetches both sides of the book and caches the concatenation.
// Best effort: a concurrent miss from another worker may fetch the same
// book twice, which is acceptable.
func (uc *CollectInfo) refresh(ctx context.Context, pair models.Pair, method string) ([]models.Quote, error) {
	orderbookRefreshes.Inc()

	quotes, err := uc.trading.FetchOrderbook(ctx, pair, []string{method}, models.DirectionSell)
	if err != nil {
		return nil, fmt.Errorf("fetch sell book %s: %w", pair, err)
	}
	buys, err := uc.trading.FetchOrderbook(ctx, pair, []string{method}, models.DirectionBuy)
	if err != nil {
		return nil, fmt.Errorf("fetch buy book %s: %w", pair, err)
	}
	quotes = append(quotes, buys...)

	if err := uc.books.Put(ctx, uc.exchange, pair, quotes); err != nil {
		uc.log.Warn("orderbook cache put failed", zap.Stringer("pair", pair), zap.Error(err))
	}
	return quotes, nil
}
