package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/intention"
	"github.com/merchflow/p2pbot/internal/locker"
	"github.com/merchflow/p2pbot/internal/pricing"
	"github.com/merchflow/p2pbot/internal/upstream"
	"github.com/merchflow/p2pbot/pkg/models"
)

// Convoy is the periodic repricing pass over every PLACED intention.
// Each owner is polled on its own adaptive interval; stable prices slow
// polling down to the cap, any adjustment resets it to the base.
type Convoy struct {
	intents  *intention.Store
	collect  *CollectInfo
	trading  upstream.Trading
	locks    *locker.Locker
	tracker  *IntervalTracker
	exchange models.Exchange
	log      *zap.Logger
	now      func() time.Time
}

func NewConvoy(intents *intention.Store, collect *CollectInfo, trading upstream.Trading,
	locks *locker.Locker, tracker *IntervalTracker, exchange models.Exchange, log *zap.Logger) *Convoy {
	return &Convoy{
		intents: intents, collect: collect, trading: trading,
		locks: locks, tracker: tracker, exchange: exchange, log: log,
		now: time.Now,
	}
}

// Execute runs one pass. Errors abort the pass for this tick and are
// returned to the caller; intention state is left untouched by an
// aborted pass.
func (uc *Convoy) Execute(ctx context.Context) error {
	rows, err := uc.intents.LoadByStatus(ctx, intention.StatusPlaced, "")
	if err != nil {
		uc.log.Error("convoy load failed", zap.Error(err))
		return err
	}
	convoyPasses.Inc()

	now := uc.now()
	for _, group := range groupByOwner(rows) {
		owner := group[0].OwnerID
		if uc.tracker.ShouldSkip(owner, now) {
			continue
		}
		if err := uc.convoyOwner(ctx, owner, group, now); err != nil {
			uc.log.Error("convoy pass failed", zap.String("owner", owner), zap.Error(err))
			return err
		}
	}
	return nil
}

// convoyOwner reprices one owner's placed intentions under the owner
// lock, against a single listing of the owner's live ads.
func (uc *Convoy) convoyOwner(ctx context.Context, owner string, intents []intention.Intention, now time.Time) error {
	lock, err := uc.locks.Acquire(ctx, uc.exchange, owner, true)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			uc.log.Warn("owner lock release failed", zap.String("owner", owner), zap.Error(rerr))
		}
	}()

	liveAds, err := uc.trading.ListLiveAds(ctx, owner)
	if err != nil {
		return err
	}

	for i := range intents {
		intent := &intents[i]
		matches := matchingAds(liveAds, intent)

		switch {
		case len(matches) == 0:
			// The ad is gone upstream: consumed or removed by the merchant.
			intentionsCompleted.Inc()
			if err := uc.intents.SetStatus(ctx, intent.ID, intention.StatusCompleted); err != nil {
				return err
			}
			continue
		case len(matches) > 1:
			// Ambiguous; known limitation, leave state untouched.
			uc.log.Warn("more than one live ad matches intention, skipping",
				zap.Uint("intention", intent.ID), zap.Int("matches", len(matches)))
			continue
		}

		if err := uc.reprice(ctx, owner, intent, matches[0], now); err != nil {
			return err
		}
	}
	return nil
}

func (uc *Convoy) reprice(ctx context.Context, owner string, intent *intention.Intention, live models.Ad, now time.Time) error {
	settings := intent.Settings()
	snap, err := uc.collect.Execute(ctx, live, intent.PaymentMethod, settings)
	if err != nil {
		return err
	}

	direction := models.Direction(intent.Direction)
	price := pricing.DerivePrice(direction, settings.CompetitorSpread, settings.BestSpread,
		snap.SellCompetitor.Digits, snap)

	if !price.Equal(live.Price) {
		uc.tracker.RecordChange(owner, now)
		uc.log.Debug("adjusting ad",
			zap.String("owner", owner),
			zap.String("from", live.Price.String()),
			zap.String("to", price.String()))
		live.Price = price
		if err := uc.trading.UpdateAd(ctx, owner, live); err != nil {
			return err
		}
		convoyAdjustments.Inc()
		return nil
	}

	uc.tracker.RecordStable(owner, now)
	return nil
}

// matchingAds finds live ads carrying the intention's parameters:
// pair, direction, first payment method and initial amount.
func matchingAds(liveAds []models.Ad, intent *intention.Intention) []models.Ad {
	var matches []models.Ad
	for _, ad := range liveAds {
		if len(ad.PaymentMethods) == 0 {
			continue
		}
		if strings.EqualFold(ad.Asset, intent.Asset) &&
			strings.EqualFold(ad.Fiat, intent.Fiat) &&
			ad.Direction == models.Direction(intent.Direction) &&
			strings.EqualFold(ad.PaymentMethods[0], intent.PaymentMethod) &&
			ad.InitialAmount.Equal(intent.InitialAmount) {
			matches = append(matches, ad)
		}
	}
	return matches
}

// groupByOwner splits rows (already sorted by owner) into per-owner
// runs, preserving order.
func groupByOwner(rows []intention.Intention) [][]intention.Intention {
	var groups [][]intention.Intention
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].OwnerID == rows[i].OwnerID {
			j++
		}
		groups = append(groups, rows[i:j])
		i = j
	}
	return groups
}
