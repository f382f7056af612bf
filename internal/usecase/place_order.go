package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/intention"
	"github.com/merchflow/p2pbot/internal/locker"
	"github.com/merchflow/p2pbot/internal/mailbox"
	"github.com/merchflow/p2pbot/internal/pricing"
	"github.com/merchflow/p2pbot/internal/upstream"
	"github.com/merchflow/p2pbot/pkg/models"
)

// ErrNothingToPlace means the owner has no open intention.
var ErrNothingToPlace = errors.New("nothing to place")

// PlaceOrder turns the owner's open intention into a live upstream ad.
type PlaceOrder struct {
	intents  *intention.Store
	collect  *CollectInfo
	trading  upstream.Trading
	locks    *locker.Locker
	mail     *mailbox.Mailbox
	exchange models.Exchange
	log      *zap.Logger
}

func NewPlaceOrder(intents *intention.Store, collect *CollectInfo, trading upstream.Trading,
	locks *locker.Locker, mail *mailbox.Mailbox, exchange models.Exchange, log *zap.Logger) *PlaceOrder {
	return &PlaceOrder{
		intents: intents, collect: collect, trading: trading,
		locks: locks, mail: mail, exchange: exchange, log: log,
	}
}

// Execute prices and publishes the owner's NEW intention. Placement
// runs under the owner lock so a concurrent convoy pass cannot touch
// the same ads. Any failure past intention lookup marks the intention
// FAILED, which is terminal: there is no automatic retry.
func (uc *PlaceOrder) Execute(ctx context.Context, ownerID string) error {
	intent, err := uc.intents.LatestNew(ctx, ownerID)
	if errors.Is(err, intention.ErrNotFound) {
		return fmt.Errorf("owner %s: %w", ownerID, ErrNothingToPlace)
	}
	if err != nil {
		return err
	}

	lock, err := uc.locks.Acquire(ctx, uc.exchange, ownerID, true)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			uc.log.Warn("owner lock release failed", zap.String("owner", ownerID), zap.Error(rerr))
		}
	}()

	uc.log.Debug("placing intention", zap.Uint("intention", intent.ID), zap.String("owner", ownerID))

	if err := uc.place(ctx, ownerID, intent); err != nil {
		placeFailures.Inc()
		if serr := uc.intents.SetStatus(ctx, intent.ID, intention.StatusFailed); serr != nil {
			uc.log.Error("failed to mark intention FAILED",
				zap.Uint("intention", intent.ID), zap.Error(serr))
		}
		uc.log.Error("placement failed", zap.Uint("intention", intent.ID), zap.Error(err))
		return err
	}

	adsPlaced.Inc()
	return uc.intents.SetStatus(ctx, intent.ID, intention.StatusPlaced)
}

func (uc *PlaceOrder) place(ctx context.Context, ownerID string, intent *intention.Intention) error {
	ad := intent.Ad()
	settings := intent.Settings()

	snap, err := uc.collect.Execute(ctx, ad, intent.PaymentMethod, settings)
	if err != nil {
		return err
	}

	price := pricing.DerivePrice(ad.Direction, settings.CompetitorSpread, settings.BestSpread,
		snap.SellCompetitor.Digits, snap)
	competitor := snap.BuyCompetitor
	if ad.Direction == models.DirectionSell {
		competitor = snap.SellCompetitor
	}
	ad.Digits = competitor.Digits
	ad.Price = price

	uc.log.Info("placing ad",
		zap.String("owner", ownerID),
		zap.Stringer("pair", ad.Pair()),
		zap.String("direction", string(ad.Direction)),
		zap.String("price", price.String()))

	if _, err := uc.trading.PlaceAd(ctx, ownerID, ad); err != nil {
		return fmt.Errorf("place ad upstream: %w", err)
	}
	return nil
}

// ExecutePending places the open intention of every owner that has
// one. It is the timer-driven entry point for deployments without a
// request handler pushing owners in; one owner's failure does not stop
// the others.
func (uc *PlaceOrder) ExecutePending(ctx context.Context) error {
	rows, err := uc.intents.LoadByStatus(ctx, intention.StatusNew, "")
	if err != nil {
		return err
	}
	var errs []error
	for _, group := range groupByOwner(rows) {
		if err := uc.ExecuteWithNotice(ctx, group[0].OwnerID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExecuteWithNotice runs Execute and reports the outcome through the
// mailbox: ADS_PUBLISHED on success, GENERIC_ERROR on failure. The
// notification is decoupled from the returned error.
func (uc *PlaceOrder) ExecuteWithNotice(ctx context.Context, ownerID string) error {
	err := uc.Execute(ctx, ownerID)
	kind := models.InteractionAdsPublished
	if err != nil {
		kind = models.InteractionGenericError
	}
	if nerr := uc.mail.PutNotification(ctx, ownerID, kind, ""); nerr != nil {
		uc.log.Warn("placement notification failed", zap.String("owner", ownerID), zap.Error(nerr))
	}
	return err
}
