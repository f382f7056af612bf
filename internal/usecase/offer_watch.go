package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/cache"
	"github.com/merchflow/p2pbot/internal/intention"
	"github.com/merchflow/p2pbot/internal/mailbox"
	"github.com/merchflow/p2pbot/internal/upstream"
	"github.com/merchflow/p2pbot/pkg/models"
)

// OfferWatch detects new incoming trade matches for every owner with
// live ads and notifies the merchant through the mailbox. The dedupe
// fingerprint is the concatenation of match ids, compared in the shared
// TTL store so multiple workers never double-notify.
type OfferWatch struct {
	intents  *intention.Store
	trading  upstream.Trading
	mail     *mailbox.Mailbox
	dedupe   *cache.TTLCache
	exchange models.Exchange
	log      *zap.Logger
}

func NewOfferWatch(intents *intention.Store, trading upstream.Trading, mail *mailbox.Mailbox,
	dedupe *cache.TTLCache, exchange models.Exchange, log *zap.Logger) *OfferWatch {
	return &OfferWatch{
		intents: intents, trading: trading, mail: mail,
		dedupe: dedupe, exchange: exchange, log: log,
	}
}

func (uc *OfferWatch) dedupeKey(owner string) string {
	return fmt.Sprintf("offers:%s_%s", uc.exchange, owner)
}

// Execute runs one watch pass over all owners with PLACED intentions.
func (uc *OfferWatch) Execute(ctx context.Context) error {
	rows, err := uc.intents.LoadByStatus(ctx, intention.StatusPlaced, "")
	if err != nil {
		uc.log.Error("offer watch load failed", zap.Error(err))
		return err
	}

	for _, group := range groupByOwner(rows) {
		owner := group[0].OwnerID

		matches, err := uc.trading.ListIncomingMatches(ctx, owner)
		if err != nil {
			return err
		}

		var fp strings.Builder
		for _, m := range matches {
			fp.WriteString(m.OrderNo)
		}
		isNew, err := uc.dedupe.Update(ctx, uc.dedupeKey(owner), fp.String())
		if err != nil {
			return err
		}
		if !isNew {
			continue
		}

		for _, m := range matches {
			detail := fmt.Sprintf("Order: %s %s %s@%s",
				m.Asset, m.Fiat, m.Amount.StringFixed(2), m.Price.StringFixed(2))
			if err := uc.mail.PutNotification(ctx, owner, models.InteractionNewOffer, detail); err != nil {
				return err
			}
			offerNotifications.Inc()
		}
	}
	return nil
}
