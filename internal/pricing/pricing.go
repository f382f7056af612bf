// Package pricing derives a competitive price for an ad from an
// orderbook snapshot. Pure computation on fixed-point decimals: no
// I/O, no clock, no floats.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/merchflow/p2pbot/pkg/models"
)

// ErrNoCompetitor means one side of the book held no foreign quotes, so
// no price can be derived safely. Callers must not place or adjust.
var ErrNoCompetitor = errors.New("no competitor found")

// SelectCompetitors picks the pricing references from one side of the
// book: the best foreign quote (quotes arrive in the venue's own
// ranking, so the first one wins) and the first quote whose tradable
// range overlaps the own ad by more than threshold percent. With no
// overlapping quote the best foreign quote doubles as the competitor.
// The merchant's own standing ad is always excluded by display name.
func SelectCompetitors(quotes []models.Quote, own models.Quote, threshold int64, merchant string) (best, competitor models.Quote, err error) {
	foreign := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Maker.VisibleName != merchant {
			foreign = append(foreign, q)
		}
	}
	if len(foreign) == 0 {
		return best, competitor, fmt.Errorf("%s side: %w", own.Direction, ErrNoCompetitor)
	}

	best = foreign[0]
	competitor = best
	for _, q := range foreign {
		if own.VolumeInterception(q) > threshold {
			competitor = q
			break
		}
	}
	return best, competitor, nil
}

// DerivePrice computes the new quote price for the given direction.
//
// A SELL starts one step under the sell-side competitor, then is raised
// to stay at least competitorSpread steps above the buy-side competitor
// and bestSpread steps above the best bid, so the new ask never crosses
// the opposite side's competitive floor. BUY is the mirror image.
func DerivePrice(direction models.Direction, competitorSpread, bestSpread, digits int, snap models.CompetitiveSnapshot) decimal.Decimal {
	step := decimal.New(1, int32(-digits))
	compGap := step.Mul(decimal.NewFromInt(int64(competitorSpread)))
	bestGap := step.Mul(decimal.NewFromInt(int64(bestSpread)))

	if direction == models.DirectionSell {
		price := snap.SellCompetitor.Price.Sub(step)
		price = decimal.Max(price, snap.BuyCompetitor.Price.Add(compGap))
		return decimal.Max(price, snap.BestBid.Price.Add(bestGap))
	}

	price := snap.BuyCompetitor.Price.Add(step)
	price = decimal.Min(price, snap.SellCompetitor.Price.Sub(compGap))
	return decimal.Min(price, snap.BestAsk.Price.Sub(bestGap))
}
