package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchflow/p2pbot/pkg/models"
)

func quote(direction models.Direction, price string, min, max int64, maker string) models.Quote {
	return models.Quote{
		PaymentMethods: []string{"Ziraat"},
		Direction:      direction,
		Asset:          "USDT",
		Fiat:           "TRY",
		Price:          decimal.RequireFromString(price),
		Digits:         2,
		MinAmount:      decimal.NewFromInt(min),
		MaxAmount:      decimal.NewFromInt(max),
		Maker:          models.Maker{VisibleName: maker},
	}
}

func testSnapshot() models.CompetitiveSnapshot {
	return models.CompetitiveSnapshot{
		BestAsk:        quote(models.DirectionSell, "63.70", 100, 1000, "a"),
		BestBid:        quote(models.DirectionBuy, "63.53", 100, 1000, "b"),
		SellCompetitor: quote(models.DirectionSell, "63.73", 100, 1000, "c"),
		BuyCompetitor:  quote(models.DirectionBuy, "63.50", 100, 1000, "d"),
	}
}

func TestDerivePriceBuy(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name             string
		competitorSpread int
		bestSpread       int
		expected         string
	}{
		{"undercuts competitor by one step", 20, 15, "63.51"},
		{"competitor spread dominates", 40, 15, "63.33"},
		{"best spread dominates", 20, 30, "63.40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := DerivePrice(models.DirectionBuy, tt.competitorSpread, tt.bestSpread, 2, snap)
			assert.True(t, price.Equal(decimal.RequireFromString(tt.expected)),
				"got %s, want %s", price, tt.expected)
		})
	}
}

func TestDerivePriceSell(t *testing.T) {
	snap := testSnapshot()

	// One step under the sell competitor already clears both floors.
	price := DerivePrice(models.DirectionSell, 20, 15, 2, snap)
	assert.True(t, price.Equal(decimal.RequireFromString("63.72")), "got %s", price)

	// A wide competitor spread lifts the ask above the naive undercut.
	price = DerivePrice(models.DirectionSell, 40, 15, 2, snap)
	assert.True(t, price.Equal(decimal.RequireFromString("63.90")), "got %s", price)
}

func TestDerivePriceBounds(t *testing.T) {
	snap := testSnapshot()
	for _, digits := range []int{0, 1, 2, 4, 8} {
		step := decimal.New(1, int32(-digits))
		for compSpread := 0; compSpread <= 50; compSpread += 10 {
			for bestSpread := 0; bestSpread <= 50; bestSpread += 10 {
				sell := DerivePrice(models.DirectionSell, compSpread, bestSpread, digits, snap)
				compFloor := snap.BuyCompetitor.Price.Add(step.Mul(decimal.NewFromInt(int64(compSpread))))
				bestFloor := snap.BestBid.Price.Add(step.Mul(decimal.NewFromInt(int64(bestSpread))))
				assert.True(t, sell.GreaterThanOrEqual(compFloor),
					"sell %s below competitor floor %s (digits=%d)", sell, compFloor, digits)
				assert.True(t, sell.GreaterThanOrEqual(bestFloor),
					"sell %s below best-bid floor %s (digits=%d)", sell, bestFloor, digits)

				buy := DerivePrice(models.DirectionBuy, compSpread, bestSpread, digits, snap)
				compCeil := snap.SellCompetitor.Price.Sub(step.Mul(decimal.NewFromInt(int64(compSpread))))
				bestCeil := snap.BestAsk.Price.Sub(step.Mul(decimal.NewFromInt(int64(bestSpread))))
				assert.True(t, buy.LessThanOrEqual(compCeil),
					"buy %s above competitor ceiling %s (digits=%d)", buy, compCeil, digits)
				assert.True(t, buy.LessThanOrEqual(bestCeil),
					"buy %s above best-ask ceiling %s (digits=%d)", buy, bestCeil, digits)
			}
		}
	}
}

func TestSelectCompetitorsFiltersMerchant(t *testing.T) {
	own := quote(models.DirectionSell, "0", 100, 1000, "me")
	quotes := []models.Quote{
		quote(models.DirectionSell, "63.60", 100, 1000, "me"),
		quote(models.DirectionSell, "63.73", 100, 1000, "rival"),
	}

	best, competitor, err := SelectCompetitors(quotes, own, 50, "me")
	require.NoError(t, err)
	assert.Equal(t, "rival", best.Maker.VisibleName)
	assert.Equal(t, "rival", competitor.Maker.VisibleName)
}

func TestSelectCompetitorsByInterception(t *testing.T) {
	own := quote(models.DirectionSell, "0", 100, 1000, "me")
	quotes := []models.Quote{
		quote(models.DirectionSell, "63.80", 5000, 9000, "whale"), // no overlap
		quote(models.DirectionSell, "63.73", 200, 900, "rival"),   // ~77% overlap
	}

	best, competitor, err := SelectCompetitors(quotes, own, 50, "me")
	require.NoError(t, err)
	assert.Equal(t, "whale", best.Maker.VisibleName, "best price follows upstream ordering")
	assert.Equal(t, "rival", competitor.Maker.VisibleName, "competitor chosen by overlap")
}

func TestSelectCompetitorsFallsBackToBest(t *testing.T) {
	own := quote(models.DirectionSell, "0", 100, 1000, "me")
	quotes := []models.Quote{
		quote(models.DirectionSell, "63.80", 5000, 9000, "whale"),
	}

	_, competitor, err := SelectCompetitors(quotes, own, 50, "me")
	require.NoError(t, err)
	assert.Equal(t, "whale", competitor.Maker.VisibleName)
}

func TestSelectCompetitorsEmpty(t *testing.T) {
	own := quote(models.DirectionSell, "0", 100, 1000, "me")

	_, _, err := SelectCompetitors(nil, own, 50, "me")
	assert.ErrorIs(t, err, ErrNoCompetitor)

	onlyMine := []models.Quote{quote(models.DirectionSell, "63.60", 100, 1000, "me")}
	_, _, err = SelectCompetitors(onlyMine, own, 50, "me")
	assert.ErrorIs(t, err, ErrNoCompetitor)
}
