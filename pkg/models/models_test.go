package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func quoteWithRange(min, max int64) Quote {
	return Quote{
		Direction: DirectionSell,
		Asset:     "USDT",
		Fiat:      "TRY",
		Price:     decimal.NewFromInt(10),
		MinAmount: decimal.NewFromInt(min),
		MaxAmount: decimal.NewFromInt(max),
	}
}

func TestVolumeInterception(t *testing.T) {
	tests := []struct {
		name     string
		own      Quote
		other    Quote
		expected int64
	}{
		{"self is full overlap", quoteWithRange(100, 1000), quoteWithRange(100, 1000), 100},
		{"half overlap", quoteWithRange(0, 100), quoteWithRange(50, 200), 50},
		{"contained range", quoteWithRange(0, 100), quoteWithRange(25, 75), 50},
		{"disjoint is negative", quoteWithRange(0, 100), quoteWithRange(200, 300), -100},
		{"truncates toward zero", quoteWithRange(0, 3), quoteWithRange(0, 1), 33},
		{"zero own width", quoteWithRange(100, 100), quoteWithRange(0, 1000), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.own.VolumeInterception(tt.other))
		})
	}
}

func TestVolumeInterceptionAsymmetric(t *testing.T) {
	narrow := quoteWithRange(0, 100)
	wide := quoteWithRange(0, 1000)
	assert.Equal(t, int64(100), narrow.VolumeInterception(wide))
	assert.Equal(t, int64(10), wide.VolumeInterception(narrow))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("sell")
	assert.NoError(t, err)
	assert.Equal(t, DirectionSell, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestPairString(t *testing.T) {
	assert.Equal(t, "USDT_TRY", Pair{Asset: "usdt", Fiat: "try"}.String())
}

func TestCommentFor(t *testing.T) {
	s := AdSettings{PaymentComment: "Ziraat-c1\nVakif - c2\nbroken line"}
	assert.Equal(t, "c2", s.CommentFor("Vakif"))
	assert.Equal(t, "c1", s.CommentFor("Ziraat"))
	assert.Equal(t, "", s.CommentFor("Garanti"))
}

func TestSettingsWithMethods(t *testing.T) {
	base := AdSettings{MerchantName: "alice", CompetitorSpread: 15}
	patched := base.WithMerchantName("bob").WithPaymentComment("Ziraat-hi")
	assert.Equal(t, "alice", base.MerchantName)
	assert.Equal(t, "bob", patched.MerchantName)
	assert.Equal(t, 15, patched.CompetitorSpread)
}
