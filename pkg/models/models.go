// Package models holds the domain types shared by the pricing engine,
// the caches and the use cases: quotes, ads, pairs and the snapshot of
// competitive prices derived from an orderbook.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a P2P quote.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// ParseDirection normalizes a raw direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(s)) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Exchange identifies the upstream trading venue.
type Exchange string

const (
	ExchangeUnspecified Exchange = "UNSPECIFIED"
	ExchangeBinance     Exchange = "Binance"
)

// Pair is an asset/fiat trading pair.
type Pair struct {
	Asset string
	Fiat  string
}

func (p Pair) String() string {
	return strings.ToUpper(p.Asset + "_" + p.Fiat)
}

// Maker identifies the merchant behind a quote.
type Maker struct {
	UserNo      string          `json:"user_no"`
	VisibleName string          `json:"visible_name"`
	SuccessRate decimal.Decimal `json:"success_rate"`
	OrdersCount int             `json:"orders_count"`
	IsPro       bool            `json:"is_pro"`
}

// Quote is one resale offer in an orderbook: price, tradable amount
// range and the maker who stands behind it. Immutable once built.
type Quote struct {
	OfferID        string          `json:"offer_id,omitempty"`
	PaymentMethods []string        `json:"payment_methods"`
	Direction      Direction       `json:"direction"`
	Asset          string          `json:"asset"`
	Fiat           string          `json:"fiat"`
	Price          decimal.Decimal `json:"price"`
	Digits         int             `json:"digits"`
	InitialAmount  decimal.Decimal `json:"initial_amount"`
	MinAmount      decimal.Decimal `json:"min_amount"`
	MaxAmount      decimal.Decimal `json:"max_amount"`
	TimeLimit      int             `json:"time_limit"`
	Maker          Maker           `json:"maker"`
}

// Pair returns the quote's trading pair.
func (q Quote) Pair() Pair {
	return Pair{Asset: q.Asset, Fiat: q.Fiat}
}

// VolumeInterception is the overlap of the two quotes' tradable ranges
// as an integer percentage of this quote's own range width. Truncated,
// not rounded; negative when the ranges do not overlap. Deliberately
// asymmetric: the denominator is always the receiver's width.
func (q Quote) VolumeInterception(o Quote) int64 {
	ownWidth := q.MaxAmount.Sub(q.MinAmount)
	if ownWidth.IsZero() {
		return 0
	}
	left := decimal.Max(q.MinAmount, o.MinAmount)
	right := decimal.Min(q.MaxAmount, o.MaxAmount)
	return right.Sub(left).Mul(decimal.NewFromInt(100)).Div(ownWidth).IntPart()
}

func (q Quote) String() string {
	return fmt.Sprintf("%s %s-%s@%s by %s",
		q.Direction, q.MinAmount, q.MaxAmount, q.Price, q.Maker.VisibleName)
}

// Ad is a merchant's own advertisement: a quote plus the presentation
// fields the venue attaches to published ads.
type Ad struct {
	Quote
	Remarks     string   `json:"remarks,omitempty"`
	AutoReply   string   `json:"auto_reply,omitempty"`
	BuyerRegAge int      `json:"buyer_reg_age,omitempty"`
	Countries   []string `json:"countries,omitempty"`
}

// PeerMatch is an incoming trade where a taker accepted one of the
// merchant's ads.
type PeerMatch struct {
	OrderNo   string          `json:"order_no"`
	Asset     string          `json:"asset"`
	Fiat      string          `json:"fiat"`
	Direction Direction       `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// CompetitiveSnapshot is the pricing engine's view of one orderbook:
// the best foreign quote on each side plus the volume-matched
// competitor on each side. Derived, never persisted.
type CompetitiveSnapshot struct {
	BestAsk        Quote
	BestBid        Quote
	SellCompetitor Quote
	BuyCompetitor  Quote
}
