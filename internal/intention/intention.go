// Package intention keeps the durable record of every submitted ad and
// its lifecycle state. Rows live in the relational store shared by all
// workers; the state machine is enforced here so no caller can invent
// a transition.
package intention

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchflow/p2pbot/pkg/models"
)

// Status is an intention's lifecycle state.
type Status int

const (
	StatusNew Status = iota + 1
	StatusPlaced
	StatusFailed
	// StatusIdle and StatusConvoying are reserved scheduler substates.
	// Nothing transitions into them today; the values are kept so
	// persisted rows stay stable if they are ever activated.
	StatusIdle
	StatusConvoying
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPlaced:
		return "PLACED"
	case StatusFailed:
		return "FAILED"
	case StatusIdle:
		return "IDLE"
	case StatusConvoying:
		return "CONVOYING"
	case StatusCompleted:
		return "COMPLETED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// transitions is the whole state machine: NEW either goes live or fails
// terminally; PLACED either completes or stays PLACED.
var transitions = map[Status][]Status{
	StatusNew:    {StatusPlaced, StatusFailed},
	StatusPlaced: {StatusCompleted},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound means no intention matched the query.
	ErrNotFound = errors.New("intention not found")
	// ErrOpenIntention means the owner already has an open (NEW)
	// intention; exactly one may be open at a time.
	ErrOpenIntention = errors.New("owner already has an open intention")
	// ErrBadTransition means the requested status change is not part of
	// the lifecycle.
	ErrBadTransition = errors.New("illegal status transition")
)

// Intention is one submitted ad and its pricing settings.
type Intention struct {
	ID      uint   `gorm:"primaryKey"`
	OwnerID string `gorm:"index;not null"`

	Asset         string `gorm:"not null"`
	Fiat          string `gorm:"not null"`
	Direction     string `gorm:"not null"`
	PaymentMethod string `gorm:"not null"`
	InitialAmount decimal.Decimal `gorm:"type:numeric;not null"`
	MinAmount     decimal.Decimal `gorm:"type:numeric;not null"`
	MaxAmount     decimal.Decimal `gorm:"type:numeric;not null"`
	TimeLimit     int

	MerchantName          string
	CompetitorSpread      int
	BestSpread            int
	InterceptionThreshold int64
	PaymentComment        string

	Status    Status `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settings returns the pricing settings stored with the intention.
func (i *Intention) Settings() models.AdSettings {
	return models.AdSettings{
		MerchantName:          i.MerchantName,
		CompetitorSpread:      i.CompetitorSpread,
		BestSpread:            i.BestSpread,
		InterceptionThreshold: i.InterceptionThreshold,
		PaymentComment:        i.PaymentComment,
	}
}

// Ad builds the candidate advertisement for this intention. Price and
// digits are placeholders until the pricing engine fills them in.
func (i *Intention) Ad() models.Ad {
	comment := i.Settings().CommentFor(i.PaymentMethod)
	return models.Ad{
		Quote: models.Quote{
			PaymentMethods: []string{i.PaymentMethod},
			Direction:      models.Direction(i.Direction),
			Asset:          i.Asset,
			Fiat:           i.Fiat,
			Price:          decimal.Zero,
			Digits:         2,
			InitialAmount:  i.InitialAmount,
			MinAmount:      i.MinAmount,
			MaxAmount:      i.MaxAmount,
			TimeLimit:      i.TimeLimit,
		},
		Remarks:     comment,
		AutoReply:   comment,
		BuyerRegAge: 1,
	}
}
