package intention

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/merchflow/p2pbot/pkg/models"
)

// Params are the ad parameters supplied on submission.
type Params struct {
	Asset         string           `validate:"required,min=2,max=5"`
	Fiat          string           `validate:"required,min=2,max=5"`
	Direction     models.Direction `validate:"required,oneof=BUY SELL"`
	PaymentMethod string           `validate:"required"`
	InitialAmount decimal.Decimal
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	TimeLimit     int `validate:"gt=0"`
}

func (p Params) check(v *validator.Validate) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid ad params: %w", err)
	}
	if p.MinAmount.GreaterThan(p.MaxAmount) {
		return fmt.Errorf("invalid ad params: min_amount %s exceeds max_amount %s",
			p.MinAmount, p.MaxAmount)
	}
	if p.InitialAmount.IsNegative() {
		return fmt.Errorf("invalid ad params: negative initial_amount %s", p.InitialAmount)
	}
	return nil
}

// Store persists intentions.
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewStore migrates the intention table and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Intention{}); err != nil {
		return nil, fmt.Errorf("migrate intentions: %w", err)
	}
	return &Store{db: db, validate: validator.New()}, nil
}

// Create validates params and inserts a NEW intention. An owner may have
// at most one open intention; a second submission fails with
// ErrOpenIntention until the first is placed or fails.
func (s *Store) Create(ctx context.Context, owner string, params Params, settings models.AdSettings) (*Intention, error) {
	if err := params.check(s.validate); err != nil {
		return nil, err
	}

	row := &Intention{
		OwnerID:               owner,
		Asset:                 params.Asset,
		Fiat:                  params.Fiat,
		Direction:             string(params.Direction),
		PaymentMethod:         params.PaymentMethod,
		InitialAmount:         params.InitialAmount,
		MinAmount:             params.MinAmount,
		MaxAmount:             params.MaxAmount,
		TimeLimit:             params.TimeLimit,
		MerchantName:          settings.MerchantName,
		CompetitorSpread:      settings.CompetitorSpread,
		BestSpread:            settings.BestSpread,
		InterceptionThreshold: settings.InterceptionThreshold,
		PaymentComment:        settings.PaymentComment,
		Status:                StatusNew,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&Intention{}).
			Where("owner_id = ? AND status = ?", owner, StatusNew).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("owner %s: %w", owner, ErrOpenIntention)
		}
		return tx.Create(row).Error
	})
	if err != nil {
		if errors.Is(err, ErrOpenIntention) {
			return nil, err
		}
		return nil, fmt.Errorf("create intention: %w", err)
	}
	return row, nil
}

// LoadByStatus returns intentions in the given state, oldest first and
// grouped by owner. An empty owner loads every owner's rows.
func (s *Store) LoadByStatus(ctx context.Context, status Status, owner string) ([]Intention, error) {
	q := s.db.WithContext(ctx).Where("status = ?", status)
	if owner != "" {
		q = q.Where("owner_id = ?", owner)
	}
	var rows []Intention
	if err := q.Order("owner_id, updated_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load intentions by status %s: %w", status, err)
	}
	return rows, nil
}

// LatestNew returns the most recently updated NEW intention for owner,
// or ErrNotFound.
func (s *Store) LatestNew(ctx context.Context, owner string) (*Intention, error) {
	var row Intention
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", owner, StatusNew).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("owner %s: %w", owner, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load new intention: %w", err)
	}
	return &row, nil
}

// SetStatus applies a lifecycle transition, rejecting moves the state
// machine does not allow.
func (s *Store) SetStatus(ctx context.Context, id uint, next Status) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Intention
		if err := tx.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("intention %d: %w", id, ErrNotFound)
			}
			return err
		}
		if !row.Status.CanTransition(next) {
			return fmt.Errorf("intention %d: %s -> %s: %w", id, row.Status, next, ErrBadTransition)
		}
		return tx.Model(&row).Update("status", next).Error
	})
}
