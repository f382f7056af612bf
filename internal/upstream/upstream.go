// Package upstream defines the contracts of the external collaborators:
// the trading venue operations the core consumes and the session
// credential provider. The venue's own wire format lives behind these
// interfaces, outside the core.
package upstream

import (
	"context"
	"time"

	"github.com/merchflow/p2pbot/pkg/models"
)

// Trading is the venue surface the repricing core consumes.
type Trading interface {
	// FetchOrderbook returns one side of the book for a pair, in the
	// venue's own competitiveness order.
	FetchOrderbook(ctx context.Context, pair models.Pair, payMethods []string, direction models.Direction) ([]models.Quote, error)
	// PlaceAd publishes an ad and returns the live handle with the
	// venue-assigned offer id.
	PlaceAd(ctx context.Context, ownerID string, ad models.Ad) (models.Ad, error)
	// UpdateAd re-prices an already published ad.
	UpdateAd(ctx context.Context, ownerID string, ad models.Ad) error
	// ListLiveAds returns the owner's currently published ads.
	ListLiveAds(ctx context.Context, ownerID string) ([]models.Ad, error)
	// ListIncomingMatches returns trades where a taker accepted one of
	// the owner's ads.
	ListIncomingMatches(ctx context.Context, ownerID string) ([]models.PeerMatch, error)
}

// Credential is an opaque session credential for the venue.
type Credential struct {
	OwnerID  string    `json:"owner_id"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// SessionProvider hands out a valid credential for an owner, logging in
// again when the cached one is gone.
type SessionProvider interface {
	GetValidCredential(ctx context.Context, ownerID string) (Credential, error)
}

// LoginFlow produces a fresh credential. Implementations live outside
// the core (browser automation, captcha solving) and may block on the
// mailbox for a one-time code.
type LoginFlow interface {
	Login(ctx context.Context, ownerID string) (Credential, error)
}
