package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/pkg/models"
)

// Mediator implements Trading against the merchant mediator facade, the
// out-of-process service that owns the venue's real wire format. This
// side only speaks the internal JSON API.
type Mediator struct {
	baseURL  string
	client   *http.Client
	sessions SessionProvider
	log      *zap.Logger
}

func NewMediator(baseURL string, sessions SessionProvider, log *zap.Logger) *Mediator {
	return &Mediator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 8 * time.Second},
		sessions: sessions,
		log:      log,
	}
}

func (m *Mediator) do(ctx context.Context, method, path, ownerID string, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	u := m.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if ownerID != "" {
		cred, err := m.sessions.GetValidCredential(ctx, ownerID)
		if err != nil {
			return err
		}
		req.Header.Set("X-Session-Token", cred.Token)
	}

	m.log.Debug("mediator call", zap.String("method", method), zap.String("path", path))
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: upstream status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (m *Mediator) FetchOrderbook(ctx context.Context, pair models.Pair, payMethods []string, direction models.Direction) ([]models.Quote, error) {
	q := url.Values{
		"asset":       {pair.Asset},
		"fiat":        {pair.Fiat},
		"direction":   {string(direction)},
		"pay_methods": {strings.Join(payMethods, ",")},
	}
	var quotes []models.Quote
	if err := m.do(ctx, http.MethodGet, "/orderbook", "", q, nil, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (m *Mediator) PlaceAd(ctx context.Context, ownerID string, ad models.Ad) (models.Ad, error) {
	var placed models.Ad
	err := m.do(ctx, http.MethodPost, "/owners/"+url.PathEscape(ownerID)+"/ads", ownerID, nil, ad, &placed)
	return placed, err
}

func (m *Mediator) UpdateAd(ctx context.Context, ownerID string, ad models.Ad) error {
	return m.do(ctx, http.MethodPut, "/owners/"+url.PathEscape(ownerID)+"/ads", ownerID, nil, ad, nil)
}

func (m *Mediator) ListLiveAds(ctx context.Context, ownerID string) ([]models.Ad, error) {
	var ads []models.Ad
	err := m.do(ctx, http.MethodGet, "/owners/"+url.PathEscape(ownerID)+"/ads", ownerID, nil, nil, &ads)
	return ads, err
}

func (m *Mediator) ListIncomingMatches(ctx context.Context, ownerID string) ([]models.PeerMatch, error) {
	var matches []models.PeerMatch
	err := m.do(ctx, http.MethodGet, "/owners/"+url.PathEscape(ownerID)+"/matches", ownerID, nil, nil, &matches)
	return matches, err
}
