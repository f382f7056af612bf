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

	"github.com/merchflow/p2pbot/internal/mailbox"
	"github.com/merchflow/p2pbot/pkg/models"
)

// MediatorLogin is the LoginFlow backed by the mediator facade. The
// facade runs the actual venue login; when it needs a one-time code it
// answers with a challenge, which is relayed to the merchant through
// the mailbox and retried once with the merchant's answer.
type MediatorLogin struct {
	baseURL string
	client  *http.Client
	mail    *mailbox.Mailbox
	log     *zap.Logger
}

func NewMediatorLogin(baseURL string, mail *mailbox.Mailbox, log *zap.Logger) *MediatorLogin {
	return &MediatorLogin{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Logging in drives a browser on the far side; allow it time.
		client: &http.Client{Timeout: 120 * time.Second},
		mail:   mail,
		log:    log,
	}
}

type loginRequest struct {
	Code string `json:"code,omitempty"`
}

type loginChallenge struct {
	Challenge models.Interaction `json:"challenge"`
}

func (l *MediatorLogin) Login(ctx context.Context, ownerID string) (Credential, error) {
	cred, challenge, err := l.attempt(ctx, ownerID, "")
	if err != nil {
		return Credential{}, err
	}
	if challenge == "" {
		return cred, nil
	}

	l.log.Info("login challenge",
		zap.String("owner", ownerID), zap.String("challenge", string(challenge)))
	answer, err := l.mail.Query(ctx, ownerID, challenge)
	if err != nil {
		return Credential{}, fmt.Errorf("login challenge for %s: %w", ownerID, err)
	}

	cred, challenge, err = l.attempt(ctx, ownerID, answer)
	if err != nil {
		return Credential{}, err
	}
	if challenge != "" {
		return Credential{}, fmt.Errorf("login for %s: challenge %s not satisfied", ownerID, challenge)
	}
	return cred, nil
}

// attempt posts one login round. A 401 carrying a challenge body is not
// an error; it asks for a one-time code.
func (l *MediatorLogin) attempt(ctx context.Context, ownerID, code string) (Credential, models.Interaction, error) {
	raw, err := json.Marshal(loginRequest{Code: code})
	if err != nil {
		return Credential{}, "", fmt.Errorf("encode login: %w", err)
	}

	u := l.baseURL + "/owners/" + url.PathEscape(ownerID) + "/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return Credential{}, "", fmt.Errorf("login %s: %w", ownerID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Credential{}, "", fmt.Errorf("login %s: %w", ownerID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		var ch loginChallenge
		if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil || ch.Challenge == "" {
			return Credential{}, "", fmt.Errorf("login %s: unauthorized", ownerID)
		}
		return Credential{}, ch.Challenge, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Credential{}, "", fmt.Errorf("login %s: status %d: %s", ownerID, resp.StatusCode, body)
	}

	var cred Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return Credential{}, "", fmt.Errorf("decode credential: %w", err)
	}
	return cred, "", nil
}
