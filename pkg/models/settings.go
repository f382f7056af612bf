package models

import "strings"

// AdSettings are the per-merchant pricing knobs applied when placing or
// repricing an ad. Value semantics: the With* methods return a copy with
// one field overridden instead of mutating the receiver.
type AdSettings struct {
	MerchantName          string `json:"merchant_name"`
	CompetitorSpread      int    `json:"competitor_spread"`
	BestSpread            int    `json:"best_spread"`
	InterceptionThreshold int64  `json:"interception_threshold"`
	PaymentComment        string `json:"payment_comment"`
}

// WithMerchantName returns a copy with the merchant display name replaced.
func (s AdSettings) WithMerchantName(name string) AdSettings {
	s.MerchantName = name
	return s
}

// WithPaymentComment returns a copy with the payment comment replaced.
func (s AdSettings) WithPaymentComment(comment string) AdSettings {
	s.PaymentComment = comment
	return s
}

// CommentFor looks up the remark configured for a payment method. The
// comment setting is a multi-line "method - text" list; the first
// matching line wins. Missing or malformed lines yield "".
func (s AdSettings) CommentFor(method string) string {
	for _, line := range strings.Split(s.PaymentComment, "\n") {
		m, c, ok := strings.Cut(line, "-")
		if !ok {
			continue
		}
		if strings.TrimSpace(m) == method {
			return strings.TrimSpace(c)
		}
	}
	return ""
}

// Interaction is the kind of a mailbox message exchanged with the
// merchant's chat frontend.
type Interaction string

const (
	InteractionAuthRequired  Interaction = "AUTH_REQUIRED"
	InteractionAuthFailed    Interaction = "AUTH_FAILED"
	InteractionAuthenticated Interaction = "AUTHENTICATED"

	InteractionAskEmailCode Interaction = "ASK_EMAIL_CODE"
	InteractionAskPhoneCode Interaction = "ASK_PHONE_CODE"
	InteractionAskAuthCode  Interaction = "ASK_AUTH_CODE"

	InteractionAdsPublished Interaction = "ADS_PUBLISHED"
	InteractionNewOffer     Interaction = "NEW_OFFER"
	InteractionGenericError Interaction = "GENERIC_ERROR"
)
