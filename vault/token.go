package vault

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/openucp/ucp-go/cardnet"
)

// PaymentMethodType discriminates the inbound credential shape.
type PaymentMethodType string

// Defines values for PaymentMethodType.
const (
	PaymentMethodCard      PaymentMethodType = "card"
	PaymentMethodGooglePay PaymentMethodType = "google_pay"
	PaymentMethodApplePay  PaymentMethodType = "apple_pay"
)

// CredentialType determines the detokenization response shape. It is fixed
// at token creation and mirrors the handler's tokenization mode.
type CredentialType string

// Defines values for CredentialType.
const (
	CredentialNetworkToken CredentialType = "network_token"
	CredentialPAN          CredentialType = "pan"
)

// Binding is the {checkout, business} scope a token is restricted to. It is
// immutable once the token is created and must match exactly on every
// detokenization attempt.
type Binding struct {
	CheckoutID string `json:"checkout_id"`
	BusinessID string `json:"business_id"`
}

// Instrument is the derived, non-sensitive display metadata for a tokenized
// credential. It never carries the PAN or CVC.
type Instrument struct {
	Type       PaymentMethodType `json:"type"`
	Brand      cardnet.Brand     `json:"brand,omitempty"`
	LastDigits string            `json:"last_digits,omitempty"`
	ExpMonth   int               `json:"exp_month,omitempty"`
	ExpYear    int               `json:"exp_year,omitempty"`
}

// StoredToken is the persisted token record. Everything except Used is
// immutable after creation; Used transitions false to true exactly once via
// the store's compare-and-swap.
type StoredToken struct {
	ID             string         `json:"id"`
	ProviderRef    string         `json:"provider_ref"`
	Binding        Binding        `json:"binding"`
	Instrument     Instrument     `json:"instrument"`
	CredentialType CredentialType `json:"credential_type"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	Used           bool           `json:"used"`
}

// tokenKey addresses a token record by its ID alone. The checkout scope is
// enforced against the stored binding, not the key: a lookup with the wrong
// checkout must surface as a binding violation, not as a missing token.
func tokenKey(tokenID string) string {
	return "paytoken:" + tokenID
}

// newTokenID returns an unguessable caller-facing token identifier: 32
// bytes of entropy behind a type prefix.
func newTokenID() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return "pt_" + base64.RawURLEncoding.EncodeToString(buf)
}
