package ucp

import (
	"encoding/json"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/openucp/ucp-go/secret"
)

// PaymentMethodType discriminates the payment_method union.
type PaymentMethodType string

// Defines values for PaymentMethodType.
const (
	PaymentMethodTypeCard      PaymentMethodType = "card"
	PaymentMethodTypeGooglePay PaymentMethodType = "google_pay"
	PaymentMethodTypeApplePay  PaymentMethodType = "apple_pay"
)

// BusinessIdentityType defines model for BusinessIdentity.Type.
type BusinessIdentityType string

// Defines values for BusinessIdentityType.
const (
	BusinessIdentityTypeMerchant BusinessIdentityType = "merchant"
	BusinessIdentityTypePlatform BusinessIdentityType = "platform"
)

// DelegateType defines model for DelegatedTo.Type.
type DelegateType string

// Defines values for DelegateType.
const (
	DelegateTypePSP       DelegateType = "psp"
	DelegateTypeProcessor DelegateType = "processor"
)

// CredentialResponseType defines model for CredentialPayload.Type.
type CredentialResponseType string

// Defines values for CredentialResponseType.
const (
	CredentialResponseTypeNetworkToken CredentialResponseType = "network_token"
	CredentialResponseTypePAN          CredentialResponseType = "pan"
)

// BusinessIdentity names the business a token is scoped to.
type BusinessIdentity struct {
	Type  BusinessIdentityType `json:"type" validate:"required,oneof=merchant platform"`
	Value string               `json:"value" validate:"required"`
}

// TokenBinding is the {checkout session, business identity} scope carried on
// every tokenize and detokenize request.
type TokenBinding struct {
	CheckoutSessionID string           `json:"checkout_session_id" validate:"required"`
	BusinessIdentity  BusinessIdentity `json:"business_identity" validate:"required"`
}

// TokenizeRequestPayload mirrors the UCP payment token creation payload.
type TokenizeRequestPayload struct {
	// Payment credential union, discriminated by the type field:
	// card, google_pay, or apple_pay.
	PaymentMethod PaymentCredential `json:"payment_method" validate:"-"`
	// Scope the issued token is bound to.
	Binding TokenBinding `json:"binding" validate:"required"`
	// Arbitrary key/value pairs.
	Metadata map[string]string `json:"metadata,omitempty" validate:"omitempty"`
}

// TokenizeResponsePayload carries the opaque single-use token plus display
// metadata. Raw credential material never appears here.
type TokenizeResponsePayload struct {
	// Unique payment token identifier pt_….
	Token string `json:"token"`
	// Time formatted as an RFC 3339 string.
	ExpiresAt time.Time `json:"expires_at"`
	// Derived, non-sensitive display metadata.
	Instrument InstrumentPayload `json:"instrument"`
}

// InstrumentPayload is the non-sensitive display metadata for a token.
type InstrumentPayload struct {
	Type       PaymentMethodType `json:"type"`
	Brand      string            `json:"brand,omitempty"`
	LastDigits string            `json:"last_digits,omitempty"`
	ExpMonth   int               `json:"exp_month,omitempty"`
	ExpYear    int               `json:"exp_year,omitempty"`
}

// DetokenizeRequestPayload mirrors the UCP payment token retrieval payload.
// The token itself travels in the URL path.
type DetokenizeRequestPayload struct {
	// Scope the token was bound to at creation. Both fields must match.
	Binding TokenBinding `json:"binding" validate:"required"`
	// Party the retrieval is performed on behalf of.
	DelegatedTo *DelegatedTo `json:"delegated_to,omitempty" validate:"omitempty"`
}

// DelegatedTo identifies a PSP or processor acting for the caller.
type DelegatedTo struct {
	Type     DelegateType `json:"type" validate:"required,oneof=psp processor"`
	Identity string       `json:"identity" validate:"required"`
	// Grant is a checkout-scoped delegation token. Required when the
	// handler is configured with [WithDelegationCodec].
	Grant string `json:"grant,omitempty"`
}

// DetokenizeResponsePayload carries the processor-usable credential,
// delivered exactly once per token.
type DetokenizeResponsePayload struct {
	Credential CredentialPayload `json:"credential"`
	// Always true on success: the token is dead from this point.
	Invalidated bool `json:"invalidated"`
}

// CredentialPayload is the detokenized credential material. Populated
// fields depend on Type.
type CredentialPayload struct {
	Type         CredentialResponseType `json:"type"`
	NetworkToken string                 `json:"network_token,omitempty"`
	Cryptogram   string                 `json:"cryptogram,omitempty"`
	ECI          string                 `json:"eci,omitempty"`
	PAN          string                 `json:"pan,omitempty"`
	ExpMonth     int                    `json:"exp_month,omitempty"`
	ExpYear      int                    `json:"exp_year,omitempty"`
}

// InvalidateResponsePayload reports whether a token was removed.
type InvalidateResponsePayload struct {
	Invalidated bool `json:"invalidated"`
}

// CardCredentialPayload captures a raw card credential. The number and CVC
// are redacted in any serialized or logged form.
type CardCredentialPayload struct {
	Type PaymentMethodType `json:"type" validate:"required,eq=card"`
	// Card number.
	Number secret.Value `json:"number" validate:"required,numeric,min=12,max=19"`
	// Expiry month.
	ExpMonth string `json:"exp_month" validate:"required,len=2,numeric"`
	// Expiry year.
	ExpYear string `json:"exp_year" validate:"required,len=4,numeric"`
	// Card CVC number.
	CVC secret.Value `json:"cvc" validate:"required,numeric,min=3,max=4"`
	// Cardholder name.
	Name *string `json:"name,omitempty"`
}

// GooglePayCredentialPayload carries an opaque Google Pay wallet token.
type GooglePayCredentialPayload struct {
	Type  PaymentMethodType `json:"type" validate:"required,eq=google_pay"`
	Token string            `json:"token" validate:"required"`
}

// ApplePayCredentialPayload carries an opaque Apple Pay wallet token.
type ApplePayCredentialPayload struct {
	Type  PaymentMethodType `json:"type" validate:"required,eq=apple_pay"`
	Token string            `json:"token" validate:"required"`
}

// PaymentCredential is the payment_method union.
type PaymentCredential struct {
	union json.RawMessage
}

// Discriminator returns the type field of the union payload.
func (t PaymentCredential) Discriminator() (PaymentMethodType, error) {
	var disc struct {
		Type PaymentMethodType `json:"type"`
	}
	if err := json.Unmarshal(t.union, &disc); err != nil {
		return "", err
	}
	return disc.Type, nil
}

// AsCardCredentialPayload returns the union data as a CardCredentialPayload.
func (t PaymentCredential) AsCardCredentialPayload() (CardCredentialPayload, error) {
	var body CardCredentialPayload
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromCardCredentialPayload overwrites any union data with the provided CardCredentialPayload.
func (t *PaymentCredential) FromCardCredentialPayload(v CardCredentialPayload) error {
	b, err := json.Marshal(struct {
		CardCredentialPayload
		// The PAN and CVC marshal redacted; splice the raw values back
		// in so the wire payload round-trips.
		Number string `json:"number"`
		CVC    string `json:"cvc"`
	}{CardCredentialPayload: v, Number: v.Number.Reveal(), CVC: v.CVC.Reveal()})
	t.union = b
	return err
}

// MergeCardCredentialPayload performs a merge with any union data, using the provided CardCredentialPayload.
func (t *PaymentCredential) MergeCardCredentialPayload(v CardCredentialPayload) error {
	var buf PaymentCredential
	if err := buf.FromCardCredentialPayload(v); err != nil {
		return err
	}
	merged, err := runtime.JSONMerge(t.union, buf.union)
	t.union = merged
	return err
}

// AsGooglePayCredentialPayload returns the union data as a GooglePayCredentialPayload.
func (t PaymentCredential) AsGooglePayCredentialPayload() (GooglePayCredentialPayload, error) {
	var body GooglePayCredentialPayload
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromGooglePayCredentialPayload overwrites any union data with the provided GooglePayCredentialPayload.
func (t *PaymentCredential) FromGooglePayCredentialPayload(v GooglePayCredentialPayload) error {
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// MergeGooglePayCredentialPayload performs a merge with any union data, using the provided GooglePayCredentialPayload.
func (t *PaymentCredential) MergeGooglePayCredentialPayload(v GooglePayCredentialPayload) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// AsApplePayCredentialPayload returns the union data as an ApplePayCredentialPayload.
func (t PaymentCredential) AsApplePayCredentialPayload() (ApplePayCredentialPayload, error) {
	var body ApplePayCredentialPayload
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromApplePayCredentialPayload overwrites any union data with the provided ApplePayCredentialPayload.
func (t *PaymentCredential) FromApplePayCredentialPayload(v ApplePayCredentialPayload) error {
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// MergeApplePayCredentialPayload performs a merge with any union data, using the provided ApplePayCredentialPayload.
func (t *PaymentCredential) MergeApplePayCredentialPayload(v ApplePayCredentialPayload) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// MarshalJSON serializes the underlying union.
func (t PaymentCredential) MarshalJSON() ([]byte, error) {
	return t.union.MarshalJSON()
}

// UnmarshalJSON loads union data.
func (t *PaymentCredential) UnmarshalJSON(b []byte) error {
	return t.union.UnmarshalJSON(b)
}
