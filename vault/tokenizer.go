package vault

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/openucp/ucp-go/cardnet"
)

// TokenizeRequest is the already-validated tokenize input. Exactly one of
// Card or WalletToken is populated, discriminated by Method.
type TokenizeRequest struct {
	Method      PaymentMethodType
	Card        *CardCredential
	WalletToken string
	Binding     Binding
	Metadata    map[string]string
}

// TokenizeResult carries the opaque token and the non-sensitive instrument
// metadata. Raw credential material never appears here.
type TokenizeResult struct {
	Token      string
	ExpiresAt  time.Time
	Instrument Instrument
}

// Tokenizer validates inbound credentials, mints the underlying provider
// credential, and persists a checkout-bound [StoredToken].
type Tokenizer struct {
	cfg      Config
	store    Store
	provider Provider
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string
}

// NewTokenizer builds a Tokenizer from the handler configuration and its
// injected capabilities.
func NewTokenizer(cfg Config, store Store, provider Provider, logger *slog.Logger) *Tokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tokenizer{
		cfg:      cfg,
		store:    store,
		provider: provider,
		logger:   logger,
		clock:    time.Now,
		newID:    newTokenID,
	}
}

// Tokenize runs the fail-fast validation sequence, mints the provider
// credential, and persists the token with TTL. The store write happens only
// after a successful mint, so an upstream failure never leaves a stored
// token with a dangling provider reference.
func (t *Tokenizer) Tokenize(ctx context.Context, req TokenizeRequest) (*TokenizeResult, error) {
	if err := t.validate(req); err != nil {
		t.logger.Warn("tokenize rejected",
			"kind", string(err.Kind),
			"field", err.Field,
			"checkout_id", req.Binding.CheckoutID,
			"business_id", req.Binding.BusinessID,
		)
		return nil, err
	}

	instrument := deriveInstrument(req)

	providerRef, err := t.mint(ctx, req)
	if err != nil {
		t.logger.Warn("tokenize provider mint failed",
			"checkout_id", req.Binding.CheckoutID,
			"error", err,
		)
		return nil, newTransientError("payment provider unavailable", err)
	}

	now := t.clock().UTC()
	token := StoredToken{
		ID:             t.newID(),
		ProviderRef:    providerRef,
		Binding:        req.Binding,
		Instrument:     instrument,
		CredentialType: t.cfg.credentialType(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(t.cfg.TokenTTL),
	}
	value, err := json.Marshal(token)
	if err != nil {
		return nil, newTransientError("encode token record", err)
	}
	if err := t.store.SetWithTTL(ctx, tokenKey(token.ID), value, t.cfg.TokenTTL); err != nil {
		t.logger.Warn("tokenize store write failed",
			"checkout_id", req.Binding.CheckoutID,
			"error", err,
		)
		return nil, newTransientError("token storage unavailable", err)
	}

	return &TokenizeResult{
		Token:      token.ID,
		ExpiresAt:  token.ExpiresAt,
		Instrument: token.Instrument,
	}, nil
}

// validate applies the fail-fast sequence: method allow-list, required
// fields, then the card network allow-list. The first violation wins.
func (t *Tokenizer) validate(req TokenizeRequest) *Error {
	if !slices.Contains(t.cfg.SupportedPaymentMethods, req.Method) {
		return newError(KindUnsupportedPaymentMethod, "payment method "+string(req.Method)+" is not enabled")
	}
	if req.Binding.CheckoutID == "" {
		return newFieldError(KindMissingField, "binding.checkout_id", "is required")
	}
	if req.Binding.BusinessID == "" {
		return newFieldError(KindMissingField, "binding.business_id", "is required")
	}

	switch req.Method {
	case PaymentMethodCard:
		return t.validateCard(req.Card)
	case PaymentMethodGooglePay, PaymentMethodApplePay:
		if req.WalletToken == "" {
			return newFieldError(KindMissingField, "payment_method.token", "is required")
		}
		return nil
	default:
		return newError(KindUnsupportedPaymentMethod, "payment method "+string(req.Method)+" is not enabled")
	}
}

func (t *Tokenizer) validateCard(card *CardCredential) *Error {
	if card == nil {
		return newFieldError(KindMissingField, "payment_method", "card credential is required")
	}
	if card.Number.IsZero() {
		return newFieldError(KindMissingField, "payment_method.number", "is required")
	}
	if card.CVC.IsZero() {
		return newFieldError(KindMissingField, "payment_method.cvc", "is required")
	}
	if card.ExpMonth == 0 {
		return newFieldError(KindMissingField, "payment_method.exp_month", "is required")
	}
	if card.ExpYear == 0 {
		return newFieldError(KindMissingField, "payment_method.exp_year", "is required")
	}
	if card.ExpMonth < 1 || card.ExpMonth > 12 {
		return newFieldError(KindInvalidCredentials, "payment_method.exp_month", "must be between 1 and 12")
	}

	brand := cardnet.Detect(card.Number.Reveal())
	if brand == cardnet.BrandUnknown {
		// An undetectable brand is only a policy failure when the
		// configuration says so; the allow-list covers known brands.
		if t.cfg.RejectUnknownCardNetworks {
			return newFieldError(KindUnsupportedCardNetwork, "payment_method.number", "card network could not be determined")
		}
		return nil
	}
	if !slices.Contains(t.cfg.SupportedCardNetworks, brand) {
		return newFieldError(KindUnsupportedCardNetwork, "payment_method.number", "card network "+string(brand)+" is not enabled")
	}
	return nil
}

func (t *Tokenizer) mint(ctx context.Context, req TokenizeRequest) (string, error) {
	if req.Method == PaymentMethodCard {
		return t.provider.MintCardCredential(ctx, *req.Card)
	}
	return t.provider.MintWalletCredential(ctx, req.Method, req.WalletToken)
}

// deriveInstrument extracts display metadata only. The PAN contributes its
// brand and last four digits, nothing more.
func deriveInstrument(req TokenizeRequest) Instrument {
	if req.Method != PaymentMethodCard {
		return Instrument{Type: req.Method}
	}
	pan := req.Card.Number.Reveal()
	last := pan
	if len(pan) > 4 {
		last = pan[len(pan)-4:]
	}
	return Instrument{
		Type:       PaymentMethodCard,
		Brand:      cardnet.Detect(pan),
		LastDigits: last,
		ExpMonth:   req.Card.ExpMonth,
		ExpYear:    req.Card.ExpYear,
	}
}
