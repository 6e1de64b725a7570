// Package vault implements the payment tokenization core: converting raw or
// wallet payment credentials into opaque checkout-bound tokens, and later
// exchanging each token exactly once for processor-usable material. All
// persistence goes through the narrow [Store] capability; all upstream
// credential operations go through [Provider].
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/openucp/ucp-go/cardnet"
)

// Mode selects what detokenization yields: network token material or the
// raw PAN.
type Mode string

// Defines values for Mode.
const (
	ModeNetworkToken Mode = "network_token"
	ModePAN          Mode = "pan"
)

// DefaultTokenTTL bounds the exposure window of a stored token.
const DefaultTokenTTL = 15 * time.Minute

// Config is the immutable handler configuration. It doubles as the
// capability declaration echoed to callers.
type Config struct {
	Name    string
	Version string
	SpecURL string

	SupportedPaymentMethods []PaymentMethodType
	SupportedCardNetworks   []cardnet.Brand
	SupportedCurrencies     []string

	ThreeDSSupported   bool
	RecurringSupported bool

	// Mode fixes the credential type minted into every token.
	Mode Mode

	// TokenTTL defaults to [DefaultTokenTTL] when zero.
	TokenTTL time.Duration

	// RejectUnknownCardNetworks turns an undetectable card brand into an
	// unsupported_card_network rejection. When false, unknown brands pass
	// the network allow-list and the provider decides.
	RejectUnknownCardNetworks bool
}

func (c Config) credentialType() CredentialType {
	if c.Mode == ModePAN {
		return CredentialPAN
	}
	return CredentialNetworkToken
}

// Declaration is the static capability descriptor returned by
// [Handler.Declaration].
type Declaration struct {
	Name                    string              `json:"name"`
	Version                 string              `json:"version"`
	SpecURL                 string              `json:"spec_url"`
	SupportedPaymentMethods []PaymentMethodType `json:"supported_payment_methods"`
	SupportedCardNetworks   []cardnet.Brand     `json:"supported_card_networks"`
	SupportedCurrencies     []string            `json:"supported_currencies"`
	ThreeDSSupported        bool                `json:"three_ds_supported"`
	RecurringSupported      bool                `json:"recurring_supported"`
	TokenizationMode        Mode                `json:"tokenization_mode"`
}

// Option customizes handler construction.
type Option func(*Handler)

// WithLogger routes vault logs through the supplied logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// withClock provides deterministic time in tests.
func withClock(fn func() time.Time) Option {
	return func(h *Handler) {
		h.clock = fn
	}
}

// Handler composes the tokenizer and detokenizer behind a stable boundary.
// It holds no mutable state beyond its immutable configuration: typed vault
// errors pass through unchanged, anything else is normalized into a
// retryable processor-communication failure.
type Handler struct {
	cfg         Config
	store       Store
	tokenizer   *Tokenizer
	detokenizer *Detokenizer
	logger      *slog.Logger
	clock       func() time.Time
}

// New validates the configuration and wires the tokenize/detokenize
// components to the injected store and provider capabilities.
func New(cfg Config, store Store, provider Provider, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, errors.New("vault: store is required")
	}
	if provider == nil {
		return nil, errors.New("vault: provider is required")
	}
	if len(cfg.SupportedPaymentMethods) == 0 {
		return nil, errors.New("vault: at least one supported payment method is required")
	}
	switch cfg.Mode {
	case ModeNetworkToken, ModePAN:
	case "":
		cfg.Mode = ModeNetworkToken
	default:
		return nil, errors.New("vault: unknown tokenization mode " + string(cfg.Mode))
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	h := &Handler{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	h.tokenizer = NewTokenizer(cfg, store, provider, h.logger)
	h.tokenizer.clock = h.clock
	h.detokenizer = NewDetokenizer(cfg, store, provider, h.logger)
	h.detokenizer.clock = h.clock
	return h, nil
}

// Tokenize converts a payment credential into an opaque checkout-bound
// token. See [Tokenizer.Tokenize].
func (h *Handler) Tokenize(ctx context.Context, req TokenizeRequest) (*TokenizeResult, error) {
	res, err := h.tokenizer.Tokenize(ctx, req)
	if err != nil {
		return nil, h.normalize(err)
	}
	return res, nil
}

// Detokenize exchanges a token for credential material exactly once. See
// [Detokenizer.Detokenize].
func (h *Handler) Detokenize(ctx context.Context, req DetokenizeRequest) (*DetokenizeResult, error) {
	res, err := h.detokenizer.Detokenize(ctx, req)
	if err != nil {
		return nil, h.normalize(err)
	}
	return res, nil
}

// InvalidateToken deletes a token outright, independent of its used or
// expiry state, e.g. when a checkout session is cancelled. It reports
// whether a token was actually removed. The checkout scope is still
// enforced: a caller cannot invalidate a token bound to another checkout.
func (h *Handler) InvalidateToken(ctx context.Context, checkoutID, token string) (bool, error) {
	key := tokenKey(token)
	raw, err := h.store.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, h.normalize(newTransientError("token storage unavailable", err))
	}
	var stored StoredToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		return false, h.normalize(newTransientError("decode token record", err))
	}
	if stored.Binding.CheckoutID != checkoutID {
		h.logger.Warn("invalidate binding mismatch",
			"token", token,
			"expected", stored.Binding.CheckoutID,
			"received", checkoutID,
		)
		return false, newFieldError(KindForbidden, "binding.checkout_id", "does not match token binding")
	}
	deleted, err := h.store.Delete(ctx, key)
	if err != nil {
		return false, h.normalize(newTransientError("token storage unavailable", err))
	}
	if deleted {
		h.logger.Info("token invalidated", "token", token, "checkout_id", checkoutID)
	}
	return deleted, nil
}

// Declaration returns the static capability descriptor. No I/O.
func (h *Handler) Declaration() Declaration {
	return Declaration{
		Name:                    h.cfg.Name,
		Version:                 h.cfg.Version,
		SpecURL:                 h.cfg.SpecURL,
		SupportedPaymentMethods: slices.Clone(h.cfg.SupportedPaymentMethods),
		SupportedCardNetworks:   slices.Clone(h.cfg.SupportedCardNetworks),
		SupportedCurrencies:     slices.Clone(h.cfg.SupportedCurrencies),
		ThreeDSSupported:        h.cfg.ThreeDSSupported,
		RecurringSupported:      h.cfg.RecurringSupported,
		TokenizationMode:        h.cfg.Mode,
	}
}

// normalize keeps typed vault errors intact and wraps anything unexpected
// into a retryable processor-communication failure so internal shapes never
// leak to callers.
func (h *Handler) normalize(err error) error {
	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}
	h.logger.Error("unexpected vault failure", "error", err)
	return newTransientError("processor communication failure", err)
}
