package vault

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Delegate identifies a party a detokenization is performed on behalf of.
// It is recorded for observability; it does not alter the binding checks.
type Delegate struct {
	Type     string
	Identity string
}

// DetokenizeRequest is the already-validated detokenize input.
type DetokenizeRequest struct {
	Token       string
	Binding     Binding
	DelegatedTo *Delegate
}

// Credential is the processor-usable material returned exactly once per
// token. The populated fields depend on Type.
type Credential struct {
	Type         CredentialType
	NetworkToken string
	Cryptogram   string
	ECI          string
	PAN          string
	ExpMonth     int
	ExpYear      int
}

// DetokenizeResult couples the credential with the invalidation marker.
// Invalidated is always true on success: the token is dead from this point
// regardless of what the caller does with the credential.
type DetokenizeResult struct {
	Credential  Credential
	Invalidated bool
}

// Detokenizer exchanges a stored token for credential material exactly
// once, enforcing binding, expiry, and the atomic consume transition.
type Detokenizer struct {
	cfg      Config
	store    Store
	provider Provider
	logger   *slog.Logger
	clock    func() time.Time
}

// NewDetokenizer builds a Detokenizer from the handler configuration and
// its injected capabilities.
func NewDetokenizer(cfg Config, store Store, provider Provider, logger *slog.Logger) *Detokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detokenizer{
		cfg:      cfg,
		store:    store,
		provider: provider,
		logger:   logger,
		clock:    time.Now,
	}
}

// Detokenize validates the token, atomically marks it consumed, and fetches
// the credential material. Each failure mode is distinct: not_found for an
// unreachable token, gone for a used or expired one, forbidden for a
// binding mismatch, conflict for a lost consume race, and
// consumed_delivery_failed when the provider fails after the token is
// already dead.
func (d *Detokenizer) Detokenize(ctx context.Context, req DetokenizeRequest) (*DetokenizeResult, error) {
	key := tokenKey(req.Token)

	raw, err := d.store.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		d.warn(req, KindNotFound, "token not found")
		return nil, newError(KindNotFound, "token not found")
	}
	if err != nil {
		return nil, newTransientError("token storage unavailable", err)
	}
	var stored StoredToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, newTransientError("decode token record", err)
	}

	// Cheap early exits. The compare-and-swap below is the authoritative
	// single-use guard; these checks just avoid a wasted round trip.
	if stored.Used {
		d.warn(req, KindGone, "token already used")
		return nil, newError(KindGone, "token already used")
	}
	if !d.clock().Before(stored.ExpiresAt) {
		d.warn(req, KindGone, "token expired")
		return nil, newError(KindGone, "token expired")
	}

	// The checkout and business checks are separate so the logged failure
	// names the exact mismatch.
	if req.Binding.CheckoutID != stored.Binding.CheckoutID {
		d.warnBinding(req, "checkout_id", stored.Binding.CheckoutID, req.Binding.CheckoutID)
		return nil, newFieldError(KindForbidden, "binding.checkout_id", "does not match token binding")
	}
	if req.Binding.BusinessID != stored.Binding.BusinessID {
		d.warnBinding(req, "business_id", stored.Binding.BusinessID, req.Binding.BusinessID)
		return nil, newFieldError(KindForbidden, "binding.business_id", "does not match token binding")
	}

	if req.DelegatedTo != nil {
		d.logger.Info("detokenize delegated",
			"token", req.Token,
			"checkout_id", req.Binding.CheckoutID,
			"delegate_type", req.DelegatedTo.Type,
			"delegate_identity", req.DelegatedTo.Identity,
		)
	}

	consumed := stored
	consumed.Used = true
	replacement, err := json.Marshal(consumed)
	if err != nil {
		return nil, newTransientError("encode token record", err)
	}
	swapped, err := d.store.CompareAndSwap(ctx, key, raw, replacement)
	if err != nil {
		return nil, newTransientError("token storage unavailable", err)
	}
	if !swapped {
		// Another call flipped the token between our read and the swap.
		d.warn(req, KindConflict, "token no longer available")
		return nil, newError(KindConflict, "token no longer available")
	}

	credential, err := d.fetchCredential(ctx, stored)
	if err != nil {
		// The token is already dead; the caller never got the material
		// and must not blindly retry. Surface this as its own class.
		d.logger.Error("credential delivery failed after consume",
			"token", req.Token,
			"checkout_id", req.Binding.CheckoutID,
			"error", err,
		)
		return nil, &Error{
			Kind:    KindConsumedDeliveryFailed,
			Message: "token consumed but credential delivery failed",
			cause:   err,
		}
	}

	return &DetokenizeResult{Credential: *credential, Invalidated: true}, nil
}

func (d *Detokenizer) fetchCredential(ctx context.Context, stored StoredToken) (*Credential, error) {
	switch stored.CredentialType {
	case CredentialNetworkToken:
		data, err := d.provider.FetchNetworkToken(ctx, stored.ProviderRef)
		if err != nil {
			return nil, err
		}
		return &Credential{
			Type:         CredentialNetworkToken,
			NetworkToken: data.Token,
			Cryptogram:   data.Cryptogram,
			ECI:          data.ECI,
			ExpMonth:     stored.Instrument.ExpMonth,
			ExpYear:      stored.Instrument.ExpYear,
		}, nil
	case CredentialPAN:
		if d.cfg.Mode != ModePAN {
			return nil, errors.New("vault: pan retrieval requires direct tokenization mode")
		}
		data, err := d.provider.FetchPAN(ctx, stored.ProviderRef)
		if err != nil {
			return nil, err
		}
		return &Credential{
			Type:     CredentialPAN,
			PAN:      data.Number,
			ExpMonth: stored.Instrument.ExpMonth,
			ExpYear:  stored.Instrument.ExpYear,
		}, nil
	default:
		return nil, errors.New("vault: unknown credential type " + string(stored.CredentialType))
	}
}

func (d *Detokenizer) warn(req DetokenizeRequest, kind Kind, message string) {
	d.logger.Warn("detokenize rejected",
		"kind", string(kind),
		"message", message,
		"token", req.Token,
		"checkout_id", req.Binding.CheckoutID,
	)
}

func (d *Detokenizer) warnBinding(req DetokenizeRequest, field, expected, received string) {
	d.logger.Warn("detokenize binding mismatch",
		"field", field,
		"expected", expected,
		"received", received,
		"token", req.Token,
	)
}
