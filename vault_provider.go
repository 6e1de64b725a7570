package ucp

import (
	"context"
	"strconv"

	"github.com/openucp/ucp-go/vault"
)

// VaultService adapts a [vault.Handler] to the [PaymentTokenProvider]
// interface: wire payloads in, wire payloads out, typed vault errors
// translated into UCP error envelopes by the transport layer.
type VaultService struct {
	handler *vault.Handler
}

var _ PaymentTokenProvider = (*VaultService)(nil)

// NewVaultProvider wraps a vault handler for use with
// [NewPaymentTokenHandler].
func NewVaultProvider(handler *vault.Handler) *VaultService {
	if handler == nil {
		panic("ucp: vault handler is required")
	}
	return &VaultService{handler: handler}
}

// Tokenize translates the wire payload into a vault request and maps the
// result back. The credential union is resolved here; anything with an
// unrecognized discriminator still reaches the vault so the allow-list
// answers with unsupported_payment_method.
func (s *VaultService) Tokenize(ctx context.Context, req TokenizeRequestPayload) (*TokenizeResponsePayload, error) {
	vreq, err := tokenizeRequestFromPayload(req)
	if err != nil {
		return nil, err
	}
	res, err := s.handler.Tokenize(ctx, vreq)
	if err != nil {
		return nil, err
	}
	return &TokenizeResponsePayload{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Instrument: InstrumentPayload{
			Type:       PaymentMethodType(res.Instrument.Type),
			Brand:      string(res.Instrument.Brand),
			LastDigits: res.Instrument.LastDigits,
			ExpMonth:   res.Instrument.ExpMonth,
			ExpYear:    res.Instrument.ExpYear,
		},
	}, nil
}

// Detokenize exchanges the token for credential material exactly once.
func (s *VaultService) Detokenize(ctx context.Context, token string, req DetokenizeRequestPayload) (*DetokenizeResponsePayload, error) {
	vreq := vault.DetokenizeRequest{
		Token:   token,
		Binding: bindingFromPayload(req.Binding),
	}
	if req.DelegatedTo != nil {
		vreq.DelegatedTo = &vault.Delegate{
			Type:     string(req.DelegatedTo.Type),
			Identity: req.DelegatedTo.Identity,
		}
	}
	res, err := s.handler.Detokenize(ctx, vreq)
	if err != nil {
		return nil, err
	}
	return &DetokenizeResponsePayload{
		Credential: CredentialPayload{
			Type:         CredentialResponseType(res.Credential.Type),
			NetworkToken: res.Credential.NetworkToken,
			Cryptogram:   res.Credential.Cryptogram,
			ECI:          res.Credential.ECI,
			PAN:          res.Credential.PAN,
			ExpMonth:     res.Credential.ExpMonth,
			ExpYear:      res.Credential.ExpYear,
		},
		Invalidated: res.Invalidated,
	}, nil
}

// InvalidateToken removes a token ahead of its natural expiry.
func (s *VaultService) InvalidateToken(ctx context.Context, checkoutSessionID, token string) (bool, error) {
	return s.handler.InvalidateToken(ctx, checkoutSessionID, token)
}

// HandlerDeclaration reports the vault's static capability descriptor.
func (s *VaultService) HandlerDeclaration(ctx context.Context) (*vault.Declaration, error) {
	decl := s.handler.Declaration()
	return &decl, nil
}

func tokenizeRequestFromPayload(req TokenizeRequestPayload) (vault.TokenizeRequest, error) {
	vreq := vault.TokenizeRequest{
		Binding:  bindingFromPayload(req.Binding),
		Metadata: req.Metadata,
	}

	disc, err := req.PaymentMethod.Discriminator()
	if err != nil {
		return vreq, NewInvalidRequestError("payment_method.type is required")
	}
	vreq.Method = vault.PaymentMethodType(disc)

	switch disc {
	case PaymentMethodTypeCard:
		card, err := req.PaymentMethod.AsCardCredentialPayload()
		if err != nil {
			return vreq, NewInvalidRequestError("payment_method is not a valid card credential")
		}
		expMonth, err := strconv.Atoi(card.ExpMonth)
		if err != nil {
			return vreq, NewInvalidRequestError("payment_method.exp_month must contain digits only")
		}
		expYear, err := strconv.Atoi(card.ExpYear)
		if err != nil {
			return vreq, NewInvalidRequestError("payment_method.exp_year must contain digits only")
		}
		vcard := &vault.CardCredential{
			Number:   card.Number,
			ExpMonth: expMonth,
			ExpYear:  expYear,
			CVC:      card.CVC,
		}
		if card.Name != nil {
			vcard.CardholderName = *card.Name
		}
		vreq.Card = vcard
	case PaymentMethodTypeGooglePay:
		wallet, err := req.PaymentMethod.AsGooglePayCredentialPayload()
		if err != nil {
			return vreq, NewInvalidRequestError("payment_method is not a valid google_pay credential")
		}
		vreq.WalletToken = wallet.Token
	case PaymentMethodTypeApplePay:
		wallet, err := req.PaymentMethod.AsApplePayCredentialPayload()
		if err != nil {
			return vreq, NewInvalidRequestError("payment_method is not a valid apple_pay credential")
		}
		vreq.WalletToken = wallet.Token
	}
	return vreq, nil
}

func bindingFromPayload(binding TokenBinding) vault.Binding {
	return vault.Binding{
		CheckoutID: binding.CheckoutSessionID,
		BusinessID: binding.BusinessIdentity.Value,
	}
}
