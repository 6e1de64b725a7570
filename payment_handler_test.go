package ucp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openucp/ucp-go/bindtoken"
	"github.com/openucp/ucp-go/secret"
	"github.com/openucp/ucp-go/vault"
)

func TestPaymentTokenHandlerTokenize(t *testing.T) {
	t.Parallel()

	expiresAt := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	service := &stubTokenService{
		tokenize: func(ctx context.Context, req TokenizeRequestPayload) (*TokenizeResponsePayload, error) {
			if req.Binding.CheckoutSessionID != "csn_123" {
				t.Fatalf("unexpected checkout session %s", req.Binding.CheckoutSessionID)
			}
			return &TokenizeResponsePayload{
				Token:     "pt_stub",
				ExpiresAt: expiresAt,
				Instrument: InstrumentPayload{
					Type:       PaymentMethodTypeCard,
					Brand:      "VISA",
					LastDigits: "1111",
					ExpMonth:   12,
					ExpYear:    2028,
				},
			}, nil
		},
	}
	handler := NewPaymentTokenHandler(service)

	body, err := json.Marshal(sampleTokenizeRequest())
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("API-Version"); got != APIVersion {
		t.Fatalf("expected API-Version header %s got %s", APIVersion, got)
	}
	var resp TokenizeResponsePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "pt_stub" {
		t.Fatalf("unexpected token %s", resp.Token)
	}
	if resp.Instrument.LastDigits != "1111" {
		t.Fatalf("unexpected instrument %+v", resp.Instrument)
	}
}

func TestPaymentTokenHandlerErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{})
		req := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()

		payload := sampleTokenizeRequest()
		payload.Binding.CheckoutSessionID = ""
		body, _ := json.Marshal(payload)
		handler := NewPaymentTokenHandler(&stubTokenService{})
		req := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d body=%s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "binding.checkout_session_id") {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("service error surfaces", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{
			tokenize: func(ctx context.Context, req TokenizeRequestPayload) (*TokenizeResponsePayload, error) {
				return nil, NewHTTPError(http.StatusConflict, InvalidRequest, TokenConflict, "token no longer available")
			},
		})
		body, _ := json.Marshal(sampleTokenizeRequest())
		req := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "token no longer available") {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("vault error maps onto the wire envelope", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{
			detokenize: func(ctx context.Context, token string, req DetokenizeRequestPayload) (*DetokenizeResponsePayload, error) {
				return nil, &vault.Error{Kind: vault.KindGone, Message: "token already used"}
			},
		})
		body, _ := json.Marshal(sampleDetokenizeRequest())
		req := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens/pt_used/retrieve", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusGone {
			t.Fatalf("expected 410 got %d body=%s", rec.Code, rec.Body.String())
		}
		var payload Error
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error payload: %v", err)
		}
		if payload.Code != TokenGone {
			t.Fatalf("unexpected error code %s", payload.Code)
		}
	})

	t.Run("rate limited requests set retry-after header", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{}, WithRateLimit(1, 1))
		body, _ := json.Marshal(sampleTokenizeRequest())

		first := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, first)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("first request should pass the limiter, got %d", rec.Code)
		}

		second := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens", bytes.NewReader(body))
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, second)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "1" {
			t.Fatalf("expected Retry-After header 1 got %s", got)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{})
		req := httptest.NewRequest(http.MethodGet, "/agentic_commerce/payment_tokens", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405 got %d", rec.Code)
		}
	})
}

func TestPaymentTokenHandlerInvalidate(t *testing.T) {
	t.Parallel()

	t.Run("requires checkout_session_id", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{})
		req := httptest.NewRequest(http.MethodDelete, "/agentic_commerce/payment_tokens/pt_abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("reports invalidation result", func(t *testing.T) {
		t.Parallel()

		handler := NewPaymentTokenHandler(&stubTokenService{
			invalidate: func(ctx context.Context, checkoutSessionID, token string) (bool, error) {
				if checkoutSessionID != "csn_123" || token != "pt_abc" {
					t.Fatalf("unexpected invalidate args %s %s", checkoutSessionID, token)
				}
				return true, nil
			},
		})
		req := httptest.NewRequest(http.MethodDelete, "/agentic_commerce/payment_tokens/pt_abc?checkout_session_id=csn_123", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
		}
		var resp InvalidateResponsePayload
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !resp.Invalidated {
			t.Fatal("expected invalidated true")
		}
	})
}

func TestPaymentTokenHandlerDeclaration(t *testing.T) {
	t.Parallel()

	handler := NewPaymentTokenHandler(&stubTokenService{
		declaration: func(ctx context.Context) (*vault.Declaration, error) {
			return &vault.Declaration{Name: "acme-payments", Version: "1.4.0"}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/agentic_commerce/payment_handler", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "acme-payments") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestPaymentTokenHandlerAuthentication(t *testing.T) {
	t.Parallel()

	newHandler := func() *PaymentTokenHandler {
		return NewPaymentTokenHandler(&stubTokenService{
			declaration: func(ctx context.Context) (*vault.Declaration, error) {
				return &vault.Declaration{Name: "acme-payments"}, nil
			},
		}, WithAuthenticator(AuthenticatorFunc(func(ctx context.Context, apiKey string) error {
			if apiKey != "sk_live_123" {
				return NewHTTPError(http.StatusUnauthorized, InvalidRequest, InvalidAuthorization, "unknown API key")
			}
			return nil
		})))
	}

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/agentic_commerce/payment_handler", nil)
		rec := httptest.NewRecorder()
		newHandler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rec.Code)
		}
	})

	t.Run("wrong scheme", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/agentic_commerce/payment_handler", nil)
		req.Header.Set("Authorization", "Basic sk_live_123")
		rec := httptest.NewRecorder()
		newHandler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rec.Code)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/agentic_commerce/payment_handler", nil)
		req.Header.Set("Authorization", "Bearer sk_live_999")
		rec := httptest.NewRecorder()
		newHandler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rec.Code)
		}
	})

	t.Run("valid key", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/agentic_commerce/payment_handler", nil)
		req.Header.Set("Authorization", "Bearer sk_live_123")
		rec := httptest.NewRecorder()
		newHandler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
		}
	})
}

func TestPaymentTokenHandlerDelegationGrant(t *testing.T) {
	t.Parallel()

	codec, err := bindtoken.New([]byte("delegation-secret"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	service := &stubTokenService{
		detokenize: func(ctx context.Context, token string, req DetokenizeRequestPayload) (*DetokenizeResponsePayload, error) {
			return &DetokenizeResponsePayload{
				Credential:  CredentialPayload{Type: CredentialResponseTypeNetworkToken, NetworkToken: "ntk_1"},
				Invalidated: true,
			}, nil
		},
	}
	handler := NewPaymentTokenHandler(service, WithDelegationCodec(codec))

	post := func(t *testing.T, payload DetokenizeRequestPayload) *httptest.ResponseRecorder {
		t.Helper()
		body, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/agentic_commerce/payment_tokens/pt_abc/retrieve", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing grant is rejected", func(t *testing.T) {
		t.Parallel()

		payload := sampleDetokenizeRequest()
		payload.DelegatedTo = &DelegatedTo{Type: DelegateTypePSP, Identity: "psp_acquirer"}
		rec := post(t, payload)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 got %d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("grant for another checkout is rejected", func(t *testing.T) {
		t.Parallel()

		grant, _, err := codec.Issue("csn_other", "psp_acquirer", time.Hour)
		if err != nil {
			t.Fatalf("issue grant: %v", err)
		}
		payload := sampleDetokenizeRequest()
		payload.DelegatedTo = &DelegatedTo{Type: DelegateTypePSP, Identity: "psp_acquirer", Grant: grant}
		rec := post(t, payload)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 got %d", rec.Code)
		}
	})

	t.Run("valid grant passes through", func(t *testing.T) {
		t.Parallel()

		grant, _, err := codec.Issue("csn_123", "psp_acquirer", time.Hour)
		if err != nil {
			t.Fatalf("issue grant: %v", err)
		}
		payload := sampleDetokenizeRequest()
		payload.DelegatedTo = &DelegatedTo{Type: DelegateTypePSP, Identity: "psp_acquirer", Grant: grant}
		rec := post(t, payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("non-delegated requests are unaffected", func(t *testing.T) {
		t.Parallel()

		rec := post(t, sampleDetokenizeRequest())
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
		}
	})
}

type stubTokenService struct {
	tokenize    func(context.Context, TokenizeRequestPayload) (*TokenizeResponsePayload, error)
	detokenize  func(context.Context, string, DetokenizeRequestPayload) (*DetokenizeResponsePayload, error)
	invalidate  func(context.Context, string, string) (bool, error)
	declaration func(context.Context) (*vault.Declaration, error)
}

func (s *stubTokenService) Tokenize(ctx context.Context, req TokenizeRequestPayload) (*TokenizeResponsePayload, error) {
	if s.tokenize != nil {
		return s.tokenize(ctx, req)
	}
	return nil, NewHTTPError(http.StatusNotImplemented, InvalidRequest, ErrorCode("not_implemented"), "tokenize not implemented")
}

func (s *stubTokenService) Detokenize(ctx context.Context, token string, req DetokenizeRequestPayload) (*DetokenizeResponsePayload, error) {
	if s.detokenize != nil {
		return s.detokenize(ctx, token, req)
	}
	return nil, NewHTTPError(http.StatusNotImplemented, InvalidRequest, ErrorCode("not_implemented"), "detokenize not implemented")
}

func (s *stubTokenService) InvalidateToken(ctx context.Context, checkoutSessionID, token string) (bool, error) {
	if s.invalidate != nil {
		return s.invalidate(ctx, checkoutSessionID, token)
	}
	return false, NewHTTPError(http.StatusNotImplemented, InvalidRequest, ErrorCode("not_implemented"), "invalidate not implemented")
}

func (s *stubTokenService) HandlerDeclaration(ctx context.Context) (*vault.Declaration, error) {
	if s.declaration != nil {
		return s.declaration(ctx)
	}
	return nil, NewHTTPError(http.StatusNotImplemented, InvalidRequest, ErrorCode("not_implemented"), "declaration not implemented")
}

func sampleTokenizeRequest() TokenizeRequestPayload {
	name := "Jane Diaz"
	var method PaymentCredential
	if err := method.FromCardCredentialPayload(CardCredentialPayload{
		Type:     PaymentMethodTypeCard,
		Number:   secret.New("4111111111111111"),
		ExpMonth: "12",
		ExpYear:  "2028",
		CVC:      secret.New("123"),
		Name:     &name,
	}); err != nil {
		panic(err)
	}
	return TokenizeRequestPayload{
		PaymentMethod: method,
		Binding: TokenBinding{
			CheckoutSessionID: "csn_123",
			BusinessIdentity: BusinessIdentity{
				Type:  BusinessIdentityTypeMerchant,
				Value: "merchant_456",
			},
		},
		Metadata: map[string]string{"campaign": "q4"},
	}
}

func sampleDetokenizeRequest() DetokenizeRequestPayload {
	return DetokenizeRequestPayload{
		Binding: TokenBinding{
			CheckoutSessionID: "csn_123",
			BusinessIdentity: BusinessIdentity{
				Type:  BusinessIdentityTypeMerchant,
				Value: "merchant_456",
			},
		},
	}
}
