package vault

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openucp/ucp-go/cardnet"
	"github.com/openucp/ucp-go/secret"
)

// memStore is an in-test Store with injectable failures. The production
// adapters live in the kvstore package; keeping a double here avoids an
// import cycle and lets tests force specific storage behavior.
type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte

	failGet    error
	failSet    error
	failDelete error
	failCAS    error
	forceCASMiss bool
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(value), nil
}

func (s *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	if s.failSet != nil {
		return s.failSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = bytes.Clone(value)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) (bool, error) {
	if s.failDelete != nil {
		return false, s.failDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

func (s *memStore) CompareAndSwap(_ context.Context, key string, expected, replacement []byte) (bool, error) {
	if s.failCAS != nil {
		return false, s.failCAS
	}
	if s.forceCASMiss {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[key]
	if !ok || !bytes.Equal(current, expected) {
		return false, nil
	}
	s.entries[key] = bytes.Clone(replacement)
	return true, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeProvider struct {
	mintCard     func(context.Context, CardCredential) (string, error)
	mintWallet   func(context.Context, PaymentMethodType, string) (string, error)
	fetchNetwork func(context.Context, string) (*NetworkTokenData, error)
	fetchPAN     func(context.Context, string) (*PANData, error)
}

func (p *fakeProvider) MintCardCredential(ctx context.Context, card CardCredential) (string, error) {
	if p.mintCard != nil {
		return p.mintCard(ctx, card)
	}
	return "ref_" + uuid.NewString(), nil
}

func (p *fakeProvider) MintWalletCredential(ctx context.Context, method PaymentMethodType, token string) (string, error) {
	if p.mintWallet != nil {
		return p.mintWallet(ctx, method, token)
	}
	return "ref_" + uuid.NewString(), nil
}

func (p *fakeProvider) FetchNetworkToken(ctx context.Context, ref string) (*NetworkTokenData, error) {
	if p.fetchNetwork != nil {
		return p.fetchNetwork(ctx, ref)
	}
	return &NetworkTokenData{Token: "ntk_4242", Cryptogram: "AgAAAAAA", ECI: "05"}, nil
}

func (p *fakeProvider) FetchPAN(ctx context.Context, ref string) (*PANData, error) {
	if p.fetchPAN != nil {
		return p.fetchPAN(ctx, ref)
	}
	return &PANData{Number: "4111111111111111"}, nil
}

func testConfig() Config {
	return Config{
		Name:                    "acme-payments",
		Version:                 "2026-06-05",
		SpecURL:                 "https://ucp.dev/specs/payment-handler",
		SupportedPaymentMethods: []PaymentMethodType{PaymentMethodCard, PaymentMethodGooglePay, PaymentMethodApplePay},
		SupportedCardNetworks:   []cardnet.Brand{cardnet.BrandVisa, cardnet.BrandMastercard},
		SupportedCurrencies:     []string{"usd", "eur"},
		Mode:                    ModeNetworkToken,
	}
}

func newTestHandler(t *testing.T, cfg Config, store Store, provider Provider, opts ...Option) *Handler {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.DiscardHandler)))
	h, err := New(cfg, store, provider, opts...)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

func visaTokenizeRequest() TokenizeRequest {
	return TokenizeRequest{
		Method: PaymentMethodCard,
		Card: &CardCredential{
			Number:   secret.New("4111111111111111"),
			ExpMonth: 12,
			ExpYear:  2028,
			CVC:      secret.New("123"),
		},
		Binding: Binding{CheckoutID: "checkout_123", BusinessID: "merchant_456"},
	}
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *vault.Error, got %T: %v", err, err)
	}
	return verr.Kind
}
