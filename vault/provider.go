package vault

import (
	"context"

	"github.com/openucp/ucp-go/secret"
)

// CardCredential is the raw card material handed to the provider at mint
// time. It exists only for the duration of the tokenize call and is never
// persisted; the PAN and CVC are wrapped so they cannot be logged or
// serialized.
type CardCredential struct {
	Number         secret.Value
	ExpMonth       int
	ExpYear        int
	CVC            secret.Value
	CardholderName string
}

// NetworkTokenData is the processor-usable network token material returned
// at detokenization.
type NetworkTokenData struct {
	Token      string
	Cryptogram string
	ECI        string
}

// PANData is the raw card number material returned at detokenization in
// direct (PAN) tokenization mode.
type PANData struct {
	Number string
}

// Provider is the upstream processor capability. Mint calls exchange raw
// credentials for an opaque provider-side reference; fetch calls exchange
// that reference for processor-usable material. Failures are transient from
// the vault's perspective; retry policy belongs to the provider client
// itself, not to the vault.
type Provider interface {
	// MintCardCredential tokenizes raw card material upstream and returns
	// an opaque reference.
	MintCardCredential(ctx context.Context, card CardCredential) (string, error)

	// MintWalletCredential tokenizes an opaque wallet token upstream and
	// returns a reference. method is google_pay or apple_pay.
	MintWalletCredential(ctx context.Context, method PaymentMethodType, walletToken string) (string, error)

	// FetchNetworkToken resolves a provider reference into network token
	// material.
	FetchNetworkToken(ctx context.Context, providerRef string) (*NetworkTokenData, error)

	// FetchPAN resolves a provider reference into the raw card number.
	// Only ever called in direct (PAN) tokenization mode.
	FetchPAN(ctx context.Context, providerRef string) (*PANData, error)
}
