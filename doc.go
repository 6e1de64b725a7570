// Package ucp exposes a merchant's payment tokenization capability over the
// Universal Commerce Protocol (UCP). It translates the protocol's payment
// token contract onto the vault core: opaque, checkout-bound, single-use
// payment tokens minted from card or wallet credentials.
//
// # Payment tokens
//
// Use [NewPaymentTokenHandler] with a [PaymentTokenProvider] implementation
// to expose the tokenize, detokenize, and invalidate operations over
// `net/http`. [NewVaultProvider] adapts a vault.Handler — the reference
// tokenization core in this module — into that interface.
//
// Handler options such as [WithSignatureVerifier] and
// [WithRequireSignedRequests] enforce canonical JSON signatures and
// timestamp skew. [WithAuthenticator] validates API keys, [WithRateLimit]
// bounds the request rate, and [WithDelegationCodec] requires
// checkout-scoped delegation grants on delegated detokenize calls.
//
// ## How it works
//
//   - A platform submits payment credentials bound to a checkout session and
//     a business identity; the vault mints an upstream provider credential
//     and returns an opaque single-use token plus display metadata.
//   - The token is later exchanged exactly once for processor-usable
//     material (a network token with cryptogram, or the PAN in direct mode).
//   - A second exchange, a binding mismatch, or an expired token is rejected
//     with a typed error; raw card material never appears in responses,
//     logs, or storage.
package ucp

// APIVersion is the UCP revision this module implements. It is echoed on
// every response.
const APIVersion = "2026-06-05"
