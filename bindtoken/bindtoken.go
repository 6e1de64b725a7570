// Package bindtoken issues and verifies self-contained, tamper-evident
// tokens bound to a {scope, subject} pair. The token carries its own binding
// and expiry, signed with HMAC-SHA256 over the base64url-encoded payload, so
// verification needs no store round trip. It is used for checkout-scoped
// artifacts such as delegation grants.
package bindtoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Binding is the payload embedded in every issued token.
type Binding struct {
	// ScopeID restricts where the artifact may be redeemed, e.g. a
	// checkout session ID.
	ScopeID string `json:"scope_id"`
	// SubjectID names who the artifact was issued to.
	SubjectID string `json:"subject_id"`
	// ArtifactID is a fresh random identifier for the artifact itself.
	ArtifactID string `json:"artifact_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Codec issues and verifies bound tokens with a process-wide secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// New builds a [Codec]. An empty secret is a configuration fault and is
// rejected at construction, never per request.
func New(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("bindtoken: signing secret is required")
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

// Issue creates a token bound to {scopeID, subjectID} that expires after ttl.
func (c *Codec) Issue(scopeID, subjectID string, ttl time.Duration) (string, *Binding, error) {
	if scopeID == "" || subjectID == "" {
		return "", nil, errors.New("bindtoken: scope and subject are required")
	}
	if ttl <= 0 {
		return "", nil, errors.New("bindtoken: ttl must be positive")
	}
	now := c.now().UTC().Truncate(time.Second)
	binding := Binding{
		ScopeID:    scopeID,
		SubjectID:  subjectID,
		ArtifactID: newArtifactID(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	payload, err := json.Marshal(binding)
	if err != nil {
		return "", nil, err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded), &binding, nil
}

// Verify checks the token signature, binding, and expiry. It returns the
// embedded binding and true only when all checks pass; malformed input of
// any shape yields (nil, false), never a panic.
func (c *Codec) Verify(token, scopeID, subjectID string) (*Binding, bool) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sig == "" {
		return nil, false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, false
	}
	want, err := base64.RawURLEncoding.DecodeString(c.sign(encoded))
	if err != nil {
		return nil, false
	}
	if !hmac.Equal(got, want) {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	var binding Binding
	if err := json.Unmarshal(payload, &binding); err != nil {
		return nil, false
	}
	if binding.ScopeID != scopeID || binding.SubjectID != subjectID {
		return nil, false
	}
	if !c.now().Before(binding.ExpiresAt) {
		return nil, false
	}
	return &binding, true
}

func (c *Codec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newArtifactID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "bnd_" + base64.RawURLEncoding.EncodeToString(buf)
}
