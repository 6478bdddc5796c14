// Package license implements the token-validated entitlement layer: a signed
// JSON token, a derived state machine with grace handling, and the tier and
// feature checks the admission gate consults on every atom firing.
package license

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Token codec sentinel errors.
var (
	ErrTokenMalformed = errors.New("license token malformed")
	ErrSignature      = errors.New("license signature verification failed")
	ErrVendorKey      = errors.New("vendor public key invalid")
	ErrSigningKey     = errors.New("signing key invalid")
)

// Limits carries the numeric entitlements of a token.
type Limits struct {
	MaxSlots              int `json:"maxSlots"`
	MaxWorkUnitsPerMinute int `json:"maxWorkUnitsPerMinute"`
	MaxNodes              int `json:"maxNodes"`
}

// Token is the license payload covered by the vendor signature.
type Token struct {
	LicenseID string    `json:"licenseId"`
	IssuedTo  string    `json:"issuedTo"`
	IssuedAt  time.Time `json:"issuedAt"`
	Expiry    time.Time `json:"expiry"`
	Tier      Tier      `json:"tier"`
	Features  []string  `json:"features"`
	Limits    Limits    `json:"limits"`
}

// envelope is the wire form: the token payload plus a detached signature
// over its canonical JSON rendering.
type envelope struct {
	Token     json.RawMessage `json:"token"`
	Signature []byte          `json:"signature"`
}

// CanonicalJSON renders v as canonical JSON: object keys sorted, no
// whitespace. Signatures are computed over this form so that formatting
// differences between producers cannot break verification.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	// Round-trip through the generic representation: encoding/json sorts
	// map keys on output at every nesting level.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	return canonical, nil
}

// Sign serializes tok and signs its canonical form with the vendor private
// key, returning the envelope JSON. Intended for test fixtures and the
// license tooling; the runtime only verifies.
func Sign(tok Token, key ed25519.PrivateKey) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrSigningKey
	}

	canonical, err := CanonicalJSON(tok)
	if err != nil {
		return nil, err
	}

	env := envelope{
		Token:     canonical,
		Signature: ed25519.Sign(key, canonical),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode token envelope: %w", err)
	}

	return data, nil
}

// Parse decodes an envelope and verifies its signature against the vendor
// public key. The payload is re-canonicalized before verification, so a
// pretty-printed envelope still verifies.
func Parse(data []byte, vendorKey ed25519.PublicKey) (Token, error) {
	if len(vendorKey) != ed25519.PublicKeySize {
		return Token{}, ErrVendorKey
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	canonical, err := CanonicalJSON(env.Token)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	if !ed25519.Verify(vendorKey, canonical, env.Signature) {
		return Token{}, ErrSignature
	}

	var tok Token
	if err := json.Unmarshal(env.Token, &tok); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	return tok, nil
}

// ParseUnverified decodes the token payload without checking the signature.
// Only the inspection tooling uses this; the manager always verifies.
func ParseUnverified(data []byte) (Token, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	var tok Token
	if err := json.Unmarshal(env.Token, &tok); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	return tok, nil
}

// GenerateKeypair creates a fresh Ed25519 vendor keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}

	return pub, priv, nil
}

// DecodeVendorKey parses a hex-encoded Ed25519 public key.
func DecodeVendorKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVendorKey, err)
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrVendorKey, len(raw), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(raw), nil
}

// EncodeVendorKey renders a public key in the hex form DecodeVendorKey
// accepts.
func EncodeVendorKey(key ed25519.PublicKey) string {
	return hex.EncodeToString(key)
}
