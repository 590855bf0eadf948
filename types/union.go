package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Union256 is an opaque 256-bit value. Wallet ids, block hashes, public keys
// and raw private keys all share this representation and its hex codec;
// accounts additionally carry the checksummed base-32 display form.
type Union256 [32]byte

type (
	Account   = Union256
	BlockHash = Union256
	PublicKey = Union256
	WalletID  = Union256
	RawKey    = Union256
)

func (u Union256) IsZero() bool {
	return u == Union256{}
}

func (u Union256) Bytes() []byte {
	b := make([]byte, 32)
	copy(b, u[:])
	return b
}

// String renders the value as 64 lower-case hex characters, the wire form
// used for wallets, hashes and keys.
func (u Union256) String() string {
	return fmt.Sprintf("%064x", u[:])
}

// DecodeHex parses a 64-character hex string. Wrong length or a stray
// character fails decoding.
func (u *Union256) DecodeHex(text string) error {
	if len(text) != 64 {
		return fmt.Errorf("types: hex value must be 64 characters, got %d", len(text))
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return fmt.Errorf("types: invalid hex value: %w", err)
	}
	copy(u[:], raw)
	return nil
}

// UnionFromBytes copies b into a Union256. b must be exactly 32 bytes.
func UnionFromBytes(b []byte) (Union256, error) {
	var u Union256
	if len(b) != 32 {
		return u, fmt.Errorf("types: expected 32 bytes, got %d", len(b))
	}
	copy(u[:], b)
	return u, nil
}

// Compare orders two unions lexicographically by their big-endian bytes.
func (u Union256) Compare(other Union256) int {
	return bytes.Compare(u[:], other[:])
}

// Next returns the value incremented by one, wrapping at 2^256. Used to form
// half-open key ranges when iterating per-account indices.
func (u Union256) Next() Union256 {
	next := u
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}

// Signature is a 64-byte ed25519 signature over a block digest.
type Signature [64]byte

func (s Signature) String() string {
	return fmt.Sprintf("%0128x", s[:])
}

func (s *Signature) DecodeHex(text string) error {
	if len(text) != 128 {
		return fmt.Errorf("types: signature must be 128 characters, got %d", len(text))
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return fmt.Errorf("types: invalid signature hex: %w", err)
	}
	copy(s[:], raw)
	return nil
}
