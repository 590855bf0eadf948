package types

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/blake2b"
)

// KeyPair is an ed25519 key pair. The private half is the 32-byte seed; the
// public half doubles as an account id.
type KeyPair struct {
	Private RawKey
	Public  PublicKey
}

// NewKeyPair generates a random key pair.
func NewKeyPair() KeyPair {
	var priv RawKey
	if _, err := rand.Read(priv[:]); err != nil {
		panic(err)
	}
	return KeyPairFromPrivate(priv)
}

// KeyPairFromPrivate derives the public key from a raw private key.
func KeyPairFromPrivate(priv RawKey) KeyPair {
	key := ed25519.NewKeyFromSeed(priv[:])
	var pub PublicKey
	copy(pub[:], key.Public().(ed25519.PublicKey))
	return KeyPair{Private: priv, Public: pub}
}

// DeriveKey produces the deterministic wallet key for the given seed and
// index: blake2b-256 over seed followed by the big-endian index.
func DeriveKey(seed RawKey, index uint32) RawKey {
	digest, _ := blake2b.New256(nil)
	digest.Write(seed[:])
	digest.Write([]byte{byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)})
	var out RawKey
	copy(out[:], digest.Sum(nil))
	return out
}

// Sign signs a block digest with the raw private key.
func Sign(priv RawKey, digest BlockHash) Signature {
	key := ed25519.NewKeyFromSeed(priv[:])
	var sig Signature
	copy(sig[:], ed25519.Sign(key, digest[:]))
	return sig
}

// Verify reports whether sig is a valid signature of digest by pub.
func Verify(pub PublicKey, digest BlockHash, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), digest[:], sig[:])
}
