package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountRoundTrip(t *testing.T) {
	for i := 0; i < 16; i++ {
		pair := NewKeyPair()
		text := pair.Public.EncodeAccount()
		require.Len(t, text, 64)
		require.True(t, strings.HasPrefix(text, "xrb_"))

		var decoded Account
		require.NoError(t, decoded.DecodeAccount(text))
		require.Equal(t, pair.Public, decoded)
	}
}

func TestDecodeAccountRejectsDamage(t *testing.T) {
	text := GenesisAccount.EncodeAccount()
	var account Account

	require.Error(t, account.DecodeAccount(text[:63]))
	require.Error(t, account.DecodeAccount(text+"1"))
	require.Error(t, account.DecodeAccount("abc_"+text[4:]))

	// '2' and 'l' are not in the alphabet
	require.Error(t, account.DecodeAccount(text[:10]+"2"+text[11:]))
	require.Error(t, account.DecodeAccount(text[:10]+"l"+text[11:]))

	// flip one checksum character
	last := text[63]
	replacement := byte('1')
	if last == replacement {
		replacement = '3'
	}
	require.Error(t, account.DecodeAccount(text[:63]+string(replacement)))
}

func TestHexRoundTrip(t *testing.T) {
	pair := NewKeyPair()
	text := pair.Public.String()
	require.Len(t, text, 64)

	var decoded Union256
	require.NoError(t, decoded.DecodeHex(text))
	require.Equal(t, Union256(pair.Public), decoded)

	require.Error(t, decoded.DecodeHex("zz"))
	require.Error(t, decoded.DecodeHex(text[:10]))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	seed := NewKeyPair().Private
	first := DeriveKey(seed, 0)
	second := DeriveKey(seed, 1)
	require.Equal(t, first, DeriveKey(seed, 0))
	require.NotEqual(t, first, second)
}

func TestSignVerify(t *testing.T) {
	pair := NewKeyPair()
	var digest BlockHash
	copy(digest[:], []byte("0123456789abcdef0123456789abcdef"))
	sig := Sign(pair.Private, digest)
	require.True(t, Verify(pair.Public, digest, sig))

	other := digest
	other[0] ^= 1
	require.False(t, Verify(pair.Public, other, sig))
}
