package types

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Account display form: "xrb_" followed by 52 base-32 characters encoding the
// 256-bit public key (with a 4-bit zero lead so the width divides evenly)
// and 8 characters encoding a 40-bit blake2b checksum of the key, digest
// bytes reversed. The alphabet omits characters that are easy to confuse.
const (
	accountPrefix   = "xrb_"
	accountAlphabet = "13456789abcdefghijkmnopqrstuwxyz"
	accountLength   = len(accountPrefix) + 52 + 8
)

var accountReverse = func() [128]int8 {
	var table [128]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range accountAlphabet {
		table[c] = int8(i)
	}
	return table
}()

func accountChecksum(key Union256) *big.Int {
	digest, _ := blake2b.New(5, nil)
	digest.Write(key[:])
	sum := digest.Sum(nil)
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	return new(big.Int).SetBytes(sum)
}

func encodeBase32(value *big.Int, digits int) string {
	buf := make([]byte, digits)
	v := new(big.Int).Set(value)
	mask := big.NewInt(31)
	digit := new(big.Int)
	for i := digits - 1; i >= 0; i-- {
		digit.And(v, mask)
		buf[i] = accountAlphabet[digit.Int64()]
		v.Rsh(v, 5)
	}
	return string(buf)
}

func decodeBase32(text string) (*big.Int, error) {
	value := new(big.Int)
	for _, c := range text {
		if c >= 128 || accountReverse[c] < 0 {
			return nil, fmt.Errorf("types: invalid account character %q", c)
		}
		value.Lsh(value, 5)
		value.Or(value, big.NewInt(int64(accountReverse[c])))
	}
	return value, nil
}

// EncodeAccount renders a public key in the checksummed account form.
func (u Union256) EncodeAccount() string {
	key := new(big.Int).SetBytes(u[:])
	return accountPrefix + encodeBase32(key, 52) + encodeBase32(accountChecksum(u), 8)
}

// DecodeAccount parses the checksummed account form. Wrong length, wrong
// alphabet and checksum mismatches all fail.
func (u *Union256) DecodeAccount(text string) error {
	if len(text) != accountLength {
		return fmt.Errorf("types: account must be %d characters, got %d", accountLength, len(text))
	}
	if !strings.HasPrefix(text, accountPrefix) {
		return fmt.Errorf("types: account must begin with %q", accountPrefix)
	}
	keyPart, err := decodeBase32(text[len(accountPrefix) : len(accountPrefix)+52])
	if err != nil {
		return err
	}
	if keyPart.BitLen() > 256 {
		return fmt.Errorf("types: account key out of range")
	}
	checkPart, err := decodeBase32(text[len(accountPrefix)+52:])
	if err != nil {
		return err
	}
	var key Union256
	keyPart.FillBytes(key[:])
	if accountChecksum(key).Cmp(checkPart) != 0 {
		return fmt.Errorf("types: account checksum mismatch")
	}
	*u = key
	return nil
}
