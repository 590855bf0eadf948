package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Amount is a 128-bit unsigned quantity of raw units. It rides on a 256-bit
// integer so multiplications can be checked against the 128-bit ceiling
// instead of silently wrapping.
type Amount struct {
	n uint256.Int
}

// Unit ratios. Converting raw into a prefixed unit divides; converting back
// multiplies and must be overflow-checked.
var (
	RaiRatio  = mustRatio("1000000000000000000000000")           // 10^24
	KraiRatio = mustRatio("1000000000000000000000000000")        // 10^27
	MraiRatio = mustRatio("1000000000000000000000000000000")     // 10^30
	MaxAmount = mustRatio("340282366920938463463374607431768211455") // 2^128 - 1
)

func mustRatio(dec string) Amount {
	a, err := DecodeAmountDec(dec)
	if err != nil {
		panic(err)
	}
	return a
}

// DecodeAmountDec parses a strict decimal string into an Amount. Signs,
// spaces and values beyond 128 bits are rejected.
func DecodeAmountDec(text string) (Amount, error) {
	if len(text) == 0 {
		return Amount{}, fmt.Errorf("types: empty amount")
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return Amount{}, fmt.Errorf("types: invalid amount character %q", c)
		}
	}
	n, err := uint256.FromDecimal(text)
	if err != nil {
		return Amount{}, fmt.Errorf("types: invalid amount: %w", err)
	}
	if n.BitLen() > 128 {
		return Amount{}, fmt.Errorf("types: amount exceeds 128 bits")
	}
	var a Amount
	a.n.Set(n)
	return a, nil
}

// DecodeAmountHex parses the 32-character hex form used inside block
// subtrees.
func DecodeAmountHex(text string) (Amount, error) {
	if len(text) != 32 {
		return Amount{}, fmt.Errorf("types: hex amount must be 32 characters, got %d", len(text))
	}
	n, err := uint256.FromHex("0x" + trimLeadingZeros(text))
	if err != nil {
		return Amount{}, fmt.Errorf("types: invalid hex amount: %w", err)
	}
	var a Amount
	a.n.Set(n)
	return a, nil
}

func trimLeadingZeros(text string) string {
	for i := 0; i < len(text)-1; i++ {
		if text[i] != '0' {
			return text[i:]
		}
	}
	return text[len(text)-1:]
}

// AmountFromUint64 is a convenience constructor used by tests and genesis.
func AmountFromUint64(v uint64) Amount {
	var a Amount
	a.n.SetUint64(v)
	return a
}

// AmountFromBytes reads a 16-byte big-endian value.
func AmountFromBytes(b []byte) (Amount, error) {
	if len(b) != 16 {
		return Amount{}, fmt.Errorf("types: amount must be 16 bytes, got %d", len(b))
	}
	var a Amount
	a.n.SetBytes(b)
	return a, nil
}

func (a Amount) String() string {
	return a.n.Dec()
}

// Bytes returns the 16-byte big-endian form used by store records.
func (a Amount) Bytes() []byte {
	full := a.n.Bytes32()
	b := make([]byte, 16)
	copy(b, full[16:])
	return b
}

func (a Amount) IsZero() bool {
	return a.n.IsZero()
}

func (a Amount) Cmp(other Amount) int {
	return a.n.Cmp(&other.n)
}

// Add panics on 128-bit overflow; ledger balances can never exceed the
// total supply so overflow indicates store corruption.
func (a Amount) Add(other Amount) Amount {
	var out Amount
	out.n.Add(&a.n, &other.n)
	if out.n.BitLen() > 128 {
		panic("types: amount addition overflow")
	}
	return out
}

// Sub panics on underflow for the same reason.
func (a Amount) Sub(other Amount) Amount {
	if a.n.Cmp(&other.n) < 0 {
		panic("types: amount subtraction underflow")
	}
	var out Amount
	out.n.Sub(&a.n, &other.n)
	return out
}

// MulRatio converts a prefixed unit to raw. It fails iff the product does
// not fit in 128 bits.
func (a Amount) MulRatio(ratio Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.n.MulOverflow(&a.n, &ratio.n); overflow || out.n.BitLen() > 128 {
		return Amount{}, fmt.Errorf("types: amount exceeds 128 bits")
	}
	return out, nil
}

// DivRatio converts raw to a prefixed unit, truncating.
func (a Amount) DivRatio(ratio Amount) Amount {
	var out Amount
	out.n.Div(&a.n, &ratio.n)
	return out
}
