package types

import (
	"fmt"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// BlockType tags the four chain operations.
type BlockType uint8

const (
	BlockTypeSend BlockType = iota + 1
	BlockTypeReceive
	BlockTypeOpen
	BlockTypeChange
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeSend:
		return "send"
	case BlockTypeReceive:
		return "receive"
	case BlockTypeOpen:
		return "open"
	case BlockTypeChange:
		return "change"
	default:
		return "invalid"
	}
}

// Block is one signed, work-stamped chain operation. The variant set is
// closed; callers switch on the concrete type where behavior differs.
type Block interface {
	Type() BlockType
	// Hash is the blake2b-256 digest of the hashed fields, which is also
	// what the signature covers.
	Hash() BlockHash
	// Previous is the parent block hash; zero for an open block.
	Previous() BlockHash
	// Root is the work root: the previous hash, or the account for opens.
	Root() BlockHash
	WorkValue() uint64
	BlockSignature() Signature
	// Tree renders the JSON subtree used on the wire.
	Tree() map[string]string
}

// SendBlock debits an account. Balance is the remaining balance after the
// send; the moved amount is the difference from the predecessor.
type SendBlock struct {
	PreviousHash BlockHash
	Destination  Account
	Balance      Amount
	Signature    Signature
	Work         uint64
}

func (b *SendBlock) Type() BlockType { return BlockTypeSend }

func (b *SendBlock) Hash() BlockHash {
	digest, _ := blake2b.New256(nil)
	digest.Write(b.PreviousHash[:])
	digest.Write(b.Destination[:])
	digest.Write(b.Balance.Bytes())
	var hash BlockHash
	copy(hash[:], digest.Sum(nil))
	return hash
}

func (b *SendBlock) Previous() BlockHash       { return b.PreviousHash }
func (b *SendBlock) Root() BlockHash           { return b.PreviousHash }
func (b *SendBlock) WorkValue() uint64         { return b.Work }
func (b *SendBlock) BlockSignature() Signature { return b.Signature }

func (b *SendBlock) Tree() map[string]string {
	return map[string]string{
		"type":        "send",
		"previous":    b.PreviousHash.String(),
		"destination": b.Destination.EncodeAccount(),
		"balance":     fmt.Sprintf("%032x", b.Balance.Bytes()),
		"work":        WorkToString(b.Work),
		"signature":   b.Signature.String(),
	}
}

// ReceiveBlock credits an account from a pending send.
type ReceiveBlock struct {
	PreviousHash BlockHash
	Source       BlockHash
	Signature    Signature
	Work         uint64
}

func (b *ReceiveBlock) Type() BlockType { return BlockTypeReceive }

func (b *ReceiveBlock) Hash() BlockHash {
	digest, _ := blake2b.New256(nil)
	digest.Write(b.PreviousHash[:])
	digest.Write(b.Source[:])
	var hash BlockHash
	copy(hash[:], digest.Sum(nil))
	return hash
}

func (b *ReceiveBlock) Previous() BlockHash       { return b.PreviousHash }
func (b *ReceiveBlock) Root() BlockHash           { return b.PreviousHash }
func (b *ReceiveBlock) WorkValue() uint64         { return b.Work }
func (b *ReceiveBlock) BlockSignature() Signature { return b.Signature }

func (b *ReceiveBlock) Tree() map[string]string {
	return map[string]string{
		"type":      "receive",
		"previous":  b.PreviousHash.String(),
		"source":    b.Source.String(),
		"work":      WorkToString(b.Work),
		"signature": b.Signature.String(),
	}
}

// OpenBlock starts an account chain by claiming a pending send.
type OpenBlock struct {
	Source         BlockHash
	Representative Account
	Account        Account
	Signature      Signature
	Work           uint64
}

func (b *OpenBlock) Type() BlockType { return BlockTypeOpen }

func (b *OpenBlock) Hash() BlockHash {
	digest, _ := blake2b.New256(nil)
	digest.Write(b.Source[:])
	digest.Write(b.Representative[:])
	digest.Write(b.Account[:])
	var hash BlockHash
	copy(hash[:], digest.Sum(nil))
	return hash
}

func (b *OpenBlock) Previous() BlockHash       { return BlockHash{} }
func (b *OpenBlock) Root() BlockHash           { return b.Account }
func (b *OpenBlock) WorkValue() uint64         { return b.Work }
func (b *OpenBlock) BlockSignature() Signature { return b.Signature }

func (b *OpenBlock) Tree() map[string]string {
	return map[string]string{
		"type":           "open",
		"source":         b.Source.String(),
		"representative": b.Representative.EncodeAccount(),
		"account":        b.Account.EncodeAccount(),
		"work":           WorkToString(b.Work),
		"signature":      b.Signature.String(),
	}
}

// ChangeBlock rotates an account's representative.
type ChangeBlock struct {
	PreviousHash   BlockHash
	Representative Account
	Signature      Signature
	Work           uint64
}

func (b *ChangeBlock) Type() BlockType { return BlockTypeChange }

func (b *ChangeBlock) Hash() BlockHash {
	digest, _ := blake2b.New256(nil)
	digest.Write(b.PreviousHash[:])
	digest.Write(b.Representative[:])
	var hash BlockHash
	copy(hash[:], digest.Sum(nil))
	return hash
}

func (b *ChangeBlock) Previous() BlockHash       { return b.PreviousHash }
func (b *ChangeBlock) Root() BlockHash           { return b.PreviousHash }
func (b *ChangeBlock) WorkValue() uint64         { return b.Work }
func (b *ChangeBlock) BlockSignature() Signature { return b.Signature }

func (b *ChangeBlock) Tree() map[string]string {
	return map[string]string{
		"type":           "change",
		"previous":       b.PreviousHash.String(),
		"representative": b.Representative.EncodeAccount(),
		"work":           WorkToString(b.Work),
		"signature":      b.Signature.String(),
	}
}

// WorkToString renders a work nonce as 16 hex characters.
func WorkToString(work uint64) string {
	return fmt.Sprintf("%016x", work)
}

// ParseWork parses a hex work nonce.
func ParseWork(text string) (uint64, error) {
	if len(text) == 0 || len(text) > 16 {
		return 0, fmt.Errorf("types: invalid work length %d", len(text))
	}
	work, err := strconv.ParseUint(text, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("types: invalid work: %w", err)
	}
	return work, nil
}

func treeString(tree map[string]any, key string) (string, error) {
	raw, ok := tree[key]
	if !ok {
		return "", fmt.Errorf("types: block field %q missing", key)
	}
	text, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("types: block field %q must be a string", key)
	}
	return text, nil
}

func treeHash(tree map[string]any, key string) (BlockHash, error) {
	text, err := treeString(tree, key)
	if err != nil {
		return BlockHash{}, err
	}
	var hash BlockHash
	if err := hash.DecodeHex(text); err != nil {
		return BlockHash{}, err
	}
	return hash, nil
}

func treeAccount(tree map[string]any, key string) (Account, error) {
	text, err := treeString(tree, key)
	if err != nil {
		return Account{}, err
	}
	var account Account
	if err := account.DecodeAccount(text); err != nil {
		return Account{}, err
	}
	return account, nil
}

func treeCommon(tree map[string]any) (Signature, uint64, error) {
	sigText, err := treeString(tree, "signature")
	if err != nil {
		return Signature{}, 0, err
	}
	var sig Signature
	if err := sig.DecodeHex(sigText); err != nil {
		return Signature{}, 0, err
	}
	workText, err := treeString(tree, "work")
	if err != nil {
		return Signature{}, 0, err
	}
	work, err := ParseWork(workText)
	if err != nil {
		return Signature{}, 0, err
	}
	return sig, work, nil
}

// DeserializeBlockJSON rebuilds a block from its JSON subtree. Unknown type
// tags and malformed fields fail.
func DeserializeBlockJSON(tree map[string]any) (Block, error) {
	kind, err := treeString(tree, "type")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "send":
		previous, err := treeHash(tree, "previous")
		if err != nil {
			return nil, err
		}
		destination, err := treeAccount(tree, "destination")
		if err != nil {
			return nil, err
		}
		balanceText, err := treeString(tree, "balance")
		if err != nil {
			return nil, err
		}
		balance, err := DecodeAmountHex(balanceText)
		if err != nil {
			return nil, err
		}
		sig, work, err := treeCommon(tree)
		if err != nil {
			return nil, err
		}
		return &SendBlock{PreviousHash: previous, Destination: destination, Balance: balance, Signature: sig, Work: work}, nil
	case "receive":
		previous, err := treeHash(tree, "previous")
		if err != nil {
			return nil, err
		}
		source, err := treeHash(tree, "source")
		if err != nil {
			return nil, err
		}
		sig, work, err := treeCommon(tree)
		if err != nil {
			return nil, err
		}
		return &ReceiveBlock{PreviousHash: previous, Source: source, Signature: sig, Work: work}, nil
	case "open":
		source, err := treeHash(tree, "source")
		if err != nil {
			return nil, err
		}
		representative, err := treeAccount(tree, "representative")
		if err != nil {
			return nil, err
		}
		account, err := treeAccount(tree, "account")
		if err != nil {
			return nil, err
		}
		sig, work, err := treeCommon(tree)
		if err != nil {
			return nil, err
		}
		return &OpenBlock{Source: source, Representative: representative, Account: account, Signature: sig, Work: work}, nil
	case "change":
		previous, err := treeHash(tree, "previous")
		if err != nil {
			return nil, err
		}
		representative, err := treeAccount(tree, "representative")
		if err != nil {
			return nil, err
		}
		sig, work, err := treeCommon(tree)
		if err != nil {
			return nil, err
		}
		return &ChangeBlock{PreviousHash: previous, Representative: representative, Signature: sig, Work: work}, nil
	default:
		return nil, fmt.Errorf("types: unknown block type %q", kind)
	}
}
