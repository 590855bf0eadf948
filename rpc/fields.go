package rpc

import (
	"strconv"

	"github.com/SeedCredits/raiblocks/types"
	"github.com/SeedCredits/raiblocks/wallet"
)

// Typed field extraction. Each helper responds with the action's error
// string itself so handlers read as a straight line of decodes.

func (h *handler) fieldAccount(name, message string) (types.Account, bool) {
	text, ok := h.fieldString(name)
	if !ok {
		return types.Account{}, false
	}
	var account types.Account
	if err := account.DecodeAccount(text); err != nil {
		h.err(message)
		return types.Account{}, false
	}
	return account, true
}

func (h *handler) fieldHex(name, message string) (types.Union256, bool) {
	text, ok := h.fieldString(name)
	if !ok {
		return types.Union256{}, false
	}
	var value types.Union256
	if err := value.DecodeHex(text); err != nil {
		h.err(message)
		return types.Union256{}, false
	}
	return value, true
}

func (h *handler) fieldAmount(name, message string) (types.Amount, bool) {
	text, ok := h.fieldString(name)
	if !ok {
		return types.Amount{}, false
	}
	amount, err := types.DecodeAmountDec(text)
	if err != nil {
		h.err(message)
		return types.Amount{}, false
	}
	return amount, true
}

func (h *handler) fieldUnsigned(name, message string) (uint64, bool) {
	text, ok := h.fieldString(name)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		h.err(message)
		return 0, false
	}
	return value, true
}

func (h *handler) fieldPort(name string) (uint16, bool) {
	text, ok := h.fieldString(name)
	if !ok {
		return 0, false
	}
	port, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		h.err("Invalid port")
		return 0, false
	}
	return uint16(port), true
}

// fieldWallet resolves the "wallet" field to a registered wallet.
func (h *handler) fieldWallet(badMessage, missingMessage string) (*wallet.Wallet, bool) {
	id, ok := h.fieldHex("wallet", badMessage)
	if !ok {
		return nil, false
	}
	w, found := h.node.Wallets.Open(id)
	if !found {
		h.err(missingMessage)
		return nil, false
	}
	return w, true
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func clamp(count, limit uint64) uint64 {
	if limit != 0 && count > limit {
		return limit
	}
	return count
}
