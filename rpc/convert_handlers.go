package rpc

import (
	"github.com/SeedCredits/raiblocks/types"
)

// Unit converters. Raw is the base denomination; prefixed units divide
// (truncating) on the way out and multiply with an overflow check on the
// way in.

func (h *handler) fromRaw(ratio types.Amount) {
	amount, ok := h.fieldAmount("amount", "Bad amount number")
	if !ok {
		return
	}
	h.ok(map[string]any{"amount": amount.DivRatio(ratio).String()})
}

func (h *handler) toRaw(ratio types.Amount) {
	amount, ok := h.fieldAmount("amount", "Bad amount number")
	if !ok {
		return
	}
	result, err := amount.MulRatio(ratio)
	if err != nil {
		h.err("Amount too big")
		return
	}
	h.ok(map[string]any{"amount": result.String()})
}
