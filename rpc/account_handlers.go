package rpc

import (
	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/types"
)

func (h *handler) accountBalance() {
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	balance, pending := h.node.BalancePending(account)
	h.ok(map[string]any{
		"balance": balance.String(),
		"pending": pending.String(),
	})
}

func (h *handler) accountCreate() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	account := w.DeterministicInsert(nil)
	if account.IsZero() {
		h.err("Wallet is locked")
		return
	}
	h.ok(map[string]any{"account": account.EncodeAccount()})
}

func (h *handler) accountList() {
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	accounts := []string{}
	for _, account := range w.Accounts(nil) {
		accounts = append(accounts, account.EncodeAccount())
	}
	h.ok(map[string]any{"accounts": accounts})
}

func (h *handler) accountMove() {
	if !h.controlled() {
		return
	}
	target, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	sourceID, ok := h.fieldHex("source", "Bad source number")
	if !ok {
		return
	}
	source, found := h.node.Wallets.Open(sourceID)
	if !found {
		h.err("Source not found")
		return
	}
	list, ok := h.request["accounts"].([]any)
	if !ok {
		h.err("Unable to parse JSON")
		return
	}
	accounts := make([]types.Account, 0, len(list))
	for _, entry := range list {
		text, _ := entry.(string)
		var account types.Account
		// undecodable entries stay zero and fail the move
		_ = account.DecodeHex(text)
		accounts = append(accounts, account)
	}
	txn := h.node.Store.TxBeginWrite()
	err := target.MoveFrom(txn, source, accounts)
	txn.Done()
	moved := "1"
	if err != nil {
		moved = "0"
	}
	h.ok(map[string]any{"moved": moved})
}

func (h *handler) accountRepresentative() {
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	txn := h.node.Store.TxBeginRead()
	defer txn.Done()
	info, found := h.node.Store.AccountGet(txn, account)
	if !found {
		h.err("Account not found")
		return
	}
	rep, _ := h.node.Ledger.RepresentativeOf(txn, info)
	h.ok(map[string]any{"representative": rep.EncodeAccount()})
}

func (h *handler) accountRepresentativeSet() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	representative, ok := h.fieldAccount("representative", "Bad account number")
	if !ok {
		return
	}
	respond := h.respond
	h.node.Wallets.ChangeAsync(w, account, representative, func(block types.Block) {
		var hash types.BlockHash
		if block != nil {
			hash = block.Hash()
		}
		respond(map[string]any{"block": hash.String()})
	})
}

func (h *handler) accountWeight() {
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	h.ok(map[string]any{"weight": h.node.Weight(account).String()})
}

func (h *handler) validateAccountNumber() {
	text, ok := h.fieldString("account")
	if !ok {
		return
	}
	var account types.Account
	valid := "1"
	if err := account.DecodeAccount(text); err != nil {
		valid = "0"
	}
	h.ok(map[string]any{"valid": valid})
}

func (h *handler) frontiers() {
	start, ok := h.fieldAccount("account", "Invalid starting account")
	if !ok {
		return
	}
	count, ok := h.fieldUnsigned("count", "Invalid count limit")
	if !ok {
		return
	}
	count = clamp(count, h.srv.cfg.FrontierRequestLimit)
	frontiers := map[string]any{}
	txn := h.node.Store.TxBeginRead()
	h.node.Store.LatestIterate(txn, start, func(account types.Account, info ledger.AccountInfo) bool {
		if uint64(len(frontiers)) >= count {
			return false
		}
		frontiers[account.EncodeAccount()] = info.Head.String()
		return true
	})
	txn.Done()
	h.ok(map[string]any{"frontiers": frontiers})
}

func (h *handler) frontierCount() {
	txn := h.node.Store.TxBeginRead()
	defer txn.Done()
	h.ok(map[string]any{"count": formatUint(h.node.Store.FrontierCount(txn))})
}
