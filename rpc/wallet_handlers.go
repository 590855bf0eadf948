package rpc

import (
	"github.com/SeedCredits/raiblocks/types"
)

func (h *handler) passwordEnter() {
	w, ok := h.fieldWallet("Bad account number", "Wallet not found")
	if !ok {
		return
	}
	password, ok := h.fieldString("password")
	if !ok {
		return
	}
	valid := "0"
	if w.EnterPassword(password) {
		valid = "1"
	}
	h.ok(map[string]any{"valid": valid})
}

func (h *handler) passwordChange() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad account number", "Wallet not found")
	if !ok {
		return
	}
	password, ok := h.fieldString("password")
	if !ok {
		return
	}
	txn := h.node.Store.TxBeginWrite()
	err := w.Rekey(txn, password)
	txn.Done()
	changed := "1"
	if err != nil {
		changed = "0"
	}
	h.ok(map[string]any{"changed": changed})
}

func (h *handler) passwordValid() {
	w, ok := h.fieldWallet("Bad account number", "Wallet not found")
	if !ok {
		return
	}
	valid := "0"
	if w.ValidPassword(nil) {
		valid = "1"
	}
	h.ok(map[string]any{"valid": valid})
}

func (h *handler) walletAdd() {
	if !h.controlled() {
		return
	}
	key, ok := h.fieldHex("key", "Bad private key")
	if !ok {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	account := w.InsertAdhoc(key)
	if account.IsZero() {
		h.err("Wallet locked")
		return
	}
	h.ok(map[string]any{"account": account.EncodeAccount()})
}

func (h *handler) walletContains() {
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	exists := "0"
	if w.Contains(nil, account) {
		exists = "1"
	}
	h.ok(map[string]any{"exists": exists})
}

func (h *handler) walletCreate() {
	if !h.controlled() {
		return
	}
	w, err := h.node.Wallets.Create()
	if err != nil {
		h.err("Internal server error in RPC")
		return
	}
	h.ok(map[string]any{"wallet": w.ID.String()})
}

func (h *handler) walletDestroy() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	h.node.Wallets.Destroy(w.ID)
	h.ok(map[string]any{})
}

func (h *handler) walletExport() {
	w, ok := h.fieldWallet("Bad account number", "Wallet not found")
	if !ok {
		return
	}
	dump, err := w.SerializeJSON(nil)
	if err != nil {
		h.err("Internal server error in RPC")
		return
	}
	h.ok(map[string]any{"json": dump})
}

func (h *handler) walletKeyValid() {
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	valid := "0"
	if w.ValidPassword(nil) {
		valid = "1"
	}
	h.ok(map[string]any{"valid": valid})
}

func (h *handler) walletRepresentative() {
	w, ok := h.fieldWallet("Bad account number", "Wallet not found")
	if !ok {
		return
	}
	h.ok(map[string]any{"representative": w.Representative(nil).EncodeAccount()})
}

func (h *handler) walletRepresentativeSet() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad account number", "Wallet not found")
	if !ok {
		return
	}
	representative, ok := h.fieldAccount("representative", "Invalid account number")
	if !ok {
		return
	}
	txn := h.node.Store.TxBeginWrite()
	err := w.SetRepresentative(txn, representative)
	txn.Done()
	if err != nil {
		h.err("Internal server error in RPC")
		return
	}
	h.ok(map[string]any{"set": "1"})
}

func (h *handler) searchPending() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	started := h.node.Wallets.SearchPending(w)
	h.ok(map[string]any{"started": started})
}

func (h *handler) send() {
	if !h.controlled() {
		return
	}
	w, ok := h.fieldWallet("Bad wallet number", "Wallet not found")
	if !ok {
		return
	}
	source, ok := h.fieldAccount("source", "Bad source account")
	if !ok {
		return
	}
	destination, ok := h.fieldAccount("destination", "Bad destination account")
	if !ok {
		return
	}
	amount, ok := h.fieldAmount("amount", "Bad amount format")
	if !ok {
		return
	}
	respond := h.respond
	h.node.Wallets.SendAsync(w, source, destination, amount, func(block types.Block) {
		var hash types.BlockHash
		if block != nil {
			hash = block.Hash()
		}
		respond(map[string]any{"block": hash.String()})
	})
}
