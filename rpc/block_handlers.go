package rpc

import (
	"encoding/json"

	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/types"
)

func (h *handler) block() {
	hash, ok := h.fieldHex("hash", "Bad hash number")
	if !ok {
		return
	}
	txn := h.node.Store.TxBeginRead()
	stored, found := h.node.Store.BlockGet(txn, hash)
	txn.Done()
	if !found {
		h.err("Block not found")
		return
	}
	contents, err := json.Marshal(stored.Block.Tree())
	if err != nil {
		h.err("Internal server error in RPC")
		return
	}
	h.ok(map[string]any{"contents": string(contents)})
}

func (h *handler) blockAccount() {
	hash, ok := h.fieldHex("hash", "Invalid block hash")
	if !ok {
		return
	}
	txn := h.node.Store.TxBeginRead()
	account, found := h.node.Ledger.AccountOf(txn, hash)
	txn.Done()
	if !found {
		h.err("Block not found")
		return
	}
	h.ok(map[string]any{"account": account.EncodeAccount()})
}

func (h *handler) blockCount() {
	txn := h.node.Store.TxBeginRead()
	defer txn.Done()
	h.ok(map[string]any{
		"count":     formatUint(h.node.Store.BlockCount(txn)),
		"unchecked": formatUint(h.node.Store.UncheckedCount(txn)),
	})
}

func (h *handler) chain() {
	hash, ok := h.fieldHex("block", "Invalid block hash")
	if !ok {
		return
	}
	count, ok := h.fieldUnsigned("count", "Invalid count limit")
	if !ok {
		return
	}
	count = clamp(count, h.srv.cfg.ChainRequestLimit)
	blocks := []string{}
	txn := h.node.Store.TxBeginRead()
	for !hash.IsZero() && uint64(len(blocks)) < count {
		stored, found := h.node.Store.BlockGet(txn, hash)
		if !found {
			break
		}
		blocks = append(blocks, hash.String())
		hash = stored.Block.Previous()
	}
	txn.Done()
	h.ok(map[string]any{"blocks": blocks})
}

// historyEntry summarizes one block for the history response. Sends name
// the destination; receives name the sender; opens are reported as
// receives with the genesis open special-cased; changes yield nothing.
func (h *handler) historyEntry(txn *ledger.Txn, block types.Block, hash types.BlockHash) map[string]any {
	switch b := block.(type) {
	case *types.SendBlock:
		amount, _ := h.node.Ledger.AmountOf(txn, hash)
		return map[string]any{
			"type":    "send",
			"account": b.Destination.EncodeAccount(),
			"amount":  amount.String(),
		}
	case *types.ReceiveBlock:
		source, _ := h.node.Ledger.AccountOf(txn, b.Source)
		amount, _ := h.node.Ledger.AmountOf(txn, hash)
		return map[string]any{
			"type":    "receive",
			"account": source.EncodeAccount(),
			"amount":  amount.String(),
		}
	case *types.OpenBlock:
		if b.Source == types.GenesisAccount {
			return map[string]any{
				"type":    "receive",
				"account": types.GenesisAccount.EncodeAccount(),
				"amount":  types.GenesisAmount.String(),
			}
		}
		source, _ := h.node.Ledger.AccountOf(txn, b.Source)
		amount, _ := h.node.Ledger.AmountOf(txn, hash)
		return map[string]any{
			"type":    "receive",
			"account": source.EncodeAccount(),
			"amount":  amount.String(),
		}
	default:
		return nil
	}
}

func (h *handler) history() {
	hash, ok := h.fieldHex("hash", "Invalid block hash")
	if !ok {
		return
	}
	count, ok := h.fieldUnsigned("count", "Invalid count limit")
	if !ok {
		return
	}
	count = clamp(count, h.srv.cfg.ChainRequestLimit)
	history := []map[string]any{}
	txn := h.node.Store.TxBeginRead()
	for count > 0 {
		stored, found := h.node.Store.BlockGet(txn, hash)
		if !found {
			break
		}
		if entry := h.historyEntry(txn, stored.Block, hash); entry != nil {
			entry["hash"] = hash.String()
			history = append(history, entry)
		}
		hash = stored.Block.Previous()
		count--
	}
	txn.Done()
	h.ok(map[string]any{"history": history})
}

func (h *handler) pending() {
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	count, ok := h.fieldUnsigned("count", "Invalid count limit")
	if !ok {
		return
	}
	count = clamp(count, h.srv.cfg.FrontierRequestLimit)
	blocks := []string{}
	txn := h.node.Store.TxBeginRead()
	h.node.Store.PendingIterate(txn, account, func(hash types.BlockHash, _ ledger.PendingInfo) bool {
		if uint64(len(blocks)) >= count {
			return false
		}
		blocks = append(blocks, hash.String())
		return true
	})
	txn.Done()
	h.ok(map[string]any{"blocks": blocks})
}

func (h *handler) availableSupply() {
	genesis := h.node.Balance(types.GenesisAccount)
	landing := h.node.Balance(types.LandingAccount)
	faucet := h.node.Balance(types.FaucetAccount)
	available := types.GenesisAmount.Sub(genesis).Sub(landing).Sub(faucet)
	h.ok(map[string]any{"available": available.String()})
}

func (h *handler) process() {
	if !h.controlled() {
		return
	}
	blockText, ok := h.fieldString("block")
	if !ok {
		return
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(blockText), &tree); err != nil {
		h.err("Block is invalid")
		return
	}
	block, err := types.DeserializeBlockJSON(tree)
	if err != nil {
		h.err("Block is invalid")
		return
	}
	if !h.node.Work.Validate(block.Root(), block.WorkValue()) {
		h.err("Block work is invalid")
		return
	}
	// Admission failures are not reported; the block simply does not land.
	if err := h.node.ProcessReceive(block); err != nil {
		h.srv.log.Info("rpc block rejected", "hash", block.Hash().String(), "error", err)
	}
	h.ok(map[string]any{})
}
