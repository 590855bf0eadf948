package rpc

import (
	"encoding/json"

	"github.com/SeedCredits/raiblocks/node"
	"github.com/SeedCredits/raiblocks/observability/metrics"
	"github.com/SeedCredits/raiblocks/types"
)

// processRequest parses one request body and routes it. The respond
// callback is invoked exactly once, either here or by a deferred
// completion the handler registers.
func (s *Server) processRequest(body []byte, respond func(map[string]any)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("rpc handler panic", "panic", r)
			respond(errTree("Internal server error in RPC"))
		}
	}()
	var request map[string]any
	if err := json.Unmarshal(body, &request); err != nil {
		respond(errTree("Unable to parse JSON"))
		return
	}
	action, ok := request["action"].(string)
	if !ok {
		respond(errTree("Unable to parse JSON"))
		return
	}
	h := &handler{srv: s, node: s.node, request: request, action: action, respond: respond}

	// Password actions run before logging so the plaintext can be
	// scrubbed from the logged body.
	switch action {
	case "password_enter":
		h.passwordEnter()
	case "password_change":
		h.passwordChange()
	}
	if s.cfg.LogRPC {
		logged := body
		switch action {
		case "password_enter", "password_change":
			delete(request, "password")
			logged, _ = json.Marshal(request)
		}
		s.log.Info("rpc request", "body", string(logged))
	}
	metrics.RPC().ObserveRequest(action)

	switch action {
	case "account_balance":
		h.accountBalance()
	case "account_create":
		h.accountCreate()
	case "account_list":
		h.accountList()
	case "account_move":
		h.accountMove()
	case "account_representative":
		h.accountRepresentative()
	case "account_representative_set":
		h.accountRepresentativeSet()
	case "account_weight":
		h.accountWeight()
	case "available_supply":
		h.availableSupply()
	case "block":
		h.block()
	case "block_account":
		h.blockAccount()
	case "block_count":
		h.blockCount()
	case "bootstrap":
		h.bootstrap()
	case "chain":
		h.chain()
	case "frontiers":
		h.frontiers()
	case "frontier_count":
		h.frontierCount()
	case "history":
		h.history()
	case "keepalive":
		h.keepalive()
	case "krai_from_raw":
		h.fromRaw(types.KraiRatio)
	case "krai_to_raw":
		h.toRaw(types.KraiRatio)
	case "mrai_from_raw":
		h.fromRaw(types.MraiRatio)
	case "mrai_to_raw":
		h.toRaw(types.MraiRatio)
	case "password_change", "password_enter":
		// processed before logging
	case "password_valid":
		h.passwordValid()
	case "payment_begin":
		h.paymentBegin()
	case "payment_init":
		h.paymentInit()
	case "payment_end":
		h.paymentEnd()
	case "payment_wait":
		h.paymentWait()
	case "peers":
		h.peers()
	case "pending":
		h.pending()
	case "process":
		h.process()
	case "rai_from_raw":
		h.fromRaw(types.RaiRatio)
	case "rai_to_raw":
		h.toRaw(types.RaiRatio)
	case "search_pending":
		h.searchPending()
	case "send":
		h.send()
	case "stop":
		h.stop()
	case "validate_account_number":
		h.validateAccountNumber()
	case "version":
		h.version()
	case "wallet_add":
		h.walletAdd()
	case "wallet_contains":
		h.walletContains()
	case "wallet_create":
		h.walletCreate()
	case "wallet_destroy":
		h.walletDestroy()
	case "wallet_export":
		h.walletExport()
	case "wallet_key_valid":
		h.walletKeyValid()
	case "wallet_representative":
		h.walletRepresentative()
	case "wallet_representative_set":
		h.walletRepresentativeSet()
	case "work_generate":
		h.workGenerate()
	case "work_cancel":
		h.workCancel()
	default:
		respond(errTree("Unknown command"))
	}
}

type handler struct {
	srv     *Server
	node    *node.Node
	request map[string]any
	action  string
	respond func(map[string]any)
}

func (h *handler) err(message string) {
	metrics.RPC().ObserveError(h.action)
	h.respond(errTree(message))
}

func (h *handler) ok(tree map[string]any) {
	h.respond(tree)
}

// fieldString extracts a required string field. Missing or non-string
// fields are a parse failure, matching the decoder contract: values
// arrive in string form even when semantically numeric.
func (h *handler) fieldString(name string) (string, bool) {
	value, ok := h.request[name].(string)
	if !ok {
		h.err("Unable to parse JSON")
		return "", false
	}
	return value, true
}

func (h *handler) controlled() bool {
	if !h.srv.cfg.EnableControl {
		h.err("RPC control is disabled")
		return false
	}
	return true
}
