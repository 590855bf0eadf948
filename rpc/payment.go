package rpc

import (
	"sync/atomic"
	"time"

	"github.com/SeedCredits/raiblocks/observability/metrics"
	"github.com/SeedCredits/raiblocks/types"
)

type paymentStatus int

const (
	paymentNothing paymentStatus = iota
	paymentSuccess
)

// paymentObserver is a single-shot waiter for a credit on one account.
// Exactly one of timeout or threshold produces the response; the
// completed latch makes the loser a no-op.
type paymentObserver struct {
	srv       *Server
	account   types.Account
	threshold types.Amount
	respond   func(map[string]any)
	completed atomic.Bool
}

// observerAction nudges the observer registered for account, if any. The
// node's block stream calls this on every credit; payment_wait also calls
// it once synchronously after registration so an already-met threshold
// completes immediately.
func (s *Server) observerAction(account types.Account) {
	s.mu.Lock()
	observer := s.paymentObservers[account]
	s.mu.Unlock()
	if observer != nil {
		observer.observe()
	}
}

func (o *paymentObserver) start(timeout time.Duration) {
	o.srv.node.Alarm.Add(time.Now().Add(timeout), func() {
		o.complete(paymentNothing)
	})
}

func (o *paymentObserver) observe() {
	if o.srv.node.Balance(o.account).Cmp(o.threshold) >= 0 {
		o.complete(paymentSuccess)
	}
}

func (o *paymentObserver) complete(status paymentStatus) {
	if o.completed.Swap(true) {
		return
	}
	if o.srv.cfg.LogRPC {
		o.srv.log.Info("payment observer exiting",
			"account", o.account.EncodeAccount(), "status", int(status))
	}
	switch status {
	case paymentNothing:
		o.respond(map[string]any{"status": "nothing"})
	case paymentSuccess:
		o.respond(map[string]any{"status": "success"})
	default:
		o.respond(errTree("Internal payment error"))
	}
	o.srv.mu.Lock()
	delete(o.srv.paymentObservers, o.account)
	count := len(o.srv.paymentObservers)
	o.srv.mu.Unlock()
	metrics.RPC().SetPaymentObservers(count)
}

func (h *handler) paymentInit() {
	id, ok := h.fieldHex("wallet", "Bad transaction wallet number")
	if !ok {
		return
	}
	w, found := h.node.Wallets.Open(id)
	if !found {
		h.ok(map[string]any{"status": "Unable to find transaction wallet"})
		return
	}
	if !w.ValidPassword(nil) {
		h.ok(map[string]any{"status": "Transaction wallet locked"})
		return
	}
	txn := h.node.Store.TxBeginWrite()
	w.InitFreeAccounts(txn)
	txn.Done()
	h.ok(map[string]any{"status": "Ready"})
}

func (h *handler) paymentBegin() {
	id, ok := h.fieldHex("wallet", "Bad wallet number")
	if !ok {
		return
	}
	w, found := h.node.Wallets.Open(id)
	if !found {
		h.err("Unable to find wallets")
		return
	}
	txn := h.node.Store.TxBeginWrite()
	defer txn.Done()
	if !w.ValidPassword(txn) {
		h.err("Wallet locked")
		return
	}
	var account types.Account
	for account.IsZero() {
		free, any := w.TakeFreeAccount()
		if !any {
			account = w.DeterministicInsert(txn)
			break
		}
		account = free
		if !w.Contains(txn, account) {
			h.srv.log.Warn("transaction wallet externally modified, free account missing",
				"wallet", id.String(), "account", account.EncodeAccount())
			account = types.Account{}
			continue
		}
		if !h.node.Ledger.Balance(txn, account).IsZero() {
			h.srv.log.Warn("skipping transaction account with nonzero balance",
				"account", account.EncodeAccount())
			account = types.Account{}
		}
	}
	if account.IsZero() {
		h.err("Unable to create transaction account")
		return
	}
	h.ok(map[string]any{"account": account.EncodeAccount()})
}

func (h *handler) paymentEnd() {
	id, ok := h.fieldHex("wallet", "Bad wallet number")
	if !ok {
		return
	}
	w, found := h.node.Wallets.Open(id)
	if !found {
		h.err("Unable to find wallet")
		return
	}
	account, ok := h.fieldAccount("account", "Invalid account number")
	if !ok {
		return
	}
	txn := h.node.Store.TxBeginRead()
	inWallet := w.Contains(txn, account)
	balance := h.node.Ledger.Balance(txn, account)
	txn.Done()
	if !inWallet {
		h.err("Account not in wallet")
		return
	}
	if !balance.IsZero() {
		h.err("Account has non-zero balance")
		return
	}
	w.ReturnFreeAccount(account)
	h.ok(map[string]any{})
}

func (h *handler) paymentWait() {
	account, ok := h.fieldAccount("account", "Bad account number")
	if !ok {
		return
	}
	amount, ok := h.fieldAmount("amount", "Bad amount number")
	if !ok {
		return
	}
	timeout, ok := h.fieldUnsigned("timeout", "Bad timeout number")
	if !ok {
		return
	}
	observer := &paymentObserver{
		srv:       h.srv,
		account:   account,
		threshold: amount,
		respond:   h.respond,
	}
	h.srv.mu.Lock()
	if _, exists := h.srv.paymentObservers[account]; exists {
		h.srv.mu.Unlock()
		h.err("Payment observer already registered")
		return
	}
	h.srv.paymentObservers[account] = observer
	count := len(h.srv.paymentObservers)
	h.srv.mu.Unlock()
	metrics.RPC().SetPaymentObservers(count)
	observer.start(time.Duration(timeout) * time.Millisecond)
	h.srv.observerAction(account)
}
