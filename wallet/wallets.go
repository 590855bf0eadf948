package wallet

import (
	"crypto/rand"
	"log/slog"
	"sync"

	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
)

// Processor admits a locally generated block into the ledger and announces
// it to the network. Provided by the node so wallet actions and RPC share
// one admission path.
type Processor func(types.Block) error

// WorkFunc produces a proof-of-work nonce for a root hash. The bool result
// is false when generation was cancelled.
type WorkFunc func(root types.BlockHash) (uint64, bool)

// Wallets is the registry of open wallets backed by a shared store. Block
// producing operations (sends, representative changes, receives) run on a
// single worker goroutine so at most one wallet action mutates an account
// chain at a time.
type Wallets struct {
	mu    sync.Mutex
	items map[types.WalletID]*Wallet

	db      storage.Database
	ledger  *ledger.Ledger
	work    WorkFunc
	process Processor
	log     *slog.Logger

	actions  chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func walletIndexKey(id types.WalletID) []byte {
	return append([]byte{'L'}, id[:]...)
}

// NewWallets opens every wallet recorded in the store. Wallets start
// locked; actions queue onto a worker started here and drained by Stop.
func NewWallets(db storage.Database, l *ledger.Ledger, work WorkFunc, process Processor, log *slog.Logger) (*Wallets, error) {
	ws := &Wallets{
		items:   make(map[types.WalletID]*Wallet),
		db:      db,
		ledger:  l,
		work:    work,
		process: process,
		log:     log,
		actions: make(chan func(), 64),
		done:    make(chan struct{}),
	}
	it := db.NewIterator(&storage.Range{Start: []byte{'L'}, Limit: []byte{'L' + 1}})
	for it.Next() {
		k := it.Key()
		if len(k) != 33 {
			continue
		}
		id, err := types.UnionFromBytes(k[1:])
		if err != nil {
			continue
		}
		ws.items[id] = openWallet(db, id)
	}
	it.Release()
	go ws.run()
	return ws, nil
}

func (ws *Wallets) run() {
	defer close(ws.done)
	for fn := range ws.actions {
		fn()
	}
}

// Stop drains the action queue and stops the worker.
func (ws *Wallets) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.actions)
	})
	<-ws.done
}

func (ws *Wallets) queue(fn func()) {
	defer func() {
		// the queue closes during shutdown; drop late actions
		recover()
	}()
	ws.actions <- fn
}

// Create makes a new wallet with a random id and an empty password.
func (ws *Wallets) Create() (*Wallet, error) {
	var id types.WalletID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}
	w, err := newWallet(ws.db, id)
	if err != nil {
		return nil, err
	}
	if err := ws.db.Put(walletIndexKey(id), []byte{1}); err != nil {
		return nil, err
	}
	ws.mu.Lock()
	ws.items[id] = w
	ws.mu.Unlock()
	return w, nil
}

// Open returns the wallet with the given id, if registered.
func (ws *Wallets) Open(id types.WalletID) (*Wallet, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.items[id]
	return w, ok
}

// Destroy removes a wallet and all of its store records.
func (ws *Wallets) Destroy(id types.WalletID) {
	ws.mu.Lock()
	w, ok := ws.items[id]
	delete(ws.items, id)
	ws.mu.Unlock()
	if !ok {
		return
	}
	_ = ws.db.Delete(walletIndexKey(id))
	w.destroy()
}

// List returns the registered wallets.
func (ws *Wallets) List() []*Wallet {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]*Wallet, 0, len(ws.items))
	for _, w := range ws.items {
		out = append(out, w)
	}
	return out
}

// SendAsync queues a send of amount from source to destination. The
// callback receives the admitted block, or nil when the send failed for
// any reason (locked wallet, missing key, insufficient balance, fork).
func (ws *Wallets) SendAsync(w *Wallet, source, destination types.Account, amount types.Amount, callback func(types.Block)) {
	ws.queue(func() {
		block := ws.sendAction(w, source, destination, amount)
		if callback != nil {
			callback(block)
		}
	})
}

func (ws *Wallets) sendAction(w *Wallet, source, destination types.Account, amount types.Amount) types.Block {
	priv, err := w.FetchKey(source)
	if err != nil {
		ws.log.Warn("send action refused", "wallet", w.ID.String(), "error", err)
		return nil
	}
	txn := ws.ledger.Store.TxBeginRead()
	info, ok := ws.ledger.Store.AccountGet(txn, source)
	txn.Done()
	if !ok || amount.Cmp(info.Balance) > 0 {
		ws.log.Warn("send action refused", "account", source.EncodeAccount(), "reason", "insufficient balance")
		return nil
	}
	block := &types.SendBlock{
		PreviousHash: info.Head,
		Destination:  destination,
		Balance:      info.Balance.Sub(amount),
	}
	block.Signature = types.Sign(priv, block.Hash())
	work, ok := ws.work(block.Root())
	if !ok {
		return nil
	}
	block.Work = work
	if err := ws.process(block); err != nil {
		ws.log.Warn("send action rejected", "hash", block.Hash().String(), "error", err)
		return nil
	}
	return block
}

// ChangeAsync queues a representative change for source.
func (ws *Wallets) ChangeAsync(w *Wallet, source, representative types.Account, callback func(types.Block)) {
	ws.queue(func() {
		block := ws.changeAction(w, source, representative)
		if callback != nil {
			callback(block)
		}
	})
}

func (ws *Wallets) changeAction(w *Wallet, source, representative types.Account) types.Block {
	priv, err := w.FetchKey(source)
	if err != nil {
		ws.log.Warn("change action refused", "wallet", w.ID.String(), "error", err)
		return nil
	}
	txn := ws.ledger.Store.TxBeginRead()
	info, ok := ws.ledger.Store.AccountGet(txn, source)
	txn.Done()
	if !ok {
		return nil
	}
	block := &types.ChangeBlock{
		PreviousHash:   info.Head,
		Representative: representative,
	}
	block.Signature = types.Sign(priv, block.Hash())
	work, ok := ws.work(block.Root())
	if !ok {
		return nil
	}
	block.Work = work
	if err := ws.process(block); err != nil {
		ws.log.Warn("change action rejected", "hash", block.Hash().String(), "error", err)
		return nil
	}
	return block
}

// ReceiveAsync queues a receive (or open, for unopened accounts) of the
// pending send identified by sendHash into account.
func (ws *Wallets) ReceiveAsync(w *Wallet, account types.Account, sendHash types.BlockHash, callback func(types.Block)) {
	ws.queue(func() {
		block := ws.receiveAction(w, account, sendHash)
		if callback != nil {
			callback(block)
		}
	})
}

func (ws *Wallets) receiveAction(w *Wallet, account types.Account, sendHash types.BlockHash) types.Block {
	priv, err := w.FetchKey(account)
	if err != nil {
		return nil
	}
	txn := ws.ledger.Store.TxBeginRead()
	info, opened := ws.ledger.Store.AccountGet(txn, account)
	_, pendingOK := ws.ledger.Store.PendingGet(txn, account, sendHash)
	txn.Done()
	if !pendingOK {
		return nil
	}
	var block types.Block
	if opened {
		b := &types.ReceiveBlock{PreviousHash: info.Head, Source: sendHash}
		b.Signature = types.Sign(priv, b.Hash())
		block = b
	} else {
		b := &types.OpenBlock{
			Source:         sendHash,
			Representative: w.Representative(nil),
			Account:        account,
		}
		b.Signature = types.Sign(priv, b.Hash())
		block = b
	}
	work, ok := ws.work(block.Root())
	if !ok {
		return nil
	}
	switch b := block.(type) {
	case *types.ReceiveBlock:
		b.Work = work
	case *types.OpenBlock:
		b.Work = work
	}
	if err := ws.process(block); err != nil {
		ws.log.Warn("receive action rejected", "hash", block.Hash().String(), "error", err)
		return nil
	}
	return block
}

// SearchPending scans the ledger for sends addressed to any account of the
// wallet and queues receives for each. Returns false when the wallet is
// locked.
func (ws *Wallets) SearchPending(w *Wallet) bool {
	w.mu.Lock()
	unlocked := w.unlocked
	w.mu.Unlock()
	if !unlocked {
		return false
	}
	type job struct {
		account types.Account
		hash    types.BlockHash
	}
	var jobs []job
	txn := ws.ledger.Store.TxBeginRead()
	for _, account := range w.Accounts(nil) {
		ws.ledger.Store.PendingIterate(txn, account, func(hash types.BlockHash, _ ledger.PendingInfo) bool {
			jobs = append(jobs, job{account: account, hash: hash})
			return true
		})
	}
	txn.Done()
	for _, j := range jobs {
		ws.ReceiveAsync(w, j.account, j.hash, func(block types.Block) {
			if block != nil {
				ws.log.Info("received pending send", "account", j.account.EncodeAccount(), "source", j.hash.String())
			}
		})
	}
	return true
}

// SearchAll runs SearchPending over every registered wallet.
func (ws *Wallets) SearchAll() {
	for _, w := range ws.List() {
		ws.SearchPending(w)
	}
}
