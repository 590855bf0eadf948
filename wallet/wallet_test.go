package wallet

import (
	"log/slog"
	"testing"
	"time"

	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
)

func newTestWallets(t *testing.T) (*Wallets, *ledger.Ledger) {
	t.Helper()
	db := storage.NewMemDB()
	l := ledger.NewLedger(ledger.NewStore(db))
	txn := l.Store.TxBeginWrite()
	err := l.Initialize(txn)
	txn.Done()
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	process := func(block types.Block) error {
		txn := l.Store.TxBeginWrite()
		defer txn.Done()
		_, err := l.Process(txn, block)
		return err
	}
	work := func(types.BlockHash) (uint64, bool) { return 1, true }
	ws, err := NewWallets(db, l, work, process, slog.Default())
	if err != nil {
		t.Fatalf("wallets: %v", err)
	}
	t.Cleanup(ws.Stop)
	return ws, l
}

func TestWalletPasswordLifecycle(t *testing.T) {
	ws, _ := newTestWallets(t)
	w, err := ws.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// fresh wallets are unlocked under the empty password
	if !w.ValidPassword(nil) {
		t.Fatalf("new wallet must be unlocked")
	}
	if err := w.Rekey(nil, "horse"); err != nil {
		t.Fatalf("rekey: %v", err)
	}
	if w.EnterPassword("wrong") {
		t.Fatalf("wrong password accepted")
	}
	if w.ValidPassword(nil) {
		t.Fatalf("wallet must lock on a wrong password")
	}
	if w.DeterministicInsert(nil) != (types.Account{}) {
		t.Fatalf("locked wallet must not derive keys")
	}
	if !w.EnterPassword("horse") {
		t.Fatalf("correct password rejected")
	}
	if !w.ValidPassword(nil) {
		t.Fatalf("wallet must unlock")
	}
}

func TestWalletKeysRoundTrip(t *testing.T) {
	ws, _ := newTestWallets(t)
	w, err := ws.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pair := types.NewKeyPair()
	if got := w.InsertAdhoc(pair.Private); got != pair.Public {
		t.Fatalf("adhoc insert returned %s", got)
	}
	priv, err := w.FetchKey(pair.Public)
	if err != nil || priv != pair.Private {
		t.Fatalf("fetch key: %v", err)
	}
	if !w.Contains(nil, pair.Public) {
		t.Fatalf("wallet must contain inserted account")
	}

	first := w.DeterministicInsert(nil)
	second := w.DeterministicInsert(nil)
	if first.IsZero() || second.IsZero() || first == second {
		t.Fatalf("deterministic accounts %s %s", first, second)
	}
	if got := len(w.Accounts(nil)); got != 3 {
		t.Fatalf("account count %d", got)
	}
}

func TestWalletsRegistryReopen(t *testing.T) {
	db := storage.NewMemDB()
	l := ledger.NewLedger(ledger.NewStore(db))
	work := func(types.BlockHash) (uint64, bool) { return 1, true }
	process := func(types.Block) error { return nil }

	ws, err := NewWallets(db, l, work, process, slog.Default())
	if err != nil {
		t.Fatalf("wallets: %v", err)
	}
	w, err := ws.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pair := types.NewKeyPair()
	w.InsertAdhoc(pair.Private)
	ws.Stop()

	reopened, err := NewWallets(db, l, work, process, slog.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Stop()
	again, ok := reopened.Open(w.ID)
	if !ok {
		t.Fatalf("wallet lost across reopen")
	}
	if again.ValidPassword(nil) {
		t.Fatalf("reopened wallet must start locked")
	}
	if !again.EnterPassword("") {
		t.Fatalf("empty password must unlock")
	}
	if !again.Contains(nil, pair.Public) {
		t.Fatalf("key lost across reopen")
	}

	reopened.Destroy(w.ID)
	if _, ok := reopened.Open(w.ID); ok {
		t.Fatalf("destroyed wallet still open")
	}
}

func TestMoveBetweenWallets(t *testing.T) {
	ws, _ := newTestWallets(t)
	source, _ := ws.Create()
	target, _ := ws.Create()
	pair := types.NewKeyPair()
	source.InsertAdhoc(pair.Private)

	if err := target.MoveFrom(nil, source, []types.Account{pair.Public}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if source.Contains(nil, pair.Public) {
		t.Fatalf("source still holds the account")
	}
	priv, err := target.FetchKey(pair.Public)
	if err != nil || priv != pair.Private {
		t.Fatalf("target fetch: %v", err)
	}

	// moving a missing account fails the whole move
	if err := target.MoveFrom(nil, source, []types.Account{pair.Public}); err == nil {
		t.Fatalf("move of a missing account must fail")
	}
}

func TestFreeAccounts(t *testing.T) {
	ws, _ := newTestWallets(t)
	w, _ := ws.Create()
	a := w.DeterministicInsert(nil)
	b := w.DeterministicInsert(nil)

	w.InitFreeAccounts(nil)
	seen := map[types.Account]bool{}
	for {
		account, ok := w.TakeFreeAccount()
		if !ok {
			break
		}
		seen[account] = true
	}
	if !seen[a] || !seen[b] || len(seen) != 2 {
		t.Fatalf("free pool %v", seen)
	}
	w.ReturnFreeAccount(a)
	if got, ok := w.TakeFreeAccount(); !ok || got != a {
		t.Fatalf("returned account not available")
	}
}

func TestSendAsync(t *testing.T) {
	ws, l := newTestWallets(t)
	w, _ := ws.Create()
	alice := types.NewKeyPair()
	bob := types.NewKeyPair()
	w.InsertAdhoc(alice.Private)

	// open alice with a planted pending credit
	var sendHash types.BlockHash
	sendHash[0] = 0x77
	txn := l.Store.TxBeginWrite()
	err := l.Store.PendingPut(txn, alice.Public, sendHash, ledger.PendingInfo{
		Source: types.GenesisAccount,
		Amount: types.AmountFromUint64(100),
	})
	txn.Done()
	if err != nil {
		t.Fatalf("pending put: %v", err)
	}
	openBlock := &types.OpenBlock{Source: sendHash, Representative: alice.Public, Account: alice.Public}
	openBlock.Signature = types.Sign(alice.Private, openBlock.Hash())
	txn = l.Store.TxBeginWrite()
	_, err = l.Process(txn, openBlock)
	txn.Done()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	done := make(chan types.Block, 1)
	ws.SendAsync(w, alice.Public, bob.Public, types.AmountFromUint64(30), func(block types.Block) {
		done <- block
	})
	select {
	case block := <-done:
		if block == nil {
			t.Fatalf("send failed")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("send action timed out")
	}

	txn = l.Store.TxBeginRead()
	defer txn.Done()
	if got := l.Balance(txn, alice.Public); got.String() != "70" {
		t.Fatalf("balance after send %s", got)
	}
	if got := l.Pending(txn, bob.Public); got.String() != "30" {
		t.Fatalf("pending after send %s", got)
	}

	// a send beyond the balance reports a nil block
	ws.SendAsync(w, alice.Public, bob.Public, types.AmountFromUint64(1000), func(block types.Block) {
		done <- block
	})
	select {
	case block := <-done:
		if block != nil {
			t.Fatalf("overspend must fail")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("send action timed out")
	}
}

func TestDestroyRemovesAllRecords(t *testing.T) {
	db := storage.NewMemDB()
	// an id of all 0xff bytes sits at the top of the key space, where a
	// naive one-byte increment of the range limit would wrap to nothing
	var id types.WalletID
	for i := range id {
		id[i] = 0xff
	}
	w, err := newWallet(db, id)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	pair := types.NewKeyPair()
	if w.InsertAdhoc(pair.Private).IsZero() {
		t.Fatalf("insert failed")
	}

	w.destroy()
	it := db.NewIterator(&storage.Range{Start: []byte{'W'}, Limit: []byte{'W' + 1}})
	defer it.Release()
	for it.Next() {
		t.Fatalf("record survived destroy: %x", it.Key())
	}
}
