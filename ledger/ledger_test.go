package ledger

import (
	"errors"
	"testing"

	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger(NewStore(storage.NewMemDB()))
	txn := l.Store.TxBeginWrite()
	defer txn.Done()
	if err := l.Initialize(txn); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return l
}

// fund plants a pending send so an account can be opened without walking
// back to genesis.
func fund(t *testing.T, l *Ledger, account types.Account, amount uint64) types.BlockHash {
	t.Helper()
	var sendHash types.BlockHash
	sendHash[0] = byte(account[0] ^ 0x5a)
	sendHash[31] = byte(amount)
	txn := l.Store.TxBeginWrite()
	defer txn.Done()
	err := l.Store.PendingPut(txn, account, sendHash, PendingInfo{
		Source: types.GenesisAccount,
		Amount: types.AmountFromUint64(amount),
	})
	if err != nil {
		t.Fatalf("pending put: %v", err)
	}
	return sendHash
}

func open(t *testing.T, l *Ledger, pair types.KeyPair, source types.BlockHash) *types.OpenBlock {
	t.Helper()
	block := &types.OpenBlock{Source: source, Representative: pair.Public, Account: pair.Public}
	block.Signature = types.Sign(pair.Private, block.Hash())
	txn := l.Store.TxBeginWrite()
	defer txn.Done()
	if _, err := l.Process(txn, block); err != nil {
		t.Fatalf("open: %v", err)
	}
	return block
}

func TestInitializeGenesis(t *testing.T) {
	l := newTestLedger(t)
	txn := l.Store.TxBeginRead()
	defer txn.Done()

	if got := l.Balance(txn, types.GenesisAccount); got.Cmp(types.GenesisAmount) != 0 {
		t.Fatalf("genesis balance %s", got)
	}
	if got := l.Weight(txn, types.GenesisAccount); got.Cmp(types.GenesisAmount) != 0 {
		t.Fatalf("genesis weight %s", got)
	}
	if got := l.Store.FrontierCount(txn); got != 1 {
		t.Fatalf("frontier count %d", got)
	}
	if got := l.Store.Version(txn); got != storeVersion {
		t.Fatalf("store version %d", got)
	}
}

func TestOpenSendReceive(t *testing.T) {
	l := newTestLedger(t)
	alice := types.NewKeyPair()
	bob := types.NewKeyPair()

	aliceOpen := open(t, l, alice, fund(t, l, alice.Public, 100))

	send := &types.SendBlock{
		PreviousHash: aliceOpen.Hash(),
		Destination:  bob.Public,
		Balance:      types.AmountFromUint64(40),
	}
	send.Signature = types.Sign(alice.Private, send.Hash())
	txn := l.Store.TxBeginWrite()
	result, err := l.Process(txn, send)
	txn.Done()
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Account != bob.Public || result.Amount.String() != "60" || !result.Credited {
		t.Fatalf("send result %+v", result)
	}

	txn = l.Store.TxBeginRead()
	if got := l.Balance(txn, alice.Public); got.String() != "40" {
		t.Fatalf("alice balance %s", got)
	}
	if got := l.Pending(txn, bob.Public); got.String() != "60" {
		t.Fatalf("bob pending %s", got)
	}
	if got := l.Weight(txn, alice.Public); got.String() != "40" {
		t.Fatalf("alice weight %s", got)
	}
	txn.Done()

	bobOpen := &types.OpenBlock{Source: send.Hash(), Representative: bob.Public, Account: bob.Public}
	bobOpen.Signature = types.Sign(bob.Private, bobOpen.Hash())
	txn = l.Store.TxBeginWrite()
	if _, err := l.Process(txn, bobOpen); err != nil {
		t.Fatalf("bob open: %v", err)
	}
	txn.Done()

	txn = l.Store.TxBeginRead()
	defer txn.Done()
	if got := l.Balance(txn, bob.Public); got.String() != "60" {
		t.Fatalf("bob balance %s", got)
	}
	if got := l.Pending(txn, bob.Public); !got.IsZero() {
		t.Fatalf("bob pending after open %s", got)
	}
	if got := l.Weight(txn, bob.Public); got.String() != "60" {
		t.Fatalf("bob weight %s", got)
	}
	if amount, ok := l.AmountOf(txn, send.Hash()); !ok || amount.String() != "60" {
		t.Fatalf("amount of send %s %v", amount, ok)
	}
	if owner, ok := l.AccountOf(txn, send.Hash()); !ok || owner != alice.Public {
		t.Fatalf("account of send wrong")
	}
}

func TestProcessRejections(t *testing.T) {
	l := newTestLedger(t)
	alice := types.NewKeyPair()
	bob := types.NewKeyPair()
	aliceOpen := open(t, l, alice, fund(t, l, alice.Public, 100))

	// replay
	txn := l.Store.TxBeginWrite()
	if _, err := l.Process(txn, aliceOpen); !errors.Is(err, ErrOld) {
		t.Fatalf("expected ErrOld, got %v", err)
	}
	txn.Done()

	// bad signature
	send := &types.SendBlock{
		PreviousHash: aliceOpen.Hash(),
		Destination:  bob.Public,
		Balance:      types.AmountFromUint64(40),
	}
	send.Signature = types.Sign(bob.Private, send.Hash())
	txn = l.Store.TxBeginWrite()
	if _, err := l.Process(txn, send); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	txn.Done()

	// overspend
	send.Balance = types.AmountFromUint64(1000)
	send.Signature = types.Sign(alice.Private, send.Hash())
	txn = l.Store.TxBeginWrite()
	if _, err := l.Process(txn, send); !errors.Is(err, ErrOverspend) {
		t.Fatalf("expected ErrOverspend, got %v", err)
	}
	txn.Done()

	// spend properly, then fork off the stale frontier
	good := &types.SendBlock{
		PreviousHash: aliceOpen.Hash(),
		Destination:  bob.Public,
		Balance:      types.AmountFromUint64(50),
	}
	good.Signature = types.Sign(alice.Private, good.Hash())
	txn = l.Store.TxBeginWrite()
	if _, err := l.Process(txn, good); err != nil {
		t.Fatalf("good send: %v", err)
	}
	txn.Done()

	fork := &types.SendBlock{
		PreviousHash: aliceOpen.Hash(),
		Destination:  bob.Public,
		Balance:      types.AmountFromUint64(10),
	}
	fork.Signature = types.Sign(alice.Private, fork.Hash())
	txn = l.Store.TxBeginWrite()
	if _, err := l.Process(txn, fork); !errors.Is(err, ErrFork) {
		t.Fatalf("expected ErrFork, got %v", err)
	}
	txn.Done()

	// gap: previous unknown
	gap := &types.SendBlock{Destination: bob.Public, Balance: types.AmountFromUint64(1)}
	gap.PreviousHash[7] = 0x99
	gap.Signature = types.Sign(alice.Private, gap.Hash())
	txn = l.Store.TxBeginWrite()
	if _, err := l.Process(txn, gap); !errors.Is(err, ErrGapPrevious) {
		t.Fatalf("expected ErrGapPrevious, got %v", err)
	}
	txn.Done()
}

func TestChangeMovesWeight(t *testing.T) {
	l := newTestLedger(t)
	alice := types.NewKeyPair()
	rep := types.NewKeyPair()
	aliceOpen := open(t, l, alice, fund(t, l, alice.Public, 100))

	change := &types.ChangeBlock{PreviousHash: aliceOpen.Hash(), Representative: rep.Public}
	change.Signature = types.Sign(alice.Private, change.Hash())
	txn := l.Store.TxBeginWrite()
	if _, err := l.Process(txn, change); err != nil {
		t.Fatalf("change: %v", err)
	}
	txn.Done()

	txn = l.Store.TxBeginRead()
	defer txn.Done()
	if got := l.Weight(txn, alice.Public); !got.IsZero() {
		t.Fatalf("old rep weight %s", got)
	}
	if got := l.Weight(txn, rep.Public); got.String() != "100" {
		t.Fatalf("new rep weight %s", got)
	}
	info, ok := l.Store.AccountGet(txn, alice.Public)
	if !ok {
		t.Fatalf("account missing")
	}
	if got, ok := l.RepresentativeOf(txn, info); !ok || got != rep.Public {
		t.Fatalf("representative not updated")
	}
}
