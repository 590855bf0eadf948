package ledger

import (
	"errors"
	"time"

	"github.com/SeedCredits/raiblocks/types"
)

// Admission failures. Gap errors mean the block may become valid once its
// dependency arrives; the rest are permanent rejections.
var (
	ErrOld          = errors.New("ledger: block already present")
	ErrGapPrevious  = errors.New("ledger: previous block missing")
	ErrGapSource    = errors.New("ledger: source block missing")
	ErrFork         = errors.New("ledger: block does not extend the frontier")
	ErrBadSignature = errors.New("ledger: bad signature")
	ErrUnreceivable = errors.New("ledger: source not pending for this account")
	ErrOverspend    = errors.New("ledger: send exceeds balance")
	ErrAccountOpen  = errors.New("ledger: account already open")
)

// ProcessResult reports the credit side of an admitted block so block
// observers can be notified: for sends the destination and moved amount,
// for receives and opens the receiving account.
type ProcessResult struct {
	Account types.Account
	Amount  types.Amount
	// Credited marks results that increased Account's receivable or
	// received funds (send targets, receives, opens).
	Credited bool
}

// Ledger answers balance and history queries and admits new blocks.
type Ledger struct {
	Store *Store
}

func NewLedger(store *Store) *Ledger {
	return &Ledger{Store: store}
}

// Initialize writes the genesis record set if the store is empty.
func (l *Ledger) Initialize(txn *Txn) error {
	if _, ok := l.Store.AccountGet(txn, types.GenesisAccount); ok {
		return nil
	}
	open := &types.OpenBlock{
		Source:         types.GenesisAccount,
		Representative: types.GenesisAccount,
		Account:        types.GenesisAccount,
	}
	hash := open.Hash()
	stored := StoredBlock{Block: open, Owner: types.GenesisAccount, Amount: types.GenesisAmount}
	if err := l.Store.BlockPut(txn, hash, stored); err != nil {
		return err
	}
	info := AccountInfo{
		Head:       hash,
		RepBlock:   hash,
		Balance:    types.GenesisAmount,
		Modified:   uint64(time.Now().Unix()),
		BlockCount: 1,
	}
	if err := l.Store.AccountPut(txn, types.GenesisAccount, info); err != nil {
		return err
	}
	if err := l.Store.WeightAdd(txn, types.GenesisAccount, types.GenesisAmount); err != nil {
		return err
	}
	return l.Store.setVersion(txn, storeVersion)
}

// Balance returns the confirmed balance of an account, zero when the
// account has no chain.
func (l *Ledger) Balance(txn *Txn, account types.Account) types.Amount {
	info, ok := l.Store.AccountGet(txn, account)
	if !ok {
		return types.Amount{}
	}
	return info.Balance
}

// Pending sums the unclaimed sends addressed to an account.
func (l *Ledger) Pending(txn *Txn, account types.Account) types.Amount {
	var total types.Amount
	l.Store.PendingIterate(txn, account, func(_ types.BlockHash, info PendingInfo) bool {
		total = total.Add(info.Amount)
		return true
	})
	return total
}

// Weight returns the voting weight delegated to a representative.
func (l *Ledger) Weight(txn *Txn, representative types.Account) types.Amount {
	return l.Store.WeightGet(txn, representative)
}

// AccountOf returns the account whose chain contains the block.
func (l *Ledger) AccountOf(txn *Txn, hash types.BlockHash) (types.Account, bool) {
	stored, ok := l.Store.BlockGet(txn, hash)
	if !ok {
		return types.Account{}, false
	}
	return stored.Owner, true
}

// AmountOf returns the value moved by the block; zero for change blocks.
func (l *Ledger) AmountOf(txn *Txn, hash types.BlockHash) (types.Amount, bool) {
	stored, ok := l.Store.BlockGet(txn, hash)
	if !ok {
		return types.Amount{}, false
	}
	return stored.Amount, true
}

// RepresentativeOf resolves the representative named by an account's rep
// block.
func (l *Ledger) RepresentativeOf(txn *Txn, info AccountInfo) (types.Account, bool) {
	stored, ok := l.Store.BlockGet(txn, info.RepBlock)
	if !ok {
		return types.Account{}, false
	}
	switch b := stored.Block.(type) {
	case *types.OpenBlock:
		return b.Representative, true
	case *types.ChangeBlock:
		return b.Representative, true
	default:
		return types.Account{}, false
	}
}

// Process validates and applies one block under a write transaction.
func (l *Ledger) Process(txn *Txn, block types.Block) (ProcessResult, error) {
	hash := block.Hash()
	if l.Store.BlockExists(txn, hash) {
		return ProcessResult{}, ErrOld
	}
	switch b := block.(type) {
	case *types.SendBlock:
		return l.processSend(txn, b, hash)
	case *types.ReceiveBlock:
		return l.processReceive(txn, b, hash)
	case *types.OpenBlock:
		return l.processOpen(txn, b, hash)
	case *types.ChangeBlock:
		return l.processChange(txn, b, hash)
	default:
		return ProcessResult{}, ErrBadSignature
	}
}

func (l *Ledger) chainOwner(txn *Txn, previous types.BlockHash) (types.Account, AccountInfo, error) {
	prev, ok := l.Store.BlockGet(txn, previous)
	if !ok {
		return types.Account{}, AccountInfo{}, ErrGapPrevious
	}
	info, ok := l.Store.AccountGet(txn, prev.Owner)
	if !ok {
		return types.Account{}, AccountInfo{}, ErrGapPrevious
	}
	if info.Head != previous {
		return types.Account{}, AccountInfo{}, ErrFork
	}
	return prev.Owner, info, nil
}

func (l *Ledger) advance(txn *Txn, owner types.Account, info AccountInfo, hash types.BlockHash, balance types.Amount, repBlock types.BlockHash) error {
	info.Head = hash
	info.Balance = balance
	info.Modified = uint64(time.Now().Unix())
	info.BlockCount++
	if !repBlock.IsZero() {
		info.RepBlock = repBlock
	}
	return l.Store.AccountPut(txn, owner, info)
}

func (l *Ledger) processSend(txn *Txn, b *types.SendBlock, hash types.BlockHash) (ProcessResult, error) {
	owner, info, err := l.chainOwner(txn, b.PreviousHash)
	if err != nil {
		return ProcessResult{}, err
	}
	if !types.Verify(owner, hash, b.Signature) {
		return ProcessResult{}, ErrBadSignature
	}
	if b.Balance.Cmp(info.Balance) > 0 {
		return ProcessResult{}, ErrOverspend
	}
	amount := info.Balance.Sub(b.Balance)
	if err := l.Store.BlockPut(txn, hash, StoredBlock{Block: b, Owner: owner, Amount: amount}); err != nil {
		return ProcessResult{}, err
	}
	if err := l.advance(txn, owner, info, hash, b.Balance, types.BlockHash{}); err != nil {
		return ProcessResult{}, err
	}
	if err := l.Store.PendingPut(txn, b.Destination, hash, PendingInfo{Source: owner, Amount: amount}); err != nil {
		return ProcessResult{}, err
	}
	if rep, ok := l.RepresentativeOf(txn, info); ok {
		if err := l.Store.WeightSub(txn, rep, amount); err != nil {
			return ProcessResult{}, err
		}
	}
	return ProcessResult{Account: b.Destination, Amount: amount, Credited: true}, nil
}

func (l *Ledger) processReceive(txn *Txn, b *types.ReceiveBlock, hash types.BlockHash) (ProcessResult, error) {
	owner, info, err := l.chainOwner(txn, b.PreviousHash)
	if err != nil {
		return ProcessResult{}, err
	}
	if !types.Verify(owner, hash, b.Signature) {
		return ProcessResult{}, ErrBadSignature
	}
	pending, ok := l.Store.PendingGet(txn, owner, b.Source)
	if !ok {
		if !l.Store.BlockExists(txn, b.Source) {
			return ProcessResult{}, ErrGapSource
		}
		return ProcessResult{}, ErrUnreceivable
	}
	balance := info.Balance.Add(pending.Amount)
	if err := l.Store.BlockPut(txn, hash, StoredBlock{Block: b, Owner: owner, Amount: pending.Amount}); err != nil {
		return ProcessResult{}, err
	}
	if err := l.advance(txn, owner, info, hash, balance, types.BlockHash{}); err != nil {
		return ProcessResult{}, err
	}
	if err := l.Store.PendingDelete(txn, owner, b.Source); err != nil {
		return ProcessResult{}, err
	}
	if rep, ok := l.RepresentativeOf(txn, info); ok {
		if err := l.Store.WeightAdd(txn, rep, pending.Amount); err != nil {
			return ProcessResult{}, err
		}
	}
	return ProcessResult{Account: owner, Amount: pending.Amount, Credited: true}, nil
}

func (l *Ledger) processOpen(txn *Txn, b *types.OpenBlock, hash types.BlockHash) (ProcessResult, error) {
	if _, ok := l.Store.AccountGet(txn, b.Account); ok {
		return ProcessResult{}, ErrAccountOpen
	}
	if !types.Verify(b.Account, hash, b.Signature) {
		return ProcessResult{}, ErrBadSignature
	}
	pending, ok := l.Store.PendingGet(txn, b.Account, b.Source)
	if !ok {
		if !l.Store.BlockExists(txn, b.Source) {
			return ProcessResult{}, ErrGapSource
		}
		return ProcessResult{}, ErrUnreceivable
	}
	if err := l.Store.BlockPut(txn, hash, StoredBlock{Block: b, Owner: b.Account, Amount: pending.Amount}); err != nil {
		return ProcessResult{}, err
	}
	info := AccountInfo{
		Head:       hash,
		RepBlock:   hash,
		Balance:    pending.Amount,
		Modified:   uint64(time.Now().Unix()),
		BlockCount: 1,
	}
	if err := l.Store.AccountPut(txn, b.Account, info); err != nil {
		return ProcessResult{}, err
	}
	if err := l.Store.PendingDelete(txn, b.Account, b.Source); err != nil {
		return ProcessResult{}, err
	}
	if err := l.Store.WeightAdd(txn, b.Representative, pending.Amount); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Account: b.Account, Amount: pending.Amount, Credited: true}, nil
}

func (l *Ledger) processChange(txn *Txn, b *types.ChangeBlock, hash types.BlockHash) (ProcessResult, error) {
	owner, info, err := l.chainOwner(txn, b.PreviousHash)
	if err != nil {
		return ProcessResult{}, err
	}
	if !types.Verify(owner, hash, b.Signature) {
		return ProcessResult{}, ErrBadSignature
	}
	if err := l.Store.BlockPut(txn, hash, StoredBlock{Block: b, Owner: owner}); err != nil {
		return ProcessResult{}, err
	}
	if rep, ok := l.RepresentativeOf(txn, info); ok {
		if err := l.Store.WeightSub(txn, rep, info.Balance); err != nil {
			return ProcessResult{}, err
		}
	}
	if err := l.Store.WeightAdd(txn, b.Representative, info.Balance); err != nil {
		return ProcessResult{}, err
	}
	if err := l.advance(txn, owner, info, hash, info.Balance, hash); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Account: owner}, nil
}
