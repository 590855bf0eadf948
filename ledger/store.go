package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
)

// Key prefixes. All record keys start with a one-byte bucket tag so a single
// database holds every index and iteration stays confined to one bucket.
var (
	prefixAccount   = []byte{'a'}
	prefixBlock     = []byte{'b'}
	prefixPending   = []byte{'p'}
	prefixWeight    = []byte{'r'}
	prefixUnchecked = []byte{'u'}
	prefixMeta      = []byte{'m'}
)

const storeVersion = 1

var ErrStore = errors.New("ledger: store failure")

// AccountInfo is the per-account head record: the frontier, the block that
// names the representative, the confirmed balance and bookkeeping counters.
type AccountInfo struct {
	Head       types.BlockHash
	RepBlock   types.BlockHash
	Balance    types.Amount
	Modified   uint64
	BlockCount uint64
}

type accountRecord struct {
	Head       []byte
	RepBlock   []byte
	Balance    []byte
	Modified   uint64
	BlockCount uint64
}

// blockRecord is the flat superset of all four block variants plus the
// sideband the ledger needs to answer amount/account queries without
// walking the chain.
type blockRecord struct {
	Kind           uint8
	Previous       []byte
	Source         []byte
	Destination    []byte
	Representative []byte
	Account        []byte
	Balance        []byte
	Signature      []byte
	Work           uint64
	Owner          []byte
	Amount         []byte
}

// PendingInfo describes an unclaimed send addressed to an account.
type PendingInfo struct {
	Source types.Account
	Amount types.Amount
}

type pendingRecord struct {
	Source []byte
	Amount []byte
}

// Txn scopes store access. Reads share the lock; writes are exclusive. The
// zero-cost discipline mirrors an embedded database transaction: handlers
// acquire the right kind up front and release it when done.
type Txn struct {
	store *Store
	write bool
	done  bool
}

func (t *Txn) Done() {
	if t.done {
		return
	}
	t.done = true
	if t.write {
		t.store.lock.Unlock()
	} else {
		t.store.lock.RUnlock()
	}
}

// Store persists accounts, blocks, pending entries and representation
// weights in one key-value database.
type Store struct {
	db   storage.Database
	lock sync.RWMutex
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func (s *Store) TxBeginRead() *Txn {
	s.lock.RLock()
	return &Txn{store: s}
}

func (s *Store) TxBeginWrite() *Txn {
	s.lock.Lock()
	return &Txn{store: s, write: true}
}

func (s *Store) requireWrite(txn *Txn) {
	if txn == nil || !txn.write || txn.done {
		panic("ledger: write outside a write transaction")
	}
}

func (s *Store) requireRead(txn *Txn) {
	if txn == nil || txn.done {
		panic("ledger: read outside a transaction")
	}
}

func key(prefix []byte, parts ...[]byte) []byte {
	out := append([]byte(nil), prefix...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// --- accounts ---

func (s *Store) AccountGet(txn *Txn, account types.Account) (AccountInfo, bool) {
	s.requireRead(txn)
	raw, err := s.db.Get(key(prefixAccount, account[:]))
	if err != nil {
		return AccountInfo{}, false
	}
	info, err := decodeAccountRecord(raw)
	if err != nil {
		return AccountInfo{}, false
	}
	return info, true
}

func (s *Store) AccountPut(txn *Txn, account types.Account, info AccountInfo) error {
	s.requireWrite(txn)
	record := accountRecord{
		Head:       info.Head.Bytes(),
		RepBlock:   info.RepBlock.Bytes(),
		Balance:    info.Balance.Bytes(),
		Modified:   info.Modified,
		BlockCount: info.BlockCount,
	}
	raw, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return s.db.Put(key(prefixAccount, account[:]), raw)
}

func decodeAccountRecord(raw []byte) (AccountInfo, error) {
	var record accountRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return AccountInfo{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	head, err := types.UnionFromBytes(record.Head)
	if err != nil {
		return AccountInfo{}, err
	}
	repBlock, err := types.UnionFromBytes(record.RepBlock)
	if err != nil {
		return AccountInfo{}, err
	}
	balance, err := types.AmountFromBytes(record.Balance)
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{Head: head, RepBlock: repBlock, Balance: balance, Modified: record.Modified, BlockCount: record.BlockCount}, nil
}

// LatestIterate walks accounts in key order starting at start, yielding each
// account and its info until fn returns false.
func (s *Store) LatestIterate(txn *Txn, start types.Account, fn func(types.Account, AccountInfo) bool) {
	s.requireRead(txn)
	it := s.db.NewIterator(&storage.Range{Start: key(prefixAccount, start[:]), Limit: prefixKeyLimit(prefixAccount)})
	defer it.Release()
	for it.Next() {
		account, err := types.UnionFromBytes(it.Key()[1:])
		if err != nil {
			continue
		}
		info, err := decodeAccountRecord(it.Value())
		if err != nil {
			continue
		}
		if !fn(account, info) {
			return
		}
	}
}

func (s *Store) FrontierCount(txn *Txn) uint64 {
	s.requireRead(txn)
	return s.countPrefix(prefixAccount)
}

// --- blocks ---

// StoredBlock pairs a reconstructed block with its ledger sideband.
type StoredBlock struct {
	Block types.Block
	// Owner is the account whose chain the block extends.
	Owner types.Account
	// Amount is the value moved by the block; zero for change blocks.
	Amount types.Amount
}

func (s *Store) BlockExists(txn *Txn, hash types.BlockHash) bool {
	s.requireRead(txn)
	ok, err := s.db.Has(key(prefixBlock, hash[:]))
	return err == nil && ok
}

func (s *Store) BlockGet(txn *Txn, hash types.BlockHash) (StoredBlock, bool) {
	s.requireRead(txn)
	raw, err := s.db.Get(key(prefixBlock, hash[:]))
	if err != nil {
		return StoredBlock{}, false
	}
	stored, err := decodeBlockRecord(raw)
	if err != nil {
		return StoredBlock{}, false
	}
	return stored, true
}

func (s *Store) BlockPut(txn *Txn, hash types.BlockHash, stored StoredBlock) error {
	s.requireWrite(txn)
	record, err := encodeBlockRecord(stored)
	if err != nil {
		return err
	}
	return s.db.Put(key(prefixBlock, hash[:]), record)
}

func (s *Store) BlockCount(txn *Txn) uint64 {
	s.requireRead(txn)
	return s.countPrefix(prefixBlock)
}

func encodeBlockRecord(stored StoredBlock) ([]byte, error) {
	record := blockRecord{
		Kind:      uint8(stored.Block.Type()),
		Signature: make([]byte, 64),
		Work:      stored.Block.WorkValue(),
		Owner:     stored.Owner.Bytes(),
		Amount:    stored.Amount.Bytes(),
	}
	sig := stored.Block.BlockSignature()
	copy(record.Signature, sig[:])
	switch b := stored.Block.(type) {
	case *types.SendBlock:
		record.Previous = b.PreviousHash.Bytes()
		record.Destination = b.Destination.Bytes()
		record.Balance = b.Balance.Bytes()
	case *types.ReceiveBlock:
		record.Previous = b.PreviousHash.Bytes()
		record.Source = b.Source.Bytes()
	case *types.OpenBlock:
		record.Source = b.Source.Bytes()
		record.Representative = b.Representative.Bytes()
		record.Account = b.Account.Bytes()
	case *types.ChangeBlock:
		record.Previous = b.PreviousHash.Bytes()
		record.Representative = b.Representative.Bytes()
	default:
		return nil, fmt.Errorf("%w: unknown block variant", ErrStore)
	}
	raw, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return raw, nil
}

func decodeBlockRecord(raw []byte) (StoredBlock, error) {
	var record blockRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return StoredBlock{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var sig types.Signature
	copy(sig[:], record.Signature)
	union := func(b []byte) types.Union256 {
		var u types.Union256
		copy(u[:], b)
		return u
	}
	var block types.Block
	switch types.BlockType(record.Kind) {
	case types.BlockTypeSend:
		balance, err := types.AmountFromBytes(record.Balance)
		if err != nil {
			return StoredBlock{}, err
		}
		block = &types.SendBlock{
			PreviousHash: union(record.Previous),
			Destination:  union(record.Destination),
			Balance:      balance,
			Signature:    sig,
			Work:         record.Work,
		}
	case types.BlockTypeReceive:
		block = &types.ReceiveBlock{
			PreviousHash: union(record.Previous),
			Source:       union(record.Source),
			Signature:    sig,
			Work:         record.Work,
		}
	case types.BlockTypeOpen:
		block = &types.OpenBlock{
			Source:         union(record.Source),
			Representative: union(record.Representative),
			Account:        union(record.Account),
			Signature:      sig,
			Work:           record.Work,
		}
	case types.BlockTypeChange:
		block = &types.ChangeBlock{
			PreviousHash:   union(record.Previous),
			Representative: union(record.Representative),
			Signature:      sig,
			Work:           record.Work,
		}
	default:
		return StoredBlock{}, fmt.Errorf("%w: unknown block kind %d", ErrStore, record.Kind)
	}
	amount, err := types.AmountFromBytes(record.Amount)
	if err != nil {
		return StoredBlock{}, err
	}
	return StoredBlock{Block: block, Owner: union(record.Owner), Amount: amount}, nil
}

// --- pending ---

func pendingKey(destination types.Account, hash types.BlockHash) []byte {
	return key(prefixPending, destination[:], hash[:])
}

func (s *Store) PendingPut(txn *Txn, destination types.Account, hash types.BlockHash, info PendingInfo) error {
	s.requireWrite(txn)
	record := pendingRecord{Source: info.Source.Bytes(), Amount: info.Amount.Bytes()}
	raw, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return s.db.Put(pendingKey(destination, hash), raw)
}

func (s *Store) PendingGet(txn *Txn, destination types.Account, hash types.BlockHash) (PendingInfo, bool) {
	s.requireRead(txn)
	raw, err := s.db.Get(pendingKey(destination, hash))
	if err != nil {
		return PendingInfo{}, false
	}
	info, err := decodePendingRecord(raw)
	if err != nil {
		return PendingInfo{}, false
	}
	return info, true
}

func (s *Store) PendingDelete(txn *Txn, destination types.Account, hash types.BlockHash) error {
	s.requireWrite(txn)
	return s.db.Delete(pendingKey(destination, hash))
}

func decodePendingRecord(raw []byte) (PendingInfo, error) {
	var record pendingRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return PendingInfo{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	source, err := types.UnionFromBytes(record.Source)
	if err != nil {
		return PendingInfo{}, err
	}
	amount, err := types.AmountFromBytes(record.Amount)
	if err != nil {
		return PendingInfo{}, err
	}
	return PendingInfo{Source: source, Amount: amount}, nil
}

// PendingIterate walks the pending index over the half-open key range for
// one destination account.
func (s *Store) PendingIterate(txn *Txn, destination types.Account, fn func(types.BlockHash, PendingInfo) bool) {
	s.requireRead(txn)
	it := s.db.NewIterator(storage.PrefixRange(key(prefixPending, destination[:])))
	defer it.Release()
	for it.Next() {
		k := it.Key()
		if len(k) != 1+32+32 {
			continue
		}
		hash, err := types.UnionFromBytes(k[1+32:])
		if err != nil {
			continue
		}
		info, err := decodePendingRecord(it.Value())
		if err != nil {
			continue
		}
		if !fn(hash, info) {
			return
		}
	}
}

// --- representation weights ---

func (s *Store) WeightGet(txn *Txn, representative types.Account) types.Amount {
	s.requireRead(txn)
	raw, err := s.db.Get(key(prefixWeight, representative[:]))
	if err != nil {
		return types.Amount{}
	}
	weight, err := types.AmountFromBytes(raw)
	if err != nil {
		return types.Amount{}
	}
	return weight
}

func (s *Store) weightPut(txn *Txn, representative types.Account, weight types.Amount) error {
	s.requireWrite(txn)
	if weight.IsZero() {
		return s.db.Delete(key(prefixWeight, representative[:]))
	}
	return s.db.Put(key(prefixWeight, representative[:]), weight.Bytes())
}

func (s *Store) WeightAdd(txn *Txn, representative types.Account, amount types.Amount) error {
	return s.weightPut(txn, representative, s.WeightGet(txn, representative).Add(amount))
}

func (s *Store) WeightSub(txn *Txn, representative types.Account, amount types.Amount) error {
	return s.weightPut(txn, representative, s.WeightGet(txn, representative).Sub(amount))
}

// --- unchecked ---

// UncheckedPut stashes a block whose predecessor has not arrived yet.
func (s *Store) UncheckedPut(txn *Txn, hash types.BlockHash, stored StoredBlock) error {
	s.requireWrite(txn)
	record, err := encodeBlockRecord(stored)
	if err != nil {
		return err
	}
	return s.db.Put(key(prefixUnchecked, hash[:]), record)
}

func (s *Store) UncheckedCount(txn *Txn) uint64 {
	s.requireRead(txn)
	return s.countPrefix(prefixUnchecked)
}

// --- meta ---

func (s *Store) Version(txn *Txn) uint64 {
	s.requireRead(txn)
	raw, err := s.db.Get(key(prefixMeta, []byte("version")))
	if err != nil || len(raw) != 8 {
		return 0
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return v
}

func (s *Store) setVersion(txn *Txn, version uint64) error {
	s.requireWrite(txn)
	raw := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		raw[i] = byte(version)
		version >>= 8
	}
	return s.db.Put(key(prefixMeta, []byte("version")), raw)
}

func (s *Store) countPrefix(prefix []byte) uint64 {
	it := s.db.NewIterator(&storage.Range{Start: prefix, Limit: prefixKeyLimit(prefix)})
	defer it.Release()
	var count uint64
	for it.Next() {
		count++
	}
	return count
}

func prefixKeyLimit(prefix []byte) []byte {
	limit := append([]byte(nil), prefix...)
	limit[len(limit)-1]++
	return limit
}
