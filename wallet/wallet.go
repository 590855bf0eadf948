package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
)

var (
	ErrLocked     = errors.New("wallet: locked")
	ErrNotPresent = errors.New("wallet: account not in wallet")
	ErrBadKey     = errors.New("wallet: corrupt key entry")
)

// Storage layout: W || wallet id || tag || suffix. Metadata fields live
// under tag 0; per-account encrypted keys under tag 1. The wallet key
// encrypts the seed and every entry; the password only ever encrypts the
// wallet key, so rekeying touches a single record.
const (
	tagMeta  = 0x00
	tagEntry = 0x01

	fieldSalt           = 0x01
	fieldCheck          = 0x02
	fieldWalletKey      = 0x03
	fieldSeed           = 0x04
	fieldIndex          = 0x05
	fieldRepresentative = 0x06
)

// Wallet is an encrypted, password-locked container of private keys plus
// per-wallet settings. The decrypted wallet key is held only in memory
// after a successful password entry.
type Wallet struct {
	ID types.WalletID

	mu       sync.Mutex
	db       storage.Database
	session  [32]byte
	unlocked bool

	// free accounts reserved for payment flows
	free map[types.Account]struct{}
}

func metaKey(id types.WalletID, field byte) []byte {
	out := append([]byte{'W'}, id[:]...)
	return append(out, tagMeta, field)
}

func entryKey(id types.WalletID, account types.Account) []byte {
	out := append([]byte{'W'}, id[:]...)
	out = append(out, tagEntry)
	return append(out, account[:]...)
}

func derivePasswordKey(password string, salt [32]byte) [32]byte {
	digest, _ := blake2b.New256(nil)
	digest.Write([]byte(password))
	digest.Write(salt[:])
	var key [32]byte
	copy(key[:], digest.Sum(nil))
	return key
}

func entryIV(account types.Account) []byte {
	sum := blake2b.Sum256(account[:])
	return sum[:aes.BlockSize]
}

func ctrCrypt(key [32]byte, iv []byte, data []byte) []byte {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out
}

// newWallet initializes the store records for a fresh wallet: random salt,
// wallet key and seed, empty password, the genesis account as the default
// representative.
func newWallet(db storage.Database, id types.WalletID) (*Wallet, error) {
	var salt, walletKey, seed [32]byte
	for _, b := range [][]byte{salt[:], walletKey[:], seed[:]} {
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
	}
	w := &Wallet{ID: id, db: db, free: make(map[types.Account]struct{})}
	passKey := derivePasswordKey("", salt)
	check := blake2b.Sum256(walletKey[:])
	records := map[byte][]byte{
		fieldSalt:           salt[:],
		fieldCheck:          check[:],
		fieldWalletKey:      ctrCrypt(passKey, salt[:aes.BlockSize], walletKey[:]),
		fieldSeed:           ctrCrypt(walletKey, salt[16:], seed[:]),
		fieldIndex:          {0, 0, 0, 0},
		fieldRepresentative: types.GenesisAccount.Bytes(),
	}
	for field, value := range records {
		if err := db.Put(metaKey(id, field), value); err != nil {
			return nil, err
		}
	}
	w.session = walletKey
	w.unlocked = true
	return w, nil
}

// openWallet attaches to existing records; the wallet starts locked.
func openWallet(db storage.Database, id types.WalletID) *Wallet {
	return &Wallet{ID: id, db: db, free: make(map[types.Account]struct{})}
}

func (w *Wallet) meta(field byte) ([]byte, error) {
	return w.db.Get(metaKey(w.ID, field))
}

func (w *Wallet) salt() ([32]byte, error) {
	var salt [32]byte
	raw, err := w.meta(fieldSalt)
	if err != nil || len(raw) != 32 {
		return salt, fmt.Errorf("wallet: missing salt")
	}
	copy(salt[:], raw)
	return salt, nil
}

// EnterPassword attempts to unlock the wallet. A wrong password locks it.
func (w *Wallet) EnterPassword(password string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	salt, err := w.salt()
	if err != nil {
		return false
	}
	cipherKey, err := w.meta(fieldWalletKey)
	if err != nil || len(cipherKey) != 32 {
		return false
	}
	check, err := w.meta(fieldCheck)
	if err != nil || len(check) != 32 {
		return false
	}
	passKey := derivePasswordKey(password, salt)
	var candidate [32]byte
	copy(candidate[:], ctrCrypt(passKey, salt[:aes.BlockSize], cipherKey))
	sum := blake2b.Sum256(candidate[:])
	if string(sum[:]) != string(check) {
		w.unlocked = false
		w.session = [32]byte{}
		return false
	}
	w.session = candidate
	w.unlocked = true
	return true
}

// ValidPassword reports whether the wallet is currently unlocked.
func (w *Wallet) ValidPassword(txn *ledger.Txn) bool {
	_ = txn
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unlocked
}

// Rekey re-encrypts the wallet key under a new password.
func (w *Wallet) Rekey(txn *ledger.Txn, password string) error {
	_ = txn
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.unlocked {
		return ErrLocked
	}
	salt, err := w.salt()
	if err != nil {
		return err
	}
	passKey := derivePasswordKey(password, salt)
	return w.db.Put(metaKey(w.ID, fieldWalletKey), ctrCrypt(passKey, salt[:aes.BlockSize], w.session[:]))
}

func (w *Wallet) seed() (types.RawKey, error) {
	if !w.unlocked {
		return types.RawKey{}, ErrLocked
	}
	salt, err := w.salt()
	if err != nil {
		return types.RawKey{}, err
	}
	raw, err := w.meta(fieldSeed)
	if err != nil || len(raw) != 32 {
		return types.RawKey{}, fmt.Errorf("wallet: missing seed")
	}
	var seed types.RawKey
	copy(seed[:], ctrCrypt(w.session, salt[16:], raw))
	return seed, nil
}

func (w *Wallet) index() uint32 {
	raw, err := w.meta(fieldIndex)
	if err != nil || len(raw) != 4 {
		return 0
	}
	return uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
}

func (w *Wallet) setIndex(index uint32) error {
	return w.db.Put(metaKey(w.ID, fieldIndex), []byte{byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)})
}

func (w *Wallet) insertKey(priv types.RawKey) (types.Account, error) {
	pair := types.KeyPairFromPrivate(priv)
	cipherText := ctrCrypt(w.session, entryIV(pair.Public), priv[:])
	if err := w.db.Put(entryKey(w.ID, pair.Public), cipherText); err != nil {
		return types.Account{}, err
	}
	return pair.Public, nil
}

// InsertAdhoc stores an externally supplied private key. Returns the zero
// account when the wallet is locked.
func (w *Wallet) InsertAdhoc(priv types.RawKey) types.Account {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.unlocked {
		return types.Account{}
	}
	account, err := w.insertKey(priv)
	if err != nil {
		return types.Account{}
	}
	return account
}

// DeterministicInsert derives the next account from the wallet seed.
// Returns the zero account when the wallet is locked.
func (w *Wallet) DeterministicInsert(txn *ledger.Txn) types.Account {
	_ = txn
	w.mu.Lock()
	defer w.mu.Unlock()
	seed, err := w.seed()
	if err != nil {
		return types.Account{}
	}
	index := w.index()
	priv := types.DeriveKey(seed, index)
	account, err := w.insertKey(priv)
	if err != nil {
		return types.Account{}
	}
	if err := w.setIndex(index + 1); err != nil {
		return types.Account{}
	}
	return account
}

// Contains reports whether the account's key is stored in this wallet.
func (w *Wallet) Contains(txn *ledger.Txn, account types.Account) bool {
	_ = txn
	ok, err := w.db.Has(entryKey(w.ID, account))
	return err == nil && ok
}

// FetchKey decrypts the private key for an account.
func (w *Wallet) FetchKey(account types.Account) (types.RawKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.unlocked {
		return types.RawKey{}, ErrLocked
	}
	raw, err := w.db.Get(entryKey(w.ID, account))
	if err != nil {
		return types.RawKey{}, ErrNotPresent
	}
	if len(raw) != 32 {
		return types.RawKey{}, ErrBadKey
	}
	var priv types.RawKey
	copy(priv[:], ctrCrypt(w.session, entryIV(account), raw))
	pair := types.KeyPairFromPrivate(priv)
	if pair.Public != account {
		return types.RawKey{}, ErrBadKey
	}
	return priv, nil
}

// Accounts lists every account in insertion-independent key order.
func (w *Wallet) Accounts(txn *ledger.Txn) []types.Account {
	_ = txn
	prefix := append([]byte{'W'}, w.ID[:]...)
	prefix = append(prefix, tagEntry)
	it := w.db.NewIterator(storage.PrefixRange(prefix))
	defer it.Release()
	var accounts []types.Account
	for it.Next() {
		k := it.Key()
		if len(k) != len(prefix)+32 {
			continue
		}
		account, err := types.UnionFromBytes(k[len(prefix):])
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts
}

// Representative returns the default representative for new accounts.
func (w *Wallet) Representative(txn *ledger.Txn) types.Account {
	_ = txn
	raw, err := w.meta(fieldRepresentative)
	if err != nil || len(raw) != 32 {
		return types.GenesisAccount
	}
	rep, err := types.UnionFromBytes(raw)
	if err != nil {
		return types.GenesisAccount
	}
	return rep
}

// SetRepresentative stores the default representative.
func (w *Wallet) SetRepresentative(txn *ledger.Txn, representative types.Account) error {
	_ = txn
	return w.db.Put(metaKey(w.ID, fieldRepresentative), representative.Bytes())
}

// MoveFrom transfers the listed accounts from source into this wallet,
// re-encrypting each key. Both wallets must be unlocked; a single missing
// account fails the whole move.
func (w *Wallet) MoveFrom(txn *ledger.Txn, source *Wallet, accounts []types.Account) error {
	keys := make([]types.RawKey, 0, len(accounts))
	for _, account := range accounts {
		priv, err := source.FetchKey(account)
		if err != nil {
			return err
		}
		keys = append(keys, priv)
	}
	w.mu.Lock()
	unlocked := w.unlocked
	w.mu.Unlock()
	if !unlocked {
		return ErrLocked
	}
	for i, account := range accounts {
		w.mu.Lock()
		_, err := w.insertKey(keys[i])
		w.mu.Unlock()
		if err != nil {
			return err
		}
		if err := source.db.Delete(entryKey(source.ID, account)); err != nil {
			return err
		}
	}
	return nil
}

// SerializeJSON dumps the wallet's raw store records for export.
func (w *Wallet) SerializeJSON(txn *ledger.Txn) (string, error) {
	dump := make(map[string]string)
	for _, field := range []byte{fieldSalt, fieldCheck, fieldWalletKey, fieldSeed, fieldIndex, fieldRepresentative} {
		raw, err := w.meta(field)
		if err != nil {
			continue
		}
		dump[fmt.Sprintf("%02x", field)] = hex.EncodeToString(raw)
	}
	for _, account := range w.Accounts(txn) {
		raw, err := w.db.Get(entryKey(w.ID, account))
		if err != nil {
			continue
		}
		dump[account.String()] = hex.EncodeToString(raw)
	}
	out, err := json.Marshal(dump)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// --- free accounts ---

// InitFreeAccounts rebuilds the free-account pool from the stored keys.
func (w *Wallet) InitFreeAccounts(txn *ledger.Txn) {
	accounts := w.Accounts(txn)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.free = make(map[types.Account]struct{}, len(accounts))
	for _, account := range accounts {
		w.free[account] = struct{}{}
	}
}

// TakeFreeAccount removes and returns one account from the pool.
func (w *Wallet) TakeFreeAccount() (types.Account, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for account := range w.free {
		delete(w.free, account)
		return account, true
	}
	return types.Account{}, false
}

// ReturnFreeAccount places an account back into the pool.
func (w *Wallet) ReturnFreeAccount(account types.Account) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.free[account] = struct{}{}
}

func (w *Wallet) destroy() {
	prefix := append([]byte{'W'}, w.ID[:]...)
	it := w.db.NewIterator(storage.PrefixRange(prefix))
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	it.Release()
	for _, k := range keys {
		_ = w.db.Delete(k)
	}
}
