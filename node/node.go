package node

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/SeedCredits/raiblocks/config"
	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/observability/metrics"
	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
	"github.com/SeedCredits/raiblocks/wallet"
	"github.com/SeedCredits/raiblocks/work"
)

// Vendor identifies the node software in the version RPC.
const Vendor = "RaiBlocks 8.0"

// BlockObserver is notified after a block is admitted locally: the block,
// the account credited by it and the amount moved. Change blocks report
// their owner with a zero amount.
type BlockObserver func(block types.Block, account types.Account, amount types.Amount)

// Node wires the ledger, wallets, work pool, peer set and alarm into one
// running service.
type Node struct {
	Config  *config.Config
	Log     *slog.Logger
	Store   *ledger.Store
	Ledger  *ledger.Ledger
	Wallets *wallet.Wallets
	Work    *work.Pool
	Peers   *Peers
	Alarm   *Alarm

	net       *network
	bootstrap *bootstrapInitiator

	obMu      sync.Mutex
	observers []BlockObserver
}

// NewNode assembles a node over an opened database. The genesis record set
// is written on first run.
func NewNode(cfg *config.Config, db storage.Database, log *slog.Logger) (*Node, error) {
	return NewNodeWithWork(cfg, db, log, work.NewPool())
}

// NewNodeWithWork is NewNode with an explicit work pool, so tests can run
// with a trivial difficulty.
func NewNodeWithWork(cfg *config.Config, db storage.Database, log *slog.Logger, pool *work.Pool) (*Node, error) {
	store := ledger.NewStore(db)
	l := ledger.NewLedger(store)
	txn := store.TxBeginWrite()
	err := l.Initialize(txn)
	txn.Done()
	if err != nil {
		return nil, fmt.Errorf("node: ledger init: %w", err)
	}

	n := &Node{
		Config: cfg,
		Log:    log,
		Store:  store,
		Ledger: l,
		Work:   pool,
		Peers:  NewPeers(),
		Alarm:  NewAlarm(),
	}
	n.bootstrap = newBootstrapInitiator(l, log)
	n.Wallets, err = wallet.NewWallets(db, l, n.Work.Generate, n.ProcessReceive, log)
	if err != nil {
		return nil, err
	}
	n.net, err = newNetwork(cfg.Node.PeeringPort, n.Peers, log)
	if err != nil {
		return nil, err
	}
	for _, peer := range cfg.Node.Preconfigured {
		if endpoint, perr := netip.ParseAddrPort(peer); perr == nil {
			n.Peers.Contacted(endpoint)
		}
	}
	n.scheduleKeepalive()
	n.scheduleBootstrap()
	return n, nil
}

// Stop shuts down the subsystems in dependency order.
func (n *Node) Stop() {
	n.Alarm.Stop()
	n.Wallets.Stop()
	n.net.stop()
	n.Log.Info("node stopped")
}

// ObserveBlocks registers a block observer.
func (n *Node) ObserveBlocks(fn BlockObserver) {
	n.obMu.Lock()
	defer n.obMu.Unlock()
	n.observers = append(n.observers, fn)
}

func (n *Node) notify(block types.Block, account types.Account, amount types.Amount) {
	n.obMu.Lock()
	observers := append([]BlockObserver(nil), n.observers...)
	n.obMu.Unlock()
	for _, fn := range observers {
		fn(block, account, amount)
	}
}

// ProcessReceive admits a locally produced or received block, notifying
// observers on success. Blocks that arrive ahead of their dependencies are
// stashed in the unchecked table for a later bootstrap round.
func (n *Node) ProcessReceive(block types.Block) error {
	txn := n.Store.TxBeginWrite()
	result, err := n.Ledger.Process(txn, block)
	if err != nil {
		if errors.Is(err, ledger.ErrGapPrevious) || errors.Is(err, ledger.ErrGapSource) {
			_ = n.Store.UncheckedPut(txn, block.Hash(), ledger.StoredBlock{Block: block})
		}
		txn.Done()
		return err
	}
	txn.Done()
	metrics.RPC().ObserveBlockProcessed(block.Type().String())
	n.notify(block, result.Account, result.Amount)
	return nil
}

// Balance returns the account's settled balance.
func (n *Node) Balance(account types.Account) types.Amount {
	txn := n.Store.TxBeginRead()
	defer txn.Done()
	return n.Ledger.Balance(txn, account)
}

// BalancePending returns settled balance plus unreceived sends.
func (n *Node) BalancePending(account types.Account) (types.Amount, types.Amount) {
	txn := n.Store.TxBeginRead()
	defer txn.Done()
	return n.Ledger.Balance(txn, account), n.Ledger.Pending(txn, account)
}

// Weight returns the voting weight delegated to a representative.
func (n *Node) Weight(account types.Account) types.Amount {
	txn := n.Store.TxBeginRead()
	defer txn.Done()
	return n.Ledger.Weight(txn, account)
}

// StoreVersion reports the persistent layout version.
func (n *Node) StoreVersion() uint64 {
	txn := n.Store.TxBeginRead()
	defer txn.Done()
	return n.Store.Version(txn)
}

// Keepalive probes an endpoint and adds it to the peer set.
func (n *Node) Keepalive(endpoint netip.AddrPort) {
	n.Peers.Contacted(endpoint)
	n.net.sendKeepalive(endpoint)
}

// Bootstrap kicks a bootstrap attempt against a specific endpoint.
func (n *Node) Bootstrap(endpoint netip.AddrPort) {
	n.Peers.Contacted(endpoint)
	n.bootstrap.initiate(endpoint)
}

// BootstrapAny bootstraps from an arbitrary known peer, if there is one.
func (n *Node) BootstrapAny() {
	peers := n.Peers.Sample(1)
	if len(peers) == 0 {
		n.Log.Warn("bootstrap requested with no known peers")
		return
	}
	n.bootstrap.initiate(peers[0])
}

func (n *Node) scheduleKeepalive() {
	n.Alarm.Add(time.Now().Add(keepaliveTick), func() {
		n.Peers.Purge()
		for _, endpoint := range n.Peers.Sample(keepalivePeers) {
			n.net.sendKeepalive(endpoint)
		}
		n.scheduleKeepalive()
	})
}

func (n *Node) scheduleBootstrap() {
	n.Alarm.Add(time.Now().Add(bootstrapTick), func() {
		if len(n.Peers.List()) > 0 {
			n.BootstrapAny()
		}
		n.scheduleBootstrap()
	})
}
