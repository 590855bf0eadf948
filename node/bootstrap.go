package node

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/types"
)

const (
	msgFrontierReq   = 8
	bootstrapTimeout = 30 * time.Second
	bootstrapTick    = 5 * time.Minute
)

// bootstrapInitiator serializes bootstrap attempts: at most one runs at a
// time, later requests are dropped while one is in flight. An attempt
// requests the peer's frontier set over TCP and logs how far the local
// ledger lags.
type bootstrapInitiator struct {
	mu       sync.Mutex
	inFlight bool
	ledger   *ledger.Ledger
	log      *slog.Logger
}

func newBootstrapInitiator(l *ledger.Ledger, log *slog.Logger) *bootstrapInitiator {
	return &bootstrapInitiator{ledger: l, log: log}
}

func (b *bootstrapInitiator) initiate(endpoint netip.AddrPort) {
	b.mu.Lock()
	if b.inFlight {
		b.mu.Unlock()
		return
	}
	b.inFlight = true
	b.mu.Unlock()
	go func() {
		defer func() {
			b.mu.Lock()
			b.inFlight = false
			b.mu.Unlock()
		}()
		if err := b.attempt(endpoint); err != nil {
			b.log.Warn("bootstrap attempt failed", "endpoint", endpoint.String(), "error", err)
		}
	}()
}

func (b *bootstrapInitiator) attempt(endpoint netip.AddrPort) error {
	b.log.Info("starting bootstrap", "endpoint", endpoint.String())
	conn, err := net.DialTimeout("tcp", endpoint.String(), 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(bootstrapTimeout))

	// frontier_req: header, start account, max age, frontier count
	req := make([]byte, 4+32+4+4)
	req[0], req[1], req[2], req[3] = 'R', 'A', protocolVersion, msgFrontierReq
	binary.LittleEndian.PutUint32(req[36:40], ^uint32(0))
	binary.LittleEndian.PutUint32(req[40:44], ^uint32(0))
	if _, err := conn.Write(req); err != nil {
		return err
	}

	// stream of (account, frontier hash) pairs, zero account terminates
	var total, behind int
	pair := make([]byte, 64)
	for {
		if _, err := io.ReadFull(conn, pair); err != nil {
			return err
		}
		account, err := types.UnionFromBytes(pair[:32])
		if err != nil || account.IsZero() {
			break
		}
		frontier, err := types.UnionFromBytes(pair[32:])
		if err != nil {
			break
		}
		total++
		txn := b.ledger.Store.TxBeginRead()
		known := b.ledger.Store.BlockExists(txn, frontier)
		txn.Done()
		if !known {
			behind++
		}
	}
	b.log.Info("bootstrap frontier scan finished",
		"endpoint", endpoint.String(), "frontiers", total, "missing", behind)
	return nil
}
