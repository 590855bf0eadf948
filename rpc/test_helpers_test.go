package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SeedCredits/raiblocks/config"
	"github.com/SeedCredits/raiblocks/ledger"
	"github.com/SeedCredits/raiblocks/node"
	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
	"github.com/SeedCredits/raiblocks/work"
)

func newTestServer(t *testing.T, enableControl bool) (*Server, *node.Node) {
	t.Helper()
	return newTestServerWithLogger(t, enableControl, false, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServerWithLogger(t *testing.T, enableControl, logRPC bool, logger *slog.Logger) (*Server, *node.Node) {
	t.Helper()
	cfg := config.Default()
	cfg.Node.PeeringPort = 0
	cfg.RPC.EnableControl = enableControl
	cfg.RPC.LogRPC = logRPC
	n, err := node.NewNodeWithWork(cfg, storage.NewMemDB(), logger, work.NewPoolWithDifficulty(0))
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	t.Cleanup(n.Stop)
	return NewServer(cfg.RPC, n, logger), n
}

// call posts one JSON body and decodes the reply, checking the transport
// contract on the way.
func call(t *testing.T, s *Server, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("cors header %q", got)
	}
	var tree map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &tree); err != nil {
		t.Fatalf("bad response %q: %v", rec.Body.String(), err)
	}
	return tree
}

func wantError(t *testing.T, tree map[string]any, message string) {
	t.Helper()
	if got, _ := tree["error"].(string); got != message {
		t.Fatalf("expected error %q, got %v", message, tree)
	}
}

func wantField(t *testing.T, tree map[string]any, key, value string) {
	t.Helper()
	if got, _ := tree[key].(string); got != value {
		t.Fatalf("expected %s=%q, got %v", key, value, tree)
	}
}

func genesisOpenHash() types.BlockHash {
	open := &types.OpenBlock{
		Source:         types.BlockHash(types.GenesisAccount),
		Representative: types.GenesisAccount,
		Account:        types.GenesisAccount,
	}
	return open.Hash()
}

func pendingCredit(amount uint64) ledger.PendingInfo {
	return ledger.PendingInfo{
		Source: types.GenesisAccount,
		Amount: types.AmountFromUint64(amount),
	}
}

// fundAccount opens a fresh chain for pair with the given balance by
// planting a pending credit and processing a signed open block.
func fundAccount(t *testing.T, n *node.Node, pair types.KeyPair, amount uint64) types.BlockHash {
	t.Helper()
	var sendHash types.BlockHash
	sendHash[0] = pair.Public[0]
	sendHash[1] = 0xfe
	txn := n.Store.TxBeginWrite()
	err := n.Store.PendingPut(txn, pair.Public, sendHash, pendingCredit(amount))
	txn.Done()
	if err != nil {
		t.Fatalf("pending put: %v", err)
	}
	open := &types.OpenBlock{Source: sendHash, Representative: pair.Public, Account: pair.Public}
	open.Signature = types.Sign(pair.Private, open.Hash())
	if err := n.ProcessReceive(open); err != nil {
		t.Fatalf("open: %v", err)
	}
	return open.Hash()
}

// sendViaLedger signs and admits a send directly, bypassing the wallet.
func sendViaLedger(t *testing.T, n *node.Node, pair types.KeyPair, destination types.Account, amount uint64) types.BlockHash {
	t.Helper()
	txn := n.Store.TxBeginRead()
	info, ok := n.Store.AccountGet(txn, pair.Public)
	txn.Done()
	if !ok {
		t.Fatalf("account %s not opened", pair.Public.EncodeAccount())
	}
	send := &types.SendBlock{
		PreviousHash: info.Head,
		Destination:  destination,
		Balance:      info.Balance.Sub(types.AmountFromUint64(amount)),
	}
	send.Signature = types.Sign(pair.Private, send.Hash())
	if err := n.ProcessReceive(send); err != nil {
		t.Fatalf("send: %v", err)
	}
	return send.Hash()
}

// changeViaLedger rotates an account's representative directly.
func changeViaLedger(t *testing.T, n *node.Node, pair types.KeyPair, representative types.Account) types.BlockHash {
	t.Helper()
	txn := n.Store.TxBeginRead()
	info, ok := n.Store.AccountGet(txn, pair.Public)
	txn.Done()
	if !ok {
		t.Fatalf("account %s not opened", pair.Public.EncodeAccount())
	}
	change := &types.ChangeBlock{PreviousHash: info.Head, Representative: representative}
	change.Signature = types.Sign(pair.Private, change.Hash())
	if err := n.ProcessReceive(change); err != nil {
		t.Fatalf("change: %v", err)
	}
	return change.Hash()
}
