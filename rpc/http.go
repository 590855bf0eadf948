package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/SeedCredits/raiblocks/config"
	"github.com/SeedCredits/raiblocks/node"
	"github.com/SeedCredits/raiblocks/types"
)

const maxBodyBytes = 1 << 20

// Server is the JSON request front end. One JSON object in, one JSON
// object out, always HTTP 200; business failures are an "error" field in
// the body. Bound to loopback unless configured otherwise, with a single
// boolean capability flag gating every mutating action.
type Server struct {
	cfg  config.RPCConfig
	node *node.Node
	log  *slog.Logger

	httpServer *http.Server
	listener   net.Listener

	mu               sync.Mutex
	paymentObservers map[types.Account]*paymentObserver
}

// NewServer wires a server over the node and subscribes to its block
// stream so payment observers get nudged on every credit.
func NewServer(cfg config.RPCConfig, n *node.Node, log *slog.Logger) *Server {
	s := &Server{
		cfg:              cfg,
		node:             n,
		log:              log,
		paymentObservers: make(map[types.Account]*paymentObserver),
	}
	n.ObserveBlocks(func(_ types.Block, account types.Account, _ types.Amount) {
		s.observerAction(account)
	})
	return s
}

// Start binds the configured endpoint and serves until Stop.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Address, strconv.Itoa(int(s.cfg.Port)))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// one exchange per connection
	s.httpServer.SetKeepAlivesEnabled(false)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("rpc server stopped", "error", err)
		}
	}()
	s.log.Info("rpc listening", "address", addr)
	return nil
}

// Addr returns the bound address, for tests that listen on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the acceptor; in-flight requests complete naturally.
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeTree(w, errTree("Can only POST requests"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn("rpc body read failed", "error", err)
		return
	}
	resp := newResponder()
	s.processRequest(body, resp.respond)
	writeTree(w, <-resp.ch)
}

func writeTree(w http.ResponseWriter, tree map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tree)
}

func errTree(message string) map[string]any {
	return map[string]any{"error": message}
}

// responder delivers exactly one response tree per request. Handlers that
// defer completion hand respond to callbacks on other goroutines; the
// first call wins and later calls are no-ops.
type responder struct {
	once sync.Once
	ch   chan map[string]any
}

func newResponder() *responder {
	return &responder{ch: make(chan map[string]any, 1)}
}

func (r *responder) respond(tree map[string]any) {
	r.once.Do(func() {
		r.ch <- tree
	})
}
