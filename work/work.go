package work

import (
	"encoding/binary"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"github.com/SeedCredits/raiblocks/types"
)

// Threshold is the minimum 8-byte blake2b digest, read little-endian, that
// a nonce must score against its root to be valid.
const Threshold = uint64(0xffffffc000000000)

// Value scores a nonce against a root.
func Value(root types.BlockHash, nonce uint64) uint64 {
	digest, _ := blake2b.New(8, nil)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nonce)
	digest.Write(buf[:])
	digest.Write(root[:])
	return binary.LittleEndian.Uint64(digest.Sum(nil))
}

// Pool generates proof-of-work nonces across all CPUs. Generation for a
// root can be cancelled, which unblocks the waiting caller.
type Pool struct {
	// difficulty is variable only so tests can use a trivial target
	difficulty uint64

	mu      sync.Mutex
	pending map[types.BlockHash]*task
}

type task struct {
	cancel atomic.Bool
	done   chan struct{}
	nonce  uint64
	ok     bool
}

func NewPool() *Pool {
	return &Pool{difficulty: Threshold, pending: make(map[types.BlockHash]*task)}
}

// NewPoolWithDifficulty is for tests that cannot afford real generation.
func NewPoolWithDifficulty(difficulty uint64) *Pool {
	return &Pool{difficulty: difficulty, pending: make(map[types.BlockHash]*task)}
}

// Validate reports whether nonce meets the difficulty for root.
func (p *Pool) Validate(root types.BlockHash, nonce uint64) bool {
	return Value(root, nonce) >= p.difficulty
}

// Generate blocks until a nonce for root is found or Cancel is called for
// the same root. Concurrent calls for the same root share one search.
func (p *Pool) Generate(root types.BlockHash) (uint64, bool) {
	p.mu.Lock()
	t, ok := p.pending[root]
	if !ok {
		t = &task{done: make(chan struct{})}
		p.pending[root] = t
		go p.search(root, t)
	}
	p.mu.Unlock()
	<-t.done
	return t.nonce, t.ok
}

// Cancel aborts an in-flight generation for root, if any.
func (p *Pool) Cancel(root types.BlockHash) {
	p.mu.Lock()
	t, ok := p.pending[root]
	p.mu.Unlock()
	if ok {
		t.cancel.Store(true)
	}
}

func (p *Pool) search(root types.BlockHash, t *task) {
	workers := runtime.NumCPU()
	var wg sync.WaitGroup
	var found atomic.Bool
	var winner atomic.Uint64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce := rand.Uint64()
			for !found.Load() && !t.cancel.Load() {
				if Value(root, nonce) >= p.difficulty {
					if found.CompareAndSwap(false, true) {
						winner.Store(nonce)
					}
					return
				}
				nonce++
			}
		}()
	}
	wg.Wait()
	p.mu.Lock()
	delete(p.pending, root)
	p.mu.Unlock()
	t.nonce = winner.Load()
	t.ok = found.Load()
	close(t.done)
}
