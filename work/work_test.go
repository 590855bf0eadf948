package work

import (
	"testing"
	"time"

	"github.com/SeedCredits/raiblocks/types"
)

func TestValueDeterministic(t *testing.T) {
	var root types.BlockHash
	root[0] = 0xab
	if Value(root, 42) != Value(root, 42) {
		t.Fatalf("value must be deterministic")
	}
	if Value(root, 42) == Value(root, 43) {
		t.Fatalf("distinct nonces should score differently")
	}
}

func TestGenerateValidate(t *testing.T) {
	// a trivial difficulty keeps the search instant
	pool := NewPoolWithDifficulty(0)
	var root types.BlockHash
	root[5] = 0x01

	nonce, ok := pool.Generate(root)
	if !ok {
		t.Fatalf("generation failed")
	}
	if !pool.Validate(root, nonce) {
		t.Fatalf("generated nonce must validate")
	}
}

func TestValidateAgainstRealDifficulty(t *testing.T) {
	pool := NewPool()
	var root types.BlockHash
	root[5] = 0x01
	// an arbitrary nonce is overwhelmingly unlikely to meet the target
	if pool.Validate(root, 12345) && pool.Validate(root, 54321) && pool.Validate(root, 99999) {
		t.Fatalf("trivial nonces should not all validate")
	}
}

func TestCancel(t *testing.T) {
	// a threshold just below the maximum makes generation effectively
	// endless, so only Cancel can unblock the caller
	pool := NewPoolWithDifficulty(^uint64(0) - 1)
	var root types.BlockHash
	root[9] = 0x02

	done := make(chan bool, 1)
	go func() {
		_, ok := pool.Generate(root)
		done <- ok
	}()
	time.Sleep(50 * time.Millisecond)
	pool.Cancel(root)
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("cancelled generation should not report success")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cancel did not unblock generation")
	}
}
