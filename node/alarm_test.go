package node

import (
	"net/netip"
	"sync"
	"testing"
	"time"
)

func TestAlarmOrdering(t *testing.T) {
	alarm := NewAlarm()
	defer alarm.Stop()

	var mu sync.Mutex
	var order []int
	record := func(n int) func() {
		return func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}
	}
	now := time.Now()
	done := make(chan struct{})
	alarm.Add(now.Add(60*time.Millisecond), func() {
		record(3)()
		close(done)
	})
	alarm.Add(now.Add(20*time.Millisecond), record(1))
	alarm.Add(now.Add(40*time.Millisecond), record(2))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("alarm callbacks did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order %v", order)
	}
}

func TestAlarmStopDropsPending(t *testing.T) {
	alarm := NewAlarm()
	fired := make(chan struct{}, 1)
	alarm.Add(time.Now().Add(time.Hour), func() { fired <- struct{}{} })
	alarm.Stop()
	select {
	case <-fired:
		t.Fatalf("stopped alarm still fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPeersLifecycle(t *testing.T) {
	peers := NewPeers()
	good := netip.MustParseAddrPort("[::1]:7075")
	peers.Contacted(good)
	peers.Contacted(netip.AddrPort{})
	peers.Contacted(netip.MustParseAddrPort("[::]:7075"))

	list := peers.List()
	if len(list) != 1 || list[0] != good {
		t.Fatalf("peer list %v", list)
	}
	if got := peers.Purge(); got != 1 {
		t.Fatalf("purge kept %d", got)
	}
	if got := len(peers.Sample(8)); got != 1 {
		t.Fatalf("sample %d", got)
	}
}
