package node

import (
	"container/heap"
	"sync"
	"time"
)

type alarmEntry struct {
	at time.Time
	fn func()
}

type alarmQueue []alarmEntry

func (q alarmQueue) Len() int            { return len(q) }
func (q alarmQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q alarmQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *alarmQueue) Push(x interface{}) { *q = append(*q, x.(alarmEntry)) }
func (q *alarmQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	*q = old[:n-1]
	return entry
}

// Alarm runs callbacks at scheduled times on a single goroutine. Late
// additions with an earlier deadline preempt the current wait.
type Alarm struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   alarmQueue
	stopped bool
	done    chan struct{}
}

func NewAlarm() *Alarm {
	a := &Alarm{done: make(chan struct{})}
	a.cond = sync.NewCond(&a.mu)
	go a.run()
	return a
}

// Add schedules fn to run at the given time. Callbacks run sequentially;
// a slow callback delays later ones.
func (a *Alarm) Add(at time.Time, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	heap.Push(&a.queue, alarmEntry{at: at, fn: fn})
	a.cond.Signal()
}

// Stop prevents further callbacks from running. Scheduled entries are
// dropped.
func (a *Alarm) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.cond.Signal()
	a.mu.Unlock()
	<-a.done
}

func (a *Alarm) run() {
	defer close(a.done)
	a.mu.Lock()
	for {
		if a.stopped {
			a.mu.Unlock()
			return
		}
		if len(a.queue) == 0 {
			a.cond.Wait()
			continue
		}
		next := a.queue[0]
		wait := time.Until(next.at)
		if wait > 0 {
			// wake either on the timer or on an earlier Add
			timer := time.AfterFunc(wait, func() {
				a.mu.Lock()
				a.cond.Signal()
				a.mu.Unlock()
			})
			a.cond.Wait()
			timer.Stop()
			continue
		}
		heap.Pop(&a.queue)
		a.mu.Unlock()
		next.fn()
		a.mu.Lock()
	}
}
