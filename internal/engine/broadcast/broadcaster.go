package broadcast

import (
	"sync"
	"sync/atomic"
	"time"
)

// AllRuns subscribes to events of every run.
const AllRuns = "*"

const (
	defaultBuffer  = 64
	publishRetries = 3
	publishBackoff = time.Millisecond
)

// Event is one progress update for a run. Seq is monotonically increasing
// per run so observers can detect drops.
type Event struct {
	RunUUID         string    `json:"run_id"`
	TaskID          uint      `json:"task_id"`
	Status          string    `json:"status"`
	ProgressPercent float64   `json:"progress_percent"`
	CurrentStep     string    `json:"current_step"`
	Seq             uint64    `json:"seq"`
	Timestamp       time.Time `json:"timestamp"`
}

type subscriber struct {
	id      int
	runUUID string
	ch      chan Event
}

// Broadcaster fans progress events out to subscribers. Delivery is
// best-effort: a subscriber that cannot drain its buffer within a few
// bounded retries has the event dropped, it never blocks the publisher.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	bufSize int

	seqMu sync.Mutex
	seq   map[string]uint64

	dropped atomic.Uint64
}

func New() *Broadcaster {
	return NewSize(defaultBuffer)
}

func NewSize(bufSize int) *Broadcaster {
	if bufSize < 1 {
		bufSize = 1
	}
	return &Broadcaster{
		subs:    make(map[int]*subscriber),
		seq:     make(map[string]uint64),
		bufSize: bufSize,
	}
}

// Subscribe registers an observer for one run, or for all runs with AllRuns.
// The returned cancel func closes the channel and must be called exactly once.
func (b *Broadcaster) Subscribe(runUUID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{
		id:      b.nextID,
		runUUID: runUUID,
		ch:      make(chan Event, b.bufSize),
	}
	b.subs[sub.id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub.id]; ok {
			delete(b.subs, sub.id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// Publish assigns the per-run sequence number and fans the event out.
// The caller serializes publishes per run, so sequence order matches
// transition order.
func (b *Broadcaster) Publish(ev Event) {
	b.seqMu.Lock()
	b.seq[ev.RunUUID]++
	ev.Seq = b.seq[ev.RunUUID]
	b.seqMu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// 持读锁发送：cancel持写锁close，读写互斥保证不会向已关闭channel发送
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.runUUID != AllRuns && sub.runUUID != ev.RunUUID {
			continue
		}
		delivered := false
		for i := 0; i < publishRetries; i++ {
			select {
			case sub.ch <- ev:
				delivered = true
			default:
				time.Sleep(publishBackoff)
			}
			if delivered {
				break
			}
		}
		if !delivered {
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were discarded because a subscriber
// was too slow to drain them.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
