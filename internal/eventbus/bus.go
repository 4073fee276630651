// Package eventbus fans display frames out to any number of subscribers.
package eventbus

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one published frame.
//
// Events with a Key are retained: the bus keeps the latest event per key and
// replays them to every new subscriber, so a client that connects late sees
// the current screen and widgets.
type Event struct {
	Type string
	Key  string
	Time time.Time
	Data any
}

// Bus is non-blocking on Publish. A subscriber whose buffer is full misses
// the event.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	Retained() []Event
	Dropped() uint64
}

func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}, retained: map[string]Event{}}
}

type memBus struct {
	mu       sync.RWMutex
	subs     map[uint64]chan Event
	retained map[string]Event
	seq      atomic.Uint64
	dropped  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	if e.Key != "" {
		b.retained[e.Key] = e
	}
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.Unlock()

	for _, ch := range chs {
		// A concurrent unsubscribe may close ch.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
				b.dropped.Add(1)
			}
		}()
	}
}

// Subscribe returns a channel pre-filled with the retained events, oldest
// first. The buffer grows to hold them if needed.
func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	replay := b.sortedRetainedLocked()
	if len(replay) >= buffer {
		buffer = len(replay) + buffer
	}
	ch := make(chan Event, buffer)
	for _, e := range replay {
		ch <- e
	}
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

func (b *memBus) Retained() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sortedRetainedLocked()
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }

func (b *memBus) sortedRetainedLocked() []Event {
	out := make([]Event, 0, len(b.retained))
	for _, e := range b.retained {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].Key < out[j].Key
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
