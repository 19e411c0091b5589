// Package events carries step lifecycle notifications from the executor
// to observers such as the websocket status stream.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	StepStarted   Type = "step_started"
	StepSucceeded Type = "step_succeeded"
	StepFailed    Type = "step_failed"
	StepSkipped   Type = "step_skipped"
	RunFinished   Type = "run_finished"
)

// Event is a single lifecycle notification.
type Event struct {
	Time   time.Time `json:"time"`
	Type   Type      `json:"type"`
	Step   string    `json:"step,omitempty"`
	Target string    `json:"target,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Bus fans events out to any number of subscribers. Publishing never
// blocks: a subscriber that cannot keep up loses events rather than
// stalling the executor.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns the receive channel plus a cancel function. Cancelling closes
// the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, stamping the time if
// unset. Full subscribers are skipped.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer; drop rather than block the run.
		}
	}
}

// Close closes all subscriber channels. Publish and Subscribe become
// no-ops afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
