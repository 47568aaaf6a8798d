// Package bus provides in-process pub/sub for execution events. Publishers
// and subscribers meet on named channels; delivery is best-effort with no
// replay, so subscribers only see envelopes published while subscribed.
package bus

import (
	"sync"
	"time"
)

// Channel names.
const (
	// ChannelLifecycle carries started/completed/error/cancelled events.
	ChannelLifecycle = "execution-lifecycle"
	// ChannelSteps carries instrumented visualization steps.
	ChannelSteps = "visualization-steps"
)

// Event types carried in Envelope.Type. These double as the outbound
// websocket message types.
const (
	EventExecutionStarted   = "execution_started"
	EventExecutionStep      = "step"
	EventExecutionCompleted = "execution_completed"
	EventExecutionError     = "execution_error"
	EventExecutionCancelled = "execution_cancelled"
)

// subscriberBufferSize is the channel buffer for each subscriber.
// Envelopes are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 256

// Envelope is the unit of delivery. ExecutionID is the public correlation
// id, never the internal job id.
type Envelope struct {
	Type        string
	ExecutionID string
	Payload     any
	Timestamp   time.Time
}

// NewEnvelope builds an envelope stamped with the current time.
func NewEnvelope(eventType, executionID string, payload any) Envelope {
	return Envelope{
		Type:        eventType,
		ExecutionID: executionID,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

// Bus fans envelopes out to channel subscribers. It is safe for concurrent
// use. Closing the bus closes every subscriber channel; late subscribers on
// a closed bus receive an already-closed channel instead of blocking.
type Bus struct {
	mu     sync.Mutex
	chans  map[string]*busChannel
	closed bool
}

type busChannel struct {
	subs   map[int]chan Envelope
	nextID int
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		chans: make(map[string]*busChannel),
	}
}

// Subscribe returns a receive channel for envelopes published on the named
// channel and an unsubscribe function. Unsubscribing closes the channel.
func (b *Bus) Subscribe(channel string) (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Envelope, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	c, ok := b.chans[channel]
	if !ok {
		c = &busChannel{subs: make(map[int]chan Envelope)}
		b.chans[channel] = c
	}

	id := c.nextID
	c.nextID++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Publish delivers an envelope to all current subscribers of the named
// channel. Envelopes are dropped for subscribers whose buffers are full.
func (b *Bus) Publish(channel string, env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	c, ok := b.chans[channel]
	if !ok {
		return
	}

	for _, ch := range c.subs {
		select {
		case ch <- env:
		default:
			// Drop for slow subscribers to avoid blocking publishers.
		}
	}
}

// Close shuts the bus down. All subscriber channels are closed and future
// Subscribe calls return a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, c := range b.chans {
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
	}
}
