package relay

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// RelayPoolMessage is the shape the (out-of-scope) pool receives from each
// Relay's Reader Task. Only the one variant this core ever emits is
// modeled: an inbound frame, already decoded.
type RelayPoolMessage struct {
	RelayURL string
	Msg      nostr.Envelope
}

// RelayPoolNotification is the shape published on the Notification Bus.
// The pool may append further variants of its own; this core only ever
// produces Message.
type RelayPoolNotification struct {
	RelayURL string
	Msg      nostr.Envelope
}

// NotificationBus is a multi-producer, multi-consumer broadcast of
// RelayPoolNotification values. No broadcast/pub-sub library appears
// anywhere in the retrieved pack, so this is a small hand-rolled
// subscriber registry over plain channels, the same shape
// asmogo-nws/protocol/pool.go uses for its own single fan-in channel.
type NotificationBus struct {
	mu   sync.Mutex
	subs map[int]chan RelayPoolNotification
	next int
}

// NewNotificationBus returns an empty bus.
func NewNotificationBus() *NotificationBus {
	return &NotificationBus{subs: make(map[int]chan RelayPoolNotification)}
}

// Subscribe registers a new consumer and returns its channel plus an
// unsubscribe function. The channel is buffered to keep a slow consumer
// from blocking Publish; if it fills, new notifications are dropped for
// that consumer rather than blocking the Reader Task.
func (b *NotificationBus) Subscribe() (<-chan RelayPoolNotification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan RelayPoolNotification, 256)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish fans a notification out to every current subscriber.
func (b *NotificationBus) Publish(n RelayPoolNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Closed reports whether the bus has no subscribers left.
func (b *NotificationBus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) == 0
}
