package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls this far behind starts losing frames instead of stalling the
// pipeline.
const subscriberBuffer = 16

// Broker fans published frames out to any number of stream subscribers.
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
	closed      bool
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[string]chan []byte)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a new channel for receiving published frames. The
// returned ID identifies the channel when unsubscribing. After Close the
// channel comes back already closed.
func (b *Broker) Subscribe() (string, chan []byte) {
	id := randomID()
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish offers payload to every subscriber.
func (b *Broker) Publish(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- payload:
		default:
			// if the channel is full skip so as not to block the publisher
		}
	}
}

// SubscriberCount reports how many subscribers are registered.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes all subscribed channels and rejects later subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
