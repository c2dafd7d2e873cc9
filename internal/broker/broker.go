// Package broker implements in-process topic-based fan-out. Topic names are
// room identifiers; the broker persists nothing and keeps no history, it
// only delivers to handles subscribed at publish time.
package broker

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/core"
)

// subscriberBuffer is the per-handle channel capacity. A subscriber that
// falls this far behind is detached rather than allowed to block the topic.
const subscriberBuffer = 32

// Subscription is a live registration on one topic. Messages arrive on C in
// publish order; the channel is closed on unsubscribe or when the broker
// detaches a subscriber that stopped draining it.
type Subscription struct {
	topic     string
	ch        chan core.Message
	closeOnce sync.Once
}

// C returns the channel messages are delivered on.
func (s *Subscription) C() <-chan core.Message {
	return s.ch
}

// Topic returns the topic this subscription is attached to.
func (s *Subscription) Topic() string {
	return s.topic
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// topicState holds one topic's subscriber set. Its mutex also serializes
// delivery, which is what gives all subscribers of a topic the same
// relative publish order. Distinct topics share no lock.
type topicState struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Broker is a process-local publish/subscribe fan-out. It is safe for
// concurrent Subscribe, Unsubscribe and Publish calls.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	closed bool
	log    *zerolog.Logger
}

// New constructs an empty broker.
func New(logger *zerolog.Logger) *Broker {
	return &Broker{
		topics: make(map[string]*topicState),
		log:    logger,
	}
}

// Subscribe registers a new handle on topic. The handle receives every
// message published from this moment onward and nothing published before.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan core.Message, subscriberBuffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub
	}
	ts, ok := b.topics[topic]
	if !ok {
		ts = &topicState{subs: make(map[*Subscription]struct{})}
		b.topics[topic] = ts
	}
	// Registration happens while still holding the broker lock so the topic
	// cannot be dropped as empty between lookup and insert.
	ts.mu.Lock()
	ts.subs[sub] = struct{}{}
	ts.mu.Unlock()
	b.mu.Unlock()

	return sub
}

// Unsubscribe detaches the handle and closes its channel. Idempotent; safe
// to call after the broker has already detached the handle itself.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.RLock()
	ts := b.topics[sub.topic]
	b.mu.RUnlock()

	if ts != nil {
		ts.mu.Lock()
		delete(ts.subs, sub)
		empty := len(ts.subs) == 0
		ts.mu.Unlock()

		if empty {
			b.dropTopicIfEmpty(sub.topic)
		}
	}

	sub.close()
}

// Publish delivers msg to every handle currently subscribed to topic.
// Delivery to one handle never blocks on another: a subscriber whose buffer
// is full has this message dropped and is detached, and the publish call
// itself never fails.
func (b *Broker) Publish(topic string, msg core.Message) {
	b.mu.RLock()
	ts := b.topics[topic]
	b.mu.RUnlock()

	if ts == nil {
		return
	}

	var stalled []*Subscription

	ts.mu.Lock()
	for sub := range ts.subs {
		select {
		case sub.ch <- msg:
		default:
			stalled = append(stalled, sub)
		}
	}
	for _, sub := range stalled {
		delete(ts.subs, sub)
	}
	empty := len(ts.subs) == 0
	ts.mu.Unlock()

	for _, sub := range stalled {
		sub.close()
		b.log.Warn().Str("topic", topic).Msg("subscriber not draining, detached")
	}
	if empty && len(stalled) > 0 {
		b.dropTopicIfEmpty(topic)
	}
}

// Close detaches every subscriber and rejects further subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]*topicState)
	b.mu.Unlock()

	for _, ts := range topics {
		ts.mu.Lock()
		for sub := range ts.subs {
			sub.close()
		}
		ts.subs = make(map[*Subscription]struct{})
		ts.mu.Unlock()
	}
}

func (b *Broker) dropTopicIfEmpty(topic string) {
	b.mu.Lock()
	if ts, ok := b.topics[topic]; ok {
		ts.mu.Lock()
		if len(ts.subs) == 0 {
			delete(b.topics, topic)
		}
		ts.mu.Unlock()
	}
	b.mu.Unlock()
}
