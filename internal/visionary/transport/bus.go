// Package transport carries encoded records from the transcoder to
// consumers. The Bus is the in-process fan-out; the gRPC Server exposes each
// topic as a server stream, one bus subscription per stream.
package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/visionary.report/internal/monitoring"
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
)

var busLogf = monitoring.Tagged("Bus")

var (
	// ErrBusClosed is returned by operations on a closed bus.
	ErrBusClosed = errors.New("transport: bus is closed")
	// ErrSubscriberNotFound is returned when unsubscribing an unknown id.
	ErrSubscriberNotFound = errors.New("transport: subscriber not found")
	// ErrUnknownTopic is returned for topics that no channel publishes on.
	ErrUnknownTopic = errors.New("transport: unknown topic")
)

// DefaultBuffer is the per-subscriber queue depth used when Subscribe is
// given a non-positive buffer.
const DefaultBuffer = 4

// Message is one encoded record delivered to a subscriber.
type Message struct {
	Topic string
	Data  []byte
}

// Subscription is a consumer's registration on one topic. Messages arrive on
// C until the subscription is closed or the bus shuts down.
type Subscription struct {
	ID    string
	Topic string
	C     <-chan Message

	ch      chan Message
	bus     *Bus
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Close unsubscribes. Closing twice returns ErrSubscriberNotFound.
func (s *Subscription) Close() error {
	return s.bus.Unsubscribe(s.ID)
}

type topicState struct {
	subs      map[string]*Subscription
	published atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
	bytes     atomic.Uint64
}

// Bus is a per-topic publish/subscribe hub. Publish never blocks: a
// subscriber whose queue is full misses that message.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	byID   map[string]*Subscription
	closed bool

	encodeErrors atomic.Uint64
}

// NewBus creates a bus with one topic per output channel.
func NewBus() *Bus {
	b := &Bus{
		topics: make(map[string]*topicState),
		byID:   make(map[string]*Subscription),
	}
	for _, t := range channels.Topics() {
		b.topics[t] = &topicState{subs: make(map[string]*Subscription)}
	}
	return b
}

// Subscribe registers a new consumer on topic.
func (b *Bus) Subscribe(topic string, buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	ts, ok := b.topics[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	ch := make(chan Message, buffer)
	sub := &Subscription{
		ID:    uuid.NewString(),
		Topic: topic,
		C:     ch,
		ch:    ch,
		bus:   b,
	}
	ts.subs[sub.ID] = sub
	b.byID[sub.ID] = sub
	busLogf("subscriber %s attached to %s (%d total)", sub.ID, topic, len(ts.subs))
	return sub, nil
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	sub, ok := b.byID[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	ts := b.topics[sub.Topic]
	delete(ts.subs, id)
	delete(b.byID, id)
	close(sub.ch)
	busLogf("subscriber %s detached from %s (%d remaining)", id, sub.Topic, len(ts.subs))
	return nil
}

// ConsumerCount reports how many subscribers topic has.
func (b *Bus) ConsumerCount(topic string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrBusClosed
	}
	ts, ok := b.topics[topic]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return len(ts.subs), nil
}

// Publish encodes rec and offers it to every subscriber of c's topic.
// Records published on a closed bus or an unsubscribed topic are discarded.
func (b *Bus) Publish(c channels.Channel, rec records.Record) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	ts, ok := b.topics[c.Topic()]
	if !ok {
		return
	}
	ts.published.Add(1)
	if len(ts.subs) == 0 {
		return
	}

	data, err := records.Marshal(rec)
	if err != nil {
		b.encodeErrors.Add(1)
		busLogf("encode %s: %v", c, err)
		return
	}
	ts.bytes.Add(uint64(len(data)))

	msg := Message{Topic: c.Topic(), Data: data}
	for _, sub := range ts.subs {
		select {
		case sub.ch <- msg:
			sub.sent.Add(1)
			ts.sent.Add(1)
		default:
			sub.dropped.Add(1)
			ts.dropped.Add(1)
		}
	}
}

// Close detaches every subscriber and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.closed = true
	for id, sub := range b.byID {
		close(sub.ch)
		delete(b.byID, id)
	}
	for _, ts := range b.topics {
		ts.subs = make(map[string]*Subscription)
	}
	return nil
}

// TopicStats is a snapshot of one topic's counters.
type TopicStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Sent        uint64 `json:"sent"`
	Dropped     uint64 `json:"dropped"`
	Bytes       uint64 `json:"bytes"`
}

// SubscriberStats is a snapshot of one subscriber's counters.
type SubscriberStats struct {
	Topic   string `json:"topic"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// BusStats is a snapshot of the whole bus.
type BusStats struct {
	Topics       map[string]TopicStats      `json:"topics"`
	Subscribers  map[string]SubscriberStats `json:"subscribers"`
	EncodeErrors uint64                     `json:"encode_errors"`
	Closed       bool                       `json:"closed"`
}

// TotalBytes sums encoded bytes across topics.
func (s BusStats) TotalBytes() uint64 {
	var n uint64
	for _, t := range s.Topics {
		n += t.Bytes
	}
	return n
}

// TotalDropped sums drops across topics.
func (s BusStats) TotalDropped() uint64 {
	var n uint64
	for _, t := range s.Topics {
		n += t.Dropped
	}
	return n
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := BusStats{
		Topics:       make(map[string]TopicStats, len(b.topics)),
		Subscribers:  make(map[string]SubscriberStats, len(b.byID)),
		EncodeErrors: b.encodeErrors.Load(),
		Closed:       b.closed,
	}
	for name, ts := range b.topics {
		out.Topics[name] = TopicStats{
			Subscribers: len(ts.subs),
			Published:   ts.published.Load(),
			Sent:        ts.sent.Load(),
			Dropped:     ts.dropped.Load(),
			Bytes:       ts.bytes.Load(),
		}
	}
	for id, sub := range b.byID {
		out.Subscribers[id] = SubscriberStats{
			Topic:   sub.Topic,
			Sent:    sub.sent.Load(),
			Dropped: sub.dropped.Load(),
		}
	}
	return out
}
