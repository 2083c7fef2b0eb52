// Package demand decides, per channel and per frame, whether anyone is
// listening.
//
// The gate is queried fresh on every frame: consumers attach and detach at
// any time, so nothing is cached. A count that cannot be determined is
// treated as "no consumers" so the channel is skipped rather than published
// into the void.
package demand

import (
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
)

// Gate reports whether a channel currently has consumers.
type Gate interface {
	HasConsumers(c channels.Channel) bool
}

// Counter reports the live consumer count of a topic.
type Counter interface {
	ConsumerCount(topic string) (int, error)
}

// CounterGate is a Gate backed by a transport Counter.
type CounterGate struct {
	counter Counter
}

// NewGate returns a Gate that asks counter for every decision.
func NewGate(counter Counter) *CounterGate {
	return &CounterGate{counter: counter}
}

// HasConsumers returns true iff the channel's topic has at least one
// consumer right now.
func (g *CounterGate) HasConsumers(c channels.Channel) bool {
	if g == nil || g.counter == nil {
		return false
	}
	topic := c.Topic()
	if topic == "" {
		return false
	}
	n, err := g.counter.ConsumerCount(topic)
	if err != nil {
		return false
	}
	return n > 0
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(c channels.Channel) bool

// HasConsumers calls f(c).
func (f GateFunc) HasConsumers(c channels.Channel) bool {
	if f == nil {
		return false
	}
	return f(c)
}

// Always is a Gate that reports demand on every channel.
var Always Gate = GateFunc(func(channels.Channel) bool { return true })
