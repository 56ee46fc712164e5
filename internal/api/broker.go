package api

import (
	"sync"
)

// Event topics.
const (
	TopicPlans     = "plans"
	TopicIncidents = "incidents"
)

type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans events out to stream subscribers by topic.
type EventBroker interface {
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
	Publish(topic string, evt Event)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

// Publish never blocks: a subscriber with a full buffer misses the event.
func (b *Broker) Publish(topic string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}
