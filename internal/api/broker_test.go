package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicPlans)
	other := b.Subscribe(TopicIncidents)

	evt := Event{Type: "test.event", Data: map[string]any{"x": 1}}
	b.Publish(TopicPlans, evt)

	select {
	case got := <-ch:
		assert.Equal(t, evt.Type, got.Type)
		assert.Equal(t, 1, got.Data["x"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-other:
		t.Fatalf("event leaked to another topic: %+v", got)
	default:
	}

	b.Unsubscribe(TopicPlans, ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	require.NotPanics(t, func() { b.Unsubscribe(TopicPlans, ch) })
	require.NotPanics(t, func() { b.Publish(TopicPlans, evt) })
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicPlans)
	for i := 0; i < 20; i++ {
		b.Publish(TopicPlans, Event{Type: "e"})
	}
	assert.Len(t, ch, cap(ch))
}
