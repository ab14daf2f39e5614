package streamhub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_DeliversConnectedFirst(t *testing.T) {
	h := New()
	ch, unsubscribe := h.Subscribe("s1")
	defer unsubscribe()

	select {
	case ev := <-ch:
		assert.Equal(t, EventConnected, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connected event")
	}
}

func TestPublish_OrderPreservedPerSubscriber(t *testing.T) {
	h := New()
	ch, unsubscribe := h.Subscribe("s1")
	defer unsubscribe()
	<-ch // connected

	h.Publish("s1", Event{Type: EventActionReceived})
	h.Publish("s1", Event{Type: EventProcessing})
	h.Publish("s1", Event{Type: EventComplete})

	require.Equal(t, EventActionReceived, (<-ch).Type)
	require.Equal(t, EventProcessing, (<-ch).Type)
	require.Equal(t, EventComplete, (<-ch).Type)
}

func TestPublish_NoSubscribersDoesNotBlock(t *testing.T) {
	h := New()
	done := make(chan struct{})
	go func() {
		h.Publish("ghost-session", Event{Type: EventComplete})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish with no subscribers blocked")
	}
}

func TestHasSubscribers(t *testing.T) {
	h := New()
	assert.False(t, h.HasSubscribers("s1"))
	_, unsubscribe := h.Subscribe("s1")
	assert.True(t, h.HasSubscribers("s1"))
	unsubscribe()
	assert.False(t, h.HasSubscribers("s1"))
}

func TestPublish_BufferOverflowEmitsErrorEvent(t *testing.T) {
	h := New()
	ch, unsubscribe := h.Subscribe("s1")
	defer unsubscribe()
	<-ch // connected

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("s1", Event{Type: EventResponseChunk})
	}

	var sawError bool
	for i := 0; i < subscriberBuffer+1; i++ {
		select {
		case ev := <-ch:
			if ev.Type == EventError {
				sawError = true
			}
		default:
		}
	}
	assert.True(t, sawError, "expected an error event once the subscriber buffer overflowed")
}

func TestMultipleSubscribersEachGetConnected(t *testing.T) {
	h := New()
	ch1, unsub1 := h.Subscribe("s1")
	defer unsub1()
	ch2, unsub2 := h.Subscribe("s1")
	defer unsub2()

	assert.Equal(t, EventConnected, (<-ch1).Type)
	assert.Equal(t, EventConnected, (<-ch2).Type)

	h.Publish("s1", Event{Type: EventComplete})
	assert.Equal(t, EventComplete, (<-ch1).Type)
	assert.Equal(t, EventComplete, (<-ch2).Type)
}
