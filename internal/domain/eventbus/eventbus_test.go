package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncEventBusDeliversQueuedEvents(t *testing.T) {
	bus := NewAsyncEventBus(2)
	bus.Start()
	defer bus.Stop()

	received := make(chan UnexpectedClassEventData, 1)
	require.NoError(t, bus.Subscribe(EventUnexpectedClass, func(data UnexpectedClassEventData) {
		received <- data
	}))

	bus.Publisher().Publish(EventUnexpectedClass, UnexpectedClassEventData{RequestID: "r1", Class: "pinkeye", Confidence: 0.4})

	select {
	case got := <-received:
		assert.Equal(t, "pinkeye", got.Class)
		assert.Equal(t, "r1", got.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestAsyncEventBusSurvivesSubscriberPanic(t *testing.T) {
	bus := NewAsyncEventBus(1)
	bus.Start()
	defer bus.Stop()

	calls := make(chan struct{}, 2)
	require.NoError(t, bus.Subscribe(EventDetectionFailed, func(FailureEventData) {
		calls <- struct{}{}
		panic("boom")
	}))

	bus.PublishAsync(EventDetectionFailed, FailureEventData{Kind: "inference"})
	bus.PublishAsync(EventDetectionFailed, FailureEventData{Kind: "inference"})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d missing after subscriber panic", i+1)
		}
	}
}

func TestAsyncEventBusDropsWhenFull(t *testing.T) {
	bus := NewAsyncEventBus(1)
	// not started: nothing drains the queue
	for i := 0; i < cap(bus.workChan)+5; i++ {
		bus.PublishAsync(EventDetectionCompleted, DetectionEventData{})
	}
	assert.Equal(t, int64(5), bus.Dropped())
	bus.Stop()
	bus.Stop()
}

func TestSetupEventHandlersSubscribesAllTopics(t *testing.T) {
	bus := New()
	require.NoError(t, SetupEventHandlers(bus, nil))

	for _, topic := range []string{EventDetectionCompleted, EventUnexpectedClass, EventDetectionFailed} {
		assert.True(t, bus.HasCallback(topic), topic)
	}

	// handlers must accept the payload types published by the detection service
	bus.Publish(EventDetectionCompleted, DetectionEventData{RequestID: "r", Count: 1})
	bus.Publish(EventUnexpectedClass, UnexpectedClassEventData{Class: "x"})
	bus.Publish(EventDetectionFailed, FailureEventData{Kind: "decode"})
}
