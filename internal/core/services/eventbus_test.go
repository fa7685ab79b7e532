package services

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_PubSub(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	subID := "sub-123"

	ch, unsub := bus.Subscribe(subID)
	defer unsub()

	event := Event{
		SubmissionID: subID,
		Type:         EventTypeQueued,
		Data:         "test-data",
		Timestamp:    time.Now().Unix(),
	}
	bus.Publish(event)

	select {
	case received := <-ch:
		assert.Equal(t, event.SubmissionID, received.SubmissionID)
		assert.Equal(t, event.Data, received.Data)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)
	subID := "sub-456"

	ch, unsub := bus.Subscribe(subID)
	unsub()

	bus.Publish(Event{SubmissionID: subID, Type: EventTypeOutcome, Data: "should not receive"})

	select {
	case e, ok := <-ch:
		if ok {
			t.Fatalf("received event after unsubscribe: %v", e)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)
	subID := "sub-multi"

	ch1, unsub1 := bus.Subscribe(subID)
	defer unsub1()
	ch2, unsub2 := bus.Subscribe(subID)
	defer unsub2()

	bus.Publish(Event{SubmissionID: subID, Data: "broadcast"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, "broadcast", received.Data)
		case <-time.After(1 * time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestEventBus_IsolatedBySubmission(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	chA, unsubA := bus.Subscribe("sub-a")
	defer unsubA()

	bus.Publish(Event{SubmissionID: "sub-b", Data: "other stream"})

	select {
	case e := <-chA:
		t.Fatalf("received event for a different submission: %v", e)
	case <-time.After(100 * time.Millisecond):
	}
}
