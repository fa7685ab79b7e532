package services

import (
	"log/slog"
	"sync"
)

type EventType string

const (
	EventTypeQueued      EventType = "queued"
	EventTypeRejected    EventType = "rejected"
	EventTypeTaskCreated EventType = "task_created"
	EventTypeOutcome     EventType = "outcome"
	EventTypeError       EventType = "error"
)

type Event struct {
	SubmissionID string
	Type         EventType
	Data         string // JSON payload or short message
	Timestamp    int64
}

// EventBus fans submission lifecycle events out to subscribers, keyed by
// submission id. Publish never blocks: a slow subscriber drops events.
type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan Event
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel that receives events for one submission and a
// function that tears the subscription down (closing the channel).
func (b *EventBus) Subscribe(submissionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 16)
	b.subs[submissionID] = append(b.subs[submissionID], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[submissionID]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[submissionID] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[submissionID]) == 0 {
			delete(b.subs, submissionID)
		}
	}

	return ch, unsub
}

// Publish sends an event to all subscribers of the submission.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[e.SubmissionID] {
		select {
		case ch <- e:
		default:
			b.logger.Warn("event bus channel full, dropping event", "submission_id", e.SubmissionID)
		}
	}
}
