package queue

import (
	"testing"
	"time"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntake_FIFOOrder(t *testing.T) {
	q := NewIntake()
	q.Push(domain.SubmissionRequest{ID: "a"})
	q.Push(domain.SubmissionRequest{ID: "b"})
	q.Push(domain.SubmissionRequest{ID: "c"})

	assert.Equal(t, 3, q.Len())

	for _, want := range []domain.SubmissionID{"a", "b", "c"} {
		req, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, req.ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestIntake_PopBlocksUntilPush(t *testing.T) {
	q := NewIntake()

	done := make(chan domain.SubmissionRequest, 1)
	go func() {
		req, ok := q.Pop()
		if ok {
			done <- req
		}
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(domain.SubmissionRequest{ID: "late"})

	select {
	case req := <-done:
		assert.Equal(t, domain.SubmissionID("late"), req.ID)
	case <-time.After(1 * time.Second):
		t.Fatal("Pop did not pick up the pushed item")
	}
}

func TestIntake_CloseDrainsThenSignals(t *testing.T) {
	q := NewIntake()
	q.Push(domain.SubmissionRequest{ID: "queued"})
	q.Close()

	req, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, domain.SubmissionID("queued"), req.ID)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestIntake_PushAfterCloseIsDropped(t *testing.T) {
	q := NewIntake()
	q.Close()
	q.Push(domain.SubmissionRequest{ID: "too-late"})
	assert.Equal(t, 0, q.Len())

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestIntake_CloseUnblocksWaiters(t *testing.T) {
	q := NewIntake()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(1 * time.Second):
		t.Fatal("Pop still blocked after Close")
	}
}
