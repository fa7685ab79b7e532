package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, coord *fakeCoordinator, workers int64, maxPolls int) (*Dispatcher, *Tracker) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	tracker := NewTracker(logger, coord, TrackerConfig{Interval: time.Millisecond, MaxPolls: maxPolls})
	tracker.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })
	bus := NewEventBus(logger)
	dispatcher := NewDispatcher(logger, coord, NewRegistry(), tracker, bus, DispatcherConfig{
		Workers:         workers,
		DefaultWordlist: "rockyou.txt",
	})
	return dispatcher, tracker
}

func passwordRequest(requester string) domain.SubmissionRequest {
	return domain.SubmissionRequest{
		RequesterID: requester,
		Algorithm:   "md5",
		Hash:        "5f4dcc3b5aa765d61d8327deb882cf99",
	}
}

func TestDispatcher_CrackedFlow(t *testing.T) {
	coord := &fakeCoordinator{
		crackedFn: func(ctx context.Context, taskID int64) ([]domain.CrackedHash, error) {
			return []domain.CrackedHash{{Hash: "5f4dcc3b5aa765d61d8327deb882cf99", Password: "password"}}, nil
		},
	}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)
	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	id, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(id)
		return err == nil && sub.Status == domain.SubmissionDone
	}, 2*time.Second, 5*time.Millisecond)

	sub, err := dispatcher.Get(id)
	require.NoError(t, err)
	require.NotNil(t, sub.Outcome)
	assert.Equal(t, domain.OutcomeCracked, sub.Outcome.Kind)
	assert.Equal(t, "password", sub.Outcome.Plaintext)
	require.NotNil(t, sub.Task)
	assert.Equal(t, int64(42), sub.Task.TaskID)
	assert.Equal(t, int64(7), sub.Task.HashlistID)
	assert.Equal(t, "rockyou.txt", sub.Request.Wordlist)
}

func TestDispatcher_DuplicateRejectedWhileFirstIsTracking(t *testing.T) {
	coord := &fakeCoordinator{
		taskStatusFn: func(ctx context.Context, taskID int64) (domain.TaskStatus, error) {
			return domain.TaskStatus{TaskID: taskID, Status: "running"}, nil
		},
	}
	dispatcher, tracker := newTestDispatcher(t, coord, 2, 3)

	// Park the first submission in its tracking phase so its registry entry
	// stays held while the duplicate arrives.
	release := make(chan struct{})
	tracker.SetSleep(func(ctx context.Context, d time.Duration) error {
		<-release
		return nil
	})

	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	first, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(first)
		return err == nil && sub.Status == domain.SubmissionTracking
	}, 2*time.Second, 5*time.Millisecond)

	second, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(second)
		return err == nil && sub.Status == domain.SubmissionRejected
	}, 2*time.Second, 5*time.Millisecond)

	sub, _ := dispatcher.Get(second)
	assert.Equal(t, domain.ErrDuplicateJob.Error(), sub.Error)

	close(release)
}

func TestDispatcher_DistinctKeysRunIndependently(t *testing.T) {
	coord := &fakeCoordinator{}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)
	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	a, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)
	b, err := dispatcher.Submit(passwordRequest("user-2"))
	require.NoError(t, err)

	for _, id := range []domain.SubmissionID{a, b} {
		require.Eventually(t, func() bool {
			sub, err := dispatcher.Get(id)
			return err == nil && sub.Status == domain.SubmissionDone && sub.Outcome != nil
		}, 2*time.Second, 5*time.Millisecond)
	}
}

func TestDispatcher_ConcurrencyBound(t *testing.T) {
	var running, peak int32
	coord := &fakeCoordinator{
		createHashlistFn: func(ctx context.Context, name string, algorithm int) (int64, error) {
			current := atomic.AddInt32(&running, 1)
			for {
				max := atomic.LoadInt32(&peak)
				if current <= max || atomic.CompareAndSwapInt32(&peak, max, current) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return 7, nil
		},
	}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 5)
	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	var ids []domain.SubmissionID
	for i := 0; i < 5; i++ {
		id, err := dispatcher.Submit(passwordRequest(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		require.Eventually(t, func() bool {
			sub, err := dispatcher.Get(id)
			return err == nil && sub.Status == domain.SubmissionDone
		}, 5*time.Second, 5*time.Millisecond)
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDispatcher_FailureReleasesKeyForResubmission(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	coord := &fakeCoordinator{
		createHashlistFn: func(ctx context.Context, name string, algorithm int) (int64, error) {
			if failing.Load() {
				return 0, fmt.Errorf("coordinator unreachable")
			}
			return 7, nil
		},
	}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)
	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	first, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(first)
		return err == nil && sub.Status == domain.SubmissionDone && sub.Error != ""
	}, 2*time.Second, 5*time.Millisecond)

	sub, _ := dispatcher.Get(first)
	assert.Contains(t, sub.Error, "hashlist creation")

	// The key must be free again: a retry of the same pair is admitted.
	failing.Store(false)
	second, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(second)
		return err == nil && sub.Status == domain.SubmissionDone && sub.Outcome != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_PanicReleasesKeyAndFailsSubmission(t *testing.T) {
	var panicking atomic.Bool
	panicking.Store(true)
	coord := &fakeCoordinator{
		createHashlistFn: func(ctx context.Context, name string, algorithm int) (int64, error) {
			if panicking.Load() {
				panic("coordinator adapter blew up")
			}
			return 7, nil
		},
	}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)
	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	first, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)

	// The panic is contained: the submission fails cleanly instead of
	// killing the worker pool.
	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(first)
		return err == nil && sub.Status == domain.SubmissionDone && sub.Error != ""
	}, 2*time.Second, 5*time.Millisecond)

	sub, _ := dispatcher.Get(first)
	assert.Contains(t, sub.Error, "internal error")

	// The registry entry is released on the panic path too, so the same
	// pair is admitted again and the pool is still alive to run it.
	panicking.Store(false)
	second, err := dispatcher.Submit(passwordRequest("user-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(second)
		return err == nil && sub.Status == domain.SubmissionDone && sub.Outcome != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_UnknownAlgorithmFailsWithoutRemoteCalls(t *testing.T) {
	var remoteCalls atomic.Int32
	coord := &fakeCoordinator{
		createHashlistFn: func(ctx context.Context, name string, algorithm int) (int64, error) {
			remoteCalls.Add(1)
			return 7, nil
		},
	}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)
	dispatcher.Start(context.Background())
	defer func() {
		dispatcher.Stop()
		dispatcher.Wait()
	}()

	// Bypassing boundary validation must not silently map to mode id 0.
	id, err := dispatcher.Submit(domain.SubmissionRequest{
		RequesterID: "user-1",
		Algorithm:   "rot13",
		Hash:        "5f4dcc3b5aa765d61d8327deb882cf99",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sub, err := dispatcher.Get(id)
		return err == nil && sub.Status == domain.SubmissionDone && sub.Error != ""
	}, 2*time.Second, 5*time.Millisecond)

	sub, _ := dispatcher.Get(id)
	assert.Contains(t, sub.Error, "unknown algorithm")
	assert.Equal(t, int32(0), remoteCalls.Load())
}

func TestDispatcher_SubmitAfterStopFails(t *testing.T) {
	coord := &fakeCoordinator{}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)
	dispatcher.Start(context.Background())
	dispatcher.Stop()
	dispatcher.Wait()

	_, err := dispatcher.Submit(passwordRequest("user-1"))
	assert.Error(t, err)
}

func TestDispatcher_GetUnknownSubmission(t *testing.T) {
	coord := &fakeCoordinator{}
	dispatcher, _ := newTestDispatcher(t, coord, 2, 10)

	_, err := dispatcher.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}
