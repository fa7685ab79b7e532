package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/hashrelay/hashrelay/internal/core/ports"
)

// SleepFunc is the tracker's clock dependency; tests swap it to simulate the
// passage of time without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TrackerConfig bounds the polling loop.
type TrackerConfig struct {
	Interval time.Duration // delay between polls, default 10s
	MaxPolls int           // iteration ceiling, default 360 (1 hour at 10s)
}

// Tracker turns a fire-and-forget coordinator task into an awaited result.
// It polls task status at a fixed interval until the coordinator reports a
// terminal state or the iteration ceiling is reached. The ceiling is a hard
// timeout, not a retry budget: a transient status error consumes an
// iteration but never terminates the loop.
type Tracker struct {
	logger   *slog.Logger
	coord    ports.Coordinator
	interval time.Duration
	maxPolls int
	sleep    SleepFunc
}

func NewTracker(logger *slog.Logger, coord ports.Coordinator, cfg TrackerConfig) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 360
	}
	return &Tracker{
		logger:   logger,
		coord:    coord,
		interval: cfg.Interval,
		maxPolls: cfg.MaxPolls,
		sleep:    realSleep,
	}
}

// SetSleep replaces the inter-poll delay. Test hook.
func (t *Tracker) SetSleep(fn SleepFunc) { t.sleep = fn }

// Await polls task status until a terminal outcome. It returns exactly one
// TaskOutcome per call.
func (t *Tracker) Await(ctx context.Context, task domain.RemoteTask) domain.TaskOutcome {
	for i := 0; i < t.maxPolls; i++ {
		if err := t.sleep(ctx, t.interval); err != nil {
			return domain.TaskOutcome{
				Kind:   domain.OutcomeTransportError,
				Detail: fmt.Sprintf("tracking interrupted: %v", err),
			}
		}

		status, err := t.coord.GetTaskStatus(ctx, task.TaskID)
		if err != nil {
			// Transient miss: consumes an iteration, loop continues.
			t.logger.Warn("task status poll failed", "task_id", task.TaskID, "poll", i+1, "error", err)
			continue
		}

		switch status.Status {
		case domain.TaskStatusDone:
			return t.collectResult(ctx, task)
		case domain.TaskStatusFailed:
			return domain.TaskOutcome{Kind: domain.OutcomeFailed, Detail: "coordinator reported task failure"}
		}
	}

	return domain.TaskOutcome{
		Kind:   domain.OutcomeTimedOut,
		Detail: fmt.Sprintf("no terminal status after %d polls", t.maxPolls),
	}
}

func (t *Tracker) collectResult(ctx context.Context, task domain.RemoteTask) domain.TaskOutcome {
	cracked, err := t.coord.GetCrackedHashes(ctx, task.TaskID)
	if err != nil {
		return domain.TaskOutcome{
			Kind:   domain.OutcomeTransportError,
			Detail: fmt.Sprintf("task finished but results could not be fetched: %v", err),
		}
	}
	if len(cracked) > 0 && cracked[0].Password != "" {
		return domain.TaskOutcome{Kind: domain.OutcomeCracked, Plaintext: cracked[0].Password}
	}
	return domain.TaskOutcome{Kind: domain.OutcomeCompletedNoResult, Detail: "task completed without recovering a password"}
}
