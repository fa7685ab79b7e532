package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/hashrelay/hashrelay/internal/core/ports"
	"github.com/hashrelay/hashrelay/internal/queue"
)

// DispatcherConfig bounds concurrent processing against the coordinator.
type DispatcherConfig struct {
	Workers         int64  // concurrent submission sequences, default 2
	DefaultWordlist string // assigned when a request names none
}

// Dispatcher accepts submissions, bounds how many run their remote-creation
// sequence concurrently, and runs each to a terminal outcome independently.
// Intake is unbounded; the semaphore is what protects the coordinator.
//
// A worker slot is held only through hashlist/task creation. Once the remote
// task exists the submission detaches into a tracking goroutine, so a slot
// is never pinned for the full polling ceiling. The registry entry stays
// held until tracking terminates, which keeps duplicate admission covering
// the whole polling window.
type Dispatcher struct {
	logger   *slog.Logger
	coord    ports.Coordinator
	registry *Registry
	tracker  *Tracker
	bus      *EventBus

	intake          *queue.Intake
	sem             *semaphore.Weighted
	defaultWordlist string

	running   atomic.Bool
	workersWG sync.WaitGroup
	trackWG   sync.WaitGroup

	submissions sync.Map // domain.SubmissionID -> domain.Submission
}

func NewDispatcher(logger *slog.Logger, coord ports.Coordinator, registry *Registry, tracker *Tracker, bus *EventBus, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DefaultWordlist == "" {
		cfg.DefaultWordlist = domain.DefaultWordlist
	}
	return &Dispatcher{
		logger:          logger,
		coord:           coord,
		registry:        registry,
		tracker:         tracker,
		bus:             bus,
		intake:          queue.NewIntake(),
		sem:             semaphore.NewWeighted(cfg.Workers),
		defaultWordlist: cfg.DefaultWordlist,
	}
}

// Start launches the intake consumer. Items are processed in arrival order
// but completion order is not FIFO: admission and the bounded pool reorder.
func (d *Dispatcher) Start(ctx context.Context) {
	d.running.Store(true)
	d.workersWG.Add(1)

	go func() {
		defer d.workersWG.Done()
		for d.running.Load() {
			req, ok := d.intake.Pop()
			if !ok {
				return
			}
			if err := d.sem.Acquire(ctx, 1); err != nil {
				d.logger.Info("dispatcher stopping, leaving backlog", "backlog", d.intake.Len())
				return
			}
			d.workersWG.Add(1)
			go func(r domain.SubmissionRequest) {
				defer d.workersWG.Done()
				defer d.sem.Release(1)
				d.process(ctx, r)
			}(req)
		}
	}()
}

// Submit enqueues a request and returns immediately; the caller is never
// blocked waiting for pipeline capacity.
func (d *Dispatcher) Submit(req domain.SubmissionRequest) (domain.SubmissionID, error) {
	if !d.running.Load() {
		return "", fmt.Errorf("dispatcher is shut down")
	}
	if req.ID == "" {
		req.ID = domain.SubmissionID(uuid.New().String())
	}
	if req.Wordlist == "" {
		req.Wordlist = d.defaultWordlist
	}

	now := time.Now()
	d.submissions.Store(req.ID, domain.Submission{
		Request:   req,
		Status:    domain.SubmissionQueued,
		CreatedAt: now,
		UpdatedAt: now,
	})
	d.intake.Push(req)
	d.publish(req.ID, EventTypeQueued, map[string]any{"status": domain.SubmissionQueued})
	d.logger.Info("submission queued", "submission_id", req.ID, "requester", req.RequesterID, "algorithm", req.Algorithm)
	return req.ID, nil
}

// Get returns the in-memory snapshot of a submission.
func (d *Dispatcher) Get(id domain.SubmissionID) (domain.Submission, error) {
	v, ok := d.submissions.Load(id)
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return v.(domain.Submission), nil
}

// Stop flips the running flag: no new submissions are accepted, workers
// finish their current item, detached trackers run to their natural terminal
// state. In-flight remote calls are not cancelled.
func (d *Dispatcher) Stop() {
	d.running.Store(false)
	d.intake.Close()
}

// Wait blocks until all workers and detached trackers have finished.
func (d *Dispatcher) Wait() {
	d.workersWG.Wait()
	d.trackWG.Wait()
}

// process runs one submission. Unexpected panics are contained and reported
// so a single item can never stop the worker pool, and the registry entry is
// released on every exit path exactly once.
func (d *Dispatcher) process(ctx context.Context, req domain.SubmissionRequest) {
	key := req.Key()
	acquired := false
	detached := false

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("submission processing panicked", "submission_id", req.ID, "panic", r)
			d.fail(req, "internal error while processing submission")
		}
		if acquired && !detached {
			d.registry.Release(key)
		}
	}()

	if !d.registry.TryAcquire(key) {
		d.logger.Info("duplicate submission rejected", "submission_id", req.ID, "requester", req.RequesterID)
		d.update(req.ID, func(s *domain.Submission) {
			s.Status = domain.SubmissionRejected
			s.Error = domain.ErrDuplicateJob.Error()
		})
		d.publish(req.ID, EventTypeRejected, map[string]any{"reason": domain.ErrDuplicateJob.Error()})
		return
	}
	acquired = true

	d.update(req.ID, func(s *domain.Submission) { s.Status = domain.SubmissionRunning })

	task, err := d.submitRemote(ctx, req)
	if err != nil {
		d.logger.Error("remote submission failed", "submission_id", req.ID, "error", err)
		d.fail(req, fmt.Sprintf("remote creation failed: %v", err))
		return
	}

	d.update(req.ID, func(s *domain.Submission) {
		s.Status = domain.SubmissionTracking
		s.Task = &task
	})
	d.publish(req.ID, EventTypeTaskCreated, map[string]any{"task_id": task.TaskID, "hashlist_id": task.HashlistID})
	d.logger.Info("task created", "submission_id", req.ID, "task_id", task.TaskID)

	// Detach tracking so the worker slot frees up. The tracker owns the
	// registry entry from here and releases it on its terminal outcome,
	// regardless of shutdown.
	detached = true
	d.trackWG.Add(1)
	go func() {
		defer d.trackWG.Done()
		defer d.registry.Release(key)
		outcome := d.tracker.Await(context.WithoutCancel(ctx), task)
		d.update(req.ID, func(s *domain.Submission) {
			s.Status = domain.SubmissionDone
			s.Outcome = &outcome
		})
		payload := map[string]any{"kind": outcome.Kind}
		if outcome.Kind == domain.OutcomeCracked {
			payload["plaintext"] = outcome.Plaintext
		}
		if outcome.Detail != "" {
			payload["detail"] = outcome.Detail
		}
		d.publish(req.ID, EventTypeOutcome, payload)
		d.logger.Info("submission finished", "submission_id", req.ID, "task_id", task.TaskID, "outcome", outcome.Kind)
	}()
}

// submitRemote performs the coordinator-side creation sequence. Error text
// names the stage that failed so callers get an actionable message without
// raw transport detail.
func (d *Dispatcher) submitRemote(ctx context.Context, req domain.SubmissionRequest) (domain.RemoteTask, error) {
	algorithm, ok := domain.SupportedAlgorithms[req.Algorithm]
	if !ok {
		return domain.RemoteTask{}, fmt.Errorf("unknown algorithm %q", req.Algorithm)
	}
	baseName := fmt.Sprintf("relay-%s-%s", req.RequesterID, req.Algorithm)

	hashlistID, err := d.coord.CreateHashlist(ctx, baseName, algorithm)
	if err != nil {
		return domain.RemoteTask{}, fmt.Errorf("hashlist creation: %w", err)
	}

	if err := d.coord.UploadHashes(ctx, hashlistID, []string{req.Hash}); err != nil {
		return domain.RemoteTask{}, fmt.Errorf("hash upload: %w", err)
	}

	taskID, err := d.coord.CreateTask(ctx, baseName+"-task", hashlistID, req.Wordlist, "")
	if err != nil {
		return domain.RemoteTask{}, fmt.Errorf("task creation: %w", err)
	}

	return domain.RemoteTask{HashlistID: hashlistID, TaskID: taskID}, nil
}

func (d *Dispatcher) fail(req domain.SubmissionRequest, msg string) {
	d.update(req.ID, func(s *domain.Submission) {
		s.Status = domain.SubmissionDone
		s.Error = msg
	})
	d.publish(req.ID, EventTypeError, map[string]any{"error": msg})
}

func (d *Dispatcher) update(id domain.SubmissionID, fn func(*domain.Submission)) {
	v, ok := d.submissions.Load(id)
	if !ok {
		return
	}
	s := v.(domain.Submission)
	fn(&s)
	s.UpdatedAt = time.Now()
	d.submissions.Store(id, s)
}

func (d *Dispatcher) publish(id domain.SubmissionID, typ EventType, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	d.bus.Publish(Event{
		SubmissionID: string(id),
		Type:         typ,
		Data:         string(data),
		Timestamp:    time.Now().Unix(),
	})
}
