package services

import (
	"context"
	"sync/atomic"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// fakeCoordinator swaps individual coordinator calls per test. Unset hooks
// return happy-path defaults.
type fakeCoordinator struct {
	createHashlistFn func(ctx context.Context, name string, algorithm int) (int64, error)
	uploadHashesFn   func(ctx context.Context, hashlistID int64, hashes []string) error
	createTaskFn     func(ctx context.Context, name string, hashlistID int64, wordlist, rules string) (int64, error)
	taskStatusFn     func(ctx context.Context, taskID int64) (domain.TaskStatus, error)
	crackedFn        func(ctx context.Context, taskID int64) ([]domain.CrackedHash, error)

	statusCalls atomic.Int64
}

func (f *fakeCoordinator) CreateHashlist(ctx context.Context, name string, algorithm int) (int64, error) {
	if f.createHashlistFn != nil {
		return f.createHashlistFn(ctx, name, algorithm)
	}
	return 7, nil
}

func (f *fakeCoordinator) UploadHashes(ctx context.Context, hashlistID int64, hashes []string) error {
	if f.uploadHashesFn != nil {
		return f.uploadHashesFn(ctx, hashlistID, hashes)
	}
	return nil
}

func (f *fakeCoordinator) CreateTask(ctx context.Context, name string, hashlistID int64, wordlist, rules string) (int64, error) {
	if f.createTaskFn != nil {
		return f.createTaskFn(ctx, name, hashlistID, wordlist, rules)
	}
	return 42, nil
}

func (f *fakeCoordinator) GetTaskStatus(ctx context.Context, taskID int64) (domain.TaskStatus, error) {
	f.statusCalls.Add(1)
	if f.taskStatusFn != nil {
		return f.taskStatusFn(ctx, taskID)
	}
	return domain.TaskStatus{TaskID: taskID, Status: domain.TaskStatusDone}, nil
}

func (f *fakeCoordinator) GetCrackedHashes(ctx context.Context, taskID int64) ([]domain.CrackedHash, error) {
	if f.crackedFn != nil {
		return f.crackedFn(ctx, taskID)
	}
	return nil, nil
}

func (f *fakeCoordinator) StopTask(ctx context.Context, taskID int64) error { return nil }

func (f *fakeCoordinator) ListWordlists(ctx context.Context) ([]domain.Wordlist, error) {
	return nil, nil
}

func (f *fakeCoordinator) CreateVoucher(ctx context.Context) (string, error) {
	return "voucher-test", nil
}
