package ports

import (
	"context"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// Coordinator abstracts the remote cracking coordinator's REST surface.
// Implementations hide authentication lifecycle and transient-failure
// recovery; callers only ever see success or a terminal error.
type Coordinator interface {
	// CreateHashlist creates a coordinator-side hash container and returns its id.
	CreateHashlist(ctx context.Context, name string, algorithm int) (int64, error)

	// UploadHashes attaches hash values to an existing hashlist.
	UploadHashes(ctx context.Context, hashlistID int64, hashes []string) error

	// CreateTask schedules cracking work over a hashlist and returns the task id.
	CreateTask(ctx context.Context, name string, hashlistID int64, wordlist string, rules string) (int64, error)

	// GetTaskStatus returns a point-in-time snapshot of a task.
	GetTaskStatus(ctx context.Context, taskID int64) (domain.TaskStatus, error)

	// GetCrackedHashes returns the recovered plaintexts of a task.
	GetCrackedHashes(ctx context.Context, taskID int64) ([]domain.CrackedHash, error)

	// StopTask asks the coordinator to stop a task. Best effort.
	StopTask(ctx context.Context, taskID int64) error

	// ListWordlists returns the wordlist-type entries of the file catalog.
	ListWordlists(ctx context.Context) ([]domain.Wordlist, error)

	// CreateVoucher mints an enrollment token for a new compute agent.
	CreateVoucher(ctx context.Context) (string, error)
}

// TraceStore persists coordinator call telemetry.
type TraceStore interface {
	SaveCallTrace(ctx context.Context, trace domain.CallTrace) error
	ListCallTraces(ctx context.Context, limit int) ([]domain.CallTrace, error)
}

// AgentProvisioner manages locally provisioned cracking agent containers.
type AgentProvisioner interface {
	Provision(ctx context.Context, serverURL, voucher string) (domain.Agent, error)
	List(ctx context.Context) ([]domain.Agent, error)
	Remove(ctx context.Context, id string) error
}
