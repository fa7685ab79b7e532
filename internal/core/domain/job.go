package domain

import (
	"errors"
	"time"
)

// SubmissionID identifies one accepted submission for the lifetime of the process.
type SubmissionID string

// JobKey identifies a unit of work: one requester cracking one exact hash value.
// Equality is structural, so it can be used directly as a map key.
type JobKey struct {
	RequesterID string
	Hash        string
}

// JobRecord is the ephemeral admission entry held while a submission is in flight.
type JobRecord struct {
	Status    string
	CreatedAt time.Time
}

const JobRecordRunning = "running"

// SubmissionRequest is the validated input to the dispatch pipeline.
// Algorithm membership and hash format are checked at the gateway boundary
// before a request is admitted.
type SubmissionRequest struct {
	ID          SubmissionID `json:"id"`
	RequesterID string       `json:"requester_id"`
	Algorithm   string       `json:"algorithm"`
	Hash        string       `json:"hash"`
	Wordlist    string       `json:"wordlist,omitempty"`
}

// Key returns the admission key for this request.
func (r SubmissionRequest) Key() JobKey {
	return JobKey{RequesterID: r.RequesterID, Hash: r.Hash}
}

// RemoteTask holds the opaque coordinator-side handles for a submission.
// Their internal structure is meaningful only to the coordinator.
type RemoteTask struct {
	HashlistID int64 `json:"hashlist_id"`
	TaskID     int64 `json:"task_id"`
}

// OutcomeKind is the terminal result class of a tracked task.
type OutcomeKind string

const (
	OutcomeCracked           OutcomeKind = "cracked"
	OutcomeCompletedNoResult OutcomeKind = "completed_no_result"
	OutcomeFailed            OutcomeKind = "failed"
	OutcomeTimedOut          OutcomeKind = "timed_out"
	OutcomeTransportError    OutcomeKind = "transport_error"
)

// TaskOutcome is produced exactly once per tracked submission.
type TaskOutcome struct {
	Kind      OutcomeKind `json:"kind"`
	Plaintext string      `json:"plaintext,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// SubmissionStatus is the externally visible lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionQueued   SubmissionStatus = "QUEUED"
	SubmissionRejected SubmissionStatus = "REJECTED"
	SubmissionRunning  SubmissionStatus = "RUNNING"
	SubmissionTracking SubmissionStatus = "TRACKING"
	SubmissionDone     SubmissionStatus = "DONE"
)

// Submission is the in-memory snapshot kept for status queries.
// It lives only for the process lifetime.
type Submission struct {
	Request   SubmissionRequest `json:"request"`
	Status    SubmissionStatus  `json:"status"`
	Task      *RemoteTask       `json:"task,omitempty"`
	Outcome   *TaskOutcome      `json:"outcome,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

var ErrSubmissionNotFound = errors.New("submission not found")
