package domain

import "time"

// TaskStatusDone and TaskStatusFailed are the only status values the
// coordinator reports that terminate polling; anything else means the task
// is still being worked on.
const (
	TaskStatusDone   = "done"
	TaskStatusFailed = "failed"
)

// TaskStatus is a point-in-time snapshot of a coordinator task.
type TaskStatus struct {
	TaskID   int64   `json:"task_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress,omitempty"`
	Cracked  int     `json:"cracked,omitempty"`
	Speed    int64   `json:"speed,omitempty"`
}

// CrackedHash pairs a hash with its recovered plaintext.
type CrackedHash struct {
	Hash     string `json:"hash"`
	Password string `json:"password"`
}

// Wordlist describes a dictionary file the coordinator can assign to a task.
type Wordlist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	LineCount int64  `json:"line_count"`
	Size      int64  `json:"size"`
}

// Agent describes a locally provisioned cracking agent container.
type Agent struct {
	ID          string    `json:"id"`
	ContainerID string    `json:"container_id"`
	Voucher     string    `json:"voucher"`
	CreatedAt   time.Time `json:"created_at"`
}
