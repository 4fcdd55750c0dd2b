package work

import (
	"context"
	"time"
)

// TaskTimeout is the maximum duration a task can run before being cancelled.
const TaskTimeout = 7 * time.Minute

const (
	// DefaultWorkers is the default number of concurrent workers.
	DefaultWorkers = 3
	// DefaultQueueSize is the default number of pending tasks.
	DefaultQueueSize = 32
)

// TaskFunc is the body of a task. The context is cancelled on timeout or
// when the pool is stopped forcefully.
type TaskFunc func(ctx context.Context) error

// Task is a unit of queued work.
type Task struct {
	// Name identifies the task in logs and status (e.g. "refresh:bullish_factors").
	Name string

	// Run performs the work.
	Run TaskFunc

	// QueuedAt is when the task was accepted.
	QueuedAt time.Time
}

// Running describes a task currently executing on a worker.
type Running struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers    int       `json:"workers"`
	QueueSize  int       `json:"queue_size"`
	QueueDepth int       `json:"queue_depth"`
	Running    []Running `json:"running"`
	Completed  int64     `json:"completed"`
	Failed     int64     `json:"failed"`
	Rejected   int64     `json:"rejected"`
}
