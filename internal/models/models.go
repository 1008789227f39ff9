// Package models defines the core domain types for taskstack.
package models

import "time"

// Task is one entry of the task stack.
type Task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timeframe string `json:"timeframe"`
	Completed bool   `json:"completed"`
}

// NewTask is the request body for pushing a task; the server assigns the ID.
type NewTask struct {
	Name      string `json:"name"`
	Timeframe string `json:"timeframe"`
	Completed bool   `json:"completed"`
}

// Event names carried on the push-event stream.
const (
	EventInitial = "initial"
	EventUpdate  = "update"
)

// Action identifies the kind of incremental update.
type Action string

const (
	ActionPush   Action = "push"
	ActionPop    Action = "pop"
	ActionUpdate Action = "update"
)

// InitialPayload is the body of an "initial" event: a full resync.
type InitialPayload struct {
	Tasks []Task `json:"tasks"`
}

// UpdatePayload is the body of an "update" event.
// Push and update carry Task; pop carries TaskID.
type UpdatePayload struct {
	Action Action `json:"action"`
	Task   *Task  `json:"task,omitempty"`
	TaskID string `json:"task_id,omitempty"`
}

// AuditEntry records a state-mutating action on the backend.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	TaskID     string    `json:"task_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
