// Package audit records state-mutating actions on the task stack.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/taskstack/internal/models"
)

// Actions recorded by the backend.
const (
	ActionPush   = "task.push"
	ActionPop    = "task.pop"
	ActionToggle = "task.toggle"
)

// Sink persists audit entries.
type Sink interface {
	WriteAudit(ctx context.Context, action, inputsHash, taskID string) (*models.AuditEntry, error)
}

// Recorder writes audit entries with a hash of the action inputs.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record writes one entry for a state-mutating action.
func (r *Recorder) Record(ctx context.Context, action string, inputs any, taskID string) (*models.AuditEntry, error) {
	return r.sink.WriteAudit(ctx, action, HashInputs(inputs), taskID)
}

// HashInputs returns the hex SHA256 of the JSON encoding of inputs.
func HashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
