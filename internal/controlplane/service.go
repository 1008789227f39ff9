// Package controlplane provides the HTTP API and service layer for the task
// stack backend.
package controlplane

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fentz26/taskstack/internal/audit"
	"github.com/fentz26/taskstack/internal/models"
	"github.com/fentz26/taskstack/internal/store"
	"github.com/rs/zerolog"
)

// Service provides the task stack business logic. Every mutation is
// persisted, audited and broadcast.
type Service struct {
	// mu orders broadcasts the same as store commits.
	mu sync.Mutex

	store    *store.Store
	recorder *audit.Recorder
	hub      *Hub
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewService creates a new service. metrics may be nil.
func NewService(s *store.Store, recorder *audit.Recorder, hub *Hub, metrics *Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:    s,
		recorder: recorder,
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
	}
}

// Hub returns the update broadcaster.
func (s *Service) Hub() *Hub {
	return s.hub
}

// --- Task Operations ---

// ListTasks returns the stack, top first.
func (s *Service) ListTasks(ctx context.Context) ([]models.Task, error) {
	return s.store.ListTasks(ctx)
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrTaskNotFound) {
		return models.Task{}, ErrTaskNotFound
	}
	return task, err
}

// PeekTask returns the top of the stack.
func (s *Service) PeekTask(ctx context.Context) (models.Task, error) {
	task, err := s.store.PeekTask(ctx)
	if errors.Is(err, store.ErrEmptyStack) {
		return models.Task{}, ErrEmptyStack
	}
	return task, err
}

// PushTask creates a task on top of the stack.
func (s *Service) PushTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Timeframe = strings.TrimSpace(in.Timeframe)
	if in.Name == "" {
		return models.Task{}, ErrInvalidTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.PushTask(ctx, in)
	if err != nil {
		return models.Task{}, err
	}

	s.record(ctx, audit.ActionPush, in, task.ID)
	s.hub.Publish(models.UpdatePayload{Action: models.ActionPush, Task: &task})
	s.observeDepth(ctx)
	return task, nil
}

// PopTask removes the top of the stack.
func (s *Service) PopTask(ctx context.Context) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.PopTask(ctx)
	if errors.Is(err, store.ErrEmptyStack) {
		return models.Task{}, ErrEmptyStack
	}
	if err != nil {
		return models.Task{}, err
	}

	s.record(ctx, audit.ActionPop, map[string]string{"task_id": task.ID}, task.ID)
	s.hub.Publish(models.UpdatePayload{Action: models.ActionPop, TaskID: task.ID})
	s.observeDepth(ctx)
	return task, nil
}

// ToggleTask flips the completed flag of a task.
func (s *Service) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.ToggleTask(ctx, id)
	if errors.Is(err, store.ErrTaskNotFound) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, err
	}

	s.record(ctx, audit.ActionToggle, map[string]any{"task_id": id, "completed": task.Completed}, id)
	s.hub.Publish(models.UpdatePayload{Action: models.ActionUpdate, Task: &task})
	return task, nil
}

// SeedDefaults loads the demo stack when the store is empty.
func (s *Service) SeedDefaults(ctx context.Context) error {
	n, err := s.store.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info().Int("tasks", n).Msg("seeded default tasks")
	}
	s.observeDepth(ctx)
	return nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// record writes an audit entry. Audit failures are logged, never surfaced:
// the mutation has already happened.
func (s *Service) record(ctx context.Context, action string, inputs any, taskID string) {
	if _, err := s.recorder.Record(ctx, action, inputs, taskID); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Str("task_id", taskID).Msg("audit write failed")
	}
}

func (s *Service) observeDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.store.CountTasks(ctx); err == nil {
		s.metrics.stackDepth.Set(float64(n))
	}
}
