// Package stack holds the ordered task collection a client reconciles
// against the server's event stream.
//
// Index 0 is the top of the stack (most recently pushed); the last index is
// the bottom (oldest). IDs are unique across the collection at all times.
package stack

import (
	"errors"
	"fmt"

	"github.com/fentz26/taskstack/internal/models"
)

var (
	// ErrUnknownAction is returned by Apply for an update action it does not recognise.
	ErrUnknownAction = errors.New("unknown update action")
	// ErrInvalidPayload is returned by Apply when a required field is missing.
	ErrInvalidPayload = errors.New("invalid update payload")
)

// ChangeKind describes what a mutation did to the stack.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Seeded
	Pushed
	Popped
	Updated
)

func (k ChangeKind) String() string {
	switch k {
	case Seeded:
		return "seeded"
	case Pushed:
		return "pushed"
	case Popped:
		return "popped"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Change is the result of a single mutation.
type Change struct {
	Kind   ChangeKind
	TaskID string
}

// Stack is the canonical ordered task collection.
// It is not safe for concurrent use; the owner serialises access.
type Stack struct {
	tasks []models.Task
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{}
}

// Len returns the number of tasks.
func (s *Stack) Len() int {
	return len(s.tasks)
}

// At returns the task at stack index i.
func (s *Stack) At(i int) (models.Task, bool) {
	if i < 0 || i >= len(s.tasks) {
		return models.Task{}, false
	}
	return s.tasks[i], true
}

// IndexOf returns the stack index of the task with the given id, or -1.
func (s *Stack) IndexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Tasks returns a copy of the collection in stack order.
func (s *Stack) Tasks() []models.Task {
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Display returns a copy of the collection in display order: oldest first,
// top of stack last.
func (s *Stack) Display() []models.Task {
	n := len(s.tasks)
	out := make([]models.Task, n)
	for i, t := range s.tasks {
		out[DisplayIndex(n, i)] = t
	}
	return out
}

// Next returns the next-older task after stack index current: the one the
// user reaches by scrolling further toward the oldest end.
func (s *Stack) Next(current int) (models.Task, bool) {
	if current < 0 {
		return models.Task{}, false
	}
	return s.At(current + 1)
}

// Seed replaces the whole collection. When the input repeats an id, the
// first (topmost) occurrence is kept.
func (s *Stack) Seed(tasks []models.Task) {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	s.tasks = out
}

// Push inserts t at the top. An existing task with the same id is removed
// first, so the newest copy wins and no duplicate is created.
func (s *Stack) Push(t models.Task) {
	if i := s.IndexOf(t.ID); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	s.tasks = append(s.tasks, models.Task{})
	copy(s.tasks[1:], s.tasks)
	s.tasks[0] = t
}

// Remove deletes the task with the given id. A miss is a no-op.
func (s *Stack) Remove(id string) bool {
	i := s.IndexOf(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return true
}

// Replace swaps in t for the task with the same id, keeping its position.
// A miss is a no-op.
func (s *Stack) Replace(t models.Task) bool {
	i := s.IndexOf(t.ID)
	if i < 0 {
		return false
	}
	s.tasks[i] = t
	return true
}

// SetCompleted updates only the completed flag of the task with the given id.
func (s *Stack) SetCompleted(id string, completed bool) bool {
	i := s.IndexOf(id)
	if i < 0 {
		return false
	}
	s.tasks[i].Completed = completed
	return true
}

// Apply dispatches an incremental update onto the mutation set.
// On error the stack is left unchanged.
func (s *Stack) Apply(u models.UpdatePayload) (Change, error) {
	switch u.Action {
	case models.ActionPush:
		if u.Task == nil {
			return Change{}, fmt.Errorf("%w: push without task", ErrInvalidPayload)
		}
		s.Push(*u.Task)
		return Change{Kind: Pushed, TaskID: u.Task.ID}, nil

	case models.ActionPop:
		if !s.Remove(u.TaskID) {
			return Change{Kind: Unchanged, TaskID: u.TaskID}, nil
		}
		return Change{Kind: Popped, TaskID: u.TaskID}, nil

	case models.ActionUpdate:
		if u.Task == nil {
			return Change{}, fmt.Errorf("%w: update without task", ErrInvalidPayload)
		}
		if !s.Replace(*u.Task) {
			return Change{Kind: Unchanged, TaskID: u.Task.ID}, nil
		}
		return Change{Kind: Updated, TaskID: u.Task.ID}, nil

	default:
		return Change{}, fmt.Errorf("%w: %q", ErrUnknownAction, u.Action)
	}
}

// DisplayIndex converts a stack index into a position in display order.
func DisplayIndex(n, stackIndex int) int {
	return n - 1 - stackIndex
}

// StackIndex converts a position in display order into a stack index.
func StackIndex(n, displayIndex int) int {
	return n - 1 - displayIndex
}
