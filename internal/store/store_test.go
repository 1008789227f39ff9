package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fentz26/taskstack/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.PushTask(ctx, models.NewTask{Name: "persisted"}); err != nil {
		t.Fatalf("PushTask failed: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "persisted" {
		t.Errorf("Expected the persisted task after reopen, got %+v", tasks)
	}
}

func TestPushListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.PushTask(ctx, models.NewTask{Name: "Write report", Timeframe: "this week"})
	if err != nil {
		t.Fatalf("PushTask failed: %v", err)
	}
	if len(first.ID) != 8 {
		t.Errorf("Expected an 8-character id, got %q", first.ID)
	}
	second, err := s.PushTask(ctx, models.NewTask{Name: "Call dentist", Timeframe: "today"})
	if err != nil {
		t.Fatalf("PushTask failed: %v", err)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Errorf("Expected newest first, got %s, %s", tasks[0].ID, tasks[1].ID)
	}

	top, err := s.PeekTask(ctx)
	if err != nil {
		t.Fatalf("PeekTask failed: %v", err)
	}
	if top.ID != second.ID {
		t.Errorf("Expected peek to return %s, got %s", second.ID, top.ID)
	}
}

func TestPopTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PopTask(ctx); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("Expected ErrEmptyStack, got %v", err)
	}
	if _, err := s.PeekTask(ctx); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("Expected ErrEmptyStack from peek, got %v", err)
	}

	a, _ := s.PushTask(ctx, models.NewTask{Name: "a"})
	b, _ := s.PushTask(ctx, models.NewTask{Name: "b"})

	popped, err := s.PopTask(ctx)
	if err != nil {
		t.Fatalf("PopTask failed: %v", err)
	}
	if popped.ID != b.ID {
		t.Errorf("Expected to pop %s, got %s", b.ID, popped.ID)
	}

	// A push after a pop still lands on top.
	c, _ := s.PushTask(ctx, models.NewTask{Name: "c"})
	tasks, _ := s.ListTasks(ctx)
	if len(tasks) != 2 || tasks[0].ID != c.ID || tasks[1].ID != a.ID {
		t.Errorf("Unexpected stack after pop and push: %+v", tasks)
	}
}

func TestToggleTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, _ := s.PushTask(ctx, models.NewTask{Name: "toggle me"})

	toggled, err := s.ToggleTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("Expected task to be completed after first toggle")
	}

	toggled, err = s.ToggleTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	if toggled.Completed {
		t.Error("Expected task to be open after second toggle")
	}

	if _, err := s.ToggleTask(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
	if _, err := s.GetTask(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound from GetTask, got %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.SeedDefaults(ctx)
	if err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}
	if n != len(DefaultTasks) {
		t.Errorf("Expected %d seeded tasks, got %d", len(DefaultTasks), n)
	}

	tasks, _ := s.ListTasks(ctx)
	for i := range DefaultTasks {
		if tasks[i] != DefaultTasks[i] {
			t.Errorf("Task %d: expected %+v, got %+v", i, DefaultTasks[i], tasks[i])
		}
	}

	n, err = s.SeedDefaults(ctx)
	if err != nil {
		t.Fatalf("second SeedDefaults failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected a non-empty stack to be left alone, seeded %d", n)
	}
}

func TestAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.WriteAudit(ctx, "task.push", "abc", "t1"); err != nil {
		t.Fatalf("WriteAudit failed: %v", err)
	}
	if _, err := s.WriteAudit(ctx, "task.pop", "def", ""); err != nil {
		t.Fatalf("WriteAudit failed: %v", err)
	}

	entries, err := s.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "task.pop" {
		t.Errorf("Expected newest entry first, got %s", entries[0].Action)
	}
	if entries[1].TaskID != "t1" {
		t.Errorf("Expected task id t1, got %q", entries[1].TaskID)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
