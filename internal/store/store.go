// Package store provides SQLite-backed persistence for the task stack.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/taskstack/internal/models"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Sentinel errors for store operations.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrEmptyStack   = errors.New("stack is empty")
)

// DefaultTasks is the demo stack loaded by SeedDefaults, top first.
var DefaultTasks = []models.Task{
	{ID: "1", Name: "Finish ray implementation", Timeframe: "20 hours"},
	{ID: "2", Name: "Finish database project", Timeframe: "6 days"},
	{ID: "3", Name: "Finish courses", Timeframe: "4.5 months"},
	{ID: "4", Name: "Finish PhD", Timeframe: "4.42 years"},
	{ID: "5", Name: "Succeed", Timeframe: "33.15 years"},
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store provides access to the task stack database.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			if stmt == "PRAGMA journal_mode=WAL;" {
				log.Warn().Err(err).Msg("sqlite: WAL mode not enabled")
				continue
			}
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Task Operations ---

// NewTaskID returns an 8-character task id.
func NewTaskID() string {
	return uuid.New().String()[:8]
}

// PushTask places a new task on top of the stack.
func (s *Store) PushTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	task := models.Task{
		ID:        NewTaskID(),
		Name:      in.Name,
		Timeframe: in.Timeframe,
		Completed: in.Completed,
	}
	if err := s.insertTop(ctx, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *Store) insertTop(ctx context.Context, task models.Task) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, name, timeframe, completed, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM tasks), ?, ?)`,
		task.ID, task.Name, task.Timeframe, task.Completed, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// PeekTask returns the top of the stack.
func (s *Store) PeekTask(ctx context.Context) (models.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT id, name, timeframe, completed FROM tasks ORDER BY position DESC LIMIT 1`,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrEmptyStack
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("query top task: %w", err)
	}
	return task, nil
}

// PopTask removes and returns the top of the stack.
func (s *Store) PopTask(ctx context.Context) (models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	task, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT id, name, timeframe, completed FROM tasks ORDER BY position DESC LIMIT 1`,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrEmptyStack
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("query top task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, task.ID); err != nil {
		return models.Task{}, fmt.Errorf("delete task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit tx: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT id, name, timeframe, completed FROM tasks WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ToggleTask flips the completed flag and returns the updated task.
func (s *Store) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed = NOT completed, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return models.Task{}, fmt.Errorf("toggle task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Task{}, ErrTaskNotFound
	}
	return s.GetTask(ctx, id)
}

// ListTasks returns the whole stack, top first.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, timeframe, completed FROM tasks ORDER BY position DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CountTasks returns the stack depth.
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// SeedDefaults loads DefaultTasks into an empty stack and reports how many
// tasks it inserted.
func (s *Store) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.CountTasks(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	// Insert bottom first so the first default ends up on top.
	for i := len(DefaultTasks) - 1; i >= 0; i-- {
		if err := s.insertTop(ctx, DefaultTasks[i]); err != nil {
			return 0, err
		}
	}
	return len(DefaultTasks), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	err := row.Scan(&task.ID, &task.Name, &task.Timeframe, &task.Completed)
	return task, err
}

// --- Audit Operations ---

// WriteAudit records a state-mutating action.
func (s *Store) WriteAudit(ctx context.Context, action, inputsHash, taskID string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		TaskID:     taskID,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit (id, action, inputs_hash, task_id, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.InputsHash, entry.TaskID, entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit: %w", err)
	}
	return entry, nil
}

// ListAudit returns the most recent audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, inputs_hash, task_id, timestamp FROM audit ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var taskID sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &taskID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.TaskID = taskID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
