// Package syncclient keeps a local task stack consistent with the backend.
//
// A Client seeds its stack with one fetch, then applies the push-event
// stream incrementally. Every reaction (load completion, stream message,
// command response) runs under one mutex and looks tasks up by id at the
// moment it is applied, so responses that arrive after the stack moved on
// never act on a stale position.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fentz26/taskstack/internal/models"
	"github.com/fentz26/taskstack/internal/sse"
	"github.com/fentz26/taskstack/internal/stack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("sync client closed")

// Backend is the subset of the API the client needs.
type Backend interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	ToggleTask(ctx context.Context, id string) (models.Task, error)
	PopTask(ctx context.Context) (models.Task, error)
	Subscribe(ctx context.Context) (io.ReadCloser, error)
}

// Status is the load state of the client.
type Status int

const (
	Loading Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "loading"
	}
}

// ChangeKind names what changed in the client.
type ChangeKind int

const (
	Seeded ChangeKind = iota
	Pushed
	Popped
	Updated
	StatusChanged
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
		return "status"
	}
}

// Change is a hint that the client state moved. Consumers re-read Snapshot.
type Change struct {
	Kind   ChangeKind
	TaskID string
}

// Snapshot is a consistent copy of the client state.
type Snapshot struct {
	Status Status
	// Err is the user-facing message when Status is Failed.
	Err   string
	Tasks []models.Task
}

const changeBuffer = 64

// Client reconciles a local stack against the backend.
type Client struct {
	backend  Backend
	notifier Notifier
	logger   zerolog.Logger
	policy   Policy

	mu      sync.Mutex
	stack   *stack.Stack
	status  Status
	errMsg  string
	closed  bool
	changes chan Change

	// subMu serialises Subscribe and Close.
	subMu     sync.Mutex
	subCancel context.CancelFunc
	subDone   chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithNotifier sets where user-facing messages go.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithReconnect sets the stream reconnect policy.
func WithReconnect(p Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// New creates a client in the Loading state with an empty stack.
func New(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:  backend,
		notifier: discardNotifier{},
		logger:   log.Logger,
		policy:   DefaultPolicy(),
		stack:    stack.New(),
		status:   Loading,
		changes:  make(chan Change, changeBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "syncclient").Logger()
	return c
}

// Start loads the stack and opens the event stream. The stream is opened
// even when the load fails; the load error is returned.
func (c *Client) Start(ctx context.Context) error {
	loadErr := c.Load(ctx)
	if errors.Is(loadErr, ErrClosed) {
		return loadErr
	}
	if err := c.Subscribe(ctx); err != nil {
		return err
	}
	return loadErr
}

// Load performs the seed fetch. On failure the client is Failed, the user
// is notified and the stack is left untouched.
func (c *Client) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.setStatusLocked(Loading, "")
	c.mu.Unlock()

	tasks, err := c.backend.ListTasks(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.setStatusLocked(Failed, MsgLoadFailed)
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("load tasks failed")
		return fmt.Errorf("load tasks: %w", err)
	}
	c.stack.Seed(tasks)
	c.emitLocked(Change{Kind: Seeded})
	c.setStatusLocked(Ready, "")
	n := c.stack.Len()
	c.mu.Unlock()

	c.logger.Debug().Int("tasks", n).Msg("stack loaded")
	return nil
}

// Subscribe opens the event stream, tearing down any existing subscription
// first. The stream runs until ctx is cancelled, Close is called, or it fails
// and the reconnect policy gives up.
func (c *Client) Subscribe(ctx context.Context) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.teardownLocked()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.subCancel = cancel
	c.subDone = done

	go c.run(sctx, done)
	return nil
}

// Unsubscribe closes the event stream, if any, and waits for it to stop.
func (c *Client) Unsubscribe() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.teardownLocked()
}

func (c *Client) teardownLocked() {
	if c.subCancel == nil {
		return
	}
	c.subCancel()
	<-c.subDone
	c.subCancel = nil
	c.subDone = nil
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	bo := c.policy.newBackOff()
	attempts := 0

	for {
		received, err := c.stream(ctx)
		if ctx.Err() != nil || errors.Is(err, ErrClosed) {
			return
		}
		c.logger.Error().Err(err).Msg("event stream failed")

		if bo == nil {
			return
		}
		if received {
			bo.Reset()
			attempts = 0
		}
		attempts++
		if c.policy.MaxAttempts > 0 && attempts > c.policy.MaxAttempts {
			c.logger.Warn().Int("attempts", attempts-1).Msg("giving up on event stream")
			return
		}

		wait := bo.NextBackOff()
		if wait < 0 {
			return
		}
		c.logger.Info().Dur("wait", wait).Int("attempt", attempts).Msg("reconnecting event stream")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream reads one connection until it ends. received reports whether at
// least one event arrived.
func (c *Client) stream(ctx context.Context) (received bool, err error) {
	body, err := c.backend.Subscribe(ctx)
	if err != nil {
		return false, err
	}
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	c.logger.Debug().Msg("event stream open")

	err = sse.Read(ctx, body, func(ev sse.Event) error {
		received = true
		if err := c.HandleEvent(ev.Name, []byte(ev.Data)); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			c.logger.Warn().Err(err).Str("event", ev.Name).Msg("ignoring event")
		}
		return nil
	})
	return received, err
}

// HandleEvent applies one stream message. Decode failures are returned and
// leave the state untouched; unknown event names are ignored.
func (c *Client) HandleEvent(name string, data []byte) error {
	var notes []notification

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switch name {
	case models.EventInitial:
		var payload models.InitialPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("decode %s payload: %w", name, err)
		}
		c.stack.Seed(payload.Tasks)
		c.emitLocked(Change{Kind: Seeded})
		if c.status == Loading {
			c.setStatusLocked(Ready, "")
		}

	case models.EventUpdate:
		var payload models.UpdatePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("decode %s payload: %w", name, err)
		}
		change, err := c.stack.Apply(payload)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		switch change.Kind {
		case stack.Pushed:
			c.emitLocked(Change{Kind: Pushed, TaskID: change.TaskID})
			notes = append(notes, notification{Success, msgTaskAdded + payload.Task.Name})
		case stack.Popped:
			c.emitLocked(Change{Kind: Popped, TaskID: change.TaskID})
			notes = append(notes, notification{Info, MsgTaskPopped})
		case stack.Updated:
			c.emitLocked(Change{Kind: Updated, TaskID: change.TaskID})
		default:
			c.logger.Debug().Str("action", string(payload.Action)).Str("task_id", change.TaskID).Msg("update did not match any task")
		}

	default:
		c.logger.Debug().Str("event", name).Msg("unhandled event")
	}
	c.mu.Unlock()

	c.deliver(notes)
	return nil
}

// Toggle flips the completed flag of a task on the backend and applies the
// server's answer locally by id. A task that left the stack meanwhile stays
// gone.
func (c *Client) Toggle(ctx context.Context, id string) error {
	if c.isClosed() {
		return ErrClosed
	}

	task, err := c.backend.ToggleTask(ctx, id)
	if err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		c.logger.Error().Err(err).Str("task_id", id).Msg("toggle task failed")
		c.notifier.Notify(Error, MsgToggleFailed)
		return fmt.Errorf("toggle task %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.stack.SetCompleted(id, task.Completed) {
		c.emitLocked(Change{Kind: Updated, TaskID: id})
	}
	return nil
}

// PopTop asks the backend to pop the top task. The local stack changes only
// when the matching event arrives on the stream.
func (c *Client) PopTop(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	if _, err := c.backend.PopTask(ctx); err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		c.logger.Error().Err(err).Msg("pop task failed")
		c.notifier.Notify(Error, MsgPopFailed)
		return fmt.Errorf("pop task: %w", err)
	}
	return nil
}

// Close stops the subscription and detaches the client. Later responses and
// events are ignored. Close is idempotent.
func (c *Client) Close() error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.teardownLocked()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.changes)
	return nil
}

// Changes returns the change feed. Sends never block: when the buffer is
// full a hint is dropped, never state. The channel is closed by Close.
func (c *Client) Changes() <-chan Change {
	return c.changes
}

// Snapshot returns a copy of the current state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status: c.status,
		Err:    c.errMsg,
		Tasks:  c.stack.Tasks(),
	}
}

// Display returns the tasks in display order: oldest first.
func (c *Client) Display() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stack.Display()
}

// Next returns the task after the given stack index.
func (c *Client) Next(currentIndex int) (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stack.Next(currentIndex)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) setStatusLocked(s Status, msg string) {
	if c.status == s && c.errMsg == msg {
		return
	}
	c.status = s
	c.errMsg = msg
	c.emitLocked(Change{Kind: StatusChanged})
}

func (c *Client) emitLocked(ch Change) {
	if c.closed {
		return
	}
	select {
	case c.changes <- ch:
	default:
		c.logger.Debug().Stringer("kind", ch.Kind).Msg("change feed full, dropping hint")
	}
}

func (c *Client) deliver(notes []notification) {
	for _, n := range notes {
		c.notifier.Notify(n.kind, n.message)
	}
}
