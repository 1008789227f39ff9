// Package tui renders the task stack as a scrollable column of cards.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskstack/internal/models"
	"github.com/fentz26/taskstack/internal/stack"
	"github.com/fentz26/taskstack/internal/syncclient"
	stackview "github.com/fentz26/taskstack/internal/viewport"
	"github.com/rs/zerolog/log"
)

const msgPushFailed = "Failed to add task. Please try again."

// Syncer is the sync client surface the UI consumes.
type Syncer interface {
	Start(ctx context.Context) error
	Snapshot() syncclient.Snapshot
	Next(currentIndex int) (models.Task, bool)
	Toggle(ctx context.Context, id string) error
	PopTop(ctx context.Context) error
	Changes() <-chan syncclient.Change
	Close() error
}

// Pusher creates tasks.
type Pusher interface {
	PushTask(ctx context.Context, in models.NewTask) (models.Task, error)
}

// App is the main TUI application model.
type App struct {
	ctx    context.Context
	client Syncer
	pusher Pusher
	notes  <-chan noteMsg
	keys   keyMap

	viewport viewport.Model
	spinner  spinner.Model
	cmdBar   *CmdBarModel

	width      int
	height     int
	cardHeight int

	snap    syncclient.Snapshot
	display []models.Task
	spans   []stackview.Span
	state   stackview.State

	dirty          bool
	frameScheduled bool
	needsBottom    bool
	note           *noteMsg
	noteSeq        int
}

// New creates the application. notifier may be nil.
func New(ctx context.Context, client Syncer, pusher Pusher, notifier *Notifier) *App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	vp := viewport.New(80, 20)

	a := &App{
		ctx:      ctx,
		client:   client,
		pusher:   pusher,
		keys:     defaultKeyMap(),
		viewport: vp,
		spinner:  sp,
		cmdBar:   NewCmdBarModel(),
		snap:     client.Snapshot(),
	}
	if notifier != nil {
		a.notes = notifier.ch
	}
	return a
}

// Run starts the program and closes the client when it exits.
func Run(ctx context.Context, client Syncer, pusher Pusher, notifier *Notifier) error {
	app := New(ctx, client, pusher, notifier)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if cerr := client.Close(); cerr != nil {
		log.Debug().Err(cerr).Msg("close sync client")
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		a.start(),
		waitForChange(a.client.Changes()),
		a.listenNotes(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		cmds = append(cmds, cmd, a.markDirty())

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		cmds = append(cmds, a.markDirty())

	case spinner.TickMsg:
		if a.snap.Status == syncclient.Loading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case startedMsg:
		if msg.err != nil {
			log.Debug().Err(msg.err).Msg("sync client start")
		}
		a.refresh()
		a.recompute()
		cmds = append(cmds, a.markDirty())

	case changeMsg:
		a.refresh()
		a.recompute()
		if msg.change.Kind == syncclient.Pushed {
			cmds = append(cmds, tea.Tick(scrollDelay, func(time.Time) tea.Msg { return scrollBottomMsg{} }))
		}
		cmds = append(cmds, waitForChange(a.client.Changes()), a.markDirty())

	case feedClosedMsg:

	case scrollBottomMsg:
		a.viewport.GotoBottom()
		cmds = append(cmds, a.markDirty())

	case noteMsg:
		n := msg
		a.note = &n
		a.noteSeq++
		seq := a.noteSeq
		cmds = append(cmds, tea.Tick(noteLifetime, func(time.Time) tea.Msg { return clearNoteMsg{seq: seq} }))
		if msg.fromFeed {
			cmds = append(cmds, a.listenNotes())
		}

	case clearNoteMsg:
		if msg.seq == a.noteSeq {
			a.note = nil
		}

	case frameMsg:
		a.frameScheduled = false
		if a.dirty {
			a.recompute()
		}

	case commandResultMsg:
		if msg.err != nil && !errors.Is(msg.err, syncclient.ErrClosed) {
			log.Debug().Err(msg.err).Msg("command failed")
		}
	}

	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if a.cmdBar.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			return a.push(a.cmdBar.Submit())
		case tea.KeyEsc:
			a.cmdBar.Blur()
			return nil
		}
		return a.cmdBar.Update(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Up):
		a.viewport.LineUp(1)
	case key.Matches(msg, a.keys.Down):
		a.viewport.LineDown(1)
	case key.Matches(msg, a.keys.PageUp):
		a.snapBy(-1)
	case key.Matches(msg, a.keys.PageDown):
		a.snapBy(1)
	case key.Matches(msg, a.keys.Top):
		a.viewport.GotoTop()
	case key.Matches(msg, a.keys.Bottom):
		a.viewport.GotoBottom()
	case key.Matches(msg, a.keys.Toggle):
		return a.toggleCurrent()
	case key.Matches(msg, a.keys.Pop):
		return a.popTop()
	case key.Matches(msg, a.keys.Push):
		return a.cmdBar.Focus()
	default:
		return nil
	}
	return a.markDirty()
}

// markDirty schedules one frame for any number of scroll signals.
func (a *App) markDirty() tea.Cmd {
	a.dirty = true
	if a.frameScheduled {
		return nil
	}
	a.frameScheduled = true
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

func (a *App) recompute() {
	a.dirty = false
	prev := a.state
	a.state = stackview.Compute(a.spans, stackview.Scroll{
		Top:    float64(a.viewport.YOffset),
		Height: float64(a.viewport.TotalLineCount()),
		Client: float64(a.viewport.Height),
	})
	if prev.CurrentIndex != a.state.CurrentIndex || prev.HasCurrent != a.state.HasCurrent {
		a.renderContent()
	}
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	a.viewport.Width = width
	a.viewport.Height = max(1, height-chromeHeight)
	a.cardHeight = max(minCardHeight, a.viewport.Height*3/4)
	a.cmdBar.SetWidth(width)
	a.renderContent()
}

// refresh re-reads the client state. The change feed only hints; the
// snapshot is the truth. The first non-empty snapshot opens on the newest
// task once there is a viewport to scroll.
func (a *App) refresh() {
	a.snap = a.client.Snapshot()
	n := len(a.snap.Tasks)
	if n > 0 && len(a.display) == 0 {
		a.needsBottom = true
	}
	a.display = make([]models.Task, n)
	for i, t := range a.snap.Tasks {
		a.display[stack.DisplayIndex(n, i)] = t
	}
	a.renderContent()
}

func (a *App) renderContent() {
	n := len(a.display)
	a.spans = stackview.Layout(n, float64(a.cardHeight), cardGap)
	if a.width == 0 {
		return
	}

	current := -1
	if a.state.HasCurrent && a.state.CurrentIndex < n {
		current = stack.DisplayIndex(n, a.state.CurrentIndex)
	}

	cards := make([]string, n)
	for d, t := range a.display {
		cards[d] = a.renderCard(t, n-d, n, d == current)
	}
	a.viewport.SetContent(strings.Join(cards, strings.Repeat("\n", cardGap+1)))
	if a.needsBottom && n > 0 {
		a.needsBottom = false
		a.viewport.GotoBottom()
	}
}

func (a *App) renderCard(t models.Task, position, total int, current bool) string {
	style := cardStyle
	if current {
		style = currentCardStyle
	}
	inner := max(1, a.width-6)

	title := cardTitleStyle.Render(truncate(t.Name, inner))
	status := mutedStyle.Render("○ open")
	if t.Completed {
		title = doneTitleStyle.Render(truncate(t.Name, inner))
		status = successStyle.Render("✓ done")
	}
	status += mutedStyle.Render(fmt.Sprintf("  #%d of %d", position, total))

	body := strings.Join([]string{
		title,
		timeframeStyle.Render(truncate(t.Timeframe, inner)),
		status,
	}, "\n")

	return style.
		Width(max(1, a.width-2)).
		Height(a.cardHeight - 2).
		Render(body)
}

func (a *App) snapBy(delta int) {
	n := len(a.spans)
	if n == 0 {
		return
	}
	d := n - 1
	if a.state.HasCurrent {
		d = stack.DisplayIndex(n, a.state.CurrentIndex)
	}
	d = min(n-1, max(0, d+delta))
	a.viewport.SetYOffset(int(a.spans[d].Top))
}

func (a *App) currentTask() (models.Task, bool) {
	if !a.state.HasCurrent || a.state.CurrentIndex >= len(a.snap.Tasks) {
		return models.Task{}, false
	}
	return a.snap.Tasks[a.state.CurrentIndex], true
}

func (a *App) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: a.client.Start(a.ctx)}
	}
}

func (a *App) listenNotes() tea.Cmd {
	if a.notes == nil {
		return nil
	}
	return waitForNote(a.notes)
}

func (a *App) toggleCurrent() tea.Cmd {
	t, ok := a.currentTask()
	if !ok {
		return nil
	}
	client, ctx := a.client, a.ctx
	return func() tea.Msg {
		return commandResultMsg{err: client.Toggle(ctx, t.ID)}
	}
}

func (a *App) popTop() tea.Cmd {
	client, ctx := a.client, a.ctx
	return func() tea.Msg {
		return commandResultMsg{err: client.PopTop(ctx)}
	}
}

func (a *App) push(input string) tea.Cmd {
	in, err := parseNewTask(input)
	if err != nil {
		return func() tea.Msg { return noteMsg{kind: syncclient.Error, text: "Task name is required"} }
	}
	pusher, ctx := a.pusher, a.ctx
	return func() tea.Msg {
		if _, err := pusher.PushTask(ctx, in); err != nil {
			log.Error().Err(err).Msg("push task failed")
			return noteMsg{kind: syncclient.Error, text: msgPushFailed}
		}
		return nil
	}
}

// View implements tea.Model
func (a *App) View() string {
	if a.width == 0 {
		return ""
	}

	var b strings.Builder

	header := titleStyle.Render("Task Stack")
	if next, ok := a.nextTask(); ok {
		header += headerStyle.Render(fmt.Sprintf("Next in queue: %s - %s", next.Name, next.Timeframe))
	}
	b.WriteString(header + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", a.width)) + "\n")

	body := lipgloss.NewStyle().Height(a.viewport.Height)
	switch {
	case a.snap.Status == syncclient.Loading && len(a.display) == 0:
		b.WriteString(body.Render(fmt.Sprintf("\n  %s Loading tasks...", a.spinner.View())))
	case a.snap.Status == syncclient.Failed:
		b.WriteString(body.Render("\n  " + errorStyle.Render(a.snap.Err)))
	case len(a.display) == 0:
		b.WriteString(body.Render("\n  " + mutedStyle.Render("No tasks on the stack. Press a to add one.")))
	default:
		b.WriteString(a.viewport.View())
	}
	b.WriteString("\n")

	if a.note != nil {
		b.WriteString(noteStyle(a.note.kind).Render(a.note.text))
	}
	b.WriteString("\n")

	if a.cmdBar.Focused() {
		b.WriteString(a.cmdBar.View())
	} else {
		b.WriteString(statusBarStyle.Width(a.width).Render(a.statusLine()))
	}

	return b.String()
}

// nextTask is the header content: shown while the newest task is scrolled
// out of view and an older task follows the current one.
func (a *App) nextTask() (models.Task, bool) {
	if !a.state.HeaderVisible || !a.state.HasCurrent {
		return models.Task{}, false
	}
	return a.client.Next(a.state.CurrentIndex)
}

func (a *App) statusLine() string {
	parts := []string{fmt.Sprintf("Tasks: %d", len(a.display))}
	for _, k := range a.keys.help() {
		h := k.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return " " + strings.Join(parts, " | ")
}

func noteStyle(kind syncclient.Kind) lipgloss.Style {
	switch kind {
	case syncclient.Success:
		return successStyle
	case syncclient.Error:
		return errorStyle
	default:
		return infoStyle
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
