package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/taskstack/internal/syncclient"
)

const (
	frameInterval  = 16 * time.Millisecond
	scrollDelay    = 100 * time.Millisecond
	noteLifetime   = 3 * time.Second
	cardGap        = 1
	minCardHeight  = 5
	chromeHeight   = 4
	noteBufferSize = 16
)

// changeMsg carries one hint from the sync client's change feed.
type changeMsg struct {
	change syncclient.Change
}

// feedClosedMsg is sent once the change feed is closed.
type feedClosedMsg struct{}

type noteMsg struct {
	kind syncclient.Kind
	text string
	// fromFeed is set for notifications read from the Notifier channel.
	fromFeed bool
}

type clearNoteMsg struct {
	seq int
}

// frameMsg coalesces scroll signals into one recomputation.
type frameMsg struct{}

// scrollBottomMsg is the deferred scroll after a push.
type scrollBottomMsg struct{}

type startedMsg struct {
	err error
}

type commandResultMsg struct {
	err error
}

func waitForChange(ch <-chan syncclient.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return changeMsg{change: c}
	}
}

func waitForNote(ch <-chan noteMsg) tea.Cmd {
	return func() tea.Msg {
		n := <-ch
		n.fromFeed = true
		return n
	}
}

// Notifier forwards sync client notifications into the program. Sends never
// block; when the program falls behind, notifications are dropped.
type Notifier struct {
	ch chan noteMsg
}

// NewNotifier returns a Notifier to pass to syncclient.WithNotifier and then
// to New.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan noteMsg, noteBufferSize)}
}

// Notify implements syncclient.Notifier.
func (n *Notifier) Notify(kind syncclient.Kind, message string) {
	select {
	case n.ch <- noteMsg{kind: kind, text: message}:
	default:
	}
}
