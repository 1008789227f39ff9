package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskstack/internal/models"
)

var (
	cmdBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

var errEmptyName = errors.New("task name is required")

// CmdBarModel is the prompt for pushing a new task.
type CmdBarModel struct {
	input   textinput.Model
	focused bool
}

// NewCmdBarModel creates an unfocused prompt.
func NewCmdBarModel() *CmdBarModel {
	ti := textinput.New()
	ti.Placeholder = "name | timeframe"
	ti.CharLimit = 256
	return &CmdBarModel{input: ti}
}

// Focused reports whether the prompt is taking input.
func (m *CmdBarModel) Focused() bool {
	return m.focused
}

// Focus focuses the prompt.
func (m *CmdBarModel) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur unfocuses and clears the prompt.
func (m *CmdBarModel) Blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
}

// Submit returns the current input and blurs.
func (m *CmdBarModel) Submit() string {
	val := m.input.Value()
	m.Blur()
	return val
}

// SetWidth sets the input width.
func (m *CmdBarModel) SetWidth(w int) {
	m.input.Width = max(10, w-6)
}

// Update forwards messages to the input while focused.
func (m *CmdBarModel) Update(msg tea.Msg) tea.Cmd {
	if !m.focused {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// View renders the prompt.
func (m *CmdBarModel) View() string {
	return cmdBarStyle.Render(promptStyle.Render("+ ") + m.input.View())
}

// parseNewTask splits "name | timeframe". The timeframe is optional.
func parseNewTask(input string) (models.NewTask, error) {
	name, timeframe, _ := strings.Cut(input, "|")
	name = strings.TrimSpace(name)
	if name == "" {
		return models.NewTask{}, errEmptyName
	}
	return models.NewTask{
		Name:      name,
		Timeframe: strings.TrimSpace(timeframe),
	}, nil
}
