package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"animerec/internal/domain"
)

// RecommendPort is the TUI-facing subset of the recommender.
type RecommendPort interface {
	Recommend(ctx context.Context, query string) (string, error)
}

// Model is the Bubble Tea model for the interactive recommender.
type Model struct {
	service  RecommendPort
	input    textinput.Model
	viewport viewport.Model
	answer   string
	status   string
	ready    bool
	busy     bool
}

// New creates a new TUI model instance.
func New(service RecommendPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe what you feel like watching and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, status: "Index loaded. Ask for a recommendation."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// answerMsg carries the result of one recommend call back into Update.
type answerMsg struct {
	query string
	text  string
	err   error
}

func recommendCmd(service RecommendPort, query string) tea.Cmd {
	return func() tea.Msg {
		text, err := service.Recommend(context.Background(), query)
		return answerMsg{query: query, text: text, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + query box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = statusForError(msg.err)
			m.answer = ""
		} else {
			m.status = fmt.Sprintf("Recommendations for %q", msg.query)
			m.answer = msg.text
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Thinking..."
				return m, recommendCmd(m.service, q)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Anime Recommender")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == "" {
		return "No recommendations yet."
	}
	return m.answer
}

// statusForError keeps failure messages short and actionable, naming the
// stage that failed.
func statusForError(err error) string {
	var stage *domain.StageError
	if errors.As(err, &stage) {
		return fmt.Sprintf("Error (%s): %v", stage.Stage, stage.Err)
	}
	if errors.Is(err, domain.ErrValidation) {
		return "Please type a preference first."
	}
	return "Error: " + err.Error()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
