// Package ui provides the interactive chat interface of dublin-rag.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dublin-rag/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1F4E79")).
			Padding(0, 1).
			MarginBottom(1)

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD93D")).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			PaddingLeft(2)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true).
			PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// Answerer answers one question from the indexed documents
type Answerer interface {
	Query(ctx context.Context, question string) (*models.PromptResponse, error)
}

// Turn is one question and its outcome
type Turn struct {
	Question string
	Answer   string
	Sources  string
	Err      error
}

// answerMsg carries the result of a query back to Update
type answerMsg struct {
	question string
	resp     *models.PromptResponse
	err      error
}

// Model is the chat screen. The transcript lives in memory for the session only
// and is never sent back to the model.
type Model struct {
	answerer Answerer
	ctx      context.Context
	input    textinput.Model
	spinner  spinner.Model

	transcript []Turn
	pending    string
	loading    bool
	quitting   bool
	width      int
}

func NewModel(ctx context.Context, answerer Answerer) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about the Dublin Regulation..."
	ti.Prompt = "> "
	ti.CharLimit = 1000
	ti.Width = 76
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D"))

	return &Model{
		answerer: answerer,
		ctx:      ctx,
		input:    ti,
		spinner:  sp,
		width:    80,
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Transcript returns the answered turns, oldest first
func (m *Model) Transcript() []Turn {
	return m.transcript
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 20)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case answerMsg:
		m.loading = false
		m.pending = ""
		turn := Turn{Question: msg.question, Err: msg.err}
		if msg.err == nil {
			turn.Answer = msg.resp.Content
			turn.Sources = msg.resp.Source
		}
		m.transcript = append(m.transcript, turn)
		return m, m.input.Focus()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
		m.quitting = true
		return m, tea.Quit
	}
	// one question at a time
	if m.loading {
		return m, nil
	}
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	if IsExit(question) {
		m.quitting = true
		return m, tea.Quit
	}

	m.input.Reset()
	m.input.Blur()
	m.loading = true
	m.pending = question
	return m, tea.Batch(m.spinner.Tick, m.ask(question))
}

// ask runs the query off the UI loop
func (m *Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.answerer.Query(m.ctx, question)
		return answerMsg{question: question, resp: resp, err: err}
	}
}

func (m *Model) View() string {
	if m.quitting {
		return "\nBye.\n\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Dublin Regulation assistant"))
	b.WriteString("\n")

	wrap := answerStyle.Width(max(m.width-4, 20))
	for _, turn := range m.transcript {
		b.WriteString(questionStyle.Render("You: " + turn.Question))
		b.WriteString("\n")
		if turn.Err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", turn.Err)))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(wrap.Render(turn.Answer))
		b.WriteString("\n")
		if turn.Sources != "" {
			b.WriteString(sourceStyle.Render("Sources: " + turn.Sources))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.loading {
		b.WriteString(questionStyle.Render("You: " + m.pending))
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " Thinking...")
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: ask  exit/quit/esc/ctrl+c: leave"))
	b.WriteString("\n")
	return b.String()
}

// IsExit reports whether input ends a session
func IsExit(input string) bool {
	input = strings.TrimSpace(input)
	return strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit")
}

// Run starts the chat UI and blocks until the user leaves
func Run(ctx context.Context, answerer Answerer) error {
	p := tea.NewProgram(NewModel(ctx, answerer), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
