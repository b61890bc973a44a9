package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dublin-rag/internal/models"
)

type fakeAnswerer struct {
	questions []string
	answers   map[string]string
	err       error
}

func (f *fakeAnswerer) Query(_ context.Context, question string) (*models.PromptResponse, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PromptResponse{Query: question, Source: "dublin.pdf", Content: f.answers[question]}, nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m := NewModel(context.Background(), &fakeAnswerer{})

	require.NotNil(t, m)
	assert.True(t, m.input.Focused())
	assert.Empty(t, m.Transcript())
	assert.NotNil(t, m.Init())
}

func TestModel_TypeAndAsk(t *testing.T) {
	answerer := &fakeAnswerer{answers: map[string]string{"What is Eurodac?": "A fingerprint database."}}
	m := NewModel(context.Background(), answerer)

	m.Update(key("What is Eurodac?"))
	assert.Equal(t, "What is Eurodac?", m.input.Value())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	assert.Equal(t, "What is Eurodac?", m.pending)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Thinking...")

	// keys are ignored while a question is pending
	m.Update(key("x"))
	assert.Empty(t, m.input.Value())

	msg := m.ask("What is Eurodac?")()
	m.Update(msg)

	assert.False(t, m.loading)
	require.Len(t, m.Transcript(), 1)
	turn := m.Transcript()[0]
	assert.Equal(t, "A fingerprint database.", turn.Answer)
	assert.Equal(t, "dublin.pdf", turn.Sources)
	assert.NoError(t, turn.Err)

	view := m.View()
	assert.Contains(t, view, "What is Eurodac?")
	assert.Contains(t, view, "A fingerprint database.")
	assert.Contains(t, view, "Sources: dublin.pdf")
}

func TestModel_ErrorShownInPlaceOfAnswer(t *testing.T) {
	m := NewModel(context.Background(), &fakeAnswerer{err: errors.New("ollama unreachable")})

	m.Update(m.ask("Who decides?")())

	require.Len(t, m.Transcript(), 1)
	assert.Empty(t, m.Transcript()[0].Answer)
	assert.Contains(t, m.View(), "ollama unreachable")
}

func TestModel_TranscriptKeepsOrder(t *testing.T) {
	m := NewModel(context.Background(), &fakeAnswerer{answers: map[string]string{"one": "1", "two": "2"}})

	m.Update(m.ask("one")())
	m.Update(m.ask("two")())

	require.Len(t, m.Transcript(), 2)
	assert.Equal(t, "one", m.Transcript()[0].Question)
	assert.Equal(t, "two", m.Transcript()[1].Question)
	view := m.View()
	assert.Less(t, strings.Index(view, "You: one"), strings.Index(view, "You: two"))
}

func TestModel_EmptyEnterDoesNothing(t *testing.T) {
	answerer := &fakeAnswerer{}
	m := NewModel(context.Background(), answerer)

	m.Update(key("   "))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, m.loading)
	assert.Empty(t, answerer.questions)
}

func TestModel_Exit(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		text string
	}{
		{name: "exit", text: "exit", msg: tea.KeyMsg{Type: tea.KeyEnter}},
		{name: "quit upper case", text: "QUIT", msg: tea.KeyMsg{Type: tea.KeyEnter}},
		{name: "ctrl+c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}},
		{name: "esc", msg: tea.KeyMsg{Type: tea.KeyEsc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(context.Background(), &fakeAnswerer{})
			if tt.text != "" {
				m.input.SetValue(tt.text)
			}

			_, cmd := m.Update(tt.msg)

			require.NotNil(t, cmd)
			assert.Equal(t, tea.QuitMsg{}, cmd())
			assert.True(t, m.quitting)
			assert.Contains(t, m.View(), "Bye")
		})
	}
}

func TestModel_WindowResize(t *testing.T) {
	m := NewModel(context.Background(), &fakeAnswerer{})

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 120, m.width)
	assert.Equal(t, 116, m.input.Width)
}

func TestIsExit(t *testing.T) {
	assert.True(t, IsExit("exit"))
	assert.True(t, IsExit(" Quit "))
	assert.True(t, IsExit("EXIT"))
	assert.False(t, IsExit("exit now"))
	assert.False(t, IsExit(""))
}
