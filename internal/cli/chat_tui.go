package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/chat"
	"github.com/raphaelgruber/wikidesk/internal/client"
)

// sessionMsg reports the outcome of Init or NewSession.
type sessionMsg struct {
	err error
}

// replyMsg reports the outcome of one Submit.
type replyMsg struct {
	err error
}

// noticeMsg carries a failure reported by the chat manager.
type noticeMsg struct {
	err error
}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	ctx     context.Context
	mgr     *chat.Manager
	input   textinput.Model
	spinner spinner.Model
	theme   Theme

	useRAG   bool
	starting bool
	width    int
	height   int
	notice   string
	quitting bool
	err      error
}

func newChatModel(ctx context.Context, mgr *chat.Manager, useRAG bool) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask the assistant..."
	ti.Prompt = "› "
	ti.CharLimit = 4000
	ti.Focus()

	return chatModel{
		ctx:      ctx,
		mgr:      mgr,
		input:    ti,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:    defaultTheme,
		useRAG:   useRAG,
		starting: true,
		width:    80,
	}
}

// Init restores or creates the session.
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.initSession())
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(max(msg.Width-4, 10))
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.mgr.Close()
			return m, tea.Quit
		case "ctrl+n":
			if m.starting || m.mgr.Busy() {
				m.notice = "Wait for the current reply before starting a new chat."
				return m, nil
			}
			m.starting = true
			m.notice = ""
			return m, tea.Batch(m.spinner.Tick, m.newSession())
		case "ctrl+r":
			m.useRAG = !m.useRAG
			return m, nil
		case "enter":
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			if m.mgr.State() != chat.StateActive {
				m.notice = "The chat session is not ready yet."
				return m, nil
			}
			if m.mgr.Busy() {
				m.notice = "Still waiting for the previous reply."
				return m, nil
			}
			m.input.Reset()
			m.notice = ""
			return m, tea.Batch(m.spinner.Tick, m.submit(text))
		}

	case sessionMsg:
		m.starting = false
		if msg.err != nil && !errors.Is(msg.err, chat.ErrStale) {
			m.err = msg.err
			m.notice = "Could not start a chat session. Press Ctrl+N to try again."
		} else {
			m.err = nil
		}
		return m, nil

	case replyMsg:
		switch {
		case msg.err == nil, errors.Is(msg.err, chat.ErrStale):
		case errors.Is(msg.err, chat.ErrBusy), errors.Is(msg.err, chat.ErrNotActive):
			m.notice = msg.err.Error()
		}
		return m, nil

	case noticeMsg:
		m.notice = chatNotice(msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.starting && !m.mgr.Busy() {
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

func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Chat closed. Run 'wikidesk chat' to continue this session.") + "\n"
	}

	var b strings.Builder
	for _, msg := range m.mgr.Messages() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n\n")
	}

	switch {
	case m.starting:
		b.WriteString(m.spinner.View() + " Connecting to the assistant...\n")
	case m.mgr.Busy():
		b.WriteString(m.spinner.View() + " Thinking...\n")
	}
	if m.notice != "" {
		b.WriteString(m.theme.errorStyle().Render("✗ "+m.notice) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")

	rag := "off"
	if m.useRAG {
		rag = "on"
	}
	b.WriteString(m.theme.hintStyle().Render(
		fmt.Sprintf("enter send · ctrl+n new chat · ctrl+r documents: %s · esc quit", rag)))

	return clampLines(b.String(), m.height)
}

func (m chatModel) renderMessage(msg chat.Message) string {
	if msg.Role == ai.RoleAssistant {
		return m.theme.successStyle().Render("Assistant") + "\n" + renderMarkdown(msg.Content, m.width-4)
	}
	label := m.theme.accentStyle().Render("You")
	if msg.Status == chat.StatusPending {
		label += " " + m.theme.hintStyle().Render("(sending)")
	}
	return label + "\n" + msg.Content
}

// clampLines keeps the last height lines so the input stays on screen.
func clampLines(s string, height int) string {
	if height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= height {
		return s
	}
	return strings.Join(lines[len(lines)-height:], "\n")
}

func (m chatModel) initSession() tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{err: m.mgr.Init(m.ctx)}
	}
}

func (m chatModel) newSession() tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{err: m.mgr.NewSession(m.ctx)}
	}
}

func (m chatModel) submit(text string) tea.Cmd {
	useRAG := m.useRAG
	return func() tea.Msg {
		_, err := m.mgr.Submit(m.ctx, text, useRAG)
		return replyMsg{err: err}
	}
}

func chatNotice(err error) string {
	return client.Message(err, "The assistant did not answer. Your message was not sent.")
}

// RunChat runs the interactive chat UI until the user quits.
func RunChat(ctx context.Context, backend chat.Backend, useRAG bool) error {
	var p *tea.Program
	mgr := chat.NewManager(backend, chat.Options{
		Store:  store,
		Logger: logger,
		Notify: func(err error) {
			if p != nil {
				p.Send(noticeMsg{err: err})
			}
		},
	})

	p = tea.NewProgram(newChatModel(ctx, mgr, useRAG), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat UI error: %w", err)
	}

	if m, ok := finalModel.(chatModel); ok && m.err != nil && !m.quitting {
		return fail(m.err, "Could not start a chat session.")
	}
	return nil
}
