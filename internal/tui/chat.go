package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/mailagent/internal/chat"
	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/draft"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
)

type snapshotMsg chat.Snapshot

// chatDoneMsg reports the outcome of Submit, Confirm or Cancel.
type chatDoneMsg struct{ err error }

type emailLoadedMsg struct {
	email *mail.Email
	err   error
}

type chatModel struct {
	ctrl   *chat.Controller
	client Client
	styles styles

	snaps chan chat.Snapshot
	snap  chat.Snapshot
	email *mail.Email
	flash string

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	ready    bool
	width    int

	// set from the keypress until the call returns, ahead of any snapshot
	inflight bool
}

func newChatModel(client Client, bridge eventBridge, cfg config.ChatConfig, emailID mail.EmailID, archive history.Archive) *chatModel {
	m := &chatModel{
		client: client,
		styles: defaultStyles(),
		snaps:  make(chan chat.Snapshot, 64),
	}

	ta := textarea.New()
	ta.Placeholder = "Ask me anything about your emails..."
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()
	m.textarea = ta

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m.spinner = sp

	welcome := cfg.Welcome
	if welcome == "" {
		welcome = config.DefaultWelcome
	}

	// the workspace gets the email id from the controller on Confirm
	ws := draft.New(client, bridge, nil)
	m.ctrl = chat.New(chat.Options{
		Agent:    client,
		Drafts:   ws,
		EmailID:  emailID,
		Bridge:   bridge,
		Archive:  archive,
		Welcome:  welcome,
		Observer: m.observe,
	})
	m.snap = m.ctrl.Snapshot()
	return m
}

// observe runs on whatever goroutine changed the session.
func (m *chatModel) observe(s chat.Snapshot) {
	select {
	case m.snaps <- s:
	default:
	}
}

func (m *chatModel) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.snaps)
	}
}

func (m *chatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.waitForSnapshot()}
	if id := m.ctrl.EmailID(); id != "" {
		cmds = append(cmds, func() tea.Msg {
			e, err := m.client.GetEmail(context.Background(), id)
			return emailLoadedMsg{email: e, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func (m *chatModel) busy() bool {
	return m.inflight || m.snap.State == chat.StateSending || m.snap.State == chat.StateGeneratingDraft
}

func (m *chatModel) run(fn func(context.Context) error) tea.Cmd {
	m.inflight = true
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return chatDoneMsg{err: fn(context.Background())}
	})
}

func (m *chatModel) Update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return cmd
		}

	case snapshotMsg:
		m.snap = chat.Snapshot(msg)
		m.refresh()
		return m.waitForSnapshot()

	case chatDoneMsg:
		m.inflight = false
		m.snap = m.ctrl.Snapshot()
		m.flash = ""
		if msg.err != nil && !errors.Is(msg.err, chat.ErrEmptyInput) {
			m.flash = msg.err.Error()
		}
		m.refresh()
		return nil

	case emailLoadedMsg:
		if msg.err != nil {
			logger.L.Warn("bound email could not be loaded", "email_id", m.ctrl.EmailID(), "error", msg.err)
			m.flash = "email context unavailable"
		} else {
			m.email = msg.email
		}
		return nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return cmd
		}
		return nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (m *chatModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.busy() {
		// input stays disabled while a request is in flight
		return func() tea.Msg { return nil }
	}

	if m.snap.State == chat.StateAwaitingConfirmation {
		switch msg.String() {
		case "y", "Y", "enter":
			return m.run(m.ctrl.Confirm)
		case "n", "N", "esc":
			return m.run(m.ctrl.Cancel)
		}
		return func() tea.Msg { return nil }
	}

	if msg.String() == "enter" {
		text := m.textarea.Value()
		if strings.TrimSpace(text) == "" {
			return func() tea.Msg { return nil }
		}
		m.textarea.Reset()
		return m.run(func(ctx context.Context) error {
			return m.ctrl.Submit(ctx, text)
		})
	}
	return nil
}

func (m *chatModel) resize(width, height int) {
	m.width = width
	headerHeight, inputHeight, footerHeight := 2, 4, 2

	vpHeight := height - headerHeight - inputHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	chatWidth := width - 2
	if chatWidth < 1 {
		chatWidth = 1
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(chatWidth - 4)

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(chatWidth-4))
	if err != nil {
		logger.L.Warn("markdown renderer unavailable", "error", err)
	} else {
		m.renderer = r
	}
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m *chatModel) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.snap.Messages {
		if msg.Role == history.RoleUser {
			sb.WriteString(m.styles.User.Render("You") + "\n")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(m.styles.Agent.Render("Agent") + "\n")
		sb.WriteString(m.markdown(msg.Content))
	}
	if m.busy() {
		sb.WriteString("\n" + m.spinner.View() + m.styles.Muted.Render(" thinking..."))
	}
	return sb.String()
}

func (m *chatModel) markdown(s string) string {
	if m.renderer == nil {
		return s + "\n"
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}

func (m *chatModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := "📬 Email Agent"
	if m.email != nil {
		title += m.styles.Muted.Render(fmt.Sprintf(" · %s (%s)", m.email.Subject, m.email.Sender))
	} else if id := m.ctrl.EmailID(); id != "" {
		title += m.styles.Muted.Render(" · email " + string(id))
	}

	var input string
	switch {
	case m.snap.State == chat.StateAwaitingConfirmation:
		input = m.styles.Confirm.Render(fmt.Sprintf("Generate a draft reply for: %q?\n[y] confirm   [n] cancel", m.snap.PendingDraftText))
	case m.busy():
		input = m.styles.Input.Render(m.spinner.View() + " waiting for the agent...")
	default:
		input = m.styles.Input.Render(m.textarea.View())
	}

	footer := "enter send · ctrl+c quit"
	if m.flash != "" {
		footer = m.styles.Error.Render(m.flash)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		m.viewport.View(),
		input,
		m.styles.Footer.Render(footer),
	)
}
