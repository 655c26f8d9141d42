package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/mailagent/internal/draft"
	"github.com/comigor/mailagent/internal/mail"
)

const toastDuration = 3 * time.Second

type draftLoadedMsg struct {
	draft *mail.Draft
	err   error
}

// editorResultMsg carries the outcome of a save, delete, regenerate or send.
type editorResultMsg struct {
	action string
	draft  *mail.Draft
	notice string
	err    error
}

type clearToastMsg struct{ seq int }

type editorModel struct {
	ws     *draft.Workspace
	id     mail.DraftID
	styles styles

	subject textinput.Model
	body    textarea.Model
	focus   draft.Field

	loaded  bool
	fatal   error
	working string
	toast   string
	toastOK bool
	seq     int
	width   int
}

func newEditorModel(client Client, bridge eventBridge, id mail.DraftID) *editorModel {
	ti := textinput.New()
	ti.Placeholder = "Subject"
	ti.Prompt = ""

	ta := textarea.New()
	ta.Placeholder = "Write your reply..."
	ta.ShowLineNumbers = false
	ta.SetHeight(10)

	return &editorModel{
		ws:      draft.New(client, bridge, nil),
		id:      id,
		styles:  defaultStyles(),
		subject: ti,
		body:    ta,
		focus:   draft.FieldBody,
	}
}

func (m *editorModel) Init() tea.Cmd {
	id := m.id
	return func() tea.Msg {
		d, err := m.ws.LoadExisting(context.Background(), id)
		return draftLoadedMsg{draft: d, err: err}
	}
}

func (m *editorModel) setFocus(f draft.Field) tea.Cmd {
	m.focus = f
	if f == draft.FieldSubject {
		m.body.Blur()
		return m.subject.Focus()
	}
	m.subject.Blur()
	return m.body.Focus()
}

func (m *editorModel) fill(d *mail.Draft) {
	m.subject.SetValue(d.Subject)
	m.body.SetValue(d.Body)
}

// stage copies the input fields into the workspace before a save.
func (m *editorModel) stage() error {
	if err := m.ws.Edit(draft.FieldSubject, m.subject.Value()); err != nil {
		return err
	}
	return m.ws.Edit(draft.FieldBody, m.body.Value())
}

func (m *editorModel) act(action string, fn func(context.Context) editorResultMsg) tea.Cmd {
	m.working = action
	return func() tea.Msg {
		res := fn(context.Background())
		res.action = action
		return res
	}
}

func (m *editorModel) showToast(text string, ok bool) tea.Cmd {
	m.seq++
	m.toast, m.toastOK = text, ok
	seq := m.seq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} })
}

func (m *editorModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 6
		if w < 10 {
			w = 10
		}
		m.subject.Width = w
		m.body.SetWidth(w)
		h := msg.Height - 16
		if h < 3 {
			h = 3
		}
		m.body.SetHeight(h)
		return nil

	case draftLoadedMsg:
		if msg.err != nil {
			m.fatal = msg.err
			return nil
		}
		m.loaded = true
		m.fill(msg.draft)
		return tea.Batch(textarea.Blink, m.setFocus(draft.FieldBody))

	case editorResultMsg:
		m.working = ""
		if msg.err != nil {
			return m.showToast(msg.err.Error(), false)
		}
		if msg.draft != nil {
			m.fill(msg.draft)
		}
		return m.showToast(msg.notice, true)

	case clearToastMsg:
		if msg.seq == m.seq {
			m.toast = ""
		}
		return nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return cmd
		}
	}

	if !m.loaded {
		return nil
	}
	var cmd tea.Cmd
	if m.focus == draft.FieldSubject {
		m.subject, cmd = m.subject.Update(msg)
	} else {
		m.body, cmd = m.body.Update(msg)
	}
	return cmd
}

func (m *editorModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "esc" {
		return func() tea.Msg { return closeEditorMsg{} }, true
	}
	if !m.loaded || m.working != "" {
		return nil, true
	}

	switch msg.String() {
	case "tab", "shift+tab":
		if m.focus == draft.FieldBody {
			return m.setFocus(draft.FieldSubject), true
		}
		return m.setFocus(draft.FieldBody), true

	case "ctrl+s":
		if err := m.stage(); err != nil {
			return m.showToast(err.Error(), false), true
		}
		return m.act("saving", func(ctx context.Context) editorResultMsg {
			if err := m.ws.Save(ctx); err != nil {
				return editorResultMsg{err: err}
			}
			return editorResultMsg{notice: "Draft saved"}
		}), true

	case "ctrl+d":
		return m.act("deleting", func(ctx context.Context) editorResultMsg {
			if err := m.ws.Delete(ctx); err != nil {
				return editorResultMsg{err: err}
			}
			return editorResultMsg{notice: "Draft deleted"}
		}), true

	case "ctrl+g":
		return m.act("regenerating", func(ctx context.Context) editorResultMsg {
			d, err := m.ws.Generate(ctx, "", draft.DefaultInstructions)
			if err != nil {
				return editorResultMsg{err: err}
			}
			return editorResultMsg{draft: d, notice: "New draft generated"}
		}), true

	case "ctrl+e":
		notice, err := m.ws.Send()
		if err != nil {
			return m.showToast(err.Error(), false), true
		}
		return m.showToast(notice, true), true
	}
	return nil, false
}

func (m *editorModel) View() string {
	header := m.styles.Header.Render(fmt.Sprintf("✉️  Draft #%d", m.id))

	if m.fatal != nil {
		text := "Could not load this draft."
		if !errors.Is(m.fatal, draft.ErrNotFound) {
			text = m.fatal.Error()
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			"",
			m.styles.Error.Render("  "+text),
			"",
			m.styles.Footer.Render("esc back"),
		)
	}
	if !m.loaded {
		return lipgloss.JoinVertical(lipgloss.Left, header, "", m.styles.Muted.Render("  Loading draft..."))
	}

	sections := []string{header}
	if e, ok := m.ws.Email(); ok {
		sections = append(sections, m.styles.Muted.Render(fmt.Sprintf("  Replying to %s: %s", e.Sender, e.Subject)))
	}
	sections = append(sections,
		m.styles.Label.Render("Subject"),
		m.styles.Input.Render(m.subject.View()),
		m.styles.Label.Render("Body"),
		m.styles.Input.Render(m.body.View()),
	)

	if d, ok := m.ws.Draft(); ok {
		if len(d.SuggestedFollowUps) > 0 {
			sections = append(sections, m.styles.Label.Render("Suggested follow-ups"))
			for _, f := range d.SuggestedFollowUps {
				sections = append(sections, m.styles.Muted.Render("  • "+f))
			}
		}
		if !d.Metadata.IsZero() {
			var meta []string
			if d.Metadata.Category != "" {
				meta = append(meta, "category: "+d.Metadata.Category)
			}
			for _, a := range d.Metadata.ActionItems {
				meta = append(meta, "todo: "+a.String())
			}
			sections = append(sections, m.styles.Muted.Render("  "+strings.Join(meta, " · ")))
		}
	}

	footer := "tab switch · ctrl+s save · ctrl+g regenerate · ctrl+e send · ctrl+d delete · esc back"
	switch {
	case m.working != "":
		footer = m.working + "..."
	case m.toast != "" && m.toastOK:
		footer = m.styles.Agent.UnsetMarginTop().Render(m.toast)
	case m.toast != "":
		footer = m.styles.Error.Render(m.toast)
	}
	sections = append(sections, m.styles.Footer.Render(footer))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
