// Package tui renders chat sessions and the draft editor in the terminal
// and turns navigation events into view switches.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/comigor/mailagent/internal/chat"
	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/draft"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/nav"
)

// eventBridge forwards navigation events into the program loop.
type eventBridge chan nav.Event

func (b eventBridge) Navigate(ev nav.Event) {
	select {
	case b <- ev:
	default:
		logger.L.Warn("navigation event dropped", "kind", ev.Kind, "draft_id", ev.DraftID)
	}
}

type navMsg nav.Event

// closeEditorMsg leaves the editor without deleting anything.
type closeEditorMsg struct{}

// redirectMsg fires once the cosmetic delay after a navigation event ends.
type redirectMsg nav.Event

func waitForNav(b eventBridge) tea.Cmd {
	return func() tea.Msg {
		return navMsg(<-b)
	}
}

// Client is what the views need from the REST API.
type Client interface {
	chat.AgentQuerier
	draft.Store
}

// App switches between the chat view and the draft editor.
type App struct {
	client Client
	cfg    config.ChatConfig
	events eventBridge

	chat   *chatModel
	editor *editorModel
	width  int
	height int
}

func newApp(client Client, cfg config.ChatConfig) *App {
	return &App{client: client, cfg: cfg, events: make(eventBridge, 8)}
}

// NewChatApp starts in a chat session, optionally bound to emailID.
func NewChatApp(client Client, cfg config.ChatConfig, emailID mail.EmailID, archive history.Archive) *App {
	a := newApp(client, cfg)
	a.chat = newChatModel(client, a.events, cfg, emailID, archive)
	return a
}

// NewEditorApp opens the editor on a stored draft.
func NewEditorApp(client Client, cfg config.ChatConfig, id mail.DraftID) *App {
	a := newApp(client, cfg)
	a.editor = newEditorModel(client, a.events, id)
	return a
}

// Run starts the terminal program and blocks until it exits.
func Run(ctx context.Context, a *App) error {
	_, err := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForNav(a.events)}
	if a.editor != nil {
		cmds = append(cmds, a.editor.Init())
	} else if a.chat != nil {
		cmds = append(cmds, a.chat.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		var cmds []tea.Cmd
		if a.chat != nil {
			cmds = append(cmds, a.chat.Update(msg))
		}
		if a.editor != nil {
			cmds = append(cmds, a.editor.Update(msg))
		}
		return a, tea.Batch(cmds...)

	case navMsg:
		ev := nav.Event(msg)
		logger.L.Info("navigation scheduled", "kind", ev.Kind, "draft_id", ev.DraftID, "delay", a.cfg.RedirectDelay)
		return a, tea.Batch(
			waitForNav(a.events),
			tea.Tick(a.cfg.RedirectDelay, func(time.Time) tea.Msg { return redirectMsg(ev) }),
		)

	case redirectMsg:
		return a.redirect(nav.Event(msg))

	case closeEditorMsg:
		a.editor = nil
		if a.chat == nil {
			return a, tea.Quit
		}
		return a, a.resize(a.chat)
	}

	// keys go to the visible view; everything else is broadcast so that
	// results of background calls reach the view that started them
	if _, ok := msg.(tea.KeyMsg); ok {
		if a.editor != nil {
			return a, a.editor.Update(msg)
		}
		if a.chat != nil {
			return a, a.chat.Update(msg)
		}
		return a, nil
	}
	var cmds []tea.Cmd
	if a.chat != nil {
		cmds = append(cmds, a.chat.Update(msg))
	}
	if a.editor != nil {
		cmds = append(cmds, a.editor.Update(msg))
	}
	return a, tea.Batch(cmds...)
}

func (a *App) redirect(ev nav.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case nav.DraftCreated:
		a.editor = newEditorModel(a.client, a.events, ev.DraftID)
		return a, tea.Batch(a.editor.Init(), a.resize(a.editor))
	case nav.DraftDeleted:
		a.editor = nil
		if a.chat == nil {
			return a, tea.Quit
		}
		return a, a.resize(a.chat)
	}
	return a, nil
}

type sizable interface {
	Update(tea.Msg) tea.Cmd
}

func (a *App) resize(m sizable) tea.Cmd {
	if a.width == 0 {
		return nil
	}
	return m.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
}

func (a *App) View() string {
	if a.editor != nil {
		return a.editor.View()
	}
	if a.chat != nil {
		return a.chat.View()
	}
	return ""
}
