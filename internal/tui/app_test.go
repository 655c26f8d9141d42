package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/comigor/mailagent/internal/api"
	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/nav"
)

type fakeClient struct {
	drafts map[mail.DraftID]mail.Draft
}

func newFakeClient() *fakeClient {
	return &fakeClient{drafts: map[mail.DraftID]mail.Draft{
		7: {ID: 7, EmailID: "mock-005", Subject: "Re: Lunch on Friday?", Body: "Sorry, I'm busy."},
	}}
}

func (f *fakeClient) AgentChat(context.Context, api.ChatRequest) (string, error) {
	return "ok", nil
}

func (f *fakeClient) CreateDraft(_ context.Context, req api.DraftRequest) (*mail.Draft, error) {
	d := mail.Draft{ID: 8, EmailID: req.EmailID, Subject: "Re: hi", Body: req.Instructions}
	f.drafts[d.ID] = d
	return &d, nil
}

func (f *fakeClient) GetDraft(_ context.Context, id mail.DraftID) (*mail.Draft, error) {
	d, ok := f.drafts[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	return &d, nil
}

func (f *fakeClient) UpdateDraft(context.Context, mail.DraftID, api.DraftUpdate) error { return nil }

func (f *fakeClient) DeleteDraft(_ context.Context, id mail.DraftID) error {
	delete(f.drafts, id)
	return nil
}

func (f *fakeClient) GetEmail(_ context.Context, id mail.EmailID) (*mail.Email, error) {
	return &mail.Email{ID: id, Sender: "sam@example.com", Subject: "Lunch on Friday?"}, nil
}

func TestEventBridge_DropsWhenFull(t *testing.T) {
	b := make(eventBridge, 1)
	b.Navigate(nav.Event{Kind: nav.DraftCreated, DraftID: 1})
	b.Navigate(nav.Event{Kind: nav.DraftCreated, DraftID: 2})

	require.Len(t, b, 1)
	require.Equal(t, mail.DraftID(1), (<-b).DraftID)
}

func TestApp_RedirectOpensEditor(t *testing.T) {
	client := newFakeClient()
	a := NewChatApp(client, config.ChatConfig{}, "mock-005", nil)
	require.Nil(t, a.editor)

	a.Update(redirectMsg{Kind: nav.DraftCreated, DraftID: 7})
	require.NotNil(t, a.editor)

	a.Update(a.editor.Init()())
	require.True(t, a.editor.loaded)
	require.Equal(t, "Re: Lunch on Friday?", a.editor.subject.Value())
	require.Contains(t, a.View(), "Replying to sam@example.com")

	a.Update(redirectMsg{Kind: nav.DraftDeleted, DraftID: 7})
	require.Nil(t, a.editor)
	require.NotNil(t, a.chat)
}

func TestApp_EscapeReturnsToChat(t *testing.T) {
	a := NewChatApp(newFakeClient(), config.ChatConfig{}, "", nil)
	a.Update(redirectMsg{Kind: nav.DraftCreated, DraftID: 7})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	a.Update(cmd())
	require.Nil(t, a.editor)
}

func TestEditorApp_DeleteQuitsWithoutChat(t *testing.T) {
	client := newFakeClient()
	a := NewEditorApp(client, config.ChatConfig{}, 7)
	a.Update(a.editor.Init()())

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	require.NotNil(t, cmd)
	a.Update(cmd())
	require.NotContains(t, client.drafts, mail.DraftID(7))

	ev := <-a.events
	require.Equal(t, nav.Event{Kind: nav.DraftDeleted, DraftID: 7}, ev)

	_, cmd = a.Update(redirectMsg(ev))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEditor_MissingDraftIsFatal(t *testing.T) {
	a := NewEditorApp(newFakeClient(), config.ChatConfig{}, 99)
	a.Update(a.editor.Init()())

	require.False(t, a.editor.loaded)
	require.Error(t, a.editor.fatal)
	require.True(t, strings.Contains(a.View(), "Could not load this draft."))
}

func TestChat_WelcomeFallsBackToDefault(t *testing.T) {
	a := NewChatApp(newFakeClient(), config.ChatConfig{}, "", nil)
	msgs := a.chat.snap.Messages
	require.Len(t, msgs, 1)
	require.Equal(t, config.DefaultWelcome, msgs[0].Content)
}

func TestChat_InputDisabledUntilCallReturns(t *testing.T) {
	a := NewChatApp(newFakeClient(), config.ChatConfig{}, "", nil)
	a.chat.textarea.SetValue("first question")

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, a.chat.busy())
	require.Empty(t, a.chat.textarea.Value())

	// a second enter before the reply lands is swallowed
	a.chat.textarea.SetValue("second question")
	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "second question", a.chat.textarea.Value())

	a.Update(chatDoneMsg{})
	require.False(t, a.chat.busy())
	require.Empty(t, a.chat.flash)
}
