package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/comigor/mailagent/internal/api"
	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/intent"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/nav"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockAgent struct {
	mu    sync.Mutex
	calls []api.ChatRequest

	ChatFunc func(ctx context.Context, req api.ChatRequest) (string, error)
}

func (m *mockAgent) AgentChat(ctx context.Context, req api.ChatRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return "You have 3 unread emails.", nil
}

func (m *mockAgent) Calls() []api.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]api.ChatRequest(nil), m.calls...)
}

type generateCall struct {
	EmailID      mail.EmailID
	Instructions string
}

type mockDrafts struct {
	mu    sync.Mutex
	calls []generateCall

	GenerateFunc func(ctx context.Context, emailID mail.EmailID, instructions string) (*mail.Draft, error)
}

func (m *mockDrafts) Generate(ctx context.Context, emailID mail.EmailID, instructions string) (*mail.Draft, error) {
	m.mu.Lock()
	m.calls = append(m.calls, generateCall{emailID, instructions})
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, emailID, instructions)
	}
	return &mail.Draft{ID: 7, EmailID: emailID, Subject: "Re: Lunch", Body: "Sorry, I'm busy."}, nil
}

func (m *mockDrafts) Calls() []generateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generateCall(nil), m.calls...)
}

type fixture struct {
	c      *Controller
	agent  *mockAgent
	drafts *mockDrafts
	nav    *nav.Recorder
}

func newFixture(emailID mail.EmailID) *fixture {
	f := &fixture{agent: &mockAgent{}, drafts: &mockDrafts{}, nav: &nav.Recorder{}}
	f.c = New(Options{
		Agent:   f.agent,
		Drafts:  f.drafts,
		EmailID: emailID,
		Bridge:  f.nav,
	})
	return f
}

func user(s string) history.Message  { return history.Message{Role: history.RoleUser, Content: s} }
func agent(s string) history.Message { return history.Message{Role: history.RoleAgent, Content: s} }

func requireMessages(t *testing.T, c *Controller, want ...history.Message) {
	t.Helper()
	if diff := cmp.Diff(want, c.Snapshot().Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_WelcomeMessage(t *testing.T) {
	c := New(Options{Agent: &mockAgent{}, Drafts: &mockDrafts{}, Welcome: "Hello!"})
	require.Equal(t, StateIdle, c.State())
	requireMessages(t, c, agent("Hello!"))
	require.NotEmpty(t, c.SessionID())

	other := New(Options{Agent: &mockAgent{}, Drafts: &mockDrafts{}})
	require.NotEqual(t, c.SessionID(), other.SessionID())
	require.Empty(t, other.Snapshot().Messages)
}

func TestSubmit_PlainQuery(t *testing.T) {
	f := newFixture("")
	ctx := context.Background()

	require.NoError(t, f.c.Submit(ctx, "What's in my inbox?"))
	require.Equal(t, StateIdle, f.c.State())
	requireMessages(t, f.c, user("What's in my inbox?"), agent("You have 3 unread emails."))

	calls := f.agent.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "What's in my inbox?", calls[0].Query)
	require.Nil(t, calls[0].EmailID)
	require.Empty(t, calls[0].History)

	// history carries the transcript as it stood before the new question
	require.NoError(t, f.c.Submit(ctx, "And yesterday?"))
	calls = f.agent.Calls()
	require.Equal(t, []history.Message{user("What's in my inbox?"), agent("You have 3 unread emails.")}, calls[1].History)
}

func TestSubmit_EmptyInput(t *testing.T) {
	f := newFixture("42")
	require.ErrorIs(t, f.c.Submit(context.Background(), "   \n"), ErrEmptyInput)
	require.Equal(t, StateIdle, f.c.State())
	require.Empty(t, f.c.Snapshot().Messages)
	require.Empty(t, f.agent.Calls())
}

func TestSubmit_AgentFailureAppendsFixedError(t *testing.T) {
	f := newFixture("")
	f.agent.ChatFunc = func(context.Context, api.ChatRequest) (string, error) {
		return "", api.ErrNetwork
	}

	require.NoError(t, f.c.Submit(context.Background(), "hello"))
	require.Equal(t, StateIdle, f.c.State())
	requireMessages(t, f.c, user("hello"), agent(ErrorReply))
	require.Len(t, f.agent.Calls(), 1, "no automatic retry")
}

func TestSubmit_DraftKeywordWithoutEmailIsPlainQuery(t *testing.T) {
	for _, term := range intent.Terms {
		f := newFixture("")
		require.NoError(t, f.c.Submit(context.Background(), "please "+term+" something"))
		require.Equal(t, StateIdle, f.c.State(), term)
		require.Len(t, f.agent.Calls(), 1, term)
		require.Empty(t, f.drafts.Calls(), term)
	}
}

func TestSubmit_DraftKeywordWithEmailAwaitsConfirmation(t *testing.T) {
	for _, term := range intent.Terms {
		f := newFixture("42")
		text := "Could you " + term + " for me"
		require.NoError(t, f.c.Submit(context.Background(), text))

		snap := f.c.Snapshot()
		require.Equal(t, StateAwaitingConfirmation, snap.State, term)
		require.Equal(t, text, snap.PendingDraftText, term)
		require.Empty(t, snap.Messages, term)
		require.Empty(t, f.agent.Calls(), term)
	}
}

func TestDraftScenario_ConfirmNavigatesToNewDraft(t *testing.T) {
	f := newFixture("42")
	ctx := context.Background()
	text := "Can you draft a reply saying I'm busy?"

	require.NoError(t, f.c.Submit(ctx, text))
	require.Equal(t, StateAwaitingConfirmation, f.c.State())
	require.Equal(t, text, f.c.Snapshot().PendingDraftText)

	require.NoError(t, f.c.Confirm(ctx))

	snap := f.c.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.PendingDraftText)
	requireMessages(t, f.c, user(text), agent(DraftCreatedReply))
	require.Equal(t, []generateCall{{EmailID: "42", Instructions: text}}, f.drafts.Calls())
	require.Equal(t, []nav.Event{{Kind: nav.DraftCreated, DraftID: 7}}, f.nav.Events())
	require.Empty(t, f.agent.Calls())
}

func TestConfirm_GenerationFailure(t *testing.T) {
	f := newFixture("42")
	f.drafts.GenerateFunc = func(context.Context, mail.EmailID, string) (*mail.Draft, error) {
		return nil, errors.New("llm down")
	}
	ctx := context.Background()

	require.NoError(t, f.c.Submit(ctx, "reply please"))
	require.NoError(t, f.c.Confirm(ctx))

	snap := f.c.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.PendingDraftText)
	requireMessages(t, f.c, user("reply please"), agent(DraftFailedReply))
	require.Empty(t, f.nav.Events())
}

func TestCancel_AppendsPendingTextWithoutAgentCall(t *testing.T) {
	f := newFixture("42")
	ctx := context.Background()

	require.NoError(t, f.c.Submit(ctx, "compose an answer"))
	require.NoError(t, f.c.Cancel(ctx))

	snap := f.c.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.PendingDraftText)
	requireMessages(t, f.c, user("compose an answer"))
	require.Empty(t, f.agent.Calls())
	require.Empty(t, f.drafts.Calls())
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture("42")
	ctx := context.Background()

	require.ErrorIs(t, f.c.Confirm(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.c.Cancel(ctx), ErrInvalidTransition)

	require.NoError(t, f.c.Submit(ctx, "draft it"))
	require.ErrorIs(t, f.c.Submit(ctx, "what else?"), ErrInvalidTransition)
	require.ErrorIs(t, f.c.Submit(ctx, "draft again"), ErrInvalidTransition)
	require.Equal(t, "draft it", f.c.Snapshot().PendingDraftText)
	require.Empty(t, f.c.Snapshot().Messages)
}

func TestBusyWhileInFlight(t *testing.T) {
	f := newFixture("42")
	started := make(chan struct{})
	release := make(chan struct{})
	f.agent.ChatFunc = func(context.Context, api.ChatRequest) (string, error) {
		close(started)
		<-release
		return "done", nil
	}
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- f.c.Submit(ctx, "summarize this") }()
	<-started

	require.Equal(t, StateSending, f.c.State())
	require.ErrorIs(t, f.c.Submit(ctx, "another"), ErrBusy)
	require.ErrorIs(t, f.c.Submit(ctx, "draft a reply"), ErrBusy)
	require.ErrorIs(t, f.c.Confirm(ctx), ErrBusy)
	require.ErrorIs(t, f.c.Cancel(ctx), ErrBusy)

	close(release)
	require.NoError(t, <-errc)
	requireMessages(t, f.c, user("summarize this"), agent("done"))
	require.Len(t, f.agent.Calls(), 1)
}

func TestBusyWhileGenerating(t *testing.T) {
	f := newFixture("42")
	started := make(chan struct{})
	release := make(chan struct{})
	f.drafts.GenerateFunc = func(_ context.Context, emailID mail.EmailID, _ string) (*mail.Draft, error) {
		close(started)
		<-release
		return &mail.Draft{ID: 9, EmailID: emailID}, nil
	}
	ctx := context.Background()
	require.NoError(t, f.c.Submit(ctx, "write back to them"))

	errc := make(chan error, 1)
	go func() { errc <- f.c.Confirm(ctx) }()
	<-started

	snap := f.c.Snapshot()
	require.Equal(t, StateGeneratingDraft, snap.State)
	require.Empty(t, snap.PendingDraftText)
	require.Equal(t, []history.Message{user("write back to them")}, snap.Messages)
	require.ErrorIs(t, f.c.Submit(ctx, "hello"), ErrBusy)
	require.ErrorIs(t, f.c.Confirm(ctx), ErrBusy)

	close(release)
	require.NoError(t, <-errc)
	require.Equal(t, []nav.Event{{Kind: nav.DraftCreated, DraftID: 9}}, f.nav.Events())
}

func TestSubmit_BoundEmailIsSent(t *testing.T) {
	f := newFixture("42")
	require.NoError(t, f.c.Submit(context.Background(), "summarize this email"))

	calls := f.agent.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].EmailID)
	require.Equal(t, mail.EmailID("42"), *calls[0].EmailID)
}

func TestObserver_SeesEveryChange(t *testing.T) {
	var mu sync.Mutex
	var states []State
	c := New(Options{
		Agent:   &mockAgent{},
		Drafts:  &mockDrafts{},
		EmailID: "42",
		Observer: func(s Snapshot) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		},
	})
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, "hi"))
	require.NoError(t, c.Submit(ctx, "draft a reply"))
	require.NoError(t, c.Confirm(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{
		StateSending, StateIdle,
		StateAwaitingConfirmation,
		StateGeneratingDraft, StateIdle,
	}, states)
}

func TestObserver_PendingTextOnlyWhileConfirming(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot
	c := New(Options{
		Agent:   &mockAgent{},
		Drafts:  &mockDrafts{},
		EmailID: "42",
		Observer: func(s Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		},
	})
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, "draft a reply"))
	require.NoError(t, c.Confirm(ctx))
	require.NoError(t, c.Submit(ctx, "compose something"))
	require.NoError(t, c.Cancel(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	for _, s := range snaps {
		if s.State == StateAwaitingConfirmation {
			require.NotEmpty(t, s.PendingDraftText)
		} else {
			require.Empty(t, s.PendingDraftText, "state %s", s.State)
		}
	}
}

type memArchive struct {
	mu   sync.Mutex
	recs []history.Record
}

func (a *memArchive) Save(rec history.Record) {
	a.mu.Lock()
	a.recs = append(a.recs, rec)
	a.mu.Unlock()
}

func TestArchive_MirrorsTranscript(t *testing.T) {
	arch := &memArchive{}
	c := New(Options{Agent: &mockAgent{}, Drafts: &mockDrafts{}, Archive: arch, Welcome: "hi"})
	require.NoError(t, c.Submit(context.Background(), "question"))

	require.Len(t, arch.recs, 3)
	for _, rec := range arch.recs {
		require.Equal(t, c.SessionID(), rec.SessionID)
	}
	require.Equal(t, history.RoleUser, arch.recs[1].Role)
	require.Equal(t, "question", arch.recs[1].Content)
}
