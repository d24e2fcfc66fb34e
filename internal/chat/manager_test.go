package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/auth"
	"github.com/raphaelgruber/wikidesk/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records calls and returns canned results.
type fakeBackend struct {
	mu sync.Mutex

	createIDs  []string
	createErr  error
	sessions   map[string]*ai.Session
	getErr     error
	chatReply  string
	chatErr    error
	chatGate   chan struct{} // when set, Chat blocks until closed
	chatCalled chan struct{}

	getBlocks  bool          // when set, GetSession waits for ctx to be done
	getCalled  chan struct{}
	createGate chan struct{} // when set, CreateSession blocks until closed

	createCalls int
	getCalls    []string
	chatCalls   []ai.ChatRequest
}

func (f *fakeBackend) CreateSession(ctx context.Context) (*ai.Session, error) {
	f.mu.Lock()
	f.createCalls++
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := f.createIDs[0]
	f.createIDs = f.createIDs[1:]
	return &ai.Session{ID: id}, nil
}

func (f *fakeBackend) GetSession(ctx context.Context, id string) (*ai.Session, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, id)
	blocks, called := f.getBlocks, f.getCalled
	f.mu.Unlock()
	if called != nil {
		called <- struct{}{}
	}
	if blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("404 session not found")
	}
	return s, nil
}

func (f *fakeBackend) Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, req)
	gate, called := f.chatGate, f.chatCalled
	reply, err := f.chatReply, f.chatErr
	f.mu.Unlock()

	if called != nil {
		called <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &ai.ChatResponse{Content: reply}, nil
}

type notices struct {
	mu   sync.Mutex
	errs []error
}

func (n *notices) add(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *notices) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

func newManager(backend chat.Backend, store auth.Store, n *notices) *chat.Manager {
	return chat.NewManager(backend, chat.Options{
		Store:  store,
		Notify: n.add,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type roleContent struct {
	Role    ai.Role
	Content string
}

func contents(msgs []chat.Message) []roleContent {
	out := make([]roleContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, roleContent{m.Role, m.Content})
	}
	return out
}

func activeManager(t *testing.T, backend *fakeBackend) (*chat.Manager, *notices) {
	t.Helper()
	n := &notices{}
	m := newManager(backend, auth.NewMemoryStore(), n)
	require.NoError(t, m.Init(context.Background()))
	require.Equal(t, chat.StateActive, m.State())
	return m, n
}

func TestColdStartCreatesSession(t *testing.T) {
	backend := &fakeBackend{createIDs: []string{"s1"}}
	store := auth.NewMemoryStore()
	m := newManager(backend, store, &notices{})

	assert.Equal(t, chat.StateUninitialized, m.State())
	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, 1, backend.createCalls, "exactly one create request")
	assert.Empty(t, backend.getCalls)
	stored, _ := store.Get(auth.KeyChatSessionID)
	assert.Equal(t, "s1", stored)
	assert.Equal(t, "s1", m.SessionID())
	assert.Empty(t, m.Messages())
	assert.Equal(t, chat.StateActive, m.State())
}

func TestWarmStartRestoresHistory(t *testing.T) {
	backend := &fakeBackend{sessions: map[string]*ai.Session{
		"s2": {ID: "s2", Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}}},
	}}
	store := auth.NewMemoryStore()
	require.NoError(t, store.Set(auth.KeyChatSessionID, "s2"))
	m := newManager(backend, store, &notices{})

	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, []string{"s2"}, backend.getCalls)
	assert.Zero(t, backend.createCalls, "no create-session call")
	assert.Equal(t, []roleContent{{ai.RoleUser, "hi"}}, contents(m.Messages()))
	assert.Equal(t, chat.StatusCommitted, m.Messages()[0].Status)
}

func TestRestoreFailureFallsBackToCreate(t *testing.T) {
	backend := &fakeBackend{createIDs: []string{"s3"}, getErr: errors.New("500 internal error")}
	store := auth.NewMemoryStore()
	require.NoError(t, store.Set(auth.KeyChatSessionID, "gone"))
	n := &notices{}
	m := newManager(backend, store, n)

	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, []string{"gone"}, backend.getCalls)
	assert.Equal(t, 1, backend.createCalls, "exactly one create follows")
	stored, _ := store.Get(auth.KeyChatSessionID)
	assert.Equal(t, "s3", stored, "stale id replaced")
	assert.Equal(t, chat.StateActive, m.State())
	assert.Zero(t, n.count(), "recovered restore is not user-visible")
}

func TestRestoreMalformedRecord(t *testing.T) {
	backend := &fakeBackend{
		createIDs: []string{"fresh"},
		sessions:  map[string]*ai.Session{"old": {ID: ""}},
	}
	store := auth.NewMemoryStore()
	require.NoError(t, store.Set(auth.KeyChatSessionID, "old"))
	m := newManager(backend, store, &notices{})

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, "fresh", m.SessionID())
	assert.Equal(t, 1, backend.createCalls)
}

func TestCancelledRestoreKeepsStoredSession(t *testing.T) {
	backend := &fakeBackend{
		createIDs: []string{"unused"},
		getBlocks: true,
		getCalled: make(chan struct{}, 1),
	}
	store := auth.NewMemoryStore()
	require.NoError(t, store.Set(auth.KeyChatSessionID, "s2"))
	m := newManager(backend, store, &notices{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Init(ctx) }()

	<-backend.getCalled
	cancel()
	err := <-errc

	assert.ErrorIs(t, err, context.Canceled)
	stored, _ := store.Get(auth.KeyChatSessionID)
	assert.Equal(t, "s2", stored, "stored id survives an interrupted restore")
	assert.Zero(t, backend.createCalls)
	assert.Equal(t, chat.StateUninitialized, m.State())

	backend.getBlocks = false
	backend.sessions = map[string]*ai.Session{"s2": {ID: "s2"}}
	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, "s2", m.SessionID())
}

func TestCreateFailure(t *testing.T) {
	backend := &fakeBackend{createErr: errors.New("ai backend down")}
	store := auth.NewMemoryStore()
	n := &notices{}
	m := newManager(backend, store, n)

	err := m.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, chat.StateUninitialized, m.State())
	assert.Equal(t, 1, n.count())
	stored, _ := store.Get(auth.KeyChatSessionID)
	assert.Empty(t, stored)

	_, err = m.Submit(context.Background(), "hello", false)
	assert.ErrorIs(t, err, chat.ErrNotActive)
}

func TestInitTwice(t *testing.T) {
	m, _ := activeManager(t, &fakeBackend{createIDs: []string{"s1"}})
	assert.ErrorIs(t, m.Init(context.Background()), chat.ErrAlreadyInitialized)
}

func TestConcurrentInitCreatesOnce(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{createIDs: []string{"s1", "s2"}, createGate: gate}
	m := newManager(backend, auth.NewMemoryStore(), &notices{})

	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- m.Init(context.Background())
		}()
	}
	close(start)

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.createCalls > 0
	}, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	var rejected int
	for err := range errs {
		if errors.Is(err, chat.ErrAlreadyInitialized) {
			rejected++
			continue
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, backend.createCalls)
	assert.Equal(t, "s1", m.SessionID())
}

func TestSubmitSuccess(t *testing.T) {
	backend := &fakeBackend{createIDs: []string{"s1"}, chatReply: "hi there"}
	m, n := activeManager(t, backend)

	ex, err := m.Submit(context.Background(), "hello", true)
	require.NoError(t, err)

	assert.Equal(t, []ai.ChatRequest{{SessionID: "s1", Message: "hello", UseRAG: true}}, backend.chatCalls)
	assert.Equal(t, []roleContent{
		{ai.RoleUser, "hello"},
		{ai.RoleAssistant, "hi there"},
	}, contents(m.Messages()))
	assert.Equal(t, chat.StatusCommitted, ex.User.Status)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, "hi there", ex.Reply.Content)
	for _, msg := range m.Messages() {
		assert.Equal(t, chat.StatusCommitted, msg.Status)
	}
	assert.Zero(t, n.count())
}

func TestSubmitShowsPendingMessageImmediately(t *testing.T) {
	gate := make(chan struct{})
	called := make(chan struct{}, 1)
	backend := &fakeBackend{createIDs: []string{"s1"}, chatReply: "hi there", chatGate: gate, chatCalled: called}
	m, _ := activeManager(t, backend)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), "hello", false)
		done <- err
	}()
	<-called

	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, chat.StatusPending, msgs[0].Status)
	assert.True(t, m.Busy())

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, m.Messages(), 2)
	assert.False(t, m.Busy())
}

func TestSubmitFailureRollsBack(t *testing.T) {
	backend := &fakeBackend{createIDs: []string{"s1"}, chatReply: "first answer"}
	m, n := activeManager(t, backend)

	_, err := m.Submit(context.Background(), "first", false)
	require.NoError(t, err)
	before := m.Messages()

	backend.chatErr = errors.New("502 bad gateway")
	ex, err := m.Submit(context.Background(), "second", false)
	require.Error(t, err)

	assert.Equal(t, before, m.Messages(), "optimistic message rolled back")
	assert.Equal(t, chat.StatusRolledBack, ex.User.Status)
	assert.Nil(t, ex.Reply)
	assert.Equal(t, 1, n.count(), "exactly one error notice")
	assert.Equal(t, chat.StateActive, m.State(), "session stays active")
	assert.Equal(t, "s1", m.SessionID())

	// The session keeps working after a failed exchange.
	backend.chatErr = nil
	_, err = m.Submit(context.Background(), "third", false)
	require.NoError(t, err)
	assert.Len(t, m.Messages(), 4)
}

func TestSubmitWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	called := make(chan struct{}, 1)
	backend := &fakeBackend{createIDs: []string{"s1"}, chatReply: "ok", chatGate: gate, chatCalled: called}
	m, n := activeManager(t, backend)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), "one", false)
		done <- err
	}()
	<-called

	_, err := m.Submit(context.Background(), "two", false)
	assert.ErrorIs(t, err, chat.ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, backend.chatCalls, 1)
	assert.Equal(t, []roleContent{{ai.RoleUser, "one"}, {ai.RoleAssistant, "ok"}}, contents(m.Messages()))
	assert.Zero(t, n.count())
}

func TestSubmitBlank(t *testing.T) {
	m, _ := activeManager(t, &fakeBackend{createIDs: []string{"s1"}})
	_, err := m.Submit(context.Background(), "   \n", false)
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	assert.Empty(t, m.Messages())
}

func TestNewSessionDiscardsHistory(t *testing.T) {
	store := auth.NewMemoryStore()
	backend := &fakeBackend{createIDs: []string{"s1", "s2"}, chatReply: "ok"}
	m := newManager(backend, store, &notices{})
	require.NoError(t, m.Init(context.Background()))
	_, err := m.Submit(context.Background(), "hello", false)
	require.NoError(t, err)

	require.NoError(t, m.NewSession(context.Background()))

	assert.Equal(t, "s2", m.SessionID())
	assert.Empty(t, m.Messages())
	stored, _ := store.Get(auth.KeyChatSessionID)
	assert.Equal(t, "s2", stored)
	assert.Equal(t, 2, backend.createCalls)
}

func TestNewSessionDropsInFlightReply(t *testing.T) {
	gate := make(chan struct{})
	called := make(chan struct{}, 1)
	backend := &fakeBackend{createIDs: []string{"s1", "s2"}, chatReply: "late", chatGate: gate, chatCalled: called}
	m, n := activeManager(t, backend)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), "hello", false)
		done <- err
	}()
	<-called

	require.NoError(t, m.NewSession(context.Background()))
	close(gate)

	assert.ErrorIs(t, <-done, chat.ErrStale)
	assert.Empty(t, m.Messages(), "late reply not applied to the new session")
	assert.Equal(t, "s2", m.SessionID())
	assert.Zero(t, n.count())
}

func TestCloseKeepsStoredSession(t *testing.T) {
	store := auth.NewMemoryStore()
	backend := &fakeBackend{
		createIDs: []string{"s1"},
		sessions:  map[string]*ai.Session{},
		chatReply: "ok",
	}
	m := newManager(backend, store, &notices{})
	require.NoError(t, m.Init(context.Background()))
	_, err := m.Submit(context.Background(), "hi", false)
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, chat.StateUninitialized, m.State())
	assert.Empty(t, m.Messages())
	stored, _ := store.Get(auth.KeyChatSessionID)
	assert.Equal(t, "s1", stored)

	// A later manager (next page view) restores the same session.
	backend.sessions["s1"] = &ai.Session{ID: "s1", Messages: []ai.Message{
		{Role: ai.RoleUser, Content: "hi"},
		{Role: ai.RoleAssistant, Content: "ok"},
	}}
	next := newManager(backend, store, &notices{})
	require.NoError(t, next.Init(context.Background()))
	assert.Equal(t, []roleContent{{ai.RoleUser, "hi"}, {ai.RoleAssistant, "ok"}}, contents(next.Messages()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", chat.StateActive.String())
	assert.Equal(t, "rolled-back", chat.StatusRolledBack.String())
}
