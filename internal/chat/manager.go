// Package chat manages the single active assistant chat session: creating or
// restoring it, exchanging messages and recovering from failures.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/auth"
)

var (
	// ErrNotActive is returned by Submit before a session is active.
	ErrNotActive = errors.New("chat session is not active")

	// ErrBusy is returned while a message is still awaiting its reply.
	ErrBusy = errors.New("a message is already being sent")

	// ErrEmptyMessage is returned for blank submissions.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrStale is returned when the session was reset or closed while a
	// request was in flight. The result of that request was discarded.
	ErrStale = errors.New("chat session changed while the request was in flight")

	// ErrMalformedSession is returned when the server's session has no id.
	ErrMalformedSession = errors.New("server returned a session without an id")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("chat session already initialized")
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateCreating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status tracks a submitted user message: pending until the reply arrives,
// then committed or rolled back.
type Status int

const (
	StatusPending Status = iota
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Message is a chat message held in memory. Messages are never edited after
// they are committed.
type Message struct {
	ID        string
	Role      ai.Role
	Content   string
	Timestamp time.Time
	Status    Status
}

// Exchange is the outcome of one Submit.
type Exchange struct {
	User  Message
	Reply *Message
}

// Backend is the subset of the AI API the manager needs.
type Backend interface {
	CreateSession(ctx context.Context) (*ai.Session, error)
	GetSession(ctx context.Context, id string) (*ai.Session, error)
	Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error)
}

// Options configures a Manager.
type Options struct {
	// Store persists the session id across runs. Required.
	Store auth.Store

	// Notify receives user-visible failures (one call per failed action).
	Notify func(error)

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager owns one chat session. It is safe for concurrent use; submissions
// are serialized and a second Submit while one is in flight gets ErrBusy.
type Manager struct {
	backend Backend
	store   auth.Store
	notify  func(error)
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	sessionID string
	messages  []Message
	busy      bool
	// gen is bumped whenever in-memory state is discarded; results of
	// requests started under an older generation are dropped.
	gen uint64
}

// NewManager returns an uninitialized Manager.
func NewManager(backend Backend, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(error) {}
	}

	return &Manager{
		backend: backend,
		store:   opts.Store,
		notify:  notify,
		logger:  logger,
		now:     now,
	}
}

// Init restores the stored session, or creates one when there is none or
// the restore fails. A cancelled ctx leaves the stored session id in place.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.state = StateRestoring
	gen := m.gen
	m.mu.Unlock()

	storedID, err := m.store.Get(auth.KeyChatSessionID)
	if err != nil {
		m.logger.Warn("failed to read stored chat session", "error", err)
		storedID = ""
	}

	if storedID != "" {
		err := m.restore(ctx, gen, storedID)
		if err == nil || errors.Is(err, ErrStale) || ctx.Err() != nil {
			return err
		}
	}
	return m.create(ctx, gen)
}

func (m *Manager) restore(ctx context.Context, gen uint64, id string) error {
	if !m.enter(gen, StateRestoring) {
		return ErrStale
	}

	sess, err := m.backend.GetSession(ctx, id)
	if err == nil && (sess == nil || sess.ID == "") {
		err = ErrMalformedSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrStale
	}

	if err != nil && ctx.Err() != nil {
		m.state = StateUninitialized
		m.logger.Debug("chat session restore cancelled", "session_id", id, "error", err)
		return err
	}
	if err != nil {
		m.logger.Warn("chat session restore failed, creating a new one", "session_id", id, "error", err)
		if derr := m.store.Delete(auth.KeyChatSessionID); derr != nil {
			m.logger.Error("failed to discard stored chat session", "error", derr)
		}
		return err
	}

	m.sessionID = sess.ID
	m.messages = fromServer(sess.Messages)
	m.state = StateActive
	m.logger.Debug("chat session restored", "session_id", sess.ID, "messages", len(m.messages))
	return nil
}

func (m *Manager) create(ctx context.Context, gen uint64) error {
	if !m.enter(gen, StateCreating) {
		return ErrStale
	}

	sess, err := m.backend.CreateSession(ctx)
	if err == nil && (sess == nil || sess.ID == "") {
		err = ErrMalformedSession
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		m.state = StateUninitialized
		m.mu.Unlock()
		err = fmt.Errorf("create chat session: %w", err)
		m.notify(err)
		return err
	}

	if serr := m.store.Set(auth.KeyChatSessionID, sess.ID); serr != nil {
		m.logger.Error("failed to persist chat session id", "session_id", sess.ID, "error", serr)
	}
	m.sessionID = sess.ID
	m.messages = nil
	m.state = StateActive
	m.mu.Unlock()

	m.logger.Debug("chat session created", "session_id", sess.ID)
	return nil
}

// enter moves to state s if gen is still current.
func (m *Manager) enter(gen uint64, s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.state = s
	return true
}

// Submit sends text to the assistant. The user message is visible in
// Messages immediately as pending. On success it is committed and the reply
// appended; on failure it is removed again and one notice is emitted. The
// session stays active either way.
func (m *Manager) Submit(ctx context.Context, text string, useRAG bool) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return Exchange{}, ErrNotActive
	}
	if m.busy {
		m.mu.Unlock()
		return Exchange{}, ErrBusy
	}

	user := Message{
		ID:        uuid.NewString(),
		Role:      ai.RoleUser,
		Content:   text,
		Timestamp: m.now(),
		Status:    StatusPending,
	}
	m.messages = append(m.messages, user)
	m.busy = true
	gen, sessionID := m.gen, m.sessionID
	m.mu.Unlock()

	resp, err := m.backend.Chat(ctx, ai.ChatRequest{
		SessionID: sessionID,
		Message:   text,
		UseRAG:    useRAG,
	})
	if err == nil && resp == nil {
		err = errors.New("empty chat response")
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		user.Status = StatusRolledBack
		return Exchange{User: user}, ErrStale
	}
	m.busy = false
	idx := m.indexOf(user.ID)

	if err != nil {
		if idx >= 0 {
			m.messages = slices.Delete(m.messages, idx, idx+1)
		}
		m.mu.Unlock()

		user.Status = StatusRolledBack
		m.logger.Warn("chat message failed", "session_id", sessionID, "error", err)
		m.notify(err)
		return Exchange{User: user}, err
	}

	user.Status = StatusCommitted
	if idx >= 0 {
		m.messages[idx].Status = StatusCommitted
	}
	reply := Message{
		ID:        uuid.NewString(),
		Role:      ai.RoleAssistant,
		Content:   resp.Content,
		Timestamp: m.now(),
		Status:    StatusCommitted,
	}
	m.messages = append(m.messages, reply)
	m.mu.Unlock()

	return Exchange{User: user, Reply: &reply}, nil
}

// NewSession discards the current session, including anything still in
// flight, and creates a fresh one.
func (m *Manager) NewSession(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateUninitialized {
		m.mu.Unlock()
		return ErrBusy
	}
	m.gen++
	gen := m.gen
	m.sessionID = ""
	m.messages = nil
	m.busy = false
	if err := m.store.Delete(auth.KeyChatSessionID); err != nil {
		m.logger.Error("failed to discard stored chat session", "error", err)
	}
	m.mu.Unlock()

	return m.create(ctx, gen)
}

// Close abandons in-memory state. The stored session id is kept so the next
// Manager restores the same session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.state = StateUninitialized
	m.sessionID = ""
	m.messages = nil
	m.busy = false
}

// Messages returns a snapshot of the visible conversation.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the active session id, or "".
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Busy reports whether a submission is awaiting its reply.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *Manager) indexOf(id string) int {
	return slices.IndexFunc(m.messages, func(msg Message) bool {
		return msg.ID == id
	})
}

func fromServer(in []ai.Message) []Message {
	out := make([]Message, 0, len(in))
	for _, msg := range in {
		out = append(out, Message{
			ID:        uuid.NewString(),
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Status:    StatusCommitted,
		})
	}
	return out
}
