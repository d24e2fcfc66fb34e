// Package ai provides typed access to the AI backend: chat sessions, chat
// and engineer matching.
package ai

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/raphaelgruber/wikidesk/internal/client"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message as stored by the server.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a chat session with its history.
type Session struct {
	ID           string    `json:"id"`
	UserEmail    string    `json:"user_email,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatRequest asks the assistant to answer message within a session.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// UseRAG grounds the answer in indexed internal documents.
	UseRAG bool `json:"use_rag"`
}

// ChatResponse is the assistant's reply (Markdown).
type ChatResponse struct {
	Content string `json:"content"`
}

// EngineerMatch is one ranked candidate for an opportunity.
type EngineerMatch struct {
	EngineerID int      `json:"engineer_id"`
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Status     string   `json:"status,omitempty"`
	Skills     []string `json:"matched_skills,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Sort directions for ListSessions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListSessionsOptions controls server-side sorting and paging of sessions.
type ListSessionsOptions struct {
	SortBy string
	Order  string
	Skip   int
	Limit  int
}

// API is the AI backend.
type API struct {
	c *client.Client
}

// New wraps c.
func New(c *client.Client) *API {
	return &API{c: c}
}

// CreateSession starts an empty chat session.
func (a *API) CreateSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := a.c.Post(ctx, "/sessions", struct{}{}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession returns a session with its full message history.
func (a *API) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := a.c.Get(ctx, "/sessions/"+url.PathEscape(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Chat sends one user message and returns the assistant's reply.
func (a *API) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := a.c.Post(ctx, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MatchOpportunity ranks engineers for an opportunity, best first.
func (a *API) MatchOpportunity(ctx context.Context, opportunityID int) ([]EngineerMatch, error) {
	var out []EngineerMatch
	path := fmt.Sprintf("/match/opportunities/%d", opportunityID)
	if err := a.c.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSessions returns all users' sessions. Admin only.
func (a *API) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]Session, error) {
	q := url.Values{}
	if opts.SortBy != "" {
		q.Set("sort_by", opts.SortBy)
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	if opts.Skip > 0 {
		q.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	var out []Session
	if err := a.c.Get(ctx, "/admin/sessions", &out, client.WithQuery(q)); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes a session and its messages. Admin only.
func (a *API) DeleteSession(ctx context.Context, id string) error {
	return a.c.Delete(ctx, "/admin/sessions/"+url.PathEscape(id))
}
