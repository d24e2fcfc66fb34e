package ai_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newAPI(t *testing.T, r chi.Router) *ai.API {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return ai.New(client.New(client.Options{
		Name:    "ai",
		BaseURL: srv.URL,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
}

func TestSessions(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/sessions", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "s1"})
	})
	r.Get("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       chi.URLParam(req, "id"),
			"messages": []map[string]string{{"role": "user", "content": "hi"}},
		})
	})
	api := newAPI(t, r)
	ctx := context.Background()

	s, err := api.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)

	got, err := api.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.ID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, ai.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[0].Content)
}

func TestChatRequestBody(t *testing.T) {
	r := chi.NewRouter()
	var body map[string]any
	r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"content": "hi there"})
	})
	api := newAPI(t, r)

	resp, err := api.Chat(context.Background(), ai.ChatRequest{SessionID: "s1", Message: "hello", UseRAG: true})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, map[string]any{"session_id": "s1", "message": "hello", "use_rag": true}, body)
}

func TestMatchOpportunity(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/match/opportunities/{id}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "42", chi.URLParam(req, "id"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{"engineer_id": 7, "name": "Dana", "score": 0.92, "matched_skills": []string{"go", "k8s"}},
			{"engineer_id": 3, "name": "Lee", "score": 0.61},
		})
	})
	api := newAPI(t, r)

	matches, err := api.MatchOpportunity(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Dana", matches[0].Name)
	assert.Equal(t, []string{"go", "k8s"}, matches[0].Skills)
}

func TestListAndDeleteSessions(t *testing.T) {
	r := chi.NewRouter()
	var sortBy, order, limit string
	var deleted string
	r.Get("/admin/sessions", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		sortBy, order, limit = q.Get("sort_by"), q.Get("order"), q.Get("limit")
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "s9", "user_email": "a@b.c", "message_count": 4}})
	})
	r.Delete("/admin/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		deleted = chi.URLParam(req, "id")
		w.WriteHeader(http.StatusNoContent)
	})
	api := newAPI(t, r)
	ctx := context.Background()

	sessions, err := api.ListSessions(ctx, ai.ListSessionsOptions{SortBy: "created_at", Order: ai.SortDesc, Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, "created_at", sortBy)
	assert.Equal(t, "desc", order)
	assert.Equal(t, "25", limit)
	require.Len(t, sessions, 1)
	assert.Equal(t, 4, sessions[0].MessageCount)

	require.NoError(t, api.DeleteSession(ctx, "s9"))
	assert.Equal(t, "s9", deleted)
}
