package client_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/raphaelgruber/wikidesk/internal/client"
	"github.com/stretchr/testify/assert"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"session expired", fmt.Errorf("GET /x: %w", client.ErrSessionExpired), "Your session has expired. Please log in again."},
		{"string detail", &client.APIError{Status: 400, Detail: "Email already registered"}, "Email already registered"},
		{"no detail", &client.APIError{Status: 500}, "Something went wrong"},
		{"wrapped api error", fmt.Errorf("create: %w", &client.APIError{Status: 409, Detail: "Duplicate"}), "Duplicate"},
		{"plain error", errors.New("decode failed"), "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.Message(tt.err, "Something went wrong"))
		})
	}
}

func TestAPIErrorIs(t *testing.T) {
	forbidden := &client.APIError{Status: 403}
	notFound := &client.APIError{Status: 404}

	assert.ErrorIs(t, forbidden, client.ErrForbidden)
	assert.NotErrorIs(t, forbidden, client.ErrNotFound)
	assert.ErrorIs(t, notFound, client.ErrNotFound)
	assert.NotErrorIs(t, notFound, client.ErrSessionExpired)
}

func TestAPIErrorString(t *testing.T) {
	err := &client.APIError{Method: "GET", Path: "/pages/1", Status: 404, Detail: "Page not found"}
	assert.Equal(t, "GET /pages/1: 404 Not Found: Page not found", err.Error())

	err = &client.APIError{Method: "DELETE", Path: "/users/2", Status: 500}
	assert.Equal(t, "DELETE /users/2: 500 Internal Server Error", err.Error())
}
