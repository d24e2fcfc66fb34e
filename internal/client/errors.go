package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors. Use errors.Is() to check for these in calling code.
var (
	// ErrSessionExpired is returned after a 401 response. The stored token
	// has already been cleared when the caller sees it.
	ErrSessionExpired = errors.New("session expired")

	// ErrForbidden matches an *APIError with status 403. It does not log the user out.
	ErrForbidden = errors.New("permission denied")

	// ErrNotFound matches an *APIError with status 404.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx, non-401 response.
type APIError struct {
	Method string
	Path   string
	Status int
	// Detail is the server-supplied explanation, if the body carried one.
	Detail string
	Body   []byte
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		Method: method,
		Path:   path,
		Status: status,
		Detail: parseDetail(body),
		Body:   body,
	}
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// parseDetail extracts a human-readable message from an error body.
// Understands {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."} and {"error": "..."}.
func parseDetail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
			Loc []any  `json:"loc"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg == "" {
					continue
				}
				if field := locField(it.Loc); field != "" {
					msgs = append(msgs, field+": "+it.Msg)
				} else {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// locField returns the last element of a validation error location.
func locField(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	return fmt.Sprint(loc[len(loc)-1])
}

// Message turns err into a one-line user-facing notice: the server detail
// when there is one, otherwise fallback. Status codes are never shown.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return "Your session has expired. Please log in again."
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fallback
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Could not reach the server. Check your connection and try again."
	}
	return fallback
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
