// Package client provides the HTTP client used for both wikidesk backends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/wikidesk/internal/auth"
	"github.com/raphaelgruber/wikidesk/internal/metrics"
)

// maxErrorBody bounds how much of a failed response is kept on APIError.
const maxErrorBody = 64 * 1024

// Options configures a Client. One Client exists per backend service.
type Options struct {
	// Name identifies the backend in logs ("api", "ai").
	Name string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// Credentials supplies the bearer token. May be nil for anonymous clients.
	Credentials *auth.Credentials

	// OnUnauthorized runs after a 401 response has cleared the credentials.
	OnUnauthorized func()

	// HTTPClient defaults to a client with the given Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Zero means no timeout.
	Timeout time.Duration

	Logger *slog.Logger

	// Metrics records request timings under Name. Optional.
	Metrics *metrics.Collector
}

// Client sends JSON requests to one backend.
type Client struct {
	name           string
	baseURL        string
	creds          *auth.Credentials
	onUnauthorized func()
	httpClient     *http.Client
	logger         *slog.Logger
	metrics        *metrics.Collector
}

// New creates a Client from opts.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "api"
	}

	return &Client{
		name:           name,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		creds:          opts.Credentials,
		onUnauthorized: opts.OnUnauthorized,
		httpClient:     httpClient,
		logger:         logger.With("backend", name),
		metrics:        opts.Metrics,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Credentials returns the credentials shared with other clients.
func (c *Client) Credentials() *auth.Credentials {
	return c.creds
}

// File is a multipart file part.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

type request struct {
	query     url.Values
	header    http.Header
	form      url.Values
	multipart *multipartBody
}

type multipartBody struct {
	fields map[string]string
	files  []File
}

// RequestOption customizes a single request.
type RequestOption func(*request)

// WithQuery adds query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(r *request) {
		for k, vs := range q {
			for _, v := range vs {
				r.query.Add(k, v)
			}
		}
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithForm sends form as an application/x-www-form-urlencoded body.
// The body argument of Do is ignored.
func WithForm(form url.Values) RequestOption {
	return func(r *request) {
		r.form = form
	}
}

// WithMultipart sends fields and files as multipart/form-data.
// The body argument of Do is ignored.
func WithMultipart(fields map[string]string, files ...File) RequestOption {
	return func(r *request) {
		r.multipart = &multipartBody{fields: fields, files: files}
	}
}

// Get is shorthand for Do with GET.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post is shorthand for Do with POST.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put is shorthand for Do with PUT.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete is shorthand for Do with DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// Do sends a request to BaseURL+path and decodes a 2xx JSON response into out.
//
// A 401 response clears the credentials, runs OnUnauthorized and returns
// ErrSessionExpired, whatever endpoint was called. Any other non-2xx status is
// returned as *APIError. Nothing is retried.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	r := &request{query: url.Values{}, header: http.Header{}}
	for _, opt := range opts {
		opt(r)
	}

	reqBody, contentType, err := r.encode(body)
	if err != nil {
		return err
	}

	target := c.baseURL + path
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.creds != nil {
		tok, err := c.creds.Token()
		switch {
		case err == nil:
			tok.SetAuthHeader(req)
		case !errors.Is(err, auth.ErrNoToken):
			return err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(0, start)
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, start)

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		c.expire(method, path)
		return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(method, path, resp.StatusCode, data)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) record(status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordRequest(c.name, status, time.Since(start))
	}
}

// expire applies the session-expiry policy after a 401.
func (c *Client) expire(method, path string) {
	c.logger.Warn("session expired", "method", method, "path", path)
	if c.creds != nil {
		if err := c.creds.Clear(); err != nil {
			c.logger.Error("failed to clear token", "error", err)
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func (r *request) encode(body any) (io.Reader, string, error) {
	switch {
	case r.multipart != nil:
		return r.multipart.encode()
	case r.form != nil:
		return strings.NewReader(r.form.Encode()), "application/x-www-form-urlencoded", nil
	case body == nil:
		return nil, "", nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

func (m *multipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range m.fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range m.files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
