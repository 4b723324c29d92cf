// Package apiclient is a Go client for the MedQ API. A Client carries the
// base URL and an explicit Session; the per-domain services issue exactly
// one HTTP call per operation with no retries or caching.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Client sends requests to one MedQ server.
type Client struct {
	baseURL        string
	session        Session
	http           *http.Client
	logger         zerolog.Logger
	onUnauthorized func()

	Intake    *IntakeService
	Patients  *PatientService
	Auth      *AuthService
	Analytics *AnalyticsService
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithUnauthorizedHook registers fn to run after any 401 response, once the
// session token has been cleared. A UI uses it to route to its login view.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New returns a client for baseURL (e.g. "http://localhost:8000"). A nil
// session is replaced by an empty MemorySession.
func New(baseURL string, session Session, opts ...Option) *Client {
	if session == nil {
		session = NewMemorySession("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    http.DefaultClient,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Intake = &IntakeService{c: c}
	c.Patients = &PatientService{c: c}
	c.Auth = &AuthService{c: c}
	c.Analytics = &AnalyticsService{c: c}
	return c
}

// Session returns the token store the client reads on every request.
func (c *Client) Session() Session { return c.session }

// envelope mirrors the server's response wrapper with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  string          `json:"detail"`
}

type request struct {
	method string
	path   string
	query  url.Values
	// body is JSON-encoded unless it is already an io.Reader.
	body        any
	contentType string
}

// send performs r and returns the response when the status is 2xx. Any
// other status is converted into an *Error; a 401 also clears the session
// and fires the unauthorized hook.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	var body io.Reader
	contentType := r.contentType
	if r.body != nil {
		if rd, ok := r.body.(io.Reader); ok {
			body = rd
		} else {
			b := &bytes.Buffer{}
			if err := json.NewEncoder(b).Encode(r.body); err != nil {
				return nil, fmt.Errorf("apiclient: encode %s: %w", r.path, err)
			}
			body = b
			contentType = "application/json"
		}
	}

	u := c.baseURL + r.path
	if len(r.query) != 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", r.method).Str("path", r.path).Msg("request failed")
		return nil, fmt.Errorf("apiclient: %s %s: %w", r.method, r.path, err)
	}
	c.logger.Debug().Str("method", r.method).Str("path", r.path).Int("status", res.StatusCode).Msg("request")

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()

	apiErr := decodeError(res)
	if apiErr.Unauthorized() {
		if err := c.session.Clear(); err != nil {
			c.logger.Warn().Err(err).Msg("clear session")
		}
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return nil, apiErr
}

// do performs r and decodes the envelope's data into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	res, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("apiclient: decode %s response: %w", r.path, err)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("apiclient: decode %s data: %w", r.path, err)
	}
	return nil
}

// download performs r and copies the raw body to w.
func (c *Client) download(ctx context.Context, r request, w io.Writer) (int64, error) {
	res, err := c.send(ctx, r)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	n, err := io.Copy(w, res.Body)
	if err != nil {
		return n, fmt.Errorf("apiclient: read %s: %w", r.path, err)
	}
	return n, nil
}

// Error is a non-2xx response from the server.
type Error struct {
	Status int
	Err    string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("medq: %d %s: %s", e.Status, e.Err, e.Detail)
	}
	return fmt.Sprintf("medq: %d %s", e.Status, e.Err)
}

// Unauthorized reports a 401. The client has already cleared its session.
func (e *Error) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// Validation reports a 422; Detail holds the server's message verbatim.
func (e *Error) Validation() bool { return e.Status == http.StatusUnprocessableEntity }

func (e *Error) NotFound() bool { return e.Status == http.StatusNotFound }

// IsUnauthorized reports whether err wraps a 401 *Error.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func decodeError(res *http.Response) *Error {
	apiErr := &Error{Status: res.StatusCode, Err: http.StatusText(res.StatusCode)}
	var env envelope
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&env); err == nil {
		if env.Error != "" {
			apiErr.Err = env.Error
		}
		apiErr.Detail = env.Detail
	}
	return apiErr
}
