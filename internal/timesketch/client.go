// Package timesketch is a session-based client for the Timesketch REST API:
// form login over a cookie jar, sketch lookup and creation, and timeline
// upload via multipart form.
package timesketch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Client talks to one Timesketch server. Call Login before any API method;
// the session cookie lives in the client's jar.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	csrfToken  string
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a new Client for the given Timesketch instance. The supplied
// HTTP client, if any, gets a cookie jar when it has none.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("timesketch: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("timesketch: cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// APIError represents an error response from the Timesketch API.
type APIError struct {
	operation  string
	statusCode int
	message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == http.StatusUnauthorized
}

// Login establishes the session: it fetches the login page for the CSRF
// cookie, then posts the credentials as a form. A failed login surfaces as
// an unauthorized API error.
func (c *Client) Login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/login/", nil)
	if err != nil {
		return fmt.Errorf("login: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: fetch login page: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	c.refreshCSRF(resp)

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	if c.csrfToken != "" {
		form.Set("csrf_token", c.csrfToken)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", c.baseURL+"/login/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("login: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &APIError{operation: "login", statusCode: http.StatusUnauthorized, message: "invalid credentials"}
	}
	if resp.StatusCode >= 400 {
		return &APIError{operation: "login", statusCode: resp.StatusCode, message: resp.Status}
	}
	c.refreshCSRF(resp)
	c.logger.DebugContext(ctx, "logged in", "user", c.username)
	return nil
}

// refreshCSRF picks up the CSRF token cookie from a response, echoed back as
// the X-CSRFToken header on mutating requests. The token is read off the
// response directly: a cookie set on the login page without Path=/ is
// scoped to /login in the jar and invisible at the base URL.
func (c *Client) refreshCSRF(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "csrf_token" {
			c.csrfToken = cookie.Value
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, u, operation, contentType string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.csrfToken != "" && method != "GET" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Message string `json:"message"`
		}
		msg := resp.Status
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Message != "" {
			msg = envelope.Message
		}
		return &APIError{operation: operation, statusCode: resp.StatusCode, message: msg}
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}
