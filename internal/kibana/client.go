// Package kibana manages the saved objects that make ingested indices
// visible: index patterns and the UTC timezone advanced setting. Every
// request carries the kbn-xsrf header Kibana requires on mutations.
package kibana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one Kibana instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a new Client for the given Kibana base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("kibana: baseURL is required")
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
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
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

// APIError represents an error response from the Kibana saved-objects API.
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

// IsConflict reports whether err is an API error with HTTP 409 status,
// which Kibana returns when a saved object with the same ID already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == http.StatusConflict
}

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == http.StatusNotFound
}

func (c *Client) doJSON(ctx context.Context, method, u, operation string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("kbn-xsrf", "true")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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
		} else if len(respBody) > 0 {
			msg = string(respBody)
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

// IndexPattern is one index-pattern saved object.
type IndexPattern struct {
	ID    string
	Title string
}

// CreateIndexPattern registers a wildcard index pattern `<base>_*` keyed on
// the @timestamp field, so one pattern discovers every index the base name
// fans out into. The title doubles as the object ID, making repeat runs
// idempotent: a conflict means the pattern already exists and is not an
// error.
func (c *Client) CreateIndexPattern(ctx context.Context, base string) error {
	title := base + "_*"
	u := fmt.Sprintf("%s/api/saved_objects/index-pattern/%s", c.baseURL, url.PathEscape(title))
	payload := fmt.Sprintf(`{"attributes":{"title":%q,"timeFieldName":"@timestamp"}}`, title)
	err := c.doJSON(ctx, "POST", u, "create index pattern", strings.NewReader(payload), nil)
	if err != nil && !IsConflict(err) {
		return err
	}
	return nil
}

// FindIndexPatterns returns the index patterns whose title matches the
// search term. An empty term returns all patterns.
func (c *Client) FindIndexPatterns(ctx context.Context, term string) ([]IndexPattern, error) {
	u := c.baseURL + "/api/saved_objects/_find?type=index-pattern&fields=title&per_page=1000"
	if term != "" {
		u += "&search_fields=title&search=" + url.QueryEscape(term)
	}
	var resp struct {
		SavedObjects []struct {
			ID         string `json:"id"`
			Attributes struct {
				Title string `json:"title"`
			} `json:"attributes"`
		} `json:"saved_objects"`
	}
	if err := c.doJSON(ctx, "GET", u, "find index patterns", nil, &resp); err != nil {
		return nil, err
	}
	patterns := make([]IndexPattern, 0, len(resp.SavedObjects))
	for _, so := range resp.SavedObjects {
		patterns = append(patterns, IndexPattern{ID: so.ID, Title: so.Attributes.Title})
	}
	return patterns, nil
}

// DeleteIndexPattern removes one index-pattern saved object by ID. A missing
// pattern is not an error.
func (c *Client) DeleteIndexPattern(ctx context.Context, id string) error {
	u := fmt.Sprintf("%s/api/saved_objects/index-pattern/%s", c.baseURL, url.PathEscape(id))
	err := c.doJSON(ctx, "DELETE", u, "delete index pattern", nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// SetTimezoneUTC pins the Kibana display timezone to UTC so event times read
// the same as the ingested documents.
func (c *Client) SetTimezoneUTC(ctx context.Context) error {
	u := c.baseURL + "/api/kibana/settings"
	payload := `{"changes":{"dateFormat:tz":"UTC"}}`
	return c.doJSON(ctx, "POST", u, "set timezone", strings.NewReader(payload), nil)
}
