// Package elastic is a minimal client for the Elasticsearch REST API,
// covering the calls the ingestion pipeline needs: index management, bulk
// document submission and the cat listing used for cleanup.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one Elasticsearch node.
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

// New creates a new Client for the given Elasticsearch base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("elastic: baseURL is required")
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

// esError mirrors the error envelope Elasticsearch wraps failures in.
type esError struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// doJSON executes an HTTP request and decodes the JSON response into dst.
// If the response has an error status, it returns an *APIError.
func (c *Client) doJSON(ctx context.Context, method, u, operation, contentType string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var envelope esError
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Reason != "" {
			return newAPIError(operation, resp.StatusCode, envelope.Error.Type, envelope.Error.Reason)
		}
		msg := string(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, "", msg)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// Ping verifies the node answers on its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, "GET", c.baseURL+"/", "ping", "", nil, nil)
}

// EnsureIndex creates the index if it does not exist yet. Creating an index
// that already exists is not an error.
func (c *Client) EnsureIndex(ctx context.Context, name string) error {
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(name))
	err := c.doJSON(ctx, "PUT", u, "create index", "application/json", strings.NewReader("{}"), nil)
	if err != nil && !IsAlreadyExists(err) {
		return err
	}
	return nil
}

// DeleteIndex removes an index. Deleting a missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(name))
	err := c.doJSON(ctx, "DELETE", u, "delete index", "", nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// IndexInfo describes one index from the cat listing.
type IndexInfo struct {
	Name      string `json:"index"`
	DocsCount string `json:"docs.count"`
	StoreSize string `json:"store.size"`
}

// CatIndices lists all indices on the node.
func (c *Client) CatIndices(ctx context.Context) ([]IndexInfo, error) {
	u := c.baseURL + "/_cat/indices?format=json"
	var infos []IndexInfo
	if err := c.doJSON(ctx, "GET", u, "cat indices", "", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}
