// Package chroma talks to a Chroma server over its v1 HTTP API.
package chroma

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
	"time"

	"go.uber.org/zap"

	"github.com/peternagy/chromapal/internal/types"
)

// DefaultFallbackLimit is the limit used by the last-resort page request.
const DefaultFallbackLimit = 1000

// ErrEmptyCollectionID is returned before any request is issued for an empty id.
var ErrEmptyCollectionID = errors.New("collection id is required")

// Observer receives per-request measurements.
type Observer interface {
	ObserveAttempt(variant string, status int, d time.Duration)
	ObserveCount(outcome string)
	ObservePageFetch(d time.Duration, fallback, ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, int, time.Duration) {}
func (nopObserver) ObserveCount(string) {}
func (nopObserver) ObservePageFetch(time.Duration, bool, bool) {}

// Client is a Chroma HTTP client bound to one base URL.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	token         string
	observer      Observer
	logger        *zap.Logger
	fallbackLimit int
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the auth token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver registers a measurement observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFallbackLimit sets the limit of the last-resort page request.
func WithFallbackLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.fallbackLimit = n
		}
	}
}

// New creates a client for baseURL (protocol://host:port[basePath]).
// Page fetches carry no client timeout; callers bound them through the context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		observer:      nopObserver{},
		logger:        zap.NewNop(),
		fallbackLimit: DefaultFallbackLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Response is a fully read HTTP response. StatusCode is 0 when the request
// never produced a response; Body then holds the transport error text.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the body as trimmed text.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Body))
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Chroma-Token", c.token)
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func collectionPath(id, suffix string) string {
	return "/collections/" + url.PathEscape(id) + suffix
}

// =============================================================================
// Server Operations
// =============================================================================

// Heartbeat checks that the server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/heartbeat", nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Text())
	}
	return nil
}

// ListCollections lists the server's collections. Both a bare array and a
// {"collections": [...]} wrapper are accepted; entries without an id are dropped.
func (c *Client) ListCollections(ctx context.Context) ([]types.CollectionRef, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Text())
	}

	cols, err := parseCollections(resp.Body)
	if err != nil {
		return nil, err
	}

	result := make([]types.CollectionRef, 0, len(cols))
	for _, col := range cols {
		if col.ID == "" {
			c.logger.Debug("skipping collection without id", zap.String("name", col.Name))
			continue
		}
		result = append(result, col)
	}
	return result, nil
}

func parseCollections(body []byte) ([]types.CollectionRef, error) {
	var list []types.CollectionRef
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Collections []types.CollectionRef `json:"collections"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode collections: %w", err)
	}
	return wrapped.Collections, nil
}
