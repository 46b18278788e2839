package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/peternagy/chromapal/internal/types"
)

// Include lists accepted by the "get documents" endpoint.
var (
	includeFull         = []string{"documents", "metadatas", "embeddings"}
	includeNoEmbeddings = []string{"metadatas", "documents"}
	includeExtended     = []string{"documents", "embeddings", "metadatas", "distances", "uris", "data"}
)

// Variant is one candidate request body for POST /collections/{id}/get.
// Paginated is set when the body carries the requested limit and offset.
type Variant struct {
	Name      string
	Body      map[string]interface{}
	Paginated bool
}

// Variants returns the request bodies in the order they are tried.
// The list is rebuilt for every call; no winning variant is remembered.
func Variants(limit, offset int) []Variant {
	return []Variant{
		{Name: "full", Body: map[string]interface{}{"include": includeFull, "limit": limit, "offset": offset}, Paginated: true},
		{Name: "no-embeddings", Body: map[string]interface{}{"include": includeNoEmbeddings, "limit": limit, "offset": offset}, Paginated: true},
		{Name: "extended", Body: map[string]interface{}{"include": includeExtended, "limit": limit, "offset": offset}, Paginated: true},
		{Name: "unpaginated", Body: map[string]interface{}{"include": includeFull}},
		{Name: "pagination-only", Body: map[string]interface{}{"limit": limit, "offset": offset}, Paginated: true},
		{Name: "empty", Body: map[string]interface{}{}},
	}
}

// FallbackVariant is the last-resort request issued after every variant failed.
// It always starts at offset 0, so it is not Paginated.
func FallbackVariant(limit int) Variant {
	return Variant{
		Name: "fallback",
		Body: map[string]interface{}{"include": includeFull, "limit": limit, "offset": 0},
	}
}

// PageResult is the outcome of a negotiated page fetch. Response is never nil.
type PageResult struct {
	Response *Response
	Variant  string
	Attempts []types.NegotiationAttempt
	Fallback bool // Response came from the last-resort request

	// Paginated is false when the response starts at offset 0 regardless of
	// the requested page; callers must window the rows themselves.
	Paginated bool
}

// OK reports whether the chosen response was successful.
func (r *PageResult) OK() bool {
	return r.Response.OK()
}

// Decode parses a successful response body.
func (r *PageResult) Decode() (types.RawFetchResult, error) {
	var raw types.RawFetchResult
	if !r.OK() {
		return raw, r.Err()
	}
	if err := json.Unmarshal(r.Response.Body, &raw); err != nil {
		return raw, fmt.Errorf("failed to decode documents: %w", err)
	}
	return raw, nil
}

// Err returns a *FetchError when every attempt failed, nil otherwise.
func (r *PageResult) Err() error {
	if r.OK() {
		return nil
	}
	return &FetchError{
		Status:   r.Response.StatusCode,
		Body:     r.Response.Text(),
		Attempts: r.Attempts,
	}
}

// FetchError reports format-negotiation exhaustion with the last response.
type FetchError struct {
	Status   int
	Body     string
	Attempts []types.NegotiationAttempt
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("failed to load documents: %s", e.Body)
	}
	if e.Body == "" {
		return fmt.Sprintf("failed to load documents: HTTP %d", e.Status)
	}
	return fmt.Sprintf("failed to load documents: HTTP %d: %s", e.Status, e.Body)
}

// FetchPage tries each request variant in order and returns the first 2xx
// response. When all fail, one fallback request is issued and its response
// returned whatever its status. An error is returned only for an empty
// collection id or a cancelled context.
func (c *Client) FetchPage(ctx context.Context, collectionID string, limit, offset int) (*PageResult, error) {
	if collectionID == "" {
		return nil, ErrEmptyCollectionID
	}

	start := time.Now()
	endpoint := collectionPath(collectionID, "/get")
	result := &PageResult{}

	for i, v := range Variants(limit, offset) {
		resp, attempt, err := c.attempt(ctx, endpoint, i+1, v)
		if err != nil {
			return nil, err
		}
		result.Attempts = append(result.Attempts, attempt)
		if resp.OK() {
			result.Response = resp
			result.Variant = v.Name
			result.Paginated = v.Paginated
			c.observer.ObservePageFetch(time.Since(start), false, true)
			return result, nil
		}
	}

	fb := FallbackVariant(c.fallbackLimit)
	resp, attempt, err := c.attempt(ctx, endpoint, 0, fb)
	if err != nil {
		return nil, err
	}
	result.Attempts = append(result.Attempts, attempt)
	result.Response = resp
	result.Variant = fb.Name
	result.Fallback = true

	c.observer.ObservePageFetch(time.Since(start), true, resp.OK())
	if !resp.OK() {
		c.logger.Warn("document fetch exhausted every request variant",
			zap.String("collection", collectionID),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(resp.Text(), 200)))
	}
	return result, nil
}

// attempt issues one variant. Transport failures become a status-0 Response;
// only context cancellation is returned as an error.
func (c *Client) attempt(ctx context.Context, endpoint string, index int, v Variant) (*Response, types.NegotiationAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NegotiationAttempt{}, err
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, http.MethodPost, endpoint, v.Body)
	elapsed := time.Since(start)

	a := types.NegotiationAttempt{
		Index:      index,
		Variant:    v.Name,
		DurationMs: elapsed.Milliseconds(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil, a, ctxErr
		}
		resp = &Response{StatusCode: 0, Body: []byte(err.Error())}
		a.Error = err.Error()
	} else if !resp.OK() {
		a.Error = truncate(resp.Text(), 200)
	}
	a.Status = resp.StatusCode

	c.observer.ObserveAttempt(v.Name, resp.StatusCode, elapsed)
	c.logger.Debug("document fetch attempt",
		zap.String("variant", v.Name),
		zap.Int("index", index),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))
	return resp, a, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
