package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/peternagy/chromapal/internal/jsonutil"
)

// Count lookup outcomes reported to the Observer.
const (
	CountOK          = "ok"
	CountUnavailable = "unavailable"
	CountError       = "error"
)

// ResolveCount returns the collection's document count, or nil when the
// count endpoint is unreachable or answers with a non-2xx status.
// An unparseable body counts as 0.
func (c *Client) ResolveCount(ctx context.Context, collectionID string) *int {
	if collectionID == "" {
		return nil
	}

	resp, err := c.doRequest(ctx, http.MethodGet, collectionPath(collectionID, "/count"), nil)
	if err != nil {
		c.observer.ObserveCount(CountError)
		c.logger.Debug("count request failed", zap.String("collection", collectionID), zap.Error(err))
		return nil
	}
	if !resp.OK() {
		c.observer.ObserveCount(CountUnavailable)
		c.logger.Debug("count unavailable", zap.String("collection", collectionID), zap.Int("status", resp.StatusCode))
		return nil
	}

	n := ParseCount(resp.Body)
	c.observer.ObserveCount(CountOK)
	return &n
}

// ParseCount reads a count body that is either a JSON integer or plain text.
// Anything else, including trailing garbage, yields 0. Negative counts clamp to 0.
func ParseCount(body []byte) int {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return 0
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nonNegative(jsonutil.ToInt(string(body)))
	}
	if _, err := dec.Token(); err != io.EOF {
		return 0
	}
	switch v.(type) {
	case json.Number, string:
		return nonNegative(jsonutil.ToInt(v))
	default:
		return 0
	}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
