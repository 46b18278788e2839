package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// getServer serves POST /collections/c1/get, failing the first failFirst calls.
type getServer struct {
	mu        sync.Mutex
	bodies    []map[string]interface{}
	failFirst int
	failAll   bool
	headers   http.Header
}

func (g *getServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/c1/get" {
			http.NotFound(w, r)
			return
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		g.mu.Lock()
		g.bodies = append(g.bodies, body)
		n := len(g.bodies)
		g.headers = r.Header.Clone()
		g.mu.Unlock()

		if g.failAll || n <= g.failFirst {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"bad include"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ids":["a","b"],"documents":["one",null],"metadatas":[{"k":1}],"embeddings":[[0.1,0.2],null]}`))
	}
}

func TestVariantsOrder(t *testing.T) {
	vs := Variants(50, 100)
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Name
	}
	want := "full,no-embeddings,extended,unpaginated,pagination-only,empty"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("variant order = %s, want %s", got, want)
	}

	if _, ok := vs[3].Body["limit"]; ok {
		t.Error("unpaginated variant must not carry limit")
	}
	if _, ok := vs[4].Body["include"]; ok {
		t.Error("pagination-only variant must not carry include")
	}
	if len(vs[5].Body) != 0 {
		t.Error("empty variant must have an empty body")
	}
	for _, v := range vs {
		_, hasLimit := v.Body["limit"]
		if v.Paginated != hasLimit {
			t.Errorf("%s: Paginated = %v, body has limit = %v", v.Name, v.Paginated, hasLimit)
		}
	}
	if FallbackVariant(1000).Paginated {
		t.Error("fallback always starts at offset 0 and must not be marked paginated")
	}
	if vs[0].Body["offset"] != 100 || vs[0].Body["limit"] != 50 {
		t.Errorf("full variant carries wrong paging: %v", vs[0].Body)
	}
}

func TestFetchPage_FirstVariantWins(t *testing.T) {
	gs := &getServer{}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.FetchPage(context.Background(), "c1", 10, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK() || res.Variant != "full" || res.Fallback || !res.Paginated {
		t.Errorf("unexpected result: variant=%s fallback=%v paginated=%v ok=%v", res.Variant, res.Fallback, res.Paginated, res.OK())
	}
	if len(gs.bodies) != 1 {
		t.Errorf("expected 1 request, got %d", len(gs.bodies))
	}
	if gs.bodies[0]["offset"].(float64) != 20 {
		t.Errorf("offset = %v, want 20", gs.bodies[0]["offset"])
	}

	raw, err := res.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw.IDs) != 2 {
		t.Errorf("expected 2 ids, got %d", len(raw.IDs))
	}
}

func TestFetchPage_ShortCircuitsOnFourthVariant(t *testing.T) {
	gs := &getServer{failFirst: 3}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	res, err := New(srv.URL).FetchPage(context.Background(), "c1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Variant != "unpaginated" {
		t.Errorf("Variant = %s, want unpaginated", res.Variant)
	}
	if res.Paginated {
		t.Error("a response to a body without limit/offset must not be marked paginated")
	}
	if len(gs.bodies) != 4 {
		t.Fatalf("expected 4 requests (variants 5 and 6 not tried), got %d", len(gs.bodies))
	}
	if _, ok := gs.bodies[3]["limit"]; ok {
		t.Error("fourth request should be the unpaginated variant")
	}
	if len(res.Attempts) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(res.Attempts))
	}
	for i, a := range res.Attempts[:3] {
		if a.Status != http.StatusUnprocessableEntity || a.Error == "" {
			t.Errorf("attempt %d should record the failure: %+v", i+1, a)
		}
	}
	if res.Attempts[3].Status != http.StatusOK || res.Attempts[3].Index != 4 {
		t.Errorf("unexpected winning attempt: %+v", res.Attempts[3])
	}
}

func TestFetchPage_ExhaustionReturnsFallbackResponse(t *testing.T) {
	gs := &getServer{failAll: true}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	res, err := New(srv.URL, WithFallbackLimit(500)).FetchPage(context.Background(), "c1", 10, 30)
	if err != nil {
		t.Fatalf("exhaustion must not return an error, got %v", err)
	}
	if res == nil || res.Response == nil {
		t.Fatal("expected a response object")
	}
	if !res.Fallback || res.Variant != "fallback" {
		t.Errorf("expected fallback result, got variant=%s fallback=%v", res.Variant, res.Fallback)
	}
	if len(gs.bodies) != 7 {
		t.Fatalf("expected 6 variants + 1 fallback, got %d requests", len(gs.bodies))
	}
	last := gs.bodies[6]
	if last["limit"].(float64) != 500 || last["offset"].(float64) != 0 {
		t.Errorf("fallback body = %v", last)
	}

	var fe *FetchError
	if !errors.As(res.Err(), &fe) {
		t.Fatalf("expected FetchError, got %v", res.Err())
	}
	if fe.Status != http.StatusUnprocessableEntity || !strings.Contains(fe.Body, "bad include") {
		t.Errorf("unexpected fetch error: %+v", fe)
	}
	if len(fe.Attempts) != 7 || fe.Attempts[6].Index != 0 {
		t.Errorf("fetch error should carry every attempt, got %d", len(fe.Attempts))
	}
}

func TestFetchPage_NoVariantCaching(t *testing.T) {
	gs := &getServer{failFirst: 2}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.FetchPage(context.Background(), "c1", 10, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FetchPage(context.Background(), "c1", 10, 10); err != nil {
		t.Fatal(err)
	}
	// First call: 3 requests. Second call restarts at variant 1, which now succeeds.
	if len(gs.bodies) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(gs.bodies))
	}
	if _, ok := gs.bodies[3]["include"]; !ok {
		t.Error("second fetch should restart from the full variant")
	}
}

func TestFetchPage_TransportFailureBecomesStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res, err := New(url).FetchPage(context.Background(), "c1", 10, 0)
	if err != nil {
		t.Fatalf("transport failures should not be returned as errors: %v", err)
	}
	if res.Response.StatusCode != 0 || res.OK() {
		t.Errorf("expected status 0, got %d", res.Response.StatusCode)
	}
	if len(res.Attempts) != 7 {
		t.Errorf("expected 7 attempts, got %d", len(res.Attempts))
	}
}

func TestFetchPage_CancelledContext(t *testing.T) {
	gs := &getServer{}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).FetchPage(ctx, "c1", 10, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(gs.bodies) != 0 {
		t.Errorf("no request should be issued, got %d", len(gs.bodies))
	}
}

func TestFetchPage_EmptyCollectionID(t *testing.T) {
	_, err := New("http://127.0.0.1:1").FetchPage(context.Background(), "", 10, 0)
	if !errors.Is(err, ErrEmptyCollectionID) {
		t.Errorf("expected ErrEmptyCollectionID, got %v", err)
	}
}

func TestTokenHeaders(t *testing.T) {
	gs := &getServer{}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	if _, err := New(srv.URL, WithToken("secret")).FetchPage(context.Background(), "c1", 10, 0); err != nil {
		t.Fatal(err)
	}
	if gs.headers.Get("X-Chroma-Token") != "secret" {
		t.Error("missing X-Chroma-Token header")
	}
	if gs.headers.Get("Authorization") != "Bearer secret" {
		t.Error("missing bearer header")
	}
}

func TestResolveCount(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *int
	}{
		{"json integer", 200, "237", intPtr(237)},
		{"plain text with newline", 200, "42\n", intPtr(42)},
		{"quoted integer", 200, `"17"`, intPtr(17)},
		{"unparseable", 200, "not a number", intPtr(0)},
		{"object body", 200, `{"count":5}`, intPtr(0)},
		{"trailing garbage", 200, "12abc", intPtr(0)},
		{"two values", 200, "12 13", intPtr(0)},
		{"negative", 200, "-5", intPtr(0)},
		{"negative text", 200, `"-5"`, intPtr(0)},
		{"server error", 500, "oops", nil},
		{"not found", 404, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/collections/c1/count" {
					http.NotFound(w, r)
					return
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got := New(srv.URL).ResolveCount(context.Background(), "c1")
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expected nil, got %d", *got)
			case tt.want != nil && got == nil:
				t.Errorf("expected %d, got nil", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("expected %d, got %d", *tt.want, *got)
			}
		})
	}
}

func TestResolveCount_NetworkFailureAndEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if got := New(url).ResolveCount(context.Background(), "c1"); got != nil {
		t.Errorf("expected nil on network failure, got %d", *got)
	}
	if got := New(url).ResolveCount(context.Background(), ""); got != nil {
		t.Error("expected nil for empty id")
	}
}

func TestListCollections_BodyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"array", `[{"name":"a","id":"1"},{"name":"b","id":"2"}]`, []string{"1", "2"}},
		{"wrapped", `{"collections":[{"name":"a","id":"1"}]}`, []string{"1"}},
		{"drops missing id", `[{"name":"a"},{"name":"b","id":"2"}]`, []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cols, err := New(srv.URL).ListCollections(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cols) != len(tt.want) {
				t.Fatalf("got %d collections, want %d", len(cols), len(tt.want))
			}
			for i, id := range tt.want {
				if cols[i].ID != id {
					t.Errorf("cols[%d].ID = %s, want %s", i, cols[i].ID, id)
				}
			}
		})
	}
}

func TestListCollections_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).ListCollections(context.Background()); err == nil {
		t.Error("expected an error for a 500 response")
	}
}

func TestHeartbeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/heartbeat" {
			w.Write([]byte(`{"nanosecond heartbeat":1}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if err := New(srv.URL + "/api/v1/").Heartbeat(context.Background()); err != nil {
		t.Errorf("heartbeat failed: %v", err)
	}
	if err := New(srv.URL).Heartbeat(context.Background()); err == nil {
		t.Error("expected heartbeat error without the base path")
	}
}

type countingObserver struct {
	mu       sync.Mutex
	attempts int
	counts   []string
	fetches  int
}

func (o *countingObserver) ObserveAttempt(string, int, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
}

func (o *countingObserver) ObserveCount(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = append(o.counts, outcome)
}

func (o *countingObserver) ObservePageFetch(time.Duration, bool, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches++
}

func TestObserver(t *testing.T) {
	gs := &getServer{failFirst: 1}
	srv := httptest.NewServer(gs.handler(t))
	defer srv.Close()

	obs := &countingObserver{}
	c := New(srv.URL, WithObserver(obs))
	if _, err := c.FetchPage(context.Background(), "c1", 10, 0); err != nil {
		t.Fatal(err)
	}
	c.ResolveCount(context.Background(), "c1")

	if obs.attempts != 2 || obs.fetches != 1 {
		t.Errorf("attempts=%d fetches=%d, want 2 and 1", obs.attempts, obs.fetches)
	}
	if len(obs.counts) != 1 || obs.counts[0] != CountUnavailable {
		t.Errorf("counts = %v", obs.counts)
	}
}

func intPtr(n int) *int { return &n }
