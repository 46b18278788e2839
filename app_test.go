package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/peternagy/chromapal/internal/config"
	"github.com/peternagy/chromapal/internal/core"
)

// newChromaStub serves collection "c1" with docs documents under /api/v1.
// When token is set every request must carry it.
func newChromaStub(t *testing.T, docs int, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	})
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"collections":[{"name":"docs","id":"c1"}]}`))
	})
	mux.HandleFunc("/api/v1/collections/c1/count", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%d", docs)
	})
	mux.HandleFunc("/api/v1/collections/c1/get", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		ids := []string{}
		docsOut := []string{}
		metas := []map[string]interface{}{}
		for i := body.Offset; i < docs && i < body.Offset+body.Limit; i++ {
			ids = append(ids, fmt.Sprintf("id-%02d", i))
			docsOut = append(docsOut, fmt.Sprintf("text %d", i))
			metas = append(metas, map[string]interface{}{"n": i})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ids": ids, "documents": docsOut, "metadatas": metas,
		})
	})

	var handler http.Handler = mux
	if token != "" {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Chroma-Token") != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			mux.ServeHTTP(w, r)
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	keyring.MockInit()
	app := NewApp()
	app.state.DisableEvents = true
	settings := config.Default()
	settings.Viewer.PageSize = 10
	app.initServices(t.TempDir(), settings, zap.NewNop())
	return app
}

func profileFor(t *testing.T, srv *httptest.Server) ConnectionProfile {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return ConnectionProfile{Protocol: "http", Host: host, Port: port, BasePath: "/api/v1", TimeoutMs: 2000}
}

// =============================================================================
// Profile Tests
// =============================================================================

func TestNewApp_LoadsDefaultProfile(t *testing.T) {
	app := newTestApp(t)
	p := app.GetProfile()
	if p.Host != "localhost" || p.Port != 8003 || p.Protocol != "http" {
		t.Errorf("unexpected default profile %+v", p)
	}
}

func TestSaveProfile_InvalidKeepsPrevious(t *testing.T) {
	app := newTestApp(t)
	before := app.GetProfile()

	_, err := app.SaveProfile(ConnectionProfile{Protocol: "http", Host: "", Port: 8000})
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if app.GetProfile() != before {
		t.Errorf("profile changed after failed save: %+v", app.GetProfile())
	}
}

func TestSaveProfile_PersistsAcrossRestart(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()

	app := NewApp()
	app.state.DisableEvents = true
	app.initServices(dir, config.Default(), zap.NewNop())
	want := ConnectionProfile{Protocol: "https", Host: "chroma.internal", Port: 443, BasePath: "/api/v1", TimeoutMs: 3000}
	if _, err := app.SaveProfile(want); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	restarted := NewApp()
	restarted.state.DisableEvents = true
	restarted.initServices(dir, config.Default(), zap.NewNop())
	if got := restarted.GetProfile(); got != want {
		t.Errorf("restored profile = %+v, want %+v", got, want)
	}
}

// =============================================================================
// Browse Flow Tests
// =============================================================================

func TestApp_ConnectAndBrowse(t *testing.T) {
	srv := newChromaStub(t, 23, "")
	app := newTestApp(t)
	if _, err := app.SaveProfile(profileFor(t, srv)); err != nil {
		t.Fatal(err)
	}

	cols, err := app.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(cols) != 1 || cols[0].ID != "c1" {
		t.Fatalf("collections = %+v", cols)
	}

	vm, err := app.SelectCollection("c1")
	if err != nil {
		t.Fatalf("SelectCollection: %v", err)
	}
	if len(vm.Rows) != 10 || vm.State.TotalPages != 3 {
		t.Errorf("page 1: rows=%d totalPages=%d", len(vm.Rows), vm.State.TotalPages)
	}
	if vm.ItemsInfo.Text != "Showing 1-10 of 23 items" {
		t.Errorf("items info = %q", vm.ItemsInfo.Text)
	}

	vm, err = app.LastPage()
	if err != nil {
		t.Fatalf("LastPage: %v", err)
	}
	if vm.State.CurrentPage != 3 || len(vm.Rows) != 3 || vm.Rows[0].ID != "id-20" {
		t.Errorf("last page: page=%d rows=%d", vm.State.CurrentPage, len(vm.Rows))
	}
	if vm.Buttons.Next || !vm.Buttons.Prev {
		t.Errorf("buttons = %+v", vm.Buttons)
	}

	vm, err = app.Search("text 21")
	if err != nil {
		t.Fatal(err)
	}
	if !vm.Filtered || len(vm.Rows) != 1 {
		t.Errorf("search: filtered=%v rows=%d", vm.Filtered, len(vm.Rows))
	}
	vm = app.ClearSearch()
	if vm.Filtered || len(vm.Rows) != 3 {
		t.Errorf("clear: filtered=%v rows=%d", vm.Filtered, len(vm.Rows))
	}

	raw, err := app.GetRawJSON()
	if err != nil || !strings.Contains(raw, "id-22") {
		t.Errorf("raw json = %q, %v", raw, err)
	}

	m := app.GetMetrics()
	if !m.Connected || m.PageFetches < 2 || m.Attempts["full/2xx"] < 2 {
		t.Errorf("metrics = %+v", m)
	}
	if m.CountLookups["ok"] < 1 {
		t.Errorf("count lookups = %+v", m.CountLookups)
	}

	if after := app.ForceGC(); after.NumGC <= m.NumGC {
		t.Errorf("ForceGC: NumGC %d -> %d", m.NumGC, after.NumGC)
	}

	app.Disconnect()
	if vm := app.GetViewModel(); vm.Collection != nil || len(vm.Rows) != 0 {
		t.Errorf("view should be cleared after disconnect: %+v", vm)
	}
	if app.GetConnectionStatus().Connected {
		t.Error("should be disconnected")
	}
	if _, err := app.GoToPage(2); err == nil {
		t.Error("paging without a collection should fail")
	}
}

func TestApp_ChangePageSize(t *testing.T) {
	srv := newChromaStub(t, 23, "")
	app := newTestApp(t)
	app.SaveProfile(profileFor(t, srv))
	if _, err := app.Connect(); err != nil {
		t.Fatal(err)
	}
	if _, err := app.SelectCollection("c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := app.NextPage(); err != nil {
		t.Fatal(err)
	}

	vm, err := app.ChangePageSize(25)
	if err != nil {
		t.Fatalf("ChangePageSize: %v", err)
	}
	if vm.State.CurrentPage != 1 || vm.State.TotalPages != 1 || len(vm.Rows) != 23 {
		t.Errorf("state = %+v rows=%d", vm.State, len(vm.Rows))
	}

	sizes := app.GetPageSizes()
	if len(sizes) == 0 || sizes[0] != 10 {
		t.Errorf("page sizes = %v", sizes)
	}
}

func TestApp_SaveProfileWithNewBaseURLDisconnects(t *testing.T) {
	srv := newChromaStub(t, 5, "")
	app := newTestApp(t)
	app.SaveProfile(profileFor(t, srv))
	if _, err := app.Connect(); err != nil {
		t.Fatal(err)
	}

	other := profileFor(t, srv)
	other.BasePath = "/api/v2"
	if _, err := app.SaveProfile(other); err != nil {
		t.Fatal(err)
	}
	if app.state.HasClient() {
		t.Error("changing the base URL should drop the connection")
	}
}

func TestApp_AuthToken(t *testing.T) {
	srv := newChromaStub(t, 5, "tok")
	app := newTestApp(t)
	app.SaveProfile(profileFor(t, srv))

	if app.HasAuthToken() {
		t.Error("no token expected initially")
	}
	if _, err := app.Connect(); err == nil {
		t.Fatal("expected unauthorized connect to fail")
	}
	if status := app.GetConnectionStatus(); status.Connected || status.Error == "" {
		t.Errorf("status = %+v", status)
	}

	if err := app.SetAuthToken("tok"); err != nil {
		t.Fatal(err)
	}
	if !app.HasAuthToken() {
		t.Error("token should be stored")
	}
	if err := app.TestConnection(app.GetProfile()); err != nil {
		t.Errorf("TestConnection with token: %v", err)
	}
	if _, err := app.Connect(); err != nil {
		t.Errorf("Connect with token: %v", err)
	}
}
