package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/linkhoard/linkhoard/client"
	"github.com/linkhoard/linkhoard/config"
)

type recordedCall struct {
	method  string
	url     string
	headers map[string]string
}

type fakeTransport struct {
	mu     sync.Mutex
	status int
	body   []byte
	calls  []recordedCall
}

func (f *fakeTransport) Send(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{method: method, url: url, headers: headers})
	return &client.Response{Status: f.status, Body: f.body}, nil
}

func (f *fakeTransport) lastCall() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.BaseURL = "https://hoard.example.com"
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func TestNew_AssemblesComponents(t *testing.T) {
	ft := &fakeTransport{status: 200, body: []byte(`{}`)}
	a, err := New(context.Background(), testConfig(), WithTransport(ft))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Client == nil || a.Bookmarks == nil || a.Tools == nil {
		t.Fatal("New() left components unset")
	}
	if got := len(a.Tools.Tools()); got != 6 {
		t.Errorf("tool catalog size = %d, want 6", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = ""
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("New() with empty base URL succeeded")
	}
}

func TestLogin_AttachesTokenToRequests(t *testing.T) {
	ft := &fakeTransport{status: 200, body: []byte(`{"token":"tok-1","user":"agent"}`)}
	cfg := testConfig()
	cfg.Auth.Identity = "agent"
	cfg.Auth.Secret = "hunter2"

	a, err := New(context.Background(), cfg, WithTransport(ft))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	user, err := a.Login(context.Background())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user != "agent" {
		t.Errorf("Login() user = %q, want %q", user, "agent")
	}

	ft.body = []byte(`{"items":[],"total":0}`)
	if _, err := a.Tools.Dispatch(context.Background(), "bookmarks_list", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	call := ft.lastCall()
	if call.headers["Authorization"] != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want bearer token from login", call.headers["Authorization"])
	}
}

func TestLogin_NoIdentityConfigured(t *testing.T) {
	a, err := New(context.Background(), testConfig(), WithTransport(&fakeTransport{status: 200}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	if _, err := a.Login(context.Background()); err == nil {
		t.Fatal("Login() without identity succeeded")
	}
}

func TestNew_PreIssuedToken(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Token = "pre-issued"

	a, err := New(context.Background(), cfg, WithTransport(&fakeTransport{status: 200, body: []byte(`{}`)}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	if got := a.Tokens().Token(); got != "pre-issued" {
		t.Errorf("Token() = %q, want pre-issued credential", got)
	}
}

func TestHealthCheck(t *testing.T) {
	ft := &fakeTransport{status: 200}
	a, err := New(context.Background(), testConfig(), WithTransport(ft))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	if !a.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = false for healthy upstream")
	}

	call := ft.lastCall()
	if call.url != "https://hoard.example.com/health" {
		t.Errorf("health probe URL = %q", call.url)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.SweepInterval = time.Minute

	a, err := New(context.Background(), cfg, WithTransport(&fakeTransport{status: 200}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
