package client

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linkhoard/linkhoard/cache"
	"github.com/linkhoard/linkhoard/ratelimit"
)

type fakeResult struct {
	status int
	body   []byte
	err    error
}

// fakeTransport replays scripted results; the last result repeats once
// the script is exhausted.
type fakeTransport struct {
	mu      sync.Mutex
	script  []fakeResult
	calls   int
	lastURL string
	headers map[string]string
	body    []byte
}

func (f *fakeTransport) Send(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	f.lastURL = url
	f.headers = headers
	f.body = body

	r := f.script[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &Response{Status: r.status, Body: r.body}, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticTokens struct {
	token string
}

func (s *staticTokens) Token() string { return s.token }

func newTestClient(t *testing.T, cfg Config, results ...fakeResult) (*Client, *fakeTransport) {
	t.Helper()
	if len(results) == 0 {
		results = []fakeResult{{status: 200, body: []byte(`{}`)}}
	}
	ft := &fakeTransport{script: results}
	cfg.BaseURL = "https://api.test"
	cfg.Transport = ft
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, ft
}

func TestRequest_Success(t *testing.T) {
	c, ft := newTestClient(t, Config{}, fakeResult{status: 200, body: []byte(`{"ok":true}`)})

	data, err := c.Get(context.Background(), "/api/bookmarks", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(data, []byte(`{"ok":true}`)) {
		t.Errorf("Get() = %q", data)
	}
	if ft.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1", ft.callCount())
	}
}

func TestRequest_CachePopulatedOnRead(t *testing.T) {
	cch := cache.New(cache.Config{MaxEntries: 10})
	c, ft := newTestClient(t, Config{Cache: cch}, fakeResult{status: 200, body: []byte(`[1,2]`)})

	ctx := context.Background()
	if _, err := c.Get(ctx, "/api/bookmarks", nil); err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	if _, err := c.Get(ctx, "/api/bookmarks", nil); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}

	if ft.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1 (second read served from cache)", ft.callCount())
	}
}

func TestRequest_MutationsNeverCached(t *testing.T) {
	cch := cache.New(cache.Config{MaxEntries: 10})
	c, ft := newTestClient(t, Config{Cache: cch}, fakeResult{status: 201, body: []byte(`{}`)})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Post(ctx, "/api/bookmarks", map[string]any{"url": "https://go.dev"}); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}

	if ft.callCount() != 3 {
		t.Errorf("transport calls = %d, want 3 (mutations bypass the cache)", ft.callCount())
	}
	if cch.Len() != 0 {
		t.Errorf("cache Len() = %d, want 0", cch.Len())
	}
}

func TestRequest_RetriesServerErrorThenSucceeds(t *testing.T) {
	c, ft := newTestClient(t, Config{MaxRetries: 3},
		fakeResult{status: 503},
		fakeResult{status: 503},
		fakeResult{status: 503},
		fakeResult{status: 200, body: []byte(`"ok"`)},
	)

	start := time.Now()
	data, err := c.Get(context.Background(), "/api/bookmarks", nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Get() error = %v, want success on fourth attempt", err)
	}
	if !bytes.Equal(data, []byte(`"ok"`)) {
		t.Errorf("Get() = %q", data)
	}
	if ft.callCount() != 4 {
		t.Errorf("transport calls = %d, want 4", ft.callCount())
	}
	// Delays approximate base, 2·base, 4·base.
	if minTotal := 7 * time.Millisecond; elapsed < minTotal {
		t.Errorf("elapsed = %v, want >= %v of accumulated backoff", elapsed, minTotal)
	}
}

func TestRequest_ExhaustedRetriesReturnLastError(t *testing.T) {
	c, ft := newTestClient(t, Config{MaxRetries: 2}, fakeResult{status: 503})

	_, err := c.Get(context.Background(), "/api/bookmarks", nil)
	if !IsKind(err, KindServer) {
		t.Fatalf("error = %v, want KindServer", err)
	}
	if ft.callCount() != 3 {
		t.Errorf("transport calls = %d, want 3 (initial + 2 retries)", ft.callCount())
	}
}

func TestRequest_ValidationErrorNotRetried(t *testing.T) {
	c, ft := newTestClient(t, Config{MaxRetries: 3}, fakeResult{status: 404})

	_, err := c.Get(context.Background(), "/api/bookmarks/99", nil)
	if !IsKind(err, KindValidation) {
		t.Fatalf("error = %v, want KindValidation", err)
	}
	if ft.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1 (404 is never retried)", ft.callCount())
	}
}

func TestRequest_Upstream429Retried(t *testing.T) {
	c, ft := newTestClient(t, Config{MaxRetries: 1},
		fakeResult{status: 429},
		fakeResult{status: 200, body: []byte(`{}`)},
	)

	if _, err := c.Get(context.Background(), "/api/bookmarks", nil); err != nil {
		t.Fatalf("Get() error = %v, want success after one 429 retry", err)
	}
	if ft.callCount() != 2 {
		t.Errorf("transport calls = %d, want 2", ft.callCount())
	}
}

func TestRequest_LocalAdmissionRejection(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{Limit: 1, Window: time.Minute})
	c, ft := newTestClient(t, Config{Limiter: lim, MaxRetries: 3})

	ctx := context.Background()
	if _, err := c.Get(ctx, "/api/bookmarks", nil); err != nil {
		t.Fatalf("first Get() error = %v", err)
	}

	_, err := c.Get(ctx, "/api/bookmarks", nil)
	if !IsKind(err, KindRateLimited) {
		t.Fatalf("error = %v, want KindRateLimited", err)
	}

	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatal("error is not *Error")
	}
	if ce.Retryable {
		t.Error("local rejection marked retryable")
	}
	if ce.RateInfo == nil {
		t.Error("local rejection missing limiter info")
	} else if ce.RateInfo.Remaining != 0 {
		t.Errorf("RateInfo.Remaining = %d, want 0", ce.RateInfo.Remaining)
	}

	// The rejected call never reached the transport.
	if ft.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1", ft.callCount())
	}
}

func TestRequest_RateKeySeparatesEndpoints(t *testing.T) {
	lim := ratelimit.New(ratelimit.Config{Limit: 1, Window: time.Minute})
	c, _ := newTestClient(t, Config{Limiter: lim})

	ctx := context.Background()
	if _, err := c.Get(ctx, "/api/bookmarks", nil); err != nil {
		t.Fatalf("Get(bookmarks) error = %v", err)
	}
	if _, err := c.Get(ctx, "/api/tags", nil); err != nil {
		t.Errorf("Get(tags) error = %v, want independent budget per endpoint", err)
	}
}

func TestRequest_AttachesBearerToken(t *testing.T) {
	c, ft := newTestClient(t, Config{Tokens: &staticTokens{token: "tok-123"}})

	if _, err := c.Get(context.Background(), "/api/bookmarks", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got := ft.headers["Authorization"]; got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-123")
	}
}

func TestRequest_NoAuthorizationWithoutToken(t *testing.T) {
	c, ft := newTestClient(t, Config{Tokens: &staticTokens{}})

	if _, err := c.Get(context.Background(), "/api/bookmarks", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if _, ok := ft.headers["Authorization"]; ok {
		t.Error("Authorization header present without a live credential")
	}
}

func TestRequest_QueryEncoding(t *testing.T) {
	c, ft := newTestClient(t, Config{})

	if _, err := c.Get(context.Background(), "/api/bookmarks", map[string]string{"q": "go tools", "limit": "10"}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	want := "https://api.test/api/bookmarks?limit=10&q=go+tools"
	if ft.lastURL != want {
		t.Errorf("url = %q, want %q", ft.lastURL, want)
	}
}

func TestGetJSON(t *testing.T) {
	c, _ := newTestClient(t, Config{}, fakeResult{status: 200, body: []byte(`{"id":7,"url":"https://go.dev"}`)})

	var out struct {
		ID  int    `json:"id"`
		URL string `json:"url"`
	}
	if err := c.GetJSON(context.Background(), "/api/bookmarks/7", nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.ID != 7 || out.URL != "https://go.dev" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestHealthCheck(t *testing.T) {
	c, ft := newTestClient(t, Config{}, fakeResult{status: 200})
	if !c.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = false, want true")
	}
	if ft.lastURL != "https://api.test/health" {
		t.Errorf("probe url = %q", ft.lastURL)
	}

	c, _ = newTestClient(t, Config{}, fakeResult{status: 503})
	if c.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = true for 503, want false")
	}

	c, _ = newTestClient(t, Config{}, fakeResult{err: context.DeadlineExceeded})
	if c.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = true for transport error, want false")
	}
}

func TestRequest_ConcurrentIdenticalReadsCollapse(t *testing.T) {
	cch := cache.New(cache.Config{MaxEntries: 10})
	slow := &slowTransport{delay: 20 * time.Millisecond, body: []byte(`[1]`)}

	c, err := New(Config{BaseURL: "https://api.test", Transport: slow, Cache: cch})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "/api/bookmarks", nil); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := slow.callCount(); n != 1 {
		t.Errorf("transport calls = %d, want 1 (concurrent identical reads share a flight)", n)
	}
}

// slowTransport simulates a pending dispatch so concurrent callers overlap.
type slowTransport struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	body  []byte
}

func (s *slowTransport) Send(ctx context.Context, method, url string, headers map[string]string, body []byte, timeout time.Duration) (*Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	time.Sleep(s.delay)
	return &Response{Status: 200, Body: s.body}, nil
}

func (s *slowTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
