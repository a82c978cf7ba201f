package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/linkhoard/linkhoard/client"
	"github.com/linkhoard/linkhoard/observe"
	"github.com/linkhoard/linkhoard/ratelimit"
)

// Credential is the live access token and its provenance.
type Credential struct {
	Token      string
	ObtainedAt time.Time
	Expiry     time.Time
}

// Config configures a Store.
type Config struct {
	// BaseURL is the upstream service root. Required.
	BaseURL string

	// Transport dispatches the login and refresh calls. Required.
	// These calls are single attempts: the store applies no retry policy
	// of its own.
	Transport client.Transport

	// LoginPath is the form-encoded login endpoint.
	// Default: "/api/auth/login"
	LoginPath string

	// RefreshPath is the token refresh endpoint.
	// Default: "/api/auth/refresh"
	RefreshPath string

	// Timeout bounds each login/refresh attempt.
	// Default: 15 seconds
	Timeout time.Duration

	// RefreshLead is how far ahead of expiry the scheduled refresh fires
	// when ScheduleRefresh is called with a non-positive lead.
	// Default: 1 minute
	RefreshLead time.Duration

	// FallbackTTL is the assumed token lifetime when the token carries
	// no parseable expiry.
	// Default: 1 hour
	FallbackTTL time.Duration

	// LoginLimit and LoginWindow bound authentication attempts per
	// identity, blunting repeated-failure probing.
	// Defaults: 5 attempts per 15 minutes
	LoginLimit  int
	LoginWindow time.Duration

	// Logger receives lifecycle diagnostics. Default: no-op.
	Logger observe.Logger

	// Now supplies the current time. Default: time.Now
	Now func() time.Time
}

// Store owns the current credential and its scheduled refresh.
//
// State machine: Unauthenticated → (authenticate or refresh success) →
// Authenticated → (refresh failure, explicit clear) → Unauthenticated.
// Authenticated self-transitions on each successful scheduled refresh.
type Store struct {
	baseURL      string
	transport    client.Transport
	loginPath    string
	refreshPath  string
	timeout      time.Duration
	refreshLead  time.Duration
	fallbackTTL  time.Duration
	logger       observe.Logger
	now          func() time.Time
	loginLimiter *ratelimit.Limiter

	mu           sync.Mutex
	cred         *Credential
	lead         time.Duration // non-zero once ScheduleRefresh has armed the store
	refreshTimer *time.Timer
	closed       bool
}

// NewStore creates a Store with the given configuration.
func NewStore(cfg Config) (*Store, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("token: base URL is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("token: transport is required")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/api/auth/login"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/api/auth/refresh"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RefreshLead <= 0 {
		cfg.RefreshLead = time.Minute
	}
	if cfg.FallbackTTL <= 0 {
		cfg.FallbackTTL = time.Hour
	}
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = 5
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Store{
		baseURL:     cfg.BaseURL,
		transport:   cfg.Transport,
		loginPath:   cfg.LoginPath,
		refreshPath: cfg.RefreshPath,
		timeout:     cfg.Timeout,
		refreshLead: cfg.RefreshLead,
		fallbackTTL: cfg.FallbackTTL,
		logger:      cfg.Logger,
		now:         cfg.Now,
		loginLimiter: ratelimit.New(ratelimit.Config{
			Limit:  cfg.LoginLimit,
			Window: cfg.LoginWindow,
			Now:    cfg.Now,
		}),
	}, nil
}

type loginResponse struct {
	Token string `json:"token"`
	User  string `json:"user"`
}

// Authenticate exchanges identity/secret for a token via the form-encoded
// login endpoint, stores the resulting credential, and returns the
// associated user identity.
func (s *Store) Authenticate(ctx context.Context, identity, secret string) (string, error) {
	op := "auth.login"

	if !s.loginLimiter.Admit("login:" + identity) {
		info := s.loginLimiter.Info("login:" + identity)
		s.logger.Warn(ctx, "login attempt rejected by admission control",
			observe.F("identity", identity),
			observe.F("reset", info.Reset),
		)
		return "", &client.Error{
			Kind:     client.KindRateLimited,
			Op:       op,
			Message:  "too many authentication attempts for this identity",
			RateInfo: &info,
		}
	}

	form := url.Values{}
	form.Set("username", identity)
	form.Set("password", secret)

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	}

	resp, err := s.transport.Send(ctx, http.MethodPost, s.baseURL+s.loginPath, headers, []byte(form.Encode()), s.timeout)
	if err != nil {
		return "", client.Classify(op, 0, err)
	}
	if resp.Status >= 400 && resp.Status <= 499 {
		// Any login rejection reads as an authentication failure,
		// whatever shape the upstream gives it.
		return "", &client.Error{
			Kind:    client.KindAuthentication,
			Status:  resp.Status,
			Op:      op,
			Message: "login rejected by upstream",
		}
	}
	if resp.Status >= 500 {
		return "", client.Classify(op, resp.Status, nil)
	}

	var body loginResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Token == "" {
		return "", &client.Error{
			Kind:    client.KindUnknown,
			Status:  resp.Status,
			Op:      op,
			Message: "login response carried no usable token",
			Err:     err,
		}
	}

	s.SetToken(body.Token)
	s.logger.Info(ctx, "authenticated", observe.F("identity", identity))

	if body.User != "" {
		return body.User, nil
	}
	return identity, nil
}

// Token returns the live token, or empty when unauthenticated.
// Implements client.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.Token
}

// Credential returns a copy of the live credential, if any.
func (s *Store) Credential() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// SetToken atomically replaces the live credential. When refresh is
// armed, the timer is rescheduled against the new expiry.
func (s *Store) SetToken(token string) {
	now := s.now()
	cred := &Credential{
		Token:      token,
		ObtainedAt: now,
		Expiry:     expiryOf(token, now, s.fallbackTTL),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	if s.lead > 0 {
		s.armLocked()
	}
}

// ClearToken removes the live credential and cancels any scheduled refresh.
func (s *Store) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.stopTimerLocked()
}

// IsAuthenticated reports whether a live credential is present. It makes
// no wall-clock expiry judgment beyond what refresh scheduling enforces.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred != nil
}

// ScheduleRefresh arms a one-shot refresh that fires lead ahead of the
// credential's expected expiry. A non-positive lead uses the configured
// default. Arming with no live credential defers until the next SetToken.
func (s *Store) ScheduleRefresh(lead time.Duration) {
	if lead <= 0 {
		lead = s.refreshLead
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lead = lead
	if s.cred != nil {
		s.armLocked()
	}
}

// Close cancels any scheduled refresh. The store is unusable for
// scheduling afterwards; the credential itself is left in place.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}

// armLocked (re)schedules the one-shot refresh timer for the current
// credential. Callers hold s.mu.
func (s *Store) armLocked() {
	if s.closed {
		return
	}
	s.stopTimerLocked()

	remaining := s.cred.Expiry.Sub(s.now())
	delay := remaining - s.lead
	if delay <= 0 {
		// Short-lived token: fire at half the remaining lifetime
		// rather than immediately, so a refresh storm can't form.
		delay = remaining / 2
	}
	if delay < time.Second {
		delay = time.Second
	}

	s.refreshTimer = time.AfterFunc(delay, s.refreshNow)
}

func (s *Store) stopTimerLocked() {
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
}

// refreshNow performs the scheduled refresh. On success the new
// credential replaces the old and the next refresh is armed via
// SetToken; on failure the credential is cleared and nothing re-arms.
func (s *Store) refreshNow() {
	s.mu.Lock()
	if s.closed || s.cred == nil {
		s.mu.Unlock()
		return
	}
	current := s.cred.Token
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	token, err := s.refresh(ctx, current)
	if err != nil {
		s.logger.Warn(ctx, "scheduled refresh failed, clearing credential",
			observe.F("error", err.Error()),
		)
		s.ClearToken()
		return
	}

	s.SetToken(token)
	s.logger.Debug(ctx, "credential refreshed")
}

// refresh performs one refresh call with the current token attached.
func (s *Store) refresh(ctx context.Context, current string) (string, error) {
	op := "auth.refresh"

	headers := map[string]string{
		"Authorization": "Bearer " + current,
		"Accept":        "application/json",
	}

	resp, err := s.transport.Send(ctx, http.MethodPost, s.baseURL+s.refreshPath, headers, nil, s.timeout)
	if err != nil {
		return "", client.Classify(op, 0, err)
	}
	if resp.Status >= 400 {
		return "", client.Classify(op, resp.Status, nil)
	}

	var body loginResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Token == "" {
		return "", &client.Error{
			Kind:    client.KindUnknown,
			Status:  resp.Status,
			Op:      op,
			Message: "refresh response carried no usable token",
			Err:     err,
		}
	}
	return body.Token, nil
}
