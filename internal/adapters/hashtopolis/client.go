package hashtopolis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/hashrelay/hashrelay/internal/core/ports"
)

// Config holds the coordinator connection settings.
type Config struct {
	ServerURL   string
	Username    string
	Password    string
	MaxRetries  int           // attempt budget per logical call, default 3
	BackoffBase time.Duration // first retry delay, doubles per attempt, default 1s
	Timeout     time.Duration // per-request HTTP timeout, default 30s
}

// Client talks to a Hashtopolis-style coordinator over its token-in-body
// REST contract: POST /api/login returns a bearer token, every other call
// goes to /api/<endpoint> with an Authorization header. The client owns the
// authentication lifecycle: it logs in lazily, retries transient failures
// with exponential backoff, and re-authenticates transparently on 401 so
// callers only ever see success or a terminal error.
type Client struct {
	logger      *slog.Logger
	baseURL     string
	username    string
	password    string
	maxRetries  int
	backoffBase time.Duration
	httpClient  *http.Client
	traces      ports.TraceStore // optional call telemetry sink

	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.RWMutex
	token      string
	loginGroup singleflight.Group
}

var _ ports.Coordinator = (*Client)(nil)

func NewClient(logger *slog.Logger, cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		logger:      logger,
		baseURL:     trimTrailingSlash(cfg.ServerURL),
		username:    cfg.Username,
		password:    cfg.Password,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// SetTraceStore attaches a telemetry sink recording one row per logical call.
func (c *Client) SetTraceStore(ts ports.TraceStore) { c.traces = ts }

// SetSleep replaces the backoff delay. Test hook.
func (c *Client) SetSleep(fn func(ctx context.Context, d time.Duration) error) { c.sleep = fn }

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Error   string `json:"error"`
}

// Login acquires a session token. Safe to call concurrently: callers
// coalesce behind a single in-flight network login per invalidation cycle.
func (c *Client) Login(ctx context.Context) error {
	_, err, _ := c.loginGroup.Do("login", func() (any, error) {
		return nil, c.doLogin(ctx)
	})
	return err
}

func (c *Client) doLogin(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{User: c.username, Pass: c.password})
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			if err := c.backoff(ctx, attempt-1); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrAuth, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build login request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("login attempt failed", "attempt", attempt, "error", err)
			continue
		}

		var lr loginResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&lr)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			c.logger.Warn("login attempt failed", "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		if decodeErr != nil || lr.Token == "" {
			lastErr = fmt.Errorf("login response missing token (%s)", lr.Error)
			c.logger.Warn("login response missing token", "attempt", attempt, "coordinator_error", lr.Error)
			continue
		}

		c.mu.Lock()
		c.token = lr.Token
		c.mu.Unlock()
		c.logger.Info("logged in to coordinator")
		return nil
	}

	return fmt.Errorf("%w after %d attempts: %v", domain.ErrAuth, c.maxRetries, lastErr)
}

func (c *Client) backoff(ctx context.Context, retry int) error {
	delay := c.backoffBase * (1 << (retry - 1))
	return c.sleep(ctx, delay)
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// apiEnvelope is the success/error wrapper every /api response carries.
type apiEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// Request issues one authenticated call. A 401 invalidates the token and
// re-authenticates before a retry that counts against this request's attempt
// budget (not login's own). Other non-2xx responses and transport errors
// back off exponentially. On exhaustion the caller gets a RemoteRequestError
// carrying the endpoint, method and last observed failure.
func (c *Client) Request(ctx context.Context, method, endpoint string, payload any, params url.Values) (json.RawMessage, error) {
	start := time.Now()
	raw, attempts, lastStatus, err := c.doRequest(ctx, method, endpoint, payload, params)
	c.recordTrace(method, endpoint, start, attempts, lastStatus, err)
	return raw, err
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload any, params url.Values) (json.RawMessage, int, int, error) {
	if c.currentToken() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, 0, 0, err
		}
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("marshal payload for %s: %w", endpoint, err)
		}
		body = b
	}

	callURL := c.baseURL + "/api/" + endpoint
	if len(params) > 0 {
		callURL += "?" + params.Encode()
	}

	var lastErr error
	lastStatus := 0
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, callURL, reader)
		if err != nil {
			return nil, attempt, lastStatus, fmt.Errorf("build request for %s: %w", endpoint, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.currentToken())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("coordinator request failed", "method", method, "endpoint", endpoint, "attempt", attempt, "error", err)
			if attempt < c.maxRetries {
				if serr := c.backoff(ctx, attempt); serr != nil {
					break
				}
			}
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastStatus = resp.StatusCode
			lastErr = nil
			c.logger.Info("token expired or unauthorized, re-authenticating", "endpoint", endpoint)
			c.invalidateToken()
			if err := c.Login(ctx); err != nil {
				return nil, attempt, lastStatus, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastStatus = resp.StatusCode
			lastErr = nil
			c.logger.Warn("coordinator request rejected", "method", method, "endpoint", endpoint, "attempt", attempt, "status", resp.StatusCode)
			if attempt < c.maxRetries {
				if serr := c.backoff(ctx, attempt); serr != nil {
					break
				}
			}
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		var env apiEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil && !*env.Success {
			c.logger.Warn("coordinator returned application error", "method", method, "endpoint", endpoint, "coordinator_error", env.Error)
		}
		return raw, attempt, resp.StatusCode, nil
	}

	return nil, c.maxRetries, lastStatus, &domain.RemoteRequestError{
		Method:     method,
		Endpoint:   endpoint,
		LastStatus: lastStatus,
		Err:        lastErr,
	}
}

func (c *Client) recordTrace(method, endpoint string, start time.Time, attempts, httpStatus int, callErr error) {
	if c.traces == nil {
		return
	}
	trace := domain.CallTrace{
		ID:         uuid.New().String(),
		Method:     method,
		Endpoint:   endpoint,
		Status:     domain.CallStatusOK,
		HTTPStatus: httpStatus,
		Attempts:   attempts,
		StartTime:  start,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if callErr != nil {
		trace.Status = domain.CallStatusError
		trace.Error = callErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.traces.SaveCallTrace(ctx, trace); err != nil {
		c.logger.Warn("failed to record call trace", "endpoint", endpoint, "error", err)
	}
}

// Close releases idle connections. Idempotent, safe before first use.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
