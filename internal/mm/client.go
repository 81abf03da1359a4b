// Package mm is the server client: an authenticated, synchronous,
// non-retrying HTTP client for a Mattermost-style REST API. One Client
// is in flight on at most one request at a time — there is no implicit
// concurrency (spec §5).
package mm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/worldline-go/klient"

	"github.com/rakunlabs/mmarchive/internal/config"
)

// Client is stateful: it holds the bearer token and a context map used
// to substitute path placeholders ({userId}, {teamId}, {channelId}) so
// callers can build requests like "users/{userId}/teams/{teamId}/channels"
// without manually interpolating every call.
type Client struct {
	http   *klient.Client
	logger *slog.Logger
	delay  time.Duration

	mu      sync.RWMutex
	token   string
	pathCtx map[string]string
}

// New builds a Client against cfg.ServerURL. It does not log in — call
// Login or SetToken before making authenticated requests.
func New(cfg config.Connection) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("mm: server_url is required")
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v4/"),
		klient.WithLogger(slog.Default()),
		klient.WithDisableRetry(true), // the core never retries; see spec §4.1
	}

	if cfg.Proxy != "" {
		opts = append(opts, klient.WithProxy(cfg.Proxy))
	}

	if cfg.InsecureSkipVerify {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	c, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("mm: build http client: %w", err)
	}

	if cfg.Timeout > 0 {
		c.HTTP.Timeout = cfg.Timeout
	}

	return &Client{
		http:    c,
		logger:  slog.Default(),
		delay:   cfg.ThrottlingLoopDelay,
		pathCtx: make(map[string]string),
	}, nil
}

// SetContext records a path-placeholder value, e.g. SetContext("teamId", id).
func (c *Client) SetContext(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pathCtx[key] = value
}

// Context reads back a previously-set path-placeholder value.
func (c *Client) Context(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pathCtx[key]
}

// SetToken installs a bearer token directly, bypassing Login. Used for
// access-token auth and for restoring a cached token between runs.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
}

// Token returns the currently-held bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

type loginRequest struct {
	LoginId  string `json:"login_id"`
	Password string `json:"password"`
}

// Login authenticates with username/password and stores the bearer
// token extracted from the response's "Token" header. It returns
// ErrAuthFailed, wrapped with the server's status, on any non-200.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{LoginId: username, Password: password})
	if err != nil {
		return fmt.Errorf("mm: build login body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "users/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mm: build login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	var token string

	err = c.http.Do(req, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
		}

		token = resp.Header.Get("Token")
		if token == "" {
			return fmt.Errorf("%w: no Token header in response", ErrAuthFailed)
		}

		// Drain the body so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	})
	if err != nil {
		return err
	}

	c.SetToken(token)
	c.logger.Info("mm: logged in", "username", username)

	return nil
}

// resolvePath substitutes {key} placeholders in path from the client's
// context map. An unresolved placeholder is left as-is; the resulting
// request will simply 404, which is easier to diagnose than a silent
// wrong-channel fetch.
func (c *Client) resolvePath(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.pathCtx {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}

	return path
}

type serverErrorBody struct {
	Message     string `json:"message"`
	DetailError string `json:"detailed_error"`
}

func (c *Client) authHeader(req *http.Request) {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

func buildURL(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}

	return path + "?" + query.Encode()
}

// Get issues an authenticated GET against path (after context
// substitution) with the given query parameters and decodes the JSON
// response body into out. A non-200 response yields an *HttpError.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	resolved := c.resolvePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildURL(resolved, query), nil)
	if err != nil {
		return fmt.Errorf("mm: build request for %s: %w", resolved, err)
	}

	c.authHeader(req)

	return c.http.Do(req, func(resp *http.Response) error {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("mm: read body for %s: %w", resolved, err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.statusError(resolved, resp.StatusCode, body)
		}

		if out == nil {
			return nil
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("mm: decode response for %s: %w", resolved, err)
		}

		return nil
	})
}

func (c *Client) statusError(path string, status int, body []byte) error {
	var se serverErrorBody
	_ = json.Unmarshal(body, &se) // best-effort; a non-JSON body just leaves se zero

	return &HttpError{Status: status, ServerMessage: se.Message, ServerDetail: se.DetailError, Path: path}
}

// GetRaw issues an authenticated GET without JSON decoding, for binary
// bodies (attachments, emoji images, avatars). The caller must close
// the returned body.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) (http.Header, io.ReadCloser, error) {
	resolved := c.resolvePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildURL(resolved, query), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("mm: build request for %s: %w", resolved, err)
	}

	c.authHeader(req)

	resp, err := c.http.HTTP.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("mm: request %s: %w", resolved, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		return nil, nil, c.statusError(resolved, resp.StatusCode, body)
	}

	return resp.Header, resp.Body, nil
}

// Delay sleeps ThrottlingLoopDelay between paginated page requests,
// returning early if ctx is canceled — the one suspension point the
// fetcher's pagination loop yields at besides the HTTP calls themselves.
func (c *Client) Delay(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}

	t := time.NewTimer(c.delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
