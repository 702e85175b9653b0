// Package api provides the HTTP client for the complaint service.
//
// This package implements:
//   - Connection pooling for HTTP performance
//   - A cookie jar per session (credentials travel only in cookies)
//   - Configurable timeouts
//   - Mapping of transport failures and non-2xx answers onto typed errors
//
// Thread-safety:
//   - Client is safe for concurrent use; the jar is swapped under a lock
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	apperrors "complaintdesk/internal/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	SignupPath string
	LoginPath  string
	Timeout    time.Duration
	MaxConns   int
	Logger     zerolog.Logger
}

// Client talks to the complaint service on behalf of one session.
//
// Fields:
//   - baseURL: Service root, every path is resolved against it
//   - signupPath, loginPath: Auth endpoints (configurable, the rest are fixed)
//   - http: Pooled client whose jar holds the session and role cookies
type Client struct {
	baseURL    *url.URL
	signupPath string
	loginPath  string
	timeout    time.Duration
	maxConns   int
	log        zerolog.Logger

	mu   sync.RWMutex
	http *http.Client
}

// New creates a Client with an empty cookie jar.
//
// Parameters:
//   - opts: Base URL, auth paths, timeout and pool size
//
// Returns:
//   - *Client: Ready-to-use client
//   - error: If the base URL does not parse
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if opts.SignupPath == "" {
		opts.SignupPath = "/signup"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 100
	}

	return &Client{
		baseURL:    base,
		signupPath: opts.SignupPath,
		loginPath:  opts.LoginPath,
		timeout:    opts.Timeout,
		maxConns:   opts.MaxConns,
		log:        opts.Logger,
		http:       NewHTTPClient(opts.Timeout, opts.MaxConns),
	}, nil
}

// NewHTTPClient creates a new HTTP client with connection pooling and a
// fresh cookie jar.
//
// Connection pool configuration:
//   - MaxIdleConns: maxConns idle connections across all hosts
//   - MaxIdleConnsPerHost: 10, so one host cannot monopolize the pool
//   - IdleConnTimeout: 90 seconds
//
// Parameters:
//   - timeout: Maximum time for a complete request (including reading response)
//   - maxConns: Size of the idle connection pool
//
// Returns:
//   - *http.Client: Configured HTTP client
func NewHTTPClient(timeout time.Duration, maxConns int) *http.Client {
	// cookiejar.New only fails on a bad PublicSuffixList, and we pass none.
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxConns,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
			DisableCompression:  false,
			ForceAttemptHTTP2:   true,
		},
	}
}

// ResetSession drops every cookie by replacing the HTTP client.
//
// This is the last recovery step when re-login keeps failing: a stale or
// corrupted session cookie can make the server reject fresh credentials.
func (c *Client) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.http.CloseIdleConnections()
	c.http = NewHTTPClient(c.timeout, c.maxConns)
	c.log.Info().Msg("HTTP session reset")
}

// Cookies returns the cookies the jar would send to the service.
func (c *Client) Cookies() []*http.Cookie {
	return c.client().Jar.Cookies(c.baseURL)
}

// SetCookies restores previously saved cookies into the jar.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.client().Jar.SetCookies(c.baseURL, cookies)
}

// RoleHint returns the value of the readable "role" cookie, or "" if unset.
//
// The hint only chooses which dashboard to open. The server enforces the
// real role and answers 401/403 when the hint is wrong.
func (c *Client) RoleHint() string {
	for _, ck := range c.Cookies() {
		if ck.Name == "role" {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http
}

// do sends one JSON request and decodes the JSON answer into out.
//
// Flow:
//  1. Encode body (if any) as JSON
//  2. Send with a fresh X-Request-ID
//  3. Map transport errors to RequestError with status 0
//  4. Map 401/403 to RequestError wrapping UnauthorizedError
//  5. Map any other non-2xx to RequestError
//  6. Decode a non-empty body into out (if out is non-nil); a *[]byte
//     receives the raw body
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewRequestError(method, path, 0, "failed to encode body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return apperrors.NewRequestError(method, path, 0, "failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.client().Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("request failed")
		return apperrors.NewRequestError(method, path, 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewRequestError(method, path, resp.StatusCode, "failed to read response", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("request completed")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := errorMessage(data)
		return apperrors.NewRequestError(method, path, resp.StatusCode, "", apperrors.NewUnauthorizedError(resp.StatusCode, msg))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return apperrors.NewRequestError(method, path, resp.StatusCode, errorMessage(data), nil)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewRequestError(method, path, resp.StatusCode, "failed to decode response", err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body. The
// service answers either {"message": "..."}, {"error": "..."} or plain text.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return truncate(strings.TrimSpace(string(data)), maxErrorMessage)
}

// maxErrorMessage bounds plain-text error bodies, in bytes.
const maxErrorMessage = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
