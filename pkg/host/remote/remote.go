// Package remote implements the host primitives against a reasend bridge
// server, so a host running in another process can be driven over HTTP.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/james-see/reasend/pkg/host"
)

// SessionHeader must match the bridge server's header name
const SessionHeader = "X-Reasend-Session"

var ErrSessionExpired = errors.New("bridge session expired")

// Error is a failed bridge request. It unwraps to the matching host sentinel.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge: %s (%d %s)", e.Message, e.Status, e.Code)
}

func (e *Error) Unwrap() error {
	if e.Code == "session_expired" {
		return ErrSessionExpired
	}
	return host.ErrorFromCode(e.Code)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// Client talks to one bridge server
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the bridge at baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ host.Host      = (*Client)(nil)
	_ host.Extension = (*Client)(nil)
	_ host.Executor  = (*Client)(nil)
	_ host.Browser   = (*Client)(nil)
)

type sessionKey struct{}

func sessionToken(ctx context.Context) string {
	token, _ := ctx.Value(sessionKey{}).(string)
	return token
}

type valueBody struct {
	Value float64 `json:"value"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := sessionToken(ctx); token != "" {
		req.Header.Set(SessionHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err != nil || eb.Code == "" {
			return &Error{Status: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(data))}
		}
		return &Error{Status: resp.StatusCode, Code: eb.Code, Message: eb.Error}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func routePath(trackID string, cat host.Category, index int) string {
	return fmt.Sprintf("/api/v1/tracks/%s/routes/%d/%d", url.PathEscape(trackID), int(cat), index)
}

// GetSendInfo implements host.Host
func (c *Client) GetSendInfo(ctx context.Context, trackID string, cat host.Category, index int, param string) (float64, error) {
	var out valueBody
	err := c.do(ctx, http.MethodGet, routePath(trackID, cat, index)+"/info/"+url.PathEscape(param), nil, &out)
	return out.Value, err
}

// SetSendInfo implements host.Host
func (c *Client) SetSendInfo(ctx context.Context, trackID string, cat host.Category, index int, param string, value float64) error {
	return c.do(ctx, http.MethodPut, routePath(trackID, cat, index)+"/info/"+url.PathEscape(param), valueBody{Value: value}, nil)
}

// RemoveSend implements host.Host
func (c *Client) RemoveSend(ctx context.Context, trackID string, cat host.Category, index int) error {
	return c.do(ctx, http.MethodDelete, routePath(trackID, cat, index), nil, nil)
}

// TrackFromPointer implements host.Host
func (c *Client) TrackFromPointer(ctx context.Context, pointer float64) (host.Track, error) {
	var t host.Track
	err := c.do(ctx, http.MethodGet, "/api/v1/pointers/"+strconv.FormatFloat(pointer, 'f', -1, 64), nil, &t)
	return t, err
}

// ExtensionAvailable implements host.Extension. Request failures count as unavailable.
func (c *Client) ExtensionAvailable(ctx context.Context) bool {
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/extension", nil, &out); err != nil {
		return false
	}
	return out.Available
}

// GetSetSendInfo implements host.Extension
func (c *Client) GetSetSendInfo(ctx context.Context, trackID string, cat host.Category, index int, param string, set bool, value float64) (float64, error) {
	path := routePath(trackID, cat, index) + "/ext/" + url.PathEscape(param)
	var out valueBody
	if set {
		err := c.do(ctx, http.MethodPut, path, valueBody{Value: value}, &out)
		return out.Value, err
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Value, err
}

// Tracks implements host.Browser
func (c *Client) Tracks(ctx context.Context) ([]host.Track, error) {
	var out struct {
		Tracks []host.Track `json:"tracks"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/tracks", nil, &out)
	return out.Tracks, err
}

// NumSends implements host.Browser
func (c *Client) NumSends(ctx context.Context, trackID string, cat host.Category) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/api/v1/tracks/%s/routes/%d", url.PathEscape(trackID), int(cat))
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Count, err
}

// Inside opens an exclusive bridge session for the duration of fn. Calls
// made with the context fn receives carry the session token.
func (c *Client) Inside(ctx context.Context, fn func(ctx context.Context) error) error {
	if sessionToken(ctx) != "" {
		return fn(ctx)
	}

	var sess struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", nil, &sess); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	err := fn(context.WithValue(ctx, sessionKey{}, sess.Token))

	// close even when ctx is done so the server does not wait for the lease
	timeout := c.http.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if cerr := c.do(closeCtx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(sess.Token), nil, nil); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close session: %w", cerr)
	}
	return err
}
