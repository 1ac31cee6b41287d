package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/protocol"
)

const (
	headerClientID = "X-Client-Id"
	maxErrorBody   = 64 << 10
)

// Error is a non-2xx response decoded from an ApiError body
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps SESSION_NOT_FOUND to cnst.ErrSessionNotFound and every other
// failure to cnst.ErrSyncFailed
func (e *Error) Unwrap() error {
	if e.Code == protocol.CodeSessionNotFound {
		return cnst.ErrSessionNotFound
	}
	return cnst.ErrSyncFailed
}

// Client talks to the session REST routes
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	clientID string
	logger   *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClientID names the websocket endpoint of this client so code pushes
// are not echoed back to it
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// New creates a client for the server at baseURL. Every call is bounded by
// timeout.
func New(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: timeout,
		logger:  logger.Named("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession creates a session in lang
func (c *Client) CreateSession(ctx context.Context, lang protocol.Language) (*protocol.Session, error) {
	var sess protocol.Session
	err := c.do(ctx, http.MethodPost, "/sessions", protocol.CreateSessionRequest{Language: lang}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession fetches a session, materializing it server side if unknown
func (c *Client) GetSession(ctx context.Context, id string) (*protocol.Session, error) {
	var sess protocol.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateCode replaces the session's document
func (c *Client) UpdateCode(ctx context.Context, id, code string, lang protocol.Language) (*protocol.Session, error) {
	var sess protocol.Session
	req := protocol.UpdateCodeRequest{Code: &code, Language: lang}
	if err := c.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(id)+"/code", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ReportExecution shares an execution result with the session's participants
func (c *Client) ReportExecution(ctx context.Context, id string, result protocol.ExecutionResult) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/execution-result", result, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", cnst.ErrSyncFailed, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", cnst.ErrSyncFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", cnst.ErrSyncFailed, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", cnst.ErrSyncFailed, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	if gjson.ValidBytes(data) {
		parsed := gjson.ParseBytes(data)
		apiErr.Code = parsed.Get("code").String()
		if msg := parsed.Get("message").String(); msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}
