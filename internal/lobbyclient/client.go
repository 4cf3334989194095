// Package lobbyclient talks to the lobby HTTP API.
package lobbyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lobby api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	tokenM sync.RWMutex
	token  string

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer (tests use an in-memory listener).
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.tokenM.RLock()
	defer c.tokenM.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.tokenM.Lock()
	c.token = token
	c.tokenM.Unlock()
}

// Register creates an account and keeps its token.
func (c *Client) Register(ctx context.Context, username, password, email string) (*chessdto.AuthResponse, error) {
	var resp chessdto.AuthResponse
	req := chessdto.RegisterRequest{Username: username, Password: password, Email: email}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/user", req, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.AuthToken)
	return &resp, nil
}

// Login keeps the issued token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*chessdto.AuthResponse, error) {
	var resp chessdto.AuthResponse
	req := chessdto.LoginRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session", req, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.AuthToken)
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, fasthttp.MethodDelete, "/session", nil, nil, false); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) ListGames(ctx context.Context) ([]chessdto.GameSummary, error) {
	var resp chessdto.ListGamesResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/game", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

func (c *Client) CreateGame(ctx context.Context, name string) (string, error) {
	var resp chessdto.CreateGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/game", chessdto.CreateGameRequest{GameName: name}, &resp, false); err != nil {
		return "", err
	}
	return resp.GameID, nil
}

// JoinGame takes a seat; color is WHITE or BLACK.
func (c *Client) JoinGame(ctx context.Context, gameID, color string) error {
	req := chessdto.JoinGameRequest{GameID: gameID, PlayerColor: color}
	return c.doJSON(ctx, fasthttp.MethodPut, "/game", req, nil, false)
}

// BoardPNG downloads the rendered board. A non-empty highlight square such
// as "e2" marks that piece's legal moves.
func (c *Client) BoardPNG(ctx context.Context, gameID string, blackPerspective bool, highlight string) ([]byte, error) {
	var args fasthttp.Args
	if blackPerspective {
		args.Set("perspective", "black")
	}
	if highlight != "" {
		args.Set("highlight", highlight)
	}
	path := "/games/" + gameID + "/board.png"
	if args.Len() > 0 {
		path += "?" + args.String()
	}
	var out []byte
	err := c.do(ctx, fasthttp.MethodGet, path, nil, true, func(resp *fasthttp.Response) error {
		out = append([]byte(nil), resp.Body()...)
		return nil
	})
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	return c.do(ctx, method, path, payload, retry, func(resp *fasthttp.Response) error {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, retry bool, onOK func(*fasthttp.Response) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, tok)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			apiErr := &APIError{Status: status}
			var body chessdto.ErrorResponse
			if json.Unmarshal(resp.Body(), &body) == nil {
				apiErr.Code, apiErr.Message = body.Code, body.Message
			} else {
				apiErr.Message = truncate(string(resp.Body()), 512)
			}
			if !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
		} else {
			return onOK(resp)
		}

		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
