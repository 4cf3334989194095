package lobbyclient

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(t *testing.T, h fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(); _ = ln.Close() })
	return New("http://lobby.test", WithDial(func(string) (net.Conn, error) { return ln.Dial() }), WithTimeout(2*time.Second))
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, func(rc *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			rc.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		rc.SetContentType("application/json")
		rc.SetBodyString(`{"games":[{"gameID":"G-1","gameName":"one","gameOver":false}]}`)
	})
	games, err := c.ListGames(context.Background())
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 1 || games[0].GameID != "G-1" {
		t.Fatalf("games = %+v", games)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, func(rc *fasthttp.RequestCtx) {
		calls.Add(1)
		rc.SetStatusCode(fasthttp.StatusUnauthorized)
		rc.SetBodyString(`{"message":"Error: unauthorized","code":"unauthorized"}`)
	})
	_, err := c.ListGames(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 || apiErr.Code != "unauthorized" {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestTokenHeaderAndCapture(t *testing.T) {
	var seen atomic.Value
	c := serve(t, func(rc *fasthttp.RequestCtx) {
		seen.Store(string(rc.Request.Header.Peek(fasthttp.HeaderAuthorization)))
		rc.SetBodyString(`{"username":"alice","authToken":"tok-1"}`)
	})
	if _, err := c.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Token() != "tok-1" {
		t.Fatalf("token = %q", c.Token())
	}
	if _, err := c.ListGames(context.Background()); err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if seen.Load() != "tok-1" {
		t.Fatalf("authorization header = %v", seen.Load())
	}
}

func TestBackoff(t *testing.T) {
	if backoffDuration(1) != 100*time.Millisecond || backoffDuration(3) != 400*time.Millisecond || backoffDuration(99) != backoffDuration(6) {
		t.Fatalf("unexpected backoff schedule")
	}
}
