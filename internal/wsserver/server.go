// Package wsserver accepts game websocket connections and feeds their
// commands to the session coordinator.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-chess-server/internal/obslog"
	"github.com/park285/Cheese-chess-server/internal/session"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// Handler is implemented by *session.Coordinator.
type Handler interface {
	Handle(ctx context.Context, conn session.Conn, cmd chessdto.Command) error
	Disconnect(ctx context.Context, conn session.Conn)
}

type Options struct {
	Path         string // default /ws
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	// OriginPatterns lists extra hosts allowed as the handshake Origin.
	OriginPatterns []string
	Logger         *zap.Logger
}

type Server struct {
	handler Handler
	opts    Options
	logger  *zap.Logger

	mu    sync.Mutex
	http  *http.Server
	conns map[*wsConn]struct{}
}

func New(h Handler, opts Options) *Server {
	if opts.Path == "" {
		opts.Path = "/ws"
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 16 << 10
	}
	return &Server{handler: h, opts: opts, logger: obslog.Or(opts.Logger), conns: make(map[*wsConn]struct{})}
}

// Routes returns the websocket endpoint plus /healthz.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.Path, s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve blocks until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	s.logger.Info("ws_listen", zap.String("addr", ln.Addr().String()), zap.String("path", s.opts.Path))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops accepting and closes every open game connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutdown")
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  s.opts.OriginPatterns,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(s.opts.ReadLimit)

	conn := &wsConn{id: uuid.NewString(), ws: ws, writeTimeout: s.opts.WriteTimeout}
	s.track(conn, true)
	defer s.track(conn, false)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.logger.Debug("ws_open", zap.String("conn", conn.id), zap.String("remote", r.RemoteAddr))

	go s.pingLoop(ctx, conn)
	s.readLoop(ctx, conn)

	s.handler.Disconnect(context.WithoutCancel(ctx), conn)
	_ = ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Debug("ws_closed", zap.String("conn", conn.id))
}

func (s *Server) readLoop(ctx context.Context, conn *wsConn) {
	for {
		typ, data, err := conn.ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
				s.logger.Debug("ws_read_failed", zap.String("conn", conn.id), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			s.reject(ctx, conn, "binary frames are not supported")
			continue
		}
		var cmd chessdto.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reject(ctx, conn, "malformed command")
			continue
		}
		// the coordinator reports failures to conn itself
		if err := s.handler.Handle(ctx, conn, cmd); err != nil {
			s.logger.Debug("ws_command_failed", zap.String("conn", conn.id), zap.String("command", string(cmd.CommandType)), zap.Error(err))
		}
	}
}

func (s *Server) reject(ctx context.Context, conn *wsConn, detail string) {
	msg := chessdto.ErrorMessage(chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: "Error: " + detail})
	_ = conn.Send(ctx, msg)
}

func (s *Server) pingLoop(ctx context.Context, conn *wsConn) {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := conn.ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				s.logger.Info("ws_ping_timeout", zap.String("conn", conn.id))
				_ = conn.ws.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Server) track(c *wsConn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// wsConn is the session.Conn for one websocket. Writes are serialized and
// bounded by writeTimeout.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsConn) Send(ctx context.Context, msg *chessdto.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.ws, msg)
}
