// Package api serves the lobby HTTP API: accounts, game list, game creation,
// seat joins and board images.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-server/internal/auth"
	"github.com/park285/Cheese-chess-server/internal/chess"
	"github.com/park285/Cheese-chess-server/internal/notation"
	"github.com/park285/Cheese-chess-server/internal/obslog"
	"github.com/park285/Cheese-chess-server/internal/render"
	"github.com/park285/Cheese-chess-server/internal/store"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

type Accounts interface {
	Register(ctx context.Context, req chessdto.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req chessdto.LoginRequest) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (string, bool, error)
}

type Lobby interface {
	CreateGame(ctx context.Context, name string) (string, error)
	ListGames(ctx context.Context) ([]chessdto.GameSummary, error)
	JoinSeat(ctx context.Context, gameID string, color chess.Color, identity string) error
}

type GameReader interface {
	Get(ctx context.Context, id string) (*store.GameRecord, error)
}

type BoardRenderer interface {
	Render(b chess.Board, perspective chess.Color, hl *render.Highlight) ([]byte, error)
}

type Server struct {
	accounts Accounts
	lobby    Lobby
	games    GameReader
	renderer BoardRenderer
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration

	srv *fasthttp.Server
}

func NewServer(accounts Accounts, lobby Lobby, games GameReader, renderer BoardRenderer, logger *zap.Logger) *Server {
	s := &Server{
		accounts: accounts,
		lobby:    lobby,
		games:    games,
		renderer: renderer,
		validate: validator.New(),
		logger:   obslog.Or(logger),
		timeout:  10 * time.Second,
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "cheese-chess",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxRequestBodySize: 64 << 10,
	}
	return s
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http_listen", zap.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// Handler routes requests and logs each one.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		start := time.Now()
		reqID := uuid.NewString()
		rc.Response.Header.Set("X-Request-ID", reqID)

		s.route(rc)

		s.logger.Info("http_request",
			zap.String("request_id", reqID),
			zap.ByteString("method", rc.Method()),
			zap.ByteString("path", rc.Path()),
			zap.Int("status", rc.Response.StatusCode()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) route(rc *fasthttp.RequestCtx) {
	path := string(rc.Path())
	method := string(rc.Method())

	switch {
	case path == "/healthz":
		rc.SetContentType("text/plain")
		rc.SetBodyString("ok")
	case path == "/user" && method == fasthttp.MethodPost:
		s.register(rc)
	case path == "/session" && method == fasthttp.MethodPost:
		s.login(rc)
	case path == "/session" && method == fasthttp.MethodDelete:
		s.logout(rc)
	case path == "/game" && method == fasthttp.MethodGet:
		s.listGames(rc)
	case path == "/game" && method == fasthttp.MethodPost:
		s.createGame(rc)
	case path == "/game" && method == fasthttp.MethodPut:
		s.joinGame(rc)
	case strings.HasPrefix(path, "/games/") && strings.HasSuffix(path, "/board.png") && method == fasthttp.MethodGet:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/games/"), "/board.png")
		s.boardImage(rc, id)
	case path == "/user" || path == "/session" || path == "/game":
		writeError(rc, fasthttp.StatusMethodNotAllowed, chessdto.CodeBadRequest, "method not allowed")
	default:
		writeError(rc, fasthttp.StatusNotFound, chessdto.CodeNotFound, "no such endpoint")
	}
}

// ctx bounds a handler's backend calls; rc is recycled after the handler.
func (s *Server) ctx(_ *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Server) register(rc *fasthttp.RequestCtx) {
	var req chessdto.RegisterRequest
	if !s.decode(rc, &req) {
		return
	}
	ctx, cancel := s.ctx(rc)
	defer cancel()
	sess, err := s.accounts.Register(ctx, req)
	if err != nil {
		s.fail(rc, err)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, chessdto.AuthResponse{Username: sess.Username, AuthToken: sess.Token})
}

func (s *Server) login(rc *fasthttp.RequestCtx) {
	var req chessdto.LoginRequest
	if !s.decode(rc, &req) {
		return
	}
	ctx, cancel := s.ctx(rc)
	defer cancel()
	sess, err := s.accounts.Login(ctx, req)
	if err != nil {
		s.fail(rc, err)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, chessdto.AuthResponse{Username: sess.Username, AuthToken: sess.Token})
}

func (s *Server) logout(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.ctx(rc)
	defer cancel()
	if err := s.accounts.Logout(ctx, authToken(rc)); err != nil {
		s.fail(rc, err)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, struct{}{})
}

func (s *Server) listGames(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.ctx(rc)
	defer cancel()
	if _, ok := s.authorize(ctx, rc); !ok {
		return
	}
	games, err := s.lobby.ListGames(ctx)
	if err != nil {
		s.fail(rc, err)
		return
	}
	if games == nil {
		games = []chessdto.GameSummary{}
	}
	writeJSON(rc, fasthttp.StatusOK, chessdto.ListGamesResponse{Games: games})
}

func (s *Server) createGame(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.ctx(rc)
	defer cancel()
	if _, ok := s.authorize(ctx, rc); !ok {
		return
	}
	var req chessdto.CreateGameRequest
	if !s.decode(rc, &req) {
		return
	}
	id, err := s.lobby.CreateGame(ctx, req.GameName)
	if err != nil {
		s.fail(rc, err)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, chessdto.CreateGameResponse{GameID: id})
}

func (s *Server) joinGame(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.ctx(rc)
	defer cancel()
	who, ok := s.authorize(ctx, rc)
	if !ok {
		return
	}
	var req chessdto.JoinGameRequest
	if !s.decode(rc, &req) {
		return
	}
	color, err := chess.ParseColor(req.PlayerColor)
	if err != nil {
		writeError(rc, fasthttp.StatusBadRequest, chessdto.CodeBadRequest, err.Error())
		return
	}
	if err := s.lobby.JoinSeat(ctx, req.GameID, color, who); err != nil {
		s.fail(rc, err)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, struct{}{})
}

func (s *Server) boardImage(rc *fasthttp.RequestCtx, id string) {
	ctx, cancel := s.ctx(rc)
	defer cancel()
	rec, err := s.games.Get(ctx, id)
	if err != nil {
		s.fail(rc, err)
		return
	}
	if rec == nil {
		writeError(rc, fasthttp.StatusNotFound, chessdto.CodeNotFound, "game "+id+" not found")
		return
	}
	g, err := chess.Restore(rec.State)
	if err != nil {
		s.fail(rc, err)
		return
	}
	perspective := chess.White
	if strings.EqualFold(string(rc.QueryArgs().Peek("perspective")), "black") {
		perspective = chess.Black
	}
	var hl *render.Highlight
	if sq := strings.TrimSpace(string(rc.QueryArgs().Peek("highlight"))); sq != "" {
		from, err := notation.ParseSquare(sq)
		if err != nil {
			writeError(rc, fasthttp.StatusBadRequest, chessdto.CodeBadRequest, "bad highlight square "+sq)
			return
		}
		hl = render.LegalMoves(g, from)
	}
	png, err := s.renderer.Render(g.Board(), perspective, hl)
	if err != nil {
		s.fail(rc, err)
		return
	}
	rc.SetStatusCode(fasthttp.StatusOK)
	rc.SetContentType("image/png")
	rc.Response.Header.Set("Cache-Control", "no-store")
	rc.SetBody(png)
}

// authorize resolves the Authorization header; it writes 401 on failure.
func (s *Server) authorize(ctx context.Context, rc *fasthttp.RequestCtx) (string, bool) {
	who, ok, err := s.accounts.Resolve(ctx, authToken(rc))
	if err != nil {
		s.fail(rc, err)
		return "", false
	}
	if !ok {
		writeError(rc, fasthttp.StatusUnauthorized, chessdto.CodeUnauthorized, "unauthorized")
		return "", false
	}
	return who, true
}

func authToken(rc *fasthttp.RequestCtx) string {
	v := strings.TrimSpace(string(rc.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

// decode reads and validates a JSON body; it writes 400 on failure.
func (s *Server) decode(rc *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(rc.PostBody(), dst); err != nil {
		writeError(rc, fasthttp.StatusBadRequest, chessdto.CodeBadRequest, "bad request")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(rc, fasthttp.StatusBadRequest, chessdto.CodeBadRequest, validationDetail(err))
		return false
	}
	return true
}

func (s *Server) fail(rc *fasthttp.RequestCtx, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == fasthttp.StatusBadRequest {
		msg = validationDetail(err)
	}
	if status == fasthttp.StatusInternalServerError {
		s.logger.Error("http_internal_error", zap.ByteString("path", rc.Path()), zap.Error(err))
		msg = "internal server error"
	}
	writeError(rc, status, code, msg)
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid " + strings.ToLower(fe.Field()) + " (" + fe.Tag() + ")"
	}
	return err.Error()
}

func writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		rc.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json")
	rc.SetBody(data)
}

func writeError(rc *fasthttp.RequestCtx, status int, code, msg string) {
	writeJSON(rc, status, chessdto.ErrorResponse{Message: "Error: " + msg, Code: code})
}
