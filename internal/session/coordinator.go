// Package session runs live games: it authenticates websocket commands,
// serializes mutations per game, applies them through the rules engine and
// fans the results out to every connected participant.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-server/internal/chess"
	"github.com/park285/Cheese-chess-server/internal/msgcat"
	"github.com/park285/Cheese-chess-server/internal/notation"
	"github.com/park285/Cheese-chess-server/internal/obslog"
	"github.com/park285/Cheese-chess-server/internal/store"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// AuthResolver maps an opaque token to an identity.
type AuthResolver interface {
	Resolve(ctx context.Context, token string) (identity string, ok bool, err error)
}

// GameStore is the subset of store.GameStore the coordinator needs.
type GameStore interface {
	Get(ctx context.Context, id string) (*store.GameRecord, error)
	Put(ctx context.Context, rec *store.GameRecord) error
	Update(ctx context.Context, id string, fn store.UpdateFunc) (*store.GameRecord, error)
}

// Archiver receives games that just ended.
type Archiver interface {
	SaveResult(ctx context.Context, rec *store.GameRecord) error
}

// MessageKeys lists every catalog entry the coordinator renders.
var MessageKeys = []string{
	"session.joined.white", "session.joined.black", "session.joined.observer",
	"session.left", "session.disconnected", "session.resigned",
	"session.moved", "session.moved_promotion",
	"session.status.check", "session.status.checkmate", "session.status.stalemate",
	"error.unauthorized", "error.not_found", "error.bad_request", "error.game_over",
	"error.not_your_turn", "error.observer_move", "error.illegal_move",
	"error.not_player", "error.internal",
}

type Options struct {
	Archiver    Archiver
	Catalog     *msgcat.Catalog
	Logger      *zap.Logger
	SendTimeout time.Duration
}

// lockStripes bounds the number of game mutexes; two games may share a stripe.
const lockStripes = 256

// Coordinator handles CONNECT, MAKE_MOVE, LEAVE and RESIGN. Every command for
// one game runs under that game's striped mutex.
type Coordinator struct {
	auth     AuthResolver
	games    GameStore
	registry *Registry
	archive  Archiver
	msgs     *msgcat.Catalog
	logger   *zap.Logger

	locks [lockStripes]sync.Mutex
}

func New(auth AuthResolver, games GameStore, opts Options) *Coordinator {
	logger := obslog.Or(opts.Logger)
	cat := opts.Catalog
	if cat == nil {
		if c, err := msgcat.New("", MessageKeys...); err == nil {
			cat = c
		} else {
			logger.Error("msgcat_load_failed", zap.Error(err))
		}
	}
	return &Coordinator{
		auth:     auth,
		games:    games,
		registry: NewRegistry(opts.SendTimeout, logger),
		archive:  opts.Archiver,
		msgs:     cat,
		logger:   logger,
	}
}

// Registry exposes the connection registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Handle executes one command from conn. Failures are reported to conn as an
// ERROR message and also returned.
func (c *Coordinator) Handle(ctx context.Context, conn Conn, cmd chessdto.Command) error {
	var err error
	switch cmd.CommandType {
	case chessdto.CommandConnect:
		err = c.connect(ctx, conn, cmd)
	case chessdto.CommandMakeMove:
		err = c.makeMove(ctx, conn, cmd)
	case chessdto.CommandLeave:
		err = c.leave(ctx, conn, cmd)
	case chessdto.CommandResign:
		err = c.resign(ctx, conn, cmd)
	default:
		err = domainErr(chessdto.CodeBadRequest, c.text("error.bad_request", map[string]any{"Detail": "unknown command " + string(cmd.CommandType)}))
	}
	if err != nil {
		return c.fail(ctx, conn, cmd, err)
	}
	return nil
}

// Disconnect forgets every binding held by conn. Seats are kept; only an
// explicit LEAVE vacates a seat.
func (c *Coordinator) Disconnect(ctx context.Context, conn Conn) {
	for _, b := range c.registry.RemoveConn(conn) {
		c.logger.Info("session_disconnect", zap.String("game_id", b.GameID), zap.String("user", b.Identity), zap.String("role", b.Role.String()))
		c.registry.Broadcast(ctx, b.GameID, b.Identity, chessdto.Notification(c.text("session.disconnected", map[string]any{"User": b.Identity})))
	}
}

func (c *Coordinator) connect(ctx context.Context, conn Conn, cmd chessdto.Command) error {
	who, err := c.identify(ctx, cmd.AuthToken)
	if err != nil {
		return err
	}

	// held across load, Add and SendTo so a concurrent move either lands in
	// the snapshot or is broadcast to the new binding
	unlock := c.lock(cmd.GameID)
	defer unlock()

	rec, err := c.load(ctx, cmd.GameID)
	if err != nil {
		return err
	}
	role := roleOf(rec, who)
	c.registry.Add(&Binding{Identity: who, GameID: rec.ID, Role: role, Conn: conn})
	c.logger.Info("session_connect", zap.String("game_id", rec.ID), zap.String("user", who), zap.String("role", role.String()))

	if err := c.registry.SendTo(ctx, rec.ID, who, chessdto.LoadGame(GameState(rec))); err != nil {
		return nil
	}
	key := "session.joined.observer"
	switch role {
	case RoleWhite:
		key = "session.joined.white"
	case RoleBlack:
		key = "session.joined.black"
	}
	c.registry.Broadcast(ctx, rec.ID, who, chessdto.Notification(c.text(key, map[string]any{"User": who})))
	return nil
}

func (c *Coordinator) makeMove(ctx context.Context, conn Conn, cmd chessdto.Command) error {
	who, err := c.identify(ctx, cmd.AuthToken)
	if err != nil {
		return err
	}
	move, err := moveFromDTO(cmd.Move)
	if err != nil {
		return domainErr(chessdto.CodeBadRequest, c.text("error.bad_request", map[string]any{"Detail": err.Error()}))
	}

	unlock := c.lock(cmd.GameID)
	defer unlock()

	var (
		mover  chess.Color
		status chess.Status
	)
	rec, err := c.games.Update(ctx, cmd.GameID, func(r *store.GameRecord) error {
		if r.State.Over {
			return domainErr(chessdto.CodeGameOver, c.text("error.game_over", nil))
		}
		if r.SeatOf(r.State.Turn) != who {
			if !r.Seated(who) {
				return domainErr(chessdto.CodeIllegalMove, c.text("error.observer_move", nil))
			}
			return domainErr(chessdto.CodeIllegalMove, c.text("error.not_your_turn", nil))
		}
		g, err := chess.Restore(r.State)
		if err != nil {
			return err
		}
		mover = g.Turn()
		if err := g.MakeMove(move); err != nil {
			return err
		}
		status = g.StatusOf(g.Turn())
		if status == chess.StatusCheckmate || status == chess.StatusStalemate {
			g.End()
		}
		r.State = g.Snapshot()
		r.MovesUCI = append(r.MovesUCI, notation.FormatUCI(move))
		switch status {
		case chess.StatusCheckmate:
			r.Finish(resultFor(mover), "checkmate", r.SeatOf(mover))
		case chess.StatusStalemate:
			r.Finish("draw", "stalemate", "")
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("session_move",
		zap.String("game_id", rec.ID),
		zap.String("user", who),
		zap.String("move", notation.FormatUCI(move)),
		zap.String("turn", rec.State.Turn.String()),
		zap.String("status", status.String()),
	)

	c.registry.Broadcast(ctx, rec.ID, "", chessdto.LoadGame(GameState(rec)))

	if status != chess.StatusNormal {
		side := mover.Opponent()
		data := map[string]any{"User": displayName(rec, side), "Winner": displayName(rec, mover)}
		c.registry.Broadcast(ctx, rec.ID, "", chessdto.Notification(c.text("session.status."+status.String(), data)))
	}

	data := map[string]any{"User": who, "From": notation.Square(move.Start), "To": notation.Square(move.End)}
	key := "session.moved"
	if move.Promotion != chess.NoKind {
		key = "session.moved_promotion"
		data["Promotion"] = strings.ToLower(move.Promotion.String())
	}
	c.registry.Broadcast(ctx, rec.ID, who, chessdto.Notification(c.text(key, data)))

	if rec.State.Over {
		c.archiveResult(ctx, rec)
	}
	return nil
}

func (c *Coordinator) leave(ctx context.Context, conn Conn, cmd chessdto.Command) error {
	who, err := c.identify(ctx, cmd.AuthToken)
	if err != nil {
		return err
	}
	unlock := c.lock(cmd.GameID)
	defer unlock()

	rec, err := c.load(ctx, cmd.GameID)
	if err != nil {
		return err
	}

	c.registry.Remove(rec.ID, who)
	c.registry.Broadcast(ctx, rec.ID, who, chessdto.Notification(c.text("session.left", map[string]any{"User": who})))

	_, err = c.games.Update(ctx, rec.ID, func(r *store.GameRecord) error {
		// finished games keep their players on record
		if r.State.Over {
			return errSeatIsFree
		}
		cleared := false
		for _, col := range [...]chess.Color{chess.White, chess.Black} {
			if r.SeatOf(col) == who {
				r.SetSeat(col, "")
				cleared = true
			}
		}
		if !cleared {
			return errSeatIsFree
		}
		return nil
	})
	switch {
	case err == nil:
		c.logger.Info("session_leave", zap.String("game_id", rec.ID), zap.String("user", who), zap.Bool("seat_cleared", true))
	case errors.Is(err, errSeatIsFree):
		c.logger.Info("session_leave", zap.String("game_id", rec.ID), zap.String("user", who), zap.Bool("seat_cleared", false))
	default:
		return err
	}
	return nil
}

func (c *Coordinator) resign(ctx context.Context, conn Conn, cmd chessdto.Command) error {
	who, err := c.identify(ctx, cmd.AuthToken)
	if err != nil {
		return err
	}

	unlock := c.lock(cmd.GameID)
	defer unlock()

	rec, err := c.games.Update(ctx, cmd.GameID, func(r *store.GameRecord) error {
		if r.State.Over {
			return domainErr(chessdto.CodeGameOver, c.text("error.game_over", nil))
		}
		if !r.Seated(who) {
			return domainErr(chessdto.CodeForbidden, c.text("error.not_player", nil))
		}
		loser := chess.White
		if r.WhiteID != who {
			loser = chess.Black
		}
		winner := loser.Opponent()
		r.Finish(resultFor(winner), "resign", r.SeatOf(winner))
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("session_resign", zap.String("game_id", rec.ID), zap.String("user", who), zap.String("result", rec.Result))

	c.registry.Broadcast(ctx, rec.ID, "", chessdto.Notification(c.text("session.resigned", map[string]any{"User": who})))
	c.archiveResult(ctx, rec)
	return nil
}

func (c *Coordinator) identify(ctx context.Context, token string) (string, error) {
	who, ok, err := c.auth.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(who) == "" {
		return "", domainErr(chessdto.CodeUnauthorized, c.text("error.unauthorized", nil))
	}
	return who, nil
}

func (c *Coordinator) load(ctx context.Context, id string) (*store.GameRecord, error) {
	rec, err := c.games.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, c.notFound(id)
	}
	return rec, nil
}

func (c *Coordinator) notFound(id string) chessdto.DomainError {
	return domainErr(chessdto.CodeNotFound, c.text("error.not_found", map[string]any{"GameID": id}))
}

func (c *Coordinator) lock(gameID string) func() {
	mu := &c.locks[xxhash.Sum64String(gameID)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (c *Coordinator) archiveResult(ctx context.Context, rec *store.GameRecord) {
	if c.archive == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.archive.SaveResult(actx, rec); err != nil {
		c.logger.Error("archive_save_failed", zap.String("game_id", rec.ID), zap.Error(err))
	}
}

// fail converts err into a client error, sends it to conn only and returns it.
func (c *Coordinator) fail(ctx context.Context, conn Conn, cmd chessdto.Command, err error) error {
	var de chessdto.DomainError
	switch {
	case errors.As(err, &de):
	case errors.Is(err, store.ErrNotFound):
		de = c.notFound(cmd.GameID)
	case errors.Is(err, store.ErrConflict):
		de = chessdto.DomainError{Code: chessdto.CodeInternal, Message: c.text("error.internal", nil), Retryable: true}
	default:
		if ime, ok := chess.IsIllegalMove(err); ok {
			de = domainErr(chessdto.CodeIllegalMove, c.text("error.illegal_move", map[string]any{"Reason": ime.Reason}))
			break
		}
		c.logger.Error("session_command_failed",
			zap.String("command", string(cmd.CommandType)),
			zap.String("game_id", cmd.GameID),
			zap.Error(err),
		)
		de = domainErr(chessdto.CodeInternal, c.text("error.internal", nil))
	}
	c.logger.Debug("session_command_rejected",
		zap.String("command", string(cmd.CommandType)),
		zap.String("game_id", cmd.GameID),
		zap.String("code", de.Code),
	)
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.registry.sendTimeout)
	defer cancel()
	if serr := conn.Send(sctx, chessdto.ErrorMessage(de)); serr != nil {
		c.logger.Warn("session_error_send_failed", zap.String("game_id", cmd.GameID), zap.Error(serr))
	}
	return de
}

func (c *Coordinator) text(key string, data any) string {
	return c.msgs.Text(key, data)
}
