// Package lobby creates games, lists them and seats players. Seat changes go
// through the same store updates the session coordinator uses.
package lobby

import (
    "context"
    "errors"
    "strings"

    "github.com/samber/lo"
    "go.uber.org/zap"

    "github.com/park285/Cheese-chess-server/internal/chess"
    "github.com/park285/Cheese-chess-server/internal/obslog"
    "github.com/park285/Cheese-chess-server/internal/store"
    "github.com/park285/Cheese-chess-server/pkg/chessdto"
)

var (
    ErrInvalidArgs  = errf("invalid arguments")
    ErrGameNotFound = errf("game not found")
    ErrSeatTaken    = errf("seat already taken")
    ErrGameOver     = errf("game is already over")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

type Service struct {
    games  store.GameStore
    logger *zap.Logger
}

func NewService(games store.GameStore, logger *zap.Logger) *Service {
    logger = obslog.Or(logger)
    return &Service{games: games, logger: logger}
}

// CreateGame stores a fresh game with both seats open.
func (s *Service) CreateGame(ctx context.Context, name string) (string, error) {
    name = strings.TrimSpace(name)
    if name == "" { return "", ErrInvalidArgs }
    rec, err := s.games.Create(ctx, name)
    if err != nil { return "", err }
    s.logger.Info("lobby_create", zap.String("game_id", rec.ID), zap.String("name", name))
    return rec.ID, nil
}

// ListGames returns a summary of every stored game.
func (s *Service) ListGames(ctx context.Context) ([]chessdto.GameSummary, error) {
    recs, err := s.games.List(ctx)
    if err != nil { return nil, err }
    return lo.Map(recs, func(r *store.GameRecord, _ int) chessdto.GameSummary {
        return chessdto.GameSummary{
            GameID:        r.ID,
            GameName:      r.Name,
            WhiteUsername: r.WhiteID,
            BlackUsername: r.BlackID,
            GameOver:      r.State.Over,
        }
    }), nil
}

// JoinSeat seats identity as color. Taking a seat one already holds is a
// no-op; a seat held by someone else yields ErrSeatTaken.
func (s *Service) JoinSeat(ctx context.Context, gameID string, color chess.Color, identity string) error {
    gameID = strings.TrimSpace(gameID)
    identity = strings.TrimSpace(identity)
    if gameID == "" || identity == "" || (color != chess.White && color != chess.Black) {
        return ErrInvalidArgs
    }
    _, err := s.games.Update(ctx, gameID, func(r *store.GameRecord) error {
        if r.State.Over { return ErrGameOver }
        switch r.SeatOf(color) {
        case identity:
            return nil
        case "":
            r.SetSeat(color, identity)
            return nil
        default:
            return ErrSeatTaken
        }
    })
    if errors.Is(err, store.ErrNotFound) { return ErrGameNotFound }
    if err != nil {
        s.logger.Warn("lobby_join_error", zap.String("game_id", gameID), zap.String("user", identity), zap.Error(err))
        return err
    }
    s.logger.Info("lobby_join", zap.String("game_id", gameID), zap.String("user", identity), zap.String("color", color.String()))
    return nil
}
