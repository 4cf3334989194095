package store

import (
    "context"
    "strings"
    "time"

    "github.com/park285/Cheese-chess-server/internal/chess"
)

// GameRecord is the persisted form of one game: seats, name, engine snapshot
// and the coordinate move log used for archiving.
type GameRecord struct {
    ID      string `json:"id"`
    Name    string `json:"name"`
    WhiteID string `json:"white_id,omitempty"`
    BlackID string `json:"black_id,omitempty"`

    State    chess.Snapshot `json:"state"`
    MovesUCI []string       `json:"moves_uci"`

    // Set once the game is over.
    Result string `json:"result,omitempty"` // white | black | draw
    Method string `json:"method,omitempty"` // checkmate | stalemate | resign
    Winner string `json:"winner,omitempty"`

    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

// NewGameRecord returns a record holding a fresh standard game.
func NewGameRecord(id, name string) *GameRecord {
    now := time.Now()
    return &GameRecord{
        ID:        strings.TrimSpace(id),
        Name:      strings.TrimSpace(name),
        State:     chess.InitialSnapshot(),
        MovesUCI:  []string{},
        CreatedAt: now,
        UpdatedAt: now,
    }
}

// SeatOf returns the identity seated as c, or "".
func (r *GameRecord) SeatOf(c chess.Color) string {
    if c == chess.White { return r.WhiteID }
    if c == chess.Black { return r.BlackID }
    return ""
}

// SetSeat assigns (or clears, with "") the seat for c.
func (r *GameRecord) SetSeat(c chess.Color, identity string) {
    switch c {
    case chess.White:
        r.WhiteID = identity
    case chess.Black:
        r.BlackID = identity
    }
}

// Seated reports whether identity holds either seat.
func (r *GameRecord) Seated(identity string) bool {
    return identity != "" && (r.WhiteID == identity || r.BlackID == identity)
}

// Clone returns a deep copy.
func (r *GameRecord) Clone() *GameRecord {
    if r == nil { return nil }
    cp := *r
    cp.MovesUCI = append([]string(nil), r.MovesUCI...)
    return &cp
}

// Finish records the terminal result and marks the snapshot over.
func (r *GameRecord) Finish(result, method, winner string) {
    r.State.Over = true
    r.Result = result
    r.Method = method
    r.Winner = winner
    r.UpdatedAt = time.Now()
}

// UpdateFunc mutates rec in place. Returning an error aborts the update and
// nothing is written; the error is passed through to the caller of Update.
type UpdateFunc func(rec *GameRecord) error

// GameStore is implemented by RedisStore and MemoryStore.
type GameStore interface {
    Get(ctx context.Context, id string) (*GameRecord, error)
    Put(ctx context.Context, rec *GameRecord) error
    Update(ctx context.Context, id string, fn UpdateFunc) (*GameRecord, error)
    Create(ctx context.Context, name string) (*GameRecord, error)
    List(ctx context.Context) ([]*GameRecord, error)
}

var (
    ErrNotFound   = errf("game not found")
    ErrConflict   = errf("game was modified concurrently, retry")
    ErrInvalidArg = errf("invalid arguments")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
