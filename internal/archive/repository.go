// Package archive persists finished games to Postgres.
package archive

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    _ "github.com/lib/pq"
    "go.uber.org/zap"

    "github.com/park285/Cheese-chess-server/internal/notation"
    "github.com/park285/Cheese-chess-server/internal/obslog"
    "github.com/park285/Cheese-chess-server/internal/store"
)

const schema = `CREATE TABLE IF NOT EXISTS chess_games (
    game_id       TEXT PRIMARY KEY,
    game_name     TEXT NOT NULL,
    white_id      TEXT NOT NULL DEFAULT '',
    black_id      TEXT NOT NULL DEFAULT '',
    result        TEXT NOT NULL DEFAULT '',
    result_method TEXT NOT NULL DEFAULT '',
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    final_fen     TEXT NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL DEFAULT 0
)`

const upsert = `INSERT INTO chess_games (
    game_id, game_name, white_id, black_id,
    result, result_method, moves_uci, moves_san, final_fen, pgn,
    started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
  ) ON CONFLICT (game_id) DO UPDATE SET
    game_name=EXCLUDED.game_name,
    white_id=EXCLUDED.white_id,
    black_id=EXCLUDED.black_id,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    final_fen=EXCLUDED.final_fen,
    pgn=EXCLUDED.pgn,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

type Repository struct {
    db     *sql.DB
    logger *zap.Logger
}

func NewRepository(databaseURL string, logger *zap.Logger) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    logger = obslog.Or(logger)
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    if _, err := db.ExecContext(ctx, schema); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ensure schema: %w", err)
    }
    return &Repository{db: db, logger: logger}, nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

// Row is one chess_games row.
type Row struct {
    GameID     string
    GameName   string
    WhiteID    string
    BlackID    string
    Result     string
    Method     string
    MovesUCI   []string
    MovesSAN   []string
    FinalFEN   string
    PGN        string
    StartedAt  time.Time
    EndedAt    time.Time
    DurationMs int64
}

// RowOf derives the archived row from a finished record. A move log that the
// rules library cannot replay still archives, with empty SAN.
func RowOf(rec *store.GameRecord) (Row, error) {
    row := Row{
        GameID:    rec.ID,
        GameName:  rec.Name,
        WhiteID:   rec.WhiteID,
        BlackID:   rec.BlackID,
        Result:    strings.TrimSpace(rec.Result),
        Method:    strings.ToLower(strings.TrimSpace(rec.Method)),
        MovesUCI:  append([]string{}, rec.MovesUCI...),
        MovesSAN:  []string{},
        FinalFEN:  notation.FEN(rec.State),
        StartedAt: rec.CreatedAt,
        EndedAt:   rec.UpdatedAt,
    }
    if row.EndedAt.IsZero() { row.EndedAt = time.Now() }
    row.DurationMs = row.EndedAt.Sub(row.StartedAt).Milliseconds()
    if row.DurationMs < 0 { row.DurationMs = 0 }

    tr, err := notation.Replay(rec.MovesUCI)
    if err == nil {
        row.MovesSAN = tr.SAN
    }
    row.PGN = BuildPGN(row)
    return row, err
}

// SaveResult upserts a finished game. Unfinished records are ignored.
func (r *Repository) SaveResult(ctx context.Context, rec *store.GameRecord) error {
    if r == nil || r.db == nil || rec == nil || !rec.State.Over {
        return nil
    }
    row, replayErr := RowOf(rec)
    if replayErr != nil {
        r.logger.Warn("archive_replay_failed", zap.String("game_id", rec.ID), zap.Error(replayErr))
    }
    movesUCI, _ := json.Marshal(row.MovesUCI)
    movesSAN, _ := json.Marshal(row.MovesSAN)
    _, err := r.db.ExecContext(ctx, upsert,
        row.GameID, row.GameName, row.WhiteID, row.BlackID,
        row.Result, row.Method, string(movesUCI), string(movesSAN), row.FinalFEN, row.PGN,
        row.StartedAt, row.EndedAt, row.DurationMs,
    )
    if err != nil {
        return fmt.Errorf("archive %s: %w", rec.ID, err)
    }
    r.logger.Info("archive_saved", zap.String("game_id", rec.ID), zap.String("result", row.Result), zap.String("method", row.Method))
    return nil
}

func resultToPGN(result string) string {
    switch strings.ToLower(strings.TrimSpace(result)) {
    case "white":
        return "1-0"
    case "black":
        return "0-1"
    case "draw":
        return "1/2-1/2"
    default:
        return "*"
    }
}

// BuildPGN renders the seven-tag roster plus termination and numbered SAN.
func BuildPGN(row Row) string {
    var b strings.Builder
    date := row.EndedAt
    if date.IsZero() {
        date = time.Now()
    }
    pgnResult := resultToPGN(row.Result)
    fmt.Fprintf(&b, "[Event \"%s\"]\n", sanitizePGN(row.GameName))
    b.WriteString("[Site \"Cheese Chess\"]\n")
    fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
    b.WriteString("[Round \"-\"]\n")
    fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(row.WhiteID))
    fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(row.BlackID))
    fmt.Fprintf(&b, "[Result \"%s\"]\n", pgnResult)
    if row.Method != "" {
        fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(row.Method))
    }
    b.WriteString("\n")

    for i := 0; i < len(row.MovesSAN); i += 2 {
        fmt.Fprintf(&b, "%d. %s ", i/2+1, strings.TrimSpace(row.MovesSAN[i]))
        if i+1 < len(row.MovesSAN) {
            b.WriteString(strings.TrimSpace(row.MovesSAN[i+1]))
            b.WriteString(" ")
        }
    }
    b.WriteString(pgnResult)
    return b.String()
}

func sanitizePGN(s string) string {
    s = strings.ReplaceAll(s, "\\", " ")
    s = strings.ReplaceAll(s, "\"", "'")
    return strings.TrimSpace(s)
}
