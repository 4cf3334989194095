package session

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-chess-server/internal/chess"
	"github.com/park285/Cheese-chess-server/internal/store"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// moveFromDTO validates coordinates and the promotion name.
func moveFromDTO(m *chessdto.Move) (chess.Move, error) {
	if m == nil {
		return chess.Move{}, fmt.Errorf("move is required")
	}
	out := chess.Move{
		Start: chess.Pos(m.StartPosition.Row, m.StartPosition.Col),
		End:   chess.Pos(m.EndPosition.Row, m.EndPosition.Col),
	}
	if !out.Start.Valid() || !out.End.Valid() {
		return chess.Move{}, fmt.Errorf("position out of range")
	}
	if p := strings.ToUpper(strings.TrimSpace(m.PromotionPiece)); p != "" {
		k, err := chess.ParseKind(p)
		if err != nil {
			return chess.Move{}, err
		}
		out.Promotion = k
	}
	return out, nil
}

func roleOf(rec *store.GameRecord, identity string) Role {
	if identity == "" {
		return RoleObserver
	}
	switch identity {
	case rec.WhiteID:
		return RoleWhite
	case rec.BlackID:
		return RoleBlack
	default:
		return RoleObserver
	}
}

// GameState builds the LOAD_GAME payload for rec.
func GameState(rec *store.GameRecord) *chessdto.GameState {
	st := &chessdto.GameState{
		GameID:        rec.ID,
		GameName:      rec.Name,
		WhiteUsername: rec.WhiteID,
		BlackUsername: rec.BlackID,
		Board:         rec.State.Board,
		TeamTurn:      rec.State.Turn.String(),
		GameOver:      rec.State.Over,
		Result:        rec.Result,
	}
	if n := len(rec.MovesUCI); n > 0 {
		st.LastMove = rec.MovesUCI[n-1]
	}
	if g, err := chess.Restore(rec.State); err == nil && !rec.State.Over {
		st.Check = g.IsInCheck(g.Turn())
	}
	return st
}

func colorName(c chess.Color) string {
	if c == chess.Black {
		return "Black"
	}
	return "White"
}

// displayName is the seated identity, or the color when the seat is empty.
func displayName(rec *store.GameRecord, c chess.Color) string {
	if id := rec.SeatOf(c); id != "" {
		return id
	}
	return colorName(c)
}

func resultFor(winner chess.Color) string {
	if winner == chess.Black {
		return "black"
	}
	return "white"
}
