// Package notation converts engine moves to coordinate notation and replays
// move logs through a full rules library to obtain SAN and FEN for archives.
package notation

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/Cheese-chess-server/internal/chess"
)

// Square formats a position as "e2".
func Square(p chess.Position) string { return p.String() }

// ParseSquare reads "e2" into a position.
func ParseSquare(s string) (chess.Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return chess.Position{}, fmt.Errorf("invalid square %q", s)
	}
	return chess.Pos(int(s[1]-'0'), int(s[0]-'a')+1), nil
}

var promoLetters = map[chess.Kind]byte{chess.Queen: 'q', chess.Rook: 'r', chess.Bishop: 'b', chess.Knight: 'n'}

// FormatUCI renders m as "e2e4" or "a7a8q".
func FormatUCI(m chess.Move) string {
	s := Square(m.Start) + Square(m.End)
	if l, ok := promoLetters[m.Promotion]; ok {
		s += string(l)
	}
	return s
}

// ParseUCI is the inverse of FormatUCI.
func ParseUCI(s string) (chess.Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return chess.Move{}, fmt.Errorf("invalid uci move %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return chess.Move{}, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return chess.Move{}, err
	}
	m := chess.Move{Start: from, End: to}
	if len(s) == 5 {
		for k, l := range promoLetters {
			if l == s[4] {
				m.Promotion = k
			}
		}
		if m.Promotion == chess.NoKind {
			return chess.Move{}, fmt.Errorf("invalid promotion in %q", s)
		}
	}
	return m, nil
}

// Transcript is a replayed move log.
type Transcript struct {
	SAN []string
	FEN string
}

// Replay plays UCI moves from the standard start position and returns SAN for
// each move plus the final FEN.
func Replay(moves []string) (*Transcript, error) {
	game := nchess.NewGame()
	notationUCI := nchess.UCINotation{}
	out := &Transcript{SAN: make([]string, 0, len(moves))}
	for i, uci := range moves {
		pos := game.Position()
		// push first so illegal moves are rejected before encoding
		if err := game.PushNotationMove(uci, notationUCI, nil); err != nil {
			return nil, fmt.Errorf("ply %d %q: %w", i+1, uci, err)
		}
		mv, err := notationUCI.Decode(pos, uci)
		if err != nil {
			return nil, fmt.Errorf("ply %d %q: %w", i+1, uci, err)
		}
		out.SAN = append(out.SAN, nchess.AlgebraicNotation{}.Encode(pos, mv))
	}
	out.FEN = game.FEN()
	return out, nil
}

// FEN builds the piece-placement and side-to-move fields of a FEN string from
// an engine snapshot. Castling and en passant fields are always "-".
func FEN(s chess.Snapshot) string {
	var b strings.Builder
	for i, rank := range s.Board {
		if i > 0 {
			b.WriteByte('/')
		}
		empty := 0
		for j := 0; j < len(rank); j++ {
			if rank[j] == '.' {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte(byte('0' + empty))
				empty = 0
			}
			b.WriteByte(rank[j])
		}
		if empty > 0 {
			b.WriteByte(byte('0' + empty))
		}
	}
	side := "w"
	if s.Turn == chess.Black {
		side = "b"
	}
	b.WriteString(" " + side + " - - 0 1")
	return b.String()
}
