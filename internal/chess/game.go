package chess

// Game is the authoritative state of one match: board, side to move and the
// over flag. A Game is not safe for concurrent use; callers serialize access.
type Game struct {
	board Board
	turn  Color
	over  bool
}

// NewGame starts a game from the standard setup with White to move.
func NewGame() *Game {
	return &Game{board: NewStandardBoard(), turn: White}
}

// NewGameFromBoard starts a game from an arbitrary position.
func NewGameFromBoard(b Board, turn Color) *Game {
	if turn != Black {
		turn = White
	}
	return &Game{board: b, turn: turn}
}

// Board returns a copy of the current board.
func (g *Game) Board() Board { return g.board }

// Turn returns the side to move.
func (g *Game) Turn() Color { return g.turn }

// Over reports whether the game has ended.
func (g *Game) Over() bool { return g.over }

// End marks the game over. Once set it is never cleared.
func (g *Game) End() { g.over = true }

// ValidMoves returns the legal moves of the piece on pos: its pseudo-legal
// moves that do not leave its own king attacked. Each candidate is tried on a
// copy of the board.
func (g *Game) ValidMoves(pos Position) []Move {
	return legalMoves(&g.board, pos)
}

func legalMoves(b *Board, pos Position) []Move {
	p, ok := b.Get(pos)
	if !ok {
		return nil
	}
	candidates := PseudoLegalMoves(b, pos)
	out := candidates[:0]
	for _, m := range candidates {
		trial := b.with(m)
		if !inCheck(&trial, p.Color) {
			out = append(out, m)
		}
	}
	return out
}

// MakeMove validates and applies m. On failure it returns an
// *IllegalMoveError and the game is unchanged.
func (g *Game) MakeMove(m Move) error {
	if g.over {
		return &IllegalMoveError{Reason: ReasonGameOver, Move: m}
	}
	p, ok := g.board.Get(m.Start)
	if !ok {
		return &IllegalMoveError{Reason: ReasonNoPiece, Move: m}
	}
	if p.Color != g.turn {
		return &IllegalMoveError{Reason: ReasonWrongTurn, Move: m}
	}
	if !containsMove(g.ValidMoves(m.Start), m) {
		return &IllegalMoveError{Reason: ReasonNotLegal, Move: m}
	}
	g.board.apply(m)
	g.turn = g.turn.Opponent()
	return nil
}

func containsMove(moves []Move, m Move) bool {
	for _, c := range moves {
		if c == m {
			return true
		}
	}
	return false
}

// IsInCheck reports whether c's king is attacked. A side without a king is
// never in check.
func (g *Game) IsInCheck(c Color) bool { return inCheck(&g.board, c) }

// IsInCheckmate reports check with no legal move anywhere on the board.
func (g *Game) IsInCheckmate(c Color) bool {
	return inCheck(&g.board, c) && !hasLegalMove(&g.board, c)
}

// IsInStalemate reports no check and no legal move.
func (g *Game) IsInStalemate(c Color) bool {
	return !inCheck(&g.board, c) && !hasLegalMove(&g.board, c)
}

// Status summarizes the position for the side to move.
type Status uint8

const (
	StatusNormal Status = iota
	StatusCheck
	StatusCheckmate
	StatusStalemate
)

func (s Status) String() string {
	switch s {
	case StatusCheck:
		return "check"
	case StatusCheckmate:
		return "checkmate"
	case StatusStalemate:
		return "stalemate"
	default:
		return "normal"
	}
}

// StatusOf evaluates c with a single legal-move scan.
func (g *Game) StatusOf(c Color) Status {
	check := inCheck(&g.board, c)
	canMove := hasLegalMove(&g.board, c)
	switch {
	case check && !canMove:
		return StatusCheckmate
	case check:
		return StatusCheck
	case !canMove:
		return StatusStalemate
	default:
		return StatusNormal
	}
}

func inCheck(b *Board, c Color) bool {
	king, ok := b.PositionOf(Piece{Color: c, Kind: King})
	if !ok {
		return false
	}
	for _, sq := range b.AllPieces(c.Opponent()) {
		for _, m := range PseudoLegalMoves(b, sq.Position) {
			if m.End == king {
				return true
			}
		}
	}
	return false
}

func hasLegalMove(b *Board, c Color) bool {
	for _, sq := range b.AllPieces(c) {
		if len(legalMoves(b, sq.Position)) > 0 {
			return true
		}
	}
	return false
}
