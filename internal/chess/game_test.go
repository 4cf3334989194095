package chess

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func mv(from, to string) Move {
	return Move{Start: sq(from), End: sq(to)}
}

func sq(s string) Position {
	return Pos(int(s[1]-'0'), int(s[0]-'a')+1)
}

func play(t *testing.T, g *Game, moves ...Move) {
	t.Helper()
	for _, m := range moves {
		require.NoError(t, g.MakeMove(m), "move %s", m)
	}
}

func emptyBoard(pieces map[string]Piece) Board {
	var b Board
	for at, p := range pieces {
		b.Place(sq(at), p)
	}
	return b
}

func TestPawnDoubleStepFromStart(t *testing.T) {
	r := require.New(t)
	g := NewGame()

	r.NoError(g.MakeMove(mv("e2", "e4")))

	r.Equal(Black, g.Turn())
	b := g.Board()
	_, occupied := b.Get(sq("e2"))
	r.False(occupied)
	p, ok := b.Get(sq("e4"))
	r.True(ok)
	r.Equal(Piece{Color: White, Kind: Pawn}, p)
}

func TestWrongTurnLeavesBoardUnchanged(t *testing.T) {
	r := require.New(t)
	g := NewGame()
	before := g.Board()

	err := g.MakeMove(mv("e7", "e5"))

	r.ErrorIs(err, &IllegalMoveError{Reason: ReasonWrongTurn})
	r.Equal(before, g.Board())
	r.Equal(White, g.Turn())
}

func TestMakeMovePreconditionOrder(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*Game)
		move   Move
		reason string
	}{
		{"over beats everything", func(g *Game) { g.End() }, mv("e7", "e5"), ReasonGameOver},
		{"empty origin", func(*Game) {}, mv("e4", "e5"), ReasonNoPiece},
		{"off-board origin", func(*Game) {}, Move{Start: Pos(0, 9), End: sq("e4")}, ReasonNoPiece},
		{"opponent piece", func(*Game) {}, mv("b8", "c6"), ReasonWrongTurn},
		{"blocked rook", func(*Game) {}, mv("a1", "a3"), ReasonNotLegal},
		{"pawn triple step", func(*Game) {}, mv("e2", "e5"), ReasonNotLegal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGame()
			tc.setup(g)
			before := g.Board()
			err := g.MakeMove(tc.move)
			ime, ok := IsIllegalMove(err)
			require.True(t, ok, "want IllegalMoveError, got %v", err)
			require.Equal(t, tc.reason, ime.Reason)
			require.Equal(t, before, g.Board())
		})
	}
}

func TestScholarsMateIsCheckmate(t *testing.T) {
	r := require.New(t)
	g := NewGame()
	play(t, g,
		mv("e2", "e4"), mv("e7", "e5"),
		mv("f1", "c4"), mv("b8", "c6"),
		mv("d1", "h5"), mv("g8", "f6"),
		mv("h5", "f7"),
	)

	r.True(g.IsInCheck(Black))
	r.True(g.IsInCheckmate(Black))
	r.False(g.IsInStalemate(Black))
	r.Equal(StatusCheckmate, g.StatusOf(Black))
	b := g.Board()
	for _, s := range b.AllPieces(Black) {
		r.Empty(g.ValidMoves(s.Position), "piece on %s", s.Position)
	}
}

func TestFoolsMate(t *testing.T) {
	g := NewGame()
	play(t, g, mv("f2", "f3"), mv("e7", "e5"), mv("g2", "g4"), mv("d8", "h4"))

	require.True(t, g.IsInCheckmate(White))
	require.False(t, g.IsInCheckmate(Black))
}

func TestCheckIsNotMateWhenBlockable(t *testing.T) {
	g := NewGame()
	play(t, g, mv("e2", "e4"), mv("f7", "f6"), mv("d1", "h5"))

	require.True(t, g.IsInCheck(Black))
	require.False(t, g.IsInCheckmate(Black))
	require.Equal(t, StatusCheck, g.StatusOf(Black))
	// g7g6 blocks; nothing else does.
	var blocks []Move
	b := g.Board()
	for _, s := range b.AllPieces(Black) {
		blocks = append(blocks, g.ValidMoves(s.Position)...)
	}
	require.Equal(t, []Move{mv("g7", "g6")}, blocks)
}

func TestLoneKingStalemate(t *testing.T) {
	r := require.New(t)
	b := emptyBoard(map[string]Piece{
		"h8": {Black, King},
		"g6": {White, Queen},
		"f7": {White, King},
	})
	g := NewGameFromBoard(b, Black)

	r.False(g.IsInCheck(Black))
	r.True(g.IsInStalemate(Black))
	r.False(g.IsInCheckmate(Black))
	r.Equal(StatusStalemate, g.StatusOf(Black))
	r.Empty(g.ValidMoves(sq("h8")))
}

func TestKingSurroundedByEnemiesStalemate(t *testing.T) {
	// Black king in the corner, boxed in by protected white pawns it cannot take.
	b := emptyBoard(map[string]Piece{
		"a8": {Black, King},
		"a7": {White, Pawn},
		"b6": {White, Pawn},
		"c7": {White, King},
	})
	g := NewGameFromBoard(b, Black)

	require.True(t, g.IsInStalemate(Black))
}

func TestPromotionExpandsIntoFourMoves(t *testing.T) {
	r := require.New(t)
	b := emptyBoard(map[string]Piece{
		"a7": {White, Pawn},
		"e1": {White, King},
		"e8": {Black, King},
	})
	g := NewGameFromBoard(b, White)

	moves := g.ValidMoves(sq("a7"))
	r.Len(moves, 4)
	var kinds []Kind
	for _, m := range moves {
		r.Equal(sq("a8"), m.End)
		kinds = append(kinds, m.Promotion)
	}
	r.Equal([]Kind{Queen, Rook, Bishop, Knight}, kinds)

	err := g.MakeMove(mv("a7", "a8"))
	r.ErrorIs(err, &IllegalMoveError{Reason: ReasonNotLegal})

	r.NoError(g.MakeMove(Move{Start: sq("a7"), End: sq("a8"), Promotion: Knight}))
	p, _ := g.Board().Get(sq("a8"))
	r.Equal(Piece{Color: White, Kind: Knight}, p)
}

func TestBlackPawnPromotesOnFirstRankWithCapture(t *testing.T) {
	b := emptyBoard(map[string]Piece{
		"b2": {Black, Pawn},
		"a1": {White, Rook},
		"b1": {White, Knight},
		"h1": {White, King},
		"h8": {Black, King},
	})
	g := NewGameFromBoard(b, Black)

	moves := g.ValidMoves(sq("b2"))
	require.Len(t, moves, 4)
	for _, m := range moves {
		require.Equal(t, sq("a1"), m.End)
	}
}

func TestPinnedRookStaysOnFile(t *testing.T) {
	b := emptyBoard(map[string]Piece{
		"e1": {White, King},
		"e2": {White, Rook},
		"e8": {Black, Rook},
		"a8": {Black, King},
	})
	g := NewGameFromBoard(b, White)

	moves := g.ValidMoves(sq("e2"))
	require.Len(t, moves, 6)
	for _, m := range moves {
		require.Equal(t, 5, m.End.Col)
	}
}

func TestValidMovesDoesNotTouchLiveBoard(t *testing.T) {
	g := NewGame()
	play(t, g, mv("e2", "e4"), mv("d7", "d5"))
	before := g.Board()

	_ = g.ValidMoves(sq("e4"))
	_ = g.IsInCheckmate(White)
	_ = g.IsInStalemate(Black)

	require.Equal(t, before, g.Board())
}

func TestSlidersStopAtPieces(t *testing.T) {
	b := emptyBoard(map[string]Piece{
		"d4": {White, Queen},
		"d6": {Black, Pawn},
		"f4": {White, Pawn},
	})
	moves := PseudoLegalMoves(&b, sq("d4"))

	ends := map[Position]bool{}
	for _, m := range moves {
		ends[m.End] = true
	}
	require.True(t, ends[sq("d6")], "captures enemy")
	require.False(t, ends[sq("d7")], "stops after capture")
	require.False(t, ends[sq("f4")], "never lands on friend")
	require.True(t, ends[sq("e4")])
	require.False(t, ends[sq("g4")])
	require.True(t, ends[sq("a1")])
	require.True(t, ends[sq("h8")])
}

func TestKnightFromCorner(t *testing.T) {
	b := emptyBoard(map[string]Piece{"a1": {White, Knight}, "b3": {White, Pawn}})
	moves := PseudoLegalMoves(&b, sq("a1"))
	require.Equal(t, []Move{mv("a1", "c2")}, moves)
}

func TestPawnDoubleStepNeedsBothSquaresEmpty(t *testing.T) {
	b := NewStandardBoard()
	b.Place(sq("e3"), Piece{Black, Knight})
	require.Empty(t, PseudoLegalMoves(&b, sq("e2")))

	b = NewStandardBoard()
	b.Place(sq("e4"), Piece{Black, Knight})
	require.Equal(t, []Move{mv("e2", "e3")}, PseudoLegalMoves(&b, sq("e2")))
}

func TestNoCastlingOffered(t *testing.T) {
	b := emptyBoard(map[string]Piece{
		"e1": {White, King},
		"h1": {White, Rook},
		"e8": {Black, King},
	})
	g := NewGameFromBoard(b, White)
	for _, m := range g.ValidMoves(sq("e1")) {
		require.NotEqual(t, sq("g1"), m.End)
	}
}

func TestMissingKingIsNeverInCheck(t *testing.T) {
	b := emptyBoard(map[string]Piece{"a1": {Black, Rook}})
	g := NewGameFromBoard(b, White)
	require.False(t, g.IsInCheck(White))
	require.True(t, g.IsInStalemate(White))
}

// Random playouts: turns alternate and no returned move leaves the mover in check.
func TestRandomPlayoutInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for game := 0; game < 20; game++ {
		g := NewGame()
		for ply := 0; ply < 120; ply++ {
			mover := g.Turn()
			var all []Move
			b := g.Board()
			for _, s := range b.AllPieces(mover) {
				for _, m := range g.ValidMoves(s.Position) {
					after := b.with(m)
					require.False(t, inCheck(&after, mover), "move %s leaves %s in check", m, mover)
					all = append(all, m)
				}
			}
			if len(all) == 0 {
				st := g.StatusOf(mover)
				require.Contains(t, []Status{StatusCheckmate, StatusStalemate}, st)
				break
			}
			require.NoError(t, g.MakeMove(all[rng.IntN(len(all))]))
			require.Equal(t, mover.Opponent(), g.Turn())
		}
	}
}

func TestEndIsMonotonic(t *testing.T) {
	g := NewGame()
	g.End()
	g.End()
	require.True(t, g.Over())
	err := g.MakeMove(mv("e2", "e4"))
	require.True(t, errors.Is(err, &IllegalMoveError{Reason: ReasonGameOver}))
}

func TestSnapshotRoundTripKeepsState(t *testing.T) {
	g := NewGame()
	play(t, g, mv("e2", "e4"))
	g.End()

	restored, err := Restore(g.Snapshot())
	require.NoError(t, err)
	require.Equal(t, g.Board(), restored.Board())
	require.Equal(t, Black, restored.Turn())
	require.True(t, restored.Over())

	require.Equal(t, "rnbqkbnr", InitialSnapshot().Board[0])
	require.Equal(t, "RNBQKBNR", InitialSnapshot().Board[7])
}

func TestBoardFromLayoutRejectsGarbage(t *testing.T) {
	layout := InitialSnapshot().Board
	layout[3] = "..x....."
	_, err := BoardFromLayout(layout)
	require.Error(t, err)

	layout[3] = "..."
	_, err = BoardFromLayout(layout)
	require.Error(t, err)
}
