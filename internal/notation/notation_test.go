package notation

import (
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/stretchr/testify/require"

	"github.com/park285/Cheese-chess-server/internal/chess"
)

func TestUCIRoundTrip(t *testing.T) {
	cases := []string{"e2e4", "g8f6", "a7a8q", "h2h1n"}
	for _, c := range cases {
		m, err := ParseUCI(c)
		require.NoError(t, err, c)
		require.Equal(t, c, FormatUCI(m))
	}
	for _, bad := range []string{"", "e2", "e2e9", "i2e4", "a7a8k", "e2e4qq"} {
		_, err := ParseUCI(bad)
		require.Error(t, err, bad)
	}
}

func TestReplayProducesSAN(t *testing.T) {
	tr, err := Replay([]string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"})
	require.NoError(t, err)
	require.Equal(t, []string{"e4", "e5", "Nf3", "Nc6", "Bb5"}, tr.SAN)
	require.True(t, strings.HasPrefix(tr.FEN, "r1bqkbnr/pppp1ppp/2n5/1B2p3/4P3/5N2/PPPP1PPP/RNBQK2R b"), tr.FEN)
}

func TestReplayRejectsIllegal(t *testing.T) {
	_, err := Replay([]string{"e2e5"})
	require.Error(t, err)
}

func placement(fen string) string { return strings.Fields(fen)[0] }

// The engine and the reference library agree on legal move counts along a
// game, once castling and en passant (which the engine does not play) are
// discounted.
func TestEngineAgreesWithReferenceLibrary(t *testing.T) {
	line := []string{
		"e2e4", "d7d5", "e4d5", "d8d5", "b1c3", "d5a5", "d2d4", "c7c6",
		"g1f3", "c8g4", "f1e2", "e7e6", "c1d2", "f8b4", "a2a3", "b4c3",
		"d2c3", "a5c7", "h2h3", "g4h5", "d1d2", "g8f6", "e1c1",
	}
	g := chess.NewGame()
	ref := nchess.NewGame()
	for i, uci := range line {
		if uci == "e1c1" {
			// castling: the engine stops here
			break
		}
		require.Equal(t, referenceCount(ref), engineCount(g), "ply %d before %s", i, uci)
		require.Equal(t, placement(ref.FEN()), placement(FEN(g.Snapshot())), "ply %d", i)

		m, err := ParseUCI(uci)
		require.NoError(t, err)
		require.NoError(t, g.MakeMove(m), uci)
		require.NoError(t, ref.PushNotationMove(uci, nchess.UCINotation{}, nil), uci)
	}
}

func TestCheckmateAgreesWithReferenceLibrary(t *testing.T) {
	line := []string{"f2f3", "e7e5", "g2g4", "d8h4"}
	g := chess.NewGame()
	ref := nchess.NewGame()
	for _, uci := range line {
		m, err := ParseUCI(uci)
		require.NoError(t, err)
		require.NoError(t, g.MakeMove(m))
		require.NoError(t, ref.PushNotationMove(uci, nchess.UCINotation{}, nil))
	}
	require.Equal(t, nchess.BlackWon, ref.Outcome())
	require.True(t, g.IsInCheckmate(chess.White))
}

func engineCount(g *chess.Game) int {
	n := 0
	b := g.Board()
	for _, s := range b.AllPieces(g.Turn()) {
		n += len(g.ValidMoves(s.Position))
	}
	return n
}

func referenceCount(g *nchess.Game) int {
	n := 0
	for _, m := range g.ValidMoves() {
		if m.HasTag(nchess.KingSideCastle) || m.HasTag(nchess.QueenSideCastle) || m.HasTag(nchess.EnPassant) {
			continue
		}
		n++
	}
	return n
}

func TestFENOfInitialSnapshot(t *testing.T) {
	require.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1", FEN(chess.InitialSnapshot()))
}
