package chess

import (
	"fmt"
	"strings"
)

// Board is an 8x8 grid held by value, so assigning a Board copies it.
// squares[row-1][col-1] holds the piece on (row, col).
type Board struct {
	squares [8][8]Piece
}

// Square pairs a piece with the position it occupies.
type Square struct {
	Position Position
	Piece    Piece
}

var backRank = [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewStandardBoard returns the initial chess setup.
func NewStandardBoard() Board {
	var b Board
	for col := 1; col <= 8; col++ {
		b.Place(Pos(1, col), Piece{Color: White, Kind: backRank[col-1]})
		b.Place(Pos(2, col), Piece{Color: White, Kind: Pawn})
		b.Place(Pos(7, col), Piece{Color: Black, Kind: Pawn})
		b.Place(Pos(8, col), Piece{Color: Black, Kind: backRank[col-1]})
	}
	return b
}

// Place puts p on pos; the zero Piece clears the square. Out-of-range
// positions are ignored.
func (b *Board) Place(pos Position, p Piece) {
	if !pos.Valid() {
		return
	}
	b.squares[pos.Row-1][pos.Col-1] = p
}

// Clear empties pos.
func (b *Board) Clear(pos Position) { b.Place(pos, Piece{}) }

// Get returns the piece at pos and whether the square is occupied.
func (b *Board) Get(pos Position) (Piece, bool) {
	if !pos.Valid() {
		return Piece{}, false
	}
	p := b.squares[pos.Row-1][pos.Col-1]
	return p, !p.IsZero()
}

// PositionOf returns the first square holding p, scanning row by row from (1,1).
func (b *Board) PositionOf(p Piece) (Position, bool) {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if b.squares[r][c] == p {
				return Pos(r+1, c+1), true
			}
		}
	}
	return Position{}, false
}

// AllPieces lists every piece of color c with its square.
func (b *Board) AllPieces(c Color) []Square {
	out := make([]Square, 0, 16)
	for r := 0; r < 8; r++ {
		for col := 0; col < 8; col++ {
			p := b.squares[r][col]
			if !p.IsZero() && p.Color == c {
				out = append(out, Square{Position: Pos(r+1, col+1), Piece: p})
			}
		}
	}
	return out
}

// apply moves the piece on m.Start to m.End, promoting if requested.
// It performs no legality checks.
func (b *Board) apply(m Move) {
	p, ok := b.Get(m.Start)
	if !ok {
		return
	}
	if m.Promotion != NoKind {
		p.Kind = m.Promotion
	}
	b.Clear(m.Start)
	b.Place(m.End, p)
}

// with returns a copy of b with m applied; b itself is untouched.
func (b Board) with(m Move) Board {
	b.apply(m)
	return b
}

// Layout renders the board as 8 strings, rank 8 first, using FEN letters
// and '.' for empty squares.
func (b *Board) Layout() [8]string {
	var out [8]string
	for i := 0; i < 8; i++ {
		row := 8 - i
		buf := make([]byte, 8)
		for c := 0; c < 8; c++ {
			buf[c] = b.squares[row-1][c].Letter()
		}
		out[i] = string(buf)
	}
	return out
}

// BoardFromLayout parses the output of Layout.
func BoardFromLayout(layout [8]string) (Board, error) {
	var b Board
	for i, line := range layout {
		if len(line) != 8 {
			return Board{}, fmt.Errorf("rank %d: want 8 squares, got %d", 8-i, len(line))
		}
		for c := 0; c < 8; c++ {
			p, err := PieceFromLetter(line[c])
			if err != nil {
				return Board{}, fmt.Errorf("rank %d: %w", 8-i, err)
			}
			b.Place(Pos(8-i, c+1), p)
		}
	}
	return b, nil
}

func (b Board) String() string {
	l := b.Layout()
	return strings.Join(l[:], "\n")
}
