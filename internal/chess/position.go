package chess

import "fmt"

// Color identifies a side.
type Color uint8

const (
	White Color = iota + 1
	Black
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	switch c {
	case White:
		return "WHITE"
	case Black:
		return "BLACK"
	default:
		return ""
	}
}

// ParseColor accepts WHITE/BLACK in any case, plus the w/b shorthands.
func ParseColor(s string) (Color, error) {
	switch s {
	case "WHITE", "White", "white", "w", "W":
		return White, nil
	case "BLACK", "Black", "black", "b", "B":
		return Black, nil
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

func (c Color) MarshalText() ([]byte, error) {
	if c != White && c != Black {
		return nil, fmt.Errorf("invalid color %d", c)
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Kind is a piece type. The zero Kind means "no piece" / "no promotion".
type Kind uint8

const (
	NoKind Kind = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

// PromotionKinds lists the kinds a pawn may become, in generation order.
var PromotionKinds = [...]Kind{Queen, Rook, Bishop, Knight}

func (k Kind) String() string {
	switch k {
	case King:
		return "KING"
	case Queen:
		return "QUEEN"
	case Rook:
		return "ROOK"
	case Bishop:
		return "BISHOP"
	case Knight:
		return "KNIGHT"
	case Pawn:
		return "PAWN"
	default:
		return ""
	}
}

// ParseKind accepts the upper-case kind names used on the wire.
func ParseKind(s string) (Kind, error) {
	for k := King; k <= Pawn; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return NoKind, fmt.Errorf("unknown piece kind %q", s)
}

// Piece is an immutable (color, kind) pair. The zero Piece is an empty square.
type Piece struct {
	Color Color
	Kind  Kind
}

func (p Piece) IsZero() bool { return p.Kind == NoKind }

// Letter returns the FEN letter: upper case for White, lower case for Black.
func (p Piece) Letter() byte {
	var l byte
	switch p.Kind {
	case King:
		l = 'K'
	case Queen:
		l = 'Q'
	case Rook:
		l = 'R'
	case Bishop:
		l = 'B'
	case Knight:
		l = 'N'
	case Pawn:
		l = 'P'
	default:
		return '.'
	}
	if p.Color == Black {
		l += 'a' - 'A'
	}
	return l
}

// PieceFromLetter is the inverse of Letter. '.' yields the zero Piece.
func PieceFromLetter(l byte) (Piece, error) {
	if l == '.' {
		return Piece{}, nil
	}
	c := White
	if l >= 'a' && l <= 'z' {
		c = Black
		l -= 'a' - 'A'
	}
	var k Kind
	switch l {
	case 'K':
		k = King
	case 'Q':
		k = Queen
	case 'R':
		k = Rook
	case 'B':
		k = Bishop
	case 'N':
		k = Knight
	case 'P':
		k = Pawn
	default:
		return Piece{}, fmt.Errorf("unknown piece letter %q", l)
	}
	return Piece{Color: c, Kind: k}, nil
}

// Position is a (row, col) square, both 1-based. Row 1 is White's back rank.
type Position struct {
	Row int
	Col int
}

func Pos(row, col int) Position { return Position{Row: row, Col: col} }

// Valid reports whether both coordinates lie in [1,8].
func (p Position) Valid() bool {
	return p.Row >= 1 && p.Row <= 8 && p.Col >= 1 && p.Col <= 8
}

func (p Position) offset(dr, dc int) Position {
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

func (p Position) String() string {
	if !p.Valid() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return string([]byte{byte('a' + p.Col - 1), byte('0' + p.Row)})
}

// Move describes a single piece movement. Promotion is NoKind unless a pawn
// reaches the far rank.
type Move struct {
	Start     Position
	End       Position
	Promotion Kind
}

func (m Move) String() string {
	s := m.Start.String() + m.End.String()
	if m.Promotion != NoKind {
		s += "=" + string(Piece{Color: White, Kind: m.Promotion}.Letter())
	}
	return s
}
