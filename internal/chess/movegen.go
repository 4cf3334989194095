package chess

// generator produces pseudo-legal moves: movement pattern plus blocking and
// capture rules, ignoring the safety of the mover's own king.
type generator interface {
	pseudoLegal(b *Board, from Position, p Piece) []Move
}

type offset struct{ dr, dc int }

var (
	orthogonal = []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonal   = []offset{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	allAround  = append(append([]offset{}, orthogonal...), diagonal...)
	knightHops = []offset{{2, 1}, {2, -1}, {-2, 1}, {-2, -1}, {1, 2}, {1, -2}, {-1, 2}, {-1, -2}}
)

var generators = map[Kind]generator{
	Rook:   slider{rays: orthogonal},
	Bishop: slider{rays: diagonal},
	Queen:  slider{rays: allAround},
	Knight: leaper{hops: knightHops},
	King:   leaper{hops: allAround},
	Pawn:   pawn{},
}

// PseudoLegalMoves returns the pseudo-legal moves of the piece on from, or
// nil when the square is empty.
func PseudoLegalMoves(b *Board, from Position) []Move {
	p, ok := b.Get(from)
	if !ok {
		return nil
	}
	g, ok := generators[p.Kind]
	if !ok {
		return nil
	}
	return g.pseudoLegal(b, from, p)
}

// slider walks each ray until it leaves the board or hits a piece.
type slider struct{ rays []offset }

func (s slider) pseudoLegal(b *Board, from Position, p Piece) []Move {
	var out []Move
	for _, d := range s.rays {
		for to := from.offset(d.dr, d.dc); to.Valid(); to = to.offset(d.dr, d.dc) {
			occ, taken := b.Get(to)
			if taken {
				if occ.Color != p.Color {
					out = append(out, Move{Start: from, End: to})
				}
				break
			}
			out = append(out, Move{Start: from, End: to})
		}
	}
	return out
}

// leaper jumps to a fixed set of offsets.
type leaper struct{ hops []offset }

func (l leaper) pseudoLegal(b *Board, from Position, p Piece) []Move {
	var out []Move
	for _, d := range l.hops {
		to := from.offset(d.dr, d.dc)
		if !to.Valid() {
			continue
		}
		if occ, taken := b.Get(to); taken && occ.Color == p.Color {
			continue
		}
		out = append(out, Move{Start: from, End: to})
	}
	return out
}

type pawn struct{}

func pawnRanks(c Color) (dir, start, last int) {
	if c == White {
		return 1, 2, 8
	}
	return -1, 7, 1
}

func (pawn) pseudoLegal(b *Board, from Position, p Piece) []Move {
	dir, start, last := pawnRanks(p.Color)
	var out []Move
	add := func(to Position) {
		if to.Row == last {
			for _, k := range PromotionKinds {
				out = append(out, Move{Start: from, End: to, Promotion: k})
			}
			return
		}
		out = append(out, Move{Start: from, End: to})
	}

	one := from.offset(dir, 0)
	if _, taken := b.Get(one); one.Valid() && !taken {
		add(one)
		two := from.offset(2*dir, 0)
		if _, taken := b.Get(two); from.Row == start && two.Valid() && !taken {
			add(two)
		}
	}
	for _, dc := range [...]int{-1, 1} {
		to := from.offset(dir, dc)
		if occ, taken := b.Get(to); taken && occ.Color != p.Color {
			add(to)
		}
	}
	return out
}
