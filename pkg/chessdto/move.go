package chessdto

// Position is a 1-based (row, col) square. Row 1 is White's back rank.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move is the wire form of a move. PromotionPiece is one of QUEEN, ROOK,
// BISHOP, KNIGHT or empty.
type Move struct {
	StartPosition  Position `json:"startPosition"`
	EndPosition    Position `json:"endPosition"`
	PromotionPiece string   `json:"promotionPiece,omitempty"`
}
