package chess

import "errors"

// Reasons carried by IllegalMoveError, in the order MakeMove checks them.
const (
	ReasonGameOver  = "game already over"
	ReasonNoPiece   = "no piece"
	ReasonWrongTurn = "wrong turn"
	ReasonNotLegal  = "move not legal"
)

// IllegalMoveError is returned by MakeMove when a move is rejected. The game
// is left unchanged.
type IllegalMoveError struct {
	Reason string
	Move   Move
}

func (e *IllegalMoveError) Error() string {
	return "illegal move " + e.Move.String() + ": " + e.Reason
}

// Is matches another IllegalMoveError with the same reason, so
// errors.Is(err, &IllegalMoveError{Reason: ReasonWrongTurn}) works.
func (e *IllegalMoveError) Is(target error) bool {
	var t *IllegalMoveError
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// IsIllegalMove reports whether err is an IllegalMoveError and returns it.
func IsIllegalMove(err error) (*IllegalMoveError, bool) {
	var e *IllegalMoveError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
