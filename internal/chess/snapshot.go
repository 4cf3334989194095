package chess

// Snapshot is the serializable state of a Game.
type Snapshot struct {
	Board [8]string `json:"board"`
	Turn  Color     `json:"turn"`
	Over  bool      `json:"over"`
}

// Snapshot captures the current state.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{Board: g.board.Layout(), Turn: g.turn, Over: g.over}
}

// Restore rebuilds a Game from a snapshot.
func Restore(s Snapshot) (*Game, error) {
	b, err := BoardFromLayout(s.Board)
	if err != nil {
		return nil, err
	}
	g := NewGameFromBoard(b, s.Turn)
	g.over = s.Over
	return g, nil
}

// InitialSnapshot is the snapshot of a freshly created game.
func InitialSnapshot() Snapshot { return NewGame().Snapshot() }
