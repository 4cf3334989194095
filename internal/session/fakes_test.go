package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/park285/Cheese-chess-server/internal/store"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

type fakeAuth map[string]string

func (f fakeAuth) Resolve(_ context.Context, token string) (string, bool, error) {
	who, ok := f[token]
	return who, ok, nil
}

type recordingConn struct {
	name string
	mu   sync.Mutex
	msgs []*chessdto.ServerMessage
	fail bool
}

var errClosed = errors.New("connection closed")

func (c *recordingConn) Send(_ context.Context, msg *chessdto.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errClosed
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *recordingConn) take() []*chessdto.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.msgs
	c.msgs = nil
	return out
}

func (c *recordingConn) breakConn() {
	c.mu.Lock()
	c.fail = true
	c.mu.Unlock()
}

type fakeArchive struct {
	mu    sync.Mutex
	saved []*store.GameRecord
}

func (a *fakeArchive) SaveResult(_ context.Context, rec *store.GameRecord) error {
	a.mu.Lock()
	a.saved = append(a.saved, rec.Clone())
	a.mu.Unlock()
	return nil
}

func ofType(msgs []*chessdto.ServerMessage, t chessdto.ServerMessageType) []*chessdto.ServerMessage {
	var out []*chessdto.ServerMessage
	for _, m := range msgs {
		if m.ServerMessageType == t {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	t       *testing.T
	coord   *Coordinator
	games   *store.MemoryStore
	archive *fakeArchive
	gameID  string
}

// newHarness creates one game with alice as White and bob as Black; carol is
// a registered observer.
func newHarness(t *testing.T) *harness {
	t.Helper()
	games := store.NewMemoryStore()
	rec, err := games.Create(context.Background(), "test game")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec.WhiteID, rec.BlackID = "alice", "bob"
	if err := games.Put(context.Background(), rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	arch := &fakeArchive{}
	auth := fakeAuth{"tok-alice": "alice", "tok-bob": "bob", "tok-carol": "carol"}
	c := New(auth, games, Options{Archiver: arch})
	return &harness{t: t, coord: c, games: games, archive: arch, gameID: rec.ID}
}

func (h *harness) cmd(typ chessdto.CommandType, token string) chessdto.Command {
	return chessdto.Command{CommandType: typ, AuthToken: token, GameID: h.gameID}
}

func (h *harness) connect(token string) *recordingConn {
	h.t.Helper()
	conn := &recordingConn{name: token}
	if err := h.coord.Handle(context.Background(), conn, h.cmd(chessdto.CommandConnect, token)); err != nil {
		h.t.Fatalf("connect %s: %v", token, err)
	}
	return conn
}

func (h *harness) move(conn *recordingConn, token, from, to string, promo string) error {
	c := h.cmd(chessdto.CommandMakeMove, token)
	c.Move = &chessdto.Move{
		StartPosition:  chessdto.Position{Row: int(from[1] - '0'), Col: int(from[0]-'a') + 1},
		EndPosition:    chessdto.Position{Row: int(to[1] - '0'), Col: int(to[0]-'a') + 1},
		PromotionPiece: promo,
	}
	return h.coord.Handle(context.Background(), conn, c)
}

func (h *harness) record() *store.GameRecord {
	h.t.Helper()
	rec, err := h.games.Get(context.Background(), h.gameID)
	if err != nil || rec == nil {
		h.t.Fatalf("Get: %v %v", rec, err)
	}
	return rec
}
