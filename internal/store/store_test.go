package store

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"

    "github.com/park285/Cheese-chess-server/internal/chess"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(mr.Close)
    rdb, err := Connect(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
    if err != nil { t.Fatalf("Connect: %v", err) }
    t.Cleanup(func() { _ = rdb.Close() })
    return NewRedisStore(rdb, 0, nil), mr
}

func eachStore(t *testing.T, fn func(t *testing.T, s GameStore)) {
    t.Run("redis", func(t *testing.T) {
        s, _ := newRedisStore(t)
        fn(t, s)
    })
    t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestCreateGetList(t *testing.T) {
    eachStore(t, func(t *testing.T, s GameStore) {
        ctx := context.Background()
        a, err := s.Create(ctx, "first")
        if err != nil { t.Fatalf("Create: %v", err) }
        if !strings.HasPrefix(a.ID, "G-") || len(a.ID) != 8 { t.Fatalf("unexpected id %q", a.ID) }
        if a.State.Turn != chess.White || a.State.Over { t.Fatalf("new game state = %+v", a.State) }

        time.Sleep(2 * time.Millisecond)
        b, err := s.Create(ctx, "second")
        if err != nil { t.Fatalf("Create: %v", err) }

        got, err := s.Get(ctx, a.ID)
        if err != nil || got == nil { t.Fatalf("Get: %v %v", got, err) }
        if got.Name != "first" || got.State.Board != chess.InitialSnapshot().Board {
            t.Fatalf("round trip mismatch: %+v", got)
        }

        list, err := s.List(ctx)
        if err != nil { t.Fatalf("List: %v", err) }
        if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
            t.Fatalf("List order: %+v", list)
        }

        missing, err := s.Get(ctx, "G-NOPE00")
        if err != nil || missing != nil { t.Fatalf("missing game: %v %v", missing, err) }

        if _, err := s.Create(ctx, "  "); !errors.Is(err, ErrInvalidArg) { t.Fatalf("blank name: %v", err) }
    })
}

func TestUpdateAppliesAndAborts(t *testing.T) {
    eachStore(t, func(t *testing.T, s GameStore) {
        ctx := context.Background()
        rec, err := s.Create(ctx, "g")
        if err != nil { t.Fatalf("Create: %v", err) }

        out, err := s.Update(ctx, rec.ID, func(r *GameRecord) error {
            r.SetSeat(chess.White, "alice")
            return nil
        })
        if err != nil { t.Fatalf("Update: %v", err) }
        if out.WhiteID != "alice" { t.Fatalf("returned record not updated: %+v", out) }

        boom := errors.New("boom")
        if _, err := s.Update(ctx, rec.ID, func(r *GameRecord) error {
            r.SetSeat(chess.Black, "bob")
            return boom
        }); !errors.Is(err, boom) {
            t.Fatalf("want boom, got %v", err)
        }
        got, _ := s.Get(ctx, rec.ID)
        if got.WhiteID != "alice" || got.BlackID != "" { t.Fatalf("aborted update leaked: %+v", got) }

        if _, err := s.Update(ctx, "G-NOPE00", func(*GameRecord) error { return nil }); !errors.Is(err, ErrNotFound) {
            t.Fatalf("want ErrNotFound, got %v", err)
        }
    })
}

func TestGetReturnsCopies(t *testing.T) {
    eachStore(t, func(t *testing.T, s GameStore) {
        ctx := context.Background()
        rec, _ := s.Create(ctx, "g")
        got, _ := s.Get(ctx, rec.ID)
        got.MovesUCI = append(got.MovesUCI, "e2e4")
        got.WhiteID = "mallory"
        again, _ := s.Get(ctx, rec.ID)
        if again.WhiteID != "" || len(again.MovesUCI) != 0 { t.Fatalf("store aliased caller memory: %+v", again) }
    })
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
    eachStore(t, func(t *testing.T, s GameStore) {
        ctx := context.Background()
        rec, _ := s.Create(ctx, "g")
        var ok atomic.Int64
        var wg sync.WaitGroup
        for w := 0; w < 4; w++ {
            wg.Add(1)
            go func(w int) {
                defer wg.Done()
                for i := 0; i < 10; i++ {
                    _, err := s.Update(ctx, rec.ID, func(r *GameRecord) error {
                        r.MovesUCI = append(r.MovesUCI, fmt.Sprintf("w%d-%d", w, i))
                        return nil
                    })
                    if err == nil {
                        ok.Add(1)
                    } else if !errors.Is(err, ErrConflict) {
                        t.Errorf("Update: %v", err)
                    }
                }
            }(w)
        }
        wg.Wait()
        got, _ := s.Get(ctx, rec.ID)
        if int64(len(got.MovesUCI)) != ok.Load() {
            t.Fatalf("lost updates: %d moves stored, %d successful updates", len(got.MovesUCI), ok.Load())
        }
    })
}

func TestRedisListDropsExpiredIDs(t *testing.T) {
    s, mr := newRedisStore(t)
    ctx := context.Background()
    rec, _ := s.Create(ctx, "g")
    mr.Del(gameKey(rec.ID))

    list, err := s.List(ctx)
    if err != nil { t.Fatalf("List: %v", err) }
    if len(list) != 0 { t.Fatalf("expected empty list, got %d", len(list)) }
    if ok, _ := mr.SIsMember(indexKey(), rec.ID); ok { t.Fatalf("stale id still indexed") }
}

func TestRedisTTLApplied(t *testing.T) {
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    defer mr.Close()
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    defer rdb.Close()
    s := NewRedisStore(rdb, time.Hour, nil)

    rec, err := s.Create(context.Background(), "g")
    if err != nil { t.Fatalf("Create: %v", err) }
    if ttl := mr.TTL(gameKey(rec.ID)); ttl != time.Hour { t.Fatalf("ttl = %v", ttl) }
    mr.FastForward(2 * time.Hour)
    if got, _ := s.Get(context.Background(), rec.ID); got != nil { t.Fatalf("expected expiry") }
}

func TestParseRedisURL(t *testing.T) {
    opts, err := ParseRedisURL("redis://:secret@localhost:6380/3")
    if err != nil { t.Fatalf("ParseRedisURL: %v", err) }
    if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 3 {
        t.Fatalf("unexpected options: %+v", opts)
    }
    if _, err := ParseRedisURL("http://localhost"); err == nil { t.Fatalf("expected scheme error") }
}
