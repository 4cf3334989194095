package store

import (
    "context"
    "crypto/rand"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/park285/Cheese-chess-server/internal/obslog"
)

const maxTxRetries = 8

// RedisStore keeps game records as JSON under chess:game:<id> and an index
// set of all ids under chess:games. Updates use WATCH/MULTI.
type RedisStore struct {
    rdb    *redis.Client
    ttl    time.Duration
    logger *zap.Logger
}

// NewRedisStore wraps an existing client. ttl <= 0 keeps records forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
    logger = obslog.Or(logger)
    if ttl < 0 { ttl = 0 }
    return &RedisStore{rdb: rdb, ttl: ttl, logger: logger}
}

func gameKey(id string) string { return "chess:game:" + strings.TrimSpace(id) }
func indexKey() string         { return "chess:games" }

// Get returns nil, nil when the game does not exist.
func (s *RedisStore) Get(ctx context.Context, id string) (*GameRecord, error) {
    if strings.TrimSpace(id) == "" { return nil, nil }
    raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
    if err == redis.Nil { return nil, nil }
    if err != nil { return nil, err }
    var rec GameRecord
    if err := json.Unmarshal(raw, &rec); err != nil { return nil, fmt.Errorf("decode game %s: %w", id, err) }
    return &rec, nil
}

// Put overwrites the record unconditionally.
func (s *RedisStore) Put(ctx context.Context, rec *GameRecord) error {
    if rec == nil || strings.TrimSpace(rec.ID) == "" { return ErrInvalidArg }
    raw, err := json.Marshal(rec)
    if err != nil { return err }
    pipe := s.rdb.TxPipeline()
    pipe.Set(ctx, gameKey(rec.ID), raw, s.ttl)
    pipe.SAdd(ctx, indexKey(), rec.ID)
    _, err = pipe.Exec(ctx)
    return err
}

// Update runs fn against the current record inside a WATCH transaction and
// retries when another writer got in first.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*GameRecord, error) {
    key := gameKey(id)
    var out *GameRecord
    txf := func(tx *redis.Tx) error {
        raw, err := tx.Get(ctx, key).Bytes()
        if err == redis.Nil { return ErrNotFound }
        if err != nil { return err }
        var cur GameRecord
        if err := json.Unmarshal(raw, &cur); err != nil { return fmt.Errorf("decode game %s: %w", id, err) }
        if err := fn(&cur); err != nil { return err }
        cur.UpdatedAt = time.Now()
        newRaw, err := json.Marshal(&cur)
        if err != nil { return err }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.Set(ctx, key, newRaw, s.ttl)
            return nil
        })
        if err == nil { out = &cur }
        return err
    }

    for attempt := 1; attempt <= maxTxRetries; attempt++ {
        err := s.rdb.Watch(ctx, txf, key)
        if err == nil { return out, nil }
        if !errors.Is(err, redis.TxFailedErr) { return nil, err }
        s.logger.Debug("store_update_retry", zap.String("game_id", id), zap.Int("attempt", attempt))
    }
    return nil, ErrConflict
}

// Create allocates a fresh id with SETNX and stores a new game under it.
func (s *RedisStore) Create(ctx context.Context, name string) (*GameRecord, error) {
    if strings.TrimSpace(name) == "" { return nil, ErrInvalidArg }
    for i := 0; i < 5; i++ {
        id, err := codeGen()
        if err != nil { return nil, err }
        ok, err := s.rdb.SetNX(ctx, gameKey(id), []byte("{}"), s.ttl).Result()
        if err != nil { return nil, err }
        if !ok { continue }
        rec := NewGameRecord(id, name)
        if err := s.Put(ctx, rec); err != nil { return nil, err }
        return rec, nil
    }
    return nil, fmt.Errorf("failed to allocate game id")
}

// List returns every indexed game, oldest first. Expired ids are dropped
// from the index as they are found.
func (s *RedisStore) List(ctx context.Context) ([]*GameRecord, error) {
    ids, err := s.rdb.SMembers(ctx, indexKey()).Result()
    if err != nil { return nil, err }
    out := make([]*GameRecord, 0, len(ids))
    for _, id := range ids {
        rec, err := s.Get(ctx, id)
        if err != nil { return nil, err }
        if rec == nil {
            _ = s.rdb.SRem(ctx, indexKey(), id).Err()
            continue
        }
        out = append(out, rec)
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].CreatedAt.Equal(out[j].CreatedAt) { return out[i].CreatedAt.Before(out[j].CreatedAt) }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

// codeGen returns `G-` + 6 upper alnum.
func codeGen() (string, error) {
    const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
    b := make([]byte, 6)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    for i := range b {
        b[i] = letters[int(b[i])%len(letters)]
    }
    return "G-" + string(b), nil
}

// ParseRedisURL converts redis://[:pass@]host:port/db into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" { if n, err := strconv.Atoi(p); err == nil { db = n } }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// Connect opens and pings a client for redisURL.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
    if strings.TrimSpace(redisURL) == "" {
        return nil, fmt.Errorf("REDIS_URL required")
    }
    opts, err := ParseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := rdb.Ping(pctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return rdb, nil
}
