package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisService stores users as hashes under chess:user:<name> and tokens
// as plain keys under chess:token:<token> expiring after ttl.
func NewRedisService(rdb *redis.Client, ttl time.Duration, opts ...Option) *Service {
	return newService(&redisBackend{rdb: rdb}, ttl, opts...)
}

// NewMemoryService keeps everything in process.
func NewMemoryService(ttl time.Duration, opts ...Option) *Service {
	return newService(newMemoryBackend(), ttl, opts...)
}

type redisBackend struct{ rdb *redis.Client }

func userKey(name string) string   { return "chess:user:" + strings.ToLower(strings.TrimSpace(name)) }
func tokenKey(token string) string { return "chess:token:" + strings.TrimSpace(token) }

func (b *redisBackend) createUser(ctx context.Context, username, hash, email string) (bool, error) {
	key := userKey(username)
	ok, err := b.rdb.HSetNX(ctx, key, "password", hash).Result()
	if err != nil || !ok {
		return false, err
	}
	err = b.rdb.HSet(ctx, key, "username", username, "email", email, "created_at", time.Now().UTC().Format(time.RFC3339)).Err()
	return err == nil, err
}

func (b *redisBackend) passwordHash(ctx context.Context, username string) (string, bool, error) {
	h, err := b.rdb.HGet(ctx, userKey(username), "password").Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

func (b *redisBackend) putToken(ctx context.Context, token, username string, ttl time.Duration) error {
	return b.rdb.Set(ctx, tokenKey(token), username, ttl).Err()
}

func (b *redisBackend) tokenUser(ctx context.Context, token string) (string, bool, error) {
	u, err := b.rdb.Get(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u, true, nil
}

func (b *redisBackend) deleteToken(ctx context.Context, token string) (bool, error) {
	n, err := b.rdb.Del(ctx, tokenKey(token)).Result()
	return n > 0, err
}

type memoryToken struct {
	username string
	expires  time.Time
}

type memoryBackend struct {
	mu     sync.Mutex
	users  map[string]string
	tokens map[string]memoryToken
	now    func() time.Time
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{users: map[string]string{}, tokens: map[string]memoryToken{}, now: time.Now}
}

func (b *memoryBackend) createUser(_ context.Context, username, hash, _ string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(username)
	if _, taken := b.users[key]; taken {
		return false, nil
	}
	b.users[key] = hash
	return true, nil
}

func (b *memoryBackend) passwordHash(_ context.Context, username string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.users[strings.ToLower(username)]
	return h, ok, nil
}

func (b *memoryBackend) putToken(_ context.Context, token, username string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := memoryToken{username: username}
	if ttl > 0 {
		t.expires = b.now().Add(ttl)
	}
	b.tokens[token] = t
	return nil
}

func (b *memoryBackend) tokenUser(_ context.Context, token string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tokens[token]
	if !ok {
		return "", false, nil
	}
	if !t.expires.IsZero() && b.now().After(t.expires) {
		delete(b.tokens, token)
		return "", false, nil
	}
	return t.username, true, nil
}

func (b *memoryBackend) deleteToken(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tokens[token]
	delete(b.tokens, token)
	return ok, nil
}
