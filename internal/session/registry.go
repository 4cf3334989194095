package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-server/internal/obslog"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// Conn is a live transport handle for one client connection.
type Conn interface {
	Send(ctx context.Context, msg *chessdto.ServerMessage) error
}

// Role is a participant's relation to a game.
type Role uint8

const (
	RoleObserver Role = iota
	RoleWhite
	RoleBlack
)

func (r Role) String() string {
	switch r {
	case RoleWhite:
		return "WHITE"
	case RoleBlack:
		return "BLACK"
	default:
		return "OBSERVER"
	}
}

// Binding ties an identity to a game through one connection.
type Binding struct {
	Identity string
	GameID   string
	Role     Role
	Conn     Conn

	dead atomic.Bool
}

// Dead reports whether a send to this binding has failed.
func (b *Binding) Dead() bool { return b.dead.Load() }

const registryShards = 32

type registryShard struct {
	mu    sync.RWMutex
	games map[string]map[string]*Binding // game id -> identity -> binding
}

// Registry maps (game, identity) to bindings. Games are spread over
// independently locked shards, so traffic for one game never waits on another
// game's lock.
//
// Dead-handle policy: a send that fails marks its binding dead. Dead bindings
// are skipped by every later send and removed from the registry at the end of
// the operation that found them; nothing is retried.
type Registry struct {
	shards      [registryShards]registryShard
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewRegistry bounds every send by sendTimeout (default 5s).
func NewRegistry(sendTimeout time.Duration, logger *zap.Logger) *Registry {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	logger = obslog.Or(logger)
	r := &Registry{sendTimeout: sendTimeout, logger: logger}
	for i := range r.shards {
		r.shards[i].games = make(map[string]map[string]*Binding)
	}
	return r
}

func (r *Registry) shard(gameID string) *registryShard {
	return &r.shards[xxhash.Sum64String(gameID)%registryShards]
}

// Add registers b, replacing any earlier binding for the same identity in
// the same game. The replaced binding is returned.
func (r *Registry) Add(b *Binding) *Binding {
	s := r.shard(b.GameID)
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.games[b.GameID]
	if !ok {
		members = make(map[string]*Binding)
		s.games[b.GameID] = members
	}
	prev := members[b.Identity]
	members[b.Identity] = b
	return prev
}

// Remove drops the binding for identity in gameID.
func (r *Registry) Remove(gameID, identity string) (*Binding, bool) {
	s := r.shard(gameID)
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.games[gameID]
	b, ok := members[identity]
	if !ok {
		return nil, false
	}
	delete(members, identity)
	if len(members) == 0 {
		delete(s.games, gameID)
	}
	return b, true
}

// RemoveConn drops every binding that uses conn and returns them.
func (r *Registry) RemoveConn(conn Conn) []*Binding {
	var out []*Binding
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for gameID, members := range s.games {
			for id, b := range members {
				if b.Conn == conn {
					out = append(out, b)
					delete(members, id)
				}
			}
			if len(members) == 0 {
				delete(s.games, gameID)
			}
		}
		s.mu.Unlock()
	}
	return out
}

// Bindings returns a snapshot of the live bindings of gameID.
func (r *Registry) Bindings(gameID string) []*Binding {
	s := r.shard(gameID)
	s.mu.RLock()
	all := lo.Values(s.games[gameID])
	s.mu.RUnlock()
	return lo.Filter(all, func(b *Binding, _ int) bool { return !b.Dead() })
}

// Lookup returns the binding for identity in gameID.
func (r *Registry) Lookup(gameID, identity string) (*Binding, bool) {
	s := r.shard(gameID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.games[gameID][identity]
	if !ok || b.Dead() {
		return nil, false
	}
	return b, true
}

// Broadcast sends msg to every live binding of gameID except the one held by
// exclude (pass "" to reach everyone). It returns the number of successful
// deliveries.
func (r *Registry) Broadcast(ctx context.Context, gameID, exclude string, msg *chessdto.ServerMessage) int {
	targets := lo.Filter(r.Bindings(gameID), func(b *Binding, _ int) bool { return b.Identity != exclude })
	delivered := 0
	var dead []*Binding
	for _, b := range targets {
		if err := r.send(ctx, b, msg); err != nil {
			dead = append(dead, b)
			continue
		}
		delivered++
	}
	r.sweep(gameID, dead)
	return delivered
}

// SendTo delivers msg to one identity's binding in gameID.
func (r *Registry) SendTo(ctx context.Context, gameID, identity string, msg *chessdto.ServerMessage) error {
	b, ok := r.Lookup(gameID, identity)
	if !ok {
		return errNoBinding
	}
	if err := r.send(ctx, b, msg); err != nil {
		r.sweep(gameID, []*Binding{b})
		return err
	}
	return nil
}

func (r *Registry) send(ctx context.Context, b *Binding, msg *chessdto.ServerMessage) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sendTimeout)
	defer cancel()
	if err := b.Conn.Send(sctx, msg); err != nil {
		b.dead.Store(true)
		r.logger.Warn("registry_send_failed",
			zap.String("game_id", b.GameID),
			zap.String("user", b.Identity),
			zap.String("message_type", string(msg.ServerMessageType)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// sweep removes dead bindings, leaving any newer binding for the same
// identity in place.
func (r *Registry) sweep(gameID string, dead []*Binding) {
	if len(dead) == 0 {
		return
	}
	s := r.shard(gameID)
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.games[gameID]
	for _, b := range dead {
		if cur, ok := members[b.Identity]; ok && cur == b {
			delete(members, b.Identity)
		}
	}
	if members != nil && len(members) == 0 {
		delete(s.games, gameID)
	}
}
