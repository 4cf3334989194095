package store

import (
    "context"
    "sort"
    "strings"
    "sync"
    "time"
)

// MemoryStore is an in-process GameStore used when no Redis is configured
// and in tests. Records are copied on the way in and out.
type MemoryStore struct {
    mu    sync.RWMutex
    games map[string]*GameRecord
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{games: make(map[string]*GameRecord)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*GameRecord, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return m.games[strings.TrimSpace(id)].Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, rec *GameRecord) error {
    if rec == nil || strings.TrimSpace(rec.ID) == "" { return ErrInvalidArg }
    m.mu.Lock()
    m.games[rec.ID] = rec.Clone()
    m.mu.Unlock()
    return nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*GameRecord, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    cur, ok := m.games[strings.TrimSpace(id)]
    if !ok { return nil, ErrNotFound }
    work := cur.Clone()
    if err := fn(work); err != nil { return nil, err }
    work.UpdatedAt = time.Now()
    m.games[work.ID] = work
    return work.Clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, name string) (*GameRecord, error) {
    if strings.TrimSpace(name) == "" { return nil, ErrInvalidArg }
    m.mu.Lock()
    defer m.mu.Unlock()
    for i := 0; i < 5; i++ {
        id, err := codeGen()
        if err != nil { return nil, err }
        if _, taken := m.games[id]; taken { continue }
        rec := NewGameRecord(id, name)
        m.games[id] = rec
        return rec.Clone(), nil
    }
    return nil, ErrConflict
}

func (m *MemoryStore) List(ctx context.Context) ([]*GameRecord, error) {
    m.mu.RLock()
    out := make([]*GameRecord, 0, len(m.games))
    for _, g := range m.games {
        out = append(out, g.Clone())
    }
    m.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool {
        if !out[i].CreatedAt.Equal(out[j].CreatedAt) { return out[i].CreatedAt.Before(out[j].CreatedAt) }
        return out[i].ID < out[j].ID
    })
    return out, nil
}
