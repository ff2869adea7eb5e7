package store

import (
    "cmp"
    "context"
    "slices"
    "strings"
    "sync"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

// Memory is a single-process store. Transactions are serialised by one mutex
// and operate on a copy of the data that replaces the original on commit.
type Memory struct {
    mu   sync.Mutex
    data *memData
}

type memData struct {
    rooms map[string]*domain.Room
    codes map[string]string // code -> room id
    games map[string]*domain.Game // room id -> game
    stats map[string]*domain.UserStats
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
    return &Memory{data: &memData{
        rooms: make(map[string]*domain.Room),
        codes: make(map[string]string),
        games: make(map[string]*domain.Game),
        stats: make(map[string]*domain.UserStats),
    }}
}

func (d *memData) clone() *memData {
    cp := &memData{
        rooms: make(map[string]*domain.Room, len(d.rooms)),
        codes: make(map[string]string, len(d.codes)),
        games: make(map[string]*domain.Game, len(d.games)),
        stats: make(map[string]*domain.UserStats, len(d.stats)),
    }
    for k, v := range d.rooms {
        cp.rooms[k] = v.Clone()
    }
    for k, v := range d.codes {
        cp.codes[k] = v
    }
    for k, v := range d.games {
        cp.games[k] = v.Clone()
    }
    for k, v := range d.stats {
        s := *v
        cp.stats[k] = &s
    }
    return cp
}

func (m *Memory) Tx(ctx context.Context, fn func(tx Tx) error) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if err := ctx.Err(); err != nil {
        return err
    }
    work := m.data.clone()
    if err := fn(&memTx{memReader{work}}); err != nil {
        return err
    }
    m.data = work
    return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) reader() memReader {
    return memReader{m.data}
}

func (m *Memory) Room(ctx context.Context, id string) (*domain.Room, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.reader().Room(ctx, id)
}

func (m *Memory) RoomByCode(ctx context.Context, code string) (*domain.Room, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.reader().RoomByCode(ctx, code)
}

func (m *Memory) Rooms(ctx context.Context, statuses ...domain.RoomStatus) ([]*domain.Room, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.reader().Rooms(ctx, statuses...)
}

func (m *Memory) Game(ctx context.Context, roomID string) (*domain.Game, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.reader().Game(ctx, roomID)
}

func (m *Memory) Stats(ctx context.Context, userID string) (*domain.UserStats, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.reader().Stats(ctx, userID)
}

func (m *Memory) TopStats(ctx context.Context, limit int) ([]*domain.UserStats, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.reader().TopStats(ctx, limit)
}

// memReader reads from d and returns copies. Callers hold the store mutex.
type memReader struct {
    d *memData
}

func (r memReader) Room(_ context.Context, id string) (*domain.Room, error) {
    room, ok := r.d.rooms[id]
    if !ok {
        return nil, domain.ErrRoomNotFound
    }
    return room.Clone(), nil
}

func (r memReader) RoomByCode(ctx context.Context, code string) (*domain.Room, error) {
    id, ok := r.d.codes[strings.ToUpper(code)]
    if !ok {
        return nil, domain.ErrRoomNotFound
    }
    return r.Room(ctx, id)
}

func (r memReader) Rooms(_ context.Context, statuses ...domain.RoomStatus) ([]*domain.Room, error) {
    var out []*domain.Room
    for _, room := range r.d.rooms {
        if len(statuses) == 0 || slices.Contains(statuses, room.Status) {
            out = append(out, room.Clone())
        }
    }
    slices.SortFunc(out, func(a, b *domain.Room) int {
        if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
            return c
        }
        return cmp.Compare(a.ID, b.ID)
    })
    return out, nil
}

func (r memReader) Game(_ context.Context, roomID string) (*domain.Game, bool, error) {
    g, ok := r.d.games[roomID]
    if !ok {
        return nil, false, nil
    }
    return g.Clone(), true, nil
}

func (r memReader) Stats(_ context.Context, userID string) (*domain.UserStats, bool, error) {
    s, ok := r.d.stats[userID]
    if !ok {
        return nil, false, nil
    }
    cp := *s
    return &cp, true, nil
}

func (r memReader) TopStats(_ context.Context, limit int) ([]*domain.UserStats, error) {
    out := make([]*domain.UserStats, 0, len(r.d.stats))
    for _, s := range r.d.stats {
        cp := *s
        out = append(out, &cp)
    }
    slices.SortFunc(out, compareStanding)
    if limit > 0 && len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

func compareStanding(a, b *domain.UserStats) int {
    if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
        return c
    }
    if c := cmp.Compare(a.Losses, b.Losses); c != 0 {
        return c
    }
    return cmp.Compare(a.UserID, b.UserID)
}

type memTx struct {
    memReader
}

// The store mutex is already held for the whole transaction, so locking
// reads are plain reads.

func (tx *memTx) LockRoom(ctx context.Context, id string) (*domain.Room, error) {
    return tx.Room(ctx, id)
}

func (tx *memTx) LockOpenRoom(_ context.Context, excludeUser string) (*domain.Room, error) {
    var best *domain.Room
    for _, room := range tx.d.rooms {
        if room.Status != domain.RoomWaiting || len(room.Members) != 1 || room.HasMember(excludeUser) {
            continue
        }
        if best == nil || room.CreatedAt.Before(best.CreatedAt) ||
            room.CreatedAt.Equal(best.CreatedAt) && room.ID < best.ID {
            best = room
        }
    }
    if best == nil {
        return nil, nil
    }
    return best.Clone(), nil
}

func (tx *memTx) LockMatchmaking(context.Context) error { return nil }

func (tx *memTx) LockStats(_ context.Context, userID string) (*domain.UserStats, error) {
    s, ok := tx.d.stats[userID]
    if !ok {
        s = &domain.UserStats{UserID: userID}
        tx.d.stats[userID] = s
    }
    cp := *s
    return &cp, nil
}

func (tx *memTx) CreateRoom(_ context.Context, r *domain.Room) error {
    if _, dup := tx.d.codes[r.Code]; dup {
        return ErrDuplicateCode
    }
    tx.d.rooms[r.ID] = r.Clone()
    tx.d.codes[r.Code] = r.ID
    return nil
}

func (tx *memTx) UpdateRoom(_ context.Context, r *domain.Room) error {
    if _, ok := tx.d.rooms[r.ID]; !ok {
        return domain.ErrRoomNotFound
    }
    tx.d.rooms[r.ID] = r.Clone()
    return nil
}

func (tx *memTx) DeleteRoom(_ context.Context, id string) error {
    room, ok := tx.d.rooms[id]
    if !ok {
        return domain.ErrRoomNotFound
    }
    delete(tx.d.codes, room.Code)
    delete(tx.d.rooms, id)
    delete(tx.d.games, id)
    return nil
}

func (tx *memTx) CreateGame(_ context.Context, g *domain.Game) error {
    if _, ok := tx.d.rooms[g.RoomID]; !ok {
        return domain.ErrRoomNotFound
    }
    tx.d.games[g.RoomID] = g.Clone()
    return nil
}

func (tx *memTx) UpdateGame(_ context.Context, g *domain.Game) error {
    cur, ok := tx.d.games[g.RoomID]
    if !ok || cur.ID != g.ID {
        return domain.ErrGameNotActive
    }
    tx.d.games[g.RoomID] = g.Clone()
    return nil
}

func (tx *memTx) DeleteGame(_ context.Context, roomID string) error {
    delete(tx.d.games, roomID)
    return nil
}

func (tx *memTx) SaveStats(_ context.Context, s *domain.UserStats) error {
    cp := *s
    tx.d.stats[s.UserID] = &cp
    return nil
}
