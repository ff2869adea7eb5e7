package app

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "slices"
    "strings"
    "sync"
    "time"
    "unicode/utf8"

    "github.com/cenkalti/backoff/v4"
    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
    "github.com/jaminalder/tictactoe-rooms/internal/events"
    "github.com/jaminalder/tictactoe-rooms/internal/store"
)

// ErrCodeSpaceExhausted means no unused room code was found within the
// configured number of attempts.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")

// MaxRoomName is the longest room name in runes.
const MaxRoomName = 100

// User is the authenticated caller.
type User struct {
    ID   string
    Name string
}

func (u User) displayName() string {
    if u.Name != "" {
        return u.Name
    }
    return u.ID
}

// QuickMatchAction tells whether quick-match joined a room or opened one.
type QuickMatchAction string

const (
    ActionJoined  QuickMatchAction = "joined"
    ActionCreated QuickMatchAction = "created"
)

// RoomState is what gets broadcast after a room changes. Room and Game are
// nil when Deleted is set.
type RoomState struct {
    RoomID  string
    Room    *domain.Room
    Game    *domain.Game
    Deleted bool
}

// LeaveResult describes the effect of LeaveRoom.
type LeaveResult struct {
    // Room is the room after the leave, nil when it was deleted.
    Room    *domain.Room
    Deleted bool
    // Forfeited is the game the leaver lost by leaving, if any.
    Forfeited *domain.Game
}

// Settings bounds the retry loops.
type Settings struct {
    CodeAttempts    int
    ConflictRetries int
}

// Service runs the room and game lifecycle on top of a transactional store
// and announces committed changes on a broker.
type Service struct {
    store  store.Store
    broker events.Broker
    log    *zap.Logger

    codeAttempts    int
    conflictRetries int

    now     func() time.Time
    newCode func() (string, error)
    // xFirst picks whether the first member plays X.
    xFirst func() bool

    mu     sync.RWMutex
    render func(RoomState) []byte
}

// NewService wires a service. A nil broker disables broadcasts and a nil
// logger discards logs.
func NewService(st store.Store, broker events.Broker, log *zap.Logger, cfg Settings) *Service {
    if log == nil {
        log = zap.NewNop()
    }
    if cfg.CodeAttempts < 1 {
        cfg.CodeAttempts = 1
    }
    return &Service{
        store:           st,
        broker:          broker,
        log:             log,
        codeAttempts:    cfg.CodeAttempts,
        conflictRetries: cfg.ConflictRetries,
        now:             time.Now,
        newCode:         newRoomCode,
        xFirst:          func() bool { return rand.Intn(2) == 0 },
        render:          func(RoomState) []byte { return nil },
    }
}

// SetRenderer replaces the broadcast renderer. A nil payload is not sent.
func (s *Service) SetRenderer(renderer func(RoomState) []byte) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if renderer == nil {
        s.render = func(RoomState) []byte { return nil }
        return
    }
    s.render = renderer
}

// CreateRoom opens a waiting room with u as its only member. An empty name
// defaults to "<name>'s room".
func (s *Service) CreateRoom(ctx context.Context, u User, name string) (*domain.Room, error) {
    name = strings.TrimSpace(name)
    if name == "" {
        name = fmt.Sprintf("%s's room", u.displayName())
    }
    name = clampName(name)
    var room *domain.Room
    err := s.withCode(ctx, func(tx store.Tx, code string) error {
        room = domain.NewRoom(uuid.NewString(), name, code, u.ID, s.now())
        return tx.CreateRoom(ctx, room)
    })
    if err != nil {
        return nil, err
    }
    s.log.Info("room created", zap.String("room_id", room.ID), zap.String("code", room.Code), zap.String("user_id", u.ID))
    s.publish(ctx, RoomState{RoomID: room.ID, Room: room})
    return room, nil
}

// JoinRoom adds u to a waiting room. The second member starts a new game.
func (s *Service) JoinRoom(ctx context.Context, u User, roomID string) (*domain.Room, *domain.Game, error) {
    return s.joinWith(ctx, u, func(tx store.Tx) (*domain.Room, error) {
        return tx.LockRoom(ctx, roomID)
    })
}

// JoinByCode is JoinRoom addressed by the room's share code.
func (s *Service) JoinByCode(ctx context.Context, u User, code string) (*domain.Room, *domain.Game, error) {
    return s.joinWith(ctx, u, func(tx store.Tx) (*domain.Room, error) {
        r, err := tx.RoomByCode(ctx, code)
        if err != nil {
            return nil, err
        }
        return tx.LockRoom(ctx, r.ID)
    })
}

func (s *Service) joinWith(ctx context.Context, u User, lock func(tx store.Tx) (*domain.Room, error)) (*domain.Room, *domain.Game, error) {
    var room *domain.Room
    var game *domain.Game
    err := s.inTx(ctx, func(tx store.Tx) error {
        r, err := lock(tx)
        if err != nil {
            return err
        }
        g, err := s.join(ctx, tx, r, u.ID)
        if err != nil {
            return err
        }
        room, game = r, g
        return nil
    })
    if err != nil {
        return nil, nil, err
    }
    s.log.Info("room joined", zap.String("room_id", room.ID), zap.String("user_id", u.ID), zap.String("status", string(room.Status)))
    s.publish(ctx, RoomState{RoomID: room.ID, Room: room, Game: game})
    return room, game, nil
}

// join adds userID to a locked room and starts the game once it is full.
func (s *Service) join(ctx context.Context, tx store.Tx, r *domain.Room, userID string) (*domain.Game, error) {
    full, err := r.Join(userID)
    if err != nil {
        return nil, err
    }
    var g *domain.Game
    if full {
        r.Status = domain.RoomPlaying
        if err := tx.DeleteGame(ctx, r.ID); err != nil {
            return nil, err
        }
        x, o := r.Members[0], r.Members[1]
        if !s.xFirst() {
            x, o = o, x
        }
        g = domain.NewGame(uuid.NewString(), r.ID, x, o, s.now())
    }
    if err := tx.UpdateRoom(ctx, r); err != nil {
        return nil, err
    }
    if g != nil {
        if err := tx.CreateGame(ctx, g); err != nil {
            return nil, err
        }
    }
    return g, nil
}

// LeaveRoom removes u from the room. Leaving an ongoing game forfeits it to
// the remaining member. Any game of the room is discarded and an empty room
// is deleted.
func (s *Service) LeaveRoom(ctx context.Context, u User, roomID string) (*LeaveResult, error) {
    var res *LeaveResult
    err := s.inTx(ctx, func(tx store.Tx) error {
        res = &LeaveResult{}
        r, err := tx.LockRoom(ctx, roomID)
        if err != nil {
            return err
        }
        if !r.HasMember(u.ID) {
            return domain.ErrNotAMember
        }
        g, ok, err := tx.Game(ctx, r.ID)
        if err != nil {
            return err
        }
        if ok {
            if g.Forfeit(u.ID, s.now()) {
                if err := tx.UpdateGame(ctx, g); err != nil {
                    return err
                }
                if err := s.recordResult(ctx, tx, g); err != nil {
                    return err
                }
                res.Forfeited = g
            }
            if err := tx.DeleteGame(ctx, r.ID); err != nil {
                return err
            }
        }
        if err := r.Leave(u.ID); err != nil {
            return err
        }
        if r.Empty() {
            res.Deleted = true
            return tx.DeleteRoom(ctx, r.ID)
        }
        res.Room = r
        return tx.UpdateRoom(ctx, r)
    })
    if err != nil {
        return nil, err
    }
    fields := []zap.Field{zap.String("room_id", roomID), zap.String("user_id", u.ID), zap.Bool("deleted", res.Deleted)}
    if res.Forfeited != nil {
        fields = append(fields, zap.String("game_id", res.Forfeited.ID), zap.String("winner", res.Forfeited.Winner))
        s.log.Info("game forfeited", fields...)
    } else {
        s.log.Info("room left", fields...)
    }
    if res.Deleted {
        s.publish(ctx, RoomState{RoomID: roomID, Deleted: true})
    } else {
        s.publish(ctx, RoomState{RoomID: roomID, Room: res.Room})
    }
    return res, nil
}

// QuickMatch joins the oldest waiting room that has one member other than u,
// or opens a new room when none exists. Concurrent quick-matches are
// serialised so two callers never both open a room or both take the same one.
func (s *Service) QuickMatch(ctx context.Context, u User) (*domain.Room, *domain.Game, QuickMatchAction, error) {
    var room *domain.Room
    var game *domain.Game
    var action QuickMatchAction
    err := s.withCode(ctx, func(tx store.Tx, code string) error {
        room, game, action = nil, nil, ""
        if err := tx.LockMatchmaking(ctx); err != nil {
            return err
        }
        open, err := tx.LockOpenRoom(ctx, u.ID)
        if err != nil {
            return err
        }
        if open != nil {
            g, err := s.join(ctx, tx, open, u.ID)
            if err != nil {
                return err
            }
            room, game, action = open, g, ActionJoined
            return nil
        }
        r := domain.NewRoom(uuid.NewString(), clampName("Quick match "+u.displayName()), code, u.ID, s.now())
        if err := tx.CreateRoom(ctx, r); err != nil {
            return err
        }
        room, action = r, ActionCreated
        return nil
    })
    if err != nil {
        return nil, nil, "", err
    }
    s.log.Info("quick match", zap.String("room_id", room.ID), zap.String("user_id", u.ID), zap.String("action", string(action)))
    s.publish(ctx, RoomState{RoomID: room.ID, Room: room, Game: game})
    return room, game, action, nil
}

// Move plays u's symbol at (row, col) in the room's game. A move that ends
// the game finishes the room and records both players' stats.
func (s *Service) Move(ctx context.Context, u User, roomID string, row, col int) (*domain.Room, *domain.Game, error) {
    var room *domain.Room
    var game *domain.Game
    err := s.inTx(ctx, func(tx store.Tx) error {
        r, err := tx.LockRoom(ctx, roomID)
        if err != nil {
            return err
        }
        g, ok, err := tx.Game(ctx, r.ID)
        if err != nil {
            return err
        }
        if !ok {
            return domain.ErrGameNotActive
        }
        if err := g.Apply(u.ID, row, col, s.now()); err != nil {
            return err
        }
        if err := tx.UpdateGame(ctx, g); err != nil {
            return err
        }
        if g.Status.Terminal() {
            r.Status = domain.RoomFinished
            if err := tx.UpdateRoom(ctx, r); err != nil {
                return err
            }
            if err := s.recordResult(ctx, tx, g); err != nil {
                return err
            }
        }
        room, game = r, g
        return nil
    })
    if err != nil {
        return nil, nil, err
    }
    if game.Status.Terminal() {
        s.log.Info("game finished", zap.String("room_id", room.ID), zap.String("game_id", game.ID),
            zap.String("status", string(game.Status)), zap.String("winner", game.Winner))
    }
    s.publish(ctx, RoomState{RoomID: room.ID, Room: room, Game: game})
    return room, game, nil
}

// recordResult updates both players' stats for a game that just became
// terminal. It must run in the transaction that made the transition.
func (s *Service) recordResult(ctx context.Context, tx store.Tx, g *domain.Game) error {
    // fixed lock order
    players := []string{g.PlayerX, g.PlayerO}
    slices.Sort(players)
    for _, id := range players {
        st, err := tx.LockStats(ctx, id)
        if err != nil {
            return err
        }
        st.Record(g)
        if err := tx.SaveStats(ctx, st); err != nil {
            return err
        }
    }
    return nil
}

// ListRooms returns waiting and playing rooms, newest first.
func (s *Service) ListRooms(ctx context.Context) ([]*domain.Room, error) {
    return s.store.Rooms(ctx, domain.RoomWaiting, domain.RoomPlaying)
}

// RoomDetail returns a room and its game, if any, to one of its members.
func (s *Service) RoomDetail(ctx context.Context, u User, roomID string) (*domain.Room, *domain.Game, error) {
    r, err := s.store.Room(ctx, roomID)
    if err != nil {
        return nil, nil, err
    }
    if !r.HasMember(u.ID) {
        return nil, nil, domain.ErrNotAMember
    }
    g, ok, err := s.store.Game(ctx, roomID)
    if err != nil {
        return nil, nil, err
    }
    if !ok {
        g = nil
    }
    return r, g, nil
}

// RoomByCode looks a room up by share code, case-insensitively.
func (s *Service) RoomByCode(ctx context.Context, code string) (*domain.Room, error) {
    return s.store.RoomByCode(ctx, code)
}

// Stats returns the user's counters; zero for users who never finished a game.
func (s *Service) Stats(ctx context.Context, userID string) (*domain.UserStats, error) {
    st, ok, err := s.store.Stats(ctx, userID)
    if err != nil {
        return nil, err
    }
    if !ok {
        return &domain.UserStats{UserID: userID}, nil
    }
    return st, nil
}

// Subscribe streams broadcast payloads for a room.
func (s *Service) Subscribe(ctx context.Context, roomID string) (<-chan []byte, func(), error) {
    if s.broker == nil {
        return nil, nil, errors.New("room events are disabled")
    }
    return s.broker.Subscribe(ctx, roomID)
}

// withCode runs fn with a fresh room code, restarting the whole transaction
// when the code is already taken.
func (s *Service) withCode(ctx context.Context, fn func(tx store.Tx, code string) error) error {
    for attempt := 1; attempt <= s.codeAttempts; attempt++ {
        code, err := s.newCode()
        if err != nil {
            return err
        }
        err = s.inTx(ctx, func(tx store.Tx) error { return fn(tx, code) })
        if !errors.Is(err, store.ErrDuplicateCode) {
            return err
        }
        s.log.Debug("room code collision", zap.String("code", code), zap.Int("attempt", attempt))
    }
    return ErrCodeSpaceExhausted
}

// inTx runs fn in a store transaction, retrying on store.ErrConflict.
func (s *Service) inTx(ctx context.Context, fn func(tx store.Tx) error) error {
    eb := backoff.NewExponentialBackOff()
    eb.InitialInterval = 10 * time.Millisecond
    eb.MaxInterval = 250 * time.Millisecond
    policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.conflictRetries)), ctx)

    op := func() error {
        err := s.store.Tx(ctx, fn)
        if err == nil || errors.Is(err, store.ErrConflict) {
            return err
        }
        return backoff.Permanent(err)
    }
    notify := func(err error, wait time.Duration) {
        s.log.Warn("retrying conflicted transaction", zap.Error(err), zap.Duration("wait", wait))
    }
    return backoff.RetryNotify(op, policy, notify)
}

// clampName cuts name to MaxRoomName runes.
func clampName(name string) string {
    if utf8.RuneCountInString(name) <= MaxRoomName {
        return name
    }
    return string([]rune(name)[:MaxRoomName])
}

// publish runs after commit. Cancelling ctx does not cancel the broadcast.
func (s *Service) publish(ctx context.Context, st RoomState) {
    if s.broker == nil {
        return
    }
    s.mu.RLock()
    payload := s.render(st)
    s.mu.RUnlock()
    if payload == nil {
        return
    }
    if err := s.broker.Publish(context.WithoutCancel(ctx), st.RoomID, payload); err != nil {
        s.log.Warn("room broadcast failed", zap.String("room_id", st.RoomID), zap.Error(err))
    }
}
