// Package store persists rooms, games and user statistics. Every mutation
// happens inside a transaction obtained from Store.Tx; locks taken inside a
// transaction are held until it commits or rolls back.
package store

import (
    "context"
    "errors"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

var (
    // ErrConflict reports a serialization failure or deadlock. The whole
    // transaction may be retried.
    ErrConflict = errors.New("store: transaction conflict")
    // ErrDuplicateCode reports a room code uniqueness violation.
    ErrDuplicateCode = errors.New("store: duplicate room code")
)

// Reader holds the non-locking queries.
type Reader interface {
    // Room returns domain.ErrRoomNotFound when absent.
    Room(ctx context.Context, id string) (*domain.Room, error)
    // RoomByCode returns domain.ErrRoomNotFound when absent.
    RoomByCode(ctx context.Context, code string) (*domain.Room, error)
    // Rooms lists rooms in any of the given statuses, newest first.
    Rooms(ctx context.Context, statuses ...domain.RoomStatus) ([]*domain.Room, error)
    // Game returns the room's game; ok is false when the room has none.
    Game(ctx context.Context, roomID string) (g *domain.Game, ok bool, err error)
    // Stats returns ok=false for users with no finished game.
    Stats(ctx context.Context, userID string) (s *domain.UserStats, ok bool, err error)
    // TopStats orders by wins desc, losses asc, user id asc.
    TopStats(ctx context.Context, limit int) ([]*domain.UserStats, error)
}

// Tx is a single atomic read-modify-write unit.
type Tx interface {
    Reader

    // LockRoom reads a room and holds it exclusively for the rest of the
    // transaction.
    LockRoom(ctx context.Context, id string) (*domain.Room, error)
    // LockOpenRoom returns the oldest waiting room with exactly one member
    // that does not contain excludeUser, or nil when there is none.
    LockOpenRoom(ctx context.Context, excludeUser string) (*domain.Room, error)
    // LockMatchmaking serialises quick-match transactions.
    LockMatchmaking(ctx context.Context) error
    // LockStats returns the user's stats, creating a zero row if needed.
    LockStats(ctx context.Context, userID string) (*domain.UserStats, error)

    CreateRoom(ctx context.Context, r *domain.Room) error
    UpdateRoom(ctx context.Context, r *domain.Room) error
    // DeleteRoom also deletes the room's game.
    DeleteRoom(ctx context.Context, id string) error

    CreateGame(ctx context.Context, g *domain.Game) error
    UpdateGame(ctx context.Context, g *domain.Game) error
    DeleteGame(ctx context.Context, roomID string) error

    SaveStats(ctx context.Context, s *domain.UserStats) error
}

// Store is implemented by Memory and Gorm.
type Store interface {
    Reader
    // Tx runs fn in a transaction. A nil return commits; any error rolls
    // back and is returned unchanged.
    Tx(ctx context.Context, fn func(tx Tx) error) error
    Close() error
}
