package store

import (
    "context"
    "errors"
    "sync"
    "testing"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
    "github.com/jaminalder/tictactoe-rooms/internal/testutil"
)

func TestClassify(t *testing.T) {
    assert.NoError(t, classify(nil))
    assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40001"}), ErrConflict)
    assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40P01"}), ErrConflict)
    assert.ErrorIs(t, classify(&pgconn.PgError{Code: "23505", ConstraintName: "idx_rooms_code"}), ErrDuplicateCode)

    other := &pgconn.PgError{Code: "23505", ConstraintName: "games_pkey"}
    assert.Same(t, other, classify(other))

    plain := errors.New("plain")
    assert.Same(t, plain, classify(plain))
}

func openTestGorm(t *testing.T) *Gorm {
    t.Helper()
    dsn := testutil.Postgres(t)
    s, err := OpenPostgres(context.Background(), dsn, PostgresOptions{MaxOpenConns: 10})
    require.NoError(t, err)
    t.Cleanup(func() { _ = s.Close() })
    return s
}

func TestGormStore(t *testing.T) {
    s := openTestGorm(t)
    runStoreSuite(t, func(t *testing.T) Store {
        require.NoError(t, s.db.Exec("TRUNCATE rooms, room_members, games, user_stats").Error)
        return s
    })
}

func TestGormLockRoomSerialisesJoins(t *testing.T) {
    s := openTestGorm(t)
    ctx := context.Background()
    r := seedRoom(t, s, "RACE00", base, "owner")

    var wg sync.WaitGroup
    errs := make(chan error, 8)
    for i := 0; i < 8; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            errs <- s.Tx(ctx, func(tx Tx) error {
                room, err := tx.LockRoom(ctx, r.ID)
                if err != nil {
                    return err
                }
                if _, err := room.Join(uuid.NewString()); err != nil {
                    return err
                }
                return tx.UpdateRoom(ctx, room)
            })
        }()
    }
    wg.Wait()
    close(errs)

    ok := 0
    for err := range errs {
        if err == nil {
            ok++
            continue
        }
        assert.ErrorIs(t, err, domain.ErrRoomFull)
    }
    assert.Equal(t, 1, ok)
    got, err := s.Room(ctx, r.ID)
    require.NoError(t, err)
    assert.Len(t, got.Members, domain.MaxMembers)
}

func TestGormLockOpenRoomSkipsLockedRooms(t *testing.T) {
    s := openTestGorm(t)
    ctx := context.Background()
    r := seedRoom(t, s, "SKIP00", base, "owner")

    held := make(chan struct{})
    release := make(chan struct{})
    errc := make(chan error, 1)
    go func() {
        errc <- s.Tx(ctx, func(tx Tx) error {
            got, err := tx.LockOpenRoom(ctx, "first")
            if err != nil {
                return err
            }
            if got == nil || got.ID != r.ID {
                return errors.New("first transaction did not lock the open room")
            }
            close(held)
            <-release
            return nil
        })
    }()
    <-held

    require.NoError(t, s.Tx(ctx, func(tx Tx) error {
        got, err := tx.LockOpenRoom(ctx, "second")
        if err != nil {
            return err
        }
        assert.Nil(t, got, "a room locked by another transaction must be skipped")
        return nil
    }))
    close(release)
    require.NoError(t, <-errc)

    require.NoError(t, s.Tx(ctx, func(tx Tx) error {
        got, err := tx.LockOpenRoom(ctx, "second")
        if err != nil {
            return err
        }
        require.NotNil(t, got)
        assert.Equal(t, r.ID, got.ID)
        return nil
    }))
}
