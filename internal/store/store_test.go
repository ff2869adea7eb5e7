package store

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, s Store, code string, at time.Time, members ...string) *domain.Room {
    t.Helper()
    r := domain.NewRoom(uuid.NewString(), "room "+code, code, members[0], at)
    r.Members = append(r.Members, members[1:]...)
    if len(r.Members) == domain.MaxMembers {
        r.Status = domain.RoomPlaying
    }
    require.NoError(t, s.Tx(context.Background(), func(tx Tx) error {
        return tx.CreateRoom(context.Background(), r)
    }))
    return r
}

// runStoreSuite checks behaviour every backend must share. newStore must
// return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
    ctx := context.Background()

    t.Run("room round trip", func(t *testing.T) {
        s := newStore(t)
        r := seedRoom(t, s, "ABC123", base, "alice")

        got, err := s.Room(ctx, r.ID)
        require.NoError(t, err)
        assert.Equal(t, r.Name, got.Name)
        assert.Equal(t, []string{"alice"}, got.Members)
        assert.Equal(t, domain.RoomWaiting, got.Status)
        assert.True(t, r.CreatedAt.Equal(got.CreatedAt))

        byCode, err := s.RoomByCode(ctx, "abc123")
        require.NoError(t, err)
        assert.Equal(t, r.ID, byCode.ID)

        _, err = s.Room(ctx, uuid.NewString())
        assert.ErrorIs(t, err, domain.ErrRoomNotFound)
        _, err = s.RoomByCode(ctx, "ZZZZZZ")
        assert.ErrorIs(t, err, domain.ErrRoomNotFound)
    })

    t.Run("duplicate code", func(t *testing.T) {
        s := newStore(t)
        seedRoom(t, s, "DUP000", base, "alice")
        err := s.Tx(ctx, func(tx Tx) error {
            return tx.CreateRoom(ctx, domain.NewRoom(uuid.NewString(), "x", "DUP000", "bob", base))
        })
        assert.ErrorIs(t, err, ErrDuplicateCode)
    })

    t.Run("rollback discards writes", func(t *testing.T) {
        s := newStore(t)
        r := seedRoom(t, s, "RB0000", base, "alice")
        boom := errors.New("boom")
        err := s.Tx(ctx, func(tx Tx) error {
            room, err := tx.LockRoom(ctx, r.ID)
            if err != nil {
                return err
            }
            if _, err := room.Join("bob"); err != nil {
                return err
            }
            if err := tx.UpdateRoom(ctx, room); err != nil {
                return err
            }
            if _, err := tx.LockStats(ctx, "bob"); err != nil {
                return err
            }
            return boom
        })
        require.ErrorIs(t, err, boom)

        got, err := s.Room(ctx, r.ID)
        require.NoError(t, err)
        assert.Equal(t, []string{"alice"}, got.Members)
        _, ok, err := s.Stats(ctx, "bob")
        require.NoError(t, err)
        assert.False(t, ok)
    })

    t.Run("update keeps member order", func(t *testing.T) {
        s := newStore(t)
        r := seedRoom(t, s, "ORD000", base, "zed")
        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            room, err := tx.LockRoom(ctx, r.ID)
            if err != nil {
                return err
            }
            if _, err := room.Join("amy"); err != nil {
                return err
            }
            room.Status = domain.RoomPlaying
            return tx.UpdateRoom(ctx, room)
        }))
        got, err := s.Room(ctx, r.ID)
        require.NoError(t, err)
        assert.Equal(t, []string{"zed", "amy"}, got.Members)
        assert.Equal(t, domain.RoomPlaying, got.Status)
    })

    t.Run("game lifecycle and cascade", func(t *testing.T) {
        s := newStore(t)
        r := seedRoom(t, s, "GAME00", base, "alice", "bob")
        g := domain.NewGame(uuid.NewString(), r.ID, "alice", "bob", base)
        require.NoError(t, s.Tx(ctx, func(tx Tx) error { return tx.CreateGame(ctx, g) }))

        require.NoError(t, g.Apply("alice", 1, 1, base))
        require.NoError(t, s.Tx(ctx, func(tx Tx) error { return tx.UpdateGame(ctx, g) }))

        got, ok, err := s.Game(ctx, r.ID)
        require.NoError(t, err)
        require.True(t, ok)
        assert.Equal(t, domain.X, got.Board.At(1, 1))
        assert.Equal(t, domain.O, got.Turn)
        assert.Equal(t, domain.GameOngoing, got.Status)
        assert.Empty(t, got.Winner)
        assert.Nil(t, got.FinishedAt)

        require.True(t, g.Forfeit("bob", base.Add(time.Minute)))
        require.NoError(t, s.Tx(ctx, func(tx Tx) error { return tx.UpdateGame(ctx, g) }))
        got, _, err = s.Game(ctx, r.ID)
        require.NoError(t, err)
        assert.Equal(t, domain.GameXWins, got.Status)
        assert.Equal(t, "alice", got.Winner)
        require.NotNil(t, got.FinishedAt)

        require.NoError(t, s.Tx(ctx, func(tx Tx) error { return tx.DeleteRoom(ctx, r.ID) }))
        _, ok, err = s.Game(ctx, r.ID)
        require.NoError(t, err)
        assert.False(t, ok)
        _, err = s.Room(ctx, r.ID)
        assert.ErrorIs(t, err, domain.ErrRoomNotFound)
    })

    t.Run("update of a deleted game", func(t *testing.T) {
        s := newStore(t)
        r := seedRoom(t, s, "GONE00", base, "alice", "bob")
        g := domain.NewGame(uuid.NewString(), r.ID, "alice", "bob", base)
        require.NoError(t, s.Tx(ctx, func(tx Tx) error { return tx.CreateGame(ctx, g) }))
        require.NoError(t, s.Tx(ctx, func(tx Tx) error { return tx.DeleteGame(ctx, r.ID) }))
        err := s.Tx(ctx, func(tx Tx) error { return tx.UpdateGame(ctx, g) })
        assert.ErrorIs(t, err, domain.ErrGameNotActive)
    })

    t.Run("open room selection", func(t *testing.T) {
        s := newStore(t)
        seedRoom(t, s, "FULL00", base, "p1", "p2")
        own := seedRoom(t, s, "OWN000", base.Add(time.Second), "carol")
        older := seedRoom(t, s, "OLD000", base.Add(2*time.Second), "dave")
        seedRoom(t, s, "NEW000", base.Add(3*time.Second), "erin")

        var picked *domain.Room
        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            if err := tx.LockMatchmaking(ctx); err != nil {
                return err
            }
            var err error
            picked, err = tx.LockOpenRoom(ctx, "carol")
            return err
        }))
        require.NotNil(t, picked)
        assert.Equal(t, older.ID, picked.ID)

        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            var err error
            picked, err = tx.LockOpenRoom(ctx, "frank")
            return err
        }))
        require.NotNil(t, picked)
        assert.Equal(t, own.ID, picked.ID)
    })

    t.Run("no open room", func(t *testing.T) {
        s := newStore(t)
        seedRoom(t, s, "SOLO00", base, "alice")
        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            r, err := tx.LockOpenRoom(ctx, "alice")
            assert.Nil(t, r)
            return err
        }))
    })

    t.Run("rooms filter and order", func(t *testing.T) {
        s := newStore(t)
        a := seedRoom(t, s, "LIST01", base, "a")
        b := seedRoom(t, s, "LIST02", base.Add(time.Second), "b", "c")
        c := seedRoom(t, s, "LIST03", base.Add(2*time.Second), "d")
        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            room, err := tx.LockRoom(ctx, c.ID)
            if err != nil {
                return err
            }
            room.Status = domain.RoomFinished
            return tx.UpdateRoom(ctx, room)
        }))

        rooms, err := s.Rooms(ctx, domain.RoomWaiting, domain.RoomPlaying)
        require.NoError(t, err)
        require.Len(t, rooms, 2)
        assert.Equal(t, b.ID, rooms[0].ID)
        assert.Equal(t, []string{"b", "c"}, rooms[0].Members)
        assert.Equal(t, a.ID, rooms[1].ID)

        all, err := s.Rooms(ctx)
        require.NoError(t, err)
        assert.Len(t, all, 3)
    })

    t.Run("stats", func(t *testing.T) {
        s := newStore(t)
        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            for _, u := range []string{"amy", "bob", "cat", "dan"} {
                st, err := tx.LockStats(ctx, u)
                if err != nil {
                    return err
                }
                assert.Zero(t, st.GamesPlayed)
                switch u {
                case "amy":
                    st.Wins, st.Losses = 3, 2
                case "bob":
                    st.Wins, st.Losses = 3, 1
                case "cat":
                    st.Wins, st.Losses = 1, 0
                case "dan":
                    st.Wins, st.Losses = 3, 1
                }
                st.GamesPlayed = st.Wins + st.Losses
                if err := tx.SaveStats(ctx, st); err != nil {
                    return err
                }
            }
            return nil
        }))

        got, ok, err := s.Stats(ctx, "amy")
        require.NoError(t, err)
        require.True(t, ok)
        assert.Equal(t, 5, got.GamesPlayed)

        top, err := s.TopStats(ctx, 3)
        require.NoError(t, err)
        require.Len(t, top, 3)
        assert.Equal(t, "bob", top[0].UserID)
        assert.Equal(t, "dan", top[1].UserID)
        assert.Equal(t, "amy", top[2].UserID)

        // an existing row is returned as is
        require.NoError(t, s.Tx(ctx, func(tx Tx) error {
            st, err := tx.LockStats(ctx, "cat")
            assert.Equal(t, 1, st.Wins)
            return err
        }))
    })
}
