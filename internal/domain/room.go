package domain

import (
    "slices"
    "time"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
    RoomWaiting  RoomStatus = "waiting"
    RoomPlaying  RoomStatus = "playing"
    RoomFinished RoomStatus = "finished"
)

// MaxMembers is the room capacity.
const MaxMembers = 2

// Room is a matchmaking container for up to two players.
type Room struct {
    ID        string
    Name      string
    Code      string
    CreatorID string
    Members   []string
    Status    RoomStatus
    CreatedAt time.Time
}

// NewRoom returns a waiting room whose only member is its creator.
func NewRoom(id, name, code, creatorID string, now time.Time) *Room {
    return &Room{
        ID:        id,
        Name:      name,
        Code:      code,
        CreatorID: creatorID,
        Members:   []string{creatorID},
        Status:    RoomWaiting,
        CreatedAt: now,
    }
}

func (r *Room) HasMember(userID string) bool { return slices.Contains(r.Members, userID) }

// Full reports whether the room has reached capacity.
func (r *Room) Full() bool { return len(r.Members) >= MaxMembers }

// Join adds userID and reports whether the room is now full and ready to play.
// Status is not changed here; starting the game is the caller's job.
func (r *Room) Join(userID string) (bool, error) {
    switch {
    case r.Status != RoomWaiting:
        return false, ErrRoomNotWaiting
    case r.Full():
        return false, ErrRoomFull
    case r.HasMember(userID):
        return false, ErrAlreadyMember
    }
    r.Members = append(r.Members, userID)
    return r.Full(), nil
}

// Leave removes userID. A room left with a single member goes back to
// waiting so it can be matched again.
func (r *Room) Leave(userID string) error {
    i := slices.Index(r.Members, userID)
    if i < 0 {
        return ErrNotAMember
    }
    r.Members = slices.Delete(r.Members, i, i+1)
    if len(r.Members) == 1 {
        r.Status = RoomWaiting
    }
    return nil
}

// Empty reports whether the room should be destroyed.
func (r *Room) Empty() bool { return len(r.Members) == 0 }

// Opponent returns the other member, if any.
func (r *Room) Opponent(userID string) (string, bool) {
    for _, m := range r.Members {
        if m != userID {
            return m, true
        }
    }
    return "", false
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
    cp := *r
    cp.Members = slices.Clone(r.Members)
    return &cp
}
