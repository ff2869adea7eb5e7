package domain

import "errors"

// Errors returned by domain operations. Each one is a distinct rejection kind
// surfaced to callers; none of them is fatal.
var (
    ErrGameNotActive     = errors.New("game not active")
    ErrInvalidCoordinate = errors.New("invalid coordinate")
    ErrCellOccupied      = errors.New("cell occupied")
    ErrNotAPlayer        = errors.New("not a player")
    ErrNotYourTurn       = errors.New("not your turn")

    ErrRoomNotFound   = errors.New("room not found")
    ErrRoomNotWaiting = errors.New("room not waiting")
    ErrRoomFull       = errors.New("room full")
    ErrAlreadyMember  = errors.New("already a member")
    ErrNotAMember     = errors.New("not a member")
)
