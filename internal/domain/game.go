package domain

import "time"

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
    GameOngoing GameStatus = "ongoing"
    GameXWins   GameStatus = "x_wins"
    GameOWins   GameStatus = "o_wins"
    GameDraw    GameStatus = "draw"
)

// Terminal reports whether no further moves are accepted.
func (s GameStatus) Terminal() bool { return s != GameOngoing }

// Game holds the state of one match inside a room.
type Game struct {
    ID         string
    RoomID     string
    PlayerX    string
    PlayerO    string
    Board      Board
    Turn       Cell
    Status     GameStatus
    Winner     string
    CreatedAt  time.Time
    FinishedAt *time.Time
}

// NewGame returns an ongoing game with X to move.
func NewGame(id, roomID, playerX, playerO string, now time.Time) *Game {
    return &Game{
        ID:        id,
        RoomID:    roomID,
        PlayerX:   playerX,
        PlayerO:   playerO,
        Turn:      X,
        Status:    GameOngoing,
        CreatedAt: now,
    }
}

// SymbolOf returns the symbol played by userID, or Empty for outsiders.
func (g *Game) SymbolOf(userID string) Cell {
    switch userID {
    case g.PlayerX:
        return X
    case g.PlayerO:
        return O
    default:
        return Empty
    }
}

// PlayerOf returns the user playing symbol c.
func (g *Game) PlayerOf(c Cell) string {
    if c == X {
        return g.PlayerX
    }
    return g.PlayerO
}

// Apply plays actor's symbol at row r, column c. A rejected move leaves the
// game untouched.
func (g *Game) Apply(actor string, r, c int, now time.Time) error {
    if g.Status != GameOngoing {
        return ErrGameNotActive
    }
    if r < 0 || r > 2 || c < 0 || c > 2 {
        return ErrInvalidCoordinate
    }
    idx := r*3 + c
    if g.Board[idx] != Empty {
        return ErrCellOccupied
    }
    side := g.SymbolOf(actor)
    if side == Empty {
        return ErrNotAPlayer
    }
    if side != g.Turn {
        return ErrNotYourTurn
    }

    g.Board[idx] = side

    switch Evaluate(g.Board) {
    case ResultX:
        g.finish(GameXWins, g.PlayerX, now)
    case ResultO:
        g.finish(GameOWins, g.PlayerO, now)
    case ResultDraw:
        g.finish(GameDraw, "", now)
    default:
        g.Turn = g.Turn.Other()
    }
    return nil
}

// Forfeit awards an ongoing game to the opponent of leaver. It reports
// whether the game transitioned.
func (g *Game) Forfeit(leaver string, now time.Time) bool {
    if g.Status != GameOngoing {
        return false
    }
    switch g.SymbolOf(leaver) {
    case X:
        g.finish(GameOWins, g.PlayerO, now)
    case O:
        g.finish(GameXWins, g.PlayerX, now)
    default:
        return false
    }
    return true
}

func (g *Game) finish(status GameStatus, winner string, now time.Time) {
    g.Status = status
    g.Winner = winner
    t := now
    g.FinishedAt = &t
}

// Clone returns a deep copy.
func (g *Game) Clone() *Game {
    cp := *g
    if g.FinishedAt != nil {
        t := *g.FinishedAt
        cp.FinishedAt = &t
    }
    return &cp
}
