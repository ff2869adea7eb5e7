package web

import (
    "encoding/json"
    "net/http"
    "time"

    "github.com/jaminalder/tictactoe-rooms/internal/app"
    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

type gameView struct {
    ID          string       `json:"id"`
    Room        string       `json:"room"`
    PlayerX     string       `json:"player_x"`
    PlayerO     string       `json:"player_o"`
    CurrentTurn string       `json:"current_turn"`
    Board       [3][3]string `json:"board"`
    Status      string       `json:"status"`
    Winner      *string      `json:"winner"`
    CreatedAt   time.Time    `json:"created_at"`
    FinishedAt  *time.Time   `json:"finished_at"`
}

type roomView struct {
    ID          string    `json:"id"`
    Name        string    `json:"name"`
    Code        string    `json:"code"`
    Creator     string    `json:"creator"`
    Members     []string  `json:"members"`
    MemberCount int       `json:"member_count"`
    Status      string    `json:"status"`
    CreatedAt   time.Time `json:"created_at"`
    Game        *gameView `json:"game,omitempty"`
}

type statsView struct {
    UserID      string `json:"user_id"`
    GamesPlayed int    `json:"games_played"`
    Wins        int    `json:"wins"`
    Losses      int    `json:"losses"`
    Draws       int    `json:"draws"`
}

func newGameView(g *domain.Game) *gameView {
    if g == nil {
        return nil
    }
    v := &gameView{
        ID:          g.ID,
        Room:        g.RoomID,
        PlayerX:     g.PlayerX,
        PlayerO:     g.PlayerO,
        CurrentTurn: g.Turn.String(),
        Board:       g.Board.Rows(),
        Status:      string(g.Status),
        CreatedAt:   g.CreatedAt,
        FinishedAt:  g.FinishedAt,
    }
    if g.Winner != "" {
        w := g.Winner
        v.Winner = &w
    }
    return v
}

func newRoomView(r *domain.Room, g *domain.Game) *roomView {
    if r == nil {
        return nil
    }
    members := r.Members
    if members == nil {
        members = []string{}
    }
    return &roomView{
        ID:          r.ID,
        Name:        r.Name,
        Code:        r.Code,
        Creator:     r.CreatorID,
        Members:     members,
        MemberCount: len(r.Members),
        Status:      string(r.Status),
        CreatedAt:   r.CreatedAt,
        Game:        newGameView(g),
    }
}

func newStatsView(s domain.UserStats) statsView {
    return statsView{
        UserID:      s.UserID,
        GamesPlayed: s.GamesPlayed,
        Wins:        s.Wins,
        Losses:      s.Losses,
        Draws:       s.Draws,
    }
}

// roomEvent is the payload streamed over SSE and WebSocket.
type roomEvent struct {
    Type   string    `json:"type"` // "room" or "room_deleted"
    RoomID string    `json:"room_id"`
    Room   *roomView `json:"room,omitempty"`
}

// renderRoomEvent is installed as the service's broadcast renderer.
func renderRoomEvent(st app.RoomState) []byte {
    ev := roomEvent{Type: "room", RoomID: st.RoomID, Room: newRoomView(st.Room, st.Game)}
    if st.Deleted {
        ev = roomEvent{Type: "room_deleted", RoomID: st.RoomID}
    }
    b, err := json.Marshal(ev)
    if err != nil {
        return nil
    }
    return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}
