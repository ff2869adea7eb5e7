package store

import (
    "encoding/json"
    "fmt"
    "time"

    "gorm.io/datatypes"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

// roomRow is a room; its members live in room_members ordered by seat.
type roomRow struct {
    ID          string    `gorm:"primaryKey;type:varchar(36)"`
    Name        string    `gorm:"size:100;not null"`
    Code        string    `gorm:"size:6;uniqueIndex:idx_rooms_code;not null"`
    CreatorID   string    `gorm:"index;not null"`
    Status      string    `gorm:"size:16;index;not null"`
    MemberCount int       `gorm:"not null;default:0"`
    CreatedAt   time.Time `gorm:"index;not null"`
}

func (roomRow) TableName() string { return "rooms" }

type memberRow struct {
    RoomID string `gorm:"primaryKey;type:varchar(36)"`
    UserID string `gorm:"primaryKey;index"`
    Seat   int    `gorm:"not null"`
}

func (memberRow) TableName() string { return "room_members" }

type gameRow struct {
    ID         string         `gorm:"primaryKey;type:varchar(36)"`
    RoomID     string         `gorm:"type:varchar(36);uniqueIndex;not null"`
    PlayerX    string         `gorm:"not null"`
    PlayerO    string         `gorm:"not null"`
    Board      datatypes.JSON `gorm:"type:jsonb;not null"`
    Turn       string         `gorm:"size:1;not null"`
    Status     string         `gorm:"size:16;not null"`
    Winner     *string
    CreatedAt  time.Time `gorm:"not null"`
    FinishedAt *time.Time
}

func (gameRow) TableName() string { return "games" }

type statsRow struct {
    UserID      string `gorm:"primaryKey"`
    GamesPlayed int    `gorm:"not null;default:0"`
    Wins        int    `gorm:"not null;default:0;index"`
    Losses      int    `gorm:"not null;default:0"`
    Draws       int    `gorm:"not null;default:0"`
    UpdatedAt   time.Time
}

func (statsRow) TableName() string { return "user_stats" }

func toRoomRow(r *domain.Room) roomRow {
    return roomRow{
        ID:          r.ID,
        Name:        r.Name,
        Code:        r.Code,
        CreatorID:   r.CreatorID,
        Status:      string(r.Status),
        MemberCount: len(r.Members),
        CreatedAt:   r.CreatedAt,
    }
}

func toMemberRows(r *domain.Room) []memberRow {
    out := make([]memberRow, len(r.Members))
    for i, m := range r.Members {
        out[i] = memberRow{RoomID: r.ID, UserID: m, Seat: i}
    }
    return out
}

func fromRoomRow(row roomRow, members []memberRow) *domain.Room {
    r := &domain.Room{
        ID:        row.ID,
        Name:      row.Name,
        Code:      row.Code,
        CreatorID: row.CreatorID,
        Members:   make([]string, 0, len(members)),
        Status:    domain.RoomStatus(row.Status),
        CreatedAt: row.CreatedAt,
    }
    for _, m := range members {
        r.Members = append(r.Members, m.UserID)
    }
    return r
}

func toGameRow(g *domain.Game) (gameRow, error) {
    board, err := json.Marshal(g.Board.Rows())
    if err != nil {
        return gameRow{}, fmt.Errorf("encode board: %w", err)
    }
    row := gameRow{
        ID:         g.ID,
        RoomID:     g.RoomID,
        PlayerX:    g.PlayerX,
        PlayerO:    g.PlayerO,
        Board:      datatypes.JSON(board),
        Turn:       g.Turn.String(),
        Status:     string(g.Status),
        CreatedAt:  g.CreatedAt,
        FinishedAt: g.FinishedAt,
    }
    if g.Winner != "" {
        w := g.Winner
        row.Winner = &w
    }
    return row, nil
}

func fromGameRow(row gameRow) (*domain.Game, error) {
    var rows [3][3]string
    if err := json.Unmarshal(row.Board, &rows); err != nil {
        return nil, fmt.Errorf("decode board of game %s: %w", row.ID, err)
    }
    g := &domain.Game{
        ID:         row.ID,
        RoomID:     row.RoomID,
        PlayerX:    row.PlayerX,
        PlayerO:    row.PlayerO,
        Board:      domain.BoardFromRows(rows),
        Turn:       domain.ParseCell(row.Turn),
        Status:     domain.GameStatus(row.Status),
        CreatedAt:  row.CreatedAt,
        FinishedAt: row.FinishedAt,
    }
    if row.Winner != nil {
        g.Winner = *row.Winner
    }
    return g, nil
}

func fromStatsRow(row statsRow) *domain.UserStats {
    return &domain.UserStats{
        UserID:      row.UserID,
        GamesPlayed: row.GamesPlayed,
        Wins:        row.Wins,
        Losses:      row.Losses,
        Draws:       row.Draws,
    }
}
