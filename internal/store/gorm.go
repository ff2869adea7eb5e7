package store

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/jackc/pgx/v5/pgconn"
    "gorm.io/driver/postgres"
    "gorm.io/gorm"
    "gorm.io/gorm/clause"
    gormlogger "gorm.io/gorm/logger"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

// matchmakingLockKey is the pg_advisory_xact_lock key taken by quick-match.
const matchmakingLockKey int64 = 0x7474_7430_6d6d

// Gorm is the Postgres-backed store. Locking reads use SELECT ... FOR UPDATE
// and quick-match takes a transaction-scoped advisory lock.
type Gorm struct {
    db *gorm.DB
}

// PostgresOptions tunes the connection pool.
type PostgresOptions struct {
    MaxOpenConns    int
    MaxIdleConns    int
    ConnMaxLifetime time.Duration
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*Gorm, error) {
    db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
        Logger: gormlogger.Default.LogMode(gormlogger.Warn),
    })
    if err != nil {
        return nil, fmt.Errorf("open postgres: %w", err)
    }
    sqlDB, err := db.DB()
    if err != nil {
        return nil, fmt.Errorf("postgres pool: %w", err)
    }
    if opts.MaxOpenConns > 0 {
        sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
    }
    if opts.MaxIdleConns > 0 {
        sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
    }
    if opts.ConnMaxLifetime > 0 {
        sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
    }
    s := NewGorm(db)
    if err := s.Migrate(ctx); err != nil {
        _ = sqlDB.Close()
        return nil, err
    }
    return s, nil
}

// NewGorm wraps an open connection. The schema must already exist; see Migrate.
func NewGorm(db *gorm.DB) *Gorm { return &Gorm{db: db} }

// Migrate creates or updates the tables.
func (s *Gorm) Migrate(ctx context.Context) error {
    if err := s.db.WithContext(ctx).AutoMigrate(&roomRow{}, &memberRow{}, &gameRow{}, &statsRow{}); err != nil {
        return fmt.Errorf("migrate: %w", err)
    }
    return nil
}

func (s *Gorm) Close() error {
    sqlDB, err := s.db.DB()
    if err != nil {
        return err
    }
    return sqlDB.Close()
}

func (s *Gorm) Tx(ctx context.Context, fn func(tx Tx) error) error {
    err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
        return fn(&gormTx{gormReader{db}})
    })
    return classify(err)
}

func (s *Gorm) reader(ctx context.Context) gormReader { return gormReader{s.db.WithContext(ctx)} }

func (s *Gorm) Room(ctx context.Context, id string) (*domain.Room, error) {
    return s.reader(ctx).Room(ctx, id)
}

func (s *Gorm) RoomByCode(ctx context.Context, code string) (*domain.Room, error) {
    return s.reader(ctx).RoomByCode(ctx, code)
}

func (s *Gorm) Rooms(ctx context.Context, statuses ...domain.RoomStatus) ([]*domain.Room, error) {
    return s.reader(ctx).Rooms(ctx, statuses...)
}

func (s *Gorm) Game(ctx context.Context, roomID string) (*domain.Game, bool, error) {
    return s.reader(ctx).Game(ctx, roomID)
}

func (s *Gorm) Stats(ctx context.Context, userID string) (*domain.UserStats, bool, error) {
    return s.reader(ctx).Stats(ctx, userID)
}

func (s *Gorm) TopStats(ctx context.Context, limit int) ([]*domain.UserStats, error) {
    return s.reader(ctx).TopStats(ctx, limit)
}

// classify maps Postgres failures onto the store sentinels.
func classify(err error) error {
    if err == nil {
        return nil
    }
    var pgErr *pgconn.PgError
    if !errors.As(err, &pgErr) {
        return err
    }
    switch pgErr.Code {
    case "40001", "40P01": // serialization_failure, deadlock_detected
        return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
    case "23505": // unique_violation
        if strings.Contains(pgErr.ConstraintName, "code") {
            return fmt.Errorf("%w: %s", ErrDuplicateCode, pgErr.Message)
        }
    }
    return err
}

type gormReader struct {
    db *gorm.DB
}

func (r gormReader) Room(ctx context.Context, id string) (*domain.Room, error) {
    return r.findRoom(ctx, r.db, "id = ?", id)
}

func (r gormReader) RoomByCode(ctx context.Context, code string) (*domain.Room, error) {
    return r.findRoom(ctx, r.db, "code = ?", strings.ToUpper(code))
}

func (r gormReader) findRoom(ctx context.Context, q *gorm.DB, where string, args ...any) (*domain.Room, error) {
    var row roomRow
    err := q.WithContext(ctx).Where(where, args...).Take(&row).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, domain.ErrRoomNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load room: %w", err)
    }
    var members []memberRow
    if err := r.db.WithContext(ctx).Where("room_id = ?", row.ID).Order("seat").Find(&members).Error; err != nil {
        return nil, fmt.Errorf("load members of room %s: %w", row.ID, err)
    }
    return fromRoomRow(row, members), nil
}

func (r gormReader) Rooms(ctx context.Context, statuses ...domain.RoomStatus) ([]*domain.Room, error) {
    q := r.db.WithContext(ctx).Order("created_at DESC, id ASC")
    if len(statuses) > 0 {
        names := make([]string, len(statuses))
        for i, st := range statuses {
            names[i] = string(st)
        }
        q = q.Where("status IN ?", names)
    }
    var rows []roomRow
    if err := q.Find(&rows).Error; err != nil {
        return nil, fmt.Errorf("list rooms: %w", err)
    }
    if len(rows) == 0 {
        return nil, nil
    }
    ids := make([]string, len(rows))
    for i, row := range rows {
        ids[i] = row.ID
    }
    var members []memberRow
    if err := r.db.WithContext(ctx).Where("room_id IN ?", ids).Order("room_id, seat").Find(&members).Error; err != nil {
        return nil, fmt.Errorf("list members: %w", err)
    }
    byRoom := make(map[string][]memberRow, len(rows))
    for _, m := range members {
        byRoom[m.RoomID] = append(byRoom[m.RoomID], m)
    }
    out := make([]*domain.Room, len(rows))
    for i, row := range rows {
        out[i] = fromRoomRow(row, byRoom[row.ID])
    }
    return out, nil
}

func (r gormReader) Game(ctx context.Context, roomID string) (*domain.Game, bool, error) {
    return r.findGame(ctx, r.db, roomID)
}

func (r gormReader) findGame(ctx context.Context, q *gorm.DB, roomID string) (*domain.Game, bool, error) {
    var row gameRow
    err := q.WithContext(ctx).Where("room_id = ?", roomID).Take(&row).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, false, nil
    }
    if err != nil {
        return nil, false, fmt.Errorf("load game of room %s: %w", roomID, err)
    }
    g, err := fromGameRow(row)
    if err != nil {
        return nil, false, err
    }
    return g, true, nil
}

func (r gormReader) Stats(ctx context.Context, userID string) (*domain.UserStats, bool, error) {
    var row statsRow
    err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, false, nil
    }
    if err != nil {
        return nil, false, fmt.Errorf("load stats: %w", err)
    }
    return fromStatsRow(row), true, nil
}

func (r gormReader) TopStats(ctx context.Context, limit int) ([]*domain.UserStats, error) {
    q := r.db.WithContext(ctx).Order("wins DESC, losses ASC, user_id ASC")
    if limit > 0 {
        q = q.Limit(limit)
    }
    var rows []statsRow
    if err := q.Find(&rows).Error; err != nil {
        return nil, fmt.Errorf("top stats: %w", err)
    }
    out := make([]*domain.UserStats, len(rows))
    for i, row := range rows {
        out[i] = fromStatsRow(row)
    }
    return out, nil
}

type gormTx struct {
    gormReader
}

func (tx *gormTx) forUpdate() *gorm.DB {
    return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (tx *gormTx) LockRoom(ctx context.Context, id string) (*domain.Room, error) {
    return tx.findRoom(ctx, tx.forUpdate(), "id = ?", id)
}

func (tx *gormTx) LockOpenRoom(ctx context.Context, excludeUser string) (*domain.Room, error) {
    var rows []roomRow
    err := tx.db.WithContext(ctx).
        Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
        Where("status = ? AND member_count = 1", string(domain.RoomWaiting)).
        Where("NOT EXISTS (SELECT 1 FROM room_members m WHERE m.room_id = rooms.id AND m.user_id = ?)", excludeUser).
        Order("created_at ASC, id ASC").
        Limit(1).
        Find(&rows).Error
    if err != nil {
        return nil, fmt.Errorf("find open room: %w", err)
    }
    if len(rows) == 0 {
        return nil, nil
    }
    var members []memberRow
    if err := tx.db.WithContext(ctx).Where("room_id = ?", rows[0].ID).Order("seat").Find(&members).Error; err != nil {
        return nil, fmt.Errorf("load members of room %s: %w", rows[0].ID, err)
    }
    return fromRoomRow(rows[0], members), nil
}

func (tx *gormTx) LockMatchmaking(ctx context.Context) error {
    if err := tx.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", matchmakingLockKey).Error; err != nil {
        return fmt.Errorf("matchmaking lock: %w", err)
    }
    return nil
}

func (tx *gormTx) LockStats(ctx context.Context, userID string) (*domain.UserStats, error) {
    db := tx.db.WithContext(ctx)
    if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&statsRow{UserID: userID}).Error; err != nil {
        return nil, fmt.Errorf("create stats: %w", err)
    }
    var row statsRow
    if err := tx.forUpdate().WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error; err != nil {
        return nil, fmt.Errorf("lock stats: %w", err)
    }
    return fromStatsRow(row), nil
}

func (tx *gormTx) CreateRoom(ctx context.Context, r *domain.Room) error {
    db := tx.db.WithContext(ctx)
    row := toRoomRow(r)
    if err := db.Create(&row).Error; err != nil {
        return classify(err)
    }
    if members := toMemberRows(r); len(members) > 0 {
        if err := db.Create(&members).Error; err != nil {
            return fmt.Errorf("insert members: %w", err)
        }
    }
    return nil
}

func (tx *gormTx) UpdateRoom(ctx context.Context, r *domain.Room) error {
    db := tx.db.WithContext(ctx)
    res := db.Model(&roomRow{}).Where("id = ?", r.ID).Updates(map[string]any{
        "name":         r.Name,
        "status":       string(r.Status),
        "member_count": len(r.Members),
    })
    if res.Error != nil {
        return fmt.Errorf("update room: %w", res.Error)
    }
    if res.RowsAffected == 0 {
        return domain.ErrRoomNotFound
    }
    if err := db.Where("room_id = ?", r.ID).Delete(&memberRow{}).Error; err != nil {
        return fmt.Errorf("clear members: %w", err)
    }
    if members := toMemberRows(r); len(members) > 0 {
        if err := db.Create(&members).Error; err != nil {
            return fmt.Errorf("insert members: %w", err)
        }
    }
    return nil
}

func (tx *gormTx) DeleteRoom(ctx context.Context, id string) error {
    db := tx.db.WithContext(ctx)
    if err := db.Where("room_id = ?", id).Delete(&gameRow{}).Error; err != nil {
        return fmt.Errorf("delete game: %w", err)
    }
    if err := db.Where("room_id = ?", id).Delete(&memberRow{}).Error; err != nil {
        return fmt.Errorf("delete members: %w", err)
    }
    res := db.Where("id = ?", id).Delete(&roomRow{})
    if res.Error != nil {
        return fmt.Errorf("delete room: %w", res.Error)
    }
    if res.RowsAffected == 0 {
        return domain.ErrRoomNotFound
    }
    return nil
}

func (tx *gormTx) CreateGame(ctx context.Context, g *domain.Game) error {
    row, err := toGameRow(g)
    if err != nil {
        return err
    }
    if err := tx.db.WithContext(ctx).Create(&row).Error; err != nil {
        return fmt.Errorf("insert game: %w", err)
    }
    return nil
}

func (tx *gormTx) UpdateGame(ctx context.Context, g *domain.Game) error {
    row, err := toGameRow(g)
    if err != nil {
        return err
    }
    res := tx.db.WithContext(ctx).Model(&gameRow{}).Where("id = ?", g.ID).Updates(map[string]any{
        "board":       row.Board,
        "turn":        row.Turn,
        "status":      row.Status,
        "winner":      row.Winner,
        "finished_at": row.FinishedAt,
    })
    if res.Error != nil {
        return fmt.Errorf("update game: %w", res.Error)
    }
    if res.RowsAffected == 0 {
        return domain.ErrGameNotActive
    }
    return nil
}

func (tx *gormTx) DeleteGame(ctx context.Context, roomID string) error {
    if err := tx.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&gameRow{}).Error; err != nil {
        return fmt.Errorf("delete game: %w", err)
    }
    return nil
}

func (tx *gormTx) SaveStats(ctx context.Context, s *domain.UserStats) error {
    row := statsRow{
        UserID:      s.UserID,
        GamesPlayed: s.GamesPlayed,
        Wins:        s.Wins,
        Losses:      s.Losses,
        Draws:       s.Draws,
    }
    if err := tx.db.WithContext(ctx).Save(&row).Error; err != nil {
        return fmt.Errorf("save stats: %w", err)
    }
    return nil
}
