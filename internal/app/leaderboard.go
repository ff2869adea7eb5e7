package app

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/go-co-op/gocron/v2"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
    "github.com/jaminalder/tictactoe-rooms/internal/store"
)

// Leaderboard caches the top players by wins. It is rebuilt by Refresh,
// usually from a scheduled job.
type Leaderboard struct {
    store store.Reader
    size  int
    log   *zap.Logger
    now   func() time.Time

    mu        sync.RWMutex
    entries   []domain.UserStats
    refreshed time.Time
}

func NewLeaderboard(r store.Reader, size int, log *zap.Logger) *Leaderboard {
    if log == nil {
        log = zap.NewNop()
    }
    return &Leaderboard{store: r, size: size, log: log, now: time.Now}
}

// Refresh reloads the standings from the store.
func (l *Leaderboard) Refresh(ctx context.Context) error {
    top, err := l.store.TopStats(ctx, l.size)
    if err != nil {
        return fmt.Errorf("refresh leaderboard: %w", err)
    }
    entries := make([]domain.UserStats, len(top))
    for i, st := range top {
        entries[i] = *st
    }
    l.mu.Lock()
    l.entries = entries
    l.refreshed = l.now()
    l.mu.Unlock()
    return nil
}

// Top returns a copy of the cached standings and when they were loaded. The
// time is zero before the first refresh.
func (l *Leaderboard) Top() ([]domain.UserStats, time.Time) {
    l.mu.RLock()
    defer l.mu.RUnlock()
    out := make([]domain.UserStats, len(l.entries))
    copy(out, l.entries)
    return out, l.refreshed
}

// Schedule registers a job on sched that refreshes every interval. Runs do
// not overlap and each is bounded by interval.
func (l *Leaderboard) Schedule(sched gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
    job, err := sched.NewJob(
        gocron.DurationJob(interval),
        gocron.NewTask(func() {
            ctx, cancel := context.WithTimeout(context.Background(), interval)
            defer cancel()
            if err := l.Refresh(ctx); err != nil {
                l.log.Error("leaderboard refresh failed", zap.Error(err))
            }
        }),
        gocron.WithSingletonMode(gocron.LimitModeReschedule),
        gocron.WithName("leaderboard-refresh"),
    )
    if err != nil {
        return nil, fmt.Errorf("schedule leaderboard refresh: %w", err)
    }
    return job, nil
}
