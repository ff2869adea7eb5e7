// Command tictactoe serves the room, match and stats API.
package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/go-co-op/gocron/v2"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/app"
    "github.com/jaminalder/tictactoe-rooms/internal/config"
    "github.com/jaminalder/tictactoe-rooms/internal/events"
    "github.com/jaminalder/tictactoe-rooms/internal/logger"
    "github.com/jaminalder/tictactoe-rooms/internal/store"
    "github.com/jaminalder/tictactoe-rooms/internal/web"
)

func main() {
    configPath := flag.String("config", "config.yaml", "path to an optional YAML config file")
    flag.Parse()

    cfg, err := config.Load(*configPath)
    if err != nil {
        fmt.Fprintln(os.Stderr, "config:", err)
        os.Exit(2)
    }
    log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
    if err != nil {
        fmt.Fprintln(os.Stderr, "logger:", err)
        os.Exit(2)
    }
    defer func() { _ = log.Sync() }()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if err := run(ctx, cfg, log); err != nil {
        log.Error("server stopped", zap.Error(err))
        stop()
        os.Exit(1)
    }
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
    st, err := openStore(ctx, cfg, log)
    if err != nil {
        return err
    }
    defer st.Close()

    broker, err := openBroker(ctx, cfg, log)
    if err != nil {
        return err
    }
    defer broker.Close()

    svc := app.NewService(st, broker, log, app.Settings{
        CodeAttempts:    cfg.Match.CodeAttempts,
        ConflictRetries: cfg.Match.ConflictRetries,
    })

    lb := app.NewLeaderboard(st, cfg.Leaderboard.Size, log)
    if err := lb.Refresh(ctx); err != nil {
        log.Warn("initial leaderboard refresh failed", zap.Error(err))
    }
    sched, err := gocron.NewScheduler()
    if err != nil {
        return fmt.Errorf("create scheduler: %w", err)
    }
    defer func() {
        if err := sched.Shutdown(); err != nil {
            log.Warn("scheduler shutdown", zap.Error(err))
        }
    }()
    if _, err := lb.Schedule(sched, cfg.Leaderboard.RefreshInterval); err != nil {
        return err
    }
    sched.Start()

    streamsDone := make(chan struct{})
    srv := &http.Server{
        Addr: cfg.HTTP.Addr,
        Handler: web.NewServer(svc, web.Options{
            GatewayToken:   cfg.Auth.GatewayToken,
            Leaderboard:    lb,
            Logger:         log,
            RequestTimeout: cfg.HTTP.WriteTimeout,
            Shutdown:       streamsDone,
        }),
        ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
    }
    srv.RegisterOnShutdown(func() { close(streamsDone) })

    errc := make(chan error, 1)
    go func() {
        log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
        errc <- srv.ListenAndServe()
    }()

    select {
    case err := <-errc:
        return err
    case <-ctx.Done():
    }

    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        return fmt.Errorf("shutdown: %w", err)
    }
    if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
        return err
    }
    return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
    if cfg.Database.URL == "" {
        log.Info("using in-memory store")
        return store.NewMemory(), nil
    }
    st, err := store.OpenPostgres(ctx, cfg.Database.URL, store.PostgresOptions{
        MaxOpenConns:    cfg.Database.MaxOpenConns,
        MaxIdleConns:    cfg.Database.MaxIdleConns,
        ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
    })
    if err != nil {
        return nil, fmt.Errorf("open postgres: %w", err)
    }
    log.Info("using postgres store")
    return st, nil
}

func openBroker(ctx context.Context, cfg *config.Config, log *zap.Logger) (events.Broker, error) {
    if cfg.Redis.Addr == "" {
        log.Info("using in-process event hub")
        return events.NewHub(), nil
    }
    b, err := events.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
    if err != nil {
        return nil, fmt.Errorf("dial redis: %w", err)
    }
    log.Info("using redis broker", zap.String("addr", cfg.Redis.Addr))
    return b, nil
}
