// Package testutil starts throwaway Postgres and Redis containers for
// integration tests. Tests are skipped under -short or when no container
// runtime is reachable. Containers are terminated through t.Cleanup.
package testutil

import (
    "context"
    "testing"
    "time"

    tc "github.com/testcontainers/testcontainers-go"
    tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
    tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
    "github.com/testcontainers/testcontainers-go/wait"
)

func skipUnlessIntegration(t *testing.T) {
    t.Helper()
    if testing.Short() {
        t.Skip("integration test skipped in -short mode")
    }
    tc.SkipIfProviderIsNotHealthy(t)
}

// Postgres starts a postgres:16-alpine container and returns its DSN.
func Postgres(t *testing.T) string {
    t.Helper()
    skipUnlessIntegration(t)

    ctx := context.Background()
    pg, err := tcpostgres.Run(ctx,
        "postgres:16-alpine",
        tcpostgres.WithDatabase("tictactoe"),
        tcpostgres.WithUsername("tictactoe"),
        tcpostgres.WithPassword("tictactoe"),
        tc.WithWaitStrategy(
            wait.ForLog("database system is ready to accept connections").
                WithOccurrence(2).
                WithStartupTimeout(60*time.Second),
        ),
    )
    if err != nil {
        t.Fatalf("start postgres container: %v", err)
    }
    t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

    dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
    if err != nil {
        t.Fatalf("postgres connection string: %v", err)
    }
    return dsn
}

// Redis starts a redis:7-alpine container and returns its host:port.
func Redis(t *testing.T) string {
    t.Helper()
    skipUnlessIntegration(t)

    ctx := context.Background()
    rc, err := tcredis.Run(ctx, "redis:7-alpine")
    if err != nil {
        t.Fatalf("start redis container: %v", err)
    }
    t.Cleanup(func() { _ = rc.Terminate(context.Background()) })

    addr, err := rc.Endpoint(ctx, "")
    if err != nil {
        t.Fatalf("redis endpoint: %v", err)
    }
    return addr
}
