package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// chdir into an empty directory so a developer's .env does not leak in.
func isolate(t *testing.T) string {
    t.Helper()
    dir := t.TempDir()
    wd, err := os.Getwd()
    require.NoError(t, err)
    require.NoError(t, os.Chdir(dir))
    t.Cleanup(func() { _ = os.Chdir(wd) })
    for _, k := range []string{"HTTP_ADDR", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL", "LOG_FORMAT", "GATEWAY_TOKEN"} {
        k := k
        if v, ok := os.LookupEnv(k); ok {
            require.NoError(t, os.Unsetenv(k))
            t.Cleanup(func() { _ = os.Setenv(k, v) })
        }
    }
    return dir
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
    dir := isolate(t)
    c, err := Load(filepath.Join(dir, "missing.yaml"))
    require.NoError(t, err)
    assert.Equal(t, ":8080", c.HTTP.Addr)
    assert.Empty(t, c.Database.URL)
    assert.Equal(t, 5, c.Match.CodeAttempts)
    assert.Equal(t, time.Minute, c.Leaderboard.RefreshInterval)
}

func TestLoadYAMLThenEnv(t *testing.T) {
    dir := isolate(t)
    path := filepath.Join(dir, "config.yaml")
    require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
  shutdown_timeout: 3s
database:
  url: postgres://file
log:
  level: debug
  format: console
match:
  code_attempts: 7
leaderboard:
  size: 25
  refresh_interval: 30s
`), 0o600))
    t.Setenv("DATABASE_URL", "postgres://env")
    t.Setenv("REDIS_DB", "2")

    c, err := Load(path)
    require.NoError(t, err)
    assert.Equal(t, ":9000", c.HTTP.Addr)
    assert.Equal(t, 3*time.Second, c.HTTP.ShutdownTimeout)
    assert.Equal(t, "postgres://env", c.Database.URL)
    assert.Equal(t, 2, c.Redis.DB)
    assert.Equal(t, "console", c.Log.Format)
    assert.Equal(t, 7, c.Match.CodeAttempts)
    assert.Equal(t, 3, c.Match.ConflictRetries)
    assert.Equal(t, 25, c.Leaderboard.Size)
    assert.Equal(t, 30*time.Second, c.Leaderboard.RefreshInterval)
}

func TestLoadDotEnv(t *testing.T) {
    dir := isolate(t)
    require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GATEWAY_TOKEN=s3cret\nREDIS_ADDR=localhost:6379\n"), 0o600))
    t.Cleanup(func() {
        _ = os.Unsetenv("GATEWAY_TOKEN")
        _ = os.Unsetenv("REDIS_ADDR")
    })

    c, err := Load("")
    require.NoError(t, err)
    assert.Equal(t, "s3cret", c.Auth.GatewayToken)
    assert.Equal(t, "localhost:6379", c.Redis.Addr)
}

func TestValidate(t *testing.T) {
    c := Default()
    require.NoError(t, c.Validate())

    c.Match.CodeAttempts = 0
    c.Log.Format = "xml"
    err := c.Validate()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "code_attempts")
    assert.Contains(t, err.Error(), "log.format")
}

func TestLoadRejectsBadYAML(t *testing.T) {
    dir := isolate(t)
    path := filepath.Join(dir, "config.yaml")
    require.NoError(t, os.WriteFile(path, []byte("http: [not a map"), 0o600))
    _, err := Load(path)
    assert.Error(t, err)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
    isolate(t)
    t.Setenv("REDIS_DB", "two")
    _, err := Load("")
    assert.Error(t, err)
}
