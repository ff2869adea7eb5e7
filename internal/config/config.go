// Package config loads settings from an optional YAML file, an optional .env
// file and the process environment, in increasing order of precedence.
package config

import (
    "errors"
    "fmt"
    "io/fs"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"
)

type Config struct {
    HTTP struct {
        Addr            string        `yaml:"addr"`
        ReadTimeout     time.Duration `yaml:"read_timeout"`
        WriteTimeout    time.Duration `yaml:"write_timeout"`
        ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
    } `yaml:"http"`

    // Database.URL empty selects the in-memory store.
    Database struct {
        URL             string        `yaml:"url"`
        MaxOpenConns    int           `yaml:"max_open_conns"`
        MaxIdleConns    int           `yaml:"max_idle_conns"`
        ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
    } `yaml:"database"`

    // Redis.Addr empty selects the in-process event hub.
    Redis struct {
        Addr     string `yaml:"addr"`
        Password string `yaml:"password"`
        DB       int    `yaml:"db"`
    } `yaml:"redis"`

    Log struct {
        Level  string `yaml:"level"`
        Format string `yaml:"format"` // json or console
    } `yaml:"log"`

    Auth struct {
        GatewayToken string `yaml:"gateway_token"`
    } `yaml:"auth"`

    Match struct {
        CodeAttempts    int `yaml:"code_attempts"`
        ConflictRetries int `yaml:"conflict_retries"`
    } `yaml:"match"`

    Leaderboard struct {
        Size            int           `yaml:"size"`
        RefreshInterval time.Duration `yaml:"refresh_interval"`
    } `yaml:"leaderboard"`
}

// Default returns the built-in settings.
func Default() *Config {
    c := &Config{}
    c.HTTP.Addr = ":8080"
    c.HTTP.ReadTimeout = 10 * time.Second
    c.HTTP.WriteTimeout = 10 * time.Second
    c.HTTP.ShutdownTimeout = 15 * time.Second
    c.Database.MaxOpenConns = 20
    c.Database.MaxIdleConns = 5
    c.Database.ConnMaxLifetime = 30 * time.Minute
    c.Log.Level = "info"
    c.Log.Format = "json"
    c.Match.CodeAttempts = 5
    c.Match.ConflictRetries = 3
    c.Leaderboard.Size = 10
    c.Leaderboard.RefreshInterval = time.Minute
    return c
}

// Load reads path (skipped when empty or missing), then .env, then the
// environment.
func Load(path string) (*Config, error) {
    c := Default()
    if path != "" {
        raw, err := os.ReadFile(path)
        switch {
        case errors.Is(err, fs.ErrNotExist):
        case err != nil:
            return nil, fmt.Errorf("read config %s: %w", path, err)
        default:
            if err := yaml.Unmarshal(raw, c); err != nil {
                return nil, fmt.Errorf("parse config %s: %w", path, err)
            }
        }
    }

    // a missing .env is normal outside development
    if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
        return nil, fmt.Errorf("load .env: %w", err)
    }
    if err := c.applyEnv(); err != nil {
        return nil, err
    }
    if err := c.Validate(); err != nil {
        return nil, err
    }
    return c, nil
}

func (c *Config) applyEnv() error {
    setString := func(key string, dst *string) {
        if v, ok := os.LookupEnv(key); ok {
            *dst = v
        }
    }
    setString("HTTP_ADDR", &c.HTTP.Addr)
    setString("DATABASE_URL", &c.Database.URL)
    setString("REDIS_ADDR", &c.Redis.Addr)
    setString("REDIS_PASSWORD", &c.Redis.Password)
    setString("LOG_LEVEL", &c.Log.Level)
    setString("LOG_FORMAT", &c.Log.Format)
    setString("GATEWAY_TOKEN", &c.Auth.GatewayToken)

    if v, ok := os.LookupEnv("REDIS_DB"); ok {
        n, err := strconv.Atoi(v)
        if err != nil {
            return fmt.Errorf("REDIS_DB: %w", err)
        }
        c.Redis.DB = n
    }
    return nil
}

// Validate rejects settings the process cannot run with.
func (c *Config) Validate() error {
    var errs []error
    if c.HTTP.Addr == "" {
        errs = append(errs, errors.New("http.addr is required"))
    }
    if c.Match.CodeAttempts < 1 {
        errs = append(errs, errors.New("match.code_attempts must be at least 1"))
    }
    if c.Match.ConflictRetries < 0 {
        errs = append(errs, errors.New("match.conflict_retries must not be negative"))
    }
    if c.Leaderboard.Size < 1 {
        errs = append(errs, errors.New("leaderboard.size must be at least 1"))
    }
    if c.Leaderboard.RefreshInterval <= 0 {
        errs = append(errs, errors.New("leaderboard.refresh_interval must be positive"))
    }
    switch c.Log.Format {
    case "json", "console":
    default:
        errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
    }
    if len(errs) > 0 {
        return fmt.Errorf("invalid config: %w", errors.Join(errs...))
    }
    return nil
}
