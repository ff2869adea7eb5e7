package web

import (
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/app"
)

// Options configures NewServer. All fields are optional.
type Options struct {
    // GatewayToken, when set, must accompany every authenticated request as
    // "Authorization: Bearer <token>".
    GatewayToken string
    Leaderboard  *app.Leaderboard
    Logger       *zap.Logger
    // RequestTimeout bounds every route except the event streams.
    RequestTimeout time.Duration
    // Shutdown, once closed, ends every open SSE and WebSocket stream. Pass
    // a channel closed from http.Server.RegisterOnShutdown so Shutdown does
    // not wait on them.
    Shutdown <-chan struct{}
    // CheckOrigin vets WebSocket upgrades; nil accepts any origin.
    CheckOrigin func(r *http.Request) bool
}

// NewServer wires routes and returns an http.Handler. It installs the JSON
// room renderer on s so broadcasts match what the streams send.
func NewServer(s *app.Service, opts Options) http.Handler {
    log := opts.Logger
    if log == nil {
        log = zap.NewNop()
    }
    checkOrigin := opts.CheckOrigin
    if checkOrigin == nil {
        checkOrigin = func(*http.Request) bool { return true }
    }
    s.SetRenderer(renderRoomEvent)

    h := &handlers{
        svc:      s,
        lb:       opts.Leaderboard,
        log:      log,
        shutdown: opts.Shutdown,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            CheckOrigin:     checkOrigin,
        },
    }

    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.RealIP)
    r.Use(requestLogger(log))
    r.Use(middleware.Recoverer)

    r.Get("/healthz", h.health)

    r.Group(func(r chi.Router) {
        r.Use(identity(opts.GatewayToken))

        api := r
        if opts.RequestTimeout > 0 {
            api = r.With(middleware.Timeout(opts.RequestTimeout))
        }
        api.Get("/rooms", h.listRooms)
        api.Post("/rooms", h.createRoom)
        api.Get("/rooms/code/{code}", h.roomByCode)
        api.Post("/rooms/code/{code}/join", h.joinByCode)
        api.Get("/rooms/{id}", h.roomDetail)
        api.Post("/rooms/{id}/join", h.join)
        api.Post("/rooms/{id}/leave", h.leave)
        api.Post("/rooms/{id}/move", h.move)
        api.Post("/quick-match", h.quickMatch)
        api.Get("/stats", h.myStats)
        api.Get("/stats/{userID}", h.userStats)
        api.Get("/leaderboard", h.leaderboard)

        r.Get("/rooms/{id}/events", h.events)
        r.Get("/rooms/{id}/ws", h.ws)
    })
    return r
}
