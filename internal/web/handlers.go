package web

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"
    "unicode/utf8"

    "github.com/go-chi/chi/v5"
    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/app"
)

type handlers struct {
    svc      *app.Service
    lb       *app.Leaderboard
    log      *zap.Logger
    shutdown <-chan struct{}
    upgrader websocket.Upgrader
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
    dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
    dec.DisallowUnknownFields()
    if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
        return validationError("malformed JSON body: " + err.Error())
    }
    return nil
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listRooms(w http.ResponseWriter, r *http.Request) {
    rooms, err := h.svc.ListRooms(r.Context())
    if err != nil {
        h.fail(w, r, err)
        return
    }
    out := make([]*roomView, len(rooms))
    for i, room := range rooms {
        out[i] = newRoomView(room, nil)
    }
    writeJSON(w, http.StatusOK, map[string]any{"rooms": out})
}

func (h *handlers) createRoom(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Name string `json:"name"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.fail(w, r, err)
        return
    }
    if utf8.RuneCountInString(req.Name) > app.MaxRoomName {
        h.fail(w, r, validationError(fmt.Sprintf("name longer than %d characters", app.MaxRoomName)))
        return
    }
    room, err := h.svc.CreateRoom(r.Context(), userFrom(r.Context()), req.Name)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusCreated, newRoomView(room, nil))
}

func (h *handlers) roomByCode(w http.ResponseWriter, r *http.Request) {
    room, err := h.svc.RoomByCode(r.Context(), chi.URLParam(r, "code"))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newRoomView(room, nil))
}

func (h *handlers) joinByCode(w http.ResponseWriter, r *http.Request) {
    room, game, err := h.svc.JoinByCode(r.Context(), userFrom(r.Context()), chi.URLParam(r, "code"))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newRoomView(room, game))
}

func (h *handlers) roomDetail(w http.ResponseWriter, r *http.Request) {
    room, game, err := h.svc.RoomDetail(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newRoomView(room, game))
}

func (h *handlers) join(w http.ResponseWriter, r *http.Request) {
    room, game, err := h.svc.JoinRoom(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newRoomView(room, game))
}

func (h *handlers) leave(w http.ResponseWriter, r *http.Request) {
    res, err := h.svc.LeaveRoom(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, struct {
        Room      *roomView `json:"room"`
        Deleted   bool      `json:"deleted"`
        Forfeited *gameView `json:"forfeited_game"`
    }{newRoomView(res.Room, nil), res.Deleted, newGameView(res.Forfeited)})
}

func (h *handlers) move(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Row *int `json:"row"`
        Col *int `json:"col"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.fail(w, r, err)
        return
    }
    if req.Row == nil || req.Col == nil {
        h.fail(w, r, validationError("row and col are required"))
        return
    }
    if *req.Row < 0 || *req.Row > 2 || *req.Col < 0 || *req.Col > 2 {
        h.fail(w, r, validationError("row and col must be between 0 and 2"))
        return
    }
    room, game, err := h.svc.Move(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"), *req.Row, *req.Col)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newRoomView(room, game))
}

func (h *handlers) quickMatch(w http.ResponseWriter, r *http.Request) {
    room, game, action, err := h.svc.QuickMatch(r.Context(), userFrom(r.Context()))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    status := http.StatusOK
    if action == app.ActionCreated {
        status = http.StatusCreated
    }
    writeJSON(w, status, struct {
        Room   *roomView `json:"room"`
        Action string    `json:"action"`
    }{newRoomView(room, game), string(action)})
}

func (h *handlers) myStats(w http.ResponseWriter, r *http.Request) {
    h.writeStats(w, r, userFrom(r.Context()).ID)
}

func (h *handlers) userStats(w http.ResponseWriter, r *http.Request) {
    h.writeStats(w, r, chi.URLParam(r, "userID"))
}

func (h *handlers) writeStats(w http.ResponseWriter, r *http.Request, userID string) {
    st, err := h.svc.Stats(r.Context(), userID)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, newStatsView(*st))
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
    entries := []statsView{}
    var refreshed *time.Time
    if h.lb != nil {
        top, at := h.lb.Top()
        for _, st := range top {
            entries = append(entries, newStatsView(st))
        }
        if !at.IsZero() {
            refreshed = &at
        }
    }
    writeJSON(w, http.StatusOK, struct {
        Entries     []statsView `json:"entries"`
        RefreshedAt *time.Time  `json:"refreshed_at"`
    }{entries, refreshed})
}
