package web

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/app"
)

var heartbeatInterval = 15 * time.Second

const (
    wsWriteWait  = 10 * time.Second
    wsPongWait   = 60 * time.Second
    wsPingPeriod = wsPongWait * 9 / 10
)

// subscribe opens a room subscription for a member and returns the current
// snapshot. The subscription is taken first so no update between the two is
// lost.
func (h *handlers) subscribe(ctx context.Context, roomID string) (<-chan []byte, func(), []byte, error) {
    ch, unsub, err := h.svc.Subscribe(ctx, roomID)
    if err != nil {
        return nil, nil, nil, err
    }
    room, game, err := h.svc.RoomDetail(ctx, userFrom(ctx), roomID)
    if err != nil {
        unsub()
        return nil, nil, nil, err
    }
    return ch, unsub, renderRoomEvent(app.RoomState{RoomID: roomID, Room: room, Game: game}), nil
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
    flusher, ok := w.(http.Flusher)
    if !ok {
        h.fail(w, r, fmt.Errorf("response writer %T cannot stream", w))
        return
    }
    ctx := r.Context()
    ch, unsub, snapshot, err := h.subscribe(ctx, chi.URLParam(r, "id"))
    if err != nil {
        h.fail(w, r, err)
        return
    }
    defer unsub()

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("X-Accel-Buffering", "no")
    w.WriteHeader(http.StatusOK)

    writeEvent := func(b []byte) {
        _, _ = fmt.Fprintf(w, "event: room\n")
        _, _ = fmt.Fprintf(w, "data: %s\n\n", b)
        flusher.Flush()
    }
    writeEvent(snapshot)

    ticker := time.NewTicker(heartbeatInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-h.shutdown:
            return
        case <-ticker.C:
            _, _ = io.WriteString(w, ": ping\n\n")
            flusher.Flush()
        case b, ok := <-ch:
            if !ok {
                return
            }
            writeEvent(b)
        }
    }
}

func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithCancel(r.Context())
    defer cancel()
    roomID := chi.URLParam(r, "id")
    ch, unsub, snapshot, err := h.subscribe(ctx, roomID)
    if err != nil {
        h.fail(w, r, err)
        return
    }
    defer unsub()

    conn, err := h.upgrader.Upgrade(w, r, nil)
    if err != nil {
        // the upgrader has already replied
        h.log.Warn("websocket upgrade failed", zap.String("room_id", roomID), zap.Error(err))
        return
    }
    defer conn.Close()

    // clients only send control frames; reading is needed to process them
    // and to notice the close
    go func() {
        defer cancel()
        conn.SetReadLimit(512)
        _ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
        conn.SetPongHandler(func(string) error {
            return conn.SetReadDeadline(time.Now().Add(wsPongWait))
        })
        for {
            if _, _, err := conn.NextReader(); err != nil {
                if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
                    h.log.Debug("websocket read", zap.String("room_id", roomID), zap.Error(err))
                }
                return
            }
        }
    }()

    write := func(msgType int, b []byte) bool {
        _ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
        return conn.WriteMessage(msgType, b) == nil
    }
    if !write(websocket.TextMessage, snapshot) {
        return
    }

    ticker := time.NewTicker(wsPingPeriod)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            _ = conn.WriteControl(websocket.CloseMessage,
                websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
            return
        case <-h.shutdown:
            _ = conn.WriteControl(websocket.CloseMessage,
                websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(wsWriteWait))
            return
        case <-ticker.C:
            if !write(websocket.PingMessage, nil) {
                return
            }
        case b, ok := <-ch:
            if !ok {
                _ = conn.WriteControl(websocket.CloseMessage,
                    websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber dropped"), time.Now().Add(wsWriteWait))
                return
            }
            if !write(websocket.TextMessage, b) {
                return
            }
        }
    }
}
