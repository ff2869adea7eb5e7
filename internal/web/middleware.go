package web

import (
    "context"
    "crypto/subtle"
    "net/http"
    "strings"
    "time"

    "github.com/go-chi/chi/v5/middleware"
    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/app"
)

const (
    headerUserID   = "X-User-ID"
    headerUserName = "X-User-Name"
)

type ctxKey int

const userKey ctxKey = iota

func userFrom(ctx context.Context) app.User {
    u, _ := ctx.Value(userKey).(app.User)
    return u
}

// identity trusts the user asserted by the upstream gateway. When
// gatewayToken is set the gateway must also present it as a bearer token.
func identity(gatewayToken string) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if gatewayToken != "" {
                token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
                if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(gatewayToken)) != 1 {
                    writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", "gateway token missing or invalid")
                    return
                }
            }
            id := strings.TrimSpace(r.Header.Get(headerUserID))
            if id == "" {
                writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", headerUserID+" header required")
                return
            }
            u := app.User{ID: id, Name: strings.TrimSpace(r.Header.Get(headerUserName))}
            next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
        })
    }
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()
            defer func() {
                log.Info("http request",
                    zap.String("method", r.Method),
                    zap.String("path", r.URL.Path),
                    zap.Int("status", ww.Status()),
                    zap.Int("bytes", ww.BytesWritten()),
                    zap.Duration("duration", time.Since(start)),
                    zap.String("request_id", middleware.GetReqID(r.Context())),
                )
            }()
            next.ServeHTTP(ww, r)
        })
    }
}
