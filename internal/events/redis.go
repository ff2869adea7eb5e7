package events

import (
    "context"
    "fmt"
    "sync"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

// RedisBroker relays room updates through Redis pub/sub so every instance
// behind a load balancer sees every update. One channel per room.
type RedisBroker struct {
    client *redis.Client
    log    *zap.Logger
}

// NewRedisBroker takes ownership of client.
func NewRedisBroker(client *redis.Client, log *zap.Logger) *RedisBroker {
    if log == nil {
        log = zap.NewNop()
    }
    return &RedisBroker{client: client, log: log}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr, password string, db int, log *zap.Logger) (*RedisBroker, error) {
    client := redis.NewClient(&redis.Options{
        Addr:     addr,
        Password: password,
        DB:       db,
    })
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("ping redis %s: %w", addr, err)
    }
    return NewRedisBroker(client, log), nil
}

func (b *RedisBroker) Publish(ctx context.Context, roomID string, payload []byte) error {
    if err := b.client.Publish(ctx, channelName(roomID), payload).Err(); err != nil {
        return fmt.Errorf("publish room %s: %w", roomID, err)
    }
    return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, roomID string) (<-chan []byte, func(), error) {
    ps := b.client.Subscribe(ctx, channelName(roomID))
    // wait for the subscription to be confirmed so no publish is missed
    if _, err := ps.Receive(ctx); err != nil {
        _ = ps.Close()
        return nil, nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
    }

    out := make(chan []byte, subscriberBuffer)
    done := make(chan struct{})
    var once sync.Once
    unsub := func() {
        once.Do(func() {
            close(done)
            _ = ps.Close()
        })
    }

    go func() {
        defer close(out)
        msgs := ps.Channel()
        for {
            select {
            case <-ctx.Done():
                unsub()
                return
            case <-done:
                return
            case msg, ok := <-msgs:
                if !ok {
                    return
                }
                select {
                case out <- []byte(msg.Payload):
                default:
                    b.log.Warn("dropping slow room subscriber", zap.String("room_id", roomID))
                    unsub()
                    return
                }
            }
        }
    }()
    return out, unsub, nil
}

func (b *RedisBroker) Close() error { return b.client.Close() }
