// Package events fans room updates out to streaming clients.
package events

import "context"

// Broker delivers opaque payloads to every subscriber of a room.
//
// Delivery is best effort. A subscriber that cannot keep up is dropped: its
// channel is closed and it must re-subscribe and re-read the room.
type Broker interface {
    Publish(ctx context.Context, roomID string, payload []byte) error
    // Subscribe returns a channel of payloads for roomID and a func that
    // cancels the subscription. The subscription also ends with ctx.
    Subscribe(ctx context.Context, roomID string) (<-chan []byte, func(), error)
    Close() error
}

// subscriberBuffer is the per-subscriber queue length.
const subscriberBuffer = 8

func channelName(roomID string) string { return "room:" + roomID }
