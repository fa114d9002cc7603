package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SignalBus is the ephemeral fan-out for round events. The service publishes
// every emitted event; the websocket hub and any off-process observer
// subscribe.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// SnapshotCache holds the latest RoundSnapshot per round for cheap reads.
type SnapshotCache interface {
	Set(ctx context.Context, snap RoundSnapshot) error
	Get(ctx context.Context, addr common.Address) (RoundSnapshot, error)
}

// RateLimiter bounds request rates per key. Allow counts the request when it
// is permitted.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
