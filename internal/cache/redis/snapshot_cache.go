package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

const snapshotTTL = time.Minute

// SnapshotCache implements domain.SnapshotCache using Redis string keys with
// JSON-serialized snapshots.
//
// Key schema:
//
//	round:snapshot:{address} - JSON snapshot
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func snapshotKey(addr common.Address) string { return "round:snapshot:" + addr.Hex() }

// cachedSnapshot is the stored JSON form; the big.Int travels as a decimal
// string to survive the round trip exactly.
type cachedSnapshot struct {
	Address       string `json:"address"`
	Phase         string `json:"phase"`
	Block         uint64 `json:"block"`
	TicketCount   uint64 `json:"ticketCount"`
	GatheredFunds string `json:"gatheredFunds"`
}

// Set stores the latest snapshot for a round with a short TTL. Snapshots are
// phase-sensitive, a stale one must age out quickly.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.RoundSnapshot) error {
	entry := cachedSnapshot{
		Address:       snap.Address.Hex(),
		Phase:         string(snap.Phase),
		Block:         snap.Block,
		TicketCount:   snap.TicketCount,
		GatheredFunds: snap.GatheredFunds.String(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", entry.Address, err)
	}

	if err := sc.rdb.Set(ctx, snapshotKey(snap.Address), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", entry.Address, err)
	}
	return nil
}

// Get retrieves the cached snapshot for a round.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *SnapshotCache) Get(ctx context.Context, addr common.Address) (domain.RoundSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RoundSnapshot{}, domain.ErrNotFound
		}
		return domain.RoundSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", addr.Hex(), err)
	}

	var entry cachedSnapshot
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.RoundSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", addr.Hex(), err)
	}

	funds, ok := new(big.Int).SetString(entry.GatheredFunds, 10)
	if !ok {
		return domain.RoundSnapshot{}, fmt.Errorf("redis: bad gathered funds %q", entry.GatheredFunds)
	}
	return domain.RoundSnapshot{
		Address:       common.HexToAddress(entry.Address),
		Phase:         domain.Phase(entry.Phase),
		Block:         entry.Block,
		TicketCount:   entry.TicketCount,
		GatheredFunds: funds,
	}, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
