package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// AwardStore implements domain.AwardStore using PostgreSQL.
type AwardStore struct {
	pool *pgxpool.Pool
}

// NewAwardStore creates a new AwardStore backed by the given connection pool.
func NewAwardStore(pool *pgxpool.Pool) *AwardStore {
	return &AwardStore{pool: pool}
}

// Insert records a draw result.
func (s *AwardStore) Insert(ctx context.Context, a domain.AwardRecord) error {
	const query = `
		INSERT INTO awards (id, round, ticket_id, kind, amount, block, drawn_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Round.Hex(), a.TicketID, string(a.Kind),
		a.Amount.String(), a.Block, a.DrawnAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert award %s: %w", a.ID, err)
	}
	return nil
}

// MarkWithdrawn stamps every open award of the ticket as withdrawn.
func (s *AwardStore) MarkWithdrawn(ctx context.Context, round common.Address, ticketID uint64, at time.Time) error {
	const query = `
		UPDATE awards SET withdrawn_at = $3
		WHERE round = $1 AND ticket_id = $2 AND withdrawn_at IS NULL`

	_, err := s.pool.Exec(ctx, query, round.Hex(), ticketID, at)
	if err != nil {
		return fmt.Errorf("postgres: mark awards withdrawn %s/%d: %w", round.Hex(), ticketID, err)
	}
	return nil
}

// ListByRound returns a round's awards in draw order.
func (s *AwardStore) ListByRound(ctx context.Context, round common.Address) ([]domain.AwardRecord, error) {
	const query = `
		SELECT id, round, ticket_id, kind, amount::text, block, drawn_at
		FROM awards WHERE round = $1 ORDER BY drawn_at`

	rows, err := s.pool.Query(ctx, query, round.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list awards for %s: %w", round.Hex(), err)
	}
	defer rows.Close()

	var awards []domain.AwardRecord
	for rows.Next() {
		var a domain.AwardRecord
		var roundHex, kind, amount string

		if err := rows.Scan(&a.ID, &roundHex, &a.TicketID, &kind, &amount, &a.Block, &a.DrawnAt); err != nil {
			return nil, fmt.Errorf("postgres: scan award: %w", err)
		}
		a.Round = common.HexToAddress(roundHex)
		a.Kind = domain.AwardKind(kind)
		a.Amount, _ = new(big.Int).SetString(amount, 10)
		if a.Amount == nil {
			return nil, fmt.Errorf("postgres: bad award amount %q", amount)
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}
