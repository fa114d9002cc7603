package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// TicketStore implements domain.TicketStore using PostgreSQL.
type TicketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore creates a new TicketStore backed by the given connection pool.
func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool}
}

func scanTicketRows(rows pgx.Rows) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		var round, owner string

		if err := rows.Scan(&round, &t.ID, &owner, &t.BoughtAt); err != nil {
			return nil, err
		}
		t.Round = common.HexToAddress(round)
		t.Owner = common.HexToAddress(owner)
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Insert records a freshly minted ticket.
func (s *TicketStore) Insert(ctx context.Context, t domain.Ticket) error {
	const query = `
		INSERT INTO tickets (round, ticket_id, owner, bought_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, t.Round.Hex(), t.ID, t.Owner.Hex(), t.BoughtAt)
	if err != nil {
		return fmt.Errorf("postgres: insert ticket %s/%d: %w", t.Round.Hex(), t.ID, err)
	}
	return nil
}

// UpdateOwner records an ownership change after a transfer.
func (s *TicketStore) UpdateOwner(ctx context.Context, round common.Address, ticketID uint64, owner common.Address) error {
	const query = `UPDATE tickets SET owner = $3 WHERE round = $1 AND ticket_id = $2`

	tag, err := s.pool.Exec(ctx, query, round.Hex(), ticketID, owner.Hex())
	if err != nil {
		return fmt.Errorf("postgres: update ticket owner %s/%d: %w", round.Hex(), ticketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByRound returns a round's tickets in mint order.
func (s *TicketStore) ListByRound(ctx context.Context, round common.Address, opts domain.ListOpts) ([]domain.Ticket, error) {
	query := `SELECT round, ticket_id, owner, bought_at FROM tickets
		WHERE round = $1 ORDER BY ticket_id`
	args := []any{round.Hex()}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tickets for %s: %w", round.Hex(), err)
	}
	defer rows.Close()

	tickets, err := scanTicketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tickets: %w", err)
	}
	return tickets, nil
}

// ListByOwner returns every ticket currently held by owner across rounds.
func (s *TicketStore) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Ticket, error) {
	query := `SELECT round, ticket_id, owner, bought_at FROM tickets
		WHERE owner = $1 ORDER BY bought_at DESC`
	args := []any{owner.Hex()}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tickets for owner %s: %w", owner.Hex(), err)
	}
	defer rows.Close()

	tickets, err := scanTicketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tickets: %w", err)
	}
	return tickets, nil
}
