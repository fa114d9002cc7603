package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

const roundSelectCols = `address, operator, name, symbol, start_block, end_block,
	ticket_price::text, base_uri, created_at`

func scanRoundRow(row pgx.Row) (domain.RoundRecord, error) {
	var rec domain.RoundRecord
	var address, operator, price string

	err := row.Scan(
		&address, &operator, &rec.Name, &rec.Symbol,
		&rec.StartBlock, &rec.EndBlock, &price, &rec.BaseURI, &rec.CreatedAt,
	)
	if err != nil {
		return domain.RoundRecord{}, err
	}

	rec.Address = common.HexToAddress(address)
	rec.Operator = common.HexToAddress(operator)
	rec.TicketPrice, _ = new(big.Int).SetString(price, 10)
	if rec.TicketPrice == nil {
		return domain.RoundRecord{}, fmt.Errorf("postgres: bad ticket price %q", price)
	}
	return rec, nil
}

// Insert records a newly created round.
func (s *RoundStore) Insert(ctx context.Context, rec domain.RoundRecord) error {
	const query = `
		INSERT INTO rounds (
			address, operator, name, symbol, start_block, end_block,
			ticket_price, base_uri, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		rec.Address.Hex(), rec.Operator.Hex(), rec.Name, rec.Symbol,
		rec.StartBlock, rec.EndBlock, rec.TicketPrice.String(), rec.BaseURI,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert round %s: %w", rec.Address.Hex(), err)
	}
	return nil
}

// GetByAddress retrieves a single round record by its address.
func (s *RoundStore) GetByAddress(ctx context.Context, addr common.Address) (domain.RoundRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roundSelectCols+` FROM rounds WHERE address = $1`, addr.Hex())

	rec, err := scanRoundRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.RoundRecord{}, domain.ErrNotFound
		}
		return domain.RoundRecord{}, fmt.Errorf("postgres: get round %s: %w", addr.Hex(), err)
	}
	return rec, nil
}

// List returns round records in creation order with pagination.
func (s *RoundStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.RoundRecord, error) {
	query := `SELECT ` + roundSelectCols + ` FROM rounds ORDER BY created_at`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	var recs []domain.RoundRecord
	for rows.Next() {
		rec, err := scanRoundRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of recorded rounds.
func (s *RoundStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count rounds: %w", err)
	}
	return n, nil
}
