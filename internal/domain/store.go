package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// RoundStore persists the reporting view of created rounds.
type RoundStore interface {
	Insert(ctx context.Context, rec RoundRecord) error
	GetByAddress(ctx context.Context, addr common.Address) (RoundRecord, error)
	List(ctx context.Context, opts ListOpts) ([]RoundRecord, error)
	Count(ctx context.Context) (int64, error)
}

// TicketStore persists sold tickets and ownership changes.
type TicketStore interface {
	Insert(ctx context.Context, t Ticket) error
	UpdateOwner(ctx context.Context, round common.Address, ticketID uint64, owner common.Address) error
	ListByRound(ctx context.Context, round common.Address, opts ListOpts) ([]Ticket, error)
	ListByOwner(ctx context.Context, owner common.Address, opts ListOpts) ([]Ticket, error)
}

// AwardStore persists draw results and withdrawal marks.
type AwardStore interface {
	Insert(ctx context.Context, a AwardRecord) error
	MarkWithdrawn(ctx context.Context, round common.Address, ticketID uint64, at time.Time) error
	ListByRound(ctx context.Context, round common.Address) ([]AwardRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        string // uuid
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of engine operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// RegistryStore is the factory's durable address book of deployed rounds. It
// is local and embedded so the factory can refuse address reuse even without
// the reporting database.
type RegistryStore interface {
	Put(ctx context.Context, rec RoundRecord) error
	Get(ctx context.Context, addr common.Address) (RoundRecord, error)
	Has(ctx context.Context, addr common.Address) (bool, error)
	Addresses(ctx context.Context) ([]common.Address, error)
	Close() error
}
