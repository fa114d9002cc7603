package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Ticket is one sold unit: a uniquely numbered, ownable, transferable token.
// IDs are zero-based and sequential; a ticket is never destroyed.
type Ticket struct {
	ID       uint64
	Round    common.Address
	Owner    common.Address
	BoughtAt time.Time
}

// AwardKind distinguishes the two draws.
type AwardKind string

const (
	AwardSurprise AwardKind = "surprise"
	AwardFinal    AwardKind = "final"
)

// AwardRecord is the persisted trace of a draw: which ticket won how much.
type AwardRecord struct {
	ID       string // uuid
	Round    common.Address
	TicketID uint64
	Kind     AwardKind
	Amount   *big.Int
	Block    uint64
	DrawnAt  time.Time
}
