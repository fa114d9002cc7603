package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Phase is the time-derived sub-phase of a round. It is never stored; every
// operation recomputes it from the current block reading.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseEnded      Phase = "ended"
)

// PhaseAt computes the sub-phase for a block counter reading against the
// [start, end) window.
func PhaseAt(block, startBlock, endBlock uint64) Phase {
	switch {
	case block < startBlock:
		return PhaseNotStarted
	case block < endBlock:
		return PhaseActive
	default:
		return PhaseEnded
	}
}

// RoundParams are the creation parameters of a lottery round. The factory
// validates them; the round itself trusts its creator.
type RoundParams struct {
	Operator    common.Address
	Name        string
	Symbol      string
	StartBlock  uint64
	EndBlock    uint64
	TicketPrice *big.Int
	BaseURI     string
}

// RoundRecord is the persisted registration of a deployed round.
type RoundRecord struct {
	Address     common.Address
	Operator    common.Address
	Name        string
	Symbol      string
	StartBlock  uint64
	EndBlock    uint64
	TicketPrice *big.Int
	BaseURI     string
	CreatedAt   time.Time
}

// RoundSnapshot is a consistent read of a round's mutable state, taken under
// the round's single-writer lock.
type RoundSnapshot struct {
	Address       common.Address
	Phase         Phase
	Block         uint64
	TicketCount   uint64
	GatheredFunds *big.Int
}
