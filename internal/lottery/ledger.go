package lottery

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// ticketLedger tracks ticket ownership and per-ticket approvals. It is owned
// by a single Round and accessed only under the round lock.
type ticketLedger struct {
	next      uint64
	owners    map[uint64]common.Address
	approvals map[uint64]common.Address
}

func newTicketLedger() *ticketLedger {
	return &ticketLedger{
		owners:    make(map[uint64]common.Address),
		approvals: make(map[uint64]common.Address),
	}
}

// mint assigns the next sequential ID to owner and returns it.
func (l *ticketLedger) mint(owner common.Address) uint64 {
	id := l.next
	l.owners[id] = owner
	l.next++
	return id
}

func (l *ticketLedger) count() uint64 { return l.next }

func (l *ticketLedger) ownerOf(id uint64) (common.Address, bool) {
	owner, ok := l.owners[id]
	return owner, ok
}

func (l *ticketLedger) approvedFor(id uint64) common.Address {
	return l.approvals[id]
}

// transfer reassigns ownership and clears the ticket's approval.
func (l *ticketLedger) transfer(id uint64, to common.Address) {
	l.owners[id] = to
	delete(l.approvals, id)
}

// OwnerOf returns the current owner of a minted ticket.
func (r *Round) OwnerOf(ticketID uint64) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.tickets.ownerOf(ticketID)
	if !ok {
		return common.Address{}, domain.ErrUnknownTicket
	}
	return owner, nil
}

// GetApproved returns the single approved spender for a ticket, or the zero
// address when none is set.
func (r *Round) GetApproved(ticketID uint64) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets.ownerOf(ticketID); !ok {
		return common.Address{}, domain.ErrUnknownTicket
	}
	return r.tickets.approvedFor(ticketID), nil
}

// Approve sets spender as the ticket's approved spender, overwriting any
// previous approval. Only the owner may approve.
func (r *Round) Approve(caller, spender common.Address, ticketID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.tickets.ownerOf(ticketID)
	if !ok {
		return domain.ErrUnknownTicket
	}
	if caller != owner {
		return domain.ErrNotOwnerOrApproved
	}
	r.tickets.approvals[ticketID] = spender
	return nil
}

// TransferFrom moves a ticket from its owner to another account. The caller
// must be the owner or the approved spender; the approval is cleared by the
// move.
func (r *Round) TransferFrom(ctx context.Context, caller, from, to common.Address, ticketID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.tickets.ownerOf(ticketID)
	if !ok {
		return domain.ErrUnknownTicket
	}
	if from != owner {
		return domain.ErrNotOwnerOrApproved
	}
	if caller != owner && caller != r.tickets.approvedFor(ticketID) {
		return domain.ErrNotOwnerOrApproved
	}

	block, err := r.clock.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("lottery: read block counter: %w", err)
	}

	r.tickets.transfer(ticketID, to)
	r.emit(domain.NewTransferEvent(r.addr, from, to, ticketID, block))
	return nil
}

// TokenURI returns the round's shared metadata URI for a minted ticket. The
// engine does not support per-ticket metadata.
func (r *Round) TokenURI(ticketID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets.ownerOf(ticketID); !ok {
		return "", domain.ErrUnknownTicket
	}
	return r.baseURI, nil
}
