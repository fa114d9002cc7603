package lottery

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// DrawSurpriseWinner allocates half the current pool (integer division, the
// remainder stays) to a pseudo-randomly selected ticket. Operator only, and
// only while the sale window is active. Repeatable: each call halves the
// then-current pool again and may hit a ticket that already holds a reward.
func (r *Round) DrawSurpriseWinner(ctx context.Context, caller common.Address) (uint64, *big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized || caller != r.operator {
		return 0, nil, domain.ErrNotOperator
	}

	block, err := r.phaseCheck(ctx, domain.PhaseActive)
	if err != nil {
		return 0, nil, err
	}

	award := new(big.Int).Rsh(r.gatheredFunds, 1)
	return r.award(domain.AwardSurprise, caller, award, block)
}

// DrawFinalWinner allocates the entire remaining pool to a pseudo-randomly
// selected ticket. Open to any caller once the window has ended; draining the
// pool makes a second call fail, so the operation is effectively single-shot.
func (r *Round) DrawFinalWinner(ctx context.Context, caller common.Address) (uint64, *big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block, err := r.phaseCheck(ctx, domain.PhaseEnded)
	if err != nil {
		return 0, nil, err
	}

	award := new(big.Int).Set(r.gatheredFunds)
	return r.award(domain.AwardFinal, caller, award, block)
}

// award moves amount from the pool to the selected ticket's reward and emits
// the corresponding notification. Lock held.
func (r *Round) award(kind domain.AwardKind, caller common.Address, amount *big.Int, block uint64) (uint64, *big.Int, error) {
	// Funds can only be nonzero with at least one ticket sold, so the
	// ticket-count guard is unreachable; it stays anyway.
	if r.gatheredFunds.Sign() == 0 || r.tickets.count() == 0 {
		return 0, nil, domain.ErrNoFundsToAward
	}

	winner := pickTicket(block, r.tickets.count(), caller)

	reward := r.rewards[winner]
	if reward == nil {
		reward = new(big.Int)
		r.rewards[winner] = reward
	}
	reward.Add(reward, amount)
	r.gatheredFunds.Sub(r.gatheredFunds, amount)

	r.emit(domain.NewAwardEvent(kind, r.addr, winner, amount, block))
	return winner, new(big.Int).Set(amount), nil
}

// pickTicket selects a ticket in [0, ticketCount) from entropy available at
// call time: keccak256 of the block counter, the ticket count, and the
// caller, reduced modulo the ticket count.
//
// This is deliberately NOT cryptographically secure. The inputs are visible
// to, and partially influenceable by, whoever triggers the draw, reproducing
// the weak block-derived randomness of the original design.
func pickTicket(block, ticketCount uint64, caller common.Address) uint64 {
	var seed [16 + common.AddressLength]byte
	binary.BigEndian.PutUint64(seed[0:8], block)
	binary.BigEndian.PutUint64(seed[8:16], ticketCount)
	copy(seed[16:], caller.Bytes())

	h := ethcrypto.Keccak256(seed[:])
	n := new(big.Int).SetBytes(h)
	return n.Mod(n, new(big.Int).SetUint64(ticketCount)).Uint64()
}
