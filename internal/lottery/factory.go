package lottery

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// Factory deploys fresh, independent Round instances. Creation is gated to a
// single configured authority; the factory validates the window and price
// parameters, then initializes the round exactly once and publishes the new
// address. It owns the registry of deployed addresses but none of the rounds'
// internal state.
type Factory struct {
	mu        sync.Mutex
	authority common.Address
	clock     domain.BlockClock
	funds     domain.FundsLedger
	sink      domain.EventSink

	nonce  uint64
	rounds map[common.Address]*Round
	order  []common.Address
}

// NewFactory creates a factory whose rounds share the given clock, funds
// ledger, and event sink.
func NewFactory(authority common.Address, clock domain.BlockClock, funds domain.FundsLedger, sink domain.EventSink) *Factory {
	return &Factory{
		authority: authority,
		clock:     clock,
		funds:     funds,
		sink:      sink,
		rounds:    make(map[common.Address]*Round),
	}
}

// Authority returns the only identity allowed to create rounds.
func (f *Factory) Authority() common.Address { return f.authority }

// RestoreNonce advances the address nonce to at least n. Called at startup
// with the count of previously registered rounds so a restarted factory never
// reissues an address.
func (f *Factory) RestoreNonce(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > f.nonce {
		f.nonce = n
	}
}

// CreateLottery validates params, deploys a new initialized Round under a
// fresh synthetic address, records it, and emits the creation notification.
// The caller becomes the round's operator and must be the factory authority.
func (f *Factory) CreateLottery(ctx context.Context, caller common.Address, params domain.RoundParams) (*Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.authority {
		return nil, domain.ErrNotOperator
	}

	block, err := f.clock.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("lottery: read block counter: %w", err)
	}

	if params.StartBlock <= block {
		return nil, domain.ErrStartInThePast
	}
	if params.EndBlock <= params.StartBlock {
		return nil, domain.ErrEndNotAfterStart
	}
	if params.TicketPrice == nil || params.TicketPrice.Sign() <= 0 {
		return nil, domain.ErrZeroPrice
	}

	params.Operator = caller
	addr := f.nextAddress()

	round := NewRound(addr, f.clock, f.funds, f.sink)
	if err := round.Initialize(params); err != nil {
		// A fresh round cannot be initialized already.
		return nil, fmt.Errorf("lottery: initialize round: %w", err)
	}

	f.rounds[addr] = round
	f.order = append(f.order, addr)

	if f.sink != nil {
		f.sink.Emit(domain.NewCreatedEvent(addr, block))
	}
	return round, nil
}

// Get returns the deployed round at addr.
func (f *Factory) Get(addr common.Address) (*Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	round, ok := f.rounds[addr]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return round, nil
}

// List returns every deployed round in creation order.
func (f *Factory) List() []*Round {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Round, 0, len(f.order))
	for _, addr := range f.order {
		out = append(out, f.rounds[addr])
	}
	return out
}

// nextAddress derives a fresh synthetic address from the authority and a
// creation nonce, standing in for the address a clone deployment would get.
// Lock held.
func (f *Factory) nextAddress() common.Address {
	var buf [common.AddressLength + 8]byte
	copy(buf[:common.AddressLength], f.authority.Bytes())
	binary.BigEndian.PutUint64(buf[common.AddressLength:], f.nonce)
	f.nonce++

	h := ethcrypto.Keccak256(buf[:])
	return common.BytesToAddress(h[12:])
}
