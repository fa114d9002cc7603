// Package bank provides the in-memory funds ledger backing the lottery
// engine. It plays the role the native currency plays on chain: accounts hold
// integer balances in the smallest unit, and every movement either fully
// happens or fully fails.
package bank

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// Ledger is a mutex-guarded account ledger. It implements domain.FundsLedger.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	frozen   map[common.Address]bool
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*big.Int),
		frozen:   make(map[common.Address]bool),
	}
}

// Deposit credits amount to the account unconditionally. It is the funding
// entry point for demo and test setups; the engine itself never deposits.
func (l *Ledger) Deposit(account common.Address, amount *big.Int) {
	if amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

// BalanceOf returns a copy of the account's balance.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Debit removes amount from the account.
func (l *Ledger) Debit(account common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative debit %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.balances[account]
	if !ok || b.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	b.Sub(b, amount)
	return nil
}

// Transfer credits amount to the account, failing without effect when the
// recipient is frozen.
func (l *Ledger) Transfer(to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen[to] {
		return domain.ErrAccountFrozen
	}
	l.credit(to, amount)
	return nil
}

// SetFrozen marks an account as unable to accept funds. Used to exercise the
// payout rollback path.
func (l *Ledger) SetFrozen(account common.Address, frozen bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen[account] = frozen
}

// TotalSupply sums every account balance. Together with the rounds'
// gathered funds and outstanding rewards it is conserved across all engine
// operations.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := new(big.Int)
	for _, b := range l.balances {
		total.Add(total, b)
	}
	return total
}

// credit assumes the lock is held.
func (l *Ledger) credit(account common.Address, amount *big.Int) {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	b.Add(b, amount)
}

var _ domain.FundsLedger = (*Ledger)(nil)
