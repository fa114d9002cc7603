package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FundsLedger moves integer-denominated currency between accounts. All
// amounts are in the smallest unit; implementations must reject any transfer
// that would create or destroy money.
//
// Transfer is the payout path out of a round. Per the commit-before-payout
// rule it is always the last effect of an engine operation: the caller has
// already committed its earlier state changes and must roll them back itself
// if Transfer fails.
type FundsLedger interface {
	// BalanceOf returns the current balance of an account. Unknown accounts
	// have a zero balance.
	BalanceOf(account common.Address) *big.Int

	// Debit removes amount from the account, failing with
	// ErrInsufficientBalance if the balance is too small.
	Debit(account common.Address, amount *big.Int) error

	// Transfer credits amount to the account. It fails with ErrAccountFrozen
	// when the recipient cannot accept funds; no money moves in that case.
	Transfer(to common.Address, amount *big.Int) error
}
