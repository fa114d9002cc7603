package bank

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

var (
	acctA = common.HexToAddress("0x0000000000000000000000000000000000000001")
	acctB = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestDepositAndBalance(t *testing.T) {
	l := NewLedger()
	require.Equal(t, big.NewInt(0), l.BalanceOf(acctA))

	l.Deposit(acctA, big.NewInt(100))
	l.Deposit(acctA, big.NewInt(50))
	require.Equal(t, big.NewInt(150), l.BalanceOf(acctA))

	// Non-positive deposits are ignored.
	l.Deposit(acctA, big.NewInt(0))
	l.Deposit(acctA, big.NewInt(-10))
	require.Equal(t, big.NewInt(150), l.BalanceOf(acctA))

	// The returned balance is a copy.
	l.BalanceOf(acctA).SetUint64(9999)
	require.Equal(t, big.NewInt(150), l.BalanceOf(acctA))
}

func TestDebit(t *testing.T) {
	l := NewLedger()
	l.Deposit(acctA, big.NewInt(100))

	require.NoError(t, l.Debit(acctA, big.NewInt(40)))
	require.Equal(t, big.NewInt(60), l.BalanceOf(acctA))

	err := l.Debit(acctA, big.NewInt(61))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.Equal(t, big.NewInt(60), l.BalanceOf(acctA))

	// Unknown accounts hold nothing.
	err = l.Debit(acctB, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.Error(t, l.Debit(acctA, big.NewInt(-5)))
}

func TestTransfer(t *testing.T) {
	l := NewLedger()

	require.NoError(t, l.Transfer(acctA, big.NewInt(70)))
	require.Equal(t, big.NewInt(70), l.BalanceOf(acctA))

	l.SetFrozen(acctA, true)
	err := l.Transfer(acctA, big.NewInt(30))
	require.ErrorIs(t, err, domain.ErrAccountFrozen)
	require.Equal(t, big.NewInt(70), l.BalanceOf(acctA))

	l.SetFrozen(acctA, false)
	require.NoError(t, l.Transfer(acctA, big.NewInt(30)))
	require.Equal(t, big.NewInt(100), l.BalanceOf(acctA))
}

func TestTotalSupply(t *testing.T) {
	l := NewLedger()
	require.Equal(t, big.NewInt(0), l.TotalSupply())

	l.Deposit(acctA, big.NewInt(100))
	l.Deposit(acctB, big.NewInt(250))
	require.Equal(t, big.NewInt(350), l.TotalSupply())

	require.NoError(t, l.Debit(acctB, big.NewInt(50)))
	require.Equal(t, big.NewInt(300), l.TotalSupply())
}
