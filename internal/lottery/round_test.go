package lottery

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Dimo99/NFT-Lotary/internal/bank"
	"github.com/Dimo99/NFT-Lotary/internal/chain"
	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

var (
	roundAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	operator  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000003")
	carol     = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

// testRig bundles a round with its clock and ledger so tests can drive blocks
// and balances directly.
type testRig struct {
	round  *Round
	clock  *chain.ManualClock
	funds  *bank.Ledger
	events []domain.Event
}

// newTestRig creates an initialized round with a [10, 20) window and a ticket
// price of 100, with the clock at block 0.
func newTestRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		clock: chain.NewManualClock(0),
		funds: bank.NewLedger(),
	}
	sink := domain.EventSinkFunc(func(e domain.Event) {
		rig.events = append(rig.events, e)
	})

	rig.round = NewRound(roundAddr, rig.clock, rig.funds, sink)
	err := rig.round.Initialize(domain.RoundParams{
		Operator:    operator,
		Name:        "Test Lottery",
		Symbol:      "TST",
		StartBlock:  10,
		EndBlock:    20,
		TicketPrice: big.NewInt(100),
		BaseURI:     "ipfs://tickets/",
	})
	require.NoError(t, err)
	return rig
}

func (rig *testRig) fund(account common.Address, amount int64) {
	rig.funds.Deposit(account, big.NewInt(amount))
}

func (rig *testRig) buy(t *testing.T, buyer common.Address, payment int64) uint64 {
	t.Helper()
	id, err := rig.round.BuyTicket(context.Background(), buyer, big.NewInt(payment))
	require.NoError(t, err)
	return id
}

func TestInitializeOnce(t *testing.T) {
	rig := newTestRig(t)

	err := rig.round.Initialize(domain.RoundParams{
		Operator:    operator,
		StartBlock:  30,
		EndBlock:    40,
		TicketPrice: big.NewInt(1),
	})
	require.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	// The first configuration survives the rejected attempt.
	require.Equal(t, uint64(10), rig.round.StartBlock())
	require.Equal(t, uint64(20), rig.round.EndBlock())
}

func TestBuyTicketOutsideWindow(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 1000)

	_, err := rig.round.BuyTicket(context.Background(), alice, big.NewInt(100))
	require.ErrorIs(t, err, domain.ErrLotteryNotStarted)

	rig.clock.AdvanceTo(20)
	_, err = rig.round.BuyTicket(context.Background(), alice, big.NewInt(100))
	require.ErrorIs(t, err, domain.ErrLotteryFinished)

	require.Equal(t, big.NewInt(1000), rig.funds.BalanceOf(alice))
	require.Equal(t, uint64(0), rig.round.TicketCount())
}

func TestBuyTicketUninitialized(t *testing.T) {
	round := NewRound(roundAddr, chain.NewManualClock(15), bank.NewLedger(), nil)

	_, err := round.BuyTicket(context.Background(), alice, big.NewInt(100))
	require.ErrorIs(t, err, domain.ErrLotteryNotStarted)
}

func TestBuyTicketDebitsExactlyThePrice(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 1000)
	rig.clock.AdvanceTo(10)

	// Exact payment.
	id := rig.buy(t, alice, 100)
	require.Equal(t, uint64(0), id)
	require.Equal(t, big.NewInt(900), rig.funds.BalanceOf(alice))

	// Overpayment still only moves the price.
	id = rig.buy(t, alice, 250)
	require.Equal(t, uint64(1), id)
	require.Equal(t, big.NewInt(800), rig.funds.BalanceOf(alice))

	require.Equal(t, uint64(2), rig.round.TicketCount())
	require.Equal(t, big.NewInt(200), rig.round.GatheredFunds())
}

func TestBuyTicketInsufficientPayment(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 1000)
	rig.clock.AdvanceTo(10)

	_, err := rig.round.BuyTicket(context.Background(), alice, big.NewInt(99))
	require.ErrorIs(t, err, domain.ErrInsufficientPayment)

	_, err = rig.round.BuyTicket(context.Background(), alice, nil)
	require.ErrorIs(t, err, domain.ErrInsufficientPayment)

	require.Equal(t, big.NewInt(1000), rig.funds.BalanceOf(alice))
}

func TestBuyTicketInsufficientBalance(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 40)
	rig.clock.AdvanceTo(10)

	// The offer is fine but the account cannot cover the price.
	_, err := rig.round.BuyTicket(context.Background(), alice, big.NewInt(100))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.Equal(t, uint64(0), rig.round.TicketCount())
}

func TestBuyTicketSequentialIDs(t *testing.T) {
	rig := newTestRig(t)
	rig.clock.AdvanceTo(10)

	buyers := []common.Address{alice, bob, carol, alice, bob}
	for _, b := range buyers {
		rig.fund(b, 100)
	}
	for i, b := range buyers {
		id := rig.buy(t, b, 100)
		require.Equal(t, uint64(i), id)
	}

	owner, err := rig.round.OwnerOf(3)
	require.NoError(t, err)
	require.Equal(t, alice, owner)
}

func TestSurpriseDrawOperatorOnly(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 1000)
	rig.clock.AdvanceTo(10)
	rig.buy(t, alice, 100)

	_, _, err := rig.round.DrawSurpriseWinner(context.Background(), alice)
	require.ErrorIs(t, err, domain.ErrNotOperator)
}

func TestSurpriseDrawUninitialized(t *testing.T) {
	round := NewRound(roundAddr, chain.NewManualClock(15), bank.NewLedger(), nil)

	// An uninitialized round has no operator, so nobody passes the gate.
	_, _, err := round.DrawSurpriseWinner(context.Background(), operator)
	require.ErrorIs(t, err, domain.ErrNotOperator)
}

func TestSurpriseDrawPhase(t *testing.T) {
	rig := newTestRig(t)

	_, _, err := rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.ErrorIs(t, err, domain.ErrLotteryNotStarted)

	rig.clock.AdvanceTo(20)
	_, _, err = rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.ErrorIs(t, err, domain.ErrLotteryFinished)
}

func TestSurpriseDrawHalvesThePool(t *testing.T) {
	rig := newTestRig(t)
	rig.clock.AdvanceTo(10)

	for i := 0; i < 9; i++ {
		rig.fund(alice, 100)
		rig.buy(t, alice, 100)
	}
	require.Equal(t, big.NewInt(900), rig.round.GatheredFunds())

	winner, amount, err := rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.NoError(t, err)
	require.Less(t, winner, uint64(9))
	require.Equal(t, big.NewInt(450), amount)
	require.Equal(t, big.NewInt(450), rig.round.GatheredFunds())
	require.Equal(t, big.NewInt(450), rig.round.RewardOf(winner))

	// A second draw halves what is left. Odd pools round down and the
	// remainder stays in the pool.
	_, amount, err = rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(225), amount)
	require.Equal(t, big.NewInt(225), rig.round.GatheredFunds())
}

func TestSurpriseDrawEmptyPool(t *testing.T) {
	rig := newTestRig(t)
	rig.clock.AdvanceTo(10)

	_, _, err := rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.ErrorIs(t, err, domain.ErrNoFundsToAward)
}

func TestFinalDrawTiming(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 100)
	rig.clock.AdvanceTo(10)
	rig.buy(t, alice, 100)

	// Any block inside the window is too early, regardless of caller.
	_, _, err := rig.round.DrawFinalWinner(context.Background(), alice)
	require.ErrorIs(t, err, domain.ErrTooEarlyForFinalDraw)

	rig.clock.AdvanceTo(19)
	_, _, err = rig.round.DrawFinalWinner(context.Background(), alice)
	require.ErrorIs(t, err, domain.ErrTooEarlyForFinalDraw)
}

func TestFinalDrawDrainsThePool(t *testing.T) {
	rig := newTestRig(t)
	rig.clock.AdvanceTo(10)

	for _, b := range []common.Address{alice, bob, carol} {
		rig.fund(b, 100)
		rig.buy(t, b, 100)
	}
	rig.clock.AdvanceTo(20)

	// Open to any caller once the window has passed.
	winner, amount, err := rig.round.DrawFinalWinner(context.Background(), bob)
	require.NoError(t, err)
	require.Less(t, winner, uint64(3))
	require.Equal(t, big.NewInt(300), amount)
	require.Equal(t, big.NewInt(0), rig.round.GatheredFunds())
	require.Equal(t, big.NewInt(300), rig.round.RewardOf(winner))

	// The drained pool makes a repeat attempt fail.
	_, _, err = rig.round.DrawFinalWinner(context.Background(), bob)
	require.ErrorIs(t, err, domain.ErrNoFundsToAward)
}

func TestWithdrawWins(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 100)
	rig.clock.AdvanceTo(10)
	id := rig.buy(t, alice, 100)

	rig.clock.AdvanceTo(20)
	winner, amount, err := rig.round.DrawFinalWinner(context.Background(), alice)
	require.NoError(t, err)
	require.Equal(t, id, winner)

	got, err := rig.round.WithdrawWinsForTicket(context.Background(), alice, id)
	require.NoError(t, err)
	require.Equal(t, amount, got)
	require.Equal(t, big.NewInt(100), rig.funds.BalanceOf(alice))
	require.Equal(t, big.NewInt(0), rig.round.RewardOf(id))

	// Already claimed.
	_, err = rig.round.WithdrawWinsForTicket(context.Background(), alice, id)
	require.ErrorIs(t, err, domain.ErrNoRewardOnTicket)
}

func TestWithdrawWinsAccessControl(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 100)
	rig.clock.AdvanceTo(10)
	id := rig.buy(t, alice, 100)

	rig.clock.AdvanceTo(20)
	_, _, err := rig.round.DrawFinalWinner(context.Background(), alice)
	require.NoError(t, err)

	_, err = rig.round.WithdrawWinsForTicket(context.Background(), bob, id)
	require.ErrorIs(t, err, domain.ErrNotOwnerOrApproved)

	_, err = rig.round.WithdrawWinsForTicket(context.Background(), alice, 42)
	require.ErrorIs(t, err, domain.ErrUnknownTicket)

	// An approved spender claims to their own account.
	require.NoError(t, rig.round.Approve(alice, bob, id))
	got, err := rig.round.WithdrawWinsForTicket(context.Background(), bob, id)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), got)
	require.Equal(t, big.NewInt(100), rig.funds.BalanceOf(bob))
	require.Equal(t, big.NewInt(0), rig.funds.BalanceOf(alice))
}

func TestWithdrawWinsRollbackOnFailedTransfer(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 100)
	rig.clock.AdvanceTo(10)
	id := rig.buy(t, alice, 100)

	rig.clock.AdvanceTo(20)
	_, amount, err := rig.round.DrawFinalWinner(context.Background(), alice)
	require.NoError(t, err)

	rig.funds.SetFrozen(alice, true)
	_, err = rig.round.WithdrawWinsForTicket(context.Background(), alice, id)
	require.ErrorIs(t, err, domain.ErrAccountFrozen)

	// The reward survives the failed payout and can be claimed later.
	require.Equal(t, amount, rig.round.RewardOf(id))

	rig.funds.SetFrozen(alice, false)
	got, err := rig.round.WithdrawWinsForTicket(context.Background(), alice, id)
	require.NoError(t, err)
	require.Equal(t, amount, got)
}

// TestFundsConservation walks a full lifecycle and checks that deposits equal
// account balances plus the pool plus outstanding rewards at every step.
func TestFundsConservation(t *testing.T) {
	rig := newTestRig(t)
	deposited := big.NewInt(0)
	for _, b := range []common.Address{alice, bob, carol} {
		rig.fund(b, 500)
		deposited.Add(deposited, big.NewInt(500))
	}

	conserved := func() {
		t.Helper()
		total := rig.funds.TotalSupply()
		total.Add(total, rig.round.GatheredFunds())
		for id := uint64(0); id < rig.round.TicketCount(); id++ {
			total.Add(total, rig.round.RewardOf(id))
		}
		require.Equal(t, deposited, total)
	}

	rig.clock.AdvanceTo(10)
	for _, b := range []common.Address{alice, bob, carol, alice} {
		rig.buy(t, b, 100)
		conserved()
	}

	_, _, err := rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.NoError(t, err)
	conserved()

	rig.buy(t, bob, 100)
	conserved()

	rig.clock.AdvanceTo(20)
	winner, _, err := rig.round.DrawFinalWinner(context.Background(), carol)
	require.NoError(t, err)
	conserved()

	owner, err := rig.round.OwnerOf(winner)
	require.NoError(t, err)
	_, err = rig.round.WithdrawWinsForTicket(context.Background(), owner, winner)
	require.NoError(t, err)
	conserved()
}

func TestJournalRecordsEveryEvent(t *testing.T) {
	rig := newTestRig(t)
	rig.fund(alice, 200)
	rig.clock.AdvanceTo(10)

	rig.buy(t, alice, 100)
	rig.buy(t, alice, 100)
	_, _, err := rig.round.DrawSurpriseWinner(context.Background(), operator)
	require.NoError(t, err)
	rig.clock.AdvanceTo(20)
	_, _, err = rig.round.DrawFinalWinner(context.Background(), alice)
	require.NoError(t, err)

	journal := rig.round.Journal()
	require.Len(t, journal, 4)
	require.Equal(t, domain.EventTransfer, journal[0].Type)
	require.Equal(t, domain.EventTransfer, journal[1].Type)
	require.Equal(t, domain.EventSurpriseWinnerAwarded, journal[2].Type)
	require.Equal(t, domain.EventFinalWinnerAwarded, journal[3].Type)

	// The sink saw the same events in the same order.
	require.Equal(t, journal, rig.events)

	// Mints come from the zero address.
	require.Equal(t, common.Address{}, journal[0].From)
	require.Equal(t, alice, journal[0].To)
}

func TestSnapshotTracksPhase(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	snap, err := rig.round.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseNotStarted, snap.Phase)
	require.Equal(t, uint64(0), snap.Block)

	rig.clock.AdvanceTo(10)
	rig.fund(alice, 100)
	rig.buy(t, alice, 100)

	snap, err = rig.round.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseActive, snap.Phase)
	require.Equal(t, uint64(1), snap.TicketCount)
	require.Equal(t, big.NewInt(100), snap.GatheredFunds)

	rig.clock.AdvanceTo(20)
	snap, err = rig.round.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseEnded, snap.Phase)
}

func TestPickTicket(t *testing.T) {
	// Deterministic for identical inputs.
	a := pickTicket(15, 9, alice)
	b := pickTicket(15, 9, alice)
	require.Equal(t, a, b)
	require.Less(t, a, uint64(9))

	// Always in range, whatever the inputs.
	for block := uint64(0); block < 50; block++ {
		require.Less(t, pickTicket(block, 7, bob), uint64(7))
	}

	// Single ticket always wins.
	require.Equal(t, uint64(0), pickTicket(99, 1, carol))
}
