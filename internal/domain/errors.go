package domain

import "errors"

// Engine rejections. Every failed operation surfaces exactly one of these and
// leaves the round state untouched.
var (
	ErrAlreadyInitialized   = errors.New("lottery already initialized")
	ErrNotOperator          = errors.New("caller is not the operator")
	ErrLotteryNotStarted    = errors.New("lottery has not started")
	ErrLotteryFinished      = errors.New("lottery has finished")
	ErrTooEarlyForFinalDraw = errors.New("final winner can only be drawn after the period ends")
	ErrInsufficientPayment  = errors.New("not enough money for a ticket")
	ErrNoFundsToAward       = errors.New("no funds to be won")
	ErrUnknownTicket        = errors.New("ticket does not exist")
	ErrNotOwnerOrApproved   = errors.New("caller is neither owner nor approved for the ticket")
	ErrNoRewardOnTicket     = errors.New("ticket is not a winning one")
)

// Factory creation rejections.
var (
	ErrStartInThePast   = errors.New("start block must not be in the past")
	ErrEndNotAfterStart = errors.New("end block must be later than the start block")
	ErrZeroPrice        = errors.New("ticket price must be bigger than zero")
)

// Infrastructure errors.
var (
	ErrNotFound            = errors.New("not found")
	ErrRoundNotFound       = errors.New("round not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountFrozen       = errors.New("account cannot accept funds")
)
