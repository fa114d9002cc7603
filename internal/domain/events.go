package domain

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a round notification.
type EventType string

const (
	EventLotteryCreated        EventType = "NewLotteryCreated"
	EventTransfer              EventType = "Transfer"
	EventSurpriseWinnerAwarded EventType = "SurpriseWinnerAwarded"
	EventFinalWinnerAwarded    EventType = "FinalWinnerAwarded"
)

// Event is one notification emitted by a round or the factory. Amounts are
// decimal strings of the smallest currency unit so they survive JSON without
// precision loss.
type Event struct {
	Type     EventType      `json:"type"`
	Round    common.Address `json:"round"`
	From     common.Address `json:"from,omitempty"`     // Transfer
	To       common.Address `json:"to,omitempty"`       // Transfer
	TicketID *uint64        `json:"ticketId,omitempty"` // Transfer, awards
	Amount   string         `json:"amount,omitempty"`   // awards
	Block    uint64         `json:"block"`
	At       time.Time      `json:"at"`
}

// NewTransferEvent builds the mint/transfer notification. Mints use the zero
// address as sender, matching ERC-721 Transfer semantics.
func NewTransferEvent(round, from, to common.Address, ticketID, block uint64) Event {
	id := ticketID
	return Event{
		Type:     EventTransfer,
		Round:    round,
		From:     from,
		To:       to,
		TicketID: &id,
		Block:    block,
		At:       time.Now().UTC(),
	}
}

// NewAwardEvent builds a surprise or final award notification.
func NewAwardEvent(kind AwardKind, round common.Address, ticketID uint64, amount *big.Int, block uint64) Event {
	typ := EventSurpriseWinnerAwarded
	if kind == AwardFinal {
		typ = EventFinalWinnerAwarded
	}
	id := ticketID
	return Event{
		Type:     typ,
		Round:    round,
		TicketID: &id,
		Amount:   amount.String(),
		Block:    block,
		At:       time.Now().UTC(),
	}
}

// NewCreatedEvent builds the factory's creation notification.
func NewCreatedEvent(round common.Address, block uint64) Event {
	return Event{
		Type:  EventLotteryCreated,
		Round: round,
		Block: block,
		At:    time.Now().UTC(),
	}
}

// Marshal encodes the event for the signal bus and the websocket hub.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventSink receives every event a round emits, in emission order. Sinks must
// not block: the engine calls them while holding the round lock.
type EventSink interface {
	Emit(e Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(e Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }
