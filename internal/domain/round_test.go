package domain

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestPhaseAt(t *testing.T) {
	cases := []struct {
		block uint64
		want  Phase
	}{
		{0, PhaseNotStarted},
		{9, PhaseNotStarted},
		{10, PhaseActive},
		{19, PhaseActive},
		{20, PhaseEnded},
		{1000, PhaseEnded},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, PhaseAt(tc.block, 10, 20), "block %d", tc.block)
	}
}

func TestEventMarshal(t *testing.T) {
	round := common.HexToAddress("0xaa")
	winner := common.HexToAddress("0xbb")

	e := NewAwardEvent(AwardFinal, round, 3, big.NewInt(450), 20)
	payload, err := e.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "FinalWinnerAwarded", decoded["type"])
	require.Equal(t, "450", decoded["amount"])
	require.Equal(t, float64(3), decoded["ticketId"])

	// Amounts travel as strings so precision survives JSON.
	huge, ok := new(big.Int).SetString("10000000000000000000", 10)
	require.True(t, ok)
	e = NewAwardEvent(AwardSurprise, round, 0, huge, 15)
	payload, err = e.Marshal()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "10000000000000000000", decoded["amount"])
	require.Equal(t, "SurpriseWinnerAwarded", decoded["type"])

	mint := NewTransferEvent(round, common.Address{}, winner, 7, 12)
	payload, err = mint.Marshal()
	require.NoError(t, err)
	var back Event
	require.NoError(t, json.Unmarshal(payload, &back))
	require.Equal(t, EventTransfer, back.Type)
	require.Equal(t, winner, back.To)
	require.NotNil(t, back.TicketID)
	require.Equal(t, uint64(7), *back.TicketID)
}
