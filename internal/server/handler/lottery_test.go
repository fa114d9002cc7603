package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Dimo99/NFT-Lotary/internal/bank"
	"github.com/Dimo99/NFT-Lotary/internal/chain"
	"github.com/Dimo99/NFT-Lotary/internal/service"
)

var (
	testOperator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testBuyer    = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// newTestAPI wires real handlers over an in-memory service and returns the
// routed mux plus the clock driving the rounds.
func newTestAPI(t *testing.T) (*http.ServeMux, *service.LotteryService, *chain.ManualClock) {
	t.Helper()

	clock := chain.NewManualClock(0)
	logger := slog.New(slog.DiscardHandler)
	svc, err := service.NewLotteryService(t.Context(), testOperator, service.Deps{
		Clock:  clock,
		Funds:  bank.NewLedger(),
		Logger: logger,
	})
	require.NoError(t, err)

	lh := NewLotteryHandler(svc, logger)
	th := NewTicketHandler(svc, logger)
	ah := NewAccountHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/lotteries", lh.ListLotteries)
	mux.HandleFunc("POST /api/lotteries", lh.CreateLottery)
	mux.HandleFunc("GET /api/lotteries/history", lh.ListLotteryHistory)
	mux.HandleFunc("GET /api/lotteries/{address}", lh.GetLottery)
	mux.HandleFunc("POST /api/lotteries/{address}/draws/surprise", lh.DrawSurpriseWinner)
	mux.HandleFunc("POST /api/lotteries/{address}/draws/final", lh.DrawFinalWinner)
	mux.HandleFunc("GET /api/lotteries/{address}/awards", lh.ListAwards)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets", th.BuyTicket)
	mux.HandleFunc("GET /api/lotteries/{address}/tickets", th.ListTickets)
	mux.HandleFunc("GET /api/lotteries/{address}/tickets/{id}", th.GetTicket)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets/{id}/withdraw", th.WithdrawWins)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets/{id}/approve", th.Approve)
	mux.HandleFunc("POST /api/lotteries/{address}/tickets/{id}/transfer", th.Transfer)
	mux.HandleFunc("GET /api/accounts/{address}/balance", ah.GetBalance)
	mux.HandleFunc("GET /api/accounts/{address}/tickets", ah.ListOwnedTickets)
	mux.HandleFunc("POST /api/accounts/{address}/deposit", ah.Deposit)

	return mux, svc, clock
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createTestLottery(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/lotteries", fmt.Sprintf(`{
		"caller": %q,
		"name": "API Lottery",
		"symbol": "API",
		"startBlock": 10,
		"endBlock": 20,
		"ticketPrice": "100",
		"baseUri": "ipfs://tickets/"
	}`, testOperator.Hex()))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode(t, rec)["address"].(string)
}

func TestCreateLotteryEndpoint(t *testing.T) {
	mux, _, _ := newTestAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/lotteries", fmt.Sprintf(`{
		"caller": %q,
		"name": "API Lottery",
		"symbol": "API",
		"startBlock": 10,
		"endBlock": 20,
		"ticketPrice": "100"
	}`, testOperator.Hex()))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "API Lottery", body["name"])
	require.Equal(t, "not_started", body["phase"])
	require.Equal(t, "100", body["ticketPrice"])
	require.Equal(t, testOperator.Hex(), body["operator"])
	require.True(t, common.IsHexAddress(body["address"].(string)))
}

func TestCreateLotteryEndpointRejections(t *testing.T) {
	mux, _, _ := newTestAPI(t)

	// Non-authority caller.
	rec := do(t, mux, http.MethodPost, "/api/lotteries", fmt.Sprintf(`{
		"caller": %q, "startBlock": 10, "endBlock": 20, "ticketPrice": "100"
	}`, testBuyer.Hex()))
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Window ends before it starts.
	rec = do(t, mux, http.MethodPost, "/api/lotteries", fmt.Sprintf(`{
		"caller": %q, "startBlock": 20, "endBlock": 10, "ticketPrice": "100"
	}`, testOperator.Hex()))
	require.Equal(t, http.StatusConflict, rec.Code)

	// Malformed inputs.
	rec = do(t, mux, http.MethodPost, "/api/lotteries", `{"caller": "nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, mux, http.MethodPost, "/api/lotteries", fmt.Sprintf(`{
		"caller": %q, "startBlock": 10, "endBlock": 20, "ticketPrice": "-5"
	}`, testOperator.Hex()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndListLotteries(t *testing.T) {
	mux, _, clock := newTestAPI(t)
	addr := createTestLottery(t, mux)

	rec := do(t, mux, http.MethodGet, "/api/lotteries/"+addr, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, addr, decode(t, rec)["address"])

	clock.AdvanceTo(10)
	rec = do(t, mux, http.MethodGet, "/api/lotteries/"+addr, "")
	require.Equal(t, "active", decode(t, rec)["phase"])

	rec = do(t, mux, http.MethodGet, "/api/lotteries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), decode(t, rec)["total"])

	// Unknown but well-formed address.
	rec = do(t, mux, http.MethodGet, "/api/lotteries/0x00000000000000000000000000000000000000ff", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed address.
	rec = do(t, mux, http.MethodGet, "/api/lotteries/zzz", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyTicketEndpoint(t *testing.T) {
	mux, svc, clock := newTestAPI(t)
	addr := createTestLottery(t, mux)
	svc.Deposit(testBuyer, big.NewInt(500))

	body := fmt.Sprintf(`{"buyer": %q, "payment": "100"}`, testBuyer.Hex())

	// Sale window not open yet.
	rec := do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	clock.AdvanceTo(10)
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	got := decode(t, rec)
	require.Equal(t, float64(0), got["ticket"])
	require.Equal(t, testBuyer.Hex(), got["owner"])

	// Offer below the price.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets",
		fmt.Sprintf(`{"buyer": %q, "payment": "50"}`, testBuyer.Hex()))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// Live ticket state.
	rec = do(t, mux, http.MethodGet, "/api/lotteries/"+addr+"/tickets/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode(t, rec)
	require.Equal(t, testBuyer.Hex(), got["owner"])
	require.Equal(t, "0", got["reward"])
	require.Equal(t, "ipfs://tickets/", got["tokenUri"])

	rec = do(t, mux, http.MethodGet, "/api/lotteries/"+addr+"/tickets/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrawEndpoints(t *testing.T) {
	mux, svc, clock := newTestAPI(t)
	addr := createTestLottery(t, mux)
	svc.Deposit(testBuyer, big.NewInt(1000))

	clock.AdvanceTo(10)
	for i := 0; i < 4; i++ {
		rec := do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets",
			fmt.Sprintf(`{"buyer": %q, "payment": "100"}`, testBuyer.Hex()))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// Surprise draw is operator only.
	rec := do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/draws/surprise",
		fmt.Sprintf(`{"caller": %q}`, testBuyer.Hex()))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/draws/surprise",
		fmt.Sprintf(`{"caller": %q}`, testOperator.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "200", decode(t, rec)["amount"])

	// Final draw before the window closes.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/draws/final",
		fmt.Sprintf(`{"caller": %q}`, testBuyer.Hex()))
	require.Equal(t, http.StatusConflict, rec.Code)

	clock.AdvanceTo(20)
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/draws/final",
		fmt.Sprintf(`{"caller": %q}`, testBuyer.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "200", decode(t, rec)["amount"])

	// Drained pool: repeat fails.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/draws/final",
		fmt.Sprintf(`{"caller": %q}`, testBuyer.Hex()))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWithdrawAndTransferEndpoints(t *testing.T) {
	mux, svc, clock := newTestAPI(t)
	addr := createTestLottery(t, mux)
	svc.Deposit(testBuyer, big.NewInt(100))

	clock.AdvanceTo(10)
	rec := do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets",
		fmt.Sprintf(`{"buyer": %q, "payment": "100"}`, testBuyer.Hex()))
	require.Equal(t, http.StatusCreated, rec.Code)

	clock.AdvanceTo(20)
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/draws/final",
		fmt.Sprintf(`{"caller": %q}`, testBuyer.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)

	other := common.HexToAddress("0x0000000000000000000000000000000000000003")

	// Only the owner (or approved) may withdraw.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets/0/withdraw",
		fmt.Sprintf(`{"caller": %q}`, other.Hex()))
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Transfer the winning ticket, then the new owner withdraws.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets/0/transfer",
		fmt.Sprintf(`{"caller": %q, "from": %q, "to": %q}`, testBuyer.Hex(), testBuyer.Hex(), other.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets/0/withdraw",
		fmt.Sprintf(`{"caller": %q}`, other.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "100", decode(t, rec)["amount"])

	// Nothing left on the ticket.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets/0/withdraw",
		fmt.Sprintf(`{"caller": %q}`, other.Hex()))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveEndpoint(t *testing.T) {
	mux, svc, clock := newTestAPI(t)
	addr := createTestLottery(t, mux)
	svc.Deposit(testBuyer, big.NewInt(100))

	clock.AdvanceTo(10)
	rec := do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets",
		fmt.Sprintf(`{"buyer": %q, "payment": "100"}`, testBuyer.Hex()))
	require.Equal(t, http.StatusCreated, rec.Code)

	spender := common.HexToAddress("0x0000000000000000000000000000000000000003")

	// Only the owner may approve.
	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets/0/approve",
		fmt.Sprintf(`{"caller": %q, "spender": %q}`, spender.Hex(), spender.Hex()))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/lotteries/"+addr+"/tickets/0/approve",
		fmt.Sprintf(`{"caller": %q, "spender": %q}`, testBuyer.Hex(), spender.Hex()))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/lotteries/"+addr+"/tickets/0", "")
	require.Equal(t, spender.Hex(), decode(t, rec)["approved"])
}

func TestAccountEndpoints(t *testing.T) {
	mux, _, _ := newTestAPI(t)
	path := "/api/accounts/" + testBuyer.Hex()

	rec := do(t, mux, http.MethodGet, path+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", decode(t, rec)["balance"])

	rec = do(t, mux, http.MethodPost, path+"/deposit", `{"amount": "2500"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, path+"/balance", "")
	require.Equal(t, "2500", decode(t, rec)["balance"])

	// Non-positive deposits are rejected.
	rec = do(t, mux, http.MethodPost, path+"/deposit", `{"amount": "0"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, mux, http.MethodPost, path+"/deposit", `{"amount": "-5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// The reporting reads degrade to empty results when no database is wired;
// unknown rounds stay a 404 rather than falling through to a nil store.
func TestReportingEndpointsWithoutStores(t *testing.T) {
	mux, _, _ := newTestAPI(t)

	rec := do(t, mux, http.MethodGet, "/api/lotteries/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Empty(t, body["lotteries"])
	require.EqualValues(t, 0, body["total"])

	rec = do(t, mux, http.MethodGet, "/api/accounts/"+testBuyer.Hex()+"/tickets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Empty(t, body["tickets"])

	unknown := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	rec = do(t, mux, http.MethodGet, "/api/lotteries/"+unknown.Hex(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
