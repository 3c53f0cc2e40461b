package exchange_test

import (
	"context"
	"testing"
	"time"

	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/internal/testutil"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

func newClientAgainst(t *testing.T, mock *testutil.MockExchangeAPI) *exchange.OrderClient {
	t.Helper()
	c, err := exchange.NewOrderClient(exchange.OrderClientConfig{
		BaseURL: mock.URL,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewOrderClient: %v", err)
	}
	return c
}

func TestListMarketsForEvent_NormalizesCentsToFractional(t *testing.T) {
	mock := testutil.NewMockExchangeAPI()
	defer mock.Close()

	mock.SetMarkets("KXNBAGAME-25NOV01BOSLAL", []types.Market{
		testutil.CreateTestMarket("KXNBAGAME-25NOV01BOSLAL-BOS", "KXNBAGAME-25NOV01BOSLAL", 0.45),
		testutil.CreateTestMarket("KXNBAGAME-25NOV01BOSLAL-LAL", "KXNBAGAME-25NOV01BOSLAL", 0.55),
	})

	c := newClientAgainst(t, mock)
	markets, err := c.ListMarketsForEvent(context.Background(), "KXNBAGAME-25NOV01BOSLAL")
	if err != nil {
		t.Fatalf("ListMarketsForEvent: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(markets))
	}
	if markets[0].YesBid != 0.44 || markets[0].YesAsk != 0.46 {
		t.Errorf("expected fractional 0.44/0.46 quotes, got %f/%f", markets[0].YesBid, markets[0].YesAsk)
	}
	if markets[0].TickSize != 0.01 {
		t.Errorf("expected 0.01 tick size, got %f", markets[0].TickSize)
	}
}

func TestListMarketsForEvent_UnknownEventIsNotAnError(t *testing.T) {
	mock := testutil.NewMockExchangeAPI()
	defer mock.Close()

	c := newClientAgainst(t, mock)
	markets, err := c.ListMarketsForEvent(context.Background(), "KXNBAGAME-NOSUCH")
	if err != nil {
		t.Fatalf("expected 404 to resolve to an empty list, got error: %v", err)
	}
	if len(markets) != 0 {
		t.Errorf("expected no markets, got %d", len(markets))
	}
}

func TestPlaceOrder_RefusesNonYesSide(t *testing.T) {
	mock := testutil.NewMockExchangeAPI()
	defer mock.Close()

	c := newClientAgainst(t, mock)
	_, err := c.PlaceOrder(context.Background(), exchange.PlaceOrderRequest{
		MarketTicker: "KXNBAGAME-25NOV01BOSLAL-BOS",
		Side:         "no",
		Price:        0.45,
		Qty:          10,
		Action:       exchange.ActionBuy,
	})
	if err == nil {
		t.Fatal("expected a non-yes order to be refused")
	}
	if _, ok := err.(*types.InvariantError); !ok {
		t.Errorf("expected InvariantError, got %T", err)
	}
}

func TestWaitForFill_ImmediateFill(t *testing.T) {
	mock := testutil.NewMockExchangeAPI()
	defer mock.Close()

	c := newClientAgainst(t, mock)
	orderID, err := c.PlaceOrder(context.Background(), exchange.PlaceOrderRequest{
		MarketTicker: "KXNBAGAME-25NOV01BOSLAL-BOS",
		Side:         "yes",
		Price:        0.45,
		Qty:          10,
		Action:       exchange.ActionBuy,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	status, filled, err := c.WaitForFill(context.Background(), orderID, 3*time.Second, false)
	if err != nil {
		t.Fatalf("WaitForFill: %v", err)
	}
	if status != exchange.FillFilled {
		t.Errorf("expected filled, got %s", status)
	}
	if filled != 10 {
		t.Errorf("expected 10 filled, got %d", filled)
	}
}

func TestWaitForFill_PartialFillCancelsRemainder(t *testing.T) {
	mock := testutil.NewMockExchangeAPI()
	defer mock.Close()

	c := newClientAgainst(t, mock)
	orderID, err := c.PlaceOrder(context.Background(), exchange.PlaceOrderRequest{
		MarketTicker: "KXNBAGAME-25NOV01BOSLAL-BOS",
		Side:         "yes",
		Price:        0.45,
		Qty:          10,
		Action:       exchange.ActionBuy,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	order, ok := mock.Order(orderID)
	if !ok {
		t.Fatal("order not recorded by mock")
	}
	order.Status = "resting"
	order.FilledQty = 4

	status, filled, err := c.WaitForFill(context.Background(), orderID, 3*time.Second, false)
	if err != nil {
		t.Fatalf("WaitForFill: %v", err)
	}
	if status != exchange.FillPartial {
		t.Errorf("expected partial, got %s", status)
	}
	if filled != 4 {
		t.Errorf("expected 4 filled, got %d", filled)
	}
	if order.Status != "canceled" {
		t.Errorf("expected remainder cancelled on the exchange, got status %q", order.Status)
	}
}

func TestFetchLivePositions_DerivesAvgPriceFromExposure(t *testing.T) {
	mock := testutil.NewMockExchangeAPI()
	defer mock.Close()

	// 80 contracts with $36.00 of exposure: avg price 0.45.
	mock.SetPositions([]testutil.MockExchangePosition{
		{Ticker: "KXNBAGAME-25NOV01BOSLAL-BOS", Position: 80, MarketExposure: 3600},
		{Ticker: "KXNBAGAME-25NOV01BOSLAL-LAL", Position: 0, MarketExposure: 0},
	})

	c := newClientAgainst(t, mock)
	live, err := c.FetchLivePositions(context.Background())
	if err != nil {
		t.Fatalf("FetchLivePositions: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("expected flat positions to be dropped, got %d entries", len(live))
	}
	if live[0].Contracts != 80 {
		t.Errorf("expected 80 contracts, got %d", live[0].Contracts)
	}
	if diff := live[0].AvgPrice - 0.45; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected avg price 0.45, got %f", live[0].AvgPrice)
	}
}
