package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/kalshi-sports/live-engine/pkg/types"
)

// MockExchangeAPI is a mock HTTP server simulating the exchange's trade
// API: per-event market listing, order placement/status/cancel, and the
// portfolio positions endpoint. Handlers accept unsigned requests so tests
// don't need a private key.
type MockExchangeAPI struct {
	*httptest.Server

	mu             sync.RWMutex
	marketsByEvent map[string][]types.Market
	orders         map[string]*MockOrder
	positions      []MockExchangePosition
	nextOrderSeq   int
}

// MockOrder is the mock's view of a placed order. Tests mutate Status and
// FilledQty to script fill behavior.
type MockOrder struct {
	OrderID   string `json:"order_id"`
	Ticker    string `json:"ticker"`
	Action    string `json:"action"`
	YesPrice  int    `json:"yes_price"`
	Qty       int    `json:"count"`
	FilledQty int    `json:"filled_count"`
	Status    string `json:"status"`
}

// MockExchangePosition is the wire shape of one portfolio position entry.
type MockExchangePosition struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"`
	MarketExposure int    `json:"market_exposure"` // cents
}

// NewMockExchangeAPI creates a mock exchange server.
func NewMockExchangeAPI() *MockExchangeAPI {
	mock := &MockExchangeAPI{
		marketsByEvent: make(map[string][]types.Market),
		orders:         make(map[string]*MockOrder),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events/", mock.handleEventMarkets)
	mux.HandleFunc("/portfolio/orders", mock.handleCreateOrder)
	mux.HandleFunc("/portfolio/orders/", mock.handleOrderByID)
	mux.HandleFunc("/portfolio/positions", mock.handlePositions)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetMarkets registers the market list returned for an event ticker.
func (m *MockExchangeAPI) SetMarkets(eventTicker string, markets []types.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketsByEvent[eventTicker] = markets
}

// SetPositions replaces the portfolio positions snapshot.
func (m *MockExchangeAPI) SetPositions(positions []MockExchangePosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// Order returns a placed order by ID for assertions and fill scripting.
func (m *MockExchangeAPI) Order(orderID string) (*MockOrder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	return o, ok
}

func (m *MockExchangeAPI) handleEventMarkets(w http.ResponseWriter, r *http.Request) {
	// Path shape: /events/{event_ticker}/markets
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "markets" {
		http.NotFound(w, r)
		return
	}

	m.mu.RLock()
	markets, ok := m.marketsByEvent[parts[1]]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	type wireMarket struct {
		Ticker      string  `json:"ticker"`
		EventTicker string  `json:"event_ticker"`
		Status      string  `json:"status"`
		YesBid      int     `json:"yes_bid"`
		YesAsk      int     `json:"yes_ask"`
		Liquidity   float64 `json:"liquidity"`
		Volume24h   float64 `json:"volume_24h"`
		TickSize    int     `json:"tick_size"`
	}
	out := struct {
		Markets []wireMarket `json:"markets"`
	}{}
	for _, mk := range markets {
		out.Markets = append(out.Markets, wireMarket{
			Ticker:      mk.Ticker,
			EventTicker: mk.EventTicker,
			Status:      string(mk.Status),
			YesBid:      int(mk.YesBid * 100),
			YesAsk:      int(mk.YesAsk * 100),
			Liquidity:   mk.Liquidity,
			Volume24h:   mk.Volume24h,
			TickSize:    int(mk.TickSize * 100),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out) //nolint:errcheck // Test mock
}

func (m *MockExchangeAPI) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Ticker   string `json:"ticker"`
		Action   string `json:"action"`
		YesPrice int    `json:"yes_price"`
		Count    int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.nextOrderSeq++
	order := &MockOrder{
		OrderID:  "mock-order-" + strings.Repeat("0", 3-len(itoa(m.nextOrderSeq))) + itoa(m.nextOrderSeq),
		Ticker:   req.Ticker,
		Action:   req.Action,
		YesPrice: req.YesPrice,
		Qty:      req.Count,
		// Orders fill immediately and fully unless a test scripts
		// otherwise via Order().
		FilledQty: req.Count,
		Status:    "filled",
	}
	m.orders[order.OrderID] = order
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct { //nolint:errcheck // Test mock
		Order *MockOrder `json:"order"`
	}{order})
}

func (m *MockExchangeAPI) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimPrefix(r.URL.Path, "/portfolio/orders/")
	orderID = strings.TrimSuffix(orderID, "/cancel")

	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodDelete || (r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel")) {
		if order.Status != "filled" {
			order.Status = "canceled"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct { //nolint:errcheck // Test mock
		Order *MockOrder `json:"order"`
	}{order})
}

func (m *MockExchangeAPI) handlePositions(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct { //nolint:errcheck // Test mock
		MarketPositions []MockExchangePosition `json:"market_positions"`
	}{m.positions})
}

// MockOddsAPI is a mock HTTP server simulating the odds feed: live-event
// listing per sport and per-event moneyline snapshots.
type MockOddsAPI struct {
	*httptest.Server

	mu     sync.RWMutex
	events []MockOddsEvent
}

// MockOddsEvent is the wire shape of one in-play event, odds inline.
type MockOddsEvent struct {
	ID            string  `json:"id"`
	Sport         string  `json:"sport"`
	HomeTeam      string  `json:"home_team"`
	AwayTeam      string  `json:"away_team"`
	CommenceTime  string  `json:"commence_time"`
	HomeOdds      float64 `json:"home_odds"`
	AwayOdds      float64 `json:"away_odds"`
	ScoreSnapshot string  `json:"score_snapshot"`
	PeriodClock   string  `json:"period_clock"`
}

// NewMockOddsAPI creates a mock odds feed server.
func NewMockOddsAPI(events []MockOddsEvent) *MockOddsAPI {
	mock := &MockOddsAPI{events: events}

	mux := http.NewServeMux()
	mux.HandleFunc("/live-events", func(w http.ResponseWriter, r *http.Request) {
		sport := r.URL.Query().Get("sport")
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		out := make([]MockOddsEvent, 0, len(mock.events))
		for _, e := range mock.events {
			if sport == "" || e.Sport == sport {
				out = append(out, e)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out) //nolint:errcheck // Test mock
	})
	mux.HandleFunc("/event-odds", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		for _, e := range mock.events {
			if e.ID == id {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(e) //nolint:errcheck // Test mock
				return
			}
		}
		http.NotFound(w, r)
	})

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetEvents replaces the live-event list.
func (m *MockOddsAPI) SetEvents(events []MockOddsEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = events
}

// MockStorage is an in-memory trade-event sink for testing.
type MockStorage struct {
	mu     sync.Mutex
	Events []*types.TradeEvent
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// StoreTradeEvent appends the event.
func (s *MockStorage) StoreTradeEvent(_ context.Context, evt *types.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, evt)
	return nil
}

// Close is a no-op.
func (s *MockStorage) Close() error { return nil }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
