package exchange

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// OrderAction is the buy/sell direction of an order request.
type OrderAction string

const (
	ActionBuy  OrderAction = "buy"
	ActionSell OrderAction = "sell"
)

// FillStatus is the terminal or in-flight state WaitForFill resolves to.
type FillStatus string

const (
	FillFilled    FillStatus = "filled"
	FillPartial   FillStatus = "partial"
	FillCancelled FillStatus = "cancelled"
	FillTimeout   FillStatus = "timeout"
)

// PlaceOrderRequest is a single limit order. The engine is YES-only;
// Side must always be "yes".
type PlaceOrderRequest struct {
	MarketTicker string
	Side         string
	Price        float64
	Qty          int
	Action       OrderAction
}

// LivePosition is the canonical shape FetchLivePositions translates the
// exchange's position representation into.
type LivePosition struct {
	MarketTicker string
	EventTicker  string
	Side         string
	Contracts    int
	AvgPrice     float64
}

type orderResponse struct {
	Order struct {
		OrderID    string  `json:"order_id"`
		Status     string  `json:"status"`
		FilledQty  int     `json:"filled_count"`
		Qty        int     `json:"count"`
		YesPrice   float64 `json:"yes_price"`
	} `json:"order"`
}

type positionsResponse struct {
	MarketPositions []struct {
		Ticker           string  `json:"ticker"`
		Position         int     `json:"position"`
		MarketExposure   int     `json:"market_exposure"` // cents
		RestingOrdersCnt int     `json:"resting_orders_count"`
	} `json:"market_positions"`
}

type marketsResponse struct {
	Markets []struct {
		Ticker      string  `json:"ticker"`
		EventTicker string  `json:"event_ticker"`
		Status      string  `json:"status"`
		YesBid      int     `json:"yes_bid"`
		YesAsk      int     `json:"yes_ask"`
		Liquidity   float64 `json:"liquidity"`
		Volume24h   float64 `json:"volume_24h"`
		TickSize    int     `json:"tick_size"`
	} `json:"markets"`
}

// ListMarketsForEvent queries the exchange for every market under an event
// ticker, used by the market matcher to confirm a candidate ticker actually
// resolves to live markets; the first non-empty result wins.
func (c *OrderClient) ListMarketsForEvent(ctx context.Context, eventTicker string) ([]types.Market, error) {
	path := "/events/" + eventTicker + "/markets"
	respBody, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		if oe, ok := err.(*types.OrderError); ok && oe.Code == "404" {
			return nil, nil
		}
		return nil, fmt.Errorf("list markets for event %s: %w", eventTicker, err)
	}

	var resp marketsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse markets response: %w", err)
	}

	out := make([]types.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		out = append(out, types.Market{
			Ticker:      m.Ticker,
			EventTicker: m.EventTicker,
			Status:      types.MarketStatus(m.Status),
			YesBid:      float64(m.YesBid) / 100.0,
			YesAsk:      float64(m.YesAsk) / 100.0,
			Liquidity:   m.Liquidity,
			Volume24h:   m.Volume24h,
			TickSize:    float64(m.TickSize) / 100.0,
		})
	}
	return out, nil
}

// OrderClientConfig configures a signed REST client for the exchange's
// trade API.
type OrderClientConfig struct {
	BaseURL        string
	APIKeyID       string
	PrivateKeyPath string
	Logger         *zap.Logger
}

// OrderClient places, polls, and cancels orders, and fetches live positions
// for reconciliation. Kalshi authenticates via the
// KALSHI-ACCESS-KEY/-SIGNATURE/-TIMESTAMP headers with an RSA-PSS signature
// over timestamp+method+path.
type OrderClient struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOrderClient loads the RSA private key from privateKeyPath and builds an
// OrderClient. If LIVE_ORDERS is disabled the caller may still construct a
// client with an empty key path for dry-run use; such a client sends every
// request unsigned. Once a key is loaded, every request is signed.
func NewOrderClient(cfg OrderClientConfig) (*OrderClient, error) {
	c := &OrderClient{
		baseURL:    cfg.BaseURL,
		apiKeyID:   cfg.APIKeyID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     cfg.Logger,
	}

	if cfg.PrivateKeyPath == "" {
		return c, nil
	}

	keyBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("decode PEM private key: no block found")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		keyAny, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		rsaKey, ok := keyAny.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		key = rsaKey
	}

	c.privateKey = key
	return c, nil
}

// sign produces the base64 RSA-PSS signature Kalshi-style exchanges expect
// over timestamp+method+path.
func (c *OrderClient) sign(timestamp, method, path string) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("order client has no private key loaded")
	}

	message := timestamp + method + path
	digest := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

func (c *OrderClient) doSignedRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Read-only flows (market listing, position fetches) must keep working
	// in dry-run mode, where no private key is configured; the exchange
	// rejects unsigned mutating calls on its own.
	if c.privateKey != nil {
		signature, err := c.sign(timestamp, method, path)
		if err != nil {
			return nil, err
		}
		req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
		req.Header.Set("KALSHI-ACCESS-SIGNATURE", signature)
		req.Header.Set("KALSHI-ACCESS-TIMESTAMP", timestamp)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return respBody, &types.OrderError{
			Code:    strconv.Itoa(resp.StatusCode),
			Message: string(respBody),
			Ticker:  path,
		}
	}

	return respBody, nil
}

// PlaceOrder submits a limit order. A request on anything but the "yes" side
// is a programming-invariant error, refused without ever placing a request.
func (c *OrderClient) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (orderID string, err error) {
	if req.Side != "yes" {
		OrdersPlacedTotal.WithLabelValues(string(req.Action), "invariant_refused").Inc()
		return "", &types.InvariantError{
			Invariant: "yes_only",
			Detail:    fmt.Sprintf("refused non-yes order on %s", req.MarketTicker),
		}
	}

	payload := map[string]interface{}{
		"ticker":          req.MarketTicker,
		"action":          string(req.Action),
		"side":            "yes",
		"type":            "limit",
		"yes_price":       int(req.Price * 100),
		"count":           req.Qty,
		"client_order_id": uuid.NewString(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	respBody, err := c.doSignedRequest(ctx, http.MethodPost, "/portfolio/orders", body)
	if err != nil {
		OrdersPlacedTotal.WithLabelValues(string(req.Action), "error").Inc()
		return "", fmt.Errorf("place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		OrdersPlacedTotal.WithLabelValues(string(req.Action), "error").Inc()
		return "", fmt.Errorf("parse order response: %w", err)
	}

	OrdersPlacedTotal.WithLabelValues(string(req.Action), "ok").Inc()
	c.logger.Info("order-placed",
		zap.String("market_ticker", req.MarketTicker),
		zap.String("order_id", resp.Order.OrderID),
		zap.Int("qty", req.Qty))

	return resp.Order.OrderID, nil
}

// GetOrder fetches the current status of a previously-placed order.
func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (status string, filledQty, qty int, err error) {
	path := "/portfolio/orders/" + orderID
	respBody, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", 0, 0, err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", 0, 0, fmt.Errorf("parse order response: %w", err)
	}

	return resp.Order.Status, resp.Order.FilledQty, resp.Order.Qty, nil
}

// CancelOrder issues a best-effort cancel, trying DELETE first.
func (c *OrderClient) CancelOrder(ctx context.Context, orderID string) error {
	path := "/portfolio/orders/" + orderID
	_, err := c.doSignedRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		_, postErr := c.doSignedRequest(ctx, http.MethodPost, path+"/cancel", nil)
		if postErr != nil {
			return fmt.Errorf("cancel order %s: delete failed (%w), cancel fallback failed (%v)", orderID, err, postErr)
		}
	}
	return nil
}

// WaitForFill polls order status at roughly 1Hz until filled, cancelled, or
// timeout elapses. On timeout it attempts a best-effort cancel and returns
// whatever filled in the interim. If the order endpoint 404s but the
// position appears live, callers should treat that as filled via the
// reconciliation pass rather than this call.
func (c *OrderClient) WaitForFill(ctx context.Context, orderID string, timeout time.Duration, requireFull bool) (status FillStatus, filledQty int, err error) {
	start := time.Now()
	defer func() { FillWaitDuration.Observe(time.Since(start).Seconds()) }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(900 * time.Millisecond)
	defer ticker.Stop()

	lastFilled := 0
	for {
		orderStatus, filled, qty, getErr := c.GetOrder(ctx, orderID)
		if getErr == nil {
			if filled > lastFilled {
				lastFilled = filled
			}
			switch orderStatus {
			case "filled":
				return FillFilled, filled, nil
			case "canceled", "cancelled":
				return FillCancelled, filled, nil
			default:
				if filled >= qty && qty > 0 {
					return FillFilled, filled, nil
				}
				if !requireFull && filled > 0 {
					// Take the partial and pull the rest off the book so
					// the remainder can't fill untracked later.
					_ = c.CancelOrder(ctx, orderID)
					return FillPartial, filled, nil
				}
			}
		} else {
			c.logger.Warn("order-status-query-failed", zap.String("order_id", orderID), zap.Error(getErr))
		}

		select {
		case <-ctx.Done():
			return FillTimeout, lastFilled, ctx.Err()
		case <-deadline.C:
			_ = c.CancelOrder(ctx, orderID)
			// A fill can land between the last poll and the cancel; report
			// whatever actually executed.
			if _, filled, _, getErr := c.GetOrder(ctx, orderID); getErr == nil && filled > lastFilled {
				lastFilled = filled
			}
			if lastFilled > 0 {
				return FillPartial, lastFilled, nil
			}
			return FillTimeout, 0, nil
		case <-ticker.C:
		}
	}
}

// FetchLivePositions translates the exchange's position representation into
// the canonical (market, side, contracts, avg_price) shape. Kalshi
// reports exposure in cents against a signed position count; avg_price is
// derived as exposure_dollars / position_count.
func (c *OrderClient) FetchLivePositions(ctx context.Context) ([]LivePosition, error) {
	respBody, err := c.doSignedRequest(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch live positions: %w", err)
	}

	var resp positionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse positions response: %w", err)
	}

	out := make([]LivePosition, 0, len(resp.MarketPositions))
	for _, mp := range resp.MarketPositions {
		if mp.Position == 0 {
			continue
		}

		side := "yes"
		contracts := mp.Position
		if contracts < 0 {
			contracts = -contracts
		}

		avgPrice := 0.0
		if contracts > 0 {
			avgPrice = (float64(mp.MarketExposure) / 100.0) / float64(contracts)
			if avgPrice < 0 {
				avgPrice = -avgPrice
			}
		}

		out = append(out, LivePosition{
			MarketTicker: mp.Ticker,
			Side:         side,
			Contracts:    contracts,
			AvgPrice:     avgPrice,
		})
	}

	return out, nil
}
