package exchange

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"
	"github.com/kalshi-sports/live-engine/pkg/types"
	pkgws "github.com/kalshi-sports/live-engine/pkg/websocket"
	"go.uber.org/zap"
)

// WSConfig holds the quote-stream connection's tunables.
type WSConfig struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// WSClient manages the single WebSocket connection to the exchange's quote
// stream: a re-subscribe-on-reconnect shape built on
// ReconnectManager's exponential-backoff-with-jitter loop. A single
// connection covers this domain's ticker count; no connection sharding
// is needed.
type WSClient struct {
	url             string
	conn            *gorilla.Conn
	logger          *zap.Logger
	reconnectMgr    *pkgws.ReconnectManager
	config          WSConfig
	quoteChan       chan types.QuoteMessage
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	subscribed      map[string]bool
	connected       atomic.Bool
	connectionStart atomic.Int64
}

// NewWSClient creates a WSClient.
func NewWSClient(cfg WSConfig) *WSClient {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := pkgws.ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &WSClient{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: pkgws.NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		quoteChan:    make(chan types.QuoteMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]bool),
	}
}

// Start dials the initial connection and launches the read/ping/reconnect
// goroutines.
func (c *WSClient) Start() error {
	c.logger.Info("quote-stream-starting", zap.String("url", c.url))

	if err := c.connect(c.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

func (c *WSClient) connect(ctx context.Context) error {
	dialer := gorilla.Dialer{HandshakeTimeout: c.config.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error { return nil })

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.connected.Store(true)
	c.connectionStart.Store(time.Now().Unix())

	c.logger.Info("quote-stream-connected")
	return nil
}

// Subscribe subscribes to a set of market tickers: the union of open-
// position markets and active-match markets the strategy worker currently
// cares about.
func (c *WSClient) Subscribe(tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	c.mu.Lock()
	newTickers := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if !c.subscribed[t] {
			newTickers = append(newTickers, t)
			c.subscribed[t] = true
		}
	}
	if len(newTickers) == 0 {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	msg := map[string]interface{}{
		"cmd":     "subscribe",
		"tickers": newTickers,
	}
	if err := conn.WriteJSON(msg); err != nil {
		c.mu.Lock()
		for _, t := range newTickers {
			delete(c.subscribed, t)
		}
		c.mu.Unlock()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	c.logger.Info("subscribed-to-markets", zap.Int("new-count", len(newTickers)))
	return nil
}

// Unsubscribe drops a set of market tickers, called when their positions
// close and they leave the active-match set.
func (c *WSClient) Unsubscribe(tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	c.mu.Lock()
	toDrop := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if c.subscribed[t] {
			toDrop = append(toDrop, t)
			delete(c.subscribed, t)
		}
	}
	conn := c.conn
	c.mu.Unlock()

	if len(toDrop) == 0 || conn == nil {
		return nil
	}

	msg := map[string]interface{}{
		"cmd":     "unsubscribe",
		"tickers": toDrop,
	}
	return conn.WriteJSON(msg)
}

// SyncSubscriptions reconciles the subscription set against the tickers
// the engine currently requires (the union of open-position markets and
// active-match markets): new tickers are subscribed, tickers no longer
// required are dropped.
func (c *WSClient) SyncSubscriptions(required []string) error {
	want := make(map[string]bool, len(required))
	for _, t := range required {
		want[t] = true
	}

	var add, drop []string
	c.mu.RLock()
	for t := range want {
		if !c.subscribed[t] {
			add = append(add, t)
		}
	}
	for t := range c.subscribed {
		if !want[t] {
			drop = append(drop, t)
		}
	}
	c.mu.RUnlock()

	if err := c.Subscribe(add); err != nil {
		return err
	}
	return c.Unsubscribe(drop)
}

func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("quote-stream-read-error", zap.Error(err))
			c.connected.Store(false)
			return
		}

		var quotes []types.QuoteMessage
		if err := json.Unmarshal(raw, &quotes); err != nil {
			c.logger.Debug("quote-stream-unparseable-message", zap.Error(err), zap.Int("bytes", len(raw)))
			continue
		}

		for _, q := range quotes {
			select {
			case c.quoteChan <- q:
			default:
				c.logger.Warn("quote-channel-full", zap.String("market_ticker", q.MarketTicker))
			}
		}
	}
}

func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(gorilla.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				c.logger.Warn("quote-stream-ping-error", zap.Error(err))
			}
		}
	}
}

func (c *WSClient) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("quote-stream-connection-lost")

		err := c.reconnectMgr.Reconnect(c.ctx, c.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			continue
		}

		if err := c.resubscribeAll(); err != nil {
			c.logger.Error("quote-stream-resubscribe-failed", zap.Error(err))
			c.connected.Store(false)
			continue
		}

		c.wg.Add(1)
		go c.readLoop()
	}
}

func (c *WSClient) resubscribeAll() error {
	c.mu.RLock()
	tickers := make([]string, 0, len(c.subscribed))
	for t := range c.subscribed {
		tickers = append(tickers, t)
	}
	conn := c.conn
	c.mu.RUnlock()

	if len(tickers) == 0 {
		return nil
	}

	msg := map[string]interface{}{
		"cmd":     "subscribe",
		"tickers": tickers,
	}
	return conn.WriteJSON(msg)
}

// QuoteChan returns the channel the strategy worker drains for live quote
// updates.
func (c *WSClient) QuoteChan() <-chan types.QuoteMessage {
	return c.quoteChan
}

// Close shuts the connection down gracefully.
func (c *WSClient) Close() error {
	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()
	close(c.quoteChan)
	return nil
}
