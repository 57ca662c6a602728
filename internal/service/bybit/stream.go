package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Bybit caps subscribe args per frame.
const subscribeChunk = 10

// Stream implements a MarketStream backed by the Bybit v5 public
// linear WebSocket, subscribed to ticker topics.
type Stream struct {
	wsURL          string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a new Bybit MarketStream.
func NewStream(wsURL string, reconnectDelay, pingInterval time.Duration) *Stream {
	return &Stream{
		wsURL:          wsURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bybit connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("bybit: connected")
	return nil
}

// Subscribe subscribes to ticker topics for the given symbols and
// remembers them for reconnects.
func (c *Stream) Subscribe(ctx context.Context, symbols []string) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("bybit not connected")
	}
	c.symbols = symbols
	for start := 0; start < len(symbols); start += subscribeChunk {
		end := start + subscribeChunk
		if end > len(symbols) {
			end = len(symbols)
		}
		args := make([]string, 0, end-start)
		for _, s := range symbols[start:end] {
			args = append(args, "tickers."+s)
		}
		msg := map[string]interface{}{"op": "subscribe", "args": args}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %v: %w", args, err)
		}
	}
	log.Printf("bybit: subscribed %d symbols", len(symbols))
	return nil
}

type wsTickerMessage struct {
	Topic string `json:"topic"`
	TS    int64  `json:"ts"` // ms
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

// Read streams Tick events and errors.
func (c *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// ping loop; the venue expects an op frame, not a protocol ping
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteJSON(map[string]string{"op": "ping"})
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("bybit conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("bybit read: %w", err)
					return
				}
				var m wsTickerMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-ticker frames
					continue
				}
				if !strings.HasPrefix(m.Topic, "tickers.") {
					continue
				}
				if m.Data.LastPrice == "" {
					// delta without a price change
					continue
				}
				px, err := strconv.ParseFloat(m.Data.LastPrice, 64)
				if err != nil || px <= 0 {
					continue
				}
				tick := &models.Tick{
					Symbol:    m.Data.Symbol,
					Price:     px,
					Timestamp: time.UnixMilli(m.TS).UTC(),
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes, reconnects and resubscribes.
func (c *Stream) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx, c.symbols)
}

// Close closes the WS connection.
func (c *Stream) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Stream) IsConnected() bool { return c.connected }

var _ drepo.MarketStream = (*Stream)(nil)
