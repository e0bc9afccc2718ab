package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
)

// Stream implements a TickerStream backed by the Bybit v5 public WebSocket.
// It feeds live 24h turnover updates into the volume cache between filter
// cycles so ticker REST calls stay rare.
type Stream struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	symbols   []string
	connected bool
}

// NewStream creates a new Bybit ticker stream.
func NewStream(url string, reconnectDelay, pingInterval time.Duration) repository.TickerStream {
	return &Stream{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("bybit ws connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	return nil
}

// Subscribe subscribes to ticker topics for the given symbols.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("bybit ws not connected")
	}
	s.symbols = symbols
	args := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		args = append(args, "tickers."+NormalizeSymbol(sym))
	}
	msg := map[string]interface{}{"op": "subscribe", "args": args}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("bybit ws subscribe: %w", err)
	}
	return nil
}

type wsTickerMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol      string `json:"symbol"`
		LastPrice   string `json:"lastPrice"`
		Turnover24h string `json:"turnover24h"`
	} `json:"data"`
}

// Read streams ticker updates and errors.
func (s *Stream) Read(ctx context.Context) (<-chan models.Ticker, <-chan error) {
	tickers := make(chan models.Ticker, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteJSON(map[string]string{"op": "ping"})
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(tickers)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("bybit ws conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("bybit ws read: %w", err)
					return
				}
				var m wsTickerMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore op acks and ping/pong frames
					continue
				}
				if m.Data.Symbol == "" {
					continue
				}
				last, _ := strconv.ParseFloat(m.Data.LastPrice, 64)
				turnover, _ := strconv.ParseFloat(m.Data.Turnover24h, 64)
				t := models.Ticker{Symbol: m.Data.Symbol, LastPrice: last, QuoteVolume24h: turnover}
				select {
				case tickers <- t:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return tickers, errs
}

// Reconnect closes and reconnects, resubscribing the previous symbols.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx, s.symbols)
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected returns true if the stream is connected.
func (s *Stream) IsConnected() bool { return s.connected }
