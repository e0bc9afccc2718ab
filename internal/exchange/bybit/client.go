package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	"PairScan/internal/exchange"
	xhttp "PairScan/pkg/http"
)

// Client implements repository.Exchange against the Bybit v5 public market
// API. All requests pass through a token-bucket limiter and a circuit
// breaker; the client itself never retries, that is the fetch layer's job.
type Client struct {
	http     *xhttp.Client
	baseURL  string
	category string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time
}

type Option func(*Client)

// WithClock overrides the wall clock used for closed-candle computation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithBreakerSettings replaces the default circuit breaker.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = gobreaker.NewCircuitBreaker(st) }
}

// NewClient creates a Bybit market-data client.
func NewClient(baseURL, category string, requestTimeout time.Duration, rps float64, burst int, opts ...Option) *Client {
	c := &Client{
		http:     xhttp.NewClient(xhttp.WithTimeout(requestTimeout)),
		baseURL:  strings.TrimRight(baseURL, "/"),
		category: category,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		now:      time.Now,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "bybit",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && counts.TotalFailures*2 > counts.Requests
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var intervalByTimeframe = map[repository.Timeframe]string{
	repository.TF15m: "15",
	repository.TF1h:  "60",
	repository.TF4h:  "240",
	repository.TF1d:  "D",
}

type tickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string `json:"category"`
		List     []struct {
			Symbol      string `json:"symbol"`
			LastPrice   string `json:"lastPrice"`
			Turnover24h string `json:"turnover24h"`
		} `json:"list"`
	} `json:"result"`
}

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string     `json:"category"`
		Symbol   string     `json:"symbol"`
		List     [][]string `json:"list"`
	} `json:"result"`
}

// FetchTickers returns the 24h snapshot for every instrument of the
// configured category, keyed by exchange symbol.
func (c *Client) FetchTickers(ctx context.Context) (map[string]models.Ticker, error) {
	var resp tickersResponse
	err := c.get(ctx, "/v5/market/tickers", map[string][]string{
		"category": {c.category},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := classifyRetCode(resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}

	tickers := make(map[string]models.Ticker, len(resp.Result.List))
	for _, t := range resp.Result.List {
		last, _ := strconv.ParseFloat(t.LastPrice, 64)
		turnover, _ := strconv.ParseFloat(t.Turnover24h, 64)
		tickers[t.Symbol] = models.Ticker{
			Symbol:         t.Symbol,
			LastPrice:      last,
			QuoteVolume24h: turnover,
		}
	}
	return tickers, nil
}

// FetchOHLCV returns up to limit candles for symbol/tf in ascending open-time
// order. Bybit answers newest-first; the series is reversed and each candle's
// Closed flag is computed against the wall clock.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
	interval, ok := intervalByTimeframe[tf]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported timeframe %q", tf)
	}

	var resp klineResponse
	err := c.get(ctx, "/v5/market/kline", map[string][]string{
		"category": {c.category},
		"symbol":   {NormalizeSymbol(symbol)},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := classifyRetCode(resp.RetCode, resp.RetMsg); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	series := make(models.CandleSeries, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		row := resp.Result.List[i]
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cls, _ := strconv.ParseFloat(row[4], 64)
		vol, _ := strconv.ParseFloat(row[5], 64)

		openTime := time.UnixMilli(ms).UTC()
		series = append(series, models.Candle{
			OpenTime: openTime,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			Volume:   vol,
			Seq:      ms / int64(tf.Duration()/time.Millisecond),
			Closed:   now.Sub(openTime) >= tf.Duration(),
		})
	}
	return series, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + endpoint,
			QueryParams: params,
		})
		if err != nil {
			return nil, fmt.Errorf("bybit %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("bybit %s: status %d: %w", endpoint, resp.StatusCode, exchange.ErrRateLimited)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("bybit %s: unexpected status %d: %s", endpoint, resp.StatusCode, body)
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("bybit %s: decode: %w", endpoint, err)
		}
		return nil, nil
	})
	return err
}

// classifyRetCode maps Bybit API-level error codes onto the error taxonomy.
func classifyRetCode(code int, msg string) error {
	switch {
	case code == 0:
		return nil
	case code == 10006 || code == 10018:
		return fmt.Errorf("bybit retCode %d (%s): %w", code, msg, exchange.ErrRateLimited)
	case code == 10001 && strings.Contains(strings.ToLower(msg), "symbol"):
		return fmt.Errorf("bybit retCode %d (%s): %w", code, msg, exchange.ErrSymbolNotFound)
	default:
		return fmt.Errorf("bybit retCode %d: %s", code, msg)
	}
}
