package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PairScan/internal/domain/models"
)

type countingSink struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (s *countingSink) Process(ctx context.Context, t *models.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seen = append(s.seen, t.Symbol)
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *countingSink) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newNopMetrics() *nopMetrics { return &nopMetrics{errors: make(map[string]int)} }

func (m *nopMetrics) RecordFetch(outcome string, tf string) {}

func (m *nopMetrics) RecordLatency(op string, seconds float64) {}

func (m *nopMetrics) RecordApprovedInstruments(n int) {}

func (m *nopMetrics) RecordRejection(layer string) {}

func (m *nopMetrics) RecordSignal(direction string) {}

func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *nopMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func TestPipelineForwardsValidTicker(t *testing.T) {
	sink := &countingSink{}
	p := NewTickerPipeline(sink, newNopMetrics())

	err := p.Process(context.Background(), &models.Ticker{Symbol: "BTCUSDT", LastPrice: 100, QuoteVolume24h: 5})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("forwarded = %d, want 1", sink.count())
	}
}

func TestPipelineRejectsInvalidTickers(t *testing.T) {
	sink := &countingSink{}
	m := newNopMetrics()
	p := NewTickerPipeline(sink, m)

	bad := []*models.Ticker{
		nil,
		{Symbol: ""},
		{Symbol: "BTCUSDT", LastPrice: -1},
		{Symbol: "BTCUSDT", QuoteVolume24h: -1},
	}
	for _, tk := range bad {
		if err := p.Process(context.Background(), tk); err == nil {
			t.Fatalf("accepted invalid ticker %+v", tk)
		}
	}
	if sink.count() != 0 {
		t.Fatalf("invalid tickers reached the sink")
	}
	if m.errorCount("pipeline_validate") != len(bad) {
		t.Fatalf("validate errors = %d, want %d", m.errorCount("pipeline_validate"), len(bad))
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	sink := &countingSink{}
	m := newNopMetrics()
	p := NewTickerPipeline(sink, m, WithMaxRPS(1))

	tick := &models.Ticker{Symbol: "BTCUSDT", LastPrice: 1, QuoteVolume24h: 1}
	for i := 0; i < 3; i++ {
		if err := p.Process(context.Background(), tick); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	// a different symbol has its own budget
	if err := p.Process(context.Background(), &models.Ticker{Symbol: "ETHUSDT", LastPrice: 1, QuoteVolume24h: 1}); err != nil {
		t.Fatalf("process: %v", err)
	}

	if sink.count() != 2 {
		t.Fatalf("forwarded = %d, want first of each symbol", sink.count())
	}
	if m.errorCount("pipeline_throttle") != 2 {
		t.Fatalf("throttled = %d, want 2", m.errorCount("pipeline_throttle"))
	}
}

func TestPipelineBuffersAndFlushesOnRecovery(t *testing.T) {
	sink := &countingSink{}
	sink.setErr(errors.New("cache down"))
	m := newNopMetrics()
	p := NewTickerPipeline(sink, m, WithBufferSize(10))

	if err := p.Process(context.Background(), &models.Ticker{Symbol: "BTCUSDT", LastPrice: 1, QuoteVolume24h: 1}); err == nil {
		t.Fatalf("expected downstream error")
	}
	if m.errorCount("pipeline_process") != 1 {
		t.Fatalf("process errors = %d, want 1", m.errorCount("pipeline_process"))
	}

	sink.setErr(nil)
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("buffered ticker never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
