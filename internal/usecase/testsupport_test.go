package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	applogger "PairScan/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// recordingMetrics counts every metric call so tests can assert on the
// observability surface without a real registry.
type recordingMetrics struct {
	mu         sync.Mutex
	fetches    map[string]int
	errors     map[string]int
	rejections map[string]int
	signals    map[string]int
	approved   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		fetches:    make(map[string]int),
		errors:     make(map[string]int),
		rejections: make(map[string]int),
		signals:    make(map[string]int),
	}
}

func (m *recordingMetrics) RecordFetch(outcome string, tf string) {
	m.mu.Lock()
	m.fetches[outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(op string, seconds float64) {}

func (m *recordingMetrics) RecordApprovedInstruments(n int) {
	m.mu.Lock()
	m.approved = n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordRejection(layer string) {
	m.mu.Lock()
	m.rejections[layer]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordSignal(direction string) {
	m.mu.Lock()
	m.signals[direction]++
	m.mu.Unlock()
}

func (m *recordingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *recordingMetrics) rejectionCount(layer string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejections[layer]
}

var _ repository.Metrics = (*recordingMetrics)(nil)

// fakeExchange serves canned tickers and scripts OHLCV responses per call.
type fakeExchange struct {
	mu        sync.Mutex
	tickers   map[string]models.Ticker
	tickerErr error
	ohlcv     func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error)
	calls     int
}

func (f *fakeExchange) FetchTickers(ctx context.Context) (map[string]models.Ticker, error) {
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	return f.tickers, nil
}

func (f *fakeExchange) FetchOHLCV(ctx context.Context, symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.ohlcv == nil {
		return nil, nil
	}
	return f.ohlcv(symbol, tf, limit)
}

var _ repository.Exchange = (*fakeExchange)(nil)

// fakeStore is an in-memory CandleStore plus ReportStore.
type fakeStore struct {
	mu       sync.Mutex
	recent   map[string]map[repository.Timeframe]models.CandleSeries
	earliest map[string]time.Time
	counts   map[string]map[repository.Timeframe]int
	upserts  int
	reports  [][]models.FilterDecision

	recentErr error
	countErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recent:   make(map[string]map[repository.Timeframe]models.CandleSeries),
		earliest: make(map[string]time.Time),
		counts:   make(map[string]map[repository.Timeframe]int),
	}
}

func (s *fakeStore) setRecent(instrument string, tf repository.Timeframe, series models.CandleSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recent[instrument] == nil {
		s.recent[instrument] = make(map[repository.Timeframe]models.CandleSeries)
	}
	s.recent[instrument][tf] = series
}

func (s *fakeStore) setCount(instrument string, tf repository.Timeframe, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[instrument] == nil {
		s.counts[instrument] = make(map[repository.Timeframe]int)
	}
	s.counts[instrument][tf] = n
}

func (s *fakeStore) setEarliest(instrument string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earliest[instrument] = ts
}

func (s *fakeStore) Init(ctx context.Context) error { return nil }

func (s *fakeStore) UpsertCandles(ctx context.Context, instrument string, tf repository.Timeframe, candles models.CandleSeries) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.recent[instrument] == nil {
		s.recent[instrument] = make(map[repository.Timeframe]models.CandleSeries)
	}
	s.recent[instrument][tf] = candles
	return len(candles), nil
}

func (s *fakeStore) RecentCandles(ctx context.Context, instrument string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	series := s.recent[instrument][tf]
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}

func (s *fakeStore) EarliestOpenTime(ctx context.Context, instrument string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.earliest[instrument]
	return ts, ok, nil
}

func (s *fakeStore) CountCandles(ctx context.Context, instrument string, tf repository.Timeframe) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	if m, ok := s.counts[instrument]; ok {
		if n, ok := m[tf]; ok {
			return n, nil
		}
	}
	return len(s.recent[instrument][tf]), nil
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) SaveReport(ctx context.Context, report []models.FilterDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *fakeStore) LatestReport(ctx context.Context, limit int) ([]models.FilterDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return nil, nil
	}
	return s.reports[len(s.reports)-1], nil
}

var (
	_ repository.CandleStore = (*fakeStore)(nil)
	_ repository.ReportStore = (*fakeStore)(nil)
)

// activeSeries builds n candles with nonzero volume ending at now.
func activeSeries(n int, tf repository.Timeframe, now time.Time) models.CandleSeries {
	out := make(models.CandleSeries, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, models.Candle{
			OpenTime: now.Add(-time.Duration(i) * tf.Duration()),
			Open:     1, High: 1, Low: 1, Close: 1,
			Volume: 10,
			Closed: true,
		})
	}
	return out
}

// sparseSeries builds n candles of which only nonZero have volume.
func sparseSeries(n, nonZero int, tf repository.Timeframe, now time.Time) models.CandleSeries {
	out := activeSeries(n, tf, now)
	for i := nonZero; i < n; i++ {
		out[i].Volume = 0
	}
	return out
}
