package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	"PairScan/internal/exchange"
	"PairScan/pkg/config"
)

func acquisitionTestConfig() config.AcquisitionConfig {
	cfg := fetchTestConfig()
	cfg.BatchSize = 2
	cfg.MaxRetries = 0
	cfg.RetryPause = time.Millisecond
	return cfg
}

func newAcquisitionEngine(t *testing.T, cfg config.AcquisitionConfig, ex *fakeExchange, store *fakeStore, m *recordingMetrics) *AcquisitionEngine {
	t.Helper()
	fetcher := NewFetcher(ex, cfg, testLogger(t), m)
	fetcher.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return NewAcquisitionEngine(cfg, fetcher, store, testLogger(t), m)
}

func fetchedInstruments(res AcquisitionResult) []string {
	out := make([]string, 0, len(res.PerInstrument))
	for sym := range res.PerInstrument {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func TestAcquisitionRotation(t *testing.T) {
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		return activeSeries(5, tf, time.Now()), nil
	}}
	e := newAcquisitionEngine(t, acquisitionTestConfig(), ex, newFakeStore(), newRecordingMetrics())

	instruments := []string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT", "EEEUSDT"}
	wantBatches := [][]string{
		{"AAAUSDT", "BBBUSDT"},
		{"CCCUSDT", "DDDUSDT"},
		{"EEEUSDT"},
		{"AAAUSDT", "BBBUSDT"}, // wrap-around
	}

	for i, want := range wantBatches {
		res := e.Run(context.Background(), instruments)
		got := fetchedInstruments(res)
		if len(got) != len(want) {
			t.Fatalf("batch %d: fetched %v, want %v", i, got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("batch %d: fetched %v, want %v", i, got, want)
			}
		}
		wantComplete := i == 2
		if res.AllBatchesComplete != wantComplete {
			t.Fatalf("batch %d: complete = %v, want %v", i, res.AllBatchesComplete, wantComplete)
		}
	}
}

func TestAcquisitionFetchesEveryCoreTimeframe(t *testing.T) {
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		return activeSeries(5, tf, time.Now()), nil
	}}
	store := newFakeStore()
	e := newAcquisitionEngine(t, acquisitionTestConfig(), ex, store, newRecordingMetrics())

	res := e.Run(context.Background(), []string{"AAAUSDT"})
	series := res.PerInstrument["AAAUSDT"]
	if len(series) != len(repository.CoreTimeframes) {
		t.Fatalf("timeframes = %d, want %d", len(series), len(repository.CoreTimeframes))
	}
	for _, tf := range repository.CoreTimeframes {
		if len(series[tf]) != 5 {
			t.Fatalf("%s: %d candles, want 5", tf, len(series[tf]))
		}
	}
	if store.upserts != len(repository.CoreTimeframes) {
		t.Fatalf("upserts = %d, want one per timeframe", store.upserts)
	}
}

func TestAcquisitionKeepsPartialInstrument(t *testing.T) {
	// the 4h read is permanently unavailable; the instrument still completes
	// with the two surviving timeframes
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		if tf == repository.TF4h {
			return nil, exchange.ErrSymbolNotFound
		}
		return activeSeries(5, tf, time.Now()), nil
	}}
	e := newAcquisitionEngine(t, acquisitionTestConfig(), ex, newFakeStore(), newRecordingMetrics())

	res := e.Run(context.Background(), []string{"AAAUSDT"})
	series := res.PerInstrument["AAAUSDT"]
	if len(series) != 2 {
		t.Fatalf("timeframes = %v, want 15m and 1h only", series)
	}
	if _, ok := series[repository.TF4h]; ok {
		t.Fatalf("4h series present despite permanent failure")
	}
}

func TestAcquisitionDropsInstrumentWithNoData(t *testing.T) {
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		return nil, exchange.ErrSymbolNotFound
	}}
	m := newRecordingMetrics()
	e := newAcquisitionEngine(t, acquisitionTestConfig(), ex, newFakeStore(), m)

	res := e.Run(context.Background(), []string{"AAAUSDT"})
	if len(res.PerInstrument) != 0 {
		t.Fatalf("fetched = %v, want none", res.PerInstrument)
	}
	if m.errorCount("acquisition_instrument_dropped") != 1 {
		t.Fatalf("dropped count = %d, want 1", m.errorCount("acquisition_instrument_dropped"))
	}
}

func TestAcquisitionEmptyUniverse(t *testing.T) {
	e := newAcquisitionEngine(t, acquisitionTestConfig(), &fakeExchange{}, newFakeStore(), newRecordingMetrics())
	res := e.Run(context.Background(), nil)
	if !res.AllBatchesComplete || len(res.PerInstrument) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestAcquisitionCancellationStopsDispatch(t *testing.T) {
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		return activeSeries(5, tf, time.Now()), nil
	}}
	e := newAcquisitionEngine(t, acquisitionTestConfig(), ex, newFakeStore(), newRecordingMetrics())

	e.RequestCancellation()
	res := e.Run(context.Background(), []string{"AAAUSDT", "BBBUSDT"})
	if len(res.PerInstrument) != 0 {
		t.Fatalf("fetched = %v after cancellation", res.PerInstrument)
	}
	if !e.CancellationRequested() {
		t.Fatalf("cancellation flag cleared by Run")
	}

	e.ResetCancellation()
	if e.CancellationRequested() {
		t.Fatalf("cancellation flag survived reset")
	}
}

func TestAcquisitionLastClosedCandle(t *testing.T) {
	last := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		return models.CandleSeries{
			{OpenTime: last.Add(-tf.Duration()), Close: 10, Volume: 1, Closed: true},
			{OpenTime: last, Close: 11, Volume: 1, Closed: false}, // in progress
		}, nil
	}}
	e := newAcquisitionEngine(t, acquisitionTestConfig(), ex, newFakeStore(), newRecordingMetrics())

	e.Run(context.Background(), []string{"AAAUSDT"})
	c, ok := e.LastClosedCandle("AAAUSDT", repository.TF1h)
	if !ok || !c.Closed || c.Close != 10 {
		t.Fatalf("last closed = %+v %v, want the closed candle", c, ok)
	}
	if _, ok := e.LastClosedCandle("ZZZUSDT", repository.TF1h); ok {
		t.Fatalf("unexpected candle for unknown instrument")
	}
}

func TestWorkerCount(t *testing.T) {
	cases := []struct {
		batchSize  int
		maxWorkers int
		batchLen   int
		want       int
	}{
		{2, 5, 2, 2},   // tiny batches get one worker per instrument
		{2, 5, 0, 1},   // never zero
		{9, 5, 9, 3},   // batchSize/3
		{30, 5, 30, 5}, // clamped to MaxWorkers
		{4, 5, 4, 1},   // integer division floor, at least one
	}
	for _, tc := range cases {
		cfg := acquisitionTestConfig()
		cfg.BatchSize = tc.batchSize
		cfg.MaxWorkers = tc.maxWorkers
		e := newAcquisitionEngine(t, cfg, &fakeExchange{}, newFakeStore(), newRecordingMetrics())
		if got := e.workerCount(tc.batchLen); got != tc.want {
			t.Errorf("workerCount(batchSize=%d, len=%d) = %d, want %d", tc.batchSize, tc.batchLen, got, tc.want)
		}
	}
}
