package usecase

import (
	"context"
	"testing"
	"time"

	"PairScan/internal/domain/repository"
)

func TestGetCandlesValidation(t *testing.T) {
	uc := NewCandlesUseCase(newFakeStore())

	if _, err := uc.GetCandles(context.Background(), GetCandlesParams{Timeframe: repository.TF1h}); err == nil {
		t.Fatalf("expected error for missing instrument")
	}
	if _, err := uc.GetCandles(context.Background(), GetCandlesParams{Instrument: "BTCUSDT", Timeframe: "3m"}); err == nil {
		t.Fatalf("expected error for unknown timeframe")
	}
}

func TestGetCandlesLimits(t *testing.T) {
	store := newFakeStore()
	store.setRecent("BTCUSDT", repository.TF1h, activeSeries(500, repository.TF1h, time.Now()))
	uc := NewCandlesUseCase(store)

	// zero limit defaults to 200
	res, err := uc.GetCandles(context.Background(), GetCandlesParams{Instrument: "BTCUSDT", Timeframe: repository.TF1h})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Count != 200 || len(res.Candles) != 200 {
		t.Fatalf("count = %d, want the 200 default", res.Count)
	}
	if res.Instrument != "BTCUSDT" || res.Timeframe != "1h" {
		t.Fatalf("result = %+v", res)
	}

	res, err = uc.GetCandles(context.Background(), GetCandlesParams{Instrument: "BTCUSDT", Timeframe: repository.TF1h, Limit: 50})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Count != 50 {
		t.Fatalf("count = %d, want 50", res.Count)
	}
}

func TestGetCandlesFromBound(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.setRecent("BTCUSDT", repository.TF1h, activeSeries(10, repository.TF1h, now))
	uc := NewCandlesUseCase(store)

	res, err := uc.GetCandles(context.Background(), GetCandlesParams{
		Instrument: "BTCUSDT",
		Timeframe:  repository.TF1h,
		From:       now.Add(-4*time.Hour + 17*time.Minute),
	})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	// from aligns down to the 1h boundary, keeping the candle opened at -4h
	if res.Count != 4 {
		t.Fatalf("count = %d, want 4", res.Count)
	}
	if got := res.Candles[0].OpenTime; !got.Equal(now.Add(-4 * time.Hour)) {
		t.Fatalf("first open = %v", got)
	}
}
