package usecase

import (
	"context"
	"fmt"
	"time"

	"PairScan/internal/domain/models"
	domrepo "PairScan/internal/domain/repository"
	xutil "PairScan/pkg/util"
)

// CandlesUseCase provides business logic for retrieving stored candles.
type CandlesUseCase struct {
	store domrepo.CandleStore
}

func NewCandlesUseCase(store domrepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Instrument string
	Timeframe  domrepo.Timeframe
	Limit      int
	From       time.Time // zero means no lower bound
}

type GetCandlesResult struct {
	Instrument string
	Timeframe  string
	Count      int
	FetchedAt  time.Time
	Candles    []models.Candle
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return nil, fmt.Errorf("unknown timeframe: %s", p.Timeframe)
	}
	if p.Limit <= 0 {
		p.Limit = 200
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	candles, err := uc.store.RecentCandles(ctx, p.Instrument, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if !p.From.IsZero() {
		from := xutil.AlignTime(p.From, string(p.Timeframe))
		for len(candles) > 0 && candles[0].OpenTime.Before(from) {
			candles = candles[1:]
		}
	}

	return &GetCandlesResult{
		Instrument: p.Instrument,
		Timeframe:  string(p.Timeframe),
		Count:      len(candles),
		FetchedAt:  time.Now().UTC(),
		Candles:    candles,
	}, nil
}
