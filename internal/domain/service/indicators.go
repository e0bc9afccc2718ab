package service

import (
	"context"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
)

// VerdictProvider computes per-indicator long/short verdicts for an
// instrument from its candle series. Indicator mathematics live outside this
// process; implementations are thin collaborator clients.
type VerdictProvider interface {
	Verdicts(ctx context.Context, instrument string, candles map[repository.Timeframe]models.CandleSeries) (map[string]models.Verdict, error)
}
