package repository

import (
	"context"
	"time"

	"PairScan/internal/domain/models"
)

// Exchange is the market-data collaborator. Implementations are not safe for
// unbounded concurrent use; callers gate requests through the acquisition
// semaphore.
type Exchange interface {
	FetchTickers(ctx context.Context) (map[string]models.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol string, tf Timeframe, limit int) (models.CandleSeries, error)
}

// TickerStream is an optional live ticker feed used to refresh 24h volumes
// between filter cycles.
type TickerStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan models.Ticker, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// CandleStore persists candle series under the natural key
// (instrument, timeframe, open time).
type CandleStore interface {
	Init(ctx context.Context) error
	UpsertCandles(ctx context.Context, instrument string, tf Timeframe, candles models.CandleSeries) (int, error)
	RecentCandles(ctx context.Context, instrument string, tf Timeframe, limit int) (models.CandleSeries, error)
	EarliestOpenTime(ctx context.Context, instrument string) (time.Time, bool, error)
	CountCandles(ctx context.Context, instrument string, tf Timeframe) (int, error)
	Health(ctx context.Context) error
	Close() error
}

// ReportStore persists per-run filter reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report []models.FilterDecision) error
	LatestReport(ctx context.Context, limit int) ([]models.FilterDecision, error)
}

// SignalPublisher emits valid consensus signals to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, res models.ConsensusResult) error
	Close() error
}

// Metrics is the observability sink shared by all engines.
type Metrics interface {
	RecordFetch(outcome string, tf string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordApprovedInstruments(n int)
	RecordRejection(layer string)
	RecordSignal(direction string)
}
