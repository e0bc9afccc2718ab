package usecase

import (
	"context"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	"PairScan/internal/exchange"
	"PairScan/pkg/config"
	applogger "PairScan/pkg/logger"
)

// TaskState tracks a FetchTask through its lifecycle. A task never re-enters
// Pending; the single state machine replaces re-checking result caches at
// every retry site.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskRetrying
	TaskSucceeded
	TaskUnavailable
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRetrying:
		return "retrying"
	case TaskSucceeded:
		return "succeeded"
	case TaskUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// FetchTask is the unit of concurrent work: one (instrument, timeframe) read.
type FetchTask struct {
	Instrument  string
	Timeframe   repository.Timeframe
	CandleCount int

	State    TaskState
	Attempts int
	Series   models.CandleSeries
	Err      error
}

// Fetcher wraps a single remote time-series read with retry, backoff and
// error classification. Exhausted retries downgrade the task to Unavailable;
// a fetch failure is never fatal to the cycle.
type Fetcher struct {
	exchange repository.Exchange
	cfg      config.AcquisitionConfig
	log      *applogger.Logger
	metrics  repository.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetch primitive bound to an exchange collaborator.
func NewFetcher(ex repository.Exchange, cfg config.AcquisitionConfig, log *applogger.Logger, metrics repository.Metrics) *Fetcher {
	return &Fetcher{
		exchange: ex,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		sleep:    sleepCtx,
	}
}

// Run drives the task to Succeeded or Unavailable and returns it.
func (f *Fetcher) Run(ctx context.Context, task *FetchTask) *FetchTask {
	for {
		if ctx.Err() != nil {
			task.State = TaskUnavailable
			task.Err = ctx.Err()
			return task
		}

		task.Attempts++
		series, err := f.fetchOnce(ctx, task)

		switch classify(series, err) {
		case outcomeOK:
			task.State = TaskSucceeded
			task.Series = series
			task.Err = nil
			f.metrics.RecordFetch("ok", string(task.Timeframe))
			return task

		case outcomeEmpty:
			// empty responses happen on brand-new listings; fixed pause
			if task.Attempts > f.cfg.MaxRetries {
				return f.unavailable(task, exchange.ErrEmptyResponse)
			}
			task.State = TaskRetrying
			if err := f.sleep(ctx, f.cfg.RetryPause); err != nil {
				return f.unavailable(task, err)
			}

		case outcomeNotFound:
			// permanent; retrying an unknown symbol only burns budget
			return f.unavailable(task, err)

		case outcomeRateLimited:
			if task.Attempts > f.cfg.MaxRetries {
				return f.unavailable(task, err)
			}
			task.State = TaskRetrying
			backoff := time.Duration(2*task.Attempts) * time.Second
			if serr := f.sleep(ctx, backoff); serr != nil {
				return f.unavailable(task, serr)
			}

		default: // outcomeOther: a single retry after a fixed pause
			if task.Attempts > 1 {
				return f.unavailable(task, err)
			}
			task.State = TaskRetrying
			if serr := f.sleep(ctx, f.cfg.RetryPause); serr != nil {
				return f.unavailable(task, serr)
			}
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, task *FetchTask) (models.CandleSeries, error) {
	fctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()
	return f.exchange.FetchOHLCV(fctx, task.Instrument, task.Timeframe, task.CandleCount)
}

func (f *Fetcher) unavailable(task *FetchTask, err error) *FetchTask {
	task.State = TaskUnavailable
	task.Err = err
	f.metrics.RecordFetch("unavailable", string(task.Timeframe))
	f.log.Debug("timeframe unavailable",
		applogger.String("instrument", task.Instrument),
		applogger.String("timeframe", string(task.Timeframe)),
		applogger.Int("attempts", task.Attempts),
		applogger.Error(err),
	)
	return task
}

type fetchOutcome int

const (
	outcomeOK fetchOutcome = iota
	outcomeEmpty
	outcomeNotFound
	outcomeRateLimited
	outcomeOther
)

func classify(series models.CandleSeries, err error) fetchOutcome {
	switch {
	case err == nil && len(series) > 0:
		return outcomeOK
	case err == nil || exchange.IsEmptyResponse(err):
		return outcomeEmpty
	case exchange.IsSymbolNotFound(err):
		return outcomeNotFound
	case exchange.IsRateLimited(err):
		return outcomeRateLimited
	default:
		return outcomeOther
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
