package usecase

import (
	"context"
	"sync"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	"PairScan/pkg/config"
	applogger "PairScan/pkg/logger"
)

// AcquisitionResult is the outcome of one acquisition rotation.
type AcquisitionResult struct {
	PerInstrument      map[string]map[repository.Timeframe]models.CandleSeries
	AllBatchesComplete bool
}

// ProgressFunc receives (completed, total) instrument counts as a batch runs.
type ProgressFunc func(completed, total int)

// AcquisitionEngine fetches candle history for a rotating batch of approved
// instruments under a bounded concurrency budget. The request semaphore is
// owned by the engine and rebuilt at batch start; workers receive it by
// reference, so no process-global state is involved.
type AcquisitionEngine struct {
	cfg        config.AcquisitionConfig
	fetcher    *Fetcher
	store      repository.CandleStore
	log        *applogger.Logger
	metrics    repository.Metrics
	timeframes []repository.Timeframe

	mu     sync.Mutex
	cursor int

	cancelMu  sync.Mutex
	cancelled bool

	closedMu   sync.RWMutex
	lastClosed map[closedKey]models.Candle

	onProgress ProgressFunc
}

type closedKey struct {
	instrument string
	timeframe  repository.Timeframe
}

// NewAcquisitionEngine creates an acquisition engine over the core timeframes.
func NewAcquisitionEngine(cfg config.AcquisitionConfig, fetcher *Fetcher, store repository.CandleStore, log *applogger.Logger, metrics repository.Metrics) *AcquisitionEngine {
	return &AcquisitionEngine{
		cfg:        cfg,
		fetcher:    fetcher,
		store:      store,
		log:        log,
		metrics:    metrics,
		timeframes: repository.CoreTimeframes,
		lastClosed: make(map[closedKey]models.Candle),
	}
}

// SetProgressFunc installs an optional progress callback.
func (e *AcquisitionEngine) SetProgressFunc(fn ProgressFunc) { e.onProgress = fn }

// RequestCancellation asks the engine to stop after in-flight work completes.
func (e *AcquisitionEngine) RequestCancellation() {
	e.cancelMu.Lock()
	e.cancelled = true
	e.cancelMu.Unlock()
}

// CancellationRequested reports whether a cancellation is pending.
func (e *AcquisitionEngine) CancellationRequested() bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelled
}

// ResetCancellation clears the flag before a new cycle.
func (e *AcquisitionEngine) ResetCancellation() {
	e.cancelMu.Lock()
	e.cancelled = false
	e.cancelMu.Unlock()
}

// LastClosedCandle returns the most recent closed candle seen for the pair,
// for consumers that must not act on an in-progress candle.
func (e *AcquisitionEngine) LastClosedCandle(instrument string, tf repository.Timeframe) (models.Candle, bool) {
	e.closedMu.RLock()
	defer e.closedMu.RUnlock()
	c, ok := e.lastClosed[closedKey{instrument, tf}]
	return c, ok
}

// Run processes the next batch of the rotation. instruments is the full
// approved universe; the engine advances its cursor one batch per call with
// wrap-around, so every instrument is revisited within ceil(N/B) cycles.
func (e *AcquisitionEngine) Run(ctx context.Context, instruments []string) AcquisitionResult {
	result := AcquisitionResult{
		PerInstrument: make(map[string]map[repository.Timeframe]models.CandleSeries),
	}
	if len(instruments) == 0 {
		result.AllBatchesComplete = true
		return result
	}

	batch, allComplete := e.nextBatch(instruments)

	workers := e.workerCount(len(batch))
	sem := make(chan struct{}, workers)

	cycleTimeout := e.cycleTimeout(len(batch))
	ctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	// completion cache: written by workers as each instrument finishes, so a
	// cancellation mid-batch never discards work whose callback already ran
	var compMu sync.Mutex
	completed := make(map[string]map[repository.Timeframe]models.CandleSeries)
	done := 0

	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for instrument := range jobs {
				if e.CancellationRequested() || ctx.Err() != nil {
					continue
				}
				series := e.fetchInstrument(ctx, instrument, sem)
				if len(series) == 0 {
					// zero usable timeframes: dropped this cycle, retried
					// on its next rotation
					e.metrics.RecordError("acquisition_instrument_dropped")
					continue
				}
				e.persist(ctx, instrument, series)
				e.rememberClosed(instrument, series)
				compMu.Lock()
				completed[instrument] = series
				done++
				n := done
				compMu.Unlock()
				if e.onProgress != nil {
					e.onProgress(n, len(batch))
				}
			}
		}()
	}

dispatch:
	for _, instrument := range batch {
		if e.CancellationRequested() {
			break dispatch
		}
		select {
		case jobs <- instrument:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	// drain whatever completed, whether the batch ran to the end or was
	// cut short by cancellation or the cycle timeout
	compMu.Lock()
	for instrument, series := range completed {
		result.PerInstrument[instrument] = series
	}
	compMu.Unlock()

	result.AllBatchesComplete = allComplete
	e.log.Info("acquisition batch done",
		applogger.Int("batch_size", len(batch)),
		applogger.Int("fetched", len(result.PerInstrument)),
		applogger.Int("workers", workers),
		applogger.Bool("rotation_complete", allComplete),
		applogger.Bool("cancelled", e.CancellationRequested()),
	)
	return result
}

// nextBatch slices the current batch and advances the cursor, reporting
// whether this call completes a full rotation.
func (e *AcquisitionEngine) nextBatch(instruments []string) ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	numBatches := (len(instruments) + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	if e.cursor >= numBatches {
		e.cursor = 0
	}
	start := e.cursor * e.cfg.BatchSize
	end := start + e.cfg.BatchSize
	if end > len(instruments) {
		end = len(instruments)
	}
	batch := instruments[start:end]

	e.cursor = (e.cursor + 1) % numBatches
	return batch, e.cursor == 0
}

// workerCount sizes the pool: one worker per instrument for tiny batches,
// otherwise batchSize/3 clamped to [1, MaxWorkers].
func (e *AcquisitionEngine) workerCount(batchLen int) int {
	if e.cfg.BatchSize <= 3 {
		if batchLen < 1 {
			return 1
		}
		return batchLen
	}
	w := e.cfg.BatchSize / 3
	if w < 1 {
		w = 1
	}
	if w > e.cfg.MaxWorkers {
		w = e.cfg.MaxWorkers
	}
	return w
}

func (e *AcquisitionEngine) cycleTimeout(batchLen int) time.Duration {
	budget := time.Duration(len(e.timeframes)*batchLen) * e.cfg.PerFetchBudget
	if budget < e.cfg.MinCycleTimeout {
		return e.cfg.MinCycleTimeout
	}
	return budget
}

// fetchInstrument fans out one fetch task per timeframe. Each remote call
// additionally takes a semaphore slot, which caps simultaneous outbound
// requests regardless of the nested fan-out.
func (e *AcquisitionEngine) fetchInstrument(ctx context.Context, instrument string, sem chan struct{}) map[repository.Timeframe]models.CandleSeries {
	type tfResult struct {
		tf     repository.Timeframe
		series models.CandleSeries
	}

	results := make(chan tfResult, len(e.timeframes))
	var wg sync.WaitGroup
	for _, tf := range e.timeframes {
		wg.Add(1)
		go func(tf repository.Timeframe) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			task := e.fetcher.Run(ctx, &FetchTask{
				Instrument:  instrument,
				Timeframe:   tf,
				CandleCount: e.cfg.CandleCount,
			})
			if task.State == TaskSucceeded {
				results <- tfResult{tf: tf, series: task.Series}
			}
		}(tf)
	}
	wg.Wait()
	close(results)

	series := make(map[repository.Timeframe]models.CandleSeries)
	for r := range results {
		series[r.tf] = r.series
	}
	return series
}

// persist upserts fetched candles immediately so partial progress survives a
// mid-cycle cancellation.
func (e *AcquisitionEngine) persist(ctx context.Context, instrument string, series map[repository.Timeframe]models.CandleSeries) {
	for tf, candles := range series {
		if _, err := e.store.UpsertCandles(ctx, instrument, tf, candles); err != nil {
			e.metrics.RecordError("acquisition_persist")
			e.log.Warn("candle upsert failed",
				applogger.String("instrument", instrument),
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
		}
	}
}

func (e *AcquisitionEngine) rememberClosed(instrument string, series map[repository.Timeframe]models.CandleSeries) {
	e.closedMu.Lock()
	defer e.closedMu.Unlock()
	for tf, candles := range series {
		if c, ok := candles.LastClosed(); ok {
			e.lastClosed[closedKey{instrument, tf}] = c
		}
	}
}
