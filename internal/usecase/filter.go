package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	"PairScan/internal/exchange/bybit"
	icache "PairScan/internal/service/cache"
	"PairScan/pkg/config"
	applogger "PairScan/pkg/logger"
)

// FilterEngine reduces the instrument universe to an approved subset through
// four cascading layers with per-symbol history. It fails softly: any
// internal error yields an empty approved list plus an error status, never a
// panic past Run.
type FilterEngine struct {
	cfg      config.FilterConfig
	exchange repository.Exchange
	store    repository.CandleStore
	reports  repository.ReportStore
	log      *applogger.Logger
	metrics  repository.Metrics

	resultCache *icache.ResultCache
	volumes     *icache.VolumeCache
	maturity    *icache.MaturityCache

	histMu  sync.Mutex
	history map[string]*models.SymbolHistory

	// fallbackUniverse is used when the exchange collaborator is unreachable
	// so one bad cycle does not stall the whole pipeline.
	fallbackUniverse []string

	now func() time.Time
}

// NewFilterEngine creates a filter engine with fresh caches and history.
func NewFilterEngine(cfg config.FilterConfig, ex repository.Exchange, store repository.CandleStore, reports repository.ReportStore, log *applogger.Logger, metrics repository.Metrics) *FilterEngine {
	return &FilterEngine{
		cfg:         cfg,
		exchange:    ex,
		store:       store,
		reports:     reports,
		log:         log,
		metrics:     metrics,
		resultCache: icache.NewResultCache(cfg.ResultTTL),
		volumes:     icache.NewVolumeCache(),
		maturity:    icache.NewMaturityCache(cfg.MaturityTTL),
		history:     make(map[string]*models.SymbolHistory),
		now:         time.Now,
	}
}

// SetFallbackUniverse installs the static instrument list used when tickers
// cannot be fetched at all.
func (e *FilterEngine) SetFallbackUniverse(instruments []string) {
	e.fallbackUniverse = instruments
}

// RefreshVolume feeds a live ticker update into the volume cache.
func (e *FilterEngine) RefreshVolume(t models.Ticker) {
	e.volumes.Set(bybit.NormalizeSymbol(t.Symbol), t.QuoteVolume24h)
}

// History returns the symbol history entry, creating it on first observation.
func (e *FilterEngine) History(instrument string) *models.SymbolHistory {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	h, ok := e.history[instrument]
	if !ok {
		h = &models.SymbolHistory{}
		e.history[instrument] = h
	}
	return h
}

// Run executes the filter pipeline. The cached outcome is served within its
// TTL unless forceRefresh is set; downstream acquisition calls this every few
// seconds and recomputing would burn the API budget.
func (e *FilterEngine) Run(ctx context.Context, forceRefresh bool) (outcome models.FilterOutcome) {
	if !forceRefresh {
		if cached, ok := e.resultCache.Get(); ok {
			out := *cached
			out.FromCache = true
			return out
		}
	}

	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordError("filter_panic")
			outcome = models.FilterOutcome{
				ComputedAt: e.now().UTC(),
				Err:        fmt.Errorf("filter pipeline: %v", r),
			}
		}
	}()

	start := e.now()
	universe, volumes, err := e.buildUniverse(ctx)
	if err != nil {
		e.metrics.RecordError("filter_universe")
		return models.FilterOutcome{ComputedAt: start.UTC(), Err: err}
	}

	decisions := make(map[string]*models.FilterDecision, len(universe))
	for _, sym := range universe {
		decisions[sym] = &models.FilterDecision{Instrument: sym, Layer: models.LayerNone}
	}

	// fail open when no volume data exists at all: an exchange hiccup must
	// not empty the pipeline
	if len(volumes) == 0 {
		e.log.Warn("no volume data, failing open", applogger.Int("universe", len(universe)))
		out := e.finish(ctx, universe, universe, decisions, start)
		return out
	}

	survivors := e.layerLiquidity(universe, volumes, decisions)
	survivors = e.layerMaturity(ctx, survivors, decisions)
	survivors = e.layerActivity(ctx, survivors, decisions)
	survivors = e.layerIntegrity(ctx, survivors, decisions)

	return e.finish(ctx, universe, survivors, decisions, start)
}

// buildUniverse lists candidate instruments and gathers their 24h volumes,
// cache-first with the remote lookup capped per call.
func (e *FilterEngine) buildUniverse(ctx context.Context) ([]string, map[string]float64, error) {
	volumes := make(map[string]float64)

	tickers, err := e.exchange.FetchTickers(ctx)
	if err != nil || len(tickers) == 0 {
		if len(e.fallbackUniverse) == 0 {
			return nil, nil, fmt.Errorf("fetch tickers: %w", err)
		}
		e.log.Warn("tickers unavailable, using fallback universe", applogger.Error(err))
		for _, sym := range e.fallbackUniverse {
			if v, ok := e.volumes.Get(bybit.NormalizeSymbol(sym)); ok {
				volumes[sym] = v
			}
		}
		return append([]string(nil), e.fallbackUniverse...), volumes, nil
	}

	universe := make([]string, 0, len(tickers))
	for sym := range tickers {
		universe = append(universe, sym)
	}
	sort.Strings(universe)

	// cache-first; resolve misses from the response in bounded chunks
	var misses []string
	for _, sym := range universe {
		if v, ok := e.volumes.Get(bybit.NormalizeSymbol(sym)); ok {
			volumes[sym] = v
		} else {
			misses = append(misses, sym)
		}
	}
	for len(misses) > 0 {
		n := e.cfg.VolumeBatchSize
		if n > len(misses) {
			n = len(misses)
		}
		chunk := misses[:n]
		misses = misses[n:]
		for _, sym := range chunk {
			if key, ok := bybit.MatchSymbol(sym, tickers); ok {
				v := tickers[key].QuoteVolume24h
				volumes[sym] = v
				e.volumes.Set(bybit.NormalizeSymbol(sym), v)
			}
		}
	}

	// pre-prune oversized universes to the top-N by volume before the
	// layers run
	if len(universe) > e.cfg.MaxUniverse {
		sort.SliceStable(universe, func(i, j int) bool {
			return volumes[universe[i]] > volumes[universe[j]]
		})
		universe = universe[:e.cfg.MaxUniverse]
		sort.Strings(universe)
	}
	return universe, volumes, nil
}

// layerLiquidity approves instruments whose 24h volume is at or above the
// cycle median. Equality passes.
func (e *FilterEngine) layerLiquidity(universe []string, volumes map[string]float64, decisions map[string]*models.FilterDecision) []string {
	vals := make([]float64, 0, len(volumes))
	for _, sym := range universe {
		if v, ok := volumes[sym]; ok {
			vals = append(vals, v)
		}
	}
	med := median(vals)

	var survivors []string
	for _, sym := range universe {
		d := decisions[sym]
		v, ok := volumes[sym]
		d.Volume24h = v
		if !ok || v < med {
			d.Layer = models.LayerLiquidity
			d.Reason = fmt.Sprintf("volume %.0f below median %.0f", v, med)
			e.metrics.RecordRejection(string(models.LayerLiquidity))
			continue
		}
		survivors = append(survivors, sym)
	}
	return survivors
}

// layerMaturity rejects instruments younger than the minimum age, but only
// when the age estimate is trustworthy. An API-derived sample never rejects
// since it may undercount the true age; an unknown age (0) approves, the
// instrument is assumed to predate stored history.
func (e *FilterEngine) layerMaturity(ctx context.Context, survivors []string, decisions map[string]*models.FilterDecision) []string {
	var out []string
	for _, sym := range survivors {
		d := decisions[sym]
		info := e.instrumentAge(ctx, sym)
		d.AgeDays = info.AgeDays
		d.TrustedAge = info.Trustworthy

		if info.AgeDays != 0 && info.AgeDays < e.cfg.MinAgeDays && info.Trustworthy {
			d.Layer = models.LayerMaturity
			d.Reason = fmt.Sprintf("age %dd below minimum %dd", info.AgeDays, e.cfg.MinAgeDays)
			e.metrics.RecordRejection(string(models.LayerMaturity))
			continue
		}
		out = append(out, sym)
	}
	return out
}

func (e *FilterEngine) instrumentAge(ctx context.Context, sym string) models.MaturityInfo {
	if info, ok := e.maturity.Get(sym); ok {
		return info
	}

	if earliest, ok, err := e.store.EarliestOpenTime(ctx, sym); err == nil && ok {
		info := models.MaturityInfo{
			AgeDays:     int(e.now().Sub(earliest).Hours() / 24),
			Trustworthy: true,
		}
		e.maturity.Set(sym, info)
		return info
	}

	// API sample across timeframes until a non-empty series appears; the
	// exchange returns the most recent N candles, so this only bounds the
	// age from below
	for _, tf := range repository.MaturitySampleOrder {
		series, err := e.exchange.FetchOHLCV(ctx, sym, tf, 1000)
		if err != nil || len(series) == 0 {
			continue
		}
		info := models.MaturityInfo{
			AgeDays:     int(e.now().Sub(series[0].OpenTime).Hours() / 24),
			Trustworthy: false,
		}
		e.maturity.Set(sym, info)
		return info
	}

	info := models.MaturityInfo{}
	e.maturity.Set(sym, info)
	return info
}

// layerActivity approves instruments whose recent candles are mostly traded:
// both the 15m and 1h nonzero-volume fractions must reach the threshold.
func (e *FilterEngine) layerActivity(ctx context.Context, survivors []string, decisions map[string]*models.FilterDecision) []string {
	var out []string
	for _, sym := range survivors {
		d := decisions[sym]
		frac15, ok15 := e.activityFraction(ctx, sym, repository.TF15m, e.cfg.Window15m, e.cfg.MinSample15m)
		frac1h, ok1h := e.activityFraction(ctx, sym, repository.TF1h, e.cfg.Window1h, e.cfg.MinSample1h)
		d.Activity15m = frac15
		d.Activity1h = frac1h

		// no sufficient sample on either timeframe: skip the judgment
		// rather than reject on missing data
		if !ok15 && !ok1h {
			out = append(out, sym)
			continue
		}
		if (ok15 && frac15 < e.cfg.ActivityThreshold) || (ok1h && frac1h < e.cfg.ActivityThreshold) {
			d.Layer = models.LayerActivity
			d.Reason = fmt.Sprintf("activity 15m=%.2f 1h=%.2f below %.2f", frac15, frac1h, e.cfg.ActivityThreshold)
			e.metrics.RecordRejection(string(models.LayerActivity))
			continue
		}
		out = append(out, sym)
	}
	return out
}

// activityFraction returns the nonzero-volume fraction over the last window
// candles, persistence-first with API fallback, and whether the sample was
// large enough to judge.
func (e *FilterEngine) activityFraction(ctx context.Context, sym string, tf repository.Timeframe, window, minSample int) (float64, bool) {
	series, err := e.store.RecentCandles(ctx, sym, tf, window)
	if err != nil || len(series) < minSample {
		if api, aerr := e.exchange.FetchOHLCV(ctx, sym, tf, window); aerr == nil && len(api) > len(series) {
			series = api
		}
	}
	if len(series) < minSample {
		return 0, false
	}
	return series.NonZeroVolumeFraction(), true
}

// layerIntegrity rejects instruments with holes in their stored history, an
// active block, or a high historical fail rate.
func (e *FilterEngine) layerIntegrity(ctx context.Context, survivors []string, decisions map[string]*models.FilterDecision) []string {
	var out []string
	for _, sym := range survivors {
		d := decisions[sym]
		h := e.History(sym)
		d.FailRate = h.FailRate()

		if tf, empty := e.emptyCoreTimeframe(ctx, sym); empty {
			h.BlockedCyclesRemaining = e.cfg.IntegrityBlockCycles
			h.EmptyTimeframeEvents++
			d.Layer = models.LayerIntegrity
			d.Reason = fmt.Sprintf("no stored candles for %s, blocked %d cycles", tf, e.cfg.IntegrityBlockCycles)
			e.metrics.RecordRejection(string(models.LayerIntegrity))
			continue
		}
		if h.Blocked() {
			h.BlockedCyclesRemaining--
			d.Layer = models.LayerIntegrity
			d.Reason = fmt.Sprintf("blocked, %d cycles remaining", h.BlockedCyclesRemaining)
			e.metrics.RecordRejection(string(models.LayerIntegrity))
			continue
		}
		if h.Successes+h.Failures >= 1 && h.FailRate() >= e.cfg.FailRateLimit {
			d.Layer = models.LayerIntegrity
			d.Reason = fmt.Sprintf("fail rate %.2f over limit %.2f", h.FailRate(), e.cfg.FailRateLimit)
			e.metrics.RecordRejection(string(models.LayerIntegrity))
			continue
		}
		out = append(out, sym)
	}
	return out
}

func (e *FilterEngine) emptyCoreTimeframe(ctx context.Context, sym string) (repository.Timeframe, bool) {
	for _, tf := range repository.CoreTimeframes {
		n, err := e.store.CountCandles(ctx, sym, tf)
		if err == nil && n == 0 {
			return tf, true
		}
	}
	return "", false
}

// finish marks approvals, updates history, persists the report and caches
// the outcome.
func (e *FilterEngine) finish(ctx context.Context, universe, approved []string, decisions map[string]*models.FilterDecision, start time.Time) models.FilterOutcome {
	approvedSet := make(map[string]bool, len(approved))
	for _, sym := range approved {
		approvedSet[sym] = true
	}

	report := make([]models.FilterDecision, 0, len(universe))
	rejected := 0
	for _, sym := range universe {
		d := decisions[sym]
		h := e.History(sym)
		if approvedSet[sym] {
			d.Approved = true
			d.Layer = models.LayerNone
			d.Reason = "approved"
			h.Successes++
		} else {
			h.Failures++
			rejected++
		}
		d.FailRate = h.FailRate()
		report = append(report, *d)
	}

	if e.reports != nil {
		if err := e.reports.SaveReport(ctx, report); err != nil {
			e.metrics.RecordError("filter_report_save")
			e.log.Warn("report save failed", applogger.Error(err))
		}
	}

	outcome := models.FilterOutcome{
		Approved:   approved,
		Report:     report,
		ComputedAt: e.now().UTC(),
	}
	e.resultCache.Set(&outcome)

	e.metrics.RecordApprovedInstruments(len(approved))
	e.metrics.RecordLatency("filter_run", e.now().Sub(start).Seconds())
	e.log.Info("filter cycle done",
		applogger.Int("universe", len(universe)),
		applogger.Int("approved", len(approved)),
		applogger.Int("rejected", rejected),
	)
	return outcome
}

// median returns the midpoint value: the middle element for odd counts, the
// mean of the two middle elements for even counts.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
