package indicators

import (
	"context"
	"fmt"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	domsvc "PairScan/internal/domain/service"
	imetrics "PairScan/internal/service/metrics"
	"PairScan/pkg/config"
)

// HTTPVerdictProvider fetches indicator verdicts from the external indicator
// service over HTTP.
type HTTPVerdictProvider struct {
	base    *HTTPServiceBase
	retries int
}

func NewHTTPVerdictProvider(cfg *config.Config) *HTTPVerdictProvider {
	retries := cfg.Indicators.Retries
	if retries <= 0 {
		retries = 3
	}
	return &HTTPVerdictProvider{base: NewHTTPServiceBase(cfg), retries: retries}
}

type verdictRequest struct {
	Instrument string                     `json:"instrument"`
	Candles    map[string][]verdictCandle `json:"candles"`
	Indicators []string                   `json:"indicators"`
}

type verdictCandle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

type verdictResponse struct {
	Verdicts map[string]struct {
		Long  bool `json:"long"`
		Short bool `json:"short"`
	} `json:"verdicts"`
}

// Verdicts posts the instrument's closed candles and returns one verdict per
// indicator slot. Only closed candles are sent; an indicator acting on an
// in-progress candle would repaint.
func (p *HTTPVerdictProvider) Verdicts(ctx context.Context, instrument string, candles map[repository.Timeframe]models.CandleSeries) (map[string]models.Verdict, error) {
	req := verdictRequest{
		Instrument: instrument,
		Candles:    make(map[string][]verdictCandle, len(candles)),
		Indicators: models.IndicatorSlots,
	}
	for tf, series := range candles {
		rows := make([]verdictCandle, 0, len(series))
		for _, c := range series {
			if !c.Closed {
				continue
			}
			rows = append(rows, verdictCandle{
				OpenTime: c.OpenTime.Unix(),
				Open:     c.Open,
				High:     c.High,
				Low:      c.Low,
				Close:    c.Close,
				Volume:   c.Volume,
			})
		}
		req.Candles[string(tf)] = rows
	}

	start := time.Now()
	var resp verdictResponse
	err := p.base.PostJSONWithRetry(ctx, "/verdicts/evaluate", req, &resp, p.retries)
	imetrics.IndicatorLatency.WithLabelValues("verdicts").Observe(time.Since(start).Seconds())
	if err != nil {
		imetrics.IndicatorErrors.WithLabelValues("verdicts").Inc()
		return nil, fmt.Errorf("fetch verdicts: %w", err)
	}

	out := make(map[string]models.Verdict, len(resp.Verdicts))
	for name, v := range resp.Verdicts {
		out[name] = models.Verdict{Long: v.Long, Short: v.Short}
	}
	return out, nil
}

var _ domsvc.VerdictProvider = (*HTTPVerdictProvider)(nil)
