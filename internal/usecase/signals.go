package usecase

import (
	"context"
	"sync"
	"time"

	"PairScan/internal/domain/models"
	domrepo "PairScan/internal/domain/repository"
)

// SignalsUseCase evaluates consensus for a set of instruments and publishes
// the valid signals.
type SignalsUseCase struct {
	registry *VerdictRegistry
	agg      *ConsensusAggregator
	pub      domrepo.SignalPublisher
	metrics  domrepo.Metrics
	timeout  time.Duration
}

func NewSignalsUseCase(registry *VerdictRegistry, agg *ConsensusAggregator, pub domrepo.SignalPublisher, metrics domrepo.Metrics) *SignalsUseCase {
	return &SignalsUseCase{registry: registry, agg: agg, pub: pub, metrics: metrics, timeout: 10 * time.Second}
}

// EvaluateAll runs consensus over every instrument with recorded verdicts.
// Valid signals are published and their verdicts cleared so the same votes
// are not re-emitted next cycle.
func (uc *SignalsUseCase) EvaluateAll(ctx context.Context, instruments []string) []models.ConsensusResult {
	if len(instruments) == 0 {
		instruments = uc.registry.Instruments()
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	ch := make(chan models.ConsensusResult, len(instruments))
	var wg sync.WaitGroup
	for _, sym := range instruments {
		verdicts := uc.registry.Snapshot(sym)
		if verdicts == nil {
			continue
		}
		wg.Add(1)
		go func(sym string, verdicts map[string]models.Verdict) {
			defer wg.Done()
			ch <- uc.agg.Evaluate(verdicts, sym)
		}(sym, verdicts)
	}
	go func() { wg.Wait(); close(ch) }()

	var results []models.ConsensusResult
	for res := range ch {
		if res.Valid {
			uc.metrics.RecordSignal(string(res.Direction))
			if uc.pub != nil {
				if err := uc.pub.Publish(ctx, res); err != nil {
					uc.metrics.RecordError("signal_publish")
				} else {
					uc.registry.Clear(res.Instrument)
				}
			}
		}
		results = append(results, res)
	}
	return results
}

// Evaluate runs consensus for a single instrument without publishing.
func (uc *SignalsUseCase) Evaluate(instrument string) models.ConsensusResult {
	verdicts := uc.registry.Snapshot(instrument)
	if verdicts == nil {
		verdicts = map[string]models.Verdict{}
	}
	return uc.agg.Evaluate(verdicts, instrument)
}
