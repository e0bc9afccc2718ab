package plugin

import (
	"context"
	"errors"
	"fmt"

	domsvc "PairScan/internal/domain/service"
	"PairScan/internal/usecase"
)

// FilterUnit runs the dynamic filter and publishes the approved list into
// the cycle context.
type FilterUnit struct {
	engine       *usecase.FilterEngine
	forceRefresh bool
}

func NewFilterUnit(engine *usecase.FilterEngine) *FilterUnit {
	return &FilterUnit{engine: engine}
}

func (u *FilterUnit) Name() string { return "filter" }

func (u *FilterUnit) Init(ctx context.Context) error {
	if u.engine == nil {
		return errors.New("filter engine missing")
	}
	return nil
}

// ForceRefresh makes the next execution bypass the result cache.
func (u *FilterUnit) ForceRefresh() { u.forceRefresh = true }

func (u *FilterUnit) Execute(ctx context.Context, cy *Cycle) Result {
	force := u.forceRefresh
	u.forceRefresh = false

	outcome := u.engine.Run(ctx, force)
	if outcome.Err != nil {
		return Result{Unit: u.Name(), Status: StatusError, Err: outcome.Err}
	}
	return Result{Unit: u.Name(), Status: StatusOK, Filter: &outcome}
}

func (u *FilterUnit) Shutdown(ctx context.Context) error { return nil }

// AcquisitionUnit fetches candles for the current rotation batch of the
// approved instruments.
type AcquisitionUnit struct {
	engine   *usecase.AcquisitionEngine
	fallback []string
}

func NewAcquisitionUnit(engine *usecase.AcquisitionEngine, fallback []string) *AcquisitionUnit {
	return &AcquisitionUnit{engine: engine, fallback: fallback}
}

func (u *AcquisitionUnit) Name() string { return "acquisition" }

func (u *AcquisitionUnit) DependsOn() []string { return []string{"filter"} }

func (u *AcquisitionUnit) RequestCancellation() { u.engine.RequestCancellation() }
func (u *AcquisitionUnit) CancellationRequested() bool {
	return u.engine.CancellationRequested()
}

func (u *AcquisitionUnit) Init(ctx context.Context) error {
	if u.engine == nil {
		return errors.New("acquisition engine missing")
	}
	return nil
}

func (u *AcquisitionUnit) Execute(ctx context.Context, cy *Cycle) Result {
	instruments := cy.ApprovedInstruments()
	if len(instruments) == 0 {
		// no filter result merged this cycle; fall back to the static list
		// instead of idling
		instruments = u.fallback
	}
	if len(instruments) == 0 {
		return Result{Unit: u.Name(), Status: StatusError, Err: errors.New("no instruments to acquire")}
	}

	res := u.engine.Run(ctx, instruments)
	if u.engine.CancellationRequested() {
		return Result{Unit: u.Name(), Status: StatusCancelled, Candles: &res}
	}
	return Result{Unit: u.Name(), Status: StatusOK, Candles: &res}
}

func (u *AcquisitionUnit) Shutdown(ctx context.Context) error { return nil }

// IndicatorsUnit asks the external indicator service for per-indicator
// verdicts on the candles acquired this cycle and records them into the
// registry for the consensus unit.
type IndicatorsUnit struct {
	provider domsvc.VerdictProvider
	registry *usecase.VerdictRegistry
}

func NewIndicatorsUnit(provider domsvc.VerdictProvider, registry *usecase.VerdictRegistry) *IndicatorsUnit {
	return &IndicatorsUnit{provider: provider, registry: registry}
}

func (u *IndicatorsUnit) Name() string { return "indicators" }

func (u *IndicatorsUnit) DependsOn() []string { return []string{"acquisition"} }

func (u *IndicatorsUnit) Init(ctx context.Context) error {
	if u.provider == nil {
		return errors.New("verdict provider missing")
	}
	return nil
}

func (u *IndicatorsUnit) Execute(ctx context.Context, cy *Cycle) Result {
	data := cy.CandleData()
	if data == nil || len(data.PerInstrument) == 0 {
		return Result{Unit: u.Name(), Status: StatusOK}
	}

	failed := 0
	for sym, series := range data.PerInstrument {
		verdicts, err := u.provider.Verdicts(ctx, sym, series)
		if err != nil {
			failed++
			continue
		}
		u.registry.RecordAll(sym, verdicts)
	}
	if failed == len(data.PerInstrument) {
		return Result{
			Unit:   u.Name(),
			Status: StatusError,
			Err:    fmt.Errorf("verdicts failed for all %d instruments", failed),
		}
	}
	return Result{Unit: u.Name(), Status: StatusOK}
}

func (u *IndicatorsUnit) Shutdown(ctx context.Context) error { return nil }

// ConsensusUnit evaluates indicator consensus for the instruments acquired
// this cycle and publishes valid signals.
type ConsensusUnit struct {
	signals *usecase.SignalsUseCase
}

func NewConsensusUnit(signals *usecase.SignalsUseCase) *ConsensusUnit {
	return &ConsensusUnit{signals: signals}
}

func (u *ConsensusUnit) Name() string { return "consensus" }

func (u *ConsensusUnit) DependsOn() []string { return []string{"acquisition", "indicators"} }

func (u *ConsensusUnit) Init(ctx context.Context) error {
	if u.signals == nil {
		return errors.New("signals use case missing")
	}
	return nil
}

func (u *ConsensusUnit) Execute(ctx context.Context, cy *Cycle) Result {
	var instruments []string
	if data := cy.CandleData(); data != nil {
		for sym := range data.PerInstrument {
			instruments = append(instruments, sym)
		}
	}
	results := u.signals.EvaluateAll(ctx, instruments)
	return Result{Unit: u.Name(), Status: StatusOK, Signals: results}
}

func (u *ConsensusUnit) Shutdown(ctx context.Context) error { return nil }
