package plugin

import (
	"context"
	"sync"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/usecase"
)

// Status is a unit's outcome for one cycle.
type Status string

const (
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// State is a unit's lifecycle position, owned by the orchestrator.
type State int

const (
	StateUnregistered State = iota
	StateInitialized
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unregistered"
	}
}

// Result is a tagged union of unit payloads. Exactly one payload field is
// set per unit kind, so the orchestrator's merge step is type-checked
// instead of keyed by string.
type Result struct {
	Unit    string
	Status  Status
	Err     error
	Filter  *models.FilterOutcome
	Candles *usecase.AcquisitionResult
	Signals []models.ConsensusResult
}

// Unit is a processing unit the orchestrator sequences. Execute must never
// panic past its own boundary; the orchestrator still guards with recover.
type Unit interface {
	Name() string
	Init(ctx context.Context) error
	Execute(ctx context.Context, cy *Cycle) Result
	Shutdown(ctx context.Context) error
}

// Cancellable is implemented by units that support cooperative cancellation.
type Cancellable interface {
	RequestCancellation()
	CancellationRequested() bool
}

// Dependent declares unit names that must run earlier in the cycle. Units
// without declared dependencies run in registration order.
type Dependent interface {
	DependsOn() []string
}

// Cycle is the shared working context one orchestrator pass threads through
// its units. Only ok results are merged in.
type Cycle struct {
	Seq       uint64
	StartedAt time.Time

	mu      sync.RWMutex
	results map[string]Result
}

func newCycle(seq uint64, at time.Time) *Cycle {
	return &Cycle{Seq: seq, StartedAt: at, results: make(map[string]Result)}
}

func (c *Cycle) put(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.Unit] = r
}

// Result returns the merged result of a named unit, if it ran ok.
func (c *Cycle) Result(unit string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[unit]
	return r, ok
}

// ApprovedInstruments returns the filter unit's approved list, or nil when
// no filter result was merged this cycle.
func (c *Cycle) ApprovedInstruments() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.results {
		if r.Filter != nil {
			return r.Filter.Approved
		}
	}
	return nil
}

// CandleData returns the acquisition unit's per-instrument series, or nil.
func (c *Cycle) CandleData() *usecase.AcquisitionResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.results {
		if r.Candles != nil {
			return r.Candles
		}
	}
	return nil
}

// Signals returns the consensus results merged this cycle, or nil.
func (c *Cycle) Signals() []models.ConsensusResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.results {
		if r.Signals != nil {
			return r.Signals
		}
	}
	return nil
}
