package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	applogger "PairScan/pkg/logger"
)

// CycleStatus aggregates unit statuses into one per-cycle outcome.
type CycleStatus string

const (
	CycleOK      CycleStatus = "ok"
	CyclePartial CycleStatus = "partial"
	CycleError   CycleStatus = "error"
)

type registered struct {
	unit  Unit
	state State
}

// Orchestrator owns unit lifecycles and runs them once per cycle in
// dependency order, merging ok payloads into a shared cycle context.
// Failures never escape a unit: an error or panic is recorded and the
// remaining units still run.
type Orchestrator struct {
	log *applogger.Logger

	mu    sync.Mutex
	units []*registered
	seq   uint64

	lastMu    sync.RWMutex
	lastCycle *Cycle
	lastState CycleStatus
}

func NewOrchestrator(log *applogger.Logger) *Orchestrator {
	return &Orchestrator{log: log}
}

// Register adds a unit. Registration order is the execution order for units
// without declared dependencies. Duplicate names are rejected.
func (o *Orchestrator) Register(u Unit) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.units {
		if r.unit.Name() == u.Name() {
			return fmt.Errorf("unit already registered: %s", u.Name())
		}
	}
	o.units = append(o.units, &registered{unit: u, state: StateUnregistered})
	return nil
}

// Init initializes every registered unit. A unit that fails to initialize
// stays unregistered and is skipped by RunCycle.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var firstErr error
	for _, r := range o.units {
		if err := o.safeInit(ctx, r.unit); err != nil {
			o.log.Error("unit init failed",
				applogger.String("unit", r.unit.Name()),
				applogger.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("init %s: %w", r.unit.Name(), err)
			}
			continue
		}
		r.state = StateInitialized
	}
	return firstErr
}

// RunCycle executes the initialized units in order and returns the merged
// cycle context plus the aggregated status.
func (o *Orchestrator) RunCycle(ctx context.Context) (*Cycle, CycleStatus) {
	o.mu.Lock()
	o.seq++
	cy := newCycle(o.seq, time.Now().UTC())
	order := o.executionOrder()
	o.mu.Unlock()

	okCount, failCount := 0, 0
	for _, r := range order {
		if ctx.Err() != nil {
			break
		}
		r.state = StateRunning
		res := o.safeExecute(ctx, r.unit, cy)
		r.state = StateInitialized

		switch res.Status {
		case StatusOK:
			okCount++
			cy.put(res)
		case StatusCancelled:
			o.log.Warn("unit cancelled", applogger.String("unit", r.unit.Name()))
			failCount++
		default:
			failCount++
			o.log.Error("unit failed",
				applogger.String("unit", r.unit.Name()),
				applogger.Error(res.Err),
			)
		}
	}

	status := CycleOK
	switch {
	case okCount == 0 && failCount > 0:
		status = CycleError
	case failCount > 0:
		status = CyclePartial
	}

	o.lastMu.Lock()
	o.lastCycle = cy
	o.lastState = status
	o.lastMu.Unlock()

	o.log.Info("cycle done",
		applogger.Uint64("seq", cy.Seq),
		applogger.String("status", string(status)),
		applogger.Int("ok", okCount),
		applogger.Int("failed", failCount),
	)
	return cy, status
}

// LastCycle returns the most recent cycle context and its status.
func (o *Orchestrator) LastCycle() (*Cycle, CycleStatus) {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.lastCycle, o.lastState
}

// RequestCancellation forwards the cancellation request to every unit that
// supports it.
func (o *Orchestrator) RequestCancellation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.units {
		if c, ok := r.unit.(Cancellable); ok {
			c.RequestCancellation()
		}
	}
}

// Shutdown terminates units in reverse registration order.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var firstErr error
	for i := len(o.units) - 1; i >= 0; i-- {
		r := o.units[i]
		if r.state == StateUnregistered || r.state == StateTerminated {
			continue
		}
		if err := r.unit.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown %s: %w", r.unit.Name(), err)
		}
		r.state = StateTerminated
	}
	return firstErr
}

// executionOrder returns the initialized units sorted so declared
// dependencies run first. Units without dependencies keep registration
// order; a dependency on an unknown or later-failing unit is ignored rather
// than treated as an error.
func (o *Orchestrator) executionOrder() []*registered {
	byName := make(map[string]*registered, len(o.units))
	for _, r := range o.units {
		if r.state != StateUnregistered && r.state != StateTerminated {
			byName[r.unit.Name()] = r
		}
	}

	var order []*registered
	placed := make(map[string]bool, len(byName))
	visiting := make(map[string]bool, len(byName))

	var visit func(r *registered)
	visit = func(r *registered) {
		name := r.unit.Name()
		if placed[name] || visiting[name] {
			return
		}
		visiting[name] = true
		if d, ok := r.unit.(Dependent); ok {
			for _, dep := range d.DependsOn() {
				if dr, ok := byName[dep]; ok {
					visit(dr)
				}
			}
		}
		visiting[name] = false
		placed[name] = true
		order = append(order, r)
	}

	for _, r := range o.units {
		if _, ok := byName[r.unit.Name()]; ok {
			visit(r)
		}
	}
	return order
}

func (o *Orchestrator) safeInit(ctx context.Context, u Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panic: %v", r)
		}
	}()
	return u.Init(ctx)
}

func (o *Orchestrator) safeExecute(ctx context.Context, u Unit, cy *Cycle) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Unit:   u.Name(),
				Status: StatusError,
				Err:    fmt.Errorf("unit panic: %v", r),
			}
		}
	}()
	return u.Execute(ctx, cy)
}
