package obligation

import (
	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
)

// Engine reconciles settlements against obligations. It is a pure domain
// service: it never touches storage and never mutates its inputs. Callers
// persist the returned batch atomically and serialize calls per counterparty.
type Engine struct {
	machine StatusMachine
}

// EngineOption is a functional option for configuring Engine
type EngineOption func(*Engine)

// WithStatusMachine replaces the transition table used when settling
func WithStatusMachine(m StatusMachine) EngineOption {
	return func(e *Engine) {
		e.machine = m
	}
}

// NewEngine creates a new reconciliation engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{machine: defaultStatusMachine}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReconciliationResult holds every mutation one settlement produces
type ReconciliationResult struct {
	Settled          *Obligation       // The settled obligation, now SETTLED
	SiblingMutations []*Obligation     // Siblings whose expected amount changed
	Spawned          []*Obligation     // New obligations created for the residual
	Outcome          Outcome           // Classification of the settlement
	Strategy         StrategyName      // Empty for an exact settlement
	Unabsorbed       valueobject.Money // Surplus left over after the zero floor
}

// Batch returns every obligation to persist, settled one first
func (r *ReconciliationResult) Batch() []*Obligation {
	batch := make([]*Obligation, 0, 1+len(r.SiblingMutations)+len(r.Spawned))
	batch = append(batch, r.Settled)
	batch = append(batch, r.SiblingMutations...)
	batch = append(batch, r.Spawned...)
	return batch
}

// Events returns the pending domain events of every obligation in the batch
func (r *ReconciliationResult) Events() []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, o := range r.Batch() {
		events = append(events, o.GetDomainEvents()...)
	}
	return events
}

// Reconcile classifies the settlement, applies the strategy to absorb any
// difference, and settles the obligation. An exact settlement needs no
// strategy. On error no result is returned.
func (e *Engine) Reconcile(o *Obligation, event SettlementEvent, residual ResidualStrategy, candidates []*Obligation) (*ReconciliationResult, error) {
	if o == nil {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "Obligation cannot be nil")
	}
	if err := event.ValidateFor(o); err != nil {
		return nil, err
	}
	if err := requireSettleable(o); err != nil {
		return nil, err
	}

	settling := o.Clone()
	settling.ClearDomainEvents()
	outcome := Classify(settling, event)

	result := &ReconciliationResult{
		Settled: settling,
		Outcome: outcome,
	}

	if !outcome.IsExact() {
		if residual == nil {
			return nil, withObligation(newError(ErrMissingParameter, "A residual strategy is required for a %s of %s", outcome.Kind, outcome.Diff), o.ID)
		}
		siblings := make([]*Obligation, 0, len(candidates))
		for _, c := range candidates {
			if c == nil {
				continue
			}
			clone := c.Clone()
			clone.ClearDomainEvents()
			siblings = append(siblings, clone)
		}

		effect, err := residual.Apply(settling, outcome, siblings)
		if err != nil {
			return nil, err
		}
		result.Strategy = residual.Kind()
		result.SiblingMutations = effect.SiblingMutations
		result.Spawned = effect.Spawned
		result.Unabsorbed = effect.Unabsorbed
	}

	if err := settling.settle(e.machine, event); err != nil {
		return nil, err
	}
	return result, nil
}

// Preview runs the same computation as Reconcile without events, for
// confirmation screens. Nothing it returns should be persisted.
func (e *Engine) Preview(o *Obligation, event SettlementEvent, residual ResidualStrategy, candidates []*Obligation) (*ReconciliationResult, error) {
	result, err := e.Reconcile(o, event, residual, candidates)
	if err != nil {
		return nil, err
	}
	for _, ob := range result.Batch() {
		ob.ClearDomainEvents()
	}
	return result, nil
}
