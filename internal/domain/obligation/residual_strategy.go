package obligation

import (
	"time"

	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// StrategyName identifies a residual strategy
type StrategyName string

const (
	StrategyDiscard         StrategyName = "DISCARD"
	StrategySpawnObligation StrategyName = "SPAWN_OBLIGATION"
	StrategyDistribute      StrategyName = "DISTRIBUTE"
	StrategyAbateSpecific   StrategyName = "ABATE_SPECIFIC"
)

// IsValid checks if the strategy name is valid
func (n StrategyName) IsValid() bool {
	switch n {
	case StrategyDiscard, StrategySpawnObligation, StrategyDistribute, StrategyAbateSpecific:
		return true
	}
	return false
}

// String returns the string representation of StrategyName
func (n StrategyName) String() string {
	return string(n)
}

// describedStrategy holds a one-line summary of a strategy
type describedStrategy struct {
	description string
}

// Description returns what the strategy does with a residual
func (d describedStrategy) Description() string { return d.description }

// ResidualEffect is what a strategy did besides settling the obligation
type ResidualEffect struct {
	SiblingMutations []*Obligation
	Spawned          []*Obligation
	Unabsorbed       valueobject.Money
}

// ResidualStrategy absorbs the difference between an expected and a settled
// amount. Implementations mutate the obligations they are handed; the engine
// only ever hands them clones.
type ResidualStrategy interface {
	Kind() StrategyName
	Description() string
	Apply(settling *Obligation, outcome Outcome, candidates []*Obligation) (*ResidualEffect, error)
}

// DiscardStrategy writes the residual off on the settled obligation itself
type DiscardStrategy struct {
	describedStrategy
}

// NewDiscardStrategy creates a new DiscardStrategy
func NewDiscardStrategy() *DiscardStrategy {
	return &DiscardStrategy{
		describedStrategy: describedStrategy{"Absorb the difference as a discount or surcharge on the settled obligation"},
	}
}

// Kind returns the strategy name
func (s *DiscardStrategy) Kind() StrategyName { return StrategyDiscard }

// Apply records a shortfall as Discount and a surplus as Surcharge
func (s *DiscardStrategy) Apply(settling *Obligation, outcome Outcome, _ []*Obligation) (*ResidualEffect, error) {
	if err := requireSettleable(settling); err != nil {
		return nil, err
	}
	switch outcome.Kind {
	case OutcomeShortfall:
		settling.Discount = outcome.Diff
	case OutcomeSurplus:
		settling.Surcharge = outcome.Diff
	}
	return &ResidualEffect{}, nil
}

// SpawnObligationStrategy carries a shortfall into a new obligation
type SpawnObligationStrategy struct {
	describedStrategy
	DueDate time.Time
	Memo    string // description of the new obligation; empty keeps the generated one
}

// NewSpawnObligationStrategy creates a new SpawnObligationStrategy
func NewSpawnObligationStrategy(dueDate time.Time, description string) *SpawnObligationStrategy {
	return &SpawnObligationStrategy{
		describedStrategy: describedStrategy{"Carry the shortfall into a new provisioned obligation"},
		DueDate:           dueDate,
		Memo:              description,
	}
}

// Kind returns the strategy name
func (s *SpawnObligationStrategy) Kind() StrategyName { return StrategySpawnObligation }

// Apply creates one provisioned obligation for the shortfall, in the same
// group and for the same counterparty as the settled one
func (s *SpawnObligationStrategy) Apply(settling *Obligation, outcome Outcome, _ []*Obligation) (*ResidualEffect, error) {
	if err := requireSettleable(settling); err != nil {
		return nil, err
	}
	if outcome.Kind != OutcomeShortfall {
		return nil, withObligation(newError(ErrInvalidStrategy, "%s only applies to a shortfall, got %s", StrategySpawnObligation, outcome.Kind), settling.ID)
	}
	if s.DueDate.IsZero() {
		return nil, withObligation(newError(ErrMissingParameter, "%s requires a due date", StrategySpawnObligation), settling.ID)
	}

	header := settling.Header()
	if s.Memo != "" {
		header.Description = s.Memo
	}
	parentID := settling.ID
	spawned := newProvisioned(header, outcome.Diff, s.DueDate, clonePtr(settling.GroupID), &parentID,
		settling.Sequence, settling.SequenceTotal)
	return &ResidualEffect{Spawned: []*Obligation{spawned}}, nil
}

// DistributeStrategy spreads the residual evenly over provisioned siblings
type DistributeStrategy struct {
	describedStrategy
}

// NewDistributeStrategy creates a new DistributeStrategy
func NewDistributeStrategy() *DistributeStrategy {
	return &DistributeStrategy{
		describedStrategy: describedStrategy{"Spread the difference evenly over the counterparty's provisioned obligations"},
	}
}

// Kind returns the strategy name
func (s *DistributeStrategy) Kind() StrategyName { return StrategyDistribute }

// Apply adds a shortfall to, or subtracts a surplus from, every eligible
// sibling. The division remainder goes to the first sibling in the order
// given. A surplus never takes a sibling below zero; whatever could not be
// subtracted is reported as unabsorbed.
func (s *DistributeStrategy) Apply(settling *Obligation, outcome Outcome, candidates []*Obligation) (*ResidualEffect, error) {
	if err := requireSettleable(settling); err != nil {
		return nil, err
	}
	if outcome.IsExact() {
		return &ResidualEffect{}, nil
	}

	siblings := eligibleSiblings(settling, candidates)
	if len(siblings) == 0 {
		return nil, withObligation(newError(ErrNoCandidates, "No provisioned obligations of counterparty %s to distribute over", settling.CounterpartyID), settling.ID)
	}

	per, remainder, err := outcome.Diff.DivideEvenly(len(siblings))
	if err != nil {
		return nil, err
	}

	effect := &ResidualEffect{}
	for i, sibling := range siblings {
		share := per
		if i == 0 {
			share = share.Add(remainder)
		}
		if share.IsZero() {
			continue
		}

		var next valueobject.Money
		if outcome.Kind == OutcomeShortfall {
			next = sibling.ExpectedAmount.Add(share)
		} else {
			reduced := sibling.ExpectedAmount.Subtract(share)
			if reduced.IsNegative() {
				effect.Unabsorbed = effect.Unabsorbed.Add(reduced.Abs())
			}
			next = reduced.FloorZero()
		}
		if next.Equals(sibling.ExpectedAmount) {
			continue
		}
		if err := sibling.adjustExpected(next, settling, StrategyDistribute); err != nil {
			return nil, err
		}
		effect.SiblingMutations = append(effect.SiblingMutations, sibling)
	}
	return effect, nil
}

// AbateSpecificStrategy subtracts a surplus from one named sibling
type AbateSpecificStrategy struct {
	describedStrategy
	TargetID uuid.UUID
}

// NewAbateSpecificStrategy creates a new AbateSpecificStrategy
func NewAbateSpecificStrategy(targetID uuid.UUID) *AbateSpecificStrategy {
	return &AbateSpecificStrategy{
		describedStrategy: describedStrategy{"Reduce one chosen provisioned obligation by the surplus"},
		TargetID:          targetID,
	}
}

// Kind returns the strategy name
func (s *AbateSpecificStrategy) Kind() StrategyName { return StrategyAbateSpecific }

// Apply reduces the target by the surplus, never below zero
func (s *AbateSpecificStrategy) Apply(settling *Obligation, outcome Outcome, candidates []*Obligation) (*ResidualEffect, error) {
	if err := requireSettleable(settling); err != nil {
		return nil, err
	}
	if outcome.Kind != OutcomeSurplus {
		return nil, withObligation(newError(ErrInvalidStrategy, "%s only applies to a surplus, got %s", StrategyAbateSpecific, outcome.Kind), settling.ID)
	}
	if s.TargetID == uuid.Nil {
		return nil, withObligation(newError(ErrMissingParameter, "%s requires a target obligation", StrategyAbateSpecific), settling.ID)
	}

	var target *Obligation
	for _, c := range candidates {
		if c != nil && c.ID == s.TargetID {
			target = c
			break
		}
	}
	if target == nil {
		return nil, withObligation(newError(ErrTargetNotFound, "Obligation %s is not among the candidates", s.TargetID), settling.ID).
			With("target_id", s.TargetID.String())
	}
	if !target.IsSiblingOf(settling) {
		return nil, withObligation(newError(ErrInvalidState, "Obligation %s cannot absorb the surplus (status %s)", target.ID, target.Status), settling.ID).
			With("target_id", target.ID.String())
	}

	effect := &ResidualEffect{}
	reduced := target.ExpectedAmount.Subtract(outcome.Diff)
	if reduced.IsNegative() {
		effect.Unabsorbed = reduced.Abs()
	}
	if err := target.adjustExpected(reduced.FloorZero(), settling, StrategyAbateSpecific); err != nil {
		return nil, err
	}
	effect.SiblingMutations = []*Obligation{target}
	return effect, nil
}

func eligibleSiblings(settling *Obligation, candidates []*Obligation) []*Obligation {
	eligible := make([]*Obligation, 0, len(candidates))
	for _, c := range candidates {
		if c != nil && c.IsSiblingOf(settling) {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

// ResidualDecision is the caller's choice of strategy plus its parameters
type ResidualDecision struct {
	Strategy    StrategyName `json:"strategy"`
	DueDate     *time.Time   `json:"due_date,omitempty"`    // SPAWN_OBLIGATION
	TargetID    *uuid.UUID   `json:"target_id,omitempty"`   // ABATE_SPECIFIC
	Description string       `json:"description,omitempty"` // SPAWN_OBLIGATION, optional
}

// ResidualStrategyFactory builds strategies from decisions
type ResidualStrategyFactory struct{}

// NewResidualStrategyFactory creates a new ResidualStrategyFactory
func NewResidualStrategyFactory() *ResidualStrategyFactory {
	return &ResidualStrategyFactory{}
}

// Create returns the strategy the decision names. Missing parameters are
// reported as MISSING_PARAMETER.
func (f *ResidualStrategyFactory) Create(decision ResidualDecision) (ResidualStrategy, error) {
	switch decision.Strategy {
	case StrategyDiscard:
		return NewDiscardStrategy(), nil
	case StrategySpawnObligation:
		if decision.DueDate == nil || decision.DueDate.IsZero() {
			return nil, newError(ErrMissingParameter, "%s requires a due date", StrategySpawnObligation)
		}
		return NewSpawnObligationStrategy(*decision.DueDate, decision.Description), nil
	case StrategyDistribute:
		return NewDistributeStrategy(), nil
	case StrategyAbateSpecific:
		if decision.TargetID == nil || *decision.TargetID == uuid.Nil {
			return nil, newError(ErrMissingParameter, "%s requires a target obligation", StrategyAbateSpecific)
		}
		return NewAbateSpecificStrategy(*decision.TargetID), nil
	}
	return nil, newError(ErrInvalidStrategy, "Unknown residual strategy %q", decision.Strategy)
}

// Names returns every strategy the factory can build
func (f *ResidualStrategyFactory) Names() []StrategyName {
	return []StrategyName{StrategyDiscard, StrategySpawnObligation, StrategyDistribute, StrategyAbateSpecific}
}
