package obligation

import (
	"time"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// OutcomeKind classifies a settlement against the expected amount
type OutcomeKind string

const (
	OutcomeExact     OutcomeKind = "EXACT"
	OutcomeShortfall OutcomeKind = "SHORTFALL" // Settled less than expected
	OutcomeSurplus   OutcomeKind = "SURPLUS"   // Settled more than expected
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome is the result of classifying a settlement. Diff is always
// non-negative.
type Outcome struct {
	Kind OutcomeKind       `json:"kind"`
	Diff valueobject.Money `json:"diff"`
}

// IsExact returns true when the settlement matched the expected amount
func (o Outcome) IsExact() bool {
	return o.Kind == OutcomeExact
}

// SettlementEvent is an actual payment or receipt submitted against an
// obligation
type SettlementEvent struct {
	ObligationID uuid.UUID         `json:"obligation_id"`
	Amount       valueobject.Money `json:"amount"`
	Date         time.Time         `json:"date"`
	AccountRef   string            `json:"account_ref"`
}

// ValidateFor checks the event can settle the given obligation
func (e SettlementEvent) ValidateFor(o *Obligation) error {
	if e.ObligationID != o.ID {
		return withObligation(shared.NewDomainError(shared.ErrInvalidInput.Code, "Settlement event refers to a different obligation"), o.ID).
			With("event_obligation_id", e.ObligationID.String())
	}
	if !e.Amount.IsPositive() {
		return withObligation(shared.NewDomainError(shared.ErrInvalidInput.Code, "Settlement amount must be positive"), o.ID)
	}
	if e.Date.IsZero() {
		return withObligation(shared.NewDomainError(shared.ErrInvalidInput.Code, "Settlement date is required"), o.ID)
	}
	return nil
}

// Classify compares the settled amount with the obligation's expected amount
func Classify(o *Obligation, e SettlementEvent) Outcome {
	delta := e.Amount.Subtract(o.ExpectedAmount)
	switch {
	case delta.IsNegative():
		return Outcome{Kind: OutcomeShortfall, Diff: delta.Abs()}
	case delta.IsPositive():
		return Outcome{Kind: OutcomeSurplus, Diff: delta}
	default:
		return Outcome{Kind: OutcomeExact, Diff: valueobject.Zero()}
	}
}
