package obligation

import "github.com/google/uuid"

// Status represents the lifecycle status of an obligation
type Status string

const (
	StatusProvisioned        Status = "PROVISIONED"         // Scheduled, amount may still be adjusted
	StatusAwaitingSettlement Status = "AWAITING_SETTLEMENT" // Billed, not yet settled
	StatusSettled            Status = "SETTLED"             // Paid or received
	StatusCancelled          Status = "CANCELLED"           // Withdrawn, e.g. negotiation edited
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusProvisioned, StatusAwaitingSettlement, StatusSettled, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// CanSettle returns true if a settlement may be reconciled in this status
func (s Status) CanSettle() bool {
	return s == StatusProvisioned || s == StatusAwaitingSettlement
}

// StatusMachine holds the legal status transitions. It carries no
// obligation data.
type StatusMachine struct {
	initial     Status
	transitions map[Status][]Status
}

// NewStatusMachine returns the obligation transition table
func NewStatusMachine() StatusMachine {
	return StatusMachine{
		initial: StatusProvisioned,
		transitions: map[Status][]Status{
			StatusProvisioned:        {StatusAwaitingSettlement, StatusSettled, StatusCancelled},
			StatusAwaitingSettlement: {StatusSettled, StatusCancelled},
		},
	}
}

var defaultStatusMachine = NewStatusMachine()

// Initial returns the status newly generated obligations start in
func (m StatusMachine) Initial() Status {
	return m.initial
}

// CanTransition reports whether from -> to is in the table
func (m StatusMachine) CanTransition(from, to Status) bool {
	for _, allowed := range m.transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to for the given obligation and returns an
// ILLEGAL_TRANSITION error naming both states when it is not allowed
func (m StatusMachine) Transition(id uuid.UUID, from, to Status) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return newError(ErrIllegalTransition, "Cannot move obligation from %s to %s", from, to).
		With("obligation_id", id.String()).
		With("from", from.String()).
		With("to", to.String())
}

// requireSettleable fails with INVALID_STATE unless the obligation can be settled
func requireSettleable(o *Obligation) error {
	if o.Status.CanSettle() {
		return nil
	}
	return withObligation(newError(ErrInvalidState, "Cannot settle obligation in %s status", o.Status), o.ID)
}
