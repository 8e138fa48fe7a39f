package obligation

import (
	"time"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type names
const (
	EventTypeObligationProvisioned        = "ObligationProvisioned"
	EventTypeObligationAwaitingSettlement = "ObligationAwaitingSettlement"
	EventTypeObligationSettled            = "ObligationSettled"
	EventTypeObligationAdjusted           = "ObligationAdjusted"
	EventTypeObligationCancelled          = "ObligationCancelled"
)

// ObligationProvisionedEvent is raised when a new obligation is scheduled
type ObligationProvisionedEvent struct {
	shared.BaseDomainEvent
	ObligationID   uuid.UUID         `json:"obligation_id"`
	Direction      Direction         `json:"direction"`
	CounterpartyID uuid.UUID         `json:"counterparty_id"`
	GroupID        *uuid.UUID        `json:"group_id,omitempty"`
	ParentID       *uuid.UUID        `json:"parent_id,omitempty"`
	Sequence       int               `json:"sequence"`
	SequenceTotal  int               `json:"sequence_total"`
	ExpectedAmount valueobject.Money `json:"expected_amount"`
	DueDate        time.Time         `json:"due_date"`
}

// EventType returns the event type name
func (e *ObligationProvisionedEvent) EventType() string {
	return EventTypeObligationProvisioned
}

// NewObligationProvisionedEvent creates a new ObligationProvisionedEvent
func NewObligationProvisionedEvent(o *Obligation) *ObligationProvisionedEvent {
	return &ObligationProvisionedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationProvisioned, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		Direction:       o.Direction,
		CounterpartyID:  o.CounterpartyID,
		GroupID:         clonePtr(o.GroupID),
		ParentID:        clonePtr(o.ParentID),
		Sequence:        o.Sequence,
		SequenceTotal:   o.SequenceTotal,
		ExpectedAmount:  o.ExpectedAmount,
		DueDate:         o.DueDate,
	}
}

// ObligationAwaitingSettlementEvent is raised when an obligation is billed
type ObligationAwaitingSettlementEvent struct {
	shared.BaseDomainEvent
	ObligationID   uuid.UUID         `json:"obligation_id"`
	CounterpartyID uuid.UUID         `json:"counterparty_id"`
	ExpectedAmount valueobject.Money `json:"expected_amount"`
	DueDate        time.Time         `json:"due_date"`
}

// EventType returns the event type name
func (e *ObligationAwaitingSettlementEvent) EventType() string {
	return EventTypeObligationAwaitingSettlement
}

// NewObligationAwaitingSettlementEvent creates a new ObligationAwaitingSettlementEvent
func NewObligationAwaitingSettlementEvent(o *Obligation) *ObligationAwaitingSettlementEvent {
	return &ObligationAwaitingSettlementEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationAwaitingSettlement, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		CounterpartyID:  o.CounterpartyID,
		ExpectedAmount:  o.ExpectedAmount,
		DueDate:         o.DueDate,
	}
}

// ObligationSettledEvent is raised when a settlement is reconciled
type ObligationSettledEvent struct {
	shared.BaseDomainEvent
	ObligationID   uuid.UUID         `json:"obligation_id"`
	Direction      Direction         `json:"direction"`
	CounterpartyID uuid.UUID         `json:"counterparty_id"`
	ExpectedAmount valueobject.Money `json:"expected_amount"`
	SettledAmount  valueobject.Money `json:"settled_amount"`
	SettledDate    time.Time         `json:"settled_date"`
	AccountRef     string            `json:"account_ref"`
	Discount       valueobject.Money `json:"discount"`
	Surcharge      valueobject.Money `json:"surcharge"`
}

// EventType returns the event type name
func (e *ObligationSettledEvent) EventType() string {
	return EventTypeObligationSettled
}

// NewObligationSettledEvent creates a new ObligationSettledEvent
func NewObligationSettledEvent(o *Obligation) *ObligationSettledEvent {
	event := &ObligationSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationSettled, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		Direction:       o.Direction,
		CounterpartyID:  o.CounterpartyID,
		ExpectedAmount:  o.ExpectedAmount,
		AccountRef:      o.SettlementAccountRef,
		Discount:        o.Discount,
		Surcharge:       o.Surcharge,
	}
	if o.SettledAmount != nil {
		event.SettledAmount = *o.SettledAmount
	}
	if o.SettledDate != nil {
		event.SettledDate = *o.SettledDate
	}
	return event
}

// ObligationAdjustedEvent is raised when a residual strategy changes the
// expected amount of a sibling
type ObligationAdjustedEvent struct {
	shared.BaseDomainEvent
	ObligationID         uuid.UUID         `json:"obligation_id"`
	CounterpartyID       uuid.UUID         `json:"counterparty_id"`
	PreviousAmount       valueobject.Money `json:"previous_amount"`
	NewAmount            valueobject.Money `json:"new_amount"`
	SettlingObligationID uuid.UUID         `json:"settling_obligation_id"`
	Strategy             StrategyName      `json:"strategy"`
}

// EventType returns the event type name
func (e *ObligationAdjustedEvent) EventType() string {
	return EventTypeObligationAdjusted
}

// NewObligationAdjustedEvent creates a new ObligationAdjustedEvent
func NewObligationAdjustedEvent(o *Obligation, previous valueobject.Money, settlingID uuid.UUID, strategy StrategyName) *ObligationAdjustedEvent {
	return &ObligationAdjustedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeObligationAdjusted, AggregateTypeObligation, o.ID),
		ObligationID:         o.ID,
		CounterpartyID:       o.CounterpartyID,
		PreviousAmount:       previous,
		NewAmount:            o.ExpectedAmount,
		SettlingObligationID: settlingID,
		Strategy:             strategy,
	}
}

// ObligationCancelledEvent is raised when an obligation is cancelled
type ObligationCancelledEvent struct {
	shared.BaseDomainEvent
	ObligationID   uuid.UUID `json:"obligation_id"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	PreviousStatus Status    `json:"previous_status"`
	Reason         string    `json:"reason"`
	CancelledAt    time.Time `json:"cancelled_at"`
}

// EventType returns the event type name
func (e *ObligationCancelledEvent) EventType() string {
	return EventTypeObligationCancelled
}

// NewObligationCancelledEvent creates a new ObligationCancelledEvent
func NewObligationCancelledEvent(o *Obligation, previous Status) *ObligationCancelledEvent {
	cancelledAt := time.Now()
	if o.CancelledAt != nil {
		cancelledAt = *o.CancelledAt
	}
	return &ObligationCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationCancelled, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		CounterpartyID:  o.CounterpartyID,
		PreviousStatus:  previous,
		Reason:          o.CancelReason,
		CancelledAt:     cancelledAt,
	}
}
