package obligation

import (
	"fmt"
	"time"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AggregateTypeObligation is the aggregate type name used on events
const AggregateTypeObligation = "Obligation"

// Direction tells which ledger an obligation belongs to
type Direction string

const (
	DirectionPayable    Direction = "PAYABLE"    // Owed to a supplier
	DirectionReceivable Direction = "RECEIVABLE" // Owed by a client
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionPayable || d == DirectionReceivable
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// Header carries the pass-through fields copied onto every generated obligation
type Header struct {
	Direction      Direction
	CounterpartyID uuid.UUID
	CategoryRef    string
	Description    string
}

// Validate checks the header's required fields
func (h Header) Validate() error {
	if !h.Direction.IsValid() {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("Invalid direction %q", h.Direction))
	}
	if h.CounterpartyID == uuid.Nil {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "Counterparty ID cannot be empty")
	}
	return nil
}

// Obligation is a single dated monetary commitment towards or from a
// counterparty
type Obligation struct {
	shared.BaseAggregateRoot
	Direction            Direction          `json:"direction"`
	CounterpartyID       uuid.UUID          `json:"counterparty_id"`
	GroupID              *uuid.UUID         `json:"group_id,omitempty"`  // Shared by one negotiated term
	ParentID             *uuid.UUID         `json:"parent_id,omitempty"` // Set on spawned residual obligations
	Sequence             int                `json:"sequence"`
	SequenceTotal        int                `json:"sequence_total"`
	ExpectedAmount       valueobject.Money  `json:"expected_amount"`
	DueDate              time.Time          `json:"due_date"`
	Status               Status             `json:"status"`
	SettledAmount        *valueobject.Money `json:"settled_amount,omitempty"`
	SettledDate          *time.Time         `json:"settled_date,omitempty"`
	SettlementAccountRef string             `json:"settlement_account_ref,omitempty"`
	Discount             valueobject.Money  `json:"discount"`  // Shortfall written off on settlement
	Surcharge            valueobject.Money  `json:"surcharge"` // Surplus kept on settlement
	CategoryRef          string             `json:"category_ref,omitempty"`
	Description          string             `json:"description,omitempty"`
	CancelledAt          *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason         string             `json:"cancel_reason,omitempty"`

	persisted bool
	dirty     bool
}

// NewObligation creates a standalone provisioned obligation
func NewObligation(header Header, amount valueobject.Money, dueDate time.Time) (*Obligation, error) {
	if err := header.Validate(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "Expected amount must be positive")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "Due date is required")
	}
	return newProvisioned(header, amount, dueDate, nil, nil, 1, 1), nil
}

func newProvisioned(header Header, amount valueobject.Money, dueDate time.Time, groupID, parentID *uuid.UUID, seq, total int) *Obligation {
	o := &Obligation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Direction:         header.Direction,
		CounterpartyID:    header.CounterpartyID,
		GroupID:           groupID,
		ParentID:          parentID,
		Sequence:          seq,
		SequenceTotal:     total,
		ExpectedAmount:    amount,
		DueDate:           NormalizeDate(dueDate),
		Status:            defaultStatusMachine.Initial(),
		CategoryRef:       header.CategoryRef,
		Description:       header.Description,
	}
	o.AddDomainEvent(NewObligationProvisionedEvent(o))
	return o
}

// Header returns the pass-through fields of the obligation
func (o *Obligation) Header() Header {
	return Header{
		Direction:      o.Direction,
		CounterpartyID: o.CounterpartyID,
		CategoryRef:    o.CategoryRef,
		Description:    o.Description,
	}
}

// IsSiblingOf reports whether o may absorb a residual from the settling
// obligation: provisioned, same counterparty and not the same record
func (o *Obligation) IsSiblingOf(settling *Obligation) bool {
	return o.Status == StatusProvisioned &&
		o.CounterpartyID == settling.CounterpartyID &&
		o.ID != settling.ID
}

// MarkAwaitingSettlement records that the obligation was billed
func (o *Obligation) MarkAwaitingSettlement() error {
	if err := defaultStatusMachine.Transition(o.ID, o.Status, StatusAwaitingSettlement); err != nil {
		return err
	}
	o.Status = StatusAwaitingSettlement
	o.touch()
	o.AddDomainEvent(NewObligationAwaitingSettlementEvent(o))
	return nil
}

// Cancel withdraws the obligation. Cancelling is terminal.
func (o *Obligation) Cancel(reason string) error {
	if err := defaultStatusMachine.Transition(o.ID, o.Status, StatusCancelled); err != nil {
		return err
	}
	if reason == "" {
		return withObligation(shared.NewDomainError(shared.ErrInvalidInput.Code, "Cancel reason is required"), o.ID)
	}

	previous := o.Status
	now := time.Now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.touch()
	o.AddDomainEvent(NewObligationCancelledEvent(o, previous))
	return nil
}

// settle moves the obligation to SETTLED with the settlement details
func (o *Obligation) settle(machine StatusMachine, event SettlementEvent) error {
	if err := machine.Transition(o.ID, o.Status, StatusSettled); err != nil {
		return err
	}
	amount := event.Amount
	date := NormalizeDate(event.Date)
	o.Status = StatusSettled
	o.SettledAmount = &amount
	o.SettledDate = &date
	o.SettlementAccountRef = event.AccountRef
	o.touch()
	o.AddDomainEvent(NewObligationSettledEvent(o))
	return nil
}

// adjustExpected changes the expected amount of a provisioned sibling as the
// result of a residual strategy
func (o *Obligation) adjustExpected(amount valueobject.Money, source *Obligation, strategy StrategyName) error {
	if o.Status != StatusProvisioned {
		return withObligation(newError(ErrInvalidState, "Cannot adjust obligation in %s status", o.Status), o.ID)
	}
	previous := o.ExpectedAmount
	o.ExpectedAmount = amount
	o.touch()
	o.AddDomainEvent(NewObligationAdjustedEvent(o, previous, source.ID, strategy))
	return nil
}

// touch marks the obligation changed. A stored obligation gets exactly one
// version bump per change set so stores can check the loaded version.
func (o *Obligation) touch() {
	o.UpdatedAt = time.Now()
	if o.persisted && !o.dirty {
		o.IncrementVersion()
	}
	o.dirty = true
}

// IsNew reports whether the obligation has never been stored
func (o *Obligation) IsNew() bool {
	return !o.persisted
}

// IsDirty reports whether the obligation changed since it was loaded
func (o *Obligation) IsDirty() bool {
	return o.dirty
}

// MarkPersisted flags the obligation as stored and clean. Called by stores
// after loading or committing it.
func (o *Obligation) MarkPersisted() {
	o.persisted = true
	o.dirty = false
}

// Clone returns a deep copy of the obligation, including pending events
func (o *Obligation) Clone() *Obligation {
	c := *o
	c.GroupID = clonePtr(o.GroupID)
	c.ParentID = clonePtr(o.ParentID)
	c.SettledAmount = clonePtr(o.SettledAmount)
	c.SettledDate = clonePtr(o.SettledDate)
	c.CancelledAt = clonePtr(o.CancelledAt)
	events := o.GetDomainEvents()
	c.ClearDomainEvents()
	for _, e := range events {
		c.AddDomainEvent(e)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
