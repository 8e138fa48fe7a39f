package obligation

import (
	"time"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DateLayout is the calendar date format accepted and returned by the service
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// TermRequest describes the negotiated commercial term. Only formats are
// checked here; the schedule generator owns the term's shape rules and
// reports them as INVALID_TERM.
type TermRequest struct {
	Type         string `json:"type" validate:"required,oneof=SINGLE INSTALLMENT_PLAN RECURRING"`
	DueDate      string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Count        int    `json:"count,omitempty"`
	PeriodUnit   string `json:"period_unit,omitempty"`
	PeriodCount  int    `json:"period_count,omitempty"`
	FirstDueDate string `json:"first_due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// GenerateScheduleRequest asks for the obligations of one negotiation
type GenerateScheduleRequest struct {
	Direction      string      `json:"direction" validate:"required,oneof=PAYABLE RECEIVABLE"`
	CounterpartyID uuid.UUID   `json:"counterparty_id" validate:"required"`
	Total          string      `json:"total" validate:"required,numeric"`
	StartDate      string      `json:"start_date" validate:"required,datetime=2006-01-02"`
	Term           TermRequest `json:"term"`
	CategoryRef    string      `json:"category_ref,omitempty" validate:"max=100"`
	Description    string      `json:"description,omitempty" validate:"max=500"`
}

// ResidualDecisionRequest chooses how a non-exact settlement is absorbed
type ResidualDecisionRequest struct {
	Strategy    string     `json:"strategy" validate:"required,oneof=DISCARD SPAWN_OBLIGATION DISTRIBUTE ABATE_SPECIFIC"`
	DueDate     string     `json:"due_date,omitempty" validate:"required_if=Strategy SPAWN_OBLIGATION,omitempty,datetime=2006-01-02"`
	TargetID    *uuid.UUID `json:"target_id,omitempty" validate:"required_if=Strategy ABATE_SPECIFIC"`
	Description string     `json:"description,omitempty" validate:"max=500"`
}

// ReconcileRequest submits a settlement against one obligation
type ReconcileRequest struct {
	ObligationID uuid.UUID                `json:"obligation_id" validate:"required"`
	Amount       string                   `json:"amount" validate:"required,numeric"`
	Date         string                   `json:"date" validate:"required,datetime=2006-01-02"`
	AccountRef   string                   `json:"account_ref,omitempty" validate:"max=100"`
	Decision     *ResidualDecisionRequest `json:"decision,omitempty"`
}

// CancelRequest withdraws one obligation or a whole group
type CancelRequest struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Reason string    `json:"reason" validate:"required,max=500"`
}

// ListRequest filters the obligation listing
type ListRequest struct {
	Direction      string     `json:"direction,omitempty" validate:"omitempty,oneof=PAYABLE RECEIVABLE"`
	CounterpartyID *uuid.UUID `json:"counterparty_id,omitempty"`
	GroupID        *uuid.UUID `json:"group_id,omitempty"`
	Statuses       []string   `json:"statuses,omitempty" validate:"dive,oneof=PROVISIONED AWAITING_SETTLEMENT SETTLED CANCELLED"`
	DueFrom        string     `json:"due_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DueTo          string     `json:"due_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Page           int        `json:"page,omitempty" validate:"omitempty,min=1"`
	PageSize       int        `json:"page_size,omitempty" validate:"omitempty,min=1,max=500"`
	OrderBy        string     `json:"order_by,omitempty"`
	OrderDir       string     `json:"order_dir,omitempty" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// ObligationResponse represents an obligation in service results
type ObligationResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Direction            string     `json:"direction"`
	CounterpartyID       uuid.UUID  `json:"counterparty_id"`
	GroupID              *uuid.UUID `json:"group_id,omitempty"`
	ParentID             *uuid.UUID `json:"parent_id,omitempty"`
	Sequence             int        `json:"sequence"`
	SequenceTotal        int        `json:"sequence_total"`
	ExpectedAmount       string     `json:"expected_amount"`
	DueDate              string     `json:"due_date"`
	Status               string     `json:"status"`
	SettledAmount        string     `json:"settled_amount,omitempty"`
	SettledDate          string     `json:"settled_date,omitempty"`
	SettlementAccountRef string     `json:"settlement_account_ref,omitempty"`
	Discount             string     `json:"discount"`
	Surcharge            string     `json:"surcharge"`
	CategoryRef          string     `json:"category_ref,omitempty"`
	Description          string     `json:"description,omitempty"`
	CancelReason         string     `json:"cancel_reason,omitempty"`
	Version              int        `json:"version"`
}

// ScheduleResponse is the result of generating a schedule
type ScheduleResponse struct {
	GroupID     uuid.UUID            `json:"group_id"`
	Total       string               `json:"total"`
	Obligations []ObligationResponse `json:"obligations"`
}

// ReconciliationResponse is the result of a reconciliation or its preview
type ReconciliationResponse struct {
	Outcome    string               `json:"outcome"`
	Diff       string               `json:"diff"`
	Strategy   string               `json:"strategy,omitempty"`
	Unabsorbed string               `json:"unabsorbed"`
	Settled    ObligationResponse   `json:"settled"`
	Adjusted   []ObligationResponse `json:"adjusted"`
	Spawned    []ObligationResponse `json:"spawned"`
	Message    string               `json:"message"`
	Preview    bool                 `json:"preview"`
}

// CancelGroupResponse reports which members of a group were cancelled
type CancelGroupResponse struct {
	GroupID   uuid.UUID            `json:"group_id"`
	Cancelled []ObligationResponse `json:"cancelled"`
	Skipped   int                  `json:"skipped"` // Members already settled or cancelled
}

// ListResponse is one page of obligations
type ListResponse struct {
	Items    []ObligationResponse `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ---------------------------------------------------------------------------
// Mappers
// ---------------------------------------------------------------------------

// ToObligationResponse converts a domain obligation to its response
func ToObligationResponse(o *obligation.Obligation) ObligationResponse {
	resp := ObligationResponse{
		ID:                   o.ID,
		Direction:            string(o.Direction),
		CounterpartyID:       o.CounterpartyID,
		GroupID:              o.GroupID,
		ParentID:             o.ParentID,
		Sequence:             o.Sequence,
		SequenceTotal:        o.SequenceTotal,
		ExpectedAmount:       o.ExpectedAmount.String(),
		DueDate:              o.DueDate.Format(DateLayout),
		Status:               string(o.Status),
		SettlementAccountRef: o.SettlementAccountRef,
		Discount:             o.Discount.String(),
		Surcharge:            o.Surcharge.String(),
		CategoryRef:          o.CategoryRef,
		Description:          o.Description,
		CancelReason:         o.CancelReason,
		Version:              o.Version,
	}
	if o.SettledAmount != nil {
		resp.SettledAmount = o.SettledAmount.String()
	}
	if o.SettledDate != nil {
		resp.SettledDate = o.SettledDate.Format(DateLayout)
	}
	return resp
}

// ToObligationResponses converts a list of domain obligations
func ToObligationResponses(obligations []*obligation.Obligation) []ObligationResponse {
	out := make([]ObligationResponse, len(obligations))
	for i, o := range obligations {
		out[i] = ToObligationResponse(o)
	}
	return out
}

func toReconciliationResponse(r *obligation.ReconciliationResult, message string, preview bool) *ReconciliationResponse {
	return &ReconciliationResponse{
		Outcome:    r.Outcome.Kind.String(),
		Diff:       r.Outcome.Diff.String(),
		Strategy:   string(r.Strategy),
		Unabsorbed: r.Unabsorbed.String(),
		Settled:    ToObligationResponse(r.Settled),
		Adjusted:   ToObligationResponses(r.SiblingMutations),
		Spawned:    ToObligationResponses(r.Spawned),
		Message:    message,
		Preview:    preview,
	}
}

// ---------------------------------------------------------------------------
// Parsing into domain values
// ---------------------------------------------------------------------------

// ParseDate parses a calendar date in DateLayout as UTC midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return obligation.NormalizeDate(t), nil
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return ParseDate(s)
}

type scheduleCommand struct {
	term      obligation.Term
	total     valueobject.Money
	startDate time.Time
	header    obligation.Header
}

func (r GenerateScheduleRequest) toCommand() (*scheduleCommand, error) {
	total, err := valueobject.NewMoneyFromString(r.Total)
	if err != nil {
		return nil, invalidField("total", err.Error())
	}
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return nil, invalidField("start_date", err.Error())
	}
	term, err := r.Term.toTerm()
	if err != nil {
		return nil, err
	}
	return &scheduleCommand{
		term:      term,
		total:     total,
		startDate: start,
		header: obligation.Header{
			Direction:      obligation.Direction(r.Direction),
			CounterpartyID: r.CounterpartyID,
			CategoryRef:    r.CategoryRef,
			Description:    r.Description,
		},
	}, nil
}

func (t TermRequest) toTerm() (obligation.Term, error) {
	first, err := parseOptionalDate(t.FirstDueDate)
	if err != nil {
		return nil, invalidField("term.first_due_date", err.Error())
	}

	switch obligation.TermType(t.Type) {
	case obligation.TermTypeSingle:
		due, err := parseOptionalDate(t.DueDate)
		if err != nil {
			return nil, invalidField("term.due_date", err.Error())
		}
		return obligation.SingleTerm{DueDate: due}, nil
	case obligation.TermTypeInstallmentPlan:
		return obligation.InstallmentPlanTerm{Count: t.Count, FirstDueDate: first}, nil
	case obligation.TermTypeRecurring:
		return obligation.RecurringTerm{
			Unit:         obligation.PeriodUnit(t.PeriodUnit),
			PeriodCount:  t.PeriodCount,
			FirstDueDate: first,
		}, nil
	}
	return nil, invalidField("term.type", "Unsupported term type "+t.Type)
}

type reconcileCommand struct {
	event    obligation.SettlementEvent
	decision *obligation.ResidualDecision
}

func (r ReconcileRequest) toCommand() (*reconcileCommand, error) {
	amount, err := valueobject.NewMoneyFromString(r.Amount)
	if err != nil {
		return nil, invalidField("amount", err.Error())
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, invalidField("date", err.Error())
	}

	cmd := &reconcileCommand{
		event: obligation.SettlementEvent{
			ObligationID: r.ObligationID,
			Amount:       amount,
			Date:         date,
			AccountRef:   r.AccountRef,
		},
	}
	if r.Decision == nil {
		return cmd, nil
	}

	decision := &obligation.ResidualDecision{
		Strategy:    obligation.StrategyName(r.Decision.Strategy),
		TargetID:    r.Decision.TargetID,
		Description: r.Decision.Description,
	}
	if r.Decision.DueDate != "" {
		due, err := ParseDate(r.Decision.DueDate)
		if err != nil {
			return nil, invalidField("decision.due_date", err.Error())
		}
		decision.DueDate = &due
	}
	cmd.decision = decision
	return cmd, nil
}

func (r ListRequest) toFilter() (obligation.ObligationFilter, error) {
	filter := obligation.ObligationFilter{
		CounterpartyID: r.CounterpartyID,
		GroupID:        r.GroupID,
	}
	filter.Page = r.Page
	filter.PageSize = r.PageSize
	filter.OrderBy = r.OrderBy
	filter.OrderDir = r.OrderDir

	if r.Direction != "" {
		d := obligation.Direction(r.Direction)
		filter.Direction = &d
	}
	for _, s := range r.Statuses {
		filter.Statuses = append(filter.Statuses, obligation.Status(s))
	}
	if r.DueFrom != "" {
		from, err := ParseDate(r.DueFrom)
		if err != nil {
			return filter, invalidField("due_from", err.Error())
		}
		filter.DueFrom = &from
	}
	if r.DueTo != "" {
		to, err := ParseDate(r.DueTo)
		if err != nil {
			return filter, invalidField("due_to", err.Error())
		}
		filter.DueTo = &to
	}
	return filter, nil
}
