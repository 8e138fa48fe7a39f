package obligation

import (
	"time"

	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DefaultMaxScheduleSize bounds the number of obligations one term may produce
const DefaultMaxScheduleSize = 600

// ScheduleGenerator turns a negotiated term into dated obligations
type ScheduleGenerator struct {
	machine         StatusMachine
	maxScheduleSize int
}

// GeneratorOption configures a ScheduleGenerator
type GeneratorOption func(*ScheduleGenerator)

// WithMaxScheduleSize overrides the schedule size limit. Non-positive values
// are ignored.
func WithMaxScheduleSize(n int) GeneratorOption {
	return func(g *ScheduleGenerator) {
		if n > 0 {
			g.maxScheduleSize = n
		}
	}
}

// NewScheduleGenerator creates a new ScheduleGenerator
func NewScheduleGenerator(opts ...GeneratorOption) *ScheduleGenerator {
	g := &ScheduleGenerator{
		machine:         defaultStatusMachine,
		maxScheduleSize: DefaultMaxScheduleSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxScheduleSize returns the configured schedule size limit
func (g *ScheduleGenerator) MaxScheduleSize() int {
	return g.maxScheduleSize
}

// Generate expands term into obligations sharing a fresh group id. Plan and
// recurring terms without a first due date start at startDate.
func (g *ScheduleGenerator) Generate(term Term, total valueobject.Money, startDate time.Time, header Header) ([]*Obligation, error) {
	if err := header.Validate(); err != nil {
		return nil, err
	}
	if term == nil {
		return nil, newError(ErrInvalidTerm, "Term is required")
	}
	if !total.IsPositive() {
		return nil, newError(ErrInvalidTerm, "Total amount must be positive, got %s", total)
	}

	amounts, dueDates, err := g.expand(term, total, startDate)
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	obligations := make([]*Obligation, len(amounts))
	for i := range amounts {
		o := newProvisioned(header, amounts[i], dueDates[i], &groupID, nil, i+1, len(amounts))
		o.Status = g.machine.Initial()
		obligations[i] = o
	}
	return obligations, nil
}

func (g *ScheduleGenerator) expand(term Term, total valueobject.Money, startDate time.Time) ([]valueobject.Money, []time.Time, error) {
	switch t := term.(type) {
	case SingleTerm:
		if t.DueDate.IsZero() {
			return nil, nil, newError(ErrInvalidTerm, "Single term requires a due date")
		}
		return []valueobject.Money{total}, []time.Time{NormalizeDate(t.DueDate)}, nil

	case InstallmentPlanTerm:
		if err := g.checkCount(t.Count, "Installment count"); err != nil {
			return nil, nil, err
		}
		first, err := firstDueDate(t.FirstDueDate, startDate)
		if err != nil {
			return nil, nil, err
		}
		amounts, err := total.SplitRounded(t.Count)
		if err != nil {
			return nil, nil, newError(ErrInvalidTerm, "%s", err.Error())
		}
		for _, a := range amounts {
			if !a.IsPositive() {
				return nil, nil, newError(ErrInvalidTerm, "Total %s is too small for %d installments", total, t.Count)
			}
		}
		return amounts, monthlyDueDates(first, t.Count, 1), nil

	case RecurringTerm:
		if !t.Unit.IsValid() {
			return nil, nil, newError(ErrInvalidTerm, "Unknown period unit %q", t.Unit)
		}
		if err := g.checkCount(t.PeriodCount, "Period count"); err != nil {
			return nil, nil, err
		}
		first, err := firstDueDate(t.FirstDueDate, startDate)
		if err != nil {
			return nil, nil, err
		}
		amounts := make([]valueobject.Money, t.PeriodCount)
		for i := range amounts {
			amounts[i] = total
		}
		return amounts, monthlyDueDates(first, t.PeriodCount, t.Unit.Months()), nil
	}
	return nil, nil, newError(ErrInvalidTerm, "Unsupported term type %q", term.Type())
}

func (g *ScheduleGenerator) checkCount(n int, what string) error {
	if n < 1 {
		return newError(ErrInvalidTerm, "%s must be at least 1, got %d", what, n)
	}
	if n > g.maxScheduleSize {
		return newError(ErrInvalidTerm, "%s %d exceeds the limit of %d", what, n, g.maxScheduleSize)
	}
	return nil
}

func firstDueDate(first, startDate time.Time) (time.Time, error) {
	if !first.IsZero() {
		return NormalizeDate(first), nil
	}
	if !startDate.IsZero() {
		return NormalizeDate(startDate), nil
	}
	return time.Time{}, newError(ErrInvalidTerm, "First due date or start date is required")
}

// monthlyDueDates computes every date from the first one so clamping in a
// short month never carries over to later periods
func monthlyDueDates(first time.Time, count, stepMonths int) []time.Time {
	dates := make([]time.Time, count)
	for i := range dates {
		dates[i] = AddMonthsClamped(first, i*stepMonths)
	}
	return dates
}
