package obligation

import "time"

// TermType identifies the kind of negotiated commercial term
type TermType string

const (
	TermTypeSingle          TermType = "SINGLE"
	TermTypeInstallmentPlan TermType = "INSTALLMENT_PLAN"
	TermTypeRecurring       TermType = "RECURRING"
)

// IsValid checks if the term type is valid
func (t TermType) IsValid() bool {
	switch t {
	case TermTypeSingle, TermTypeInstallmentPlan, TermTypeRecurring:
		return true
	}
	return false
}

// Term is a negotiated commercial term. The set of implementations is closed.
type Term interface {
	Type() TermType
	isTerm()
}

// SingleTerm is a one-off charge due on DueDate
type SingleTerm struct {
	DueDate time.Time
}

func (SingleTerm) Type() TermType { return TermTypeSingle }
func (SingleTerm) isTerm()        {}

// InstallmentPlanTerm splits the total into Count monthly installments
// starting at FirstDueDate
type InstallmentPlanTerm struct {
	Count        int
	FirstDueDate time.Time
}

func (InstallmentPlanTerm) Type() TermType { return TermTypeInstallmentPlan }
func (InstallmentPlanTerm) isTerm()        {}

// RecurringTerm bills the full total once per period, PeriodCount times
type RecurringTerm struct {
	Unit         PeriodUnit
	PeriodCount  int
	FirstDueDate time.Time
}

func (RecurringTerm) Type() TermType { return TermTypeRecurring }
func (RecurringTerm) isTerm()        {}

// PeriodUnit is the billing period of a recurring term
type PeriodUnit string

const (
	PeriodUnitMonthly    PeriodUnit = "MONTHLY"
	PeriodUnitQuarterly  PeriodUnit = "QUARTERLY"
	PeriodUnitSemiannual PeriodUnit = "SEMIANNUAL"
	PeriodUnitAnnual     PeriodUnit = "ANNUAL"
)

// IsValid checks if the period unit is valid
func (u PeriodUnit) IsValid() bool {
	return u.Months() > 0
}

// Months returns the length of the period in calendar months, or 0 for an
// unknown unit
func (u PeriodUnit) Months() int {
	switch u {
	case PeriodUnitMonthly:
		return 1
	case PeriodUnitQuarterly:
		return 3
	case PeriodUnitSemiannual:
		return 6
	case PeriodUnitAnnual:
		return 12
	}
	return 0
}

// String returns the string representation of PeriodUnit
func (u PeriodUnit) String() string {
	return string(u)
}
