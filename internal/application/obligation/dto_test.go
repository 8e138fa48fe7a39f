package obligation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2023-02-29")
	assert.Error(t, err)
}

func TestTermRequest_ToTerm(t *testing.T) {
	t.Run("installment plan with explicit first date", func(t *testing.T) {
		term, err := TermRequest{Type: "INSTALLMENT_PLAN", Count: 4, FirstDueDate: "2024-03-10"}.toTerm()
		require.NoError(t, err)
		plan, ok := term.(obligation.InstallmentPlanTerm)
		require.True(t, ok)
		assert.Equal(t, 4, plan.Count)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), plan.FirstDueDate)
	})

	t.Run("recurring", func(t *testing.T) {
		term, err := TermRequest{Type: "RECURRING", PeriodUnit: "QUARTERLY", PeriodCount: 4}.toTerm()
		require.NoError(t, err)
		rec, ok := term.(obligation.RecurringTerm)
		require.True(t, ok)
		assert.Equal(t, obligation.PeriodUnit("QUARTERLY"), rec.Unit)
		assert.True(t, rec.FirstDueDate.IsZero())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := TermRequest{Type: "WEEKLY"}.toTerm()
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestReconcileRequest_ToCommand(t *testing.T) {
	target := uuid.New()
	req := ReconcileRequest{
		ObligationID: uuid.New(),
		Amount:       "120.50",
		Date:         "2024-05-02",
		AccountRef:   "bank-002",
		Decision:     &ResidualDecisionRequest{Strategy: "ABATE_SPECIFIC", TargetID: &target},
	}

	cmd, err := req.toCommand()
	require.NoError(t, err)
	assert.Equal(t, int64(12050), cmd.event.Amount.Minor())
	assert.Equal(t, "bank-002", cmd.event.AccountRef)
	require.NotNil(t, cmd.decision)
	assert.Equal(t, obligation.StrategyAbateSpecific, cmd.decision.Strategy)
	assert.Equal(t, target, *cmd.decision.TargetID)
	assert.Nil(t, cmd.decision.DueDate)

	req.Decision = nil
	cmd, err = req.toCommand()
	require.NoError(t, err)
	assert.Nil(t, cmd.decision)
}

func TestListRequest_ToFilter(t *testing.T) {
	counterpartyID := uuid.New()
	filter, err := ListRequest{
		Direction:      "RECEIVABLE",
		CounterpartyID: &counterpartyID,
		Statuses:       []string{"PROVISIONED", "AWAITING_SETTLEMENT"},
		DueFrom:        "2024-01-01",
		DueTo:          "2024-12-31",
		PageSize:       50,
	}.toFilter()
	require.NoError(t, err)

	assert.Equal(t, obligation.DirectionReceivable, *filter.Direction)
	assert.Equal(t, counterpartyID, *filter.CounterpartyID)
	assert.Equal(t, []obligation.Status{obligation.StatusProvisioned, obligation.StatusAwaitingSettlement}, filter.Statuses)
	assert.Equal(t, 2024, filter.DueFrom.Year())
	assert.Equal(t, time.December, filter.DueTo.Month())
	assert.Equal(t, 50, filter.PageSize)
}

func TestValidateRequest_FieldPaths(t *testing.T) {
	err := validateRequest(ReconcileRequest{
		Amount:   "ten",
		Date:     "2024-01-15",
		Decision: &ResidualDecisionRequest{Strategy: "ABATE_SPECIFIC"},
	})

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrInvalidInput.Code, domainErr.Code)
	assert.Equal(t, "This field is required", domainErr.Context["obligation_id"])
	assert.Equal(t, "Must be a decimal amount", domainErr.Context["amount"])
	assert.Equal(t, "This field is required", domainErr.Context["decision.target_id"])
	assert.NotContains(t, domainErr.Context, "date")
}
