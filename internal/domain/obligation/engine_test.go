package obligation

import (
	"testing"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ExactSettlement(t *testing.T) {
	o := stored(uuid.New(), "1000.00")

	result, err := NewEngine().Reconcile(o, settlement(o, "1000.00"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExact, result.Outcome.Kind)
	assert.Empty(t, result.Strategy)
	assert.Equal(t, StatusSettled, result.Settled.Status)
	assert.Equal(t, "1000.00", result.Settled.SettledAmount.String())
	assert.Equal(t, date(2024, 6, 12), *result.Settled.SettledDate)
	assert.Equal(t, "bank-001", result.Settled.SettlementAccountRef)
	assert.Len(t, result.Batch(), 1)

	events := result.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeObligationSettled, events[0].EventType())
}

func TestEngine_SpawnScenario(t *testing.T) {
	o := stored(uuid.New(), "500.00")
	groupID := uuid.New()
	o.GroupID = &groupID

	result, err := NewEngine().Reconcile(o, settlement(o, "450.00"), NewSpawnObligationStrategy(date(2024, 7, 1), ""), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeShortfall, result.Outcome.Kind)
	assert.Equal(t, "50.00", result.Outcome.Diff.String())
	assert.Equal(t, StrategySpawnObligation, result.Strategy)
	assert.Equal(t, StatusSettled, result.Settled.Status)
	assert.Equal(t, "450.00", result.Settled.SettledAmount.String())
	assert.Equal(t, "500.00", result.Settled.ExpectedAmount.String())

	require.Len(t, result.Spawned, 1)
	spawned := result.Spawned[0]
	assert.Equal(t, StatusProvisioned, spawned.Status)
	assert.Equal(t, "50.00", spawned.ExpectedAmount.String())
	assert.Equal(t, date(2024, 7, 1), spawned.DueDate)
	assert.Equal(t, o.CounterpartyID, spawned.CounterpartyID)
	assert.Equal(t, groupID, *spawned.GroupID)

	batch := result.Batch()
	require.Len(t, batch, 2)
	assert.Equal(t, o.ID, batch[0].ID)
	assert.Equal(t, spawned.ID, batch[1].ID)
}

func TestEngine_DistributeScenario(t *testing.T) {
	counterparty := uuid.New()
	o := stored(counterparty, "500.00")
	a, b := stored(counterparty, "200.00"), stored(counterparty, "200.00")

	result, err := NewEngine().Reconcile(o, settlement(o, "600.00"), NewDistributeStrategy(), []*Obligation{a, b})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSurplus, result.Outcome.Kind)
	assert.Equal(t, "100.00", result.Outcome.Diff.String())
	require.Len(t, result.SiblingMutations, 2)
	assert.Equal(t, "150.00", result.SiblingMutations[0].ExpectedAmount.String())
	assert.Equal(t, "150.00", result.SiblingMutations[1].ExpectedAmount.String())
	assert.Equal(t, "600.00", result.Settled.SettledAmount.String())
	assert.True(t, result.Unabsorbed.IsZero())
}

func TestEngine_DoesNotMutateInputs(t *testing.T) {
	counterparty := uuid.New()
	o := stored(counterparty, "500.00")
	sibling := stored(counterparty, "200.00")

	result, err := NewEngine().Reconcile(o, settlement(o, "400.00"), NewDistributeStrategy(), []*Obligation{sibling})
	require.NoError(t, err)

	assert.Equal(t, StatusProvisioned, o.Status)
	assert.Nil(t, o.SettledAmount)
	assert.Equal(t, 1, o.Version)
	assert.False(t, o.IsDirty())
	assert.Empty(t, o.GetDomainEvents())
	assert.Equal(t, "200.00", sibling.ExpectedAmount.String())
	assert.Empty(t, sibling.GetDomainEvents())

	assert.Equal(t, "300.00", result.SiblingMutations[0].ExpectedAmount.String())
	assert.Equal(t, 2, result.Settled.Version)
	assert.Equal(t, 2, result.SiblingMutations[0].Version)
	assert.True(t, result.Settled.IsDirty())
	assert.False(t, result.Settled.IsNew())
}

func TestEngine_Errors(t *testing.T) {
	engine := NewEngine()
	counterparty := uuid.New()

	t.Run("nil obligation", func(t *testing.T) {
		_, err := engine.Reconcile(nil, SettlementEvent{}, nil, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("event for another obligation", func(t *testing.T) {
		o := stored(counterparty, "500.00")
		event := settlement(o, "500.00")
		event.ObligationID = uuid.New()
		_, err := engine.Reconcile(o, event, nil, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("non exact without strategy", func(t *testing.T) {
		o := stored(counterparty, "500.00")
		result, err := engine.Reconcile(o, settlement(o, "499.00"), nil, nil)
		assert.ErrorIs(t, err, ErrMissingParameter)
		assert.Nil(t, result)
	})

	t.Run("strategy failure returns no result", func(t *testing.T) {
		o := stored(counterparty, "500.00")
		result, err := engine.Reconcile(o, settlement(o, "400.00"), NewAbateSpecificStrategy(uuid.New()), nil)
		assert.ErrorIs(t, err, ErrInvalidStrategy)
		assert.Nil(t, result)
		assert.Equal(t, StatusProvisioned, o.Status)
	})

	t.Run("awaiting settlement can be settled", func(t *testing.T) {
		o := stored(counterparty, "500.00")
		require.NoError(t, o.MarkAwaitingSettlement())
		result, err := engine.Reconcile(o, settlement(o, "500.00"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, result.Settled.Status)
	})
}

func TestEngine_TerminalImmutability(t *testing.T) {
	engine := NewEngine()
	counterparty := uuid.New()
	target := uuid.New()
	due := date(2024, 7, 1)

	decisions := []ResidualDecision{
		{Strategy: StrategyDiscard},
		{Strategy: StrategySpawnObligation, DueDate: &due},
		{Strategy: StrategyDistribute},
		{Strategy: StrategyAbateSpecific, TargetID: &target},
	}

	for _, status := range []Status{StatusSettled, StatusCancelled} {
		for _, decision := range decisions {
			t.Run(status.String()+"/"+decision.Strategy.String(), func(t *testing.T) {
				o := stored(counterparty, "500.00")
				o.Status = status
				s, err := NewResidualStrategyFactory().Create(decision)
				require.NoError(t, err)

				for _, amount := range []string{"400.00", "500.00", "600.00"} {
					_, err = engine.Reconcile(o, settlement(o, amount), s, []*Obligation{stored(counterparty, "100.00")})
					assert.ErrorIs(t, err, ErrInvalidState)
				}
			})
		}
	}
}

func TestEngine_Preview(t *testing.T) {
	counterparty := uuid.New()
	o := stored(counterparty, "500.00")
	sibling := stored(counterparty, "200.00")

	preview, err := NewEngine().Preview(o, settlement(o, "600.00"), NewDistributeStrategy(), []*Obligation{sibling})
	require.NoError(t, err)
	assert.Equal(t, "100.00", preview.SiblingMutations[0].ExpectedAmount.String())
	assert.Empty(t, preview.Events())
	assert.Equal(t, StatusProvisioned, o.Status)
	assert.Equal(t, "200.00", sibling.ExpectedAmount.String())
}

func TestEngine_DistributeConservation(t *testing.T) {
	engine := NewEngine()
	counterparty := uuid.New()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("siblings move by exactly the absorbed difference", prop.ForAll(
		func(expected, settled int64, siblingAmounts []int64) bool {
			if len(siblingAmounts) == 0 || expected == settled {
				return true
			}
			o := stored(counterparty, "1.00")
			o.ExpectedAmount = valueobject.NewMoneyFromMinor(expected)
			siblings := make([]*Obligation, len(siblingAmounts))
			for i, amount := range siblingAmounts {
				siblings[i] = stored(counterparty, "1.00")
				siblings[i].ExpectedAmount = valueobject.NewMoneyFromMinor(amount)
			}
			before := sumExpected(siblings)

			event := SettlementEvent{ObligationID: o.ID, Amount: valueobject.NewMoneyFromMinor(settled), Date: date(2024, 1, 1)}
			result, err := engine.Reconcile(o, event, NewDistributeStrategy(), siblings)
			if err != nil {
				return false
			}

			after := before
			for _, m := range result.SiblingMutations {
				for _, s := range siblings {
					if s.ID == m.ID {
						after = after.Subtract(s.ExpectedAmount).Add(m.ExpectedAmount)
					}
				}
			}

			diff := result.Outcome.Diff
			if result.Outcome.Kind == OutcomeShortfall {
				return after.Equals(before.Add(diff)) && result.Unabsorbed.IsZero()
			}
			absorbed := diff.Subtract(result.Unabsorbed)
			return after.Equals(before.Subtract(absorbed)) && !after.IsNegative()
		},
		gen.Int64Range(1, 10_000_000),
		gen.Int64Range(1, 10_000_000),
		gen.SliceOf(gen.Int64Range(0, 5_000_000)),
	))

	properties.TestingRun(t)
}
