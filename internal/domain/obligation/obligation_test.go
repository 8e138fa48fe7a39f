package obligation

import (
	"testing"
	"time"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObligation(t *testing.T) {
	counterparty := uuid.New()

	t.Run("creates provisioned obligation", func(t *testing.T) {
		o, err := NewObligation(testHeader(counterparty), money("99.90"), date(2024, 6, 10))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, o.ID)
		assert.Equal(t, 1, o.Version)
		assert.Equal(t, StatusProvisioned, o.Status)
		assert.Equal(t, DirectionPayable, o.Direction)
		assert.Nil(t, o.GroupID)
		assert.Equal(t, 1, o.Sequence)
		assert.Equal(t, 1, o.SequenceTotal)
		assert.True(t, o.IsNew())
		require.Len(t, o.GetDomainEvents(), 1)

		event, ok := o.GetDomainEvents()[0].(*ObligationProvisionedEvent)
		require.True(t, ok)
		assert.Equal(t, o.ID, event.AggregateID())
		assert.Equal(t, AggregateTypeObligation, event.AggregateType())
		assert.Equal(t, "99.90", event.ExpectedAmount.String())
	})

	t.Run("validates input", func(t *testing.T) {
		_, err := NewObligation(Header{Direction: "BOTH", CounterpartyID: counterparty}, money("1.00"), date(2024, 6, 10))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = NewObligation(Header{Direction: DirectionReceivable}, money("1.00"), date(2024, 6, 10))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = NewObligation(testHeader(counterparty), money("0"), date(2024, 6, 10))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = NewObligation(testHeader(counterparty), money("1.00"), time.Time{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestObligation_MarkAwaitingSettlement(t *testing.T) {
	o := stored(uuid.New(), "100.00")

	require.NoError(t, o.MarkAwaitingSettlement())
	assert.Equal(t, StatusAwaitingSettlement, o.Status)
	assert.Equal(t, 2, o.Version)
	assert.True(t, o.IsDirty())
	require.Len(t, o.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeObligationAwaitingSettlement, o.GetDomainEvents()[0].EventType())

	err := o.MarkAwaitingSettlement()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestObligation_Cancel(t *testing.T) {
	t.Run("cancels provisioned obligation", func(t *testing.T) {
		o := stored(uuid.New(), "100.00")
		require.NoError(t, o.Cancel("negotiation edited"))
		assert.Equal(t, StatusCancelled, o.Status)
		assert.NotNil(t, o.CancelledAt)
		assert.Equal(t, "negotiation edited", o.CancelReason)

		event, ok := o.GetDomainEvents()[0].(*ObligationCancelledEvent)
		require.True(t, ok)
		assert.Equal(t, StatusProvisioned, event.PreviousStatus)
	})

	t.Run("cancelling is terminal", func(t *testing.T) {
		o := stored(uuid.New(), "100.00")
		require.NoError(t, o.Cancel("duplicate"))
		assert.ErrorIs(t, o.Cancel("again"), ErrIllegalTransition)
		assert.ErrorIs(t, o.MarkAwaitingSettlement(), ErrIllegalTransition)
	})

	t.Run("requires reason", func(t *testing.T) {
		o := stored(uuid.New(), "100.00")
		assert.ErrorIs(t, o.Cancel(""), shared.ErrInvalidInput)
		assert.Equal(t, StatusProvisioned, o.Status)
	})

	t.Run("settled cannot be cancelled", func(t *testing.T) {
		o := stored(uuid.New(), "100.00")
		o.Status = StatusSettled
		assert.ErrorIs(t, o.Cancel("too late"), ErrIllegalTransition)
	})
}

func TestObligation_VersionBumpsOncePerChangeSet(t *testing.T) {
	o := stored(uuid.New(), "100.00")
	require.NoError(t, o.MarkAwaitingSettlement())
	require.NoError(t, o.Cancel("withdrawn"))
	assert.Equal(t, 2, o.Version)

	o.MarkPersisted()
	assert.False(t, o.IsDirty())
	assert.False(t, o.IsNew())

	fresh, err := NewObligation(testHeader(uuid.New()), money("1.00"), date(2024, 1, 1))
	require.NoError(t, err)
	require.NoError(t, fresh.Cancel("never stored"))
	assert.Equal(t, 1, fresh.Version)
}

func TestObligation_Clone(t *testing.T) {
	o := stored(uuid.New(), "100.00")
	groupID := uuid.New()
	o.GroupID = &groupID
	require.NoError(t, o.MarkAwaitingSettlement())

	c := o.Clone()
	assert.Equal(t, o.ID, c.ID)
	assert.Equal(t, *o.GroupID, *c.GroupID)
	assert.Len(t, c.GetDomainEvents(), 1)

	*c.GroupID = uuid.New()
	c.ExpectedAmount = money("1.00")
	c.ClearDomainEvents()

	assert.Equal(t, groupID, *o.GroupID)
	assert.Equal(t, "100.00", o.ExpectedAmount.String())
	assert.Len(t, o.GetDomainEvents(), 1)
}

func TestHeader(t *testing.T) {
	counterparty := uuid.New()
	o := stored(counterparty, "1.00")
	assert.Equal(t, testHeader(counterparty), o.Header())
	assert.True(t, DirectionPayable.IsValid())
	assert.True(t, DirectionReceivable.IsValid())
	assert.False(t, Direction("").IsValid())
}
