package obligation

import (
	"context"
	"time"

	"github.com/erp/obligations/internal/domain/shared"
	"github.com/google/uuid"
)

// ObligationFilter defines filtering options for obligation queries
type ObligationFilter struct {
	shared.Filter
	Direction      *Direction
	CounterpartyID *uuid.UUID
	GroupID        *uuid.UUID
	Statuses       []Status
	DueFrom        *time.Time
	DueTo          *time.Time
}

// ObligationStore is the persistence boundary of the engine
type ObligationStore interface {
	// FindByID finds an obligation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Obligation, error)

	// FindProvisionedSiblings returns the counterparty's provisioned
	// obligations, excluding excludeID, ordered by due date then sequence
	FindProvisionedSiblings(ctx context.Context, counterpartyID, excludeID uuid.UUID) ([]*Obligation, error)

	// FindByGroup returns every obligation of a negotiated term
	FindByGroup(ctx context.Context, groupID uuid.UUID) ([]*Obligation, error)

	// FindAll lists obligations matching the filter
	FindAll(ctx context.Context, filter ObligationFilter) ([]*Obligation, error)

	// Count counts obligations matching the filter
	Count(ctx context.Context, filter ObligationFilter) (int64, error)

	// Save persists the batch atomically: either every obligation is
	// written or none is
	Save(ctx context.Context, batch []*Obligation) error
}
