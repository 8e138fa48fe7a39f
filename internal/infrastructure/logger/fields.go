package logger

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Field keys shared by every component that logs about obligations
const (
	FieldObligationID   = "obligation_id"
	FieldCounterpartyID = "counterparty_id"
	FieldGroupID        = "group_id"
	FieldOutcome        = "outcome"
	FieldStrategy       = "strategy"
	FieldDiff           = "diff"
	FieldOperation      = "operation"
)

// ObligationID returns a zap field for an obligation id
func ObligationID(id uuid.UUID) zap.Field {
	return zap.String(FieldObligationID, id.String())
}

// CounterpartyID returns a zap field for a counterparty id
func CounterpartyID(id uuid.UUID) zap.Field {
	return zap.String(FieldCounterpartyID, id.String())
}

// GroupID returns a zap field for a schedule group id
func GroupID(id uuid.UUID) zap.Field {
	return zap.String(FieldGroupID, id.String())
}
