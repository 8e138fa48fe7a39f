package event

import (
	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared"
)

// RegisterAllEvents registers every obligation lifecycle event
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(obligation.EventTypeObligationProvisioned, func() shared.DomainEvent {
		return &obligation.ObligationProvisionedEvent{}
	})
	serializer.Register(obligation.EventTypeObligationAwaitingSettlement, func() shared.DomainEvent {
		return &obligation.ObligationAwaitingSettlementEvent{}
	})
	serializer.Register(obligation.EventTypeObligationSettled, func() shared.DomainEvent {
		return &obligation.ObligationSettledEvent{}
	})
	serializer.Register(obligation.EventTypeObligationAdjusted, func() shared.DomainEvent {
		return &obligation.ObligationAdjustedEvent{}
	})
	serializer.Register(obligation.EventTypeObligationCancelled, func() shared.DomainEvent {
		return &obligation.ObligationCancelledEvent{}
	})
}
