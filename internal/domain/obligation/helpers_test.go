package obligation

import (
	"time"

	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(amount string) valueobject.Money {
	return valueobject.MustParseMoney(amount)
}

func testHeader(counterpartyID uuid.UUID) Header {
	return Header{
		Direction:      DirectionPayable,
		CounterpartyID: counterpartyID,
		CategoryRef:    "4.1.01",
		Description:    "Hosting contract",
	}
}

// stored returns a provisioned obligation as if loaded from a store
func stored(counterpartyID uuid.UUID, amount string) *Obligation {
	o, err := NewObligation(testHeader(counterpartyID), money(amount), date(2024, 6, 10))
	if err != nil {
		panic(err)
	}
	o.ClearDomainEvents()
	o.MarkPersisted()
	return o
}

func settlement(o *Obligation, amount string) SettlementEvent {
	return SettlementEvent{
		ObligationID: o.ID,
		Amount:       money(amount),
		Date:         date(2024, 6, 12),
		AccountRef:   "bank-001",
	}
}

func sumExpected(obligations []*Obligation) valueobject.Money {
	total := valueobject.Zero()
	for _, o := range obligations {
		total = total.Add(o.ExpectedAmount)
	}
	return total
}
