package obligation

import (
	"context"
	"fmt"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CounterpartyLocker serialises every write touching one counterparty
type CounterpartyLocker interface {
	WithLock(ctx context.Context, counterpartyID uuid.UUID, fn func(ctx context.Context) error) error
}

// CategoryResolver checks category references against the chart of
// accounts owned by another system
type CategoryResolver interface {
	Exists(ctx context.Context, categoryRef string) (bool, error)
}

// CurrencyFormatter renders amounts for people
type CurrencyFormatter interface {
	Format(m valueobject.Money) string
}

type plainFormatter struct{}

func (plainFormatter) Format(m valueobject.Money) string { return m.String() }

// StaticCategoryResolver accepts a fixed set of category refs
type StaticCategoryResolver struct {
	known map[string]struct{}
}

// NewStaticCategoryResolver creates a resolver over refs
func NewStaticCategoryResolver(refs ...string) *StaticCategoryResolver {
	known := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		known[r] = struct{}{}
	}
	return &StaticCategoryResolver{known: known}
}

// Exists reports whether ref is one of the configured categories
func (r *StaticCategoryResolver) Exists(_ context.Context, ref string) (bool, error) {
	_, ok := r.known[ref]
	return ok, nil
}

// StoreStatusCounter counts obligations per status through the store, for
// the obligations_by_status gauge
type StoreStatusCounter struct {
	store obligation.ObligationStore
}

// NewStoreStatusCounter creates a StoreStatusCounter
func NewStoreStatusCounter(store obligation.ObligationStore) *StoreStatusCounter {
	return &StoreStatusCounter{store: store}
}

// CountByStatus returns the number of obligations in every status
func (c *StoreStatusCounter) CountByStatus(ctx context.Context) (map[string]int64, error) {
	statuses := []obligation.Status{
		obligation.StatusProvisioned,
		obligation.StatusAwaitingSettlement,
		obligation.StatusSettled,
		obligation.StatusCancelled,
	}
	counts := make(map[string]int64, len(statuses))
	for _, status := range statuses {
		n, err := c.store.Count(ctx, obligation.ObligationFilter{Statuses: []obligation.Status{status}})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s obligations: %w", status, err)
		}
		counts[string(status)] = n
	}
	return counts, nil
}
