package event

import (
	"context"
	"testing"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

// mockHandler records every event it receives
type mockHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
}

func newMockHandler(eventTypes ...string) *mockHandler {
	return &mockHandler{eventTypes: eventTypes}
}

func (h *mockHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.handled = append(h.handled, event)
	return nil
}

func (h *mockHandler) EventTypes() []string {
	return h.eventTypes
}

func TestHandlerRegistry_SpecificTypes(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newMockHandler()
	registry.Register(handler, obligation.EventTypeObligationProvisioned, obligation.EventTypeObligationSettled)

	assert.Equal(t, []shared.EventHandler{handler}, registry.HandlersFor(obligation.EventTypeObligationProvisioned))
	assert.Equal(t, []shared.EventHandler{handler}, registry.HandlersFor(obligation.EventTypeObligationSettled))
	assert.Empty(t, registry.HandlersFor(obligation.EventTypeObligationCancelled))
}

func TestHandlerRegistry_Wildcard(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newMockHandler()
	registry.Register(handler)

	assert.Len(t, registry.HandlersFor(obligation.EventTypeObligationAdjusted), 1)
	assert.Len(t, registry.HandlersFor("AnyEventType"), 1)
}

func TestHandlerRegistry_SubscriptionOrder(t *testing.T) {
	registry := NewHandlerRegistry()
	audit := newMockHandler()
	settled := newMockHandler()
	metrics := newMockHandler()

	registry.Register(audit)
	registry.Register(settled, obligation.EventTypeObligationSettled)
	registry.Register(metrics)

	assert.Equal(t, []shared.EventHandler{audit, settled, metrics},
		registry.HandlersFor(obligation.EventTypeObligationSettled))
	assert.Equal(t, []shared.EventHandler{audit, metrics},
		registry.HandlersFor(obligation.EventTypeObligationCancelled))
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	t.Run("specific handler", func(t *testing.T) {
		registry := NewHandlerRegistry()
		first := newMockHandler()
		second := newMockHandler()
		registry.Register(first, obligation.EventTypeObligationProvisioned)
		registry.Register(second, obligation.EventTypeObligationProvisioned)

		registry.Unregister(first)

		assert.Equal(t, []shared.EventHandler{second}, registry.HandlersFor(obligation.EventTypeObligationProvisioned))
	})

	t.Run("wildcard handler", func(t *testing.T) {
		registry := NewHandlerRegistry()
		handler := newMockHandler()
		registry.Register(handler)

		registry.Unregister(handler)

		assert.Empty(t, registry.HandlersFor("AnyEvent"))
	})

	t.Run("every subscription of the handler", func(t *testing.T) {
		registry := NewHandlerRegistry()
		handler := newMockHandler()
		registry.Register(handler, obligation.EventTypeObligationSettled)
		registry.Register(handler, obligation.EventTypeObligationAdjusted)

		registry.Unregister(handler)

		assert.Empty(t, registry.Handlers())
	})
}

func TestHandlerRegistry_Handlers(t *testing.T) {
	registry := NewHandlerRegistry()
	settled := newMockHandler()
	wildcard := newMockHandler()

	registry.Register(settled, obligation.EventTypeObligationSettled, obligation.EventTypeObligationAdjusted)
	registry.Register(settled, obligation.EventTypeObligationCancelled)
	registry.Register(wildcard)

	assert.Equal(t, []shared.EventHandler{settled, wildcard}, registry.Handlers())
}
