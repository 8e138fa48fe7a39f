// Package obligation exposes the scheduling and reconciliation use cases.
// The service owns the transaction boundary: it serialises work per
// counterparty, persists every mutation of a use case as one batch and
// publishes domain events only after that batch is stored.
package obligation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/infrastructure/logger"
	"github.com/erp/obligations/internal/infrastructure/telemetry"
)

// Operation names used for spans, logs and failure metrics
const (
	OpGenerateSchedule = "generate_schedule"
	OpReconcile        = "reconcile"
	OpPreview          = "preview_reconcile"
	OpMarkAwaiting     = "mark_awaiting_settlement"
	OpCancel           = "cancel"
	OpCancelGroup      = "cancel_group"
)

// Service implements the obligation use cases
type Service struct {
	store      obligation.ObligationStore
	locker     CounterpartyLocker
	publisher  shared.EventPublisher
	generator  *obligation.ScheduleGenerator
	engine     *obligation.Engine
	strategies *obligation.ResidualStrategyFactory
	formatter  CurrencyFormatter
	categories CategoryResolver
	metrics    *telemetry.ObligationMetrics
	logger     *zap.Logger
}

// Option configures the Service
type Option func(*Service)

// WithGenerator replaces the default schedule generator
func WithGenerator(g *obligation.ScheduleGenerator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithEngine replaces the default reconciliation engine
func WithEngine(e *obligation.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithFormatter sets the formatter used in messages and descriptions
func WithFormatter(f CurrencyFormatter) Option {
	return func(s *Service) {
		s.formatter = f
	}
}

// WithCategoryResolver makes generation reject unknown category refs
func WithCategoryResolver(r CategoryResolver) Option {
	return func(s *Service) {
		s.categories = r
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a new obligation Service
func NewService(store obligation.ObligationStore, locker CounterpartyLocker, publisher shared.EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		locker:     locker,
		publisher:  publisher,
		generator:  obligation.NewScheduleGenerator(),
		engine:     obligation.NewEngine(),
		strategies: obligation.NewResidualStrategyFactory(),
		formatter:  plainFormatter{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMetrics sets the metrics recorder. A nil recorder disables metrics.
func (s *Service) SetMetrics(m *telemetry.ObligationMetrics) {
	s.metrics = m
}

// GenerateSchedule expands a negotiated term into provisioned obligations
// and stores them as one batch
func (s *Service) GenerateSchedule(ctx context.Context, req GenerateScheduleRequest) (*ScheduleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "obligation", OpGenerateSchedule)
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCounterpartyID, req.CounterpartyID.String(),
		telemetry.SpanAttrTermType, req.Term.Type,
	)

	if err := validateRequest(req); err != nil {
		return nil, s.fail(ctx, span, OpGenerateSchedule, err)
	}
	cmd, err := req.toCommand()
	if err != nil {
		return nil, s.fail(ctx, span, OpGenerateSchedule, err)
	}
	if err := s.checkCategory(ctx, cmd.header.CategoryRef); err != nil {
		return nil, s.fail(ctx, span, OpGenerateSchedule, err)
	}

	schedule, err := s.generator.Generate(cmd.term, cmd.total, cmd.startDate, cmd.header)
	if err != nil {
		return nil, s.fail(ctx, span, OpGenerateSchedule, err)
	}

	err = s.locker.WithLock(ctx, cmd.header.CounterpartyID, func(ctx context.Context) error {
		return s.saveAndPublish(ctx, schedule)
	})
	if err != nil {
		return nil, s.fail(ctx, span, OpGenerateSchedule, err)
	}

	groupID := *schedule[0].GroupID
	telemetry.SetAttributes(span,
		telemetry.SpanAttrGroupID, groupID.String(),
		telemetry.SpanAttrScheduleSize, len(schedule),
	)
	if s.metrics != nil {
		s.metrics.RecordScheduleGenerated(ctx, string(cmd.term.Type()), len(schedule))
	}
	logger.WithLogger(ctx, s.logger).Info("Schedule generated",
		logger.GroupID(groupID),
		logger.CounterpartyID(cmd.header.CounterpartyID),
		zap.String("term_type", string(cmd.term.Type())),
		zap.Int("size", len(schedule)),
		zap.String("total", s.formatter.Format(cmd.total)),
	)

	return &ScheduleResponse{
		GroupID:     groupID,
		Total:       cmd.total.String(),
		Obligations: ToObligationResponses(schedule),
	}, nil
}

// Reconcile settles an obligation, absorbs any difference with the chosen
// strategy and stores the settled, adjusted and spawned obligations as one
// batch. Nothing is published when the batch cannot be stored.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconciliationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "obligation", OpReconcile)
	defer span.End()
	start := time.Now()

	telemetry.SetAttributes(span, telemetry.SpanAttrObligationID, req.ObligationID.String())

	if err := validateRequest(req); err != nil {
		return nil, s.fail(ctx, span, OpReconcile, err)
	}
	cmd, err := req.toCommand()
	if err != nil {
		return nil, s.fail(ctx, span, OpReconcile, err)
	}

	var result *obligation.ReconciliationResult
	err = s.withObligationLock(ctx, req.ObligationID, func(ctx context.Context, o *obligation.Obligation) error {
		var err error
		result, err = s.compute(ctx, o, cmd, false)
		if err != nil {
			return err
		}
		return s.saveAndPublish(ctx, result.Batch())
	})
	if err != nil {
		return nil, s.fail(ctx, span, OpReconcile, err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCounterpartyID, result.Settled.CounterpartyID.String(),
		telemetry.SpanAttrOutcome, result.Outcome.Kind.String(),
		telemetry.SpanAttrStrategy, string(result.Strategy),
		telemetry.SpanAttrResidual, result.Outcome.Diff.String(),
		telemetry.SpanAttrBatchSize, len(result.Batch()),
	)
	if s.metrics != nil {
		s.metrics.RecordReconciliation(ctx, result.Outcome.Kind.String(), string(result.Strategy),
			result.Outcome.Diff.Minor(), time.Since(start))
	}
	logger.WithLogger(ctx, s.logger).Info("Obligation reconciled",
		logger.ObligationID(result.Settled.ID),
		logger.CounterpartyID(result.Settled.CounterpartyID),
		zap.String(logger.FieldOutcome, result.Outcome.Kind.String()),
		zap.String(logger.FieldStrategy, string(result.Strategy)),
		zap.String(logger.FieldDiff, result.Outcome.Diff.String()),
		zap.Int("adjusted", len(result.SiblingMutations)),
		zap.Int("spawned", len(result.Spawned)),
	)

	return toReconciliationResponse(result, s.describe(result), false), nil
}

// PreviewReconcile runs the reconciliation without storing anything or
// publishing events
func (s *Service) PreviewReconcile(ctx context.Context, req ReconcileRequest) (*ReconciliationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "obligation", OpPreview)
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrObligationID, req.ObligationID.String())

	if err := validateRequest(req); err != nil {
		return nil, s.fail(ctx, span, OpPreview, err)
	}
	cmd, err := req.toCommand()
	if err != nil {
		return nil, s.fail(ctx, span, OpPreview, err)
	}

	o, err := s.store.FindByID(ctx, req.ObligationID)
	if err != nil {
		return nil, s.fail(ctx, span, OpPreview, err)
	}
	result, err := s.compute(ctx, o, cmd, true)
	if err != nil {
		return nil, s.fail(ctx, span, OpPreview, err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOutcome, result.Outcome.Kind.String(),
		telemetry.SpanAttrStrategy, string(result.Strategy),
	)
	return toReconciliationResponse(result, s.describe(result), true), nil
}

// MarkAwaitingSettlement records that a provisioned obligation was billed
func (s *Service) MarkAwaitingSettlement(ctx context.Context, id uuid.UUID) (*ObligationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "obligation", OpMarkAwaiting)
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrObligationID, id.String())

	var updated *obligation.Obligation
	err := s.withObligationLock(ctx, id, func(ctx context.Context, o *obligation.Obligation) error {
		if err := o.MarkAwaitingSettlement(); err != nil {
			return err
		}
		updated = o
		return s.saveAndPublish(ctx, []*obligation.Obligation{o})
	})
	if err != nil {
		return nil, s.fail(ctx, span, OpMarkAwaiting, err)
	}

	logger.WithLogger(ctx, s.logger).Info("Obligation awaiting settlement", logger.ObligationID(id))
	resp := ToObligationResponse(updated)
	return &resp, nil
}

// Cancel withdraws a single non-terminal obligation
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*ObligationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "obligation", OpCancel)
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrObligationID, req.ID.String())

	if err := validateRequest(req); err != nil {
		return nil, s.fail(ctx, span, OpCancel, err)
	}

	var cancelled *obligation.Obligation
	err := s.withObligationLock(ctx, req.ID, func(ctx context.Context, o *obligation.Obligation) error {
		if err := o.Cancel(req.Reason); err != nil {
			return err
		}
		cancelled = o
		return s.saveAndPublish(ctx, []*obligation.Obligation{o})
	})
	if err != nil {
		return nil, s.fail(ctx, span, OpCancel, err)
	}

	if s.metrics != nil {
		s.metrics.RecordCancelled(ctx, 1)
	}
	logger.WithLogger(ctx, s.logger).Info("Obligation cancelled",
		logger.ObligationID(req.ID),
		zap.String("reason", req.Reason),
	)
	resp := ToObligationResponse(cancelled)
	return &resp, nil
}

// CancelGroup cancels every non-terminal member of a schedule, used when
// the negotiation behind it is edited. Settled and cancelled members are
// left untouched.
func (s *Service) CancelGroup(ctx context.Context, req CancelRequest) (*CancelGroupResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "obligation", OpCancelGroup)
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrGroupID, req.ID.String())

	if err := validateRequest(req); err != nil {
		return nil, s.fail(ctx, span, OpCancelGroup, err)
	}

	members, err := s.store.FindByGroup(ctx, req.ID)
	if err != nil {
		return nil, s.fail(ctx, span, OpCancelGroup, err)
	}
	if len(members) == 0 {
		return nil, s.fail(ctx, span, OpCancelGroup, shared.ErrNotFound.With("group_id", req.ID.String()))
	}

	resp := &CancelGroupResponse{GroupID: req.ID}
	err = s.locker.WithLock(ctx, members[0].CounterpartyID, func(ctx context.Context) error {
		// reload under the lock; a member may have settled meanwhile
		current, err := s.store.FindByGroup(ctx, req.ID)
		if err != nil {
			return err
		}
		var cancelled []*obligation.Obligation
		skipped := 0
		for _, o := range current {
			if o.Status.IsTerminal() {
				skipped++
				continue
			}
			if err := o.Cancel(req.Reason); err != nil {
				return err
			}
			cancelled = append(cancelled, o)
		}
		if err := s.saveAndPublish(ctx, cancelled); err != nil {
			return err
		}
		resp.Cancelled = ToObligationResponses(cancelled)
		resp.Skipped = skipped
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, OpCancelGroup, err)
	}

	if s.metrics != nil {
		s.metrics.RecordCancelled(ctx, len(resp.Cancelled))
	}
	logger.WithLogger(ctx, s.logger).Info("Schedule cancelled",
		logger.GroupID(req.ID),
		zap.Int("cancelled", len(resp.Cancelled)),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// GetObligation returns one obligation
func (s *Service) GetObligation(ctx context.Context, id uuid.UUID) (*ObligationResponse, error) {
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToObligationResponse(o)
	return &resp, nil
}

// ListObligations returns one page of obligations matching the request
func (s *Service) ListObligations(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	filter, err := req.toFilter()
	if err != nil {
		return nil, err
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}

	items, err := s.store.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list obligations: %w", err)
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count obligations: %w", err)
	}
	return &ListResponse{
		Items:    ToObligationResponses(items),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// compute loads the siblings of o and runs the engine. Preview results
// carry no events.
func (s *Service) compute(ctx context.Context, o *obligation.Obligation, cmd *reconcileCommand, preview bool) (*obligation.ReconciliationResult, error) {
	var residual obligation.ResidualStrategy
	var candidates []*obligation.Obligation

	outcome := obligation.Classify(o, cmd.event)
	if !outcome.IsExact() && cmd.decision != nil {
		decision := *cmd.decision
		if decision.Strategy == obligation.StrategySpawnObligation && decision.Description == "" {
			decision.Description = fmt.Sprintf("Shortfall of %s carried over from %s",
				s.formatter.Format(outcome.Diff), o.DueDate.Format(DateLayout))
		}
		strategy, err := s.strategies.Create(decision)
		if err != nil {
			return nil, err
		}
		residual = strategy

		if decision.Strategy == obligation.StrategyDistribute || decision.Strategy == obligation.StrategyAbateSpecific {
			candidates, err = s.store.FindProvisionedSiblings(ctx, o.CounterpartyID, o.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load sibling obligations: %w", err)
			}
		}
	}

	if preview {
		return s.engine.Preview(o, cmd.event, residual, candidates)
	}
	return s.engine.Reconcile(o, cmd.event, residual, candidates)
}

// withObligationLock loads the obligation, takes its counterparty lock and
// hands fn a fresh copy read under that lock
func (s *Service) withObligationLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, o *obligation.Obligation) error) error {
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.locker.WithLock(ctx, o.CounterpartyID, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, current)
	})
}

// saveAndPublish stores the batch and then publishes its events. A failed
// publish is logged; the batch is already committed at that point.
func (s *Service) saveAndPublish(ctx context.Context, batch []*obligation.Obligation) error {
	if len(batch) == 0 {
		return nil
	}

	var events []shared.DomainEvent
	for _, o := range batch {
		events = append(events, o.GetDomainEvents()...)
	}

	if err := s.store.Save(ctx, batch); err != nil {
		return fmt.Errorf("failed to save obligations: %w", err)
	}
	for _, o := range batch {
		o.ClearDomainEvents()
	}

	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish obligation events",
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) checkCategory(ctx context.Context, ref string) error {
	if s.categories == nil || ref == "" {
		return nil
	}
	ok, err := s.categories.Exists(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to resolve category: %w", err)
	}
	if !ok {
		return invalidField("category_ref", "Unknown category "+ref)
	}
	return nil
}

// describe renders a one-line summary of the reconciliation
func (s *Service) describe(r *obligation.ReconciliationResult) string {
	settled := s.formatter.Format(*r.Settled.SettledAmount)
	switch {
	case r.Outcome.IsExact():
		return fmt.Sprintf("Settled %s exactly", settled)
	case r.Unabsorbed.IsPositive():
		return fmt.Sprintf("Settled %s with a %s of %s, %s applied, %s left unabsorbed",
			settled, lower(r.Outcome.Kind), s.formatter.Format(r.Outcome.Diff), r.Strategy, s.formatter.Format(r.Unabsorbed))
	default:
		return fmt.Sprintf("Settled %s with a %s of %s, %s applied",
			settled, lower(r.Outcome.Kind), s.formatter.Format(r.Outcome.Diff), r.Strategy)
	}
}

func lower(k obligation.OutcomeKind) string {
	switch k {
	case obligation.OutcomeShortfall:
		return "shortfall"
	case obligation.OutcomeSurplus:
		return "surplus"
	}
	return "difference"
}

// fail records err on the span and the failure counter, then returns it
func (s *Service) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	telemetry.RecordError(span, err)
	if s.metrics != nil {
		s.metrics.RecordFailure(ctx, operation, errorCode(err))
	}
	logger.WithLogger(ctx, s.logger).Warn("Obligation operation failed",
		zap.String(logger.FieldOperation, operation),
		zap.Error(err),
	)
	return err
}

func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}
