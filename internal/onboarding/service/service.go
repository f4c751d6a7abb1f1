// Package service orchestrates the onboarding workflow: every mutation runs
// inside one transaction that updates the aggregate and appends exactly one
// audit entry, then emits best-effort notifications after commit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/audit"
	"bazaar/internal/capability"
	"bazaar/internal/notify"
	"bazaar/internal/onboarding/metrics"
	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/store/application"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/platform/tx"
	"bazaar/pkg/requestcontext"
)

type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	FindActiveByVendor(ctx context.Context, vendorID id.VendorID) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	List(ctx context.Context, filter application.ListFilter) ([]*models.Application, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

type StepStore interface {
	CreateBatch(ctx context.Context, steps []*models.Step) error
	FindByNumber(ctx context.Context, appID id.ApplicationID, number int) (*models.Step, error)
	ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*models.Step, error)
	Update(ctx context.Context, step *models.Step) error
}

type NoteStore interface {
	Append(ctx context.Context, note *models.Note) error
	ListByApplication(ctx context.Context, appID id.ApplicationID, applicantView bool) ([]*models.Note, error)
}

// Policy carries the tunable review rules.
type Policy struct {
	// RequireVerifiedPersona blocks approval until identity verification is
	// VERIFIED or OVERRIDDEN.
	RequireVerifiedPersona bool
}

// Service orchestrates application lifecycle, steps, and notes.
type Service struct {
	apps     ApplicationStore
	steps    StepStore
	notes    NoteStore
	recorder *audit.Recorder
	runner   tx.Runner
	policy   Policy

	publisher notify.Publisher
	granter   capability.Granter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithGranter(g capability.Granter) Option {
	return func(s *Service) { s.granter = g }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// New constructs a Service.
func New(apps ApplicationStore, steps StepStore, notes NoteStore, recorder *audit.Recorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		apps:     apps,
		steps:    steps,
		notes:    notes,
		recorder: recorder,
		runner:   runner,
		granter:  capability.Noop{},
		tracer:   otel.Tracer("bazaar/onboarding"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// mutate wraps one workflow mutation: span, latency metric, and the
// transaction boundary keyed by application so the memory runner serializes
// same-application operations.
func (s *Service) mutate(ctx context.Context, operation string, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "onboarding."+operation)
	defer span.End()

	start := time.Now()
	ctx = tx.WithShardKey(ctx, appID.String())
	err := s.runner.RunInTx(ctx, fn)
	s.metrics.ObserveOperation(operation, time.Since(start))

	if err != nil {
		span.RecordError(err)
		s.metrics.RecordGuardRejection(operation, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

// loadForReview fetches a live application row or translates the store's
// sentinel into a coded error.
func (s *Service) loadForReview(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}
	if app.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return app, nil
}

// requireActor returns the authenticated admin or CodeUnauthorized.
func requireActor(ctx context.Context) (requestcontext.AdminActor, error) {
	actor := requestcontext.Actor(ctx)
	if actor.ID.IsNil() {
		return requestcontext.AdminActor{}, dErrors.New(dErrors.CodeUnauthorized, "admin identity is required")
	}
	return actor, nil
}

// publish emits a post-commit event; failures are logged, never returned.
func (s *Service) publish(ctx context.Context, event notify.Event) {
	if s.publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"type", string(event.Type),
			"application_id", event.ApplicationID.String(),
			"error", err,
		)
	}
}
