// Package service orchestrates the identity verification sub-machine: it
// mints inquiries with the external provider, applies asynchronous results,
// and keeps the parent application's mirror fields in sync.
//
// Provider calls happen before the transaction opens; a provider failure
// therefore never leaves partial local state. Every local mutation runs in
// one transaction with exactly one audit entry.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/audit"
	"bazaar/internal/notify"
	appmodels "bazaar/internal/onboarding/models"
	"bazaar/internal/persona/dedupe"
	"bazaar/internal/persona/metrics"
	"bazaar/internal/persona/models"
	"bazaar/internal/persona/provider"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/platform/tx"
	"bazaar/pkg/requestcontext"
)

// VerificationStore persists verification records.
type VerificationStore interface {
	Create(ctx context.Context, v *models.Verification) error
	FindByApplication(ctx context.Context, appID id.ApplicationID) (*models.Verification, error)
	FindByInquiry(ctx context.Context, inquiryID string) (*models.Verification, error)
	Update(ctx context.Context, v *models.Verification) error
}

// ApplicationStore is the slice of the application store the sub-machine
// needs to keep the mirror fields current.
type ApplicationStore interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error)
	Update(ctx context.Context, app *appmodels.Application) error
}

// Service drives the verification sub-machine.
type Service struct {
	verifications VerificationStore
	apps          ApplicationStore
	provider      provider.Provider
	recorder      *audit.Recorder
	runner        tx.Runner

	deduper   dedupe.Deduper
	publisher notify.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics enables metric collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher enables post-commit event emission.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDeduper enables webhook delivery deduplication.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

// New wires the verification service.
func New(verifications VerificationStore, apps ApplicationStore, prov provider.Provider, recorder *audit.Recorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		verifications: verifications,
		apps:          apps,
		provider:      prov,
		recorder:      recorder,
		runner:        runner,
		tracer:        otel.Tracer("bazaar/persona"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// GetVerification returns the application's verification record.
func (s *Service) GetVerification(ctx context.Context, appID id.ApplicationID) (*models.Verification, error) {
	v, err := s.verifications.FindByApplication(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no verification for application")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load verification")
	}
	return v, nil
}

// mutate wraps one sub-machine mutation: span plus the transaction boundary
// keyed by application, matching the workflow service's serialization.
func (s *Service) mutate(ctx context.Context, operation string, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "persona."+operation)
	defer span.End()

	ctx = tx.WithShardKey(ctx, appID.String())
	err := s.runner.RunInTx(ctx, fn)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// loadApplication fetches the live parent row.
func (s *Service) loadApplication(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error) {
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

// loadVerification fetches the sub-machine row inside a transaction.
func (s *Service) loadVerification(ctx context.Context, appID id.ApplicationID) (*models.Verification, error) {
	v, err := s.verifications.FindByApplication(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no verification for application")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load verification")
	}
	return v, nil
}

// syncApplication copies the verification summary onto the parent row.
func (s *Service) syncApplication(ctx context.Context, app *appmodels.Application, v *models.Verification) error {
	app.SyncPersona(v, requestcontext.Now(ctx))
	if err := s.apps.Update(ctx, app); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "sync application verification mirror")
	}
	return nil
}

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
