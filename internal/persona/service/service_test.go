package service

//go:generate mockgen -source=../provider/provider.go -destination=../provider/mocks/provider.go -package=mocks Provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bazaar/internal/audit"
	"bazaar/internal/notify"
	appmodels "bazaar/internal/onboarding/models"
	appstore "bazaar/internal/onboarding/store/application"
	"bazaar/internal/persona/dedupe"
	"bazaar/internal/persona/models"
	"bazaar/internal/persona/provider"
	"bazaar/internal/persona/provider/mocks"
	verstore "bazaar/internal/persona/store/verification"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/tx"
	"bazaar/pkg/requestcontext"
)

type PersonaServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockProvider *mocks.MockProvider
	svc          *Service
	apps         *appstore.InMemory
	auditLog     *audit.InMemoryStore
	publisher    *notify.InMemory
	app          *appmodels.Application
	now          time.Time
	admin        requestcontext.AdminActor
}

func TestPersonaServiceSuite(t *testing.T) {
	suite.Run(t, new(PersonaServiceSuite))
}

func (s *PersonaServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockProvider = mocks.NewMockProvider(s.ctrl)
	s.apps = appstore.NewInMemory()
	s.auditLog = audit.NewInMemoryStore()
	s.publisher = notify.NewInMemory()
	s.now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	s.admin = requestcontext.AdminActor{ID: id.AdminID(uuid.New()), Name: "Dana"}

	s.svc = New(
		verstore.NewInMemory(),
		s.apps,
		s.mockProvider,
		audit.NewRecorder(s.auditLog, nil),
		tx.NewMemoryRunner(time.Second),
		WithPublisher(s.publisher),
		WithDeduper(dedupe.NewInMemory(time.Hour)),
	)

	app, err := appmodels.NewApplication(id.NewApplicationID(), id.VendorID(uuid.New()), appmodels.TypeStandard, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.apps.Create(context.Background(), app))
	s.app = app
}

func (s *PersonaServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PersonaServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *PersonaServiceSuite) overrideCtx() context.Context {
	actor := s.admin
	actor.CanOverride = true
	return requestcontext.WithActor(s.ctx(), actor)
}

func (s *PersonaServiceSuite) expectInquiry(inquiryID string) {
	s.mockProvider.EXPECT().
		CreateInquiry(gomock.Any(), provider.InquiryRequest{ApplicationID: s.app.ID, VendorID: s.app.VendorID}).
		Return(&provider.Inquiry{ID: inquiryID, VerificationURL: "https://verify.example/" + inquiryID}, nil)
}

func (s *PersonaServiceSuite) initiate() *models.Verification {
	s.expectInquiry("inq_1")
	v, err := s.svc.Initiate(s.ctx(), s.app.ID)
	s.Require().NoError(err)
	return v
}

func (s *PersonaServiceSuite) auditCount(action audit.Action) int {
	n, err := s.auditLog.CountByAction(context.Background(), s.app.ID, action)
	s.Require().NoError(err)
	return n
}

func (s *PersonaServiceSuite) mirrorPersona() models.Status {
	s.T().Helper()
	app, err := s.apps.FindByID(context.Background(), s.app.ID)
	s.Require().NoError(err)
	return app.PersonaStatus
}

func (s *PersonaServiceSuite) TestInitiate() {
	v := s.initiate()

	s.Equal(models.StatusPending, v.Status)
	s.Equal("inq_1", v.InquiryID)
	s.Equal(models.StatusPending, s.mirrorPersona(), "mirror follows the record")
	s.Equal(1, s.auditCount(audit.ActionPersonaInitiated))

	s.Run("second initiate is an illegal transition", func() {
		_, err := s.svc.Initiate(s.ctx(), s.app.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *PersonaServiceSuite) TestInitiateProviderFailureWritesNothing() {
	s.mockProvider.EXPECT().
		CreateInquiry(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeProviderUnavailable, "identity provider unreachable"))

	_, err := s.svc.Initiate(s.ctx(), s.app.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeProviderUnavailable))

	_, err = s.svc.GetVerification(s.ctx(), s.app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "no partial record")
	s.Equal(models.StatusNotStarted, s.mirrorPersona())
	s.Equal(0, s.auditCount(audit.ActionPersonaInitiated))
}

func (s *PersonaServiceSuite) TestVerifiedResult() {
	s.initiate()
	payload := json.RawMessage(`{"inquiry":"inq_1","state":"completed"}`)

	err := s.svc.ApplyProviderResult(s.ctx(), ProviderResult{
		DeliveryID: "dlv_1",
		InquiryID:  "inq_1",
		Outcome:    models.StatusVerified,
		Payload:    payload,
	})
	s.Require().NoError(err)

	v, err := s.svc.GetVerification(s.ctx(), s.app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, v.Status)
	s.JSONEq(string(payload), string(v.RawPayload))
	s.Equal(models.StatusVerified, s.mirrorPersona())
	s.Equal(1, s.auditCount(audit.ActionPersonaCompleted))

	events := s.publisher.Events()
	s.Require().NotEmpty(events)
	s.Equal(notify.EventPersonaVerified, events[len(events)-1].Type)
}

func (s *PersonaServiceSuite) TestFailedResultAndRetry() {
	s.initiate()

	err := s.svc.ApplyProviderResult(s.ctx(), ProviderResult{
		DeliveryID:    "dlv_1",
		InquiryID:     "inq_1",
		Outcome:       models.StatusFailed,
		FailureReason: "document expired",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, s.mirrorPersona())
	s.Equal(1, s.auditCount(audit.ActionPersonaFailed))

	s.expectInquiry("inq_2")
	v, err := s.svc.Retry(s.ctx(), s.app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, v.Status)
	s.Equal("inq_2", v.InquiryID)
	s.Empty(v.FailureReason)
	s.Equal(2, s.auditCount(audit.ActionPersonaInitiated), "retry lands in the ledger too")

	s.Run("late result for the superseded inquiry is dropped", func() {
		err := s.svc.ApplyProviderResult(s.ctx(), ProviderResult{
			DeliveryID: "dlv_2",
			InquiryID:  "inq_1",
			Outcome:    models.StatusVerified,
		})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, s.mirrorPersona(), "stale result changed nothing")
	})
}

func (s *PersonaServiceSuite) TestRedeliveryIsIdempotent() {
	s.initiate()
	result := ProviderResult{
		DeliveryID: "dlv_1",
		InquiryID:  "inq_1",
		Outcome:    models.StatusVerified,
	}

	s.Require().NoError(s.svc.ApplyProviderResult(s.ctx(), result))

	// Same delivery ID: dropped by the deduper.
	s.Require().NoError(s.svc.ApplyProviderResult(s.ctx(), result))

	// Fresh delivery ID, same result: dropped by the sub-machine guard.
	result.DeliveryID = "dlv_2"
	s.Require().NoError(s.svc.ApplyProviderResult(s.ctx(), result))

	s.Equal(1, s.auditCount(audit.ActionPersonaCompleted), "one ledger row despite three deliveries")

	var verified int
	for _, e := range s.publisher.Events() {
		if e.Type == notify.EventPersonaVerified {
			verified++
		}
	}
	s.Equal(1, verified, "one event despite three deliveries")
}

// flakyVerificationStore fails a configured number of updates before
// behaving normally, standing in for a transient backend outage.
type flakyVerificationStore struct {
	*verstore.InMemory
	failUpdates int
}

func (f *flakyVerificationStore) Update(ctx context.Context, v *models.Verification) error {
	if f.failUpdates > 0 {
		f.failUpdates--
		return errors.New("verification store offline")
	}
	return f.InMemory.Update(ctx, v)
}

func (s *PersonaServiceSuite) TestRedeliveryAfterFailedApply() {
	store := &flakyVerificationStore{InMemory: verstore.NewInMemory(), failUpdates: 1}
	svc := New(
		store,
		s.apps,
		s.mockProvider,
		audit.NewRecorder(s.auditLog, nil),
		tx.NewMemoryRunner(time.Second),
		WithDeduper(dedupe.NewInMemory(time.Hour)),
	)

	s.expectInquiry("inq_1")
	_, err := svc.Initiate(s.ctx(), s.app.ID)
	s.Require().NoError(err)

	result := ProviderResult{
		DeliveryID: "dlv_1",
		InquiryID:  "inq_1",
		Outcome:    models.StatusVerified,
	}
	s.Require().Error(svc.ApplyProviderResult(s.ctx(), result), "first apply hits the outage")

	// The provider redelivers with the same delivery ID; the failed attempt
	// must not have consumed it.
	s.Require().NoError(svc.ApplyProviderResult(s.ctx(), result))

	v, err := svc.GetVerification(s.ctx(), s.app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, v.Status)
	s.Equal(1, s.auditCount(audit.ActionPersonaCompleted))
}

func (s *PersonaServiceSuite) TestUnknownInquiryAcknowledged() {
	err := s.svc.ApplyProviderResult(s.ctx(), ProviderResult{
		DeliveryID: "dlv_1",
		InquiryID:  "inq_unknown",
		Outcome:    models.StatusVerified,
	})
	s.Require().NoError(err, "unknown inquiries are acknowledged, not retried")
}

func (s *PersonaServiceSuite) TestOverride() {
	s.initiate()
	s.Require().NoError(s.svc.ApplyProviderResult(s.ctx(), ProviderResult{
		DeliveryID: "dlv_1",
		InquiryID:  "inq_1",
		Outcome:    models.StatusFailed,
	}))

	s.Run("requires the override capability", func() {
		ctx := requestcontext.WithActor(s.ctx(), s.admin)
		_, err := s.svc.Override(ctx, s.app.ID, "verified by phone")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("requires a reason", func() {
		_, err := s.svc.Override(s.overrideCtx(), s.app.ID, "  ")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("settles the sub-machine", func() {
		v, err := s.svc.Override(s.overrideCtx(), s.app.ID, "verified by phone")
		s.Require().NoError(err)
		s.Equal(models.StatusOverridden, v.Status)
		s.True(v.Status.Settled())
		s.Equal(models.StatusOverridden, s.mirrorPersona())
		s.Equal(1, s.auditCount(audit.ActionPersonaOverridden))
	})

	s.Run("cannot be overridden twice", func() {
		_, err := s.svc.Override(s.overrideCtx(), s.app.ID, "again")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *PersonaServiceSuite) TestSettledApplicationFreezesSubMachine() {
	s.initiate()
	app, err := s.apps.FindByID(context.Background(), s.app.ID)
	s.Require().NoError(err)
	app.ApplyClosure("duplicate account", id.AdminID(uuid.New()), s.now)
	s.Require().NoError(s.apps.Update(context.Background(), app))

	s.Run("initiate and retry reject", func() {
		_, err := s.svc.Retry(s.ctx(), s.app.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("in-flight result is dropped", func() {
		err := s.svc.ApplyProviderResult(s.ctx(), ProviderResult{
			DeliveryID: "dlv_1",
			InquiryID:  "inq_1",
			Outcome:    models.StatusVerified,
		})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, s.mirrorPersona())
		s.Equal(0, s.auditCount(audit.ActionPersonaCompleted))
	})
}
