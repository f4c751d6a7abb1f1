//go:build integration

package step_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/store/application"
	"bazaar/internal/onboarding/store/step"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/structured"
	"bazaar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	apps     *application.PostgresStore
	store    *step.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.apps = application.NewPostgres(s.postgres.DB)
	s.store = step.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "application_steps", "applications")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedApplication() *models.Application {
	app, err := models.NewApplication(id.NewApplicationID(), id.VendorID(uuid.New()), models.TypeStandard, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.apps.Create(context.Background(), app))
	return app
}

// TestBatchAndUniqueness verifies the seeded checklist persists and the
// (application_id, number) constraint rejects duplicates.
func (s *PostgresStoreSuite) TestBatchAndUniqueness() {
	ctx := context.Background()
	app := s.seedApplication()
	now := time.Now().UTC()

	steps := models.SeedSteps(app.ID, models.TypeStandard, now)
	s.Require().NoError(s.store.CreateBatch(ctx, steps))

	listed, err := s.store.ListByApplication(ctx, app.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, len(steps))
	for i, st := range listed {
		s.Equal(i+1, st.Number, "ordered by number")
	}

	err = s.store.CreateBatch(ctx, models.SeedSteps(app.ID, models.TypeStandard, now))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

// TestJSONBRoundTrip verifies structured data and file descriptors survive
// the JSONB columns intact.
func (s *PostgresStoreSuite) TestJSONBRoundTrip() {
	ctx := context.Background()
	app := s.seedApplication()
	now := time.Now().UTC().Truncate(time.Microsecond)

	steps := models.SeedSteps(app.ID, models.TypeStandard, now)
	s.Require().NoError(s.store.CreateBatch(ctx, steps))

	first := steps[0]
	first.ApplyCompletion(structured.Map(map[string]structured.Value{
		"legal_name": structured.String("Acme Imports LLC"),
		"employees":  structured.Int(12),
		"regulated":  structured.Bool(false),
	}), []models.FileRef{
		{Name: "w9.pdf", ContentType: "application/pdf", SizeBytes: 48213, StorageKey: "uploads/w9.pdf"},
	}, now)
	s.Require().NoError(s.store.Update(ctx, first))

	found, err := s.store.FindByNumber(ctx, app.ID, 1)
	s.Require().NoError(err)
	s.Equal(models.StepStatusCompleted, found.Status)

	name, ok := found.Data.Get("legal_name")
	s.Require().True(ok)
	s.Equal("Acme Imports LLC", name.Str())
	employees, ok := found.Data.Get("employees")
	s.Require().True(ok)
	s.Equal(int64(12), employees.IntVal())

	s.Require().Len(found.Files, 1)
	s.Equal("w9.pdf", found.Files[0].Name)
	s.Equal(int64(48213), found.Files[0].SizeBytes)
}

// TestUpdateUnknownRow verifies updates to missing rows surface ErrNotFound.
func (s *PostgresStoreSuite) TestUpdateUnknownRow() {
	ctx := context.Background()
	ghost := models.SeedSteps(id.NewApplicationID(), models.TypeStandard, time.Now().UTC())[0]
	s.Require().ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)

	_, err := s.store.FindByNumber(ctx, id.NewApplicationID(), 1)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
