//go:build integration

package note_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/store/application"
	"bazaar/internal/onboarding/store/note"
	id "bazaar/pkg/domain"
	"bazaar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	apps     *application.PostgresStore
	store    *note.PostgresStore
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
	s.store = note.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "application_notes", "applications")
	s.Require().NoError(err)
}

// TestAppendListAndApplicantView verifies ordering and the classification
// filter applied for the applicant-facing listing.
func (s *PostgresStoreSuite) TestAppendListAndApplicantView() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	app, err := models.NewApplication(id.NewApplicationID(), id.VendorID(uuid.New()), models.TypeStandard, now)
	s.Require().NoError(err)
	s.Require().NoError(s.apps.Create(ctx, app))

	admin := id.AdminID(uuid.New())
	internal, err := models.NewNote(app.ID, models.NoteAdminInternal, "internal assessment", &admin, "Dana", now)
	s.Require().NoError(err)
	visible, err := models.NewNote(app.ID, models.NoteUserFacing, "please upload your W-9", &admin, "Dana", now.Add(time.Minute))
	s.Require().NoError(err)
	system, err := models.NewNote(app.ID, models.NoteSystem, "identity verification completed", nil, "", now.Add(2*time.Minute))
	s.Require().NoError(err)

	for _, n := range []*models.Note{internal, visible, system} {
		s.Require().NoError(s.store.Append(ctx, n))
	}

	all, err := s.store.ListByApplication(ctx, app.ID, false)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(internal.ID, all[0].ID, "oldest first")
	s.Nil(all[2].AuthorID, "system note has no author")

	applicant, err := s.store.ListByApplication(ctx, app.ID, true)
	s.Require().NoError(err)
	s.Require().Len(applicant, 1)
	s.Equal(visible.ID, applicant[0].ID)
}
