package verification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) newVerification(inquiryID string) *models.Verification {
	v, err := models.NewVerification(id.NewApplicationID(), inquiryID, "https://verify.example/"+inquiryID, s.now)
	s.Require().NoError(err)
	return v
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	v := s.newVerification("inq_1")
	s.Require().NoError(s.store.Create(s.ctx, v))

	s.Run("one record per application", func() {
		dup := *v
		s.Require().ErrorIs(s.store.Create(s.ctx, &dup), sentinel.ErrConflict)
	})

	s.Run("by application", func() {
		found, err := s.store.FindByApplication(s.ctx, v.ApplicationID)
		s.Require().NoError(err)
		s.Equal(v.InquiryID, found.InquiryID)
	})

	s.Run("by inquiry", func() {
		found, err := s.store.FindByInquiry(s.ctx, "inq_1")
		s.Require().NoError(err)
		s.Equal(v.ApplicationID, found.ApplicationID)
	})

	s.Run("unknown lookups miss", func() {
		_, err := s.store.FindByApplication(s.ctx, id.NewApplicationID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByInquiry(s.ctx, "inq_unknown")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestUpdate() {
	v := s.newVerification("inq_1")
	s.Require().NoError(s.store.Create(s.ctx, v))

	v.ApplyResult(models.StatusVerified, json.RawMessage(`{"ok":true}`), "", s.now)
	s.Require().NoError(s.store.Update(s.ctx, v))

	found, err := s.store.FindByApplication(s.ctx, v.ApplicationID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, found.Status)
	s.JSONEq(`{"ok":true}`, string(found.RawPayload))

	s.Run("unknown row", func() {
		other := s.newVerification("inq_2")
		s.Require().ErrorIs(s.store.Update(s.ctx, other), sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestRetrySupersedesInquiryLookup() {
	v := s.newVerification("inq_1")
	s.Require().NoError(s.store.Create(s.ctx, v))

	v.ApplyResult(models.StatusFailed, nil, "blurry", s.now)
	v.ApplyRetry("inq_2", "https://verify.example/inq_2", s.now)
	s.Require().NoError(s.store.Update(s.ctx, v))

	_, err := s.store.FindByInquiry(s.ctx, "inq_1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	found, err := s.store.FindByInquiry(s.ctx, "inq_2")
	s.Require().NoError(err)
	s.Equal(v.ApplicationID, found.ApplicationID)
}

func (s *MemoryStoreSuite) TestCloneIsolation() {
	v := s.newVerification("inq_1")
	v.RawPayload = json.RawMessage(`{"n":1}`)
	s.Require().NoError(s.store.Create(s.ctx, v))

	v.RawPayload[5] = '2'
	found, err := s.store.FindByApplication(s.ctx, v.ApplicationID)
	s.Require().NoError(err)
	s.JSONEq(`{"n":1}`, string(found.RawPayload))
}
