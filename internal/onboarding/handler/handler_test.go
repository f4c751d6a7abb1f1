package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bazaar/internal/audit"
	"bazaar/internal/onboarding/service"
	appstore "bazaar/internal/onboarding/store/application"
	notestore "bazaar/internal/onboarding/store/note"
	stepstore "bazaar/internal/onboarding/store/step"
	"bazaar/internal/platform/middleware"
	"bazaar/pkg/platform/tx"
)

const testSecret = "handler-test-secret"

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	svc := service.New(
		appstore.NewInMemory(),
		stepstore.NewInMemory(),
		notestore.NewInMemory(),
		audit.NewRecorder(audit.NewInMemoryStore(), nil),
		tx.NewMemoryRunner(time.Second),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger, testSecret)

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RequestTime)
	h.Register(s.router)
}

func (s *HandlerSuite) adminToken(override bool) string {
	claims := middleware.AdminClaims{
		Name:     "Dana",
		Override: override,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// createApplication drives the applicant endpoint and returns the new ID.
func (s *HandlerSuite) createApplication() string {
	w := s.do(http.MethodPost, "/applications", "", map[string]any{
		"vendor_id": uuid.NewString(),
		"type":      "STANDARD",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["id"].(string)
}

func (s *HandlerSuite) TestAdminSurfaceRequiresToken() {
	w := s.do(http.MethodGet, "/admin/applications", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/admin/applications", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestCreateAndFetch() {
	appID := s.createApplication()
	token := s.adminToken(false)

	w := s.do(http.MethodGet, "/admin/applications/"+appID, token, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	body := s.decode(w)
	app := body["application"].(map[string]any)
	s.Equal("PENDING", app["status"])
	s.Equal("NOT_STARTED", app["persona_status"])
	s.Len(body["steps"], 5)
	s.NotNil(body["guards"])

	s.Run("malformed id is a 400", func() {
		w := s.do(http.MethodGet, "/admin/applications/not-a-uuid", token, nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unknown id is a 404", func() {
		w := s.do(http.MethodGet, "/admin/applications/"+uuid.NewString(), token, nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestLifecycleEndpoints() {
	appID := s.createApplication()
	token := s.adminToken(false)
	base := "/admin/applications/" + appID

	w := s.do(http.MethodPost, base+"/review", token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("UNDER_REVIEW", s.decode(w)["status"])

	s.Run("reject without a reason is a 400", func() {
		w := s.do(http.MethodPost, base+"/reject", token, map[string]any{"reason": ""})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	w = s.do(http.MethodPost, base+"/approve", token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("APPROVED", s.decode(w)["status"])

	s.Run("approved is terminal over HTTP too", func() {
		w := s.do(http.MethodPost, base+"/reject", token, map[string]any{"reason": "late doubts"})
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestReopenPrivilegeOverHTTP() {
	appID := s.createApplication()
	base := "/admin/applications/" + appID
	plain := s.adminToken(false)

	w := s.do(http.MethodPost, base+"/close", plain, map[string]any{"reason": "duplicate account"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, base+"/reopen", plain, map[string]any{"reason": "appeal granted"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, base+"/reopen", s.adminToken(true), map[string]any{"reason": "appeal granted"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("UNDER_REVIEW", s.decode(w)["status"])
}

func (s *HandlerSuite) TestStepEndpoints() {
	appID := s.createApplication()
	base := "/applications/" + appID + "/steps"

	w := s.do(http.MethodPost, base+"/1/complete", "", map[string]any{
		"data": map[string]any{"legal_name": "Acme Imports LLC"},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	step := s.decode(w)
	s.Equal("COMPLETED", step["status"])

	w = s.do(http.MethodPost, base+"/5/skip", "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("SKIPPED", s.decode(w)["status"])

	s.Run("mandatory step cannot be skipped", func() {
		w := s.do(http.MethodPost, base+"/2/skip", "", nil)
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("unknown step number is a 404", func() {
		w := s.do(http.MethodPost, base+"/42/skip", "", nil)
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("garbage step number is a 400", func() {
		w := s.do(http.MethodPost, base+"/first/skip", "", nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestNotesVisibilityOverHTTP() {
	appID := s.createApplication()
	token := s.adminToken(false)

	w := s.do(http.MethodPost, "/admin/applications/"+appID+"/notes", token, map[string]any{
		"classification": "USER_FACING",
		"content":        "please upload your W-9",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/admin/applications/"+appID+"/notes", token, map[string]any{
		"classification": "ADMIN_INTERNAL",
		"content":        "called vendor, voicemail",
	})
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/applications/"+appID+"/notes", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["notes"], 1, "applicant surface hides internal notes")

	w = s.do(http.MethodGet, "/admin/applications/"+appID+"/notes", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["notes"], 2)
}

func (s *HandlerSuite) TestVendorLookup() {
	vendorID := uuid.NewString()
	w := s.do(http.MethodPost, "/applications", "", map[string]any{
		"vendor_id": vendorID,
		"type":      "REGULATED",
	})
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/vendors/"+vendorID+"/application", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Len(body["steps"], 6, "regulated template carries the compliance step")

	s.Run("vendor without an application is a 404", func() {
		w := s.do(http.MethodGet, "/vendors/"+uuid.NewString()+"/application", "", nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestListAndCounts() {
	s.createApplication()
	s.createApplication()
	token := s.adminToken(false)

	w := s.do(http.MethodGet, "/admin/applications?status=PENDING", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["applications"], 2)

	s.Run("bad status filter is a 400", func() {
		w := s.do(http.MethodGet, "/admin/applications?status=LIMBO", token, nil)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	w = s.do(http.MethodGet, "/admin/applications/counts", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	counts := s.decode(w)["counts"].(map[string]any)
	s.Equal(float64(2), counts["PENDING"])
}
