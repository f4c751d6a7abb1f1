package handler

import (
	"bytes"
	"context"
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
	appmodels "bazaar/internal/onboarding/models"
	appstore "bazaar/internal/onboarding/store/application"
	"bazaar/internal/persona/dedupe"
	"bazaar/internal/persona/provider"
	"bazaar/internal/persona/service"
	verstore "bazaar/internal/persona/store/verification"
	"bazaar/internal/platform/middleware"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/tx"
)

const (
	testAdminSecret   = "persona-handler-admin-secret"
	testWebhookSecret = "persona-handler-webhook-secret"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
	appID  id.ApplicationID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	apps := appstore.NewInMemory()
	svc := service.New(
		verstore.NewInMemory(),
		apps,
		provider.NewSandbox(),
		audit.NewRecorder(audit.NewInMemoryStore(), nil),
		tx.NewMemoryRunner(time.Second),
		service.WithDeduper(dedupe.NewInMemory(time.Hour)),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger, testAdminSecret, testWebhookSecret)

	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RequestTime)
	h.Register(s.router)

	app, err := appmodels.NewApplication(id.NewApplicationID(), id.VendorID(uuid.New()), appmodels.TypeStandard, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(apps.Create(context.Background(), app))
	s.appID = app.ID
}

func (s *HandlerSuite) overrideToken() string {
	claims := middleware.AdminClaims{
		Name:     "Dana",
		Override: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
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

func (s *HandlerSuite) initiate() string {
	w := s.do(http.MethodPost, "/applications/"+s.appID.String()+"/verification", nil, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["inquiry_id"].(string)
}

func (s *HandlerSuite) TestInitiateAndGet() {
	inquiryID := s.initiate()
	s.NotEmpty(inquiryID)

	w := s.do(http.MethodGet, "/applications/"+s.appID.String()+"/verification", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("PENDING", body["status"])
	s.Equal(inquiryID, body["inquiry_id"])
	s.Contains(body["verification_url"], inquiryID)

	s.Run("second initiate is a 409", func() {
		w := s.do(http.MethodPost, "/applications/"+s.appID.String()+"/verification", nil, nil)
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("before initiation is a 404", func() {
		w := s.do(http.MethodGet, "/applications/"+uuid.NewString()+"/verification", nil, nil)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestWebhook() {
	inquiryID := s.initiate()
	path := "/hooks/webhooks/persona"
	secret := map[string]string{"X-Webhook-Secret": testWebhookSecret}

	s.Run("requires the shared secret", func() {
		w := s.do(http.MethodPost, path, map[string]any{"inquiry_id": inquiryID, "status": "completed"}, nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("unknown status is a 400", func() {
		w := s.do(http.MethodPost, path, map[string]any{"inquiry_id": inquiryID, "status": "vanished"}, secret)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("applies the result", func() {
		w := s.do(http.MethodPost, path, map[string]any{
			"delivery_id": "dlv_1",
			"inquiry_id":  inquiryID,
			"status":      "completed",
		}, secret)
		s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())

		got := s.do(http.MethodGet, "/applications/"+s.appID.String()+"/verification", nil, nil)
		s.Equal("VERIFIED", s.decode(got)["status"])
	})

	s.Run("redelivery stays 204", func() {
		w := s.do(http.MethodPost, path, map[string]any{
			"delivery_id": "dlv_1",
			"inquiry_id":  inquiryID,
			"status":      "completed",
		}, secret)
		s.Equal(http.StatusNoContent, w.Code)
	})
}

func (s *HandlerSuite) TestRetryAfterFailure() {
	inquiryID := s.initiate()
	secret := map[string]string{"X-Webhook-Secret": testWebhookSecret}

	w := s.do(http.MethodPost, "/hooks/webhooks/persona", map[string]any{
		"delivery_id":    "dlv_1",
		"inquiry_id":     inquiryID,
		"status":         "failed",
		"failure_reason": "document expired",
	}, secret)
	s.Require().Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/applications/"+s.appID.String()+"/verification/retry", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal("PENDING", body["status"])
	s.NotEqual(inquiryID, body["inquiry_id"])
}

func (s *HandlerSuite) TestOverride() {
	s.initiate()
	path := "/admin/applications/" + s.appID.String() + "/verification/override"

	s.Run("requires a token", func() {
		w := s.do(http.MethodPost, path, map[string]any{"reason": "verified by phone"}, nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	token := map[string]string{"Authorization": "Bearer " + s.overrideToken()}

	s.Run("requires a reason", func() {
		w := s.do(http.MethodPost, path, map[string]any{"reason": ""}, token)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("settles verification", func() {
		w := s.do(http.MethodPost, path, map[string]any{"reason": "verified by phone"}, token)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		body := s.decode(w)
		s.Equal("OVERRIDDEN", body["status"])
		s.Equal(true, body["overridden"])
	})
}
