// Package handler is the HTTP surface of the identity verification
// sub-machine: applicant-initiated inquiries, the admin override, and the
// provider's webhook intake.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bazaar/internal/persona/models"
	"bazaar/internal/persona/service"
	"bazaar/internal/platform/middleware"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/httputil"
)

// Service is the slice of the verification service the HTTP layer calls.
type Service interface {
	Initiate(ctx context.Context, appID id.ApplicationID) (*models.Verification, error)
	Retry(ctx context.Context, appID id.ApplicationID) (*models.Verification, error)
	Override(ctx context.Context, appID id.ApplicationID, reason string) (*models.Verification, error)
	GetVerification(ctx context.Context, appID id.ApplicationID) (*models.Verification, error)
	ApplyProviderResult(ctx context.Context, result service.ProviderResult) error
}

// Handler serves the verification endpoints.
type Handler struct {
	svc           Service
	logger        *slog.Logger
	adminSecret   string
	webhookSecret string
}

// New wires the verification handler. adminSecret authenticates the admin
// surface; webhookSecret authenticates provider callbacks.
func New(svc Service, logger *slog.Logger, adminSecret, webhookSecret string) *Handler {
	return &Handler{svc: svc, logger: logger, adminSecret: adminSecret, webhookSecret: webhookSecret}
}

// Register adds the three surfaces as route groups: applicant inquiry
// management, the admin override and read, and the webhook intake. Groups
// rather than mounted subrouters, so the workflow handler can share the
// same router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(applicant chi.Router) {
		applicant.Use(middleware.ContentTypeJSON)
		applicant.Post("/applications/{applicationID}/verification", h.handleInitiate)
		applicant.Post("/applications/{applicationID}/verification/retry", h.handleRetry)
		applicant.Get("/applications/{applicationID}/verification", h.handleGet)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.ContentTypeJSON)
		admin.Use(middleware.RequireAdmin(h.adminSecret, h.logger))
		admin.Get("/admin/applications/{applicationID}/verification", h.handleGet)
		admin.Post("/admin/applications/{applicationID}/verification/override", h.handleOverride)
	})

	r.Group(func(webhook chi.Router) {
		webhook.Use(middleware.RequireWebhookSecret(h.webhookSecret, h.logger))
		webhook.Post("/hooks/webhooks/persona", h.handleWebhook)
	})
}

type verificationResponse struct {
	ApplicationID   id.ApplicationID `json:"application_id"`
	InquiryID       string           `json:"inquiry_id"`
	Status          string           `json:"status"`
	VerificationURL string           `json:"verification_url,omitempty"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	Overridden      bool             `json:"overridden,omitempty"`
	OverrideReason  string           `json:"override_reason,omitempty"`
	VerifiedAt      *time.Time       `json:"verified_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func toVerificationResponse(v *models.Verification) verificationResponse {
	return verificationResponse{
		ApplicationID:   v.ApplicationID,
		InquiryID:       v.InquiryID,
		Status:          v.Status.String(),
		VerificationURL: v.VerificationURL,
		FailureReason:   v.FailureReason,
		Overridden:      v.Overridden,
		OverrideReason:  v.OverrideReason,
		VerifiedAt:      v.VerifiedAt,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusCreated, h.svc.Initiate)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.svc.Retry)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.svc.GetVerification)
}

type overrideRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.svc.Override(r.Context(), appID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(v))
}

// webhookPayload is the provider's delivery shape. The whole body is also
// retained verbatim on the verification record.
type webhookPayload struct {
	DeliveryID    string `json:"delivery_id"`
	InquiryID     string `json:"inquiry_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// maxWebhookBody bounds provider payload retention; inquiries carry small
// summaries, not documents.
const maxWebhookBody = 1 << 20

// webhookStatuses maps provider outcome strings onto sub-machine statuses.
var webhookStatuses = map[string]models.Status{
	"completed":         models.StatusVerified,
	"failed":            models.StatusFailed,
	"marked-for-review": models.StatusUnderReview,
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unreadable webhook body"))
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed webhook body"))
		return
	}
	outcome, ok := webhookStatuses[payload.Status]
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "unknown webhook status %q", payload.Status))
		return
	}

	err = h.svc.ApplyProviderResult(r.Context(), service.ProviderResult{
		DeliveryID:    payload.DeliveryID,
		InquiryID:     payload.InquiryID,
		Outcome:       outcome,
		FailureReason: payload.FailureReason,
		Payload:       json.RawMessage(body),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, call func(ctx context.Context, appID id.ApplicationID) (*models.Verification, error)) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	v, err := call(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, toVerificationResponse(v))
}

func (h *Handler) pathApplicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return appID, true
}
