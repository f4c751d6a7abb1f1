// Package handler is the HTTP surface of the onboarding workflow. It decodes
// requests, delegates to the service, and renders DTOs; no workflow rules
// live here.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bazaar/internal/audit"
	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/service"
	"bazaar/internal/onboarding/store/application"
	"bazaar/internal/platform/middleware"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/httputil"
	"bazaar/pkg/structured"
)

// Service is the slice of the workflow service the HTTP layer calls.
type Service interface {
	CreateApplication(ctx context.Context, vendorID id.VendorID, appType models.ApplicationType) (*models.Application, error)
	GetApplication(ctx context.Context, appID id.ApplicationID) (*service.ApplicationDetail, error)
	GetVendorApplication(ctx context.Context, vendorID id.VendorID) (*service.ApplicationDetail, error)
	ListApplications(ctx context.Context, filter application.ListFilter) ([]*models.Application, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	AuditTrail(ctx context.Context, appID id.ApplicationID) ([]audit.Entry, error)
	SoftDelete(ctx context.Context, appID id.ApplicationID) error

	BeginReview(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Approve(ctx context.Context, appID id.ApplicationID, note string) (*models.Application, error)
	Reject(ctx context.Context, appID id.ApplicationID, reason string, notifyUser bool) (*models.Application, error)
	RequestRevision(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error)
	CompleteRevision(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Reopen(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error)
	Close(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error)

	CompleteStep(ctx context.Context, appID id.ApplicationID, number int, data structured.Value, files []models.FileRef) (*models.Step, error)
	SaveStepDraft(ctx context.Context, appID id.ApplicationID, number int, data structured.Value) (*models.Step, error)
	SkipStep(ctx context.Context, appID id.ApplicationID, number int) (*models.Step, error)
	RequestStepRevision(ctx context.Context, appID id.ApplicationID, number int, notes string) (*models.Step, error)

	AddNote(ctx context.Context, appID id.ApplicationID, classification models.NoteClassification, content string) (*models.Note, error)
	ListNotes(ctx context.Context, appID id.ApplicationID, applicantView bool) ([]*models.Note, error)
}

// Handler serves the admin review surface and the applicant surface.
type Handler struct {
	svc         Service
	logger      *slog.Logger
	adminSecret string
}

// New wires the workflow handler. adminSecret signs the admin surface's
// bearer tokens.
func New(svc Service, logger *slog.Logger, adminSecret string) *Handler {
	return &Handler{svc: svc, logger: logger, adminSecret: adminSecret}
}

// Register adds both surfaces to the router. The admin group carries bearer
// authentication; the applicant group is fronted by the vendor gateway, which
// authenticates upstream. Other features register their own routes on the
// same router, so these are groups rather than mounted subrouters.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.ContentTypeJSON)
		admin.Use(middleware.RequireAdmin(h.adminSecret, h.logger))
		admin.Get("/admin/applications", h.handleList)
		admin.Get("/admin/applications/counts", h.handleCounts)
		admin.Get("/admin/applications/{applicationID}", h.handleGet)
		admin.Get("/admin/applications/{applicationID}/audit", h.handleAuditTrail)
		admin.Get("/admin/applications/{applicationID}/notes", h.handleListNotes(false))
		admin.Post("/admin/applications/{applicationID}/notes", h.handleAddNote)
		admin.Post("/admin/applications/{applicationID}/review", h.handleBeginReview)
		admin.Post("/admin/applications/{applicationID}/approve", h.handleApprove)
		admin.Post("/admin/applications/{applicationID}/reject", h.handleReject)
		admin.Post("/admin/applications/{applicationID}/request-revision", h.handleRequestRevision)
		admin.Post("/admin/applications/{applicationID}/reopen", h.handleReopen)
		admin.Post("/admin/applications/{applicationID}/close", h.handleClose)
		admin.Post("/admin/applications/{applicationID}/steps/{number}/request-revision", h.handleStepRevision)
		admin.Delete("/admin/applications/{applicationID}", h.handleSoftDelete)
	})

	r.Group(func(applicant chi.Router) {
		applicant.Use(middleware.ContentTypeJSON)
		applicant.Post("/applications", h.handleCreate)
		applicant.Get("/applications/{applicationID}", h.handleGet)
		applicant.Get("/applications/{applicationID}/notes", h.handleListNotes(true))
		applicant.Post("/applications/{applicationID}/submit-revision", h.handleCompleteRevision)
		applicant.Post("/applications/{applicationID}/steps/{number}/complete", h.handleCompleteStep)
		applicant.Post("/applications/{applicationID}/steps/{number}/draft", h.handleSaveDraft)
		applicant.Post("/applications/{applicationID}/steps/{number}/skip", h.handleSkipStep)
		applicant.Get("/vendors/{vendorID}/application", h.handleVendorApplication)
	})
}

// pathApplicationID parses the application ID route parameter, writing the
// error response itself on failure.
func (h *Handler) pathApplicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return appID, true
}
