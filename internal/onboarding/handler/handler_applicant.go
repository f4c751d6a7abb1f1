package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/httputil"
	"bazaar/pkg/structured"
)

type createApplicationRequest struct {
	VendorID string `json:"vendor_id"`
	Type     string `json:"type"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	vendorID, err := id.ParseVendorID(req.VendorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.svc.CreateApplication(r.Context(), vendorID, models.ApplicationType(req.Type))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toApplicationResponse(app))
}

func (h *Handler) handleVendorApplication(w http.ResponseWriter, r *http.Request) {
	vendorID, err := id.ParseVendorID(chi.URLParam(r, "vendorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.svc.GetVendorApplication(r.Context(), vendorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) handleCompleteRevision(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	app, err := h.svc.CompleteRevision(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

type stepSubmission struct {
	Data  structured.Value `json:"data"`
	Files []models.FileRef `json:"files"`
}

func (h *Handler) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	appID, number, req, ok := h.decodeStepSubmission(w, r)
	if !ok {
		return
	}
	step, err := h.svc.CompleteStep(r.Context(), appID, number, req.Data, req.Files)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStepResponse(step))
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	appID, number, req, ok := h.decodeStepSubmission(w, r)
	if !ok {
		return
	}
	step, err := h.svc.SaveStepDraft(r.Context(), appID, number, req.Data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStepResponse(step))
}

func (h *Handler) handleSkipStep(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	number, ok := h.pathStepNumber(w, r)
	if !ok {
		return
	}
	step, err := h.svc.SkipStep(r.Context(), appID, number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStepResponse(step))
}

func (h *Handler) decodeStepSubmission(w http.ResponseWriter, r *http.Request) (id.ApplicationID, int, stepSubmission, bool) {
	var zero stepSubmission
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return id.ApplicationID{}, 0, zero, false
	}
	number, ok := h.pathStepNumber(w, r)
	if !ok {
		return id.ApplicationID{}, 0, zero, false
	}
	var req stepSubmission
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, 0, zero, false
	}
	return appID, number, req, true
}

func (h *Handler) pathStepNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid step number"))
		return 0, false
	}
	return number, true
}
