package handler

import (
	"net/http"
	"strconv"

	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/store/application"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/httputil"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type transitionCall func(r *http.Request, appID id.ApplicationID, reason string) (*models.Application, error)

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := application.ListFilter{
		Status: models.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	apps, err := h.svc.ListApplications(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"applications": out})
}

func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.CountByStatus(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[status.String()] = n
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"counts": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.GetApplication(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	trail, err := h.svc.AuditTrail(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": toAuditResponses(trail)})
}

func (h *Handler) handleBeginReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, appID id.ApplicationID, _ string) (*models.Application, error) {
		return h.svc.BeginReview(r.Context(), appID)
	}, false)
}

type approveRequest struct {
	Note string `json:"note"`
}

// handleApprove takes an optional body carrying an internal note to file with
// the approval.
func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	app, err := h.svc.Approve(r.Context(), appID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

type rejectRequest struct {
	Reason     string `json:"reason"`
	NotifyUser bool   `json:"notify_user"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.svc.Reject(r.Context(), appID, req.Reason, req.NotifyUser)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) handleRequestRevision(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, appID id.ApplicationID, reason string) (*models.Application, error) {
		return h.svc.RequestRevision(r.Context(), appID, reason)
	}, true)
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, appID id.ApplicationID, reason string) (*models.Application, error) {
		return h.svc.Reopen(r.Context(), appID, reason)
	}, true)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(r *http.Request, appID id.ApplicationID, reason string) (*models.Application, error) {
		return h.svc.Close(r.Context(), appID, reason)
	}, true)
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	if err := h.svc.SoftDelete(r.Context(), appID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addNoteRequest struct {
	Classification string `json:"classification"`
	Content        string `json:"content"`
}

func (h *Handler) handleAddNote(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	var req addNoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	note, err := h.svc.AddNote(r.Context(), appID, models.NoteClassification(req.Classification), req.Content)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toNoteResponses([]*models.Note{note})[0])
}

func (h *Handler) handleListNotes(applicantView bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, ok := h.pathApplicationID(w, r)
		if !ok {
			return
		}
		notes, err := h.svc.ListNotes(r.Context(), appID, applicantView)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"notes": toNoteResponses(notes)})
	}
}

type stepRevisionRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleStepRevision(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}
	number, ok := h.pathStepNumber(w, r)
	if !ok {
		return
	}
	var req stepRevisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	step, err := h.svc.RequestStepRevision(r.Context(), appID, number, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStepResponse(step))
}

// transition runs the shared decode-call-respond shape of the lifecycle
// endpoints. Endpoints whose operation takes no reason skip body decoding so
// POSTs without a body stay valid.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, call transitionCall, wantReason bool) {
	appID, ok := h.pathApplicationID(w, r)
	if !ok {
		return
	}

	var reason string
	if wantReason {
		var req reasonRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
		reason = req.Reason
	}

	app, err := call(r, appID, reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	if n < 0 {
		return 0
	}
	return n
}
