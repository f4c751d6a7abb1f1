package handler

import (
	"time"

	"bazaar/internal/audit"
	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/service"
	id "bazaar/pkg/domain"
	"bazaar/pkg/structured"
)

// applicationResponse is the wire shape of an application. Admin-only fields
// ride along empty on the applicant surface; nothing here is sensitive beyond
// what the vendor already submitted or was told.
type applicationResponse struct {
	ID          id.ApplicationID `json:"id"`
	VendorID    id.VendorID      `json:"vendor_id"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	CurrentStep int              `json:"current_step"`
	TotalSteps  int              `json:"total_steps"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`
	RevisionReason  string `json:"revision_reason,omitempty"`
	CloseReason     string `json:"close_reason,omitempty"`
	ReopenReason    string `json:"reopen_reason,omitempty"`

	RevisionRequested bool `json:"revision_requested"`

	PersonaStatus     string     `json:"persona_status"`
	PersonaInquiryID  string     `json:"persona_inquiry_id,omitempty"`
	PersonaVerifiedAt *time.Time `json:"persona_verified_at,omitempty"`
	PersonaOverridden bool       `json:"persona_overridden,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toApplicationResponse(app *models.Application) applicationResponse {
	return applicationResponse{
		ID:                app.ID,
		VendorID:          app.VendorID,
		Type:              app.Type.String(),
		Status:            app.Status.String(),
		CurrentStep:       app.CurrentStep,
		TotalSteps:        app.TotalSteps,
		SubmittedAt:       app.SubmittedAt,
		ReviewedAt:        app.ReviewedAt,
		ApprovedAt:        app.ApprovedAt,
		RejectedAt:        app.RejectedAt,
		ClosedAt:          app.ClosedAt,
		RejectionReason:   app.RejectionReason,
		RevisionReason:    app.RevisionReason,
		CloseReason:       app.CloseReason,
		ReopenReason:      app.ReopenReason,
		RevisionRequested: app.RevisionRequested,
		PersonaStatus:     app.PersonaStatus.String(),
		PersonaInquiryID:  app.PersonaInquiryID,
		PersonaVerifiedAt: app.PersonaVerifiedAt,
		PersonaOverridden: app.PersonaOverridden,
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}
}

type stepResponse struct {
	Number           int              `json:"number"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Optional         bool             `json:"optional"`
	Status           string           `json:"status"`
	Data             structured.Value `json:"data,omitempty"`
	Files            []models.FileRef `json:"files,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	RevisionRequired bool             `json:"revision_required"`
	RevisionNotes    string           `json:"revision_notes,omitempty"`
}

func toStepResponse(step *models.Step) stepResponse {
	return stepResponse{
		Number:           step.Number,
		Name:             step.Name,
		Slug:             step.Slug,
		Optional:         step.Optional,
		Status:           string(step.Status),
		Data:             step.Data,
		Files:            step.Files,
		CompletedAt:      step.CompletedAt,
		RevisionRequired: step.RevisionRequired,
		RevisionNotes:    step.RevisionNotes,
	}
}

type detailResponse struct {
	Application applicationResponse `json:"application"`
	Steps       []stepResponse      `json:"steps"`
	Guards      models.Guards       `json:"guards"`
}

func toDetailResponse(detail *service.ApplicationDetail) detailResponse {
	steps := make([]stepResponse, 0, len(detail.Steps))
	for _, step := range detail.Steps {
		steps = append(steps, toStepResponse(step))
	}
	return detailResponse{
		Application: toApplicationResponse(detail.Application),
		Steps:       steps,
		Guards:      detail.Guards,
	}
}

type noteResponse struct {
	ID             id.NoteID `json:"id"`
	Classification string    `json:"classification"`
	Content        string    `json:"content"`
	AuthorName     string    `json:"author_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toNoteResponses(notes []*models.Note) []noteResponse {
	out := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteResponse{
			ID:             n.ID,
			Classification: string(n.Classification),
			Content:        n.Content,
			AuthorName:     n.AuthorName,
			CreatedAt:      n.CreatedAt,
		})
	}
	return out
}

type auditEntryResponse struct {
	ID        id.AuditEntryID  `json:"id"`
	Action    string           `json:"action"`
	ActorID   *id.AdminID      `json:"actor_id,omitempty"`
	ActorName string           `json:"actor_name,omitempty"`
	Metadata  structured.Value `json:"metadata,omitempty"`
	IP        string           `json:"ip,omitempty"`
	UserAgent string           `json:"user_agent,omitempty"`
	Country   string           `json:"country,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func toAuditResponses(entries []audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			Action:    e.Action.String(),
			ActorID:   e.ActorID,
			ActorName: e.ActorName,
			Metadata:  e.Metadata,
			IP:        e.IP,
			UserAgent: e.UserAgent,
			Country:   e.Country,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
