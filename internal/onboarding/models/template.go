package models

import (
	"time"

	id "bazaar/pkg/domain"
)

// ApplicationType selects the fixed step template an application is seeded
// with. Regulated categories carry an extra compliance step.
type ApplicationType string

const (
	TypeStandard  ApplicationType = "STANDARD"
	TypeRegulated ApplicationType = "REGULATED"
)

// IsValid reports membership in the closed enum.
func (t ApplicationType) IsValid() bool { return t == TypeStandard || t == TypeRegulated }

func (t ApplicationType) String() string { return string(t) }

// TemplateStep is one entry of a step template.
type TemplateStep struct {
	Number   int
	Name     string
	Slug     string
	Optional bool
}

var standardTemplate = []TemplateStep{
	{Number: 1, Name: "Business profile", Slug: "business-profile"},
	{Number: 2, Name: "Contact details", Slug: "contact-details"},
	{Number: 3, Name: "Tax documents", Slug: "tax-documents"},
	{Number: 4, Name: "Bank account", Slug: "bank-account"},
	{Number: 5, Name: "Product plan", Slug: "product-plan", Optional: true},
}

var regulatedTemplate = append(append([]TemplateStep{}, standardTemplate...),
	TemplateStep{Number: 6, Name: "Compliance certificates", Slug: "compliance-certificates"},
)

// StepTemplate returns the ordered template for an application type.
func StepTemplate(t ApplicationType) []TemplateStep {
	switch t {
	case TypeRegulated:
		return regulatedTemplate
	default:
		return standardTemplate
	}
}

// SeedSteps materializes the template into step rows for a new application.
func SeedSteps(appID id.ApplicationID, t ApplicationType, now time.Time) []*Step {
	template := StepTemplate(t)
	steps := make([]*Step, 0, len(template))
	for _, ts := range template {
		steps = append(steps, &Step{
			ID:            id.NewStepID(),
			ApplicationID: appID,
			Number:        ts.Number,
			Name:          ts.Name,
			Slug:          ts.Slug,
			Optional:      ts.Optional,
			Status:        StepStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return steps
}
