// Package provider abstracts the hosted identity verification vendor. The
// engine only ever asks it to mint inquiries; results arrive asynchronously
// over the webhook.
package provider

import (
	"context"

	id "bazaar/pkg/domain"
)

// InquiryRequest carries everything the vendor needs to open a hosted
// verification flow for one applicant.
type InquiryRequest struct {
	ApplicationID id.ApplicationID
	VendorID      id.VendorID
}

// Inquiry is the vendor's handle for one verification attempt.
type Inquiry struct {
	// ID is the vendor's unique inquiry reference, echoed back in webhook
	// deliveries.
	ID string
	// VerificationURL is the hosted flow the applicant is redirected to.
	VerificationURL string
}

// Provider mints verification inquiries with the external vendor.
type Provider interface {
	CreateInquiry(ctx context.Context, req InquiryRequest) (*Inquiry, error)
}
