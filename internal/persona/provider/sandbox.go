package provider

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Sandbox mints fake inquiries without any network dependency. Local
// environments pair it with the webhook endpoint to drive the verification
// sub-machine by hand.
type Sandbox struct {
	counter atomic.Uint64
}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) CreateInquiry(_ context.Context, req InquiryRequest) (*Inquiry, error) {
	n := s.counter.Add(1)
	inquiryID := fmt.Sprintf("sbx_%s_%d", req.ApplicationID.String()[:8], n)
	return &Inquiry{
		ID:              inquiryID,
		VerificationURL: "https://sandbox.invalid/verify/" + inquiryID,
	}, nil
}
