package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/circuit"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPProvider talks to the verification vendor's REST API. A circuit breaker
// sits in front of it so a vendor outage fails fast instead of holding request
// goroutines on a dead upstream.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	templateID string
	client     *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(p *HTTPProvider) { p.breaker = b }
}

// WithProviderLogger sets the logger.
func WithProviderLogger(l *slog.Logger) HTTPOption {
	return func(p *HTTPProvider) { p.logger = l }
}

// NewHTTP builds a provider client. templateID selects the vendor-side
// verification template applied to every inquiry.
func NewHTTP(baseURL, apiKey, templateID string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		templateID: templateID,
		client:     &http.Client{Timeout: defaultRequestTimeout},
		breaker:    circuit.New("identity-provider"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type createInquiryRequest struct {
	TemplateID  string `json:"template_id"`
	ReferenceID string `json:"reference_id"`
	AccountID   string `json:"account_id"`
}

type createInquiryResponse struct {
	ID              string `json:"id"`
	VerificationURL string `json:"verification_url"`
}

// CreateInquiry opens a hosted verification flow. While the breaker is open
// the vendor is not contacted at all.
func (p *HTTPProvider) CreateInquiry(ctx context.Context, req InquiryRequest) (*Inquiry, error) {
	if p.breaker.IsOpen() {
		return nil, dErrors.New(dErrors.CodeProviderUnavailable, "identity provider circuit is open")
	}

	body, err := json.Marshal(createInquiryRequest{
		TemplateID:  p.templateID,
		ReferenceID: req.ApplicationID.String(),
		AccountID:   req.VendorID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal inquiry request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/inquiries", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build inquiry request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.recordFailure()
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "identity provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		p.recordFailure()
		return nil, dErrors.Newf(dErrors.CodeProviderUnavailable, "identity provider returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		// Client-class responses are our bug, not the vendor's outage; they do
		// not count against the breaker.
		return nil, dErrors.Newf(dErrors.CodeInternal, "inquiry creation rejected with %d", resp.StatusCode)
	}

	var out createInquiryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		p.recordFailure()
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "identity provider returned a malformed inquiry")
	}
	if out.ID == "" {
		p.recordFailure()
		return nil, dErrors.New(dErrors.CodeProviderUnavailable, "identity provider returned an inquiry without a reference")
	}

	p.recordSuccess()
	return &Inquiry{ID: out.ID, VerificationURL: out.VerificationURL}, nil
}

func (p *HTTPProvider) recordFailure() {
	if _, change := p.breaker.RecordFailure(); change.Opened {
		p.logger.Warn("identity provider circuit opened", "breaker", p.breaker.Name())
	}
}

func (p *HTTPProvider) recordSuccess() {
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.Info("identity provider circuit closed", "breaker", p.breaker.Name())
	}
}
