package domain

import (
	"context"

	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

// Adapter is one parsed inbound protocol message. Implementations are
// constructed per request from the bank definition and the normalized field
// map; the merchant record is threaded through explicitly instead of being
// bound to the adapter mid-pipeline.
type Adapter interface {
	// UID is the inbound merchant identifier field value.
	UID() string
	Charset() string
	// Language is the detected ISO 639-1 code ("et", "en", ...).
	Language() string
	PaymentType() string

	Amount() string
	Currency() string
	ReferenceCode() string
	Message() string
	ReceiverName(m *merchantdomain.Merchant) string
	ReceiverAccount(m *merchantdomain.Merchant) string

	SuccessTarget(m *merchantdomain.Merchant) string
	CancelTarget(m *merchantdomain.Merchant) string
	RejectTarget(m *merchantdomain.Merchant) string

	Hints() DisplayHints

	// ValidateClient checks that the merchant looked up by UID exists and
	// is registered for this bank. A nil merchant means not found.
	ValidateClient(m *merchantdomain.Merchant) Result

	// ValidateRequest runs the protocol's field syntax rules. It never
	// short-circuits on the first field error; the returned error is
	// reserved for infrastructure failures (replay store).
	ValidateRequest(ctx context.Context, m *merchantdomain.Merchant) (Result, error)

	// ValidateSignature recomputes the canonical string and verifies the
	// inbound signature against it. Crypto failures fail closed.
	ValidateSignature(m *merchantdomain.Merchant) (Result, error)

	// CalculateHash builds the exact canonical string to be signed. Pure.
	CalculateHash() string
}

// FormResponse carries the signed outbound message: either a GET redirect
// (payload folded into the URL) or a POST form payload.
type FormResponse struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Payload string            `json:"payload,omitempty"`
	Fields  map[string]string `json:"fields"`
	Hash    string            `json:"-"`

	Callback *CallbackResult `json:"callback,omitempty"`
}

// CallbackResult records a fire-and-forget server-to-server delivery. It is
// attached to the payment for inspection and never influences the redirect.
type CallbackResult struct {
	Attempted  bool   `json:"attempted"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Factory builds adapters for one protocol family and generates its signed
// outbound forms. Registered by protocol key at the composition root.
type Factory interface {
	Protocol() string
	New(bank *BankDefinition, fields map[string]string) Adapter

	// GenerateForm builds, signs and (for paid results on remote targets)
	// delivers the outbound message for a finalized payment.
	GenerateForm(ctx context.Context, bank *BankDefinition, p *Payment, m *merchantdomain.Merchant) (*FormResponse, error)

	// SignatureOrder exposes the protocol's signing field tables for
	// documentation and debug script generation. Nested protocols use
	// "version/service" keys.
	SignatureOrder() map[string][]string
}

// TransactionSequence hands out the monotonically increasing transaction
// numbers stamped onto outbound results.
type TransactionSequence interface {
	Next(ctx context.Context) (int64, error)
}

// CallbackDeliverer fires a single time-bounded request at the merchant's
// endpoint and reports what happened. No retries.
type CallbackDeliverer interface {
	Deliver(ctx context.Context, method, url, payload string) *CallbackResult
}
