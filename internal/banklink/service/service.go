// Package service orchestrates the banklink pipeline: inbound validation,
// payment recording, decision handling and response generation. Protocol
// details stay inside the adapters; this layer owns the state machine.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/banklabs/banklink/internal/audit"
	"github.com/banklabs/banklink/internal/banklink/adapters/ec"
	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	"github.com/banklabs/banklink/internal/banklink/registry"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

// Control fields the emulator itself understands on any inbound request.
// They override the recorded sender identity and drive auto-pay; adapters
// never see them as protocol fields.
const (
	fieldSenderName    = "PANGALINK_NAME"
	fieldSenderAccount = "PANGALINK_ACCOUNT"
	fieldAutoPay       = "PANGALINK_AUTOPAY"

	defaultSenderName = "Tõõger Leõpäöld"
)

type Service struct {
	registry  *registry.Registry
	merchants merchantdomain.Repository
	payments  domain.PaymentRepository
	attempts  audit.Repository
	log       *zap.Logger
	hostname  string
}

func New(reg *registry.Registry, merchants merchantdomain.Repository, payments domain.PaymentRepository, attempts audit.Repository, hostname string, log *zap.Logger) *Service {
	return &Service{
		registry:  reg,
		merchants: merchants,
		payments:  payments,
		attempts:  attempts,
		log:       log,
		hostname:  hostname,
	}
}

// SubmitRequest is one inbound banklink message. Fields is the normalized
// field map; Headers and RawBody are kept only for the audit trail.
type SubmitRequest struct {
	Bank    string
	Method  string
	URL     string
	Fields  map[string]string
	Headers map[string]string
	RawBody []byte
}

// SubmitResult reports the validation outcome. Payment is nil when the
// request could not be attributed to any merchant; AutoPay is the decision
// requested via the auto-pay control field, empty otherwise.
type SubmitResult struct {
	Payment *domain.Payment
	Result  domain.Result
	AutoPay domain.Decision
}

// Submit runs the inbound pipeline for one request. Validation stages run
// in order and stop at the first failing stage, but a failing stage still
// reports every problem it found. Failed attempts are recorded with state
// ERROR whenever the merchant could be identified.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	adapter, bank, err := s.registry.Adapter(req.Bank, req.Fields)
	if err != nil {
		return nil, err
	}

	res := domain.OKResult()
	switch {
	case req.Method == http.MethodPost:
	case req.Method == http.MethodGet && bank.AllowGet:
		res.AddWarning("", "", "GET requests are discouraged, always use POST")
	default:
		res.AddError("", "", fmt.Sprintf("only POST requests are allowed, check that you are using the correct host %s and that nothing rewrites the request on the way", s.hostname))
		return &SubmitResult{Result: res}, nil
	}

	merchant, err := s.merchants.FindByUID(ctx, adapter.UID())
	if err != nil {
		return nil, fmt.Errorf("merchant lookup: %w", err)
	}

	res.Merge(adapter.ValidateClient(merchant))
	if !res.OK {
		return s.failed(ctx, adapter, bank, merchant, req, res)
	}

	stage, err := adapter.ValidateRequest(ctx, merchant)
	if err != nil {
		return nil, fmt.Errorf("request validation: %w", err)
	}
	res.Merge(stage)
	if !res.OK {
		return s.failed(ctx, adapter, bank, merchant, req, res)
	}

	stage, err = adapter.ValidateSignature(merchant)
	if err != nil {
		return nil, fmt.Errorf("signature validation: %w", err)
	}
	res.Merge(stage)
	if !res.OK {
		return s.failed(ctx, adapter, bank, merchant, req, res)
	}

	p, err := s.record(ctx, adapter, bank, merchant, req, domain.StateInProcess, res)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment accepted",
		zap.String("bank", bank.Key),
		zap.String("merchant", merchant.UID),
		zap.Int64("payment", int64(p.ID)),
		zap.Int("warnings", len(res.Warnings)))

	return &SubmitResult{
		Payment: p,
		Result:  res,
		AutoPay: autoPayDecision(req.Fields[fieldAutoPay]),
	}, nil
}

func (s *Service) failed(ctx context.Context, adapter domain.Adapter, bank *domain.BankDefinition, m *merchantdomain.Merchant, req SubmitRequest, res domain.Result) (*SubmitResult, error) {
	out := &SubmitResult{Result: res}
	if m == nil {
		return out, nil
	}
	p, err := s.record(ctx, adapter, bank, m, req, domain.StateError, res)
	if err != nil {
		return nil, err
	}
	s.log.Info("payment rejected",
		zap.String("bank", bank.Key),
		zap.String("merchant", m.UID),
		zap.Int64("payment", int64(p.ID)),
		zap.Int("errors", len(res.Errors)))
	out.Payment = p
	return out, nil
}

func (s *Service) record(ctx context.Context, adapter domain.Adapter, bank *domain.BankDefinition, m *merchantdomain.Merchant, req SubmitRequest, state domain.PaymentState, res domain.Result) (*domain.Payment, error) {
	senderName := req.Fields[fieldSenderName]
	if senderName == "" {
		senderName = defaultSenderName
	}
	senderAccount := req.Fields[fieldSenderAccount]
	if senderAccount == "" {
		senderAccount = generateAccountNr(bank.AccountPrefix, bank.AccountLength)
	}

	p := &domain.Payment{
		MerchantID: m.ID,
		Bank:       bank.Key,
		Protocol:   bank.Protocol,
		State:      state,

		Charset:     adapter.Charset(),
		Language:    adapter.Language(),
		PaymentType: adapter.PaymentType(),

		Amount:          adapter.Amount(),
		Currency:        adapter.Currency(),
		ReferenceCode:   adapter.ReferenceCode(),
		MessageText:     adapter.Message(),
		ReceiverName:    adapter.ReceiverName(m),
		ReceiverAccount: adapter.ReceiverAccount(m),

		SuccessTarget: adapter.SuccessTarget(m),
		CancelTarget:  adapter.CancelTarget(m),
		RejectTarget:  adapter.RejectTarget(m),

		SenderName:    senderName,
		SenderAccount: senderAccount,

		Hints: adapter.Hints(),

		SourceHash: adapter.CalculateHash(),

		RequestMethod: req.Method,
		RequestURL:    req.URL,
		AutoSubmit:    req.Fields[fieldAutoPay] != "",
	}
	if bank.Protocol == domain.ProtocolEC {
		if ecuno := req.Fields["ecuno"]; ecuno != "" {
			p.ReplayKey = adapter.UID() + ":" + ecuno
		}
	}
	p.SetFields(req.Fields)
	p.SetValidation(res.Errors, res.Warnings)

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	attempt := audit.NewAttempt(p.ID, req.Method, req.URL, req.Headers, req.Fields, req.RawBody)
	if err := s.attempts.Record(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	return p, nil
}

// DecisionRequest applies one terminal decision to an in-process payment.
// Sender overrides are honored only when the adapter's display hints allow
// editing them, which the external UI enforces; the service stores whatever
// it is handed.
type DecisionRequest struct {
	Decision      domain.Decision
	SenderName    string
	SenderAccount string
}

type FinalizeResult struct {
	Payment *domain.Payment
	Form    *domain.FormResponse
}

// Finalize moves an IN_PROCESS payment to its terminal state, generates the
// signed response and records the callback outcome. A payment can be
// finalized exactly once; concurrent decisions race on a conditional update
// and the loser gets ErrPaymentFinalized.
func (s *Service) Finalize(ctx context.Context, id snowflake.ID, req DecisionRequest) (*FinalizeResult, error) {
	state, ok := req.Decision.State()
	if !ok {
		return nil, domain.ErrUnknownDecision
	}

	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}
	if p.State != domain.StateInProcess {
		return nil, domain.ErrPaymentFinalized
	}

	merchant, err := s.merchants.FindByID(ctx, p.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant: %w", err)
	}
	if merchant == nil {
		return nil, domain.ErrMerchantGone
	}

	bank, err := s.registry.Bank(p.Bank)
	if err != nil {
		return nil, err
	}
	factory, err := s.registry.Factory(bank.Protocol)
	if err != nil {
		return nil, err
	}

	if req.SenderName != "" {
		p.SenderName = req.SenderName
	}
	if req.SenderAccount != "" {
		p.SenderAccount = req.SenderAccount
	}
	p.State = state

	form, err := factory.GenerateForm(ctx, bank, p, merchant)
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	// The stored response must match the wire bytes, so non-UTF-8 payments
	// get their fields and hash round-tripped through the payment charset.
	respFields := form.Fields
	respHash := form.Hash
	if !fields.IsUTF8(p.Charset) {
		converted := make(map[string]string, len(respFields))
		for k, v := range respFields {
			converted[k] = fields.ForceCharset(v, p.Charset)
		}
		respFields = converted
		respHash = fields.ForceCharset(respHash, p.Charset)
	}
	p.SetResponseFields(respFields)
	p.ResponseHash = respHash
	p.ReturnMethod = form.Method
	if form.Callback != nil {
		p.CallbackStatus = form.Callback.StatusCode
		p.CallbackBody = form.Callback.Body
		p.CallbackError = form.Callback.Error
	}

	won, err := s.payments.Finalize(ctx, p, state)
	if err != nil {
		return nil, fmt.Errorf("finalize payment: %w", err)
	}
	if !won {
		return nil, domain.ErrPaymentFinalized
	}
	if err := s.merchants.Touch(ctx, merchant.ID, time.Now()); err != nil {
		s.log.Warn("merchant touch failed", zap.Error(err))
	}

	s.log.Info("payment finalized",
		zap.Int64("payment", int64(p.ID)),
		zap.String("state", string(state)),
		zap.String("return_method", p.ReturnMethod))

	return &FinalizeResult{Payment: p, Form: form}, nil
}

// Payment loads one payment with its audit attempts.
func (s *Service) Payment(ctx context.Context, id snowflake.ID) (*domain.Payment, []audit.Attempt, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return nil, nil, domain.ErrPaymentNotFound
	}
	attempts, err := s.attempts.ListByPayment(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load attempts: %w", err)
	}
	return p, attempts, nil
}

// SignatureOrder exposes the signing field tables of one protocol.
func (s *Service) SignatureOrder(protocol string) (map[string][]string, error) {
	factory, err := s.registry.Factory(protocol)
	if err != nil {
		return nil, err
	}
	return factory.SignatureOrder(), nil
}

// Banks lists the emulated bank roster in declaration order.
func (s *Service) Banks() []*domain.BankDefinition {
	return s.registry.Banks()
}

// SampleRequest builds a signed test message a merchant can replay against
// its own endpoint. Only the card payment protocol supports this.
func (s *Service) SampleRequest(ctx context.Context, bankKey, merchantUID string) (map[string]string, string, error) {
	bank, err := s.registry.Bank(bankKey)
	if err != nil {
		return nil, "", err
	}
	if bank.Protocol != domain.ProtocolEC {
		return nil, "", fmt.Errorf("bank %s: %w", bankKey, domain.ErrSampleUnsupported)
	}
	merchant, err := s.merchants.FindByUID(ctx, merchantUID)
	if err != nil {
		return nil, "", fmt.Errorf("merchant lookup: %w", err)
	}
	if merchant == nil {
		return nil, "", domain.ErrMerchantGone
	}
	return ec.SamplePayment(bank, merchant)
}

func autoPayDecision(value string) domain.Decision {
	switch strings.ToLower(value) {
	case "accept":
		return domain.DecisionPay
	case "cancel":
		return domain.DecisionCancel
	case "reject":
		return domain.DecisionReject
	}
	return ""
}

// generateAccountNr fabricates a sender account from the bank's account
// number shape: prefix followed by random digits up to the full length.
func generateAccountNr(prefix string, length int) string {
	if length <= len(prefix) {
		return prefix
	}
	raw := make([]byte, length-len(prefix))
	_, _ = rand.Read(raw)
	var b strings.Builder
	b.WriteString(prefix)
	for _, c := range raw {
		b.WriteByte('0' + c%10)
	}
	return b.String()
}
