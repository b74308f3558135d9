package solo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banklabs/banklink/internal/banklink/delivery"
	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

// GenerateForm builds the signed PAYMENT-OUT response for a finalized
// payment. The return trip is always a GET redirect with the response
// fields in the query string; a server-to-server confirmation is sent only
// when the merchant has opted in to automatic responses.
func (f *Factory) GenerateForm(ctx context.Context, bank *domain.BankDefinition, p *domain.Payment, m *merchantdomain.Merchant) (*domain.FormResponse, error) {
	transactionID, err := f.seq.Next(ctx)
	if err != nil {
		return nil, err
	}

	response := newAdapter(bank, p.FieldMap(), p.Charset)
	response.service = serviceOut

	prefix := response.prefix
	response.fields[prefix+"RETURN_VERSION"] = response.field("VERSION")
	response.fields[prefix+"RETURN_STAMP"] = response.field("STAMP")
	response.fields[prefix+"RETURN_REF"] = response.field("REF")
	response.fields[prefix+"RETURN_PAYER_NAME"] = p.SenderName
	response.fields[prefix+"RETURN_PAYER_ACCOUNT"] = p.SenderAccount
	response.fields[prefix+"RETURN_TAX_CODE"] = response.field("TAX_CODE")
	response.fields[prefix+"RETURN_MSG"] = response.field("MSG")
	if p.State == domain.StatePayed {
		response.fields[prefix+"RETURN_PAID"] = genPaidCode(transactionID)
	} else {
		response.fields[prefix+"RETURN_PAID"] = ""
	}

	if err := response.sign(m); err != nil {
		return nil, err
	}

	out := response.responseFields()
	payload := fields.StringifyQuery(out, p.Charset)

	targetURL := p.SuccessTarget
	switch p.State {
	case domain.StateRejected:
		targetURL = p.RejectTarget
	case domain.StateCancelled:
		targetURL = p.CancelTarget
	}
	redirectURL := fields.AppendQuery(targetURL, payload)

	var callback *domain.CallbackResult
	if p.State == domain.StatePayed && m.SoloAutoResponse {
		if delivery.IsLocalTarget(targetURL) {
			callback = &domain.CallbackResult{Error: "automatic requests to localhost are not allowed"}
		} else {
			callback = f.deliverer.Deliver(ctx, http.MethodGet, redirectURL, "")
		}
	}

	return &domain.FormResponse{
		Method:   http.MethodGet,
		URL:      redirectURL,
		Payload:  payload,
		Fields:   out,
		Hash:     response.CalculateHash(),
		Callback: callback,
	}, nil
}

// responseFields picks the signed non-empty PAYMENT-OUT values plus the
// signature itself.
func (a *Adapter) responseFields() map[string]string {
	out := make(map[string]string)
	for _, name := range signatureOrder[a.version][a.service] {
		if v := a.field(name); v != "" {
			out[a.prefix+name] = v
		}
	}
	if v := a.field("RETURN_MAC"); v != "" {
		out[a.prefix+"RETURN_MAC"] = v
	}
	return out
}

// genPaidCode formats the archive code of a successful payment:
// "PEPM", the current date and a zero-padded serial number.
func genPaidCode(nr int64) string {
	return fmt.Sprintf("PEPM%s%012d", time.Now().Format("20060102"), nr)
}
