package aab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

// GenerateForm builds the signed PAYMENT-OUT response. Outbound field
// names switch to the AAB- prefix and the return trip is a GET redirect;
// the protocol has no server-to-server confirmation.
func (f *Factory) GenerateForm(ctx context.Context, bank *domain.BankDefinition, p *domain.Payment, m *merchantdomain.Merchant) (*domain.FormResponse, error) {
	transactionID, err := f.seq.Next(ctx)
	if err != nil {
		return nil, err
	}

	inbound := p.FieldMap()

	response := newAdapter(bank, inbound, p.Charset)
	response.service = serviceOut
	response.prefix = responsePrefix

	response.fields[responsePrefix+"RETURN_VERSION"] = inbound[requestPrefix+"VERSION"]
	response.fields[responsePrefix+"RETURN_STAMP"] = inbound[requestPrefix+"STAMP"]
	response.fields[responsePrefix+"RETURN_REF"] = inbound[requestPrefix+"REF"]
	if p.State == domain.StatePayed {
		response.fields[responsePrefix+"RETURN_PAID"] = genPaidCode(transactionID)
	} else {
		response.fields[responsePrefix+"RETURN_PAID"] = ""
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

	return &domain.FormResponse{
		Method:  http.MethodGet,
		URL:     fields.AppendQuery(targetURL, payload),
		Payload: payload,
		Fields:  out,
		Hash:    response.CalculateHash(),
	}, nil
}

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

func genPaidCode(nr int64) string {
	return fmt.Sprintf("PEPM%s%012d", time.Now().Format("20060102"), nr)
}
