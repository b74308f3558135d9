package ipizza

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

const rejectErrorCode = "1234"

// GenerateForm builds and signs the outbound 1101/1901/1902 message for a
// finalized payment. Paid results to remote targets are also delivered
// server-to-server with VK_AUTO=Y; the browser-facing form always carries
// VK_AUTO=N and is POSTed regardless of the bank's callback method.
func (f *Factory) GenerateForm(ctx context.Context, bank *domain.BankDefinition, p *domain.Payment, m *merchantdomain.Merchant) (*domain.FormResponse, error) {
	transactionID, err := f.seq.Next(ctx)
	if err != nil {
		return nil, err
	}

	inbound := p.FieldMap()

	var out map[string]string
	switch p.State {
	case domain.StatePayed:
		out = map[string]string{
			"VK_SERVICE":  "1101",
			"VK_VERSION":  versionValue,
			"VK_SND_ID":   bank.SenderID,
			"VK_REC_ID":   inbound["VK_SND_ID"],
			"VK_STAMP":    inbound["VK_STAMP"],
			"VK_T_NO":     fmt.Sprintf("%d", transactionID),
			"VK_AMOUNT":   inbound["VK_AMOUNT"],
			"VK_CURR":     inbound["VK_CURR"],
			"VK_REC_ACC":  firstNonEmpty(inbound["VK_ACC"], m.ReceiverAccount),
			"VK_REC_NAME": firstNonEmpty(inbound["VK_NAME"], m.ReceiverName),
			"VK_SND_ACC":  p.SenderAccount,
			"VK_SND_NAME": p.SenderName,
			"VK_REF":      inbound["VK_REF"],
			"VK_MSG":      inbound["VK_MSG"],
			"VK_T_DATE":   time.Now().Format("02.01.2006"),
		}
	case domain.StateRejected:
		out = map[string]string{
			"VK_SERVICE":    "1902",
			"VK_VERSION":    versionValue,
			"VK_SND_ID":     bank.SenderID,
			"VK_REC_ID":     inbound["VK_SND_ID"],
			"VK_STAMP":      inbound["VK_STAMP"],
			"VK_REF":        inbound["VK_REF"],
			"VK_MSG":        inbound["VK_MSG"],
			"VK_ERROR_CODE": rejectErrorCode,
		}
	default:
		out = map[string]string{
			"VK_SERVICE": "1901",
			"VK_VERSION": versionValue,
			"VK_SND_ID":  bank.SenderID,
			"VK_REC_ID":  inbound["VK_SND_ID"],
			"VK_STAMP":   inbound["VK_STAMP"],
			"VK_REF":     inbound["VK_REF"],
			"VK_MSG":     inbound["VK_MSG"],
		}
	}

	if bank.CharsetField != "" && inbound[bank.CharsetField] != "" {
		out[bank.CharsetField] = inbound[bank.CharsetField]
	}
	if inbound["VK_LANG"] != "" {
		out["VK_LANG"] = inbound["VK_LANG"]
	}

	response := newAdapter(bank, out, p.Charset)
	if err := response.sign(m); err != nil {
		return nil, err
	}

	targetURL := p.SuccessTarget
	switch p.State {
	case domain.StateRejected:
		targetURL = p.RejectTarget
	case domain.StateCancelled:
		targetURL = p.CancelTarget
	}

	var callback *domain.CallbackResult
	if p.State == domain.StatePayed {
		if delivery.IsLocalTarget(targetURL) {
			callback = &domain.CallbackResult{Error: "automatic requests to localhost are not allowed"}
		} else {
			out["VK_AUTO"] = "Y"
			method := bank.ReturnMethod
			if method == "" {
				method = http.MethodPost
			}
			payload := fields.StringifyQuery(out, p.Charset)
			callbackURL := targetURL
			if method == http.MethodGet {
				callbackURL = fields.AppendQuery(callbackURL, payload)
				payload = ""
			}
			callback = f.deliverer.Deliver(ctx, method, callbackURL, payload)
		}
	}

	// Browser return is always a POST form.
	out["VK_AUTO"] = "N"
	payload := fields.StringifyQuery(out, p.Charset)

	return &domain.FormResponse{
		Method:   http.MethodPost,
		URL:      targetURL,
		Payload:  payload,
		Fields:   out,
		Hash:     response.CalculateHash(),
		Callback: callback,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
