package ec

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/banklabs/banklink/internal/banklink/delivery"
	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

const (
	respcodeOK     = "000"
	respcodeFailed = "111"

	// actiontext values are part of the emulated wire format.
	actiontextOK     = "OK, tehing autoriseeritud"
	actiontextFailed = "Tehing katkestatud"
)

// GenerateForm builds and signs the afb authorization response. Paid
// results to remote targets are also posted server-to-server with auto=Y;
// the browser form carries auto=N.
func (f *Factory) GenerateForm(ctx context.Context, bank *domain.BankDefinition, p *domain.Payment, m *merchantdomain.Merchant) (*domain.FormResponse, error) {
	transactionID, err := f.seq.Next(ctx)
	if err != nil {
		return nil, err
	}

	inbound := p.FieldMap()

	receiptNo := "0"
	respcode := respcodeFailed
	actiontext := actiontextFailed
	if p.State == domain.StatePayed {
		receiptNo = strconv.FormatInt(transactionID, 10)
		respcode = respcodeOK
		actiontext = actiontextOK
	}

	out := map[string]string{
		"action":     actionResponse,
		"ver":        inbound["ver"],
		"id":         inbound["id"],
		"ecuno":      inbound["ecuno"],
		"receipt_no": receiptNo,
		"eamount":    inbound["eamount"],
		"cur":        inbound["cur"],
		"respcode":   respcode,
		"datetime":   inbound["datetime"],
		"msgdata":    p.SenderName,
		"actiontext": actiontext,
	}
	if inbound["charEncoding"] != "" {
		out["charEncoding"] = inbound["charEncoding"]
	}

	response := newAdapter(bank, out, p.Charset, nil)
	if err := response.sign(m); err != nil {
		return nil, err
	}

	targetURL := p.SuccessTarget
	if p.State != domain.StatePayed {
		targetURL = p.CancelTarget
	}

	var callback *domain.CallbackResult
	if p.State == domain.StatePayed {
		if delivery.IsLocalTarget(targetURL) {
			callback = &domain.CallbackResult{Error: "automatic requests to localhost are not allowed"}
		} else {
			out["auto"] = "Y"
			callback = f.deliverer.Deliver(ctx, http.MethodPost, targetURL, fields.StringifyQuery(out, p.Charset))
		}
	}

	out["auto"] = "N"
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

// SamplePayment produces a signed gaf request against the merchant's own
// configuration, for download from the payment solution detail view. The
// merchant's stored key signs it, so the result passes this servlet's own
// signature check only when the certificate belongs to the same pair.
func SamplePayment(bank *domain.BankDefinition, m *merchantdomain.Merchant) (map[string]string, string, error) {
	charset := "ISO-8859-1"
	if len(bank.AllowedCharsets) > 0 {
		charset = bank.AllowedCharsets[0]
		for _, cs := range bank.AllowedCharsets {
			if strings.EqualFold(cs, "UTF-8") {
				charset = cs
				break
			}
		}
	}
	charset = strings.ToLower(charset)

	sample := map[string]string{
		"action":      actionRequest,
		"ver":         "004",
		"id":          m.UID,
		"ecuno":       "1392644629",
		"eamount":     "1336",
		"cur":         "EUR",
		"datetime":    "20140217154349",
		"feedBackUrl": m.ECReturnURL,
		"delivery":    "S",
		"lang":        "en",
	}
	charsetKey := bank.CharsetField
	if charsetKey == "" {
		charsetKey = "charEncoding"
	}
	sample[charsetKey] = charset

	a := newAdapter(bank, sample, charset, nil)
	if err := a.sign(m); err != nil {
		return nil, "", err
	}
	return sample, charset, nil
}
