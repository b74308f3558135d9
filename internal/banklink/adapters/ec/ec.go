// Package ec implements the Estcard card payment gateway protocol. The
// MAC source is a fixed-width record: every signed field is padded to its
// protocol-defined width before the RSA-SHA1 signature, which travels as
// lowercase hex.
package ec

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	"github.com/banklabs/banklink/internal/banklink/signing"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

// ReplayGuard tracks transaction numbers across submissions. Duplicates
// within the window are reported as warnings.
type ReplayGuard interface {
	CheckAndMark(ctx context.Context, merchantID, transactionID string) (bool, error)
}

type Factory struct {
	seq       domain.TransactionSequence
	deliverer domain.CallbackDeliverer
	guard     ReplayGuard
}

func NewFactory(seq domain.TransactionSequence, deliverer domain.CallbackDeliverer, guard ReplayGuard) *Factory {
	return &Factory{seq: seq, deliverer: deliverer, guard: guard}
}

func (f *Factory) Protocol() string { return domain.ProtocolEC }

func (f *Factory) New(bank *domain.BankDefinition, fieldMap map[string]string) domain.Adapter {
	return newAdapter(bank, fieldMap, "", f.guard)
}

func (f *Factory) SignatureOrder() map[string][]string {
	out := make(map[string][]string)
	for version, actions := range signatureOrder {
		for action, order := range actions {
			out[version+"/"+action] = order
		}
	}
	return out
}

type Adapter struct {
	bank     *domain.BankDefinition
	fields   map[string]string
	charset  string
	language string
	version  string
	guard    ReplayGuard
}

func newAdapter(bank *domain.BankDefinition, fieldMap map[string]string, charset string, guard ReplayGuard) *Adapter {
	version := DetectVersion(fieldMap)
	if charset == "" {
		charset = DetectCharset(bank, fieldMap)
	}
	return &Adapter{
		bank:     bank,
		fields:   fieldMap,
		charset:  charset,
		language: DetectLanguage(fieldMap),
		version:  version,
		guard:    guard,
	}
}

func DetectVersion(fieldMap map[string]string) string {
	if v := fieldMap["ver"]; v != "" {
		return v
	}
	return defaultVersion
}

func DetectLanguage(fieldMap map[string]string) string {
	code := strings.ToUpper(strings.TrimSpace(fieldMap["lang"]))
	if name, ok := languageNames[code]; ok {
		return name
	}
	return defaultLanguage
}

// DetectCharset honors charEncoding only from version 004 on; older
// messages always use the bank default.
func DetectCharset(bank *domain.BankDefinition, fieldMap map[string]string) string {
	if DetectVersion(fieldMap) == "004" && fieldMap["charEncoding"] != "" {
		return fieldMap["charEncoding"]
	}
	return bank.DefaultCharset
}

func (a *Adapter) UID() string      { return a.fields["id"] }
func (a *Adapter) Charset() string  { return a.charset }
func (a *Adapter) Language() string { return domain.LanguageCode(a.language) }

func (a *Adapter) PaymentType() string { return "PAYMENT" }

// Amount converts the eamount cent value into a decimal string.
func (a *Adapter) Amount() string {
	cents, err := strconv.ParseInt(a.fields["eamount"], 10, 64)
	if err != nil {
		return "0"
	}
	return formatCents(cents)
}

func formatCents(cents int64) string {
	whole, frac := cents/100, cents%100
	switch {
	case frac == 0:
		return strconv.FormatInt(whole, 10)
	case frac%10 == 0:
		return fmt.Sprintf("%d.%d", whole, frac/10)
	default:
		return fmt.Sprintf("%d.%02d", whole, frac)
	}
}

func (a *Adapter) Currency() string {
	if v := strings.ToUpper(strings.TrimSpace(a.fields["cur"])); v != "" {
		return v
	}
	return "EUR"
}

func (a *Adapter) ReferenceCode() string { return "" }
func (a *Adapter) Message() string       { return "" }

func (a *Adapter) ReceiverName(*merchantdomain.Merchant) string    { return "" }
func (a *Adapter) ReceiverAccount(*merchantdomain.Merchant) string { return "" }

// SuccessTarget prefers the in-message feedBackUrl on version 004, the
// merchant's registered gateway address otherwise. The protocol has a
// single return address for every outcome.
func (a *Adapter) SuccessTarget(m *merchantdomain.Merchant) string {
	if a.version == "004" && a.fields["feedBackUrl"] != "" {
		return a.fields["feedBackUrl"]
	}
	if m != nil {
		return m.ECReturnURL
	}
	return ""
}

func (a *Adapter) CancelTarget(m *merchantdomain.Merchant) string { return a.SuccessTarget(m) }
func (a *Adapter) RejectTarget(m *merchantdomain.Merchant) string { return a.SuccessTarget(m) }

func (a *Adapter) Hints() domain.DisplayHints {
	return domain.DisplayHints{EditSenderName: true}
}

func (a *Adapter) ValidateClient(m *merchantdomain.Merchant) domain.Result {
	uid := a.UID()
	if m == nil {
		return domain.FailResult(domain.FieldError{
			Field: "id", Value: uid,
			Message: "no payment solution found for this client id; expired certificates must be regenerated",
		})
	}
	if m.Bank != a.bank.Key {
		return domain.FailResult(domain.FieldError{
			Field: "id", Value: uid,
			Message: fmt.Sprintf("client id is registered for bank %q, request arrived for %q", m.Bank, a.bank.Key),
		})
	}
	return domain.OKResult()
}

// ValidateRequest runs the field checks and the transaction number dedup.
// A reused ecuno inside the guard window is only a warning: repeated test
// submissions are normal for this tool.
func (a *Adapter) ValidateRequest(ctx context.Context, _ *merchantdomain.Merchant) (domain.Result, error) {
	v := &validator{bank: a.bank, fields: a.fields, version: a.version}
	res := v.validateFields()

	if a.guard != nil && a.fields["id"] != "" && a.fields["ecuno"] != "" {
		seen, err := a.guard.CheckAndMark(ctx, a.fields["id"], a.fields["ecuno"])
		if err != nil {
			return domain.Result{}, err
		}
		if seen {
			res.AddWarning("ecuno", a.fields["ecuno"], fmt.Sprintf("transaction number ecuno value %s has already been used within the last 24 hours", a.fields["ecuno"]))
		}
	}
	return res, nil
}

func (a *Adapter) ValidateSignature(m *merchantdomain.Merchant) (domain.Result, error) {
	hash := a.CalculateHash()
	if hash == "" {
		return domain.FailResult(domain.FieldError{
			Field: "action", Value: a.fields["action"],
			Message: "action has no signature definition",
		}), nil
	}

	mac, err := hex.DecodeString(a.fields["mac"])
	if err != nil {
		return signatureMismatch(), nil
	}
	if err := signing.Verify(m.Certificate, "sha1", fields.Encode(hash, a.charset), mac); err != nil {
		return signatureMismatch(), nil
	}
	return domain.OKResult(), nil
}

func signatureMismatch() domain.Result {
	return domain.FailResult(domain.FieldError{
		Field:   "mac",
		Message: "signature verification of parameter mac failed",
	})
}

// sign produces the outbound mac with the bank-side key, hex encoded.
func (a *Adapter) sign(m *merchantdomain.Merchant) error {
	hash := a.CalculateHash()
	if hash == "" {
		return fmt.Errorf("%w: no signature order for action %q", domain.ErrSigningFailed, a.fields["action"])
	}
	sig, err := signing.Sign(m.SigningKey, "sha1", fields.Encode(hash, a.charset))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	a.fields["mac"] = hex.EncodeToString(sig)
	return nil
}

// CalculateHash builds the fixed-width signature record.
func (a *Adapter) CalculateHash() string {
	actions, ok := signatureOrder[a.version]
	if !ok {
		return ""
	}
	order, ok := actions[a.fields["action"]]
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, name := range order {
		b.WriteString(padValue(a.fields[name], signatureLength[name]))
	}
	return b.String()
}

func padValue(value string, width int) string {
	if width < 0 {
		if n := -width - len([]rune(value)); n > 0 {
			return value + strings.Repeat(" ", n)
		}
		return value
	}
	if n := width - len([]rune(value)); n > 0 {
		return strings.Repeat("0", n) + value
	}
	return value
}
