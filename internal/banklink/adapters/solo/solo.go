// Package solo implements the shared-secret keyed-hash protocol used by
// Nordea. The MAC is a plain MD5/SHA1/SHA256 digest over the signed field
// values joined with "&", followed by the merchant secret and a trailing
// empty element.
package solo

import (
	"context"
	"fmt"
	"strings"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	"github.com/banklabs/banklink/internal/banklink/signing"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

type Factory struct {
	seq       domain.TransactionSequence
	deliverer domain.CallbackDeliverer
}

func NewFactory(seq domain.TransactionSequence, deliverer domain.CallbackDeliverer) *Factory {
	return &Factory{seq: seq, deliverer: deliverer}
}

func (f *Factory) Protocol() string { return domain.ProtocolSolo }

func (f *Factory) New(bank *domain.BankDefinition, fieldMap map[string]string) domain.Adapter {
	return newAdapter(bank, fieldMap, "")
}

func (f *Factory) SignatureOrder() map[string][]string {
	out := make(map[string][]string)
	for version, services := range signatureOrder {
		for service, order := range services {
			out[version+"/"+service] = order
		}
	}
	return out
}

type Adapter struct {
	bank    *domain.BankDefinition
	fields  map[string]string
	charset string
	// language is the three-letter protocol name (EST, FIN, ...).
	language string
	version  string
	// prefix is "SOLOPMT_" for messages that carry prefixed field names.
	prefix  string
	service string
	// secret is captured from the merchant on signature operations so the
	// stored hash source matches the digested bytes.
	secret string
}

func newAdapter(bank *domain.BankDefinition, fieldMap map[string]string, charset string) *Adapter {
	if charset == "" {
		charset = bank.DefaultCharset
	}
	version := DetectVersion(fieldMap)
	prefix := ""
	if fieldMap[fieldPrefix+"VERSION"] != "" || version == defaultVersion {
		prefix = fieldPrefix
	}
	return &Adapter{
		bank:     bank,
		fields:   fieldMap,
		charset:  charset,
		language: DetectLanguage(fieldMap),
		version:  version,
		prefix:   prefix,
		service:  serviceIn,
	}
}

func DetectVersion(fieldMap map[string]string) string {
	if v := fieldMap[fieldPrefix+"VERSION"]; v != "" {
		return v
	}
	if v := fieldMap["VERSION"]; v != "" {
		return v
	}
	return defaultVersion
}

func DetectLanguage(fieldMap map[string]string) string {
	code := strings.TrimSpace(fieldMap[fieldPrefix+"LANGUAGE"])
	if code == "" {
		code = strings.TrimSpace(fieldMap["LANGUAGE"])
	}
	if name, ok := languages[code]; ok {
		return name
	}
	return defaultLanguage
}

// field reads an inbound value honoring the detected name prefix.
func (a *Adapter) field(name string) string {
	return a.fields[a.prefix+name]
}

func (a *Adapter) UID() string      { return a.field("RCV_ID") }
func (a *Adapter) Charset() string  { return a.charset }
func (a *Adapter) Language() string { return domain.LanguageCode(a.language) }

func (a *Adapter) PaymentType() string { return "PAYMENT" }

func (a *Adapter) Amount() string {
	if v := a.field("AMOUNT"); v != "" {
		return v
	}
	return "0"
}

func (a *Adapter) Currency() string {
	if v := a.field("CUR"); v != "" {
		return v
	}
	return "EUR"
}

func (a *Adapter) ReferenceCode() string { return a.field("REF") }
func (a *Adapter) Message() string       { return a.field("MSG") }

func (a *Adapter) ReceiverName(*merchantdomain.Merchant) string {
	return a.field("RCV_NAME")
}

func (a *Adapter) ReceiverAccount(*merchantdomain.Merchant) string {
	return a.field("RCV_ACCOUNT")
}

func (a *Adapter) SuccessTarget(*merchantdomain.Merchant) string {
	return a.field(a.bank.ReturnField)
}

func (a *Adapter) CancelTarget(*merchantdomain.Merchant) string {
	if v := a.field(a.bank.CancelField); v != "" {
		return v
	}
	return a.field(a.bank.ReturnField)
}

func (a *Adapter) RejectTarget(*merchantdomain.Merchant) string {
	if v := a.field(a.bank.RejectField); v != "" {
		return v
	}
	return a.field(a.bank.ReturnField)
}

func (a *Adapter) Hints() domain.DisplayHints {
	return domain.DisplayHints{
		EditSenderName:      true,
		EditSenderAccount:   true,
		ShowReceiverName:    a.field("RCV_NAME") != "",
		ShowReceiverAccount: a.field("RCV_ACCOUNT") != "",
	}
}

func (a *Adapter) ValidateClient(m *merchantdomain.Merchant) domain.Result {
	uid := a.UID()
	if m == nil {
		return domain.FailResult(domain.FieldError{
			Field: a.prefix + "RCV_ID", Value: uid,
			Message: "no payment solution found for this client id",
		})
	}
	if m.Bank != a.bank.Key {
		return domain.FailResult(domain.FieldError{
			Field: a.prefix + "RCV_ID", Value: uid,
			Message: fmt.Sprintf("client id is registered for bank %q, request arrived for %q", m.Bank, a.bank.Key),
		})
	}
	return domain.OKResult()
}

// ValidateRequest first enforces the field name prefix rule; a message
// that gets the prefix wrong on more than three fields is clearly built
// for the wrong convention and the per-field checks are skipped.
func (a *Adapter) ValidateRequest(_ context.Context, m *merchantdomain.Merchant) (domain.Result, error) {
	res := a.processFieldNames()
	if len(res.Errors) > 3 {
		return res, nil
	}

	algo := "md5"
	if m != nil && m.Algo != "" {
		algo = m.Algo
	}
	v := &validator{bank: a.bank, adapter: a, version: a.version, algo: algo}
	res.Merge(v.validateFields())
	return res, nil
}

func (a *Adapter) processFieldNames() domain.Result {
	res := domain.OKResult()
	for _, name := range serviceFields[a.service] {
		if a.prefix != "" {
			if _, bare := a.fields[name]; bare {
				res.AddError(name, a.fields[name], fmt.Sprintf("parameter %s must carry the %s prefix", name, fieldPrefix))
			}
		} else if _, prefixed := a.fields[fieldPrefix+name]; prefixed {
			res.AddError(fieldPrefix+name, a.fields[fieldPrefix+name], fmt.Sprintf("parameter %s must not carry the %s prefix", fieldPrefix+name, fieldPrefix))
		}
	}
	return res
}

func (a *Adapter) ValidateSignature(m *merchantdomain.Merchant) (domain.Result, error) {
	a.secret = m.Secret
	mac, err := signing.KeyedHash(merchantAlgo(m), fields.Encode(a.CalculateHash(), a.charset))
	if err != nil {
		return domain.Result{}, err
	}
	if mac == a.field("MAC") {
		return domain.OKResult(), nil
	}
	return domain.FailResult(domain.FieldError{
		Field:   a.prefix + "MAC",
		Value:   a.field("MAC"),
		Message: fmt.Sprintf("signature verification of parameter %s failed", a.prefix+"MAC"),
	}), nil
}

// sign computes the outbound RETURN_MAC over the response fields.
func (a *Adapter) sign(m *merchantdomain.Merchant) error {
	a.secret = m.Secret
	mac, err := signing.KeyedHash(merchantAlgo(m), fields.Encode(a.CalculateHash(), a.charset))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	a.fields[a.prefix+"RETURN_MAC"] = mac
	return nil
}

func merchantAlgo(m *merchantdomain.Merchant) string {
	if m != nil && m.Algo != "" {
		return m.Algo
	}
	return "md5"
}

// CalculateHash joins the non-empty signed values with "&". The merchant
// secret and a trailing empty element are appended before hashing, so the
// source always ends with "&".
func (a *Adapter) CalculateHash() string {
	services, ok := signatureOrder[a.version]
	if !ok {
		return ""
	}
	order, ok := services[a.service]
	if !ok {
		return ""
	}

	var list []string
	for _, name := range order {
		if v := a.field(name); v != "" {
			list = append(list, v)
		}
	}
	list = append(list, a.secret, "")
	return strings.Join(list, "&")
}
