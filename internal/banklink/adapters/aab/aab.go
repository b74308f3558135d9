// Package aab implements the Bank of Åland variant of the keyed-hash
// protocol. It shares the MAC construction with the Nordea protocol but
// uses AAB_/AAB- field name prefixes, supports a single protocol version
// and pays out only in euros.
package aab

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
	seq domain.TransactionSequence
}

func NewFactory(seq domain.TransactionSequence) *Factory {
	return &Factory{seq: seq}
}

func (f *Factory) Protocol() string { return domain.ProtocolAab }

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
	bank     *domain.BankDefinition
	fields   map[string]string
	charset  string
	language string
	version  string
	prefix   string
	service  string
	secret   string
}

func newAdapter(bank *domain.BankDefinition, fieldMap map[string]string, charset string) *Adapter {
	if charset == "" {
		charset = bank.DefaultCharset
	}
	return &Adapter{
		bank:     bank,
		fields:   fieldMap,
		charset:  charset,
		language: DetectLanguage(fieldMap),
		version:  DetectVersion(fieldMap),
		prefix:   requestPrefix,
		service:  serviceIn,
	}
}

func DetectVersion(fieldMap map[string]string) string {
	if v := fieldMap[requestPrefix+"VERSION"]; v != "" {
		return v
	}
	return defaultVersion
}

func DetectLanguage(fieldMap map[string]string) string {
	code := strings.TrimSpace(fieldMap[requestPrefix+"LANGUAGE"])
	if name, ok := languages[code]; ok {
		return name
	}
	return defaultLanguage
}

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
		if _, bare := a.fields[name]; bare {
			res.AddError(name, a.fields[name], fmt.Sprintf("parameter %s must carry the %s prefix", name, requestPrefix))
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
