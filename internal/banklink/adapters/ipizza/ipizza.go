// Package ipizza implements the certificate-based VK_ banklink protocol
// spoken by most Estonian banks. The canonical signing string is a
// concatenation of 3-digit zero-padded value lengths and values in a fixed
// per-service order.
package ipizza

import (
	"context"
	"encoding/base64"
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

func (f *Factory) Protocol() string { return domain.ProtocolIPizza }

func (f *Factory) New(bank *domain.BankDefinition, fieldMap map[string]string) domain.Adapter {
	return newAdapter(bank, fieldMap, "")
}

func (f *Factory) SignatureOrder() map[string][]string {
	return signatureOrder
}

type Adapter struct {
	bank    *domain.BankDefinition
	fields  map[string]string
	charset string
	// language is the three-letter protocol name (EST, ENG, ...).
	language string
}

// newAdapter accepts an explicit charset override so responses can be
// built in the charset the inbound payment was received in.
func newAdapter(bank *domain.BankDefinition, fieldMap map[string]string, charset string) *Adapter {
	if charset == "" {
		charset = DetectCharset(bank, fieldMap)
	}
	return &Adapter{
		bank:     bank,
		fields:   fieldMap,
		charset:  charset,
		language: DetectLanguage(fieldMap),
	}
}

func DetectLanguage(fieldMap map[string]string) string {
	language := strings.ToUpper(fieldMap["VK_LANG"])
	if language == "" {
		language = defaultLanguage
	}
	for _, known := range languages {
		if language == known {
			return language
		}
	}
	return defaultLanguage
}

// DetectCharset picks the message charset: the bank's designated charset
// field first, then either standard field name, then the bank default.
func DetectCharset(bank *domain.BankDefinition, fieldMap map[string]string) string {
	if bank.CharsetField != "" && fieldMap[bank.CharsetField] != "" {
		return fieldMap[bank.CharsetField]
	}
	if v := fieldMap["VK_CHARSET"]; v != "" {
		return v
	}
	if v := fieldMap["VK_ENCODING"]; v != "" {
		return v
	}
	return bank.DefaultCharset
}

func (a *Adapter) UID() string     { return a.fields["VK_SND_ID"] }
func (a *Adapter) Charset() string { return a.charset }

func (a *Adapter) Language() string { return domain.LanguageCode(a.language) }

func (a *Adapter) PaymentType() string {
	return serviceTypes[a.fields["VK_SERVICE"]]
}

func (a *Adapter) Amount() string {
	if v := a.fields["VK_AMOUNT"]; v != "" {
		return v
	}
	return "0"
}

func (a *Adapter) Currency() string {
	if v := a.fields["VK_CURR"]; v != "" {
		return v
	}
	return "EUR"
}

func (a *Adapter) ReferenceCode() string { return a.fields["VK_REF"] }
func (a *Adapter) Message() string       { return a.fields["VK_MSG"] }

func (a *Adapter) ReceiverName(m *merchantdomain.Merchant) string {
	if a.fields["VK_SERVICE"] == "1002" {
		if m != nil && m.ReceiverName != "" {
			return m.ReceiverName
		}
		if m != nil {
			return m.Name
		}
		return ""
	}
	return a.fields["VK_NAME"]
}

func (a *Adapter) ReceiverAccount(m *merchantdomain.Merchant) string {
	if a.fields["VK_SERVICE"] == "1002" {
		if m != nil && m.ReceiverAccount != "" {
			return m.ReceiverAccount
		}
		return a.bank.AccountNr
	}
	return a.fields["VK_ACC"]
}

func (a *Adapter) SuccessTarget(*merchantdomain.Merchant) string {
	return a.fields[a.bank.ReturnField]
}

func (a *Adapter) CancelTarget(*merchantdomain.Merchant) string {
	if v := a.fields[a.bank.CancelField]; v != "" {
		return v
	}
	return a.fields[a.bank.ReturnField]
}

func (a *Adapter) RejectTarget(*merchantdomain.Merchant) string {
	if v := a.fields[a.bank.RejectField]; v != "" {
		return v
	}
	return a.fields[a.bank.ReturnField]
}

func (a *Adapter) Hints() domain.DisplayHints {
	return domain.DisplayHints{
		EditSenderName:      true,
		EditSenderAccount:   true,
		ShowReceiverName:    true,
		ShowReceiverAccount: true,
	}
}

func (a *Adapter) ValidateClient(m *merchantdomain.Merchant) domain.Result {
	uid := a.UID()
	if m == nil {
		return domain.FailResult(domain.FieldError{
			Field: "VK_SND_ID", Value: uid,
			Message: "no payment solution found for this client id; expired certificates must be regenerated",
		})
	}
	if m.Bank != a.bank.Key {
		return domain.FailResult(domain.FieldError{
			Field: "VK_SND_ID", Value: uid,
			Message: fmt.Sprintf("client id is registered for bank %q, request arrived for %q", m.Bank, a.bank.Key),
		})
	}
	return domain.OKResult()
}

func (a *Adapter) ValidateRequest(_ context.Context, _ *merchantdomain.Merchant) (domain.Result, error) {
	v := &validator{bank: a.bank, fields: a.fields}
	return v.validateFields(), nil
}

func (a *Adapter) ValidateSignature(m *merchantdomain.Merchant) (domain.Result, error) {
	hash := a.CalculateHash()
	if hash == "" {
		return domain.FailResult(domain.FieldError{
			Field: "VK_SERVICE", Value: a.fields["VK_SERVICE"],
			Message: "service code has no signature definition",
		}), nil
	}

	mac, err := base64.StdEncoding.DecodeString(a.fields["VK_MAC"])
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
		Field:   "VK_MAC",
		Message: "signature verification of parameter VK_MAC failed",
	})
}

// sign produces the outbound VK_MAC with the bank-side key.
func (a *Adapter) sign(m *merchantdomain.Merchant) error {
	hash := a.CalculateHash()
	if hash == "" {
		return fmt.Errorf("%w: no signature order for service %q", domain.ErrSigningFailed, a.fields["VK_SERVICE"])
	}
	sig, err := signing.Sign(m.SigningKey, "sha1", fields.Encode(hash, a.charset))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	a.fields["VK_MAC"] = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// CalculateHash concatenates 3-digit zero-padded lengths and values in the
// service's signature order. Lengths count runes, or UTF-8 bytes when the
// bank's convention is byte-oriented and the message is UTF-8.
func (a *Adapter) CalculateHash() string {
	order, ok := signatureOrder[a.fields["VK_SERVICE"]]
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, name := range order {
		value := a.fields[name]
		length := len([]rune(value))
		if a.bank.ByteLength && fields.IsUTF8(a.charset) {
			length = len(value)
		}
		fmt.Fprintf(&b, "%03d%s", length, value)
	}
	return b.String()
}
