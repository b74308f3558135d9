package ec

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/banklabs/banklink/internal/banklink/domain"
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	curRe    = regexp.MustCompile(`^[A-Za-z]{3}$`)
	hexRe    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

type validator struct {
	bank    *domain.BankDefinition
	fields  map[string]string
	version string
}

type fieldCheck func(res *domain.Result) string

// validateFields gates on ver and action before anything else: the field
// set and the signature order both depend on them.
func (v *validator) validateFields() domain.Result {
	res := domain.OKResult()

	if msg := v.checkVersion(&res); msg != "" {
		res.AddError("ver", v.fields["ver"], msg)
		return res
	}
	action := v.fields["action"]
	if msg := v.checkAction(); msg != "" {
		res.AddError("action", action, msg)
		return res
	}

	checks := map[string]fieldCheck{
		"id":           v.checkID,
		"ecuno":        v.checkEcuno,
		"eamount":      v.checkAmount,
		"cur":          v.checkCurrency,
		"datetime":     v.checkDatetime,
		"lang":         v.checkLang,
		"mac":          v.checkMAC,
		"charEncoding": v.checkCharEncoding,
		"feedBackUrl":  v.checkFeedbackURL,
		"delivery":     v.checkDelivery,
	}

	for _, field := range actionFields[action] {
		check := checks[field]
		if check == nil {
			continue
		}
		value := v.fields[field]
		if msg := check(&res); msg != "" {
			res.AddError(field, value, msg)
			continue
		}
		if limit, ok := v.bank.FieldLength[field]; ok && len([]rune(value)) > limit {
			res.AddWarning(field, value, fmt.Sprintf("field %s is %d characters long, at most %d is allowed", field, len([]rune(value)), limit))
		}
	}

	return res
}

func (v *validator) checkVersion(res *domain.Result) string {
	value := v.fields["ver"]
	if value == "" {
		return "protocol version ver is missing"
	}
	if _, known := signatureOrder[value]; !known {
		return fmt.Sprintf("protocol version ver (%q) must be one of: %s", value, strings.Join(knownVersions(), ", "))
	}
	if value == "002" {
		res.AddWarning("ver", value, "protocol version 002 is deprecated, use version 004 instead")
	}
	return ""
}

func knownVersions() []string {
	out := make([]string, 0, len(signatureOrder))
	for v := range signatureOrder {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (v *validator) checkAction() string {
	value := v.fields["action"]
	if value == "" {
		return "action code is missing"
	}
	if _, known := signatureOrder[v.version][value]; !known {
		return fmt.Sprintf("action code (%q) is not supported", value)
	}
	return ""
}

func (v *validator) checkID(*domain.Result) string {
	if v.fields["id"] == "" {
		return "client id must be set"
	}
	return ""
}

func (v *validator) checkEcuno(*domain.Result) string {
	value := v.fields["ecuno"]
	if value == "" {
		return "transaction number ecuno is mandatory"
	}
	if n, err := strconv.ParseInt(value, 10, 64); err != nil || n < 100000 {
		return "transaction number ecuno must be numeric and at least 100000"
	}
	if len(value) > 12 {
		return "transaction number ecuno is too long (at most 12 digits)"
	}
	return ""
}

func (v *validator) checkAmount(*domain.Result) string {
	value := v.fields["eamount"]
	if value == "" {
		return "transaction amount eamount is mandatory"
	}
	if !digitsRe.MatchString(value) {
		return "transaction amount eamount must be an integer cent value"
	}
	return ""
}

func (v *validator) checkCurrency(*domain.Result) string {
	value := v.fields["cur"]
	if value == "" {
		return "currency cur is not set"
	}
	if !curRe.MatchString(value) {
		return "currency cur is not in a valid format"
	}
	return ""
}

func (v *validator) checkDatetime(*domain.Result) string {
	value := v.fields["datetime"]
	if value == "" {
		return "transaction time datetime is not set"
	}
	if len(value) != 14 || !digitsRe.MatchString(value) {
		return "transaction time datetime must use the format \"YYYYMMDDhhmmss\""
	}
	return ""
}

func (v *validator) checkLang(*domain.Result) string {
	value := v.fields["lang"]
	if value == "" {
		return ""
	}
	upper := strings.ToUpper(value)
	for _, known := range languages {
		if upper == known {
			return ""
		}
	}
	return fmt.Sprintf("unknown language code lang (%q)", value)
}

func (v *validator) checkMAC(*domain.Result) string {
	value := v.fields["mac"]
	if value == "" {
		return "signature parameter mac is missing"
	}
	if !hexRe.MatchString(value) {
		return "signature parameter mac must be in HEX format"
	}
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw)%128 != 0 {
		return fmt.Sprintf("signature parameter mac has the wrong length, the value matches a %d bit key; allowed key sizes are 1024, 2048 and 4096 bits", len(raw)*8)
	}
	return ""
}

func (v *validator) checkCharEncoding(*domain.Result) string {
	value := v.fields["charEncoding"]
	if value == "" {
		return ""
	}
	if v.version == "002" {
		return "text encoding parameter charEncoding is not allowed in protocol version 002"
	}
	allowed := v.bank.AllowedCharsets
	if len(allowed) == 0 {
		allowed = []string{v.bank.DefaultCharset}
	}
	for _, cs := range allowed {
		if strings.EqualFold(value, cs) {
			return ""
		}
	}
	return fmt.Sprintf("text encoding parameter charEncoding may be one of: %s (default %s)", strings.Join(allowed, ", "), v.bank.DefaultCharset)
}

func (v *validator) checkFeedbackURL(*domain.Result) string {
	value := v.fields["feedBackUrl"]
	if value != "" && v.version == "002" {
		return "return address feedBackUrl is not allowed in protocol version 002"
	}
	if value == "" && v.version == "004" {
		return "return address feedBackUrl is mandatory in protocol version 004"
	}
	return ""
}

func (v *validator) checkDelivery(*domain.Result) string {
	value := v.fields["delivery"]
	if value != "" && v.version == "002" {
		return "delivery method is not allowed in protocol version 002"
	}
	if value == "" && v.version == "004" {
		return "delivery method is mandatory in protocol version 004"
	}
	if value != "" {
		upper := strings.ToUpper(strings.TrimSpace(value))
		if upper != "S" && upper != "T" {
			return "delivery method must be one of \"S\" or \"T\""
		}
	}
	return ""
}
