package ipizza

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/iban"
	"github.com/banklabs/banklink/internal/banklink/reference"
)

var (
	serviceRe = regexp.MustCompile(`^\d{4}$`)
	stampRe   = regexp.MustCompile(`^\d+$`)
	amountRe  = regexp.MustCompile(`^\d*(\.\d{1,2})?$`)
	refRe     = regexp.MustCompile(`^\d{2,}$`)
	base64Re  = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
)

type validator struct {
	bank   *domain.BankDefinition
	fields map[string]string
}

// fieldCheck returns an error message for a blocking problem, "" otherwise;
// advisory findings go straight onto the result.
type fieldCheck func(res *domain.Result) string

// validateFields runs every check for the declared service. An unknown or
// disallowed service code aborts the remaining field checks, since the
// field set itself depends on it.
func (v *validator) validateFields() domain.Result {
	res := domain.OKResult()

	service := v.fields["VK_SERVICE"]
	if msg := v.checkService(); msg != "" {
		res.AddError("VK_SERVICE", service, msg)
		return res
	}

	checks := map[string]fieldCheck{
		"VK_SERVICE":  func(*domain.Result) string { return "" },
		"VK_VERSION":  v.checkVersion,
		"VK_SND_ID":   v.checkSenderID,
		"VK_STAMP":    v.checkStamp,
		"VK_AMOUNT":   v.checkAmount,
		"VK_CURR":     v.checkCurrency,
		"VK_ACC":      v.checkAccount,
		"VK_NAME":     v.checkName,
		"VK_REF":      v.checkReference,
		"VK_MSG":      func(*domain.Result) string { return "" },
		"VK_MAC":      v.checkMAC,
		"VK_RETURN":   v.checkReturn,
		"VK_CANCEL":   v.checkCancel,
		"VK_ENCODING": v.checkEncoding,
		"VK_CHARSET":  v.checkCharset,
		"VK_LANG":     v.checkLang,
	}

	for _, field := range serviceFields[service] {
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
		} else if re, ok := v.bank.FieldRegex[field]; ok && !re.MatchString(value) {
			res.AddError(field, value, fmt.Sprintf("field %s contains invalid characters", field))
		}
	}

	for _, field := range blockedFields[service] {
		if v.fields[field] != "" {
			res.AddWarning(field, v.fields[field], fmt.Sprintf("field %s is not allowed for service %s", field, service))
		}
	}

	return res
}

func (v *validator) checkService() string {
	value := v.fields["VK_SERVICE"]
	if value == "" {
		return "service code VK_SERVICE is missing"
	}
	if !serviceRe.MatchString(value) {
		return fmt.Sprintf("service code VK_SERVICE (%q) must be a four digit number", value)
	}
	if _, known := serviceFields[value]; !known || !v.serviceAllowed(value) {
		allowed := v.bank.AllowedServices
		if len(allowed) == 0 {
			allowed = []string{"1001", "1002"}
		}
		return fmt.Sprintf("service code VK_SERVICE (%q) is not supported, allowed values: %s", value, strings.Join(allowed, ", "))
	}
	return ""
}

func (v *validator) serviceAllowed(service string) bool {
	if len(v.bank.AllowedServices) == 0 {
		return true
	}
	for _, s := range v.bank.AllowedServices {
		if s == service {
			return true
		}
	}
	return false
}

func (v *validator) checkVersion(*domain.Result) string {
	value := v.fields["VK_VERSION"]
	if value == "" {
		return "crypto algorithm VK_VERSION is missing"
	}
	if value != versionValue {
		return fmt.Sprintf("crypto algorithm VK_VERSION (%q) must be %s", value, versionValue)
	}
	return ""
}

func (v *validator) checkSenderID(*domain.Result) string {
	if v.fields["VK_SND_ID"] == "" {
		return "sender id VK_SND_ID must be set"
	}
	return ""
}

func (v *validator) checkStamp(*domain.Result) string {
	value := v.fields["VK_STAMP"]
	if value == "" {
		return "request id VK_STAMP must be set"
	}
	if !stampRe.MatchString(value) {
		return fmt.Sprintf("request id VK_STAMP (%q) must be numeric", value)
	}
	return ""
}

func (v *validator) checkAmount(*domain.Result) string {
	value := v.fields["VK_AMOUNT"]
	if value == "" {
		return "payment amount VK_AMOUNT must be set"
	}
	if !amountRe.MatchString(value) {
		return fmt.Sprintf("payment amount VK_AMOUNT (%q) must look like \"123.45\"", value)
	}
	return ""
}

func (v *validator) checkCurrency(*domain.Result) string {
	value := v.fields["VK_CURR"]
	if value == "" {
		return "currency VK_CURR must be set"
	}
	for _, cur := range allowedCurrencies {
		if value == cur {
			return ""
		}
	}
	return fmt.Sprintf("currency VK_CURR (%q) must be one of: %s", value, strings.Join(allowedCurrencies, ", "))
}

func (v *validator) checkAccount(res *domain.Result) string {
	value := v.fields["VK_ACC"]
	if value == "" {
		return "receiver account VK_ACC must be set"
	}
	if !iban.Valid(value) {
		res.AddWarning("VK_ACC", value, fmt.Sprintf("receiver account VK_ACC (%q) is not a valid IBAN", value))
	}
	return ""
}

func (v *validator) checkName(*domain.Result) string {
	if v.fields["VK_NAME"] == "" {
		return "receiver name VK_NAME must be set"
	}
	return ""
}

func (v *validator) checkReference(*domain.Result) string {
	value := v.fields["VK_REF"]
	if value == "" {
		return ""
	}
	if !refRe.MatchString(value) {
		return fmt.Sprintf("reference number VK_REF (%q) must be a number of at least two digits", value)
	}
	if !reference.Valid(value) {
		return fmt.Sprintf("reference number VK_REF is invalid - expected %q, got %q", reference.Complete(value[:len(value)-1]), value)
	}
	return ""
}

func (v *validator) checkMAC(*domain.Result) string {
	value := v.fields["VK_MAC"]
	if value == "" {
		return "signature parameter VK_MAC must be set"
	}
	if !base64Re.MatchString(value) {
		return "signature parameter VK_MAC must be in BASE64 format"
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw)%128 != 0 {
		return fmt.Sprintf("signature parameter VK_MAC has the wrong length, the value matches a %d bit key; allowed key sizes are 1024, 2048 and 4096 bits", len(raw)*8)
	}
	return ""
}

// vkParams lists VK_-prefixed query parameters of a return URL; banks
// reject those because they collide with the response fields.
func vkParams(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var out []string
	for key := range parsed.Query() {
		if strings.HasPrefix(key, "VK_") {
			out = append(out, key)
		}
	}
	return out
}

func (v *validator) checkReturn(res *domain.Result) string {
	value := v.fields["VK_RETURN"]
	if value == "" {
		return "return address VK_RETURN must be set"
	}
	if list := vkParams(value); len(list) > 0 {
		return fmt.Sprintf("return address VK_RETURN must not contain VK_ prefixed query parameters, currently used: %s", strings.Join(list, ", "))
	}
	if v.bank.DisallowQueryParams {
		if parsed, err := url.Parse(value); err == nil && parsed.RawQuery != "" {
			res.AddWarning("VK_RETURN", value, fmt.Sprintf("%s does not allow query parameters in the return address VK_RETURN", v.bank.Name))
		}
	}
	return ""
}

func (v *validator) checkCancel(res *domain.Result) string {
	value := v.fields["VK_CANCEL"]
	if _, present := v.fields["VK_CANCEL"]; present && v.bank.CancelField != "VK_CANCEL" {
		res.AddWarning("VK_CANCEL", value, fmt.Sprintf("%s does not use the return address VK_CANCEL, use VK_RETURN instead", v.bank.Name))
	}
	if value == "" {
		return ""
	}
	if list := vkParams(value); len(list) > 0 {
		return fmt.Sprintf("return address VK_CANCEL must not contain VK_ prefixed query parameters, currently used: %s", strings.Join(list, ", "))
	}
	return ""
}

func (v *validator) checkCharsetField(name string, res *domain.Result) string {
	value := v.fields[name]
	if value == "" {
		return ""
	}
	if v.bank.CharsetField == "" {
		return fmt.Sprintf("%s does not allow setting the text encoding with parameter %s", v.bank.Name, name)
	}
	if v.bank.CharsetField != name {
		return fmt.Sprintf("%s requires parameter %s instead of %s", v.bank.Name, v.bank.CharsetField, name)
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
	return fmt.Sprintf("text encoding parameter %s (%q) may be one of: %s (default %s)", name, value, strings.Join(allowed, ", "), v.bank.DefaultCharset)
}

func (v *validator) checkEncoding(res *domain.Result) string {
	return v.checkCharsetField("VK_ENCODING", res)
}

func (v *validator) checkCharset(res *domain.Result) string {
	return v.checkCharsetField("VK_CHARSET", res)
}

func (v *validator) checkLang(*domain.Result) string {
	value := v.fields["VK_LANG"]
	if value == "" {
		return ""
	}
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, known := range languages {
		if upper == known {
			return ""
		}
	}
	return fmt.Sprintf("language parameter VK_LANG (%q) may be one of: %s (default %s)", value, strings.Join(languages, ", "), defaultLanguage)
}
