package aab

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/reference"
)

var (
	versionRe = regexp.MustCompile(`^\d{4}$`)
	stampRe   = regexp.MustCompile(`^\d+$`)
	amountRe  = regexp.MustCompile(`^\d*(\.\d{1,2})?$`)
	refRe     = regexp.MustCompile(`^\d{2,}$`)
	macRe     = regexp.MustCompile(`^[A-F0-9]+$`)
	langRe    = regexp.MustCompile(`^\d$`)
)

const maxMessageLength = 210

type validator struct {
	bank    *domain.BankDefinition
	adapter *Adapter
	version string
	algo    string
}

type fieldCheck func(res *domain.Result) string

func (v *validator) validateFields() domain.Result {
	res := domain.OKResult()

	checks := map[string]fieldCheck{
		"VERSION":  v.checkVersion,
		"STAMP":    v.checkStamp,
		"RCV_ID":   v.checkReceiverID,
		"LANGUAGE": v.checkLanguage,
		"AMOUNT":   v.checkAmount,
		"REF":      v.checkReference,
		"DATE":     v.checkDate,
		"MSG":      v.checkMessage,
		"RETURN":   v.checkTarget("RETURN"),
		"CANCEL":   v.checkTarget("CANCEL"),
		"REJECT":   v.checkTarget("REJECT"),
		"MAC":      v.checkMAC,
		"CONFIRM":  v.checkConfirm,
		"KEYVERS":  v.checkKeyVersion,
		"CUR":      v.checkCurrency,
	}

	for _, field := range serviceFields[serviceIn] {
		check := checks[field]
		if check == nil {
			continue
		}
		name := v.adapter.prefix + field
		value := v.adapter.field(field)
		if msg := check(&res); msg != "" {
			res.AddError(name, value, msg)
			continue
		}
		if limit, ok := v.bank.FieldLength[field]; ok && len([]rune(value)) > limit {
			res.AddWarning(name, value, fmt.Sprintf("field %s is %d characters long, at most %d is allowed", name, len([]rune(value)), limit))
		}
	}

	return res
}

func (v *validator) checkVersion(*domain.Result) string {
	name := v.adapter.prefix + "VERSION"
	value := v.adapter.field("VERSION")
	if value == "" {
		return fmt.Sprintf("service version %s must be set", name)
	}
	if !versionRe.MatchString(value) {
		return fmt.Sprintf("service version %s (%q) must be a four digit number", name, value)
	}
	for _, known := range versions {
		if value == known {
			return ""
		}
	}
	return fmt.Sprintf("service version %s (%q) is not supported, allowed values: %s", name, value, strings.Join(versions, ", "))
}

func (v *validator) checkMAC(*domain.Result) string {
	name := v.adapter.prefix + "MAC"
	value := v.adapter.field("MAC")
	if value == "" {
		return fmt.Sprintf("signature parameter %s must be set", name)
	}
	if !macRe.MatchString(value) {
		return fmt.Sprintf("signature parameter %s must be uppercase HEX", name)
	}
	if v.algo == "md5" && len(value) == 40 {
		return fmt.Sprintf("signature parameter %s must be an MD5 digest but looks like SHA1", name)
	}
	if v.algo == "sha1" && len(value) == 32 {
		return fmt.Sprintf("signature parameter %s must be a SHA1 digest but looks like MD5", name)
	}
	return ""
}

func (v *validator) checkStamp(*domain.Result) string {
	name := v.adapter.prefix + "STAMP"
	value := v.adapter.field("STAMP")
	if value == "" {
		return fmt.Sprintf("payment order id %s must be set", name)
	}
	if !stampRe.MatchString(value) {
		return fmt.Sprintf("payment order id %s must be numeric", name)
	}
	return ""
}

func (v *validator) checkReceiverID(*domain.Result) string {
	if v.adapter.field("RCV_ID") == "" {
		return fmt.Sprintf("client id %s must be set", v.adapter.prefix+"RCV_ID")
	}
	return ""
}

func (v *validator) checkLanguage(*domain.Result) string {
	name := v.adapter.prefix + "LANGUAGE"
	value := v.adapter.field("LANGUAGE")
	if value == "" {
		return fmt.Sprintf("language selector %s must be set", name)
	}
	if !langRe.MatchString(value) {
		return fmt.Sprintf("language selector %s must be a single digit", name)
	}
	return ""
}

func (v *validator) checkAmount(*domain.Result) string {
	name := v.adapter.prefix + "AMOUNT"
	value := v.adapter.field("AMOUNT")
	if value == "" {
		return fmt.Sprintf("payment amount %s must be set", name)
	}
	if !amountRe.MatchString(value) {
		return fmt.Sprintf("payment amount %s must look like \"123.45\"", name)
	}
	return ""
}

func (v *validator) checkReference(*domain.Result) string {
	name := v.adapter.prefix + "REF"
	value := v.adapter.field("REF")
	if value == "" {
		return ""
	}
	if !refRe.MatchString(value) {
		return fmt.Sprintf("reference number %s (%q) must be a number of at least two digits", name, value)
	}
	if !reference.Valid(value) {
		return fmt.Sprintf("reference number %s is invalid - expected %q, got %q", name, reference.Complete(value[:len(value)-1]), value)
	}
	return ""
}

func (v *validator) checkDate(*domain.Result) string {
	name := v.adapter.prefix + "DATE"
	value := v.adapter.field("DATE")
	if value == "" {
		return fmt.Sprintf("payment due date %s must be set", name)
	}
	if !strings.EqualFold(value, "EXPRESS") {
		return fmt.Sprintf("the only allowed value of payment due date %s is EXPRESS", name)
	}
	return ""
}

func (v *validator) checkMessage(*domain.Result) string {
	name := v.adapter.prefix + "MSG"
	value := v.adapter.field("MSG")
	if value == "" {
		return fmt.Sprintf("payment description %s must be set", name)
	}
	if n := len([]rune(value)); n > maxMessageLength {
		return fmt.Sprintf("payment description %s may be at most %d characters, currently %d", name, maxMessageLength, n)
	}
	return ""
}

func (v *validator) checkTarget(field string) fieldCheck {
	return func(*domain.Result) string {
		name := v.adapter.prefix + field
		value := v.adapter.field(field)
		if value == "" {
			return fmt.Sprintf("return address %s must be set", name)
		}
		if !validURL(value) {
			return fmt.Sprintf("return address %s must be a valid URL", name)
		}
		return ""
	}
}

func (v *validator) checkConfirm(*domain.Result) string {
	name := v.adapter.prefix + "CONFIRM"
	value := v.adapter.field("CONFIRM")
	if value == "" {
		return fmt.Sprintf("payment confirmation %s must be set", name)
	}
	if !strings.EqualFold(value, "YES") {
		return fmt.Sprintf("the only allowed value of payment confirmation %s is YES, otherwise the result is never reported", name)
	}
	return ""
}

func (v *validator) checkKeyVersion(*domain.Result) string {
	name := v.adapter.prefix + "KEYVERS"
	value := v.adapter.field("KEYVERS")
	if value == "" {
		return fmt.Sprintf("key version %s must be set", name)
	}
	if !versionRe.MatchString(value) {
		return fmt.Sprintf("key version %s must be a four digit number, for example \"0001\"", name)
	}
	return ""
}

func (v *validator) checkCurrency(*domain.Result) string {
	name := v.adapter.prefix + "CUR"
	value := v.adapter.field("CUR")
	if value == "" {
		return fmt.Sprintf("currency %s must be set", name)
	}
	for _, cur := range allowedCurrencies {
		if value == cur {
			return ""
		}
	}
	return fmt.Sprintf("currency %s (%q) must be one of: %s", name, value, strings.Join(allowedCurrencies, ", "))
}

func validURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
