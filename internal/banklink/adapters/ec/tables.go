package ec

const (
	actionRequest  = "gaf"
	actionResponse = "afb"

	defaultVersion  = "002"
	defaultLanguage = "EST"
)

var languages = []string{"ET", "EN", "FI", "DE"}

var languageNames = map[string]string{
	"ET": "EST",
	"EN": "ENG",
	"FI": "FIN",
	"DE": "GER",
}

var actionFields = map[string][]string{
	actionRequest: {
		"action",
		"ver",
		"id",
		"ecuno",
		"eamount",
		"cur",
		"datetime",
		"mac",
		"lang",
		"charEncoding",
		"feedBackUrl",
		"delivery",
	},
	actionResponse: {
		"action",
		"ver",
		"id",
		"ecuno",
		"receipt_no",
		"eamount",
		"cur",
		"respcode",
		"datetime",
		"msgdata",
		"actiontext",
		"mac",
		"charEncoding",
		"auto",
	},
}

var signatureOrder = map[string]map[string][]string{
	"002": {
		actionRequest: {
			"ver",
			"id",
			"ecuno",
			"eamount",
			"cur",
			"datetime",
		},
		actionResponse: {
			"ver",
			"id",
			"ecuno",
			"receipt_no",
			"eamount",
			"cur",
			"respcode",
			"datetime",
			"msgdata",
			"actiontext",
		},
	},
	"004": {
		actionRequest: {
			"ver",
			"id",
			"ecuno",
			"eamount",
			"cur",
			"datetime",
			"feedBackUrl",
			"delivery",
		},
		actionResponse: {
			"ver",
			"id",
			"ecuno",
			"receipt_no",
			"eamount",
			"cur",
			"respcode",
			"datetime",
			"msgdata",
			"actiontext",
		},
	},
}

// signatureLength is the fixed field width in the MAC source. Negative
// widths are left justified and padded with spaces on the right, positive
// widths are right justified and padded with zeroes on the left. Values
// longer than the width are kept as is.
var signatureLength = map[string]int{
	"action":       -3,
	"ver":          3,
	"id":           -10,
	"ecuno":        12,
	"eamount":      12,
	"cur":          -3,
	"lang":         -2,
	"datetime":     -14,
	"receipt_no":   6,
	"respcode":     3,
	"msgdata":      -40,
	"actiontext":   -40,
	"charEncoding": -16,
	"feedBackUrl":  -128,
	"delivery":     -1,
	"auto":         -1,
}
