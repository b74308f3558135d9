package solo

const (
	serviceIn  = "PAYMENT-IN"
	serviceOut = "PAYMENT-OUT"

	fieldPrefix = "SOLOPMT_"

	defaultVersion  = "0002"
	defaultLanguage = "EST"
)

var versions = []string{"0002", "0003", "0004"}

var allowedCurrencies = []string{"EUR", "LVL", "LTL"}

var languages = map[string]string{
	"1": "FIN",
	"2": "SWE",
	"3": "ENG",
	"4": "EST",
	"5": "RUS",
	"6": "LAT",
	"7": "LIT",
}

// serviceFields lists every recognized inbound parameter; the prefix rule
// is enforced against this set.
var serviceFields = map[string][]string{
	serviceIn: {
		"VERSION",
		"STAMP",
		"RCV_ID",
		"RCV_ACCOUNT",
		"RCV_NAME",
		"LANGUAGE",
		"AMOUNT",
		"REF",
		"TAX_CODE",
		"DATE",
		"MSG",
		"RETURN",
		"CANCEL",
		"REJECT",
		"MAC",
		"CONFIRM",
		"KEYVERS",
		"CUR",
	},
}

// signatureOrder gives the MAC source field order per protocol version.
// Version 0003 signs the same fields as 0002.
var signatureOrder = map[string]map[string][]string{
	"0002": {
		serviceIn: {
			"VERSION",
			"STAMP",
			"RCV_ID",
			"AMOUNT",
			"REF",
			"DATE",
			"CUR",
		},
		serviceOut: {
			"RETURN_VERSION",
			"RETURN_STAMP",
			"RETURN_REF",
			"RETURN_PAID",
		},
	},
	"0004": {
		serviceIn: {
			"VERSION",
			"STAMP",
			"RCV_ID",
			"AMOUNT",
			"REF",
			"TAX_CODE",
			"DATE",
			"CUR",
		},
		serviceOut: {
			"RETURN_VERSION",
			"RETURN_STAMP",
			"RETURN_REF",
			"RETURN_PAYER_NAME",
			"RETURN_PAYER_ACCOUNT",
			"RETURN_TAX_CODE",
			"RETURN_MSG",
			"RETURN_PAID",
		},
	},
}

func init() {
	signatureOrder["0003"] = signatureOrder["0002"]
}
