package aab

const (
	serviceIn  = "PAYMENT-IN"
	serviceOut = "PAYMENT-OUT"

	// Inbound parameters carry an underscore prefix, outbound ones a dash.
	requestPrefix  = "AAB_"
	responsePrefix = "AAB-"

	defaultVersion  = "0002"
	defaultLanguage = "FIN"
)

var versions = []string{"0002"}

var allowedCurrencies = []string{"EUR"}

var languages = map[string]string{
	"1": "FIN",
	"2": "SWE",
}

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
}
