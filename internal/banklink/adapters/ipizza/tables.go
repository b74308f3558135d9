package ipizza

// Wire-level tables for the IPizza protocol family (Estonian VK_ banklink).
// These orders are the bit-exact compatibility contract; do not reorder.

const versionValue = "008"

var allowedCurrencies = []string{"EUR", "LVL", "LTL"}

var languages = []string{"EST", "ENG", "RUS", "LAT", "LIT", "FIN", "SWE"}

const defaultLanguage = "EST"

// Inbound service codes. 1001 is a payment order, 1002 a payment order
// whose receiver comes from the merchant contract; 4001/4002 are the
// identification services some banks expose on the same endpoint.
var serviceTypes = map[string]string{
	"1001": "PAYMENT",
	"1002": "PAYMENT",
	"4001": "IDENTIFICATION",
	"4002": "IDENTIFICATION",
}

var serviceFields = map[string][]string{
	"1001": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_STAMP",
		"VK_AMOUNT",
		"VK_CURR",
		"VK_ACC",
		"VK_NAME",
		"VK_REF",
		"VK_MSG",
		"VK_MAC",
		"VK_RETURN",
		"VK_ENCODING",
		"VK_CHARSET",
		"VK_CANCEL",
		"VK_LANG",
	},
	"1002": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_STAMP",
		"VK_AMOUNT",
		"VK_CURR",
		"VK_REF",
		"VK_MSG",
		"VK_MAC",
		"VK_RETURN",
		"VK_ENCODING",
		"VK_CHARSET",
		"VK_CANCEL",
		"VK_LANG",
	},
}

// Fields the contract-receiver service must not carry.
var blockedFields = map[string][]string{
	"1002": {"VK_ACC", "VK_NAME"},
}

var signatureOrder = map[string][]string{
	// payment order
	"1001": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_STAMP",
		"VK_AMOUNT",
		"VK_CURR",
		"VK_ACC",
		"VK_NAME",
		"VK_REF",
		"VK_MSG",
	},
	// payment order, contract receiver
	"1002": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_STAMP",
		"VK_AMOUNT",
		"VK_CURR",
		"VK_REF",
		"VK_MSG",
	},
	// successful transaction
	"1101": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_REC_ID",
		"VK_STAMP",
		"VK_T_NO",
		"VK_AMOUNT",
		"VK_CURR",
		"VK_REC_ACC",
		"VK_REC_NAME",
		"VK_SND_ACC",
		"VK_SND_NAME",
		"VK_REF",
		"VK_MSG",
		"VK_T_DATE",
	},
	// cancelled transaction
	"1901": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_REC_ID",
		"VK_STAMP",
		"VK_REF",
		"VK_MSG",
	},
	// rejected transaction
	"1902": {
		"VK_SERVICE",
		"VK_VERSION",
		"VK_SND_ID",
		"VK_REC_ID",
		"VK_STAMP",
		"VK_REF",
		"VK_MSG",
		"VK_ERROR_CODE",
	},
}
