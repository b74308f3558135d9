package domain

import "regexp"

// Protocol family keys. Solo and AAB share most of their wire format but
// differ in prefixes, versions and language tables, so they stay separate.
const (
	ProtocolIPizza = "ipizza"
	ProtocolSolo   = "solo"
	ProtocolAab    = "aab"
	ProtocolEC     = "ec"
)

// BankDefinition is the static per-bank configuration loaded at start.
// Immutable for the process lifetime.
type BankDefinition struct {
	// Key is the registry key merchants are bound to ("swedbank", "seb", ...).
	Key      string
	Protocol string
	Name     string

	// SenderID is the identifier the emulated bank answers as (VK_SND_ID
	// of outbound IPizza messages).
	SenderID string

	DefaultCharset  string
	AllowedCharsets []string
	// CharsetField names the inbound field carrying the charset
	// ("VK_CHARSET", "VK_ENCODING", "charEncoding"); empty when the bank
	// does not let clients pick one.
	CharsetField string
	ForceCharset string

	// AllowedServices restricts IPizza service codes for this bank; nil
	// allows every service the protocol knows.
	AllowedServices []string

	// Redirect-target field names (unprefixed for the Solo family).
	ReturnField string
	CancelField string
	RejectField string

	// ReturnMethod is how the signed outcome is returned to the merchant;
	// POST when empty.
	ReturnMethod string
	AllowGet     bool

	// DisallowQueryParams marks banks that reject return URLs carrying a
	// query string (warning level).
	DisallowQueryParams bool

	// ByteLength switches IPizza MAC length prefixes from rune counts to
	// UTF-8 byte counts, matching the bank's published convention.
	ByteLength bool

	FieldLength map[string]int
	FieldRegex  map[string]*regexp.Regexp

	// Account number shape used to fabricate sender accounts for test
	// payments.
	AccountNr     string
	AccountPrefix string
	AccountLength int
}
