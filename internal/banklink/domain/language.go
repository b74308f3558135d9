package domain

// languageCodes maps the three-letter banklink language names to the ISO
// 639-1 codes the rest of the system speaks.
var languageCodes = map[string]string{
	"EST": "et",
	"ENG": "en",
	"RUS": "ru",
	"LAT": "lv",
	"LIT": "lt",
	"FIN": "fi",
	"SWE": "sv",
	"GER": "de",
}

const defaultLanguageCode = "et"

func LanguageCode(name string) string {
	if code, ok := languageCodes[name]; ok {
		return code
	}
	return defaultLanguageCode
}
