package names

import (
	"strings"
)

// Facility-type markers seen in raw warehouse names. Matching is done on
// whole tokens after separator collapsing, so "РФЦ Москва" and
// "Москва РФЦ" both resolve through the same template.
var facilityTypeTokens = map[string]string{
	"РФЦ":   "РФЦ",
	"ФЦ":    "ФЦ",
	"СЦ":    "СЦ",
	"МФЦ":   "МФЦ",
	"ХАБ":   "ХАБ",
	"HUB":   "ХАБ",
	"FC":    "ФЦ",
	"DC":    "РЦ",
	"РЦ":    "РЦ",
	"СКЛАД": "СКЛАД",
}

var cityAliases = map[string]string{
	"МСК":    "МОСКВА",
	"МОСКВА": "МОСКВА",
	"СПБ":    "САНКТ_ПЕТЕРБУРГ",
	"ПИТЕР":  "САНКТ_ПЕТЕРБУРГ",
	"ЕКБ":    "ЕКАТЕРИНБУРГ",
	"НСК":    "НОВОСИБИРСК",
	"РНД":    "РОСТОВ_НА_ДОНУ",
	"КРД":    "КРАСНОДАР",
	"НН":     "НИЖНИЙ_НОВГОРОД",
}

var separatorReplacer = strings.NewReplacer(
	"-", " ",
	"_", " ",
	"/", " ",
	"\\", " ",
	".", " ",
	",", " ",
	"(", " ",
	")", " ",
	"\"", " ",
	"«", " ",
	"»", " ",
)

func tokenize(raw string) []string {
	collapsed := separatorReplacer.Replace(raw)
	fields := strings.Fields(collapsed)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		tokens = append(tokens, strings.ToUpper(field))
	}
	return tokens
}

// applyTemplates derives a canonical key from known facility-type and
// city-alias tokens. Token order in the raw name does not matter.
func applyTemplates(raw string) (string, bool) {
	tokens := tokenize(raw)
	if len(tokens) < 2 {
		return "", false
	}

	facility := ""
	rest := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if canonical, ok := facilityTypeTokens[token]; ok && facility == "" {
			facility = canonical
			continue
		}
		rest = append(rest, token)
	}
	if facility == "" || len(rest) == 0 {
		return "", false
	}

	for i, token := range rest {
		if alias, ok := cityAliases[token]; ok {
			rest[i] = alias
		}
	}
	return strings.Join(rest, "_") + "_" + facility, true
}

// Slugify is the last-resort canonical key: uppercase with separator runs
// collapsed to a single underscore. Applying it to its own output is a
// no-op, which keeps fallback keys stable across repeated normalization.
func Slugify(raw string) string {
	return strings.Join(tokenize(raw), "_")
}
