package flow

import "strings"

// displayTerms maps raw GA4 vocabulary (mediums, device categories, genders)
// to the Spanish labels the dashboard renders. Terms not in the map pass
// through unchanged.
var displayTerms = map[string]string{
	"organic":  "Orgánico",
	"referral": "Referencia",
	"(none)":   "Directo",
	"(direct)": "Directo",
	"cpc":      "Pago (CPC)",
	"email":    "Email",
	"social":   "Social",
	"desktop":  "Escritorio",
	"mobile":   "Móvil",
	"tablet":   "Tablet",
	"male":     "Hombre",
	"female":   "Mujer",
	"unknown":  "Desconocido",
}

// Translate returns the display label for a raw backend term. Lookup is
// case-insensitive; unknown terms come back as-is and empty input yields "".
func Translate(term string) string {
	if term == "" {
		return ""
	}
	if label, ok := displayTerms[strings.ToLower(term)]; ok {
		return label
	}
	return term
}
