package utils

import "strings"

// amenityAliases maps the phrasings users and LLMs produce to canonical
// amenity ids. Unmapped values fall through unchanged and are judged
// against the vocabulary by the caller.
var amenityAliases = map[string]string{
	"swimming pool":    "pool",
	"pools":            "pool",
	"gymnasium":        "gym",
	"fitness":          "gym",
	"fitness center":   "gym",
	"air conditioner":  "aircon",
	"air conditioning": "aircon",
	"a/c":              "aircon",
	"ac":               "aircon",
	"car park":         "parking",
	"covered parking":  "parking",
	"garage":           "parking",
	"terrace":          "balcony",
	"24-hour security": "security",
	"24hr security":    "security",
	"guarded":          "security",
	"tennis court":     "tennis",
	"barbecue":         "bbq",
	"bbq pit":          "bbq",
	"bbq pits":         "bbq",
	"sea view":         "sea_view",
	"ocean view":       "sea_view",
	"fully furnished":  "furnished",
	"lift":             "elevator",
	"kids playground":  "playground",
}

// NormalizeAmenityToken folds a free-form amenity mention into its
// canonical id.
func NormalizeAmenityToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := amenityAliases[token]; ok {
		return canonical
	}
	return token
}

// NormalizeLocationToken lower-cases and trims a location mention.
func NormalizeLocationToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeQuery canonicalizes free text for embedding and cache
// fingerprinting: trimmed, lower-cased, single-spaced.
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}
