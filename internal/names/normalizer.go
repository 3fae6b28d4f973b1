// Package names canonicalizes administrative-unit names so that records from
// different sources (boundary exports, tally sheets, demographic tables) can
// be matched against one index. Normalization is pure and total: unknown
// names pass through unchanged and simply fail to match later, at join time.
package names

import "strings"

// KeySeparator joins hierarchy parts in composite lookup keys.
const KeySeparator = "|"

// suffixes are administrative qualifiers that appear inconsistently across
// sources ("KAMPALA" vs "KAMPALA MUNICIPALITY" vs "KAMPALA T.C."). Stripped
// iteratively so stacked qualifiers also collapse.
var suffixes = []string{
	" MUNICIPALITY",
	" TOWN COUNCIL",
	" T.C.",
	" T.C",
	" TC",
	" DIVISION",
	" WARD",
}

// corrections maps historical or common misspellings to the spelling used by
// the canonical boundary export. Applied after suffix stripping so
// "Luwero T.C." still corrects.
var corrections = map[string]string{
	"LUWERO":         "LUWEERO",
	"SEMBABULE":      "SSEMBABULE",
	"KYEGEGWA":       "KYEGEGGWA",
	"NAKASONGORA":    "NAKASONGOLA",
	"KABAROLE":       "KABALORE",
	"BUSIA-UGANDA":   "BUSIA",
	"FORT PORTAL":    "FORT-PORTAL",
	"MARACHA-TEREGO": "MARACHA",
}

// Normalize canonicalizes a raw administrative-unit name: trim and uppercase,
// underscores to hyphens, internal whitespace runs collapsed to one space,
// well-known suffixes stripped, and known spelling variants corrected.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.Join(strings.Fields(s), " ")
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range suffixes {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
				stripped = true
			}
		}
	}
	if fixed, ok := corrections[s]; ok {
		return fixed
	}
	return s
}

// LookupKey joins the normalized parts with KeySeparator, skipping empty
// parts. Used to build composite keys across hierarchy levels
// (district|constituency|subcounty|parish).
func LookupKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		if n := Normalize(part); n != "" {
			normalized = append(normalized, n)
		}
	}
	return strings.Join(normalized, KeySeparator)
}
