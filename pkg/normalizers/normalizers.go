// Package normalizers provides named label normalizers used before parsing and grouping
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("nlabel", NormalizeNameLabel)
	Register("nstreet", NormalizeStreet)
	Register("ncompany", NormalizeCompany)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// CollapseWhitespace trims and replaces every whitespace run with one space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeNameLabel prepares a person or company label for the name parser:
// periods stripped, trimmed, and a trailing " SAME" removed.
func NormalizeNameLabel(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	if strings.HasSuffix(s, " SAME") {
		s = strings.TrimSpace(strings.TrimSuffix(s, " SAME"))
	}
	return s
}

// tokens uppercases s and splits it into words, treating punctuation other than '#', '-', '/' and '&' as
// a separator. '#' always stands alone.
func tokens(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r == '#':
			b.WriteString(" # ")
		case r == '-' || r == '/' || r == '&':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '\'':
			// dropped without splitting: "ST." -> "ST", "O'HARE" -> "OHARE"
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// NormalizeStreet canonicalizes a street address the way USPS abbreviates it:
// uppercase, punctuation and whitespace collapsed, suffix, directional and unit words abbreviated.
func NormalizeStreet(s string) string {
	words := tokens(s)
	for i, w := range words {
		if abbr, ok := StreetAbbreviations[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}

// NormalizeCompany canonicalizes a company name for grouping: uppercase, punctuation dropped, a
// leading THE removed and legal types abbreviated.
func NormalizeCompany(s string) string {
	words := tokens(strings.ReplaceAll(s, ",", " "))
	words = collapseInitials(words)
	if len(words) > 1 && words[0] == "THE" {
		words = words[1:]
	}
	for i, w := range words {
		if w == "&" {
			words[i] = "AND"
			continue
		}
		if abbr, ok := LegalTypes[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}

// collapseInitials joins runs of single letters, so "L L C" becomes "LLC"
func collapseInitials(words []string) []string {
	out := make([]string, 0, len(words))
	run := ""
	flush := func() {
		if run != "" {
			out = append(out, run)
			run = ""
		}
	}
	for _, w := range words {
		if len(w) == 1 && unicode.IsLetter(rune(w[0])) {
			run += w
			continue
		}
		flush()
		out = append(out, w)
	}
	flush()
	return out
}

// StreetAbbreviations maps street suffix, directional and unit words to their USPS abbreviations
var StreetAbbreviations = map[string]string{
	// suffixes
	"ALLEY":      "ALY",
	"AVENUE":     "AVE",
	"AV":         "AVE",
	"BOULEVARD":  "BLVD",
	"CIRCLE":     "CIR",
	"COURT":      "CT",
	"DRIVE":      "DR",
	"EXPRESSWAY": "EXPY",
	"HIGHWAY":    "HWY",
	"LANE":       "LN",
	"PARKWAY":    "PKWY",
	"PLACE":      "PL",
	"PLAZA":      "PLZ",
	"ROAD":       "RD",
	"SQUARE":     "SQ",
	"STREET":     "ST",
	"STR":        "ST",
	"TERRACE":    "TER",
	"TRAIL":      "TRL",
	"WAY":        "WAY",
	// directionals
	"NORTH":     "N",
	"SOUTH":     "S",
	"EAST":      "E",
	"WEST":      "W",
	"NORTHEAST": "NE",
	"NORTHWEST": "NW",
	"SOUTHEAST": "SE",
	"SOUTHWEST": "SW",
	// units
	"APARTMENT":  "APT",
	"BUILDING":   "BLDG",
	"DEPARTMENT": "DEPT",
	"FLOOR":      "FL",
	"ROOM":       "RM",
	"SUITE":      "STE",
	"UNIT":       "UNIT",
}

// LegalTypes maps company legal-type words to their common abbreviations
var LegalTypes = map[string]string{
	"INCORPORATED": "INC",
	"CORPORATION":  "CORP",
	"COMPANY":      "CO",
	"LIMITED":      "LTD",
}
