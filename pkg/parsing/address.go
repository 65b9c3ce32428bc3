package parsing

import (
	"fmt"
	"strings"
	"unicode"
)

var directionals = map[string]bool{"N": true, "S": true, "E": true, "W": true, "NE": true, "NW": true, "SE": true, "SW": true}

var postTypes = map[string]bool{
	"ALY": true, "AVE": true, "BLVD": true, "CIR": true, "CT": true, "DR": true, "EXPY": true,
	"HWY": true, "LN": true, "PKWY": true, "PL": true, "PLZ": true, "RD": true, "SQ": true,
	"ST": true, "TER": true, "TRL": true, "WAY": true,
}

var occupancyTypes = map[string]bool{"APT": true, "BLDG": true, "DEPT": true, "FL": true, "RM": true, "STE": true, "UNIT": true, "#": true}

var states = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true, "DE": true,
	"DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true, "IN": true, "IA": true,
	"KS": true, "KY": true, "LA": true, "ME": true, "MD": true, "MA": true, "MI": true, "MN": true,
	"MS": true, "MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true, "NM": true,
	"NY": true, "NC": true, "ND": true, "OH": true, "OK": true, "OR": true, "PA": true, "RI": true,
	"SC": true, "SD": true, "TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true,
	"WV": true, "WI": true, "WY": true,
}

// RuleAddressParser is a rule-based tagger for canonicalized street labels of the form
// "NUMBER [PREDIR] NAME [TYPE] [POSTDIR] [OCCUPANCY ID] [PLACE] [STATE] [ZIP]".
type RuleAddressParser struct{}

// ParseAddress tags the components of an address label
func (RuleAddressParser) ParseAddress(label string) (Components, error) {
	words := strings.Fields(strings.ToUpper(label))
	if len(words) == 0 {
		return nil, ErrEmpty
	}

	c := Components{}
	words = takeZipAndState(c, words)

	if len(words) >= 3 && words[0] == "PO" && words[1] == "BOX" {
		c[StreetName] = "PO BOX"
		c[AddressNumber] = words[2]
		takePlace(c, words[3:])
		return c, nil
	}

	if !startsWithDigit(words[0]) {
		return nil, fmt.Errorf("%w: %q", ErrNoNumber, label)
	}
	c[AddressNumber] = words[0]
	words = words[1:]

	if len(words) > 1 && directionals[words[0]] && !postTypes[words[1]] {
		c[StreetNamePreDirectional] = words[0]
		words = words[1:]
	}

	var name []string
	i := 0
	for ; i < len(words); i++ {
		w := words[i]
		if len(name) > 0 && postTypes[w] {
			c[StreetNamePostType] = w
			i++
			break
		}
		if len(name) > 0 && occupancyTypes[w] {
			break
		}
		name = append(name, w)
	}
	if len(name) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoStreet, label)
	}
	c[StreetName] = strings.Join(name, " ")
	words = words[i:]

	if len(words) > 0 && directionals[words[0]] {
		c[StreetNamePostDirectional] = words[0]
		words = words[1:]
	}

	if len(words) > 0 && occupancyTypes[words[0]] {
		c[OccupancyType] = words[0]
		words = words[1:]
		if len(words) > 0 && occupancyTypes[words[0]] {
			// "STE # 200"
			words = words[1:]
		}
		if len(words) > 0 {
			c[OccupancyIdentifier] = words[0]
			words = words[1:]
		}
	}

	takePlace(c, words)
	return c, nil
}

// takeZipAndState tags a trailing zip code, and the state before it, and returns the words before them.
// A state is only recognized ahead of a zip code because codes like CT and FL collide with street and unit types.
func takeZipAndState(c Components, words []string) []string {
	n := len(words)
	if n < 2 || !isZip(words[n-1]) {
		return words
	}
	c[ZipCode] = words[n-1]
	words = words[:n-1]
	if n := len(words); n > 2 && states[words[n-1]] {
		c[StateName] = words[n-1]
		words = words[:n-1]
	}
	return words
}

func takePlace(c Components, words []string) {
	if len(words) > 0 {
		c[PlaceName] = strings.Join(words, " ")
	}
}

func isZip(w string) bool {
	digits, plus4, hasPlus := strings.Cut(w, "-")
	if len(digits) != 5 || !allDigits(digits) {
		return false
	}
	return !hasPlus || (len(plus4) == 4 && allDigits(plus4))
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func startsWithDigit(s string) bool {
	return s != "" && unicode.IsDigit(rune(s[0]))
}
