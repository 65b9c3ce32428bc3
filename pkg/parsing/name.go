package parsing

import (
	"fmt"
	"strings"
	"unicode"
)

var maritalPrefixes = map[string]bool{"MR": true, "MRS": true, "MS": true, "MISS": true, "DR": true}

var generationalSuffixes = map[string]bool{"JR": true, "SR": true, "II": true, "III": true, "IV": true, "V": true}

var otherSuffixes = map[string]bool{"ESQ": true, "MD": true, "PHD": true, "CPA": true, "DDS": true, "DO": true}

// legalTypes end a company name and become its CorporationLegalType
var legalTypes = map[string]bool{
	"LLC": true, "INC": true, "CORP": true, "CO": true, "LTD": true, "LP": true, "LLP": true,
	"PC": true, "PLLC": true, "NA": true, "CORPORATION": true, "INCORPORATED": true,
	"LIMITED": true, "COMPANY": true,
}

// corporateWords anywhere in a label make it a company name
var corporateWords = map[string]bool{
	"TRUST": true, "BANK": true, "HOLDINGS": true, "GROUP": true, "PARTNERS": true,
	"PARTNERSHIP": true, "ASSOCIATES": true, "ENTERPRISES": true, "SERVICES": true,
	"FOUNDATION": true, "ASSOCIATION": true, "FUND": true, "CAPITAL": true, "PROPERTIES": true,
	"INVESTMENTS": true, "MANAGEMENT": true, "VENTURES": true, "REALTY": true, "CHURCH": true,
	"UNIVERSITY": true, "SOCIETY": true,
}

// RuleNameParser is a rule-based tagger for registry name labels. It understands
// "SURNAME, GIVEN [MIDDLE] [SUFFIX]", "GIVEN [MIDDLE] SURNAME [SUFFIX]" and company names.
type RuleNameParser struct{}

// ParseName tags the components of a name label
func (RuleNameParser) ParseName(label string) (Components, error) {
	label = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(label, ".", "")))
	if label == "" {
		return nil, ErrEmpty
	}

	words := strings.Fields(strings.ReplaceAll(label, ",", " , "))
	if isCorporate(words) {
		return parseCorporation(words), nil
	}

	switch strings.Count(label, ",") {
	case 0:
		return parseNatural(words)
	case 1:
		return parseInverted(label)
	default:
		return nil, fmt.Errorf("%w: %q has more than one comma", ErrAmbiguous, label)
	}
}

func isCorporate(words []string) bool {
	for _, w := range words {
		w = strings.Trim(w, ",")
		if legalTypes[w] || corporateWords[w] {
			return true
		}
	}
	return false
}

func parseCorporation(words []string) Components {
	clean := make([]string, 0, len(words))
	for _, w := range words {
		if w != "," {
			clean = append(clean, w)
		}
	}
	end := len(clean)
	for end > 1 && legalTypes[clean[end-1]] {
		end--
	}
	c := Components{CorporationName: strings.Join(clean[:end], " ")}
	if end < len(clean) {
		c[CorporationLegalType] = strings.Join(clean[end:], " ")
	}
	return c
}

// parseInverted handles "SURNAME [SUFFIX], GIVEN [MIDDLE...] [SUFFIX]"
func parseInverted(label string) (Components, error) {
	before, after, _ := strings.Cut(label, ",")
	last := strings.Fields(before)
	rest := strings.Fields(after)
	if len(last) == 0 {
		return nil, fmt.Errorf("%w: %q has no surname", ErrNotAName, label)
	}

	c := Components{}
	if len(last) > 1 && generationalSuffixes[last[len(last)-1]] {
		c[SuffixGenerational] = last[len(last)-1]
		last = last[:len(last)-1]
	}
	c[Surname] = strings.Join(last, " ")

	rest = takeSuffixes(c, rest)
	rest = takePrefix(c, rest)
	tagGivenAndMiddle(c, rest)
	if err := checkWords(c, label); err != nil {
		return nil, err
	}
	return c, nil
}

// parseNatural handles "[PREFIX] GIVEN [MIDDLE...] SURNAME [SUFFIX]"
func parseNatural(words []string) (Components, error) {
	c := Components{}
	words = takeSuffixes(c, words)
	words = takePrefix(c, words)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no name words", ErrNotAName)
	}
	c[Surname] = words[len(words)-1]
	tagGivenAndMiddle(c, words[:len(words)-1])
	if err := checkWords(c, strings.Join(words, " ")); err != nil {
		return nil, err
	}
	return c, nil
}

// takeSuffixes tags trailing suffix words and returns the words before them
func takeSuffixes(c Components, words []string) []string {
	for len(words) > 1 {
		w := words[len(words)-1]
		switch {
		case generationalSuffixes[w] && c[SuffixGenerational] == "":
			c[SuffixGenerational] = w
		case otherSuffixes[w] && c[SuffixOther] == "":
			c[SuffixOther] = w
		default:
			return words
		}
		words = words[:len(words)-1]
	}
	return words
}

func takePrefix(c Components, words []string) []string {
	if len(words) > 1 && maritalPrefixes[words[0]] {
		c[PrefixMarital] = words[0]
		return words[1:]
	}
	return words
}

func tagGivenAndMiddle(c Components, words []string) {
	if len(words) == 0 {
		return
	}
	if len(words[0]) == 1 {
		c[FirstInitial] = words[0]
	} else {
		c[GivenName] = words[0]
	}

	middle := words[1:]
	switch {
	case len(middle) == 0:
	case len(middle) == 1 && len(middle[0]) == 1:
		c[MiddleInitial] = middle[0]
	default:
		c[MiddleName] = strings.Join(middle, " ")
	}
}

// checkWords rejects labels whose name words carry no letters
func checkWords(c Components, label string) error {
	for _, tag := range []string{Surname, GivenName, FirstInitial} {
		v := c[tag]
		if v == "" {
			continue
		}
		if !strings.ContainsFunc(v, unicode.IsLetter) {
			return fmt.Errorf("%w: %q", ErrNotAName, label)
		}
	}
	return nil
}
