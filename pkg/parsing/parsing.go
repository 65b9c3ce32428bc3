// Package parsing tags the components of person names, company names and street addresses.
package parsing

import "errors"

// Name component tags
const (
	PrefixMarital        = "PrefixMarital"
	GivenName            = "GivenName"
	FirstInitial         = "FirstInitial"
	MiddleName           = "MiddleName"
	MiddleInitial        = "MiddleInitial"
	Surname              = "Surname"
	SuffixGenerational   = "SuffixGenerational"
	SuffixOther          = "SuffixOther"
	CorporationName      = "CorporationName"
	CorporationLegalType = "CorporationLegalType"
)

// Address component tags
const (
	AddressNumber             = "AddressNumber"
	StreetNamePreDirectional  = "StreetNamePreDirectional"
	StreetName                = "StreetName"
	StreetNamePostType        = "StreetNamePostType"
	StreetNamePostDirectional = "StreetNamePostDirectional"
	OccupancyType             = "OccupancyType"
	OccupancyIdentifier       = "OccupancyIdentifier"
	PlaceName                 = "PlaceName"
	StateName                 = "StateName"
	ZipCode                   = "ZipCode"
)

var (
	ErrEmpty     = errors.New("empty label")
	ErrAmbiguous = errors.New("ambiguous label")
	ErrNotAName  = errors.New("label is not a name")
	ErrNoNumber  = errors.New("address has no street number")
	ErrNoStreet  = errors.New("address has no street name")
)

// Components maps component tags to their values. Absent tags are not set.
type Components map[string]string

// Get returns the value of tag, or ""
func (c Components) Get(tag string) string {
	return c[tag]
}

// IsCorporation reports whether the label parsed as a company name
func (c Components) IsCorporation() bool {
	return c[CorporationName] != ""
}

// NameParser tags the components of a person or company name
type NameParser interface {
	ParseName(label string) (Components, error)
}

// AddressParser tags the components of a street address
type AddressParser interface {
	ParseAddress(label string) (Components, error)
}
