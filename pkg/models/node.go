package models

// Node id prefixes
const (
	PrefixName    = "N"
	PrefixAddress = "A"
	PrefixOwner   = "C"
)

// Node types
const (
	NodeTypePerson          = "person"
	NodeTypeCompany         = "company"
	NodeTypeAddress         = "address"
	NodeTypeInactiveCompany = "company (inactive)"
	NodeTypeContract        = "contract"
)

// Data sources
const (
	// SourceRegistry is the canonical source; its ids are preferred as merge survivors
	SourceRegistry  = "il_sos"
	SourceContracts = "contracts"
)
