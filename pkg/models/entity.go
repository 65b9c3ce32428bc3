package models

import (
	"fmt"
	"strings"
)

// Role is the relationship a registry entity record describes between a name and a file number
type Role string

const (
	RolePresident Role = "president"
	RoleSecretary Role = "secretary"
	RoleAgent     Role = "agent"
	RoleManager   Role = "manager"
	RoleCompany   Role = "company"
)

// IsOfficer reports whether the role links a person name to a company
func (r Role) IsOfficer() bool {
	switch r {
	case RolePresident, RoleSecretary, RoleAgent, RoleManager:
		return true
	}
	return false
}

// IsOwnerVariant reports whether the role names a company that holds a position in another company
// (e.g. "member company", "manager company").
func (r Role) IsOwnerVariant() bool {
	return r != RoleCompany && strings.Contains(string(r), string(RoleCompany))
}

// IsKnown reports whether records of this role can be graphed
func (r Role) IsKnown() bool {
	return r == RoleCompany || r.IsOfficer() || r.IsOwnerVariant()
}

// Sentinel name values meaning "no distinct name"
const (
	SentinelSame = "SAME"
	SentinelNone = "NONE"
)

// Sentinels is the set of name labels that must never become a name node
var Sentinels = []string{SentinelSame, SentinelNone}

// IsSentinel reports whether a name label is a sentinel
func IsSentinel(label string) bool {
	label = strings.TrimSpace(label)
	for _, s := range Sentinels {
		if label == s {
			return true
		}
	}
	return false
}

// ForeignKey is a labeled reference into one of the registry lookup tables
type ForeignKey struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// EntityRecord is one normalized row from the registry entities table.
// Records are immutable once fetched.
type EntityRecord struct {
	ID         int64       `json:"id"`
	FileNumber string      `json:"file_number" validate:"required"`
	Type       Role        `json:"type" validate:"required,entity_role"`
	Name       *ForeignKey `json:"name_id,omitempty"`
	Address    *ForeignKey `json:"address_id,omitempty"`
}

// Label returns the record's name label, or "" when the record has no name
func (e EntityRecord) Label() string {
	if e.Name == nil {
		return ""
	}
	return e.Name.Label
}

// HasDistinctName reports whether the record names a real second party
func (e EntityRecord) HasDistinctName() bool {
	return e.Name != nil && !IsSentinel(e.Name.Label)
}

// NameNodeID is the graph id of the record's name
func (e EntityRecord) NameNodeID() string {
	if e.Name == nil {
		return ""
	}
	return fmt.Sprintf("%s%d", PrefixName, e.Name.Value)
}

// AddressNodeID is the graph id of the record's address
func (e EntityRecord) AddressNodeID() string {
	if e.Address == nil {
		return ""
	}
	return fmt.Sprintf("%s%d", PrefixAddress, e.Address.Value)
}

// OwnerNodeID is the graph id used for owner-variant company records
func (e EntityRecord) OwnerNodeID() string {
	return fmt.Sprintf("%s%d", PrefixOwner, e.ID)
}

// BusinessRow is the flattened export shape of an entity record
type BusinessRow struct {
	ID         int64  `json:"id"`
	FileNumber string `json:"file_number"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Address    string `json:"address"`
}
