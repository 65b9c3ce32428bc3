package factory

import (
	"github.com/Ramsey-B/bramble/pkg/models"
)

// View names
const (
	ViewCompany = "company"
	ViewName    = "name"
	ViewOwner   = "owner"
	ViewAddress = "address"
	// ViewRow passes already-projected rows through unchanged
	ViewRow = "row"
)

// Projection field names produced by the record views
const (
	FieldID         = "id"
	FieldLabel      = "label"
	FieldTarget     = "target"
	FieldOwner      = "owner"
	FieldRole       = "role"
	FieldFileNumber = "file_number"
	FieldRecordID   = "record_id"
)

// View projects a record into a flat row, or reports that it does not apply
type View func(models.EntityRecord) (map[string]any, bool)

var views = map[string]View{
	ViewCompany: companyView,
	ViewName:    nameView,
	ViewOwner:   ownerView,
	ViewAddress: addressView,
}

// LookupView returns the record view registered under name
func LookupView(name string) (View, bool) {
	v, ok := views[name]
	return v, ok
}

func baseRow(r models.EntityRecord) map[string]any {
	return map[string]any{
		FieldRole:       string(r.Type),
		FieldFileNumber: r.FileNumber,
		FieldRecordID:   r.ID,
	}
}

func companyView(r models.EntityRecord) (map[string]any, bool) {
	if r.Type != models.RoleCompany || isSentinelNamed(r) {
		return nil, false
	}
	row := baseRow(r)
	row[FieldID] = r.FileNumber
	row[FieldLabel] = r.Label()
	return row, true
}

func nameView(r models.EntityRecord) (map[string]any, bool) {
	if !r.Type.IsOfficer() || !r.HasDistinctName() {
		return nil, false
	}
	row := baseRow(r)
	row[FieldID] = r.NameNodeID()
	row[FieldLabel] = r.Label()
	row[FieldTarget] = r.FileNumber
	return row, true
}

func ownerView(r models.EntityRecord) (map[string]any, bool) {
	if !r.Type.IsOwnerVariant() || !r.HasDistinctName() {
		return nil, false
	}
	row := baseRow(r)
	row[FieldID] = r.OwnerNodeID()
	row[FieldLabel] = r.Label()
	row[FieldTarget] = r.FileNumber
	return row, true
}

func addressView(r models.EntityRecord) (map[string]any, bool) {
	if r.Address == nil {
		return nil, false
	}
	owner := ownerOf(r)
	if owner == "" {
		return nil, false
	}
	row := baseRow(r)
	row[FieldID] = r.AddressNodeID()
	row[FieldLabel] = r.Address.Label
	row[FieldOwner] = owner
	return row, true
}

// ownerOf returns the node an address record hangs off, or "" when the record names nobody
func ownerOf(r models.EntityRecord) string {
	if isSentinelNamed(r) {
		return ""
	}
	switch {
	case r.Type == models.RoleCompany:
		return r.FileNumber
	case r.Type.IsOfficer() && r.Name != nil:
		return r.NameNodeID()
	case r.Type.IsOwnerVariant() && r.Name != nil:
		return r.OwnerNodeID()
	}
	return ""
}

func isSentinelNamed(r models.EntityRecord) bool {
	return r.Name != nil && models.IsSentinel(r.Name.Label)
}
