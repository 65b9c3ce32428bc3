package factory

import (
	"fmt"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// Descriptor kinds
const (
	DescriptorField   = "field"
	DescriptorLiteral = "literal"
)

// TypeDescriptor resolves a value either from a row field or from a constant
type TypeDescriptor struct {
	Type  string `yaml:"type" json:"type" validate:"required,oneof=field literal"`
	Value string `yaml:"value" json:"value" validate:"required"`
}

// Resolve returns the descriptor's value for the row
func (d TypeDescriptor) Resolve(row map[string]any) (string, bool) {
	switch d.Type {
	case DescriptorLiteral:
		return d.Value, true
	case DescriptorField:
		return stringField(row, d.Value)
	}
	return "", false
}

// NodeFactory declares how a row becomes a node
type NodeFactory struct {
	IDField    string         `yaml:"id_field" json:"id_field" validate:"required"`
	LabelField string         `yaml:"label_field" json:"label_field"`
	Type       TypeDescriptor `yaml:"type" json:"type"`
	Source     string         `yaml:"source" json:"source"`
	Attr       []string       `yaml:"attr" json:"attr"`
	// Normalize names registered normalizers applied to the label in order
	Normalize []string `yaml:"normalize" json:"normalize" validate:"dive,normalizer"`
}

// LinkFactory declares how a row becomes an edge
type LinkFactory struct {
	SourceField   string         `yaml:"source_field" json:"source_field" validate:"required"`
	TargetField   string         `yaml:"target_field" json:"target_field" validate:"required"`
	Type          TypeDescriptor `yaml:"type" json:"type"`
	Attr          []string       `yaml:"attr" json:"attr"`
	ExcludeField  string         `yaml:"exclude_field" json:"exclude_field"`
	ExcludeValues []string       `yaml:"exclude_values" json:"exclude_values"`
}

// excluded reports whether the row's exclude field holds one of the exclude values.
// The exclude values default to the sentinel names.
func (l LinkFactory) excluded(row map[string]any) bool {
	if l.ExcludeField == "" {
		return false
	}
	value, ok := stringField(row, l.ExcludeField)
	if !ok {
		return false
	}
	values := l.ExcludeValues
	if len(values) == 0 {
		values = models.Sentinels
	}
	for _, v := range values {
		if value == v {
			return true
		}
	}
	return false
}

// FactorySet groups the node and link factories run against one view
type FactorySet struct {
	Name       string        `yaml:"name" json:"name" validate:"required"`
	DataSource string        `yaml:"data_source" json:"data_source" validate:"required"`
	View       string        `yaml:"view" json:"view" validate:"required,oneof=company name owner address row"`
	Nodes      []NodeFactory `yaml:"nodes" json:"nodes" validate:"dive"`
	Links      []LinkFactory `yaml:"links" json:"links" validate:"dive"`
}

// Schema is one schema file. Its category is taken from the file name.
type Schema struct {
	Category string       `yaml:"-" json:"-"`
	Sets     []FactorySet `yaml:"sets" json:"sets" validate:"dive"`
}

func stringField(row map[string]any, field string) (string, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, s != ""
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}
