// Package expressions compiles JMESPath field mappings and applies them to decoded JSON rows.
package expressions

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jmespath/go-jmespath"
)

// Expression is a compiled JMESPath expression
type Expression struct {
	source   string
	compiled *jmespath.JMESPath
}

// Compile parses source into an Expression
func Compile(source string) (*Expression, error) {
	compiled, err := jmespath.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", source, err)
	}
	return &Expression{source: source, compiled: compiled}, nil
}

func (e *Expression) String() string {
	return e.source
}

// Search runs the expression against data
func (e *Expression) Search(data any) (any, error) {
	v, err := e.compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", e.source, err)
	}
	return v, nil
}

// SearchString runs the expression and renders a scalar result.
// A missing value is "". Whole numbers render without a fraction.
func (e *Expression) SearchString(data any) (string, error) {
	v, err := e.Search(data)
	if err != nil {
		return "", err
	}
	return render(v), nil
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Mapping is a named set of compiled expressions, applied together to one row
type Mapping struct {
	names []string
	exprs map[string]*Expression
}

// CompileMapping compiles every field expression. The first failure names its field.
func CompileMapping(fields map[string]string) (*Mapping, error) {
	m := &Mapping{exprs: make(map[string]*Expression, len(fields))}
	for name := range fields {
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)

	for _, name := range m.names {
		expr, err := Compile(fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		m.exprs[name] = expr
	}
	return m, nil
}

// Names returns the mapped field names in sorted order
func (m *Mapping) Names() []string {
	return append([]string(nil), m.names...)
}

// Has reports whether name is mapped
func (m *Mapping) Has(name string) bool {
	_, ok := m.exprs[name]
	return ok
}

// Apply evaluates every field against row
func (m *Mapping) Apply(row any) (map[string]string, error) {
	out := make(map[string]string, len(m.names))
	for _, name := range m.names {
		v, err := m.exprs[name].SearchString(row)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
