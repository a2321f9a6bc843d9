package mcp

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Property types understood by the validator.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Property describes one tool argument in JSON Schema terms.
type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Minimum     *int        `json:"minimum,omitempty"`
	Maximum     *int        `json:"maximum,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

// Schema is the object schema of a tool's input.
type Schema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

// ObjectSchema builds a closed object schema.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	if props == nil {
		props = map[string]Property{}
	}
	return Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) Property {
	return Property{Type: TypeString, Description: desc}
}

func enumProp(desc, def string, values ...string) Property {
	return Property{Type: TypeString, Description: desc, Default: def, Enum: values}
}

func intProp(desc string, def, min, max int) Property {
	return Property{Type: TypeInteger, Description: desc, Default: def, Minimum: &min, Maximum: &max}
}

// optionalIntProp has bounds but no default; absent stays absent.
func optionalIntProp(desc string, min, max int) Property {
	return Property{Type: TypeInteger, Description: desc, Minimum: &min, Maximum: &max}
}

// Validate checks raw against the schema and returns the arguments with
// defaults filled in. Every problem is reported, in field order, in a single
// InvalidArguments error.
func (s Schema) Validate(raw map[string]interface{}) (Args, error) {
	out := make(Args, len(s.Properties))
	var problems []string

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := s.Properties[name]
		v, present := raw[name]
		if !present || v == nil {
			if required[name] {
				problems = append(problems, fmt.Sprintf("missing required field %q", name))
			} else if prop.Default != nil {
				out[name] = prop.Default
			}
			continue
		}
		val, problem := prop.check(name, v, required[name])
		if problem != "" {
			problems = append(problems, problem)
			continue
		}
		out[name] = val
	}

	if !s.AdditionalProperties {
		var unknown []string
		for name := range raw {
			if _, ok := s.Properties[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			problems = append(problems, fmt.Sprintf("unknown field %q", name))
		}
	}

	if len(problems) > 0 {
		return nil, errors.InvalidArguments("invalid arguments: " + strings.Join(problems, "; "))
	}
	return out, nil
}

func (p Property) check(name string, v interface{}, required bool) (interface{}, string) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Sprintf("field %q must be a string", name)
		}
		s = strings.TrimSpace(s)
		if required && s == "" {
			return nil, fmt.Sprintf("field %q must not be empty", name)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return nil, fmt.Sprintf("field %q must be one of %s", name, strings.Join(p.Enum, ", "))
		}
		return s, ""

	case TypeInteger:
		n, ok := toInt(v)
		if !ok {
			return nil, fmt.Sprintf("field %q must be an integer", name)
		}
		if p.Minimum != nil && n < *p.Minimum {
			return nil, fmt.Sprintf("field %q must be >= %d", name, *p.Minimum)
		}
		if p.Maximum != nil && n > *p.Maximum {
			return nil, fmt.Sprintf("field %q must be <= %d", name, *p.Maximum)
		}
		return n, ""

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Sprintf("field %q must be a boolean", name)
		}
		return b, ""
	}
	return nil, fmt.Sprintf("field %q has unsupported type %q", name, p.Type)
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// Args are validated tool arguments.
type Args map[string]interface{}

// String returns the string argument name, or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer argument name, or 0.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Bool returns the boolean argument name, or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether name was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}
