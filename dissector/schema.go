package dissector

import (
	"fmt"
	"strings"
)

// DataType is the type of a column value.
type DataType string

const (
	TypeString DataType = "str"
	TypeInt    DataType = "int"
	TypeFloat  DataType = "float"
	TypeBool   DataType = "bool"
	TypeInet   DataType = "inet"
)

// ParseType parses a column type name as written in manifests.
func ParseType(s string) (DataType, error) {
	switch DataType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeString, "string":
		return TypeString, nil
	case TypeInt, "integer":
		return TypeInt, nil
	case TypeFloat:
		return TypeFloat, nil
	case TypeBool, "boolean":
		return TypeBool, nil
	case TypeInet, "ip", "addr":
		return TypeInet, nil
	default:
		return "", fmt.Errorf("unknown column type %q", s)
	}
}

type Column struct {
	Name string
	Type DataType
}

// Schema is the ordered column list of a record shape.
type Schema []Column

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

func (s Schema) validate() error {
	if len(s) == 0 {
		return fmt.Errorf("empty schema")
	}
	seen := make(map[string]struct{}, len(s))
	for _, c := range s {
		if c.Name == "" {
			return fmt.Errorf("column with empty name")
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if _, err := ParseType(string(c.Type)); err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
	}
	return nil
}

// Record maps column names to scalar values: string, bool, integer kinds,
// float64, netip.Addr or nil.
type Record map[string]any

// errorSchema is shared by every dissector.
var errorSchema = Schema{
	{Name: "dissector", Type: TypeString},
	{Name: "source", Type: TypeString},
	{Name: "message", Type: TypeString},
}
