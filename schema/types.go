package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ValueType tags the payload a data member carries.
type ValueType int

const (
	TypeBool ValueType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeEnum
	TypeVector2i
	TypeVector2f
	TypeObjectReference // Reference to another datasheet resource.
	TypeObjectInstance  // Nested object stored in the datasheet's instance map.
)

var valueTypeNames = [...]string{
	TypeBool:            "Bool",
	TypeInt:             "Int",
	TypeFloat:           "Float",
	TypeString:          "String",
	TypeEnum:            "Enum",
	TypeVector2i:        "Vector2i",
	TypeVector2f:        "Vector2f",
	TypeObjectReference: "ObjectReference",
	TypeObjectInstance:  "ObjectInstance",
}

func (t ValueType) String() string {
	if t < 0 || int(t) >= len(valueTypeNames) {
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
	return valueTypeNames[t]
}

// ParseValueType resolves a binding type name (case-insensitive).
func ParseValueType(s string) (ValueType, error) {
	for i, n := range valueTypeNames {
		if strings.EqualFold(n, s) {
			return ValueType(i), nil
		}
	}
	return 0, fmt.Errorf("schema: unknown value type %q", s)
}

// Vector2i is a pair of integers.
type Vector2i struct{ X, Y int64 }

// Vector2f is a pair of floats.
type Vector2f struct{ X, Y float64 }

// Enum is an ordered list of value names. Order is persisted.
type Enum struct {
	Name   string
	Values []string
}

// Index returns the position of v or -1.
func (e *Enum) Index(v string) int {
	for i, x := range e.Values {
		if x == v {
			return i
		}
	}
	return -1
}

// Default returns the first declared value.
func (e *Enum) Default() string {
	if len(e.Values) == 0 {
		return ""
	}
	return e.Values[0]
}

// DataMember describes one field of a class.
type DataMember struct {
	Name        string
	Type        ValueType
	IsArray     bool
	IsLocalized bool // String members only.
	Description string

	// EnumName / ClassName are the raw binding references, resolved by Finalize.
	EnumName  string
	ClassName string
	Enum      *Enum
	Class     *Class // Base class for ObjectReference and ObjectInstance members.

	// Default holds the typed default: bool, int64, float64, string,
	// Vector2i or Vector2f. References and instances default to "".
	Default any

	rawDefault any
}

// DefaultString renders the default in the scalar text form.
func (m *DataMember) DefaultString() string {
	return FormatScalar(m.Type, m.Default)
}

// Class is a schema class with single inheritance.
type Class struct {
	Name     string
	BaseName string
	Abstract bool
	Members  []*DataMember // own members only

	Base *Class

	combined []*Class
	derived  []*Class
	all      []*DataMember
}

// Member looks up a member by name on the class and its ancestors.
func (c *Class) Member(name string) *DataMember {
	for _, k := range c.CombinedInheritedClasses() {
		for _, m := range k.Members {
			if m.Name == name {
				return m
			}
		}
	}
	return nil
}

// AllMembers returns every member, base classes first.
func (c *Class) AllMembers() []*DataMember {
	if c.all != nil {
		return c.all
	}
	combined := c.CombinedInheritedClasses()
	var all []*DataMember
	for i := len(combined) - 1; i >= 0; i-- {
		all = append(all, combined[i].Members...)
	}
	c.all = all
	return all
}

// CombinedInheritedClasses returns the class itself followed by its ancestors.
func (c *Class) CombinedInheritedClasses() []*Class {
	if c.combined != nil {
		return c.combined
	}
	return []*Class{c}
}

// AvailableDerivedClasses returns the concrete classes an instance of c may take:
// c and its descendants, sorted by name, abstract classes excluded.
func (c *Class) AvailableDerivedClasses() []*Class { return c.derived }

// IsDerivedFrom reports whether c is base or inherits from it.
func (c *Class) IsDerivedFrom(base *Class) bool {
	if base == nil {
		return true
	}
	for _, k := range c.CombinedInheritedClasses() {
		if k == base {
			return true
		}
	}
	return false
}

func (c *Class) String() string { return c.Name }

// DatasheetType binds a file extension to a root class.
type DatasheetType struct {
	Name      string
	ClassName string
	Extension string
	Class     *Class
}

func sortClasses(cs []*Class) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}
