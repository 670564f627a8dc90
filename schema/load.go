package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// bindingDecl is the on-disk binding description.
type bindingDecl struct {
	Version    int             `yaml:"version" json:"version"`
	Enums      []enumDecl      `yaml:"enums" json:"enums"`
	Classes    []classDecl     `yaml:"classes" json:"classes"`
	Datasheets []datasheetDecl `yaml:"datasheets" json:"datasheets"`
}

type enumDecl struct {
	Name   string   `yaml:"name" json:"name"`
	Values []string `yaml:"values" json:"values"`
}

type classDecl struct {
	Name     string       `yaml:"name" json:"name"`
	Base     string       `yaml:"base,omitempty" json:"base,omitempty"`
	Abstract bool         `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	Members  []memberDecl `yaml:"members" json:"members"`
}

type memberDecl struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Array       bool   `yaml:"array,omitempty" json:"array,omitempty"`
	Localized   bool   `yaml:"localized,omitempty" json:"localized,omitempty"`
	Enum        string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Class       string `yaml:"class,omitempty" json:"class,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type datasheetDecl struct {
	Name      string `yaml:"name" json:"name"`
	Class     string `yaml:"class" json:"class"`
	Extension string `yaml:"extension" json:"extension"`
}

// LoadYAML parses a YAML binding description and finalizes it.
func LoadYAML(data []byte) (*Binding, error) {
	var decl bindingDecl
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("schema: invalid YAML binding: %w", err)
	}
	return decl.build()
}

// LoadJSON parses a JSON binding description and finalizes it. Repeated
// object keys are reported as warnings; the last value wins.
func LoadJSON(data []byte) (*Binding, error) {
	var decl bindingDecl
	if err := j.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("schema: invalid JSON binding: %w", err)
	}
	b, err := decl.build()
	if err != nil {
		return nil, err
	}
	dups, _ := duplicateKeys(data)
	for _, p := range dups {
		b.diag.warnf("duplicate key at %s (last value kept)", p)
	}
	return b, nil
}

// LoadFile reads a binding file, choosing the format by extension.
func LoadFile(path string) (*Binding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading binding: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(data)
	default:
		return LoadYAML(data)
	}
}

func (decl *bindingDecl) build() (*Binding, error) {
	enums := make([]*Enum, 0, len(decl.Enums))
	for _, e := range decl.Enums {
		if e.Name == "" {
			return nil, fmt.Errorf("schema: enum without name")
		}
		enums = append(enums, &Enum{Name: e.Name, Values: append([]string(nil), e.Values...)})
	}
	classes := make([]*Class, 0, len(decl.Classes))
	for _, c := range decl.Classes {
		if c.Name == "" {
			return nil, fmt.Errorf("schema: class without name")
		}
		cls := &Class{Name: c.Name, BaseName: c.Base, Abstract: c.Abstract}
		for _, m := range c.Members {
			t, err := ParseValueType(m.Type)
			if err != nil {
				return nil, fmt.Errorf("schema: class %q member %q: %w", c.Name, m.Name, err)
			}
			cls.Members = append(cls.Members, &DataMember{
				Name:        m.Name,
				Type:        t,
				IsArray:     m.Array,
				IsLocalized: m.Localized,
				Description: m.Description,
				EnumName:    m.Enum,
				ClassName:   m.Class,
				rawDefault:  m.Default,
			})
		}
		classes = append(classes, cls)
	}
	types := make([]*DatasheetType, 0, len(decl.Datasheets))
	for _, t := range decl.Datasheets {
		types = append(types, &DatasheetType{Name: t.Name, ClassName: t.Class, Extension: t.Extension})
	}
	return NewBinding(decl.Version, enums, classes, types), nil
}
