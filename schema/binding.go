package schema

import (
	"fmt"
	"strings"
)

// Diag carries non-fatal warnings produced while finalizing a binding.
type Diag interface {
	HasWarnings() bool
	Warnings() []string
}

type simpleDiag struct{ ws []string }

func (d *simpleDiag) HasWarnings() bool        { return len(d.ws) > 0 }
func (d *simpleDiag) Warnings() []string       { return append([]string(nil), d.ws...) }
func (d *simpleDiag) warnf(f string, a ...any) { d.ws = append(d.ws, fmt.Sprintf(f, a...)) }

// Binding is the immutable schema datasheets are validated against.
type Binding struct {
	Version    int
	Enums      []*Enum
	Classes    []*Class
	Datasheets []*DatasheetType

	enums   map[string]*Enum
	classes map[string]*Class
	exts    map[string]*DatasheetType
	diag    *simpleDiag
}

// NewBinding assembles and finalizes a binding from declarations.
func NewBinding(version int, enums []*Enum, classes []*Class, datasheets []*DatasheetType) *Binding {
	b := &Binding{Version: version, Enums: enums, Classes: classes, Datasheets: datasheets}
	b.Finalize()
	return b
}

// Diag returns the warnings of the last Finalize, plus those found while
// decoding the description.
func (b *Binding) Diag() Diag {
	if b.diag == nil {
		return &simpleDiag{}
	}
	return b.diag
}

// Enum returns the enum called name or nil.
func (b *Binding) Enum(name string) *Enum { return b.enums[name] }

// Class returns the class called name or nil.
func (b *Binding) Class(name string) *Class { return b.classes[name] }

// DatasheetTypeByExtension returns the datasheet type registered for ext.
// The leading dot is optional and the match is case-insensitive.
func (b *Binding) DatasheetTypeByExtension(ext string) *DatasheetType {
	return b.exts[normExt(ext)]
}

// IsDatasheet reports whether files with extension ext are datasheets.
func (b *Binding) IsDatasheet(ext string) bool { return b.DatasheetTypeByExtension(ext) != nil }

func normExt(ext string) string { return strings.ToLower(strings.TrimPrefix(ext, ".")) }

// Finalize links every declaration. It must run once after the whole binding is
// parsed, since a class only discovers its descendants when all classes are known.
// Problems are recorded as warnings and only affect the offending declaration.
func (b *Binding) Finalize() {
	d := &simpleDiag{}
	b.diag = d

	b.enums = make(map[string]*Enum, len(b.Enums))
	for _, e := range b.Enums {
		if _, dup := b.enums[e.Name]; dup {
			d.warnf("enum %q declared twice (first declaration kept)", e.Name)
			continue
		}
		b.enums[e.Name] = e
	}
	b.classes = make(map[string]*Class, len(b.Classes))
	uniq := make([]*Class, 0, len(b.Classes))
	for _, c := range b.Classes {
		if _, dup := b.classes[c.Name]; dup {
			d.warnf("class %q declared twice (first declaration kept)", c.Name)
			continue
		}
		c.Base, c.combined, c.derived, c.all = nil, nil, nil, nil
		b.classes[c.Name] = c
		uniq = append(uniq, c)
	}

	for _, c := range uniq {
		if c.BaseName == "" {
			continue
		}
		base := b.classes[c.BaseName]
		if base == nil {
			d.warnf("class %q: unknown base class %q", c.Name, c.BaseName)
			continue
		}
		c.Base = base
	}

	var cyclic []*Class
	for _, c := range uniq {
		var chain []*Class
		seen := make(map[*Class]bool)
		ok := true
		for k := c; k != nil; k = k.Base {
			if seen[k] {
				d.warnf("class %q: cyclic base chain at %q", c.Name, k.Name)
				ok = false
				break
			}
			seen[k] = true
			chain = append(chain, k)
		}
		if !ok {
			cyclic = append(cyclic, c)
			chain = []*Class{c}
		}
		c.combined = chain
	}
	for _, c := range cyclic {
		c.Base = nil
	}

	for _, c := range uniq {
		for _, m := range c.Members {
			b.finalizeMember(c, m, d)
		}
	}

	for _, c := range uniq {
		if c.Abstract {
			continue
		}
		for _, a := range c.combined {
			a.derived = append(a.derived, c)
		}
	}
	for _, c := range uniq {
		sortClasses(c.derived)
	}

	b.exts = make(map[string]*DatasheetType, len(b.Datasheets))
	for _, t := range b.Datasheets {
		t.Class = b.classes[t.ClassName]
		if t.Class == nil {
			d.warnf("datasheet %q: unknown class %q", t.Name, t.ClassName)
		}
		ext := normExt(t.Extension)
		if ext == "" {
			d.warnf("datasheet %q: missing extension", t.Name)
			continue
		}
		if _, dup := b.exts[ext]; dup {
			d.warnf("datasheet %q: extension %q already bound", t.Name, ext)
			continue
		}
		b.exts[ext] = t
	}
}

func (b *Binding) finalizeMember(c *Class, m *DataMember, d *simpleDiag) {
	m.Enum, m.Class = nil, nil
	if m.rawDefault == nil {
		m.rawDefault = m.Default
	}
	if m.IsLocalized && m.Type != TypeString {
		d.warnf("class %q member %q: only String members can be localized", c.Name, m.Name)
		m.IsLocalized = false
	}
	switch m.Type {
	case TypeEnum:
		m.Enum = b.enums[m.EnumName]
		if m.Enum == nil {
			d.warnf("class %q member %q: unknown enum %q", c.Name, m.Name, m.EnumName)
			m.Default = ""
			return
		}
		def := m.Enum.Default()
		if s, ok := m.rawDefault.(string); ok && s != "" {
			if m.Enum.Index(s) < 0 {
				d.warnf("class %q member %q: default %q is not a value of %q", c.Name, m.Name, s, m.Enum.Name)
			} else {
				def = s
			}
		}
		m.Default = def
		return
	case TypeObjectReference, TypeObjectInstance:
		if m.ClassName != "" {
			m.Class = b.classes[m.ClassName]
			if m.Class == nil {
				d.warnf("class %q member %q: unknown class %q", c.Name, m.Name, m.ClassName)
			}
		}
		m.Default = ""
		return
	}
	def, err := coerceDefault(m.Type, m.rawDefault)
	if err != nil {
		d.warnf("class %q member %q: %v", c.Name, m.Name, err)
		def = ZeroValue(m.Type)
	}
	m.Default = def
}
