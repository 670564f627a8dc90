package migrate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/reoring/vds/schema"
)

// CurrentVersion is the serialization version written by this package.
const CurrentVersion = 2

// ErrNotDatasheet is returned for documents without a Datasheet element.
var ErrNotDatasheet = errors.New("migrate: missing Datasheet element")

// Version returns the serializationVersion of doc. Documents without the
// attribute predate versioning and report 0.
func Version(doc *etree.Document) int {
	el := doc.SelectElement("Datasheet")
	if el == nil {
		return 0
	}
	v, err := strconv.Atoi(el.SelectAttrValue("serializationVersion", "0"))
	if err != nil {
		return 0
	}
	return v
}

// Migrate upgrades doc in memory to CurrentVersion. It reports whether the
// document changed; current documents are left untouched.
func Migrate(doc *etree.Document, b *schema.Binding) (bool, error) {
	el := doc.SelectElement("Datasheet")
	if el == nil {
		return false, ErrNotDatasheet
	}
	if Version(doc) >= CurrentVersion {
		return false, nil
	}
	if _, err := V1ToV2(doc, b); err != nil {
		return false, err
	}
	el.CreateAttr("serializationVersion", strconv.Itoa(CurrentVersion))
	return true, nil
}

// V1ToV2 moves inline object instances out of their Data and Child nodes into
// sibling Object nodes tagged with fresh uuids, leaving the uuid as the node's
// value. Nested inline instances are moved recursively. b may be nil, in which
// case every node with a type attribute is treated as an inline instance. It
// returns the number of Object nodes created.
func V1ToV2(doc *etree.Document, b *schema.Binding) (int, error) {
	el := doc.SelectElement("Datasheet")
	if el == nil {
		return 0, ErrNotDatasheet
	}
	if Version(doc) >= CurrentVersion {
		return 0, nil
	}
	m := &migration{sheet: el, binding: b, used: make(map[string]bool)}

	var owners []*etree.Element
	for _, tag := range []string{"RootObject", "Object", "ObjectOverride"} {
		owners = append(owners, el.SelectElements(tag)...)
	}
	for _, o := range owners {
		if id := o.SelectAttrValue("uuid", ""); id != "" {
			m.used[id] = true
		}
	}
	if root := el.SelectElement("RootObject"); root != nil && root.SelectAttrValue("uuid", "") == "" {
		root.CreateAttr("uuid", m.newUUID())
	}
	for _, o := range owners {
		if err := m.object(o, m.class(o.SelectAttrValue("type", ""))); err != nil {
			return m.created, err
		}
	}
	return m.created, nil
}

type migration struct {
	sheet   *etree.Element
	binding *schema.Binding
	used    map[string]bool
	created int
}

func (m *migration) class(name string) *schema.Class {
	if m.binding == nil {
		return nil
	}
	return m.binding.Class(name)
}

func (m *migration) newUUID() string {
	for {
		u := uuid.New()
		id := hex.EncodeToString(u[:])
		if !m.used[id] {
			m.used[id] = true
			return id
		}
	}
}

// object rewrites the Data nodes of an object node of class c. c is nil when
// unknown, then the structure alone decides.
func (m *migration) object(o *etree.Element, c *schema.Class) error {
	for _, data := range o.SelectElements("Data") {
		var member *schema.DataMember
		if c != nil {
			member = c.Member(data.SelectAttrValue("name", ""))
			if member != nil && member.Type != schema.TypeObjectInstance {
				continue
			}
		}
		if member == nil || !member.IsArray {
			if data.SelectAttr("type") != nil {
				if err := m.inline(data); err != nil {
					return err
				}
				continue
			}
		}
		if member == nil || member.IsArray {
			for _, child := range data.SelectElements("Child") {
				if child.SelectAttr("type") == nil {
					continue
				}
				if err := m.inline(child); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// inline turns node, carrying an inline instance, into a uuid reference.
func (m *migration) inline(node *etree.Element) error {
	typ := node.SelectAttrValue("type", "")
	if typ == "" {
		return fmt.Errorf("migrate: inline instance without type in %q", node.SelectAttrValue("name", node.Tag))
	}
	id := m.newUUID()
	obj := m.sheet.CreateElement("Object")
	obj.CreateAttr("type", typ)
	obj.CreateAttr("uuid", id)
	for _, c := range node.ChildElements() {
		node.RemoveChild(c)
		obj.AddChild(c)
	}
	node.RemoveAttr("type")
	node.CreateAttr("value", id)
	m.created++
	return m.object(obj, m.class(typ))
}
