package vds

import (
	"fmt"
	"sort"

	"github.com/reoring/vds/schema"
)

// Object is a bag of data values conforming to a class. Objects are owned by
// exactly one datasheet, as its root, an instance or an override.
type Object struct {
	uuid   string
	ds     *Datasheet
	class  *schema.Class
	kind   ObjectKind
	values []*DataValue
}

func newObject(ds *Datasheet, class *schema.Class, uuid string, kind ObjectKind) *Object {
	return &Object{uuid: uuid, ds: ds, class: class, kind: kind}
}

func (o *Object) UUID() string             { return o.uuid }
func (o *Object) Class() *schema.Class     { return o.class }
func (o *Object) Datasheet() *Datasheet    { return o.ds }
func (o *Object) Kind() ObjectKind         { return o.kind }
func (o *Object) DataValues() []*DataValue { return o.values }

// ParentObject returns the object at the same position in the parent
// datasheet. It is looked up on demand: the parent root for a root object,
// the object with the same uuid otherwise.
func (o *Object) ParentObject() *Object {
	if o.ds == nil || o.ds.parent == nil {
		return nil
	}
	p := o.ds.parent
	if o.kind == KindRoot {
		return p.root
	}
	return p.Object(o.uuid)
}

// LocalDataValue returns the value stored on the object itself.
func (o *Object) LocalDataValue(name string) *DataValue {
	for _, dv := range o.values {
		if dv.name == name && dv.member != nil {
			return dv
		}
	}
	return nil
}

// DataValue returns the first value named name walking the object and its
// parent objects. inherited reports whether it came from an ancestor. A nil
// value means the member default applies.
func (o *Object) DataValue(name string) (dv *DataValue, inherited bool) {
	for k := o; k != nil; k = k.ParentObject() {
		if dv := k.LocalDataValue(name); dv != nil {
			return dv, k != o
		}
	}
	return nil, false
}

// Value returns the effective scalar of a non-array member, falling back to
// the member default. Instances yield their uuid and references their id.
func (o *Object) Value(name string) (any, error) {
	m := o.class.Member(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, o.class.Name, name)
	}
	if m.IsArray {
		return nil, fmt.Errorf("%w: %s.%s is an array", ErrTypeMismatch, o.class.Name, name)
	}
	dv, _ := o.DataValue(name)
	if dv == nil {
		return m.Default, nil
	}
	switch m.Type {
	case schema.TypeObjectInstance:
		return dv.instanceUUID, nil
	case schema.TypeObjectReference:
		return dv.refID, nil
	}
	return dv.scalar, nil
}

// InstantiateMemberValue creates a local value for m initialised to its
// default, replacing any previous local value of the same name. It is the only
// way to create a local value.
func (o *Object) InstantiateMemberValue(m *schema.DataMember) (*DataValue, error) {
	if m == nil || o.class.Member(m.Name) != m {
		return nil, fmt.Errorf("%w: %v on %s", ErrUnknownMember, m, o.class.Name)
	}
	dv := newDataValue(o, m, false)
	for i, old := range o.values {
		if old.name == m.Name {
			o.values[i] = dv
			o.touch()
			return dv, nil
		}
	}
	o.values = append(o.values, dv)
	o.touch()
	return dv, nil
}

// InstantiateArrayElement appends a default element to a local array value.
func (o *Object) InstantiateArrayElement(array *DataValue) (*DataValue, error) {
	if array == nil || !array.IsArray() {
		return nil, ErrNotArray
	}
	if array.owner != o {
		return nil, fmt.Errorf("%w: %s", ErrForeignValue, array.path())
	}
	c := newDataValue(o, array.member, true)
	array.children = append(array.children, c)
	o.touch()
	return c, nil
}

// Edit returns a local value for name, copying the inherited value on first
// write. Ancestors are never mutated.
func (o *Object) Edit(name string) (*DataValue, error) {
	if dv := o.LocalDataValue(name); dv != nil {
		return dv, nil
	}
	m := o.class.Member(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, o.class.Name, name)
	}
	inherited, _ := o.DataValue(name)
	if inherited == nil {
		return o.InstantiateMemberValue(m)
	}
	dv := inherited.copyTo(o)
	dv.member = m
	o.values = append(o.values, dv)
	o.touch()
	return dv, nil
}

// RemoveDataValue drops the local value for name so reads fall back to the
// parent objects. It reports whether a value was removed.
func (o *Object) RemoveDataValue(name string) bool {
	for i, dv := range o.values {
		if dv.name == name {
			o.values = append(o.values[:i], o.values[i+1:]...)
			o.touch()
			return true
		}
	}
	return false
}

// GatherInstanceUUIDs adds the uuid of every instance reachable from o.
func (o *Object) GatherInstanceUUIDs(set map[string]struct{}) {
	o.gather(o.ds, set)
}

// gather walks effective values, so inherited instance fields count, and
// follows uuids through view, which sees overrides and parent instances.
func (o *Object) gather(view *Datasheet, set map[string]struct{}) {
	for _, m := range o.class.AllMembers() {
		if m.Type != schema.TypeObjectInstance {
			continue
		}
		dv, _ := o.DataValue(m.Name)
		if dv == nil {
			continue
		}
		for _, id := range dv.instanceUUIDs() {
			if _, seen := set[id]; seen {
				continue
			}
			set[id] = struct{}{}
			if view == nil {
				continue
			}
			if next := view.Object(id); next != nil {
				next.gather(view, set)
			}
		}
	}
}

// SortDataValues orders local values by member name. It runs before saving
// only, so iteration during edits stays stable.
func (o *Object) SortDataValues() {
	sort.SliceStable(o.values, func(i, j int) bool { return o.values[i].name < o.values[j].name })
}

// ResolveInstances wires instance values to the objects parsed into
// instances. Matched uuids are removed from orphans. It returns the number of
// uuids not found, which may still resolve through a parent datasheet.
func (o *Object) ResolveInstances(instances map[string]*Object, orphans map[string]struct{}) int {
	unresolved := 0
	for _, dv := range o.values {
		if dv.member == nil || dv.member.Type != schema.TypeObjectInstance {
			continue
		}
		for _, p := range dv.payloads() {
			if p.instanceUUID == "" {
				p.instanceClass = nil
				continue
			}
			target := instances[p.instanceUUID]
			if target == nil {
				unresolved++
				continue
			}
			p.instanceClass = target.class
			delete(orphans, p.instanceUUID)
		}
	}
	return unresolved
}

func (o *Object) touch() {
	if o.ds != nil {
		o.ds.dirty = true
	}
}

func (o *Object) String() string {
	if o.class == nil {
		return o.uuid
	}
	return fmt.Sprintf("%s(%s)", o.class.Name, o.uuid)
}
