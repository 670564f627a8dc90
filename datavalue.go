package vds

import (
	"fmt"

	"github.com/reoring/vds/schema"
)

// DataValue holds one field of an object. It is either an array value, with
// only children populated, or a scalar-like value whose single payload is
// selected by the member type. A value without member is deprecated data: the
// raw XML of an unknown member, kept as a backup string.
type DataValue struct {
	owner   *Object
	name    string
	member  *schema.DataMember
	element bool // child of an array value
	backup  string

	scalar any // bool, int64, float64, string (String and Enum), Vector2i, Vector2f

	instanceUUID  string
	instanceClass *schema.Class

	refID string
	ref   *Datasheet

	children []*DataValue
}

func newDataValue(owner *Object, m *schema.DataMember, element bool) *DataValue {
	dv := &DataValue{owner: owner, name: m.Name, member: m, element: element}
	if !dv.IsArray() {
		dv.resetPayload()
	}
	return dv
}

func (dv *DataValue) resetPayload() {
	switch dv.member.Type {
	case schema.TypeObjectInstance, schema.TypeObjectReference:
	default:
		dv.scalar = dv.member.Default
		if dv.scalar == nil {
			dv.scalar = schema.ZeroValue(dv.member.Type)
		}
	}
}

// Name returns the member name.
func (dv *DataValue) Name() string { return dv.name }

// Owner returns the object holding the value.
func (dv *DataValue) Owner() *Object { return dv.owner }

// Member returns the schema member, nil for deprecated data.
func (dv *DataValue) Member() *schema.DataMember { return dv.member }

// IsDeprecated reports whether the value belongs to no known member.
func (dv *DataValue) IsDeprecated() bool { return dv.member == nil }

// Backup returns the raw XML of a deprecated value.
func (dv *DataValue) Backup() string { return dv.backup }

// IsArray reports whether the value is the list of an array member.
func (dv *DataValue) IsArray() bool {
	return dv.member != nil && dv.member.IsArray && !dv.element
}

// IsElement reports whether the value is a child of an array value.
func (dv *DataValue) IsElement() bool { return dv.element }

// Type returns the member type; deprecated values report TypeString.
func (dv *DataValue) Type() schema.ValueType {
	if dv.member == nil {
		return schema.TypeString
	}
	return dv.member.Type
}

// Children returns the elements of an array value.
func (dv *DataValue) Children() []*DataValue { return dv.children }

// Len returns the number of array elements.
func (dv *DataValue) Len() int { return len(dv.children) }

// Scalar returns the raw scalar payload.
func (dv *DataValue) Scalar() any { return dv.scalar }

func (dv *DataValue) Bool() bool                { b, _ := dv.scalar.(bool); return b }
func (dv *DataValue) Int() int64                { i, _ := dv.scalar.(int64); return i }
func (dv *DataValue) Float() float64            { f, _ := dv.scalar.(float64); return f }
func (dv *DataValue) Text() string              { s, _ := dv.scalar.(string); return s }
func (dv *DataValue) Enum() string              { s, _ := dv.scalar.(string); return s }
func (dv *DataValue) Vector2i() schema.Vector2i { v, _ := dv.scalar.(schema.Vector2i); return v }
func (dv *DataValue) Vector2f() schema.Vector2f { v, _ := dv.scalar.(schema.Vector2f); return v }

// InstanceUUID returns the uuid of the nested instance, "" for null.
func (dv *DataValue) InstanceUUID() string { return dv.instanceUUID }

// InstanceClass returns the class of the nested instance once resolved.
func (dv *DataValue) InstanceClass() *schema.Class {
	if dv.instanceClass != nil {
		return dv.instanceClass
	}
	if o := dv.Instance(); o != nil {
		return o.class
	}
	return nil
}

// Instance looks up the nested instance through the owner's datasheet.
// Values read through inheritance should be looked up in the reading
// datasheet with Datasheet.InstanceOf instead.
func (dv *DataValue) Instance() *Object {
	if dv.instanceUUID == "" || dv.owner == nil || dv.owner.ds == nil {
		return nil
	}
	return dv.owner.ds.Object(dv.instanceUUID)
}

// ReferenceID returns the raw identifier of the referenced datasheet.
func (dv *DataValue) ReferenceID() string { return dv.refID }

// Reference returns the resolved datasheet, nil when unresolved or invalid.
func (dv *DataValue) Reference() *Datasheet { return dv.ref }

func (dv *DataValue) path() string {
	if dv.owner == nil {
		return dv.name
	}
	return dv.owner.uuid + "/" + dv.name
}

func (dv *DataValue) check(t schema.ValueType) error {
	if dv.member == nil || dv.member.Type != t {
		return fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, dv.path(), t)
	}
	if dv.IsArray() {
		return fmt.Errorf("%w: %s is an array", ErrTypeMismatch, dv.path())
	}
	return nil
}

func (dv *DataValue) touch() {
	if dv.owner != nil && dv.owner.ds != nil {
		dv.owner.ds.dirty = true
	}
}

func (dv *DataValue) setScalar(t schema.ValueType, v any) error {
	if err := dv.check(t); err != nil {
		return err
	}
	dv.scalar = v
	dv.touch()
	return nil
}

func (dv *DataValue) SetBool(v bool) error                { return dv.setScalar(schema.TypeBool, v) }
func (dv *DataValue) SetInt(v int64) error                { return dv.setScalar(schema.TypeInt, v) }
func (dv *DataValue) SetFloat(v float64) error            { return dv.setScalar(schema.TypeFloat, v) }
func (dv *DataValue) SetText(v string) error              { return dv.setScalar(schema.TypeString, v) }
func (dv *DataValue) SetVector2i(v schema.Vector2i) error { return dv.setScalar(schema.TypeVector2i, v) }
func (dv *DataValue) SetVector2f(v schema.Vector2f) error { return dv.setScalar(schema.TypeVector2f, v) }

// SetEnum stores v if it is a value of the member's enum.
func (dv *DataValue) SetEnum(v string) error {
	if err := dv.check(schema.TypeEnum); err != nil {
		return err
	}
	if e := dv.member.Enum; e != nil && e.Index(v) < 0 {
		return fmt.Errorf("%w: %q is not a value of %s", ErrTypeMismatch, v, e.Name)
	}
	dv.scalar = v
	dv.touch()
	return nil
}

// SetReference stores the raw identifier and resolves it through the resource
// manager. A target whose root class does not derive from the member class
// leaves the value unresolved and returns ErrInvalidReference; the identifier
// is kept either way.
func (dv *DataValue) SetReference(id string) error {
	if err := dv.check(schema.TypeObjectReference); err != nil {
		return err
	}
	dv.refID = id
	dv.ref = nil
	dv.touch()
	if dv.owner == nil || dv.owner.ds == nil {
		return nil
	}
	if !dv.owner.ds.resolveReference(dv) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidReference, dv.path(), id)
	}
	return nil
}

// SetInstance points the value at an object of the owner's datasheet. Orphans
// left behind are not swept; see Datasheet.SetInstance.
func (dv *DataValue) SetInstance(o *Object) error {
	if err := dv.check(schema.TypeObjectInstance); err != nil {
		return err
	}
	if o == nil {
		return dv.ClearInstance()
	}
	if base := dv.member.Class; base != nil && !o.class.IsDerivedFrom(base) {
		return fmt.Errorf("%w: %s is not a %s", ErrTypeMismatch, o.class.Name, base.Name)
	}
	dv.instanceUUID = o.uuid
	dv.instanceClass = o.class
	dv.touch()
	return nil
}

// ClearInstance stores the explicit null instance.
func (dv *DataValue) ClearInstance() error {
	if err := dv.check(schema.TypeObjectInstance); err != nil {
		return err
	}
	dv.instanceUUID = ""
	dv.instanceClass = nil
	dv.touch()
	return nil
}

// RemoveChild deletes the array element at i.
func (dv *DataValue) RemoveChild(i int) error {
	if !dv.IsArray() {
		return fmt.Errorf("%w: %s", ErrNotArray, dv.path())
	}
	if i < 0 || i >= len(dv.children) {
		return fmt.Errorf("vds: index %d out of range for %s (len %d)", i, dv.path(), len(dv.children))
	}
	dv.children = append(dv.children[:i], dv.children[i+1:]...)
	dv.touch()
	return nil
}

// MoveChild moves the array element at from to position to.
func (dv *DataValue) MoveChild(from, to int) error {
	if !dv.IsArray() {
		return fmt.Errorf("%w: %s", ErrNotArray, dv.path())
	}
	n := len(dv.children)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("vds: move %d->%d out of range for %s (len %d)", from, to, dv.path(), n)
	}
	c := dv.children[from]
	dv.children = append(dv.children[:from], dv.children[from+1:]...)
	dv.children = append(dv.children[:to], append([]*DataValue{c}, dv.children[to:]...)...)
	dv.touch()
	return nil
}

// instanceUUIDs returns every non-null instance uuid held by the value.
func (dv *DataValue) instanceUUIDs() []string {
	if dv.member == nil || dv.member.Type != schema.TypeObjectInstance {
		return nil
	}
	if !dv.IsArray() {
		if dv.instanceUUID == "" {
			return nil
		}
		return []string{dv.instanceUUID}
	}
	var out []string
	for _, c := range dv.children {
		if c.instanceUUID != "" {
			out = append(out, c.instanceUUID)
		}
	}
	return out
}

// payloads returns the value itself or its array elements.
func (dv *DataValue) payloads() []*DataValue {
	if dv.IsArray() {
		return dv.children
	}
	return []*DataValue{dv}
}

// copyTo deep-copies the payload into a value owned by owner.
func (dv *DataValue) copyTo(owner *Object) *DataValue {
	c := &DataValue{
		owner:         owner,
		name:          dv.name,
		member:        dv.member,
		element:       dv.element,
		backup:        dv.backup,
		scalar:        dv.scalar,
		instanceUUID:  dv.instanceUUID,
		instanceClass: dv.instanceClass,
		refID:         dv.refID,
		ref:           dv.ref,
	}
	if len(dv.children) > 0 {
		c.children = make([]*DataValue, len(dv.children))
		for i, ch := range dv.children {
			c.children[i] = ch.copyTo(owner)
		}
	}
	return c
}
