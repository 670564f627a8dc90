package vds

import (
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog"

	"github.com/reoring/vds/schema"
)

// Datasheet is the serializable resource: one root object plus uuid-keyed
// instance and override objects, optionally inheriting from a parent.
type Datasheet struct {
	parser *Parser
	id     string
	log    zerolog.Logger

	root      *Object
	instances map[string]*Object
	overrides map[string]*Object

	parentID string
	parent   *Datasheet // weak; cleared by OnDependencyRemoved

	bindingVersion int
	dirty          bool
	issues         Issues
}

func newDatasheet(p *Parser, id string) *Datasheet {
	return &Datasheet{
		parser:    p,
		id:        id,
		log:       p.Logger.With().Str("datasheet", id).Logger(),
		instances: make(map[string]*Object),
		overrides: make(map[string]*Object),
	}
}

func (ds *Datasheet) ID() string         { return ds.id }
func (ds *Datasheet) Parser() *Parser    { return ds.parser }
func (ds *Datasheet) Root() *Object      { return ds.root }
func (ds *Datasheet) ParentID() string   { return ds.parentID }
func (ds *Datasheet) Parent() *Datasheet { return ds.parent }
func (ds *Datasheet) IsDirty() bool      { return ds.dirty }
func (ds *Datasheet) ClearDirty()        { ds.dirty = false }

// Diagnostics returns the issues collected by the last load and resolution.
func (ds *Datasheet) Diagnostics() Issues { return ds.issues }

func (ds *Datasheet) report(it Issue) {
	for _, x := range ds.issues {
		if x.Path == it.Path && x.Code == it.Code && x.Hint == it.Hint {
			return
		}
	}
	ds.issues = AppendIssues(ds.issues, it)
}

// dropIssues removes issues carrying any of codes. An empty path matches every
// path.
func (ds *Datasheet) dropIssues(path string, codes ...string) {
	var kept Issues
	for _, it := range ds.issues {
		if (path == "" || it.Path == path) && slices.Contains(codes, it.Code) {
			continue
		}
		kept = append(kept, it)
	}
	ds.issues = kept
}

// Err returns the diagnostics that are not advisory as an error wrapping
// Issues, or nil when there are none.
func (ds *Datasheet) Err() error {
	var iss Issues
	for _, it := range ds.issues {
		if !it.Advisory() {
			iss = append(iss, it)
		}
	}
	if len(iss) == 0 {
		return nil
	}
	return fmt.Errorf("vds: %s: %w", ds.id, iss)
}

// Class returns the root class, nil before a root exists.
func (ds *Datasheet) Class() *schema.Class {
	if ds.root == nil {
		return nil
	}
	return ds.root.class
}

// Instance returns the local instance object with uuid.
func (ds *Datasheet) Instance(uuid string) *Object { return ds.instances[uuid] }

// Override returns the local override object with uuid.
func (ds *Datasheet) Override(uuid string) *Object { return ds.overrides[uuid] }

// Instances returns the local instance objects sorted by uuid.
func (ds *Datasheet) Instances() []*Object { return sortedObjects(ds.instances) }

// Overrides returns the override objects sorted by uuid.
func (ds *Datasheet) Overrides() []*Object { return sortedObjects(ds.overrides) }

func sortedObjects(m map[string]*Object) []*Object {
	out := make([]*Object, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uuid < out[j].uuid })
	return out
}

// Object looks up uuid as seen from this datasheet: the root, overrides and
// instances first, then the parent chain. Objects found in a parent are
// read-only views; see EditableObject.
func (ds *Datasheet) Object(uuid string) *Object {
	for d := ds; d != nil; d = d.parent {
		if d.root != nil && d.root.uuid == uuid {
			return d.root
		}
		if o := d.overrides[uuid]; o != nil {
			return o
		}
		if o := d.instances[uuid]; o != nil {
			return o
		}
	}
	return nil
}

// InstanceOf returns the object an instance value points at, as seen from
// this datasheet.
func (ds *Datasheet) InstanceOf(dv *DataValue) *Object {
	if dv == nil || dv.instanceUUID == "" {
		return nil
	}
	return ds.Object(dv.instanceUUID)
}

// NewUUID returns a uuid unused by the root, instances and overrides.
func (ds *Datasheet) NewUUID() string {
	for {
		id := NewUUID()
		if ds.root != nil && ds.root.uuid == id {
			continue
		}
		if ds.instances[id] != nil || ds.overrides[id] != nil {
			continue
		}
		return id
	}
}

// InstantiateRootObject creates the root object. The root class is fixed for
// the lifetime of the datasheet.
func (ds *Datasheet) InstantiateRootObject(class *schema.Class) error {
	if ds.root != nil {
		return ErrRootExists
	}
	if class == nil {
		return ErrUnknownClass
	}
	ds.root = newObject(ds, class, ds.NewUUID(), KindRoot)
	ds.dirty = true
	return nil
}

// InstantiateObject creates a new instance object owned by the instance map.
func (ds *Datasheet) InstantiateObject(class *schema.Class) *Object {
	o := newObject(ds, class, ds.NewUUID(), KindInstance)
	ds.instances[o.uuid] = o
	ds.dirty = true
	return o
}

// InstantiateObjectOverride creates a local override shadowing the inherited
// object src under the same uuid. An existing override is returned as is.
func (ds *Datasheet) InstantiateObjectOverride(src *Object) (*Object, error) {
	if src == nil {
		return nil, fmt.Errorf("vds: nil object")
	}
	if o := ds.overrides[src.uuid]; o != nil {
		return o, nil
	}
	if src.ds == ds {
		return nil, fmt.Errorf("vds: %s is already local to %s", src, ds.id)
	}
	if src.kind == KindRoot {
		return nil, fmt.Errorf("vds: root %s cannot be overridden", src)
	}
	o := newObject(ds, src.class, src.uuid, KindOverride)
	ds.overrides[o.uuid] = o
	ds.dirty = true
	ds.log.Debug().Str("uuid", o.uuid).Msg("instantiated object override")
	return o, nil
}

// EditableObject returns obj if it is local, or promotes a parent view to a
// local override. A parent root maps to the local root.
func (ds *Datasheet) EditableObject(obj *Object) (*Object, error) {
	if obj == nil {
		return nil, fmt.Errorf("vds: nil object")
	}
	if obj.ds == ds {
		return obj, nil
	}
	if obj.kind == KindRoot {
		if ds.root == nil {
			return nil, ErrNoRoot
		}
		return ds.root, nil
	}
	return ds.InstantiateObjectOverride(obj)
}

// DeleteInstanceObject removes obj from the instance map. A nil obj is a
// successful no-op.
func (ds *Datasheet) DeleteInstanceObject(obj *Object) bool {
	if obj == nil {
		return true
	}
	if ds.instances[obj.uuid] != obj {
		return false
	}
	delete(ds.instances, obj.uuid)
	ds.dirty = true
	return true
}

// DeleteObjectOverride removes a local override, reverting to the inherited
// object.
func (ds *Datasheet) DeleteObjectOverride(obj *Object) bool {
	if obj == nil {
		return true
	}
	if ds.overrides[obj.uuid] != obj {
		return false
	}
	delete(ds.overrides, obj.uuid)
	ds.dirty = true
	return true
}

// ReachableUUIDs collects every instance uuid reachable from the root. While
// the parent is unresolved, overrides are reachable through inherited values
// that cannot be read, so they count as roots.
func (ds *Datasheet) ReachableUUIDs() map[string]struct{} {
	set := make(map[string]struct{})
	if ds.root != nil {
		ds.root.gather(ds, set)
	}
	if ds.parentID != "" && ds.parent == nil {
		for _, o := range ds.Overrides() {
			set[o.uuid] = struct{}{}
			o.gather(ds, set)
		}
	}
	return set
}

// DeleteOrphanedInstanceObjects deletes every instance and override whose
// uuid is not reachable from the root. It must run after any edit that can
// detach an instance and reports whether anything was deleted.
func (ds *Datasheet) DeleteOrphanedInstanceObjects() bool {
	reachable := ds.ReachableUUIDs()
	deleted := 0
	for id := range ds.instances {
		if _, ok := reachable[id]; !ok {
			delete(ds.instances, id)
			deleted++
		}
	}
	for id := range ds.overrides {
		if _, ok := reachable[id]; !ok {
			delete(ds.overrides, id)
			deleted++
		}
	}
	if deleted == 0 {
		return false
	}
	ds.dirty = true
	ds.log.Debug().Int("count", deleted).Msg("deleted orphaned objects")
	return true
}

// SetInstance replaces the instance field name of obj with a new object of
// class, then sweeps orphans. obj may be a parent view.
func (ds *Datasheet) SetInstance(obj *Object, name string, class *schema.Class) (*Object, error) {
	_, dv, err := ds.editInstanceField(obj, name, false)
	if err != nil {
		return nil, err
	}
	if err := checkConcrete(dv.member, class); err != nil {
		return nil, err
	}
	inst := ds.InstantiateObject(class)
	if err := dv.SetInstance(inst); err != nil {
		ds.DeleteInstanceObject(inst)
		return nil, err
	}
	ds.DeleteOrphanedInstanceObjects()
	return inst, nil
}

// ClearInstance stores an explicit null in the instance field name of obj and
// sweeps orphans.
func (ds *Datasheet) ClearInstance(obj *Object, name string) error {
	_, dv, err := ds.editInstanceField(obj, name, false)
	if err != nil {
		return err
	}
	if err := dv.ClearInstance(); err != nil {
		return err
	}
	ds.DeleteOrphanedInstanceObjects()
	return nil
}

// AppendInstance appends a new object of class to the instance array name.
func (ds *Datasheet) AppendInstance(obj *Object, name string, class *schema.Class) (*Object, error) {
	local, dv, err := ds.editInstanceField(obj, name, true)
	if err != nil {
		return nil, err
	}
	if err := checkConcrete(dv.member, class); err != nil {
		return nil, err
	}
	el, err := local.InstantiateArrayElement(dv)
	if err != nil {
		return nil, err
	}
	inst := ds.InstantiateObject(class)
	if err := el.SetInstance(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// RemoveArrayElement removes element i of the array name and sweeps orphans.
func (ds *Datasheet) RemoveArrayElement(obj *Object, name string, i int) error {
	local, err := ds.EditableObject(obj)
	if err != nil {
		return err
	}
	dv, err := local.Edit(name)
	if err != nil {
		return err
	}
	if err := dv.RemoveChild(i); err != nil {
		return err
	}
	ds.DeleteOrphanedInstanceObjects()
	return nil
}

func (ds *Datasheet) editInstanceField(obj *Object, name string, array bool) (*Object, *DataValue, error) {
	local, err := ds.EditableObject(obj)
	if err != nil {
		return nil, nil, err
	}
	m := local.class.Member(name)
	if m == nil {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, local.class.Name, name)
	}
	if m.Type != schema.TypeObjectInstance || m.IsArray != array {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrTypeMismatch, local.class.Name, name)
	}
	dv, err := local.Edit(name)
	if err != nil {
		return nil, nil, err
	}
	return local, dv, nil
}

func checkConcrete(m *schema.DataMember, class *schema.Class) error {
	if class == nil {
		return ErrUnknownClass
	}
	if class.Abstract {
		return fmt.Errorf("%w: %s is abstract", ErrTypeMismatch, class.Name)
	}
	if m.Class != nil && !class.IsDerivedFrom(m.Class) {
		return fmt.Errorf("%w: %s is not a %s", ErrTypeMismatch, class.Name, m.Class.Name)
	}
	return nil
}

// IsValidAsParent reports whether candidate may become the parent. nil is
// valid. A candidate with another root class is invalid, and so is one whose
// parent chain contains ds, in which case recursive is set.
func (ds *Datasheet) IsValidAsParent(candidate *Datasheet) (valid, recursive bool) {
	if candidate == nil {
		return true, false
	}
	if ds.root == nil || candidate.root == nil || candidate.root.class != ds.root.class {
		return false, false
	}
	seen := make(map[*Datasheet]bool)
	for k := candidate; k != nil; k = k.parent {
		if k == ds || seen[k] {
			return false, true
		}
		seen[k] = true
	}
	return true, false
}

// SetParentDatasheet stores the raw identifier and, if valid, the resolved
// parent. An invalid parent is rejected before it is stored; the identifier is
// kept so the link can be shown and retried.
func (ds *Datasheet) SetParentDatasheet(id string, resolved *Datasheet) error {
	if ds.parentID != id {
		ds.dirty = true
	}
	ds.parentID = id
	ds.parent = nil
	ds.dropIssues(ds.id, CodeInvalidParent, CodeRecursiveParent)
	if resolved == nil {
		return nil
	}
	valid, recursive := ds.IsValidAsParent(resolved)
	if !valid {
		if recursive {
			ds.report(newIssue(ds.id, CodeRecursiveParent, id, nil))
			return fmt.Errorf("%w: %s", ErrRecursiveParent, id)
		}
		ds.report(newIssue(ds.id, CodeInvalidParent, id, nil))
		return fmt.Errorf("%w: %s", ErrInvalidParent, id)
	}
	ds.parent = resolved
	return nil
}

// objects returns root, instances and overrides.
func (ds *Datasheet) objects() []*Object {
	var out []*Object
	if ds.root != nil {
		out = append(out, ds.root)
	}
	out = append(out, ds.Instances()...)
	return append(out, ds.Overrides()...)
}

// Dependencies adds every resolved reference target and the parent to set.
func (ds *Datasheet) Dependencies(set map[*Datasheet]struct{}) {
	if ds.parent != nil {
		set[ds.parent] = struct{}{}
	}
	for _, o := range ds.objects() {
		for _, dv := range o.values {
			for _, p := range dv.payloads() {
				if p.ref != nil {
					set[p.ref] = struct{}{}
				}
			}
		}
	}
}

// PendingDependencies returns identifiers of links that are not resolved.
func (ds *Datasheet) PendingDependencies() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if ds.parent == nil {
		add(ds.parentID)
	}
	for _, o := range ds.objects() {
		for _, dv := range o.values {
			if dv.member == nil || dv.member.Type != schema.TypeObjectReference {
				continue
			}
			for _, p := range dv.payloads() {
				if p.ref == nil {
					add(p.refID)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// OnDependencyRemoved clears every link to removed. Raw identifiers stay so
// the links can be resolved again.
func (ds *Datasheet) OnDependencyRemoved(removed *Datasheet) {
	if removed == nil {
		return
	}
	if ds.parent == removed {
		ds.parent = nil
	}
	for _, o := range ds.objects() {
		for _, dv := range o.values {
			for _, p := range dv.payloads() {
				if p.ref == removed {
					p.ref = nil
				}
			}
		}
	}
}

// resolveReference resolves dv by identifier. It reports false when the
// target exists but its class does not derive from the member class.
func (ds *Datasheet) resolveReference(dv *DataValue) bool {
	dv.ref = nil
	if dv.refID == "" {
		return true
	}
	target := ds.parser.lookup(dv.refID)
	if target == nil {
		return true
	}
	if base := dv.member.Class; base != nil {
		if target.root == nil || !target.root.class.IsDerivedFrom(base) {
			ds.report(newIssue(dv.path(), CodeInvalidReference, dv.refID, nil))
			ds.log.Warn().Str("member", dv.name).Str("reference", dv.refID).Msg("reference class mismatch")
			return false
		}
	}
	dv.ref = target
	return true
}

func (ds *Datasheet) resolveReferences(onlyPending bool) {
	for _, o := range ds.objects() {
		for _, dv := range o.values {
			if dv.member == nil || dv.member.Type != schema.TypeObjectReference {
				continue
			}
			for _, p := range dv.payloads() {
				if onlyPending && p.ref != nil {
					continue
				}
				ds.resolveReference(p)
			}
		}
	}
}

func (ds *Datasheet) resolveParent() {
	if ds.parentID == "" {
		return
	}
	resolved := ds.parser.lookup(ds.parentID)
	if resolved == nil {
		ds.log.Debug().Str("parent", ds.parentID).Msg("parent datasheet not loaded")
		return
	}
	if err := ds.SetParentDatasheet(ds.parentID, resolved); err != nil {
		ds.log.Warn().Err(err).Msg("parent datasheet rejected")
	}
}

// RetryResolve resolves the parent and references still unresolved, for
// dependencies that loaded after this datasheet.
func (ds *Datasheet) RetryResolve() {
	dirty := ds.dirty
	if ds.parent == nil {
		ds.resolveParent()
	}
	ds.resolveReferences(true)
	ds.reportUnresolvedInstances()
	ds.dirty = dirty
}

// reportUnresolvedInstances reports instance values whose uuid is neither
// local nor provided by the parent chain. Nothing is reported while a named
// parent is still missing; the next resolution repeats the check.
func (ds *Datasheet) reportUnresolvedInstances() {
	ds.dropIssues("", CodeUnresolvedInstance)
	if ds.parentID != "" && ds.parent == nil {
		return
	}
	for _, o := range ds.objects() {
		for _, dv := range o.values {
			for _, id := range dv.instanceUUIDs() {
				if ds.Object(id) == nil {
					ds.report(newIssue(dv.path(), CodeUnresolvedInstance, id, nil))
				}
			}
		}
	}
}

// Unload drops the whole object graph. The datasheet may be loaded again.
func (ds *Datasheet) Unload() {
	ds.root = nil
	ds.instances = make(map[string]*Object)
	ds.overrides = make(map[string]*Object)
	ds.parentID = ""
	ds.parent = nil
	ds.bindingVersion = 0
	ds.issues = nil
	ds.dirty = false
}
