package vds

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"github.com/reoring/vds/migrate"
	"github.com/reoring/vds/schema"
)

// Document layout names.
const (
	tagDatasheet = "Datasheet"
	tagRoot      = "RootObject"
	tagObject    = "Object"
	tagOverride  = "ObjectOverride"
	tagData      = "Data"
	tagChild     = "Child"
	tagX         = "X"
	tagY         = "Y"

	attrVersion = "serializationVersion"
	attrBinding = "bindingVersion"
	attrParent  = "parent"
	attrType    = "type"
	attrUUID    = "uuid"
	attrName    = "name"
	attrValue   = "value"
)

// LoadFile reads and loads a datasheet document.
func (ds *Datasheet) LoadFile(path string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedDocument, path, err)
	}
	return ds.LoadFromXML(doc)
}

// ReadFrom loads a datasheet document from r.
func (ds *Datasheet) ReadFrom(r io.Reader) (int64, error) {
	doc := etree.NewDocument()
	n, err := doc.ReadFrom(r)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return n, ds.LoadFromXML(doc)
}

// LoadFromXML replaces the object graph with the one in doc. Older documents
// are migrated in memory first. On error the datasheet is left unchanged.
//
// Loading runs in two passes: objects are parsed with instance values holding
// raw uuids, since an object may reference one that appears later, then every
// object resolves its instances against the parsed instance map.
func (ds *Datasheet) LoadFromXML(doc *etree.Document) error {
	el := doc.SelectElement(tagDatasheet)
	if el == nil {
		return fmt.Errorf("%w: missing %s element", ErrMalformedDocument, tagDatasheet)
	}
	if !ds.parser.Options.SkipMigration && migrate.Version(doc) < migrate.CurrentVersion {
		if _, err := migrate.Migrate(doc, ds.parser.Binding); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		ds.log.Info().Msg("migrated datasheet document in memory")
	}

	ld := &loader{ds: ds}
	rootEl := el.SelectElement(tagRoot)
	if rootEl == nil {
		return fmt.Errorf("%w: missing %s element", ErrMalformedDocument, tagRoot)
	}
	root, err := ld.object(rootEl, KindRoot)
	if err != nil {
		return err
	}

	instances := make(map[string]*Object)
	overrides := make(map[string]*Object)
	for _, group := range []struct {
		tag  string
		kind ObjectKind
		into map[string]*Object
	}{{tagObject, KindInstance, instances}, {tagOverride, KindOverride, overrides}} {
		for _, oel := range el.SelectElements(group.tag) {
			o, err := ld.object(oel, group.kind)
			if err != nil {
				code := CodeUnknownClass
				if errors.Is(err, ErrMalformedDocument) {
					code = CodeMalformedDocument
				}
				ld.issue(newIssue(oel.SelectAttrValue(attrUUID, group.tag), code, oel.SelectAttrValue(attrType, ""), err))
				ds.log.Error().Err(err).Str("uuid", oel.SelectAttrValue(attrUUID, "")).Msg("skipping object")
				continue
			}
			if o.uuid == root.uuid || group.into[o.uuid] != nil {
				ld.issue(newIssue(o.uuid, CodeDuplicateUUID, group.tag, nil))
				continue
			}
			group.into[o.uuid] = o
		}
	}

	orphans := make(map[string]struct{}, len(instances))
	for id := range instances {
		orphans[id] = struct{}{}
	}
	unresolved := root.ResolveInstances(instances, orphans)
	for _, o := range sortedObjects(instances) {
		unresolved += o.ResolveInstances(instances, orphans)
	}
	for _, o := range sortedObjects(overrides) {
		unresolved += o.ResolveInstances(instances, orphans)
	}
	if unresolved > 0 {
		ds.log.Debug().Int("count", unresolved).Msg("instance values left for parent resolution")
	}
	if len(orphans) > 0 {
		ids := make([]string, 0, len(orphans))
		for id := range orphans {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			ld.issue(newIssue(id, CodeDanglingInstance, "", nil))
		}
		ds.log.Error().Str("path", ds.id).Int("count", len(ids)).Msg("dangling instance objects in document")
	}

	bindingVersion := 0
	if v := el.SelectAttrValue(attrBinding, ""); v != "" {
		bindingVersion, _ = strconv.Atoi(v)
	}
	if b := ds.parser.Binding; b != nil && bindingVersion != b.Version {
		ld.issue(newIssue(ds.id, CodeBindingVersion, fmt.Sprintf("document %d, binding %d", bindingVersion, b.Version), nil))
		ds.log.Info().Int("document", bindingVersion).Int("binding", b.Version).Msg("binding version differs")
	}

	ds.root = root
	ds.instances = instances
	ds.overrides = overrides
	ds.bindingVersion = bindingVersion
	ds.issues = ld.issues
	ds.parentID = el.SelectAttrValue(attrParent, "")
	ds.parent = nil

	ds.resolveReferences(false)
	ds.resolveParent()
	ds.reportUnresolvedInstances()
	ds.dirty = false
	return nil
}

type loader struct {
	ds     *Datasheet
	issues Issues
}

func (ld *loader) issue(it Issue) { ld.issues = AppendIssues(ld.issues, it) }

func (ld *loader) object(el *etree.Element, kind ObjectKind) (*Object, error) {
	typ := el.SelectAttrValue(attrType, "")
	class := ld.ds.parser.ClassDefinition(typ)
	if class == nil {
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownClass, typ, el.Tag)
	}
	id := el.SelectAttrValue(attrUUID, "")
	if id == "" {
		if kind != KindRoot {
			return nil, fmt.Errorf("%w: %s without uuid", ErrMalformedDocument, el.Tag)
		}
		id = NewUUID()
	}
	o := newObject(ld.ds, class, id, kind)
	for _, del := range el.SelectElements(tagData) {
		name := del.SelectAttrValue(attrName, "")
		m := class.Member(name)
		if m == nil {
			o.values = append(o.values, &DataValue{owner: o, name: name, backup: backupString(del)})
			ld.issue(newIssue(id+"/"+name, CodeUnknownMember, class.Name, nil))
			continue
		}
		if o.LocalDataValue(name) != nil {
			ld.issue(newIssue(id+"/"+name, CodeInvalidValue, "duplicate data node", nil))
			continue
		}
		dv := newDataValue(o, m, false)
		if m.IsArray {
			for _, cel := range del.SelectElements(tagChild) {
				c := newDataValue(o, m, true)
				ld.payload(c, cel)
				dv.children = append(dv.children, c)
			}
		} else {
			ld.payload(dv, del)
		}
		o.values = append(o.values, dv)
	}
	return o, nil
}

func (ld *loader) payload(dv *DataValue, el *etree.Element) {
	m := dv.member
	switch m.Type {
	case schema.TypeObjectInstance:
		dv.instanceUUID = el.SelectAttrValue(attrValue, "")
	case schema.TypeObjectReference:
		dv.refID = el.SelectAttrValue(attrValue, "")
	case schema.TypeVector2i, schema.TypeVector2f:
		x := vectorComponent(el, tagX)
		y := vectorComponent(el, tagY)
		v, err := schema.ParseScalar(m.Type, x+","+y)
		if err != nil {
			ld.issue(newIssue(dv.path(), CodeInvalidValue, x+","+y, err))
			return
		}
		dv.scalar = v
	case schema.TypeEnum:
		attr := el.SelectAttr(attrValue)
		if attr == nil {
			return
		}
		if m.Enum != nil && m.Enum.Index(attr.Value) < 0 {
			ld.issue(newIssue(dv.path(), CodeInvalidValue, attr.Value, nil))
		}
		dv.scalar = attr.Value
	default:
		attr := el.SelectAttr(attrValue)
		if attr == nil {
			return
		}
		v, err := schema.ParseScalar(m.Type, attr.Value)
		if err != nil {
			ld.issue(newIssue(dv.path(), CodeInvalidValue, attr.Value, err))
			return
		}
		dv.scalar = v
	}
}

func vectorComponent(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return "0"
	}
	return c.SelectAttrValue(attrValue, "0")
}

func backupString(el *etree.Element) string {
	doc := newDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// newDocument returns a document for writing. Attribute values escape tab, CR
// and LF as character references so they survive attribute normalization.
func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalAttrVal = true
	return doc
}

// SaveFile writes the datasheet to path and clears the dirty flag.
func (ds *Datasheet) SaveFile(path string) error {
	doc := newDocument()
	if err := ds.SaveToXML(doc); err != nil {
		return err
	}
	doc.Indent(2)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("vds: writing %s: %w", path, err)
	}
	ds.dirty = false
	return nil
}

// WriteTo writes the indented document to w.
func (ds *Datasheet) WriteTo(w io.Writer) (int64, error) {
	doc := newDocument()
	if err := ds.SaveToXML(doc); err != nil {
		return 0, err
	}
	doc.Indent(2)
	return doc.WriteTo(w)
}

// SaveToXML serializes the object graph into doc in the current layout:
// values sorted by name, instances and overrides sorted by uuid.
func (ds *Datasheet) SaveToXML(doc *etree.Document) error {
	if ds.root == nil {
		return ErrNoRoot
	}
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	el := doc.CreateElement(tagDatasheet)
	el.CreateAttr(attrVersion, strconv.Itoa(migrate.CurrentVersion))
	bindingVersion := ds.bindingVersion
	if ds.parser.Binding != nil {
		bindingVersion = ds.parser.Binding.Version
	}
	el.CreateAttr(attrBinding, strconv.Itoa(bindingVersion))
	if ds.parentID != "" {
		el.CreateAttr(attrParent, ds.parentID)
	}
	keep := ds.parser.Options.KeepDeprecatedData
	ds.root.SortDataValues()
	ds.root.saveXML(el.CreateElement(tagRoot), keep)
	for _, o := range ds.Instances() {
		o.SortDataValues()
		o.saveXML(el.CreateElement(tagObject), keep)
	}
	for _, o := range ds.Overrides() {
		o.SortDataValues()
		o.saveXML(el.CreateElement(tagOverride), keep)
	}
	return nil
}

func (o *Object) saveXML(el *etree.Element, keepDeprecated bool) {
	el.CreateAttr(attrType, o.class.Name)
	el.CreateAttr(attrUUID, o.uuid)
	for _, dv := range o.values {
		if dv.member == nil {
			if keepDeprecated && dv.backup != "" {
				restoreBackup(el, dv.backup)
			}
			continue
		}
		del := el.CreateElement(tagData)
		del.CreateAttr(attrName, dv.name)
		if dv.IsArray() {
			for _, c := range dv.children {
				c.writePayload(del.CreateElement(tagChild))
			}
			continue
		}
		dv.writePayload(del)
	}
}

func restoreBackup(parent *etree.Element, backup string) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(backup); err != nil || doc.Root() == nil {
		return
	}
	parent.AddChild(doc.Root())
}

func (dv *DataValue) writePayload(el *etree.Element) {
	switch t := dv.member.Type; t {
	case schema.TypeObjectInstance:
		el.CreateAttr(attrValue, dv.instanceUUID)
	case schema.TypeObjectReference:
		el.CreateAttr(attrValue, dv.refID)
	case schema.TypeVector2i:
		v := dv.Vector2i()
		el.CreateElement(tagX).CreateAttr(attrValue, strconv.FormatInt(v.X, 10))
		el.CreateElement(tagY).CreateAttr(attrValue, strconv.FormatInt(v.Y, 10))
	case schema.TypeVector2f:
		v := dv.Vector2f()
		el.CreateElement(tagX).CreateAttr(attrValue, strconv.FormatFloat(v.X, 'g', -1, 64))
		el.CreateElement(tagY).CreateAttr(attrValue, strconv.FormatFloat(v.Y, 'g', -1, 64))
	default:
		el.CreateAttr(attrValue, schema.FormatScalar(t, dv.scalar))
	}
}
