package vds

import (
	"io"

	j "github.com/goccy/go-json"

	"github.com/reoring/vds/schema"
)

// ExportJSON writes the effective view of the datasheet as indented JSON:
// inherited values and defaults are resolved and instances are inlined.
func (ds *Datasheet) ExportJSON(w io.Writer) error {
	if ds.root == nil {
		return ErrNoRoot
	}
	out := map[string]any{
		"id":   ds.id,
		"root": ds.exportObject(ds.root, make(map[string]bool)),
	}
	if ds.parentID != "" {
		out["parent"] = ds.parentID
	}
	b, err := j.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func (ds *Datasheet) exportObject(o *Object, visiting map[string]bool) map[string]any {
	if visiting[o.uuid] {
		return map[string]any{"$ref": o.uuid}
	}
	visiting[o.uuid] = true
	defer delete(visiting, o.uuid)

	out := map[string]any{"$type": o.class.Name, "$uuid": o.uuid}
	for _, m := range o.class.AllMembers() {
		dv, _ := o.DataValue(m.Name)
		if m.IsArray {
			items := []any{}
			if dv != nil {
				for _, c := range dv.children {
					items = append(items, ds.exportPayload(m, c, visiting))
				}
			}
			out[m.Name] = items
			continue
		}
		if dv == nil {
			out[m.Name] = exportScalar(m.Type, m.Default)
			continue
		}
		out[m.Name] = ds.exportPayload(m, dv, visiting)
	}
	return out
}

func (ds *Datasheet) exportPayload(m *schema.DataMember, dv *DataValue, visiting map[string]bool) any {
	switch m.Type {
	case schema.TypeObjectInstance:
		inst := ds.InstanceOf(dv)
		if inst == nil {
			return nil
		}
		return ds.exportObject(inst, visiting)
	case schema.TypeObjectReference:
		if dv.refID == "" {
			return nil
		}
		return dv.refID
	}
	return exportScalar(m.Type, dv.scalar)
}

func exportScalar(t schema.ValueType, v any) any {
	switch t {
	case schema.TypeVector2i:
		vec, _ := v.(schema.Vector2i)
		return []int64{vec.X, vec.Y}
	case schema.TypeVector2f:
		vec, _ := v.(schema.Vector2f)
		return []float64{vec.X, vec.Y}
	case schema.TypeObjectInstance, schema.TypeObjectReference:
		if s, _ := v.(string); s != "" {
			return s
		}
		return nil
	}
	return v
}
