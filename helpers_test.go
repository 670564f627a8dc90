package vds_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/vds"
	"github.com/reoring/vds/schema"
)

const testBinding = `
version: 3
enums:
  - name: Rarity
    values: [Common, Rare, Epic]
classes:
  - name: Item
    members:
      - {name: label, type: String, localized: true}
      - {name: damage, type: Int, default: 5}
      - {name: weight, type: Float, default: 1.5}
      - {name: magic, type: Bool}
      - {name: rarity, type: Enum, enum: Rarity}
      - {name: size, type: Vector2i, default: [1, 2]}
      - {name: grip, type: Vector2f}
      - {name: effect, type: ObjectInstance, class: Effect}
      - {name: effects, type: ObjectInstance, class: Effect, array: true}
      - {name: tags, type: String, array: true}
      - {name: upgrade, type: ObjectReference, class: Item}
      - {name: icon, type: ObjectReference, class: Icon}
  - name: Effect
    abstract: true
    members:
      - {name: power, type: Int, default: 1}
      - {name: sub, type: ObjectInstance, class: Effect}
  - name: Burn
    base: Effect
    members:
      - {name: duration, type: Float, default: 2}
  - name: Freeze
    base: Effect
  - name: Icon
    members:
      - {name: path, type: String}
datasheets:
  - {name: Item, class: Item, extension: item}
  - {name: Icon, class: Icon, extension: icon}
`

func newParser(t *testing.T) *vds.Parser {
	t.Helper()
	b, err := schema.LoadYAML([]byte(testBinding))
	require.NoError(t, err)
	require.False(t, b.Diag().HasWarnings(), "binding warnings: %v", b.Diag().Warnings())
	return vds.NewParser(b)
}

func class(t *testing.T, p *vds.Parser, name string) *schema.Class {
	t.Helper()
	c := p.ClassDefinition(name)
	require.NotNil(t, c, "class %s", name)
	return c
}

// newSheet creates a datasheet with a root of class name and registers it in lib.
func newSheet(t *testing.T, lib *vds.Library, p *vds.Parser, id, name string) *vds.Datasheet {
	t.Helper()
	ds := p.NewDatasheet(id)
	require.NoError(t, ds.InstantiateRootObject(class(t, p, name)))
	lib.Add(ds)
	return ds
}

func setInt(t *testing.T, o *vds.Object, name string, v int64) {
	t.Helper()
	dv, err := o.Edit(name)
	require.NoError(t, err)
	require.NoError(t, dv.SetInt(v))
}

func save(t *testing.T, ds *vds.Datasheet) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := ds.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func load(t *testing.T, p *vds.Parser, id, doc string) *vds.Datasheet {
	t.Helper()
	ds := p.NewDatasheet(id)
	_, err := ds.ReadFrom(bytes.NewBufferString(doc))
	require.NoError(t, err)
	return ds
}
