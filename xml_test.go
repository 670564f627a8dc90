package vds_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/vds"
	"github.com/reoring/vds/schema"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	p := newParser(t)
	lib := vds.NewLibrary(p, t.TempDir())
	newSheet(t, lib, p, "axe.item", "Item")
	ds := newSheet(t, lib, p, "sword.item", "Item")
	root := ds.Root()

	setInt(t, root, "damage", 12)
	dv, err := root.Edit("weight")
	require.NoError(t, err)
	require.NoError(t, dv.SetFloat(3.25))
	dv, err = root.Edit("magic")
	require.NoError(t, err)
	require.NoError(t, dv.SetBool(true))
	dv, err = root.Edit("label")
	require.NoError(t, err)
	require.NoError(t, dv.SetText(`Sword <of> "Doom" & more`))
	dv, err = root.Edit("rarity")
	require.NoError(t, err)
	require.NoError(t, dv.SetEnum("Rare"))
	dv, err = root.Edit("size")
	require.NoError(t, err)
	require.NoError(t, dv.SetVector2i(schema.Vector2i{X: 3, Y: -4}))
	dv, err = root.Edit("grip")
	require.NoError(t, err)
	require.NoError(t, dv.SetVector2f(schema.Vector2f{X: 0.5, Y: -1}))
	dv, err = root.Edit("upgrade")
	require.NoError(t, err)
	require.NoError(t, dv.SetReference("axe.item"))
	tags, err := root.Edit("tags")
	require.NoError(t, err)
	for _, s := range []string{"sharp", "steel"} {
		el, err := root.InstantiateArrayElement(tags)
		require.NoError(t, err)
		require.NoError(t, el.SetText(s))
	}
	burn, err := ds.SetInstance(root, "effect", class(t, p, "Burn"))
	require.NoError(t, err)
	setInt(t, burn, "power", 4)
	_, err = ds.SetInstance(burn, "sub", class(t, p, "Freeze"))
	require.NoError(t, err)
	_, err = ds.AppendInstance(root, "effects", class(t, p, "Freeze"))
	require.NoError(t, err)

	first := save(t, ds)
	assert.Contains(t, first, `serializationVersion="2"`)
	assert.Contains(t, first, `bindingVersion="3"`)

	loaded := load(t, p, "sword.item", first)
	assert.Empty(t, loaded.Diagnostics())
	assert.False(t, loaded.IsDirty())
	assert.Equal(t, root.UUID(), loaded.Root().UUID())
	assert.Len(t, loaded.Instances(), 3)

	v, err := loaded.Root().Value("label")
	require.NoError(t, err)
	assert.Equal(t, `Sword <of> "Doom" & more`, v)
	v, _ = loaded.Root().Value("size")
	assert.Equal(t, schema.Vector2i{X: 3, Y: -4}, v)
	v, _ = loaded.Root().Value("grip")
	assert.Equal(t, schema.Vector2f{X: 0.5, Y: -1}, v)
	up, _ := loaded.Root().DataValue("upgrade")
	require.NotNil(t, up)
	assert.Equal(t, "axe.item", up.ReferenceID())
	assert.NotNil(t, up.Reference())
	eff, _ := loaded.Root().DataValue("effect")
	require.NotNil(t, eff)
	assert.Equal(t, "Burn", eff.InstanceClass().Name)
	assert.Equal(t, burn.UUID(), eff.Instance().UUID())

	assert.Equal(t, first, save(t, loaded))
}

const forwardDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Datasheet serializationVersion="2" bindingVersion="3">
  <RootObject type="Item" uuid="r1">
    <Data name="effect" value="b1"/>
    <Data name="legacy" value="old"/>
  </RootObject>
  <Object type="Burn" uuid="b1">
    <Data name="sub" value="f1"/>
  </Object>
  <Object type="Freeze" uuid="f1"/>
  <Object type="Freeze" uuid="x1"/>
  <Object type="Nope" uuid="n1"/>
</Datasheet>
`

func TestLoad_ForwardReferencesAndDanglingInstances(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "a.item", forwardDoc)

	eff, _ := ds.Root().DataValue("effect")
	require.NotNil(t, eff)
	burn := eff.Instance()
	require.NotNil(t, burn)
	sub, _ := burn.DataValue("sub")
	require.NotNil(t, sub)
	assert.Equal(t, "Freeze", sub.InstanceClass().Name)

	issues := ds.Diagnostics()
	assert.True(t, issues.Has(vds.CodeDanglingInstance))
	assert.True(t, issues.Has(vds.CodeUnknownClass))
	assert.True(t, issues.Has(vds.CodeUnknownMember))
	assert.False(t, issues.Has(vds.CodeBindingVersion))
	assert.Len(t, ds.Instances(), 3)
	assert.Nil(t, ds.Instance("n1"))

	require.True(t, ds.DeleteOrphanedInstanceObjects())
	assert.Nil(t, ds.Instance("x1"))
	assert.NotNil(t, ds.Instance("f1"))
	assert.False(t, ds.DeleteOrphanedInstanceObjects())
}

func TestSave_DeprecatedData(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "a.item", forwardDoc)
	assert.Nil(t, ds.Root().LocalDataValue("legacy"))
	var deprecated *vds.DataValue
	for _, dv := range ds.Root().DataValues() {
		if dv.IsDeprecated() {
			deprecated = dv
		}
	}
	require.NotNil(t, deprecated)
	assert.Contains(t, deprecated.Backup(), `value="old"`)

	assert.NotContains(t, save(t, ds), "legacy")

	p.Options.KeepDeprecatedData = true
	kept := save(t, ds)
	assert.Contains(t, kept, `name="legacy"`)

	again := load(t, p, "a.item", kept)
	assert.True(t, again.Diagnostics().Has(vds.CodeUnknownMember))
}

func TestLoad_Failures(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "a.item", forwardDoc)
	root := ds.Root()

	for name, doc := range map[string]string{
		"no datasheet": `<Other/>`,
		"no root":      `<Datasheet serializationVersion="2"/>`,
		"not xml":      `<Datasheet><RootObject`,
	} {
		_, err := ds.ReadFrom(strings.NewReader(doc))
		assert.ErrorIs(t, err, vds.ErrMalformedDocument, name)
	}
	_, err := ds.ReadFrom(strings.NewReader(`<Datasheet serializationVersion="2"><RootObject type="Nope" uuid="r"/></Datasheet>`))
	assert.ErrorIs(t, err, vds.ErrUnknownClass)
	assert.Same(t, root, ds.Root())
}

func TestLoad_InvalidValuesReported(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "a.item", `<Datasheet serializationVersion="2" bindingVersion="1">
  <RootObject type="Item" uuid="r1">
    <Data name="damage" value="lots"/>
    <Data name="rarity" value="Mythic"/>
    <Data name="size"><X value="2"/></Data>
  </RootObject>
</Datasheet>`)
	issues := ds.Diagnostics()
	assert.True(t, issues.Has(vds.CodeInvalidValue))
	assert.True(t, issues.Has(vds.CodeBindingVersion))

	v, err := ds.Root().Value("damage")
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)
	v, _ = ds.Root().Value("size")
	assert.Equal(t, schema.Vector2i{X: 2, Y: 0}, v)
}

func TestLoad_MigratesInlineInstances(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "old.item", `<Datasheet>
  <RootObject type="Item">
    <Data name="effect" type="Burn">
      <Data name="power" value="4"/>
      <Data name="sub" type="Freeze"/>
    </Data>
    <Data name="effects">
      <Child type="Freeze"><Data name="power" value="2"/></Child>
      <Child value=""/>
    </Data>
  </RootObject>
</Datasheet>`)

	assert.Len(t, ds.Root().UUID(), 32)
	assert.Len(t, ds.Instances(), 3)
	assert.False(t, ds.Diagnostics().Has(vds.CodeDanglingInstance))

	eff, _ := ds.Root().DataValue("effect")
	require.NotNil(t, eff)
	burn := eff.Instance()
	require.NotNil(t, burn)
	v, _ := burn.Value("power")
	assert.EqualValues(t, 4, v)

	arr, _ := ds.Root().DataValue("effects")
	require.NotNil(t, arr)
	require.Equal(t, 2, arr.Len())
	assert.Equal(t, "Freeze", arr.Children()[0].InstanceClass().Name)
	assert.Empty(t, arr.Children()[1].InstanceUUID())

	p.Options.SkipMigration = true
	_, err := p.NewDatasheet("raw.item").ReadFrom(bytes.NewBufferString(`<Datasheet><RootObject type="Item"/></Datasheet>`))
	require.NoError(t, err)
}

func TestLoad_OverridesSurviveUnresolvedParent(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "child.item", `<Datasheet serializationVersion="2" bindingVersion="3" parent="base.item">
  <RootObject type="Item" uuid="r2"/>
  <ObjectOverride type="Burn" uuid="b1">
    <Data name="sub" value="f2"/>
  </ObjectOverride>
  <Object type="Freeze" uuid="f2"/>
</Datasheet>`)

	assert.Nil(t, ds.Parent())
	assert.Equal(t, []string{"base.item"}, ds.PendingDependencies())
	assert.False(t, ds.Diagnostics().Has(vds.CodeDanglingInstance))
	assert.False(t, ds.DeleteOrphanedInstanceObjects())
	assert.NotNil(t, ds.Override("b1"))
	assert.NotNil(t, ds.Instance("f2"))
	assert.Contains(t, save(t, ds), `parent="base.item"`)
}

func TestSaveLoad_PreservesControlCharacters(t *testing.T) {
	p := newParser(t)
	ds := p.NewDatasheet("a.item")
	require.NoError(t, ds.InstantiateRootObject(class(t, p, "Item")))
	const text = "line1\r\nline2\ttab  end "
	dv, err := ds.Root().Edit("label")
	require.NoError(t, err)
	require.NoError(t, dv.SetText(text))

	out := save(t, ds)
	assert.Contains(t, out, `value="line1&#xD;&#xA;line2&#x9;tab  end "`)

	loaded := load(t, p, "a.item", out)
	v, err := loaded.Root().Value("label")
	require.NoError(t, err)
	assert.Equal(t, text, v)
	assert.Equal(t, out, save(t, loaded))

	path := filepath.Join(t.TempDir(), "a.item")
	require.NoError(t, loaded.SaveFile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(raw))
}

func TestLoad_ReportsUnresolvedInstances(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "a.item", `<Datasheet serializationVersion="2" bindingVersion="3">
  <RootObject type="Item" uuid="r">
    <Data name="effect" value="missing"/>
    <Data name="effects"><Child value="b1"/><Child value="gone"/></Data>
  </RootObject>
  <Object type="Burn" uuid="b1"/>
</Datasheet>`)
	var got []string
	for _, it := range ds.Diagnostics() {
		if it.Code == vds.CodeUnresolvedInstance {
			got = append(got, it.Path+"="+it.Hint)
		}
	}
	assert.ElementsMatch(t, []string{"r/effect=missing", "r/effects=gone"}, got)
	assert.Error(t, ds.Err())
}

func TestLoad_UnresolvedInstancesWaitForParent(t *testing.T) {
	const doc = `<Datasheet serializationVersion="2" bindingVersion="3" parent="base.item">
  <RootObject type="Item" uuid="r2">
    <Data name="effect" value="b1"/>
  </RootObject>
</Datasheet>`
	p := newParser(t)
	lib := vds.NewLibrary(p, t.TempDir())
	child := load(t, p, "child.item", doc)
	assert.False(t, child.Diagnostics().Has(vds.CodeUnresolvedInstance))
	lib.Add(child)

	// The parent arrives without b1.
	base := newSheet(t, lib, p, "base.item", "Item")
	require.Same(t, base, child.Parent())
	assert.True(t, child.Diagnostics().Has(vds.CodeUnresolvedInstance))

	// A parent that provides b1 clears the issue on the next resolution.
	require.True(t, lib.Remove("base.item"))
	require.Nil(t, child.Parent())
	lib.Add(load(t, p, "base.item", baseDoc))
	require.NotNil(t, child.Parent())
	assert.False(t, child.Diagnostics().Has(vds.CodeUnresolvedInstance))
	v, err := child.Root().Value("effect")
	require.NoError(t, err)
	assert.Equal(t, "b1", v)
}

func TestLoad_ObjectWithoutUUIDIsMalformed(t *testing.T) {
	p := newParser(t)
	ds := load(t, p, "a.item", `<Datasheet serializationVersion="2" bindingVersion="3">
  <RootObject type="Item" uuid="r"/>
  <Object type="Burn"/>
  <Object type="Nope" uuid="n1"/>
</Datasheet>`)
	issues := ds.Diagnostics()
	assert.True(t, issues.Has(vds.CodeMalformedDocument))
	assert.True(t, issues.Has(vds.CodeUnknownClass))
	for _, it := range issues {
		if it.Code == vds.CodeMalformedDocument {
			assert.ErrorIs(t, it.Cause, vds.ErrMalformedDocument)
		}
	}
	assert.Empty(t, ds.Instances())
}
