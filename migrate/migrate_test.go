package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/vds/migrate"
	"github.com/reoring/vds/schema"
)

func testBinding(t *testing.T) *schema.Binding {
	t.Helper()
	b, err := schema.LoadYAML([]byte(`
classes:
  - name: Item
    members:
      - {name: label, type: String}
      - {name: effect, type: ObjectInstance, class: Effect}
      - {name: effects, type: ObjectInstance, class: Effect, array: true}
  - name: Effect
    members:
      - {name: power, type: Int}
      - {name: sub, type: ObjectInstance, class: Effect}
`))
	require.NoError(t, err)
	return b
}

const v1Doc = `<Datasheet>
  <RootObject type="Item">
    <Data name="label" value="x"/>
    <Data name="effect" type="Effect">
      <Data name="power" value="4"/>
      <Data name="sub" type="Effect">
        <Data name="power" value="5"/>
      </Data>
    </Data>
    <Data name="effects">
      <Child type="Effect"/>
      <Child value=""/>
    </Data>
  </RootObject>
</Datasheet>`

func parse(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc
}

func TestMigrate_MovesInlineInstances(t *testing.T) {
	doc := parse(t, v1Doc)
	assert.Equal(t, 0, migrate.Version(doc))

	changed, err := migrate.Migrate(doc, testBinding(t))
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, migrate.CurrentVersion, migrate.Version(doc))

	sheet := doc.SelectElement("Datasheet")
	root := sheet.SelectElement("RootObject")
	assert.Len(t, root.SelectAttrValue("uuid", ""), 32)

	objects := map[string]*etree.Element{}
	for _, o := range sheet.SelectElements("Object") {
		objects[o.SelectAttrValue("uuid", "")] = o
	}
	require.Len(t, objects, 3)

	var effect, effects *etree.Element
	for _, d := range root.SelectElements("Data") {
		switch d.SelectAttrValue("name", "") {
		case "effect":
			effect = d
		case "effects":
			effects = d
		case "label":
			assert.Equal(t, "x", d.SelectAttrValue("value", ""))
		}
	}
	require.NotNil(t, effect)
	assert.Nil(t, effect.SelectAttr("type"))
	assert.Empty(t, effect.ChildElements())
	outer := objects[effect.SelectAttrValue("value", "")]
	require.NotNil(t, outer)
	assert.Equal(t, "Effect", outer.SelectAttrValue("type", ""))

	var sub *etree.Element
	for _, d := range outer.SelectElements("Data") {
		if d.SelectAttrValue("name", "") == "sub" {
			sub = d
		}
	}
	require.NotNil(t, sub)
	inner := objects[sub.SelectAttrValue("value", "")]
	require.NotNil(t, inner)
	assert.Equal(t, "5", inner.SelectElement("Data").SelectAttrValue("value", ""))

	children := effects.SelectElements("Child")
	require.Len(t, children, 2)
	assert.NotNil(t, objects[children[0].SelectAttrValue("value", "")])
	assert.Equal(t, "", children[1].SelectAttrValue("value", "missing"))
}

func TestMigrate_CurrentDocumentUntouched(t *testing.T) {
	const v2 = `<Datasheet serializationVersion="2"><RootObject type="Item" uuid="r"><Data name="effect" type="Effect"/></RootObject></Datasheet>`
	doc := parse(t, v2)
	changed, err := migrate.Migrate(doc, testBinding(t))
	require.NoError(t, err)
	assert.False(t, changed)
	out, err := doc.WriteToString()
	require.NoError(t, err)
	assert.Equal(t, v2, out)

	n, err := migrate.V1ToV2(doc, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrate_WithoutBinding(t *testing.T) {
	doc := parse(t, v1Doc)
	n, err := migrate.V1ToV2(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMigrate_Errors(t *testing.T) {
	_, err := migrate.Migrate(parse(t, `<Other/>`), nil)
	assert.ErrorIs(t, err, migrate.ErrNotDatasheet)

	_, err = migrate.Migrate(parse(t, `<Datasheet><RootObject type="Item"><Data name="effect" type=""/></RootObject></Datasheet>`), testBinding(t))
	assert.Error(t, err)
}

func TestHandleMigration_RewritesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.item")
	require.NoError(t, os.WriteFile(path, []byte(v1Doc), 0o644))

	changed, err := migrate.HandleMigration(path, testBinding(t))
	require.NoError(t, err)
	assert.True(t, changed)
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(first), `serializationVersion="2"`)

	changed, err = migrate.HandleMigration(path, testBinding(t))
	require.NoError(t, err)
	assert.False(t, changed)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = migrate.HandleMigration(filepath.Join(t.TempDir(), "missing.item"), nil)
	assert.Error(t, err)
}

func TestHandleMigration_KeepsControlCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.item")
	require.NoError(t, os.WriteFile(path, []byte(`<Datasheet><RootObject type="Item"><Data name="label" value="a&#xD;&#xA;b&#x9;c"/></RootObject></Datasheet>`), 0o644))

	changed, err := migrate.HandleMigration(path, testBinding(t))
	require.NoError(t, err)
	require.True(t, changed)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `value="a&#xD;&#xA;b&#x9;c"`)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	label := doc.FindElement("//Data[@name='label']")
	require.NotNil(t, label)
	assert.Equal(t, "a\r\nb\tc", label.SelectAttrValue("value", ""))
}
