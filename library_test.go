package vds_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/vds"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const baseDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Datasheet serializationVersion="2" bindingVersion="3">
  <RootObject type="Item" uuid="r1">
    <Data name="damage" value="9"/>
    <Data name="effect" value="b1"/>
  </RootObject>
  <Object type="Burn" uuid="b1">
    <Data name="power" value="3"/>
  </Object>
</Datasheet>
`

// childDoc predates versioning and carries an inline instance.
const childDoc = `<Datasheet bindingVersion="3" parent="items/base.item">
  <RootObject type="Item" uuid="r2">
    <Data name="effects">
      <Child type="Freeze"><Data name="power" value="2"/></Child>
    </Data>
    <Data name="icon" value="icons/sword.icon"/>
  </RootObject>
  <ObjectOverride type="Burn" uuid="b1">
    <Data name="power" value="8"/>
  </ObjectOverride>
</Datasheet>
`

func TestLibrary_LoadResourceResolvesDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items/base.item", baseDoc)
	childPath := writeFile(t, dir, "items/child.item", childDoc)
	writeFile(t, dir, "icons/sword.icon", `<Datasheet serializationVersion="2" bindingVersion="3"><RootObject type="Icon" uuid="i1"/></Datasheet>`)

	p := newParser(t)
	lib := vds.NewLibrary(p, dir)
	child, err := lib.LoadResource("items/child.item")
	require.NoError(t, err)

	base, ok := lib.Resource("items/base.item")
	require.True(t, ok)
	assert.Same(t, base, child.Parent())
	assert.True(t, lib.IsResourceLoaded("icons/sword.icon"))
	assert.Empty(t, child.PendingDependencies())
	assert.Len(t, lib.Loaded(), 3)

	v, err := child.Root().Value("damage")
	require.NoError(t, err)
	assert.EqualValues(t, 9, v)
	eff, inherited := child.Root().DataValue("effect")
	require.True(t, inherited)
	over := child.InstanceOf(eff)
	require.NotNil(t, over)
	assert.Equal(t, vds.KindOverride, over.Kind())
	v, _ = over.Value("power")
	assert.EqualValues(t, 8, v)
	v, _ = base.Instance("b1").Value("power")
	assert.EqualValues(t, 3, v)

	raw, err := os.ReadFile(childPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `serializationVersion="2"`)
	assert.Contains(t, string(raw), `<Object type="Freeze"`)

	again, err := lib.LoadResource("items/child.item")
	require.NoError(t, err)
	assert.Same(t, child, again)
}

func TestLibrary_RemoveAndReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items/base.item", baseDoc)
	writeFile(t, dir, "items/child.item", childDoc)

	p := newParser(t)
	lib := vds.NewLibrary(p, dir)
	child, err := lib.LoadResource("items/child.item")
	require.NoError(t, err)
	require.NotNil(t, child.Parent())
	assert.Equal(t, []string{"icons/sword.icon"}, child.PendingDependencies())

	require.True(t, lib.Remove("items/base.item"))
	assert.False(t, lib.Remove("items/base.item"))
	assert.Nil(t, child.Parent())
	assert.Equal(t, "items/base.item", child.ParentID())
	assert.False(t, child.DeleteOrphanedInstanceObjects())

	base, err := p.Instantiate("items/base.item")
	require.NoError(t, err)
	assert.Same(t, base, child.Parent())
}

func TestLibrary_RejectsUnknownExtension(t *testing.T) {
	p := newParser(t)
	lib := vds.NewLibrary(p, t.TempDir())
	_, err := lib.LoadResource("readme.txt")
	assert.Error(t, err)
	_, err = lib.LoadResource("missing.item")
	assert.Error(t, err)

	_, err = vds.NewParser(p.Binding).Instantiate("a.item")
	assert.ErrorIs(t, err, vds.ErrNoResources)
}

func TestSaveFile_ClearsDirty(t *testing.T) {
	dir := t.TempDir()
	p := newParser(t)
	lib := vds.NewLibrary(p, dir)
	ds := newSheet(t, lib, p, "new.item", "Item")
	setInt(t, ds.Root(), "damage", 2)
	require.True(t, ds.IsDirty())
	require.NoError(t, ds.SaveFile(lib.Path("new.item")))
	assert.False(t, ds.IsDirty())

	lib.Remove("new.item")
	loaded, err := lib.LoadResource("new.item")
	require.NoError(t, err)
	v, _ := loaded.Root().Value("damage")
	assert.EqualValues(t, 2, v)
}
