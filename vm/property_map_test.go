package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyMapNamespaces(t *testing.T) {
	public := PackageNamespace("")
	display := PackageNamespace("flash.display")
	pm := NewPropertyMap[int]()

	pm.Insert(NewQName(public, "x"), 1)
	pm.Insert(NewQName(display, "x"), 2)
	pm.Insert(NewQName(public, "x"), 3)
	assert.Equal(t, 2, pm.Len(), "insert replaces an existing name")

	v, ok := pm.Get(NewQName(display, "x"))
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = pm.GetForMultiname(NewMultinameSet([]Namespace{display, public}, "x"))
	require.True(t, ok)
	assert.Equal(t, 2, v, "namespaces are tried in order")

	ns, v, ok := pm.GetWithNsForMultiname(NewMultiname(AnyNamespace, "x"))
	require.True(t, ok)
	assert.Equal(t, public, ns)
	assert.Equal(t, 3, v)

	_, ok = pm.GetForMultiname(NewMultiname(PackageNamespace("other"), "x"))
	assert.False(t, ok)
	_, ok = pm.GetForMultiname(AnyMultiname())
	assert.False(t, ok, "the any name does not resolve a property")

	assert.True(t, pm.Remove(NewQName(public, "x")))
	assert.False(t, pm.Remove(NewQName(public, "x")))
	assert.Equal(t, 1, pm.Len())
}

func TestPropertyMapCloneAndOrder(t *testing.T) {
	public := PackageNamespace("")
	pm := NewPropertyMap[string]()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		pm.Insert(NewQName(public, name), name)
	}

	clone := pm.Clone()
	clone.Insert(NewQName(public, "extra"), "extra")
	assert.Equal(t, 3, pm.Len())
	assert.Equal(t, 4, clone.Len())

	var names []string
	for name, v := range pm.All() {
		assert.Equal(t, name.LocalName(), v)
		names = append(names, name.LocalName())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}
