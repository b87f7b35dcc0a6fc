package abc

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Builder tests
// ---------------------------------------------------------------------------

func TestBuilderInternsStrings(t *testing.T) {
	b := NewBuilder()

	a := b.String("alpha")
	again := b.String("alpha")
	other := b.String("beta")

	assert.Equal(t, uint32(1), a, "string pool is 1-based")
	assert.Equal(t, a, again)
	assert.Equal(t, uint32(2), other)
	assert.Equal(t, []string{"alpha", "beta"}, b.File().ConstantPool.Strings)
}

func TestBuilderPrivateNamespacesAreDistinct(t *testing.T) {
	b := NewBuilder()

	pub1 := b.PackageNamespace("flash.display")
	pub2 := b.PackageNamespace("flash.display")
	priv1 := b.Namespace(NamespacePrivate, "Sprite")
	priv2 := b.Namespace(NamespacePrivate, "Sprite")

	assert.Equal(t, pub1, pub2)
	assert.NotEqual(t, priv1, priv2)
	assert.Len(t, b.File().ConstantPool.Namespaces, 3)
}

func TestBuilderInternsMultinames(t *testing.T) {
	b := NewBuilder()
	ns := b.PackageNamespace("")
	set := b.NamespaceSet(ns)

	q1 := b.QName(ns, "x")
	q2 := b.QName(ns, "x")
	m := b.Multiname(set, "x")
	vec := b.TypeName(b.QName(ns, "Vector"), b.QName(ns, "int"))

	assert.Equal(t, q1, q2)
	assert.NotEqual(t, q1, m)
	assert.Equal(t, MultinameTypeName, b.File().ConstantPool.Multinames[vec-1].Kind)
	assert.Equal(t, set, b.NamespaceSet(ns))
}

func TestBuilderClassAndScriptIndices(t *testing.T) {
	b := NewBuilder()
	ns := b.PackageNamespace("")
	init := b.Method("", nil, 0, 0)

	first := b.Class(Instance{Name: b.QName(ns, "A"), InitMethod: init}, Class{InitMethod: init})
	second := b.Class(Instance{Name: b.QName(ns, "B"), InitMethod: init}, Class{InitMethod: init})
	script := b.Script(init, ClassTrait(b.QName(ns, "A"), 0, first))

	assert.Equal(t, uint32(0), first)
	assert.Equal(t, uint32(1), second)
	assert.Equal(t, uint32(0), script)
	assert.Len(t, b.File().Instances, 2)
	assert.Len(t, b.File().Classes, 2)
}

func TestBodyFor(t *testing.T) {
	b := NewBuilder()
	abstract := b.Method("abstract", nil, 0, 0)
	concrete := b.Method("concrete", nil, 0, 0)
	b.Body(concrete, MethodBody{MaxStack: 2, Code: []byte{0x47}})

	f := b.File()
	assert.Nil(t, f.BodyFor(abstract))
	require.NotNil(t, f.BodyFor(concrete))
	assert.Equal(t, uint32(2), f.BodyFor(concrete).MaxStack)
}

func TestTraitModifiers(t *testing.T) {
	tr := MethodTrait(1, 2).Override().Final()
	assert.True(t, tr.IsOverride)
	assert.True(t, tr.IsFinal)
	assert.Equal(t, TraitMethod, tr.Kind)
}

// ---------------------------------------------------------------------------
// Wire tests
// ---------------------------------------------------------------------------

func sampleArchive() *File {
	b := NewBuilder()
	ns := b.PackageNamespace("")
	protected := b.Namespace(NamespaceProtected, "A")
	init := b.Method("", nil, 0, 0)
	getX := b.Method("getX", []MethodParam{{Kind: b.QName(ns, "int"), Name: b.String("n")}}, b.QName(ns, "int"), MethodHasParamNames)
	b.Body(getX, MethodBody{MaxStack: 1, NumLocals: 2, Code: []byte{0xd0, 0x48}})

	a := b.Class(Instance{
		Name:               b.QName(ns, "A"),
		IsSealed:           true,
		ProtectedNamespace: &protected,
		InitMethod:         init,
		Traits: []Trait{
			GetterTrait(b.QName(ns, "x"), getX),
			SlotTrait(b.QName(ns, "y"), 1, b.QName(ns, "int"), b.IntValue(10)),
		},
	}, Class{InitMethod: init})
	b.Script(init, ClassTrait(b.QName(ns, "A"), 0, a))
	return b.File()
}

func TestMarshalRoundTrip(t *testing.T) {
	original := sampleArchive()

	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, original.ConstantPool, decoded.ConstantPool)
	require.Len(t, decoded.Instances, 1)
	require.NotNil(t, decoded.Instances[0].ProtectedNamespace)
	assert.Equal(t, *original.Instances[0].ProtectedNamespace, *decoded.Instances[0].ProtectedNamespace)
	assert.Equal(t, original.Instances[0].Traits, decoded.Instances[0].Traits)
	assert.Equal(t, original.MethodBodies, decoded.MethodBodies)
}

func TestMarshalIsDeterministic(t *testing.T) {
	first, err := Marshal(sampleArchive())
	require.NoError(t, err)
	second, err := Marshal(sampleArchive())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal(nil)
	assert.ErrorIs(t, err, ErrEmptyArchive)

	_, err = Unmarshal([]byte{0xff, 0x00, 0x13})
	assert.Error(t, err)
}

func TestReadAndWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.abc")
	require.NoError(t, WriteFile(path, sampleArchive()))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Scripts, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.abc"))
	assert.Error(t, err)
}
