package vm

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/clasp/abc"
)

func TestPoolStringZeroIsEmpty(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	a.String("hello")
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "strings", avm)

	s, ok, err := unit.PoolStringOption(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", s)

	s, err = unit.PoolString(1)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	_, err = unit.PoolString(99)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "Unknown string constant 99")
}

func TestPoolNamespaceCachesPrivateIdentity(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	priv := a.Namespace(abc.NamespacePrivate, "Foo")
	other := a.Namespace(abc.NamespacePrivate, "Foo")
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)

	first, err := unit.PoolNamespace(priv)
	require.NoError(t, err)
	again, err := unit.PoolNamespace(priv)
	require.NoError(t, err)
	distinct, err := unit.PoolNamespace(other)
	require.NoError(t, err)

	assert.True(t, first.IsPrivate())
	assert.Equal(t, first, again)
	assert.NotEqual(t, first, distinct, "each private namespace entry is its own identity")

	anyNS, err := unit.PoolNamespace(0)
	require.NoError(t, err)
	assert.True(t, anyNS.IsAny())
}

func TestPoolMultinames(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	qname := a.name("x")
	rtq := a.RTQName("y")
	set := a.Multiname(a.NamespaceSet(a.pub, a.PackageNamespace("flash.display")), "Sprite")
	late := a.MultinameL(a.NamespaceSet(a.pub))
	vector := a.TypeName(a.name("Vector"), a.name("int"))
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)

	mn, err := unit.PoolMultinameStatic(qname)
	require.NoError(t, err)
	local, ok := mn.LocalName()
	require.True(t, ok)
	assert.Equal(t, "x", local)
	cached, err := unit.PoolMultinameStatic(qname)
	require.NoError(t, err)
	assert.Same(t, mn, cached)

	mn, err = unit.PoolMaybeUninitializedMultiname(rtq)
	require.NoError(t, err)
	assert.True(t, mn.HasLazyNamespace())
	_, err = unit.PoolMultinameStatic(rtq)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Msg, "is not static")

	mn, err = unit.PoolMultinameStatic(set)
	require.NoError(t, err)
	assert.Len(t, mn.Namespaces(), 2)

	mn, err = unit.PoolMaybeUninitializedMultiname(late)
	require.NoError(t, err)
	assert.True(t, mn.HasLazyName())

	mn, err = unit.PoolMultinameStatic(vector)
	require.NoError(t, err)
	require.Len(t, mn.Params(), 1)
	param, _ := mn.Params()[0].LocalName()
	assert.Equal(t, "int", param)

	_, err = unit.PoolMultinameStatic(0)
	require.ErrorAs(t, err, &loadErr)

	anyType, err := unit.PoolMultinameStaticAny(0)
	require.NoError(t, err)
	assert.True(t, anyType.IsAny())
}

func TestPoolMultinameCycles(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	intName := a.name("int")
	f := a.File()
	pool := &f.ConstantPool

	self := uint32(len(pool.Multinames) + 1)
	pool.Multinames = append(pool.Multinames, abc.Multiname{Kind: abc.MultinameTypeName, BaseType: self})
	first := uint32(len(pool.Multinames) + 1)
	second := first + 1
	pool.Multinames = append(pool.Multinames,
		abc.Multiname{Kind: abc.MultinameTypeName, BaseType: second},
		abc.Multiname{Kind: abc.MultinameTypeName, BaseType: intName, Parameters: []uint32{first}},
	)
	unit := NewTranslationUnit(f, NewDomain(avm.GlobalDomain()), "", avm)

	for _, idx := range []uint32{self, first, second, self} {
		_, err := unit.PoolMultinameStatic(idx)
		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr, "multiname %d", idx)
		assert.Contains(t, loadErr.Msg, "refers to itself")
	}

	mn, err := unit.PoolMultinameStatic(intName)
	require.NoError(t, err, "a failed cycle leaves other entries usable")
	local, _ := mn.LocalName()
	assert.Equal(t, "int", local)
}

func TestDefaultValues(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	intVal := a.IntValue(-7)
	uintVal := a.UintValue(7)
	dblVal := a.DoubleValue(2.5)
	strVal := a.StringValue("hi")
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)

	cases := []struct {
		in   *abc.DefaultValue
		want Value
	}{
		{intVal, IntValue(-7)},
		{uintVal, UintValue(7)},
		{dblVal, NumberValue(2.5)},
		{strVal, StringValue("hi")},
		{abc.BoolValue(true), True},
		{abc.NullValue(), Null},
		{&abc.DefaultValue{Kind: abc.ConstUndefined}, Undefined},
	}
	for _, c := range cases {
		got, err := unit.DefaultValue(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := unit.DefaultValue(&abc.DefaultValue{Kind: abc.ConstInt, Index: 0})
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadMethodIsCached(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	m := a.method("f")
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)
	act := NewActivation(avm)

	first, err := unit.LoadMethod(m, false, act)
	require.NoError(t, err)
	again, err := unit.LoadMethod(m, false, act)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.False(t, first.IsNative())
	assert.Equal(t, "f", first.Name())

	_, err = unit.LoadMethod(42, false, act)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Msg, "Method index 42 not valid")
}

func TestNativeMethodsOnlyInGlobalDomain(t *testing.T) {
	native := func(*Activation, Value, []Value) (Value, error) { return StringValue("native"), nil }
	avm := newTestAvm(t, WithNativeTables(NativeTables{
		Methods: []*NativeMethodEntry{{Name: "nativeF", Impl: native}},
	}))
	a := newArchive()
	m := a.Method("f", []abc.MethodParam{{Kind: a.name("int")}}, 0, abc.MethodNeedRest)
	act := NewActivation(avm)

	global := NewTranslationUnit(a.File(), avm.GlobalDomain(), "builtin", avm)
	method, err := global.LoadMethod(m, false, act)
	require.NoError(t, err)
	require.True(t, method.IsNative())
	assert.Equal(t, "nativeF", method.Name())
	assert.Len(t, method.Signature(), 1, "native keeps the declared signature")
	assert.True(t, method.IsVariadic())

	child := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "user", avm)
	method, err = child.LoadMethod(m, false, act)
	require.NoError(t, err)
	assert.False(t, method.IsNative())
	assert.NotNil(t, method.Bytecode())
}

func TestCallingBytecodeWithoutInterpreter(t *testing.T) {
	avm := newTestAvm(t)
	a := newArchive()
	m := a.method("f")
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)
	act := NewActivation(avm)

	method, err := unit.LoadMethod(m, false, act)
	require.NoError(t, err)
	_, err = act.CallMethod(method, NewScopeChain(unit.Domain()), Undefined, nil, nil)
	assert.ErrorIs(t, err, ErrNoInterpreter)
}

func TestLoadClassTwoPhase(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	getX := a.method("A/get x")
	idx := a.class("A", "Object",
		abc.GetterTrait(a.name("x"), getX),
		abc.SlotTrait(a.name("y"), 1, a.name("int"), a.IntValue(10)),
	)
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)
	act := NewActivation(avm)

	class, err := unit.LoadClass(idx, act)
	require.NoError(t, err)
	again, err := unit.LoadClass(idx, act)
	require.NoError(t, err)
	assert.Same(t, class, again)

	assert.Equal(t, "A", class.Name().LocalName())
	assert.True(t, class.TraitsLoaded())
	assert.False(t, class.IsSystem())
	require.Len(t, class.InstanceTraits(), 2)

	// A second LoadTraits must not duplicate anything.
	require.NoError(t, class.LoadTraits(unit, idx, act))
	assert.Len(t, class.InstanceTraits(), 2)
}

func TestClassNameMustBeQName(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.Class(abc.Instance{
		Name:       a.Multiname(a.NamespaceSet(a.pub, a.PackageNamespace("other")), "Ambiguous"),
		InitMethod: a.method("init"),
	}, abc.Class{InitMethod: a.method("cinit")})
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)

	_, err := unit.LoadClass(0, NewActivation(avm))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Msg, "must be a QName")
}

func TestPreloadAggregatesErrors(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Good", "Object")
	for _, name := range []string{"bad1", "bad2"} {
		a.Class(abc.Instance{Name: a.RTQName(name), InitMethod: a.method(name)},
			abc.Class{InitMethod: a.method(name + "/cinit")})
	}
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)
	act := NewActivation(avm)

	err := unit.Preload(act)
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)

	good, err := unit.LoadClass(0, act)
	require.NoError(t, err)
	assert.Equal(t, "Good", good.Name().LocalName())
}

func TestScriptGlobalsRunInitializerOnce(t *testing.T) {
	runs := 0
	init := func(act *Activation, this Value, args []Value) (Value, error) {
		runs++
		return Undefined, nil
	}
	avm := newTestAvm(t, WithNativeTables(NativeTables{
		Methods: []*NativeMethodEntry{{Name: "scriptInit", Impl: init}},
	}))
	a := newArchive()
	initIdx := a.method("init")
	scriptIdx := a.Script(initIdx,
		abc.SlotTrait(a.name("answer"), 0, a.name("int"), a.IntValue(42)),
	)
	unit := NewTranslationUnit(a.File(), avm.GlobalDomain(), "builtin", avm)
	act := NewActivation(avm)

	script, err := unit.LoadScript(scriptIdx, act)
	require.NoError(t, err)
	cached, ok := unit.Script(scriptIdx)
	require.True(t, ok)
	assert.Same(t, script, cached)

	defining, name, ok := avm.GlobalDomain().GetDefiningScript(publicName("answer"))
	require.True(t, ok)
	assert.Same(t, script, defining)
	assert.Equal(t, "answer", name.LocalName())
	assert.Equal(t, 0, runs, "loading does not run the initializer")

	globals, err := script.Globals(act)
	require.NoError(t, err)
	again, err := script.Globals(act)
	require.NoError(t, err)
	assert.Same(t, globals, again)
	assert.Equal(t, 1, runs)

	v, err := globals.GetProperty(act, publicName("answer"))
	require.NoError(t, err)
	assert.Equal(t, IntValue(42), v)
}

func TestScriptsGetSeparateGlobals(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.Script(a.method("first"), abc.SlotTrait(a.name("a"), 0, 0, nil))
	a.Script(a.method("second"), abc.SlotTrait(a.name("b"), 0, 0, nil))
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)
	act := NewActivation(avm)

	first, err := unit.LoadScript(0, act)
	require.NoError(t, err)
	second, err := unit.LoadScript(1, act)
	require.NoError(t, err)

	g1, err := first.Globals(act)
	require.NoError(t, err)
	g2, err := second.Globals(act)
	require.NoError(t, err)

	assert.True(t, g1.VTable().HasTrait(publicName("a")))
	assert.False(t, g1.VTable().HasTrait(publicName("b")))
	assert.True(t, g2.VTable().HasTrait(publicName("b")))
	assert.False(t, avm.Classes().Global.InstanceVTable().HasTrait(publicName("a")),
		"script traits stay off the shared global vtable")
}

func TestScriptTraitsBeforeLoad(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.Script(a.method("init"))
	unit := NewTranslationUnit(a.File(), NewDomain(avm.GlobalDomain()), "", avm)
	act := NewActivation(avm)

	obj, err := avm.Classes().Global.Construct(act, nil)
	require.NoError(t, err)
	script, err := ScriptFromArchiveIndex(unit, 0, obj.(*ScriptObject), unit.Domain(), act)
	require.NoError(t, err)

	_, err = script.Traits()
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)

	require.NoError(t, script.LoadTraits(unit, 0, act))
	traits, err := script.Traits()
	require.NoError(t, err)
	assert.Empty(t, traits)
}

func TestEmptyScript(t *testing.T) {
	avm := newTestAvm(t)
	act := NewActivation(avm)
	obj, err := avm.Classes().Global.Construct(act, nil)
	require.NoError(t, err)

	script := EmptyScript(obj.(*ScriptObject), avm.GlobalDomain())
	traits, err := script.Traits()
	require.NoError(t, err)
	assert.Empty(t, traits)
	assert.Nil(t, script.TranslationUnit())

	globals, err := script.Globals(act)
	require.NoError(t, err)
	assert.Same(t, obj, globals)
	assert.True(t, script.IsInitialized())
}
