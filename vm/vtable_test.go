package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/clasp/abc"
)

// linkArchive loads and links every class of a into a fresh child domain,
// superclass first. Classes are expected in dependency order.
func linkArchive(t *testing.T, avm *Avm, a *archive) ([]*ClassObject, error) {
	t.Helper()
	domain := NewDomain(avm.GlobalDomain())
	unit := NewTranslationUnit(a.File(), domain, "", avm)
	act := NewActivationInDomain(avm, domain)

	byName := map[string]*ClassObject{"Object": avm.Classes().Object}
	var linked []*ClassObject
	for i := range a.File().Classes {
		class, err := unit.LoadClass(uint32(i), act)
		require.NoError(t, err)
		var super *ClassObject
		if sn := class.SuperClassName(); sn != nil {
			local, _ := sn.LocalName()
			super = byName[local]
		}
		co, err := NewClassObject(act, class, super, NewScopeChain(domain))
		if err != nil {
			return linked, err
		}
		byName[class.Name().LocalName()] = co
		linked = append(linked, co)
	}
	return linked, nil
}

func TestMethodOverrideKeepsDispatchID(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Base", "Object",
		abc.MethodTrait(a.name("foo"), a.method("Base/foo")),
		abc.MethodTrait(a.name("bar"), a.method("Base/bar")),
	)
	a.class("Derived", "Base",
		abc.MethodTrait(a.name("bar"), a.method("Derived/bar")).Override(),
		abc.MethodTrait(a.name("baz"), a.method("Derived/baz")),
	)

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err)
	base, derived := classes[0].InstanceVTable(), classes[1].InstanceVTable()

	for _, name := range []string{"foo", "bar"} {
		bp, ok := base.GetTrait(publicName(name))
		require.True(t, ok)
		dp, ok := derived.GetTrait(publicName(name))
		require.True(t, ok)
		assert.Equal(t, bp, dp, name)
	}

	baz, ok := derived.GetTrait(publicName("baz"))
	require.True(t, ok)
	bazID, _ := baz.DispID()
	assert.Equal(t, uint32(2), bazID)
	assert.Equal(t, 3, derived.NumMethods())
	assert.Equal(t, 2, base.NumMethods())

	barProp, _ := derived.GetTrait(publicName("bar"))
	barID, _ := barProp.DispID()
	entry, ok := derived.GetFullMethod(barID)
	require.True(t, ok)
	assert.Equal(t, "Derived/bar", entry.Method.Name())
	assert.Same(t, classes[1], entry.Class)

	fooProp, _ := derived.GetTrait(publicName("foo"))
	fooID, _ := fooProp.DispID()
	entry, _ = derived.GetFullMethod(fooID)
	assert.Same(t, classes[0], entry.Class, "inherited entries keep their defining class")
}

func TestMissingOverrideIsRejected(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Base", "Object", abc.MethodTrait(a.name("foo"), a.method("Base/foo")))
	a.class("Derived", "Base", abc.MethodTrait(a.name("foo"), a.method("Derived/foo")))

	_, err := linkArchive(t, avm, a)
	var verifyErr *VerifyError
	require.ErrorAs(t, err, &verifyErr)
	assert.Equal(t, "Derived", verifyErr.Class)
	assert.Equal(t, "foo", verifyErr.Trait)
	assert.Contains(t, verifyErr.Msg, "does not override it")
}

func TestOrphanOverrideIsRejected(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Base", "Object")
	a.class("Derived", "Base", abc.MethodTrait(a.name("foo"), a.method("Derived/foo")).Override())

	_, err := linkArchive(t, avm, a)
	var verifyErr *VerifyError
	require.ErrorAs(t, err, &verifyErr)
	assert.Contains(t, verifyErr.Msg, "does not override any other trait")
}

func TestFinalTraitCannotBeOverridden(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Base", "Object", abc.MethodTrait(a.name("foo"), a.method("Base/foo")).Final())
	a.class("Derived", "Base", abc.MethodTrait(a.name("foo"), a.method("Derived/foo")).Override())

	_, err := linkArchive(t, avm, a)
	var verifyErr *VerifyError
	require.ErrorAs(t, err, &verifyErr)
	assert.Contains(t, verifyErr.Msg, "overrides final trait")
}

func TestOverrideFoundFurtherUpTheChain(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Root", "Object", abc.MethodTrait(a.name("foo"), a.method("Root/foo")))
	a.class("Middle", "Root")
	a.class("Leaf", "Middle", abc.MethodTrait(a.name("foo"), a.method("Leaf/foo")).Override())

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err)
	require.Len(t, classes, 3)
}

func TestGetterAndSetterCombine(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Base", "Object", abc.GetterTrait(a.name("value"), a.method("Base/get value")))
	a.class("Derived", "Base",
		abc.SetterTrait(a.name("value"), a.method("Derived/set value")),
		abc.GetterTrait(a.name("value"), a.method("Derived/get value")).Override(),
	)

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err, "a setter does not override a getter of the same name")

	prop, ok := classes[1].InstanceVTable().GetTrait(publicName("value"))
	require.True(t, ok)
	assert.Equal(t, PropertyVirtual, prop.Kind())
	getter, hasGetter := prop.Getter()
	setter, hasSetter := prop.Setter()
	require.True(t, hasGetter)
	require.True(t, hasSetter)
	assert.Equal(t, uint32(0), getter)
	assert.Equal(t, uint32(1), setter)

	m, _ := classes[1].InstanceVTable().GetMethod(getter)
	assert.Equal(t, "Derived/get value", m.Name())
}

func TestProtectedNamespaceAliasing(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	baseNS := a.Namespace(abc.NamespaceProtected, "Base")
	derivedNS := a.Namespace(abc.NamespaceProtected, "Derived")

	a.Class(abc.Instance{
		Name:               a.name("Base"),
		SuperName:          a.name("Object"),
		ProtectedNamespace: &baseNS,
		InitMethod:         a.method("Base/init"),
		Traits:             []abc.Trait{abc.MethodTrait(a.QName(baseNS, "secret"), a.method("Base/secret"))},
	}, abc.Class{InitMethod: a.method("Base/cinit")})
	a.Class(abc.Instance{
		Name:               a.name("Derived"),
		SuperName:          a.name("Base"),
		ProtectedNamespace: &derivedNS,
		InitMethod:         a.method("Derived/init"),
		Traits:             []abc.Trait{abc.MethodTrait(a.QName(derivedNS, "secret"), a.method("Derived/secret")).Override()},
	}, abc.Class{InitMethod: a.method("Derived/cinit")})

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err)

	vt := classes[1].InstanceVTable()
	ns, ok := vt.ProtectedNamespace()
	require.True(t, ok)
	prop, ok := vt.GetTrait(NewMultiname(ns, "secret"))
	require.True(t, ok)
	id, _ := prop.DispID()
	assert.Equal(t, uint32(0), id, "the override reuses the inherited dispatch id")
	assert.Equal(t, 1, vt.NumMethods())

	m, _ := vt.GetMethod(id)
	assert.Equal(t, "Derived/secret", m.Name())
}

func TestSlotAssignment(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Holder", "Object",
		abc.SlotTrait(a.name("auto1"), 0, 0, nil),
		abc.SlotTrait(a.name("auto2"), 0, a.name("int"), nil),
		abc.SlotTrait(a.name("placed"), 5, a.name("String"), a.StringValue("s")),
		abc.SlotTrait(a.name("clash"), 1, a.name("Boolean"), nil),
		abc.SlotTrait(a.name("far"), 0xFFFFFFF0, 0, nil),
	)

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err)
	vt := classes[0].InstanceVTable()

	slotOf := func(name string) uint32 {
		prop, ok := vt.GetTrait(publicName(name))
		require.True(t, ok, name)
		id, ok := prop.SlotID()
		require.True(t, ok, name)
		return id
	}
	assert.Equal(t, uint32(0), slotOf("auto1"))
	assert.Equal(t, uint32(1), slotOf("auto2"))
	assert.Equal(t, uint32(5), slotOf("placed"))
	assert.Equal(t, uint32(6), slotOf("clash"), "taken id is moved to the end")
	assert.Equal(t, uint32(7), slotOf("far"), "out of range id is moved to the end")
	assert.Equal(t, 8, vt.NumSlots())

	defaults := vt.DefaultSlots()
	require.NotNil(t, defaults[0])
	assert.True(t, defaults[0].IsUndefined())
	assert.Equal(t, IntValue(0), *defaults[1])
	assert.Nil(t, defaults[2], "gaps stay unused")
	assert.Equal(t, StringValue("s"), *defaults[5])
	assert.Equal(t, False, *defaults[6])

	name, err := vt.SlotClassName(5)
	require.NoError(t, err)
	local, _ := name.LocalName()
	assert.Equal(t, "String", local)
	anyName, err := vt.SlotClassName(2)
	require.NoError(t, err)
	assert.True(t, anyName.IsAny())
}

func TestUnresolvableSlotTypeFailsOnWrite(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Holder", "Object", abc.SlotTrait(a.name("thing"), 0, a.name("Missing"), nil))

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err)
	act := NewActivation(avm)

	obj, err := classes[0].Construct(act, nil)
	require.NoError(t, err)
	inst := obj.(*ScriptObject)

	v, err := inst.Slot(0)
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "class-typed slots start null")

	err = inst.SetSlot(act, 0, IntValue(1))
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Contains(t, typeErr.Msg, "Could not resolve class")
}

func TestClassTypedSlotResolvesLazily(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	a.class("Node", "Object", abc.SlotTrait(a.name("next"), 0, a.name("Node"), nil))

	domain := NewDomain(avm.GlobalDomain())
	unit := NewTranslationUnit(a.File(), domain, "", avm)
	act := NewActivationInDomain(avm, domain)
	class, err := unit.LoadClass(0, act)
	require.NoError(t, err)
	domain.ExportClass(class)
	node := linkClass(t, act, class, avm.Classes().Object, domain)

	first, err := node.Construct(act, nil)
	require.NoError(t, err)
	second, err := node.Construct(act, nil)
	require.NoError(t, err)

	inst := first.(*ScriptObject)
	require.NoError(t, inst.SetSlot(act, 0, ObjectValue(second)))
	v, err := inst.Slot(0)
	require.NoError(t, err)
	assert.Equal(t, ObjectValue(second), v)

	err = inst.SetSlot(act, 0, StringValue("nope"))
	var typeErr *TypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestFunctionAndClassTraits(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	inner := a.class("Inner", "Object")
	fn := a.method("helper")
	a.Script(a.method("init"),
		abc.ClassTrait(a.name("Inner"), 0, inner),
		abc.FunctionTrait(a.name("helper"), 0, fn),
	)
	domain := NewDomain(avm.GlobalDomain())
	unit := NewTranslationUnit(a.File(), domain, "", avm)
	act := NewActivationInDomain(avm, domain)

	script, err := unit.LoadScript(0, act)
	require.NoError(t, err)
	_, ok := domain.GetClass(publicName("Inner"))
	assert.True(t, ok, "class traits export their class")

	globals, err := script.Globals(act)
	require.NoError(t, err)
	vt := globals.VTable()

	classProp, ok := vt.GetTrait(publicName("Inner"))
	require.True(t, ok)
	assert.True(t, classProp.IsConst())
	classSlot, _ := classProp.SlotID()
	v, err := globals.Slot(classSlot)
	require.NoError(t, err)
	assert.True(t, v.IsUndefined())

	fnProp, ok := vt.GetTrait(publicName("helper"))
	require.True(t, ok)
	fnSlot, _ := fnProp.SlotID()
	v, err = globals.Slot(fnSlot)
	require.NoError(t, err)
	f, ok := v.AsObject().(*FunctionObject)
	require.True(t, ok)
	assert.Equal(t, "helper", f.Method().Name())
	assert.Same(t, avm.Classes().Function, f.InstanceOf())
}

func TestCatchVTable(t *testing.T) {
	name := NewQName(PackageNamespace(""), "e")
	vt := NewCatchVTable(name)

	prop, ok := vt.GetTrait(publicName("e"))
	require.True(t, ok)
	id, _ := prop.SlotID()
	assert.Equal(t, uint32(1), id)
	assert.Equal(t, 2, vt.NumSlots())
	assert.Nil(t, vt.DefiningClass())

	obj := NewScriptObjectWithVTable(nil, vt)
	obj.InstallInstanceSlots()
	act := NewActivation(newTestAvm(t))
	require.NoError(t, obj.SetSlot(act, 1, StringValue("boom")))
	v, err := obj.Slot(1)
	require.NoError(t, err)
	assert.Equal(t, StringValue("boom"), v)
}

func TestInstallConstLate(t *testing.T) {
	avm := newTestAvm(t)
	act := NewActivation(avm)
	obj, err := avm.Classes().Global.Construct(act, nil)
	require.NoError(t, err)
	globals := obj.(*ScriptObject)
	globals.ForkVTable()

	id := globals.InstallConstLate(NewQName(avm.PublicNamespace(), "VERSION"), IntValue(3), nil)
	v, err := globals.GetProperty(act, publicName("VERSION"))
	require.NoError(t, err)
	assert.Equal(t, IntValue(3), v)
	assert.Equal(t, int(id)+1, globals.NumSlots())
	assert.False(t, avm.Classes().Global.InstanceVTable().HasTrait(publicName("VERSION")))
}

func TestDuplicateIsIndependent(t *testing.T) {
	vt := NewCatchVTable(NewQName(PackageNamespace(""), "e"))
	dup := vt.Duplicate()
	dup.InstallConstTraitLate(NewQName(PackageNamespace(""), "extra"), True, nil)

	assert.True(t, dup.HasTrait(publicName("extra")))
	assert.False(t, vt.HasTrait(publicName("extra")))
	assert.Equal(t, 2, vt.NumSlots())
}

func TestAttributeNamesDoNotResolve(t *testing.T) {
	vt := NewCatchVTable(NewQName(PackageNamespace(""), "e"))
	attr := publicName("e")
	attr.flags |= multinameAttribute
	assert.False(t, vt.HasTrait(attr))
}

func TestPublicProperties(t *testing.T) {
	avm, _ := newEchoAvm(t)
	a := newArchive()
	hidden := a.Namespace(abc.NamespacePrivate, "Shape")
	a.class("Shape", "Object",
		abc.MethodTrait(a.name("draw"), a.method("Shape/draw")),
		abc.SlotTrait(a.name("area"), 0, 0, nil),
		abc.SlotTrait(a.QName(hidden, "cache"), 0, 0, nil),
	)

	classes, err := linkArchive(t, avm, a)
	require.NoError(t, err)

	props := classes[0].InstanceVTable().PublicProperties()
	var names []string
	for _, p := range props {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"area", "draw"}, names)
}
