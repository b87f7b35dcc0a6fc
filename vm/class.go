package vm

import (
	"fmt"
	"slices"
)

// ClassAttributes are the declared properties of a class.
type ClassAttributes uint8

const (
	ClassSealed ClassAttributes = 1 << iota
	ClassFinal
	ClassInterface
	ClassGeneric
)

// AllocatorFn creates the storage for a new instance of class. Allocators
// are inherited: construction uses the nearest allocator on the superclass
// chain.
type AllocatorFn func(class *ClassObject, act *Activation) (Object, error)

// Class is a loaded class descriptor. It is unlinked: linking against a
// superclass and building vtables happens in NewClassObject.
//
// Class is a handle; copies refer to the same descriptor.
type Class struct {
	cell *Cell[classData]
}

type classData struct {
	name       QName
	params     []*Class
	superName  *Multiname
	attributes ClassAttributes

	protectedNS    Namespace
	hasProtectedNS bool

	interfaces []*Multiname

	allocator          AllocatorFn
	instanceInit       *Method
	nativeInstanceInit *Method
	instanceTraits     []Trait

	classInit       *Method
	classInitCalled bool
	callHandler     *Method
	specializedInit *Method
	classTraits     []Trait

	traitsLoaded bool
	isSystem     bool
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// NewClass creates a native (system) class. Its traits are defined with the
// Define* methods and frozen by MarkTraitsLoaded or by linking.
func NewClass(name QName, superName *Multiname, instanceInit, classInit *Method) *Class {
	return &Class{cell: NewCell(classData{
		name:               name,
		superName:          superName,
		instanceInit:       instanceInit,
		nativeInstanceInit: instanceInit,
		classInit:          classInit,
		specializedInit:    noopMethod("<Null specialization constructor>"),
		isSystem:           true,
	})}
}

// ClassFromArchiveIndex loads the instance/class descriptor pair at index.
// The result has no traits yet; call LoadTraits once the class has been
// stored where recursive references can find it.
//
// When unit belongs to the global domain, native allocators, instance
// initializers and call handlers registered at the same index replace the
// archive's, keeping the archive-declared signature.
func ClassFromArchiveIndex(unit *TranslationUnit, index uint32, act *Activation) (*Class, error) {
	file := unit.Archive()
	if int(index) >= len(file.Classes) {
		return nil, loadErrorf("Class index %d not valid", index)
	}
	if int(index) >= len(file.Instances) {
		return nil, loadErrorf("Instance index %d not valid", index)
	}
	inst := &file.Instances[index]
	raw := &file.Classes[index]

	mn, err := unit.PoolMultinameStatic(inst.Name)
	if err != nil {
		return nil, err
	}
	name, ok := mn.ToQName()
	if !ok {
		return nil, loadErrorf("Class name %s must be a QName", mn)
	}

	var superName *Multiname
	if inst.SuperName != 0 {
		if superName, err = unit.PoolMultinameStatic(inst.SuperName); err != nil {
			return nil, err
		}
	}

	data := classData{
		name:      name,
		superName: superName,
	}

	if inst.ProtectedNamespace != nil {
		ns, err := unit.PoolNamespace(*inst.ProtectedNamespace)
		if err != nil {
			return nil, err
		}
		data.protectedNS, data.hasProtectedNS = ns, true
	}

	for _, idx := range inst.Interfaces {
		iface, err := unit.PoolMultinameStatic(idx)
		if err != nil {
			return nil, err
		}
		data.interfaces = append(data.interfaces, iface)
	}

	if data.instanceInit, err = unit.LoadMethod(inst.InitMethod, false, act); err != nil {
		return nil, err
	}
	data.nativeInstanceInit = data.instanceInit
	if data.classInit, err = unit.LoadMethod(raw.InitMethod, false, act); err != nil {
		return nil, err
	}
	data.specializedInit = noopMethod("<Null specialization constructor>")

	if inst.IsSealed {
		data.attributes |= ClassSealed
	}
	if inst.IsFinal {
		data.attributes |= ClassFinal
	}
	if inst.IsInterface {
		data.attributes |= ClassInterface
	}

	if unit.Domain().IsGlobal(act.Avm()) {
		natives := act.Avm().Natives()
		if e := natives.allocator(index); e != nil {
			data.allocator = e.Fn
		}
		if e := natives.instanceInit(index); e != nil {
			data.nativeInstanceInit = NewNativeMethodWithParams(e.Impl, e.Name,
				data.instanceInit.Signature(), data.instanceInit.IsVariadic())
		}
		if e := natives.callHandler(index); e != nil {
			data.callHandler = NewNativeMethodWithParams(e.Impl, e.Name,
				[]ParamConfig{ParamOfType("val", AnyMultiname())}, false)
		}
	}

	return &Class{cell: NewCell(data)}, nil
}

// LoadTraits loads the instance traits then the class traits at index, in
// declaration order. It is idempotent.
func (c *Class) LoadTraits(unit *TranslationUnit, index uint32, act *Activation) error {
	data, release := c.cell.Write()
	if data.traitsLoaded {
		release()
		return nil
	}
	data.traitsLoaded = true
	release()

	file := unit.Archive()
	if int(index) >= len(file.Classes) {
		return loadErrorf("Class index %d not valid", index)
	}
	if int(index) >= len(file.Instances) {
		return loadErrorf("Instance index %d not valid", index)
	}

	for i := range file.Instances[index].Traits {
		t, err := TraitFromArchive(unit, &file.Instances[index].Traits[i], act)
		if err != nil {
			return err
		}
		c.appendTrait(t, false)
	}
	for i := range file.Classes[index].Traits {
		t, err := TraitFromArchive(unit, &file.Classes[index].Traits[i], act)
		if err != nil {
			return err
		}
		c.appendTrait(t, true)
	}
	return nil
}

// ClassForActivation synthesizes the class of an activation object: the
// traits declared by the body of the method at methodIndex.
func ClassForActivation(act *Activation, unit *TranslationUnit, methodIndex uint32) (*Class, error) {
	file := unit.Archive()
	if int(methodIndex) >= len(file.Methods) {
		return nil, loadErrorf("Method index %d not valid", methodIndex)
	}
	body := file.BodyFor(methodIndex)
	if body == nil {
		return nil, loadErrorf("Method %d has no body", methodIndex)
	}
	name, err := unit.PoolString(file.Methods[methodIndex].Name)
	if err != nil {
		return nil, err
	}

	traits := make([]Trait, 0, len(body.Traits))
	for i := range body.Traits {
		t, err := TraitFromArchive(unit, &body.Traits[i], act)
		if err != nil {
			return nil, err
		}
		traits = append(traits, t)
	}

	return &Class{cell: NewCell(classData{
		name:               NewQName(act.Avm().PublicNamespace(), name),
		instanceInit:       noopMethod("<Activation object constructor>"),
		nativeInstanceInit: noopMethod("<Activation object constructor>"),
		instanceTraits:     traits,
		classInit:          noopMethod("<Activation object class constructor>"),
		specializedInit:    noopMethod("<Activation object specialization constructor>"),
		traitsLoaded:       true,
	})}, nil
}

// WithTypeParams returns a specialization of a generic class. The copy is
// renamed "Local.<Param>", is no longer generic, and runs the specialized
// class initializer. A nil parameter stands for the any type. Only one
// parameter is supported.
func (c *Class) WithTypeParams(params []*Class) (*Class, error) {
	data, release := c.cell.Read()
	defer release()

	if len(params) == 0 {
		return nil, typeErrorf("Type application of %s requires a parameter", data.name)
	}
	if len(params) > 1 {
		return nil, typeErrorf("More than one type parameter is unsupported: %s", data.name)
	}

	clone := *data
	clone.params = slices.Clone(params)
	clone.interfaces = slices.Clone(data.interfaces)
	clone.instanceTraits = slices.Clone(data.instanceTraits)
	clone.classTraits = slices.Clone(data.classTraits)
	clone.attributes &^= ClassGeneric
	clone.classInit = data.specializedInit
	clone.classInitCalled = false

	paramName := "*"
	if params[0] != nil {
		paramName = params[0].Name().ToQualifiedName()
	}
	clone.name = NewQName(data.name.ns, data.name.local+".<"+paramName+">")

	return &Class{cell: NewCell(clone)}, nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ValidateClass checks the instance traits against the superclass chain.
// A trait that matches a supertrait by name must be declared override and
// the supertrait must not be final; a trait declared override must match
// something. A getter and a setter of the same name do not override each
// other. A trait in this class's protected namespace matches a supertrait in
// the superclass's protected namespace. System classes are not checked.
func (c *Class) ValidateClass(superclass *ClassObject) error {
	data, release := c.cell.Read()
	defer release()

	if data.isSystem || superclass == nil {
		return nil
	}

	for i := range data.instanceTraits {
		mine := &data.instanceTraits[i]
		isProtected := data.hasProtectedNS && data.protectedNS == mine.name.ns
		didOverride := false

		for current := superclass; current != nil && !didOverride; current = current.Superclass() {
			if err := current.Class().matchSupertraits(data, mine, isProtected, &didOverride); err != nil {
				return err
			}
		}

		if mine.IsOverride() && !didOverride {
			return verifyErrorf(data.name.local, mine.name.local,
				"Trait %s in class %s marked as override, does not override any other trait",
				mine.name.local, data.name.local)
		}
	}
	return nil
}

func (c *Class) matchSupertraits(sub *classData, mine *Trait, isProtected bool, didOverride *bool) error {
	super, release := c.cell.Read()
	defer release()

	for j := range super.instanceTraits {
		theirs := &super.instanceTraits[j]
		if theirs.name.local != mine.name.local {
			continue
		}
		if theirs.name.ns != mine.name.ns &&
			!(isProtected && super.hasProtectedNS && super.protectedNS == theirs.name.ns) {
			continue
		}
		if (theirs.kind == TraitGetter && mine.kind == TraitSetter) ||
			(theirs.kind == TraitSetter && mine.kind == TraitGetter) {
			continue
		}

		*didOverride = true
		if theirs.IsFinal() {
			return verifyErrorf(sub.name.local, mine.name.local,
				"Trait %s in class %s overrides final trait %s in class %s",
				mine.name.local, sub.name.local, theirs.name.local, super.name.local)
		}
		if !mine.IsOverride() {
			return verifyErrorf(sub.name.local, mine.name.local,
				"Trait %s in class %s has same name as trait %s in class %s, but does not override it",
				mine.name.local, sub.name.local, theirs.name.local, super.name.local)
		}
		return nil
	}
	return nil
}

// ---------------------------------------------------------------------------
// Trait definition
// ---------------------------------------------------------------------------

// DefineInstanceTrait appends an instance trait. It panics once the class's
// traits are frozen.
func (c *Class) DefineInstanceTrait(t Trait) {
	c.defineTrait(t, false)
}

// DefineClassTrait appends a class trait. It panics once the class's traits
// are frozen.
func (c *Class) DefineClassTrait(t Trait) {
	c.defineTrait(t, true)
}

func (c *Class) defineTrait(t Trait, static bool) {
	data, release := c.cell.Write()
	defer release()
	if data.traitsLoaded {
		panic(fmt.Sprintf("vm: cannot define %s on %s: traits are frozen", t.String(), data.name))
	}
	if static {
		data.classTraits = append(data.classTraits, t)
	} else {
		data.instanceTraits = append(data.instanceTraits, t)
	}
}

func (c *Class) appendTrait(t Trait, static bool) {
	data, release := c.cell.Write()
	defer release()
	if static {
		data.classTraits = append(data.classTraits, t)
	} else {
		data.instanceTraits = append(data.instanceTraits, t)
	}
}

// BuiltinMethod names a native method for the Define*Methods helpers.
type BuiltinMethod struct {
	Name string
	Impl NativeMethodImpl
}

// BuiltinProperty names a native getter and/or setter.
type BuiltinProperty struct {
	Name   string
	Getter NativeMethodImpl
	Setter NativeMethodImpl
}

// NumberSlot names a Number slot with an optional initial value.
type NumberSlot struct {
	Name  string
	Value *float64
}

// NumberConstant names a Number constant.
type NumberConstant struct {
	Name  string
	Value float64
}

// IntConstant names an int constant.
type IntConstant struct {
	Name  string
	Value int32
}

// UintConstant names a uint constant.
type UintConstant struct {
	Name  string
	Value uint32
}

// DefineBuiltinInstanceMethods defines native instance methods in ns.
func (c *Class) DefineBuiltinInstanceMethods(ns Namespace, items []BuiltinMethod) {
	for _, item := range items {
		c.DefineInstanceTrait(TraitFromMethod(NewQName(ns, item.Name), NewNativeMethod(item.Impl, item.Name)))
	}
}

// DefineBuiltinClassMethods defines native class methods in ns.
func (c *Class) DefineBuiltinClassMethods(ns Namespace, items []BuiltinMethod) {
	for _, item := range items {
		c.DefineClassTrait(TraitFromMethod(NewQName(ns, item.Name), NewNativeMethod(item.Impl, item.Name)))
	}
}

// DefineBuiltinInstanceProperties defines native instance accessors in ns.
func (c *Class) DefineBuiltinInstanceProperties(ns Namespace, items []BuiltinProperty) {
	for _, t := range builtinPropertyTraits(ns, items) {
		c.DefineInstanceTrait(t)
	}
}

// DefineBuiltinClassProperties defines native class accessors in ns.
func (c *Class) DefineBuiltinClassProperties(ns Namespace, items []BuiltinProperty) {
	for _, t := range builtinPropertyTraits(ns, items) {
		c.DefineClassTrait(t)
	}
}

func builtinPropertyTraits(ns Namespace, items []BuiltinProperty) []Trait {
	var traits []Trait
	for _, item := range items {
		name := NewQName(ns, item.Name)
		if item.Getter != nil {
			traits = append(traits, TraitFromGetter(name, NewNativeMethod(item.Getter, item.Name)))
		}
		if item.Setter != nil {
			traits = append(traits, TraitFromSetter(name, NewNativeMethod(item.Setter, item.Name)))
		}
	}
	return traits
}

// DefineSlotNumberInstanceTraits defines Number instance slots in ns.
func (c *Class) DefineSlotNumberInstanceTraits(ns Namespace, items []NumberSlot) {
	typ := NewMultiname(PackageNamespace(""), "Number")
	for _, item := range items {
		var v *Value
		if item.Value != nil {
			n := NumberValue(*item.Value)
			v = &n
		}
		c.DefineInstanceTrait(TraitFromSlot(NewQName(ns, item.Name), typ, v))
	}
}

// DefineConstantNumberClassTraits defines Number class constants in ns.
func (c *Class) DefineConstantNumberClassTraits(ns Namespace, items []NumberConstant) {
	typ := NewMultiname(PackageNamespace(""), "Number")
	for _, item := range items {
		v := NumberValue(item.Value)
		c.DefineClassTrait(TraitFromConst(NewQName(ns, item.Name), typ, &v))
	}
}

// DefineConstantIntClassTraits defines int class constants in ns.
func (c *Class) DefineConstantIntClassTraits(ns Namespace, items []IntConstant) {
	typ := NewMultiname(PackageNamespace(""), "int")
	for _, item := range items {
		v := IntValue(item.Value)
		c.DefineClassTrait(TraitFromConst(NewQName(ns, item.Name), typ, &v))
	}
}

// DefineConstantUintClassTraits defines uint class constants in ns.
func (c *Class) DefineConstantUintClassTraits(ns Namespace, items []UintConstant) {
	typ := NewMultiname(PackageNamespace(""), "uint")
	for _, item := range items {
		v := UintValue(item.Value)
		c.DefineClassTrait(TraitFromConst(NewQName(ns, item.Name), typ, &v))
	}
}

// MarkTraitsLoaded freezes the trait lists.
func (c *Class) MarkTraitsLoaded() {
	data, release := c.cell.Write()
	defer release()
	data.traitsLoaded = true
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Name returns the class name.
func (c *Class) Name() QName {
	data, release := c.cell.Read()
	defer release()
	return data.name
}

// SetName renames the class.
func (c *Class) SetName(name QName) {
	data, release := c.cell.Write()
	defer release()
	data.name = name
}

// Params returns the type parameters of a specialization.
func (c *Class) Params() []*Class {
	data, release := c.cell.Read()
	defer release()
	return data.params
}

// SuperClassName returns the superclass name, or nil for root classes.
func (c *Class) SuperClassName() *Multiname {
	data, release := c.cell.Read()
	defer release()
	return data.superName
}

// Attributes returns the class attributes.
func (c *Class) Attributes() ClassAttributes {
	data, release := c.cell.Read()
	defer release()
	return data.attributes
}

// SetAttributes replaces the class attributes.
func (c *Class) SetAttributes(attrs ClassAttributes) {
	data, release := c.cell.Write()
	defer release()
	data.attributes = attrs
}

// IsSealed reports whether instances reject dynamic properties.
func (c *Class) IsSealed() bool { return c.Attributes()&ClassSealed != 0 }

// IsFinal reports whether the class may not be subclassed.
func (c *Class) IsFinal() bool { return c.Attributes()&ClassFinal != 0 }

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.Attributes()&ClassInterface != 0 }

// IsGeneric reports whether the class takes a type parameter.
func (c *Class) IsGeneric() bool { return c.Attributes()&ClassGeneric != 0 }

// ProtectedNamespace returns the class's protected namespace, if any.
func (c *Class) ProtectedNamespace() (Namespace, bool) {
	data, release := c.cell.Read()
	defer release()
	return data.protectedNS, data.hasProtectedNS
}

// SetProtectedNamespace sets the class's protected namespace.
func (c *Class) SetProtectedNamespace(ns Namespace) {
	data, release := c.cell.Write()
	defer release()
	data.protectedNS, data.hasProtectedNS = ns, true
}

// DirectInterfaces returns the names of interfaces this class declares.
func (c *Class) DirectInterfaces() []*Multiname {
	data, release := c.cell.Read()
	defer release()
	return slices.Clone(data.interfaces)
}

// Implements declares that the class implements iface.
func (c *Class) Implements(iface *Multiname) {
	data, release := c.cell.Write()
	defer release()
	data.interfaces = append(data.interfaces, iface)
}

// InstanceAllocator returns the class's own allocator, or nil.
func (c *Class) InstanceAllocator() AllocatorFn {
	data, release := c.cell.Read()
	defer release()
	return data.allocator
}

// SetInstanceAllocator sets the class's allocator.
func (c *Class) SetInstanceAllocator(fn AllocatorFn) {
	data, release := c.cell.Write()
	defer release()
	data.allocator = fn
}

// InstanceInit returns the instance initializer.
func (c *Class) InstanceInit() *Method {
	data, release := c.cell.Read()
	defer release()
	return data.instanceInit
}

// NativeInstanceInit returns the initializer used when native code
// constructs an instance.
func (c *Class) NativeInstanceInit() *Method {
	data, release := c.cell.Read()
	defer release()
	return data.nativeInstanceInit
}

// SetNativeInstanceInit replaces the native instance initializer.
func (c *Class) SetNativeInstanceInit(m *Method) {
	data, release := c.cell.Write()
	defer release()
	data.nativeInstanceInit = m
}

// ClassInit returns the class initializer.
func (c *Class) ClassInit() *Method {
	data, release := c.cell.Read()
	defer release()
	return data.classInit
}

// SetSpecializedInit sets the class initializer used by specializations.
func (c *Class) SetSpecializedInit(m *Method) {
	data, release := c.cell.Write()
	defer release()
	data.specializedInit = m
}

// CallHandler returns the method run when the class is called as a
// function, or nil.
func (c *Class) CallHandler() *Method {
	data, release := c.cell.Read()
	defer release()
	return data.callHandler
}

// SetCallHandler sets the call handler.
func (c *Class) SetCallHandler(m *Method) {
	data, release := c.cell.Write()
	defer release()
	data.callHandler = m
}

// IsClassInitialized reports whether the class initializer has run.
func (c *Class) IsClassInitialized() bool {
	data, release := c.cell.Read()
	defer release()
	return data.classInitCalled
}

// MarkClassInitialized records that the class initializer has run. It
// returns false if it already had.
func (c *Class) MarkClassInitialized() bool {
	data, release := c.cell.Write()
	defer release()
	if data.classInitCalled {
		return false
	}
	data.classInitCalled = true
	return true
}

// InstanceTraits returns a snapshot of the instance traits.
func (c *Class) InstanceTraits() []Trait {
	data, release := c.cell.Read()
	defer release()
	return slices.Clone(data.instanceTraits)
}

// ClassTraits returns a snapshot of the class traits.
func (c *Class) ClassTraits() []Trait {
	data, release := c.cell.Read()
	defer release()
	return slices.Clone(data.classTraits)
}

// TraitsLoaded reports whether the trait lists are frozen.
func (c *Class) TraitsLoaded() bool {
	data, release := c.cell.Read()
	defer release()
	return data.traitsLoaded
}

// IsSystem reports whether the class is native.
func (c *Class) IsSystem() bool {
	data, release := c.cell.Read()
	defer release()
	return data.isSystem
}

func (c *Class) String() string {
	return c.Name().ToQualifiedName()
}
