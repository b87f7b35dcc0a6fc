package vm

// ClassObject is a Class linked against its superclass: it owns the
// instance vtable shared by every instance, the class vtable describing
// static traits, and the resolved interface list.
type ClassObject struct {
	cell *Cell[classObjectData]
}

type classObjectData struct {
	class      *Class
	superclass *ClassObject
	classClass *ClassObject

	scope         ScopeChain
	instanceScope ScopeChain

	instanceVTable *VTable
	classVTable    *VTable
	statics        *ScriptObject

	interfaces   []*ClassObject
	applications map[*ClassObject]*ClassObject
}

// NewClassObject links class under superclass (nil for root classes),
// builds both vtables, registers the result with the Avm and runs the class
// initializer.
func NewClassObject(act *Activation, class *Class, superclass *ClassObject, scope ScopeChain) (*ClassObject, error) {
	co, err := newPartialClassObject(act, class, superclass, scope)
	if err != nil {
		return nil, err
	}
	if err := co.finish(act); err != nil {
		return nil, err
	}
	if err := co.RunClassInitializer(act); err != nil {
		return nil, err
	}
	return co, nil
}

// newPartialClassObject validates class and builds its instance vtable.
func newPartialClassObject(act *Activation, class *Class, superclass *ClassObject, scope ScopeChain) (*ClassObject, error) {
	name := class.Name().LocalName()
	if superclass != nil {
		super := superclass.Class()
		if super.IsFinal() {
			return nil, verifyErrorf(name, "", "Class %s cannot extend final class %s", name, super.Name().LocalName())
		}
		if super.IsInterface() {
			return nil, verifyErrorf(name, "", "Class %s cannot extend interface %s", name, super.Name().LocalName())
		}
	}

	class.MarkTraitsLoaded()
	if err := class.ValidateClass(superclass); err != nil {
		return nil, err
	}

	co := &ClassObject{cell: NewCell(classObjectData{
		class:          class,
		superclass:     superclass,
		scope:          scope,
		instanceVTable: NewEmptyVTable(),
		classVTable:    NewEmptyVTable(),
	})}
	instanceScope := scope.Chain(NewScope(co))
	data, release := co.cell.Write()
	data.instanceScope = instanceScope
	release()

	var superVT *VTable
	if superclass != nil {
		superVT = superclass.InstanceVTable()
	}
	if err := co.InstanceVTable().InitVTable(co, class.InstanceTraits(), instanceScope, superVT, act); err != nil {
		return nil, err
	}
	return co, nil
}

// finish links interfaces, builds the class vtable and registers co.
func (co *ClassObject) finish(act *Activation) error {
	if err := co.linkInterfaces(act); err != nil {
		return err
	}

	avm := act.Avm()
	classClass := avm.Classes().Class
	var classClassVT *VTable
	if classClass != nil {
		classClassVT = classClass.InstanceVTable()
	}

	classVT := co.ClassVTable()
	if err := classVT.InitVTable(co, co.Class().ClassTraits(), co.InstanceScope(), classClassVT, act); err != nil {
		return err
	}
	statics := NewScriptObjectWithVTable(classClass, classVT)
	statics.InstallInstanceSlots()

	data, release := co.cell.Write()
	data.classClass = classClass
	data.statics = statics
	release()

	avm.ClassObjects().Register(co)
	act.Logger().Debugf("linked class %s (%d slots, %d methods)",
		co.Class().Name().ToQualifiedName(), co.InstanceVTable().NumSlots(), co.InstanceVTable().NumMethods())
	return nil
}

// linkInterfaces resolves the declared interfaces (and the interfaces they
// extend) and, for non-interface classes, makes every public implementation
// visible under the interface's own trait names.
func (co *ClassObject) linkInterfaces(act *Activation) error {
	class := co.Class()
	domain := co.InstanceScope().Domain()
	if domain == nil {
		domain = act.Domain()
	}

	var interfaces []*ClassObject
	seen := make(map[*ClassObject]bool)
	var add func(iface *ClassObject)
	add = func(iface *ClassObject) {
		if seen[iface] {
			return
		}
		seen[iface] = true
		interfaces = append(interfaces, iface)
		for _, parent := range iface.Interfaces() {
			add(parent)
		}
	}

	if super := co.Superclass(); super != nil {
		for _, iface := range super.Interfaces() {
			add(iface)
		}
	}

	name := class.Name().LocalName()
	for _, ifaceName := range class.DirectInterfaces() {
		def, ok := domain.GetClass(ifaceName)
		if !ok {
			return verifyErrorf(name, "", "Could not resolve interface %s for class %s", ifaceName, name)
		}
		iface, ok := act.Avm().ClassObjectFor(def)
		if !ok {
			return verifyErrorf(name, "", "Interface %s of class %s has not been linked", ifaceName, name)
		}
		if !def.IsInterface() {
			return verifyErrorf(name, "", "Class %s implements %s, which is not an interface", name, ifaceName)
		}
		add(iface)
	}

	data, release := co.cell.Write()
	data.interfaces = interfaces
	release()

	if class.IsInterface() {
		return nil
	}
	vt := co.InstanceVTable()
	public := act.Avm().PublicNamespace()
	for _, iface := range interfaces {
		for _, t := range iface.Class().InstanceTraits() {
			vt.CopyPropertyForInterface(NewQName(public, t.Name().LocalName()), t.Name())
		}
	}
	return nil
}

// RunClassInitializer runs the class initializer with co as this. It runs
// at most once per class.
func (co *ClassObject) RunClassInitializer(act *Activation) error {
	class := co.Class()
	if !class.MarkClassInitialized() {
		return nil
	}
	_, err := act.CallMethod(class.ClassInit(), co.InstanceScope(), ObjectValue(co), nil, co)
	return err
}

// ---------------------------------------------------------------------------
// Construction and calls
// ---------------------------------------------------------------------------

// ScriptObjectAllocator is the allocator used when no class in the chain
// declares one.
func ScriptObjectAllocator(class *ClassObject, act *Activation) (Object, error) {
	obj := NewScriptObject(class)
	obj.InstallInstanceSlots()
	return obj, nil
}

func (co *ClassObject) instanceAllocator() AllocatorFn {
	for c := co; c != nil; c = c.Superclass() {
		if alloc := c.Class().InstanceAllocator(); alloc != nil {
			return alloc
		}
	}
	return ScriptObjectAllocator
}

// Construct allocates an instance and runs the instance initializer.
func (co *ClassObject) Construct(act *Activation, args []Value) (Object, error) {
	return co.construct(act, args, co.Class().InstanceInit())
}

// ConstructNative is Construct using the native instance initializer.
func (co *ClassObject) ConstructNative(act *Activation, args []Value) (Object, error) {
	return co.construct(act, args, co.Class().NativeInstanceInit())
}

func (co *ClassObject) construct(act *Activation, args []Value, init *Method) (Object, error) {
	class := co.Class()
	if class.IsInterface() {
		return nil, typeErrorf("%s is an interface and cannot be constructed", class.Name().ToQualifiedName())
	}
	obj, err := co.instanceAllocator()(co, act)
	if err != nil {
		return nil, err
	}
	if _, err := act.CallMethod(init, co.InstanceScope(), ObjectValue(obj), args, co); err != nil {
		return nil, err
	}
	return obj, nil
}

// Call invokes the class as a function: the call handler if there is one,
// otherwise a coercion of the single argument to this class.
func (co *ClassObject) Call(act *Activation, args []Value) (Value, error) {
	if handler := co.Class().CallHandler(); handler != nil {
		return act.CallMethod(handler, co.InstanceScope(), ObjectValue(co), args, co)
	}
	if len(args) != 1 {
		return Undefined, typeErrorf("Argument count mismatch on class coercion: expected 1, got %d", len(args))
	}
	return coerceToClass(act, args[0], co)
}

// ApplyType specializes a generic class with param (nil for the any type).
// Specializations are cached, so applying the same parameter twice returns
// the same class object.
func (co *ClassObject) ApplyType(act *Activation, param *ClassObject) (*ClassObject, error) {
	class := co.Class()
	if !class.IsGeneric() {
		return nil, typeErrorf("%s is not a parameterized type", class.Name().ToQualifiedName())
	}

	data, release := co.cell.Read()
	if applied, ok := data.applications[param]; ok {
		release()
		return applied, nil
	}
	superclass, scope := data.superclass, data.scope
	release()

	var paramDef *Class
	if param != nil {
		paramDef = param.Class()
	}
	specialized, err := class.WithTypeParams([]*Class{paramDef})
	if err != nil {
		return nil, err
	}
	applied, err := NewClassObject(act, specialized, superclass, scope)
	if err != nil {
		return nil, err
	}

	wdata, wrelease := co.cell.Write()
	defer wrelease()
	if wdata.applications == nil {
		wdata.applications = make(map[*ClassObject]*ClassObject)
	}
	wdata.applications[param] = applied
	return applied, nil
}

// HasClassInChain reports whether other is co, one of its superclasses, or
// one of its interfaces.
func (co *ClassObject) HasClassInChain(other *ClassObject) bool {
	for c := co; c != nil; c = c.Superclass() {
		if c == other {
			return true
		}
	}
	for _, iface := range co.Interfaces() {
		if iface == other {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Class returns the class descriptor.
func (co *ClassObject) Class() *Class {
	data, release := co.cell.Read()
	defer release()
	return data.class
}

// Superclass returns the superclass object, or nil.
func (co *ClassObject) Superclass() *ClassObject {
	data, release := co.cell.Read()
	defer release()
	return data.superclass
}

// InstanceVTable returns the vtable shared by instances.
func (co *ClassObject) InstanceVTable() *VTable {
	data, release := co.cell.Read()
	defer release()
	return data.instanceVTable
}

// ClassVTable returns the vtable of the class's static traits.
func (co *ClassObject) ClassVTable() *VTable {
	data, release := co.cell.Read()
	defer release()
	return data.classVTable
}

// VTable returns the class vtable; class objects are objects too.
func (co *ClassObject) VTable() *VTable { return co.ClassVTable() }

// InstanceOf returns the Class class.
func (co *ClassObject) InstanceOf() *ClassObject {
	data, release := co.cell.Read()
	defer release()
	return data.classClass
}

// InstanceScope returns the scope methods of this class close over.
func (co *ClassObject) InstanceScope() ScopeChain {
	data, release := co.cell.Read()
	defer release()
	return data.instanceScope
}

// Statics returns the storage for static slots.
func (co *ClassObject) Statics() *ScriptObject {
	data, release := co.cell.Read()
	defer release()
	return data.statics
}

// Interfaces returns every interface the class implements, including
// inherited ones.
func (co *ClassObject) Interfaces() []*ClassObject {
	data, release := co.cell.Read()
	defer release()
	return append([]*ClassObject(nil), data.interfaces...)
}

func (co *ClassObject) String() string {
	return "[class " + co.Class().Name().LocalName() + "]"
}
