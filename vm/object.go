package vm

import "fmt"

// Object is anything with a vtable: script objects, functions and class
// objects.
type Object interface {
	// VTable returns the object's linked layout.
	VTable() *VTable
	// InstanceOf returns the class the object is an instance of, or nil.
	InstanceOf() *ClassObject
}

// ---------------------------------------------------------------------------
// ScriptObject
// ---------------------------------------------------------------------------

// ScriptObject is a plain instance: a vtable, slot storage and a cache of
// bound methods.
type ScriptObject struct {
	cell *Cell[scriptObjectData]
}

type scriptObjectData struct {
	class  *ClassObject
	vtable *VTable
	slots  []Value
	bound  map[uint32]*FunctionObject
}

// NewScriptObject creates an instance of class using class's instance
// vtable. Slots are empty until InstallInstanceSlots.
func NewScriptObject(class *ClassObject) *ScriptObject {
	var vt *VTable
	if class != nil {
		vt = class.InstanceVTable()
	} else {
		vt = NewEmptyVTable()
	}
	return NewScriptObjectWithVTable(class, vt)
}

// NewScriptObjectWithVTable creates an object with an explicit vtable.
func NewScriptObjectWithVTable(class *ClassObject, vt *VTable) *ScriptObject {
	return &ScriptObject{cell: NewCell(scriptObjectData{class: class, vtable: vt})}
}

// VTable returns the object's vtable.
func (o *ScriptObject) VTable() *VTable {
	data, release := o.cell.Read()
	defer release()
	return data.vtable
}

// InstanceOf returns the object's class.
func (o *ScriptObject) InstanceOf() *ClassObject {
	data, release := o.cell.Read()
	defer release()
	return data.class
}

// ForkVTable gives the object a private copy of its vtable, so that traits
// linked into it later do not leak into other instances.
func (o *ScriptObject) ForkVTable() {
	data, release := o.cell.Write()
	defer release()
	data.vtable = data.vtable.Duplicate()
}

// InstallInstanceSlots sizes slot storage from the vtable's default slots
// and copies the defaults in. Unused slot ids hold undefined.
func (o *ScriptObject) InstallInstanceSlots() {
	data, release := o.cell.Write()
	defer release()

	defaults := data.vtable.DefaultSlots()
	slots := make([]Value, len(defaults))
	for i, v := range defaults {
		if v != nil {
			slots[i] = *v
		}
	}
	data.slots = slots
}

// NumSlots returns the number of allocated slots.
func (o *ScriptObject) NumSlots() int {
	data, release := o.cell.Read()
	defer release()
	return len(data.slots)
}

// Slot returns the value in slot id.
func (o *ScriptObject) Slot(id uint32) (Value, error) {
	data, release := o.cell.Read()
	defer release()
	if int(id) >= len(data.slots) {
		return Undefined, fmt.Errorf("%w: %d", ErrSlotOutOfBounds, id)
	}
	return data.slots[id], nil
}

// SetSlot coerces value to the slot's declared class and stores it.
func (o *ScriptObject) SetSlot(act *Activation, id uint32, value Value) error {
	v, err := o.VTable().CoerceTraitValue(id, value, act)
	if err != nil {
		return err
	}
	return o.InitSlot(id, v)
}

// InitSlot stores value in slot id without coercion.
func (o *ScriptObject) InitSlot(id uint32, value Value) error {
	data, release := o.cell.Write()
	defer release()
	if int(id) >= len(data.slots) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfBounds, id)
	}
	data.slots[id] = value
	return nil
}

// BoundMethod returns the method at dispID bound to o. The function object
// is created once per dispatch id so that its identity is stable.
func (o *ScriptObject) BoundMethod(act *Activation, dispID uint32) (*FunctionObject, bool) {
	data, release := o.cell.Read()
	if fn, ok := data.bound[dispID]; ok {
		release()
		return fn, true
	}
	vt := data.vtable
	release()

	fn, ok := vt.MakeBoundMethod(act, o, dispID)
	if !ok {
		return nil, false
	}

	data, release = o.cell.Write()
	defer release()
	if data.bound == nil {
		data.bound = make(map[uint32]*FunctionObject)
	}
	data.bound[dispID] = fn
	return fn, true
}

// InstallConstLate adds a slot holding value under name after linking and
// returns its id.
func (o *ScriptObject) InstallConstLate(name QName, value Value, class *ClassObject) uint32 {
	slotID := o.VTable().InstallConstTraitLate(name, value, class)

	data, release := o.cell.Write()
	defer release()
	if int(slotID) >= len(data.slots) {
		grown := make([]Value, slotID+1)
		copy(grown, data.slots)
		data.slots = grown
	}
	data.slots[slotID] = value
	return slotID
}

// GetProperty reads name through the vtable: slots directly, methods as
// bound functions, getters by calling them.
func (o *ScriptObject) GetProperty(act *Activation, name *Multiname) (Value, error) {
	prop, ok := o.VTable().GetTrait(name)
	if !ok {
		return Undefined, fmt.Errorf("property %s not found on %s", name, o.describe())
	}
	switch prop.Kind() {
	case PropertySlot, PropertyConstSlot:
		id, _ := prop.SlotID()
		return o.Slot(id)
	case PropertyMethod:
		id, _ := prop.DispID()
		fn, ok := o.BoundMethod(act, id)
		if !ok {
			return Undefined, fmt.Errorf("invalid dispatch id %d", id)
		}
		return ObjectValue(fn), nil
	default:
		id, ok := prop.Getter()
		if !ok {
			return Undefined, fmt.Errorf("property %s is write-only", name)
		}
		return o.CallMethod(act, id, nil)
	}
}

// SetProperty writes name through the vtable: slots with coercion, setters
// by calling them. Constants and methods are read-only.
func (o *ScriptObject) SetProperty(act *Activation, name *Multiname, value Value) error {
	prop, ok := o.VTable().GetTrait(name)
	if !ok {
		return fmt.Errorf("property %s not found on %s", name, o.describe())
	}
	switch prop.Kind() {
	case PropertySlot:
		id, _ := prop.SlotID()
		return o.SetSlot(act, id, value)
	case PropertyVirtual:
		id, ok := prop.Setter()
		if !ok {
			return fmt.Errorf("property %s is read-only", name)
		}
		_, err := o.CallMethod(act, id, []Value{value})
		return err
	default:
		return fmt.Errorf("property %s is read-only", name)
	}
}

// CallMethod invokes the method at dispID with o as this.
func (o *ScriptObject) CallMethod(act *Activation, dispID uint32, args []Value) (Value, error) {
	entry, ok := o.VTable().GetFullMethod(dispID)
	if !ok {
		return Undefined, fmt.Errorf("invalid dispatch id %d", dispID)
	}
	return act.CallMethod(entry.Method, entry.Scope, ObjectValue(o), args, entry.Class)
}

func (o *ScriptObject) describe() string {
	if class := o.InstanceOf(); class != nil {
		return class.Class().Name().ToQualifiedName()
	}
	return "object"
}

// ---------------------------------------------------------------------------
// FunctionObject
// ---------------------------------------------------------------------------

// FunctionObject is a callable value: a method with its captured scope and,
// for bound methods, a fixed receiver.
type FunctionObject struct {
	class      *ClassObject
	vtable     *VTable
	method     *Method
	scope      ScopeChain
	receiver   Object
	boundClass *ClassObject
}

// NewFunctionFromMethod creates a function calling method. A non-nil
// receiver is always used as this.
func NewFunctionFromMethod(act *Activation, method *Method, scope ScopeChain, receiver Object, boundClass *ClassObject) *FunctionObject {
	fn := &FunctionObject{
		class:      act.Avm().Classes().Function,
		method:     method,
		scope:      scope,
		receiver:   receiver,
		boundClass: boundClass,
	}
	if fn.class != nil {
		fn.vtable = fn.class.InstanceVTable()
	} else {
		fn.vtable = NewEmptyVTable()
	}
	return fn
}

// NewFunction creates an unbound function closing over scope.
func NewFunction(act *Activation, method *Method, scope ScopeChain) *FunctionObject {
	return NewFunctionFromMethod(act, method, scope, nil, nil)
}

// VTable returns the Function instance vtable.
func (f *FunctionObject) VTable() *VTable { return f.vtable }

// InstanceOf returns the Function class.
func (f *FunctionObject) InstanceOf() *ClassObject { return f.class }

// Method returns the wrapped method.
func (f *FunctionObject) Method() *Method { return f.method }

// Scope returns the captured scope.
func (f *FunctionObject) Scope() ScopeChain { return f.scope }

// Receiver returns the bound receiver, or nil.
func (f *FunctionObject) Receiver() Object { return f.receiver }

// BoundClass returns the class the method was defined in, or nil.
func (f *FunctionObject) BoundClass() *ClassObject { return f.boundClass }

// Call invokes the function. A bound receiver overrides this.
func (f *FunctionObject) Call(act *Activation, this Value, args []Value) (Value, error) {
	if f.receiver != nil {
		this = ObjectValue(f.receiver)
	}
	return act.CallMethod(f.method, f.scope, this, args, f.boundClass)
}
