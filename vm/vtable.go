package vm

import "fmt"

// ClassBoundMethod is one entry of a method table: a method together with
// the class that defined it and the scope it closes over.
type ClassBoundMethod struct {
	Class  *ClassObject
	Scope  ScopeChain
	Method *Method
}

// VTable is the linked layout of an object: resolved trait names, the
// declared class of every slot, the method table indexed by dispatch id,
// and the initial slot values.
//
// Dispatch ids are dense. Slot ids may have gaps; the length of the default
// slot list bounds the valid range, and a nil default marks an unused id.
type VTable struct {
	cell *Cell[vtableData]
}

type vtableData struct {
	definingClass *ClassObject
	scope         ScopeChain
	hasScope      bool

	protectedNS    Namespace
	hasProtectedNS bool

	resolvedTraits *PropertyMap[Property]
	slotClasses    []PropertyClass
	methodTable    []ClassBoundMethod
	defaultSlots   []*Value
}

func (d *vtableData) clone() vtableData {
	c := *d
	c.resolvedTraits = d.resolvedTraits.Clone()
	c.slotClasses = append([]PropertyClass(nil), d.slotClasses...)
	c.methodTable = append([]ClassBoundMethod(nil), d.methodTable...)
	c.defaultSlots = append([]*Value(nil), d.defaultSlots...)
	return c
}

// NewEmptyVTable creates a vtable with no traits.
func NewEmptyVTable() *VTable {
	return &VTable{cell: NewCell(vtableData{resolvedTraits: NewPropertyMap[Property]()})}
}

// NewCatchVTable creates the vtable of a catch scope: a single untyped
// variable at slot 1. Slot 0 is left unused so that slot ids index the slot
// list directly.
func NewCatchVTable(name QName) *VTable {
	traits := NewPropertyMap[Property]()
	traits.Insert(name, NewSlotProperty(1))
	return &VTable{cell: NewCell(vtableData{
		resolvedTraits: traits,
		slotClasses:    []PropertyClass{AnyPropertyClass(), AnyPropertyClass()},
		defaultSlots:   []*Value{nil, nil},
	})}
}

// Duplicate returns an independent copy of vt.
func (vt *VTable) Duplicate() *VTable {
	data, release := vt.cell.Read()
	defer release()
	return &VTable{cell: NewCell(data.clone())}
}

// ---------------------------------------------------------------------------
// Linking
// ---------------------------------------------------------------------------

// InitVTable links traits into vt.
//
// With a superclass vtable, its tables are copied first and every trait in
// the superclass's protected namespace is also made visible under this
// class's protected namespace. Without one, the existing contents of vt are
// kept and extended.
//
// Methods, getters and setters that redefine an inherited name reuse its
// dispatch id. Slot-like traits (slot, const, class, function) keep their
// declared slot id unless it is 0 or already occupied, in which case the
// next free id at the end of the slot list is assigned.
func (vt *VTable) InitVTable(definingClass *ClassObject, traits []Trait, scope ScopeChain, superclass *VTable, act *Activation) error {
	var protectedNS Namespace
	var hasProtectedNS bool
	if definingClass != nil {
		protectedNS, hasProtectedNS = definingClass.Class().ProtectedNamespace()
	}

	var inherited *vtableData
	if superclass != nil {
		sd, release := superclass.cell.Read()
		c := sd.clone()
		release()
		inherited = &c
	}

	data, release := vt.cell.Write()
	defer release()

	data.definingClass = definingClass
	data.scope, data.hasScope = scope, true
	data.protectedNS, data.hasProtectedNS = protectedNS, hasProtectedNS

	if inherited != nil {
		superProtectedNS, superHasProtected := inherited.protectedNS, inherited.hasProtectedNS
		data.resolvedTraits = inherited.resolvedTraits
		data.slotClasses = inherited.slotClasses
		data.methodTable = inherited.methodTable
		data.defaultSlots = inherited.defaultSlots

		if hasProtectedNS && superHasProtected {
			var remapped []QName
			for name := range data.resolvedTraits.All() {
				if name.ns == superProtectedNS {
					remapped = append(remapped, name)
				}
			}
			for _, name := range remapped {
				prop, _ := data.resolvedTraits.Get(name)
				data.resolvedTraits.Insert(NewQName(protectedNS, name.local), prop)
			}
		}
	}

	logger := act.Logger()

	for i := range traits {
		t := &traits[i]
		switch t.kind {
		case TraitMethod:
			entry := ClassBoundMethod{Class: definingClass, Scope: scope, Method: t.method}
			if prop, ok := data.resolvedTraits.Get(t.name); ok {
				if dispID, ok := prop.DispID(); ok {
					data.methodTable[dispID] = entry
					continue
				}
			}
			dispID := uint32(len(data.methodTable))
			data.methodTable = append(data.methodTable, entry)
			data.resolvedTraits.Insert(t.name, NewMethodProperty(dispID))

		case TraitGetter, TraitSetter:
			entry := ClassBoundMethod{Class: definingClass, Scope: scope, Method: t.method}
			prop, ok := data.resolvedTraits.Get(t.name)
			if ok && prop.Kind() == PropertyVirtual {
				existing, has := prop.Getter()
				if t.kind == TraitSetter {
					existing, has = prop.Setter()
				}
				if has {
					data.methodTable[existing] = entry
					continue
				}
				dispID := uint32(len(data.methodTable))
				data.methodTable = append(data.methodTable, entry)
				if t.kind == TraitGetter {
					prop = prop.withGetter(dispID)
				} else {
					prop = prop.withSetter(dispID)
				}
				data.resolvedTraits.Insert(t.name, prop)
				continue
			}
			dispID := uint32(len(data.methodTable))
			data.methodTable = append(data.methodTable, entry)
			if t.kind == TraitGetter {
				data.resolvedTraits.Insert(t.name, NewGetterProperty(dispID))
			} else {
				data.resolvedTraits.Insert(t.name, NewSetterProperty(dispID))
			}

		case TraitSlot, TraitConst, TraitFunction, TraitClass:
			value := traitDefaultValue(act, scope, t)

			var slotID uint32
			switch declared := t.slotID; {
			case declared == 0:
				slotID = data.pushSlot(value)
			case int(declared) < len(data.defaultSlots) && data.defaultSlots[declared] != nil:
				slotID = data.pushSlot(value)
				logger.Warningf("slot %d of %s is taken, reassigned to %d", declared, t.name.ToQualifiedName(), slotID)
			case int(declared) >= len(data.defaultSlots)+len(traits):
				slotID = data.pushSlot(value)
				logger.Warningf("slot %d of %s is out of range, reassigned to %d", declared, t.name.ToQualifiedName(), slotID)
			default:
				data.growSlots(int(declared) + 1)
				data.defaultSlots[declared] = &value
				slotID = declared
			}

			if int(slotID) >= len(data.slotClasses) {
				grown := make([]PropertyClass, slotID+1)
				copy(grown, data.slotClasses)
				data.slotClasses = grown
			}

			var prop Property
			var class PropertyClass
			switch t.kind {
			case TraitSlot:
				prop, class = NewSlotProperty(slotID), NamedPropertyClass(t.TypeName(), t.unit)
			case TraitConst:
				prop, class = NewConstSlotProperty(slotID), NamedPropertyClass(t.TypeName(), t.unit)
			case TraitFunction:
				prop, class = NewSlotProperty(slotID), ClassPropertyClass(act.Avm().Classes().Function)
			default:
				prop, class = NewConstSlotProperty(slotID), ClassPropertyClass(act.Avm().Classes().Class)
			}
			data.resolvedTraits.Insert(t.name, prop)
			data.slotClasses[slotID] = class
		}
	}

	return nil
}

func (d *vtableData) pushSlot(value Value) uint32 {
	d.defaultSlots = append(d.defaultSlots, &value)
	return uint32(len(d.defaultSlots) - 1)
}

func (d *vtableData) growSlots(n int) {
	if n <= len(d.defaultSlots) {
		return
	}
	grown := make([]*Value, n)
	copy(grown, d.defaultSlots)
	d.defaultSlots = grown
}

func traitDefaultValue(act *Activation, scope ScopeChain, t *Trait) Value {
	switch t.kind {
	case TraitSlot, TraitConst:
		return t.defaultValue
	case TraitFunction:
		return ObjectValue(NewFunction(act, t.method, scope))
	default:
		return Undefined
	}
}

// ---------------------------------------------------------------------------
// Late installation
// ---------------------------------------------------------------------------

// InstallConstTraitLate appends a slot holding value under name and returns
// its id. It is used to install definitions on global objects after their
// vtable was linked.
func (vt *VTable) InstallConstTraitLate(name QName, value Value, class *ClassObject) uint32 {
	data, release := vt.cell.Write()
	defer release()

	slotID := data.pushSlot(value)
	data.resolvedTraits.Insert(name, NewSlotProperty(slotID))
	data.slotClasses = append(data.slotClasses, ClassPropertyClass(class))
	return slotID
}

// CopyPropertyForInterface makes the property resolved under publicName
// also visible as interfaceName. Nothing happens if publicName is unknown.
func (vt *VTable) CopyPropertyForInterface(publicName, interfaceName QName) {
	data, release := vt.cell.Write()
	defer release()

	if prop, ok := data.resolvedTraits.Get(publicName); ok {
		data.resolvedTraits.Insert(interfaceName, prop)
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// GetTrait resolves name. Attribute names never resolve to traits.
func (vt *VTable) GetTrait(name *Multiname) (Property, bool) {
	_, prop, ok := vt.GetTraitWithNS(name)
	return prop, ok
}

// GetTraitWithNS resolves name and reports the namespace it matched in.
func (vt *VTable) GetTraitWithNS(name *Multiname) (Namespace, Property, bool) {
	if name.IsAttribute() {
		return Namespace{}, Property{}, false
	}
	data, release := vt.cell.Read()
	defer release()
	return data.resolvedTraits.GetWithNsForMultiname(name)
}

// HasTrait reports whether name resolves.
func (vt *VTable) HasTrait(name *Multiname) bool {
	_, ok := vt.GetTrait(name)
	return ok
}

// GetMethod returns the method at dispID.
func (vt *VTable) GetMethod(dispID uint32) (*Method, bool) {
	entry, ok := vt.GetFullMethod(dispID)
	return entry.Method, ok
}

// GetFullMethod returns the method table entry at dispID.
func (vt *VTable) GetFullMethod(dispID uint32) (ClassBoundMethod, bool) {
	data, release := vt.cell.Read()
	defer release()
	if int(dispID) >= len(data.methodTable) {
		return ClassBoundMethod{}, false
	}
	return data.methodTable[dispID], true
}

// MakeBoundMethod creates a function object calling the method at dispID
// with receiver as this. Callers should cache the result per receiver and
// dispatch id; see ScriptObject.BoundMethod.
func (vt *VTable) MakeBoundMethod(act *Activation, receiver Object, dispID uint32) (*FunctionObject, bool) {
	entry, ok := vt.GetFullMethod(dispID)
	if !ok {
		return nil, false
	}
	return NewFunctionFromMethod(act, entry.Method, entry.Scope, receiver, entry.Class), true
}

// CoerceTraitValue coerces value to the declared class of slotID. Type
// names are resolved on first use and the result is remembered.
func (vt *VTable) CoerceTraitValue(slotID uint32, value Value, act *Activation) (Value, error) {
	data, release := vt.cell.Read()
	if int(slotID) >= len(data.slotClasses) {
		release()
		return Undefined, fmt.Errorf("%w: %d", ErrSlotOutOfBounds, slotID)
	}
	class := data.slotClasses[slotID]
	release()

	// Resolution may read this vtable, so no borrow is held across Coerce.
	v, changed, err := class.Coerce(act, value)
	if err != nil {
		return Undefined, err
	}
	if changed {
		data, release := vt.cell.Write()
		data.slotClasses[slotID] = class
		release()
	}
	return v, nil
}

// SlotClassName returns the declared type of slotID.
func (vt *VTable) SlotClassName(slotID uint32) (*Multiname, error) {
	data, release := vt.cell.Read()
	defer release()
	if int(slotID) >= len(data.slotClasses) {
		return nil, fmt.Errorf("invalid slot ID %d", slotID)
	}
	return data.slotClasses[slotID].Name(), nil
}

// DefaultSlots returns a snapshot of the initial slot values. Unused ids
// are nil.
func (vt *VTable) DefaultSlots() []*Value {
	data, release := vt.cell.Read()
	defer release()
	return append([]*Value(nil), data.defaultSlots...)
}

// ResolvedTraits returns a snapshot of the resolved trait map.
func (vt *VTable) ResolvedTraits() *PropertyMap[Property] {
	data, release := vt.cell.Read()
	defer release()
	return data.resolvedTraits.Clone()
}

// PublicProperty is a trait visible in the public namespace.
type PublicProperty struct {
	Name     string
	Property Property
}

// PublicProperties lists the traits in the public namespace, ordered by
// name.
func (vt *VTable) PublicProperties() []PublicProperty {
	data, release := vt.cell.Read()
	defer release()

	var props []PublicProperty
	for name, prop := range data.resolvedTraits.All() {
		if name.ns.IsPublic() {
			props = append(props, PublicProperty{Name: name.local, Property: prop})
		}
	}
	return props
}

// NumSlots returns the length of the slot list.
func (vt *VTable) NumSlots() int {
	data, release := vt.cell.Read()
	defer release()
	return len(data.defaultSlots)
}

// NumMethods returns the length of the method table.
func (vt *VTable) NumMethods() int {
	data, release := vt.cell.Read()
	defer release()
	return len(data.methodTable)
}

// DefiningClass returns the class object the vtable was linked for, or nil
// for special vtables.
func (vt *VTable) DefiningClass() *ClassObject {
	data, release := vt.cell.Read()
	defer release()
	return data.definingClass
}

// Scope returns the scope captured when linking.
func (vt *VTable) Scope() (ScopeChain, bool) {
	data, release := vt.cell.Read()
	defer release()
	return data.scope, data.hasScope
}

// ProtectedNamespace returns the defining class's protected namespace.
func (vt *VTable) ProtectedNamespace() (Namespace, bool) {
	data, release := vt.cell.Read()
	defer release()
	return data.protectedNS, data.hasProtectedNS
}
