package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Property
// ---------------------------------------------------------------------------

// PropertyKind tags a resolved Property.
type PropertyKind uint8

const (
	PropertySlot PropertyKind = iota
	PropertyConstSlot
	PropertyMethod
	PropertyVirtual
)

// Property is the resolved form of a trait in a VTable: a slot, a constant
// slot, a method dispatch id, or a virtual property with optional getter and
// setter dispatch ids.
type Property struct {
	kind   PropertyKind
	id     uint32
	get    uint32
	set    uint32
	hasGet bool
	hasSet bool
}

// NewSlotProperty returns a writable slot property.
func NewSlotProperty(slotID uint32) Property {
	return Property{kind: PropertySlot, id: slotID}
}

// NewConstSlotProperty returns a read-only slot property.
func NewConstSlotProperty(slotID uint32) Property {
	return Property{kind: PropertyConstSlot, id: slotID}
}

// NewMethodProperty returns a method property.
func NewMethodProperty(dispID uint32) Property {
	return Property{kind: PropertyMethod, id: dispID}
}

// NewGetterProperty returns a virtual property with only a getter.
func NewGetterProperty(dispID uint32) Property {
	return Property{kind: PropertyVirtual, get: dispID, hasGet: true}
}

// NewSetterProperty returns a virtual property with only a setter.
func NewSetterProperty(dispID uint32) Property {
	return Property{kind: PropertyVirtual, set: dispID, hasSet: true}
}

// Kind returns the property kind.
func (p Property) Kind() PropertyKind { return p.kind }

// SlotID returns the slot id of a slot or const slot property.
func (p Property) SlotID() (uint32, bool) {
	if p.kind == PropertySlot || p.kind == PropertyConstSlot {
		return p.id, true
	}
	return 0, false
}

// DispID returns the dispatch id of a method property.
func (p Property) DispID() (uint32, bool) {
	if p.kind == PropertyMethod {
		return p.id, true
	}
	return 0, false
}

// Getter returns the getter dispatch id of a virtual property.
func (p Property) Getter() (uint32, bool) {
	return p.get, p.kind == PropertyVirtual && p.hasGet
}

// Setter returns the setter dispatch id of a virtual property.
func (p Property) Setter() (uint32, bool) {
	return p.set, p.kind == PropertyVirtual && p.hasSet
}

// IsConst reports whether the property is a read-only slot.
func (p Property) IsConst() bool { return p.kind == PropertyConstSlot }

func (p Property) withGetter(dispID uint32) Property {
	p.get, p.hasGet = dispID, true
	return p
}

func (p Property) withSetter(dispID uint32) Property {
	p.set, p.hasSet = dispID, true
	return p
}

func (p Property) String() string {
	switch p.kind {
	case PropertySlot:
		return fmt.Sprintf("slot %d", p.id)
	case PropertyConstSlot:
		return fmt.Sprintf("const %d", p.id)
	case PropertyMethod:
		return fmt.Sprintf("method %d", p.id)
	default:
		s := "virtual"
		if p.hasGet {
			s += fmt.Sprintf(" get %d", p.get)
		}
		if p.hasSet {
			s += fmt.Sprintf(" set %d", p.set)
		}
		return s
	}
}

// ---------------------------------------------------------------------------
// PropertyClass
// ---------------------------------------------------------------------------

type propertyClassKind uint8

const (
	propertyClassAny propertyClassKind = iota
	propertyClassObject
	propertyClassName
	propertyClassPrimitive
)

// PropertyClass is the declared type of a slot. A type given by name is
// resolved on first coercion and the resolution is remembered.
type PropertyClass struct {
	kind      propertyClassKind
	class     *ClassObject
	name      *Multiname
	unit      *TranslationUnit
	primitive ValueKind
}

// AnyPropertyClass accepts every value unchanged.
func AnyPropertyClass() PropertyClass {
	return PropertyClass{}
}

// ClassPropertyClass coerces to an already linked class. A nil class is
// treated as the any type.
func ClassPropertyClass(class *ClassObject) PropertyClass {
	if class == nil {
		return AnyPropertyClass()
	}
	return PropertyClass{kind: propertyClassObject, class: class}
}

// NamedPropertyClass coerces to the class called name, resolved in unit's
// domain on first use.
func NamedPropertyClass(name *Multiname, unit *TranslationUnit) PropertyClass {
	if name == nil || name.IsAny() {
		return AnyPropertyClass()
	}
	return PropertyClass{kind: propertyClassName, name: name, unit: unit}
}

// Coerce converts value to this class. The boolean reports whether the
// receiver changed because a name was resolved; callers that hold a copy
// should store it back.
func (pc *PropertyClass) Coerce(act *Activation, value Value) (Value, bool, error) {
	switch pc.kind {
	case propertyClassAny:
		return value, false, nil
	case propertyClassPrimitive:
		return coercePrimitive(pc.primitive, value), false, nil
	case propertyClassObject:
		v, err := coerceToClass(act, value, pc.class)
		return v, false, err
	}

	if prim, ok := primitiveForName(pc.name); ok {
		*pc = PropertyClass{kind: propertyClassPrimitive, primitive: prim}
		return coercePrimitive(prim, value), true, nil
	}

	domain := act.Domain()
	if pc.unit != nil {
		domain = pc.unit.Domain()
	}
	class, err := resolveClassObject(act, domain, pc.name)
	if err != nil {
		return Undefined, false, err
	}
	*pc = ClassPropertyClass(class)
	v, err := coerceToClass(act, value, class)
	return v, true, err
}

// Name returns the declared type name.
func (pc PropertyClass) Name() *Multiname {
	switch pc.kind {
	case propertyClassObject:
		return MultinameFromQName(pc.class.Class().Name())
	case propertyClassName:
		return pc.name
	case propertyClassPrimitive:
		return NewMultiname(PackageNamespace(""), pc.primitive.String())
	default:
		return AnyMultiname()
	}
}

func primitiveForName(name *Multiname) (ValueKind, bool) {
	local, ok := name.LocalName()
	if !ok || len(name.Params()) > 0 || !name.ContainsPublicNamespace() {
		return 0, false
	}
	switch local {
	case "int":
		return KindInt, true
	case "uint":
		return KindUint, true
	case "Number":
		return KindNumber, true
	case "Boolean":
		return KindBool, true
	case "String":
		return KindString, true
	}
	return 0, false
}

func coercePrimitive(kind ValueKind, value Value) Value {
	switch kind {
	case KindInt:
		return IntValue(value.ToInt32())
	case KindUint:
		return UintValue(value.ToUint32())
	case KindNumber:
		return NumberValue(value.ToNumber())
	case KindBool:
		return BoolValue(value.ToBoolean())
	case KindString:
		if value.IsNullish() {
			return Null
		}
		return StringValue(value.ToString())
	}
	return value
}

// defaultValueForType is the value a slot of the named type starts with when
// no default is declared.
func defaultValueForType(name *Multiname) Value {
	if name == nil || name.IsAny() {
		return Undefined
	}
	prim, ok := primitiveForName(name)
	if !ok {
		return Null
	}
	switch prim {
	case KindInt:
		return IntValue(0)
	case KindUint:
		return UintValue(0)
	case KindNumber:
		return NumberValue(math.NaN())
	case KindBool:
		return False
	default:
		return Null
	}
}

func coerceToClass(act *Activation, value Value, class *ClassObject) (Value, error) {
	if value.IsNullish() {
		return Null, nil
	}
	if class == act.Avm().Classes().Object {
		return value, nil
	}
	if obj := value.AsObject(); obj != nil {
		if inst := obj.InstanceOf(); inst != nil && inst.HasClassInChain(class) {
			return value, nil
		}
	}
	return Undefined, typeErrorf("Type Coercion failed: cannot convert %s to %s.",
		value.ToString(), class.Class().Name().ToQualifiedName())
}

// resolveClassObject finds the linked class object named by name. Generic
// applications resolve their base and apply each parameter.
func resolveClassObject(act *Activation, domain *Domain, name *Multiname) (*ClassObject, error) {
	def, ok := domain.GetClass(name)
	if !ok {
		return nil, typeErrorf("Could not resolve class %s for coercion", name)
	}
	class, ok := act.Avm().ClassObjectFor(def)
	if !ok {
		return nil, typeErrorf("Class %s has not been linked", name)
	}
	for _, param := range name.Params() {
		var paramClass *ClassObject
		if !param.IsAny() {
			var err error
			if paramClass, err = resolveClassObject(act, domain, param); err != nil {
				return nil, err
			}
		}
		applied, err := class.ApplyType(act, paramClass)
		if err != nil {
			return nil, err
		}
		class = applied
	}
	return class, nil
}
