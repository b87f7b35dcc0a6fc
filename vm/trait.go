package vm

import "github.com/chazu/clasp/abc"

// TraitAttributes are modifiers declared on a trait.
type TraitAttributes uint8

const (
	TraitFinal TraitAttributes = 1 << iota
	TraitOverride
	TraitMetadata
)

// TraitKind tags a Trait.
type TraitKind uint8

const (
	TraitSlot TraitKind = iota
	TraitConst
	TraitMethod
	TraitGetter
	TraitSetter
	TraitClass
	TraitFunction
)

func (k TraitKind) String() string {
	switch k {
	case TraitSlot:
		return "slot"
	case TraitConst:
		return "const"
	case TraitMethod:
		return "method"
	case TraitGetter:
		return "getter"
	case TraitSetter:
		return "setter"
	case TraitClass:
		return "class"
	case TraitFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Trait is one declared member of a class, script or activation. Which
// payload fields apply depends on Kind:
//   - Slot, Const: SlotID, TypeName, DefaultValue, Unit
//   - Method, Getter, Setter: Method
//   - Class: SlotID, Class
//   - Function: SlotID, Method
//
// A slot id of 0 asks the vtable to assign one.
type Trait struct {
	name       QName
	attributes TraitAttributes
	kind       TraitKind

	slotID       uint32
	typeName     *Multiname
	defaultValue Value
	unit         *TranslationUnit
	method       *Method
	class        *Class
}

// ---------------------------------------------------------------------------
// Native constructors
// ---------------------------------------------------------------------------

// TraitFromSlot declares a variable. A nil default uses the type's default.
func TraitFromSlot(name QName, typeName *Multiname, defaultValue *Value) Trait {
	return Trait{name: name, kind: TraitSlot, typeName: typeName, defaultValue: slotDefault(typeName, defaultValue)}
}

// TraitFromConst declares a constant. A nil default uses the type's default.
func TraitFromConst(name QName, typeName *Multiname, defaultValue *Value) Trait {
	return Trait{name: name, kind: TraitConst, typeName: typeName, defaultValue: slotDefault(typeName, defaultValue)}
}

// TraitFromMethod declares a method.
func TraitFromMethod(name QName, method *Method) Trait {
	return Trait{name: name, kind: TraitMethod, method: method}
}

// TraitFromGetter declares a getter.
func TraitFromGetter(name QName, method *Method) Trait {
	return Trait{name: name, kind: TraitGetter, method: method}
}

// TraitFromSetter declares a setter.
func TraitFromSetter(name QName, method *Method) Trait {
	return Trait{name: name, kind: TraitSetter, method: method}
}

// TraitFromClass declares a nested class binding.
func TraitFromClass(name QName, class *Class) Trait {
	return Trait{name: name, kind: TraitClass, class: class}
}

// TraitFromFunction declares a function binding.
func TraitFromFunction(name QName, function *Method) Trait {
	return Trait{name: name, kind: TraitFunction, method: function}
}

func slotDefault(typeName *Multiname, v *Value) Value {
	if v != nil {
		return *v
	}
	return defaultValueForType(typeName)
}

// WithSlotID returns t declaring the given slot id.
func (t Trait) WithSlotID(slotID uint32) Trait {
	t.slotID = slotID
	return t
}

// WithAttributes returns t with attrs added.
func (t Trait) WithAttributes(attrs TraitAttributes) Trait {
	t.attributes |= attrs
	return t
}

// ---------------------------------------------------------------------------
// Archive loading
// ---------------------------------------------------------------------------

// TraitFromArchive resolves a raw archive trait. Methods and classes it
// references are loaded through unit, so they are shared with every other
// reference to the same index.
func TraitFromArchive(unit *TranslationUnit, raw *abc.Trait, act *Activation) (Trait, error) {
	mn, err := unit.PoolMultinameStatic(raw.Name)
	if err != nil {
		return Trait{}, err
	}
	name, ok := mn.ToQName()
	if !ok {
		return Trait{}, loadErrorf("Trait name %s must be a QName", mn)
	}

	var attrs TraitAttributes
	if raw.IsFinal {
		attrs |= TraitFinal
	}
	if raw.IsOverride {
		attrs |= TraitOverride
	}
	if len(raw.Metadata) > 0 {
		attrs |= TraitMetadata
	}

	t := Trait{name: name, attributes: attrs, slotID: raw.SlotID}

	switch raw.Kind {
	case abc.TraitSlot, abc.TraitConst:
		t.kind = TraitSlot
		if raw.Kind == abc.TraitConst {
			t.kind = TraitConst
		}
		if t.typeName, err = unit.PoolMultinameStaticAny(raw.TypeName); err != nil {
			return Trait{}, err
		}
		if raw.Value != nil {
			if t.defaultValue, err = unit.DefaultValue(raw.Value); err != nil {
				return Trait{}, err
			}
		} else {
			t.defaultValue = defaultValueForType(t.typeName)
		}
		t.unit = unit

	case abc.TraitMethod, abc.TraitGetter, abc.TraitSetter:
		switch raw.Kind {
		case abc.TraitMethod:
			t.kind = TraitMethod
		case abc.TraitGetter:
			t.kind = TraitGetter
		default:
			t.kind = TraitSetter
		}
		t.slotID = 0
		if t.method, err = unit.LoadMethod(raw.Method, false, act); err != nil {
			return Trait{}, err
		}

	case abc.TraitClass:
		t.kind = TraitClass
		if t.class, err = unit.LoadClass(raw.Class, act); err != nil {
			return Trait{}, err
		}

	case abc.TraitFunction:
		t.kind = TraitFunction
		if t.method, err = unit.LoadMethod(raw.Function, true, act); err != nil {
			return Trait{}, err
		}

	default:
		return Trait{}, loadErrorf("Unknown trait kind %d for %s", raw.Kind, name)
	}

	return t, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Name returns the trait name.
func (t *Trait) Name() QName { return t.name }

// Kind returns the trait kind.
func (t *Trait) Kind() TraitKind { return t.kind }

// Attributes returns the declared modifiers.
func (t *Trait) Attributes() TraitAttributes { return t.attributes }

// IsFinal reports whether subclasses may not override the trait.
func (t *Trait) IsFinal() bool { return t.attributes&TraitFinal != 0 }

// IsOverride reports whether the trait is declared to override a supertrait.
func (t *Trait) IsOverride() bool { return t.attributes&TraitOverride != 0 }

// SlotID returns the declared slot id (0 for auto-assign).
func (t *Trait) SlotID() uint32 { return t.slotID }

// TypeName returns the declared type of a slot or const.
func (t *Trait) TypeName() *Multiname {
	if t.typeName == nil {
		return AnyMultiname()
	}
	return t.typeName
}

// DefaultValue returns the initial value of a slot or const.
func (t *Trait) DefaultValue() Value { return t.defaultValue }

// Unit returns the unit a slot or const type name resolves in.
func (t *Trait) Unit() *TranslationUnit { return t.unit }

// Method returns the method of a method, getter, setter or function trait.
func (t *Trait) Method() *Method { return t.method }

// Class returns the class of a class trait.
func (t *Trait) Class() *Class { return t.class }

func (t *Trait) String() string {
	return t.kind.String() + " " + t.name.ToQualifiedName()
}
