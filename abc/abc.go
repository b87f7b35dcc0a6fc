// Package abc defines the bytecode archive format consumed by the clasp VM.
//
// An archive is a set of dense, index-addressed tables: a constant pool
// (integers, doubles, strings, namespaces, namespace sets, multinames) plus
// method signatures, method bodies, instance/class descriptor pairs and
// scripts. Tables are referenced by integer index. Constant-pool tables are
// 1-based with index 0 reserved (its meaning depends on the consumer); all
// other tables are 0-based.
//
// Archives are immutable once built. They travel as CBOR (see wire.go) and
// are assembled programmatically with a Builder.
package abc

// ---------------------------------------------------------------------------
// File
// ---------------------------------------------------------------------------

// File is one complete bytecode archive.
type File struct {
	MajorVersion uint16 `cbor:"1,keyasint"`
	MinorVersion uint16 `cbor:"2,keyasint"`

	ConstantPool ConstantPool `cbor:"3,keyasint"`

	Methods      []Method     `cbor:"4,keyasint,omitempty"`
	Instances    []Instance   `cbor:"5,keyasint,omitempty"`
	Classes      []Class      `cbor:"6,keyasint,omitempty"`
	Scripts      []Script     `cbor:"7,keyasint,omitempty"`
	MethodBodies []MethodBody `cbor:"8,keyasint,omitempty"`
}

// Current archive version written by the Builder.
const (
	MajorVersion uint16 = 46
	MinorVersion uint16 = 16
)

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// ConstantPool holds the shared constants of an archive. Every table is
// addressed 1-based: entry i lives at slice position i-1.
type ConstantPool struct {
	Ints          []int32     `cbor:"1,keyasint,omitempty"`
	Uints         []uint32    `cbor:"2,keyasint,omitempty"`
	Doubles       []float64   `cbor:"3,keyasint,omitempty"`
	Strings       []string    `cbor:"4,keyasint,omitempty"`
	Namespaces    []Namespace `cbor:"5,keyasint,omitempty"`
	NamespaceSets [][]uint32  `cbor:"6,keyasint,omitempty"`
	Multinames    []Multiname `cbor:"7,keyasint,omitempty"`
}

// NamespaceKind distinguishes namespace flavours.
type NamespaceKind uint8

const (
	NamespacePublic NamespaceKind = iota
	NamespacePackageInternal
	NamespaceProtected
	NamespaceExplicit
	NamespaceStaticProtected
	NamespacePrivate
)

func (k NamespaceKind) String() string {
	switch k {
	case NamespacePublic:
		return "public"
	case NamespacePackageInternal:
		return "internal"
	case NamespaceProtected:
		return "protected"
	case NamespaceExplicit:
		return "explicit"
	case NamespaceStaticProtected:
		return "static protected"
	case NamespacePrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Namespace is a pool namespace: a kind plus a string-pool index for its URI.
type Namespace struct {
	Kind NamespaceKind `cbor:"1,keyasint"`
	Name uint32        `cbor:"2,keyasint,omitempty"`
}

// MultinameKind selects which fields of a Multiname are meaningful.
type MultinameKind uint8

const (
	// QName: one namespace and a name.
	MultinameQName MultinameKind = iota
	MultinameQNameA
	// RTQName: namespace supplied at runtime.
	MultinameRTQName
	MultinameRTQNameA
	// RTQNameL: namespace and name supplied at runtime.
	MultinameRTQNameL
	MultinameRTQNameLA
	// Multiname: a namespace set and a name.
	MultinameMultiname
	MultinameMultinameA
	// MultinameL: namespace set, name supplied at runtime.
	MultinameMultinameL
	MultinameMultinameLA
	// TypeName: a generic base type applied to parameters.
	MultinameTypeName
)

// IsAttribute reports whether the kind names an attribute (the "A" variants).
func (k MultinameKind) IsAttribute() bool {
	switch k {
	case MultinameQNameA, MultinameRTQNameA, MultinameRTQNameLA,
		MultinameMultinameA, MultinameMultinameLA:
		return true
	}
	return false
}

// Multiname is a pool multiname. Namespace, NamespaceSet and Name are
// pool indices; BaseType and Parameters are multiname indices used by
// MultinameTypeName only.
type Multiname struct {
	Kind         MultinameKind `cbor:"1,keyasint"`
	Namespace    uint32        `cbor:"2,keyasint,omitempty"`
	NamespaceSet uint32        `cbor:"3,keyasint,omitempty"`
	Name         uint32        `cbor:"4,keyasint,omitempty"`
	BaseType     uint32        `cbor:"5,keyasint,omitempty"`
	Parameters   []uint32      `cbor:"6,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Default values
// ---------------------------------------------------------------------------

// ConstKind tags a DefaultValue.
type ConstKind uint8

const (
	ConstUndefined ConstKind = iota
	ConstInt
	ConstUint
	ConstDouble
	ConstString
	ConstTrue
	ConstFalse
	ConstNull
	ConstNamespace
)

// DefaultValue is a literal default for an optional parameter or slot.
// Index points into the pool table selected by Kind (ignored for the
// value-less kinds).
type DefaultValue struct {
	Kind  ConstKind `cbor:"1,keyasint"`
	Index uint32    `cbor:"2,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// MethodFlags are the declared properties of a method signature.
type MethodFlags uint8

const (
	MethodNeedArguments MethodFlags = 1 << iota
	MethodNeedActivation
	MethodNeedRest
	MethodHasOptional
	MethodSetDxns
	MethodHasParamNames
)

// Method is a method signature. Its body, if any, lives in MethodBodies.
type Method struct {
	Name       uint32        `cbor:"1,keyasint,omitempty"`
	Params     []MethodParam `cbor:"2,keyasint,omitempty"`
	ReturnType uint32        `cbor:"3,keyasint,omitempty"`
	Flags      MethodFlags   `cbor:"4,keyasint,omitempty"`
}

// IsVariadic reports whether the method accepts a rest argument.
func (m *Method) IsVariadic() bool {
	return m.Flags&(MethodNeedRest|MethodNeedArguments) != 0
}

// MethodParam is one declared parameter. Kind is a multiname index (0 means
// the any type); Name is a string index (0 when names were stripped).
type MethodParam struct {
	Kind    uint32        `cbor:"1,keyasint,omitempty"`
	Name    uint32        `cbor:"2,keyasint,omitempty"`
	Default *DefaultValue `cbor:"3,keyasint,omitempty"`
}

// MethodBody is the executable part of a method.
type MethodBody struct {
	Method         uint32      `cbor:"1,keyasint"`
	MaxStack       uint32      `cbor:"2,keyasint,omitempty"`
	NumLocals      uint32      `cbor:"3,keyasint,omitempty"`
	InitScopeDepth uint32      `cbor:"4,keyasint,omitempty"`
	MaxScopeDepth  uint32      `cbor:"5,keyasint,omitempty"`
	Code           []byte      `cbor:"6,keyasint,omitempty"`
	Exceptions     []Exception `cbor:"7,keyasint,omitempty"`
	Traits         []Trait     `cbor:"8,keyasint,omitempty"`
}

// Exception is one entry of a method body's exception table.
type Exception struct {
	From     uint32 `cbor:"1,keyasint"`
	To       uint32 `cbor:"2,keyasint"`
	Target   uint32 `cbor:"3,keyasint"`
	TypeName uint32 `cbor:"4,keyasint,omitempty"`
	VarName  uint32 `cbor:"5,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Classes and scripts
// ---------------------------------------------------------------------------

// Instance is the instance half of a class descriptor. Instances[i] and
// Classes[i] describe the same class.
type Instance struct {
	Name               uint32   `cbor:"1,keyasint"`
	SuperName          uint32   `cbor:"2,keyasint,omitempty"`
	IsSealed           bool     `cbor:"3,keyasint,omitempty"`
	IsFinal            bool     `cbor:"4,keyasint,omitempty"`
	IsInterface        bool     `cbor:"5,keyasint,omitempty"`
	ProtectedNamespace *uint32  `cbor:"6,keyasint,omitempty"`
	Interfaces         []uint32 `cbor:"7,keyasint,omitempty"`
	InitMethod         uint32   `cbor:"8,keyasint"`
	Traits             []Trait  `cbor:"9,keyasint,omitempty"`
}

// Class is the static half of a class descriptor.
type Class struct {
	InitMethod uint32  `cbor:"1,keyasint"`
	Traits     []Trait `cbor:"2,keyasint,omitempty"`
}

// Script is a top-level code unit.
type Script struct {
	InitMethod uint32  `cbor:"1,keyasint"`
	Traits     []Trait `cbor:"2,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Traits
// ---------------------------------------------------------------------------

// TraitKind tags a Trait.
type TraitKind uint8

const (
	TraitSlot TraitKind = iota
	TraitMethod
	TraitGetter
	TraitSetter
	TraitClass
	TraitFunction
	TraitConst
)

func (k TraitKind) String() string {
	switch k {
	case TraitSlot:
		return "slot"
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
	case TraitConst:
		return "const"
	default:
		return "unknown"
	}
}

// Trait is one declared member of a class, script or activation.
//
// Which fields apply depends on Kind:
//   - Slot, Const: SlotID, TypeName, Value
//   - Method, Getter, Setter: DispID, Method
//   - Class: SlotID, Class
//   - Function: SlotID, Function
type Trait struct {
	Name       uint32        `cbor:"1,keyasint"`
	Kind       TraitKind     `cbor:"2,keyasint"`
	IsFinal    bool          `cbor:"3,keyasint,omitempty"`
	IsOverride bool          `cbor:"4,keyasint,omitempty"`
	SlotID     uint32        `cbor:"5,keyasint,omitempty"`
	TypeName   uint32        `cbor:"6,keyasint,omitempty"`
	Value      *DefaultValue `cbor:"7,keyasint,omitempty"`
	DispID     uint32        `cbor:"8,keyasint,omitempty"`
	Method     uint32        `cbor:"9,keyasint,omitempty"`
	Class      uint32        `cbor:"10,keyasint,omitempty"`
	Function   uint32        `cbor:"11,keyasint,omitempty"`
	Metadata   []uint32      `cbor:"12,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

// BodyFor returns the body of the method at methodIndex, or nil if the
// method is abstract or native.
func (f *File) BodyFor(methodIndex uint32) *MethodBody {
	for i := range f.MethodBodies {
		if f.MethodBodies[i].Method == methodIndex {
			return &f.MethodBodies[i]
		}
	}
	return nil
}
