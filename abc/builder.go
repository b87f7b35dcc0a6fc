package abc

import "math"

// ---------------------------------------------------------------------------
// Builder: assembles an archive, interning constant-pool entries
// ---------------------------------------------------------------------------

// Builder assembles a File. Constant-pool entries are interned, so asking
// for the same string, namespace or multiname twice yields the same index.
// Builders are not safe for concurrent use.
type Builder struct {
	file File

	stringIndex    map[string]uint32
	intIndex       map[int32]uint32
	uintIndex      map[uint32]uint32
	doubleIndex    map[uint64]uint32
	namespaceIndex map[Namespace]uint32
	nsSetIndex     map[string]uint32
	multinameIndex map[string]uint32
}

// NewBuilder creates an empty archive builder.
func NewBuilder() *Builder {
	return &Builder{
		file: File{
			MajorVersion: MajorVersion,
			MinorVersion: MinorVersion,
		},
		stringIndex:    make(map[string]uint32),
		intIndex:       make(map[int32]uint32),
		uintIndex:      make(map[uint32]uint32),
		doubleIndex:    make(map[uint64]uint32),
		namespaceIndex: make(map[Namespace]uint32),
		nsSetIndex:     make(map[string]uint32),
		multinameIndex: make(map[string]uint32),
	}
}

// File returns the archive assembled so far. The builder keeps ownership;
// callers that keep building should not mutate the result.
func (b *Builder) File() *File {
	return &b.file
}

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// String interns s and returns its 1-based pool index.
func (b *Builder) String(s string) uint32 {
	if idx, ok := b.stringIndex[s]; ok {
		return idx
	}
	b.file.ConstantPool.Strings = append(b.file.ConstantPool.Strings, s)
	idx := uint32(len(b.file.ConstantPool.Strings))
	b.stringIndex[s] = idx
	return idx
}

// Int interns an integer constant.
func (b *Builder) Int(v int32) uint32 {
	if idx, ok := b.intIndex[v]; ok {
		return idx
	}
	b.file.ConstantPool.Ints = append(b.file.ConstantPool.Ints, v)
	idx := uint32(len(b.file.ConstantPool.Ints))
	b.intIndex[v] = idx
	return idx
}

// Uint interns an unsigned integer constant.
func (b *Builder) Uint(v uint32) uint32 {
	if idx, ok := b.uintIndex[v]; ok {
		return idx
	}
	b.file.ConstantPool.Uints = append(b.file.ConstantPool.Uints, v)
	idx := uint32(len(b.file.ConstantPool.Uints))
	b.uintIndex[v] = idx
	return idx
}

// Double interns a floating point constant.
func (b *Builder) Double(v float64) uint32 {
	key := math.Float64bits(v)
	if idx, ok := b.doubleIndex[key]; ok {
		return idx
	}
	b.file.ConstantPool.Doubles = append(b.file.ConstantPool.Doubles, v)
	idx := uint32(len(b.file.ConstantPool.Doubles))
	b.doubleIndex[key] = idx
	return idx
}

// Namespace interns a namespace of the given kind and URI.
//
// Private namespaces are never interned: each call yields a distinct entry,
// since private namespaces are distinct identities even with equal URIs.
func (b *Builder) Namespace(kind NamespaceKind, uri string) uint32 {
	ns := Namespace{Kind: kind}
	if uri != "" {
		ns.Name = b.String(uri)
	}
	if kind != NamespacePrivate {
		if idx, ok := b.namespaceIndex[ns]; ok {
			return idx
		}
	}
	b.file.ConstantPool.Namespaces = append(b.file.ConstantPool.Namespaces, ns)
	idx := uint32(len(b.file.ConstantPool.Namespaces))
	if kind != NamespacePrivate {
		b.namespaceIndex[ns] = idx
	}
	return idx
}

// PackageNamespace is shorthand for a public namespace with the given URI.
func (b *Builder) PackageNamespace(uri string) uint32 {
	return b.Namespace(NamespacePublic, uri)
}

// NamespaceSet interns a set of namespace indices.
func (b *Builder) NamespaceSet(namespaces ...uint32) uint32 {
	key := indexKey(namespaces)
	if idx, ok := b.nsSetIndex[key]; ok {
		return idx
	}
	set := append([]uint32(nil), namespaces...)
	b.file.ConstantPool.NamespaceSets = append(b.file.ConstantPool.NamespaceSets, set)
	idx := uint32(len(b.file.ConstantPool.NamespaceSets))
	b.nsSetIndex[key] = idx
	return idx
}

// QName interns a qualified name in namespace ns.
func (b *Builder) QName(ns uint32, name string) uint32 {
	return b.multiname(Multiname{Kind: MultinameQName, Namespace: ns, Name: b.String(name)})
}

// Multiname interns a multiname searching the given namespace set.
func (b *Builder) Multiname(nsSet uint32, name string) uint32 {
	return b.multiname(Multiname{Kind: MultinameMultiname, NamespaceSet: nsSet, Name: b.String(name)})
}

// RTQName interns a multiname whose namespace is supplied at runtime.
func (b *Builder) RTQName(name string) uint32 {
	return b.multiname(Multiname{Kind: MultinameRTQName, Name: b.String(name)})
}

// MultinameL interns a multiname whose local name is supplied at runtime.
func (b *Builder) MultinameL(nsSet uint32) uint32 {
	return b.multiname(Multiname{Kind: MultinameMultinameL, NamespaceSet: nsSet})
}

// TypeName interns a generic application base.<params>.
func (b *Builder) TypeName(base uint32, params ...uint32) uint32 {
	return b.multiname(Multiname{
		Kind:       MultinameTypeName,
		BaseType:   base,
		Parameters: append([]uint32(nil), params...),
	})
}

func (b *Builder) multiname(m Multiname) uint32 {
	key := multinameKey(m)
	if idx, ok := b.multinameIndex[key]; ok {
		return idx
	}
	b.file.ConstantPool.Multinames = append(b.file.ConstantPool.Multinames, m)
	idx := uint32(len(b.file.ConstantPool.Multinames))
	b.multinameIndex[key] = idx
	return idx
}

// ---------------------------------------------------------------------------
// Methods, classes, scripts
// ---------------------------------------------------------------------------

// Method appends a method signature and returns its 0-based index.
func (b *Builder) Method(name string, params []MethodParam, returnType uint32, flags MethodFlags) uint32 {
	m := Method{
		Params:     params,
		ReturnType: returnType,
		Flags:      flags,
	}
	if name != "" {
		m.Name = b.String(name)
	}
	b.file.Methods = append(b.file.Methods, m)
	return uint32(len(b.file.Methods) - 1)
}

// Body attaches a body to the method at index method.
func (b *Builder) Body(method uint32, body MethodBody) {
	body.Method = method
	b.file.MethodBodies = append(b.file.MethodBodies, body)
}

// Class appends an instance/class descriptor pair and returns the shared
// 0-based index.
func (b *Builder) Class(inst Instance, class Class) uint32 {
	b.file.Instances = append(b.file.Instances, inst)
	b.file.Classes = append(b.file.Classes, class)
	return uint32(len(b.file.Classes) - 1)
}

// Script appends a script and returns its 0-based index.
func (b *Builder) Script(initMethod uint32, traits ...Trait) uint32 {
	b.file.Scripts = append(b.file.Scripts, Script{InitMethod: initMethod, Traits: traits})
	return uint32(len(b.file.Scripts) - 1)
}

// ---------------------------------------------------------------------------
// Trait and default value helpers
// ---------------------------------------------------------------------------

// SlotTrait declares a variable. slotID 0 requests automatic assignment.
func SlotTrait(name, slotID, typeName uint32, value *DefaultValue) Trait {
	return Trait{Name: name, Kind: TraitSlot, SlotID: slotID, TypeName: typeName, Value: value}
}

// ConstTrait declares a constant.
func ConstTrait(name, slotID, typeName uint32, value *DefaultValue) Trait {
	return Trait{Name: name, Kind: TraitConst, SlotID: slotID, TypeName: typeName, Value: value}
}

// MethodTrait declares a method.
func MethodTrait(name, method uint32) Trait {
	return Trait{Name: name, Kind: TraitMethod, Method: method}
}

// GetterTrait declares a getter.
func GetterTrait(name, method uint32) Trait {
	return Trait{Name: name, Kind: TraitGetter, Method: method}
}

// SetterTrait declares a setter.
func SetterTrait(name, method uint32) Trait {
	return Trait{Name: name, Kind: TraitSetter, Method: method}
}

// ClassTrait declares a nested class binding.
func ClassTrait(name, slotID, class uint32) Trait {
	return Trait{Name: name, Kind: TraitClass, SlotID: slotID, Class: class}
}

// FunctionTrait declares a function binding.
func FunctionTrait(name, slotID, function uint32) Trait {
	return Trait{Name: name, Kind: TraitFunction, SlotID: slotID, Function: function}
}

// Override returns t marked as overriding a supertrait.
func (t Trait) Override() Trait {
	t.IsOverride = true
	return t
}

// Final returns t marked as final.
func (t Trait) Final() Trait {
	t.IsFinal = true
	return t
}

// IntValue returns a default value referencing an interned int.
func (b *Builder) IntValue(v int32) *DefaultValue {
	return &DefaultValue{Kind: ConstInt, Index: b.Int(v)}
}

// UintValue returns a default value referencing an interned uint.
func (b *Builder) UintValue(v uint32) *DefaultValue {
	return &DefaultValue{Kind: ConstUint, Index: b.Uint(v)}
}

// DoubleValue returns a default value referencing an interned double.
func (b *Builder) DoubleValue(v float64) *DefaultValue {
	return &DefaultValue{Kind: ConstDouble, Index: b.Double(v)}
}

// StringValue returns a default value referencing an interned string.
func (b *Builder) StringValue(s string) *DefaultValue {
	return &DefaultValue{Kind: ConstString, Index: b.String(s)}
}

// BoolValue returns a true or false default value.
func BoolValue(v bool) *DefaultValue {
	if v {
		return &DefaultValue{Kind: ConstTrue}
	}
	return &DefaultValue{Kind: ConstFalse}
}

// NullValue returns a null default value.
func NullValue() *DefaultValue {
	return &DefaultValue{Kind: ConstNull}
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

func indexKey(indices []uint32) string {
	buf := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		buf = append(buf, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
	}
	return string(buf)
}

func multinameKey(m Multiname) string {
	head := []uint32{uint32(m.Kind), m.Namespace, m.NamespaceSet, m.Name, m.BaseType}
	return indexKey(append(head, m.Parameters...))
}
