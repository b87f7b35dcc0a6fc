package vm

import "github.com/chazu/clasp/abc"

// NativeMethodImpl is a Go function implementing a method.
type NativeMethodImpl func(act *Activation, this Value, args []Value) (Value, error)

// ParamConfig describes one declared parameter.
type ParamConfig struct {
	Name    string
	Type    *Multiname
	Default *Value // nil when the parameter is required
}

// ParamOfType returns a required parameter of the given type.
func ParamOfType(name string, typ *Multiname) ParamConfig {
	return ParamConfig{Name: name, Type: typ}
}

// ---------------------------------------------------------------------------
// BytecodeMethod
// ---------------------------------------------------------------------------

// BytecodeMethod is a method defined by an archive. Its body is executed by
// the installed Interpreter.
type BytecodeMethod struct {
	unit       *TranslationUnit
	index      uint32
	name       string
	signature  []ParamConfig
	returnType *Multiname
	variadic   bool
	isFunction bool
	body       *abc.MethodBody
}

// BytecodeMethodFromIndex resolves the method signature at index. Parameter
// and return types must be static names.
func BytecodeMethodFromIndex(unit *TranslationUnit, index uint32, isFunction bool) (*BytecodeMethod, error) {
	file := unit.Archive()
	if int(index) >= len(file.Methods) {
		return nil, loadErrorf("Method index %d not valid", index)
	}
	m := &file.Methods[index]

	name, err := unit.PoolString(m.Name)
	if err != nil {
		return nil, err
	}

	signature := make([]ParamConfig, 0, len(m.Params))
	for i := range m.Params {
		p := &m.Params[i]
		typ, err := unit.PoolMultinameStaticAny(p.Kind)
		if err != nil {
			return nil, err
		}
		paramName, err := unit.PoolString(p.Name)
		if err != nil {
			return nil, err
		}
		param := ParamConfig{Name: paramName, Type: typ}
		if p.Default != nil {
			v, err := unit.DefaultValue(p.Default)
			if err != nil {
				return nil, err
			}
			param.Default = &v
		}
		signature = append(signature, param)
	}

	returnType, err := unit.PoolMultinameStaticAny(m.ReturnType)
	if err != nil {
		return nil, err
	}

	return &BytecodeMethod{
		unit:       unit,
		index:      index,
		name:       name,
		signature:  signature,
		returnType: returnType,
		variadic:   m.IsVariadic(),
		isFunction: isFunction,
		body:       file.BodyFor(index),
	}, nil
}

// Unit returns the translation unit the method was loaded from.
func (m *BytecodeMethod) Unit() *TranslationUnit { return m.unit }

// Index returns the method's archive index.
func (m *BytecodeMethod) Index() uint32 { return m.index }

// Name returns the declared name, which may be empty.
func (m *BytecodeMethod) Name() string { return m.name }

// Signature returns the declared parameters.
func (m *BytecodeMethod) Signature() []ParamConfig { return m.signature }

// ReturnType returns the declared return type.
func (m *BytecodeMethod) ReturnType() *Multiname { return m.returnType }

// IsVariadic reports whether the method accepts extra arguments.
func (m *BytecodeMethod) IsVariadic() bool { return m.variadic }

// IsFunction reports whether the method was loaded as a free function
// rather than a class member.
func (m *BytecodeMethod) IsFunction() bool { return m.isFunction }

// Body returns the method body, or nil for abstract methods.
func (m *BytecodeMethod) Body() *abc.MethodBody { return m.body }

// ---------------------------------------------------------------------------
// Method
// ---------------------------------------------------------------------------

// Method is a callable: either native Go code or a bytecode method.
type Method struct {
	name      string
	native    NativeMethodImpl
	bytecode  *BytecodeMethod
	signature []ParamConfig
	variadic  bool
}

// NewNativeMethod wraps a native implementation that accepts any arguments.
func NewNativeMethod(impl NativeMethodImpl, name string) *Method {
	return &Method{name: name, native: impl, variadic: true}
}

// NewNativeMethodWithParams wraps a native implementation with a declared
// signature.
func NewNativeMethodWithParams(impl NativeMethodImpl, name string, signature []ParamConfig, variadic bool) *Method {
	return &Method{name: name, native: impl, signature: signature, variadic: variadic}
}

// NewBytecodeMethod wraps a loaded bytecode method.
func NewBytecodeMethod(bm *BytecodeMethod) *Method {
	return &Method{name: bm.name, bytecode: bm, signature: bm.signature, variadic: bm.variadic}
}

func noopMethod(name string) *Method {
	return NewNativeMethod(func(*Activation, Value, []Value) (Value, error) {
		return Undefined, nil
	}, name)
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// IsNative reports whether the method is implemented in Go.
func (m *Method) IsNative() bool { return m.native != nil }

// Native returns the Go implementation, or nil.
func (m *Method) Native() NativeMethodImpl { return m.native }

// Bytecode returns the bytecode method, or nil for native methods.
func (m *Method) Bytecode() *BytecodeMethod { return m.bytecode }

// Signature returns the declared parameters.
func (m *Method) Signature() []ParamConfig { return m.signature }

// IsVariadic reports whether the method accepts extra arguments.
func (m *Method) IsVariadic() bool { return m.variadic }

// Arity returns the number of declared parameters, or -1 for natives
// declared without a signature.
func (m *Method) Arity() int {
	if m.native != nil && m.signature == nil && m.variadic {
		return -1
	}
	return len(m.signature)
}

func (m *Method) String() string {
	if m.name == "" {
		return "<anonymous>"
	}
	return m.name
}
