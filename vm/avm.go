package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("clasp.vm")

// ---------------------------------------------------------------------------
// Native side tables
// ---------------------------------------------------------------------------

// NativeMethodEntry names a native implementation in a side table.
type NativeMethodEntry struct {
	Name string
	Impl NativeMethodImpl
}

// NativeAllocatorEntry names a native allocator in a side table.
type NativeAllocatorEntry struct {
	Name string
	Fn   AllocatorFn
}

// NativeTables hold native implementations for the built-in archive. Each
// table is indexed like the archive table it shadows (Methods by method
// index, the others by class index); nil entries and indices past the end
// mean "no native override". The tables are only consulted for units loaded
// into the global domain.
type NativeTables struct {
	Methods            []*NativeMethodEntry
	InstanceAllocators []*NativeAllocatorEntry
	InstanceInits      []*NativeMethodEntry
	CallHandlers       []*NativeMethodEntry
}

func (t *NativeTables) method(i uint32) *NativeMethodEntry {
	if int(i) < len(t.Methods) {
		return t.Methods[i]
	}
	return nil
}

func (t *NativeTables) allocator(i uint32) *NativeAllocatorEntry {
	if int(i) < len(t.InstanceAllocators) {
		return t.InstanceAllocators[i]
	}
	return nil
}

func (t *NativeTables) instanceInit(i uint32) *NativeMethodEntry {
	if int(i) < len(t.InstanceInits) {
		return t.InstanceInits[i]
	}
	return nil
}

func (t *NativeTables) callHandler(i uint32) *NativeMethodEntry {
	if int(i) < len(t.CallHandlers) {
		return t.CallHandlers[i]
	}
	return nil
}

// ---------------------------------------------------------------------------
// Interpreter boundary
// ---------------------------------------------------------------------------

// Interpreter executes bytecode method bodies. The core never interprets
// bytecode itself.
type Interpreter interface {
	Execute(act *Activation, method *BytecodeMethod, scope ScopeChain, this Value, args []Value, boundClass *ClassObject) (Value, error)
}

// InterpreterFunc adapts a function to the Interpreter interface.
type InterpreterFunc func(act *Activation, method *BytecodeMethod, scope ScopeChain, this Value, args []Value, boundClass *ClassObject) (Value, error)

// Execute calls f.
func (f InterpreterFunc) Execute(act *Activation, method *BytecodeMethod, scope ScopeChain, this Value, args []Value, boundClass *ClassObject) (Value, error) {
	return f(act, method, scope, this, args, boundClass)
}

// ---------------------------------------------------------------------------
// Avm
// ---------------------------------------------------------------------------

// SystemClasses are the linked classes every Avm bootstraps.
type SystemClasses struct {
	Object   *ClassObject
	Class    *ClassObject
	Function *ClassObject
	Global   *ClassObject
}

// Avm is the shared VM state: the global domain, the system classes, the
// registry of linked classes and the native side tables.
type Avm struct {
	globalDomain    *Domain
	publicNamespace Namespace
	strings         *StringTable
	natives         NativeTables
	interpreter     Interpreter
	classes         SystemClasses
	classObjects    *ClassTable
	log             commonlog.Logger
}

// Option configures an Avm.
type Option func(*Avm)

// WithNativeTables installs native side tables for the global domain.
func WithNativeTables(tables NativeTables) Option {
	return func(avm *Avm) {
		avm.natives = tables
	}
}

// WithInterpreter installs the bytecode interpreter.
func WithInterpreter(interp Interpreter) Option {
	return func(avm *Avm) {
		avm.interpreter = interp
	}
}

// WithLogger replaces the "clasp.vm" logger.
func WithLogger(logger commonlog.Logger) Option {
	return func(avm *Avm) {
		avm.log = logger
	}
}

// NewAvm creates a VM with its system classes linked.
func NewAvm(opts ...Option) (*Avm, error) {
	avm := &Avm{
		globalDomain:    NewDomain(nil),
		publicNamespace: PackageNamespace(""),
		strings:         NewStringTable(),
		classObjects:    NewClassTable(),
		log:             log,
	}
	for _, opt := range opts {
		opt(avm)
	}
	if err := avm.bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap system classes: %w", err)
	}
	return avm, nil
}

// bootstrap links Object, Class, Function and global. Object and Class are
// linked in two steps: class objects are instances of Class, so their class
// vtables can only be built once Class's instance vtable exists.
func (avm *Avm) bootstrap() error {
	act := NewActivation(avm)
	scope := NewScopeChain(avm.globalDomain)
	public := avm.publicNamespace
	objectName := NewMultiname(public, "Object")

	objectDef := NewClass(NewQName(public, "Object"), nil,
		noopMethod("<Object instance initializer>"), noopMethod("<Object class initializer>"))
	classDef := NewClass(NewQName(public, "Class"), objectName,
		noopMethod("<Class instance initializer>"), noopMethod("<Class class initializer>"))
	classDef.SetAttributes(ClassSealed | ClassFinal)

	object, err := newPartialClassObject(act, objectDef, nil, scope)
	if err != nil {
		return err
	}
	avm.classes.Object = object

	class, err := newPartialClassObject(act, classDef, object, scope)
	if err != nil {
		return err
	}
	avm.classes.Class = class

	for _, co := range []*ClassObject{object, class} {
		if err := co.finish(act); err != nil {
			return err
		}
		avm.globalDomain.ExportClass(co.Class())
	}

	functionDef := NewClass(NewQName(public, "Function"), objectName,
		noopMethod("<Function instance initializer>"), noopMethod("<Function class initializer>"))
	if avm.classes.Function, err = NewClassObject(act, functionDef, object, scope); err != nil {
		return err
	}
	avm.globalDomain.ExportClass(functionDef)

	globalDef := NewClass(NewQName(public, "global"), objectName,
		noopMethod("<global instance initializer>"), noopMethod("<global class initializer>"))
	if avm.classes.Global, err = NewClassObject(act, globalDef, object, scope); err != nil {
		return err
	}

	for _, co := range []*ClassObject{object, class} {
		if err := co.RunClassInitializer(act); err != nil {
			return err
		}
	}
	return nil
}

// GlobalDomain returns the built-in global domain.
func (avm *Avm) GlobalDomain() *Domain { return avm.globalDomain }

// PublicNamespace returns the unnamed public namespace.
func (avm *Avm) PublicNamespace() Namespace { return avm.publicNamespace }

// Strings returns the string interner.
func (avm *Avm) Strings() *StringTable { return avm.strings }

// Natives returns the native side tables.
func (avm *Avm) Natives() *NativeTables { return &avm.natives }

// Interpreter returns the installed interpreter, or nil.
func (avm *Avm) Interpreter() Interpreter { return avm.interpreter }

// Classes returns the system classes.
func (avm *Avm) Classes() *SystemClasses { return &avm.classes }

// ClassObjects returns the registry of linked classes.
func (avm *Avm) ClassObjects() *ClassTable { return avm.classObjects }

// ClassObjectFor returns the linked class object of class.
func (avm *Avm) ClassObjectFor(class *Class) (*ClassObject, bool) {
	co := avm.classObjects.Lookup(class)
	return co, co != nil
}

// Logger returns the VM logger.
func (avm *Avm) Logger() commonlog.Logger { return avm.log }

// RunScriptInitializer runs script's initializer with its global object as
// this and on the scope chain.
func (avm *Avm) RunScriptInitializer(script *Script, act *Activation) error {
	init, globals, domain := script.Init()
	scope := NewScopeChain(domain).Chain(NewScope(globals))
	if _, err := act.CallMethod(init, scope, ObjectValue(globals), nil, globals.InstanceOf()); err != nil {
		return fmt.Errorf("script initializer %s: %w", init, err)
	}
	return nil
}
