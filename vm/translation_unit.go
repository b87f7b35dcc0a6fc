package vm

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/tliron/commonlog"

	"github.com/chazu/clasp/abc"
)

// TranslationUnit is one loaded archive bound to a domain. Every table entry
// it hands out is materialized on first request and cached, so repeated
// lookups of the same index return the same value.
//
// Constant-pool caches (strings, namespaces, multinames) are 1-based like
// the pool itself: position 0 is never filled. Method, class and script
// caches are 0-based.
//
// The unit is shared by every class, script and method loaded from it.
// Loading re-enters the unit (a class trait loads its class, which loads its
// methods), so no borrow of the unit is held while another table is loaded.
type TranslationUnit struct {
	cell *Cell[unitData]
}

type unitData struct {
	id      uuid.UUID
	name    string
	file    *abc.File
	domain  *Domain
	log     commonlog.Logger
	strings *StringTable

	poolStrings []*string
	namespaces  []*Namespace
	multinames  []*Multiname
	building    []bool
	methods     []*Method
	classes     []*Class
	scripts     []*Script
}

// NewTranslationUnit binds file to domain. name is the label the archive was
// delivered under; it may be empty.
func NewTranslationUnit(file *abc.File, domain *Domain, name string, avm *Avm) *TranslationUnit {
	id := uuid.New()
	pool := &file.ConstantPool
	return &TranslationUnit{cell: NewCell(unitData{
		id:          id,
		name:        name,
		file:        file,
		domain:      domain,
		log:         commonlog.NewKeyValueLogger(avm.Logger(), "unit", id.String()),
		strings:     avm.Strings(),
		poolStrings: make([]*string, len(pool.Strings)+1),
		namespaces:  make([]*Namespace, len(pool.Namespaces)+1),
		multinames:  make([]*Multiname, len(pool.Multinames)+1),
		building:    make([]bool, len(pool.Multinames)+1),
		methods:     make([]*Method, len(file.Methods)),
		classes:     make([]*Class, len(file.Classes)),
		scripts:     make([]*Script, len(file.Scripts)),
	})}
}

// ID returns the identity assigned to the unit when it was created.
func (u *TranslationUnit) ID() uuid.UUID {
	data, release := u.cell.Read()
	defer release()
	return data.id
}

// Name returns the label the archive was delivered under.
func (u *TranslationUnit) Name() string {
	data, release := u.cell.Read()
	defer release()
	return data.name
}

// Archive returns the underlying archive.
func (u *TranslationUnit) Archive() *abc.File {
	data, release := u.cell.Read()
	defer release()
	return data.file
}

// Domain returns the domain the unit's definitions are exported to.
func (u *TranslationUnit) Domain() *Domain {
	data, release := u.cell.Read()
	defer release()
	return data.domain
}

// Logger returns the unit's logger.
func (u *TranslationUnit) Logger() commonlog.Logger {
	data, release := u.cell.Read()
	defer release()
	return data.log
}

// String returns a short description for log lines.
func (u *TranslationUnit) String() string {
	data, release := u.cell.Read()
	defer release()
	if data.name != "" {
		return data.name
	}
	return data.id.String()
}

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// PoolStringOption returns string idx. The boolean is false for index 0,
// which callers interpret as the context demands.
func (u *TranslationUnit) PoolStringOption(idx uint32) (string, bool, error) {
	data, release := u.cell.Write()
	defer release()

	if idx == 0 {
		return "", false, nil
	}
	if int(idx) >= len(data.poolStrings) {
		return "", false, loadErrorf("Unknown string constant %d", idx)
	}
	if s := data.poolStrings[idx]; s != nil {
		return *s, true, nil
	}
	s := data.strings.Intern(data.file.ConstantPool.Strings[idx-1])
	data.poolStrings[idx] = &s
	return s, true, nil
}

// PoolString returns string idx. Index 0 is the empty string.
func (u *TranslationUnit) PoolString(idx uint32) (string, error) {
	s, _, err := u.PoolStringOption(idx)
	return s, err
}

// PoolNamespace returns namespace idx. Index 0 is the any namespace. A
// private namespace keeps one identity per index for the life of the unit.
func (u *TranslationUnit) PoolNamespace(idx uint32) (Namespace, error) {
	if idx == 0 {
		return AnyNamespace, nil
	}

	data, release := u.cell.Read()
	if int(idx) >= len(data.namespaces) {
		release()
		return Namespace{}, loadErrorf("Unknown namespace constant %d", idx)
	}
	if ns := data.namespaces[idx]; ns != nil {
		release()
		return *ns, nil
	}
	raw := data.file.ConstantPool.Namespaces[idx-1]
	release()

	uri, err := u.PoolString(raw.Name)
	if err != nil {
		return Namespace{}, err
	}
	ns := NewNamespace(namespaceKindFromArchive(raw.Kind), uri)

	wdata, wrelease := u.cell.Write()
	defer wrelease()
	if cached := wdata.namespaces[idx]; cached != nil {
		return *cached, nil
	}
	wdata.namespaces[idx] = &ns
	return ns, nil
}

func (u *TranslationUnit) poolNamespaceSet(idx uint32) ([]Namespace, error) {
	data, release := u.cell.Read()
	sets := data.file.ConstantPool.NamespaceSets
	release()

	if idx == 0 {
		return nil, loadErrorf("Multiname namespace set must not be null")
	}
	if int(idx) > len(sets) {
		return nil, loadErrorf("Unknown namespace set constant %d", idx)
	}
	raw := sets[idx-1]
	set := make([]Namespace, 0, len(raw))
	for _, nsIdx := range raw {
		ns, err := u.PoolNamespace(nsIdx)
		if err != nil {
			return nil, err
		}
		set = append(set, ns)
	}
	return set, nil
}

// PoolMaybeUninitializedMultiname returns multiname idx, which may still
// have runtime components. Callers must check HasLazyComponent before using
// the name for a lookup.
func (u *TranslationUnit) PoolMaybeUninitializedMultiname(idx uint32) (*Multiname, error) {
	if idx == 0 {
		return nil, loadErrorf("Multiname index 0 is not valid here")
	}

	data, release := u.cell.Read()
	if int(idx) >= len(data.multinames) {
		release()
		return nil, loadErrorf("Unknown multiname constant %d", idx)
	}
	if mn := data.multinames[idx]; mn != nil {
		release()
		return mn, nil
	}
	raw := data.file.ConstantPool.Multinames[idx-1]
	release()

	// A type name reaches its base and parameters through the pool, so a
	// cycle would recurse forever.
	wdata, wrelease := u.cell.Write()
	if wdata.building[idx] {
		wrelease()
		return nil, loadErrorf("Multiname %d refers to itself", idx)
	}
	wdata.building[idx] = true
	wrelease()

	mn, err := u.buildMultiname(&raw)

	wdata, wrelease = u.cell.Write()
	defer wrelease()
	wdata.building[idx] = false
	if err != nil {
		return nil, err
	}
	if cached := wdata.multinames[idx]; cached != nil {
		return cached, nil
	}
	wdata.multinames[idx] = mn
	return mn, nil
}

func (u *TranslationUnit) buildMultiname(raw *abc.Multiname) (*Multiname, error) {
	mn := &Multiname{}
	if raw.Kind.IsAttribute() {
		mn.flags |= multinameAttribute
	}

	switch raw.Kind {
	case abc.MultinameQName, abc.MultinameQNameA:
		ns, err := u.PoolNamespace(raw.Namespace)
		if err != nil {
			return nil, err
		}
		mn.namespaces = []Namespace{ns}
		if err := u.setMultinameName(mn, raw.Name); err != nil {
			return nil, err
		}

	case abc.MultinameRTQName, abc.MultinameRTQNameA:
		mn.flags |= multinameLazyNamespace
		if err := u.setMultinameName(mn, raw.Name); err != nil {
			return nil, err
		}

	case abc.MultinameRTQNameL, abc.MultinameRTQNameLA:
		mn.flags |= multinameLazyNamespace | multinameLazyName

	case abc.MultinameMultiname, abc.MultinameMultinameA:
		set, err := u.poolNamespaceSet(raw.NamespaceSet)
		if err != nil {
			return nil, err
		}
		mn.namespaces = set
		if err := u.setMultinameName(mn, raw.Name); err != nil {
			return nil, err
		}

	case abc.MultinameMultinameL, abc.MultinameMultinameLA:
		set, err := u.poolNamespaceSet(raw.NamespaceSet)
		if err != nil {
			return nil, err
		}
		mn.namespaces = set
		mn.flags |= multinameLazyName

	case abc.MultinameTypeName:
		base, err := u.PoolMultinameStatic(raw.BaseType)
		if err != nil {
			return nil, err
		}
		params := make([]*Multiname, 0, len(raw.Parameters))
		for _, p := range raw.Parameters {
			param, err := u.PoolMultinameStaticAny(p)
			if err != nil {
				return nil, err
			}
			params = append(params, param)
		}
		mn = base.WithParams(params)

	default:
		return nil, loadErrorf("Unknown multiname kind %d", raw.Kind)
	}
	return mn, nil
}

// setMultinameName fills the local name; string index 0 is the any name.
func (u *TranslationUnit) setMultinameName(mn *Multiname, idx uint32) error {
	name, ok, err := u.PoolStringOption(idx)
	if err != nil {
		return err
	}
	if !ok {
		mn.flags |= multinameAnyName
		return nil
	}
	mn.name = name
	return nil
}

// PoolMultinameStatic returns multiname idx, which must have no runtime
// components. Index 0 is an error.
func (u *TranslationUnit) PoolMultinameStatic(idx uint32) (*Multiname, error) {
	mn, err := u.PoolMaybeUninitializedMultiname(idx)
	if err != nil {
		return nil, err
	}
	if mn.HasLazyComponent() {
		return nil, loadErrorf("Multiname %d is not static", idx)
	}
	return mn, nil
}

// PoolMultinameStaticAny is PoolMultinameStatic with index 0 meaning the
// any type "*".
func (u *TranslationUnit) PoolMultinameStaticAny(idx uint32) (*Multiname, error) {
	if idx == 0 {
		return AnyMultiname(), nil
	}
	return u.PoolMultinameStatic(idx)
}

// DefaultValue resolves a literal default against the constant pool.
func (u *TranslationUnit) DefaultValue(dv *abc.DefaultValue) (Value, error) {
	if dv == nil {
		return Undefined, nil
	}

	data, release := u.cell.Read()
	pool := &data.file.ConstantPool
	release()

	switch dv.Kind {
	case abc.ConstUndefined:
		return Undefined, nil
	case abc.ConstNull:
		return Null, nil
	case abc.ConstTrue:
		return True, nil
	case abc.ConstFalse:
		return False, nil
	case abc.ConstInt:
		if dv.Index == 0 || int(dv.Index) > len(pool.Ints) {
			return Undefined, loadErrorf("Unknown int constant %d", dv.Index)
		}
		return IntValue(pool.Ints[dv.Index-1]), nil
	case abc.ConstUint:
		if dv.Index == 0 || int(dv.Index) > len(pool.Uints) {
			return Undefined, loadErrorf("Unknown uint constant %d", dv.Index)
		}
		return UintValue(pool.Uints[dv.Index-1]), nil
	case abc.ConstDouble:
		if dv.Index == 0 || int(dv.Index) > len(pool.Doubles) {
			return Undefined, loadErrorf("Unknown double constant %d", dv.Index)
		}
		return NumberValue(pool.Doubles[dv.Index-1]), nil
	case abc.ConstString:
		s, err := u.PoolString(dv.Index)
		if err != nil {
			return Undefined, err
		}
		return StringValue(s), nil
	case abc.ConstNamespace:
		ns, err := u.PoolNamespace(dv.Index)
		if err != nil {
			return Undefined, err
		}
		return NamespaceValue(ns), nil
	default:
		return Undefined, loadErrorf("Unknown default value kind %d", dv.Kind)
	}
}

// ---------------------------------------------------------------------------
// Methods, classes and scripts
// ---------------------------------------------------------------------------

// LoadMethod returns method idx. In the global domain, a native side-table
// entry for idx replaces the bytecode while keeping its declared signature.
func (u *TranslationUnit) LoadMethod(idx uint32, isFunction bool, act *Activation) (*Method, error) {
	data, release := u.cell.Read()
	if int(idx) >= len(data.methods) {
		release()
		return nil, loadErrorf("Method index %d not valid", idx)
	}
	if m := data.methods[idx]; m != nil {
		release()
		return m, nil
	}
	domain := data.domain
	release()

	bm, err := BytecodeMethodFromIndex(u, idx, isFunction)
	if err != nil {
		return nil, err
	}

	var method *Method
	if domain.IsGlobal(act.Avm()) {
		if e := act.Avm().Natives().method(idx); e != nil {
			method = NewNativeMethodWithParams(e.Impl, e.Name, bm.Signature(), bm.IsVariadic())
		}
	}
	if method == nil {
		method = NewBytecodeMethod(bm)
	}

	wdata, wrelease := u.cell.Write()
	defer wrelease()
	if cached := wdata.methods[idx]; cached != nil {
		return cached, nil
	}
	wdata.methods[idx] = method
	return method, nil
}

// LoadClass returns class idx. The bare descriptor is cached before its
// traits load, so traits that refer back to the class find it.
func (u *TranslationUnit) LoadClass(idx uint32, act *Activation) (*Class, error) {
	data, release := u.cell.Read()
	if int(idx) >= len(data.classes) {
		release()
		return nil, loadErrorf("Class index %d not valid", idx)
	}
	if c := data.classes[idx]; c != nil {
		release()
		return c, nil
	}
	logger := data.log
	release()

	class, err := ClassFromArchiveIndex(u, idx, act)
	if err != nil {
		return nil, err
	}

	wdata, wrelease := u.cell.Write()
	wdata.classes[idx] = class
	wrelease()

	if err := class.LoadTraits(u, idx, act); err != nil {
		return nil, err
	}
	logger.Debugf("loaded class %d: %s", idx, class.Name().ToQualifiedName())
	return class, nil
}

// LoadScript returns script idx with a fresh global object. Like classes,
// the script is cached before its traits load.
func (u *TranslationUnit) LoadScript(idx uint32, act *Activation) (*Script, error) {
	data, release := u.cell.Read()
	if int(idx) >= len(data.scripts) {
		release()
		return nil, loadErrorf("Script index %d not valid", idx)
	}
	if s := data.scripts[idx]; s != nil {
		release()
		return s, nil
	}
	domain, logger := data.domain, data.log
	release()

	obj, err := act.Avm().Classes().Global.Construct(act, nil)
	if err != nil {
		return nil, err
	}
	globals, ok := obj.(*ScriptObject)
	if !ok {
		return nil, typeErrorf("global object is not a script object")
	}
	globals.ForkVTable()

	script, err := ScriptFromArchiveIndex(u, idx, globals, domain, act)
	if err != nil {
		return nil, err
	}

	wdata, wrelease := u.cell.Write()
	wdata.scripts[idx] = script
	wrelease()

	if err := script.LoadTraits(u, idx, act); err != nil {
		return nil, err
	}
	logger.Debugf("loaded script %d", idx)
	return script, nil
}

// Script returns script idx if it has been loaded.
func (u *TranslationUnit) Script(idx uint32) (*Script, bool) {
	data, release := u.cell.Read()
	defer release()
	if int(idx) >= len(data.scripts) || data.scripts[idx] == nil {
		return nil, false
	}
	return data.scripts[idx], true
}

// Preload loads every class and script in the archive. Failures do not
// stop the pass; they are returned together.
func (u *TranslationUnit) Preload(act *Activation) error {
	data, release := u.cell.Read()
	numClasses, numScripts := len(data.classes), len(data.scripts)
	logger := data.log
	release()

	var errs *multierror.Error
	for i := range numClasses {
		if _, err := u.LoadClass(uint32(i), act); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for i := range numScripts {
		if _, err := u.LoadScript(uint32(i), act); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		logger.Warningf("preload finished with %d errors", len(errs.Errors))
		return err
	}
	logger.Infof("preloaded %d classes and %d scripts", numClasses, numScripts)
	return nil
}
