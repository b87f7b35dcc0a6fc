package vm

// Script is a top-level compilation unit: an initializer, a global object
// and the traits it exports to its domain. The initializer runs lazily, the
// first time anything asks for the script's globals.
type Script struct {
	cell *Cell[scriptData]
}

type scriptData struct {
	globals      *ScriptObject
	domain       *Domain
	init         *Method
	traits       []Trait
	traitsLoaded bool
	initialized  bool
	unit         *TranslationUnit
}

// EmptyScript creates a script with no traits and a no-op initializer, for
// definitions installed by Go code rather than loaded from an archive.
// globals should be an instance of the global class.
func EmptyScript(globals *ScriptObject, domain *Domain) *Script {
	return &Script{cell: NewCell(scriptData{
		globals:      globals,
		domain:       domain,
		init:         noopMethod("<Built-in script initializer>"),
		traitsLoaded: true,
	})}
}

// ScriptFromArchiveIndex creates script index of unit. Its initializer is
// loaded immediately; its traits are not. The caller caches the script and
// then calls LoadTraits.
func ScriptFromArchiveIndex(unit *TranslationUnit, index uint32, globals *ScriptObject, domain *Domain, act *Activation) (*Script, error) {
	file := unit.Archive()
	if int(index) >= len(file.Scripts) {
		return nil, loadErrorf("Script index %d not valid", index)
	}
	init, err := unit.LoadMethod(file.Scripts[index].InitMethod, false, act)
	if err != nil {
		return nil, err
	}
	return &Script{cell: NewCell(scriptData{
		globals: globals,
		domain:  domain,
		init:    init,
		unit:    unit,
	})}, nil
}

// LoadTraits loads the script's traits and exports each of them to the
// script's domain. Class traits also export their class. It is idempotent.
func (s *Script) LoadTraits(unit *TranslationUnit, index uint32, act *Activation) error {
	data, release := s.cell.Write()
	if data.traitsLoaded {
		release()
		return nil
	}
	data.traitsLoaded = true
	domain := data.domain
	release()

	file := unit.Archive()
	if int(index) >= len(file.Scripts) {
		return loadErrorf("Script index %d not valid", index)
	}

	for i := range file.Scripts[index].Traits {
		t, err := TraitFromArchive(unit, &file.Scripts[index].Traits[i], act)
		if err != nil {
			return err
		}
		domain.ExportDefinition(t.Name(), s)
		if t.Kind() == TraitClass {
			domain.ExportClass(t.Class())
		}

		data, release := s.cell.Write()
		data.traits = append(data.traits, t)
		release()
	}
	return nil
}

// Init returns the initializer, the global object and the domain it runs in.
func (s *Script) Init() (*Method, *ScriptObject, *Domain) {
	data, release := s.cell.Read()
	defer release()
	return data.init, data.globals, data.domain
}

// Domain returns the script's domain.
func (s *Script) Domain() *Domain {
	data, release := s.cell.Read()
	defer release()
	return data.domain
}

// TranslationUnit returns the unit the script was loaded from, or nil for
// an empty script.
func (s *Script) TranslationUnit() *TranslationUnit {
	data, release := s.cell.Read()
	defer release()
	return data.unit
}

// IsInitialized reports whether the initializer has been started.
func (s *Script) IsInitialized() bool {
	data, release := s.cell.Read()
	defer release()
	return data.initialized
}

// Traits returns the script's traits. It fails if they have not been
// loaded yet.
func (s *Script) Traits() ([]Trait, error) {
	data, release := s.cell.Read()
	defer release()
	if !data.traitsLoaded {
		return nil, loadErrorf("Script traits accessed before they were loaded")
	}
	return append([]Trait(nil), data.traits...), nil
}

// Globals returns the global object, running the initializer first if it
// has not run yet. The script is marked initialized before the initializer
// starts, so re-entrant calls see the partially initialized globals instead
// of recursing.
func (s *Script) Globals(act *Activation) (*ScriptObject, error) {
	data, release := s.cell.Write()
	if data.initialized {
		globals := data.globals
		release()
		return globals, nil
	}
	data.initialized = true
	globals, domain := data.globals, data.domain
	release()

	traits, err := s.Traits()
	if err != nil {
		return nil, err
	}
	if err := globals.VTable().InitVTable(globals.InstanceOf(), traits, NewScopeChain(domain), nil, act); err != nil {
		return nil, err
	}
	globals.InstallInstanceSlots()

	if err := act.Avm().RunScriptInitializer(s, act); err != nil {
		return nil, err
	}
	return globals, nil
}
