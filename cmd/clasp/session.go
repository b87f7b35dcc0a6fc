package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/tliron/commonlog"

	"github.com/chazu/clasp/abc"
	"github.com/chazu/clasp/manifest"
	"github.com/chazu/clasp/vm"
)

const manifestFileName = manifest.FileName

var log = commonlog.GetLogger("clasp.cli")

var errNoInputs = errors.New("no archives given and no " + manifestFileName + " found")

// loadOptions mirror the manifest's [domain] and [loader] tables.
type loadOptions struct {
	global      bool
	stopOnError bool
	runScripts  bool
}

// inputs are the archives a command works on, plus the manifest they came
// from (nil when archives were named on the command line without one).
type inputs struct {
	manifest *manifest.Manifest
	archives []manifest.ResolvedArchive
	options  loadOptions
}

// resolveInputs finds the manifest around opts.dir and the archives to
// load. Paths given as arguments replace the manifest's own archive list.
func resolveInputs(opts *globalOptions, args []string) (*inputs, error) {
	m, err := manifest.FindAndLoad(opts.dir)
	if err != nil {
		return nil, err
	}
	in := &inputs{manifest: m}
	if m != nil {
		in.options = loadOptions{
			global:      m.Domain.Global,
			stopOnError: m.Loader.StopOnError,
			runScripts:  m.Loader.RunScripts,
		}
	}

	switch {
	case len(args) > 0:
		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err != nil {
				return nil, err
			}
			in.archives = append(in.archives, manifest.ResolvedArchive{
				Name: manifest.ArchiveName(manifest.Archive{}, path),
				Path: path,
			})
		}
	case m != nil:
		if in.archives, err = manifest.NewResolver(m).Resolve(); err != nil {
			return nil, err
		}
	default:
		return nil, errNoInputs
	}
	return in, nil
}

// configureLogging applies flags over the manifest's [log] table.
func configureLogging(opts *globalOptions, m *manifest.Manifest) {
	verbosity := opts.verbosity
	var path *string
	if m != nil {
		verbosity = max(verbosity, m.Log.Verbosity)
		path = m.LogFile()
	}
	if opts.logFile != "" {
		path = &opts.logFile
	}
	commonlog.Configure(verbosity, path)
}

// session is one VM and the units loaded into it, in load order.
type session struct {
	avm    *vm.Avm
	domain *vm.Domain
	act    *vm.Activation
	units  []*loadedUnit
	failed map[*vm.Class]error
}

// loadedUnit is the outcome of loading one archive.
type loadedUnit struct {
	archive manifest.ResolvedArchive
	unit    *vm.TranslationUnit
	classes []*vm.ClassObject
	scripts int
	err     error
}

func newSession(global bool) (*session, error) {
	avm, err := vm.NewAvm(vm.WithInterpreter(vm.InterpreterFunc(skipBytecode)))
	if err != nil {
		return nil, err
	}
	domain := avm.GlobalDomain()
	if !global {
		domain = vm.NewDomain(domain)
	}
	return &session{
		avm:    avm,
		domain: domain,
		act:    vm.NewActivationInDomain(avm, domain),
		failed: make(map[*vm.Class]error),
	}, nil
}

// skipBytecode stands in for an interpreter. Bytecode bodies (class and
// script initializers included) are not run and answer undefined.
func skipBytecode(act *vm.Activation, method *vm.BytecodeMethod, scope vm.ScopeChain, this vm.Value, args []vm.Value, boundClass *vm.ClassObject) (vm.Value, error) {
	return vm.Undefined, nil
}

// load loads every archive in order. Failures are collected unless
// stopOnError is set, in which case loading ends at the first one.
func (s *session) load(archives []manifest.ResolvedArchive, opts loadOptions) error {
	var errs *multierror.Error
	for _, a := range archives {
		lu := s.loadArchive(a, opts.runScripts)
		s.units = append(s.units, lu)
		if lu.err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", a.Name, lu.err))
			if opts.stopOnError {
				break
			}
		}
	}
	return errs.ErrorOrNil()
}

func (s *session) loadArchive(a manifest.ResolvedArchive, runScripts bool) *loadedUnit {
	lu := &loadedUnit{archive: a}
	file, err := abc.ReadFile(a.Path)
	if err != nil {
		lu.err = err
		return lu
	}
	lu.unit = vm.NewTranslationUnit(file, s.domain, a.Name, s.avm)
	log.Infof("loading %s from %s", lu.unit, a.Path)
	lu.err = s.linkUnit(lu, runScripts)
	return lu
}

// linkUnit preloads a unit, links each of its classes and optionally runs
// its scripts.
func (s *session) linkUnit(lu *loadedUnit, runScripts bool) error {
	unit := lu.unit
	var errs *multierror.Error
	if err := unit.Preload(s.act); err != nil {
		errs = multierror.Append(errs, err)
	}

	for i := range unit.Archive().Classes {
		class, err := unit.LoadClass(uint32(i), s.act)
		if err != nil {
			// Reported by Preload.
			continue
		}
		co, err := s.linkClass(class, make(map[*vm.Class]bool))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		lu.classes = append(lu.classes, co)
	}

	for i := range unit.Archive().Scripts {
		script, ok := unit.Script(uint32(i))
		if !ok {
			continue
		}
		lu.scripts++
		if !runScripts {
			continue
		}
		if _, err := script.Globals(s.act); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("script %d: %w", i, err))
		}
	}
	return errs.ErrorOrNil()
}

// linkClass links class after its superclass and interfaces. Classes that
// are already linked are returned as they are; a class that failed once
// keeps failing with the same error.
func (s *session) linkClass(class *vm.Class, visiting map[*vm.Class]bool) (*vm.ClassObject, error) {
	if co, ok := s.avm.ClassObjectFor(class); ok {
		return co, nil
	}
	if err, ok := s.failed[class]; ok {
		return nil, err
	}
	name := class.Name().ToQualifiedName()
	if visiting[class] {
		return nil, fmt.Errorf("class %s is its own ancestor", name)
	}
	visiting[class] = true
	defer delete(visiting, class)

	co, err := s.linkAfterDependencies(class, name, visiting)
	if err != nil {
		s.failed[class] = err
		return nil, err
	}
	return co, nil
}

func (s *session) linkAfterDependencies(class *vm.Class, name string, visiting map[*vm.Class]bool) (*vm.ClassObject, error) {
	var super *vm.ClassObject
	if superName := class.SuperClassName(); superName != nil {
		def, ok := s.domain.GetClass(superName)
		if !ok {
			return nil, fmt.Errorf("superclass %s of %s is not defined", superName, name)
		}
		var err error
		if super, err = s.linkClass(def, visiting); err != nil {
			return nil, fmt.Errorf("linking %s: %w", name, err)
		}
	}
	for _, ifaceName := range class.DirectInterfaces() {
		// Unresolvable interfaces are reported by the linker itself.
		if def, ok := s.domain.GetClass(ifaceName); ok {
			if _, err := s.linkClass(def, visiting); err != nil {
				return nil, fmt.Errorf("linking %s: %w", name, err)
			}
		}
	}
	return vm.NewClassObject(s.act, class, super, vm.NewScopeChain(s.domain))
}

// classCount returns the number of classes linked across all units.
func (s *session) classCount() int {
	n := 0
	for _, lu := range s.units {
		n += len(lu.classes)
	}
	return n
}

func (s *session) failedUnits() int {
	n := 0
	for _, lu := range s.units {
		if lu.err != nil {
			n++
		}
	}
	return n
}
