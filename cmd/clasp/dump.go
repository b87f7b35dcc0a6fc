package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/clasp/vm"
)

func newDumpCommand(opts *globalOptions) *cobra.Command {
	var (
		className string
		statics   bool
	)
	cmd := &cobra.Command{
		Use:   "dump [archive...]",
		Short: "Print the linked vtable layout of each class",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := resolveInputs(opts, args)
			if err != nil {
				return err
			}
			configureLogging(opts, in.manifest)

			s, err := newSession(in.options.global)
			if err != nil {
				return err
			}
			loadErr := s.load(in.archives, in.options)

			w := cmd.OutOrStdout()
			printed := 0
			for _, lu := range s.units {
				for _, co := range lu.classes {
					if className != "" && !matchesClass(co, className) {
						continue
					}
					printClassLayout(w, co, statics)
					printed++
				}
			}
			if className != "" && printed == 0 {
				return fmt.Errorf("no linked class named %q", className)
			}
			return loadErr
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&className, "class", "", "only dump this class (local or qualified name)")
	flags.BoolVar(&statics, "static", false, "include the class-side vtable")
	return cmd
}

func matchesClass(co *vm.ClassObject, name string) bool {
	q := co.Class().Name()
	return q.LocalName() == name || q.ToQualifiedName() == name
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	kindColor   = color.New(color.FgYellow)
	typeColor   = color.New(color.FgGreen)
	dimColor    = color.New(color.Faint)
)

// printClassLayout writes a class header followed by its instance vtable
// (and class vtable when statics is set).
func printClassLayout(w io.Writer, co *vm.ClassObject, statics bool) {
	class := co.Class()
	var header strings.Builder
	header.WriteString("class ")
	header.WriteString(class.Name().ToQualifiedName())
	if super := co.Superclass(); super != nil {
		header.WriteString(" extends ")
		header.WriteString(super.Class().Name().ToQualifiedName())
	}
	if ifaces := co.Interfaces(); len(ifaces) > 0 {
		names := make([]string, len(ifaces))
		for i, iface := range ifaces {
			names[i] = iface.Class().Name().ToQualifiedName()
		}
		header.WriteString(" implements ")
		header.WriteString(strings.Join(names, ", "))
	}
	fmt.Fprintln(w, headerColor.Sprint(header.String())+dimColor.Sprint(classFlags(class)))

	printVTable(w, "instance", co.InstanceVTable())
	if statics {
		printVTable(w, "static", co.ClassVTable())
	}
	fmt.Fprintln(w)
}

func classFlags(class *vm.Class) string {
	var flags []string
	if class.IsFinal() {
		flags = append(flags, "final")
	}
	if class.IsSealed() {
		flags = append(flags, "sealed")
	}
	if class.IsInterface() {
		flags = append(flags, "interface")
	}
	if class.IsGeneric() {
		flags = append(flags, "generic")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, " ") + "]"
}

type layoutEntry struct {
	name string
	prop vm.Property
}

// layoutOrder puts slots before methods before virtual properties, each by
// id, so the dump reads like the vtable's own tables.
func layoutOrder(a, b layoutEntry) int {
	if c := cmp.Compare(layoutRank(a.prop), layoutRank(b.prop)); c != 0 {
		return c
	}
	if c := cmp.Compare(layoutID(a.prop), layoutID(b.prop)); c != 0 {
		return c
	}
	return cmp.Compare(a.name, b.name)
}

func layoutRank(p vm.Property) int {
	switch p.Kind() {
	case vm.PropertySlot, vm.PropertyConstSlot:
		return 0
	case vm.PropertyMethod:
		return 1
	default:
		return 2
	}
}

func layoutID(p vm.Property) uint32 {
	if id, ok := p.SlotID(); ok {
		return id
	}
	if id, ok := p.DispID(); ok {
		return id
	}
	if id, ok := p.Getter(); ok {
		return id
	}
	id, _ := p.Setter()
	return id
}

func printVTable(w io.Writer, label string, vt *vm.VTable) {
	var entries []layoutEntry
	for name, prop := range vt.ResolvedTraits().All() {
		entries = append(entries, layoutEntry{name: name.ToQualifiedName(), prop: prop})
	}
	slices.SortFunc(entries, layoutOrder)

	fmt.Fprintf(w, "  %s: %d slots, %d methods\n", label, vt.NumSlots(), vt.NumMethods())
	for _, e := range entries {
		fmt.Fprintf(w, "    %-24s %s%s\n", e.name, kindColor.Sprint(e.prop), describeProperty(vt, e.prop))
	}
}

// describeProperty adds the slot type or the implementing method names.
func describeProperty(vt *vm.VTable, p vm.Property) string {
	if id, ok := p.SlotID(); ok {
		typeName, err := vt.SlotClassName(id)
		if err != nil || typeName == nil {
			return ""
		}
		return " : " + typeColor.Sprint(typeName)
	}

	var methods []string
	for _, lookup := range []func() (uint32, bool){p.DispID, p.Getter, p.Setter} {
		if id, ok := lookup(); ok {
			if m, ok := vt.GetMethod(id); ok {
				methods = append(methods, m.Name())
			}
		}
	}
	if len(methods) == 0 {
		return ""
	}
	return dimColor.Sprint(" -> " + strings.Join(methods, ", "))
}
