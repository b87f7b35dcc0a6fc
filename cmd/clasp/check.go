package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

func newCheckCommand(opts *globalOptions) *cobra.Command {
	var (
		global      bool
		stopOnError bool
		runScripts  bool
	)
	cmd := &cobra.Command{
		Use:   "check [archive...]",
		Short: "Load and link archives, reporting every load and verify error",
		Long: `Load every archive named on the command line, or every archive listed in
the nearest clasp.toml and its dependencies, then link each class.

Bytecode is never executed: class and script initializers are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := resolveInputs(opts, args)
			if err != nil {
				return err
			}
			configureLogging(opts, in.manifest)

			flags := cmd.Flags()
			if flags.Changed("global") {
				in.options.global = global
			}
			if flags.Changed("stop-on-error") {
				in.options.stopOnError = stopOnError
			}
			if flags.Changed("run-scripts") {
				in.options.runScripts = runScripts
			}

			s, err := newSession(in.options.global)
			if err != nil {
				return err
			}
			loadErr := s.load(in.archives, in.options)
			printCheckReport(cmd.OutOrStdout(), s)
			if loadErr != nil {
				return fmt.Errorf("%d of %d archives failed", s.failedUnits(), len(s.units))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&global, "global", false, "load into the global domain (enables native tables)")
	flags.BoolVar(&stopOnError, "stop-on-error", false, "stop at the first archive that fails")
	flags.BoolVar(&runScripts, "run-scripts", false, "initialize each script after linking")
	return cmd
}

// printCheckReport writes one line per unit followed by its errors.
func printCheckReport(w io.Writer, s *session) {
	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	bad := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, lu := range s.units {
		if lu.err == nil {
			fmt.Fprintf(w, "%s %s %s: %d classes, %d scripts\n",
				ok("ok"), lu.archive.Name, dim(unitID(lu)), len(lu.classes), lu.scripts)
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", bad("FAIL"), lu.archive.Name, dim(unitID(lu)))
		for _, err := range unwrapErrors(lu.err) {
			fmt.Fprintf(w, "    %v\n", err)
		}
	}
	fmt.Fprintf(w, "%d archives, %d failed, %d classes linked\n", len(s.units), s.failedUnits(), s.classCount())
}

// unitID is the short form of a unit's identity, or a placeholder for an
// archive that could not be read.
func unitID(lu *loadedUnit) string {
	if lu.unit == nil {
		return "(unread)"
	}
	return lu.unit.ID().String()[:8]
}

// unwrapErrors flattens nested multierrors into a list.
func unwrapErrors(err error) []error {
	merr, ok := err.(*multierror.Error)
	if !ok {
		return []error{err}
	}
	var errs []error
	for _, e := range merr.Errors {
		errs = append(errs, unwrapErrors(e)...)
	}
	return errs
}
