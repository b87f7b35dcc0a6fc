// clasp loads bytecode archives, links their classes and reports the result.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/kutil/util"

	_ "github.com/tliron/commonlog/simple"
)

var version = "dev"

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	dir       string
	verbosity int
	logFile   string
	noColor   bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "clasp",
		Short:         "Load, link and inspect bytecode archives",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.dir, "dir", "C", ".", "directory to search for "+manifestFileName)
	flags.CountVarP(&opts.verbosity, "verbose", "v", "log more (repeat for debug output)")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newCheckCommand(opts), newDumpCommand(opts))
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		util.Exit(1)
	}
	util.Exit(0)
}
