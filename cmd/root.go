// Package cmd holds evsieve's single cobra entry point. Unlike the
// teacher's own main.go (built on humacli), the teacher's stream.go and
// validate.go show cobra.Command used directly for true subcommands,
// and that shape is what evsieve's pipeline invocation follows here,
// just with exactly one command and flag parsing disabled so
// "--input", "--map", and the rest of the pipeline clause syntax never
// collide with pflag's own "--flag=value" conventions.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCmd builds evsieve's root command. runPipeline receives every
// argument after the program name verbatim (clause syntax, not cobra
// flags) and is called unless --version/-v or --help/-h was given.
func NewRootCmd(runPipeline func(argv []string) error) *cobra.Command {
	root := &cobra.Command{
		Use:                "evsieve [clause]...",
		Short:              "Bridge evdev input devices through a user-declared event pipeline",
		Long:               "evsieve reads events from one or more /dev/input devices, runs them through a pipeline of --map/--copy/--toggle/--block/--merge/--delay/--hook/--withhold/--print/--output clauses, and writes the result to virtual uinput devices.",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}
	root.RunE = func(c *cobra.Command, args []string) error {
		for _, a := range args {
			switch a {
			case "--version", "-v":
				fmt.Println("evsieve " + version)
				return nil
			case "--help", "-h":
				return c.Help()
			}
		}
		return runPipeline(args)
	}
	return root
}
