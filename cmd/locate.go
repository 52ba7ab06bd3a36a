package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/toolrunner/internal/config"
)

// CreateLocateCmd creates the locate command.
func CreateLocateCmd(getOpts func() *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <name>",
		Short: "Print the resolved path of a tool",
		Long:  `Looks the tool up on PATH, then in the fallback directory, and prints its absolute path with symlinks resolved.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path, ok := NewLocator(loadedOptions(getOpts)).Locate(args[0])
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			fmt.Fprintln(c.OutOrStdout(), path)
			return nil
		},
		SilenceUsage: true,
	}
}
