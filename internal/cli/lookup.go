package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <package-name>...",
	Short: "Check whether declaration packages exist for names",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(newLogger())
	if err != nil {
		return err
	}
	if err := eng.cache.Load(cmd.Context()); err != nil {
		return fmt.Errorf("loading registry index: %w", err)
	}

	unknown := 0
	for _, name := range args {
		if eng.client.IsKnownTypesPackageName(name) {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %s\n", name)
			unknown++
		}
	}
	if unknown > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d names have no known declaration package.\n", unknown, len(args))
	}
	return nil
}
