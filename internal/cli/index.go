package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var indexShowAll bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the registry index",
}

var indexRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Invalidate the cached index and fetch a fresh one",
	RunE:  runIndexRefresh,
}

var indexShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the loaded registry index",
	RunE:  runIndexShow,
}

func init() {
	indexShowCmd.Flags().BoolVar(&indexShowAll, "all", false, "List every known package name")
	indexCmd.AddCommand(indexRefreshCmd)
	indexCmd.AddCommand(indexShowCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexRefresh(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(newLogger())
	if err != nil {
		return err
	}

	eng.cache.Invalidate()
	if err := eng.cache.Load(cmd.Context()); err != nil {
		return fmt.Errorf("refreshing registry index: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registry index refreshed: %d packages known.\n", eng.cache.Index().Len())
	return nil
}

func runIndexShow(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(newLogger())
	if err != nil {
		return err
	}
	if err := eng.cache.Load(cmd.Context()); err != nil {
		return fmt.Errorf("loading registry index: %w", err)
	}

	idx := eng.cache.Index()
	fmt.Fprintf(cmd.OutOrStdout(), "%d packages known.\n", idx.Len())

	if indexShowAll {
		names := make([]string, 0, idx.Len())
		for name := range idx.Entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s@%s\n", name, idx.Entries[name].Latest)
		}
	}
	return nil
}
