package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/typedock-labs/typedock/internal/cachedir"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared typings cache",
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the shared typings cache root",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := cachedir.CacheRoot()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), root)
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every acquired declaration package",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := cachedir.CacheRoot()
		if err != nil {
			return err
		}
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("cleaning cache root %s: %w", root, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", root)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}
