package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typedock-labs/typedock/internal/client"
)

var (
	acquireProject string
	acquireInclude []string
	acquireExclude []string
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <import-name>...",
	Short: "Acquire declaration packages for unresolved imports",
	Long: `Acquire resolves the given unresolved import module names against the
registry index and installs matching declaration packages into the shared
typings cache. Names the registry does not know are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().StringVar(&acquireProject, "project", ".", "Project root the imports belong to")
	acquireCmd.Flags().StringSliceVar(&acquireInclude, "include", nil, "Extra package names to acquire")
	acquireCmd.Flags().StringSliceVar(&acquireExclude, "exclude", nil, "Package names never to acquire")
	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(newLogger())
	if err != nil {
		return err
	}

	// Load the index up front so planning sees a populated registry.
	if err := eng.cache.Load(cmd.Context()); err != nil {
		return fmt.Errorf("loading registry index: %w", err)
	}

	console := &consoleRegistry{out: cmd.OutOrStdout()}
	eng.client.Attach(console)

	settings := client.TypeAcquisitionSettings{
		Enable:  true,
		Include: acquireInclude,
		Exclude: acquireExclude,
	}
	eng.client.EnqueueInstallTypingsRequest(acquireProject, settings, args)
	eng.coord.Wait()

	if console.failed > 0 {
		return fmt.Errorf("%d of %d packages failed to install", console.failed, console.failed+console.installed)
	}
	if console.installed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to acquire: no requested import has a known declaration package.")
	}
	return nil
}

// consoleRegistry renders acquisition progress for one-shot CLI runs.
type consoleRegistry struct {
	out       io.Writer
	installed int
	failed    int
}

func (c *consoleRegistry) BeginInstallTypes(requestID uint64, packages []string) {
	fmt.Fprintf(c.out, "Installing declaration packages: %s\n", strings.Join(packages, ", "))
}

func (c *consoleRegistry) PackageInstalled(success bool, packageName, message string) {
	if success {
		fmt.Fprintf(c.out, "  ✓ %s\n", packageName)
		c.installed++
		return
	}
	fmt.Fprintf(c.out, "  ✗ %s: %s\n", packageName, message)
	c.failed++
}

func (c *consoleRegistry) EndInstallTypes(requestID uint64, success bool) {
	if success {
		fmt.Fprintln(c.out, "Done.")
	} else {
		fmt.Fprintln(c.out, "Install finished with failures.")
	}
}

func (c *consoleRegistry) ApplyTypings(projectRoot string, typings []string) {
	for _, dir := range typings {
		fmt.Fprintf(c.out, "  typings at %s\n", dir)
	}
}

func (c *consoleRegistry) InvalidateCachedTypings(projectRoot string) {
	fmt.Fprintf(c.out, "  cached typings for %s invalidated\n", projectRoot)
}
