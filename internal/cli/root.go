package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/typedock-labs/typedock/internal/branding"
	"github.com/typedock-labs/typedock/internal/config"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	rootVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` acquires ambient type declaration packages for language-analysis
services: it resolves unresolved imports against a registry index and installs
matching declaration packages into a shared cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable verbose engine logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}

// newLogger returns the engine logger: a development console logger with
// --verbose, otherwise a no-op (CLI output goes through cobra's writers).
func newLogger() *zap.Logger {
	if !rootVerbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
