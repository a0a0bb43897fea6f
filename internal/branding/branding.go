// Package branding provides compile-time identity values for the CLI.
//
// Forkers edit branding.yaml in this package, then rebuild. Go's //go:embed
// bakes the values into the binary; hard defaults cover a missing file.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName          string `yaml:"cli_name"`
	DisplayName      string `yaml:"display_name"`
	Description      string `yaml:"description"`
	HomeDir          string `yaml:"home_dir"`
	EnvPrefix        string `yaml:"env_prefix"`
	GoModule         string `yaml:"go_module"`
	GitHubRepo       string `yaml:"github_repo"`
	RegistryIndexURL string `yaml:"registry_index_url"`
	RegistryBaseURL  string `yaml:"registry_base_url"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:          "typedock",
			DisplayName:      "TypeDock",
			Description:      "Acquires ambient type declaration packages for language-analysis services",
			HomeDir:          ".typedock",
			EnvPrefix:        "TYPEDOCK",
			GoModule:         "github.com/typedock-labs/typedock",
			GitHubRepo:       "typedock-labs/typedock",
			RegistryIndexURL: "https://registry.typedock.dev/index.json",
			RegistryBaseURL:  "https://registry.npmjs.org",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "typedock").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "TypeDock").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".typedock").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "TYPEDOCK").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime; kept for
// forks that rewrite the module path.
func GoModule() string { load(); return defaults.GoModule }

// GitHubRepo returns the "owner/repo" string.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// RegistryIndexURL returns the default URL of the declaration-package index.
func RegistryIndexURL() string { load(); return defaults.RegistryIndexURL }

// RegistryBaseURL returns the default base URL for package metadata and tarballs.
func RegistryBaseURL() string { load(); return defaults.RegistryBaseURL }

// EnvVar returns a fully qualified env var name, e.g. EnvVar("CACHE")
// yields "TYPEDOCK_CACHE".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
