// Package app wires the pkgx CLI commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Arcoson/PackageEngine/internal/config"
	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/registry"
	"github.com/Arcoson/PackageEngine/internal/resolver"
	"github.com/Arcoson/PackageEngine/internal/store"
)

var (
	configPath string
	dbPath     string

	// RootCmd is the root command for pkgx
	RootCmd = &cobra.Command{
		Use:   "pkgx",
		Short: "Python package management with a dependency dashboard",
		Long: `pkgx wraps pip with an install manifest and a package version dashboard.

Installs, removals, and updates are passed through to pip while pkgx
records versions, install dates, and release digests. The list command
renders every installed package with its license, author, dependency
tree, and an indicator showing whether an update is available and
whether the installed artifact matches the registry digest.

Examples:
  # Install packages (dependencies resolved from the registry)
  pkgx install requests flask==3.0.0

  # Show the package version dashboard
  pkgx list

  # Upgrade a package to the latest version
  pkgx update requests

  # Create a virtual environment
  pkgx venv myproject

  # Keep the manifest in sync with installs made outside pkgx
  pkgx watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.pkgx/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "manifest database path (default: ~/.pkgx/pkgx.db)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// getDBPath returns the manifest path, using the flag value or default.
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	pkgxDir := filepath.Join(home, ".pkgx")
	if err := os.MkdirAll(pkgxDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create pkgx directory: %w", err)
	}

	return filepath.Join(pkgxDir, "pkgx.db"), nil
}

// openStore opens the install manifest database.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return st, nil
}

// newRegistry builds the registry client for a command run. Callers must
// Close it when the command finishes.
func newRegistry(cfg *config.Config) *registry.Registry {
	client := registry.NewClient(registry.WithTimeout(cfg.Timeout()))
	return registry.New(cfg.IndexURL, client)
}

// newResolver builds a fresh resolver for a single command invocation.
// Its metadata caches die with the command, so stale version or digest
// data never leaks across runs.
func newResolver(cfg *config.Config, st *store.Store, reg *registry.Registry) *resolver.Resolver {
	env := pip.NewEnv(cfg.CacheDir)
	return resolver.New(env, reg, st)
}
