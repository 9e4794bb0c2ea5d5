package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/Arcoson/PackageEngine/internal/output"
	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/registry"
	"github.com/Arcoson/PackageEngine/internal/store"
)

var installCmd = &cobra.Command{
	Use:   "install <package[==version]>...",
	Short: "Install packages and their dependencies",
	Long: `Install one or more packages via pip.

Dependencies declared by each package are resolved from the registry and
installed alongside it. Installed versions, install dates, and release
digests are recorded in the pkgx manifest for later verification by the
list command.

Examples:
  pkgx install requests
  pkgx install requests==2.32.3 flask`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	RootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	reg := newRegistry(cfg)
	defer reg.Close()

	env := pip.NewEnv(cfg.CacheDir)

	specs := expandSpecs(cmd.Context(), reg, args)
	fmt.Printf("Installing %d packages (including dependencies)\n", len(specs))

	failures := installAll(cmd.Context(), env, reg, st, specs, cfg.Parallelism)

	installed := len(specs) - len(failures)
	if installed > 0 {
		fmt.Printf("\n✓ Installed %d packages\n", installed)
	}

	if len(failures) > 0 {
		fmt.Printf("\n⚠ %d failures:\n", len(failures))
		for _, failure := range failures {
			fmt.Printf("  - %s\n", failure)
		}
		return fmt.Errorf("failed to install: %s", strings.Join(failedNames(failures), ", "))
	}

	return nil
}

// expandSpecs returns the requested specs plus the dependency names each
// one declares in the registry, deduplicated, requested packages first.
// A failed dependency lookup degrades to installing just the requested
// spec; pip resolves the rest.
func expandSpecs(ctx context.Context, reg *registry.Registry, args []string) []string {
	var specs []string
	seen := make(map[string]bool)

	add := func(spec string) {
		name := pip.Normalize(pip.BaseName(spec))
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		specs = append(specs, spec)
	}

	for _, arg := range args {
		add(arg)
	}

	for _, arg := range args {
		project, err := reg.Project(ctx, pip.Normalize(pip.BaseName(arg)))
		if err != nil {
			logger.Warnf("could not resolve dependencies for %s: %v", arg, err)
			continue
		}
		for _, dep := range project.Requires {
			add(dep)
		}
	}

	return specs
}

// installAll installs specs concurrently with a bounded worker pool and
// records each success in the manifest. Returns failure descriptions.
func installAll(ctx context.Context, env *pip.Env, reg *registry.Registry, st *store.Store, specs []string, parallelism int) []string {
	if parallelism < 1 {
		parallelism = 1
	}

	progress := output.NewProgress(len(specs), "Installing packages")
	sem := semaphore.NewWeighted(int64(parallelism))

	var mu sync.Mutex
	var failures []string
	var wg sync.WaitGroup

	for _, spec := range specs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			failures = append(failures, fmt.Sprintf("%s: %v", spec, err))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(spec string) {
			defer wg.Done()
			defer sem.Release(1)
			defer progress.Increment()

			if err := installOne(ctx, env, reg, st, spec); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", spec, err))
				mu.Unlock()
			}
		}(spec)
	}

	wg.Wait()
	progress.Finish()

	sort.Strings(failures)
	return failures
}

// installOne installs a single spec and records the manifest entry.
func installOne(ctx context.Context, env *pip.Env, reg *registry.Registry, st *store.Store, spec string) error {
	if err := env.Install(spec); err != nil {
		return err
	}

	name := pip.Normalize(pip.BaseName(spec))
	info, err := env.Show(name)
	if err != nil {
		return fmt.Errorf("installed but could not determine version: %w", err)
	}

	rec := &store.Record{
		Name:        name,
		Version:     info.Version,
		InstalledAt: time.Now(),
	}

	if project, err := reg.Project(ctx, name); err == nil {
		rec.SecurityHash = project.Digests[info.Version]
	} else {
		logger.Debugf("no registry digest for %s: %v", name, err)
	}

	if err := st.UpsertRecord(rec); err != nil {
		// Non-fatal: the package is installed, only bookkeeping failed
		logger.Warnf("installed %s but failed to update manifest: %v", name, err)
	}

	return nil
}

// failedNames extracts package names from "name: reason" failure lines.
func failedNames(failures []string) []string {
	names := make([]string, len(failures))
	for i, failure := range failures {
		names[i], _, _ = strings.Cut(failure, ":")
	}
	return names
}
