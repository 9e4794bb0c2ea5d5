package app

import (
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/store"
)

var updateCmd = &cobra.Command{
	Use:     "update <package>...",
	Aliases: []string{"upgrade"},
	Short:   "Upgrade packages to their latest versions",
	Long: `Upgrade one or more installed packages to the latest release and
refresh their manifest entries.

Packages already at the latest known version are reported and skipped.

Examples:
  pkgx update requests
  pkgx update requests flask`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func init() {
	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
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
	ctx := cmd.Context()

	var failures []string
	for _, arg := range args {
		name := pip.Normalize(pip.BaseName(arg))

		before, err := env.Show(name)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		latest, err := reg.CheckLatest(ctx, name)
		if err == nil && latest == before.Version {
			fmt.Printf("✓ %s is already at the latest version (%s)\n", name, before.Version)
			continue
		}

		if err := env.Upgrade(name); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		after, err := env.Show(name)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: upgraded but could not determine version: %v", name, err))
			continue
		}

		if after.Version == before.Version {
			fmt.Printf("✓ %s is already at the latest version (%s)\n", name, after.Version)
			continue
		}

		now := time.Now()
		rec := &store.Record{
			Name:        name,
			Version:     after.Version,
			InstalledAt: now,
			UpdatedAt:   now,
		}
		if existing, err := st.GetRecord(name); err == nil {
			rec.InstalledAt = existing.InstalledAt
		}
		if project, err := reg.Project(ctx, name); err == nil {
			rec.SecurityHash = project.Digests[after.Version]
		}
		if err := st.UpsertRecord(rec); err != nil {
			logger.Warnf("upgraded %s but failed to update manifest: %v", name, err)
		}

		fmt.Printf("✓ Updated %s %s → %s\n", name, before.Version, after.Version)
	}

	if len(failures) > 0 {
		fmt.Printf("\n⚠ %d failures:\n", len(failures))
		for _, failure := range failures {
			fmt.Printf("  - %s\n", failure)
		}
		return fmt.Errorf("failed to update: %s", strings.Join(failedNames(failures), ", "))
	}

	return nil
}
