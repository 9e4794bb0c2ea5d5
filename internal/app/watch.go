package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/watcher"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the manifest in sync with external pip activity",
	Long: `Watch the active site-packages directory and re-sync the pkgx manifest
whenever packages are installed or removed outside pkgx.

Runs until interrupted (Ctrl-C).

Examples:
  pkgx watch
  pkgx watch --debounce 5s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before a sync runs")
	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	env := pip.NewEnv(cfg.CacheDir)

	dir, err := env.SitePackages()
	if err != nil {
		return fmt.Errorf("failed to locate site-packages: %w", err)
	}

	sync := func() {
		added, updated, removed, err := watcher.Sync(env, st)
		if err != nil {
			logger.Warnf("manifest sync failed: %v", err)
			return
		}
		if added+updated+removed > 0 {
			fmt.Printf("✓ Synced manifest: %d added, %d updated, %d removed\n", added, updated, removed)
		}
	}

	// Reconcile once up front so the watch starts from a clean manifest
	sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", dir)

	err = watcher.New(dir, watchDebounce, sync).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
