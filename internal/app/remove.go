package app

import (
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Arcoson/PackageEngine/internal/pip"
)

var removeCmd = &cobra.Command{
	Use:     "remove <package>...",
	Aliases: []string{"uninstall"},
	Short:   "Uninstall packages",
	Long: `Uninstall one or more packages via pip and drop their manifest entries.

Examples:
  pkgx remove requests
  pkgx remove requests flask`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	RootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	var failures []string
	for _, arg := range args {
		name := pip.Normalize(pip.BaseName(arg))
		if err := env.Uninstall(name); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if err := st.DeleteRecord(name); err != nil {
			logger.Warnf("removed %s but failed to update manifest: %v", name, err)
		}
		fmt.Printf("✓ Removed %s\n", name)
	}

	if len(failures) > 0 {
		fmt.Printf("\n⚠ %d failures:\n", len(failures))
		for _, failure := range failures {
			fmt.Printf("  - %s\n", failure)
		}
		return fmt.Errorf("failed to remove: %s", strings.Join(failedNames(failures), ", "))
	}

	return nil
}
