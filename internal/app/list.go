package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Arcoson/PackageEngine/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list [packages...]",
	Short: "Render the package version dashboard",
	Long: `Render the package version dashboard for installed packages.

Each entry shows the installed and latest versions, license, author,
summary, install date, and the direct and transitive dependency tree.

Indicators:
  ✓   installed version is the latest release
  ↑   a newer release is available
  🔒  installed artifact matches the registry sha256 digest
  ?   package not found in the environment
  !   metadata lookup failed for that package

With no arguments, all installed packages are listed. A package that
cannot be resolved never aborts the dashboard; only a failure to list
installed packages at all is fatal.`,
	RunE: runList,
}

func init() {
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	res := newResolver(cfg, st, reg)

	names := args
	if len(names) == 0 {
		names, err = res.ListInstalled()
		if err != nil {
			return fmt.Errorf("failed to obtain installed package list: %w", err)
		}
	}

	if len(names) == 0 {
		fmt.Println("No packages installed.")
		return nil
	}

	return output.RenderDashboard(cmd.Context(), os.Stdout, names, res.Resolve, output.DashboardOptions{
		Parallelism: cfg.Parallelism,
		Timeout:     cfg.Timeout(),
	})
}
