package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Arcoson/PackageEngine/internal/venv"
)

var venvCmd = &cobra.Command{
	Use:   "venv <name>",
	Short: "Create a virtual environment",
	Long: `Create a Python virtual environment in the given directory and print
activation instructions.

Examples:
  pkgx venv myproject`,
	Args: cobra.ExactArgs(1),
	RunE: runVenv,
}

func init() {
	RootCmd.AddCommand(venvCmd)
}

func runVenv(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := venv.Create(cfg.Python, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("✓ Created virtual environment at %s\n", path)
	fmt.Println()
	fmt.Println(venv.ActivationHint(path))
	return nil
}
