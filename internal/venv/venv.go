// Package venv creates isolated Python environments.
package venv

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Create builds a new virtual environment at the given name (resolved to
// an absolute path) using the supplied Python interpreter. Returns the
// absolute path of the created environment.
func Create(python, name string) (string, error) {
	path, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve venv path: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("virtual environment %q already exists", name)
	}

	cmd := exec.Command(python, "-m", "venv", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s -m venv failed: %w (output: %s)", python, err, string(output))
	}

	return path, nil
}

// ActivationHint returns the shell commands to activate an environment.
func ActivationHint(path string) string {
	return fmt.Sprintf("To activate the virtual environment:\n"+
		"  Unix/macOS: source %s\n"+
		"  Windows:    %s",
		filepath.Join(path, "bin", "activate"),
		filepath.Join(path, "Scripts", "activate"))
}
