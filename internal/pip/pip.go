// Package pip shells out to the pip binary and parses its output.
package pip

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ErrNotInstalled is returned when pip has no record of a package.
var ErrNotInstalled = errors.New("package not installed")

// InstalledPackage represents one entry of `pip list --format=json` output.
type InstalledPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ShowInfo represents the fields of `pip show` output that pkgx consumes.
type ShowInfo struct {
	Name     string
	Version  string
	Summary  string
	Author   string
	License  string
	Location string
	Requires []string
}

// Env runs pip commands against the active Python environment.
type Env struct {
	// Binary is the pip executable to invoke. Defaults to "pip".
	Binary string
	// CacheDir, when set, is passed to install commands via --cache-dir.
	CacheDir string
}

// NewEnv returns an Env using the default pip binary.
func NewEnv(cacheDir string) *Env {
	return &Env{Binary: "pip", CacheDir: cacheDir}
}

func (e *Env) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return "pip"
}

// Installed returns all packages pip knows about, in pip's own order.
func (e *Env) Installed() ([]InstalledPackage, error) {
	cmd := exec.Command(e.binary(), "list", "--format=json", "--disable-pip-version-check")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("pip list failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("pip list failed: %w", err)
	}

	return parseListOutput(output)
}

// Show returns detailed metadata for an installed package.
// Returns ErrNotInstalled if pip has no record of the package.
func (e *Env) Show(name string) (*ShowInfo, error) {
	cmd := exec.Command(e.binary(), "show", "--disable-pip-version-check", name)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// pip show exits 1 when the package is not installed
			if exitErr.ExitCode() == 1 {
				return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
			}
			return nil, fmt.Errorf("pip show failed for %s: %w (stderr: %s)", name, err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("pip show failed for %s: %w", name, err)
	}

	info := parseShowOutput(string(output))
	if info.Name == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	return info, nil
}

// Install installs a package spec (name or name==version).
// On an externally-managed environment the command is retried once with
// --break-system-packages.
func (e *Env) Install(spec string) error {
	args := []string{"install", "--user", "--disable-pip-version-check"}
	if e.CacheDir != "" {
		args = append(args, "--cache-dir", e.CacheDir)
	}
	args = append(args, spec)
	return e.runWithManagedRetry(args, fmt.Sprintf("pip install %s", spec))
}

// Upgrade upgrades an installed package to the latest compatible version.
func (e *Env) Upgrade(name string) error {
	args := []string{"install", "--upgrade", "--user", "--disable-pip-version-check"}
	if e.CacheDir != "" {
		args = append(args, "--cache-dir", e.CacheDir)
	}
	args = append(args, name)
	return e.runWithManagedRetry(args, fmt.Sprintf("pip install --upgrade %s", name))
}

// Uninstall removes a package via pip uninstall.
func (e *Env) Uninstall(name string) error {
	args := []string{"uninstall", "-y", "--disable-pip-version-check", name}
	return e.runWithManagedRetry(args, fmt.Sprintf("pip uninstall %s", name))
}

// runWithManagedRetry runs a pip command, retrying once with
// --break-system-packages when pip refuses to touch an externally-managed
// environment (PEP 668).
func (e *Env) runWithManagedRetry(args []string, desc string) error {
	cmd := exec.Command(e.binary(), args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if strings.Contains(string(output), "externally-managed-environment") {
		retry := exec.Command(e.binary(), append(args, "--break-system-packages")...)
		retryOutput, retryErr := retry.CombinedOutput()
		if retryErr != nil {
			return fmt.Errorf("%s failed: %w (output: %s)", desc, retryErr, string(retryOutput))
		}
		return nil
	}

	return fmt.Errorf("%s failed: %w (output: %s)", desc, err, string(output))
}

// parseListOutput parses `pip list --format=json` output.
func parseListOutput(output []byte) ([]InstalledPackage, error) {
	var packages []InstalledPackage
	if err := json.Unmarshal(output, &packages); err != nil {
		return nil, fmt.Errorf("failed to parse pip list output: %w", err)
	}
	return packages, nil
}

// parseShowOutput parses the "Key: value" lines of `pip show` output.
func parseShowOutput(output string) *ShowInfo {
	info := &ShowInfo{}

	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			info.Name = value
		case "Version":
			info.Version = value
		case "Summary":
			info.Summary = value
		case "Author":
			info.Author = value
		case "License":
			info.License = value
		case "Location":
			info.Location = value
		case "Requires":
			if value == "" {
				continue
			}
			for _, dep := range strings.Split(value, ",") {
				dep = strings.TrimSpace(dep)
				if dep != "" {
					info.Requires = append(info.Requires, dep)
				}
			}
		}
	}

	return info
}

// ParseSpec splits a package spec into name and pinned version.
// "requests==2.32.3" yields ("requests", "2.32.3"); a bare name yields
// an empty version.
func ParseSpec(spec string) (name, version string) {
	if n, v, found := strings.Cut(spec, "=="); found {
		return strings.TrimSpace(n), strings.TrimSpace(v)
	}
	return strings.TrimSpace(spec), ""
}

// BaseName extracts the bare package name from a requirement spec,
// stripping extras, environment markers, and version constraints.
// "requests[socks]>=2.0; python_version > '3.8'" yields "requests".
func BaseName(spec string) string {
	name := spec
	for _, sep := range []string{";", "[", "("} {
		if idx := strings.Index(name, sep); idx >= 0 {
			name = name[:idx]
		}
	}
	for _, sep := range []string{"<", ">", "=", "!", "~"} {
		if idx := strings.Index(name, sep); idx >= 0 {
			name = name[:idx]
		}
	}
	return strings.TrimSpace(name)
}

// Runs of separators collapse to a single dash per PEP 503
var separatorRuns = regexp.MustCompile(`[-_.]+`)

// Normalize lowercases a package name and folds separators per PEP 503,
// so "Charset_Normalizer" and "charset-normalizer" compare equal.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return separatorRuns.ReplaceAllString(name, "-")
}

// SitePackages returns the site-packages directory of the environment
// that pip manages, resolved from `pip show pip`.
func (e *Env) SitePackages() (string, error) {
	info, err := e.Show("pip")
	if err != nil {
		return "", fmt.Errorf("failed to locate site-packages: %w", err)
	}
	if info.Location == "" {
		return "", fmt.Errorf("pip reported no install location")
	}
	return info.Location, nil
}
