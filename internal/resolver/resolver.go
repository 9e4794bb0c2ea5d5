// Package resolver assembles per-package metadata from the local pip
// environment, the install manifest, and the package registry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/registry"
	"github.com/Arcoson/PackageEngine/internal/store"
)

var (
	// ErrNotFound means the package is not installed in the environment.
	ErrNotFound = errors.New("package not found")
	// ErrUnknown means the latest version could not be determined.
	ErrUnknown = errors.New("latest version unknown")
	// ErrMalformed means the environment returned a record missing
	// required fields.
	ErrMalformed = errors.New("malformed package metadata")
)

// DependencyRef is one dependency edge: a package name and the version
// installed in the environment (empty if the dependency is not installed).
type DependencyRef struct {
	Name    string
	Version string
}

// PackageRecord is the full metadata for one installed package, built per
// invocation and never persisted.
type PackageRecord struct {
	Name             string
	Current          string
	Latest           string
	License          string
	Author           string
	Summary          string
	InstallDate      time.Time // zero when the package was not installed via pkgx
	SecurityVerified bool
	Direct           []DependencyRef
	Transitive       []DependencyRef
}

// Environment supplies locally installed package data.
type Environment interface {
	Installed() ([]pip.InstalledPackage, error)
	Show(name string) (*pip.ShowInfo, error)
}

// Index supplies registry-side metadata.
type Index interface {
	Project(ctx context.Context, name string) (*registry.Project, error)
}

// Manifest supplies install records written by pkgx itself.
type Manifest interface {
	GetRecord(name string) (*store.Record, error)
}

// Resolver implements the package-metadata provider. Its caches live for
// one command invocation only; build a fresh Resolver per command.
type Resolver struct {
	env      Environment
	index    Index
	manifest Manifest // may be nil

	projects *lru.Cache[string, *registry.Project]

	mu    sync.Mutex // guards shown; Resolve runs concurrently per package
	shown map[string]*pip.ShowInfo
}

// New creates a Resolver. manifest may be nil when no install manifest is
// available.
func New(env Environment, index Index, manifest Manifest) *Resolver {
	projects, _ := lru.New[string, *registry.Project](256)
	return &Resolver{
		env:      env,
		index:    index,
		manifest: manifest,
		projects: projects,
		shown:    make(map[string]*pip.ShowInfo),
	}
}

// ListInstalled returns the names of all installed packages, in the order
// the environment reports them.
func (r *Resolver) ListInstalled() ([]string, error) {
	installed, err := r.env.Installed()
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	names := make([]string, len(installed))
	for i, p := range installed {
		names[i] = pip.Normalize(p.Name)
	}
	return names, nil
}

// CheckLatest returns the latest published version of a package, or
// ErrUnknown when the registry lookup fails.
func (r *Resolver) CheckLatest(ctx context.Context, name string) (string, error) {
	project, err := r.project(ctx, pip.Normalize(name))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", name, ErrUnknown, err)
	}
	if project.LatestVersion == "" {
		return "", fmt.Errorf("%s: %w", name, ErrUnknown)
	}
	return project.LatestVersion, nil
}

// Resolve builds the PackageRecord for an installed package.
// Returns ErrNotFound when the package is absent from the environment,
// ErrMalformed when the environment record is missing required fields, and
// ErrUnknown when the registry lookup fails or times out.
func (r *Resolver) Resolve(ctx context.Context, name string) (*PackageRecord, error) {
	name = pip.Normalize(name)

	info, err := r.show(name)
	if err != nil {
		if errors.Is(err, pip.ErrNotInstalled) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	if info.Name == "" || info.Version == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMalformed)
	}

	rec := &PackageRecord{
		Name:    name,
		Current: info.Version,
		License: info.License,
		Author:  info.Author,
		Summary: info.Summary,
	}

	project, err := r.project(ctx, name)
	if err != nil {
		logger.Debugf("registry lookup failed for %s: %v", name, err)
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	rec.Latest = project.LatestVersion
	if rec.License == "" {
		rec.License = project.License
	}
	if rec.Author == "" {
		rec.Author = project.Author
	}
	if rec.Summary == "" {
		rec.Summary = project.Summary
	}

	if r.manifest != nil {
		if stored, err := r.manifest.GetRecord(name); err == nil {
			rec.InstallDate = stored.InstalledAt
			if stored.SecurityHash != "" {
				rec.SecurityVerified = stored.SecurityHash == project.Digests[rec.Current]
			}
		}
	}

	rec.Direct, rec.Transitive = r.dependencies(name, info.Requires)

	return rec, nil
}

// dependencies builds the direct list from the environment's requirement
// names and the transitive list as the closure of the direct dependencies'
// own requirements. The root never appears in either list, the transitive
// list never repeats a direct dependency, and first-encounter order is
// preserved throughout.
func (r *Resolver) dependencies(root string, requires []string) (direct, transitive []DependencyRef) {
	directSet := make(map[string]bool)

	for _, dep := range requires {
		dep = pip.Normalize(pip.BaseName(dep))
		if dep == "" || dep == root || directSet[dep] {
			continue
		}
		directSet[dep] = true
		direct = append(direct, DependencyRef{Name: dep, Version: r.installedVersion(dep)})
	}

	seen := make(map[string]bool)
	queue := make([]string, 0, len(direct))
	for _, d := range direct {
		seen[d.Name] = true
		queue = append(queue, d.Name)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		info, err := r.show(current)
		if err != nil {
			// Missing sub-dependency metadata degrades that branch only
			continue
		}

		for _, dep := range info.Requires {
			dep = pip.Normalize(pip.BaseName(dep))
			if dep == "" || dep == root || seen[dep] {
				continue
			}
			seen[dep] = true
			queue = append(queue, dep)
			transitive = append(transitive, DependencyRef{Name: dep, Version: r.installedVersion(dep)})
		}
	}

	return direct, transitive
}

// installedVersion returns the installed version of a package, or ""
// when it is not installed.
func (r *Resolver) installedVersion(name string) string {
	info, err := r.show(name)
	if err != nil {
		return ""
	}
	return info.Version
}

// show memoizes environment lookups for the lifetime of the Resolver.
// The lock is dropped around the environment call so lookups for distinct
// packages still run in parallel.
func (r *Resolver) show(name string) (*pip.ShowInfo, error) {
	r.mu.Lock()
	info, ok := r.shown[name]
	r.mu.Unlock()
	if ok {
		if info == nil {
			return nil, fmt.Errorf("%s: %w", name, pip.ErrNotInstalled)
		}
		return info, nil
	}

	info, err := r.env.Show(name)
	if err != nil {
		if errors.Is(err, pip.ErrNotInstalled) {
			r.mu.Lock()
			r.shown[name] = nil
			r.mu.Unlock()
		}
		return nil, err
	}

	r.mu.Lock()
	r.shown[name] = info
	r.mu.Unlock()
	return info, nil
}

// project memoizes registry lookups for the lifetime of the Resolver.
func (r *Resolver) project(ctx context.Context, name string) (*registry.Project, error) {
	if project, ok := r.projects.Get(name); ok {
		return project, nil
	}

	project, err := r.index.Project(ctx, name)
	if err != nil {
		return nil, err
	}

	r.projects.Add(name, project)
	return project, nil
}
