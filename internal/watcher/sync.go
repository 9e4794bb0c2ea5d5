package watcher

import (
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/store"
)

// Lister provides the current set of installed packages.
type Lister interface {
	Installed() ([]pip.InstalledPackage, error)
}

// Manifest is the store surface the watcher reconciles.
type Manifest interface {
	ListRecords() ([]*store.Record, error)
	UpsertRecord(rec *store.Record) error
	DeleteRecord(name string) error
}

// Sync reconciles the manifest with the environment: packages installed
// outside pkgx are added, version changes are recorded, and removed
// packages are dropped. Returns the number of added, updated, and
// removed manifest entries.
func Sync(env Lister, manifest Manifest) (added, updated, removed int, err error) {
	installed, err := env.Installed()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to list installed packages: %w", err)
	}

	records, err := manifest.ListRecords()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to list manifest entries: %w", err)
	}

	known := make(map[string]*store.Record, len(records))
	for _, rec := range records {
		known[rec.Name] = rec
	}

	now := time.Now()
	current := make(map[string]bool, len(installed))

	for _, p := range installed {
		name := pip.Normalize(p.Name)
		current[name] = true

		rec, exists := known[name]
		switch {
		case !exists:
			if err := manifest.UpsertRecord(&store.Record{
				Name:        name,
				Version:     p.Version,
				InstalledAt: now,
			}); err != nil {
				return added, updated, removed, err
			}
			added++

		case rec.Version != p.Version:
			rec.Version = p.Version
			rec.UpdatedAt = now
			// Hash recorded at install time no longer matches this version
			rec.SecurityHash = ""
			if err := manifest.UpsertRecord(rec); err != nil {
				return added, updated, removed, err
			}
			updated++
		}
	}

	for name := range known {
		if !current[name] {
			if err := manifest.DeleteRecord(name); err != nil {
				return added, updated, removed, err
			}
			removed++
		}
	}

	if added+updated+removed > 0 {
		logger.Infof("manifest synced: %d added, %d updated, %d removed", added, updated, removed)
	}

	return added, updated, removed, nil
}
