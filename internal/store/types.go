package store

import "time"

// Record is one manifest entry: a package pkgx has installed or updated.
type Record struct {
	Name         string
	Version      string
	InstalledAt  time.Time
	UpdatedAt    time.Time // zero if never updated
	SecurityHash string    // sha256 digest recorded at install time, may be empty
}
