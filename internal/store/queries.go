package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a package has no manifest entry.
var ErrNotFound = errors.New("package not in manifest")

// UpsertRecord inserts or replaces a manifest entry.
func (s *Store) UpsertRecord(rec *Record) error {
	query := `
		INSERT OR REPLACE INTO packages
		(name, version, installed_at, updated_at, security_hash)
		VALUES (?, ?, ?, ?, ?)
	`

	var updatedAt any
	if !rec.UpdatedAt.IsZero() {
		updatedAt = rec.UpdatedAt.Format(time.RFC3339)
	}

	_, err := s.db.Exec(query,
		rec.Name,
		rec.Version,
		rec.InstalledAt.Format(time.RFC3339),
		updatedAt,
		rec.SecurityHash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert package %s: %w", rec.Name, err)
	}

	return nil
}

// GetRecord retrieves a manifest entry by package name.
func (s *Store) GetRecord(name string) (*Record, error) {
	query := `
		SELECT name, version, installed_at, updated_at, security_hash
		FROM packages
		WHERE name = ?
	`

	var rec Record
	var installedAt string
	var updatedAt, securityHash sql.NullString

	err := s.db.QueryRow(query, name).Scan(
		&rec.Name,
		&rec.Version,
		&installedAt,
		&updatedAt,
		&securityHash,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package %s: %w", name, err)
	}

	rec.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installed_at for %s: %w", name, err)
	}
	if updatedAt.Valid && updatedAt.String != "" {
		rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at for %s: %w", name, err)
		}
	}
	rec.SecurityHash = securityHash.String

	return &rec, nil
}

// DeleteRecord removes a manifest entry. Deleting a missing entry is not
// an error.
func (s *Store) DeleteRecord(name string) error {
	_, err := s.db.Exec(`DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete package %s: %w", name, err)
	}
	return nil
}

// ListRecords returns all manifest entries ordered by name.
func (s *Store) ListRecords() ([]*Record, error) {
	query := `
		SELECT name, version, installed_at, updated_at, security_hash
		FROM packages
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var installedAt string
		var updatedAt, securityHash sql.NullString

		if err := rows.Scan(&rec.Name, &rec.Version, &installedAt, &updatedAt, &securityHash); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}

		rec.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse installed_at for %s: %w", rec.Name, err)
		}
		if updatedAt.Valid && updatedAt.String != "" {
			rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse updated_at for %s: %w", rec.Name, err)
			}
		}
		rec.SecurityHash = securityHash.String

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate package rows: %w", err)
	}

	return records, nil
}
