package watcher

import (
	"testing"
	"time"

	"github.com/Arcoson/PackageEngine/internal/pip"
	"github.com/Arcoson/PackageEngine/internal/store"
)

type stubLister struct {
	packages []pip.InstalledPackage
}

func (s *stubLister) Installed() ([]pip.InstalledPackage, error) {
	return s.packages, nil
}

type fakeManifest struct {
	records map[string]*store.Record
}

func newFakeManifest(records ...*store.Record) *fakeManifest {
	m := &fakeManifest{records: make(map[string]*store.Record)}
	for _, rec := range records {
		m.records[rec.Name] = rec
	}
	return m
}

func (m *fakeManifest) ListRecords() ([]*store.Record, error) {
	var out []*store.Record
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *fakeManifest) UpsertRecord(rec *store.Record) error {
	m.records[rec.Name] = rec
	return nil
}

func (m *fakeManifest) DeleteRecord(name string) error {
	delete(m.records, name)
	return nil
}

func TestSyncAddsNewPackages(t *testing.T) {
	env := &stubLister{packages: []pip.InstalledPackage{
		{Name: "requests", Version: "2.32.3"},
	}}
	manifest := newFakeManifest()

	added, updated, removed, err := Sync(env, manifest)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if added != 1 || updated != 0 || removed != 0 {
		t.Errorf("Sync() = (%d, %d, %d), want (1, 0, 0)", added, updated, removed)
	}

	rec, ok := manifest.records["requests"]
	if !ok {
		t.Fatal("requests not added to manifest")
	}
	if rec.Version != "2.32.3" {
		t.Errorf("Version = %q, want 2.32.3", rec.Version)
	}
}

func TestSyncUpdatesChangedVersions(t *testing.T) {
	env := &stubLister{packages: []pip.InstalledPackage{
		{Name: "numpy", Version: "2.1.0"},
	}}
	manifest := newFakeManifest(&store.Record{
		Name:         "numpy",
		Version:      "1.26.0",
		InstalledAt:  time.Now().Add(-24 * time.Hour),
		SecurityHash: "stale",
	})

	added, updated, removed, err := Sync(env, manifest)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if added != 0 || updated != 1 || removed != 0 {
		t.Errorf("Sync() = (%d, %d, %d), want (0, 1, 0)", added, updated, removed)
	}

	rec := manifest.records["numpy"]
	if rec.Version != "2.1.0" {
		t.Errorf("Version = %q, want 2.1.0", rec.Version)
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
	if rec.SecurityHash != "" {
		t.Errorf("SecurityHash = %q, want cleared", rec.SecurityHash)
	}
}

func TestSyncRemovesGonePackages(t *testing.T) {
	env := &stubLister{}
	manifest := newFakeManifest(&store.Record{
		Name:        "left-pad",
		Version:     "1.0.0",
		InstalledAt: time.Now(),
	})

	added, updated, removed, err := Sync(env, manifest)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if added != 0 || updated != 0 || removed != 1 {
		t.Errorf("Sync() = (%d, %d, %d), want (0, 0, 1)", added, updated, removed)
	}
	if _, ok := manifest.records["left-pad"]; ok {
		t.Error("left-pad should have been removed from manifest")
	}
}

func TestSyncNormalizesNames(t *testing.T) {
	env := &stubLister{packages: []pip.InstalledPackage{
		{Name: "Charset_Normalizer", Version: "3.4.1"},
	}}
	manifest := newFakeManifest(&store.Record{
		Name:        "charset-normalizer",
		Version:     "3.4.1",
		InstalledAt: time.Now(),
	})

	added, updated, removed, err := Sync(env, manifest)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if added != 0 || updated != 0 || removed != 0 {
		t.Errorf("Sync() = (%d, %d, %d), want no changes", added, updated, removed)
	}
}
