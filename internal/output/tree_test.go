package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Arcoson/PackageEngine/internal/resolver"
)

func requestsRecord() *resolver.PackageRecord {
	return &resolver.PackageRecord{
		Name:        "requests",
		Current:     "2.32.3",
		Latest:      "2.32.3",
		License:     "Apache-2.0",
		Author:      "Kenneth Reitz",
		Summary:     "Python HTTP for Humans.",
		InstallDate: time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC),
		Direct: []resolver.DependencyRef{
			{Name: "certifi", Version: "2025.1.31"},
			{Name: "charset-normalizer", Version: "3.4.1"},
			{Name: "idna", Version: "3.10"},
			{Name: "urllib3", Version: "2.3.0"},
		},
	}
}

func resolveFromMap(records map[string]*resolver.PackageRecord, errs map[string]error) ResolveFunc {
	return func(ctx context.Context, name string) (*resolver.PackageRecord, error) {
		if err, ok := errs[name]; ok {
			return nil, err
		}
		if rec, ok := records[name]; ok {
			return rec, nil
		}
		return nil, fmt.Errorf("%s: %w", name, resolver.ErrNotFound)
	}
}

func render(t *testing.T, names []string, resolve ResolveFunc, opts DashboardOptions) string {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	if err := RenderDashboard(context.Background(), &buf, names, resolve, opts); err != nil {
		t.Fatalf("RenderDashboard() error = %v", err)
	}
	return buf.String()
}

func TestRenderDashboardUpToDatePackage(t *testing.T) {
	resolve := resolveFromMap(map[string]*resolver.PackageRecord{"requests": requestsRecord()}, nil)

	got := render(t, []string{"requests"}, resolve, DashboardOptions{})

	want := `✓ requests
├── Current: 2.32.3
├── License: Apache-2.0
├── Author: Kenneth Reitz
├── Summary: Python HTTP for Humans.
├── Installed: 2025-02-16
└── Dependencies
    ├── Direct
    │   ├── certifi (2025.1.31)
    │   ├── charset-normalizer (3.4.1)
    │   ├── idna (3.10)
    │   └── urllib3 (2.3.0)
    └── Transitive
`

	if got != want {
		t.Errorf("RenderDashboard() mismatch\nGot:\n%s\nWant:\n%s", got, want)
	}
}

func TestRenderDashboardUpdateAvailable(t *testing.T) {
	rec := requestsRecord()
	rec.Name = "numpy"
	rec.Current = "1.26.0"
	rec.Latest = "2.1.0"

	resolve := resolveFromMap(map[string]*resolver.PackageRecord{"numpy": rec}, nil)
	got := render(t, []string{"numpy"}, resolve, DashboardOptions{})

	if !strings.HasPrefix(got, "↑ numpy\n") {
		t.Errorf("expected update-available glyph, got:\n%s", got)
	}
	if !strings.Contains(got, "├── Current: 1.26.0\n") {
		t.Errorf("missing Current line:\n%s", got)
	}
	if !strings.Contains(got, "├── Latest: 2.1.0\n") {
		t.Errorf("missing Latest line:\n%s", got)
	}
}

func TestRenderDashboardLatestOmittedWhenEqual(t *testing.T) {
	resolve := resolveFromMap(map[string]*resolver.PackageRecord{"requests": requestsRecord()}, nil)
	got := render(t, []string{"requests"}, resolve, DashboardOptions{})

	if strings.Contains(got, "Latest:") {
		t.Errorf("Latest line should be omitted when current == latest:\n%s", got)
	}
}

func TestRenderDashboardSecurityVerified(t *testing.T) {
	rec := requestsRecord()
	rec.SecurityVerified = true

	resolve := resolveFromMap(map[string]*resolver.PackageRecord{"requests": rec}, nil)
	got := render(t, []string{"requests"}, resolve, DashboardOptions{})

	if !strings.HasPrefix(got, "✓ 🔒 requests\n") {
		t.Errorf("expected security glyph on status line, got:\n%s", got)
	}
}

func TestRenderDashboardNotFound(t *testing.T) {
	resolve := resolveFromMap(nil, nil)
	got := render(t, []string{"ghost-pkg"}, resolve, DashboardOptions{})

	// Exactly one line: indicator and name, no attribute or dependency lines
	if got != "? ghost-pkg\n" {
		t.Errorf("RenderDashboard() = %q, want %q", got, "? ghost-pkg\n")
	}
}

func TestRenderDashboardResolverFault(t *testing.T) {
	resolve := resolveFromMap(nil, map[string]error{
		"broken": errors.New("pip metadata corrupted\nsecond line"),
	})
	got := render(t, []string{"broken"}, resolve, DashboardOptions{})

	if !strings.HasPrefix(got, "! broken: ") {
		t.Errorf("expected error indicator line, got:\n%s", got)
	}
	if strings.Count(got, "\n") != 1 {
		t.Errorf("error entry must be a single line, got:\n%q", got)
	}
}

func TestRenderDashboardContinuesAfterFailures(t *testing.T) {
	records := map[string]*resolver.PackageRecord{"requests": requestsRecord()}
	errs := map[string]error{"broken": errors.New("boom")}

	got := render(t, []string{"broken", "ghost-pkg", "requests"}, resolveFromMap(records, errs), DashboardOptions{})

	// One top-level entry per requested name, in request order
	wantOrder := []string{"! broken", "? ghost-pkg", "✓ requests"}
	lastIdx := -1
	for _, marker := range wantOrder {
		idx := strings.Index(got, marker)
		if idx < 0 {
			t.Fatalf("missing entry %q in output:\n%s", marker, got)
		}
		if idx < lastIdx {
			t.Errorf("entry %q out of order in output:\n%s", marker, got)
		}
		lastIdx = idx
	}
}

func TestRenderDashboardOrderPreservedWithParallelLookups(t *testing.T) {
	records := make(map[string]*resolver.PackageRecord)
	var names []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("pkg-%02d", i)
		names = append(names, name)
		records[name] = &resolver.PackageRecord{Name: name, Current: "1.0.0", Latest: "1.0.0"}
	}

	// Resolution completes in scrambled order; rendered order must not change
	resolve := func(ctx context.Context, name string) (*resolver.PackageRecord, error) {
		if strings.HasSuffix(name, "0") {
			time.Sleep(5 * time.Millisecond)
		}
		return records[name], nil
	}

	got := render(t, names, resolve, DashboardOptions{Parallelism: 4})

	lastIdx := -1
	for _, name := range names {
		idx := strings.Index(got, "✓ "+name+"\n")
		if idx < 0 {
			t.Fatalf("missing entry for %s:\n%s", name, got)
		}
		if idx < lastIdx {
			t.Errorf("entry %s rendered out of order", name)
		}
		lastIdx = idx
	}
}

func TestRenderDashboardTimeoutDegradesSingleEntry(t *testing.T) {
	records := map[string]*resolver.PackageRecord{"fast": {Name: "fast", Current: "1.0.0"}}
	resolve := func(ctx context.Context, name string) (*resolver.PackageRecord, error) {
		if name == "slow" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
		return records[name], nil
	}

	got := render(t, []string{"slow", "fast"}, resolve, DashboardOptions{
		Parallelism: 2,
		Timeout:     10 * time.Millisecond,
	})

	if !strings.Contains(got, "! slow: ") {
		t.Errorf("timed-out entry should degrade to error indicator:\n%s", got)
	}
	if !strings.Contains(got, "✓ fast\n") {
		t.Errorf("other entries must be unaffected by the timeout:\n%s", got)
	}
}

func TestRenderDashboardIdempotent(t *testing.T) {
	records := map[string]*resolver.PackageRecord{"requests": requestsRecord()}
	resolve := resolveFromMap(records, nil)
	names := []string{"requests", "ghost-pkg"}

	first := render(t, names, resolve, DashboardOptions{})
	second := render(t, names, resolve, DashboardOptions{})

	if first != second {
		t.Errorf("rendering is not idempotent:\n%s\nvs\n%s", first, second)
	}
}

func TestRenderDashboardTransitiveSubgroup(t *testing.T) {
	rec := &resolver.PackageRecord{
		Name:    "app",
		Current: "1.0.0",
		Latest:  "1.0.0",
		Direct: []resolver.DependencyRef{
			{Name: "liba", Version: "0.1.0"},
		},
		Transitive: []resolver.DependencyRef{
			{Name: "libc", Version: "0.3.0"},
			{Name: "libd"},
		},
	}

	resolve := resolveFromMap(map[string]*resolver.PackageRecord{"app": rec}, nil)
	got := render(t, []string{"app"}, resolve, DashboardOptions{})

	want := `    └── Transitive
        ├── libc (0.3.0)
        └── libd
`
	if !strings.Contains(got, want) {
		t.Errorf("transitive subgroup mismatch\nGot:\n%s\nWant fragment:\n%s", got, want)
	}
}
