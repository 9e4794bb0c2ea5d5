package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Arcoson/PackageEngine/internal/resolver"
)

// Box-drawing connectors. Every non-last sibling uses the branch
// connector, the last sibling uses the corner connector, and ancestors
// that still have following siblings contribute a continuation bar.
const (
	connectorBranch = "├── "
	connectorCorner = "└── "
	continuationBar = "│   "
	indentBlank     = "    "
)

// ResolveFunc looks up the metadata for one package name.
type ResolveFunc func(ctx context.Context, name string) (*resolver.PackageRecord, error)

// DashboardOptions controls metadata lookup behavior for RenderDashboard.
type DashboardOptions struct {
	// Parallelism bounds concurrent lookups. Values below 1 mean
	// sequential resolution.
	Parallelism int
	// Timeout limits each package lookup. Zero means no per-package
	// timeout. A timed-out lookup degrades to an error entry for that
	// package only.
	Timeout time.Duration
}

type entryResult struct {
	record *resolver.PackageRecord
	err    error
}

// RenderDashboard resolves each requested package and writes the version
// dashboard to w. Output entries appear in the same order as names
// regardless of lookup completion order. A package that cannot be
// resolved renders as a single indicator line; it never aborts the batch.
func RenderDashboard(ctx context.Context, w io.Writer, names []string, resolve ResolveFunc, opts DashboardOptions) error {
	results := resolveAll(ctx, names, resolve, opts)

	for i, name := range names {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, renderEntry(name, results[i])); err != nil {
			return err
		}
	}

	return nil
}

// resolveAll performs the metadata lookups, optionally in parallel.
// results[i] always corresponds to names[i].
func resolveAll(ctx context.Context, names []string, resolve ResolveFunc, opts DashboardOptions) []entryResult {
	results := make([]entryResult, len(names))

	resolveOne := func(i int, name string) {
		lookupCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		rec, err := resolve(lookupCtx, name)
		results[i] = entryResult{record: rec, err: err}
	}

	if opts.Parallelism <= 1 {
		for i, name := range names {
			resolveOne(i, name)
		}
		return results
	}

	sem := semaphore.NewWeighted(int64(opts.Parallelism))
	var wg sync.WaitGroup
	for i, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = entryResult{err: err}
			continue
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer sem.Release(1)
			resolveOne(i, name)
		}(i, name)
	}
	wg.Wait()

	return results
}

// renderEntry produces the dashboard text for one package.
func renderEntry(name string, res entryResult) string {
	if res.err != nil {
		if errors.Is(res.err, resolver.ErrNotFound) {
			return fmt.Sprintf("%s %s\n", StatusNotFound.Glyph(), name)
		}
		return fmt.Sprintf("%s %s: %s\n", StatusError.Glyph(), name, oneLine(res.err.Error()))
	}

	rec := res.record
	var sb strings.Builder

	// Status line: version glyph, optional security glyph, package name
	status := StatusFor(rec.Current, rec.Latest)
	sb.WriteString(status.Glyph())
	if rec.SecurityVerified {
		sb.WriteString(" " + colorize(colorGreen, GlyphSecurityOK))
	}
	sb.WriteString(" " + rec.Name + "\n")

	children := buildEntryNodes(rec, status)
	for i, child := range children {
		renderNode(&sb, child, "", i == len(children)-1)
	}

	return sb.String()
}

// node is one line of the rendered tree.
type node struct {
	label    string
	children []*node
}

// buildEntryNodes maps a PackageRecord to its ordered attribute and
// dependency nodes. This is the only place display structure is decided.
func buildEntryNodes(rec *resolver.PackageRecord, status Status) []*node {
	nodes := []*node{
		{label: "Current: " + orDash(rec.Current)},
	}

	if status == StatusUpdateAvailable {
		nodes = append(nodes, &node{label: "Latest: " + rec.Latest})
	}

	nodes = append(nodes,
		&node{label: "License: " + orDash(rec.License)},
		&node{label: "Author: " + orDash(rec.Author)},
		&node{label: "Summary: " + orDash(rec.Summary)},
		&node{label: "Installed: " + formatDate(rec.InstallDate)},
	)

	deps := &node{label: "Dependencies"}
	direct := &node{label: "Direct"}
	for _, ref := range rec.Direct {
		direct.children = append(direct.children, &node{label: formatDependency(ref)})
	}
	transitive := &node{label: "Transitive"}
	for _, ref := range rec.Transitive {
		transitive.children = append(transitive.children, &node{label: formatDependency(ref)})
	}
	deps.children = []*node{direct, transitive}

	return append(nodes, deps)
}

// renderNode writes a node and its children with box-drawing connectors.
func renderNode(sb *strings.Builder, n *node, prefix string, last bool) {
	connector := connectorBranch
	if last {
		connector = connectorCorner
	}
	sb.WriteString(prefix + connector + n.label + "\n")

	childPrefix := prefix + continuationBar
	if last {
		childPrefix = prefix + indentBlank
	}
	for i, child := range n.children {
		renderNode(sb, child, childPrefix, i == len(n.children)-1)
	}
}

// formatDependency renders a dependency reference as "name (version)",
// or just the name when the installed version is unknown.
func formatDependency(ref resolver.DependencyRef) string {
	if ref.Version == "" {
		return ref.Name
	}
	return fmt.Sprintf("%s (%s)", ref.Name, ref.Version)
}

// formatDate renders an install date, or an em dash when unknown.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("2006-01-02")
}

// orDash substitutes an em dash for empty attribute values.
func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// oneLine collapses a multi-line error message into a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
