package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultURL is the canonical PyPI endpoint.
const DefaultURL = "https://pypi.org"

// Project holds the registry-side metadata pkgx needs for one package.
type Project struct {
	Name          string
	Summary       string
	Author        string
	License       string
	LatestVersion string
	// Requires lists the runtime dependency names declared by the latest
	// release, in declaration order, with optional (extra) requirements
	// filtered out.
	Requires []string
	// Digests maps version number to the sha256 digest of the first
	// release file, when the registry publishes one.
	Digests map[string]string
}

// Registry is a PyPI JSON API client.
type Registry struct {
	baseURL string
	client  *Client
}

// New creates a Registry. An empty baseURL selects pypi.org.
func New(baseURL string, client *Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Close releases the underlying client's background resources.
func (r *Registry) Close() {
	r.client.Close()
}

type projectResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name              string   `json:"name"`
	Summary           string   `json:"summary"`
	Author            string   `json:"author"`
	AuthorEmail       string   `json:"author_email"`
	License           string   `json:"license"`
	LicenseExpression string   `json:"license_expression"`
	Version           string   `json:"version"`
	Classifiers       []string `json:"classifiers"`
	RequiresDist      []string `json:"requires_dist"`
}

type releaseFile struct {
	Digests map[string]string `json:"digests"`
	Yanked  bool              `json:"yanked"`
}

// Project fetches the registry metadata for a package.
// Returns ErrNotFound for names the registry does not know.
func (r *Registry) Project(ctx context.Context, name string) (*Project, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", r.baseURL, name)

	var resp projectResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	digests := make(map[string]string, len(resp.Releases))
	for version, files := range resp.Releases {
		if len(files) == 0 {
			continue
		}
		if sha, ok := files[0].Digests["sha256"]; ok {
			digests[version] = sha
		}
	}

	return &Project{
		Name:          strings.ToLower(resp.Info.Name),
		Summary:       resp.Info.Summary,
		Author:        extractAuthor(resp.Info),
		License:       extractLicense(resp.Info),
		LatestVersion: latestRelease(resp),
		Requires:      parseRequires(resp.Info.RequiresDist),
		Digests:       digests,
	}, nil
}

// latestRelease picks the highest semver-parseable, non-yanked release.
// Falls back to info.version when no release number parses.
func latestRelease(resp projectResponse) string {
	var best *semver.Version
	var bestRaw string

	for number, files := range resp.Releases {
		if len(files) > 0 && files[0].Yanked {
			continue
		}
		v, err := semver.NewVersion(number)
		if err != nil {
			continue
		}
		// Skip pre-releases when picking the latest stable
		if v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = number
		}
	}

	if bestRaw != "" {
		return bestRaw
	}
	return resp.Info.Version
}

func extractAuthor(info infoBlock) string {
	if info.Author != "" {
		return info.Author
	}
	// Some projects only publish "Name <email>" in author_email
	if info.AuthorEmail != "" {
		if name, _, found := strings.Cut(info.AuthorEmail, "<"); found {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func extractLicense(info infoBlock) string {
	if info.LicenseExpression != "" {
		return info.LicenseExpression
	}
	if info.License != "" {
		return info.License
	}

	for _, classifier := range info.Classifiers {
		if strings.HasPrefix(classifier, "License :: ") {
			parts := strings.Split(classifier, " :: ")
			if len(parts) > 0 {
				return parts[len(parts)-1]
			}
		}
	}

	return ""
}

var pep508NameRegex = regexp.MustCompile(`^([A-Za-z0-9][-A-Za-z0-9._]*[A-Za-z0-9]|[A-Za-z0-9])`)

// parseRequires extracts dependency names from requires_dist entries,
// skipping requirements gated behind an extra marker. Declaration order
// is preserved and duplicates are dropped.
func parseRequires(requiresDist []string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, req := range requiresDist {
		// Optional dependencies carry an `extra ==` environment marker
		if strings.Contains(req, "extra ==") {
			continue
		}

		nameAndVersion, _, _ := strings.Cut(req, ";")
		match := pep508NameRegex.FindString(strings.TrimSpace(nameAndVersion))
		if match == "" {
			continue
		}

		name := strings.ToLower(match)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}

// CheckLatest fetches only the latest release number for a package.
func (r *Registry) CheckLatest(ctx context.Context, name string) (string, error) {
	project, err := r.Project(ctx, name)
	if err != nil {
		return "", err
	}
	if project.LatestVersion == "" {
		return "", fmt.Errorf("no releases published for %s", name)
	}
	return project.LatestVersion, nil
}
