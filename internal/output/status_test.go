package output

import "testing"

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    Status
	}{
		{"equal versions", "2.32.3", "2.32.3", StatusUpToDate},
		{"behind latest", "1.26.0", "2.1.0", StatusUpdateAvailable},
		{"semver equivalent", "1.0", "1.0.0", StatusUpToDate},
		{"latest unknown", "2.32.3", "", StatusUpToDate},
		{"non-semver equal", "2024b", "2024b", StatusUpToDate},
		{"non-semver different", "2024a", "2024b", StatusUpdateAvailable},
		{"semver ordering not lexicographic", "2.9", "2.10", StatusUpdateAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.current, tt.latest); got != tt.want {
				t.Errorf("StatusFor(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestStatusGlyphsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		status Status
		want   string
	}{
		{StatusUpToDate, GlyphUpToDate},
		{StatusUpdateAvailable, GlyphUpdateAvailable},
		{StatusNotFound, GlyphNotFound},
		{StatusError, GlyphError},
	}

	for _, tt := range tests {
		if got := tt.status.Glyph(); got != tt.want {
			t.Errorf("Glyph(%v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
