// Package output renders the pkgx dashboard and terminal progress
// indicators. All rendering is pure text production: no network or
// filesystem access.
package output

import (
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/mattn/go-isatty"
)

// ANSI color codes for status glyph display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// Status is the derived state of one dashboard entry. It is recomputed on
// every render, never stored.
type Status int

const (
	StatusUpToDate Status = iota
	StatusUpdateAvailable
	StatusNotFound
	StatusError
)

// Display glyphs for each status. Security verification renders as an
// extra glyph next to the version status.
const (
	GlyphUpToDate        = "✓"
	GlyphUpdateAvailable = "↑"
	GlyphSecurityOK      = "🔒"
	GlyphNotFound        = "?"
	GlyphError           = "!"
)

// StatusFor derives the version status of a package. Versions that parse
// as semver compare semantically ("1.0" equals "1.0.0"); anything else
// falls back to string equality. An unknown latest version counts as
// up to date, since there is nothing newer to offer.
func StatusFor(current, latest string) Status {
	if latest == "" || current == latest {
		return StatusUpToDate
	}

	cv, errC := semver.NewVersion(current)
	lv, errL := semver.NewVersion(latest)
	if errC == nil && errL == nil && cv.Equal(lv) {
		return StatusUpToDate
	}

	return StatusUpdateAvailable
}

// Glyph returns the display glyph for a status.
func (s Status) Glyph() string {
	switch s {
	case StatusUpToDate:
		return colorize(colorGreen, GlyphUpToDate)
	case StatusUpdateAvailable:
		return colorize(colorYellow, GlyphUpdateAvailable)
	case StatusNotFound:
		return colorize(colorGray, GlyphNotFound)
	default:
		return colorize(colorRed, GlyphError)
	}
}
