package validator

import (
	"regexp"
	"strings"
)

// bundleBase is the fixed organizational root for generated identifiers.
// It is intentionally not configurable: bundle identifiers are store-facing
// identity and must stay stable across config changes.
const bundleBase = "com.appfactory"

var (
	separatorRuns = regexp.MustCompile(`[-_\s]+`)
	nonIdentifier = regexp.MustCompile(`[^a-z0-9.]`)
	dotRuns       = regexp.MustCompile(`\.+`)
)

// BundleIdentifier normalizes a slug into a reverse-DNS app identifier:
// lowercase, separator runs collapsed to dots, everything else
// non-alphanumeric stripped, prefixed with the organizational root. An
// empty normalized slug falls back to "app". When the full identifier
// would exceed maxLength, the slug portion (never the prefix) is truncated.
func BundleIdentifier(slug string, maxLength int) string {
	clean := strings.ToLower(slug)
	clean = separatorRuns.ReplaceAllString(clean, ".")
	clean = nonIdentifier.ReplaceAllString(clean, "")
	clean = dotRuns.ReplaceAllString(clean, ".")
	clean = strings.Trim(clean, ".")

	bundleID := bundleBase + ".app"
	if clean != "" {
		bundleID = bundleBase + "." + clean
	}

	if len(bundleID) > maxLength {
		available := maxLength - len(bundleBase) - 1
		if available < 0 {
			available = 0
		}
		if available > len(clean) {
			available = len(clean)
		}
		bundleID = bundleBase + "." + clean[:available]
	}

	return bundleID
}
