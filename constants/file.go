package constants

import "strings"

// ExportColumns is the fixed column order of every reviews artifact.
var ExportColumns = []string{"review_link", "time", "rating", "content"}

// ExportSheet is the worksheet name holding the review rows.
const ExportSheet = "Reviews"

// ExportExt is the artifact file extension, including the dot.
const ExportExt = ".xlsx"

// ExportPrefix prefixes every artifact name.
const ExportPrefix = "reviews_"

// UnknownLocation names artifacts whose batch has no recorded location.
const UnknownLocation = "unknown"

// XLSXContentType is the media type served for artifacts.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ArtifactName returns the deterministic artifact name for a location id.
// Anything outside [0-9A-Za-z_-] is replaced so the result is always a bare file name.
func ArtifactName(locationID string) string {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		locationID = UnknownLocation
	}
	var b strings.Builder
	for _, r := range locationID {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return ExportPrefix + b.String() + ExportExt
}
