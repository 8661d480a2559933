package storage

import (
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename flattens a document title or URL segment into a
// name that is valid on every filesystem the content tree may land on.
// Runs of disallowed characters collapse to a single underscore.
func SanitizeFilename(name string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(name, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
