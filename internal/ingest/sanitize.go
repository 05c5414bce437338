// Filename sanitization for uploaded KnowledgeFiles, grounded on
// utils/validation.go's SanitizeFilename (the teacher used it to guard its
// workspace directory writes; this repo applies the same rule to files
// written under STORAGE_ROOT before they are chunked and embedded).
package ingest

import (
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)

// SanitizeFilename strips characters unsafe for a storage-root path
// component, collapses parent-directory references, and bounds length.
func SanitizeFilename(filename string) string {
	sanitized := strings.Trim(filename, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	if sanitized == "" {
		sanitized = "file"
	}
	return sanitized
}
