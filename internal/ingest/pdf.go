// PDF text extraction, grounded on web/services/pdf_service.go's
// ExtractText (page-by-page GetPlainText with "--- Page N ---" markers),
// trimmed to the plain-text path since this repo's chunker (not a
// token-budgeted truncator) handles splitting large documents.
package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText reads every page of the PDF at path and returns its text
// content with page markers, matching the teacher's page-marker format so
// citations referencing a page number stay recognizable.
func ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var out strings.Builder
	totalPages := r.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		fmt.Fprintf(&out, "--- Page %d ---\n%s\n\n", pageNum, text)
	}
	return out.String(), nil
}
