// Package resume turns a resume PDF into draft portfolio records for
// review before they are seeded into the record store.
package resume

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned for PDFs without an extractable text layer, such as
// scanned images.
var ErrNoText = errors.New("resume: no extractable text")

// ExtractText returns the plain text of every page, pages separated by a
// blank line. Pages that fail to decode are skipped.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("skipping unreadable resume page", "page", i, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", ErrNoText
	}
	return strings.Join(pages, "\n\n"), nil
}
