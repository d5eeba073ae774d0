package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the text of every page, each preceded by a "--- Page N ---" line.
func extractPDF(ctx context.Context, path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	var sb strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		writePage(&sb, i, text)
	}
	return sb.String(), total, nil
}

func writePage(sb *strings.Builder, n int, text string) {
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "--- Page %d ---\n", n)
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n")
}
