package poller

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"paper-reader/internal/domain/entity"
)

const maxStemLen = 80

func defaultStem(now time.Time) string {
	return "image_" + now.Format("20060102-150405")
}

// artifactFilename builds <stem>_<index><ext>; index is 1-based.
func artifactFilename(stem string, index int, mimeType string) string {
	return fmt.Sprintf("%s_%d%s", stem, index, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

// sanitizeStem keeps letters (any script), digits, '-' and '_'.
func sanitizeStem(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '.':
			b.WriteRune('_')
		}
	}
	stem := strings.Trim(b.String(), "_")
	if runes := []rune(stem); len(runes) > maxStemLen {
		stem = string(runes[:maxStemLen])
	}
	return stem
}

func nameArtifacts(artifacts []entity.Artifact, stem string) {
	for i := range artifacts {
		artifacts[i].Filename = artifactFilename(stem, i+1, artifacts[i].MimeType)
	}
}
