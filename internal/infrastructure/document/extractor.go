// Package document turns paper files into plain text for the explanation prompt.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
)

const DefaultMaxChars = 100_000

var _ output.TextExtractor = (*Extractor)(nil)

type Extractor struct {
	maxChars int
	logger   output.LoggerPort
}

func NewExtractor(maxChars int, logger output.LoggerPort) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{maxChars: maxChars, logger: logger}
}

func FormatOf(path string) (entity.DocumentFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return entity.FormatPDF, nil
	case ".html", ".htm":
		return entity.FormatHTML, nil
	case ".md", ".markdown":
		return entity.FormatMarkdown, nil
	case ".txt", "":
		return entity.FormatPlain, nil
	default:
		return "", fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

func (e *Extractor) Extract(ctx context.Context, path string) (*entity.Paper, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paper := &entity.Paper{Path: path, Format: format}

	switch format {
	case entity.FormatPDF:
		text, pages, err := extractPDF(ctx, path)
		if err != nil {
			return nil, err
		}
		paper.Text = text
		paper.Pages = pages
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if format == entity.FormatHTML {
			paper.Text, err = htmlToText(string(data))
			if err != nil {
				return nil, err
			}
		} else {
			paper.Text = string(data)
		}
	}

	paper.Text = strings.TrimSpace(paper.Text)
	if paper.Text == "" {
		return nil, fmt.Errorf("no text extracted from %s", path)
	}

	paper.Text, paper.Truncated = truncateRunes(paper.Text, e.maxChars)
	if e.logger != nil {
		e.logger.Info("Paper extracted",
			"path", path,
			"format", string(format),
			"pages", paper.Pages,
			"chars", utf8.RuneCountInString(paper.Text),
			"truncated", paper.Truncated)
	}
	return paper, nil
}

func truncateRunes(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}
