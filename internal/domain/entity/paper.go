package entity

import "time"

type DocumentFormat string

const (
	FormatPDF      DocumentFormat = "pdf"
	FormatHTML     DocumentFormat = "html"
	FormatPlain    DocumentFormat = "text"
	FormatMarkdown DocumentFormat = "markdown"
)

type Paper struct {
	Path      string
	Format    DocumentFormat
	Text      string
	Pages     int
	Truncated bool
}

// Illustration is one image attached to an explanation.
type Illustration struct {
	Prompt string
	Path   string
	Width  int
	Height int
	Err    error
}

type Explanation struct {
	RunID         string
	Paper         Paper
	Body          string
	Model         string
	Illustrations []Illustration
	ImageStatus   string
	Duration      time.Duration
	GeneratedAt   time.Time
	OutputPath    string
}

func (e *Explanation) SavedIllustrations() []Illustration {
	var saved []Illustration
	for _, ill := range e.Illustrations {
		if ill.Err == nil && ill.Path != "" {
			saved = append(saved, ill)
		}
	}
	return saved
}
