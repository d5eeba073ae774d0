package prompts

import (
	"bytes"
	"fmt"
	"text/template"

	"paper-reader/internal/domain/entity"
)

type UserPromptData struct {
	Text      string
	Pages     int
	Truncated bool
}

func GenerateUserPrompt(baseTemplate string, paper *entity.Paper) (string, error) {
	if paper == nil {
		return "", fmt.Errorf("paper is nil")
	}

	data := UserPromptData{
		Text:      paper.Text,
		Pages:     paper.Pages,
		Truncated: paper.Truncated,
	}

	tmpl, err := template.New("user").Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
