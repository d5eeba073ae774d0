package explain

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"paper-reader/internal/domain/entity"
)

const reportTemplate = `{{.Body}}
{{- if .Figures}}

## 配图
{{- range .Figures}}

![{{.Alt}}]({{.Link}})

*{{.Caption}}*
{{- end}}
{{- end}}

---

**元数据**
📄 论文文件: ` + "`{{.PaperPath}}`" + `
⏱️ 处理时长: {{.Duration}}秒
🖼️ 配图生成: {{.ImageStatus}}
🤖 生成模型: {{.Model}}
📅 生成时间: {{.GeneratedAt}}
`

var reportTmpl = template.Must(template.New("report").Parse(reportTemplate))

type figure struct {
	Alt     string
	Link    string
	Caption string
}

type reportData struct {
	Body        string
	Figures     []figure
	PaperPath   string
	Duration    string
	ImageStatus string
	Model       string
	GeneratedAt string
}

// renderReport links illustrations relative to the report directory.
func renderReport(expl *entity.Explanation, reportDir string) ([]byte, error) {
	data := reportData{
		Body:        expl.Body,
		PaperPath:   expl.Paper.Path,
		Duration:    fmt.Sprintf("%.1f", expl.Duration.Seconds()),
		ImageStatus: expl.ImageStatus,
		Model:       expl.Model,
		GeneratedAt: expl.GeneratedAt.Format("2006年01月02日 15:04:05"),
	}

	for i, ill := range expl.SavedIllustrations() {
		link, err := filepath.Rel(reportDir, ill.Path)
		if err != nil {
			link = ill.Path
		}
		data.Figures = append(data.Figures, figure{
			Alt:     fmt.Sprintf("配图 %d", i+1),
			Link:    filepath.ToSlash(link),
			Caption: fmt.Sprintf("%s（%d×%d）", ill.Prompt, ill.Width, ill.Height),
		})
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
