package prompts

import (
	_ "embed"
)

//go:embed system.txt
var SystemPrompt string

//go:embed user.tmpl
var UserPromptTemplate string

// DefaultImagePrompts illustrate an explanation: one concept picture, one summary infographic.
var DefaultImagePrompts = []string{
	"学术论文核心概念可视化插图，现代简洁的教育风格，清晰的图形和标注，蓝色科技感配色",
	"学术研究成果信息图，包含3-5个要点的总结图表，现代信息图表风格，专业商务感",
}
