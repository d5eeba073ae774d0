package prompts

import (
	"strings"
	"testing"

	"paper-reader/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUserPrompt(t *testing.T) {
	prompt, err := GenerateUserPrompt(UserPromptTemplate, &entity.Paper{
		Text:  "--- Page 1 ---\nWe propose the Transformer.",
		Pages: 15,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "请阅读以下学术论文内容"))
	assert.Contains(t, prompt, "论文共 15 页。")
	assert.Contains(t, prompt, "```\n--- Page 1 ---\nWe propose the Transformer.\n```")
	assert.NotContains(t, prompt, "过长")
}

func TestGenerateUserPrompt_Truncated(t *testing.T) {
	prompt, err := GenerateUserPrompt(UserPromptTemplate, &entity.Paper{Text: "abc", Truncated: true})
	require.NoError(t, err)

	assert.Contains(t, prompt, "过长")
	assert.NotContains(t, prompt, "论文共")
}

func TestGenerateUserPrompt_Errors(t *testing.T) {
	_, err := GenerateUserPrompt(UserPromptTemplate, nil)
	assert.Error(t, err)

	_, err = GenerateUserPrompt("{{.Text", &entity.Paper{Text: "x"})
	assert.Error(t, err)
}

func TestEmbeddedPrompts(t *testing.T) {
	assert.Contains(t, SystemPrompt, "黄叔风格")
	assert.Contains(t, UserPromptTemplate, "{{.Text}}")
	assert.Len(t, DefaultImagePrompts, 2)
}
