package di

import (
	"testing"
	"time"

	"paper-reader/internal/infrastructure/env"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(t *testing.T) *env.Settings {
	return &env.Settings{
		Image: env.ImageSettings{
			Backend:      "dashscope",
			APIKey:       "sk-image",
			Size:         "768x512",
			Count:        1,
			PollInterval: 3 * time.Second,
			MaxAttempts:  20,
			RequestDelay: time.Second,
		},
		LLM: env.LLMSettings{
			Provider:  "openai",
			APIKey:    "sk-llm",
			Model:     "qwen-max",
			MaxTokens: 8000,
		},
		OutputDir:     t.TempDir(),
		MaxPaperChars: 100000,
		LogDir:        t.TempDir(),
		LogLevel:      "debug",
	}
}

func TestNewBackendRegistry(t *testing.T) {
	assert.Equal(t, []string{"dashscope", "gemini", "openai"}, NewBackendRegistry().Names())
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(testSettings(t), Options{LogName: "test"})
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Images)
	assert.NotNil(t, c.Explainer)
	assert.Equal(t, "qwen-max", c.LLM.Model())
}

func TestNewContainer_ImagesDisabled(t *testing.T) {
	s := testSettings(t)
	s.Image.APIKey = ""

	c, err := NewContainer(s, Options{LogName: "test"})
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Images)
	assert.NotNil(t, c.Explainer)
}

func TestNewContainer_Errors(t *testing.T) {
	s := testSettings(t)
	s.Image.Backend = "midjourney"
	_, err := NewContainer(s, Options{LogName: "test"})
	assert.ErrorContains(t, err, "unknown image backend")

	s = testSettings(t)
	s.LLM.Provider = "claude"
	_, err = NewContainer(s, Options{LogName: "test"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	s = testSettings(t)
	s.LLM.APIKey = ""
	_, err = NewContainer(s, Options{LogName: "test"})
	assert.ErrorContains(t, err, "LLM_API_KEY")

	c, err := NewContainer(s, Options{LogName: "test", WithoutLLM: true})
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.LLM)
	assert.NotNil(t, c.Images)
}

func TestNewLLM_Gemini(t *testing.T) {
	s := testSettings(t).LLM
	s.Provider = "Gemini"
	s.Model = ""

	llm, err := NewLLM(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", llm.Model())
}

func TestNewLLM_Anthropic(t *testing.T) {
	s := testSettings(t).LLM
	s.Provider = "anthropic"
	s.Model = ""
	s.BaseURL = "https://yunwu.ai"

	llm, err := NewLLM(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-5-20251101", llm.Model())
}
