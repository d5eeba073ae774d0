package env

import (
	"fmt"
	"strings"
	"time"

	"paper-reader/internal/domain/entity"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds everything the CLIs read from the environment.
type Settings struct {
	Image ImageSettings
	LLM   LLMSettings

	PaperPath     string `envconfig:"PAPER_PATH"`
	OutputDir     string `envconfig:"OUTPUT_DIR" default:"outputs"`
	MaxPaperChars int    `envconfig:"MAX_PAPER_CHARS" default:"100000"`
	LogDir        string `envconfig:"LOG_DIR" default:"log"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

type ImageSettings struct {
	Backend      string        `envconfig:"IMAGE_BACKEND" default:"dashscope"`
	APIKey       string        `envconfig:"IMAGE_API_KEY"`
	BaseURL      string        `envconfig:"IMAGE_BASE_URL"`
	Model        string        `envconfig:"IMAGE_MODEL"`
	Size         string        `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	Count        int           `envconfig:"IMAGE_COUNT" default:"1"`
	PollInterval time.Duration `envconfig:"IMAGE_POLL_INTERVAL" default:"3s"`
	MaxAttempts  int           `envconfig:"IMAGE_MAX_ATTEMPTS" default:"20"`
	RequestDelay time.Duration `envconfig:"IMAGE_REQUEST_DELAY" default:"1s"`
	HTTPTimeout  time.Duration `envconfig:"IMAGE_HTTP_TIMEOUT" default:"60s"`
}

// LLMSettings.Provider is one of openai, gemini or anthropic.
type LLMSettings struct {
	Provider  string        `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey    string        `envconfig:"LLM_API_KEY"`
	BaseURL   string        `envconfig:"LLM_BASE_URL"`
	Model     string        `envconfig:"LLM_MODEL"`
	MaxTokens int           `envconfig:"LLM_MAX_TOKENS" default:"8000"`
	Timeout   time.Duration `envconfig:"LLM_TIMEOUT" default:"180s"`
}

// LoadSettings fills Settings from the process environment, then fills the
// blanks from the variable names older deployments use. NewEnvService has
// already applied the .env files.
func (e *EnvService) LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	e.applyFallbacks(&s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// applyFallbacks only touches empty fields; the IMAGE_* and LLM_* names win.
func (e *EnvService) applyFallbacks(s *Settings) {
	if s.Image.APIKey == "" {
		switch strings.ToLower(s.Image.Backend) {
		case "dashscope":
			s.Image.APIKey = e.Get("DASHSCOPE_API_KEY")
		case "gemini":
			s.Image.APIKey = e.GeminiKey()
		}
	}

	if e.Get("LLM_PROVIDER") == "" && s.LLM.APIKey == "" && e.Get("ANTHROPIC_API_KEY") != "" {
		s.LLM.Provider = "anthropic"
	}

	switch strings.ToLower(s.LLM.Provider) {
	case "anthropic":
		if s.LLM.APIKey == "" {
			s.LLM.APIKey = e.Get("ANTHROPIC_API_KEY")
		}
		if s.LLM.BaseURL == "" {
			s.LLM.BaseURL = e.Get("ANTHROPIC_BASE_URL")
		}
		if s.LLM.Model == "" {
			s.LLM.Model = e.Get("ANTHROPIC_MODEL")
		}
	case "gemini":
		if s.LLM.APIKey == "" {
			s.LLM.APIKey = e.GeminiKey()
		}
	}
}

// ForGeminiChat adapts s for the chat command. The conversation always runs on
// Gemini; images follow unless IMAGE_BACKEND picks another backend.
func (e *EnvService) ForGeminiChat(s Settings) (*Settings, error) {
	key := e.GeminiKey()
	if !strings.EqualFold(s.LLM.Provider, "gemini") {
		s.LLM.Provider = "gemini"
		s.LLM.APIKey = ""
		s.LLM.BaseURL = ""
		s.LLM.Model = ""
	}
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = key
	}
	if s.LLM.APIKey == "" {
		return nil, fmt.Errorf("no Gemini API key: set GEMINI_API_KEY or put the key in %s", e.keyFile)
	}

	if e.Get("IMAGE_BACKEND") == "" {
		s.Image.Backend = "gemini"
		s.Image.BaseURL = ""
		s.Image.Model = ""
		s.Image.APIKey = e.GetWithDefault("IMAGE_API_KEY", s.LLM.APIKey)
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if _, err := s.Image.ParsedSize(); err != nil {
		return err
	}
	if s.Image.Count < 1 {
		return fmt.Errorf("IMAGE_COUNT must be at least 1, got %d", s.Image.Count)
	}
	if s.Image.MaxAttempts < 1 {
		return fmt.Errorf("IMAGE_MAX_ATTEMPTS must be at least 1, got %d", s.Image.MaxAttempts)
	}
	if s.Image.PollInterval < 0 || s.Image.RequestDelay < 0 {
		return fmt.Errorf("image intervals must not be negative")
	}
	if s.MaxPaperChars < 1 {
		return fmt.Errorf("MAX_PAPER_CHARS must be positive, got %d", s.MaxPaperChars)
	}
	return nil
}

func (s ImageSettings) ParsedSize() (entity.Size, error) {
	return entity.ParseSize(s.Size)
}

// Enabled reports whether image generation can run at all.
func (s ImageSettings) Enabled() bool {
	return s.APIKey != ""
}
