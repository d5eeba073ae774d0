package di

import (
	"fmt"
	"strings"

	"paper-reader/internal/application/port/input"
	"paper-reader/internal/application/port/output"
	"paper-reader/internal/application/service"
	"paper-reader/internal/infrastructure/document"
	"paper-reader/internal/infrastructure/env"
	"paper-reader/internal/infrastructure/fetch"
	"paper-reader/internal/infrastructure/imagegen/dashscope"
	"paper-reader/internal/infrastructure/imagegen/gemini"
	"paper-reader/internal/infrastructure/imagegen/openaicompat"
	llmanthropic "paper-reader/internal/infrastructure/llm/anthropic"
	llmgemini "paper-reader/internal/infrastructure/llm/gemini"
	llmopenai "paper-reader/internal/infrastructure/llm/openai"
	"paper-reader/internal/infrastructure/logger"
	"paper-reader/internal/infrastructure/storage"
	"paper-reader/internal/infrastructure/transport"
	"paper-reader/internal/usecase/explain"
	"paper-reader/internal/usecase/poller"
)

type Container struct {
	Settings  *env.Settings
	Logger    output.LoggerPort
	Backends  output.BackendRegistry
	LLM       output.LLMPort
	Images    *poller.UseCase
	Explainer input.PaperExplainer
}

type Options struct {
	// LogName becomes part of the log file name.
	LogName string
	// WithoutLLM skips the LLM and the explanation pipeline (image-only tools).
	WithoutLLM bool
}

func NewContainer(settings *env.Settings, opts Options) (*Container, error) {
	logCfg := logger.DefaultConfig(opts.LogName)
	logCfg.Dir = settings.LogDir
	logCfg.Level = settings.LogLevel
	log, err := logger.NewLoggerAdapter(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{
		Settings: settings,
		Logger:   log,
		Backends: NewBackendRegistry(),
	}

	if settings.Image.Enabled() {
		images, err := NewImageGenerator(c.Backends, settings.Image, log)
		if err != nil {
			log.Close()
			return nil, err
		}
		c.Images = images
	} else {
		log.Warn("IMAGE_API_KEY not set, image generation disabled")
	}

	if opts.WithoutLLM {
		return c, nil
	}

	llm, err := NewLLM(settings.LLM, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	c.LLM = llm

	size, _ := settings.Image.ParsedSize()
	explainCfg := explain.DefaultConfig()
	explainCfg.OutputDir = settings.OutputDir
	explainCfg.MaxTokens = settings.LLM.MaxTokens
	explainCfg.ImageSize = size
	explainCfg.ImageCount = settings.Image.Count

	var images input.ImageGenerator
	if c.Images != nil {
		images = c.Images
	}
	c.Explainer = explain.New(
		document.NewExtractor(settings.MaxPaperChars, log),
		llm,
		images,
		storage.NewFileStore(),
		log,
		explainCfg,
	)

	return c, nil
}

func (c *Container) Close() {
	if c.Logger != nil {
		c.Logger.Close()
	}
}

func NewBackendRegistry() *service.BackendRegistryImpl {
	registry := service.NewBackendRegistry()
	registry.Register(dashscope.BackendName, dashscope.NewBackend)
	registry.Register(openaicompat.BackendName, openaicompat.NewBackend)
	registry.Register(gemini.BackendName, gemini.NewBackend)
	return registry
}

func NewImageGenerator(registry output.BackendRegistry, s env.ImageSettings, log output.LoggerPort) (*poller.UseCase, error) {
	cfg := poller.Config{
		APIKey:       s.APIKey,
		BaseURL:      s.BaseURL,
		Model:        s.Model,
		PollInterval: s.PollInterval,
		MaxAttempts:  s.MaxAttempts,
		RequestDelay: s.RequestDelay,
		HTTPTimeout:  s.HTTPTimeout,
	}

	fetcher := fetch.NewHTTPFetcher(transport.NewClient(log, s.HTTPTimeout), log)
	uc, err := poller.NewFromRegistry(registry, s.Backend, fetcher, storage.NewFileStore(), log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create image generator: %w", err)
	}
	return uc, nil
}

func NewLLM(s env.LLMSettings, log output.LoggerPort) (output.LLMPort, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	switch strings.ToLower(s.Provider) {
	case "openai":
		cfg := llmopenai.DefaultConfig(s.APIKey, s.Model)
		if s.BaseURL != "" {
			cfg.BaseURL = s.BaseURL
		}
		cfg.MaxTokens = s.MaxTokens
		cfg.Timeout = s.Timeout
		cfg.Logger = log
		return llmopenai.NewAdapter(cfg), nil
	case "gemini":
		cfg := llmgemini.DefaultConfig(s.APIKey, s.Model)
		if s.BaseURL != "" {
			cfg.BaseURL = s.BaseURL
		}
		cfg.MaxTokens = s.MaxTokens
		cfg.Timeout = s.Timeout
		cfg.Logger = log
		return llmgemini.NewAdapter(cfg), nil
	case "anthropic":
		cfg := llmanthropic.DefaultConfig(s.APIKey, s.Model)
		if s.BaseURL != "" {
			cfg.BaseURL = s.BaseURL
		}
		cfg.MaxTokens = s.MaxTokens
		cfg.Timeout = s.Timeout
		cfg.Logger = log
		return llmanthropic.NewAdapter(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (available: openai, gemini, anthropic)", s.Provider)
	}
}
