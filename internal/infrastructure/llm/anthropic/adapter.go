package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/transport"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

var _ output.LLMPort = (*Adapter)(nil)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-opus-4-5-20251101"
)

// Adapter talks to the Anthropic Messages API (or a compatible relay) through
// langchaingo.
type Adapter struct {
	llm       llms.Model
	model     string
	maxTokens int
	logger    output.LoggerPort
}

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Logger    output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:    apiKey,
		Model:     model,
		BaseURL:   DefaultBaseURL,
		MaxTokens: 8000,
	}
}

func NewAdapter(cfg Config) (*Adapter, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	llm, err := anthropic.New(
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(model),
		anthropic.WithBaseURL(apiBase(cfg.BaseURL)),
		anthropic.WithHTTPClient(transport.NewClient(cfg.Logger, cfg.Timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}

	return &Adapter{
		llm:       llm,
		model:     model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}, nil
}

// apiBase turns a host root such as https://yunwu.ai, or a full
// .../v1/messages endpoint, into the .../v1 prefix the client appends
// /messages to.
func apiBase(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/messages")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

func (a *Adapter) Model() string {
	return a.model
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}

	opts := []llms.CallOption{llms.WithModel(a.model)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(float64(req.Temperature)))
	}

	if a.logger != nil {
		a.logger.Debug("Creating message", "model", a.model, "messagesCount", len(req.Messages), "maxTokens", maxTokens)
	}

	resp, err := a.llm.GenerateContent(ctx, convertMessages(req.Messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages failed: %w", err)
	}

	var sb strings.Builder
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		sb.WriteString(choice.Content)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("no text in response")
	}

	if a.logger != nil && len(resp.Choices) > 0 && resp.Choices[0] != nil {
		a.logger.Debug("Message received", "stopReason", resp.Choices[0].StopReason)
	}

	return &output.ChatResponse{
		Message: entity.Message{Role: entity.RoleAssistant, Content: text},
	}, nil
}

func convertMessages(messages []entity.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		var role llms.ChatMessageType
		switch msg.Role {
		case entity.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case entity.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		result = append(result, llms.TextParts(role, msg.Content))
	}
	return result
}
