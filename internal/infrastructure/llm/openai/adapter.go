package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/transport"

	"github.com/sashabaranov/go-openai"
)

var _ output.LLMPort = (*Adapter)(nil)

const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel   = "qwen-plus"
)

type Adapter struct {
	client    *openai.Client
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

func NewAdapter(cfg Config) *Adapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	config.HTTPClient = transport.NewClient(cfg.Logger, cfg.Timeout)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Adapter{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

func (a *Adapter) Model() string {
	return a.model
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}

	if a.logger != nil {
		totalChars := 0
		for _, msg := range req.Messages {
			totalChars += len(msg.Content)
		}
		a.logger.Debug("Creating chat completion",
			"model", a.model,
			"messagesCount", len(req.Messages),
			"maxTokens", maxTokens,
			"totalChars", totalChars)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	if a.logger != nil {
		a.logger.Debug("Chat completion received",
			"finishReason", string(choice.FinishReason),
			"promptTokens", resp.Usage.PromptTokens,
			"completionTokens", resp.Usage.CompletionTokens)
	}

	return &output.ChatResponse{
		Message: convertResponseMessage(choice.Message),
	}, nil
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	return entity.Message{
		Role:    entity.RoleAssistant,
		Content: strings.TrimSpace(msg.Content),
	}
}
