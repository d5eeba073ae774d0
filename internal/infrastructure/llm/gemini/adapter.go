package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/transport"

	"google.golang.org/genai"
)

var _ output.LLMPort = (*Adapter)(nil)

const (
	DefaultBaseURL = "https://yunwu.ai"
	DefaultModel   = "gemini-2.5-pro"
)

var thoughtBlock = regexp.MustCompile(`(?s)<thought>.*?</thought>`)

// thinkingMarker heads reasoning that some relays inline into the answer text.
const thinkingMarker = "Thinking Process:"

type Adapter struct {
	cfg genai.ClientConfig

	once      sync.Once
	client    *genai.Client
	clientErr error

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

// NewAdapter defers client creation to the first Chat call.
func NewAdapter(cfg Config) *Adapter {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	clientCfg := genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: transport.NewClient(cfg.Logger, cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.BaseURL, "/") + "/"}
	}

	return &Adapter{
		cfg:       clientCfg,
		model:     model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

func (a *Adapter) Model() string {
	return a.model
}

func (a *Adapter) getClient(ctx context.Context) (*genai.Client, error) {
	a.once.Do(func() {
		a.client, a.clientErr = genai.NewClient(ctx, &a.cfg)
	})
	return a.client, a.clientErr
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	system, contents := buildContents(req.Messages)
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: system,
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		genConfig.Temperature = &temp
	}

	if a.logger != nil {
		a.logger.Debug("Generating content", "model", a.model, "contents", len(contents), "maxTokens", maxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, a.model, contents, genConfig)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("no content in response")
	}

	return &output.ChatResponse{
		Message: entity.Message{Role: entity.RoleAssistant, Content: text},
	}, nil
}

// buildContents moves system messages into the system instruction; Gemini only
// knows user and model turns.
func buildContents(messages []entity.Message) (*genai.Content, []*genai.Content) {
	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleSystem:
			system = append(system, genai.NewPartFromText(msg.Content))
		case entity.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromParts(system, genai.RoleUser), contents
}

// responseText joins the text parts of the first candidate, skipping thoughts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return stripThoughts(b.String())
}

// stripThoughts drops <thought> blocks and keeps only what follows the last
// thinking marker.
func stripThoughts(s string) string {
	s = thoughtBlock.ReplaceAllString(s, "")
	if i := strings.LastIndex(s, thinkingMarker); i >= 0 {
		s = s[i+len(thinkingMarker):]
	}
	return strings.TrimSpace(s)
}
