package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/imagegen"
	"paper-reader/internal/infrastructure/transport"
)

const (
	BackendName    = "gemini"
	DefaultBaseURL = "https://yunwu.ai/v1beta"
	DefaultModel   = "gemini-3-pro-image-preview"

	maxBodySize  = 32 << 20
	maxErrorBody = 512
)

var _ output.TaskBackend = (*Adapter)(nil)

// Adapter calls generateContent on an image-capable Gemini model. The image comes
// back inline in the same response; the raw body is kept as the status payload.
type Adapter struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
	results *imagegen.ResultStore
	logger  output.LoggerPort
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     output.LoggerPort
}

func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
	}
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = transport.NewClient(cfg.Logger, 0)
	}

	return &Adapter{
		client:  client,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		results: imagegen.NewResultStore(),
		logger:  cfg.Logger,
	}
}

func NewBackend(cfg output.BackendConfig) (output.TaskBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", BackendName)
	}
	return NewAdapter(Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		HTTPClient: transport.NewClient(cfg.Logger, cfg.Timeout),
		Logger:     cfg.Logger,
	}), nil
}

func (a *Adapter) Name() string {
	return BackendName
}

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateEnvelope struct {
	Candidates []struct {
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (a *Adapter) Submit(ctx context.Context, req entity.GenerationRequest) (entity.TaskHandle, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: req.Prompt}}}},
	})
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, url.PathEscape(a.model), url.QueryEscape(a.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, Err: redact(err, a.apiKey)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return entity.TaskHandle{}, &entity.SubmissionError{
			Backend:    BackendName,
			StatusCode: resp.StatusCode,
			Body:       imagegen.TruncateBody(string(data), maxErrorBody),
		}
	}

	var env generateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{
			Backend:    BackendName,
			StatusCode: resp.StatusCode,
			Body:       imagegen.TruncateBody(string(data), maxErrorBody),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}

	report := &entity.StatusReport{Status: entity.TaskStatusSucceeded, Payload: data}
	if env.PromptFeedback != nil && env.PromptFeedback.BlockReason != "" && len(env.Candidates) == 0 {
		report = &entity.StatusReport{
			Status:  entity.TaskStatusFailed,
			Message: "prompt blocked: " + env.PromptFeedback.BlockReason,
			Payload: data,
		}
	}

	id := a.results.Put(report)
	if a.logger != nil {
		a.logger.Info("Task submitted", "backend", BackendName, "task_id", id, "candidates", len(env.Candidates))
	}
	return entity.TaskHandle{ID: id, Backend: BackendName}, nil
}

func (a *Adapter) Status(_ context.Context, handle entity.TaskHandle) (*entity.StatusReport, error) {
	report, ok := a.results.Take(handle.ID)
	if !ok {
		return imagegen.UnknownTask(handle.ID), nil
	}
	return report, nil
}

// redact keeps the API key, which travels in the query string, out of error messages.
func redact(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	msg = strings.ReplaceAll(msg, key, "REDACTED")
	return fmt.Errorf("%s", msg)
}
