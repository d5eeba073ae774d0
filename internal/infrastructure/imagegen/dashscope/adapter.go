package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	BackendName    = "dashscope"
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	DefaultModel   = "wanx-v1"

	synthesisPath = "/services/aigc/text2image/image-synthesis"
	maxBodySize   = 8 << 20
	maxErrorBody  = 512
)

var errMissingTaskID = errors.New("response lacks output.task_id")

var _ output.TaskBackend = (*Adapter)(nil)

type Adapter struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
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
		logger:  cfg.Logger,
	}
}

// NewBackend adapts NewAdapter to output.BackendFactory.
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

type synthesisRequest struct {
	Model      string              `json:"model"`
	Input      synthesisInput      `json:"input"`
	Parameters synthesisParameters `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type synthesisParameters struct {
	Size string `json:"size,omitempty"`
	N    int    `json:"n,omitempty"`
}

type taskResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Code       string `json:"code"`
		Message    string `json:"message"`
	} `json:"output"`
}

func (a *Adapter) Submit(ctx context.Context, req entity.GenerationRequest) (entity.TaskHandle, error) {
	body := synthesisRequest{
		Model: a.model,
		Input: synthesisInput{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
		},
		Parameters: synthesisParameters{N: req.Count},
	}
	if !req.Size.IsZero() {
		body.Parameters.Size = req.Size.Format("*")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+synthesisPath, bytes.NewReader(payload))
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, Err: err}
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-DashScope-Async", "enable")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: BackendName, Err: err}
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

	var out taskResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{
			Backend:    BackendName,
			StatusCode: resp.StatusCode,
			Body:       imagegen.TruncateBody(string(data), maxErrorBody),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if out.Output.TaskID == "" {
		return entity.TaskHandle{}, &entity.SubmissionError{
			Backend:    BackendName,
			StatusCode: resp.StatusCode,
			Body:       imagegen.TruncateBody(string(data), maxErrorBody),
			Err:        errMissingTaskID,
		}
	}

	if a.logger != nil {
		a.logger.Info("Task submitted", "backend", BackendName, "task_id", out.Output.TaskID, "request_id", out.RequestID)
	}

	return entity.TaskHandle{ID: out.Output.TaskID, Backend: BackendName}, nil
}

func (a *Adapter) Status(ctx context.Context, handle entity.TaskHandle) (*entity.StatusReport, error) {
	endpoint := a.baseURL + "/tasks/" + url.PathEscape(handle.ID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read task response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("query task: status %d: %s", resp.StatusCode, imagegen.TruncateBody(string(data), maxErrorBody))
	}

	var out taskResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode task response: %w", err)
	}

	status, err := mapStatus(out.Output.TaskStatus)
	if err != nil {
		return nil, err
	}

	message := out.Output.Message
	if message == "" {
		message = out.Output.Code
	}
	if message == "" && status == entity.TaskStatusFailed {
		message = out.Message
	}

	return &entity.StatusReport{
		Status:  status,
		Message: message,
		Payload: data,
	}, nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
}

// mapStatus folds DashScope's task states onto entity.TaskStatus.
func mapStatus(s string) (entity.TaskStatus, error) {
	switch strings.ToUpper(s) {
	case "PENDING":
		return entity.TaskStatusPending, nil
	case "RUNNING", "SUSPENDED":
		return entity.TaskStatusRunning, nil
	case "SUCCEEDED":
		return entity.TaskStatusSucceeded, nil
	case "FAILED", "CANCELED", "UNKNOWN":
		return entity.TaskStatusFailed, nil
	case "":
		return "", errors.New("response lacks output.task_status")
	default:
		return "", fmt.Errorf("unexpected task_status %q", s)
	}
}
