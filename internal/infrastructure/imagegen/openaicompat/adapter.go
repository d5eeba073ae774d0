package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/imagegen"
	"paper-reader/internal/infrastructure/imagegen/payload"
	"paper-reader/internal/infrastructure/transport"

	"github.com/sashabaranov/go-openai"
)

const (
	BackendName    = "openai"
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel   = "wanx2.1-t2i-turbo"
)

var _ output.TaskBackend = (*Adapter)(nil)

// Adapter drives an OpenAI-compatible /images/generations endpoint. The call is
// synchronous, so Submit does the work and Status hands out the stored outcome.
type Adapter struct {
	client         *openai.Client
	model          string
	responseFormat string
	results        *imagegen.ResultStore
	logger         output.LoggerPort
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	ResponseFormat string
	HTTPClient     *http.Client
	Logger         output.LoggerPort
}

func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	}
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = transport.NewClient(cfg.Logger, 0)
	}

	return &Adapter{
		client:         openai.NewClientWithConfig(config),
		model:          cfg.Model,
		responseFormat: cfg.ResponseFormat,
		results:        imagegen.NewResultStore(),
		logger:         cfg.Logger,
	}
}

func NewBackend(cfg output.BackendConfig) (output.TaskBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", BackendName)
	}
	c := DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		c.Model = cfg.Model
	}
	c.Logger = cfg.Logger
	c.HTTPClient = transport.NewClient(cfg.Logger, cfg.Timeout)
	return NewAdapter(c), nil
}

func (a *Adapter) Name() string {
	return BackendName
}

func (a *Adapter) Submit(ctx context.Context, req entity.GenerationRequest) (entity.TaskHandle, error) {
	n := req.Count
	if n < 1 {
		n = 1
	}

	imgReq := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          a.model,
		N:              n,
		ResponseFormat: a.responseFormat,
	}
	if !req.Size.IsZero() {
		imgReq.Size = req.Size.Format("x")
	}

	resp, err := a.client.CreateImage(ctx, imgReq)
	if err != nil {
		return entity.TaskHandle{}, &entity.SubmissionError{
			Backend:    BackendName,
			StatusCode: statusCodeOf(err),
			Err:        err,
		}
	}

	id := a.results.Put(toReport(resp))
	if a.logger != nil {
		a.logger.Info("Task submitted", "backend", BackendName, "task_id", id, "images", len(resp.Data))
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

func toReport(resp openai.ImageResponse) *entity.StatusReport {
	refs := make([]entity.ArtifactRef, 0, len(resp.Data))
	for _, d := range resp.Data {
		switch {
		case d.URL != "":
			refs = append(refs, entity.ArtifactRef{URL: d.URL})
		case d.B64JSON != "":
			data, err := payload.DecodeBase64(d.B64JSON)
			if err != nil {
				return &entity.StatusReport{
					Status:  entity.TaskStatusFailed,
					Message: fmt.Sprintf("%v: b64_json: %v", entity.ErrUnrecognizedResponseFormat, err),
				}
			}
			refs = append(refs, entity.ArtifactRef{Data: data})
		}
	}

	if len(refs) == 0 {
		return &entity.StatusReport{
			Status:  entity.TaskStatusFailed,
			Message: fmt.Sprintf("%v: no images in response data", entity.ErrUnrecognizedResponseFormat),
		}
	}
	return &entity.StatusReport{
		Status:    entity.TaskStatusSucceeded,
		Artifacts: refs,
	}
}

func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
