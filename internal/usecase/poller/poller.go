// Package poller drives task-based generation APIs: submit a request, poll the
// task at a fixed interval until it is terminal, then persist what it produced.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paper-reader/internal/application/port/input"
	"paper-reader/internal/application/port/output"
	"paper-reader/internal/application/service"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/imagegen/payload"
)

var _ input.ImageGenerator = (*UseCase)(nil)

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

type UseCase struct {
	backend output.TaskBackend
	fetcher output.ArtifactFetcher
	store   output.ArtifactStore
	logger  output.LoggerPort
	cfg     Config

	sleep SleepFunc
	now   func() time.Time
}

type Option func(*UseCase)

func WithSleep(sleep SleepFunc) Option {
	return func(uc *UseCase) { uc.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

func New(
	backend output.TaskBackend,
	fetcher output.ArtifactFetcher,
	store output.ArtifactStore,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		backend: backend,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		cfg:     cfg,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// NewFromRegistry builds the named backend from cfg's credentials and wraps it.
func NewFromRegistry(
	registry output.BackendRegistry,
	backendName string,
	fetcher output.ArtifactFetcher,
	store output.ArtifactStore,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) (*UseCase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	backend, err := service.Build(registry, backendName, output.BackendConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return New(backend, fetcher, store, logger, cfg, opts...), nil
}

// Submit sends one request. It is never retried.
func (uc *UseCase) Submit(ctx context.Context, req entity.GenerationRequest) (entity.TaskHandle, error) {
	if req.Prompt == "" {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: uc.backend.Name(), Err: errors.New("prompt is required")}
	}
	if req.Size.IsZero() {
		req.Size = entity.DefaultSize
	}
	if req.Count < 1 {
		req.Count = 1
	}

	handle, err := uc.backend.Submit(ctx, req)
	if err != nil {
		uc.logger.Error("Task submission failed", "backend", uc.backend.Name(), "error", err)
		var subErr *entity.SubmissionError
		if errors.As(err, &subErr) {
			return entity.TaskHandle{}, err
		}
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: uc.backend.Name(), Err: err}
	}
	if handle.ID == "" {
		return entity.TaskHandle{}, &entity.SubmissionError{Backend: uc.backend.Name(), Err: errors.New("empty task id")}
	}

	uc.logger.Info("Task submitted", "task_id", handle.ID, "backend", handle.Backend, "size", req.Size.String())
	return handle, nil
}

// Poll queries the task every interval, at most maxAttempts times, waiting before
// each query. It always returns a result with a terminal status.
func (uc *UseCase) Poll(ctx context.Context, handle entity.TaskHandle, interval time.Duration, maxAttempts int) *entity.GenerationResult {
	result := &entity.GenerationResult{TaskID: handle.ID}
	log := uc.logger.WithField("task_id", handle.ID)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := uc.sleep(ctx, interval); err != nil {
			log.Warn("Polling cancelled", "attempt", attempt, "error", err)
			return uc.finish(result, entity.TaskStatusTimedOut, fmt.Sprintf("cancelled after %d queries: %v", result.Attempts, err))
		}

		result.Attempts = attempt
		report, err := uc.backend.Status(ctx, handle)
		if err != nil {
			log.Warn("Status query failed", "error", &entity.PollingError{TaskID: handle.ID, Attempt: attempt, Err: err})
			continue
		}

		log.Debug("Task status", "attempt", attempt, "status", string(report.Status))

		switch report.Status {
		case entity.TaskStatusSucceeded:
			return uc.collect(ctx, result, report)
		case entity.TaskStatusFailed, entity.TaskStatusTimedOut:
			msg := report.Message
			if msg == "" {
				msg = "task failed without a message"
			}
			log.Warn("Task failed", "message", msg)
			return uc.finish(result, entity.TaskStatusFailed, msg)
		}
	}

	log.Warn("Task timed out", "attempts", result.Attempts)
	return uc.finish(result, entity.TaskStatusTimedOut, fmt.Sprintf("no terminal status after %d queries", result.Attempts))
}

// collect turns a SUCCEEDED report into artifacts. A success without retrievable
// artifacts is reported as FAILED.
func (uc *UseCase) collect(ctx context.Context, result *entity.GenerationResult, report *entity.StatusReport) *entity.GenerationResult {
	refs := report.Artifacts
	if len(refs) == 0 {
		var err error
		refs, err = payload.Extract(report.Payload)
		if err != nil {
			uc.logger.Error("No artifact in successful task", "task_id", result.TaskID, "error", err)
			return uc.finish(result, entity.TaskStatusFailed, err.Error())
		}
	}

	artifacts := make([]entity.Artifact, 0, len(refs))
	for i, ref := range refs {
		artifact, err := uc.fetcher.Fetch(ctx, ref)
		if err != nil {
			uc.logger.Error("Artifact retrieval failed", "task_id", result.TaskID, "index", i+1, "error", err)
			return uc.finish(result, entity.TaskStatusFailed, fmt.Sprintf("retrieve artifact %d: %v", i+1, err))
		}
		artifacts = append(artifacts, *artifact)
	}

	nameArtifacts(artifacts, defaultStem(uc.now()))
	result.Artifacts = artifacts
	uc.logger.Info("Task succeeded", "task_id", result.TaskID, "artifacts", len(artifacts), "attempts", result.Attempts)
	return uc.finish(result, entity.TaskStatusSucceeded, "")
}

func (uc *UseCase) finish(result *entity.GenerationResult, status entity.TaskStatus, msg string) *entity.GenerationResult {
	result.Status = status
	result.Message = msg
	result.Finished = uc.now()
	if status != entity.TaskStatusSucceeded {
		result.Artifacts = nil
	}
	return result
}

// Persist writes one new file per artifact of a successful result and returns the
// paths. Anything but SUCCEEDED writes nothing. A failed write does not stop the
// remaining artifacts; the returned paths cover every file written and the error
// joins one IOError per failed artifact.
func (uc *UseCase) Persist(result *entity.GenerationResult, dir string) ([]string, error) {
	if !result.Succeeded() {
		return nil, nil
	}

	stem := ""
	paths := make([]string, 0, len(result.Artifacts))
	var errs []error
	for i, artifact := range result.Artifacts {
		if artifact.Filename == "" {
			if stem == "" {
				stem = defaultStem(uc.now())
			}
			artifact.Filename = artifactFilename(stem, i+1, artifact.MimeType)
		}

		path, err := uc.store.SaveArtifact(dir, artifact)
		if err != nil {
			uc.logger.Error("Persist failed", "task_id", result.TaskID, "file", artifact.Filename, "error", err)
			var ioErr *entity.IOError
			if !errors.As(err, &ioErr) {
				err = &entity.IOError{Path: dir, Err: err}
			}
			errs = append(errs, err)
			continue
		}
		uc.logger.Info("Artifact saved", "task_id", result.TaskID, "path", path, "bytes", len(artifact.Data))
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// Generate runs submit, poll and persist for one request with the configured budget.
func (uc *UseCase) Generate(ctx context.Context, req entity.GenerationRequest, dir string) (*entity.GenerationResult, []string, error) {
	handle, err := uc.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	result := uc.Poll(ctx, handle, uc.cfg.PollInterval, uc.cfg.MaxAttempts)
	if !result.Succeeded() {
		return result, nil, result.Err()
	}

	if stem := sanitizeStem(req.Name); stem != "" {
		nameArtifacts(result.Artifacts, stem)
	}

	paths, err := uc.Persist(result, dir)
	return result, paths, err
}

// GenerateBatch handles requests one at a time with RequestDelay between them.
// Each item is reported on its own; a failure never stops the rest.
func (uc *UseCase) GenerateBatch(ctx context.Context, reqs []entity.GenerationRequest, dir string) []input.BatchItem {
	items := make([]input.BatchItem, len(reqs))
	succeeded := 0

	for i, req := range reqs {
		items[i].Request = req

		if i > 0 && uc.cfg.RequestDelay > 0 {
			if err := uc.sleep(ctx, uc.cfg.RequestDelay); err != nil {
				items[i].Err = err
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			items[i].Err = err
			continue
		}

		uc.logger.Info("Generating image", "index", i+1, "total", len(reqs))
		result, paths, err := uc.Generate(ctx, req, dir)
		items[i].Result = result
		items[i].Paths = paths
		items[i].Err = err
		if err != nil {
			uc.logger.Warn("Image generation failed", "index", i+1, "error", err)
			continue
		}
		succeeded++
	}

	uc.logger.Info("Batch finished", "total", len(reqs), "succeeded", succeeded)
	return items
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
