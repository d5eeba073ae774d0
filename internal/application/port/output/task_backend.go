package output

import (
	"context"
	"time"

	"paper-reader/internal/domain/entity"
)

// TaskBackend is a task-based generation service: Submit returns a handle at once,
// Status reports progress for that handle.
type TaskBackend interface {
	Name() string
	Submit(ctx context.Context, req entity.GenerationRequest) (entity.TaskHandle, error)
	Status(ctx context.Context, handle entity.TaskHandle) (*entity.StatusReport, error)
}

type ArtifactFetcher interface {
	Fetch(ctx context.Context, ref entity.ArtifactRef) (*entity.Artifact, error)
}

type ArtifactStore interface {
	SaveArtifact(dir string, artifact entity.Artifact) (string, error)
}

type BackendRegistry interface {
	Register(name string, factory BackendFactory)
	Get(name string) (BackendFactory, bool)
	Names() []string
}

type BackendFactory func(cfg BackendConfig) (TaskBackend, error)

type BackendConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds each HTTP call; zero means none.
	Timeout time.Duration
	Logger  LoggerPort
}
