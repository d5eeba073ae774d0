package input

import (
	"context"

	"paper-reader/internal/domain/entity"
)

type BatchItem struct {
	Request entity.GenerationRequest
	Result  *entity.GenerationResult
	Paths   []string
	Err     error
}

type ImageGenerator interface {
	Generate(ctx context.Context, req entity.GenerationRequest, dir string) (*entity.GenerationResult, []string, error)
	GenerateBatch(ctx context.Context, reqs []entity.GenerationRequest, dir string) []BatchItem
}
