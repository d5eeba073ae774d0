package input

import (
	"context"

	"paper-reader/internal/domain/entity"
)

type PaperExplainer interface {
	Explain(ctx context.Context, paperPath string) (*entity.Explanation, error)
}
