package output

import (
	"context"

	"paper-reader/internal/domain/entity"
)

type TextExtractor interface {
	Extract(ctx context.Context, path string) (*entity.Paper, error)
}

type ReportStore interface {
	SaveReport(dir, name string, content []byte) (string, error)
}
