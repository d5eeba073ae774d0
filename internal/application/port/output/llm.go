package output

import (
	"context"

	"paper-reader/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Model() string
}

type ChatRequest struct {
	Messages    []entity.Message
	MaxTokens   int
	Temperature float32
}

type ChatResponse struct {
	Message entity.Message
}
