package output

import "context"

// UserInteractionPort is the terminal side of an interactive session.
type UserInteractionPort interface {
	// AskQuestion prints prompt and returns one trimmed line. io.EOF means the
	// user closed the input.
	AskQuestion(ctx context.Context, prompt string) (string, error)

	ShowBanner(ctx context.Context, lines ...string)
	ShowThinking(ctx context.Context, status string)
	ShowReply(ctx context.Context, speaker, text string)
	ShowImages(ctx context.Context, paths []string)
	ShowError(ctx context.Context, err error)
}
