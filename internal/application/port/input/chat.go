package input

import "context"

type ChatReply struct {
	Text string
	// Paths lists saved images when the line was a draw request.
	Paths []string
	Drew  bool
}

type ChatSession interface {
	Send(ctx context.Context, line string) (*ChatReply, error)
	Run(ctx context.Context) error
}
