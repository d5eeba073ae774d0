// Package chat is the interactive assistant: multi-turn conversation with an
// LLM, with draw requests routed to image generation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"paper-reader/internal/application/port/input"
	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
)

var _ input.ChatSession = (*Session)(nil)

var (
	ErrImagesDisabled = errors.New("image generation is not configured")
	ErrEmptyPrompt    = errors.New("nothing to draw")
)

const (
	drawCommand = "/draw"
	drawPrefix  = "画"
	// drawnMarker stands in for an image in the conversation history.
	drawnMarker = "（已生成图片）"

	DefaultSystemPrompt = "You are a helpful assistant. You must answer in Chinese (Simplified). " +
		"Do not output your thinking process (thoughts). 只输出最终结果。"
	DefaultReplySuffix = "(Only output the final result in Simplified Chinese. Do not output thoughts or reasoning process.)"
)

var exitWords = map[string]bool{"exit": true, "quit": true, "退出": true}

type Config struct {
	Speaker      string
	SystemPrompt string
	// ReplySuffix is appended to the newest user turn of each request but never
	// stored in the history.
	ReplySuffix string
	MaxTokens   int
	OutputDir   string
	ImageSize   entity.Size
	ImageCount  int
}

func DefaultConfig() Config {
	return Config{
		Speaker:      "Gemini",
		SystemPrompt: DefaultSystemPrompt,
		ReplySuffix:  DefaultReplySuffix,
		OutputDir:    "pic",
		ImageSize:    entity.DefaultSize,
		ImageCount:   1,
	}
}

type Session struct {
	llm     output.LLMPort
	images  input.ImageGenerator
	ui      output.UserInteractionPort
	logger  output.LoggerPort
	cfg     Config
	history []entity.Message
}

// New builds a session; images may be nil, in which case draw requests fail
// with ErrImagesDisabled.
func New(llm output.LLMPort, images input.ImageGenerator, ui output.UserInteractionPort, logger output.LoggerPort, cfg Config) *Session {
	return &Session{
		llm:    llm,
		images: images,
		ui:     ui,
		logger: logger,
		cfg:    cfg,
	}
}

// IsExit reports whether line ends the interactive loop.
func IsExit(line string) bool {
	return exitWords[strings.ToLower(strings.TrimSpace(line))]
}

// DrawPrompt returns the image prompt of a draw request. "/draw" is a command
// and is stripped; "画" is part of the sentence and kept.
func DrawPrompt(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == drawCommand || strings.HasPrefix(trimmed, drawCommand+" "):
		return strings.TrimSpace(strings.TrimPrefix(trimmed, drawCommand)), true
	case strings.HasPrefix(trimmed, drawPrefix):
		return trimmed, true
	default:
		return "", false
	}
}

func (s *Session) History() []entity.Message {
	return append([]entity.Message(nil), s.history...)
}

// Send handles one line: a draw request goes to the image generator, anything
// else to the LLM with the whole conversation so far.
func (s *Session) Send(ctx context.Context, line string) (*input.ChatReply, error) {
	line = strings.TrimSpace(line)
	if prompt, ok := DrawPrompt(line); ok {
		return s.draw(ctx, line, prompt)
	}
	return s.talk(ctx, line)
}

func (s *Session) talk(ctx context.Context, line string) (*input.ChatReply, error) {
	s.history = append(s.history, entity.Message{Role: entity.RoleUser, Content: line})

	resp, err := s.llm.Chat(ctx, output.ChatRequest{
		Messages:  s.requestMessages(),
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		s.history = s.history[:len(s.history)-1]
		s.logger.Error("Chat failed", "model", s.llm.Model(), "error", err)
		return nil, fmt.Errorf("chat: %w", err)
	}

	text := resp.Message.Content
	s.history = append(s.history, entity.Message{Role: entity.RoleAssistant, Content: text})
	s.logger.Debug("Chat reply", "model", s.llm.Model(), "turns", len(s.history), "chars", len(text))
	return &input.ChatReply{Text: text}, nil
}

func (s *Session) requestMessages() []entity.Message {
	messages := make([]entity.Message, 0, len(s.history)+1)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, entity.Message{Role: entity.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	messages = append(messages, s.history...)

	last := len(messages) - 1
	if s.cfg.ReplySuffix != "" && last >= 0 && messages[last].Role == entity.RoleUser {
		messages[last].Content += "\n" + s.cfg.ReplySuffix
	}
	return messages
}

// draw keeps the conversation in step: a successful drawing is recorded as a
// user turn plus a placeholder answer.
func (s *Session) draw(ctx context.Context, line, prompt string) (*input.ChatReply, error) {
	if s.images == nil {
		return nil, ErrImagesDisabled
	}
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	result, paths, err := s.images.Generate(ctx, entity.GenerationRequest{
		Prompt: prompt,
		Size:   s.cfg.ImageSize,
		Count:  s.cfg.ImageCount,
	}, s.cfg.OutputDir)
	if err != nil {
		s.logger.Error("Draw failed", "prompt", prompt, "error", err)
		return nil, fmt.Errorf("draw: %w", err)
	}

	s.history = append(s.history,
		entity.Message{Role: entity.RoleUser, Content: line},
		entity.Message{Role: entity.RoleAssistant, Content: drawnMarker},
	)
	s.logger.Info("Draw finished", "task_id", result.TaskID, "files", len(paths))
	return &input.ChatReply{Text: drawnMarker, Paths: paths, Drew: true}, nil
}

// Run is the interactive loop. It ends on an exit word, closed input or a
// cancelled context; failed turns are shown and the loop goes on.
func (s *Session) Run(ctx context.Context) error {
	s.ui.ShowBanner(ctx,
		fmt.Sprintf("欢迎使用 %s 智能助手", s.cfg.Speaker),
		"聊天: 直接输入文字",
		"画图: 输入 '画一只猫' 或 '/draw a cat'",
		"退出: exit / quit / 退出",
	)

	for {
		line, err := s.ui.AskQuestion(ctx, "您: ")
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if IsExit(line) {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := s.respond(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.ui.ShowError(ctx, err)
		}
	}
}

// Once answers a single line, as when the prompt comes from the command line.
func (s *Session) Once(ctx context.Context, args []string) error {
	line := strings.TrimSpace(strings.Join(args, " "))
	if line == "" {
		return errors.New("empty prompt")
	}
	return s.respond(ctx, line)
}

func (s *Session) respond(ctx context.Context, line string) error {
	if _, ok := DrawPrompt(line); ok {
		s.ui.ShowThinking(ctx, fmt.Sprintf("%s 正在绘图...", s.cfg.Speaker))
	} else {
		s.ui.ShowThinking(ctx, fmt.Sprintf("%s 正在思考...", s.cfg.Speaker))
	}

	reply, err := s.Send(ctx, line)
	if err != nil {
		return err
	}
	if reply.Drew {
		s.ui.ShowImages(ctx, reply.Paths)
	} else {
		s.ui.ShowReply(ctx, s.cfg.Speaker, reply.Text)
	}
	return nil
}
