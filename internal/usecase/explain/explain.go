// Package explain is the paper explanation pipeline: extract the paper, ask the
// LLM for an explanation, illustrate it, then write the Markdown report.
package explain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"paper-reader/internal/application/port/input"
	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/prompts"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var _ input.PaperExplainer = (*UseCase)(nil)

var ErrExplanationTooShort = errors.New("explanation too short")

const (
	DefaultMinLength = 100
	imageSubdir      = "images"
	timestampLayout  = "20060102-150405"

	StatusImagesSkipped = "未生成"
	StatusImagesFailed  = "失败（API 错误）"
)

type Config struct {
	OutputDir    string
	MaxTokens    int
	MinLength    int
	ImagePrompts []string
	ImageSize    entity.Size
	ImageCount   int
}

func DefaultConfig() Config {
	return Config{
		OutputDir:    "outputs",
		MaxTokens:    8000,
		MinLength:    DefaultMinLength,
		ImagePrompts: prompts.DefaultImagePrompts,
		ImageSize:    entity.DefaultSize,
		ImageCount:   1,
	}
}

type UseCase struct {
	extractor output.TextExtractor
	llm       output.LLMPort
	images    input.ImageGenerator
	reports   output.ReportStore
	logger    output.LoggerPort
	cfg       Config

	now   func() time.Time
	newID func() string
}

// New wires the pipeline. images may be nil, in which case no illustrations are made.
func New(
	extractor output.TextExtractor,
	llm output.LLMPort,
	images input.ImageGenerator,
	reports output.ReportStore,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	return &UseCase{
		extractor: extractor,
		llm:       llm,
		images:    images,
		reports:   reports,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (uc *UseCase) Explain(ctx context.Context, paperPath string) (*entity.Explanation, error) {
	start := uc.now()
	runID := uc.newID()
	log := uc.logger.WithField("run_id", runID)

	log.Info("Explaining paper", "path", paperPath)

	paper, err := uc.extractor.Extract(ctx, paperPath)
	if err != nil {
		return nil, fmt.Errorf("extract paper: %w", err)
	}

	body, err := uc.explain(ctx, paper)
	if err != nil {
		return nil, err
	}
	duration := uc.now().Sub(start)
	log.Info("Explanation generated", "chars", utf8.RuneCountInString(body), "duration", duration.String())

	stamp := start.Format(timestampLayout)
	illustrations, status := uc.illustrate(ctx, log, stamp)

	expl := &entity.Explanation{
		RunID:         runID,
		Paper:         *paper,
		Body:          body,
		Model:         uc.llm.Model(),
		Illustrations: illustrations,
		ImageStatus:   status,
		Duration:      duration,
		GeneratedAt:   uc.now(),
	}

	content, err := renderReport(expl, uc.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	path, err := uc.reports.SaveReport(uc.cfg.OutputDir, "paper-explanation-"+stamp+".md", content)
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	expl.OutputPath = path

	log.Info("Report saved", "path", path, "images", status)
	return expl, nil
}

func (uc *UseCase) explain(ctx context.Context, paper *entity.Paper) (string, error) {
	userPrompt, err := prompts.GenerateUserPrompt(prompts.UserPromptTemplate, paper)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := uc.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: prompts.SystemPrompt},
			{Role: entity.RoleUser, Content: userPrompt},
		},
		MaxTokens: uc.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	body := strings.TrimSpace(resp.Message.Content)
	if n := utf8.RuneCountInString(body); n < uc.cfg.MinLength {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrExplanationTooShort, n, uc.cfg.MinLength)
	}
	return body, nil
}

// illustrate never fails the pipeline; problems end up in the status text.
func (uc *UseCase) illustrate(ctx context.Context, log output.LoggerPort, stamp string) ([]entity.Illustration, string) {
	if uc.images == nil || len(uc.cfg.ImagePrompts) == 0 {
		log.Info("Image generation skipped")
		return nil, StatusImagesSkipped
	}

	reqs := make([]entity.GenerationRequest, len(uc.cfg.ImagePrompts))
	for i, p := range uc.cfg.ImagePrompts {
		reqs[i] = entity.GenerationRequest{
			Prompt: p,
			Size:   uc.cfg.ImageSize,
			Count:  uc.cfg.ImageCount,
			Name:   fmt.Sprintf("%s_fig%d", stamp, i+1),
		}
	}

	items := uc.images.GenerateBatch(ctx, reqs, filepath.Join(uc.cfg.OutputDir, imageSubdir))

	var illustrations []entity.Illustration
	saved := 0
	for _, item := range items {
		if item.Err != nil {
			log.Warn("Illustration failed", "prompt", item.Request.Prompt, "error", item.Err)
			illustrations = append(illustrations, entity.Illustration{Prompt: item.Request.Prompt, Err: item.Err})
			continue
		}
		for _, path := range item.Paths {
			ill := inspect(item.Request.Prompt, path)
			if ill.Err != nil {
				log.Warn("Saved illustration is not a readable image", "path", path, "error", ill.Err)
			} else {
				saved++
			}
			illustrations = append(illustrations, ill)
		}
	}

	if saved == 0 {
		return illustrations, StatusImagesFailed
	}
	return illustrations, fmt.Sprintf("成功 (%d张)", saved)
}

func inspect(prompt, path string) entity.Illustration {
	ill := entity.Illustration{Prompt: prompt, Path: path}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		ill.Err = fmt.Errorf("decode %s: %w", path, err)
		return ill
	}
	bounds := img.Bounds()
	ill.Width = bounds.Dx()
	ill.Height = bounds.Dy()
	return ill
}
