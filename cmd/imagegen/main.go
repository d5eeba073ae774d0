package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-reader/internal/di"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	settings, err := envService.LoadSettings()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	outDir := flag.String("o", "outputs/images", "output directory")
	name := flag.String("name", "", "filename stem (default image_<timestamp>)")
	backend := flag.String("backend", settings.Image.Backend, "image backend: dashscope, openai or gemini")
	size := flag.String("size", settings.Image.Size, "image size WIDTHxHEIGHT")
	count := flag.Int("n", settings.Image.Count, "images per prompt")
	negative := flag.String("negative", "", "negative prompt")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: imagegen [flags] <prompt> [prompt...]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	parsedSize, err := entity.ParseSize(*size)
	if err != nil {
		log.Fatalf("Invalid -size: %v", err)
	}
	settings.Image.Backend = *backend

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	container, err := di.NewContainer(settings, di.Options{LogName: "imagegen", WithoutLLM: true})
	if err != nil {
		log.Fatalf("Initialization error: %v", err)
	}
	defer container.Close()

	if container.Images == nil {
		container.Close()
		log.Fatal("IMAGE_API_KEY is not set")
	}

	container.Logger.Info("Run started", "prompts", flag.NArg(), "backend", *backend, "app_env", envService.AppEnv())

	reqs := make([]entity.GenerationRequest, 0, flag.NArg())
	for i, prompt := range flag.Args() {
		req := entity.GenerationRequest{
			Prompt:         prompt,
			NegativePrompt: *negative,
			Size:           parsedSize,
			Count:          *count,
		}
		if *name != "" {
			req.Name = *name
			if flag.NArg() > 1 {
				req.Name = fmt.Sprintf("%s-%d", *name, i+1)
			}
		}
		reqs = append(reqs, req)
	}

	failed := 0
	for _, item := range container.Images.GenerateBatch(ctx, reqs, *outDir) {
		if item.Err != nil {
			failed++
			fmt.Printf("FAILED  %q: %v\n", item.Request.Prompt, item.Err)
			continue
		}
		for _, path := range item.Paths {
			fmt.Printf("SAVED   %s\n", path)
		}
	}

	if failed == len(reqs) {
		container.Close()
		os.Exit(1)
	}
}
