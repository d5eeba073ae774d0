package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"paper-reader/internal/application/port/input"
	"paper-reader/internal/di"
	"paper-reader/internal/infrastructure/env"
	"paper-reader/internal/infrastructure/userinteraction"
	"paper-reader/internal/usecase/chat"
)

func main() {
	envService := env.NewEnvService()

	base, err := envService.LoadSettings()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	settings, err := envService.ForGeminiChat(*base)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(settings, di.Options{LogName: "gemini-chat", WithoutLLM: true})
	if err != nil {
		log.Fatalf("Initialization error: %v", err)
	}
	defer container.Close()

	llm, err := di.NewLLM(settings.LLM, container.Logger)
	if err != nil {
		container.Close()
		log.Fatalf("Initialization error: %v", err)
	}

	var images input.ImageGenerator
	if container.Images != nil {
		images = container.Images
	}

	size, _ := settings.Image.ParsedSize()
	cfg := chat.DefaultConfig()
	cfg.OutputDir = filepath.Join(settings.OutputDir, "pic")
	cfg.MaxTokens = settings.LLM.MaxTokens
	cfg.ImageSize = size
	cfg.ImageCount = settings.Image.Count

	session := chat.New(llm, images, userinteraction.NewConsoleUserInteraction(), container.Logger, cfg)
	container.Logger.Info("Chat started", "model", llm.Model(), "images", images != nil, "app_env", envService.AppEnv())

	if len(os.Args) > 1 {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if err := session.Once(ctx, os.Args[1:]); err != nil {
			fmt.Printf("❌ %v\n", err)
			container.Close()
			os.Exit(1)
		}
		return
	}

	// A blocked stdin read does not see ctx; closing stdin ends it on Ctrl-C.
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	if err := session.Run(ctx); err != nil {
		container.Logger.Error("Chat ended with error", "error", err)
		fmt.Printf("程序出错: %v\n", err)
	}
}
