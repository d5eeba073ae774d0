package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-reader/internal/di"
	"paper-reader/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	settings, err := envService.LoadSettings()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	paperPath := settings.PaperPath
	if len(os.Args) > 1 {
		paperPath = os.Args[1]
	}
	if paperPath == "" {
		log.Fatal("Usage: paper-reader <paper.pdf|paper.html|paper.md> (or set PAPER_PATH)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	container, err := di.NewContainer(settings, di.Options{LogName: "paper-reader"})
	if err != nil {
		log.Fatalf("Initialization error: %v", err)
	}
	defer container.Close()

	container.Logger.Info("Run started", "paper", paperPath, "app_env", envService.AppEnv())
	fmt.Printf("Reading %s ...\n", paperPath)

	expl, err := container.Explainer.Explain(ctx, paperPath)
	if err != nil {
		container.Logger.Error("Explanation failed", "error", err)
		fmt.Printf("\nExplanation failed: %v\n", err)
		container.Close()
		os.Exit(1)
	}

	fmt.Printf("\nSaved: %s\n", expl.OutputPath)
	fmt.Printf("Model: %s, duration: %.1fs, images: %s\n", expl.Model, expl.Duration.Seconds(), expl.ImageStatus)
}
