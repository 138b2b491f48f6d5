package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"alfred/internal/config"
	"alfred/internal/daemon"
	"alfred/internal/llm"
	"alfred/internal/logging"
	"alfred/internal/model"
)

func main() {
	var (
		configPath = flag.String("config", "", "configuration file path")
		logLevel   = flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
		preload    = flag.Bool("preload", false, "load the model at startup instead of on first request")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare data directories: %v", err)
	}
	if level := strings.TrimSpace(*logLevel); level != "" {
		cfg.Logging.Level = level
	}

	logger, err := logging.NewFromConfig(cfg, true)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	gen := cfg.Generation
	engine := llm.NewEngine(llm.Options{ContextSize: gen.ContextSize})
	resource := model.NewResource(engine, cfg.ModelPath, llm.Params{
		MaxTokens:   gen.MaxTokens,
		Temperature: gen.Temperature,
		TopK:        gen.TopK,
		TopP:        gen.TopP,
		Threads:     gen.Threads,
	}, logger)

	if *preload {
		if err := resource.EnsureLoaded(ctx); err != nil {
			logger.Error("model preload failed", logging.Error(err))
			os.Exit(1)
		}
	}

	d := daemon.New(cfg, resource, logger)
	if err := d.Run(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			logger.Error("daemon exited", logging.Error(err))
			fmt.Fprintf(os.Stderr, "alferd: %v\n", err)
		}
		os.Exit(1)
	}
}
