// aicore-chat streams one chat completion to stdout. It exists to smoke
// test a destination end to end:
//
//	AICORE_DESTINATION__BASE_URL=... AICORE_DESTINATION__TOKEN=... \
//	  aicore-chat -model gpt-4o "Why is the sky blue?"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/anhofmann/aicore-go/internal/domain"
	"github.com/anhofmann/aicore-go/internal/telemetry"
	"github.com/anhofmann/aicore-go/pkg/aicore"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", "", "optional yaml config file")
	modelID := flag.String("model", "gpt-4o", "model id")
	backend := flag.String("backend", "orchestration", "backend: orchestration or foundation-models")
	trace := flag.Bool("trace", false, "print otel spans to stdout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: aicore-chat [flags] <prompt>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	prompt := strings.Join(flag.Args(), " ")

	cfg, err := aicore.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if *trace {
		shutdown, err := telemetry.InitTracer("aicore-chat", logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	provider, err := aicore.New(cfg, aicore.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create provider: %v", err)
	}
	defer provider.Close()

	model, err := provider.LanguageModel(aicore.Backend(*backend), aicore.ModelConfig{ModelID: *modelID}, nil)
	if err != nil {
		log.Fatalf("Failed to create model: %v", err)
	}

	result, err := model.Stream(context.Background(), aicore.CallOptions{
		Prompt: []aicore.Message{
			{Role: domain.RoleUser, Parts: []aicore.ContentPart{domain.TextPart(prompt)}},
		},
	})
	if err != nil {
		log.Fatalf("Stream failed: %v", err)
	}

	for event := range result.Events {
		switch event.Type {
		case aicore.EventStreamStart:
			for _, warning := range event.Warnings {
				logger.Warn("call warning", slog.String("kind", string(warning.Kind)),
					slog.String("message", warning.Message))
			}
		case aicore.EventTextDelta:
			fmt.Print(event.Delta)
		case aicore.EventFinish:
			fmt.Println()
			if event.Usage != nil && event.Usage.Output.Total != nil {
				logger.Info("done",
					slog.String("finish", string(event.FinishReason.Kind)),
					slog.Int("output_tokens", *event.Usage.Output.Total))
			}
		case aicore.EventError:
			log.Fatalf("Stream error: %v", event.Err)
		}
	}
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
