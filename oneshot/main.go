// Command oneshot runs a single generation outside the job queue. It reads a
// job document from the file named by its argument, or from stdin, and
// prints the result document to stdout.
//
// The document is either {"input": {...}} or a bare input object.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/krelinga/video-generator/internal"
	"github.com/krelinga/video-generator/internal/comfy"
	"github.com/krelinga/video-generator/internal/generate"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "oneshot").Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := io.Reader(os.Stdin)
	if len(os.Args) > 1 && os.Args[1] != "-" {
		f, err := os.Open(os.Args[1])
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open job document")
		}
		defer f.Close()
		src = f
	}

	result, err := run(ctx, src, internal.NewHandlerConfigFromEnv(), logger)
	if err != nil {
		// The failure is still reported as a result document.
		result = &generate.Result{Error: err.Error()}
	}
	if encErr := json.NewEncoder(os.Stdout).Encode(result); encErr != nil {
		logger.Fatal().Err(encErr).Msg("failed to write result")
	}
	if err != nil {
		logger.Error().Err(err).Msg("generation failed")
		os.Exit(1)
	}
}

type jobDocument struct {
	Input *generate.Input `json:"input"`
}

// readInput accepts either a wrapped or a bare input document.
func readInput(r io.Reader) (generate.Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return generate.Input{}, fmt.Errorf("failed to read job document: %w", err)
	}
	var doc jobDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return generate.Input{}, fmt.Errorf("%w: job document is not JSON: %v", generate.ErrInvalidInput, err)
	}
	if doc.Input != nil {
		return *doc.Input, nil
	}
	var in generate.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return generate.Input{}, fmt.Errorf("%w: %v", generate.ErrInvalidInput, err)
	}
	return in, nil
}

func run(ctx context.Context, src io.Reader, cfg *internal.HandlerConfig, logger zerolog.Logger) (*generate.Result, error) {
	in, err := readInput(src)
	if err != nil {
		return nil, err
	}
	handler, err := internal.NewHandler(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return handler.Handle(ctx, in, func(p comfy.Progress) {
		logger.Info().Float64("percent", p.Percent()).Msg("progress")
	})
}
