package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/krelinga/video-generator/internal"
	"github.com/krelinga/video-generator/internal/comfy"
	"github.com/krelinga/video-generator/internal/generate"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

const defaultProgressInterval = 30 * time.Second

// Generator runs one generation. *generate.Handler satisfies it.
type Generator interface {
	Handle(ctx context.Context, in generate.Input, progress comfy.ProgressFunc) (*generate.Result, error)
}

// GenerateWorker runs generation jobs against the engine.
type GenerateWorker struct {
	river.WorkerDefaults[internal.GenerateJobArgs]
	Generator Generator
	Logger    zerolog.Logger
	// ProgressInterval throttles progress output and heartbeat webhooks.
	ProgressInterval time.Duration
	// InsertWebhook enqueues a webhook job. Nil inserts through the River
	// client working the job.
	InsertWebhook func(ctx context.Context, args internal.WebhookJobArgs) error
}

// Timeout disables River's job timeout. Generations run for many minutes and
// the engine client enforces its own execution deadline.
func (w *GenerateWorker) Timeout(*river.Job[internal.GenerateJobArgs]) time.Duration {
	return -1
}

func (w *GenerateWorker) Work(ctx context.Context, job *river.Job[internal.GenerateJobArgs]) error {
	args := job.Args
	logger := w.Logger.With().Stringer("uuid", args.UUID).Int64("river_job_id", job.ID).Logger()
	logger.Info().Str("variant", string(args.Input.Variant())).Msg("generation started")

	interval := w.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	var mu sync.Mutex
	var lastUpdate time.Time
	var lastProgress float64
	onProgress := func(p comfy.Progress) {
		mu.Lock()
		defer mu.Unlock()
		current := p.Percent()
		if time.Since(lastUpdate) < interval && current < 100 {
			return
		}
		lastUpdate = time.Now()
		lastProgress = current

		status := internal.GenerateJobStatus{Progress: current}
		if err := river.RecordOutput(ctx, status); err != nil {
			logger.Debug().Err(err).Msg("failed to record progress")
		}
		if args.HeartbeatWebhookURI != nil {
			w.notify(ctx, logger, internal.WebhookJobArgs{
				URI:         *args.HeartbeatWebhookURI,
				Token:       args.WebhookToken,
				UUID:        args.UUID,
				Status:      &status,
				IsHeartbeat: true,
			})
		}
	}

	result, err := w.Generator.Handle(ctx, args.Input, onProgress)
	if err != nil {
		errMsg := err.Error()
		mu.Lock()
		status := internal.GenerateJobStatus{Progress: lastProgress, Error: &errMsg}
		mu.Unlock()
		if recErr := river.RecordOutput(ctx, status); recErr != nil {
			logger.Debug().Err(recErr).Msg("failed to record error status")
		}
		w.notifyDone(ctx, logger, args, &status)
		logger.Error().Err(err).Msg("generation failed")
		return fmt.Errorf("generation failed: %w", err)
	}

	status := internal.GenerateJobStatus{Progress: 100, Result: result}
	if err := river.RecordOutput(ctx, status); err != nil {
		logger.Error().Err(err).Msg("failed to record result")
	}
	w.notifyDone(ctx, logger, args, &status)

	if result.Error != "" {
		logger.Warn().Str("result_error", result.Error).Msg("generation finished without a video")
	} else {
		logger.Info().Msg("generation completed")
	}
	return nil
}

func (w *GenerateWorker) notifyDone(ctx context.Context, logger zerolog.Logger, args internal.GenerateJobArgs, status *internal.GenerateJobStatus) {
	if args.WebhookURI == nil {
		return
	}
	w.notify(ctx, logger, internal.WebhookJobArgs{
		URI:    *args.WebhookURI,
		Token:  args.WebhookToken,
		UUID:   args.UUID,
		Status: status,
	})
}

// notify enqueues a webhook. Failures are logged and never fail the job.
func (w *GenerateWorker) notify(ctx context.Context, logger zerolog.Logger, args internal.WebhookJobArgs) {
	insert := w.InsertWebhook
	if insert == nil {
		insert = insertWebhookFromContext
	}
	// A cancelled job still reports its outcome.
	if err := insert(context.WithoutCancel(ctx), args); err != nil {
		logger.Warn().Err(err).Bool("heartbeat", args.IsHeartbeat).Msg("failed to enqueue webhook")
	}
}

func insertWebhookFromContext(ctx context.Context, args internal.WebhookJobArgs) error {
	client, err := river.ClientFromContextSafely[pgx.Tx](ctx)
	if err != nil {
		return errors.Join(errors.New("no river client in context"), err)
	}
	_, err = client.Insert(ctx, args, nil)
	return err
}
