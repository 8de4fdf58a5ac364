package internal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/krelinga/video-generator/internal/comfy"
	"github.com/krelinga/video-generator/internal/generate"
	"github.com/krelinga/video-generator/internal/media"
	"github.com/krelinga/video-generator/internal/metrics"
	"github.com/krelinga/video-generator/internal/storage"
	"github.com/krelinga/video-generator/internal/workflow"
	"github.com/rs/zerolog"
)

// NewHandler wires a generation handler from configuration. The patch table
// is checked against the templates so a template revision mismatch fails
// here instead of on the first job. reg may be nil.
func NewHandler(ctx context.Context, cfg *HandlerConfig, reg *metrics.Registry, logger zerolog.Logger) (*generate.Handler, error) {
	store := workflow.NewDefaultStore()
	if cfg.WorkflowDir != "" {
		store = workflow.NewDirStore(cfg.WorkflowDir)
	}
	patches, err := workflow.LoadPatchTable(store.FS())
	if err != nil {
		return nil, fmt.Errorf("failed to load patch table: %w", err)
	}
	if err := patches.Validate(store); err != nil {
		return nil, fmt.Errorf("workflow templates do not match patch table: %w", err)
	}

	clientID := uuid.NewString()
	engine := comfy.NewClient(comfy.Config{
		Host:             cfg.Engine.Host,
		Port:             cfg.Engine.Port,
		ClientID:         clientID,
		ExecutionTimeout: cfg.Engine.ExecutionTimeout,
		Logger:           logger,
	})
	logger.Info().
		Str("engine_host", cfg.Engine.Host).
		Int("engine_port", cfg.Engine.Port).
		Str("client_id", clientID).
		Msg("engine client configured")

	hcfg := generate.Config{
		Engine:        engine,
		Resolver:      media.NewResolver(&media.WgetDownloader{Timeout: cfg.DownloadTimeout}, logger),
		Store:         store,
		Patches:       patches,
		Metrics:       reg,
		ScratchRoot:   cfg.ScratchDir,
		PrimaryOutput: cfg.Engine.PrimaryOutput,
		Logger:        logger,
	}
	if cfg.S3 != nil {
		artifacts, err := storage.NewS3Store(ctx, *cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure artifact store: %w", err)
		}
		hcfg.Artifacts = artifacts
	}
	return generate.NewHandler(hcfg), nil
}
