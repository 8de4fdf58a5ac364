package generate

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/krelinga/video-generator/internal/comfy"
	"github.com/krelinga/video-generator/internal/media"
	"github.com/krelinga/video-generator/internal/metrics"
	"github.com/krelinga/video-generator/internal/workflow"
	"github.com/rs/zerolog"
)

const (
	// InputImageName is the file name of a downloaded or decoded input image
	// inside the task's scratch directory.
	InputImageName = "input_image.jpg"

	ResultVideoNotFound = "video not found"
)

// Engine runs a patched graph and returns its outputs.
type Engine interface {
	Run(ctx context.Context, g workflow.Graph, progress comfy.ProgressFunc) (comfy.Outputs, error)
}

// ArtifactStore persists a produced video and returns a URL for it.
type ArtifactStore interface {
	Put(ctx context.Context, jobID, filename string, data []byte) (string, error)
}

// Result is the job result document. Exactly one field is set.
type Result struct {
	Video    string `json:"video,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Config struct {
	Engine   Engine
	Resolver *media.Resolver
	Store    *workflow.Store
	Patches  *workflow.PatchTable
	// Artifacts is optional. When set, videos are uploaded and returned by
	// URL instead of inline.
	Artifacts ArtifactStore
	Metrics   *metrics.Registry
	// ScratchRoot holds one task_<id> directory per job.
	ScratchRoot string
	// PrimaryOutput is the output node whose artifact is returned when it
	// produced one.
	PrimaryOutput string
	Logger        zerolog.Logger
}

type Handler struct {
	cfg Config
}

func NewHandler(cfg Config) *Handler {
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = "."
	}
	return &Handler{cfg: cfg}
}

// Handle runs one generation job. Input errors surface as ErrInvalidInput
// before any template load or network access. A run that completes without
// producing a video is not an error; the result carries "video not found".
func (h *Handler) Handle(ctx context.Context, in Input, progress comfy.ProgressFunc) (result *Result, err error) {
	taskID := uuid.NewString()
	variant := in.Variant()
	logger := h.cfg.Logger.With().Str("task_id", taskID).Str("variant", string(variant)).Logger()

	if m := h.cfg.Metrics; m != nil {
		start := time.Now()
		done := m.TrackInFlight()
		defer func() {
			done()
			outcome := metrics.OutcomeSuccess
			switch {
			case err != nil:
				outcome = metrics.OutcomeFailure
			case result != nil && result.Error != "":
				outcome = metrics.OutcomeNoVideo
			}
			m.RecordJob(string(variant), outcome, time.Since(start))
		}()
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	params, err := in.Params()
	if err != nil {
		return nil, err
	}

	if descriptor, kind, ok := in.image(); ok {
		scratch := filepath.Join(h.cfg.ScratchRoot, "task_"+taskID)
		path, err := h.cfg.Resolver.Resolve(ctx, descriptor, kind, scratch, InputImageName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input image: %w", err)
		}
		params.Image = path
		logger.Info().Str("image", path).Str("source", string(kind)).Msg("input image resolved")
	}

	graph, err := h.cfg.Store.Load(variant)
	if err != nil {
		return nil, err
	}
	if err := h.cfg.Patches.Apply(graph, variant, params); err != nil {
		return nil, err
	}
	logger.Info().
		Int("width", params.Width).
		Int("height", params.Height).
		Int("length", params.Length).
		Int("steps", params.Steps).
		Uint64("seed", params.Seed).
		Float64("frame_rate", params.FrameRate).
		Msg("workflow prepared")

	outputs, err := h.cfg.Engine.Run(ctx, graph, h.progress(progress))
	if err != nil {
		return nil, err
	}

	artifact, nodeID, ok := outputs.Primary(h.cfg.PrimaryOutput)
	if !ok {
		logger.Warn().Int("output_nodes", len(outputs)).Msg("no video in outputs")
		return &Result{Error: ResultVideoNotFound}, nil
	}
	logger.Info().Str("node", nodeID).Str("file", artifact.Filename).Int("bytes", len(artifact.Data)).Msg("video produced")
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.RecordArtifact(len(artifact.Data))
	}

	if h.cfg.Artifacts != nil {
		u, err := h.cfg.Artifacts.Put(ctx, taskID, artifact.Filename, artifact.Data)
		if err != nil {
			return nil, err
		}
		return &Result{VideoURL: u}, nil
	}
	return &Result{Video: base64.StdEncoding.EncodeToString(artifact.Data)}, nil
}

func (h *Handler) progress(next comfy.ProgressFunc) comfy.ProgressFunc {
	if h.cfg.Metrics == nil {
		return next
	}
	return func(p comfy.Progress) {
		h.cfg.Metrics.SetProgress(p.Percent())
		if next != nil {
			next(p)
		}
	}
}
