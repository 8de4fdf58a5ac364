package internal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/krelinga/video-generator/internal"
	"github.com/krelinga/video-generator/internal/generate"
	"github.com/krelinga/video-generator/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandlerConfig() *internal.HandlerConfig {
	return &internal.HandlerConfig{
		Engine:     &internal.EngineConfig{Host: "127.0.0.1", Port: 1},
		ScratchDir: os.TempDir(),
	}
}

func TestNewHandlerEmbedded(t *testing.T) {
	h, err := internal.NewHandler(context.Background(), testHandlerConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, h)

	// Invalid input fails before the engine is contacted.
	_, err = h.Handle(context.Background(), generate.Input{}, nil)
	assert.ErrorIs(t, err, generate.ErrInvalidInput)
}

func TestNewHandlerWorkflowDir(t *testing.T) {
	t.Run("missing patch table", func(t *testing.T) {
		cfg := testHandlerConfig()
		cfg.WorkflowDir = t.TempDir()
		_, err := internal.NewHandler(context.Background(), cfg, nil, zerolog.Nop())
		assert.ErrorIs(t, err, workflow.ErrTemplateLoad)
	})

	t.Run("patch table without templates", func(t *testing.T) {
		dir := t.TempDir()
		table, err := os.ReadFile("workflow/templates/" + workflow.PatchTableName)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, workflow.PatchTableName), table, 0o644))

		cfg := testHandlerConfig()
		cfg.WorkflowDir = dir
		_, err = internal.NewHandler(context.Background(), cfg, nil, zerolog.Nop())
		assert.ErrorContains(t, err, "do not match patch table")
	})
}
