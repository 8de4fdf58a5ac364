package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrDownload    = errors.New("failed to download input")
	ErrDecode      = errors.New("failed to decode base64 input")
	ErrUnknownKind = errors.New("unsupported input kind")
)

// Kind says how an input descriptor encodes its file.
type Kind string

const (
	KindPath   Kind = "path"
	KindURL    Kind = "url"
	KindInline Kind = "inline"
)

// Downloader fetches a remote resource into a local file.
type Downloader interface {
	Download(ctx context.Context, url string, dest string) error
}

// Resolver turns input descriptors into local files.
type Resolver struct {
	downloader Downloader
	logger     zerolog.Logger
}

func NewResolver(downloader Downloader, logger zerolog.Logger) *Resolver {
	return &Resolver{
		downloader: downloader,
		logger:     logger,
	}
}

// Resolve materializes descriptor as a local file and returns its path.
// Path descriptors are returned unchanged; url and inline descriptors are
// written to scratchDir/outputName and the absolute path is returned.
func (r *Resolver) Resolve(ctx context.Context, descriptor string, kind Kind, scratchDir, outputName string) (string, error) {
	switch kind {
	case KindPath:
		r.logger.Info().Str("path", descriptor).Msg("using input path")
		return descriptor, nil
	case KindURL:
		r.logger.Info().Str("url", descriptor).Msg("downloading input")
		if err := os.MkdirAll(scratchDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create scratch directory: %w", err)
		}
		dest, err := filepath.Abs(filepath.Join(scratchDir, outputName))
		if err != nil {
			return "", fmt.Errorf("failed to resolve output path: %w", err)
		}
		if err := r.downloader.Download(ctx, descriptor, dest); err != nil {
			r.logger.Error().Err(err).Str("url", descriptor).Msg("download failed")
			return "", err
		}
		r.logger.Info().Str("url", descriptor).Str("dest", dest).Msg("downloaded input")
		return dest, nil
	case KindInline:
		path, err := SaveBase64(descriptor, scratchDir, outputName)
		if err != nil {
			r.logger.Error().Err(err).Msg("inline input rejected")
			return "", err
		}
		r.logger.Info().Str("dest", path).Msg("saved inline input")
		return path, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// SaveBase64 decodes standard base64 data (optionally wrapped in a data URL)
// and writes it to dir/name, creating dir if needed.
func SaveBase64(data, dir, name string) (string, error) {
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+len(";base64,"):]
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}
	if err := os.WriteFile(path, decoded, 0o644); err != nil {
		return "", fmt.Errorf("failed to write decoded input: %w", err)
	}
	return path, nil
}
