package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// WgetDownloader downloads with the wget command line tool.
type WgetDownloader struct {
	// Timeout bounds a single download. Zero means no limit.
	Timeout time.Duration
	// Binary overrides the wget executable; defaults to "wget" on PATH.
	Binary string
}

func (d *WgetDownloader) Download(ctx context.Context, url string, dest string) error {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	binary := d.Binary
	if binary == "" {
		binary = "wget"
	}

	cmd := exec.CommandContext(ctx, binary, "-O", dest, "--no-verbose", url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// wget leaves an empty file behind when -O is given.
		_ = os.Remove(dest)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: timed out after %s", ErrDownload, url, d.Timeout)
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrDownload, url, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
