// Package source defines the feed port the orchestrator samples from.
// Capture mechanics live behind it; the core only ever asks for one sample.
package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"safeguard/internal/analysis"
)

// ErrUnavailable means no feed is active; the sampling tick is skipped.
var ErrUnavailable = errors.New("no active feed")

// Source supplies raw frames or sensor bundles on demand.
type Source interface {
	Sample(ctx context.Context) (analysis.Sample, error)
}

// Func adapts a plain function to a Source.
type Func func(ctx context.Context) (analysis.Sample, error)

func (f Func) Sample(ctx context.Context) (analysis.Sample, error) { return f(ctx) }

// FileSource serves a still frame from disk, the uploaded-clip analogue of a
// live camera. The file is re-read on every sample so it can be swapped out
// underneath a running session.
type FileSource struct {
	Path string
}

func (s *FileSource) Sample(ctx context.Context) (analysis.Sample, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, ErrUnavailable
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, ErrUnavailable
	}
	frame := analysis.FrameSample{Data: data, MIME: mimeFor(s.Path)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width = cfg.Width
		frame.Height = cfg.Height
	}
	return frame, nil
}

func mimeFor(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
