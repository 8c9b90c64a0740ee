package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"safeguard/internal/analysis"
)

func TestFileSourceReadsFrame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xe0}, 0o644))

	s := &FileSource{Path: path}
	sample, err := s.Sample(context.Background())
	require.NoError(t, err)

	frame, ok := sample.(analysis.FrameSample)
	require.True(t, ok)
	require.Equal(t, "image/jpeg", frame.MIME)
	require.NotEmpty(t, frame.Data)
}

func TestFileSourceUnavailable(t *testing.T) {
	s := &FileSource{}
	_, err := s.Sample(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	s = &FileSource{Path: filepath.Join(t.TempDir(), "missing.jpg")}
	_, err = s.Sample(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestMimeFor(t *testing.T) {
	require.Equal(t, "image/png", mimeFor("clip.PNG"))
	require.Equal(t, "image/jpeg", mimeFor("clip.jpg"))
	require.Equal(t, "image/jpeg", mimeFor("clip.bin"))
}
