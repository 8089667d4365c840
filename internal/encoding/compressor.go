// Package encoding compresses processed audio with ffmpeg before archival.
// Compression is opportunistic: when the encoder fails or is disabled the
// original file is kept unchanged.
package encoding

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"ramble/internal/fileutil"
	"ramble/internal/logging"
)

// Opus bitrate per configured quality tier.
var qualityBitrates = map[string]string{
	"low":    "64k",
	"medium": "128k",
	"high":   "192k",
}

// DefaultQuality is used when the configured tier is unknown.
const DefaultQuality = "medium"

// Compressor shells out to ffmpeg to produce a libopus copy of the audio.
type Compressor struct {
	binary  string
	enabled bool
	quality string
	logger  *slog.Logger

	// runCommand is swapped out by tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewCompressor(binary string, enabled bool, quality string, logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if binary == "" {
		binary = "ffmpeg"
	}
	quality = strings.ToLower(strings.TrimSpace(quality))
	if _, ok := qualityBitrates[quality]; !ok {
		quality = DefaultQuality
	}
	return &Compressor{
		binary:     binary,
		enabled:    enabled,
		quality:    quality,
		logger:     logger,
		runCommand: runFFmpeg,
	}
}

// Result describes the archived audio file the compressor produced.
type Result struct {
	// Path is the local path of the file to archive.
	Path string
	// Name is the filename to use inside the output directory.
	Name string
	// Compressed reports whether the encoder ran, as opposed to a plain copy.
	Compressed bool
}

// Compress encodes the audio at sourcePath into destDir. When compression is
// disabled or ffmpeg fails, the original is copied instead so the archive is
// never missing its audio.
func (c *Compressor) Compress(ctx context.Context, sourcePath, destDir string) (Result, error) {
	ext := filepath.Ext(sourcePath)
	if !c.enabled {
		return c.copyOriginal(sourcePath, destDir, ext)
	}

	outName := "original_compressed.opus"
	outPath := filepath.Join(destDir, outName)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", sourcePath,
		"-c:a", "libopus",
		"-b:a", qualityBitrates[c.quality],
		outPath,
	}
	if output, err := c.runCommand(ctx, c.binary, args...); err != nil {
		c.logger.Warn("audio compression failed, copying original",
			logging.Error(err),
			logging.String("ffmpeg_output", tail(output, 400)))
		return c.copyOriginal(sourcePath, destDir, ext)
	}

	return Result{Path: outPath, Name: outName, Compressed: true}, nil
}

func (c *Compressor) copyOriginal(sourcePath, destDir, ext string) (Result, error) {
	name := "original" + ext
	dest := filepath.Join(destDir, name)
	if err := fileutil.CopyFile(sourcePath, dest); err != nil {
		return Result{}, fmt.Errorf("copy original audio: %w", err)
	}
	return Result{Path: dest, Name: name, Compressed: false}, nil
}

func runFFmpeg(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	return output.Bytes(), err
}

func tail(output []byte, limit int) string {
	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) <= limit {
		return trimmed
	}
	return "..." + trimmed[len(trimmed)-limit:]
}
