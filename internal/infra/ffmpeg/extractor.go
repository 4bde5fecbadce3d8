package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	DefaultOutputFilename = "frame"
	DefaultJPEGQuality    = 1
)

var frameIndexPattern = regexp.MustCompile(`_([0-9]+)\.[^.]+$`)

type Extractor struct {
	prober port.MediaProber
	tools  Tools
	runner CommandRunner
	logger *zap.Logger
}

func NewExtractor(prober port.MediaProber, tools Tools, runner CommandRunner, logger *zap.Logger) *Extractor {
	return &Extractor{prober: prober, tools: tools, runner: runner, logger: logger}
}

// Extract samples the video at path into JPEG files under opts.OutputDir,
// padded to the source aspect ratio so no content is cropped. The returned
// paths are ordered by the frame number in their file names.
func (e *Extractor) Extract(ctx context.Context, path string, ratePerSecond float64, opts port.ExtractOptions) ([]string, error) {
	opts, err := validateExtract(path, ratePerSecond, opts)
	if err != nil {
		return nil, err
	}

	meta, err := e.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if meta.Video == nil || meta.Video.Width <= 0 || meta.Video.Height <= 0 || meta.Video.AspectRatio.IsZero() {
		return nil, fmt.Errorf("%w: no usable video stream in %s", entity.ErrProbe, path)
	}

	ffmpeg, err := lookTool(e.tools.FFmpeg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	args := extractArgs(path, ratePerSecond, meta.Video, opts)
	e.logger.Debug("extracting frames", zap.String("cmd", ffmpeg), zap.Strings("args", args))

	_, stderr, err := e.runner.Run(ctx, ffmpeg, args...)
	if err != nil {
		if errors.Is(err, entity.ErrOutputLimit) {
			return nil, err
		}
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(stderr))
	}

	frames, err := ListFrames(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		e.logger.Warn("ffmpeg produced no frames", zap.String("path", path), zap.Float64("video_duration", meta.Duration))
		return frames, nil
	}

	e.logger.Info("frames extracted",
		zap.Int("count", len(frames)),
		zap.Float64("video_duration", meta.Duration),
		zap.String("aspect_ratio", meta.Video.AspectRatio.String()),
	)

	return frames, nil
}

func validateExtract(path string, rate float64, opts port.ExtractOptions) (port.ExtractOptions, error) {
	if path == "" {
		return opts, fmt.Errorf("%w: missing input path", entity.ErrInvalidOptions)
	}
	if !(rate > 0) {
		return opts, fmt.Errorf("%w: frame rate must be positive, got %v", entity.ErrInvalidOptions, rate)
	}
	if opts.OutputDir == "" {
		return opts, fmt.Errorf("%w: missing output dir", entity.ErrInvalidOptions)
	}
	if opts.OutputFilename == "" {
		opts.OutputFilename = DefaultOutputFilename
	}
	if strings.ContainsAny(opts.OutputFilename, `/\%`) {
		return opts, fmt.Errorf("%w: invalid output filename %q", entity.ErrInvalidOptions, opts.OutputFilename)
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 31 {
		return opts, fmt.Errorf("%w: jpeg quality must be within 1..31, got %d", entity.ErrInvalidOptions, opts.JPEGQuality)
	}
	return opts, nil
}

func extractArgs(path string, rate float64, video *entity.VideoStream, opts port.ExtractOptions) []string {
	w, h := video.AspectRatio.Num, video.AspectRatio.Den
	pad := fmt.Sprintf("scale=iw*sar:ih,pad=max(iw\\,ih*(%d/%d)):ow/(%d/%d):(ow-iw)/2:(oh-ih)/2:black", w, h, w, h)

	return []string{
		"-nostats", "-hide_banner", "-loglevel", "warning",
		"-y",
		"-i", path,
		"-r", strconv.FormatFloat(rate, 'f', -1, 64),
		"-s", fmt.Sprintf("%dx%d", video.Width, video.Height),
		"-aspect", video.AspectRatio.String(),
		"-filter_complex", pad,
		"-q:v", strconv.Itoa(opts.JPEGQuality),
		filepath.Join(opts.OutputDir, opts.OutputFilename+"_%d.jpg"),
	}
}

// ListFrames returns the numbered frame files in dir ordered by frame
// number. Hidden files, directories and names without a numeric suffix are
// skipped.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	type numbered struct {
		path  string
		index int
	}
	var frames []numbered
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		index, ok := FrameIndex(name)
		if !ok {
			continue
		}
		frames = append(frames, numbered{path: filepath.Join(dir, name), index: index})
	}

	slices.SortStableFunc(frames, func(a, b numbered) int {
		return a.index - b.index
	})

	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.path
	}
	return paths, nil
}

// FrameIndex extracts n from names like "frame_n.jpg".
func FrameIndex(name string) (int, bool) {
	m := frameIndexPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
