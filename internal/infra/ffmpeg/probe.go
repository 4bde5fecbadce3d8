package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Tools locates the ffmpeg and ffprobe executables. Bare names are resolved
// through PATH.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

type Prober struct {
	tools  Tools
	runner CommandRunner
	logger *zap.Logger
}

func NewProber(tools Tools, runner CommandRunner, logger *zap.Logger) *Prober {
	return &Prober{tools: tools, runner: runner, logger: logger}
}

// Probe reads format and stream metadata of the file at path. The creation
// time is best effort: a failing scrape leaves the field empty.
func (p *Prober) Probe(ctx context.Context, path string) (*entity.MediaMetadata, error) {
	ffprobe, ffmpeg, err := p.resolve(path)
	if err != nil {
		return nil, err
	}

	var (
		meta    *entity.MediaMetadata
		created *time.Time
	)

	var g errgroup.Group
	g.Go(func() error {
		stdout, stderr, err := p.runner.Run(ctx, ffprobe,
			"-i", path,
			"-show_format",
			"-show_streams",
			"-v", "error",
		)
		if err != nil {
			if errors.Is(err, entity.ErrOutputLimit) {
				return err
			}
			return fmt.Errorf("%w: ffprobe %s: %v: %s", entity.ErrProbe, path, err, string(stderr))
		}
		meta = parseReport(stdout)
		if err := checkReport(meta); err != nil {
			return fmt.Errorf("ffprobe %s: %w", path, err)
		}
		return nil
	})
	g.Go(func() error {
		t, err := p.creationTime(ctx, ffmpeg, path)
		if err != nil {
			p.logger.Warn("creation time probe failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		created = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	meta.CreationTime = created
	return meta, nil
}

// checkReport rejects ffprobe output without a format block or without any
// audio or video stream.
func checkReport(meta *entity.MediaMetadata) error {
	if meta.FormatID == "" {
		return fmt.Errorf("%w: no format section in ffprobe output", entity.ErrProbe)
	}
	if meta.Audio == nil && meta.Video == nil {
		return fmt.Errorf("%w: no audio or video stream in ffprobe output", entity.ErrProbe)
	}
	return nil
}

func (p *Prober) creationTime(ctx context.Context, ffmpeg, path string) (*time.Time, error) {
	stdout, stderr, err := p.runner.Run(ctx, ffmpeg,
		"-hide_banner",
		"-i", path,
		"-f", "null",
		"-",
	)
	if err != nil {
		return nil, err
	}
	return parseCreationTime(append(stdout, stderr...)), nil
}

// resolve checks the input file and both executables before anything runs.
func (p *Prober) resolve(path string) (ffprobe string, ffmpeg string, err error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: empty input path", entity.ErrToolMissing)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: input %q: %v", entity.ErrToolMissing, path, err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%w: input %q is a directory", entity.ErrToolMissing, path)
	}
	ffprobe, err = lookTool(p.tools.FFprobe)
	if err != nil {
		return "", "", err
	}
	ffmpeg, err = lookTool(p.tools.FFmpeg)
	if err != nil {
		return "", "", err
	}
	return ffprobe, ffmpeg, nil
}

func lookTool(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: tool path not configured", entity.ErrToolMissing)
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: unable to find %s executable: %v", entity.ErrToolMissing, name, err)
	}
	return resolved, nil
}
