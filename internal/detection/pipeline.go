package detection

import (
	"context"
	"fmt"
	"os"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/infra/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 50
	// MaxImageBytes is the largest payload the detection service accepts.
	MaxImageBytes = 5242880
)

// DetectFunc locates entities in one encoded image.
type DetectFunc func(ctx context.Context, image []byte) ([]entity.Region, error)

type RunOptions struct {
	FramesPerSecond  float64
	ConcurrencyLimit int
	// Keep retains frame files after detection.
	Keep bool
	// Logger replaces the pipeline logger for this run when set.
	Logger *zap.Logger
}

type Pipeline struct {
	loader        ImageLoader
	maxImageBytes int
	logger        *zap.Logger
}

func NewPipeline(loader ImageLoader, maxImageBytes int, logger *zap.Logger) *Pipeline {
	if loader == nil {
		loader = FileLoader{}
	}
	if maxImageBytes <= 0 {
		maxImageBytes = MaxImageBytes
	}
	return &Pipeline{loader: loader, maxImageBytes: maxImageBytes, logger: logger}
}

// contribution is what one frame task hands back to the coordinator.
type contribution struct {
	pos     int
	records []entity.DetectionRecord
	err     error
}

// Run detects entities on every frame with at most opts.ConcurrencyLimit
// frames in flight. A frame that fails to load or detect is logged and
// contributes nothing; Run itself never fails. Records are laid out in frame
// order. The batch is not cancelled midway: ctx only carries values.
func (p *Pipeline) Run(ctx context.Context, frames []entity.Frame, opts RunOptions, detect DetectFunc) entity.PipelineResult {
	ctx = context.WithoutCancel(ctx)

	log := p.logger
	if opts.Logger != nil {
		log = opts.Logger
	}

	limit := opts.ConcurrencyLimit
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make(chan contribution)
	perFrame := make([][]entity.DetectionRecord, len(frames))
	failed := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range results {
			if c.err != nil {
				failed++
				continue
			}
			perFrame[c.pos] = c.records
		}
	}()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, frame := range frames {
		g.Go(func() error {
			records, err := p.processFrame(ctx, frame, opts, detect, log)
			if err != nil {
				log.Warn("frame skipped",
					zap.Int("frame_index", frame.Index),
					zap.Float64("frame_start", frame.Start),
					zap.String("path", frame.Path),
					zap.Error(err),
				)
			}
			results <- contribution{pos: i, records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done

	var total int
	for _, r := range perFrame {
		total += len(r)
	}
	records := make([]entity.DetectionRecord, 0, total)
	for _, r := range perFrame {
		records = append(records, r...)
	}

	log.Info("detection batch done",
		zap.Int("frames", len(frames)),
		zap.Int("failed_frames", failed),
		zap.Int("detections", len(records)),
	)

	return entity.PipelineResult{
		Records: records,
		Frames:  len(frames),
		Failed:  failed,
	}
}

// processFrame owns frame.Path for its whole duration and removes it once
// the detection call returns, unless opts.Keep is set.
func (p *Pipeline) processFrame(ctx context.Context, frame entity.Frame, opts RunOptions, detect DetectFunc, log *zap.Logger) (records []entity.DetectionRecord, err error) {
	metrics.InFlightDetections.Inc()
	defer func() {
		metrics.InFlightDetections.Dec()
		if !opts.Keep {
			release(frame, log)
		}
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		}
		metrics.FramesProcessedTotal.WithLabelValues(outcome).Inc()
	}()

	data, err := p.loader.Load(ctx, frame.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", entity.ErrFrame, frame.Path, err)
	}
	if len(data) > p.maxImageBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", entity.ErrFrame, frame.Path, len(data), p.maxImageBytes)
	}

	width, height, err := imageSize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrFrame, frame.Path, err)
	}

	regions, err := detect(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: detect %s: %v", entity.ErrFrame, frame.Path, err)
	}

	records = ToRecords(frame, opts.FramesPerSecond, width, height, regions)
	metrics.DetectionsTotal.Add(float64(len(records)))

	log.Debug("frame detected",
		zap.Int("frame_index", frame.Index),
		zap.Float64("frame_start", frame.Start),
		zap.Int("regions", len(regions)),
	)
	return records, nil
}

func release(frame entity.Frame, log *zap.Logger) {
	if frame.Path == "" {
		return
	}
	if err := os.Remove(frame.Path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove frame", zap.String("path", frame.Path), zap.Error(err))
	}
}
