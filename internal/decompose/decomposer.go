package decompose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
	"github.com/fiapx/fiapx-detection-service/internal/infra/ffmpeg"
	"go.uber.org/zap"
)

type Options struct {
	// WorkDir receives the downloaded source and the frames directory.
	WorkDir     string
	Keep        bool
	JPEGQuality int
}

// Decomposer turns a media object into an ordered list of frames.
type Decomposer struct {
	assets    port.AssetDownloader
	extractor port.FrameExtractor
	logger    *zap.Logger
}

func NewDecomposer(assets port.AssetDownloader, extractor port.FrameExtractor, logger *zap.Logger) *Decomposer {
	return &Decomposer{assets: assets, extractor: extractor, logger: logger}
}

// Decompose downloads the oldest image asset of obj, or failing that its
// oldest media asset, and returns its frames. An image yields one frame
// spanning the object's own start and stop times.
func (d *Decomposer) Decompose(ctx context.Context, obj *entity.MediaObject, ratePerSecond float64, opts Options) ([]entity.Frame, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: missing media object", entity.ErrConfig)
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("%w: missing work dir", entity.ErrConfig)
	}
	if !(ratePerSecond > 0) {
		return nil, fmt.Errorf("%w: frame rate must be positive, got %v", entity.ErrConfig, ratePerSecond)
	}

	log := d.logger.With(zap.String("recording_id", obj.ID))

	if asset, ok := oldestAsset(obj.ImageAssets); ok {
		log.Info("downloading image asset", zap.String("asset_id", asset.ID))
		path, err := d.assets.DownloadAsset(ctx, asset.Location(), opts.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("download image asset %s: %w", asset.ID, err)
		}
		return []entity.Frame{{
			Index: 0,
			Path:  path,
			Start: obj.StartDateTime,
			End:   obj.StopDateTime,
		}}, nil
	}

	asset, ok := oldestAsset(obj.MediaAssets)
	if !ok {
		return nil, fmt.Errorf("%w: recording %s has no image or media asset", entity.ErrAssetNotFound, obj.ID)
	}

	log.Info("downloading media asset", zap.String("asset_id", asset.ID))
	videoPath, err := d.assets.DownloadAsset(ctx, asset.Location(), opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("download media asset %s: %w", asset.ID, err)
	}

	paths, err := d.extractor.Extract(ctx, videoPath, ratePerSecond, port.ExtractOptions{
		OutputDir:      filepath.Join(opts.WorkDir, "frames"),
		OutputFilename: ffmpeg.DefaultOutputFilename,
		JPEGQuality:    opts.JPEGQuality,
	})
	if err != nil {
		return nil, err
	}

	if !opts.Keep {
		if err := os.Remove(videoPath); err != nil {
			log.Warn("failed to remove downloaded media", zap.String("path", videoPath), zap.Error(err))
		}
	}

	return BuildFrames(paths), nil
}

// BuildFrames orders paths by the frame number in their names and assigns
// contiguous offsets: the frame at position i spans [i, i+1).
func BuildFrames(paths []string) []entity.Frame {
	frames := make([]entity.Frame, 0, len(paths))
	for _, p := range paths {
		index, _ := ffmpeg.FrameIndex(p)
		frames = append(frames, entity.Frame{Index: index, Path: p})
	}

	slices.SortStableFunc(frames, func(a, b entity.Frame) int {
		return a.Index - b.Index
	})

	var start float64
	for i := range frames {
		frames[i].Start = start
		frames[i].End = start + 1
		start = frames[i].End
	}
	return frames
}

// oldestAsset picks the earliest created asset; ties keep input order.
func oldestAsset(assets []entity.Asset) (entity.Asset, bool) {
	if len(assets) == 0 {
		return entity.Asset{}, false
	}
	return slices.MinFunc(assets, func(a, b entity.Asset) int {
		return a.CreatedDateTime.Compare(b.CreatedDateTime)
	}), true
}
