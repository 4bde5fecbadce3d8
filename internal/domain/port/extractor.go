package port

import (
	"context"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

type ExtractOptions struct {
	OutputDir      string
	OutputFilename string
	JPEGQuality    int
}

type MediaProber interface {
	Probe(ctx context.Context, path string) (*entity.MediaMetadata, error)
}

// FrameExtractor samples a video into still images and returns their paths
// sorted by frame number.
type FrameExtractor interface {
	Extract(ctx context.Context, path string, ratePerSecond float64, opts ExtractOptions) ([]string, error)
}
