package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageLoader reads the bytes behind a frame path.
type ImageLoader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

type FileLoader struct{}

func (FileLoader) Load(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// imageSize decodes only the header to get pixel dimensions.
func imageSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
