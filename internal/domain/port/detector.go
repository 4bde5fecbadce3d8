package port

import (
	"context"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

type FaceDetector interface {
	Detect(ctx context.Context, image []byte) ([]entity.Region, error)
}
