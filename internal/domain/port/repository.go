package port

import (
	"context"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	Update(ctx context.Context, task *entity.Task) error
	FindByID(ctx context.Context, jobID, taskID string) (*entity.Task, error)
}

type ObjectRepository interface {
	FetchObject(ctx context.Context, id string) (*entity.MediaObject, error)
	CreateAsset(ctx context.Context, asset *entity.Asset) error
}
