package assetstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
)

// StatusReporter persists a task transition and announces it on the status queue.
type StatusReporter struct {
	repo      port.TaskRepository
	publisher port.StatusPublisher
}

func NewStatusReporter(repo port.TaskRepository, publisher port.StatusPublisher) *StatusReporter {
	return &StatusReporter{repo: repo, publisher: publisher}
}

func (r *StatusReporter) ReportTaskStatus(ctx context.Context, task *entity.Task) error {
	if !task.Status.Valid() {
		return fmt.Errorf("%w: invalid task status %q", entity.ErrStatusReport, task.Status)
	}
	if err := r.repo.Update(ctx, task); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrStatusReport, err)
	}

	data, err := json.Marshal(entity.NewTaskStatusMessage(task))
	if err != nil {
		return fmt.Errorf("%w: encode status: %v", entity.ErrStatusReport, err)
	}
	if err := r.publisher.PublishStatus(ctx, data); err != nil {
		return fmt.Errorf("%w: publish status: %v", entity.ErrStatusReport, err)
	}
	return nil
}
