package port

import (
	"context"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}

type TaskStatusReporter interface {
	ReportTaskStatus(ctx context.Context, task *entity.Task) error
}

// TimelineEmitter pushes a finished detection timeline to live subscribers.
type TimelineEmitter interface {
	EmitTimeline(ctx context.Context, recordingID string, output entity.TaskOutput) error
}
