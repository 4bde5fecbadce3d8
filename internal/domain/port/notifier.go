package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, email string, jobID string, taskID string, recordingID string, errorMsg string) error
}
