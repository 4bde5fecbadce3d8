package entity

import (
	"encoding/json"
	"time"
)

type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusComplete TaskStatus = "complete"
	TaskStatusFailed   TaskStatus = "failed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusRunning, TaskStatusComplete, TaskStatusFailed:
		return true
	}
	return false
}

// Task is one detection task of an upstream job. Output holds the task
// output document once the task completes.
type Task struct {
	JobID          string
	TaskID         string
	RecordingID    string
	Status         TaskStatus
	Output         json.RawMessage
	AssetID        string
	FrameCount     int
	FailedFrames   int
	DetectionCount int
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewTask(jobID, taskID, recordingID string, maxAttempts int) *Task {
	now := time.Now().UTC()
	return &Task{
		JobID:       jobID,
		TaskID:      taskID,
		RecordingID: recordingID,
		Status:      TaskStatusRunning,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (t *Task) MarkRunning() {
	t.Status = TaskStatusRunning
	t.Attempt++
	t.ErrorMessage = ""
	t.UpdatedAt = time.Now().UTC()
}

func (t *Task) MarkCompleted(output json.RawMessage, assetID string, result PipelineResult) {
	now := time.Now().UTC()
	t.Status = TaskStatusComplete
	t.Output = output
	t.AssetID = assetID
	t.FrameCount = result.Frames
	t.FailedFrames = result.Failed
	t.DetectionCount = len(result.Records)
	t.UpdatedAt = now
	t.CompletedAt = &now
}

func (t *Task) MarkFailed(errMsg string) {
	t.Status = TaskStatusFailed
	t.ErrorMessage = errMsg
	t.UpdatedAt = time.Now().UTC()
}

// RecordAttemptError keeps the task running and notes why the attempt failed.
func (t *Task) RecordAttemptError(errMsg string) {
	t.ErrorMessage = errMsg
	t.UpdatedAt = time.Now().UTC()
}

// RevertCompletion puts a completed task back to running, dropping its
// output. Used when the completion could not be announced.
func (t *Task) RevertCompletion() {
	t.Status = TaskStatusRunning
	t.Output = nil
	t.AssetID = ""
	t.FrameCount = 0
	t.FailedFrames = 0
	t.DetectionCount = 0
	t.CompletedAt = nil
	t.UpdatedAt = time.Now().UTC()
}

func (t *Task) CanRetry() bool {
	return t.Attempt < t.MaxAttempts
}

// TaskStatusUpdate is what gets reported upstream for a task transition.
type TaskStatusUpdate struct {
	Status TaskStatus      `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
}
