package entity

import (
	"encoding/json"
	"fmt"
)

// DetectionTaskMessage is the inbound message from the detection.tasks queue.
// Optional fields override the worker defaults for this task only.
type DetectionTaskMessage struct {
	JobID             string   `json:"job_id"`
	TaskID            string   `json:"task_id"`
	RecordingID       string   `json:"recording_id"`
	FramesPerSecond   *float64 `json:"frames_per_second,omitempty"`
	MaxParallelImages *int     `json:"max_parallel_images,omitempty"`
	MinConfidence     *float64 `json:"min_confidence,omitempty"`
	JPEGQuality       *int     `json:"jpeg_quality,omitempty"`
	Keep              bool     `json:"keep,omitempty"`
	Debug             bool     `json:"debug,omitempty"`
	NotifyEmail       string   `json:"notify_email,omitempty"`
}

// Validate applies the strict field rules. Every failure wraps ErrConfig.
func (m DetectionTaskMessage) Validate() error {
	if m.JobID == "" {
		return fmt.Errorf("%w: missing job_id", ErrConfig)
	}
	if m.TaskID == "" {
		return fmt.Errorf("%w: missing task_id", ErrConfig)
	}
	if m.RecordingID == "" {
		return fmt.Errorf("%w: missing recording_id", ErrConfig)
	}
	if m.FramesPerSecond != nil && *m.FramesPerSecond <= 0 {
		return fmt.Errorf("%w: frames_per_second must be positive, got %v", ErrConfig, *m.FramesPerSecond)
	}
	if m.MaxParallelImages != nil && *m.MaxParallelImages <= 0 {
		return fmt.Errorf("%w: max_parallel_images must be positive, got %d", ErrConfig, *m.MaxParallelImages)
	}
	if m.MinConfidence != nil && (*m.MinConfidence < 0 || *m.MinConfidence > 100) {
		return fmt.Errorf("%w: min_confidence must be within 0..100, got %v", ErrConfig, *m.MinConfidence)
	}
	if m.JPEGQuality != nil && (*m.JPEGQuality < 1 || *m.JPEGQuality > 31) {
		return fmt.Errorf("%w: jpeg_quality must be within 1..31, got %d", ErrConfig, *m.JPEGQuality)
	}
	return nil
}

// KeepFrames reports whether extracted files must survive the task.
func (m DetectionTaskMessage) KeepFrames() bool {
	return m.Keep || m.Debug
}

// TaskStatusMessage is the outbound message published to the detection.status queue.
type TaskStatusMessage struct {
	JobID          string          `json:"job_id"`
	TaskID         string          `json:"task_id"`
	RecordingID    string          `json:"recording_id"`
	Status         TaskStatus      `json:"status"`
	Output         json.RawMessage `json:"output,omitempty"`
	AssetID        string          `json:"asset_id,omitempty"`
	FrameCount     int             `json:"frame_count,omitempty"`
	FailedFrames   int             `json:"failed_frames,omitempty"`
	DetectionCount int             `json:"detection_count,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Attempt        int             `json:"attempt"`
	MaxAttempts    int             `json:"max_attempts"`
}

func NewTaskStatusMessage(t *Task) TaskStatusMessage {
	return TaskStatusMessage{
		JobID:          t.JobID,
		TaskID:         t.TaskID,
		RecordingID:    t.RecordingID,
		Status:         t.Status,
		Output:         t.Output,
		AssetID:        t.AssetID,
		FrameCount:     t.FrameCount,
		FailedFrames:   t.FailedFrames,
		DetectionCount: t.DetectionCount,
		ErrorMessage:   t.ErrorMessage,
		Attempt:        t.Attempt,
		MaxAttempts:    t.MaxAttempts,
	}
}
