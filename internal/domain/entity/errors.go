package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a missing or malformed required option.
	ErrConfig = errors.New("invalid configuration")
	// ErrToolMissing marks an absent ffmpeg/ffprobe binary or input file.
	ErrToolMissing = errors.New("tool or input missing")
	// ErrProbe marks tool output that lacks a required field.
	ErrProbe = errors.New("media probe failed")
	// ErrOutputLimit marks a subprocess that wrote more than the exec buffer allows.
	ErrOutputLimit = errors.New("command output exceeds buffer size")
	// ErrInvalidOptions marks bad frame extraction options.
	ErrInvalidOptions = errors.New("invalid extraction options")
	// ErrAssetNotFound marks a media object without an image or media asset.
	ErrAssetNotFound = errors.New("no compatible asset found")
	// ErrFrame marks a per-frame load or detection failure.
	ErrFrame = errors.New("frame processing failed")
	// ErrUpload marks an artifact upload failure.
	ErrUpload = errors.New("artifact upload failed")
	// ErrStatusReport marks a task status report failure.
	ErrStatusReport = errors.New("task status report failed")
)

// IsSetupFailure reports errors that no retry can fix.
func IsSetupFailure(err error) bool {
	for _, target := range []error{ErrConfig, ErrToolMissing, ErrProbe, ErrOutputLimit, ErrInvalidOptions, ErrAssetNotFound} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RetryableError is returned for a task attempt that failed transiently and
// should be delivered again.
type RetryableError struct {
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable failure (attempt %d/%d): %v", e.Attempt, e.MaxAttempts, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// RetryAttempt is the attempt that failed, starting at 1.
func (e *RetryableError) RetryAttempt() int { return e.Attempt }
