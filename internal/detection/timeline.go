package detection

import "github.com/fiapx/fiapx-detection-service/internal/domain/entity"

// TimelineMs converts a frame's offset window to milliseconds at the given
// sampling rate. It depends only on the frame and the rate.
func TimelineMs(frame entity.Frame, framesPerSecond float64) (startMs, stopMs float64) {
	return 1000 * frame.Start / framesPerSecond, 1000 * frame.End / framesPerSecond
}

// ToRecords places every region found in frame on the timeline.
func ToRecords(frame entity.Frame, framesPerSecond float64, width, height int, regions []entity.Region) []entity.DetectionRecord {
	startMs, stopMs := TimelineMs(frame, framesPerSecond)
	records := make([]entity.DetectionRecord, 0, len(regions))
	for _, r := range regions {
		records = append(records, entity.DetectionRecord{
			StartTimeMs: startMs,
			StopTimeMs:  stopMs,
			BoundingPoly: entity.BoundingPoly{
				Left:        r.Box.Left,
				Top:         r.Box.Top,
				Width:       r.Box.Width,
				Height:      r.Box.Height,
				ImageWidth:  width,
				ImageHeight: height,
			},
			Attributes: r.Attributes,
		})
	}
	return records
}
