package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_detection_tasks_processed_total",
		Help: "Total number of detection tasks processed, by status",
	}, []string{"status"})

	TaskStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_detection_task_stage_duration_seconds",
		Help:    "Duration of each detection task stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_frames_processed_total",
		Help: "Total number of frames sent through detection, by outcome",
	}, []string{"outcome"})

	DetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_detections_total",
		Help: "Total number of entities detected across all frames",
	})

	InFlightDetections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_detections_in_flight",
		Help: "Number of frames currently held by detection workers",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_active_workers",
		Help: "Number of currently active workers processing tasks",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
