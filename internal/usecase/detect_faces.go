package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-detection-service/internal/decompose"
	"github.com/fiapx/fiapx-detection-service/internal/detection"
	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
	"github.com/fiapx/fiapx-detection-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	ArtifactName        = "amazon-rekognition-detect-face.json"
	ArtifactSource      = "amazon-rekognition-detect-face"
	ArtifactAssetType   = "v-amazon-rekognition-detect"
	ArtifactContentType = "application/json"

	FramesArchiveName      = "frames.zip"
	FramesArchiveAssetType = "frames-archive"
)

// DetectorFactory returns a detector that drops faces below minConfidence.
type DetectorFactory func(minConfidence float64) port.FaceDetector

type DetectFacesUseCase struct {
	tasks      port.TaskRepository
	objects    port.ObjectFetcher
	artifacts  port.ArtifactUploader
	reporter   port.TaskStatusReporter
	decomposer *decompose.Decomposer
	pipeline   *detection.Pipeline
	detector   DetectorFactory
	zipper     port.Zipper
	dlq        port.DLQPublisher
	notifier   port.FailureNotifier
	timeline   port.TimelineEmitter
	logger     *zap.Logger
	debugLog   *zap.Logger
	cfg        DetectFacesConfig
}

type DetectFacesConfig struct {
	TempDir           string
	MaxRetries        int
	FramesPerSecond   float64
	MaxParallelImages int
	MinConfidence     float64
	JPEGQuality       int
}

type DetectFacesDeps struct {
	Tasks      port.TaskRepository
	Objects    port.ObjectFetcher
	Artifacts  port.ArtifactUploader
	Reporter   port.TaskStatusReporter
	Decomposer *decompose.Decomposer
	Pipeline   *detection.Pipeline
	Detector   DetectorFactory
	Zipper     port.Zipper
	DLQ        port.DLQPublisher
	Notifier   port.FailureNotifier
	Timeline   port.TimelineEmitter
	// DebugLogger serves tasks that ask for debug output. Defaults to the main logger.
	DebugLogger *zap.Logger
}

func NewDetectFacesUseCase(deps DetectFacesDeps, logger *zap.Logger, cfg DetectFacesConfig) *DetectFacesUseCase {
	debugLog := deps.DebugLogger
	if debugLog == nil {
		debugLog = logger
	}
	return &DetectFacesUseCase{
		tasks:      deps.Tasks,
		objects:    deps.Objects,
		artifacts:  deps.Artifacts,
		reporter:   deps.Reporter,
		decomposer: deps.Decomposer,
		pipeline:   deps.Pipeline,
		detector:   deps.Detector,
		zipper:     deps.Zipper,
		dlq:        deps.DLQ,
		notifier:   deps.Notifier,
		timeline:   deps.Timeline,
		logger:     logger,
		debugLog:   debugLog,
		cfg:        cfg,
	}
}

// taskOptions are the worker defaults with the message overrides applied.
type taskOptions struct {
	framesPerSecond   float64
	maxParallelImages int
	minConfidence     float64
	jpegQuality       int
	keep              bool
}

func (uc *DetectFacesUseCase) resolveOptions(msg entity.DetectionTaskMessage) taskOptions {
	opts := taskOptions{
		framesPerSecond:   uc.cfg.FramesPerSecond,
		maxParallelImages: uc.cfg.MaxParallelImages,
		minConfidence:     uc.cfg.MinConfidence,
		jpegQuality:       uc.cfg.JPEGQuality,
		keep:              msg.KeepFrames(),
	}
	if msg.FramesPerSecond != nil {
		opts.framesPerSecond = *msg.FramesPerSecond
	}
	if msg.MaxParallelImages != nil {
		opts.maxParallelImages = *msg.MaxParallelImages
	}
	if msg.MinConfidence != nil {
		opts.minConfidence = *msg.MinConfidence
	}
	if msg.JPEGQuality != nil {
		opts.jpegQuality = *msg.JPEGQuality
	}
	return opts
}

// Execute handles one delivery. A nil return acks the message; an error
// asks the consumer to requeue it.
func (uc *DetectFacesUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "DetectFacesUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.DetectionTaskMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		uc.publishDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if err := msg.Validate(); err != nil {
		uc.logger.Error("rejecting invalid task message", zap.Error(err), zap.ByteString("body", rawMsg))
		uc.publishDLQ(ctx, rawMsg, "validation_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("task.job_id", msg.JobID),
		attribute.String("task.id", msg.TaskID),
		attribute.String("task.recording_id", msg.RecordingID),
	)

	base := uc.logger
	if msg.Debug {
		base = uc.debugLog
	}
	log := base.With(
		zap.String("job_id", msg.JobID),
		zap.String("task_id", msg.TaskID),
		zap.String("recording_id", msg.RecordingID),
	)

	task, err := uc.tasks.FindByID(ctx, msg.JobID, msg.TaskID)
	if err != nil {
		task = entity.NewTask(msg.JobID, msg.TaskID, msg.RecordingID, uc.cfg.MaxRetries)
		if err := uc.tasks.Create(ctx, task); err != nil {
			log.Error("failed to create task record", zap.Error(err))
			return fmt.Errorf("create task: %w", err)
		}
	}

	if task.Status == entity.TaskStatusComplete {
		// the completion may have been stored without being announced
		log.Info("task already complete, re-announcing status")
		if err := uc.reporter.ReportTaskStatus(ctx, task); err != nil {
			log.Error("failed to re-announce complete status", zap.Error(err))
			return &entity.RetryableError{Attempt: task.Attempt, MaxAttempts: task.MaxAttempts, Err: err}
		}
		return nil
	}

	if !task.CanRetry() {
		log.Warn("task exhausted retries, sending to DLQ")
		uc.handlePermanentFailure(ctx, task, msg, rawMsg, "max retries exceeded", log)
		return nil
	}

	task.MarkRunning()
	if err := uc.reporter.ReportTaskStatus(ctx, task); err != nil {
		log.Error("failed to report running status", zap.Error(err))
		return &entity.RetryableError{Attempt: task.Attempt, MaxAttempts: task.MaxAttempts, Err: fmt.Errorf("report running: %w", err)}
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runTask(ctx, task, msg, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if entity.IsSetupFailure(err) {
			log.Error("task failed permanently", zap.Error(err))
			uc.handlePermanentFailure(ctx, task, msg, rawMsg, err.Error(), log)
			return nil
		}
		return uc.handleRetryableFailure(ctx, task, msg, rawMsg, err, log)
	}

	metrics.TasksProcessedTotal.WithLabelValues(string(entity.TaskStatusComplete)).Inc()
	metrics.TaskStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func (uc *DetectFacesUseCase) runTask(ctx context.Context, task *entity.Task, msg entity.DetectionTaskMessage, log *zap.Logger) error {
	tracer := otel.Tracer("usecase")
	opts := uc.resolveOptions(msg)

	workDir := filepath.Join(uc.cfg.TempDir, task.JobID, task.TaskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	if opts.keep {
		log.Info("keeping work files", zap.String("work_dir", workDir))
	} else {
		defer os.RemoveAll(workDir)
	}

	stageStart := time.Now()
	fetchCtx, spanFetch := tracer.Start(ctx, "fetch_object")
	obj, err := uc.objects.FetchObject(fetchCtx, task.RecordingID)
	spanFetch.End()
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}
	metrics.TaskStageDuration.WithLabelValues("fetch").Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	decCtx, spanDec := tracer.Start(ctx, "decompose")
	frames, err := uc.decomposer.Decompose(decCtx, obj, opts.framesPerSecond, decompose.Options{
		WorkDir:     workDir,
		Keep:        opts.keep,
		JPEGQuality: opts.jpegQuality,
	})
	spanDec.End()
	if err != nil {
		return fmt.Errorf("decompose: %w", err)
	}
	metrics.TaskStageDuration.WithLabelValues("decompose").Observe(time.Since(stageStart).Seconds())
	log.Info("media decomposed", zap.Int("frames", len(frames)), zap.Float64("frames_per_second", opts.framesPerSecond))

	stageStart = time.Now()
	detCtx, spanDet := tracer.Start(ctx, "detect_faces")
	detector := uc.detector(opts.minConfidence)
	result := uc.pipeline.Run(detCtx, frames, detection.RunOptions{
		FramesPerSecond:  opts.framesPerSecond,
		ConcurrencyLimit: opts.maxParallelImages,
		Keep:             opts.keep,
		Logger:           log,
	}, detector.Detect)
	spanDet.SetAttributes(
		attribute.Int("detection.frames", result.Frames),
		attribute.Int("detection.failed_frames", result.Failed),
		attribute.Int("detection.records", len(result.Records)),
	)
	spanDet.End()
	metrics.TaskStageDuration.WithLabelValues("detect").Observe(time.Since(stageStart).Seconds())

	if result.Failed > 0 {
		log.Warn("some frames produced no detections because they failed",
			zap.Int("failed_frames", result.Failed),
			zap.Int("frames", result.Frames),
		)
	}

	if opts.keep {
		uc.archiveFrames(ctx, obj.ID, frames, workDir, log)
	}

	stageStart = time.Now()
	upCtx, spanUp := tracer.Start(ctx, "upload_artifact")
	output, err := uc.uploadOutput(upCtx, obj.ID, result.Records)
	spanUp.End()
	if err != nil {
		return err
	}
	metrics.TaskStageDuration.WithLabelValues("upload").Observe(time.Since(stageStart).Seconds())

	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode task output: %w", err)
	}
	task.MarkCompleted(outputJSON, output.AssetID, result)
	if err := uc.reporter.ReportTaskStatus(ctx, task); err != nil {
		task.RevertCompletion()
		return fmt.Errorf("report complete: %w", err)
	}

	if err := uc.timeline.EmitTimeline(ctx, task.RecordingID, output); err != nil {
		log.Warn("failed to emit timeline", zap.Error(err))
	}

	log.Info("task completed",
		zap.Int("frames", result.Frames),
		zap.Int("failed_frames", result.Failed),
		zap.Int("detections", len(result.Records)),
		zap.String("asset_id", output.AssetID),
	)
	return nil
}

// uploadOutput stores the series as the task artifact and returns the task
// output pointing at the new asset.
func (uc *DetectFacesUseCase) uploadOutput(ctx context.Context, containerID string, records []entity.DetectionRecord) (entity.TaskOutput, error) {
	if records == nil {
		records = []entity.DetectionRecord{}
	}
	output := entity.TaskOutput{Series: records}

	data, err := json.Marshal(output)
	if err != nil {
		return entity.TaskOutput{}, fmt.Errorf("encode artifact: %w", err)
	}

	ref, err := uc.artifacts.UploadArtifact(ctx, entity.Artifact{
		ContainerID: containerID,
		ContentType: ArtifactContentType,
		AssetType:   ArtifactAssetType,
		Name:        ArtifactName,
		Source:      ArtifactSource,
		Data:        data,
	})
	if err != nil {
		return entity.TaskOutput{}, fmt.Errorf("upload artifact: %w", err)
	}

	output.AssetID = ref.ID
	return output, nil
}

// archiveFrames zips the retained frame files and attaches them to the
// object. Failures are logged only.
func (uc *DetectFacesUseCase) archiveFrames(ctx context.Context, containerID string, frames []entity.Frame, workDir string, log *zap.Logger) {
	paths := make([]string, 0, len(frames))
	for _, f := range frames {
		paths = append(paths, f.Path)
	}

	zipPath := filepath.Join(workDir, FramesArchiveName)
	if err := uc.zipper.CreateZip(ctx, paths, zipPath); err != nil {
		log.Warn("failed to archive frames", zap.Error(err))
		return
	}
	data, err := os.ReadFile(zipPath)
	if err != nil {
		log.Warn("failed to read frames archive", zap.Error(err))
		return
	}

	ref, err := uc.artifacts.UploadArtifact(ctx, entity.Artifact{
		ContainerID: containerID,
		ContentType: "application/zip",
		AssetType:   FramesArchiveAssetType,
		Name:        FramesArchiveName,
		Source:      ArtifactSource,
		Data:        data,
	})
	if err != nil {
		log.Warn("failed to upload frames archive", zap.Error(err))
		return
	}
	log.Info("frames archive uploaded", zap.String("asset_id", ref.ID), zap.Int("frames", len(paths)))
}

func (uc *DetectFacesUseCase) handleRetryableFailure(
	ctx context.Context,
	task *entity.Task,
	msg entity.DetectionTaskMessage,
	rawMsg []byte,
	cause error,
	log *zap.Logger,
) error {
	errMsg := cause.Error()
	if !task.CanRetry() {
		log.Error("task failed on its last attempt", zap.Error(cause))
		uc.handlePermanentFailure(ctx, task, msg, rawMsg, errMsg, log)
		return nil
	}

	task.RecordAttemptError(errMsg)
	if err := uc.tasks.Update(ctx, task); err != nil {
		log.Error("failed to record attempt error", zap.Error(err))
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(task.Attempt)).Inc()
	log.Warn("task attempt failed, will retry",
		zap.Int("attempt", task.Attempt),
		zap.Int("max_attempts", task.MaxAttempts),
		zap.Error(cause),
	)

	return &entity.RetryableError{Attempt: task.Attempt, MaxAttempts: task.MaxAttempts, Err: cause}
}

func (uc *DetectFacesUseCase) handlePermanentFailure(
	ctx context.Context,
	task *entity.Task,
	msg entity.DetectionTaskMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) {
	task.MarkFailed(errMsg)
	if err := uc.reporter.ReportTaskStatus(ctx, task); err != nil {
		log.Error("failed to report failed status", zap.Error(err))
	}

	uc.publishDLQ(ctx, rawMsg, errMsg)
	metrics.TasksProcessedTotal.WithLabelValues(string(entity.TaskStatusFailed)).Inc()

	if msg.NotifyEmail != "" {
		if err := uc.notifier.NotifyFailure(ctx, msg.NotifyEmail, task.JobID, task.TaskID, task.RecordingID, errMsg); err != nil {
			log.Warn("failed to notify task failure", zap.Error(err))
		}
	}
}

func (uc *DetectFacesUseCase) publishDLQ(ctx context.Context, rawMsg []byte, reason string) {
	if err := uc.dlq.PublishToDLQ(ctx, rawMsg, reason); err != nil {
		uc.logger.Error("failed to publish to DLQ", zap.String("reason", reason), zap.Error(err))
	}
}
