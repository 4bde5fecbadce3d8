package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-detection-service/internal/decompose"
	"github.com/fiapx/fiapx-detection-service/internal/detection"
	"github.com/fiapx/fiapx-detection-service/internal/domain/port"
	"github.com/fiapx/fiapx-detection-service/internal/infra/archive"
	"github.com/fiapx/fiapx-detection-service/internal/infra/assetstore"
	"github.com/fiapx/fiapx-detection-service/internal/infra/config"
	"github.com/fiapx/fiapx-detection-service/internal/infra/email"
	"github.com/fiapx/fiapx-detection-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-detection-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-detection-service/internal/infra/minio"
	"github.com/fiapx/fiapx-detection-service/internal/infra/mqtt"
	"github.com/fiapx/fiapx-detection-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-detection-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-detection-service/internal/infra/rekognition"
	"github.com/fiapx/fiapx-detection-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-detection-service/internal/usecase"
	"github.com/fiapx/fiapx-detection-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	debugLog, err := logger.New("debug")
	fatalOnErr(err, "init debug logger")

	log.Info("starting fiapx-detection-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	err = postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir)
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		SourceBucket:   cfg.MinIOSourceBucket,
		ArtifactBucket: cfg.MinIOArtifactBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	detector, err := rekognition.NewFaceDetector(ctx, rekognition.DetectorConfig{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		MinConfidence:   cfg.MinConfidence,
	}, log)
	fatalOnErr(err, "create face detector")

	var timeline port.TimelineEmitter = mqtt.NopEmitter{}
	if cfg.MQTTBroker != "" {
		emitter, err := mqtt.Connect(mqtt.EmitterConfig{Broker: cfg.MQTTBroker, Topic: cfg.MQTTTopic, QoS: 1}, log)
		if err != nil {
			log.Warn("mqtt unavailable, timeline events disabled", zap.Error(err))
		} else {
			defer emitter.Disconnect()
			timeline = emitter
		}
	}

	execBuffer := ffmpeg.ResolveExecBuffer(cfg.FFmpegExecBufferBytes)
	log.Info("ffmpeg exec buffer", zap.Int64("bytes", execBuffer))

	tools := ffmpeg.Tools{FFmpeg: cfg.FFmpegPath, FFprobe: cfg.FFprobePath}
	runner := ffmpeg.NewExecRunner(execBuffer)
	prober := ffmpeg.NewProber(tools, runner, log)
	extractor := ffmpeg.NewExtractor(prober, tools, runner, log)

	taskRepo := postgres.NewTaskRepository(pool)
	objectRepo := postgres.NewObjectRepository(pool)
	store := assetstore.NewStore(objectRepo, storage, log)
	reporter := assetstore.NewStatusReporter(taskRepo, statusPub)

	uc := usecase.NewDetectFacesUseCase(usecase.DetectFacesDeps{
		Tasks:      taskRepo,
		Objects:    store,
		Artifacts:  store,
		Reporter:   reporter,
		Decomposer: decompose.NewDecomposer(store, extractor, log),
		Pipeline:   detection.NewPipeline(detection.FileLoader{}, cfg.MaxImageBytes, log),
		Detector: func(minConfidence float64) port.FaceDetector {
			return detector.WithMinConfidence(minConfidence)
		},
		Zipper:      archive.NewZipCreator(),
		DLQ:         dlqPub,
		Notifier:    email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
		Timeline:    timeline,
		DebugLogger: debugLog,
	}, log, usecase.DetectFacesConfig{
		TempDir:           cfg.TempDir,
		MaxRetries:        cfg.MaxRetries,
		FramesPerSecond:   cfg.FramesPerSecond,
		MaxParallelImages: cfg.MaxParallelImages,
		MinConfidence:     cfg.MinConfidence,
		JPEGQuality:       cfg.FFmpegJPEGQuality,
	})

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQTaskQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fiapx-detection-service started, consuming tasks", zap.String("queue", cfg.RabbitMQTaskQueue))

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("fiapx-detection-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
