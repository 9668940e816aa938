package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/config"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/email"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/ffmpeg"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/httpapi"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/metrics"
	miniostorage "github.com/aayush-chouhan-7050/TrueFrame/internal/infra/minio"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/model"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/postgres"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/rabbitmq"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/tracing"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/vision"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/usecase"
	"github.com/aayush-chouhan-7050/TrueFrame/pkg/logger"
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

	log.Info("starting trueframe-inference-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Model: loaded exactly once, before any serving starts. A failure here
	// is fatal; the process refuses to serve without a model.
	scorer, err := model.Load(cfg.ModelPath, log)
	fatalOnErr(err, "load detection model")

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()
	fatalOnErr(postgres.Migrate(ctx, pool), "apply database schema")

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    cfg.MinIOEndpoint,
		AccessKey:   cfg.MinIOAccessKey,
		SecretKey:   cfg.MinIOSecretKey,
		UseSSL:      cfg.MinIOUseSSL,
		VideoBucket: cfg.MinIOVideoBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub, "analysis.status")
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewAnalysisRepository(pool)
	sampler := ffmpeg.NewSampler(log)
	pre := vision.NewPreprocessor()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Core pipeline
	analyzer := usecase.NewAnalyzeVideoUseCase(sampler, pre, scorer, log, usecase.AnalyzeConfig{
		FrameInterval:  cfg.FrameInterval,
		MaxFrames:      cfg.MaxFrames,
		BatchSize:      cfg.InferenceBatchSize,
		RequestTimeout: cfg.RequestTimeout,
	})

	// Queued intake
	processUC := usecase.NewProcessAnalysisUseCase(
		repo, storage, analyzer,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessAnalysisConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// HTTP API
	api := httpapi.NewServer(analyzer, repo, scorer, log, httpapi.ServerConfig{
		Port:           cfg.HTTPPort,
		MaxUploadBytes: cfg.MaxUploadMB * 1024 * 1024,
		MaxConcurrent:  cfg.MaxConcurrent,
		MaxRetries:     cfg.MaxRetries,
	})
	apiSrv := api.Start()

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:          cfg.RabbitMQURL,
		RequestQueue: cfg.RabbitMQRequestQueue,
		Exchange:     cfg.RabbitMQExchange,
		DLQ:          cfg.RabbitMQDLQ,
		StatusQueue:  cfg.RabbitMQStatusQueue,
		Prefetch:     cfg.RabbitMQPrefetch,
		WorkerCount:  cfg.WorkerCount,
		BaseDelayMs:  cfg.RetryBaseDelayMs,
	}, processUC.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("trueframe-inference-service started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("model", scorer.Fingerprint()),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("trueframe-inference-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
