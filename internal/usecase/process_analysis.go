package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/port"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessAnalysisUseCase drives one queued analysis request: fetch the video
// from object storage into a request-scoped workdir, run the pipeline, persist
// and publish the outcome. The workdir (video copy included) is removed on
// every exit path.
type ProcessAnalysisUseCase struct {
	repo      port.AnalysisRepository
	storage   port.VideoStorage
	analyzer  Analyzer
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
}

type ProcessAnalysisConfig struct {
	TempDir    string
	MaxRetries int
}

func NewProcessAnalysisUseCase(
	repo port.AnalysisRepository,
	storage port.VideoStorage,
	analyzer Analyzer,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessAnalysisConfig,
) *ProcessAnalysisUseCase {
	return &ProcessAnalysisUseCase{
		repo:      repo,
		storage:   storage,
		analyzer:  analyzer,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
	}
}

func (uc *ProcessAnalysisUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessAnalysisUseCase.Execute")
	defer span.End()

	var msg entity.AnalysisRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("analysis.id", msg.AnalysisID.String()),
		attribute.String("analysis.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("analysis_id", msg.AnalysisID.String()), zap.String("video_key", msg.VideoKey))

	analysis, err := uc.repo.FindByID(ctx, msg.AnalysisID)
	if err != nil {
		analysis = entity.NewAnalysis(msg.UserID, entity.SourceQueue, msg.VideoKey, msg.FileSize, uc.maxRetry)
		analysis.ID = msg.AnalysisID
		if err := uc.repo.Create(ctx, analysis); err != nil {
			log.Error("failed to create analysis record", zap.Error(err))
			return fmt.Errorf("create analysis: %w", err)
		}
	}

	if !analysis.CanRetry() {
		log.Warn("analysis exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, analysis, msg, rawMsg, "", "max retries exceeded")
	}

	analysis.MarkProcessing()
	if err := uc.repo.Update(ctx, analysis); err != nil {
		log.Error("failed to update analysis to PROCESSING", zap.Error(err))
		return fmt.Errorf("update analysis: %w", err)
	}

	return uc.runPipeline(ctx, analysis, msg, rawMsg, log)
}

func (uc *ProcessAnalysisUseCase) runPipeline(
	ctx context.Context,
	analysis *entity.Analysis,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, analysis.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fetchCtx, fetchSpan := tracer.Start(ctx, "fetch_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.FetchVideo(fetchCtx, msg.VideoKey, videoPath); err != nil {
		fetchSpan.End()
		log.Error("failed to fetch video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, analysis, msg, rawMsg, "", "fetch_video: "+err.Error(), log)
	}
	fetchSpan.End()

	result, err := uc.analyzer.Analyze(ctx, videoPath)
	if err != nil {
		kind, tagged := detect.KindOf(err)
		log.Error("analysis failed", zap.Error(err), zap.String("kind", string(kind)))
		if tagged && kind.ClientFault() {
			// Bad input cannot be fixed by retrying the same video.
			return uc.handlePermanentFailure(ctx, analysis, msg, rawMsg, string(kind), kind.Message())
		}
		return uc.handleRetryableFailure(ctx, analysis, msg, rawMsg, string(kind), kind.Message(), log)
	}

	analysis.MarkCompleted(result.Verdict, result.FrameCount, result.Duration)
	if err := uc.repo.Update(ctx, analysis); err != nil {
		log.Error("failed to update analysis to COMPLETED", zap.Error(err))
		return fmt.Errorf("update analysis completed: %w", err)
	}

	uc.publishStatus(ctx, analysis, log)

	log.Info("analysis completed successfully",
		zap.String("prediction", string(result.Verdict.Label)),
		zap.Float64("confidence", result.Verdict.Confidence),
		zap.Int("frame_count", result.FrameCount),
	)

	return nil
}

func (uc *ProcessAnalysisUseCase) handleRetryableFailure(
	ctx context.Context,
	analysis *entity.Analysis,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	kind, errMsg string,
	log *zap.Logger,
) error {
	analysis.MarkFailed(kind, errMsg)
	_ = uc.repo.Update(ctx, analysis)

	if !analysis.CanRetry() {
		return uc.handlePermanentFailure(ctx, analysis, msg, rawMsg, kind, errMsg)
	}

	metrics.QueueRetryTotal.WithLabelValues(strconv.Itoa(analysis.Attempt)).Inc()
	uc.publishStatus(ctx, analysis, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", analysis.Attempt, analysis.MaxAttempts, errMsg)
}

func (uc *ProcessAnalysisUseCase) handlePermanentFailure(
	ctx context.Context,
	analysis *entity.Analysis,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	kind, errMsg string,
) error {
	analysis.MarkFailed(kind, errMsg)
	_ = uc.repo.Update(ctx, analysis)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, analysis, uc.logger)

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, analysis.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *ProcessAnalysisUseCase) publishStatus(ctx context.Context, analysis *entity.Analysis, log *zap.Logger) {
	statusMsg := entity.AnalysisStatusMessage{
		AnalysisID:   analysis.ID,
		UserID:       analysis.UserID,
		Status:       analysis.Status,
		VideoKey:     analysis.VideoKey,
		Prediction:   analysis.Prediction,
		Confidence:   analysis.Confidence,
		FrameCount:   analysis.FrameCount,
		Duration:     analysis.VideoDuration,
		ErrorKind:    analysis.ErrorKind,
		ErrorMessage: analysis.ErrorMessage,
		Attempt:      analysis.Attempt,
		MaxAttempts:  analysis.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
