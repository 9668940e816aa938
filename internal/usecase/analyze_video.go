package usecase

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/port"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Analyzer runs the full video-to-verdict pipeline for one local video file.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath string) (*AnalysisResult, error)
}

// AnalysisResult is the pipeline output for one video.
type AnalysisResult struct {
	Verdict    entity.Verdict
	FrameCount int
	Duration   float64 // container duration, seconds
}

type AnalyzeConfig struct {
	FrameInterval  int
	MaxFrames      int
	BatchSize      int
	RequestTimeout time.Duration
}

// AnalyzeVideoUseCase sequences sampling, preprocessing, batched scoring and
// aggregation under one wall-clock budget, and maps every failure onto the
// detect taxonomy before it crosses the boundary.
type AnalyzeVideoUseCase struct {
	sampler port.FrameSampler
	pre     port.Preprocessor
	model   port.Model
	logger  *zap.Logger
	cfg     AnalyzeConfig
}

func NewAnalyzeVideoUseCase(
	sampler port.FrameSampler,
	pre port.Preprocessor,
	model port.Model,
	logger *zap.Logger,
	cfg AnalyzeConfig,
) *AnalyzeVideoUseCase {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &AnalyzeVideoUseCase{
		sampler: sampler,
		pre:     pre,
		model:   model,
		logger:  logger,
		cfg:     cfg,
	}
}

func (uc *AnalyzeVideoUseCase) Analyze(ctx context.Context, videoPath string) (*AnalysisResult, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnalyzeVideoUseCase.Analyze")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.RequestTimeout)
	defer cancel()

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	openStart := time.Now()
	openCtx, openSpan := tracer.Start(ctx, "open_video")
	stream, info, err := uc.sampler.Open(openCtx, videoPath, port.SampleOptions{
		Interval:  uc.cfg.FrameInterval,
		MaxFrames: uc.cfg.MaxFrames,
	})
	openSpan.End()
	if err != nil {
		return nil, uc.mapError(ctx, err)
	}
	// The decode context is released on every exit path from here on.
	defer stream.Close()
	metrics.StageDuration.WithLabelValues("open").Observe(time.Since(openStart).Seconds())

	span.SetAttributes(
		attribute.Int("video.width", info.Width),
		attribute.Int("video.height", info.Height),
		attribute.Float64("video.duration", info.DurationSec),
	)

	scoreStart := time.Now()
	scoreCtx, scoreSpan := tracer.Start(ctx, "sample_and_score")
	scores, sampled, err := uc.scoreFrames(scoreCtx, stream)
	scoreSpan.End()
	metrics.StageDuration.WithLabelValues("sample_and_score").Observe(time.Since(scoreStart).Seconds())
	if err != nil {
		return nil, uc.mapError(ctx, err)
	}
	if sampled == 0 {
		return nil, uc.mapError(ctx, detect.New(detect.KindNoDecodableFrames, "video yielded no decodable frames"))
	}
	metrics.FramesSampledTotal.Add(float64(sampled))

	verdict, err := entity.Aggregate(scores)
	if err != nil {
		// Unreachable when sampled > 0; kept as a guard on the invariant
		// that a verdict is never built from an empty score set.
		return nil, uc.mapError(ctx, detect.Wrap(detect.KindNoDecodableFrames, "empty score set", err))
	}

	metrics.AnalysesTotal.WithLabelValues(string(verdict.Label)).Inc()
	uc.logger.Info("analysis complete",
		zap.String("prediction", string(verdict.Label)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Int("frames", sampled),
	)

	return &AnalysisResult{
		Verdict:    verdict,
		FrameCount: sampled,
		Duration:   info.DurationSec,
	}, nil
}

// scoreFrames drains the frame stream, preprocessing each frame and scoring in
// fixed-size batches. Only the current batch of tensors is retained; decoded
// frames are dropped as soon as they are transformed.
func (uc *AnalyzeVideoUseCase) scoreFrames(ctx context.Context, stream port.FrameStream) ([]entity.FrameScore, int, error) {
	batch := make([]entity.Tensor, 0, uc.cfg.BatchSize)
	indices := make([]int, 0, uc.cfg.BatchSize)
	var scores []entity.FrameScore
	sampled := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		probs, err := uc.predictWithRetry(ctx, batch)
		if err != nil {
			return err
		}
		for i, p := range probs {
			scores = append(scores, entity.FrameScore{FrameIndex: indices[i], PFake: p})
		}
		batch = batch[:0]
		indices = indices[:0]
		return nil
	}

	for {
		frame, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, sampled, err
			}
			return nil, sampled, detect.Wrap(detect.KindNoDecodableFrames, "decode failed mid-stream", err)
		}

		sampled++
		batch = append(batch, uc.pre.Transform(frame))
		indices = append(indices, frame.Index)

		if len(batch) == uc.cfg.BatchSize {
			if err := flush(); err != nil {
				return nil, sampled, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, sampled, err
	}
	return scores, sampled, nil
}

// predictWithRetry invokes the model once, and exactly once more on failure.
// Prediction is deterministic, so the retry is safe.
func (uc *AnalyzeVideoUseCase) predictWithRetry(ctx context.Context, batch []entity.Tensor) ([]float64, error) {
	probs, err := uc.model.Predict(ctx, batch)
	if err == nil {
		return probs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	metrics.ScorerRetriesTotal.Inc()
	uc.logger.Warn("model invocation failed, retrying batch once", zap.Error(err))

	probs, err = uc.model.Predict(ctx, batch)
	if err != nil {
		return nil, detect.Wrap(detect.KindScoringFailed, "model invocation failed after retry", err)
	}
	return probs, nil
}

// mapError normalizes a stage failure onto the closed taxonomy. A cancelled
// request propagates cancellation untouched: it never produces a verdict and
// never reaches the boundary as a taxonomy kind.
func (uc *AnalyzeVideoUseCase) mapError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		wrapped := detect.Wrap(detect.KindTimeout, "analysis exceeded the request budget", err)
		metrics.AnalysesTotal.WithLabelValues(string(detect.KindTimeout)).Inc()
		return wrapped
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if kind, ok := detect.KindOf(err); ok {
		metrics.AnalysesTotal.WithLabelValues(string(kind)).Inc()
		return err
	}
	metrics.AnalysesTotal.WithLabelValues(string(detect.KindUnreadableVideo)).Inc()
	return detect.Wrap(detect.KindUnreadableVideo, "video analysis failed", err)
}
