package integration

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/email"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/ffmpeg"
	miniostorage "github.com/aayush-chouhan-7050/TrueFrame/internal/infra/minio"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/model"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/postgres"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/rabbitmq"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/infra/vision"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/usecase"
	"github.com/aayush-chouhan-7050/TrueFrame/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func writeModelArtifact(t *testing.T) string {
	t.Helper()
	art := model.Artifact{
		Version:     1,
		Name:        "integration",
		Weights:     make([]float64, model.FeatureCount),
		Bias:        -1.0, // every frame scores below 0.5: verdict REAL
		Temperature: 1,
	}
	raw, err := json.Marshal(art)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func makeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", "testsrc=duration=3:size=320x240:rate=30",
		"-pix_fmt", "yuv420p",
		"-y", path,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return path
}

func TestAnalyzeVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("trueframe"),
		tcpostgres.WithUsername("trueframe"),
		tcpostgres.WithPassword("trueframe"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	log, err := logger.New("debug")
	require.NoError(t, err)

	// Database schema
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, postgres.Migrate(ctx, pool))

	// MinIO storage with the test video uploaded
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    minioEndpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		UseSSL:      false,
		VideoBucket: "videos",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "videos", videoKey, makeTestVideo(t), miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// RabbitMQ publishers
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "trueframe.analysis")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub, "analysis.status")
	dlqPub := rabbitmq.NewDLQPublisher(pub, "analysis.request.dlq")

	// Consumer declares the exchange and queues.
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:          rmqURL,
		RequestQueue: "analysis.request",
		Exchange:     "trueframe.analysis",
		DLQ:          "analysis.request.dlq",
		StatusQueue:  "analysis.status",
		Prefetch:     1,
		WorkerCount:  1,
		BaseDelayMs:  100,
	}, func(context.Context, []byte) error { return nil }, log)
	require.NoError(t, err)
	defer consumer.Close()

	// Full pipeline wiring
	scorer, err := model.Load(writeModelArtifact(t), log)
	require.NoError(t, err)

	analyzer := usecase.NewAnalyzeVideoUseCase(
		ffmpeg.NewSampler(log),
		vision.NewPreprocessor(),
		scorer,
		log,
		usecase.AnalyzeConfig{
			FrameInterval:  30,
			MaxFrames:      10,
			BatchSize:      4,
			RequestTimeout: time.Minute,
		},
	)

	repo := postgres.NewAnalysisRepository(pool)
	notifier := email.NewSMTPNotifier("localhost", 1025, "noreply@trueframe.local", log)

	uc := usecase.NewProcessAnalysisUseCase(
		repo, storage, analyzer,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessAnalysisConfig{TempDir: t.TempDir(), MaxRetries: 3},
	)

	// Drive one analysis message through the whole stack.
	analysisID := uuid.New()
	rawMsg, err := json.Marshal(entity.AnalysisRequestMessage{
		AnalysisID: analysisID,
		UserID:     "testuser",
		VideoKey:   videoKey,
		FileSize:   1 << 20,
	})
	require.NoError(t, err)

	require.NoError(t, uc.Execute(ctx, rawMsg))

	// Database has the completed record.
	stored, err := repo.FindByID(ctx, analysisID)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusCompleted, stored.Status)
	assert.Equal(t, entity.LabelReal, stored.Prediction)
	assert.Greater(t, stored.Confidence, 50.0)
	assert.Greater(t, stored.FrameCount, 0)
	assert.InDelta(t, 3.0, stored.VideoDuration, 0.5)

	// Status queue carries the verdict.
	ch, err := rmqConn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var statusMsg entity.AnalysisStatusMessage
	require.Eventually(t, func() bool {
		d, ok, err := ch.Get("analysis.status", true)
		if err != nil || !ok {
			return false
		}
		return json.Unmarshal(d.Body, &statusMsg) == nil
	}, 10*time.Second, 200*time.Millisecond)

	assert.Equal(t, analysisID, statusMsg.AnalysisID)
	assert.Equal(t, entity.AnalysisStatusCompleted, statusMsg.Status)
	assert.Equal(t, entity.LabelReal, statusMsg.Prediction)
}
