package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	analyses map[uuid.UUID]*entity.Analysis
}

func newMemRepo() *memRepo {
	return &memRepo{analyses: make(map[uuid.UUID]*entity.Analysis)}
}

func (r *memRepo) Create(_ context.Context, a *entity.Analysis) error {
	cp := *a
	r.analyses[a.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, a *entity.Analysis) error {
	cp := *a
	r.analyses[a.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Analysis, error) {
	a, ok := r.analyses[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *a
	return &cp, nil
}

type fakeStorage struct {
	fetchErr error
	fetched  []string
}

func (s *fakeStorage) FetchVideo(_ context.Context, objectKey, destPath string) error {
	if s.fetchErr != nil {
		return s.fetchErr
	}
	s.fetched = append(s.fetched, objectKey)
	return os.WriteFile(destPath, []byte("video bytes"), 0o644)
}

type fakeAnalyzer struct {
	result   *AnalysisResult
	err      error
	seenPath string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, videoPath string) (*AnalysisResult, error) {
	a.seenPath = videoPath
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

type capturePublisher struct {
	statuses []entity.AnalysisStatusMessage
}

func (p *capturePublisher) PublishStatus(_ context.Context, msg []byte) error {
	var sm entity.AnalysisStatusMessage
	if err := json.Unmarshal(msg, &sm); err != nil {
		return err
	}
	p.statuses = append(p.statuses, sm)
	return nil
}

type captureDLQ struct {
	reasons []string
}

func (d *captureDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

type captureNotifier struct {
	emails []string
}

func (n *captureNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.emails = append(n.emails, userEmail)
	return nil
}

type asyncFixture struct {
	uc       *ProcessAnalysisUseCase
	repo     *memRepo
	storage  *fakeStorage
	analyzer *fakeAnalyzer
	pub      *capturePublisher
	dlq      *captureDLQ
	notifier *captureNotifier
	tempDir  string
}

func newAsyncFixture(t *testing.T, analyzer *fakeAnalyzer) *asyncFixture {
	t.Helper()
	f := &asyncFixture{
		repo:     newMemRepo(),
		storage:  &fakeStorage{},
		analyzer: analyzer,
		pub:      &capturePublisher{},
		dlq:      &captureDLQ{},
		notifier: &captureNotifier{},
		tempDir:  t.TempDir(),
	}
	f.uc = NewProcessAnalysisUseCase(
		f.repo, f.storage, f.analyzer, f.pub, f.dlq, f.notifier,
		zap.NewNop(),
		ProcessAnalysisConfig{TempDir: f.tempDir, MaxRetries: 3},
	)
	return f
}

func requestMsg(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	raw, err := json.Marshal(entity.AnalysisRequestMessage{
		AnalysisID: id,
		UserID:     "user-1",
		VideoKey:   "user-1/clip.mp4",
		FileSize:   1024,
		UserEmail:  "user@example.com",
	})
	require.NoError(t, err)
	return raw
}

func TestExecuteCompletesAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &AnalysisResult{
		Verdict:    entity.Verdict{Label: entity.LabelFake, Confidence: 93.00},
		FrameCount: 12,
		Duration:   6.5,
	}}
	f := newAsyncFixture(t, analyzer)
	id := uuid.New()

	err := f.uc.Execute(context.Background(), requestMsg(t, id))
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusCompleted, stored.Status)
	assert.Equal(t, entity.LabelFake, stored.Prediction)
	assert.InDelta(t, 93.00, stored.Confidence, 1e-9)
	assert.Equal(t, 12, stored.FrameCount)

	require.Len(t, f.pub.statuses, 1)
	assert.Equal(t, entity.AnalysisStatusCompleted, f.pub.statuses[0].Status)
	assert.Empty(t, f.dlq.reasons)
	assert.Equal(t, []string{"user-1/clip.mp4"}, f.storage.fetched)
}

func TestExecuteRemovesWorkdirOnEveryExit(t *testing.T) {
	cases := map[string]*fakeAnalyzer{
		"success": {result: &AnalysisResult{Verdict: entity.Verdict{Label: entity.LabelReal, Confidence: 90}}},
		"failure": {err: detect.New(detect.KindScoringFailed, "boom")},
	}
	for name, analyzer := range cases {
		t.Run(name, func(t *testing.T) {
			f := newAsyncFixture(t, analyzer)
			id := uuid.New()

			_ = f.uc.Execute(context.Background(), requestMsg(t, id))

			_, err := os.Stat(filepath.Join(f.tempDir, id.String()))
			assert.True(t, os.IsNotExist(err), "workdir must be removed")
		})
	}
}

func TestExecuteClientFaultIsPermanent(t *testing.T) {
	f := newAsyncFixture(t, &fakeAnalyzer{err: detect.New(detect.KindUnreadableVideo, "bad container")})
	id := uuid.New()

	// Permanent failures ack the message (nil error) instead of requeueing.
	err := f.uc.Execute(context.Background(), requestMsg(t, id))
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.Status)
	assert.Equal(t, string(detect.KindUnreadableVideo), stored.ErrorKind)

	assert.Len(t, f.dlq.reasons, 1)
	assert.Equal(t, []string{"user@example.com"}, f.notifier.emails)
}

func TestExecuteServerFaultIsRetryable(t *testing.T) {
	f := newAsyncFixture(t, &fakeAnalyzer{err: detect.New(detect.KindScoringFailed, "transient")})
	id := uuid.New()

	err := f.uc.Execute(context.Background(), requestMsg(t, id))
	require.Error(t, err, "retryable failure must nack for requeue")

	stored, findErr := f.repo.FindByID(context.Background(), id)
	require.NoError(t, findErr)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempt)
	assert.Empty(t, f.dlq.reasons, "not dead-lettered while retries remain")
}

func TestExecuteExhaustedRetriesGoToDLQ(t *testing.T) {
	f := newAsyncFixture(t, &fakeAnalyzer{err: detect.New(detect.KindScoringFailed, "transient")})
	id := uuid.New()
	msg := requestMsg(t, id)

	for i := 0; i < 2; i++ {
		require.Error(t, f.uc.Execute(context.Background(), msg))
	}
	// Third attempt exhausts MaxRetries=3 and is acked.
	require.NoError(t, f.uc.Execute(context.Background(), msg))

	assert.Len(t, f.dlq.reasons, 1)
	assert.Equal(t, []string{"user@example.com"}, f.notifier.emails)
}

func TestExecuteFetchFailureIsRetryable(t *testing.T) {
	f := newAsyncFixture(t, &fakeAnalyzer{})
	f.storage.fetchErr = errors.New("object not found")
	id := uuid.New()

	err := f.uc.Execute(context.Background(), requestMsg(t, id))
	require.Error(t, err)
	assert.Empty(t, f.analyzer.seenPath, "pipeline must not run without the video")
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	f := newAsyncFixture(t, &fakeAnalyzer{})

	err := f.uc.Execute(context.Background(), []byte("{broken"))
	require.NoError(t, err)
	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
}
