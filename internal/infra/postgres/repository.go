package postgres

import (
	"context"
	"fmt"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

func (r *AnalysisRepository) Create(ctx context.Context, a *entity.Analysis) error {
	query := `
		INSERT INTO analyses (
			id, user_id, source, video_key, file_size, status,
			prediction, confidence, frame_count, video_duration,
			attempt, max_attempts, error_kind, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.UserID, string(a.Source), a.VideoKey, a.FileSize, string(a.Status),
		string(a.Prediction), a.Confidence, a.FrameCount, a.VideoDuration,
		a.Attempt, a.MaxAttempts, a.ErrorKind, a.ErrorMessage,
		a.CreatedAt, a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) Update(ctx context.Context, a *entity.Analysis) error {
	query := `
		UPDATE analyses SET
			status=$2, prediction=$3, confidence=$4, frame_count=$5,
			video_duration=$6, attempt=$7, error_kind=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		a.ID, string(a.Status), string(a.Prediction), a.Confidence, a.FrameCount,
		a.VideoDuration, a.Attempt, a.ErrorKind, a.ErrorMessage,
		a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error) {
	query := `
		SELECT id, user_id, source, video_key, file_size, status,
			prediction, confidence, frame_count, video_duration,
			attempt, max_attempts, error_kind, error_message,
			created_at, updated_at, completed_at
		FROM analyses WHERE id=$1`

	a := &entity.Analysis{}
	var source, status, prediction string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &source, &a.VideoKey, &a.FileSize, &status,
		&prediction, &a.Confidence, &a.FrameCount, &a.VideoDuration,
		&a.Attempt, &a.MaxAttempts, &a.ErrorKind, &a.ErrorMessage,
		&a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find analysis by id: %w", err)
	}
	a.Source = entity.AnalysisSource(source)
	a.Status = entity.AnalysisStatus(status)
	a.Prediction = entity.Label(prediction)
	return a, nil
}
