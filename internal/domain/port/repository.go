package port

import (
	"context"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"github.com/google/uuid"
)

type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entity.Analysis) error
	Update(ctx context.Context, analysis *entity.Analysis) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error)
}
