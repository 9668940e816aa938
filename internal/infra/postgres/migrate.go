package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL,
	video_key      TEXT NOT NULL,
	file_size      BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	prediction     TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	frame_count    INTEGER NOT NULL DEFAULT 0,
	video_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
	attempt        INTEGER NOT NULL DEFAULT 0,
	max_attempts   INTEGER NOT NULL DEFAULT 0,
	error_kind     TEXT NOT NULL DEFAULT '',
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses (status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at);
`

// Migrate applies the schema. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
