// Package dedupe keeps a ledger of study submissions per content and pipeline.
package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tendant/simple-study-pipeline/internal/logger"
)

// Tracker tracks duplicate study submissions
type Tracker struct {
	db  *sql.DB
	log *logger.Logger
}

// NewTracker creates a new dedupe tracker and ensures its table exists
func NewTracker(ctx context.Context, db *sql.DB, log *logger.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.Nop()
	}
	tracker := &Tracker{db: db, log: log}

	if err := tracker.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure dedupe table: %w", err)
	}

	return tracker, nil
}

// ensureTable creates the study_dedupe table if it doesn't exist
func (t *Tracker) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS study_dedupe (
			content_id TEXT NOT NULL,
			pipeline TEXT NOT NULL,
			pipeline_version INTEGER,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1,
			PRIMARY KEY (content_id, pipeline)
		)
	`

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create study_dedupe table: %w", err)
	}

	t.log.Info("study_dedupe table ready")
	return nil
}

// Record records a submission and returns how many times the content has
// been submitted to pipeline, this one included
func (t *Tracker) Record(ctx context.Context, contentID string, pipeline string, pipelineVersion int) (int, error) {
	query := `
		INSERT INTO study_dedupe (content_id, pipeline, pipeline_version, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		ON CONFLICT (content_id, pipeline) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = study_dedupe.seen_count + 1,
		    pipeline_version = EXCLUDED.pipeline_version
		RETURNING seen_count
	`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, contentID, pipeline, pipelineVersion).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record dedupe: %w", err)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for a content ID and pipeline
func (t *Tracker) GetSeenCount(ctx context.Context, contentID string, pipeline string) (int, error) {
	query := `SELECT seen_count FROM study_dedupe WHERE content_id = $1 AND pipeline = $2`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, contentID, pipeline).Scan(&seenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}
